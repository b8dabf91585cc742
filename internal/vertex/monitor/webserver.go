package monitor

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/banshee-data/vertex.report/internal/config"
	"github.com/banshee-data/vertex.report/internal/version"
	"github.com/banshee-data/vertex.report/internal/vertex"
	sqlite "github.com/banshee-data/vertex.report/internal/vertex/storage/sqlite"
)

// WebServer handles the HTTP interface for monitoring the vertexing
// pipeline. It provides endpoints for health checks, pipeline status,
// run/vertex queries and runtime parameter tuning.
type WebServer struct {
	address  string
	stats    *vertex.PipelineStats
	server   *http.Server
	pipeline *vertex.Pipeline
	runs     *sqlite.RunStore
	vertices *sqlite.VertexStore
	runID    string
	udpPort  int
}

// WebServerConfig contains configuration options for the web server.
type WebServerConfig struct {
	Address     string
	Stats       *vertex.PipelineStats
	Pipeline    *vertex.Pipeline
	RunStore    *sqlite.RunStore
	VertexStore *sqlite.VertexStore
	RunID       string
	UDPPort     int
}

// NewWebServer creates a new web server with the provided configuration.
func NewWebServer(cfg WebServerConfig) *WebServer {
	ws := &WebServer{
		address:  cfg.Address,
		stats:    cfg.Stats,
		pipeline: cfg.Pipeline,
		runs:     cfg.RunStore,
		vertices: cfg.VertexStore,
		runID:    cfg.RunID,
		udpPort:  cfg.UDPPort,
	}

	ws.server = &http.Server{
		Addr:    ws.address,
		Handler: ws.setupRoutes(),
	}

	return ws
}

func (ws *WebServer) writeJSONError(w http.ResponseWriter, status int, msg string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": msg})
}

func (ws *WebServer) writeJSON(w http.ResponseWriter, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Printf("encode response: %v", err)
	}
}

// Start begins the HTTP server in a goroutine and handles graceful shutdown.
func (ws *WebServer) Start(ctx context.Context) error {
	go func() {
		log.Printf("Starting HTTP server on %s", ws.address)
		if err := ws.server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("failed to start server: %v", err)
		}
	}()

	<-ctx.Done()
	log.Println("shutting down HTTP server...")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 1*time.Second)
	defer cancel()

	if err := ws.server.Shutdown(shutdownCtx); err != nil {
		log.Printf("HTTP server shutdown error: %v", err)
		if err := ws.server.Close(); err != nil {
			log.Printf("HTTP server force close error: %v", err)
		}
	}

	log.Printf("HTTP server routine stopped")
	return nil
}

// Close shuts the server down immediately.
func (ws *WebServer) Close() error {
	return ws.server.Close()
}

// setupRoutes configures the HTTP routes and handlers.
func (ws *WebServer) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/health", ws.handleHealth)
	mux.HandleFunc("/", ws.handleStatus)
	mux.HandleFunc("/api/vertex/runs", ws.handleRuns)
	mux.HandleFunc("/api/vertex/vertices", ws.handleVertices)
	mux.HandleFunc("/api/vertex/params", ws.handleParams)
	mux.HandleFunc("/debug/vertex/zscatter", ws.handleZScatter)

	return mux
}

func (ws *WebServer) handleHealth(w http.ResponseWriter, r *http.Request) {
	ws.writeJSON(w, map[string]string{"status": "ok"})
}

// handleStatus returns pipeline counters and the active run id.
func (ws *WebServer) handleStatus(w http.ResponseWriter, r *http.Request) {
	if r.URL.Path != "/" {
		ws.writeJSONError(w, http.StatusNotFound, "not found")
		return
	}

	status := map[string]interface{}{
		"run_id":   ws.runID,
		"udp_port": ws.udpPort,
		"version":  version.Version,
		"time":     time.Now().Format(time.RFC3339),
	}
	if ws.stats != nil {
		status["stats"] = ws.stats.Snapshot()
	}
	if ws.pipeline != nil {
		events, vertices, noise := ws.pipeline.Totals()
		status["totals"] = map[string]int64{
			"events":       events,
			"vertices":     vertices,
			"noise_tracks": noise,
		}
		status["params"] = ws.pipeline.Params()
	}
	ws.writeJSON(w, status)
}

// handleRuns returns recent clustering runs, newest first.
// Query params:
//
//	run_id (optional; returns just that run)
//	limit (optional, default 50)
func (ws *WebServer) handleRuns(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.runs == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured")
		return
	}

	if runID := r.URL.Query().Get("run_id"); runID != "" {
		run, err := ws.runs.Get(runID)
		if err != nil {
			ws.writeJSONError(w, http.StatusNotFound, fmt.Sprintf("get run: %v", err))
			return
		}
		ws.writeJSON(w, run)
		return
	}

	limit := 50
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 1000 {
			limit = v
		}
	}

	runs, err := ws.runs.List(limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list runs: %v", err))
		return
	}
	ws.writeJSON(w, runs)
}

// handleVertices returns persisted vertices for a run.
// Query params:
//
//	run_id (required)
//	event_id (optional; restricts to one event)
//	limit (optional, default 1000)
func (ws *WebServer) handleVertices(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
		return
	}
	if ws.vertices == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter")
		return
	}

	if ev := r.URL.Query().Get("event_id"); ev != "" {
		eventID, err := strconv.ParseInt(ev, 10, 64)
		if err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid 'event_id': %v", err))
			return
		}
		records, err := ws.vertices.ListByEvent(runID, eventID)
		if err != nil {
			ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list vertices: %v", err))
			return
		}
		ws.writeJSON(w, records)
		return
	}

	limit := 1000
	if l := r.URL.Query().Get("limit"); l != "" {
		if v, err := strconv.Atoi(l); err == nil && v > 0 && v <= 100000 {
			limit = v
		}
	}

	records, err := ws.vertices.ListByRun(runID, limit)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list vertices: %v", err))
		return
	}
	ws.writeJSON(w, records)
}

// handleParams reads or updates the live clustering parameters. GET
// returns the current values; POST accepts a partial tuning config and
// applies it to subsequent batches.
func (ws *WebServer) handleParams(w http.ResponseWriter, r *http.Request) {
	if ws.pipeline == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no pipeline configured")
		return
	}

	switch r.Method {
	case http.MethodGet:
		ws.writeJSON(w, ws.pipeline.Params())

	case http.MethodPost:
		cfg := config.EmptyTuningConfig()
		if err := json.NewDecoder(http.MaxBytesReader(w, r.Body, 1<<20)).Decode(cfg); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("decode body: %v", err))
			return
		}
		if err := cfg.Validate(); err != nil {
			ws.writeJSONError(w, http.StatusBadRequest, fmt.Sprintf("invalid params: %v", err))
			return
		}

		// Overlay only the provided fields on the live values.
		p := ws.pipeline.Params()
		if cfg.Eps != nil {
			p.Eps = float32(*cfg.Eps)
		}
		if cfg.MinCoreNeighbours != nil {
			p.MinCore = *cfg.MinCoreNeighbours
		}
		if cfg.MaxSeedError != nil {
			p.ErrMax = float32(*cfg.MaxSeedError)
		}
		if cfg.Chi2Max != nil {
			p.Chi2Max = float32(*cfg.Chi2Max)
		}
		ws.pipeline.SetParams(p)
		log.Printf("tuning update: eps=%v min_core=%d errmax=%v chi2max=%v", p.Eps, p.MinCore, p.ErrMax, p.Chi2Max)
		ws.writeJSON(w, p)

	default:
		ws.writeJSONError(w, http.StatusMethodNotAllowed, "Method not allowed")
	}
}
