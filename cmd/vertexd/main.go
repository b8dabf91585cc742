package main

import (
	"context"
	"encoding/json"
	"flag"
	"log"
	"net"
	"os/signal"
	"strconv"
	"sync"
	"syscall"

	"github.com/banshee-data/vertex.report/internal/config"
	"github.com/banshee-data/vertex.report/internal/db"
	"github.com/banshee-data/vertex.report/internal/vertex"
	"github.com/banshee-data/vertex.report/internal/vertex/monitor"
	"github.com/banshee-data/vertex.report/internal/vertex/network"
	sqlite "github.com/banshee-data/vertex.report/internal/vertex/storage/sqlite"
	"github.com/banshee-data/vertex.report/internal/version"
)

var (
	listen        = flag.String("listen", ":8080", "HTTP listen address")
	udpAddr       = flag.String("udp", ":9500", "UDP listen address for VTRK track packets")
	dbFile        = flag.String("db", "vertex_data.db", "Path to the sqlite database")
	configPath    = flag.String("config", "", "Path to a tuning config JSON (optional)")
	migrationsDir = flag.String("migrations", "internal/db/migrations", "Path to the migrations directory")
	pcapFile      = flag.String("pcap", "", "Replay a PCAP file instead of listening on UDP")
	pcapSpeed     = flag.Float64("pcap-speed", 0, "Replay pacing multiplier (0 = as fast as possible)")
)

func main() {
	flag.Parse()

	if *listen == "" {
		log.Fatal("Listen address is required")
	}
	log.Printf("vertexd %s (%s, built %s)", version.Version, version.GitSHA, version.BuildTime)

	cfg := config.EmptyTuningConfig()
	if *configPath != "" {
		var err error
		cfg, err = config.LoadTuningConfig(*configPath)
		if err != nil {
			log.Fatalf("Failed to load tuning config: %v", err)
		}
	}

	database, err := db.NewDB(*dbFile)
	if err != nil {
		log.Fatalf("Failed to connect to database: %v", err)
	}
	defer database.Close()

	if err := database.MigrateUp(*migrationsDir); err != nil {
		log.Fatalf("Failed to run migrations: %v", err)
	}

	params := cfg.ClusterParams()
	clusterer := vertex.NewParallelClusterer(params, cfg.GetWorkers())

	runStore := sqlite.NewRunStore(database.DB)
	vertexStore := sqlite.NewVertexStore(database.DB)

	source := "udp:" + *udpAddr
	if *pcapFile != "" {
		source = "pcap:" + *pcapFile
	}
	paramsJSON, _ := json.Marshal(params)
	run := &sqlite.Run{Source: source, ParamsJSON: paramsJSON}
	if err := runStore.Insert(run); err != nil {
		log.Fatalf("Failed to create run: %v", err)
	}
	log.Printf("Run %s started (source=%s, workers=%d)", run.RunID, source, cfg.GetWorkers())

	stats := vertex.NewPipelineStats()

	pipeline := vertex.NewPipeline(clusterer, stats, func(b *vertex.TrackBatch, vertices []vertex.Vertex, noise int) {
		if err := vertexStore.InsertEvent(run.RunID, vertices); err != nil {
			log.Printf("Failed to persist event %d: %v", b.EventID, err)
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	builder := vertex.NewBatchBuilder(cfg.GetBatchTimeout(), pipeline.Process)
	builder.Start(ctx)

	web := monitor.NewWebServer(monitor.WebServerConfig{
		Address:     *listen,
		Stats:       stats,
		Pipeline:    pipeline,
		RunStore:    runStore,
		VertexStore: vertexStore,
		RunID:       run.RunID,
		UDPPort:     udpPort(*udpAddr),
	})

	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := web.Start(ctx); err != nil {
			log.Printf("web server terminated: %v", err)
		}
	}()

	if *pcapFile != "" {
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer stop()

			replayCfg := network.ReplayConfig{
				SpeedMultiplier: *pcapSpeed,
				UDPPort:         udpPort(*udpAddr),
			}
			delivered, err := network.ReplayPCAPFile(ctx, *pcapFile, replayCfg, stats, builder)
			if err != nil && err != context.Canceled {
				log.Printf("PCAP replay failed: %v", err)
			}
			builder.Flush()
			log.Printf("PCAP replay finished: %d packets delivered", delivered)
		}()
	} else {
		listener := network.NewUDPListener(network.UDPListenerConfig{
			Address:     *udpAddr,
			RcvBuf:      cfg.GetUDPRcvBuf(),
			LogInterval: cfg.GetLogInterval(),
			Stats:       stats,
			Sink:        builder,
		})

		wg.Add(1)
		go func() {
			defer wg.Done()
			if err := listener.Start(ctx); err != nil && err != context.Canceled {
				log.Printf("track listener terminated: %v", err)
			}
		}()
	}

	wg.Wait()

	events, vertices, noise := pipeline.Totals()
	if err := runStore.Finish(run.RunID, events, vertices, noise); err != nil {
		log.Printf("Failed to finish run: %v", err)
	}
	if dropped := builder.Dropped(); dropped > 0 {
		log.Printf("Warning: %d tracks dropped on overflowing events", dropped)
	}
	log.Printf("Run %s finished: %d events, %d vertices, %d noise tracks", run.RunID, events, vertices, noise)
}

// udpPort extracts the numeric port from a listen address like ":9500".
func udpPort(addr string) int {
	_, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return 0
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return 0
	}
	return port
}
