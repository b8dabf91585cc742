package monitor

import (
	"bytes"
	"fmt"
	"net/http"
	"strconv"

	"github.com/go-echarts/go-echarts/v2/charts"
	"github.com/go-echarts/go-echarts/v2/opts"
)

// handleZScatter renders a quick scatter plot (HTML) of persisted
// vertices using go-echarts: z position against event id, coloured by
// multiplicity. This is a debugging-only endpoint (no auth) to eyeball a
// run without external tooling.
// Query params:
//   - run_id (optional; defaults to the active run)
//   - max_points (optional; default 5000) to reduce payload size
func (ws *WebServer) handleZScatter(w http.ResponseWriter, r *http.Request) {
	if ws.vertices == nil {
		ws.writeJSONError(w, http.StatusInternalServerError, "no database configured")
		return
	}

	runID := r.URL.Query().Get("run_id")
	if runID == "" {
		runID = ws.runID
	}
	if runID == "" {
		ws.writeJSONError(w, http.StatusBadRequest, "missing 'run_id' parameter and no active run")
		return
	}

	maxPoints := 5000
	if mp := r.URL.Query().Get("max_points"); mp != "" {
		if v, err := strconv.Atoi(mp); err == nil && v > 100 && v <= 50000 {
			maxPoints = v
		}
	}

	records, err := ws.vertices.ListByRun(runID, maxPoints)
	if err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("list vertices: %v", err))
		return
	}
	if len(records) == 0 {
		ws.writeJSONError(w, http.StatusNotFound, "no vertices for run")
		return
	}

	data := make([]opts.ScatterData, 0, len(records))
	maxMult := float64(0)
	for _, rec := range records {
		if m := float64(rec.Multiplicity); m > maxMult {
			maxMult = m
		}
		data = append(data, opts.ScatterData{Value: []interface{}{rec.EventID, rec.Z, rec.Multiplicity}})
	}
	if maxMult == 0 {
		maxMult = 1
	}

	scatter := charts.NewScatter()
	scatter.SetGlobalOptions(
		charts.WithInitializationOpts(opts.Initialization{PageTitle: "Vertex z positions", Theme: "dark", Width: "1100px", Height: "700px"}),
		charts.WithTitleOpts(opts.Title{Title: "Vertex z by event", Subtitle: fmt.Sprintf("run=%s points=%d", runID, len(data))}),
		charts.WithTooltipOpts(opts.Tooltip{Show: opts.Bool(true)}),
		charts.WithXAxisOpts(opts.XAxis{Name: "event", NameLocation: "middle", NameGap: 25}),
		charts.WithYAxisOpts(opts.YAxis{Name: "z (cm)", NameLocation: "middle", NameGap: 35}),
		charts.WithVisualMapOpts(opts.VisualMap{
			Show:       opts.Bool(true),
			Calculable: opts.Bool(true),
			Min:        0,
			Max:        float32(maxMult),
			Dimension:  "2",
			InRange:    &opts.VisualMapInRange{Color: []string{"#440154", "#482777", "#3e4989", "#31688e", "#26828e", "#1f9e89", "#35b779", "#6ece58", "#b5de2b", "#fde725"}},
		}),
	)

	scatter.AddSeries("vertices", data, charts.WithScatterChartOpts(opts.ScatterChart{SymbolSize: 5}))

	var buf bytes.Buffer
	if err := scatter.Render(&buf); err != nil {
		ws.writeJSONError(w, http.StatusInternalServerError, fmt.Sprintf("failed to render chart: %v", err))
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}
