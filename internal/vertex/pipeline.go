package vertex

import (
	"sync"
)

// Pipeline drives the kernel over assembled batches: cluster, summarise,
// hand off for persistence. It serialises batch processing so one
// workspace can be reused, and guards parameter access so tuning updates
// land between batches, never inside a run.
type Pipeline struct {
	mu        sync.Mutex
	clusterer TrackClusterer
	ws        *WorkSpace
	stats     *PipelineStats
	onEvent   func(batch *TrackBatch, vertices []Vertex, noise int)

	eventCount  int64
	vertexTotal int64
	noiseTotal  int64
}

// NewPipeline creates a pipeline. onEvent may be nil; stats may be nil.
func NewPipeline(clusterer TrackClusterer, stats *PipelineStats, onEvent func(*TrackBatch, []Vertex, int)) *Pipeline {
	return &Pipeline{
		clusterer: clusterer,
		ws:        NewWorkSpace(),
		stats:     stats,
		onEvent:   onEvent,
	}
}

// Process clusters one batch and forwards the result. Safe for
// concurrent use.
func (p *Pipeline) Process(b *TrackBatch) {
	p.mu.Lock()
	nv := p.clusterer.Run(b, p.ws)
	vertices := BuildVertices(b, p.ws)
	noise := CountNoise(p.ws)

	p.eventCount++
	p.vertexTotal += int64(nv)
	p.noiseTotal += int64(noise)
	if p.stats != nil {
		p.stats.AddBatch(nv, noise)
	}
	p.mu.Unlock()

	if p.onEvent != nil {
		p.onEvent(b, vertices, noise)
	}
}

// Params returns the current clustering parameters.
func (p *Pipeline) Params() Params {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.clusterer.Params()
}

// SetParams replaces the clustering parameters for subsequent batches.
func (p *Pipeline) SetParams(params Params) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.clusterer.SetParams(params)
}

// Totals returns the running event, vertex and noise-track counts.
func (p *Pipeline) Totals() (events, vertices, noise int64) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.eventCount, p.vertexTotal, p.noiseTotal
}
