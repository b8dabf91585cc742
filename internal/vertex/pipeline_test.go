package vertex

import (
	"testing"
)

func TestPipelineProcess(t *testing.T) {
	stats := NewPipelineStats()

	var gotBatches int
	var gotVertices []Vertex
	pl := NewPipeline(NewClusterer(DefaultParams()), stats, func(b *TrackBatch, vertices []Vertex, noise int) {
		gotBatches++
		gotVertices = vertices
		if noise != 1 {
			t.Errorf("expected 1 noise track, got %d", noise)
		}
	})

	pl.Process(&TrackBatch{
		EventID: 1,
		Z:       []float32{0.0, 0.01, 0.02, 5.0},
		EZ2:     sameEZ2(4, 1e-6),
	})

	if gotBatches != 1 {
		t.Fatalf("onEvent called %d times, want 1", gotBatches)
	}
	if len(gotVertices) != 1 || gotVertices[0].Multiplicity != 3 {
		t.Fatalf("unexpected vertices: %+v", gotVertices)
	}

	events, vertices, noise := pl.Totals()
	if events != 1 || vertices != 1 || noise != 1 {
		t.Errorf("totals events=%d vertices=%d noise=%d, want 1/1/1", events, vertices, noise)
	}

	snap := stats.Snapshot()
	if snap.Batches != 1 || snap.Vertices != 1 || snap.Noise != 1 {
		t.Errorf("stats %+v, want 1 batch, 1 vertex, 1 noise", snap)
	}
}

func TestPipelineParamsRoundTrip(t *testing.T) {
	pl := NewPipeline(NewClusterer(DefaultParams()), nil, nil)

	p := pl.Params()
	p.Eps = 0.05
	pl.SetParams(p)

	if got := pl.Params().Eps; got != 0.05 {
		t.Errorf("eps %v after SetParams, want 0.05", got)
	}
}

func TestPipelineNilHooks(t *testing.T) {
	pl := NewPipeline(NewClusterer(DefaultParams()), nil, nil)
	pl.Process(&TrackBatch{EventID: 1, Z: []float32{1.0}, EZ2: []float32{1e-6}})

	events, vertices, noise := pl.Totals()
	if events != 1 || vertices != 0 || noise != 1 {
		t.Errorf("totals events=%d vertices=%d noise=%d, want 1/0/1", events, vertices, noise)
	}
}
