package vertex

import (
	"math"
	"testing"
)

func TestBuildVertices(t *testing.T) {
	// Two tight groups and one stray track.
	z := []float32{0.0, 0.01, 0.02, 3.0, 3.01, 2.99, 9.0}
	ez2 := sameEZ2(len(z), 1e-4)
	b := &TrackBatch{EventID: 42, Z: z, EZ2: ez2}

	ws := NewWorkSpace()
	nv := NewClusterer(DefaultParams()).Run(b, ws)
	if nv != 2 {
		t.Fatalf("expected 2 vertices, got %d", nv)
	}

	vertices := BuildVertices(b, ws)
	if len(vertices) != 2 {
		t.Fatalf("expected 2 summaries, got %d", len(vertices))
	}

	total := 0
	for i, v := range vertices {
		if v.EventID != 42 {
			t.Errorf("vertex %d: event id %d, want 42", i, v.EventID)
		}
		if v.VertexID != int32(i) {
			t.Errorf("vertex %d: id %d out of order", i, v.VertexID)
		}
		if v.Multiplicity != 3 {
			t.Errorf("vertex %d: multiplicity %d, want 3", i, v.Multiplicity)
		}
		if v.ZSpread <= 0 {
			t.Errorf("vertex %d: expected positive spread, got %v", i, v.ZSpread)
		}
		total += v.Multiplicity
	}
	if total+CountNoise(ws) != len(z) {
		t.Errorf("members (%d) + noise (%d) != tracks (%d)", total, CountNoise(ws), len(z))
	}

	// With equal weights the weighted and unweighted means coincide.
	for i, v := range vertices {
		if math.Abs(v.Z-v.ZMean) > 1e-9 {
			t.Errorf("vertex %d: weighted mean %v differs from mean %v under equal weights", i, v.Z, v.ZMean)
		}
	}

	near := func(got, want, tol float64) bool { return math.Abs(got-want) <= tol }
	if !near(vertices[0].ZMean, 0.01, 1e-6) {
		t.Errorf("vertex 0: mean %v, want ~0.01", vertices[0].ZMean)
	}
	if !near(vertices[1].ZMean, 3.0, 1e-6) {
		t.Errorf("vertex 1: mean %v, want ~3.0", vertices[1].ZMean)
	}
}

func TestBuildVerticesWeighting(t *testing.T) {
	// A precisely measured track at 0 and a poor one at 0.06: the weighted
	// mean leans hard toward the precise track.
	z := []float32{0.0, 0.06}
	ez2 := []float32{1e-6, 1e-2}
	b := &TrackBatch{EventID: 1, Z: z, EZ2: ez2}

	p := DefaultParams()
	p.MinCore = 0
	ws := NewWorkSpace()
	nv := NewClusterer(p).Run(b, ws)
	if nv != 1 {
		t.Fatalf("expected 1 vertex, got %d", nv)
	}

	vertices := BuildVertices(b, ws)
	if len(vertices) != 1 {
		t.Fatalf("expected 1 summary, got %d", len(vertices))
	}
	v := vertices[0]
	if v.Z > 0.001 {
		t.Errorf("weighted mean %v should sit near the precise track", v.Z)
	}
	if math.Abs(v.ZMean-0.03) > 1e-6 {
		t.Errorf("unweighted mean %v, want 0.03", v.ZMean)
	}
}

func TestBuildVerticesEmpty(t *testing.T) {
	b := &TrackBatch{EventID: 1}
	ws := NewWorkSpace()
	NewClusterer(DefaultParams()).Run(b, ws)
	if got := BuildVertices(b, ws); got != nil {
		t.Errorf("expected nil for empty batch, got %v", got)
	}
	if CountNoise(ws) != 0 {
		t.Errorf("expected 0 noise for empty batch")
	}
}
