package vertex

import (
	"math/rand"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func runBatch(t *testing.T, c *Clusterer, z, ez2 []float32) (*WorkSpace, uint32) {
	t.Helper()
	ws := NewWorkSpace()
	nv := c.Run(&TrackBatch{EventID: 1, Z: z, EZ2: ez2}, ws)
	return ws, nv
}

func sameEZ2(n int, v float32) []float32 {
	ez2 := make([]float32, n)
	for i := range ez2 {
		ez2[i] = v
	}
	return ez2
}

func TestClustererDefaults(t *testing.T) {
	c := NewClusterer(DefaultParams())
	p := c.Params()
	if p.Eps != DefaultEps {
		t.Errorf("expected Eps=%v, got %v", float32(DefaultEps), p.Eps)
	}
	if p.MinCore != DefaultMinCore {
		t.Errorf("expected MinCore=%d, got %d", DefaultMinCore, p.MinCore)
	}

	p.Eps = 0.05
	p.MinCore = 3
	c.SetParams(p)
	got := c.Params()
	if got.Eps != 0.05 || got.MinCore != 3 {
		t.Errorf("SetParams not applied: %+v", got)
	}
}

func TestClusterWithOutlier(t *testing.T) {
	// Three tracks within eps of each other and one far away: one vertex,
	// the outlier reported as noise.
	z := []float32{0.0, 0.01, 0.02, 5.0}
	c := NewClusterer(DefaultParams())
	ws, nv := runBatch(t, c, z, sameEZ2(len(z), 1e-6))

	if nv != 1 {
		t.Fatalf("expected 1 vertex, got %d", nv)
	}
	ids := ws.ClusterIDs()
	for i := 0; i < 3; i++ {
		if ids[i] != 0 {
			t.Errorf("track %d: expected vertex 0, got %d", i, ids[i])
		}
	}
	if ids[3] != NoiseID {
		t.Errorf("outlier: expected noise id %d, got %d", NoiseID, ids[3])
	}
}

func TestIdenticalPositionsFormOneVertex(t *testing.T) {
	// Coincident tracks must converge on a single root, not each claim to
	// be their own local minimum.
	const n = 5
	z := make([]float32, n)
	for i := range z {
		z[i] = 1.0
	}

	for _, minCore := range []int{2, n - 1} {
		p := DefaultParams()
		p.MinCore = minCore
		ws, nv := runBatch(t, NewClusterer(p), z, sameEZ2(n, 1e-6))
		if nv != 1 {
			t.Fatalf("minCore=%d: expected 1 vertex, got %d", minCore, nv)
		}
		for i, id := range ws.ClusterIDs() {
			if id != 0 {
				t.Errorf("minCore=%d track %d: expected vertex 0, got %d", minCore, i, id)
			}
		}
	}
}

func TestTwoSeparatedVertices(t *testing.T) {
	z := []float32{-3.0, -3.01, -2.99, 3.0, 3.01, 2.99}
	ws, nv := runBatch(t, NewClusterer(DefaultParams()), z, sameEZ2(len(z), 1e-6))

	if nv != 2 {
		t.Fatalf("expected 2 vertices, got %d", nv)
	}
	ids := ws.ClusterIDs()
	if ids[0] != ids[1] || ids[1] != ids[2] {
		t.Errorf("first group split: %v", ids[:3])
	}
	if ids[3] != ids[4] || ids[4] != ids[5] {
		t.Errorf("second group split: %v", ids[3:])
	}
	if ids[0] == ids[3] {
		t.Errorf("groups merged: %v", ids)
	}
}

func TestEmptyBatch(t *testing.T) {
	ws, nv := runBatch(t, NewClusterer(DefaultParams()), nil, nil)
	if nv != 0 {
		t.Errorf("expected 0 vertices, got %d", nv)
	}
	if len(ws.ClusterIDs()) != 0 {
		t.Errorf("expected no ids, got %v", ws.ClusterIDs())
	}
}

func TestSingleTrack(t *testing.T) {
	// With the default minimum a lone track has no neighbours and is noise.
	ws, nv := runBatch(t, NewClusterer(DefaultParams()), []float32{1.0}, []float32{1e-6})
	if nv != 0 || ws.ClusterIDs()[0] != NoiseID {
		t.Errorf("expected noise, got nv=%d ids=%v", nv, ws.ClusterIDs())
	}

	// minCore=0 makes every well-measured track core on its own.
	p := DefaultParams()
	p.MinCore = 0
	ws, nv = runBatch(t, NewClusterer(p), []float32{1.0}, []float32{1e-6})
	if nv != 1 || ws.ClusterIDs()[0] != 0 {
		t.Errorf("expected singleton vertex, got nv=%d ids=%v", nv, ws.ClusterIDs())
	}
}

func TestEpsBoundaryInclusive(t *testing.T) {
	p := DefaultParams()
	p.MinCore = 1

	// Distance exactly eps still counts as a neighbour.
	z := []float32{0.0, p.Eps}
	ws, nv := runBatch(t, NewClusterer(p), z, sameEZ2(2, 1e-6))
	if nv != 1 {
		t.Fatalf("tracks at exactly eps: expected 1 vertex, got %d", nv)
	}
	if ids := ws.ClusterIDs(); ids[0] != 0 || ids[1] != 0 {
		t.Errorf("expected both in vertex 0, got %v", ids)
	}

	// Just beyond eps they are strangers.
	z = []float32{0.0, 0.08}
	ws, nv = runBatch(t, NewClusterer(p), z, sameEZ2(2, 1e-6))
	if nv != 0 {
		t.Fatalf("tracks beyond eps: expected 0 vertices, got %d", nv)
	}
	if ids := ws.ClusterIDs(); ids[0] != NoiseID || ids[1] != NoiseID {
		t.Errorf("expected noise, got %v", ids)
	}
}

func TestPoorlyMeasuredTrackCannotBeCore(t *testing.T) {
	// Track 0 is measured far worse than errmax: it never counts
	// neighbours, but the chi2 gate lets it attach to the cluster its
	// neighbours form.
	z := []float32{0.0, 0.01, 0.02}
	ez2 := []float32{1.0, 1e-6, 1e-6}
	ws, nv := runBatch(t, NewClusterer(DefaultParams()), z, ez2)

	if nv != 1 {
		t.Fatalf("expected 1 vertex, got %d", nv)
	}
	for i, id := range ws.ClusterIDs() {
		if id != 0 {
			t.Errorf("track %d: expected vertex 0, got %d", i, id)
		}
	}
}

func TestChi2GateOnEdgeAttachment(t *testing.T) {
	// Base cluster at 0.0/0.01/0.02. The probe track's variance is just
	// above the errmax gate so it can never be core; whether it attaches
	// depends on the chi2-normalised distance to the cluster.
	base := []float32{0.0, 0.01, 0.02}
	baseEZ2 := []float32{1e-6, 1e-6, 1e-6}

	tests := []struct {
		name   string
		probeZ float32
		wantID int32
		wantNV uint32
	}{
		{"close probe attaches", 0.03, 0, 1},
		{"distant probe fails the gate", 0.06, NoiseID, 1},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			z := append(append([]float32{}, base...), tt.probeZ)
			ez2 := append(append([]float32{}, baseEZ2...), 1.1e-4)
			ws, nv := runBatch(t, NewClusterer(DefaultParams()), z, ez2)
			if nv != tt.wantNV {
				t.Fatalf("expected %d vertices, got %d", tt.wantNV, nv)
			}
			if got := ws.ClusterIDs()[3]; got != tt.wantID {
				t.Errorf("probe at %v: expected id %d, got %d", tt.probeZ, tt.wantID, got)
			}
		})
	}
}

func TestExtremePositionsClampWithoutPanic(t *testing.T) {
	z := []float32{-100.0, -12.9, 0.0, 13.5, 100.0}
	ws, nv := runBatch(t, NewClusterer(DefaultParams()), z, sameEZ2(len(z), 1e-6))
	if nv != 0 {
		t.Errorf("expected 0 vertices from scattered extremes, got %d", nv)
	}
	for i, id := range ws.ClusterIDs() {
		if id != NoiseID {
			t.Errorf("track %d: expected noise, got %d", i, id)
		}
	}
}

func TestDeterministicAcrossWorkerCounts(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	batch := GenerateBatch(rng, 1, DefaultSyntheticConfig())

	reference := NewClusterer(DefaultParams())
	wsRef := NewWorkSpace()
	nvRef := reference.Run(batch, wsRef)
	want := append([]int32(nil), wsRef.ClusterIDs()...)

	for _, workers := range []int{2, 3, 7, 16, 64} {
		c := NewParallelClusterer(DefaultParams(), workers)
		ws := NewWorkSpace()
		// Several repetitions so a scheduling-dependent defect has a
		// chance to show up.
		for rep := 0; rep < 5; rep++ {
			nv := c.Run(batch, ws)
			if nv != nvRef {
				t.Fatalf("workers=%d rep=%d: %d vertices, want %d", workers, rep, nv, nvRef)
			}
			got := append([]int32(nil), ws.ClusterIDs()...)
			if diff := cmp.Diff(want, got); diff != "" {
				t.Fatalf("workers=%d rep=%d: ids differ (-want +got):\n%s", workers, rep, diff)
			}
		}
	}
}

func TestClusterIDsAreDenseOrNoise(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	c := NewParallelClusterer(DefaultParams(), 4)
	ws := NewWorkSpace()

	for ev := uint64(1); ev <= 10; ev++ {
		batch := GenerateBatch(rng, ev, DefaultSyntheticConfig())
		nv := c.Run(batch, ws)

		seen := make([]bool, nv)
		for i, id := range ws.ClusterIDs() {
			if id == NoiseID {
				continue
			}
			if id < 0 || id >= int32(nv) {
				t.Fatalf("event %d track %d: id %d outside [0, %d)", ev, i, id, nv)
			}
			seen[id] = true
		}
		for id, ok := range seen {
			if !ok {
				t.Errorf("event %d: vertex id %d has no members", ev, id)
			}
		}
	}
}

func TestCoreTracksWithinEpsShareVertex(t *testing.T) {
	// Brute-force cross-check of the clustering rule: any two core tracks
	// within eps of each other must land in the same vertex. Core status
	// is recomputed here without the histogram shortcut.
	rng := rand.New(rand.NewSource(99))
	p := DefaultParams()
	c := NewParallelClusterer(p, 4)
	ws := NewWorkSpace()

	for ev := uint64(1); ev <= 5; ev++ {
		b := GenerateBatch(rng, ev, DefaultSyntheticConfig())
		c.Run(b, ws)
		ids := ws.ClusterIDs()

		n := len(b.Z)
		er2mx := p.ErrMax * p.ErrMax
		core := make([]bool, n)
		for i := 0; i < n; i++ {
			if b.EZ2[i] > er2mx {
				continue
			}
			count := 0
			for j := 0; j < n; j++ {
				if j != i && absf32(b.Z[i]-b.Z[j]) <= p.Eps {
					count++
				}
			}
			core[i] = count >= p.MinCore
		}

		for i := 0; i < n; i++ {
			if !core[i] {
				continue
			}
			for j := i + 1; j < n; j++ {
				if !core[j] || absf32(b.Z[i]-b.Z[j]) > p.Eps {
					continue
				}
				if ids[i] != ids[j] {
					t.Fatalf("event %d: core tracks %d (z=%v, id=%d) and %d (z=%v, id=%d) split",
						ev, i, b.Z[i], ids[i], j, b.Z[j], ids[j])
				}
			}
		}
	}
}

func TestWorkspaceReuseAcrossBatches(t *testing.T) {
	c := NewClusterer(DefaultParams())
	ws := NewWorkSpace()

	big := GenerateBatch(rand.New(rand.NewSource(3)), 1, DefaultSyntheticConfig())
	c.Run(big, ws)

	small := &TrackBatch{EventID: 2, Z: []float32{0.0, 0.01, 0.02}, EZ2: sameEZ2(3, 1e-6)}
	nv := c.Run(small, ws)
	if nv != 1 {
		t.Fatalf("expected 1 vertex after reuse, got %d", nv)
	}
	if got := len(ws.ClusterIDs()); got != 3 {
		t.Errorf("expected 3 ids after reuse, got %d", got)
	}
}

func TestRunPanicsOnOversizeBatch(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on oversize batch")
		}
	}()
	n := MaxTracks + 1
	NewClusterer(DefaultParams()).Run(&TrackBatch{Z: make([]float32, n), EZ2: make([]float32, n)}, NewWorkSpace())
}

func TestRunPanicsOnMismatchedArrays(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on mismatched arrays")
		}
	}()
	NewClusterer(DefaultParams()).Run(&TrackBatch{Z: make([]float32, 3), EZ2: make([]float32, 2)}, NewWorkSpace())
}

func TestRunPanicsOnOversizeEps(t *testing.T) {
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on eps beyond the bin width")
		}
	}()
	p := DefaultParams()
	p.Eps = 0.2
	NewClusterer(p).Run(&TrackBatch{Z: []float32{0}, EZ2: []float32{0}}, NewWorkSpace())
}

func TestRunPanicsOnVertexOverflow(t *testing.T) {
	// 256 isolated singleton vertices reach the MaxVertices bound.
	p := DefaultParams()
	p.MinCore = 0
	z := make([]float32, MaxVertices)
	for i := range z {
		z[i] = -12.8 + 0.1*float32(i)
	}
	defer func() {
		if recover() == nil {
			t.Fatal("expected panic on vertex overflow")
		}
	}()
	NewClusterer(p).Run(&TrackBatch{Z: z, EZ2: sameEZ2(len(z), 1e-6)}, NewWorkSpace())
}

func TestNewParallelClustererClampsWorkers(t *testing.T) {
	if got := NewParallelClusterer(DefaultParams(), 0).workers; got != 1 {
		t.Errorf("workers=0: expected clamp to 1, got %d", got)
	}
	if got := NewParallelClusterer(DefaultParams(), MaxWorkers+5).workers; got != MaxWorkers {
		t.Errorf("workers over bound: expected clamp to %d, got %d", MaxWorkers, got)
	}
}
