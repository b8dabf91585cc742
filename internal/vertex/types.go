package vertex

import "fmt"

// Capacity and identifier constants for the clustering kernel.
const (
	// MaxTracks is the per-batch track capacity of a WorkSpace. Batches
	// larger than this indicate a producer defect and are rejected with a
	// panic rather than an error.
	MaxTracks = 16000

	// MaxVertices bounds the number of distinct vertices one batch may
	// produce. The labeller panics if the bound is reached.
	MaxVertices = 256

	// NoiseID is the out-of-band cluster id reported for tracks that are
	// neither core nor attachable to a core root. It is not an index into
	// the vertex list; consumers must treat it as "no vertex" rather than
	// a very large vertex number.
	NoiseID = 9997

	// noiseLink is the signed sentinel the labeller writes for noise
	// roots. The final -iv-1 normalisation maps it to NoiseID.
	noiseLink = -9998
)

// TrackBatch carries the read-only kernel inputs for one event: track
// longitudinal positions and their variances, as two same-length dense
// arrays. The kernel never mutates a TrackBatch.
type TrackBatch struct {
	EventID uint64
	Z       []float32 // longitudinal position (cm)
	EZ2     []float32 // variance on Z (cm²), >= 0
}

// Len returns the number of tracks in the batch.
func (b *TrackBatch) Len() int { return len(b.Z) }

// WorkSpace holds the mutable per-invocation scratch state of the kernel.
// It is allocated once at full capacity and reused across batches; it has
// no meaning outside a Clusterer.Run call.
//
// iv is reused destructively across phases: forest link, then root index,
// then signed cluster id, then the final non-negative output id. Later
// phases depend on the exact values earlier phases leave behind.
type WorkSpace struct {
	n    int
	izt  []uint8  // quantized z bin per track
	nn   []int32  // neighbour count within eps
	iv   []int32  // link / root / signed id / output id
	prev []int32  // immutable link snapshot used while flattening
	hist zHistogram
	nv   uint32
}

// NewWorkSpace allocates a WorkSpace at full MaxTracks capacity.
func NewWorkSpace() *WorkSpace {
	return &WorkSpace{
		izt:  make([]uint8, MaxTracks),
		nn:   make([]int32, MaxTracks),
		iv:   make([]int32, MaxTracks),
		prev: make([]int32, MaxTracks),
	}
}

// reset prepares the workspace for a batch of n tracks.
func (ws *WorkSpace) reset(n int) {
	if n > MaxTracks {
		panic(fmt.Sprintf("vertex: batch of %d tracks exceeds workspace capacity %d", n, MaxTracks))
	}
	ws.n = n
	ws.nv = 0
	ws.hist.reset()
}

// ClusterIDs returns the per-track vertex ids written by the last Run:
// either a dense id in [0, NVertices) or NoiseID. The slice aliases the
// workspace and is invalidated by the next Run.
func (ws *WorkSpace) ClusterIDs() []int32 { return ws.iv[:ws.n] }

// NVertices returns the vertex count found by the last Run.
func (ws *WorkSpace) NVertices() uint32 { return ws.nv }
