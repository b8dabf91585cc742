package vertex

import (
	"fmt"
	"math"
)

// Clusterer runs the density-based vertex clustering kernel. The zero
// worker count means single-threaded; NewParallelClusterer builds a
// cooperative worker group that executes each phase over disjoint
// contiguous index ranges with a full barrier between phases.
//
// For fixed inputs and parameters the output is identical for every
// worker count: per-bin candidate order is canonicalised after the fill,
// and labelling derives each id from the root's position in index order
// rather than from increment arrival order.
type Clusterer struct {
	params  Params
	workers int
}

// NewClusterer creates a single-threaded clusterer.
func NewClusterer(params Params) *Clusterer {
	return &Clusterer{params: params, workers: 1}
}

// NewParallelClusterer creates a clusterer backed by a worker group of the
// given size, clamped to [1, MaxWorkers].
func NewParallelClusterer(params Params, workers int) *Clusterer {
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	return &Clusterer{params: params, workers: workers}
}

// Params returns the current clustering parameters.
func (c *Clusterer) Params() Params { return c.params }

// SetParams replaces the clustering parameters. Not safe to call while a
// Run is in flight.
func (c *Clusterer) SetParams(p Params) { c.params = p }

// Run clusters one batch into vertices, leaving per-track ids and the
// vertex count in ws, and returns the vertex count. It panics on caller
// defects: mismatched input arrays, over-capacity batches, unusable
// parameters, or a vertex count reaching MaxVertices.
func (c *Clusterer) Run(b *TrackBatch, ws *WorkSpace) uint32 {
	n := b.Len()
	if len(b.EZ2) != n {
		panic(fmt.Sprintf("vertex: batch carries %d positions but %d variances", n, len(b.EZ2)))
	}
	p := c.params
	p.validate()
	ws.reset(n)
	if n == 0 {
		return 0
	}

	spans := partition(n, c.workers)
	binSpans := partition(numBins, c.workers)

	// Quantize positions and build the count-sorted bin index.
	runSpans(spans, func(_, s, e int) { binTracks(b, ws, s, e) })
	ws.hist.finalize()
	runSpans(spans, func(_, s, e int) { fillHistogram(ws, s, e) })
	runSpans(binSpans, func(_, s, e int) {
		for bin := s; bin < e; bin++ {
			ws.hist.sortBin(bin)
		}
	})
	ws.hist.verifySize(n)

	// Count neighbours within eps over adjacent bins.
	runSpans(spans, func(_, s, e int) { countNeighbours(b, ws, p, s, e) })

	// Link each core track to a smaller-z core neighbour, forming a forest.
	runSpans(spans, func(_, s, e int) { linkCores(b, ws, p, s, e) })

	// Flatten chains so every track points straight at its root. Chasing
	// happens in an immutable snapshot so workers never observe each
	// other's partially flattened writes.
	runSpans(spans, func(_, s, e int) { copy(ws.prev[s:e], ws.iv[s:e]) })
	runSpans(spans, func(_, s, e int) { flattenChains(ws, s, e) })

	// Attach non-core tracks to the closest core root within gates.
	runSpans(spans, func(_, s, e int) { attachEdges(b, ws, p, s, e) })

	// Label roots with dense ids, in increasing root index order.
	counts := make([]uint32, len(spans))
	runSpans(spans, func(w, s, e int) { counts[w] = markRoots(ws, p, s, e) })
	offsets, nv := prefixSum(counts)
	if nv >= MaxVertices {
		panic(fmt.Sprintf("vertex: %d vertices in one batch reaches the %d bound", nv, MaxVertices))
	}
	runSpans(spans, func(w, s, e int) { assignIDs(ws, offsets[w], s, e) })

	// Broadcast root ids to members and normalise to non-negative output.
	runSpans(spans, func(_, s, e int) { broadcastIDs(ws, s, e) })
	runSpans(spans, func(_, s, e int) { normalizeIDs(ws, s, e) })

	ws.nv = nv
	return nv
}

// binTracks quantizes z into a bin index and seeds per-track state. The
// clamp silently saturates out-of-range positions into the extreme bins,
// which can merge unrelated tracks at the domain boundary; accepted
// behaviour, not corrected here.
func binTracks(b *TrackBatch, ws *WorkSpace, start, end int) {
	for i := start; i < end; i++ {
		iz := int(b.Z[i] * binScale) // truncation toward zero
		if iz < math.MinInt8 {
			iz = math.MinInt8
		}
		if iz > math.MaxInt8 {
			iz = math.MaxInt8
		}
		ws.izt[i] = uint8(iz - math.MinInt8)
		ws.hist.count(ws.izt[i])
		ws.iv[i] = int32(i)
		ws.nn[i] = 0
	}
}

// fillHistogram places every track index into its bin.
func fillHistogram(ws *WorkSpace, start, end int) {
	for i := start; i < end; i++ {
		ws.hist.fill(ws.izt[i], uint16(i))
	}
}

// countNeighbours counts, for each track, the other tracks within eps.
// Only tracks measured better than errmax take part as counting subjects;
// everything else keeps a zero count and can never become core.
func countNeighbours(b *TrackBatch, ws *WorkSpace, p Params, start, end int) {
	er2mx := p.ErrMax * p.ErrMax
	for i := start; i < end; i++ {
		if b.EZ2[i] > er2mx {
			continue
		}
		zi := b.Z[i]
		ii := uint16(i)
		var nn int32
		ws.hist.forEachInBins(ws.izt[i], 1, func(j uint16) {
			if j == ii {
				return
			}
			dist := absf32(zi - b.Z[j])
			if dist > p.Eps {
				return
			}
			// The chi2-normalised gate stays disabled in counting; turning
			// it on changes which tracks reach core status.
			// if dist*dist > p.Chi2Max*(b.EZ2[i]+b.EZ2[j]) { return }
			nn++
		})
		ws.nn[i] = nn
	}
}

// linkCores links every core track to the lowest (z, index) core
// neighbour within eps, never itself. Chains converge on the local
// minimum, which stays self-linked and becomes the forest root. The index
// tie-break keeps coincident tracks on one chain instead of leaving each
// of them a root of its own.
func linkCores(b *TrackBatch, ws *WorkSpace, p Params, start, end int) {
	minT := int32(p.MinCore)
	for i := start; i < end; i++ {
		if ws.nn[i] < minT {
			continue
		}
		zi := b.Z[i]
		mz := zi
		mi := int32(i)
		ws.hist.forEachInBins(ws.izt[i], 1, func(j uint16) {
			zj := b.Z[j]
			if zj > mz || (zj == mz && int32(j) >= mi) {
				return
			}
			if ws.nn[j] < minT {
				return
			}
			dist := absf32(zi - zj)
			if dist > p.Eps {
				return
			}
			// if dist*dist > p.Chi2Max*(b.EZ2[i]+b.EZ2[j]) { return }
			mz = zj
			mi = int32(j)
		})
		ws.iv[i] = mi
	}
}

// flattenChains follows links in the snapshot until the fixed point and
// writes the root index back. The forest is acyclic by construction of
// linkCores, so the chase terminates.
func flattenChains(ws *WorkSpace, start, end int) {
	for i := start; i < end; i++ {
		m := ws.prev[i]
		for m != ws.prev[m] {
			m = ws.prev[m]
		}
		ws.iv[i] = m
	}
}

// attachEdges points each non-core track at the root of its closest core
// neighbour, subject to a shrinking distance bound and the chi2 gate.
// Core entries are read-only here, so iv[j] is always an already
// flattened root. Tracks with no acceptable core neighbour stay
// self-linked and fall through to the labeller as noise candidates.
func attachEdges(b *TrackBatch, ws *WorkSpace, p Params, start, end int) {
	minT := int32(p.MinCore)
	for i := start; i < end; i++ {
		if ws.nn[i] >= minT {
			continue
		}
		zi := b.Z[i]
		mdist := p.Eps
		ws.hist.forEachInBins(ws.izt[i], 1, func(j uint16) {
			if ws.nn[j] < minT {
				return
			}
			dist := absf32(zi - b.Z[j])
			if dist > mdist {
				return
			}
			if dist*dist > p.Chi2Max*(b.EZ2[i]+b.EZ2[j]) {
				return
			}
			mdist = dist
			ws.iv[i] = ws.iv[j]
		})
	}
}

// markRoots tags non-core roots with the noise sentinel and returns the
// number of core roots in [start, end).
func markRoots(ws *WorkSpace, p Params, start, end int) uint32 {
	var roots uint32
	for i := start; i < end; i++ {
		if ws.iv[i] != int32(i) {
			continue
		}
		if ws.nn[i] >= int32(p.MinCore) {
			roots++
		} else {
			ws.iv[i] = noiseLink
		}
	}
	return roots
}

// assignIDs writes dense negative ids to the core roots of [start, end).
// base is the number of core roots before start, so ids always come out
// in increasing root index order regardless of scheduling.
func assignIDs(ws *WorkSpace, base uint32, start, end int) {
	seq := base
	for i := start; i < end; i++ {
		if ws.iv[i] != int32(i) {
			continue
		}
		ws.iv[i] = -int32(seq + 1)
		seq++
	}
}

// broadcastIDs copies each root's negative id to the tracks referencing
// it. One indirection suffices: every non-negative link already names a
// root, by flattening for core members and by construction for attached
// edges.
func broadcastIDs(ws *WorkSpace, start, end int) {
	for i := start; i < end; i++ {
		if ws.iv[i] >= 0 {
			ws.iv[i] = ws.iv[ws.iv[i]]
		}
	}
}

// normalizeIDs rewrites signed ids into the output form: vertex ids map
// to [0, nv) and the noise sentinel maps to NoiseID.
func normalizeIDs(ws *WorkSpace, start, end int) {
	for i := start; i < end; i++ {
		ws.iv[i] = -ws.iv[i] - 1
	}
}

func absf32(v float32) float32 {
	if v < 0 {
		return -v
	}
	return v
}
