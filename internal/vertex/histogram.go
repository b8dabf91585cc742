package vertex

import (
	"fmt"
	"sort"
	"sync/atomic"
)

// numBins is the number of quantized z bins. Positions are scaled by
// binScale and clamped to the int8 range, so one bin covers 1/binScale in
// z units and the whole histogram spans [-12.8, 12.7) cm.
const (
	numBins  = 256
	binScale = 10.0
)

// zHistogram is a count-sorted index over quantized z bins: a histogram
// with prefix-sum offsets plus a binned copy of track indices. It answers
// "all tracks in bin b and its immediate neighbours" in O(members).
//
// count and fill use atomic updates so a worker group can populate the
// histogram concurrently; finalize and sortBin run between barriers.
type zHistogram struct {
	counts [numBins]uint32
	cursor [numBins]uint32
	off    [numBins + 1]uint16
	index  [MaxTracks]uint16
}

func (h *zHistogram) reset() {
	for b := range h.counts {
		h.counts[b] = 0
		h.cursor[b] = 0
	}
	for b := range h.off {
		h.off[b] = 0
	}
}

// count registers one track in bin b. Safe for concurrent use.
func (h *zHistogram) count(b uint8) {
	atomic.AddUint32(&h.counts[b], 1)
}

// finalize turns bin counts into prefix-sum offsets and primes the fill
// cursors. Must run single-writer, after all count calls and before any
// fill call.
func (h *zHistogram) finalize() {
	var acc uint32
	for b := 0; b < numBins; b++ {
		h.off[b] = uint16(acc)
		h.cursor[b] = acc
		acc += h.counts[b]
	}
	h.off[numBins] = uint16(acc)
}

// size returns the number of filled entries.
func (h *zHistogram) size() int { return int(h.off[numBins]) }

// fill places track index i into its bin. Safe for concurrent use; the
// in-bin order is scheduling-dependent until sortBin runs.
func (h *zHistogram) fill(b uint8, i uint16) {
	slot := atomic.AddUint32(&h.cursor[b], 1) - 1
	h.index[slot] = i
}

// sortBin orders the members of bin b by track index. Concurrent fills
// land in scheduling-dependent slots; sorting restores a canonical order
// so neighbour scans visit candidates identically on every run.
func (h *zHistogram) sortBin(b int) {
	s := h.index[h.off[b]:h.off[b+1]]
	sort.Slice(s, func(i, j int) bool { return s[i] < s[j] })
}

// forEachInBins calls fn for every track in bins [b-radius, b+radius],
// clamped to the histogram range.
func (h *zHistogram) forEachInBins(b uint8, radius int, fn func(j uint16)) {
	lo := int(b) - radius
	if lo < 0 {
		lo = 0
	}
	hi := int(b) + radius
	if hi > numBins-1 {
		hi = numBins - 1
	}
	for bin := lo; bin <= hi; bin++ {
		for _, j := range h.index[h.off[bin]:h.off[bin+1]] {
			fn(j)
		}
	}
}

// verifySize panics unless exactly n entries were filled. A mismatch means
// a binning defect, not a data condition.
func (h *zHistogram) verifySize(n int) {
	if h.size() != n {
		panic(fmt.Sprintf("vertex: histogram holds %d entries for %d tracks", h.size(), n))
	}
}
