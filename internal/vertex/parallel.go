package vertex

import "sync"

// MaxWorkers caps the cooperative group size. The kernel is built for one
// group over one shared workspace; it does not shard across groups.
const MaxWorkers = 1024

// span is one worker's contiguous slice of the index range.
type span struct{ start, end int }

// partition splits [0, n) into at most workers contiguous, disjoint,
// covering spans. Contiguity matters: the labeller turns per-span root
// counts into id offsets, which only lines up with index order when each
// span is an interval.
func partition(n, workers int) []span {
	if workers < 1 {
		workers = 1
	}
	if workers > MaxWorkers {
		workers = MaxWorkers
	}
	if workers > n {
		workers = n
	}
	if workers <= 1 {
		return []span{{0, n}}
	}
	per := (n + workers - 1) / workers
	spans := make([]span, 0, workers)
	for s := 0; s < n; s += per {
		e := s + per
		if e > n {
			e = n
		}
		spans = append(spans, span{s, e})
	}
	return spans
}

// runSpans executes fn once per span and returns only when every span has
// finished, so each call is a full-group barrier. A single span runs
// inline on the caller's goroutine.
func runSpans(spans []span, fn func(w, start, end int)) {
	if len(spans) == 1 {
		fn(0, spans[0].start, spans[0].end)
		return
	}
	var wg sync.WaitGroup
	for w, sp := range spans {
		wg.Add(1)
		go func(w, s, e int) {
			defer wg.Done()
			fn(w, s, e)
		}(w, sp.start, sp.end)
	}
	wg.Wait()
}

// prefixSum converts per-span counts into exclusive offsets, returning
// the offsets and the total.
func prefixSum(counts []uint32) ([]uint32, uint32) {
	offsets := make([]uint32, len(counts))
	var acc uint32
	for i, c := range counts {
		offsets[i] = acc
		acc += c
	}
	return offsets, acc
}
