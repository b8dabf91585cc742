package vertex

import (
	"sync/atomic"
	"testing"
)

func TestPartitionCoversRange(t *testing.T) {
	cases := []struct{ n, workers int }{
		{0, 1}, {1, 1}, {1, 8}, {10, 3}, {100, 7}, {16000, 64}, {5, 5}, {5, 100},
	}
	for _, tc := range cases {
		spans := partition(tc.n, tc.workers)

		next := 0
		for _, sp := range spans {
			if sp.start != next {
				t.Fatalf("n=%d workers=%d: span starts at %d, expected %d", tc.n, tc.workers, sp.start, next)
			}
			if sp.end <= sp.start && tc.n > 0 {
				t.Fatalf("n=%d workers=%d: empty span %+v", tc.n, tc.workers, sp)
			}
			next = sp.end
		}
		if next != tc.n {
			t.Fatalf("n=%d workers=%d: spans cover [0, %d), expected [0, %d)", tc.n, tc.workers, next, tc.n)
		}
		if len(spans) > tc.workers && tc.workers >= 1 {
			t.Fatalf("n=%d workers=%d: %d spans exceed worker count", tc.n, tc.workers, len(spans))
		}
	}
}

func TestRunSpansVisitsEveryIndexOnce(t *testing.T) {
	const n = 1000
	visited := make([]int32, n)
	runSpans(partition(n, 7), func(_, s, e int) {
		for i := s; i < e; i++ {
			atomic.AddInt32(&visited[i], 1)
		}
	})
	for i, v := range visited {
		if v != 1 {
			t.Fatalf("index %d visited %d times", i, v)
		}
	}
}

func TestPrefixSum(t *testing.T) {
	offsets, total := prefixSum([]uint32{3, 0, 2, 5})
	want := []uint32{0, 3, 3, 5}
	for i := range want {
		if offsets[i] != want[i] {
			t.Fatalf("offsets %v, want %v", offsets, want)
		}
	}
	if total != 10 {
		t.Errorf("total %d, want 10", total)
	}

	offsets, total = prefixSum(nil)
	if len(offsets) != 0 || total != 0 {
		t.Errorf("empty input: offsets %v total %d", offsets, total)
	}
}
