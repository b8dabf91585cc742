package vertex

import (
	"context"
	"sync"
	"time"

	"github.com/banshee-data/vertex.report/internal/monitoring"
)

// DefaultBatchTimeout is how long an incomplete event is held open before
// it is flushed anyway. Producers normally close events explicitly with
// the end-of-event flag; the timeout covers lost tail packets.
const DefaultBatchTimeout = 500 * time.Millisecond

// BatchBuilder assembles VTRK packets into per-event track batches. An
// event is emitted when its end-of-event packet arrives, when a packet
// for a different event shows up, or when the event goes stale.
//
// Tracks beyond MaxTracks are dropped and counted rather than panicking:
// the capacity contract belongs to the kernel caller, and the network is
// not a trusted caller.
type BatchBuilder struct {
	mu      sync.Mutex
	timeout time.Duration
	emit    func(*TrackBatch)

	cur     *TrackBatch
	firstAt time.Time
	dropped int64
}

// NewBatchBuilder creates a builder that hands finished batches to emit.
// A zero timeout selects DefaultBatchTimeout.
func NewBatchBuilder(timeout time.Duration, emit func(*TrackBatch)) *BatchBuilder {
	if timeout <= 0 {
		timeout = DefaultBatchTimeout
	}
	return &BatchBuilder{timeout: timeout, emit: emit}
}

// AddPacket folds one decoded packet into the current event.
func (bb *BatchBuilder) AddPacket(pkt *TrackPacket) {
	var done []*TrackBatch

	bb.mu.Lock()
	if bb.cur != nil && bb.cur.EventID != pkt.EventID {
		done = append(done, bb.takeLocked())
	}
	if bb.cur == nil {
		bb.cur = &TrackBatch{EventID: pkt.EventID}
		bb.firstAt = time.Now()
	}

	room := MaxTracks - len(bb.cur.Z)
	take := len(pkt.Z)
	if take > room {
		if room > 0 {
			monitoring.Logf("[BatchBuilder] Event %d overflows the %d-track capacity; dropping excess", pkt.EventID, MaxTracks)
		}
		bb.dropped += int64(take - room)
		take = room
	}
	bb.cur.Z = append(bb.cur.Z, pkt.Z[:take]...)
	bb.cur.EZ2 = append(bb.cur.EZ2, pkt.EZ2[:take]...)

	if pkt.EndOfEvent {
		done = append(done, bb.takeLocked())
	}
	bb.mu.Unlock()

	for _, b := range done {
		bb.emit(b)
	}
}

// Flush emits the current event, if any, regardless of completeness.
func (bb *BatchBuilder) Flush() {
	bb.mu.Lock()
	b := bb.takeLocked()
	bb.mu.Unlock()
	if b != nil {
		bb.emit(b)
	}
}

// Dropped returns the number of tracks discarded because an event
// overflowed the workspace capacity.
func (bb *BatchBuilder) Dropped() int64 {
	bb.mu.Lock()
	defer bb.mu.Unlock()
	return bb.dropped
}

// Start runs the stale-event sweeper until ctx is cancelled.
func (bb *BatchBuilder) Start(ctx context.Context) {
	go func() {
		ticker := time.NewTicker(bb.timeout / 2)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				bb.Flush()
				return
			case now := <-ticker.C:
				bb.flushStale(now)
			}
		}
	}()
}

func (bb *BatchBuilder) flushStale(now time.Time) {
	bb.mu.Lock()
	var b *TrackBatch
	if bb.cur != nil && now.Sub(bb.firstAt) > bb.timeout {
		b = bb.takeLocked()
	}
	bb.mu.Unlock()
	if b != nil {
		bb.emit(b)
	}
}

// takeLocked detaches the current event; callers emit outside the lock.
func (bb *BatchBuilder) takeLocked() *TrackBatch {
	b := bb.cur
	bb.cur = nil
	return b
}
