package vertex

import (
	"fmt"
	"log"
	"sync"
	"time"
)

// PipelineStats tracks ingest and clustering statistics with thread-safe
// operations.
type PipelineStats struct {
	mu           sync.Mutex
	packetCount  int64
	byteCount    int64
	droppedCount int64
	trackCount   int64
	batchCount   int64
	vertexCount  int64
	noiseCount   int64
	lastReset    time.Time
}

// NewPipelineStats creates a new PipelineStats instance.
func NewPipelineStats() *PipelineStats {
	return &PipelineStats{lastReset: time.Now()}
}

// AddPacket records one received packet.
func (ps *PipelineStats) AddPacket(bytes int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.packetCount++
	ps.byteCount += int64(bytes)
}

// AddDropped records one unparseable or discarded packet.
func (ps *PipelineStats) AddDropped() {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.droppedCount++
}

// AddTracks records parsed track count.
func (ps *PipelineStats) AddTracks(count int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.trackCount += int64(count)
}

// AddBatch records one clustered batch and its outcome.
func (ps *PipelineStats) AddBatch(vertices uint32, noise int) {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	ps.batchCount++
	ps.vertexCount += int64(vertices)
	ps.noiseCount += int64(noise)
}

// StatsSnapshot is a point-in-time copy of the pipeline counters.
type StatsSnapshot struct {
	Packets  int64     `json:"packets"`
	Bytes    int64     `json:"bytes"`
	Dropped  int64     `json:"dropped"`
	Tracks   int64     `json:"tracks"`
	Batches  int64     `json:"batches"`
	Vertices int64     `json:"vertices"`
	Noise    int64     `json:"noise_tracks"`
	Since    time.Time `json:"since"`
}

// Snapshot returns the current counters without resetting them.
func (ps *PipelineStats) Snapshot() StatsSnapshot {
	ps.mu.Lock()
	defer ps.mu.Unlock()
	return StatsSnapshot{
		Packets:  ps.packetCount,
		Bytes:    ps.byteCount,
		Dropped:  ps.droppedCount,
		Tracks:   ps.trackCount,
		Batches:  ps.batchCount,
		Vertices: ps.vertexCount,
		Noise:    ps.noiseCount,
		Since:    ps.lastReset,
	}
}

// GetAndReset returns current counters and resets them.
func (ps *PipelineStats) GetAndReset() (packets, bytes, dropped, tracks, batches, vertices, noise int64, duration time.Duration) {
	ps.mu.Lock()
	defer ps.mu.Unlock()

	now := time.Now()
	duration = now.Sub(ps.lastReset)
	packets, bytes, dropped = ps.packetCount, ps.byteCount, ps.droppedCount
	tracks, batches = ps.trackCount, ps.batchCount
	vertices, noise = ps.vertexCount, ps.noiseCount

	ps.packetCount, ps.byteCount, ps.droppedCount = 0, 0, 0
	ps.trackCount, ps.batchCount = 0, 0
	ps.vertexCount, ps.noiseCount = 0, 0
	ps.lastReset = now
	return
}

// LogStats logs formatted statistics since the previous call.
func (ps *PipelineStats) LogStats() {
	packets, bytes, dropped, tracks, batches, vertices, noise, duration := ps.GetAndReset()
	if packets == 0 && dropped == 0 {
		return
	}
	packetsPerSec := float64(packets) / duration.Seconds()
	kbPerSec := float64(bytes) / duration.Seconds() / 1024
	msg := fmt.Sprintf("Vertex stats (/sec): %.1f packets, %.1f KB; %d tracks in %d events -> %d vertices, %d noise tracks",
		packetsPerSec, kbPerSec, tracks, batches, vertices, noise)
	if dropped > 0 {
		msg += fmt.Sprintf(" (%d packets dropped)", dropped)
	}
	log.Print(msg)
}
