package vertex

// TrackClusterer clusters one batch of tracks into vertices using a
// caller-owned WorkSpace. Implementations must be deterministic: the same
// batch and parameters always yield the same ids.
type TrackClusterer interface {
	Run(batch *TrackBatch, ws *WorkSpace) uint32
	Params() Params
	SetParams(Params)
}

// Verify at compile time that *Clusterer implements TrackClusterer.
var _ TrackClusterer = (*Clusterer)(nil)
