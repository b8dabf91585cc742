package vertex

import (
	"math/rand"
)

// SyntheticConfig describes the toy event model used by the generator
// tool and the property tests: a handful of Gaussian vertex positions
// along the beam line, Gaussian track smearing around each, plus a
// uniform noise floor.
type SyntheticConfig struct {
	MeanVertices  int     // average vertices per event
	MeanTracks    int     // average tracks per vertex
	BeamSpotSigma float64 // vertex position spread along z (cm)
	TrackSigma    float64 // track z resolution around its vertex (cm)
	NoiseFraction float64 // extra uniform tracks, as a fraction of real ones
	ZRange        float64 // half-width of the noise window (cm)
}

// DefaultSyntheticConfig returns a model loosely shaped like LHC pile-up.
func DefaultSyntheticConfig() SyntheticConfig {
	return SyntheticConfig{
		MeanVertices:  8,
		MeanTracks:    40,
		BeamSpotSigma: 4.0,
		TrackSigma:    0.012,
		NoiseFraction: 0.05,
		ZRange:        12.0,
	}
}

// GenerateBatch produces one synthetic event. The returned batch never
// exceeds MaxTracks. Vertex count and per-vertex multiplicity vary
// around the configured means.
func GenerateBatch(rng *rand.Rand, eventID uint64, cfg SyntheticConfig) *TrackBatch {
	nVtx := 1 + rng.Intn(2*cfg.MeanVertices)

	b := &TrackBatch{EventID: eventID}
	add := func(z, ez2 float64) {
		if len(b.Z) >= MaxTracks {
			return
		}
		b.Z = append(b.Z, float32(z))
		b.EZ2 = append(b.EZ2, float32(ez2))
	}

	for v := 0; v < nVtx; v++ {
		vz := rng.NormFloat64() * cfg.BeamSpotSigma
		nTrk := 1 + rng.Intn(2*cfg.MeanTracks)
		for t := 0; t < nTrk; t++ {
			sigma := cfg.TrackSigma * (0.5 + rng.Float64())
			add(vz+rng.NormFloat64()*sigma, sigma*sigma)
		}
	}

	nNoise := int(float64(len(b.Z)) * cfg.NoiseFraction)
	for t := 0; t < nNoise; t++ {
		sigma := cfg.TrackSigma * (0.5 + rng.Float64())
		add((rng.Float64()*2-1)*cfg.ZRange, sigma*sigma)
	}

	return b
}

// PacketizeBatch splits a batch into VTRK packet payloads, flagging the
// last one end-of-event.
func PacketizeBatch(b *TrackBatch) ([][]byte, error) {
	var packets [][]byte
	n := len(b.Z)
	if n == 0 {
		payload, err := AppendTrackPacket(nil, b.EventID, true, nil, nil)
		if err != nil {
			return nil, err
		}
		return [][]byte{payload}, nil
	}
	for start := 0; start < n; start += MaxRecordsPerPacket {
		end := start + MaxRecordsPerPacket
		if end > n {
			end = n
		}
		payload, err := AppendTrackPacket(nil, b.EventID, end == n, b.Z[start:end], b.EZ2[start:end])
		if err != nil {
			return nil, err
		}
		packets = append(packets, payload)
	}
	return packets, nil
}
