package vertex

import (
	"gonum.org/v1/gonum/stat"
)

// Vertex summarises one cluster of tracks for persistence and monitoring.
type Vertex struct {
	EventID      uint64  `json:"event_id"`
	VertexID     int32   `json:"vertex_id"`
	Z            float64 `json:"z"`          // variance-weighted mean z (cm)
	ZMean        float64 `json:"z_mean"`     // unweighted mean z (cm)
	ZSpread      float64 `json:"z_spread"`   // stddev of member z (cm), 0 for singletons
	Multiplicity int     `json:"multiplicity"`
}

// BuildVertices turns the per-track ids left in ws by the last Run into
// per-vertex summaries, ordered by vertex id. Noise tracks contribute to
// no vertex. Tracks with a vanishing variance fall back to unit weight so
// a single perfectly measured track cannot dominate the weighted mean.
func BuildVertices(b *TrackBatch, ws *WorkSpace) []Vertex {
	nv := int(ws.NVertices())
	if nv == 0 {
		return nil
	}
	ids := ws.ClusterIDs()

	members := make([][]float64, nv)
	weights := make([][]float64, nv)
	for i, id := range ids {
		if id == NoiseID {
			continue
		}
		v := int(id)
		members[v] = append(members[v], float64(b.Z[i]))
		w := 1.0
		if ez2 := float64(b.EZ2[i]); ez2 > 0 {
			w = 1.0 / ez2
		}
		weights[v] = append(weights[v], w)
	}

	vertices := make([]Vertex, 0, nv)
	for v := 0; v < nv; v++ {
		zs := members[v]
		vtx := Vertex{
			EventID:      b.EventID,
			VertexID:     int32(v),
			Z:            stat.Mean(zs, weights[v]),
			ZMean:        stat.Mean(zs, nil),
			Multiplicity: len(zs),
		}
		if len(zs) > 1 {
			vtx.ZSpread = stat.StdDev(zs, nil)
		}
		vertices = append(vertices, vtx)
	}
	return vertices
}

// CountNoise returns the number of tracks the last Run tagged as noise.
func CountNoise(ws *WorkSpace) int {
	var n int
	for _, id := range ws.ClusterIDs() {
		if id == NoiseID {
			n++
		}
	}
	return n
}
