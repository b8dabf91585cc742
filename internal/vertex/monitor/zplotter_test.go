package monitor

import (
	"os"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

func TestZPlotterPlotEvent(t *testing.T) {
	zp, err := NewZPlotter(t.TempDir())
	require.NoError(t, err)

	batch := &vertex.TrackBatch{
		EventID: 3,
		Z:       []float32{-0.5, -0.49, -0.51, 2.0},
		EZ2:     []float32{1e-4, 2e-4, 1e-4, 1e-4},
	}
	vertices := []vertex.Vertex{
		{EventID: 3, VertexID: 0, Z: -0.5, ZMean: -0.5, Multiplicity: 3},
	}

	path, err := zp.PlotEvent(batch, vertices)
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Greater(t, info.Size(), int64(0), "plot file must not be empty")
	assert.Contains(t, path, "event_000003")
}
