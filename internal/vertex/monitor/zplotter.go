package monitor

import (
	"fmt"
	"image/color"
	"os"
	"path/filepath"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/banshee-data/vertex.report/internal/vertex"
)

// ZPlotter renders an event's track z distribution with the found
// vertices overlaid. Tools use it after a replay to sanity-check a run
// visually; the live service never calls it.
type ZPlotter struct {
	outputDir string
}

// NewZPlotter creates a plotter writing PNGs under outputDir.
func NewZPlotter(outputDir string) (*ZPlotter, error) {
	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	return &ZPlotter{outputDir: outputDir}, nil
}

// PlotEvent writes one PNG for the event: track z values as a scatter
// along the beam axis, vertex positions as tall markers sized by
// multiplicity. Returns the written file path.
func (zp *ZPlotter) PlotEvent(batch *vertex.TrackBatch, vertices []vertex.Vertex) (string, error) {
	p := plot.New()
	p.Title.Text = fmt.Sprintf("Event %d: %d tracks, %d vertices", batch.EventID, len(batch.Z), len(vertices))
	p.X.Label.Text = "z (cm)"
	p.Y.Label.Text = "track error (cm)"

	trackPts := make(plotter.XYs, 0, len(batch.Z))
	for i, z := range batch.Z {
		var ez float64
		if i < len(batch.EZ2) && batch.EZ2[i] > 0 {
			ez = float64(batch.EZ2[i])
		}
		trackPts = append(trackPts, plotter.XY{X: float64(z), Y: ez})
	}

	tracks, err := plotter.NewScatter(trackPts)
	if err != nil {
		return "", fmt.Errorf("track scatter: %w", err)
	}
	tracks.GlyphStyle.Radius = vg.Points(1.5)
	tracks.GlyphStyle.Color = color.RGBA{R: 100, G: 100, B: 100, A: 255}
	p.Add(tracks)
	p.Legend.Add("tracks", tracks)

	vtxPts := make(plotter.XYs, 0, len(vertices))
	for _, v := range vertices {
		vtxPts = append(vtxPts, plotter.XY{X: v.Z, Y: 0})
	}
	vtx, err := plotter.NewScatter(vtxPts)
	if err != nil {
		return "", fmt.Errorf("vertex scatter: %w", err)
	}
	vtx.GlyphStyle.Radius = vg.Points(4)
	vtx.GlyphStyle.Color = color.RGBA{R: 220, G: 50, B: 50, A: 255}
	p.Add(vtx)
	p.Legend.Add("vertices", vtx)

	file := filepath.Join(zp.outputDir, fmt.Sprintf("event_%06d_z.png", batch.EventID))
	if err := p.Save(10*vg.Inch, 4*vg.Inch, file); err != nil {
		return "", fmt.Errorf("save plot: %w", err)
	}
	return file, nil
}
