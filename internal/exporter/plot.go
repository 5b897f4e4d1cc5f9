package exporter

import (
	"fmt"
	"image/color"
	"log/slog"
	"math"
	"os"

	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"covidlag/internal/config"
	apperrors "covidlag/internal/errors"
	"covidlag/internal/frame"
)

// PlotExporter renders scatter plots of snapshot columns as PNG files.
type PlotExporter struct {
	paths  *config.Paths
	logger *slog.Logger
	width  vg.Length
	height vg.Length
}

// NewPlotExporter creates a PlotExporter with 6x4 inch images.
func NewPlotExporter(paths *config.Paths, logger *slog.Logger) *PlotExporter {
	if logger == nil {
		logger = slog.Default()
	}
	return &PlotExporter{paths: paths, logger: logger, width: 6 * vg.Inch, height: 4 * vg.Inch}
}

// ScatterPoints returns the rows of f where both columns are present.
func ScatterPoints(f *frame.Frame, x, y string) plotter.XYs {
	var pts plotter.XYs
	for i := 0; i < f.Len(); i++ {
		xv, yv := f.Value(x, i), f.Value(y, i)
		if math.IsNaN(xv) || math.IsNaN(yv) || math.IsInf(xv, 0) || math.IsInf(yv, 0) {
			continue
		}
		pts = append(pts, plotter.XY{X: xv, Y: yv})
	}
	return pts
}

// Export writes one PNG per scatter and returns the written paths. A pair
// without any complete point is skipped with a warning.
func (p *PlotExporter) Export(res *Results) ([]string, error) {
	if res.Snapshot == nil {
		return nil, nil
	}
	if err := os.MkdirAll(p.paths.PlotsDir, config.DirPermissions); err != nil {
		return nil, apperrors.NewStorageError("failed to create plot directory", err)
	}

	var written []string
	for _, s := range res.Scatters {
		pts := ScatterPoints(res.Snapshot, s.X, s.Y)
		if len(pts) == 0 {
			p.logger.Warn("Scatter plot skipped, no complete points",
				slog.String("x", s.X),
				slog.String("y", s.Y))
			continue
		}

		path := p.paths.GetPlotPath(s.FileName())
		title := fmt.Sprintf("%s vs %s (%s)", s.Y, s.X, res.SnapshotDate.Format(frame.DateLayout))
		if err := p.render(path, title, s, pts); err != nil {
			return written, apperrors.NewStorageError("failed to render scatter plot", err).WithContext("path", path)
		}
		written = append(written, path)
		p.logger.Info("Scatter plot written",
			slog.String("path", path),
			slog.Int("points", len(pts)))
	}
	return written, nil
}

func (p *PlotExporter) render(path, title string, s Scatter, pts plotter.XYs) error {
	plt := plot.New()
	plt.Title.Text = title
	plt.X.Label.Text = s.X
	plt.Y.Label.Text = s.Y
	plt.Add(plotter.NewGrid())

	scatter, err := plotter.NewScatter(pts)
	if err != nil {
		return err
	}
	scatter.GlyphStyle.Color = color.RGBA{R: 22, G: 133, B: 142, A: 255}
	scatter.GlyphStyle.Radius = vg.Points(2.5)
	plt.Add(scatter)

	return plt.Save(p.width, p.height, path)
}
