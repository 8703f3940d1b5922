package train

import (
	"gonum.org/v1/plot"
	"gonum.org/v1/plot/plotter"
	"gonum.org/v1/plot/vg"

	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// GraphLoss renders the loss history as a line chart. The image format
// follows the extension of path (.png, .svg, .pdf ...).
func (w *Wrapper) GraphLoss(path string) error {
	if len(w.lossHistory) == 0 {
		return errors.NewValueError("Wrapper.GraphLoss", "no loss history; train first")
	}
	p := plot.New()
	p.Title.Text = "Loss Curve"
	p.X.Label.Text = "Batches"
	p.Y.Label.Text = "Loss"

	pts := make(plotter.XYs, len(w.lossHistory))
	for i, l := range w.lossHistory {
		pts[i] = plotter.XY{X: float64(i), Y: l}
	}
	line, err := plotter.NewLine(pts)
	if err != nil {
		return errors.Wrap(err, "loss line")
	}
	line.Width = vg.Points(1)
	p.Add(line, plotter.NewGrid())

	if err := p.Save(8*vg.Inch, 6*vg.Inch, path); err != nil {
		return errors.Wrapf(err, "save loss curve %s", path)
	}
	w.logger.Info("loss curve written", log.PathKey, path)
	return nil
}
