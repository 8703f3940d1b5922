package train

import (
	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/nn"
	"github.com/venus-lab/venusml/pkg/errors"
)

// MLPConfig configures an MLPRegressor.
type MLPConfig struct {
	HiddenSizes  []int   `json:"hidden_sizes"`
	LearningRate float64 `json:"learning_rate"`
	Optimizer    string  `json:"optimizer"`
	Loss         string  `json:"loss"`
	ClipNorm     float64 `json:"clip_norm"`
	Train        Config  `json:"train"`
}

// DefaultMLPConfig returns one hidden layer of 64 units trained with Adam on MSE.
func DefaultMLPConfig() MLPConfig {
	return MLPConfig{
		HiddenSizes:  []int{64},
		LearningRate: 1e-3,
		Optimizer:    "adam",
		Loss:         "mse",
		Train:        DefaultConfig(),
	}
}

// MLPRegressor adapts a Wrapper around a fresh MLP to the Fit/Predict
// interface so it can be cross-validated like the other models.
type MLPRegressor struct {
	model.BaseEstimator

	cfg     MLPConfig
	wrapper *Wrapper
}

// NewMLPRegressor validates everything except the layer widths, which are
// only known at Fit.
func NewMLPRegressor(cfg MLPConfig) (*MLPRegressor, error) {
	if err := cfg.Train.Validate(); err != nil {
		return nil, err
	}
	if _, err := nn.NewLoss(cfg.Loss); err != nil {
		return nil, err
	}
	if _, err := nn.NewOptimizer(cfg.Optimizer, cfg.LearningRate, cfg.ClipNorm); err != nil {
		return nil, err
	}
	return &MLPRegressor{cfg: cfg}, nil
}

// Fit builds a new network sized to X and y and trains it.
func (m *MLPRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, k := y.Dims()
	if r == 0 || c == 0 || k == 0 {
		return errors.NewModelError("MLPRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if r != ry {
		return errors.NewDimensionError("MLPRegressor.Fit", r, ry, 0)
	}

	m.Reset()
	net, err := nn.NewMLP(nn.MLPConfig{
		InputDim:    c,
		HiddenSizes: m.cfg.HiddenSizes,
		OutputDim:   k,
		Seed:        m.cfg.Train.Seed,
	})
	if err != nil {
		return err
	}
	loss, _ := nn.NewLoss(m.cfg.Loss)
	opt, _ := nn.NewOptimizer(m.cfg.Optimizer, m.cfg.LearningRate, m.cfg.ClipNorm)
	w, err := NewWrapper(net, loss, opt, m.cfg.Train)
	if err != nil {
		return err
	}
	if err := w.Train(&matrixDataset{X: mat.DenseCopyOf(X), Y: mat.DenseCopyOf(y)}); err != nil {
		return err
	}
	m.wrapper = w
	m.SetFitted()
	return nil
}

// Predict returns the network output for X.
func (m *MLPRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !m.IsFitted() {
		return nil, errors.NewNotFittedError("MLPRegressor", "Predict")
	}
	return m.wrapper.Predict(mat.DenseCopyOf(X))
}

// Wrapper returns the training wrapper of the last Fit, or nil.
func (m *MLPRegressor) Wrapper() *Wrapper { return m.wrapper }

// matrixDataset serves rows of X and Y as samples.
type matrixDataset struct {
	X, Y *mat.Dense
}

func (d *matrixDataset) Len() int {
	r, _ := d.X.Dims()
	return r
}

func (d *matrixDataset) Batch(indices []int) (*mat.Dense, *mat.Dense, error) {
	if len(indices) == 0 {
		return nil, nil, errors.NewValueError("matrixDataset.Batch", "empty batch")
	}
	_, c := d.X.Dims()
	_, k := d.Y.Dims()
	X := mat.NewDense(len(indices), c, nil)
	Y := mat.NewDense(len(indices), k, nil)
	for b, i := range indices {
		if i < 0 || i >= d.Len() {
			return nil, nil, errors.NewIndexOutOfRangeError("matrixDataset.Batch", i, d.Len())
		}
		X.SetRow(b, d.X.RawRowView(i))
		Y.SetRow(b, d.Y.RawRowView(i))
	}
	return X, Y, nil
}
