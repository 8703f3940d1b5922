// Package baseline provides reference regressors that set the floor other
// models have to beat.
package baseline

import (
	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// Config is empty; the cheat baseline has no hyperparameters.
type Config struct{}

// CheatRegressor is a persistence forecaster: the prediction for row i is the
// true target of row i-1. It needs the evaluation targets, so cross-validation
// calls PredictWithTargets instead of Predict.
type CheatRegressor struct {
	model.BaseEstimator

	last   []float64
	logger log.Logger
}

// NewCheatRegressor returns an unfitted baseline.
func NewCheatRegressor(Config) *CheatRegressor {
	return &CheatRegressor{logger: log.GetLoggerWithName("baseline.CheatRegressor")}
}

// Fit remembers the final training target.
func (c *CheatRegressor) Fit(X, y mat.Matrix) error {
	r, _ := X.Dims()
	ry, k := y.Dims()
	if ry == 0 || k == 0 {
		return errors.NewModelError("CheatRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if r != ry {
		return errors.NewDimensionError("CheatRegressor.Fit", r, ry, 0)
	}
	c.Reset()
	c.last = mat.Row(nil, ry-1, y)
	c.SetFitted()
	c.logger.Debug("cheat baseline fitted", log.OperationKey, log.OperationFit, log.SamplesKey, r)
	return nil
}

// Predict repeats the last training target for every row of X.
func (c *CheatRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("CheatRegressor", "Predict")
	}
	r, _ := X.Dims()
	if r == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(r, len(c.last), nil)
	for i := 0; i < r; i++ {
		out.SetRow(i, c.last)
	}
	return out, nil
}

// PredictWithTargets shifts y down by one row. The first row has no
// predecessor in y and gets the last training target.
func (c *CheatRegressor) PredictWithTargets(X, y mat.Matrix) (mat.Matrix, error) {
	if !c.IsFitted() {
		return nil, errors.NewNotFittedError("CheatRegressor", "PredictWithTargets")
	}
	r, _ := X.Dims()
	ry, k := y.Dims()
	if r != ry {
		return nil, errors.NewDimensionError("CheatRegressor.PredictWithTargets", r, ry, 0)
	}
	if k != len(c.last) {
		return nil, errors.NewDimensionError("CheatRegressor.PredictWithTargets", len(c.last), k, 1)
	}
	if r == 0 {
		return &mat.Dense{}, nil
	}
	out := mat.NewDense(r, k, nil)
	out.SetRow(0, c.last)
	for i := 1; i < r; i++ {
		out.SetRow(i, mat.Row(nil, i-1, y))
	}
	return out, nil
}
