package nn

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/pkg/errors"
)

// Loss reduces a batch of predictions to a scalar and returns dLoss/dPred.
type Loss interface {
	Loss(pred, target *mat.Dense) (float64, *mat.Dense, error)
}

// MSELoss is the mean of squared element differences.
type MSELoss struct{}

// L1Loss is the mean of absolute element differences.
type L1Loss struct{}

func checkShapes(op string, pred, target *mat.Dense) (int, error) {
	pr, pc := pred.Dims()
	tr, tc := target.Dims()
	if pr != tr {
		return 0, errors.NewDimensionError(op, pr, tr, 0)
	}
	if pc != tc {
		return 0, errors.NewDimensionError(op, pc, tc, 1)
	}
	if pr*pc == 0 {
		return 0, errors.NewValueError(op, "empty batch")
	}
	return pr * pc, nil
}

func (MSELoss) Loss(pred, target *mat.Dense) (float64, *mat.Dense, error) {
	n, err := checkShapes("MSELoss", pred, target)
	if err != nil {
		return 0, nil, err
	}
	var diff mat.Dense
	diff.Sub(pred, target)
	var sum float64
	grad := mat.DenseCopyOf(&diff)
	grad.Apply(func(_, _ int, d float64) float64 {
		sum += d * d
		return 2 * d / float64(n)
	}, grad)
	return sum / float64(n), grad, nil
}

func (L1Loss) Loss(pred, target *mat.Dense) (float64, *mat.Dense, error) {
	n, err := checkShapes("L1Loss", pred, target)
	if err != nil {
		return 0, nil, err
	}
	var diff mat.Dense
	diff.Sub(pred, target)
	var sum float64
	grad := mat.DenseCopyOf(&diff)
	grad.Apply(func(_, _ int, d float64) float64 {
		sum += math.Abs(d)
		switch {
		case d > 0:
			return 1 / float64(n)
		case d < 0:
			return -1 / float64(n)
		}
		return 0
	}, grad)
	return sum / float64(n), grad, nil
}

// NewLoss returns the loss called name ("mse" or "l1").
func NewLoss(name string) (Loss, error) {
	switch name {
	case "", "mse":
		return MSELoss{}, nil
	case "l1", "mae":
		return L1Loss{}, nil
	}
	return nil, errors.NewValidationError("loss", "must be mse or l1", name)
}
