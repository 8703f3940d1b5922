package ensemble

import (
	"math"
	"sort"

	"gonum.org/v1/gonum/stat"

	"github.com/venus-lab/venusml/pkg/errors"
)

// Regression objectives.
const (
	ObjectiveSquaredError    = "reg:squarederror"
	ObjectiveSquaredLogError = "reg:squaredlogerror"
	ObjectivePseudoHuber     = "reg:pseudohubererror"
	ObjectiveAbsoluteError   = "reg:absoluteerror"
)

// Objectives lists the supported objective names.
var Objectives = []string{
	ObjectiveSquaredError,
	ObjectiveSquaredLogError,
	ObjectivePseudoHuber,
	ObjectiveAbsoluteError,
}

// Objective supplies first and second order derivatives of a loss with
// respect to the raw prediction.
type Objective interface {
	Gradient(prediction, target float64) float64
	Hessian(prediction, target float64) float64
	Loss(prediction, target float64) float64

	// InitScore is the constant prediction boosting starts from.
	InitScore(targets []float64) float64

	// Check validates the targets before training.
	Check(targets []float64) error

	Name() string
}

// NewObjective returns the objective called name.
func NewObjective(name string) (Objective, error) {
	switch name {
	case ObjectiveSquaredError:
		return squaredError{}, nil
	case ObjectiveSquaredLogError:
		return squaredLogError{}, nil
	case ObjectivePseudoHuber:
		return pseudoHuber{slope: 1}, nil
	case ObjectiveAbsoluteError:
		return absoluteError{}, nil
	default:
		return nil, errors.NewValidationError("objective", "unsupported objective", name)
	}
}

type squaredError struct{}

func (squaredError) Gradient(p, y float64) float64 { return p - y }
func (squaredError) Hessian(_, _ float64) float64  { return 1 }
func (squaredError) Loss(p, y float64) float64     { return 0.5 * (p - y) * (p - y) }
func (squaredError) InitScore(y []float64) float64 { return stat.Mean(y, nil) }
func (squaredError) Check([]float64) error         { return nil }
func (squaredError) Name() string                  { return ObjectiveSquaredError }

// squaredLogError is 0.5*(log1p(p) - log1p(y))².
type squaredLogError struct{}

const logEps = 1e-6

func clampLog(p float64) float64 { return math.Max(p, -1+logEps) }

func (squaredLogError) Gradient(p, y float64) float64 {
	p = clampLog(p)
	return (math.Log1p(p) - math.Log1p(y)) / (p + 1)
}

func (squaredLogError) Hessian(p, y float64) float64 {
	p = clampLog(p)
	h := (-math.Log1p(p) + math.Log1p(y) + 1) / ((p + 1) * (p + 1))
	return math.Max(h, logEps)
}

func (squaredLogError) Loss(p, y float64) float64 {
	d := math.Log1p(clampLog(p)) - math.Log1p(y)
	return 0.5 * d * d
}

func (squaredLogError) InitScore(y []float64) float64 {
	logs := make([]float64, len(y))
	for i, v := range y {
		logs[i] = math.Log1p(v)
	}
	return math.Expm1(stat.Mean(logs, nil))
}

func (squaredLogError) Check(y []float64) error {
	for _, v := range y {
		if v <= -1 {
			return errors.NewValueError(ObjectiveSquaredLogError, "targets must be greater than -1")
		}
	}
	return nil
}

func (squaredLogError) Name() string { return ObjectiveSquaredLogError }

// pseudoHuber is slope²(sqrt(1 + (z/slope)²) - 1) with z = p - y.
type pseudoHuber struct {
	slope float64
}

func (o pseudoHuber) Gradient(p, y float64) float64 {
	z := (p - y) / o.slope
	return (p - y) / math.Sqrt(1+z*z)
}

func (o pseudoHuber) Hessian(p, y float64) float64 {
	z := (p - y) / o.slope
	s := math.Sqrt(1 + z*z)
	return 1 / (s * s * s)
}

func (o pseudoHuber) Loss(p, y float64) float64 {
	z := (p - y) / o.slope
	return o.slope * o.slope * (math.Sqrt(1+z*z) - 1)
}

func (pseudoHuber) InitScore(y []float64) float64 { return stat.Mean(y, nil) }
func (pseudoHuber) Check([]float64) error         { return nil }
func (pseudoHuber) Name() string                  { return ObjectivePseudoHuber }

// absoluteError uses a unit hessian so leaf values become mean signs.
type absoluteError struct{}

func (absoluteError) Gradient(p, y float64) float64 {
	switch d := p - y; {
	case d > 0:
		return 1
	case d < 0:
		return -1
	default:
		return 0
	}
}

func (absoluteError) Hessian(_, _ float64) float64 { return 1 }
func (absoluteError) Loss(p, y float64) float64    { return math.Abs(p - y) }

func (absoluteError) InitScore(y []float64) float64 {
	if len(y) == 0 {
		return 0
	}
	sorted := append([]float64(nil), y...)
	sort.Float64s(sorted)
	return stat.Quantile(0.5, stat.Empirical, sorted, nil)
}

func (absoluteError) Check([]float64) error { return nil }
func (absoluteError) Name() string          { return ObjectiveAbsoluteError }
