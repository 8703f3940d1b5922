// Package estimator selects and constructs the regressors the experiment
// driver can cross-validate.
package estimator

import (
	"github.com/venus-lab/venusml/baseline"
	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/ensemble"
	"github.com/venus-lab/venusml/neighbors"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/train"
)

// Type names a model family.
type Type string

// Supported model types.
const (
	KNN   Type = "knn"
	Tree  Type = "tree"
	Cheat Type = "cheat"
	MLP   Type = "mlp"
)

// Types lists every supported model type.
var Types = []Type{KNN, Tree, Cheat, MLP}

// ParseType maps a name to a Type.
func ParseType(name string) (Type, error) {
	for _, t := range Types {
		if string(t) == name {
			return t, nil
		}
	}
	return "", errors.NewInvalidModelTypeError(name, typeNames()...)
}

func typeNames() []string {
	names := make([]string, len(Types))
	for i, t := range Types {
		names[i] = string(t)
	}
	return names
}

// Spec is a model type plus the configuration of that type. Only the field
// matching Type is read.
type Spec struct {
	Type  Type              `json:"type"`
	KNN   *neighbors.Config `json:"knn,omitempty"`
	Tree  *ensemble.Config  `json:"tree,omitempty"`
	Cheat *baseline.Config  `json:"cheat,omitempty"`
	MLP   *train.MLPConfig  `json:"mlp,omitempty"`
}

// New builds an unfitted regressor for spec.
func New(spec Spec) (model.Regressor, error) {
	switch spec.Type {
	case KNN:
		if spec.KNN == nil {
			return nil, errors.NewValidationError("knn", "configuration is required", nil)
		}
		return neighbors.NewKNNRegressor(*spec.KNN)
	case Tree:
		if spec.Tree == nil {
			return nil, errors.NewValidationError("tree", "configuration is required", nil)
		}
		return ensemble.NewGBRegressor(*spec.Tree)
	case Cheat:
		cfg := baseline.Config{}
		if spec.Cheat != nil {
			cfg = *spec.Cheat
		}
		return baseline.NewCheatRegressor(cfg), nil
	case MLP:
		if spec.MLP == nil {
			return nil, errors.NewValidationError("mlp", "configuration is required", nil)
		}
		return train.NewMLPRegressor(*spec.MLP)
	default:
		return nil, errors.NewInvalidModelTypeError(string(spec.Type), typeNames()...)
	}
}

// Factory returns a constructor producing a fresh regressor per call. The
// spec is validated once up front.
func Factory(spec Spec) (func() (model.Regressor, error), error) {
	if _, err := New(spec); err != nil {
		return nil, err
	}
	return func() (model.Regressor, error) { return New(spec) }, nil
}
