package ensemble

import (
	"github.com/venus-lab/venusml/pkg/errors"
)

// Grow policies.
const (
	GrowDepthwise = "depthwise"
	GrowLossguide = "lossguide"
)

// Tree construction methods.
const (
	TreeExact = "exact"
	TreeHist  = "hist"
)

// Config contains the boosting hyperparameters. Names follow the xgboost
// sklearn interface so recorded experiments stay comparable.
type Config struct {
	NEstimators int `json:"n_estimators"`

	// MaxDepth limits tree depth. Zero means unlimited.
	MaxDepth int `json:"max_depth"`

	// MaxLeaves limits leaves per tree. Zero means unlimited.
	MaxLeaves int `json:"max_leaves"`

	// MaxBin is the number of histogram bins per feature for TreeHist.
	MaxBin int `json:"max_bin"`

	GrowPolicy   string  `json:"grow_policy"`
	LearningRate float64 `json:"learning_rate"`
	Objective    string  `json:"objective"`
	TreeMethod   string  `json:"tree_method"`

	// RegAlpha and RegLambda are the L1 and L2 penalties on leaf weights.
	RegAlpha  float64 `json:"reg_alpha"`
	RegLambda float64 `json:"reg_lambda"`

	Subsample       float64 `json:"subsample"`
	ColsampleByNode float64 `json:"colsample_bynode"`
	ColsampleByTree float64 `json:"colsample_bytree"`

	// NumBoostRound overrides NEstimators when positive.
	NumBoostRound int `json:"num_boost_round"`

	// NumParallelTree trees are grown per round and averaged.
	NumParallelTree int `json:"num_parallel_tree"`

	Seed int64 `json:"seed"`
}

// DefaultConfig returns the xgboost defaults.
func DefaultConfig() Config {
	return Config{
		NEstimators:     100,
		MaxDepth:        6,
		MaxBin:          256,
		GrowPolicy:      GrowDepthwise,
		LearningRate:    0.3,
		Objective:       ObjectiveSquaredError,
		TreeMethod:      TreeHist,
		RegLambda:       1,
		Subsample:       1,
		ColsampleByNode: 1,
		ColsampleByTree: 1,
		NumParallelTree: 1,
	}
}

// Rounds is the number of boosting rounds.
func (c Config) Rounds() int {
	if c.NumBoostRound > 0 {
		return c.NumBoostRound
	}
	return c.NEstimators
}

// Validate checks ranges and enumerations.
func (c Config) Validate() error {
	switch {
	case c.Rounds() < 1:
		return errors.NewValidationError("n_estimators", "at least one boosting round is required", c.NEstimators)
	case c.MaxDepth < 0:
		return errors.NewValidationError("max_depth", "must be non-negative", c.MaxDepth)
	case c.MaxLeaves < 0 || c.MaxLeaves == 1:
		return errors.NewValidationError("max_leaves", "must be 0 or at least 2", c.MaxLeaves)
	case c.LearningRate <= 0:
		return errors.NewValidationError("learning_rate", "must be positive", c.LearningRate)
	case c.RegAlpha < 0:
		return errors.NewValidationError("reg_alpha", "must be non-negative", c.RegAlpha)
	case c.RegLambda < 0:
		return errors.NewValidationError("reg_lambda", "must be non-negative", c.RegLambda)
	case c.Subsample <= 0 || c.Subsample > 1:
		return errors.NewValidationError("subsample", "must be in (0, 1]", c.Subsample)
	case c.ColsampleByNode <= 0 || c.ColsampleByNode > 1:
		return errors.NewValidationError("colsample_bynode", "must be in (0, 1]", c.ColsampleByNode)
	case c.ColsampleByTree <= 0 || c.ColsampleByTree > 1:
		return errors.NewValidationError("colsample_bytree", "must be in (0, 1]", c.ColsampleByTree)
	case c.NumParallelTree < 1:
		return errors.NewValidationError("num_parallel_tree", "must be at least 1", c.NumParallelTree)
	}
	switch c.GrowPolicy {
	case GrowDepthwise, GrowLossguide:
	default:
		return errors.NewValidationError("grow_policy", "must be depthwise or lossguide", c.GrowPolicy)
	}
	switch c.TreeMethod {
	case TreeExact:
	case TreeHist:
		if c.MaxBin < 2 {
			return errors.NewValidationError("max_bin", "must be at least 2", c.MaxBin)
		}
	default:
		return errors.NewValidationError("tree_method", "must be exact or hist", c.TreeMethod)
	}
	if _, err := NewObjective(c.Objective); err != nil {
		return err
	}
	return nil
}
