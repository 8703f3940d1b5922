// Package neighbors implements a k-nearest-neighbour regressor with
// per-feature distance weights.
package neighbors

import (
	"fmt"
	"math"
	"sort"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/core/parallel"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
	"github.com/venus-lab/venusml/preprocessing"
)

// parallelThreshold is the number of query rows below which Predict stays on
// the calling goroutine.
const parallelThreshold = 64

// Config holds the hyperparameters of a KNNRegressor.
type Config struct {
	NumNeighbors int  `json:"num_neighbors"`
	Normalize    bool `json:"to_normalize"`

	// Weights scales each feature's squared difference in the distance.
	// Nil means every feature has weight 1.
	Weights []float64 `json:"weights,omitempty"`
}

// ResolveWeights maps named weights onto columns. With no named weights every
// column gets 1. Otherwise columns without an entry get 0. Names that are not
// columns are an error.
func ResolveWeights(columns []string, named map[string]float64) ([]float64, error) {
	if len(named) == 0 {
		return nil, nil
	}
	index := make(map[string]bool, len(columns))
	for _, c := range columns {
		index[c] = true
	}
	for name := range named {
		if !index[name] {
			return nil, errors.NewValidationError("weight", "unknown column", name)
		}
	}
	w := make([]float64, len(columns))
	for j, c := range columns {
		w[j] = named[c]
	}
	return w, nil
}

// KNNRegressor predicts the mean target of the k training rows closest to
// each query row under a weighted Euclidean distance.
type KNNRegressor struct {
	model.BaseEstimator

	cfg    Config
	scaler *preprocessing.StandardScaler
	X      *mat.Dense
	y      *mat.Dense

	logger log.Logger
}

// NewKNNRegressor validates cfg and returns an unfitted regressor.
func NewKNNRegressor(cfg Config) (*KNNRegressor, error) {
	if cfg.NumNeighbors < 1 {
		return nil, errors.NewValidationError("num_neighbors", "must be at least 1", cfg.NumNeighbors)
	}
	for j, w := range cfg.Weights {
		if w < 0 || math.IsNaN(w) {
			return nil, errors.NewValidationError(fmt.Sprintf("weights[%d]", j), "must be non-negative", w)
		}
	}
	return &KNNRegressor{
		cfg:    cfg,
		logger: log.GetLoggerWithName("neighbors.KNNRegressor"),
	}, nil
}

// Fit stores the training data, standardized when Normalize is set.
func (k *KNNRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, _ := y.Dims()
	if r == 0 || c == 0 {
		return errors.NewModelError("KNNRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("KNNRegressor.Fit", r, ry, 0)
	}
	if k.cfg.Weights != nil && len(k.cfg.Weights) != c {
		return errors.NewDimensionError("KNNRegressor.Fit", len(k.cfg.Weights), c, 1)
	}
	if k.cfg.NumNeighbors > r {
		return errors.NewValidationError("num_neighbors", fmt.Sprintf("exceeds the %d training samples", r), k.cfg.NumNeighbors)
	}

	k.Reset()
	train := mat.DenseCopyOf(X)
	if k.cfg.Normalize {
		k.scaler = preprocessing.NewStandardScalerDefault()
		scaled, err := k.scaler.FitTransform(train)
		if err != nil {
			return errors.Wrap(err, "normalize")
		}
		train = mat.DenseCopyOf(scaled)
	}
	k.X = train
	k.y = mat.DenseCopyOf(y)
	k.SetFitted()

	k.logger.Debug("KNN fitted",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
	)
	return nil
}

// Predict returns one row of averaged neighbour targets per row of X.
func (k *KNNRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !k.IsFitted() {
		return nil, errors.NewNotFittedError("KNNRegressor", "Predict")
	}
	r, c := X.Dims()
	_, fc := k.X.Dims()
	if c != fc {
		return nil, errors.NewDimensionError("KNNRegressor.Predict", fc, c, 1)
	}

	query := mat.DenseCopyOf(X)
	if k.scaler != nil {
		scaled, err := k.scaler.Transform(query)
		if err != nil {
			return nil, err
		}
		query = mat.DenseCopyOf(scaled)
	}

	_, outputs := k.y.Dims()
	pred := mat.NewDense(r, outputs, nil)
	parallel.ParallelizeWithThreshold(r, parallelThreshold, func(start, end int) {
		dist := make([]neighbor, k.X.RawMatrix().Rows)
		for i := start; i < end; i++ {
			k.predictRow(query.RawRowView(i), dist, pred.RawRowView(i))
		}
	})
	return pred, nil
}

type neighbor struct {
	idx      int
	distance float64
}

// predictRow writes the mean target of the nearest rows into out. dist is
// scratch space with one slot per training row.
func (k *KNNRegressor) predictRow(q []float64, dist []neighbor, out []float64) {
	n := len(dist)
	for i := 0; i < n; i++ {
		dist[i] = neighbor{idx: i, distance: k.distance(q, k.X.RawRowView(i))}
	}
	sort.SliceStable(dist, func(a, b int) bool { return dist[a].distance < dist[b].distance })

	for j := range out {
		out[j] = 0
	}
	kk := k.cfg.NumNeighbors
	for _, nb := range dist[:kk] {
		for j, v := range k.y.RawRowView(nb.idx) {
			out[j] += v
		}
	}
	for j := range out {
		out[j] /= float64(kk)
	}
}

// distance is sqrt(Σ w_j (a_j - b_j)²).
func (k *KNNRegressor) distance(a, b []float64) float64 {
	var sum float64
	for j := range a {
		d := a[j] - b[j]
		w := 1.0
		if k.cfg.Weights != nil {
			w = k.cfg.Weights[j]
		}
		sum += w * d * d
	}
	return math.Sqrt(sum)
}

// Config returns the hyperparameters.
func (k *KNNRegressor) Config() Config { return k.cfg }
