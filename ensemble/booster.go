// Package ensemble implements a gradient-boosted regression tree model whose
// hyperparameters follow the xgboost sklearn interface.
package ensemble

import (
	"io"
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// logEvery is the round interval of the training loss debug line.
const logEvery = 10

// Booster is the tree sequence of one output column. Leaf values already
// include the learning rate.
type Booster struct {
	Base  float64
	Trees []Tree
}

// Predict returns the raw score of row.
func (b *Booster) Predict(row []float64) float64 {
	s := b.Base
	for i := range b.Trees {
		s += b.Trees[i].Predict(row)
	}
	return s
}

// GBRegressor fits one Booster per output column.
type GBRegressor struct {
	model.BaseEstimator

	Config      Config
	Boosters    []Booster
	NFeatures   int
	Importances []float64

	logger log.Logger
}

// NewGBRegressor validates cfg and returns an unfitted regressor.
func NewGBRegressor(cfg Config) (*GBRegressor, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &GBRegressor{
		Config: cfg,
		logger: log.GetLoggerWithName("ensemble.GBRegressor"),
	}, nil
}

// Fit grows Config.Rounds() rounds of trees for every column of y.
func (g *GBRegressor) Fit(X, y mat.Matrix) error {
	r, c := X.Dims()
	ry, k := y.Dims()
	if r == 0 || c == 0 || k == 0 {
		return errors.NewModelError("GBRegressor.Fit", "empty data", errors.ErrEmptyData)
	}
	if ry != r {
		return errors.NewDimensionError("GBRegressor.Fit", r, ry, 0)
	}
	obj, err := NewObjective(g.Config.Objective)
	if err != nil {
		return err
	}

	g.Reset()
	rows := make([][]float64, r)
	for i := range rows {
		rows[i] = mat.Row(nil, i, X)
	}
	var bins *binner
	if g.Config.TreeMethod == TreeHist {
		bins = newBinner(rows, c, g.Config.MaxBin)
	}

	rng := rand.New(rand.NewSource(g.Config.Seed))
	gain := make([]float64, c)
	splits := make([]int, c)
	boosters := make([]Booster, k)
	for j := 0; j < k; j++ {
		target := mat.Col(nil, j, y)
		if err := obj.Check(target); err != nil {
			return err
		}
		b, err := g.boost(obj, rows, target, bins, rng)
		if err != nil {
			return errors.Wrapf(err, "output %d", j)
		}
		for t := range b.Trees {
			for _, n := range b.Trees[t].Nodes {
				if !n.IsLeaf() {
					gain[n.Feature] += n.Gain
					splits[n.Feature]++
				}
			}
		}
		boosters[j] = b
	}

	g.Boosters = boosters
	g.NFeatures = c
	g.Importances = normalizeGain(gain, splits)
	g.SetFitted()

	g.logger.Info("boosting finished",
		log.OperationKey, log.OperationFit,
		log.SamplesKey, r,
		log.FeaturesKey, c,
		log.TargetsKey, k,
		"rounds", g.Config.Rounds(),
	)
	return nil
}

// boost trains one Booster. The prediction cache pred holds the current raw
// score of every training row.
func (g *GBRegressor) boost(obj Objective, X [][]float64, y []float64, bins *binner, rng *rand.Rand) (Booster, error) {
	cfg := g.Config
	n, c := len(X), len(X[0])
	b := Booster{Base: obj.InitScore(y)}

	pred := make([]float64, n)
	for i := range pred {
		pred[i] = b.Base
	}
	grad := make([]float64, n)
	hess := make([]float64, n)
	all := make([]int, c)
	for j := range all {
		all[j] = j
	}
	shrink := cfg.LearningRate / float64(cfg.NumParallelTree)

	for round := 0; round < cfg.Rounds(); round++ {
		for i := range pred {
			grad[i] = obj.Gradient(pred[i], y[i])
			hess[i] = obj.Hessian(pred[i], y[i])
		}
		if err := errors.CheckNumericalStability("gradient", grad, round); err != nil {
			return b, err
		}

		for p := 0; p < cfg.NumParallelTree; p++ {
			builder := &treeBuilder{
				cfg:   &cfg,
				X:     X,
				grad:  grad,
				hess:  hess,
				bins:  bins,
				feats: sample(rng, all, cfg.ColsampleByTree),
			}
			if cfg.ColsampleByNode < 1 {
				builder.pick = func(f []int) []int { return sample(rng, f, cfg.ColsampleByNode) }
			}
			tree := builder.build(sampleRows(rng, n, cfg.Subsample))
			for t := range tree.Nodes {
				tree.Nodes[t].Value *= shrink
			}
			for i, row := range X {
				pred[i] += tree.Predict(row)
			}
			b.Trees = append(b.Trees, tree)
		}

		if (round+1)%logEvery == 0 || round == cfg.Rounds()-1 {
			var loss float64
			for i := range pred {
				loss += obj.Loss(pred[i], y[i])
			}
			g.logger.Debug("boosting round",
				log.IterationKey, round+1,
				log.LossKey, loss/float64(n),
			)
		}
	}
	return b, nil
}

// sample keeps ceil(frac*len(items)) items, at least one, in their original order.
func sample(rng *rand.Rand, items []int, frac float64) []int {
	if frac >= 1 || len(items) <= 1 {
		return items
	}
	keep := int(math.Ceil(frac * float64(len(items))))
	if keep < 1 {
		keep = 1
	}
	perm := rng.Perm(len(items))[:keep]
	mask := make([]bool, len(items))
	for _, p := range perm {
		mask[p] = true
	}
	out := make([]int, 0, keep)
	for i, v := range items {
		if mask[i] {
			out = append(out, v)
		}
	}
	return out
}

// sampleRows draws each row with probability frac. An empty draw falls back
// to every row.
func sampleRows(rng *rand.Rand, n int, frac float64) []int {
	rows := make([]int, 0, n)
	for i := 0; i < n; i++ {
		if frac >= 1 || rng.Float64() < frac {
			rows = append(rows, i)
		}
	}
	if len(rows) == 0 {
		for i := 0; i < n; i++ {
			rows = append(rows, i)
		}
	}
	return rows
}

// normalizeGain converts total gain into average gain per split, scaled to sum to one.
func normalizeGain(gain []float64, splits []int) []float64 {
	out := make([]float64, len(gain))
	var total float64
	for j := range gain {
		if splits[j] > 0 {
			out[j] = gain[j] / float64(splits[j])
			total += out[j]
		}
	}
	if total == 0 {
		return out
	}
	for j := range out {
		out[j] /= total
	}
	return out
}

// Predict returns an r×k matrix of predictions.
func (g *GBRegressor) Predict(X mat.Matrix) (mat.Matrix, error) {
	if !g.IsFitted() {
		return nil, errors.NewNotFittedError("GBRegressor", "Predict")
	}
	r, c := X.Dims()
	if c != g.NFeatures {
		return nil, errors.NewDimensionError("GBRegressor.Predict", g.NFeatures, c, 1)
	}
	out := mat.NewDense(r, len(g.Boosters), nil)
	row := make([]float64, c)
	for i := 0; i < r; i++ {
		mat.Row(row, i, X)
		for j := range g.Boosters {
			out.Set(i, j, g.Boosters[j].Predict(row))
		}
	}
	return out, nil
}

// FeatureImportances returns the normalized average split gain of each feature.
func (g *GBRegressor) FeatureImportances() []float64 {
	if !g.IsFitted() {
		return nil
	}
	return append([]float64(nil), g.Importances...)
}

// Save writes the fitted boosters with gob.
func (g *GBRegressor) Save(w io.Writer) error {
	if !g.IsFitted() {
		return errors.NewNotFittedError("GBRegressor", "Save")
	}
	return model.SaveModelToWriter(snapshot{
		Config:      g.Config,
		Boosters:    g.Boosters,
		NFeatures:   g.NFeatures,
		Importances: g.Importances,
	}, w)
}

// snapshot is the gob form of a fitted GBRegressor.
type snapshot struct {
	Config      Config
	Boosters    []Booster
	NFeatures   int
	Importances []float64
}

// Load restores a regressor written by Save.
func Load(r io.Reader) (*GBRegressor, error) {
	var s snapshot
	if err := model.LoadModelFromReader(&s, r); err != nil {
		return nil, err
	}
	g := &GBRegressor{
		Config:      s.Config,
		Boosters:    s.Boosters,
		NFeatures:   s.NFeatures,
		Importances: s.Importances,
		logger:      log.GetLoggerWithName("ensemble.GBRegressor"),
	}
	g.SetFitted()
	return g, nil
}
