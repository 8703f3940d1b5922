// Package validation cross-validates regressors: leave-one-run-out over a
// list of runs, or k-fold over a single table, with sample-weighted
// aggregation of the per-fold scores.
package validation

import (
	"fmt"
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/dataset"
	"github.com/venus-lab/venusml/metrics"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// AggregateLabel labels the weighted average prepended by Aggregate.
const AggregateLabel = "agg"

// Factory returns a fresh, unfitted regressor. It is called once per fold.
type Factory func() (model.Regressor, error)

// Fold is the evaluation of one held-out split.
type Fold struct {
	Label string
	metrics.Scores
}

// Result holds parallel per-fold columns with the aggregate at index 0.
type Result struct {
	Labels []string
	MSE    []float64
	MAE    []float64
	MAPE   []float64
	N      []int

	// Importances is the last fold's feature importance vector, when the
	// model exposes one.
	Importances []float64
}

// Aggregate builds a Result from folds, prepending AggregateLabel whose
// metrics are the N-weighted averages and whose N is the total. Folds with
// an undefined (NaN) MAPE are left out of the aggregate MAPE.
func Aggregate(folds []Fold) (*Result, error) {
	res := &Result{}
	var mse, mae, mape []float64
	var n []int
	for _, f := range folds {
		mse = append(mse, f.MSE)
		mae = append(mae, f.MAE)
		mape = append(mape, f.MAPE)
		n = append(n, f.N)
	}

	aggMSE, err := metrics.WeightedAverage(mse, n)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate mse")
	}
	aggMAE, err := metrics.WeightedAverage(mae, n)
	if err != nil {
		return nil, errors.Wrap(err, "aggregate mae")
	}
	aggMAPE := math.NaN()
	if defined, counts := definedOnly(mape, n); len(defined) > 0 {
		if aggMAPE, err = metrics.WeightedAverage(defined, counts); err != nil {
			return nil, errors.Wrap(err, "aggregate mape")
		}
	}
	total := 0
	for _, c := range n {
		total += c
	}

	res.Labels = append([]string{AggregateLabel}, foldLabels(folds)...)
	res.MSE = append([]float64{aggMSE}, mse...)
	res.MAE = append([]float64{aggMAE}, mae...)
	res.MAPE = append([]float64{aggMAPE}, mape...)
	res.N = append([]int{total}, n...)
	return res, nil
}

// definedOnly drops the NaN values and their counts.
func definedOnly(values []float64, counts []int) ([]float64, []int) {
	var v []float64
	var c []int
	for i, x := range values {
		if !math.IsNaN(x) {
			v = append(v, x)
			c = append(c, counts[i])
		}
	}
	return v, c
}

func foldLabels(folds []Fold) []string {
	out := make([]string, len(folds))
	for i, f := range folds {
		out[i] = f.Label
	}
	return out
}

// Len is the number of entries including the aggregate.
func (r *Result) Len() int { return len(r.Labels) }

// LeaveOneRunOut trains on all runs but one and evaluates on the held-out
// run, once per run. labels name the runs; nil labels become run indices.
func LeaveOneRunOut(factory Factory, xs, ys []mat.Matrix, labels []string) (*Result, error) {
	if len(xs) < 2 {
		return nil, errors.NewValueError("LeaveOneRunOut", fmt.Sprintf("need at least 2 runs, got %d", len(xs)))
	}
	if len(ys) != len(xs) {
		return nil, errors.NewDimensionError("LeaveOneRunOut", len(xs), len(ys), 0)
	}
	if labels == nil {
		labels = make([]string, len(xs))
		for i := range labels {
			labels[i] = fmt.Sprint(i)
		}
	}
	if len(labels) != len(xs) {
		return nil, errors.NewDimensionError("LeaveOneRunOut", len(xs), len(labels), 0)
	}

	logger := log.GetLoggerWithName("validation").With(log.FoldsKey, len(xs))
	folds := make([]Fold, 0, len(xs))
	var importances []float64
	for held := range xs {
		var trainX, trainY []mat.Matrix
		for i := range xs {
			if i != held {
				trainX = append(trainX, xs[i])
				trainY = append(trainY, ys[i])
			}
		}
		X, err := vstack(trainX)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %s", labels[held])
		}
		Y, err := vstack(trainY)
		if err != nil {
			return nil, errors.Wrapf(err, "fold %s", labels[held])
		}

		scores, imp, err := evaluate(factory, X, Y, xs[held], ys[held])
		if err != nil {
			return nil, errors.Wrapf(err, "fold %s", labels[held])
		}
		if imp != nil {
			importances = imp
		}
		logFold(logger, labels[held], scores)
		folds = append(folds, Fold{Label: labels[held], Scores: scores})
	}

	res, err := Aggregate(folds)
	if err != nil {
		return nil, err
	}
	res.Importances = importances
	return res, nil
}

// FromDatasets runs LeaveOneRunOut over the point-layout matrices of datasets.
func FromDatasets(factory Factory, datasets []*dataset.Dataset, labels []string) (*Result, error) {
	xs := make([]mat.Matrix, len(datasets))
	ys := make([]mat.Matrix, len(datasets))
	for i, d := range datasets {
		xs[i], ys[i] = d.Matrices()
	}
	return LeaveOneRunOut(factory, xs, ys, labels)
}

// KFoldCV cross-validates over the rows of a single table. Folds are
// labelled fold-<i>.
func KFoldCV(factory Factory, X, Y mat.Matrix, splitter Splitter) (*Result, error) {
	r, _ := X.Dims()
	if ry, _ := Y.Dims(); ry != r {
		return nil, errors.NewDimensionError("KFoldCV", r, ry, 0)
	}
	if splitter.GetNSplits() > r {
		return nil, errors.NewValueError("KFoldCV", fmt.Sprintf("%d splits exceed %d samples", splitter.GetNSplits(), r))
	}

	logger := log.GetLoggerWithName("validation").With(log.FoldsKey, splitter.GetNSplits())
	var folds []Fold
	var importances []float64
	for i, f := range splitter.Split(X, Y) {
		label := fmt.Sprintf("fold-%d", i)
		scores, imp, err := evaluate(factory,
			rows(X, f.TrainIndices), rows(Y, f.TrainIndices),
			rows(X, f.TestIndices), rows(Y, f.TestIndices))
		if err != nil {
			return nil, errors.Wrapf(err, "fold %s", label)
		}
		if imp != nil {
			importances = imp
		}
		logFold(logger, label, scores)
		folds = append(folds, Fold{Label: label, Scores: scores})
	}

	res, err := Aggregate(folds)
	if err != nil {
		return nil, err
	}
	res.Importances = importances
	return res, nil
}

// evaluate fits a fresh model and scores it. Target-aware models see the
// test targets.
func evaluate(factory Factory, trainX, trainY, testX, testY mat.Matrix) (metrics.Scores, []float64, error) {
	m, err := factory()
	if err != nil {
		return metrics.Scores{}, nil, err
	}
	if err := m.Fit(trainX, trainY); err != nil {
		return metrics.Scores{}, nil, err
	}

	var pred mat.Matrix
	if ta, ok := m.(model.TargetAwarePredictor); ok {
		pred, err = ta.PredictWithTargets(testX, testY)
	} else {
		pred, err = m.Predict(testX)
	}
	if err != nil {
		return metrics.Scores{}, nil, err
	}

	scores, err := metrics.Evaluate(testY, pred)
	if err != nil {
		return metrics.Scores{}, nil, err
	}
	var imp []float64
	if fi, ok := m.(model.FeatureImporter); ok {
		imp = fi.FeatureImportances()
	}
	return scores, imp, nil
}

func logFold(logger log.Logger, label string, s metrics.Scores) {
	logger.Info("Fold evaluated",
		log.PhaseKey, log.PhaseValidation,
		log.FoldKey, label,
		log.SamplesKey, s.N,
		log.MSEKey, s.MSE,
		log.MAEKey, s.MAE,
		log.MAPEKey, s.MAPE,
	)
}

// vstack concatenates matrices by rows.
func vstack(ms []mat.Matrix) (*mat.Dense, error) {
	total, cols := 0, -1
	for _, m := range ms {
		r, c := m.Dims()
		if cols >= 0 && c != cols {
			return nil, errors.NewDimensionError("vstack", cols, c, 1)
		}
		cols = c
		total += r
	}
	if total == 0 || cols <= 0 {
		return nil, errors.Wrap(errors.ErrEmptyData, "vstack")
	}
	out := mat.NewDense(total, cols, nil)
	at := 0
	for _, m := range ms {
		r, _ := m.Dims()
		if r == 0 {
			continue
		}
		out.Slice(at, at+r, 0, cols).(*mat.Dense).Copy(m)
		at += r
	}
	return out, nil
}

// rows copies the given rows of m.
func rows(m mat.Matrix, idx []int) *mat.Dense {
	_, c := m.Dims()
	out := mat.NewDense(len(idx), c, nil)
	for k, i := range idx {
		for j := 0; j < c; j++ {
			out.Set(k, j, m.At(i, j))
		}
	}
	return out
}
