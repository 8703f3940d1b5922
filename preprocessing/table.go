package preprocessing

import (
	"math"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
	"github.com/venus-lab/venusml/table"
)

// Scaling methods recorded in ScaleParams.
const (
	MethodStandard = "standard"
	MethodMinMax   = "minmax"
)

// ScaleParams are the per-column parameters captured when a scaler is fitted.
// For MethodStandard Center is the mean and Scale the standard deviation, for
// MethodMinMax Center is the minimum and Scale the range.
type ScaleParams struct {
	Method  string    `json:"method"`
	Columns []string  `json:"columns"`
	Center  []float64 `json:"center"`
	Scale   []float64 `json:"scale"`
}

// Scaler scales the numeric columns of a table. With nil params it fits new
// parameters from t and returns them, otherwise it applies params as given.
type Scaler func(t *table.Table, params *ScaleParams) (*table.Table, *ScaleParams, error)

// Transform is a pure table-to-table function applied after scaling.
type Transform func(t *table.Table) (*table.Table, error)

// Standardize returns a Scaler that standardizes columns. With no columns it
// scales every column except table.RunIDColumn.
func Standardize(columns ...string) Scaler {
	return func(t *table.Table, params *ScaleParams) (*table.Table, *ScaleParams, error) {
		if params != nil {
			s, err := NewStandardScalerFromParams(params.Center, params.Scale)
			if err != nil {
				return nil, nil, err
			}
			return applyParams(t, params, s)
		}
		cols := scaleColumns(t, columns)
		s := NewStandardScalerDefault()
		out, err := fitColumns(t, cols, s)
		if err != nil {
			return nil, nil, err
		}
		return out, &ScaleParams{Method: MethodStandard, Columns: cols, Center: s.Mean, Scale: s.Scale}, nil
	}
}

// MinMax returns a Scaler that maps columns onto [0, 1]. With no columns it
// scales every column except table.RunIDColumn.
func MinMax(columns ...string) Scaler {
	return func(t *table.Table, params *ScaleParams) (*table.Table, *ScaleParams, error) {
		if params != nil {
			m, err := NewMinMaxScalerFromParams(params.Center, params.Scale, [2]float64{0, 1})
			if err != nil {
				return nil, nil, err
			}
			return applyParams(t, params, m)
		}
		cols := scaleColumns(t, columns)
		m := NewMinMaxScalerDefault()
		out, err := fitColumns(t, cols, m)
		if err != nil {
			return nil, nil, err
		}
		return out, &ScaleParams{Method: MethodMinMax, Columns: cols, Center: m.DataMin, Scale: m.Scale}, nil
	}
}

// ScalerByName resolves a scaler from configuration. The empty name means no
// scaling and returns nil.
func ScalerByName(name string, columns ...string) (Scaler, error) {
	switch name {
	case "", "none":
		return nil, nil
	case MethodStandard:
		return Standardize(columns...), nil
	case MethodMinMax:
		return MinMax(columns...), nil
	default:
		return nil, errors.NewValidationError("scaler", "must be one of none, standard, minmax", name)
	}
}

func scaleColumns(t *table.Table, columns []string) []string {
	if len(columns) > 0 {
		return columns
	}
	return t.Drop(table.RunIDColumn).Columns()
}

func fitColumns(t *table.Table, cols []string, tr model.Transformer) (*table.Table, error) {
	if len(cols) == 0 {
		return t, nil
	}
	sub, err := t.Select(cols...)
	if err != nil {
		return nil, err
	}
	scaled, err := tr.FitTransform(sub.Matrix())
	if err != nil {
		return nil, err
	}
	log.GetLoggerWithName("preprocessing.Scaler").Debug("Scaler fitted",
		log.PhaseKey, log.PhasePreprocessing,
		log.OperationKey, log.OperationFit,
		log.ColumnsKey, cols,
		log.SamplesKey, t.Len(),
	)
	return writeBack(t, cols, scaled)
}

func applyParams(t *table.Table, params *ScaleParams, tr model.Transformer) (*table.Table, *ScaleParams, error) {
	if len(params.Columns) != len(params.Center) {
		return nil, nil, errors.NewDimensionError("Scaler", len(params.Columns), len(params.Center), 1)
	}
	if len(params.Columns) == 0 || t.Len() == 0 {
		return t, params, nil
	}
	sub, err := t.Select(params.Columns...)
	if err != nil {
		return nil, nil, err
	}
	scaled, err := tr.Transform(sub.Matrix())
	if err != nil {
		return nil, nil, err
	}
	out, err := writeBack(t, params.Columns, scaled)
	if err != nil {
		return nil, nil, err
	}
	return out, params, nil
}

func writeBack(t *table.Table, cols []string, scaled mat.Matrix) (*table.Table, error) {
	out := t
	for j, name := range cols {
		values := make([]float64, t.Len())
		for i := range values {
			values[i] = scaled.At(i, j)
		}
		var err error
		if out, err = out.With(name, values); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// DropColumns removes the named columns. Unknown names are ignored.
func DropColumns(names ...string) Transform {
	return func(t *table.Table) (*table.Table, error) {
		return t.Drop(names...), nil
	}
}

// FillMissing replaces every NaN with v.
func FillMissing(v float64) Transform {
	return func(t *table.Table) (*table.Table, error) {
		return t.FillNaN(v), nil
	}
}

// Clip bounds the values of column to [lo, hi]. NaN is left as is.
func Clip(column string, lo, hi float64) Transform {
	return func(t *table.Table) (*table.Table, error) {
		if lo > hi {
			return nil, errors.NewValidationError("clip", "lower bound exceeds upper bound", [2]float64{lo, hi})
		}
		return t.Map(column, func(v float64) float64 {
			if math.IsNaN(v) {
				return v
			}
			return math.Max(lo, math.Min(hi, v))
		})
	}
}

// Lag adds column name holding column shifted down by steps rows. Rows
// without a predecessor in the same run are NaN. When the table has no
// table.RunIDColumn the whole table is one run.
func Lag(column string, steps int, name string) Transform {
	return func(t *table.Table) (*table.Table, error) {
		if steps < 1 {
			return nil, errors.NewValidationError("lag", "steps must be positive", steps)
		}
		src, err := t.Column(column)
		if err != nil {
			return nil, err
		}
		var runs []float64
		if t.Has(table.RunIDColumn) {
			runs, _ = t.Column(table.RunIDColumn)
		}
		lagged := make([]float64, len(src))
		for i := range lagged {
			lagged[i] = math.NaN()
			if i < steps {
				continue
			}
			if runs != nil && runs[i] != runs[i-steps] {
				continue
			}
			lagged[i] = src[i-steps]
		}
		return t.With(name, lagged)
	}
}

// Apply runs transforms in order.
func Apply(t *table.Table, transforms ...Transform) (*table.Table, error) {
	var err error
	for _, tr := range transforms {
		if t, err = tr(t); err != nil {
			return nil, err
		}
	}
	return t, nil
}
