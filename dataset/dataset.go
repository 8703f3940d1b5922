// Package dataset turns a table of experiment data into indexable
// (inputs, outputs) samples, optionally as fixed-length time windows.
//
// A Dataset remembers the scaler parameters and transforms it was built with
// so that validation or test tables can be prepared identically via Prepare.
package dataset

import (
	"strings"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
	"github.com/venus-lab/venusml/preprocessing"
	"github.com/venus-lab/venusml/table"
)

// Config describes how a dataset is built.
type Config struct {
	// Path is the source file. Unused by FromTable.
	Path string `json:"path"`

	// InputPrefixes selects predictor columns by name prefix.
	InputPrefixes []string `json:"input_prefixes"`

	// OutputColumns are the predicted columns, matched exactly.
	OutputColumns []string `json:"output_columns"`

	// Runs restricts the rows to some runs. The zero value keeps all rows.
	Runs table.RunSelector `json:"-"`

	Scaler     preprocessing.Scaler      `json:"-"`
	Transforms []preprocessing.Transform `json:"-"`

	// SequenceLength is the window length L. Zero means point samples.
	SequenceLength int `json:"sequence_length"`
}

// Dataset is a prepared, read-only view over a table.
type Dataset struct {
	cfg         Config
	params      *preprocessing.ScaleParams
	table       *table.Table
	inputs      *table.Table
	outputs     *table.Table
	inputNames  []string
	outputNames []string
}

// New loads cfg.Path and builds the dataset.
func New(cfg Config) (*Dataset, error) {
	t, err := table.Load(cfg.Path)
	if err != nil {
		return nil, err
	}
	return FromTable(t, cfg)
}

// FromTable builds the dataset from an already loaded table. The steps run in
// a fixed order: run selection, scaling, then each transform in turn.
func FromTable(t *table.Table, cfg Config) (*Dataset, error) {
	if cfg.SequenceLength < 0 {
		return nil, errors.NewValidationError("sequence_length", "must be non-negative", cfg.SequenceLength)
	}
	if len(cfg.OutputColumns) == 0 {
		return nil, errors.NewValidationError("output_columns", "at least one output column is required", cfg.OutputColumns)
	}

	logger := log.GetLoggerWithName("dataset").With(log.PathKey, cfg.Path)

	t, err := t.SelectRuns(cfg.Runs, table.RunIDColumn)
	if err != nil {
		return nil, err
	}

	d := &Dataset{cfg: cfg}
	if cfg.Scaler != nil {
		if t, d.params, err = cfg.Scaler(t, nil); err != nil {
			return nil, errors.Wrap(err, "scale dataset")
		}
	}
	if t, err = preprocessing.Apply(t, cfg.Transforms...); err != nil {
		return nil, errors.Wrap(err, "transform dataset")
	}
	d.table = t

	for _, name := range cfg.OutputColumns {
		if !t.Has(name) {
			return nil, errors.NewValueError("dataset.FromTable", "no output column "+name)
		}
	}
	d.outputNames = append([]string(nil), cfg.OutputColumns...)

	predicted := make(map[string]bool, len(cfg.OutputColumns))
	for _, name := range cfg.OutputColumns {
		predicted[name] = true
	}
	for _, name := range t.Columns() {
		if predicted[name] || !hasAnyPrefix(name, cfg.InputPrefixes) {
			continue
		}
		d.inputNames = append(d.inputNames, name)
	}

	if d.inputs, err = t.Select(d.inputNames...); err != nil {
		return nil, err
	}
	d.inputs = d.inputs.FillNaN(0)
	if d.outputs, err = t.Select(d.outputNames...); err != nil {
		return nil, err
	}
	d.outputs = d.outputs.FillNaN(0)

	logger.Debug("Dataset prepared",
		log.SamplesKey, d.Len(),
		log.FeaturesKey, len(d.inputNames),
		log.TargetsKey, len(d.outputNames),
		log.SequenceKey, cfg.SequenceLength,
	)
	return d, nil
}

func hasAnyPrefix(name string, prefixes []string) bool {
	for _, p := range prefixes {
		if strings.HasPrefix(name, p) {
			return true
		}
	}
	return false
}

// Len is the number of addressable samples: rows minus the window length,
// never negative.
func (d *Dataset) Len() int {
	n := d.table.Len() - d.cfg.SequenceLength
	if n < 0 {
		return 0
	}
	return n
}

// Rows is the number of rows after preparation.
func (d *Dataset) Rows() int { return d.table.Len() }

// SequenceLength returns the configured window length.
func (d *Dataset) SequenceLength() int { return d.cfg.SequenceLength }

// Item returns sample i. In point mode inputs is 1×F and outputs belong to
// row i. In sequence mode inputs are rows [i, i+L) and outputs belong to row
// i+L.
func (d *Dataset) Item(i int) (*mat.Dense, []float64, error) {
	if i < 0 || i >= d.Len() {
		return nil, nil, errors.NewIndexOutOfRangeError("Dataset.Item", i, d.Len())
	}
	f := len(d.inputNames)
	if f == 0 {
		return nil, nil, errors.NewValueError("Dataset.Item", "no input columns matched the configured prefixes")
	}

	L := d.cfg.SequenceLength
	if L == 0 {
		return mat.NewDense(1, f, d.inputs.Row(i)), d.outputs.Row(i), nil
	}
	window := make([]float64, 0, L*f)
	for r := i; r < i+L; r++ {
		window = append(window, d.inputs.Row(r)...)
	}
	return mat.NewDense(L, f, window), d.outputs.Row(i + L), nil
}

// Features is the flattened width of one sample: L*F, or F in point mode.
func (d *Dataset) Features() int {
	if d.cfg.SequenceLength == 0 {
		return len(d.inputNames)
	}
	return d.cfg.SequenceLength * len(d.inputNames)
}

// Batch returns the samples at indices as matrices, one flattened sample per
// row of X.
func (d *Dataset) Batch(indices []int) (*mat.Dense, *mat.Dense, error) {
	if len(indices) == 0 {
		return nil, nil, errors.NewValueError("Dataset.Batch", "empty batch")
	}
	width := d.Features()
	X := mat.NewDense(len(indices), width, nil)
	Y := mat.NewDense(len(indices), len(d.outputNames), nil)
	for k, i := range indices {
		in, out, err := d.Item(i)
		if err != nil {
			return nil, nil, err
		}
		X.SetRow(k, in.RawMatrix().Data)
		Y.SetRow(k, out)
	}
	return X, Y, nil
}

// Matrices returns every row's inputs and outputs in point layout,
// ignoring SequenceLength.
func (d *Dataset) Matrices() (*mat.Dense, *mat.Dense) {
	return d.inputs.Matrix(), d.outputs.Matrix()
}

// ScaleParams returns the parameters captured by the scaler, or nil.
func (d *Dataset) ScaleParams() *preprocessing.ScaleParams { return d.params }

// InputColumns returns the predictor column names in table order.
func (d *Dataset) InputColumns() []string { return append([]string(nil), d.inputNames...) }

// OutputColumns returns the predicted column names.
func (d *Dataset) OutputColumns() []string { return append([]string(nil), d.outputNames...) }

// Table returns the prepared table.
func (d *Dataset) Table() *table.Table { return d.table }

// ApplyScaler scales t with the parameters captured at construction. Without
// a scaler t is returned unchanged.
func (d *Dataset) ApplyScaler(t *table.Table) (*table.Table, error) {
	if d.cfg.Scaler == nil || d.params == nil {
		return t, nil
	}
	out, _, err := d.cfg.Scaler(t, d.params)
	return out, err
}

// ApplyTransforms runs the configured transforms on t.
func (d *Dataset) ApplyTransforms(t *table.Table) (*table.Table, error) {
	return preprocessing.Apply(t, d.cfg.Transforms...)
}

// Prepare replays scaling and then the transforms on t.
func (d *Dataset) Prepare(t *table.Table) (*table.Table, error) {
	t, err := d.ApplyScaler(t)
	if err != nil {
		return nil, err
	}
	return d.ApplyTransforms(t)
}

// Derive builds a dataset from another table (e.g. a held-out run) prepared
// with this dataset's captured pipeline and the same column selection.
func (d *Dataset) Derive(t *table.Table) (*Dataset, error) {
	prepared, err := d.Prepare(t)
	if err != nil {
		return nil, err
	}
	cfg := d.cfg
	cfg.Runs = table.RunSelector{}
	cfg.Scaler = nil
	cfg.Transforms = nil
	out, err := FromTable(prepared, cfg)
	if err != nil {
		return nil, err
	}
	out.params = d.params
	return out, nil
}
