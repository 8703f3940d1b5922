package dataset

import (
	"math"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/preprocessing"
	"github.com/venus-lab/venusml/table"
)

// Two runs of five rows; heater_b has a gap.
func watchTable(t *testing.T) *table.Table {
	t.Helper()
	tbl, err := table.New(
		[]string{"run_id", "heater_a", "heater_b", "fcv1_i", "other"},
		[][]float64{
			{1, 1, 10, 100, 9},
			{1, 2, math.NaN(), 200, 9},
			{1, 3, 30, 300, 9},
			{2, 4, 40, 400, 9},
			{2, 5, 50, math.NaN(), 9},
		},
	)
	require.NoError(t, err)
	return tbl
}

func TestFromTablePointMode(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes: []string{"heater_"},
		OutputColumns: []string{"fcv1_i"},
	})
	require.NoError(t, err)

	assert.Equal(t, 5, ds.Len())
	assert.Equal(t, 2, ds.Features())
	assert.Equal(t, []string{"heater_a", "heater_b"}, ds.InputColumns())
	assert.Equal(t, []string{"fcv1_i"}, ds.OutputColumns())

	in, out, err := ds.Item(1)
	require.NoError(t, err)
	r, c := in.Dims()
	assert.Equal(t, 1, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 0.0, in.At(0, 1), "missing input becomes zero")
	assert.Equal(t, []float64{200}, out)

	_, out, err = ds.Item(4)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out, "missing output becomes zero")
}

func TestFromTableSequenceMode(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes:  []string{"heater_"},
		OutputColumns:  []string{"fcv1_i"},
		SequenceLength: 2,
	})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	assert.Equal(t, 4, ds.Features())

	in, out, err := ds.Item(0)
	require.NoError(t, err)
	r, c := in.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, []float64{1, 10}, in.RawRowView(0))
	assert.Equal(t, []float64{2, 0}, in.RawRowView(1))
	assert.Equal(t, []float64{300}, out)

	_, out, err = ds.Item(2)
	require.NoError(t, err)
	assert.Equal(t, []float64{0}, out)
}

func TestItemOutOfRange(t *testing.T) {
	for _, L := range []int{0, 2} {
		ds, err := FromTable(watchTable(t), Config{
			InputPrefixes:  []string{"heater_"},
			OutputColumns:  []string{"fcv1_i"},
			SequenceLength: L,
		})
		require.NoError(t, err)

		for _, i := range []int{-1, ds.Len()} {
			_, _, err := ds.Item(i)
			var oor *errors.IndexOutOfRangeError
			assert.True(t, errors.As(err, &oor), "L=%d i=%d: %v", L, i, err)
		}
	}
}

func TestLenNeverNegative(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes:  []string{"heater_"},
		OutputColumns:  []string{"fcv1_i"},
		SequenceLength: 10,
	})
	require.NoError(t, err)
	assert.Equal(t, 0, ds.Len())
}

func TestOutputsExcludedFromInputs(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes: []string{""},
		OutputColumns: []string{"fcv1_i"},
	})
	require.NoError(t, err)
	assert.NotContains(t, ds.InputColumns(), "fcv1_i")
	assert.Contains(t, ds.InputColumns(), "other")
}

func TestRunSelectionAndScaler(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes: []string{"heater_"},
		OutputColumns: []string{"fcv1_i"},
		Runs:          table.SingleRun(1),
		Scaler:        preprocessing.MinMax("heater_a"),
	})
	require.NoError(t, err)

	assert.Equal(t, 3, ds.Len())
	params := ds.ScaleParams()
	require.NotNil(t, params)
	assert.Equal(t, []float64{1}, params.Center, "scaler is fitted after run selection")
	assert.Equal(t, []float64{2}, params.Scale)

	held, err := watchTable(t).SelectRuns(table.SingleRun(2), "")
	require.NoError(t, err)
	scaled, err := ds.ApplyScaler(held)
	require.NoError(t, err)
	a, _ := scaled.Column("heater_a")
	assert.Equal(t, []float64{1.5, 2}, a)
	assert.Same(t, params, ds.ScaleParams(), "replay must not refit")
}

func TestTransformsRunAfterScaler(t *testing.T) {
	var seen float64
	probe := func(t *table.Table) (*table.Table, error) {
		a, err := t.Column("heater_a")
		if err != nil {
			return nil, err
		}
		seen = a[len(a)-1]
		return t, nil
	}

	_, err := FromTable(watchTable(t), Config{
		InputPrefixes: []string{"heater_"},
		OutputColumns: []string{"fcv1_i"},
		Scaler:        preprocessing.MinMax("heater_a"),
		Transforms:    []preprocessing.Transform{probe, preprocessing.DropColumns("other")},
	})
	require.NoError(t, err)
	assert.Equal(t, 1.0, seen)
}

func TestPrepareReproducesConstruction(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes: []string{"heater_"},
		OutputColumns: []string{"fcv1_i"},
		Scaler:        preprocessing.Standardize("heater_a"),
		Transforms: []preprocessing.Transform{
			preprocessing.Clip("heater_a", -1, 1),
			preprocessing.DropColumns("other"),
		},
	})
	require.NoError(t, err)

	got, err := ds.Prepare(watchTable(t))
	require.NoError(t, err)
	want := ds.Table()
	require.Equal(t, want.Columns(), got.Columns())
	require.Equal(t, want.Len(), got.Len())
	for i := 0; i < want.Len(); i++ {
		for j := range want.Columns() {
			w, g := want.At(i, j), got.At(i, j)
			if math.IsNaN(w) {
				assert.True(t, math.IsNaN(g), "cell (%d, %d)", i, j)
				continue
			}
			assert.InDelta(t, w, g, 1e-12, "cell (%d, %d)", i, j)
		}
	}
}

func TestDeriveAndBatch(t *testing.T) {
	train, err := FromTable(watchTable(t), Config{
		InputPrefixes:  []string{"heater_"},
		OutputColumns:  []string{"fcv1_i"},
		Runs:           table.SingleRun(1),
		Scaler:         preprocessing.Standardize("heater_a", "heater_b"),
		Transforms:     []preprocessing.Transform{preprocessing.DropColumns("other")},
		SequenceLength: 1,
	})
	require.NoError(t, err)

	held, err := train.Derive(watchTable(t))
	require.NoError(t, err)
	assert.Equal(t, 4, held.Len())
	assert.Equal(t, train.InputColumns(), held.InputColumns())
	assert.Same(t, train.ScaleParams(), held.ScaleParams())

	X, Y, err := held.Batch([]int{0, 3})
	require.NoError(t, err)
	r, c := X.Dims()
	assert.Equal(t, 2, r)
	assert.Equal(t, 2, c)
	assert.Equal(t, 200.0, Y.At(0, 0))
	assert.Equal(t, 0.0, Y.At(1, 0))

	_, _, err = held.Batch(nil)
	assert.Error(t, err)
	_, _, err = held.Batch([]int{9})
	assert.Error(t, err)
}

func TestMatrices(t *testing.T) {
	ds, err := FromTable(watchTable(t), Config{
		InputPrefixes:  []string{"heater_"},
		OutputColumns:  []string{"fcv1_i"},
		SequenceLength: 3,
	})
	require.NoError(t, err)
	X, Y := ds.Matrices()
	r, c := X.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 2, c)
	r, c = Y.Dims()
	assert.Equal(t, 5, r)
	assert.Equal(t, 1, c)
}

func TestConfigErrors(t *testing.T) {
	_, err := FromTable(watchTable(t), Config{InputPrefixes: []string{"heater_"}})
	assert.Error(t, err)

	_, err = FromTable(watchTable(t), Config{OutputColumns: []string{"nope"}})
	assert.Error(t, err)

	_, err = FromTable(watchTable(t), Config{OutputColumns: []string{"fcv1_i"}, SequenceLength: -1})
	assert.Error(t, err)
}

func TestNewFromFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "watch_data_x_processed.csv")
	require.NoError(t, os.WriteFile(path, []byte("run_id,heater_a,fcv1_i\n1,1,2\n1,2,3\n"), 0o644))

	ds, err := New(Config{Path: path, InputPrefixes: []string{"heater"}, OutputColumns: []string{"fcv1_i"}})
	require.NoError(t, err)
	assert.Equal(t, 2, ds.Len())

	_, err = New(Config{Path: "watch.txt", OutputColumns: []string{"fcv1_i"}})
	var unsupported *errors.UnsupportedFileFormatError
	assert.True(t, errors.As(err, &unsupported))
}
