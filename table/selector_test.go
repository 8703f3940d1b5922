package table

import (
	"flag"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/venus-lab/venusml/pkg/errors"
)

func TestParseRunSelector(t *testing.T) {
	tests := []struct {
		in      string
		want    []float64
		wantErr bool
	}{
		{in: "", want: []float64{}},
		{in: "3", want: []float64{3}},
		{in: "1,2,5", want: []float64{1, 2, 5}},
		{in: " 1 , 2 ", want: []float64{1, 2}},
		{in: "1.5", want: []float64{1.5}},
		{in: "1,,2", wantErr: true},
		{in: "a", wantErr: true},
		{in: "1,b", wantErr: true},
		{in: "NaN", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			sel, err := ParseRunSelector(tt.in)
			if tt.wantErr {
				var invalid *errors.InvalidRunSelectorError
				assert.True(t, errors.As(err, &invalid), "got %v", err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, sel.IDs())
		})
	}
}

func TestRunSelectorMatches(t *testing.T) {
	assert.True(t, RunSelector{}.Matches(42))
	assert.True(t, SingleRun(3).Matches(3))
	assert.False(t, SingleRun(3).Matches(4))
	assert.True(t, RunSet(1, 2, 5).Matches(5))
	assert.False(t, RunSet(1, 2, 5).Matches(3))
	assert.True(t, RunSet().IsZero())
}

func TestRunSelectorString(t *testing.T) {
	assert.Equal(t, "", RunSelector{}.String())
	assert.Equal(t, "3", SingleRun(3).String())
	assert.Equal(t, "1,2.5", RunSet(1, 2.5).String())
}

func TestRunSelectorFlag(t *testing.T) {
	var sel RunSelector
	fs := flag.NewFlagSet("test", flag.ContinueOnError)
	fs.Var(&sel, "runs", "runs to keep")

	require.NoError(t, fs.Parse([]string{"-runs", "2,3"}))
	assert.Equal(t, []float64{2, 3}, sel.IDs())

	fs = flag.NewFlagSet("test", flag.ContinueOnError)
	fs.SetOutput(new(nopWriter))
	fs.Var(&sel, "runs", "runs to keep")
	assert.Error(t, fs.Parse([]string{"-runs", "x"}))
}

type nopWriter struct{}

func (nopWriter) Write(p []byte) (int, error) { return len(p), nil }

func TestSelectRuns(t *testing.T) {
	tbl := sampleTable(t)

	t.Run("zero selector keeps everything", func(t *testing.T) {
		got, err := tbl.SelectRuns(RunSelector{}, "")
		require.NoError(t, err)
		assert.Equal(t, tbl.Len(), got.Len())

		noKey := tbl.Drop(RunIDColumn)
		got, err = noKey.SelectRuns(RunSelector{}, "")
		require.NoError(t, err)
		assert.Equal(t, tbl.Len(), got.Len())
	})

	t.Run("single run", func(t *testing.T) {
		got, err := tbl.SelectRuns(SingleRun(1), "")
		require.NoError(t, err)
		assert.Equal(t, 2, got.Len())
		col, _ := got.Column("fcv1_i")
		assert.Equal(t, []float64{10, 11}, col)
	})

	t.Run("set of runs", func(t *testing.T) {
		got, err := tbl.SelectRuns(RunSet(1, 3), RunIDColumn)
		require.NoError(t, err)
		col, _ := got.Column("fcv1_i")
		assert.Equal(t, []float64{10, 11, 13}, col)
	})

	t.Run("unknown run", func(t *testing.T) {
		got, err := tbl.SelectRuns(SingleRun(9), "")
		require.NoError(t, err)
		assert.Equal(t, 0, got.Len())
	})

	t.Run("custom key column", func(t *testing.T) {
		got, err := tbl.SelectRuns(SingleRun(12), "fcv1_i")
		require.NoError(t, err)
		assert.Equal(t, 1, got.Len())
	})

	t.Run("missing key column", func(t *testing.T) {
		_, err := tbl.Drop(RunIDColumn).SelectRuns(SingleRun(1), "")
		var invalid *errors.InvalidRunSelectorError
		assert.True(t, errors.As(err, &invalid))
	})
}
