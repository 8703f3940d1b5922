package experiment

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"gotest.tools/v3/assert"
	is "gotest.tools/v3/assert/cmp"

	"github.com/venus-lab/venusml/estimator"
	"github.com/venus-lab/venusml/memo"
	"github.com/venus-lab/venusml/pkg/errors"
)

func writeRun(t *testing.T, dir, label string, offset float64) string {
	t.Helper()
	var b strings.Builder
	b.WriteString("run_id,heater_a,valve,fcv1_i\n")
	for i := 0; i < 8; i++ {
		x := float64(i) + offset
		fmt.Fprintf(&b, "1,%g,%d,%g\n", x, i%2, 2*x+1)
	}
	path := filepath.Join(dir, "watch_data_"+label+"_processed.csv")
	assert.NilError(t, os.WriteFile(path, []byte(b.String()), 0o644))
	return path
}

func TestParse(t *testing.T) {
	var stderr bytes.Buffer
	cfg, err := Parse([]string{
		"-files", "a.parquet,b.parquet",
		"-predict", "fcv1_i,fcv2_i",
		"-runs", "1,2",
		"tree", "-n_estimators", "7", "-grow_policy", "lossguide", "-importance",
	}, &stderr)
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg.Files, []string{"a.parquet", "b.parquet"})
	assert.DeepEqual(t, cfg.Predict, []string{"fcv1_i", "fcv2_i"})
	assert.DeepEqual(t, cfg.Runs.IDs(), []float64{1, 2})
	assert.Equal(t, cfg.ResultsDir, DefaultResultsDir)
	assert.Equal(t, cfg.Store, memo.BackendCSV)
	assert.Equal(t, cfg.Model.Type, estimator.Tree)
	assert.Equal(t, cfg.Model.Tree.NEstimators, 7)
	assert.Equal(t, cfg.Model.Tree.GrowPolicy, "lossguide")
	assert.Equal(t, cfg.Model.Tree.MaxDepth, 6)
	assert.Assert(t, cfg.Importance)
}

func TestParseKNNWeights(t *testing.T) {
	cfg, err := Parse([]string{
		"-files", "a.csv,b.csv",
		"knn", "-num_neighbors", "3", "-to_normalize", "1", "-weight", "heater_a=2", "-weight", "valve=0.5",
	}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.Equal(t, cfg.Model.KNN.NumNeighbors, 3)
	assert.Assert(t, cfg.Model.KNN.Normalize)
	assert.DeepEqual(t, cfg.Weights, map[string]float64{"heater_a": 2, "valve": 0.5})
	assert.DeepEqual(t, cfg.Predict, []string{DefaultPredict})

	p, err := cfg.Params([]string{"heater_a", "valve", "other"})
	assert.NilError(t, err)
	assert.Equal(t, memo.ParameterString(p), "num_neighbors:3;to_normalize:1;heater_a:2;valve:0.5;other:0;scaler:none;runs:all;")

	_, err = cfg.Params([]string{"heater_a"})
	assert.ErrorContains(t, err, "unknown column")
}

func TestParseConfigFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "mlp.json")
	assert.NilError(t, os.WriteFile(path, []byte(`{"mlp": {"hidden_sizes": [8, 4], "optimizer": "sgd"}}`), 0o644))

	cfg, err := Parse([]string{"-files", "a.csv,b.csv", "-config", path, "mlp", "-epochs", "3"}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.DeepEqual(t, cfg.Model.MLP.HiddenSizes, []int{8, 4})
	assert.Equal(t, cfg.Model.MLP.Optimizer, "sgd")
	assert.Equal(t, cfg.Model.MLP.Train.Epochs, 3)
	assert.Equal(t, cfg.Model.MLP.Train.Device, "cpu")
}

func TestParseErrors(t *testing.T) {
	tests := []struct {
		name string
		args []string
	}{
		{"one file", []string{"-files", "a.csv", "cheat"}},
		{"no model", []string{"-files", "a.csv,b.csv"}},
		{"bad store", []string{"-files", "a.csv,b.csv", "-store", "redis", "cheat"}},
		{"bad runs", []string{"-files", "a.csv,b.csv", "-runs", "1,x", "cheat"}},
		{"bad weight", []string{"-files", "a.csv,b.csv", "knn", "-weight", "heater_a"}},
		{"extra args", []string{"-files", "a.csv,b.csv", "cheat", "extra"}},
		{"bad scaler", []string{"-files", "a.csv,b.csv", "-scaler", "robust", "cheat"}},
		{"bad to_normalize", []string{"-files", "a.csv,b.csv", "knn", "-to_normalize", "yes"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse(tt.args, &bytes.Buffer{})
			assert.Assert(t, err != nil)
		})
	}

	_, err := Parse([]string{"-files", "a.csv,b.csv", "svm"}, &bytes.Buffer{})
	var mt *errors.InvalidModelTypeError
	assert.Assert(t, errors.As(err, &mt))
}

func TestRunMemoizes(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeRun(t, dir, "r1", 0), writeRun(t, dir, "r2", 0.5)}
	results := filepath.Join(dir, "results")
	args := []string{"-files", strings.Join(files, ","), "-results", results, "knn", "-num_neighbors", "2"}

	cfg, err := Parse(args, &bytes.Buffer{})
	assert.NilError(t, err)
	var out bytes.Buffer
	assert.NilError(t, Run(context.Background(), cfg, &out))
	assert.Equal(t, out.String(), "")

	csvPath := filepath.Join(results, "r1_r2_model_knn_cols_fcv1_i.csv")
	raw, err := os.ReadFile(csvPath)
	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Assert(t, is.Len(lines, 2))
	assert.Assert(t, strings.HasPrefix(lines[0], "num_neighbors,to_normalize,heater_a,valve,scaler,runs,Label,MSE,MAE,MAPE,N"))
	assert.Assert(t, strings.HasPrefix(lines[1], "2,0,1,1,none,all,agg,"))
	assert.Assert(t, is.Contains(lines[1], ",r1,"))

	out.Reset()
	assert.NilError(t, Run(context.Background(), cfg, &out))
	assert.Equal(t, out.String(), "skipping\n")

	cfg, err = Parse(append(args, "-num_neighbors", "3"), &bytes.Buffer{})
	assert.NilError(t, err)
	out.Reset()
	assert.NilError(t, Run(context.Background(), cfg, &out))
	assert.Equal(t, out.String(), "")

	raw, err = os.ReadFile(csvPath)
	assert.NilError(t, err)
	assert.Assert(t, is.Len(strings.Split(strings.TrimSpace(string(raw)), "\n"), 3))
}

func TestRunTreeImportanceSQLite(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeRun(t, dir, "r1", 0), writeRun(t, dir, "r2", 0.5), writeRun(t, dir, "r3", 0.25)}
	results := filepath.Join(dir, "not", "yet", "created")
	cfg, err := Parse([]string{
		"-files", strings.Join(files, ","),
		"-results", results,
		"-store", "sqlite",
		"tree", "-n_estimators", "5", "-importance",
	}, &bytes.Buffer{})
	assert.NilError(t, err)

	var out bytes.Buffer
	assert.NilError(t, Run(context.Background(), cfg, &out))
	assert.Assert(t, strings.HasPrefix(out.String(), "["))

	store, err := memo.OpenSQLiteStore(context.Background(), filepath.Join(results, SQLiteFile), "r1_r2_r3_model_tree_cols_fcv1_i")
	assert.NilError(t, err)
	defer store.Close()
	recs, err := store.Records(context.Background())
	assert.NilError(t, err)
	assert.Assert(t, is.Len(recs, 1))
	assert.Equal(t, recs[0][0].Label, "agg")
	assert.Equal(t, recs[0][0].N, 24)

	out.Reset()
	assert.NilError(t, Run(context.Background(), cfg, &out))
	assert.Equal(t, out.String(), "skipping\n")
}

func TestRunCheat(t *testing.T) {
	dir := t.TempDir()
	files := []string{writeRun(t, dir, "a", 0), writeRun(t, dir, "b", 1)}
	cfg, err := Parse([]string{"-files", strings.Join(files, ","), "-results", dir, "cheat"}, &bytes.Buffer{})
	assert.NilError(t, err)
	assert.NilError(t, Run(context.Background(), cfg, &bytes.Buffer{}))

	_, err = os.Stat(filepath.Join(dir, "a_b_model_cheat_cols_fcv1_i.csv"))
	assert.NilError(t, err)
}

func TestRunMissingFile(t *testing.T) {
	dir := t.TempDir()
	cfg, err := Parse([]string{"-files", filepath.Join(dir, "x.csv") + "," + filepath.Join(dir, "y.csv"), "-results", dir, "cheat"}, &bytes.Buffer{})
	assert.NilError(t, err)
	err = Run(context.Background(), cfg, &bytes.Buffer{})
	assert.Assert(t, errors.Is(err, os.ErrNotExist))
}

func TestParseToNormalize(t *testing.T) {
	for _, tt := range []struct {
		value string
		want  bool
	}{{"1", true}, {"0", false}} {
		cfg, err := Parse([]string{"-files", "a.csv,b.csv", "knn", "-to_normalize", tt.value}, &bytes.Buffer{})
		assert.NilError(t, err)
		assert.Equal(t, cfg.Model.KNN.Normalize, tt.want)

		p, err := cfg.Params([]string{"heater_a"})
		assert.NilError(t, err)
		assert.Equal(t, p.Key()[1], tt.value)
	}
}

func TestRunAlternatingRunSelection(t *testing.T) {
	dir := t.TempDir()
	files := strings.Join([]string{writeRun(t, dir, "r1", 0), writeRun(t, dir, "r2", 0.5)}, ",")
	results := filepath.Join(dir, "results")

	for _, model := range []string{"knn", "cheat"} {
		t.Run(model, func(t *testing.T) {
			runs := [][]string{
				{"-runs", "1"},
				nil,
				{"-runs", "1"},
			}
			for i, sel := range runs {
				args := append([]string{"-files", files, "-results", results}, sel...)
				cfg, err := Parse(append(args, model), &bytes.Buffer{})
				assert.NilError(t, err)
				var out bytes.Buffer
				assert.NilError(t, Run(context.Background(), cfg, &out))
				if i < 2 {
					assert.Equal(t, out.String(), "", "run %d", i)
				} else {
					assert.Equal(t, out.String(), "skipping\n")
				}
			}

			raw, err := os.ReadFile(filepath.Join(results, "r1_r2_model_"+model+"_cols_fcv1_i.csv"))
			assert.NilError(t, err)
			lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
			assert.Assert(t, is.Len(lines, 3), "one header and two records")
			width := len(strings.Split(lines[0], ","))
			for _, line := range lines[1:] {
				assert.Equal(t, len(strings.Split(line, ",")), width, line)
			}
			assert.Assert(t, is.Contains(lines[1], ",1,agg,"))
			assert.Assert(t, is.Contains(lines[2], ",all,agg,"))
		})
	}
}

func TestRunScaler(t *testing.T) {
	dir := t.TempDir()
	files := strings.Join([]string{writeRun(t, dir, "r1", 0), writeRun(t, dir, "r2", 0.5)}, ",")
	results := filepath.Join(dir, "results")

	for _, scaler := range []string{"none", "standard"} {
		cfg, err := Parse([]string{"-files", files, "-results", results, "-scaler", scaler, "knn"}, &bytes.Buffer{})
		assert.NilError(t, err)
		var out bytes.Buffer
		assert.NilError(t, Run(context.Background(), cfg, &out))
		assert.Equal(t, out.String(), "")
	}

	raw, err := os.ReadFile(filepath.Join(results, "r1_r2_model_knn_cols_fcv1_i.csv"))
	assert.NilError(t, err)
	lines := strings.Split(strings.TrimSpace(string(raw)), "\n")
	assert.Assert(t, is.Len(lines, 3))
	assert.Assert(t, is.Contains(lines[2], ",standard,all,agg,"))
}
