package experiment

import (
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/venus-lab/venusml/dataset"
	"github.com/venus-lab/venusml/estimator"
	"github.com/venus-lab/venusml/memo"
	"github.com/venus-lab/venusml/neighbors"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
	"github.com/venus-lab/venusml/preprocessing"
	"github.com/venus-lab/venusml/table"
	"github.com/venus-lab/venusml/validation"
)

// SQLiteFile is the database name used by the sqlite store inside the
// results directory.
const SQLiteFile = "experiments.db"

// OpenStore opens the result store selected by cfg.
func OpenStore(ctx context.Context, cfg *Config) (memo.Store, error) {
	path := memo.ResultsPath(cfg.ResultsDir, cfg.Files, string(cfg.Model.Type), cfg.Predict)
	if cfg.Store == memo.BackendSQLite {
		scope := strings.TrimSuffix(filepath.Base(path), ".csv")
		if err := os.MkdirAll(cfg.ResultsDir, 0o755); err != nil {
			return nil, errors.Wrap(err, "create results directory")
		}
		return memo.OpenSQLiteStore(ctx, filepath.Join(cfg.ResultsDir, SQLiteFile), scope)
	}
	return memo.NewCSVStore(path), nil
}

// inputColumns lists every column of t that is neither predicted nor the run key.
func inputColumns(t *table.Table, predict []string) []string {
	skip := map[string]bool{table.RunIDColumn: true}
	for _, p := range predict {
		skip[p] = true
	}
	var cols []string
	for _, c := range t.Columns() {
		if !skip[c] {
			cols = append(cols, c)
		}
	}
	return cols
}

// Run executes one experiment. When the store already holds the same
// parameters it prints "skipping" to stdout and returns nil.
func Run(ctx context.Context, cfg *Config, stdout io.Writer) error {
	logger := log.GetLoggerWithName("experiment").With(log.ModelNameKey, string(cfg.Model.Type))
	start := time.Now()

	store, err := OpenStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer store.Close()

	tables := make([]*table.Table, len(cfg.Files))
	if tables[0], err = loadRun(cfg, cfg.Files[0]); err != nil {
		return err
	}
	inputs := inputColumns(tables[0], cfg.Predict)

	params, err := cfg.Params(inputs)
	if err != nil {
		return err
	}
	seen, err := store.Has(ctx, params.Key())
	if err != nil {
		return err
	}
	if seen {
		logger.Info("Experiment already recorded", log.ParamsKey, memo.ParameterString(params))
		fmt.Fprintln(stdout, "skipping")
		return nil
	}

	for i := 1; i < len(cfg.Files); i++ {
		if tables[i], err = loadRun(cfg, cfg.Files[i]); err != nil {
			return err
		}
	}

	spec := cfg.Model
	if spec.Type == estimator.KNN {
		knn := *spec.KNN
		if knn.Weights, err = neighbors.ResolveWeights(inputs, cfg.Weights); err != nil {
			return err
		}
		spec.KNN = &knn
	}
	factory, err := estimator.Factory(spec)
	if err != nil {
		return err
	}

	if len(inputs) == 0 {
		return errors.NewValueError("experiment.Run", "no input columns in "+cfg.Files[0])
	}
	scaler, err := preprocessing.ScalerByName(cfg.Scaler, inputs...)
	if err != nil {
		return err
	}

	// The first file fits the scaler; the others replay its parameters.
	datasets := make([]*dataset.Dataset, len(tables))
	labels := make([]string, len(tables))
	for i, t := range tables {
		if i == 0 {
			datasets[i], err = dataset.FromTable(t, dataset.Config{
				Path:          cfg.Files[i],
				InputPrefixes: inputs,
				OutputColumns: cfg.Predict,
				Scaler:        scaler,
			})
		} else {
			datasets[i], err = datasets[0].Derive(t)
		}
		if err != nil {
			return errors.Wrapf(err, "prepare %s", cfg.Files[i])
		}
		if got := datasets[i].InputColumns(); len(got) != len(inputs) {
			return errors.NewDimensionError("experiment.Run "+cfg.Files[i], len(inputs), len(got), 1)
		}
		labels[i] = memo.FileLabel(cfg.Files[i])
	}

	res, err := validation.FromDatasets(validation.Factory(factory), datasets, labels)
	if err != nil {
		return err
	}

	rec := memo.Record{Params: params}
	for i := range res.Labels {
		rec.Rows = append(rec.Rows, memo.Row{
			Label: res.Labels[i],
			MSE:   res.MSE[i],
			MAE:   res.MAE[i],
			MAPE:  res.MAPE[i],
			N:     res.N[i],
		})
	}
	if err := store.Append(ctx, rec); err != nil {
		return err
	}

	logger.Info("Experiment finished",
		log.MSEKey, res.MSE[0],
		log.MAEKey, res.MAE[0],
		log.MAPEKey, res.MAPE[0],
		log.SamplesKey, res.N[0],
		log.DurationMsKey, time.Since(start).Milliseconds(),
	)

	if cfg.Importance && spec.Type == estimator.Tree {
		fmt.Fprintln(stdout, res.Importances)
	}
	return nil
}

func loadRun(cfg *Config, path string) (*table.Table, error) {
	t, err := table.Load(path)
	if err != nil {
		return nil, err
	}
	return t.SelectRuns(cfg.Runs, table.RunIDColumn)
}
