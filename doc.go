// Package venusml evaluates regression models on multi-run experiment data.
//
// Each input file holds one or more experimental runs. Models are compared by
// leave-one-run-out cross-validation: every run is held out once, a fresh
// model is trained on the others, and per-run and sample-weighted aggregate
// MSE, MAE and MAPE are reported. Results are memoized by their parameter
// string so repeated invocations skip work that was already done.
//
// # Installation
//
//	go get github.com/venus-lab/venusml
//
// # Command Line
//
//	venuscv -files run_a.csv,run_b.csv.xz -predict fcv1_i knn -num_neighbors 5
//	venuscv -files data.parquet -store sqlite tree -max_depth 4 -importance
//	venuscv -files a.csv,b.csv cheat
//
// # Library
//
//	factory, err := estimator.Factory(estimator.Spec{
//	    Type: estimator.KNN,
//	    KNN:  &neighbors.Config{NumNeighbors: 5},
//	})
//	if err != nil {
//	    log.Fatal(err)
//	}
//	res, err := validation.FromDatasets(factory, datasets, labels)
//
// # Packages
//
//   - table: columnar tables loaded from CSV, xz-compressed CSV and Parquet
//   - preprocessing: scalers and table transforms
//   - dataset: input/output views over tables, with optional time windows
//   - neighbors: weighted k-nearest-neighbour regression
//   - ensemble: gradient-boosted regression trees
//   - baseline: the last-target baseline
//   - nn, train: multilayer perceptrons and their training loop
//   - estimator: model construction from a typed spec
//   - validation: leave-one-run-out and k-fold cross-validation
//   - metrics: regression metrics
//   - memo: CSV and SQLite result stores
//   - experiment: the CLI configuration and the run pipeline
//   - core/model, core/parallel: shared estimator and concurrency helpers
//   - pkg/errors, pkg/log: error types and structured logging
package venusml
