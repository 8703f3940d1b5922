// Package experiment turns command line arguments into a cross-validation
// run: load the run files, build the selected model, validate it leaving one
// run out and record the scores unless an identical experiment exists.
package experiment

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"os"
	"sort"
	"strconv"
	"strings"

	"github.com/venus-lab/venusml/ensemble"
	"github.com/venus-lab/venusml/estimator"
	"github.com/venus-lab/venusml/memo"
	"github.com/venus-lab/venusml/neighbors"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/preprocessing"
	"github.com/venus-lab/venusml/table"
	"github.com/venus-lab/venusml/train"
)

// Defaults of the global flags.
const (
	DefaultPredict    = "fcv1_i"
	DefaultResultsDir = "./results/"
)

// allRuns is the memo value of the runs parameter when no -runs is given.
const allRuns = "all"

// Config is a fully parsed invocation.
type Config struct {
	Files      []string
	Predict    []string
	ResultsDir string
	Store      string
	LogLevel   string
	Runs       table.RunSelector

	// Scaler names the input scaler fitted on the first file and replayed
	// on the others. Empty means none.
	Scaler string

	// Importance prints the tree feature importances after validation.
	Importance bool

	Model estimator.Spec

	// Weights are the named KNN feature weights given with -weight.
	Weights map[string]float64
}

// listFlag is a comma separated list of strings.
type listFlag []string

func (l *listFlag) String() string { return strings.Join(*l, ",") }

func (l *listFlag) Set(v string) error {
	*l = nil
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s != "" {
			*l = append(*l, s)
		}
	}
	return nil
}

// intsFlag is a comma separated list of integers.
type intsFlag []int

func (l *intsFlag) String() string {
	parts := make([]string, len(*l))
	for i, n := range *l {
		parts[i] = strconv.Itoa(n)
	}
	return strings.Join(parts, ",")
}

func (l *intsFlag) Set(v string) error {
	var out []int
	for _, s := range strings.Split(v, ",") {
		if s = strings.TrimSpace(s); s == "" {
			continue
		}
		n, err := strconv.Atoi(s)
		if err != nil {
			return errors.NewValidationError("hidden_sizes", "not an integer", s)
		}
		out = append(out, n)
	}
	*l = out
	return nil
}

// weightFlag collects repeated column=value pairs.
type weightFlag map[string]float64

func (w weightFlag) String() string {
	keys := make([]string, 0, len(w))
	for k := range w {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	parts := make([]string, len(keys))
	for i, k := range keys {
		parts[i] = k + "=" + memo.FormatValue(w[k])
	}
	return strings.Join(parts, ",")
}

func (w weightFlag) Set(v string) error {
	name, value, ok := strings.Cut(v, "=")
	if !ok || strings.TrimSpace(name) == "" {
		return errors.NewValidationError("weight", "expected column=value", v)
	}
	f, err := strconv.ParseFloat(strings.TrimSpace(value), 64)
	if err != nil {
		return errors.NewValidationError("weight", "not a number", v)
	}
	w[strings.TrimSpace(name)] = f
	return nil
}

// binaryFlag binds a bool to a 0|1 valued flag. It takes a separate
// argument, unlike flag.BoolVar.
type binaryFlag struct{ v *bool }

func (b binaryFlag) String() string {
	if b.v != nil && *b.v {
		return "1"
	}
	return "0"
}

func (b binaryFlag) Set(v string) error {
	switch strings.TrimSpace(v) {
	case "1":
		*b.v = true
	case "0":
		*b.v = false
	default:
		return errors.NewValidationError("to_normalize", "must be 0 or 1", v)
	}
	return nil
}

// defaultSpecs holds the configuration of every model type before flags
// and -config are applied.
func defaultSpecs() estimator.Spec {
	tree := ensemble.DefaultConfig()
	mlp := train.DefaultMLPConfig()
	return estimator.Spec{
		KNN:  &neighbors.Config{NumNeighbors: 5},
		Tree: &tree,
		MLP:  &mlp,
	}
}

// Parse reads the global flags, the model subcommand and its flags. Usage
// and flag errors are written to stderr.
func Parse(args []string, stderr io.Writer) (*Config, error) {
	cfg := &Config{}
	files := listFlag{}
	predict := listFlag{DefaultPredict}
	var configPath string

	fs := flag.NewFlagSet("venuscv", flag.ContinueOnError)
	fs.SetOutput(stderr)
	fs.Var(&files, "files", "comma separated run files (.parquet, .csv, .csv.xz), at least 2")
	fs.Var(&predict, "predict", "comma separated columns to predict")
	fs.StringVar(&cfg.ResultsDir, "results", DefaultResultsDir, "directory of the results files")
	fs.StringVar(&cfg.Store, "store", memo.BackendCSV, "result store: csv or sqlite")
	fs.StringVar(&cfg.LogLevel, "log-level", "info", "debug, info, warn or error")
	fs.Var(&cfg.Runs, "runs", "only keep rows whose run_id is in this comma separated list")
	fs.StringVar(&cfg.Scaler, "scaler", "none", "input scaler: none, standard or minmax")
	fs.StringVar(&configPath, "config", "", "JSON file with model hyperparameters")
	fs.Usage = func() {
		fmt.Fprintf(stderr, "usage: venuscv [flags] knn|tree|cheat|mlp [model flags]\n")
		fs.PrintDefaults()
	}
	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	cfg.Files, cfg.Predict = files, predict
	if len(cfg.Files) < 2 {
		return nil, errors.NewValidationError("files", "at least 2 files are required", cfg.Files)
	}
	if len(cfg.Predict) == 0 {
		return nil, errors.NewValidationError("predict", "at least one column is required", cfg.Predict)
	}
	switch cfg.Store {
	case memo.BackendCSV, memo.BackendSQLite:
	default:
		return nil, errors.NewValidationError("store", "must be csv or sqlite", cfg.Store)
	}
	if _, err := preprocessing.ScalerByName(cfg.Scaler); err != nil {
		return nil, err
	}
	if fs.NArg() == 0 {
		fs.Usage()
		return nil, errors.NewValidationError("model", "a model subcommand is required", nil)
	}

	typ, err := estimator.ParseType(fs.Arg(0))
	if err != nil {
		return nil, err
	}
	spec := defaultSpecs()
	if configPath != "" {
		if err := loadSpec(configPath, &spec); err != nil {
			return nil, err
		}
	}
	spec.Type = typ
	if err := cfg.parseModel(&spec, fs.Args()[1:], stderr); err != nil {
		return nil, err
	}
	cfg.Model = spec
	return cfg, nil
}

func loadSpec(path string, spec *estimator.Spec) error {
	f, err := os.Open(path)
	if err != nil {
		return errors.Wrapf(err, "open config %s", path)
	}
	defer f.Close()
	dec := json.NewDecoder(f)
	dec.DisallowUnknownFields()
	if err := dec.Decode(spec); err != nil {
		return errors.Wrapf(err, "decode config %s", path)
	}
	return nil
}

func (c *Config) parseModel(spec *estimator.Spec, args []string, stderr io.Writer) error {
	fs := flag.NewFlagSet(string(spec.Type), flag.ContinueOnError)
	fs.SetOutput(stderr)

	switch spec.Type {
	case estimator.KNN:
		k := spec.KNN
		weights := weightFlag{}
		fs.IntVar(&k.NumNeighbors, "num_neighbors", k.NumNeighbors, "number of neighbours")
		fs.Var(binaryFlag{&k.Normalize}, "to_normalize", "1 to standardize inputs before measuring distance, else 0")
		fs.Var(weights, "weight", "column=value distance weight, repeatable; unnamed columns get 0")
		if err := fs.Parse(args); err != nil {
			return err
		}
		if len(weights) > 0 {
			c.Weights = weights
		}

	case estimator.Tree:
		t := spec.Tree
		fs.BoolVar(&c.Importance, "importance", false, "print the feature importances")
		fs.IntVar(&t.NEstimators, "n_estimators", t.NEstimators, "number of boosting rounds")
		fs.IntVar(&t.MaxDepth, "max_depth", t.MaxDepth, "maximum tree depth, 0 for unlimited")
		fs.IntVar(&t.MaxLeaves, "max_leaves", t.MaxLeaves, "maximum leaves per tree, 0 for unlimited")
		fs.IntVar(&t.MaxBin, "max_bin", t.MaxBin, "histogram bins per feature")
		fs.StringVar(&t.GrowPolicy, "grow_policy", t.GrowPolicy, "depthwise or lossguide")
		fs.Float64Var(&t.LearningRate, "learning_rate", t.LearningRate, "shrinkage per round")
		fs.StringVar(&t.Objective, "objective", t.Objective, strings.Join(ensemble.Objectives, ", "))
		fs.StringVar(&t.TreeMethod, "tree_method", t.TreeMethod, "exact or hist")
		fs.Float64Var(&t.RegAlpha, "reg_alpha", t.RegAlpha, "L1 penalty on leaf weights")
		fs.Float64Var(&t.RegLambda, "reg_lambda", t.RegLambda, "L2 penalty on leaf weights")
		fs.Float64Var(&t.Subsample, "subsample", t.Subsample, "row sampling fraction per tree")
		fs.Float64Var(&t.ColsampleByNode, "colsample_bynode", t.ColsampleByNode, "column sampling fraction per split")
		fs.Float64Var(&t.ColsampleByTree, "colsample_bytree", t.ColsampleByTree, "column sampling fraction per tree")
		fs.IntVar(&t.NumBoostRound, "num_boost_round", t.NumBoostRound, "overrides n_estimators when positive")
		fs.IntVar(&t.NumParallelTree, "num_parallel_tree", t.NumParallelTree, "trees grown per round")
		fs.Int64Var(&t.Seed, "seed", t.Seed, "sampling seed")
		if err := fs.Parse(args); err != nil {
			return err
		}

	case estimator.MLP:
		m := spec.MLP
		hidden := intsFlag(m.HiddenSizes)
		fs.Var(&hidden, "hidden_sizes", "comma separated hidden layer widths")
		fs.Float64Var(&m.LearningRate, "learning_rate", m.LearningRate, "optimizer learning rate")
		fs.StringVar(&m.Optimizer, "optimizer", m.Optimizer, "sgd or adam")
		fs.StringVar(&m.Loss, "loss", m.Loss, "mse or l1")
		fs.Float64Var(&m.ClipNorm, "clip_norm", m.ClipNorm, "gradient norm limit, 0 disables")
		fs.IntVar(&m.Train.Epochs, "epochs", m.Train.Epochs, "training epochs")
		fs.IntVar(&m.Train.BatchSize, "batch_size", m.Train.BatchSize, "mini-batch size")
		fs.StringVar(&m.Train.Device, "device", m.Train.Device, "compute device (cpu)")
		fs.Int64Var(&m.Train.Seed, "seed", m.Train.Seed, "initialisation and shuffling seed")
		if err := fs.Parse(args); err != nil {
			return err
		}
		m.HiddenSizes = hidden

	case estimator.Cheat:
		if err := fs.Parse(args); err != nil {
			return err
		}
	}

	if fs.NArg() != 0 {
		return errors.NewValidationError(string(spec.Type), "unexpected arguments", fs.Args())
	}
	return nil
}

// Params returns the memo parameters of the selected model. KNN weights are
// listed per input column so the key changes when any weight does.
func (c *Config) Params(inputColumns []string) (memo.Params, error) {
	var p memo.Params
	switch c.Model.Type {
	case estimator.KNN:
		k := c.Model.KNN
		p.Add("num_neighbors", k.NumNeighbors)
		p.Add("to_normalize", binaryFlag{&k.Normalize}.String())
		w, err := neighbors.ResolveWeights(inputColumns, c.Weights)
		if err != nil {
			return nil, err
		}
		for j, col := range inputColumns {
			if w == nil {
				p.Add(col, 1.0)
			} else {
				p.Add(col, w[j])
			}
		}
	case estimator.Tree:
		t := c.Model.Tree
		p.Add("n_estimators", t.NEstimators)
		p.Add("max_depth", t.MaxDepth)
		p.Add("max_leaves", t.MaxLeaves)
		p.Add("max_bin", t.MaxBin)
		p.Add("grow_policy", t.GrowPolicy)
		p.Add("learning_rate", t.LearningRate)
		p.Add("objective", t.Objective)
		p.Add("tree_method", t.TreeMethod)
		p.Add("reg_alpha", t.RegAlpha)
		p.Add("reg_lambda", t.RegLambda)
		p.Add("subsample", t.Subsample)
		p.Add("colsample_bynode", t.ColsampleByNode)
		p.Add("colsample_bytree", t.ColsampleByTree)
		p.Add("num_boost_round", t.NumBoostRound)
		p.Add("num_parallel_tree", t.NumParallelTree)
		p.Add("seed", t.Seed)
	case estimator.MLP:
		m := c.Model.MLP
		p.Add("hidden_sizes", m.HiddenSizes)
		p.Add("learning_rate", m.LearningRate)
		p.Add("optimizer", m.Optimizer)
		p.Add("loss", m.Loss)
		p.Add("clip_norm", m.ClipNorm)
		p.Add("epochs", m.Train.Epochs)
		p.Add("batch_size", m.Train.BatchSize)
		p.Add("device", m.Train.Device)
		p.Add("seed", m.Train.Seed)
	}
	// Every record of a results file carries the same fields, so these are
	// always present.
	p.Add("scaler", scalerName(c.Scaler))
	runs := allRuns
	if !c.Runs.IsZero() {
		runs = c.Runs.String()
	}
	p.Add("runs", runs)
	return p, nil
}

func scalerName(name string) string {
	if name == "" {
		return "none"
	}
	return name
}
