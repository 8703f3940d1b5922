// Package train wraps an nn.Module with a loss and an optimizer and runs
// mini-batch training, inference and evaluation over datasets.
package train

import (
	"io"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/core/model"
	"github.com/venus-lab/venusml/nn"
	"github.com/venus-lab/venusml/pkg/errors"
	"github.com/venus-lab/venusml/pkg/log"
)

// DeviceCPU is the only supported compute target.
const DeviceCPU = "cpu"

// Config holds the training loop parameters.
type Config struct {
	Epochs    int    `json:"epochs"`
	BatchSize int    `json:"batch_size"`
	Device    string `json:"device"`
	Seed      int64  `json:"seed"`
}

// DefaultConfig returns 10 epochs of batch size 32 on the CPU.
func DefaultConfig() Config {
	return Config{Epochs: 10, BatchSize: 32, Device: DeviceCPU}
}

// Validate checks the loop parameters.
func (c Config) Validate() error {
	switch {
	case c.Epochs < 1:
		return errors.NewValidationError("epochs", "must be at least 1", c.Epochs)
	case c.BatchSize < 1:
		return errors.NewValidationError("batch_size", "must be at least 1", c.BatchSize)
	case c.Device != DeviceCPU:
		return errors.NewValidationError("device", "only cpu is supported", c.Device)
	}
	return nil
}

// Dataset is what the wrapper needs from a dataset: a sample count and
// flattened batches. *dataset.Dataset satisfies it.
type Dataset interface {
	Len() int
	Batch(indices []int) (*mat.Dense, *mat.Dense, error)
}

// Wrapper drives training of one module.
type Wrapper struct {
	module    nn.Module
	criterion nn.Loss
	optimizer nn.Optimizer
	cfg       Config
	rng       *rand.Rand

	lossHistory []float64
	logger      log.Logger
}

// NewWrapper validates cfg and binds the collaborators.
func NewWrapper(module nn.Module, criterion nn.Loss, optimizer nn.Optimizer, cfg Config) (*Wrapper, error) {
	if module == nil || criterion == nil || optimizer == nil {
		return nil, errors.NewValueError("train.NewWrapper", "module, loss and optimizer are required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &Wrapper{
		module:    module,
		criterion: criterion,
		optimizer: optimizer,
		cfg:       cfg,
		rng:       rand.New(rand.NewSource(cfg.Seed)),
		logger:    log.GetLoggerWithName("train.Wrapper").With(log.DeviceKey, cfg.Device),
	}, nil
}

// Train runs cfg.Epochs passes over ds in shuffled mini-batches and records
// one loss per batch.
func (w *Wrapper) Train(ds Dataset) error {
	n := ds.Len()
	if n == 0 {
		return errors.Wrap(errors.ErrEmptyData, "train")
	}
	indices := make([]int, n)
	for i := range indices {
		indices[i] = i
	}

	w.module.SetTraining(true)
	params := w.module.Parameters()
	for epoch := 0; epoch < w.cfg.Epochs; epoch++ {
		w.rng.Shuffle(n, func(i, j int) { indices[i], indices[j] = indices[j], indices[i] })

		var epochLoss float64
		batches := 0
		for start := 0; start < n; start += w.cfg.BatchSize {
			end := start + w.cfg.BatchSize
			if end > n {
				end = n
			}
			X, Y, err := ds.Batch(indices[start:end])
			if err != nil {
				return err
			}
			out, err := w.module.Forward(X)
			if err != nil {
				return err
			}
			loss, grad, err := w.criterion.Loss(out, Y)
			if err != nil {
				return err
			}
			if err := errors.CheckScalar("training loss", loss, epoch); err != nil {
				return err
			}

			w.optimizer.ZeroGrad(params)
			if err := w.module.Backward(grad); err != nil {
				return err
			}
			if err := w.optimizer.Step(params); err != nil {
				return errors.Wrapf(err, "epoch %d", epoch)
			}

			w.lossHistory = append(w.lossHistory, loss)
			epochLoss += loss
			batches++
		}
		w.logger.Debug("epoch finished",
			log.PhaseKey, log.PhaseTraining,
			log.EpochKey, epoch+1,
			log.LossKey, epochLoss/float64(batches),
		)
	}
	return nil
}

// Predict runs X through the module in inference mode.
func (w *Wrapper) Predict(X *mat.Dense) (*mat.Dense, error) {
	w.module.SetTraining(false)
	defer w.module.SetTraining(true)
	return w.module.Forward(X)
}

// Evaluate returns the loss over every sample of ds.
func (w *Wrapper) Evaluate(ds Dataset) (float64, error) {
	n := ds.Len()
	if n == 0 {
		return 0, errors.Wrap(errors.ErrEmptyData, "evaluate")
	}
	all := make([]int, n)
	for i := range all {
		all[i] = i
	}
	X, Y, err := ds.Batch(all)
	if err != nil {
		return 0, err
	}
	pred, err := w.Predict(X)
	if err != nil {
		return 0, err
	}
	loss, _, err := w.criterion.Loss(pred, Y)
	if err != nil {
		return 0, err
	}
	w.logger.Info("evaluated",
		log.PhaseKey, log.PhaseValidation,
		log.SamplesKey, n,
		log.LossKey, loss,
	)
	return loss, nil
}

// LossHistory returns the per-batch training losses so far.
func (w *Wrapper) LossHistory() []float64 {
	return append([]float64(nil), w.lossHistory...)
}

// paramState is the gob form of one parameter.
type paramState struct {
	Name string
	Rows int
	Cols int
	Data []float64
}

// Save writes the module parameters with gob.
func (w *Wrapper) Save(out io.Writer) error {
	params := w.module.Parameters()
	states := make([]paramState, len(params))
	for i, p := range params {
		r, c := p.Value.Dims()
		states[i] = paramState{Name: p.Name, Rows: r, Cols: c, Data: mat.DenseCopyOf(p.Value).RawMatrix().Data}
	}
	return model.SaveModelToWriter(states, out)
}

// Load restores parameters written by Save into the bound module, which
// must have the same architecture.
func (w *Wrapper) Load(in io.Reader) error {
	var states []paramState
	if err := model.LoadModelFromReader(&states, in); err != nil {
		return err
	}
	params := w.module.Parameters()
	if len(states) != len(params) {
		return errors.NewDimensionError("Wrapper.Load", len(params), len(states), 0)
	}
	for i, p := range params {
		r, c := p.Value.Dims()
		s := states[i]
		if s.Rows != r || s.Cols != c {
			return errors.NewValueError("Wrapper.Load", "parameter "+s.Name+" has a different shape")
		}
		p.Value.Copy(mat.NewDense(r, c, s.Data))
	}
	return nil
}
