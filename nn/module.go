// Package nn provides a small dense network with manual backpropagation,
// losses and optimizers. It is the model side of the training wrapper.
package nn

import (
	"math"
	"math/rand"

	"gonum.org/v1/gonum/mat"

	"github.com/venus-lab/venusml/pkg/errors"
)

// Param is a trainable tensor and its accumulated gradient.
type Param struct {
	Name  string
	Value *mat.Dense
	Grad  *mat.Dense
}

func newParam(name string, r, c int) *Param {
	return &Param{Name: name, Value: mat.NewDense(r, c, nil), Grad: mat.NewDense(r, c, nil)}
}

// Module is a differentiable function of a batch. Rows are samples.
type Module interface {
	// Forward computes the output and caches what Backward needs.
	Forward(X *mat.Dense) (*mat.Dense, error)

	// Backward accumulates parameter gradients given dLoss/dOutput of the
	// last Forward call.
	Backward(grad *mat.Dense) error

	Parameters() []*Param

	// SetTraining switches between training and inference mode. Inference
	// mode does not cache activations.
	SetTraining(training bool)
}

// MLPConfig describes the layer sizes of an MLP.
type MLPConfig struct {
	InputDim    int   `json:"input_dim"`
	HiddenSizes []int `json:"hidden_sizes"`
	OutputDim   int   `json:"output_dim"`
	Seed        int64 `json:"seed"`
}

// dense is one affine layer, y = xW + b.
type dense struct {
	w, b  *Param
	input *mat.Dense
	pre   *mat.Dense
	relu  bool
}

// MLP is a stack of dense layers with ReLU between them and a linear output.
type MLP struct {
	layers   []*dense
	training bool
}

// NewMLP allocates the layers with Glorot uniform weights and zero biases.
func NewMLP(cfg MLPConfig) (*MLP, error) {
	if cfg.InputDim < 1 {
		return nil, errors.NewValidationError("input_dim", "must be at least 1", cfg.InputDim)
	}
	if cfg.OutputDim < 1 {
		return nil, errors.NewValidationError("output_dim", "must be at least 1", cfg.OutputDim)
	}
	for _, h := range cfg.HiddenSizes {
		if h < 1 {
			return nil, errors.NewValidationError("hidden_sizes", "layer sizes must be at least 1", cfg.HiddenSizes)
		}
	}

	sizes := append([]int{cfg.InputDim}, cfg.HiddenSizes...)
	sizes = append(sizes, cfg.OutputDim)
	rng := rand.New(rand.NewSource(cfg.Seed))

	m := &MLP{training: true}
	for l := 0; l+1 < len(sizes); l++ {
		in, out := sizes[l], sizes[l+1]
		layer := &dense{
			w:    newParam("w", in, out),
			b:    newParam("b", 1, out),
			relu: l+2 < len(sizes),
		}
		limit := math.Sqrt(6.0 / float64(in+out))
		raw := layer.w.Value.RawMatrix().Data
		for i := range raw {
			raw[i] = (rng.Float64()*2 - 1) * limit
		}
		m.layers = append(m.layers, layer)
	}
	return m, nil
}

// Forward runs X through every layer.
func (m *MLP) Forward(X *mat.Dense) (*mat.Dense, error) {
	_, c := X.Dims()
	if in, _ := m.layers[0].w.Value.Dims(); c != in {
		return nil, errors.NewDimensionError("MLP.Forward", in, c, 1)
	}
	h := X
	for _, l := range m.layers {
		r, _ := h.Dims()
		_, out := l.w.Value.Dims()
		pre := mat.NewDense(r, out, nil)
		pre.Mul(h, l.w.Value)
		bias := l.b.Value.RawRowView(0)
		for i := 0; i < r; i++ {
			row := pre.RawRowView(i)
			for j := range row {
				row[j] += bias[j]
			}
		}

		act := pre
		if l.relu {
			act = mat.DenseCopyOf(pre)
			act.Apply(func(_, _ int, v float64) float64 { return math.Max(v, 0) }, act)
		}
		if m.training {
			l.input, l.pre = h, pre
		}
		h = act
	}
	return h, nil
}

// Backward accumulates into each parameter's Grad.
func (m *MLP) Backward(grad *mat.Dense) error {
	if !m.training || m.layers[0].input == nil {
		return errors.NewValueError("MLP.Backward", "no cached forward pass; call Forward in training mode first")
	}
	delta := mat.DenseCopyOf(grad)
	for k := len(m.layers) - 1; k >= 0; k-- {
		l := m.layers[k]
		if l.relu {
			delta.Apply(func(i, j int, v float64) float64 {
				if l.pre.At(i, j) > 0 {
					return v
				}
				return 0
			}, delta)
		}

		var gw mat.Dense
		gw.Mul(l.input.T(), delta)
		l.w.Grad.Add(l.w.Grad, &gw)

		gb := l.b.Grad.RawRowView(0)
		r, _ := delta.Dims()
		for i := 0; i < r; i++ {
			for j, v := range delta.RawRowView(i) {
				gb[j] += v
			}
		}

		if k > 0 {
			var next mat.Dense
			next.Mul(delta, l.w.Value.T())
			delta = &next
		}
	}
	return nil
}

// Parameters returns weights and biases layer by layer.
func (m *MLP) Parameters() []*Param {
	params := make([]*Param, 0, 2*len(m.layers))
	for _, l := range m.layers {
		params = append(params, l.w, l.b)
	}
	return params
}

// SetTraining toggles activation caching.
func (m *MLP) SetTraining(training bool) {
	m.training = training
	if !training {
		for _, l := range m.layers {
			l.input, l.pre = nil, nil
		}
	}
}
