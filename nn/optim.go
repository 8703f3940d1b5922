package nn

import (
	"math"

	"github.com/venus-lab/venusml/pkg/errors"
)

// Optimizer updates parameters from their accumulated gradients.
type Optimizer interface {
	ZeroGrad(params []*Param)
	Step(params []*Param) error
}

// zeroGrad clears every gradient.
func zeroGrad(params []*Param) {
	for _, p := range params {
		p.Grad.Zero()
	}
}

// clip rescales all gradients together so their joint L2 norm is at most maxNorm.
func clip(params []*Param, maxNorm float64) {
	if maxNorm <= 0 {
		return
	}
	var flat []float64
	for _, p := range params {
		flat = append(flat, p.Grad.RawMatrix().Data...)
	}
	clipped := errors.ClipGradient(flat, maxNorm)
	off := 0
	for _, p := range params {
		data := p.Grad.RawMatrix().Data
		off += copy(data, clipped[off:off+len(data)])
	}
}

// SGD is plain stochastic gradient descent with optional gradient clipping.
type SGD struct {
	LearningRate float64
	ClipNorm     float64
}

func (o *SGD) ZeroGrad(params []*Param) { zeroGrad(params) }

func (o *SGD) Step(params []*Param) error {
	if len(params) == 0 {
		return nil
	}
	clip(params, o.ClipNorm)
	for _, p := range params {
		v, g := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		for i := range v {
			v[i] -= o.LearningRate * g[i]
		}
	}
	return checkParams(params)
}

// Adam implements Kingma & Ba with bias correction.
type Adam struct {
	LearningRate float64
	Beta1        float64
	Beta2        float64
	Epsilon      float64
	ClipNorm     float64

	t     int
	state map[*Param]*moments
}

type moments struct {
	m, v []float64
}

// NewAdam returns Adam with the usual defaults.
func NewAdam(lr float64) *Adam {
	return &Adam{LearningRate: lr, Beta1: 0.9, Beta2: 0.999, Epsilon: 1e-8}
}

func (o *Adam) ZeroGrad(params []*Param) { zeroGrad(params) }

func (o *Adam) Step(params []*Param) error {
	if len(params) == 0 {
		return nil
	}
	if o.state == nil {
		o.state = make(map[*Param]*moments, len(params))
	}
	clip(params, o.ClipNorm)
	o.t++
	c1 := 1 - math.Pow(o.Beta1, float64(o.t))
	c2 := 1 - math.Pow(o.Beta2, float64(o.t))
	for _, p := range params {
		v, g := p.Value.RawMatrix().Data, p.Grad.RawMatrix().Data
		s, ok := o.state[p]
		if !ok {
			s = &moments{m: make([]float64, len(v)), v: make([]float64, len(v))}
			o.state[p] = s
		}
		for i := range v {
			s.m[i] = o.Beta1*s.m[i] + (1-o.Beta1)*g[i]
			s.v[i] = o.Beta2*s.v[i] + (1-o.Beta2)*g[i]*g[i]
			v[i] -= o.LearningRate * (s.m[i] / c1) / (math.Sqrt(s.v[i]/c2) + o.Epsilon)
		}
	}
	return checkParams(params)
}

func checkParams(params []*Param) error {
	for _, p := range params {
		if err := errors.CheckNumericalStability("optimizer step", p.Value.RawMatrix().Data, 0); err != nil {
			return err
		}
	}
	return nil
}

// NewOptimizer returns "sgd" or "adam" with learning rate lr.
func NewOptimizer(name string, lr, clipNorm float64) (Optimizer, error) {
	if lr <= 0 {
		return nil, errors.NewValidationError("learning_rate", "must be positive", lr)
	}
	switch name {
	case "", "adam":
		a := NewAdam(lr)
		a.ClipNorm = clipNorm
		return a, nil
	case "sgd":
		return &SGD{LearningRate: lr, ClipNorm: clipNorm}, nil
	}
	return nil, errors.NewValidationError("optimizer", "must be sgd or adam", name)
}
