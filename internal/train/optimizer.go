package train

import (
	"math"

	"volant/internal/model"
	"volant/internal/nn"
)

// Optimizer consumes accumulated gradients and updates parameters in place.
// One fixed configuration is shared by every candidate of a run so fitness
// comparisons stay fair.
type Optimizer interface {
	Name() string
	Step(params []nn.Param)
}

func NewOptimizer(name string, learningRate float64) (Optimizer, error) {
	if learningRate <= 0 {
		return nil, model.Configf("learning rate must be > 0, got %f", learningRate)
	}
	switch name {
	case "", "adam":
		return &Adam{LR: learningRate, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8}, nil
	case "sgd":
		return &SGD{LR: learningRate}, nil
	default:
		return nil, model.Configf("unknown optimizer: %s", name)
	}
}

type SGD struct {
	LR float64
}

func (*SGD) Name() string { return "sgd" }

func (o *SGD) Step(params []nn.Param) {
	for _, p := range params {
		for i := range p.W {
			p.W[i] -= o.LR * p.G[i]
		}
	}
}

// Adam with bias-corrected moment estimates. Moment buffers are allocated
// on the first step and keyed by parameter-slice order, so an Adam value
// must not be shared between models.
type Adam struct {
	LR    float64
	Beta1 float64
	Beta2 float64
	Eps   float64

	step int
	m    [][]float64
	v    [][]float64
}

func (*Adam) Name() string { return "adam" }

func (o *Adam) Step(params []nn.Param) {
	if o.m == nil {
		o.m = make([][]float64, len(params))
		o.v = make([][]float64, len(params))
		for i, p := range params {
			o.m[i] = make([]float64, len(p.W))
			o.v[i] = make([]float64, len(p.W))
		}
	}
	o.step++
	c1 := 1 - math.Pow(o.Beta1, float64(o.step))
	c2 := 1 - math.Pow(o.Beta2, float64(o.step))
	for i, p := range params {
		m, v := o.m[i], o.v[i]
		for j := range p.W {
			g := p.G[j]
			m[j] = o.Beta1*m[j] + (1-o.Beta1)*g
			v[j] = o.Beta2*v[j] + (1-o.Beta2)*g*g
			p.W[j] -= o.LR * (m[j] / c1) / (math.Sqrt(v[j]/c2) + o.Eps)
		}
	}
}
