package nn

import (
	"math"
	"math/rand"
)

// Dense is an ordinary fully connected layer. It only ever sees invariant
// (pooled) features, so no equivariance constraint applies.
type Dense struct {
	in, out int
	weights []float64 // out*in taps followed by out biases
	grads   []float64
	x       []float64
}

func NewDense(in, out int, rng *rand.Rand) *Dense {
	d := &Dense{
		in:      in,
		out:     out,
		weights: make([]float64, out*in+out),
		grads:   make([]float64, out*in+out),
	}
	if rng != nil {
		scale := 1.0 / math.Sqrt(float64(in))
		for i := 0; i < out*in; i++ {
			d.weights[i] = rng.NormFloat64() * scale
		}
	}
	return d
}

func DenseParamCount(in, out int) int {
	return out*in + out
}

func (d *Dense) Forward(x []float64) []float64 {
	d.x = x
	y := make([]float64, d.out)
	for o := 0; o < d.out; o++ {
		acc := d.weights[d.out*d.in+o]
		for i := 0; i < d.in; i++ {
			acc += d.weights[o*d.in+i] * x[i]
		}
		y[o] = acc
	}
	return y
}

func (d *Dense) Backward(dY []float64) []float64 {
	dX := make([]float64, d.in)
	for o := 0; o < d.out; o++ {
		g := dY[o]
		d.grads[d.out*d.in+o] += g
		for i := 0; i < d.in; i++ {
			d.grads[o*d.in+i] += g * d.x[i]
			dX[i] += g * d.weights[o*d.in+i]
		}
	}
	return dX
}

func (d *Dense) Params() []Param {
	return []Param{{W: d.weights, G: d.grads}}
}

func (d *Dense) ZeroGrad() {
	for i := range d.grads {
		d.grads[i] = 0
	}
}

// tanhVec is the elementwise tanh between the two dense head layers.
type tanhVec struct {
	x []float64
}

func (a *tanhVec) Forward(x []float64) []float64 {
	a.x = x
	y := make([]float64, len(x))
	for i, v := range x {
		y[i] = math.Tanh(v)
	}
	return y
}

func (a *tanhVec) Backward(dY []float64) []float64 {
	dX := make([]float64, len(a.x))
	for i, v := range a.x {
		th := math.Tanh(v)
		dX[i] = (1 - th*th) * dY[i]
	}
	return dX
}
