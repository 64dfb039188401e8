package nn

import (
	"math"
	"math/rand"

	"volant/internal/model"
	"volant/internal/symmetry"
)

// Param exposes one parameter slice together with its gradient accumulator,
// for optimizers that walk a model's parameters.
type Param struct {
	W []float64
	G []float64
}

// vectorCoeffs is the dimension of the commutant of the group action on one
// vector-to-vector kernel block: span{I, J} for planar rotations, span{I}
// for spatial rotations. Scalar blocks are unconstrained, scalar/vector
// cross blocks are identically zero.
func vectorCoeffs(g symmetry.Group) int {
	switch g {
	case symmetry.SE2:
		return 2
	case symmetry.SE3:
		return 1
	default:
		return 0
	}
}

// Kernel is a temporal convolution whose channel-mixing taps are restricted
// to the subspace commuting with the group action on (in, out). For
// symmetry.None it degrades to an ordinary dense convolution tap. Bias terms
// exist on scalar output channels only; a vector bias would break
// equivariance. Same-padding preserves sequence length, so size must be odd.
type Kernel struct {
	in, out symmetry.Layout
	size    int
	pad     int
	coeffs  int

	weights []float64
	grads   []float64

	x [][]float64 // input cache for Backward
}

// NewKernel returns a parameterized linear map restricted to the
// group-equivariant kernel subspace. Layout incompatibilities are
// construction-time errors.
func NewKernel(in, out symmetry.Layout, size int, rng *rand.Rand) (*Kernel, error) {
	if in.Group != out.Group {
		return nil, model.Configf("kernel representations belong to different groups: in=%s out=%s", in.Group, out.Group)
	}
	if size < 1 || size%2 == 0 {
		return nil, model.Configf("kernel size must be odd and >= 1, got %d", size)
	}
	k := &Kernel{
		in:     in,
		out:    out,
		size:   size,
		pad:    size / 2,
		coeffs: vectorCoeffs(in.Group),
	}
	count := KernelParamCount(in, out, size)
	k.weights = make([]float64, count)
	k.grads = make([]float64, count)
	if rng != nil {
		scale := 1.0 / math.Sqrt(float64(size*in.Width()))
		taps := count - out.Scalars // biases stay zero
		for i := 0; i < taps; i++ {
			k.weights[i] = rng.NormFloat64() * scale
		}
	}
	return k, nil
}

// KernelParamCount is the number of free parameters of a steerable kernel
// between the given layouts; it is a pure function of the configuration.
func KernelParamCount(in, out symmetry.Layout, size int) int {
	coeffs := vectorCoeffs(in.Group)
	return size*out.Scalars*in.Scalars + size*out.Vectors*in.Vectors*coeffs + out.Scalars
}

func (k *Kernel) scalarIdx(tap, o, i int) int {
	return (tap*k.out.Scalars+o)*k.in.Scalars + i
}

func (k *Kernel) vectorIdx(tap, ov, iv, c int) int {
	base := k.size * k.out.Scalars * k.in.Scalars
	return base + ((tap*k.out.Vectors+ov)*k.in.Vectors+iv)*k.coeffs + c
}

func (k *Kernel) biasIdx(o int) int {
	return k.size*k.out.Scalars*k.in.Scalars + k.size*k.out.Vectors*k.in.Vectors*k.coeffs + o
}

func (k *Kernel) Forward(x [][]float64) [][]float64 {
	k.x = x
	steps := len(x)
	d := k.in.Group.VectorDim()
	y := make([][]float64, steps)
	for t := 0; t < steps; t++ {
		row := make([]float64, k.out.Width())
		for o := 0; o < k.out.Scalars; o++ {
			acc := k.weights[k.biasIdx(o)]
			for tap := 0; tap < k.size; tap++ {
				tt := t + tap - k.pad
				if tt < 0 || tt >= steps {
					continue
				}
				for i := 0; i < k.in.Scalars; i++ {
					acc += k.weights[k.scalarIdx(tap, o, i)] * x[tt][i]
				}
			}
			row[o] = acc
		}
		for ov := 0; ov < k.out.Vectors; ov++ {
			off := k.out.VectorOffset(ov)
			for tap := 0; tap < k.size; tap++ {
				tt := t + tap - k.pad
				if tt < 0 || tt >= steps {
					continue
				}
				for iv := 0; iv < k.in.Vectors; iv++ {
					ioff := k.in.VectorOffset(iv)
					c0 := k.weights[k.vectorIdx(tap, ov, iv, 0)]
					if k.coeffs == 2 {
						c1 := k.weights[k.vectorIdx(tap, ov, iv, 1)]
						row[off] += c0*x[tt][ioff] - c1*x[tt][ioff+1]
						row[off+1] += c0*x[tt][ioff+1] + c1*x[tt][ioff]
					} else {
						for a := 0; a < d; a++ {
							row[off+a] += c0 * x[tt][ioff+a]
						}
					}
				}
			}
		}
		y[t] = row
	}
	return y
}

// Backward consumes the upstream gradient, accumulates parameter gradients,
// and returns the gradient with respect to the cached input.
func (k *Kernel) Backward(dY [][]float64) [][]float64 {
	x := k.x
	steps := len(x)
	d := k.in.Group.VectorDim()
	dX := make([][]float64, steps)
	for t := range dX {
		dX[t] = make([]float64, k.in.Width())
	}
	for t := 0; t < steps; t++ {
		for o := 0; o < k.out.Scalars; o++ {
			g := dY[t][o]
			if g == 0 {
				continue
			}
			k.grads[k.biasIdx(o)] += g
			for tap := 0; tap < k.size; tap++ {
				tt := t + tap - k.pad
				if tt < 0 || tt >= steps {
					continue
				}
				for i := 0; i < k.in.Scalars; i++ {
					idx := k.scalarIdx(tap, o, i)
					k.grads[idx] += g * x[tt][i]
					dX[tt][i] += g * k.weights[idx]
				}
			}
		}
		for ov := 0; ov < k.out.Vectors; ov++ {
			off := k.out.VectorOffset(ov)
			for tap := 0; tap < k.size; tap++ {
				tt := t + tap - k.pad
				if tt < 0 || tt >= steps {
					continue
				}
				for iv := 0; iv < k.in.Vectors; iv++ {
					ioff := k.in.VectorOffset(iv)
					i0 := k.vectorIdx(tap, ov, iv, 0)
					c0 := k.weights[i0]
					if k.coeffs == 2 {
						i1 := k.vectorIdx(tap, ov, iv, 1)
						c1 := k.weights[i1]
						gy0, gy1 := dY[t][off], dY[t][off+1]
						x0, x1 := x[tt][ioff], x[tt][ioff+1]
						k.grads[i0] += gy0*x0 + gy1*x1
						k.grads[i1] += gy1*x0 - gy0*x1
						dX[tt][ioff] += c0*gy0 + c1*gy1
						dX[tt][ioff+1] += c0*gy1 - c1*gy0
					} else {
						for a := 0; a < d; a++ {
							gy := dY[t][off+a]
							k.grads[i0] += gy * x[tt][ioff+a]
							dX[tt][ioff+a] += c0 * gy
						}
					}
				}
			}
		}
	}
	return dX
}

func (k *Kernel) Params() []Param {
	return []Param{{W: k.weights, G: k.grads}}
}

func (k *Kernel) ZeroGrad() {
	for i := range k.grads {
		k.grads[i] = 0
	}
}
