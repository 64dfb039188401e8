package nn

import (
	"math"

	"volant/internal/symmetry"
)

const normEps = 1e-12

// Gate is the pointwise nonlinearity that cannot break equivariance:
// ordinary tanh on scalar channels, norm-based sigmoid gating v * sigma(|v|)
// on vector channels. It has no parameters.
type Gate struct {
	layout symmetry.Layout
	x      [][]float64
}

func NewGate(layout symmetry.Layout) *Gate {
	return &Gate{layout: layout}
}

func (g *Gate) Forward(x [][]float64) [][]float64 {
	g.x = x
	d := g.layout.Group.VectorDim()
	y := make([][]float64, len(x))
	for t, row := range x {
		out := make([]float64, len(row))
		for s := 0; s < g.layout.Scalars; s++ {
			out[s] = math.Tanh(row[s])
		}
		for v := 0; v < g.layout.Vectors; v++ {
			off := g.layout.VectorOffset(v)
			norm := 0.0
			for a := 0; a < d; a++ {
				norm += row[off+a] * row[off+a]
			}
			norm = math.Sqrt(norm)
			gate := sigmoid(norm)
			for a := 0; a < d; a++ {
				out[off+a] = gate * row[off+a]
			}
		}
		y[t] = out
	}
	return y
}

func (g *Gate) Backward(dY [][]float64) [][]float64 {
	d := g.layout.Group.VectorDim()
	dX := make([][]float64, len(g.x))
	for t, row := range g.x {
		out := make([]float64, len(row))
		for s := 0; s < g.layout.Scalars; s++ {
			th := math.Tanh(row[s])
			out[s] = (1 - th*th) * dY[t][s]
		}
		for v := 0; v < g.layout.Vectors; v++ {
			off := g.layout.VectorOffset(v)
			norm := 0.0
			dot := 0.0
			for a := 0; a < d; a++ {
				norm += row[off+a] * row[off+a]
				dot += row[off+a] * dY[t][off+a]
			}
			norm = math.Sqrt(norm)
			gate := sigmoid(norm)
			if norm < normEps {
				for a := 0; a < d; a++ {
					out[off+a] = gate * dY[t][off+a]
				}
				continue
			}
			slope := gate * (1 - gate) * dot / norm
			for a := 0; a < d; a++ {
				out[off+a] = gate*dY[t][off+a] + slope*row[off+a]
			}
		}
		dX[t] = out
	}
	return dX
}

func sigmoid(x float64) float64 {
	return 1 / (1 + math.Exp(-x))
}
