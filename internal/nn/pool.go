package nn

import (
	"math"

	"volant/internal/symmetry"
)

// invariantPool collapses a series to one invariant feature per channel
// group: the time-mean of each scalar channel and the time-mean norm of
// each vector channel. The pooled vector has Scalars+Vectors entries and
// transforms trivially under the group, so the dense head after it needs no
// constraint.
type invariantPool struct {
	layout symmetry.Layout
	x      [][]float64
}

func newInvariantPool(layout symmetry.Layout) *invariantPool {
	return &invariantPool{layout: layout}
}

// PooledWidth is the invariant feature count the dense head receives.
func PooledWidth(layout symmetry.Layout) int {
	return layout.Scalars + layout.Vectors
}

func (p *invariantPool) Forward(x [][]float64) []float64 {
	p.x = x
	d := p.layout.Group.VectorDim()
	steps := float64(len(x))
	out := make([]float64, PooledWidth(p.layout))
	for _, row := range x {
		for s := 0; s < p.layout.Scalars; s++ {
			out[s] += row[s]
		}
		for v := 0; v < p.layout.Vectors; v++ {
			off := p.layout.VectorOffset(v)
			norm := 0.0
			for a := 0; a < d; a++ {
				norm += row[off+a] * row[off+a]
			}
			out[p.layout.Scalars+v] += math.Sqrt(norm)
		}
	}
	for i := range out {
		out[i] /= steps
	}
	return out
}

func (p *invariantPool) Backward(dP []float64) [][]float64 {
	d := p.layout.Group.VectorDim()
	steps := float64(len(p.x))
	dX := make([][]float64, len(p.x))
	for t, row := range p.x {
		grad := make([]float64, len(row))
		for s := 0; s < p.layout.Scalars; s++ {
			grad[s] = dP[s] / steps
		}
		for v := 0; v < p.layout.Vectors; v++ {
			off := p.layout.VectorOffset(v)
			norm := 0.0
			for a := 0; a < d; a++ {
				norm += row[off+a] * row[off+a]
			}
			norm = math.Sqrt(norm)
			if norm < normEps {
				continue
			}
			scale := dP[p.layout.Scalars+v] / (steps * norm)
			for a := 0; a < d; a++ {
				grad[off+a] = scale * row[off+a]
			}
		}
		dX[t] = grad
	}
	return dX
}
