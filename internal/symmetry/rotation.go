package symmetry

import (
	"math"

	"volant/internal/model"
)

// Rotation is a dense rotation matrix acting on one vector channel. Scalar
// channels are untouched by rotations.
type Rotation struct {
	dim int
	m   []float64 // row-major dim x dim
}

func (r Rotation) Dim() int {
	return r.dim
}

// RotationSE2 is the planar rotation by theta radians.
func RotationSE2(theta float64) Rotation {
	c, s := math.Cos(theta), math.Sin(theta)
	return Rotation{dim: 2, m: []float64{
		c, -s,
		s, c,
	}}
}

// RotationSE3 composes intrinsic rotations about z, y, x (yaw, pitch, roll).
func RotationSE3(yaw, pitch, roll float64) Rotation {
	cz, sz := math.Cos(yaw), math.Sin(yaw)
	cy, sy := math.Cos(pitch), math.Sin(pitch)
	cx, sx := math.Cos(roll), math.Sin(roll)
	return Rotation{dim: 3, m: []float64{
		cz * cy, cz*sy*sx - sz*cx, cz*sy*cx + sz*sx,
		sz * cy, sz*sy*sx + cz*cx, sz*sy*cx - cz*sx,
		-sy, cy * sx, cy * cx,
	}}
}

// Apply rotates v, returning a fresh slice.
func (r Rotation) Apply(v []float64) []float64 {
	out := make([]float64, r.dim)
	for i := 0; i < r.dim; i++ {
		acc := 0.0
		for j := 0; j < r.dim; j++ {
			acc += r.m[i*r.dim+j] * v[j]
		}
		out[i] = acc
	}
	return out
}

// TransformSeries applies the rotation to every vector channel block of
// every timestep, leaving scalar channels fixed. The input is not modified.
func TransformSeries(series [][]float64, layout Layout, r Rotation) ([][]float64, error) {
	if layout.Vectors > 0 && r.dim != layout.Group.VectorDim() {
		return nil, model.Configf("rotation dimension %d does not match group %s", r.dim, layout.Group)
	}
	width := layout.Width()
	out := make([][]float64, len(series))
	for t, row := range series {
		if len(row) != width {
			return nil, model.Configf("series row %d has width %d, layout wants %d", t, len(row), width)
		}
		next := make([]float64, width)
		copy(next, row)
		for v := 0; v < layout.Vectors; v++ {
			off := layout.VectorOffset(v)
			rotated := r.Apply(row[off : off+r.dim])
			copy(next[off:off+r.dim], rotated)
		}
		out[t] = next
	}
	return out, nil
}
