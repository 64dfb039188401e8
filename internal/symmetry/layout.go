package symmetry

import (
	"volant/internal/model"
)

// Layout is the representation attached to a layer boundary: how many
// channels transform as invariant scalars and how many as equivariant
// vectors under Group. Channels are flattened scalars-first, then vector
// channels as consecutive VectorDim-blocks.
type Layout struct {
	Group   Group `json:"group"`
	Scalars int   `json:"scalars"`
	Vectors int   `json:"vectors"`
}

// NewLayout validates the channel counts against the group. A malformed
// composition is a construction-time error, never a runtime one.
func NewLayout(g Group, scalars, vectors int) (Layout, error) {
	if scalars < 0 || vectors < 0 {
		return Layout{}, model.Configf("layout channel counts must be >= 0: scalars=%d vectors=%d", scalars, vectors)
	}
	if scalars+vectors == 0 {
		return Layout{}, model.Configf("layout must have at least one channel")
	}
	if vectors > 0 && g.VectorDim() == 0 {
		return Layout{}, model.Configf("group %s admits no vector channels, got %d", g, vectors)
	}
	return Layout{Group: g, Scalars: scalars, Vectors: vectors}, nil
}

// Width is the flattened channel count.
func (l Layout) Width() int {
	return l.Scalars + l.Group.VectorDim()*l.Vectors
}

// VectorOffset is the flattened index of the first component of vector
// channel v.
func (l Layout) VectorOffset(v int) int {
	return l.Scalars + l.Group.VectorDim()*v
}
