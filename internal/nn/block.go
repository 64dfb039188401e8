package nn

import (
	"math/rand"

	"volant/internal/model"
	"volant/internal/symmetry"
)

// Block is one residual unit: conv, gate, conv, skip add, gate. The skip
// addition requires matching input/output representations; the mismatch is a
// construction-time error. Sequence length is preserved throughout.
type Block struct {
	layout symmetry.Layout
	conv1  *Kernel
	conv2  *Kernel
	gate1  *Gate
	gate2  *Gate
}

func NewBlock(in, out symmetry.Layout, size int, rng *rand.Rand) (*Block, error) {
	if in != out {
		return nil, model.Configf("skip addition requires matching representations: in=%+v out=%+v", in, out)
	}
	conv1, err := NewKernel(in, out, size, rng)
	if err != nil {
		return nil, err
	}
	conv2, err := NewKernel(out, out, size, rng)
	if err != nil {
		return nil, err
	}
	return &Block{
		layout: out,
		conv1:  conv1,
		conv2:  conv2,
		gate1:  NewGate(out),
		gate2:  NewGate(out),
	}, nil
}

// BlockParamCount is the free-parameter count of one residual block.
func BlockParamCount(layout symmetry.Layout, size int) int {
	return 2 * KernelParamCount(layout, layout, size)
}

func (b *Block) Forward(x [][]float64) [][]float64 {
	h := b.conv2.Forward(b.gate1.Forward(b.conv1.Forward(x)))
	sum := make([][]float64, len(x))
	for t := range x {
		row := make([]float64, len(x[t]))
		for c := range row {
			row[c] = h[t][c] + x[t][c]
		}
		sum[t] = row
	}
	return b.gate2.Forward(sum)
}

func (b *Block) Backward(dY [][]float64) [][]float64 {
	dSum := b.gate2.Backward(dY)
	dX := b.conv1.Backward(b.gate1.Backward(b.conv2.Backward(dSum)))
	for t := range dX {
		for c := range dX[t] {
			dX[t][c] += dSum[t][c]
		}
	}
	return dX
}

func (b *Block) Params() []Param {
	return append(b.conv1.Params(), b.conv2.Params()...)
}

func (b *Block) ZeroGrad() {
	b.conv1.ZeroGrad()
	b.conv2.ZeroGrad()
}
