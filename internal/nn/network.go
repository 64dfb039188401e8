package nn

import (
	"math/rand"

	"volant/internal/model"
	"volant/internal/symmetry"
)

// Network is one realized candidate: input embedding, a stack of residual
// blocks, invariant global pooling, and a dense classifier head emitting
// per-class logits.
type Network struct {
	genome  model.Genome
	group   symmetry.Group
	input   symmetry.Layout
	hidden  symmetry.Layout
	classes int

	embed     *Kernel
	embedGate *Gate
	blocks    []*Block
	pool      *invariantPool
	fc1       *Dense
	act       *tanhVec
	fc2       *Dense
}

// HiddenLayout is the internal representation a genome's kernel width maps
// to: width scalar channels for the plain variant, width scalar plus width
// vector channels for the equivariant variants.
func HiddenLayout(g symmetry.Group, width int) (symmetry.Layout, error) {
	if g == symmetry.None {
		return symmetry.NewLayout(g, width, 0)
	}
	return symmetry.NewLayout(g, width, width)
}

func validateGenome(genome model.Genome, input symmetry.Layout, classes int) (symmetry.Group, error) {
	group, err := symmetry.ParseGroup(genome.Symmetry)
	if err != nil {
		return symmetry.None, model.Configf("genome %s: %v", genome.ID, err)
	}
	if input.Group != group {
		return symmetry.None, model.Configf("genome %s wants %s but input representation is %s", genome.ID, group, input.Group)
	}
	if genome.NumBlocks < 1 {
		return symmetry.None, model.Configf("genome %s: num_blocks must be >= 1, got %d", genome.ID, genome.NumBlocks)
	}
	if genome.KernelSize < 1 || genome.KernelSize%2 == 0 {
		return symmetry.None, model.Configf("genome %s: kernel_size must be odd and >= 1, got %d", genome.ID, genome.KernelSize)
	}
	if genome.KernelWidth < 1 {
		return symmetry.None, model.Configf("genome %s: kernel_width must be >= 1, got %d", genome.ID, genome.KernelWidth)
	}
	if genome.FCWidth < 1 {
		return symmetry.None, model.Configf("genome %s: fc_width must be >= 1, got %d", genome.ID, genome.FCWidth)
	}
	if classes < 2 {
		return symmetry.None, model.Configf("classifier needs at least 2 classes, got %d", classes)
	}
	return group, nil
}

// Build assembles a trainable network from a genome. Weight initialization
// is drawn from rng, so construction is deterministic under a fixed seed;
// the parameter count is a pure function of (genome, input, classes).
func Build(genome model.Genome, input symmetry.Layout, classes int, rng *rand.Rand) (*Network, error) {
	group, err := validateGenome(genome, input, classes)
	if err != nil {
		return nil, err
	}
	hidden, err := HiddenLayout(group, genome.KernelWidth)
	if err != nil {
		return nil, err
	}

	embed, err := NewKernel(input, hidden, 1, rng)
	if err != nil {
		return nil, err
	}
	blocks := make([]*Block, 0, genome.NumBlocks)
	for i := 0; i < genome.NumBlocks; i++ {
		block, err := NewBlock(hidden, hidden, genome.KernelSize, rng)
		if err != nil {
			return nil, err
		}
		blocks = append(blocks, block)
	}

	return &Network{
		genome:    genome,
		group:     group,
		input:     input,
		hidden:    hidden,
		classes:   classes,
		embed:     embed,
		embedGate: NewGate(hidden),
		blocks:    blocks,
		pool:      newInvariantPool(hidden),
		fc1:       NewDense(PooledWidth(hidden), genome.FCWidth, rng),
		act:       &tanhVec{},
		fc2:       NewDense(genome.FCWidth, classes, rng),
	}, nil
}

// ParamCount is deterministic given the genome: it never instantiates
// weights, so the search can check the memory budget before training.
func ParamCount(genome model.Genome, input symmetry.Layout, classes int) (int, error) {
	group, err := validateGenome(genome, input, classes)
	if err != nil {
		return 0, err
	}
	hidden, err := HiddenLayout(group, genome.KernelWidth)
	if err != nil {
		return 0, err
	}
	count := KernelParamCount(input, hidden, 1)
	count += genome.NumBlocks * BlockParamCount(hidden, genome.KernelSize)
	count += DenseParamCount(PooledWidth(hidden), genome.FCWidth)
	count += DenseParamCount(genome.FCWidth, classes)
	return count, nil
}

// MemoryBytes is the parameter storage footprint: 8 bytes per float64.
func MemoryBytes(genome model.Genome, input symmetry.Layout, classes int) (int64, error) {
	count, err := ParamCount(genome, input, classes)
	if err != nil {
		return 0, err
	}
	return int64(count) * 8, nil
}

func (n *Network) Genome() model.Genome         { return n.genome }
func (n *Network) Classes() int                 { return n.classes }
func (n *Network) InputLayout() symmetry.Layout { return n.input }

func (n *Network) ParamCount() int {
	count := 0
	for _, p := range n.Params() {
		count += len(p.W)
	}
	return count
}

func (n *Network) MemoryBytes() int64 {
	return int64(n.ParamCount()) * 8
}

// Forward runs the network on one series and returns per-class logits.
// Intermediate activations are cached for Backward.
func (n *Network) Forward(series [][]float64) ([]float64, error) {
	if len(series) == 0 {
		return nil, model.Configf("empty input series")
	}
	width := n.input.Width()
	for t, row := range series {
		if len(row) != width {
			return nil, model.Configf("series row %d has width %d, input representation wants %d", t, len(row), width)
		}
	}
	h := n.embedGate.Forward(n.embed.Forward(series))
	for _, block := range n.blocks {
		h = block.Forward(h)
	}
	pooled := n.pool.Forward(h)
	return n.fc2.Forward(n.act.Forward(n.fc1.Forward(pooled))), nil
}

// Backward accumulates parameter gradients from the per-class logit
// gradient of the most recent Forward call.
func (n *Network) Backward(dLogits []float64) {
	dPooled := n.fc1.Backward(n.act.Backward(n.fc2.Backward(dLogits)))
	dH := n.pool.Backward(dPooled)
	for i := len(n.blocks) - 1; i >= 0; i-- {
		dH = n.blocks[i].Backward(dH)
	}
	n.embed.Backward(n.embedGate.Backward(dH))
}

// Predict returns the per-class probability vector: per-class sigmoids,
// normalized to sum to one for tabular rendering.
func (n *Network) Predict(series [][]float64) ([]float64, error) {
	logits, err := n.Forward(series)
	if err != nil {
		return nil, err
	}
	probs := make([]float64, len(logits))
	total := 0.0
	for i, z := range logits {
		probs[i] = sigmoid(z)
		total += probs[i]
	}
	if total > 0 {
		for i := range probs {
			probs[i] /= total
		}
	}
	return probs, nil
}

func (n *Network) Params() []Param {
	params := n.embed.Params()
	for _, block := range n.blocks {
		params = append(params, block.Params()...)
	}
	params = append(params, n.fc1.Params()...)
	return append(params, n.fc2.Params()...)
}

func (n *Network) ZeroGrad() {
	for _, p := range n.Params() {
		for i := range p.G {
			p.G[i] = 0
		}
	}
}
