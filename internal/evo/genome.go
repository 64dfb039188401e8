package evo

import (
	"github.com/google/uuid"

	"volant/internal/model"
	"volant/internal/nn"
	"volant/internal/symmetry"
)

// NewGenome mints a genome with a fresh ID. Hyperparameters are validated at
// build time, not here; this is the persistence-ready constructor.
func NewGenome(numBlocks, kernelSize, kernelWidth, fcWidth int, sym symmetry.Group) model.Genome {
	return model.Genome{
		ID:          uuid.NewString(),
		NumBlocks:   numBlocks,
		KernelSize:  kernelSize,
		KernelWidth: kernelWidth,
		FCWidth:     fcWidth,
		Symmetry:    sym.String(),
	}
}

// CloneGenome copies a genome under a new ID, keeping the parent intact. A
// genome is immutable once it has been fitness-evaluated; mutation operators
// work on clones.
func CloneGenome(genome model.Genome) model.Genome {
	clone := genome
	clone.ID = uuid.NewString()
	return clone
}

// ValidateGenome checks the hyperparameter bounds a genome must satisfy
// before it can be realized as a network.
func ValidateGenome(genome model.Genome) error {
	if _, err := symmetry.ParseGroup(genome.Symmetry); err != nil {
		return model.Configf("genome %s: %v", genome.ID, err)
	}
	if genome.NumBlocks < 1 {
		return model.Configf("genome %s: block count must be >= 1, got %d", genome.ID, genome.NumBlocks)
	}
	if genome.KernelSize < 1 || genome.KernelSize%2 == 0 {
		return model.Configf("genome %s: kernel size must be odd and >= 1, got %d", genome.ID, genome.KernelSize)
	}
	if genome.KernelWidth < 1 {
		return model.Configf("genome %s: kernel width must be >= 1, got %d", genome.ID, genome.KernelWidth)
	}
	if genome.FCWidth < 1 {
		return model.Configf("genome %s: fully connected width must be >= 1, got %d", genome.ID, genome.FCWidth)
	}
	return nil
}

// GenomeMemoryBytes reports the weight-memory footprint a genome would
// occupy once built against the given input layout and class count, without
// allocating the model. The search uses this to reject over-ceiling
// architectures before spending a training budget on them.
func GenomeMemoryBytes(genome model.Genome, input symmetry.Layout, classes int) (int64, error) {
	return nn.MemoryBytes(genome, input, classes)
}
