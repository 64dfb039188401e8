package evo

import (
	"errors"
	"math/rand"

	"volant/internal/model"
	"volant/internal/symmetry"
)

var ErrNoMutationChoice = errors.New("no mutation choice available")

// Operator mutates exactly one hyperparameter of a genome, returning a clone
// under a fresh ID. Operators must keep the result within valid bounds: a
// step that would leave the bounds steps the other way instead.
type Operator interface {
	Name() string
	Apply(rng *rand.Rand, genome model.Genome) (model.Genome, error)
}

// StepBlocks adds or removes one residual block, never going below one.
type StepBlocks struct{}

func (StepBlocks) Name() string { return "step_blocks" }

func (StepBlocks) Apply(rng *rand.Rand, genome model.Genome) (model.Genome, error) {
	mutated := CloneGenome(genome)
	mutated.NumBlocks += signedStep(rng, mutated.NumBlocks, 1, 1)
	return mutated, nil
}

// StepKernelSize widens or narrows the temporal receptive field by two taps,
// preserving oddness. Minimum size is one.
type StepKernelSize struct{}

func (StepKernelSize) Name() string { return "step_kernel_size" }

func (StepKernelSize) Apply(rng *rand.Rand, genome model.Genome) (model.Genome, error) {
	mutated := CloneGenome(genome)
	mutated.KernelSize += signedStep(rng, mutated.KernelSize, 2, 1)
	return mutated, nil
}

// StepKernelWidth changes the hidden channel width by one, minimum one.
type StepKernelWidth struct{}

func (StepKernelWidth) Name() string { return "step_kernel_width" }

func (StepKernelWidth) Apply(rng *rand.Rand, genome model.Genome) (model.Genome, error) {
	mutated := CloneGenome(genome)
	mutated.KernelWidth += signedStep(rng, mutated.KernelWidth, 1, 1)
	return mutated, nil
}

// StepFCWidth changes the classifier head width by one, minimum one.
type StepFCWidth struct{}

func (StepFCWidth) Name() string { return "step_fc_width" }

func (StepFCWidth) Apply(rng *rand.Rand, genome model.Genome) (model.Genome, error) {
	mutated := CloneGenome(genome)
	mutated.FCWidth += signedStep(rng, mutated.FCWidth, 1, 1)
	return mutated, nil
}

// SwitchSymmetry replaces the genome's symmetry variant with a uniformly
// random different one.
type SwitchSymmetry struct{}

func (SwitchSymmetry) Name() string { return "switch_symmetry" }

func (SwitchSymmetry) Apply(rng *rand.Rand, genome model.Genome) (model.Genome, error) {
	current, err := symmetry.ParseGroup(genome.Symmetry)
	if err != nil {
		return model.Genome{}, err
	}
	others := make([]symmetry.Group, 0, 2)
	for _, g := range symmetry.Groups() {
		if g != current {
			others = append(others, g)
		}
	}
	if len(others) == 0 {
		return model.Genome{}, ErrNoMutationChoice
	}
	mutated := CloneGenome(genome)
	mutated.Symmetry = others[rng.Intn(len(others))].String()
	return mutated, nil
}

// signedStep picks +step or -step uniformly, reflecting off the lower bound.
func signedStep(rng *rand.Rand, value, step, min int) int {
	delta := step
	if rng.Intn(2) == 0 {
		delta = -step
	}
	if value+delta < min {
		delta = step
	}
	return delta
}

// WeightedChoice pairs an operator with a selection weight.
type WeightedChoice struct {
	Operator Operator
	Weight   float64
}

// MutationPolicy draws one operator per offspring according to the weights.
type MutationPolicy struct {
	choices []WeightedChoice
	total   float64
}

func NewMutationPolicy(choices []WeightedChoice) (*MutationPolicy, error) {
	if len(choices) == 0 {
		return nil, model.Configf("mutation policy needs at least one operator")
	}
	total := 0.0
	for _, c := range choices {
		if c.Operator == nil {
			return nil, model.Configf("mutation policy has a nil operator")
		}
		if c.Weight <= 0 {
			return nil, model.Configf("operator %s has non-positive weight %f", c.Operator.Name(), c.Weight)
		}
		total += c.Weight
	}
	return &MutationPolicy{choices: choices, total: total}, nil
}

// DefaultPolicy weights structural steps evenly and makes symmetry switches
// rarer, since a variant change redraws the whole weight layout.
func DefaultPolicy() *MutationPolicy {
	policy, err := NewMutationPolicy([]WeightedChoice{
		{Operator: StepBlocks{}, Weight: 1},
		{Operator: StepKernelSize{}, Weight: 1},
		{Operator: StepKernelWidth{}, Weight: 1},
		{Operator: StepFCWidth{}, Weight: 1},
		{Operator: SwitchSymmetry{}, Weight: 0.5},
	})
	if err != nil {
		panic(err)
	}
	return policy
}

func (p *MutationPolicy) Pick(rng *rand.Rand) Operator {
	target := rng.Float64() * p.total
	for _, c := range p.choices {
		target -= c.Weight
		if target < 0 {
			return c.Operator
		}
	}
	return p.choices[len(p.choices)-1].Operator
}

// Mutate applies one policy-drawn operator to the parent.
func (p *MutationPolicy) Mutate(rng *rand.Rand, parent model.Genome) (model.Genome, error) {
	return p.Pick(rng).Apply(rng, parent)
}
