package train

import (
	"context"
	"fmt"
	"math"
	"math/rand"

	"volant/internal/dataset"
	"volant/internal/model"
	"volant/internal/nn"
	"volant/internal/symmetry"
)

// Candidate pairs a genome with its realized, trained model. Fitness is the
// validation binary cross-entropy loss; +Inf encodes a diverged training run
// or (assigned later by the search) an architecture over the memory ceiling.
type Candidate struct {
	Genome      model.Genome
	Model       *nn.Network
	Fitness     float64
	MemoryBytes int64
	Diverged    bool
}

type Config struct {
	Split        dataset.Split
	Steps        int
	BatchSize    int
	LearningRate float64
	Optimizer    string
}

// Evaluator trains one candidate to a fixed optimizer-step budget on the
// frozen split and scores it on the validation partition. The split is
// shared read-only; every candidate gets a fresh model and a fresh
// optimizer, so evaluations are independent and parallelizable.
type Evaluator struct {
	cfg     Config
	classes int
}

func NewEvaluator(cfg Config) (*Evaluator, error) {
	if err := cfg.Split.Validate(); err != nil {
		return nil, err
	}
	if cfg.Steps < 1 {
		return nil, model.Configf("training budget must be >= 1 step, got %d", cfg.Steps)
	}
	if cfg.BatchSize < 1 {
		return nil, model.Configf("batch size must be >= 1, got %d", cfg.BatchSize)
	}
	if _, err := NewOptimizer(cfg.Optimizer, cfg.LearningRate); err != nil {
		return nil, err
	}
	return &Evaluator{cfg: cfg, classes: len(cfg.Split.Train.Classes)}, nil
}

func (e *Evaluator) Classes() int        { return e.classes }
func (e *Evaluator) Split() dataset.Split { return e.cfg.Split }

// Evaluate builds the genome's model, trains it for the fixed budget, and
// returns the candidate owning the now-trained model. Numeric divergence is
// recovered as Fitness = +Inf so a search can reject the candidate without
// aborting; configuration errors are surfaced immediately.
func (e *Evaluator) Evaluate(ctx context.Context, genome model.Genome, seed int64) (Candidate, error) {
	group, err := symmetry.ParseGroup(genome.Symmetry)
	if err != nil {
		return Candidate{}, model.Configf("genome %s: %v", genome.ID, err)
	}
	layout, err := e.cfg.Split.Train.InputLayout(group)
	if err != nil {
		return Candidate{}, err
	}
	trainX, trainY, err := encodeAll(e.cfg.Split.Train, group)
	if err != nil {
		return Candidate{}, err
	}
	valX, valY, err := encodeAll(e.cfg.Split.Validation, group)
	if err != nil {
		return Candidate{}, err
	}

	rng := rand.New(rand.NewSource(seed))
	net, err := nn.Build(genome, layout, e.classes, rng)
	if err != nil {
		return Candidate{}, err
	}
	opt, err := NewOptimizer(e.cfg.Optimizer, e.cfg.LearningRate)
	if err != nil {
		return Candidate{}, err
	}

	diverged := func() Candidate {
		return Candidate{Genome: genome, Model: net, Fitness: math.Inf(1), MemoryBytes: net.MemoryBytes(), Diverged: true}
	}

	for step := 0; step < e.cfg.Steps; step++ {
		if err := ctx.Err(); err != nil {
			return Candidate{}, err
		}
		net.ZeroGrad()
		batchLoss := 0.0
		scale := 1.0 / float64(e.cfg.BatchSize)
		for b := 0; b < e.cfg.BatchSize; b++ {
			idx := rng.Intn(len(trainX))
			logits, err := net.Forward(trainX[idx])
			if err != nil {
				return Candidate{}, err
			}
			loss, grad := bceLoss(logits, trainY[idx])
			batchLoss += loss * scale
			for c := range grad {
				grad[c] *= scale
			}
			net.Backward(grad)
		}
		if !isFinite(batchLoss) {
			return diverged(), nil
		}
		opt.Step(net.Params())
		if !paramsStable(net) {
			return diverged(), nil
		}
	}

	valLoss, err := meanLoss(net, valX, valY)
	if err != nil {
		return Candidate{}, err
	}
	if !isFinite(valLoss) {
		return diverged(), nil
	}

	return Candidate{
		Genome:      genome,
		Model:       net,
		Fitness:     valLoss,
		MemoryBytes: net.MemoryBytes(),
	}, nil
}

func encodeAll(d dataset.Dataset, group symmetry.Group) ([][][]float64, []int, error) {
	inputs := make([][][]float64, len(d.Samples))
	labels := make([]int, len(d.Samples))
	for i, sample := range d.Samples {
		encoded, err := d.Encode(sample, group)
		if err != nil {
			return nil, nil, fmt.Errorf("encode sample %d: %w", i, err)
		}
		inputs[i] = encoded
		labels[i] = sample.Label
	}
	return inputs, labels, nil
}

func meanLoss(net *nn.Network, inputs [][][]float64, labels []int) (float64, error) {
	total := 0.0
	for i := range inputs {
		logits, err := net.Forward(inputs[i])
		if err != nil {
			return 0, err
		}
		loss, _ := bceLoss(logits, labels[i])
		total += loss
	}
	return total / float64(len(inputs)), nil
}

// ValidationLoss scores an already-trained model on a dataset with the same
// loss the evaluator trains against.
func ValidationLoss(net *nn.Network, d dataset.Dataset) (float64, error) {
	group, err := symmetry.ParseGroup(net.Genome().Symmetry)
	if err != nil {
		return 0, err
	}
	inputs, labels, err := encodeAll(d, group)
	if err != nil {
		return 0, err
	}
	return meanLoss(net, inputs, labels)
}

// SampleLosses returns the per-sample loss vector used by the permutation
// test when comparing two models on the same test set.
func SampleLosses(net *nn.Network, d dataset.Dataset) ([]float64, error) {
	group, err := symmetry.ParseGroup(net.Genome().Symmetry)
	if err != nil {
		return nil, err
	}
	inputs, labels, err := encodeAll(d, group)
	if err != nil {
		return nil, err
	}
	losses := make([]float64, len(inputs))
	for i := range inputs {
		logits, err := net.Forward(inputs[i])
		if err != nil {
			return nil, err
		}
		losses[i], _ = bceLoss(logits, labels[i])
	}
	return losses, nil
}

// PredictLabels runs inference over a dataset and returns argmax labels.
func PredictLabels(net *nn.Network, d dataset.Dataset) ([]int, error) {
	group, err := symmetry.ParseGroup(net.Genome().Symmetry)
	if err != nil {
		return nil, err
	}
	labels := make([]int, len(d.Samples))
	for i, sample := range d.Samples {
		encoded, err := d.Encode(sample, group)
		if err != nil {
			return nil, err
		}
		probs, err := net.Predict(encoded)
		if err != nil {
			return nil, err
		}
		best := 0
		for c := 1; c < len(probs); c++ {
			if probs[c] > probs[best] {
				best = c
			}
		}
		labels[i] = best
	}
	return labels, nil
}

// Accuracy is the fraction of samples whose argmax prediction matches the
// label.
func Accuracy(net *nn.Network, d dataset.Dataset) (float64, error) {
	predicted, err := PredictLabels(net, d)
	if err != nil {
		return 0, err
	}
	correct := 0
	for i, sample := range d.Samples {
		if predicted[i] == sample.Label {
			correct++
		}
	}
	return float64(correct) / float64(len(d.Samples)), nil
}

func isFinite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}

// Healthy weights stay O(1); magnitudes past this mean the run blew up even
// when the clamped loss and saturated activations stay finite.
const paramDivergenceLimit = 1e8

func paramsStable(net *nn.Network) bool {
	for _, p := range net.Params() {
		for _, w := range p.W {
			if !isFinite(w) || math.Abs(w) > paramDivergenceLimit {
				return false
			}
		}
	}
	return true
}
