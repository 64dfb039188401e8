package evo

import (
	"context"
	"math"
	"math/rand"
	"sync"

	"github.com/google/uuid"

	"volant/internal/model"
	"volant/internal/symmetry"
	"volant/internal/train"
)

type SearchConfig struct {
	Evaluator      *train.Evaluator
	MemoryCeiling  int64 // hard weight-memory budget in bytes
	PopulationSize int
	EliteCount     int
	Generations    int
	Workers        int
	Seed           int64
	Mutations      *MutationPolicy
	Selector       Selector
}

// SearchResult collects everything a finished run reports. Best is nil when
// no candidate in any generation was feasible: over the ceiling in every
// case, or diverged in training.
type SearchResult struct {
	Best          *train.Candidate
	BestByVariant map[string]*train.Candidate
	Fitness       []model.FitnessPoint
	Diagnostics   []model.GenerationDiagnostics
	Evaluated     []model.CandidateRecord
}

// SearchMonitor runs the generational loop: evaluate the population in
// parallel, rank, carry elites, breed offspring through single-step
// mutations. Architectures whose weight memory exceeds the ceiling are
// assigned +Inf fitness without spending a training budget on them.
type SearchMonitor struct {
	cfg SearchConfig
}

func NewSearchMonitor(cfg SearchConfig) (*SearchMonitor, error) {
	if cfg.Evaluator == nil {
		return nil, model.Configf("search needs an evaluator")
	}
	if cfg.MemoryCeiling < 1 {
		return nil, model.Configf("memory ceiling must be >= 1 byte, got %d", cfg.MemoryCeiling)
	}
	if cfg.PopulationSize < 2 {
		return nil, model.Configf("population size must be >= 2, got %d", cfg.PopulationSize)
	}
	if cfg.EliteCount < 1 || cfg.EliteCount >= cfg.PopulationSize {
		return nil, model.Configf("elite count must be in [1, %d), got %d", cfg.PopulationSize, cfg.EliteCount)
	}
	if cfg.Generations < 1 {
		return nil, model.Configf("generation count must be >= 1, got %d", cfg.Generations)
	}
	if cfg.Workers < 1 {
		cfg.Workers = 1
	}
	if cfg.Mutations == nil {
		cfg.Mutations = DefaultPolicy()
	}
	if cfg.Selector == nil {
		cfg.Selector = TruncationSelector{}
	}
	return &SearchMonitor{cfg: cfg}, nil
}

// Run evolves the initial genomes for the configured number of generations.
// Terminating with Best == nil is a normal outcome, not an error: it means
// the ceiling admitted no architecture the budget could train.
func (m *SearchMonitor) Run(ctx context.Context, initial []model.Genome) (*SearchResult, error) {
	if len(initial) == 0 {
		return nil, model.Configf("search needs at least one initial genome")
	}
	for _, g := range initial {
		if err := ValidateGenome(g); err != nil {
			return nil, err
		}
	}

	rng := rand.New(rand.NewSource(m.cfg.Seed))
	population := make([]model.Genome, 0, m.cfg.PopulationSize)
	population = append(population, initial...)
	for len(population) < m.cfg.PopulationSize {
		parent := initial[rng.Intn(len(initial))]
		child, err := m.cfg.Mutations.Mutate(rng, parent)
		if err != nil {
			return nil, err
		}
		population = append(population, child)
	}
	population = population[:m.cfg.PopulationSize]

	result := &SearchResult{BestByVariant: make(map[string]*train.Candidate)}

	for gen := 0; gen < m.cfg.Generations; gen++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		candidates, err := m.evaluateGeneration(ctx, population, gen)
		if err != nil {
			return nil, err
		}
		rankCandidates(candidates)

		m.record(result, candidates, gen)

		if gen == m.cfg.Generations-1 {
			break
		}
		population, err = m.breed(rng, candidates)
		if err != nil {
			return nil, err
		}
	}
	return result, nil
}

func (m *SearchMonitor) evaluateGeneration(ctx context.Context, population []model.Genome, gen int) ([]train.Candidate, error) {
	split := m.cfg.Evaluator.Split()
	classes := m.cfg.Evaluator.Classes()

	candidates := make([]train.Candidate, len(population))
	jobs := make(chan int)
	errs := make(chan error, m.cfg.Workers)
	var wg sync.WaitGroup

	for w := 0; w < m.cfg.Workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for idx := range jobs {
				genome := population[idx]
				group, err := symmetry.ParseGroup(genome.Symmetry)
				if err != nil {
					errs <- err
					return
				}
				layout, err := split.Train.InputLayout(group)
				if err != nil {
					errs <- err
					return
				}
				footprint, err := GenomeMemoryBytes(genome, layout, classes)
				if err != nil {
					errs <- err
					return
				}
				if footprint > m.cfg.MemoryCeiling {
					candidates[idx] = train.Candidate{
						Genome:      genome,
						Fitness:     math.Inf(1),
						MemoryBytes: footprint,
					}
					continue
				}
				cand, err := m.cfg.Evaluator.Evaluate(ctx, genome, candidateSeed(m.cfg.Seed, gen, idx))
				if err != nil {
					errs <- err
					return
				}
				candidates[idx] = cand
			}
		}()
	}

	for idx := range population {
		select {
		case err := <-errs:
			close(jobs)
			wg.Wait()
			return nil, err
		case jobs <- idx:
		}
	}
	close(jobs)
	wg.Wait()
	select {
	case err := <-errs:
		return nil, err
	default:
	}
	return candidates, nil
}

// candidateSeed derives a per-candidate training seed so evaluations are
// reproducible regardless of worker scheduling.
func candidateSeed(base int64, gen, idx int) int64 {
	return base + int64(gen)*1_000_003 + int64(idx)*7919
}

func (m *SearchMonitor) record(result *SearchResult, ranked []train.Candidate, gen int) {
	diag := model.GenerationDiagnostics{
		Generation:    gen,
		BestLoss:      math.Inf(1),
		WorstLoss:     math.Inf(-1),
		VariantCounts: make(map[string]int),
	}
	sum := 0.0
	for i := range ranked {
		c := ranked[i]
		diag.VariantCounts[c.Genome.Symmetry]++
		if !feasible(c) {
			diag.InfeasibleCount++
			continue
		}
		diag.FeasibleCount++
		sum += c.Fitness
		if c.Fitness < diag.BestLoss {
			diag.BestLoss = c.Fitness
		}
		if c.Fitness > diag.WorstLoss {
			diag.WorstLoss = c.Fitness
		}

		record := model.CandidateRecord{
			ID:          uuid.NewString(),
			GenomeID:    c.Genome.ID,
			Genome:      c.Genome,
			Fitness:     c.Fitness,
			MemoryBytes: c.MemoryBytes,
			Generation:  gen,
		}
		result.Evaluated = append(result.Evaluated, record)

		if result.Best == nil || c.Fitness < result.Best.Fitness {
			keep := c
			result.Best = &keep
		}
		if prev, ok := result.BestByVariant[c.Genome.Symmetry]; !ok || c.Fitness < prev.Fitness {
			keep := c
			result.BestByVariant[c.Genome.Symmetry] = &keep
		}
	}

	point := model.FitnessPoint{Generation: gen}
	if diag.FeasibleCount > 0 {
		diag.MeanLoss = sum / float64(diag.FeasibleCount)
		point.BestLoss = diag.BestLoss
		point.Feasible = true
	} else {
		diag.BestLoss = 0
		diag.WorstLoss = 0
	}
	result.Fitness = append(result.Fitness, point)
	result.Diagnostics = append(result.Diagnostics, diag)
}

// breed builds the next population: elites survive unchanged, the rest are
// single-mutation offspring of selected parents. When no candidate is
// feasible the whole ranked set serves as the parent pool, so the search
// keeps exploring instead of stalling.
func (m *SearchMonitor) breed(rng *rand.Rand, ranked []train.Candidate) ([]model.Genome, error) {
	next := make([]model.Genome, 0, m.cfg.PopulationSize)
	elite := feasiblePrefix(ranked, m.cfg.EliteCount)
	for i := 0; i < elite; i++ {
		next = append(next, ranked[i].Genome)
	}

	for len(next) < m.cfg.PopulationSize {
		parent, err := m.cfg.Selector.PickParent(rng, ranked, m.cfg.EliteCount)
		if err != nil {
			parent = ranked[rng.Intn(len(ranked))].Genome
		}
		child, err := m.cfg.Mutations.Mutate(rng, parent)
		if err != nil {
			return nil, err
		}
		next = append(next, child)
	}
	return next, nil
}
