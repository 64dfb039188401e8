package evo

import (
	"context"
	"math"
	"testing"

	"volant/internal/dataset"
	"volant/internal/model"
	"volant/internal/symmetry"
	"volant/internal/train"
)

func searchEvaluator(t *testing.T) *train.Evaluator {
	t.Helper()
	split, err := dataset.GenerateSplit(dataset.GenerateConfig{
		Train:      18,
		Validation: 9,
		Test:       9,
		SeqLen:     12,
		Classes:    3,
		Seed:       17,
	})
	if err != nil {
		t.Fatalf("GenerateSplit: %v", err)
	}
	ev, err := train.NewEvaluator(train.Config{
		Split:        split,
		Steps:        3,
		BatchSize:    2,
		LearningRate: 0.01,
		Optimizer:    "adam",
	})
	if err != nil {
		t.Fatalf("NewEvaluator: %v", err)
	}
	return ev
}

func searchConfig(t *testing.T, ceiling int64) SearchConfig {
	return SearchConfig{
		Evaluator:      searchEvaluator(t),
		MemoryCeiling:  ceiling,
		PopulationSize: 4,
		EliteCount:     2,
		Generations:    2,
		Workers:        2,
		Seed:           5,
	}
}

func TestNewSearchMonitorRejectsBadConfig(t *testing.T) {
	ev := searchEvaluator(t)
	cases := []SearchConfig{
		{MemoryCeiling: 1 << 20, PopulationSize: 4, EliteCount: 1, Generations: 1},
		{Evaluator: ev, MemoryCeiling: 0, PopulationSize: 4, EliteCount: 1, Generations: 1},
		{Evaluator: ev, MemoryCeiling: 1 << 20, PopulationSize: 1, EliteCount: 1, Generations: 1},
		{Evaluator: ev, MemoryCeiling: 1 << 20, PopulationSize: 4, EliteCount: 4, Generations: 1},
		{Evaluator: ev, MemoryCeiling: 1 << 20, PopulationSize: 4, EliteCount: 1, Generations: 0},
	}
	for i, cfg := range cases {
		if _, err := NewSearchMonitor(cfg); !model.IsConfiguration(err) {
			t.Fatalf("case %d: expected configuration error, got %v", i, err)
		}
	}
}

func TestSearchFindsFeasibleBest(t *testing.T) {
	monitor, err := NewSearchMonitor(searchConfig(t, 1<<20))
	if err != nil {
		t.Fatalf("NewSearchMonitor: %v", err)
	}
	initial := []model.Genome{
		NewGenome(1, 3, 4, 8, symmetry.None),
		NewGenome(1, 3, 4, 8, symmetry.SE2),
	}
	result, err := monitor.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Best == nil {
		t.Fatal("expected a feasible best under a generous ceiling")
	}
	if math.IsInf(result.Best.Fitness, 0) || math.IsNaN(result.Best.Fitness) {
		t.Fatalf("best fitness must be finite, got %v", result.Best.Fitness)
	}
	if result.Best.MemoryBytes > 1<<20 {
		t.Fatalf("best exceeds the ceiling: %d bytes", result.Best.MemoryBytes)
	}
	if len(result.Fitness) != 2 {
		t.Fatalf("expected 2 fitness points, got %d", len(result.Fitness))
	}
	for _, d := range result.Diagnostics {
		if d.FeasibleCount+d.InfeasibleCount != 4 {
			t.Fatalf("generation %d accounts for %d candidates, want 4", d.Generation, d.FeasibleCount+d.InfeasibleCount)
		}
	}
	for variant, best := range result.BestByVariant {
		if best.Genome.Symmetry != variant {
			t.Fatalf("variant map mismatch: key %s holds %s", variant, best.Genome.Symmetry)
		}
		if math.IsInf(best.Fitness, 0) {
			t.Fatalf("variant %s best is infeasible", variant)
		}
	}
	for _, rec := range result.Evaluated {
		if math.IsInf(rec.Fitness, 0) || math.IsNaN(rec.Fitness) {
			t.Fatalf("persisted candidate %s has non-finite fitness", rec.ID)
		}
	}
}

// A ceiling below every candidate's footprint: the search must terminate
// cleanly with no feasible candidate and no training spent.
func TestSearchSurvivesImpossibleCeiling(t *testing.T) {
	monitor, err := NewSearchMonitor(searchConfig(t, 8))
	if err != nil {
		t.Fatalf("NewSearchMonitor: %v", err)
	}
	initial := []model.Genome{NewGenome(1, 3, 4, 8, symmetry.None)}
	result, err := monitor.Run(context.Background(), initial)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if result.Best != nil {
		t.Fatalf("no candidate fits in 8 bytes, yet best = %+v", result.Best)
	}
	if len(result.Evaluated) != 0 {
		t.Fatalf("infeasible candidates must not be persisted, got %d records", len(result.Evaluated))
	}
	for _, p := range result.Fitness {
		if p.Feasible {
			t.Fatalf("generation %d reports a feasible best under an impossible ceiling", p.Generation)
		}
	}
}

func TestSearchIsDeterministicUnderSeed(t *testing.T) {
	initial := []model.Genome{NewGenome(1, 3, 4, 8, symmetry.None)}

	run := func() *SearchResult {
		monitor, err := NewSearchMonitor(searchConfig(t, 1<<20))
		if err != nil {
			t.Fatalf("NewSearchMonitor: %v", err)
		}
		result, err := monitor.Run(context.Background(), initial)
		if err != nil {
			t.Fatalf("Run: %v", err)
		}
		return result
	}
	a, b := run(), run()
	if a.Best == nil || b.Best == nil {
		t.Fatal("expected feasible bests")
	}
	if a.Best.Fitness != b.Best.Fitness {
		t.Fatalf("same seed produced different best fitness: %v vs %v", a.Best.Fitness, b.Best.Fitness)
	}
	if len(a.Fitness) != len(b.Fitness) {
		t.Fatalf("fitness series length differs: %d vs %d", len(a.Fitness), len(b.Fitness))
	}
	for i := range a.Fitness {
		if a.Fitness[i].BestLoss != b.Fitness[i].BestLoss {
			t.Fatalf("generation %d best loss differs: %v vs %v", i, a.Fitness[i].BestLoss, b.Fitness[i].BestLoss)
		}
	}
}

func TestSearchHonorsCancellation(t *testing.T) {
	monitor, err := NewSearchMonitor(searchConfig(t, 1<<20))
	if err != nil {
		t.Fatalf("NewSearchMonitor: %v", err)
	}
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := monitor.Run(ctx, []model.Genome{NewGenome(1, 3, 4, 8, symmetry.None)}); err != context.Canceled {
		t.Fatalf("expected context.Canceled, got %v", err)
	}
}

func TestSearchRejectsEmptyOrInvalidInitial(t *testing.T) {
	monitor, err := NewSearchMonitor(searchConfig(t, 1<<20))
	if err != nil {
		t.Fatalf("NewSearchMonitor: %v", err)
	}
	if _, err := monitor.Run(context.Background(), nil); !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error for empty initial population, got %v", err)
	}
	bad := []model.Genome{{ID: "bad", NumBlocks: 0, KernelSize: 2, Symmetry: "none"}}
	if _, err := monitor.Run(context.Background(), bad); !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error for invalid genome, got %v", err)
	}
}
