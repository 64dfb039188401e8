package evo

import (
	"math"
	"math/rand"
	"sort"

	"volant/internal/model"
	"volant/internal/train"
)

// Selector chooses a parent among candidates ranked loss-ascending.
// Infeasible candidates (+Inf fitness) sort last and are never picked while
// any feasible candidate exists.
type Selector interface {
	Name() string
	PickParent(rng *rand.Rand, ranked []train.Candidate, eliteCount int) (model.Genome, error)
}

// TruncationSelector picks uniformly among the elite prefix.
type TruncationSelector struct{}

func (TruncationSelector) Name() string { return "truncation" }

func (TruncationSelector) PickParent(rng *rand.Rand, ranked []train.Candidate, eliteCount int) (model.Genome, error) {
	pool := feasiblePrefix(ranked, eliteCount)
	if pool == 0 {
		return model.Genome{}, model.Configf("selection pool is empty")
	}
	return ranked[rng.Intn(pool)].Genome, nil
}

// TournamentSelector samples Size candidates from the elite prefix and keeps
// the lowest loss.
type TournamentSelector struct {
	Size int
}

func (TournamentSelector) Name() string { return "tournament" }

func (s TournamentSelector) PickParent(rng *rand.Rand, ranked []train.Candidate, eliteCount int) (model.Genome, error) {
	pool := feasiblePrefix(ranked, eliteCount)
	if pool == 0 {
		return model.Genome{}, model.Configf("selection pool is empty")
	}
	size := s.Size
	if size < 1 {
		size = 2
	}
	best := rng.Intn(pool)
	for i := 1; i < size; i++ {
		pick := rng.Intn(pool)
		if ranked[pick].Fitness < ranked[best].Fitness {
			best = pick
		}
	}
	return ranked[best].Genome, nil
}

// feasiblePrefix caps the selection pool at eliteCount, shrinking it further
// if infeasible candidates bleed into the elite set.
func feasiblePrefix(ranked []train.Candidate, eliteCount int) int {
	pool := eliteCount
	if pool > len(ranked) {
		pool = len(ranked)
	}
	for pool > 0 && !feasible(ranked[pool-1]) {
		pool--
	}
	return pool
}

func feasible(c train.Candidate) bool {
	return !c.Diverged && !math.IsInf(c.Fitness, 0) && !math.IsNaN(c.Fitness)
}

// rankCandidates sorts loss-ascending with infeasible candidates last.
// Sorting is stable so equal-fitness candidates keep evaluation order.
func rankCandidates(candidates []train.Candidate) {
	sort.SliceStable(candidates, func(i, j int) bool {
		return candidates[i].Fitness < candidates[j].Fitness
	})
}
