package stats

import (
	"math"
	"math/rand"

	"volant/internal/model"
)

type ANOVAConfig struct {
	Permutations int
	Seed         int64
	Alpha        float64
}

// ComparisonResult reports a paired permutation test between two models
// scored on the same test samples. PValue is the fraction of sign-flip
// permutations whose statistic is at least the observed one; two identical
// loss vectors therefore yield exactly 1.0.
type ComparisonResult struct {
	MeanLossA    float64 `json:"mean_loss_a"`
	MeanLossB    float64 `json:"mean_loss_b"`
	ObservedDiff float64 `json:"observed_diff"`
	PValue       float64 `json:"p_value"`
	Permutations int     `json:"permutations"`
	Alpha        float64 `json:"alpha"`
	Significant  bool    `json:"significant"`
}

// PermutationANOVA tests whether two models differ in per-sample loss on a
// shared test set. The statistic is the absolute mean of paired differences;
// the null distribution comes from randomly sign-flipping each pair, which
// is exact for paired designs without any normality assumption.
func PermutationANOVA(cfg ANOVAConfig, lossesA, lossesB []float64) (ComparisonResult, error) {
	if cfg.Permutations < 1 {
		return ComparisonResult{}, model.Configf("permutation count must be >= 1, got %d", cfg.Permutations)
	}
	if cfg.Alpha <= 0 || cfg.Alpha >= 1 {
		return ComparisonResult{}, model.Configf("alpha must be in (0, 1), got %f", cfg.Alpha)
	}
	if len(lossesA) == 0 || len(lossesA) != len(lossesB) {
		return ComparisonResult{}, model.Configf("paired loss vectors must be equal and non-empty: %d vs %d", len(lossesA), len(lossesB))
	}
	for i := range lossesA {
		if !finite(lossesA[i]) || !finite(lossesB[i]) {
			return ComparisonResult{}, model.Configf("non-finite loss at sample %d", i)
		}
	}

	n := len(lossesA)
	diffs := make([]float64, n)
	meanA, meanB := 0.0, 0.0
	for i := range lossesA {
		diffs[i] = lossesA[i] - lossesB[i]
		meanA += lossesA[i]
		meanB += lossesB[i]
	}
	meanA /= float64(n)
	meanB /= float64(n)
	observed := math.Abs(meanA - meanB)

	rng := rand.New(rand.NewSource(cfg.Seed))
	atLeast := 0
	for p := 0; p < cfg.Permutations; p++ {
		sum := 0.0
		for _, d := range diffs {
			if rng.Intn(2) == 0 {
				sum += d
			} else {
				sum -= d
			}
		}
		if math.Abs(sum)/float64(n) >= observed {
			atLeast++
		}
	}
	pValue := float64(atLeast) / float64(cfg.Permutations)

	return ComparisonResult{
		MeanLossA:    meanA,
		MeanLossB:    meanB,
		ObservedDiff: observed,
		PValue:       pValue,
		Permutations: cfg.Permutations,
		Alpha:        cfg.Alpha,
		Significant:  pValue < cfg.Alpha,
	}, nil
}

func finite(v float64) bool {
	return !math.IsNaN(v) && !math.IsInf(v, 0)
}
