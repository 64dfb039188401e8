package stats

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"volant/internal/model"
)

var testClasses = []string{"level_flight", "coordinated_turn", "climb"}

func noisyLabels(n int, flip float64, seed int64) ([]int, []int) {
	rng := rand.New(rand.NewSource(seed))
	truth := make([]int, n)
	predicted := make([]int, n)
	for i := range truth {
		truth[i] = i % len(testClasses)
		predicted[i] = truth[i]
		if rng.Float64() < flip {
			predicted[i] = (truth[i] + 1 + rng.Intn(len(testClasses)-1)) % len(testClasses)
		}
	}
	return truth, predicted
}

func TestBootstrapRejectsBadConfig(t *testing.T) {
	truth, predicted := noisyLabels(30, 0.1, 1)
	cases := []BootstrapConfig{
		{Resamples: 0, Coverage: 0.95},
		{Resamples: 100, Coverage: 0},
		{Resamples: 100, Coverage: 1},
		{Resamples: 100, Coverage: 0.95, MinTestSize: 100},
	}
	for i, cfg := range cases {
		_, err := Bootstrap(cfg, truth, predicted, testClasses)
		assert.True(t, model.IsConfiguration(err), "case %d: got %v", i, err)
	}

	_, err := Bootstrap(BootstrapConfig{Resamples: 100, Coverage: 0.95}, truth[:20], predicted, testClasses)
	assert.True(t, model.IsConfiguration(err))

	_, err = Bootstrap(BootstrapConfig{Resamples: 100, Coverage: 0.95}, truth, predicted, testClasses[:1])
	assert.True(t, model.IsConfiguration(err))

	bad := append([]int(nil), predicted...)
	bad[3] = 9
	_, err = Bootstrap(BootstrapConfig{Resamples: 100, Coverage: 0.95}, truth, bad, testClasses)
	assert.True(t, model.IsConfiguration(err))
}

func TestBootstrapRejectsTooFewResamplesForCoverage(t *testing.T) {
	truth, predicted := noisyLabels(30, 0.1, 10)

	// 10 resamples leave an empty 2.5% tail; this must fail up front as a
	// configuration error, not surface a percentile error mid-computation.
	_, err := Bootstrap(BootstrapConfig{Resamples: 10, Coverage: 0.95, Seed: 1}, truth, predicted, testClasses)
	assert.True(t, model.IsConfiguration(err), "got %v", err)

	// 40 resamples put exactly one resample in each tail and are accepted.
	_, err = Bootstrap(BootstrapConfig{Resamples: 40, Coverage: 0.95, Seed: 1}, truth, predicted, testClasses)
	assert.NoError(t, err)
}

// The percentile estimator's bounds close in on the tail quantiles as the
// sample count grows, so intervals quoted from more resamples never widen.
func TestPercentileBoundsNarrowWithMoreSamples(t *testing.T) {
	widthAt := func(n int) float64 {
		values := make([]float64, n)
		for i := range values {
			values[i] = float64(i) / float64(n-1)
		}
		low, high, err := percentileBounds(values, 2.5, 97.5)
		require.NoError(t, err)
		return high - low
	}
	w40, w200, w1000 := widthAt(40), widthAt(200), widthAt(1000)
	assert.Greater(t, w40, w200)
	assert.Greater(t, w200, w1000)
}

func TestFewerResamplesDoNotNarrowIntervals(t *testing.T) {
	// Each class: 4 predicted (2 right, 2 wrong), 4 true (2 found). The
	// resampled precision/recall distributions put heavy mass at both 0 and
	// 1, so the converged interval spans [0, 1] and a low resample count may
	// only match or exceed it.
	truth := []int{0, 0, 0, 0, 1, 1, 1, 1, 2, 2, 2, 2}
	predicted := []int{0, 0, 1, 2, 1, 1, 2, 0, 2, 2, 0, 1}

	few, err := Bootstrap(BootstrapConfig{Resamples: 150, Coverage: 0.98, Seed: 21}, truth, predicted, testClasses)
	require.NoError(t, err)
	many, err := Bootstrap(BootstrapConfig{Resamples: 15000, Coverage: 0.98, Seed: 21}, truth, predicted, testClasses)
	require.NoError(t, err)

	for i := range few.Classes {
		f, m := few.Classes[i], many.Classes[i]
		assert.Greater(t, f.PrecisionHigh-f.PrecisionLow, 0.0, f.Class)
		assert.GreaterOrEqual(t, f.PrecisionHigh-f.PrecisionLow, m.PrecisionHigh-m.PrecisionLow, f.Class)
		assert.GreaterOrEqual(t, f.RecallHigh-f.RecallLow, m.RecallHigh-m.RecallLow, f.Class)
	}
}

func TestBootstrapPerfectPredictions(t *testing.T) {
	truth, _ := noisyLabels(30, 0, 2)
	result, err := Bootstrap(BootstrapConfig{Resamples: 200, Coverage: 0.95, Seed: 3}, truth, truth, testClasses)
	require.NoError(t, err)
	require.Len(t, result.Classes, len(testClasses))
	for _, c := range result.Classes {
		assert.Equal(t, 1.0, c.Precision, c.Class)
		assert.Equal(t, 1.0, c.Recall, c.Class)
		assert.Equal(t, 1.0, c.PrecisionLow, c.Class)
		assert.Equal(t, 1.0, c.RecallHigh, c.Class)
		assert.Equal(t, 10, c.Support, c.Class)
	}
}

func TestBootstrapIntervalBoundsAreOrdered(t *testing.T) {
	truth, predicted := noisyLabels(60, 0.25, 4)
	result, err := Bootstrap(BootstrapConfig{Resamples: 500, Coverage: 0.9, Seed: 5}, truth, predicted, testClasses)
	require.NoError(t, err)
	for _, c := range result.Classes {
		assert.GreaterOrEqual(t, c.PrecisionHigh, c.PrecisionLow, c.Class)
		assert.GreaterOrEqual(t, c.RecallHigh, c.RecallLow, c.Class)
		assert.GreaterOrEqual(t, c.PrecisionLow, 0.0, c.Class)
		assert.LessOrEqual(t, c.PrecisionHigh, 1.0, c.Class)
		assert.GreaterOrEqual(t, c.RecallLow, 0.0, c.Class)
		assert.LessOrEqual(t, c.RecallHigh, 1.0, c.Class)
		assert.InDelta(t, 0.75, c.Recall, 0.35, c.Class)
	}
	assert.Equal(t, 60, result.TestSize)
	assert.Equal(t, 500, result.Resamples)
}

func TestBootstrapIsDeterministicUnderSeed(t *testing.T) {
	truth, predicted := noisyLabels(40, 0.2, 6)
	cfg := BootstrapConfig{Resamples: 300, Coverage: 0.95, Seed: 7}
	a, err := Bootstrap(cfg, truth, predicted, testClasses)
	require.NoError(t, err)
	b, err := Bootstrap(cfg, truth, predicted, testClasses)
	require.NoError(t, err)
	assert.Equal(t, a, b)
}

func TestWiderCoverageWidensIntervals(t *testing.T) {
	truth, predicted := noisyLabels(60, 0.25, 8)
	narrow, err := Bootstrap(BootstrapConfig{Resamples: 500, Coverage: 0.8, Seed: 9}, truth, predicted, testClasses)
	require.NoError(t, err)
	wide, err := Bootstrap(BootstrapConfig{Resamples: 500, Coverage: 0.99, Seed: 9}, truth, predicted, testClasses)
	require.NoError(t, err)
	for i := range narrow.Classes {
		n, w := narrow.Classes[i], wide.Classes[i]
		assert.GreaterOrEqual(t, w.PrecisionHigh-w.PrecisionLow, n.PrecisionHigh-n.PrecisionLow, n.Class)
		assert.GreaterOrEqual(t, w.RecallHigh-w.RecallLow, n.RecallHigh-n.RecallLow, n.Class)
	}
}

func TestPrecisionRecallHandlesEmptyDenominators(t *testing.T) {
	// Class 2 is never predicted and never true.
	truth := []int{0, 0, 1, 1}
	predicted := []int{0, 1, 1, 0}
	p, r := precisionRecall(truth, predicted, 2)
	assert.Equal(t, 0.0, p)
	assert.Equal(t, 0.0, r)

	p, r = precisionRecall(truth, predicted, 0)
	assert.Equal(t, 0.5, p)
	assert.Equal(t, 0.5, r)
}
