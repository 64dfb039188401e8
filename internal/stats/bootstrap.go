package stats

import (
	"math"
	"math/rand"

	mstats "github.com/montanaflynn/stats"

	"volant/internal/model"
)

// BootstrapConfig controls the percentile-bootstrap estimation of per-class
// precision and recall intervals. MinTestSize guards against quoting
// intervals off a test set too small to resample meaningfully.
type BootstrapConfig struct {
	Resamples   int
	Coverage    float64
	Seed        int64
	MinTestSize int
}

const defaultMinTestSize = 10

// Bootstrap computes per-class precision/recall with percentile confidence
// intervals at the configured coverage, by resampling (truth, predicted)
// pairs with replacement. A class with no predicted positives in a resample
// scores zero precision for that resample; same for recall with no true
// members. Deterministic under a fixed seed.
func Bootstrap(cfg BootstrapConfig, truth, predicted []int, classes []string) (model.EvaluationResult, error) {
	if cfg.Resamples < 1 {
		return model.EvaluationResult{}, model.Configf("resample count must be >= 1, got %d", cfg.Resamples)
	}
	if cfg.Coverage <= 0 || cfg.Coverage >= 1 {
		return model.EvaluationResult{}, model.Configf("coverage must be in (0, 1), got %f", cfg.Coverage)
	}
	// The percentile estimator needs at least one resample in each tail.
	if tail := (1 - cfg.Coverage) / 2 * float64(cfg.Resamples); tail < 1 {
		need := int(math.Ceil(2 / (1 - cfg.Coverage)))
		return model.EvaluationResult{}, model.Configf("%d resamples are too few for %.0f%% coverage, need at least %d", cfg.Resamples, cfg.Coverage*100, need)
	}
	if len(classes) < 2 {
		return model.EvaluationResult{}, model.Configf("need at least 2 classes, got %d", len(classes))
	}
	if len(truth) != len(predicted) {
		return model.EvaluationResult{}, model.Configf("truth has %d labels, predicted has %d", len(truth), len(predicted))
	}
	minSize := cfg.MinTestSize
	if minSize < 1 {
		minSize = defaultMinTestSize
	}
	if len(truth) < minSize {
		return model.EvaluationResult{}, model.Configf("test set has %d samples, need at least %d for bootstrap intervals", len(truth), minSize)
	}
	for i := range truth {
		if truth[i] < 0 || truth[i] >= len(classes) {
			return model.EvaluationResult{}, model.Configf("truth label %d out of range at sample %d", truth[i], i)
		}
		if predicted[i] < 0 || predicted[i] >= len(classes) {
			return model.EvaluationResult{}, model.Configf("predicted label %d out of range at sample %d", predicted[i], i)
		}
	}

	n := len(truth)
	rng := rand.New(rand.NewSource(cfg.Seed))
	lowPct := (1 - cfg.Coverage) / 2 * 100
	highPct := (1 + cfg.Coverage) / 2 * 100

	precisions := make([][]float64, len(classes))
	recalls := make([][]float64, len(classes))
	for c := range classes {
		precisions[c] = make([]float64, 0, cfg.Resamples)
		recalls[c] = make([]float64, 0, cfg.Resamples)
	}

	sampleTruth := make([]int, n)
	samplePred := make([]int, n)
	for r := 0; r < cfg.Resamples; r++ {
		for i := 0; i < n; i++ {
			j := rng.Intn(n)
			sampleTruth[i] = truth[j]
			samplePred[i] = predicted[j]
		}
		for c := range classes {
			p, rc := precisionRecall(sampleTruth, samplePred, c)
			precisions[c] = append(precisions[c], p)
			recalls[c] = append(recalls[c], rc)
		}
	}

	result := model.EvaluationResult{
		Resamples: cfg.Resamples,
		Coverage:  cfg.Coverage,
		TestSize:  n,
		Classes:   make([]model.ClassInterval, len(classes)),
	}
	for c, name := range classes {
		p, rc := precisionRecall(truth, predicted, c)
		interval := model.ClassInterval{
			Class:     name,
			Precision: p,
			Recall:    rc,
			Support:   countLabel(truth, c),
		}
		var err error
		if interval.PrecisionLow, interval.PrecisionHigh, err = percentileBounds(precisions[c], lowPct, highPct); err != nil {
			return model.EvaluationResult{}, err
		}
		if interval.RecallLow, interval.RecallHigh, err = percentileBounds(recalls[c], lowPct, highPct); err != nil {
			return model.EvaluationResult{}, err
		}
		result.Classes[c] = interval
	}
	return result, nil
}

func percentileBounds(samples []float64, lowPct, highPct float64) (float64, float64, error) {
	data := mstats.Float64Data(samples)
	low, err := mstats.Percentile(data, lowPct)
	if err != nil {
		return 0, 0, err
	}
	high, err := mstats.Percentile(data, highPct)
	if err != nil {
		return 0, 0, err
	}
	return low, high, nil
}

// precisionRecall scores one class one-vs-rest. Empty denominators score
// zero rather than NaN so bootstrap percentiles stay well defined.
func precisionRecall(truth, predicted []int, class int) (float64, float64) {
	tp, fp, fn := 0, 0, 0
	for i := range truth {
		switch {
		case predicted[i] == class && truth[i] == class:
			tp++
		case predicted[i] == class:
			fp++
		case truth[i] == class:
			fn++
		}
	}
	precision, recall := 0.0, 0.0
	if tp+fp > 0 {
		precision = float64(tp) / float64(tp+fp)
	}
	if tp+fn > 0 {
		recall = float64(tp) / float64(tp+fn)
	}
	return precision, recall
}

func countLabel(labels []int, class int) int {
	count := 0
	for _, l := range labels {
		if l == class {
			count++
		}
	}
	return count
}
