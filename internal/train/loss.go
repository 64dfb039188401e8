package train

import "math"

const probClamp = 1e-7

// bceLoss is the one-vs-rest binary cross-entropy over per-class logits,
// averaged over classes, with its gradient with respect to the logits.
func bceLoss(logits []float64, label int) (float64, []float64) {
	classes := float64(len(logits))
	loss := 0.0
	grad := make([]float64, len(logits))
	for c, z := range logits {
		p := 1 / (1 + math.Exp(-z))
		y := 0.0
		if c == label {
			y = 1
		}
		clamped := math.Min(math.Max(p, probClamp), 1-probClamp)
		loss += -(y*math.Log(clamped) + (1-y)*math.Log(1-clamped))
		grad[c] = (p - y) / classes
	}
	return loss / classes, grad
}
