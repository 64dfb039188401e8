package stats

import (
	"fmt"
	"io"
	"text/tabwriter"

	"volant/internal/model"
)

// RenderEvaluation prints the per-class interval table in a fixed column
// layout.
func RenderEvaluation(w io.Writer, result model.EvaluationResult) error {
	tw := tabwriter.NewWriter(w, 0, 8, 2, ' ', 0)
	fmt.Fprintf(tw, "class\tsupport\tprecision\tprec CI\trecall\trecall CI\n")
	for _, c := range result.Classes {
		fmt.Fprintf(tw, "%s\t%d\t%.3f\t[%.3f, %.3f]\t%.3f\t[%.3f, %.3f]\n",
			c.Class, c.Support,
			c.Precision, c.PrecisionLow, c.PrecisionHigh,
			c.Recall, c.RecallLow, c.RecallHigh)
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	_, err := fmt.Fprintf(w, "resamples=%d coverage=%.0f%% test_size=%d\n",
		result.Resamples, result.Coverage*100, result.TestSize)
	return err
}

func RenderComparison(w io.Writer, result ComparisonResult) error {
	verdict := "not significant"
	if result.Significant {
		verdict = "significant"
	}
	_, err := fmt.Fprintf(w, "mean loss A=%.6f B=%.6f diff=%.6f p=%.4f (alpha=%.2f, %d permutations): %s\n",
		result.MeanLossA, result.MeanLossB, result.ObservedDiff,
		result.PValue, result.Alpha, result.Permutations, verdict)
	return err
}
