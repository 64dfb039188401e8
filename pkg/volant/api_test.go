package volant

import (
	"context"
	"math"
	"path/filepath"
	"testing"

	"volant/internal/dataset"
	"volant/internal/model"
)

func testClient(t *testing.T) *Client {
	t.Helper()
	base := t.TempDir()
	client, err := New(Options{
		StoreKind:  "memory",
		RunsDir:    filepath.Join(base, "runs"),
		ExportsDir: filepath.Join(base, "exports"),
	})
	if err != nil {
		t.Fatalf("new client: %v", err)
	}
	t.Cleanup(func() {
		_ = client.Close()
	})
	return client
}

func smallTrainRequest() TrainRequest {
	return TrainRequest{
		Dataset:  DatasetSpec{Train: 24, Validation: 12, Test: 12, SeqLen: 16, Classes: 3},
		Training: TrainingSpec{Steps: 30, BatchSize: 4, LearningRate: 0.01, Optimizer: "adam"},
		Genome:   GenomeSpec{NumBlocks: 1, KernelSize: 3, KernelWidth: 6, FCWidth: 12, Symmetry: "none"},
		Seed:     42,
	}
}

func TestClientTrainPersistsRun(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	summary, err := client.Train(ctx, smallTrainRequest())
	if err != nil {
		t.Fatalf("train: %v", err)
	}
	if summary.RunID == "" || summary.GenomeID == "" {
		t.Fatalf("expected identifiers, got %+v", summary)
	}
	if summary.Diverged {
		t.Fatal("training diverged on a small well-conditioned problem")
	}
	if math.IsNaN(summary.ValidationLoss) || math.IsInf(summary.ValidationLoss, 0) {
		t.Fatalf("validation loss not finite: %v", summary.ValidationLoss)
	}
	if summary.TestAccuracy < 0 || summary.TestAccuracy > 1 {
		t.Fatalf("accuracy out of range: %v", summary.TestAccuracy)
	}
	if summary.MemoryBytes != int64(summary.ParamCount)*8 {
		t.Fatalf("memory %d does not match %d params", summary.MemoryBytes, summary.ParamCount)
	}

	runs, err := client.Runs(ctx)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].RunID != summary.RunID || runs[0].Kind != "train" {
		t.Fatalf("unexpected run list: %+v", runs)
	}

	history, err := client.FitnessHistory(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("fitness history: %v", err)
	}
	if len(history) != 1 || !history[0].Feasible {
		t.Fatalf("unexpected history: %+v", history)
	}

	exportDir, err := client.Export(ctx, summary.RunID)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if exportDir == "" {
		t.Fatal("expected export directory")
	}
}

func TestClientSearchFindsCandidate(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	summary, err := client.Search(ctx, SearchRequest{
		Dataset:        DatasetSpec{Train: 18, Validation: 9, Test: 12, SeqLen: 12, Classes: 3},
		Training:       TrainingSpec{Steps: 3, BatchSize: 2, LearningRate: 0.01},
		PopulationSize: 4,
		EliteCount:     2,
		Generations:    2,
		Workers:        2,
		MemoryCeiling:  1 << 20,
		Seed:           7,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if summary.Best == nil {
		t.Fatal("expected a feasible best under a generous ceiling")
	}
	if summary.Best.MemoryBytes > 1<<20 {
		t.Fatalf("best candidate exceeds ceiling: %d", summary.Best.MemoryBytes)
	}
	if len(summary.Fitness) != 2 {
		t.Fatalf("expected 2 fitness points, got %d", len(summary.Fitness))
	}

	runs, err := client.Runs(ctx)
	if err != nil {
		t.Fatalf("runs: %v", err)
	}
	if len(runs) != 1 || runs[0].Kind != "search" {
		t.Fatalf("unexpected run list: %+v", runs)
	}
}

func TestClientSearchSurvivesImpossibleCeiling(t *testing.T) {
	client := testClient(t)
	summary, err := client.Search(context.Background(), SearchRequest{
		Dataset:        DatasetSpec{Train: 12, Validation: 6, Test: 12, SeqLen: 12, Classes: 3},
		Training:       TrainingSpec{Steps: 2, BatchSize: 2},
		PopulationSize: 4,
		EliteCount:     2,
		Generations:    1,
		Workers:        2,
		MemoryCeiling:  8,
		Seed:           7,
	})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if summary.Best != nil {
		t.Fatalf("no candidate fits in 8 bytes, yet best = %+v", summary.Best)
	}
	for _, p := range summary.Fitness {
		if p.Feasible {
			t.Fatal("impossible ceiling reported a feasible generation")
		}
	}
}

func TestClientEvaluateProducesIntervals(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	trained, err := client.Train(ctx, smallTrainRequest())
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	result, err := client.Evaluate(ctx, EvaluateRequest{RunID: trained.RunID, Resamples: 200, Coverage: 0.9, Seed: 3})
	if err != nil {
		t.Fatalf("evaluate: %v", err)
	}
	if result.RunID != trained.RunID || result.GenomeID != trained.GenomeID {
		t.Fatalf("result identifiers mismatch: %+v", result)
	}
	if len(result.Classes) != 3 {
		t.Fatalf("expected 3 class intervals, got %d", len(result.Classes))
	}
	for _, c := range result.Classes {
		if c.PrecisionLow > c.PrecisionHigh || c.RecallLow > c.RecallHigh {
			t.Fatalf("interval bounds out of order for %s: %+v", c.Class, c)
		}
	}

	stored, ok, err := client.store.GetEvaluation(ctx, trained.RunID)
	if err != nil || !ok {
		t.Fatalf("stored evaluation: ok=%v err=%v", ok, err)
	}
	if stored.Resamples != 200 {
		t.Fatalf("stored resamples = %d", stored.Resamples)
	}
}

func TestClientEvaluateUnknownRun(t *testing.T) {
	client := testClient(t)
	if _, err := client.Evaluate(context.Background(), EvaluateRequest{RunID: "nope"}); err == nil {
		t.Fatal("expected error for unknown run")
	}
	if _, err := client.Evaluate(context.Background(), EvaluateRequest{}); !model.IsConfiguration(err) {
		t.Fatal("expected configuration error for empty run id")
	}
}

func TestClientCompareIdenticalRunIsNotSignificant(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	trained, err := client.Train(ctx, smallTrainRequest())
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	result, err := client.Compare(ctx, CompareRequest{
		RunIDA:       trained.RunID,
		RunIDB:       trained.RunID,
		Permutations: 300,
		Alpha:        0.05,
		Seed:         11,
	})
	if err != nil {
		t.Fatalf("compare: %v", err)
	}
	if result.PValue != 1.0 {
		t.Fatalf("identical runs must give p=1.0, got %v", result.PValue)
	}
	if result.Significant {
		t.Fatal("identical runs must not be significant")
	}
}

func TestClientCompareRejectsMismatchedDatasets(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	a, err := client.Train(ctx, smallTrainRequest())
	if err != nil {
		t.Fatalf("train a: %v", err)
	}
	reqB := smallTrainRequest()
	reqB.Dataset.Test = 16
	b, err := client.Train(ctx, reqB)
	if err != nil {
		t.Fatalf("train b: %v", err)
	}

	_, err = client.Compare(ctx, CompareRequest{RunIDA: a.RunID, RunIDB: b.RunID, Permutations: 100, Alpha: 0.05})
	if !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}

func TestClientPredictReturnsDistribution(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	trained, err := client.Train(ctx, smallTrainRequest())
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	split, err := dataset.GenerateSplit(dataset.GenerateConfig{
		Train: 1, Validation: 1, Test: 1, SeqLen: 16, Classes: 3, Seed: 99,
	})
	if err != nil {
		t.Fatalf("generate split: %v", err)
	}

	prediction, err := client.Predict(ctx, PredictRequest{
		RunID:    trained.RunID,
		Channels: split.Test.Samples[0].Channels,
	})
	if err != nil {
		t.Fatalf("predict: %v", err)
	}
	if prediction.Label == "" {
		t.Fatal("expected a predicted label")
	}
	total := 0.0
	for _, p := range prediction.Probabilities {
		if p < 0 || p > 1 {
			t.Fatalf("probability out of range: %v", p)
		}
		total += p
	}
	if math.Abs(total-1) > 1e-9 {
		t.Fatalf("probabilities sum to %v", total)
	}
	if len(prediction.Probabilities) != 3 {
		t.Fatalf("expected 3 classes, got %d", len(prediction.Probabilities))
	}

	// A trajectory with too few channels per row is a configuration error,
	// never a panic.
	_, err = client.Predict(ctx, PredictRequest{
		RunID:    trained.RunID,
		Channels: [][]float64{{1, 2, 3}},
	})
	if !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error for short rows, got %v", err)
	}
}

func TestClientRebuildReproducesTraining(t *testing.T) {
	client := testClient(t)
	ctx := context.Background()

	trained, err := client.Train(ctx, smallTrainRequest())
	if err != nil {
		t.Fatalf("train: %v", err)
	}

	candidate, _, _, err := client.rebuildRun(ctx, trained.RunID)
	if err != nil {
		t.Fatalf("rebuild: %v", err)
	}
	if candidate.Fitness != trained.ValidationLoss {
		t.Fatalf("rebuild lost determinism: %v vs %v", candidate.Fitness, trained.ValidationLoss)
	}
}

func TestClientTrainRejectsBadGenome(t *testing.T) {
	client := testClient(t)
	req := smallTrainRequest()
	req.Genome.KernelSize = 4
	_, err := client.Train(context.Background(), req)
	if !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
	req = smallTrainRequest()
	req.Genome.Symmetry = "so(4)"
	_, err = client.Train(context.Background(), req)
	if !model.IsConfiguration(err) {
		t.Fatalf("expected configuration error, got %v", err)
	}
}
