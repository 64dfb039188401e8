package main

import (
	"context"
	"encoding/json"
	"flag"
	"fmt"
	"os"
	"path/filepath"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/mattn/go-isatty"

	"volant/internal/dataset"
	"volant/internal/stats"
	"volant/internal/storage"
	volantapi "volant/pkg/volant"
)

const (
	runsDir    = "runs"
	exportsDir = "exports"
)

func main() {
	if err := run(context.Background(), os.Args[1:]); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func run(ctx context.Context, args []string) error {
	if len(args) == 0 {
		return usageError("missing command")
	}

	switch args[0] {
	case "init":
		return runInit(ctx, args[1:])
	case "reset":
		return runReset(ctx, args[1:])
	case "train":
		return runTrain(ctx, args[1:])
	case "search":
		return runSearch(ctx, args[1:])
	case "evaluate":
		return runEvaluate(ctx, args[1:])
	case "compare":
		return runCompare(ctx, args[1:])
	case "predict":
		return runPredict(ctx, args[1:])
	case "runs":
		return runRuns(ctx, args[1:])
	case "fitness":
		return runFitness(ctx, args[1:])
	case "export":
		return runExport(ctx, args[1:])
	default:
		return usageError(fmt.Sprintf("unknown command: %s", args[0]))
	}
}

func usageError(msg string) error {
	return fmt.Errorf("%s\nusage: volantctl <init|reset|train|search|evaluate|compare|predict|runs|fitness|export> [flags]", msg)
}

func storeFlags(fs *flag.FlagSet) (*string, *string) {
	storeKind := fs.String("store", storage.DefaultStoreKind(), "store backend: memory|sqlite")
	dbPath := fs.String("db-path", "volant.db", "sqlite database path")
	return storeKind, dbPath
}

func newClient(storeKind, dbPath string) (*volantapi.Client, error) {
	return volantapi.New(volantapi.Options{
		StoreKind:  storeKind,
		DBPath:     dbPath,
		RunsDir:    runsDir,
		ExportsDir: exportsDir,
	})
}

func runInit(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("init", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	if err := fs.Parse(args); err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	if err := client.Init(ctx); err != nil {
		return err
	}
	if err := os.MkdirAll(runsDir, 0o755); err != nil {
		return err
	}
	fmt.Printf("initialized %s store\n", *storeKind)
	return nil
}

func runReset(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("reset", flag.ContinueOnError)
	_, dbPath := storeFlags(fs)
	keepRuns := fs.Bool("keep-runs", false, "keep run artifact directories")
	if err := fs.Parse(args); err != nil {
		return err
	}

	if err := os.RemoveAll(*dbPath); err != nil {
		return err
	}
	if !*keepRuns {
		if err := os.RemoveAll(runsDir); err != nil {
			return err
		}
	}
	fmt.Println("reset complete")
	return nil
}

func runTrain(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("train", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	configPath := fs.String("config", "", "train profile file (json or yaml)")
	blocks := fs.Int("blocks", 2, "residual block count")
	kernelSize := fs.Int("kernel-size", 3, "temporal kernel size (odd)")
	kernelWidth := fs.Int("kernel-width", 8, "hidden channel width")
	fcWidth := fs.Int("fc-width", 16, "classifier head width")
	sym := fs.String("symmetry", "none", "symmetry variant: none|se2|se3")
	trainN := fs.Int("train", 120, "training sample count")
	validationN := fs.Int("validation", 40, "validation sample count")
	testN := fs.Int("test", 40, "test sample count")
	seqLen := fs.Int("seq-len", 64, "sequence length")
	classes := fs.Int("classes", 0, "maneuver class count (0 for all)")
	noise := fs.Float64("noise", 0, "sensor noise std (0 for default)")
	steps := fs.Int("steps", 200, "optimizer step budget")
	batch := fs.Int("batch", 8, "batch size")
	lr := fs.Float64("lr", 0.01, "learning rate")
	optimizer := fs.String("optimizer", "adam", "optimizer: adam|sgd")
	seed := fs.Int64("seed", 1, "rng seed")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	req := volantapi.TrainRequest{
		Dataset: volantapi.DatasetSpec{
			Train: *trainN, Validation: *validationN, Test: *testN,
			SeqLen: *seqLen, Classes: *classes, Noise: *noise,
		},
		Training: volantapi.TrainingSpec{
			Steps: *steps, BatchSize: *batch, LearningRate: *lr, Optimizer: *optimizer,
		},
		Genome: volantapi.GenomeSpec{
			NumBlocks: *blocks, KernelSize: *kernelSize, KernelWidth: *kernelWidth,
			FCWidth: *fcWidth, Symmetry: *sym,
		},
		Seed: *seed,
	}
	if *configPath != "" {
		loaded, err := loadTrainProfile(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Train(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary)
	}
	if summary.Diverged {
		fmt.Printf("run %s diverged; no usable model\n", summary.RunID)
		return nil
	}
	fmt.Printf("run %s\n", summary.RunID)
	fmt.Printf("genome %s (%s)\n", summary.GenomeID, req.Genome.Symmetry)
	fmt.Printf("validation loss %.6f, test accuracy %.3f\n", summary.ValidationLoss, summary.TestAccuracy)
	fmt.Printf("%d params, %s weight memory\n", summary.ParamCount, humanize.IBytes(uint64(summary.MemoryBytes)))
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runSearch(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("search", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	configPath := fs.String("config", "", "search profile file (json or yaml)")
	population := fs.Int("population", 12, "population size")
	elite := fs.Int("elite", 3, "elite count")
	generations := fs.Int("generations", 10, "generation count")
	workers := fs.Int("workers", 4, "worker count")
	ceiling := fs.String("memory-ceiling", "1MiB", "weight memory budget, e.g. 64KiB or 1MiB")
	trainN := fs.Int("train", 120, "training sample count")
	validationN := fs.Int("validation", 40, "validation sample count")
	testN := fs.Int("test", 40, "test sample count")
	seqLen := fs.Int("seq-len", 64, "sequence length")
	classes := fs.Int("classes", 0, "maneuver class count (0 for all)")
	steps := fs.Int("steps", 200, "optimizer step budget per candidate")
	batch := fs.Int("batch", 8, "batch size")
	lr := fs.Float64("lr", 0.01, "learning rate")
	optimizer := fs.String("optimizer", "adam", "optimizer: adam|sgd")
	seed := fs.Int64("seed", 1, "rng seed")
	jsonOut := fs.Bool("json", false, "emit the summary as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	ceilingBytes, err := parseMemoryCeiling(*ceiling)
	if err != nil {
		return err
	}

	req := volantapi.SearchRequest{
		Dataset: volantapi.DatasetSpec{
			Train: *trainN, Validation: *validationN, Test: *testN,
			SeqLen: *seqLen, Classes: *classes,
		},
		Training: volantapi.TrainingSpec{
			Steps: *steps, BatchSize: *batch, LearningRate: *lr, Optimizer: *optimizer,
		},
		PopulationSize: *population,
		EliteCount:     *elite,
		Generations:    *generations,
		Workers:        *workers,
		MemoryCeiling:  ceilingBytes,
		Seed:           *seed,
	}
	if *configPath != "" {
		loaded, err := loadSearchProfile(*configPath)
		if err != nil {
			return err
		}
		req = loaded
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	summary, err := client.Search(ctx, req)
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(summary)
	}

	fmt.Printf("run %s\n", summary.RunID)
	for _, point := range summary.Fitness {
		if point.Feasible {
			fmt.Printf("generation %d: best loss %.6f\n", point.Generation, point.BestLoss)
		} else {
			fmt.Printf("generation %d: no feasible candidate\n", point.Generation)
		}
	}
	if summary.Best == nil {
		fmt.Println("no architecture fit the memory ceiling; nothing to report")
		return nil
	}
	best := summary.Best
	fmt.Printf("best: %s blocks=%d kernel=%dx%d fc=%d symmetry=%s loss=%.6f memory=%s\n",
		best.GenomeID, best.Genome.NumBlocks, best.Genome.KernelSize, best.Genome.KernelWidth,
		best.Genome.FCWidth, best.Genome.Symmetry, best.Fitness, humanize.IBytes(uint64(best.MemoryBytes)))
	for variant, cand := range summary.BestByVariant {
		fmt.Printf("best %s: loss=%.6f memory=%s\n", variant, cand.Fitness, humanize.IBytes(uint64(cand.MemoryBytes)))
	}
	fmt.Printf("artifacts: %s\n", summary.ArtifactsDir)
	return nil
}

func runEvaluate(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("evaluate", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "evaluate the most recent run")
	resamples := fs.Int("resamples", 1000, "bootstrap resample count")
	coverage := fs.Float64("coverage", 0.95, "interval coverage in (0, 1)")
	seed := fs.Int64("seed", 1, "bootstrap rng seed")
	jsonOut := fs.Bool("json", false, "emit the evaluation as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := resolveRunID(*runID, *latest)
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Evaluate(ctx, volantapi.EvaluateRequest{
		RunID:     id,
		Resamples: *resamples,
		Coverage:  *coverage,
		Seed:      *seed,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(result)
	}
	return stats.RenderEvaluation(os.Stdout, result)
}

func runCompare(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("compare", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runA := fs.String("run-a", "", "first run id")
	runB := fs.String("run-b", "", "second run id")
	permutations := fs.Int("permutations", 2000, "sign-flip permutation count")
	alpha := fs.Float64("alpha", 0.05, "significance level")
	seed := fs.Int64("seed", 1, "permutation rng seed")
	jsonOut := fs.Bool("json", false, "emit the comparison as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *runA == "" || *runB == "" {
		return usageError("compare needs -run-a and -run-b")
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	result, err := client.Compare(ctx, volantapi.CompareRequest{
		RunIDA:       *runA,
		RunIDB:       *runB,
		Permutations: *permutations,
		Alpha:        *alpha,
		Seed:         *seed,
	})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(result)
	}
	return stats.RenderComparison(os.Stdout, result)
}

func runPredict(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("predict", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "use the most recent run")
	inputPath := fs.String("input", "", "JSON file with one trajectory: rows of [airspeed, altitude, vx, vy, vz]")
	jsonOut := fs.Bool("json", false, "emit the prediction as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}
	if *inputPath == "" {
		return usageError("predict needs -input")
	}

	id, err := resolveRunID(*runID, *latest)
	if err != nil {
		return err
	}
	channels, err := loadTrajectory(*inputPath)
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	prediction, err := client.Predict(ctx, volantapi.PredictRequest{RunID: id, Channels: channels})
	if err != nil {
		return err
	}
	if *jsonOut {
		return printJSON(prediction)
	}
	fmt.Printf("predicted maneuver: %s\n", prediction.Label)
	for _, class := range dataset.ManeuverClasses {
		if p, ok := prediction.Probabilities[class]; ok {
			fmt.Printf("  %-18s %.3f\n", class, p)
		}
	}
	return nil
}

func runRuns(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("runs", flag.ContinueOnError)
	limit := fs.Int("limit", 20, "max runs to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit runs as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		return err
	}
	if *limit > 0 && len(entries) > *limit {
		entries = entries[:*limit]
	}
	if *jsonOut {
		return printJSON(entries)
	}
	if len(entries) == 0 {
		fmt.Println("no runs recorded")
		return nil
	}

	tw := tabwriter.NewWriter(os.Stdout, 0, 8, 2, ' ', 0)
	fmt.Fprintln(tw, "run\tkind\tsymmetry\tfinal loss\tmemory\tseed\tcreated")
	for _, e := range entries {
		memory := "-"
		if e.MemoryBytes > 0 {
			memory = humanize.IBytes(uint64(e.MemoryBytes))
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%.6f\t%s\t%d\t%s\n",
			e.RunID, e.Kind, e.Symmetry, e.FinalLoss, memory, e.Seed, e.CreatedAtUTC)
	}
	return tw.Flush()
}

func runFitness(_ context.Context, args []string) error {
	fs := flag.NewFlagSet("fitness", flag.ContinueOnError)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "show the most recent run")
	limit := fs.Int("limit", 50, "max generations to print (<=0 for all)")
	jsonOut := fs.Bool("json", false, "emit fitness history as JSON")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := resolveRunID(*runID, *latest)
	if err != nil {
		return err
	}
	history, finalLoss, err := stats.ReadFitnessHistory(runsDir, id)
	if err != nil {
		return err
	}
	if *limit > 0 && len(history) > *limit {
		history = history[:*limit]
	}
	if *jsonOut {
		return printJSON(history)
	}
	for _, point := range history {
		if point.Feasible {
			fmt.Printf("generation %d: %.6f\n", point.Generation, point.BestLoss)
		} else {
			fmt.Printf("generation %d: no feasible candidate\n", point.Generation)
		}
	}
	fmt.Printf("final loss: %.6f\n", finalLoss)
	return nil
}

func runExport(ctx context.Context, args []string) error {
	fs := flag.NewFlagSet("export", flag.ContinueOnError)
	storeKind, dbPath := storeFlags(fs)
	runID := fs.String("run-id", "", "run id")
	latest := fs.Bool("latest", false, "export the most recent run")
	if err := fs.Parse(args); err != nil {
		return err
	}

	id, err := resolveRunID(*runID, *latest)
	if err != nil {
		return err
	}

	client, err := newClient(*storeKind, *dbPath)
	if err != nil {
		return err
	}
	defer client.Close()

	dir, err := client.Export(ctx, id)
	if err != nil {
		return err
	}
	fmt.Printf("exported %s to %s\n", id, dir)
	return nil
}

// resolveRunID maps -latest onto the newest run index entry.
func resolveRunID(runID string, latest bool) (string, error) {
	if runID != "" {
		return runID, nil
	}
	if !latest {
		return "", usageError("a run id is required (or pass -latest)")
	}
	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		return "", err
	}
	if len(entries) == 0 {
		return "", fmt.Errorf("no runs recorded under %s", runsDir)
	}
	return entries[0].RunID, nil
}

func loadTrajectory(path string) ([][]float64, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var channels [][]float64
	if err := json.Unmarshal(data, &channels); err != nil {
		return nil, fmt.Errorf("parse trajectory %s: %w", filepath.Base(path), err)
	}
	return channels, nil
}

func printJSON(value any) error {
	encoder := json.NewEncoder(os.Stdout)
	if isatty.IsTerminal(os.Stdout.Fd()) {
		encoder.SetIndent("", "  ")
	}
	return encoder.Encode(value)
}
