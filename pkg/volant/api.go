// Package volant is the embedding-friendly facade over the maneuver
// classification stack: synthetic dataset supply, fixed-budget training,
// memory-bounded architecture search, and bootstrap evaluation.
package volant

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"volant/internal/dataset"
	"volant/internal/evo"
	"volant/internal/model"
	"volant/internal/platform"
	"volant/internal/stats"
	"volant/internal/storage"
	"volant/internal/symmetry"
	"volant/internal/train"
)

const (
	defaultRunsDir    = "runs"
	defaultExportsDir = "exports"
	defaultDBPath     = "volant.db"
)

type Options struct {
	StoreKind  string
	DBPath     string
	RunsDir    string
	ExportsDir string
}

type Client struct {
	store storage.Store
	tower *platform.Tower

	runsDir    string
	exportsDir string
}

// DatasetSpec describes the synthetic maneuver split a request trains
// against. Zero values fall back to the package defaults.
type DatasetSpec struct {
	Train      int
	Validation int
	Test       int
	SeqLen     int
	Classes    int
	Noise      float64
}

// TrainingSpec is the fixed optimizer budget every candidate gets.
type TrainingSpec struct {
	Steps        int
	BatchSize    int
	LearningRate float64
	Optimizer    string
}

// GenomeSpec pins one architecture by hand instead of searching for it.
type GenomeSpec struct {
	NumBlocks   int
	KernelSize  int
	KernelWidth int
	FCWidth     int
	Symmetry    string
}

type TrainRequest struct {
	Dataset  DatasetSpec
	Training TrainingSpec
	Genome   GenomeSpec
	Seed     int64
}

type TrainSummary struct {
	RunID          string
	GenomeID       string
	ValidationLoss float64
	TestAccuracy   float64
	MemoryBytes    int64
	ParamCount     int
	Diverged       bool
	ArtifactsDir   string
}

type SearchRequest struct {
	Dataset        DatasetSpec
	Training       TrainingSpec
	PopulationSize int
	EliteCount     int
	Generations    int
	Workers        int
	MemoryCeiling  int64
	Seed           int64
}

type SearchSummary struct {
	RunID         string
	Best          *model.CandidateRecord
	BestByVariant map[string]model.CandidateRecord
	Fitness       []model.FitnessPoint
	ArtifactsDir  string
}

type EvaluateRequest struct {
	RunID     string
	Resamples int
	Coverage  float64
	Seed      int64
}

type CompareRequest struct {
	RunIDA       string
	RunIDB       string
	Permutations int
	Alpha        float64
	Seed         int64
}

type PredictRequest struct {
	RunID string
	// Channels is one trajectory in supplier order: airspeed, altitude,
	// vx, vy, vz per time step.
	Channels [][]float64
}

type Prediction struct {
	Label         string
	Probabilities map[string]float64
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind()
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	runsDir := opts.RunsDir
	if runsDir == "" {
		runsDir = defaultRunsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}
	return &Client{
		store:      store,
		runsDir:    runsDir,
		exportsDir: exportsDir,
	}, nil
}

func (c *Client) Close() error {
	if c.tower != nil {
		return c.tower.Stop()
	}
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensureTower(ctx)
	return err
}

func (c *Client) ensureTower(ctx context.Context) (*platform.Tower, error) {
	if c.tower != nil && c.tower.Started() {
		return c.tower, nil
	}
	tw := platform.NewTower(platform.Config{Store: c.store})
	if err := tw.Init(ctx); err != nil {
		return nil, err
	}
	c.tower = tw
	return tw, nil
}

func (spec DatasetSpec) withDefaults() DatasetSpec {
	if spec.Train <= 0 {
		spec.Train = 120
	}
	if spec.Validation <= 0 {
		spec.Validation = 40
	}
	if spec.Test <= 0 {
		spec.Test = 40
	}
	if spec.SeqLen <= 0 {
		spec.SeqLen = 64
	}
	if spec.Classes <= 0 {
		spec.Classes = len(dataset.ManeuverClasses)
	}
	return spec
}

func (spec TrainingSpec) withDefaults() TrainingSpec {
	if spec.Steps <= 0 {
		spec.Steps = 200
	}
	if spec.BatchSize <= 0 {
		spec.BatchSize = 8
	}
	if spec.LearningRate <= 0 {
		spec.LearningRate = 0.01
	}
	if spec.Optimizer == "" {
		spec.Optimizer = "adam"
	}
	return spec
}

func (c *Client) buildEvaluator(ds DatasetSpec, tr TrainingSpec, seed int64) (*train.Evaluator, dataset.Split, error) {
	split, err := dataset.GenerateSplit(dataset.GenerateConfig{
		Train:      ds.Train,
		Validation: ds.Validation,
		Test:       ds.Test,
		SeqLen:     ds.SeqLen,
		Classes:    ds.Classes,
		Seed:       seed,
		Noise:      ds.Noise,
	})
	if err != nil {
		return nil, dataset.Split{}, err
	}
	evaluator, err := train.NewEvaluator(train.Config{
		Split:        split,
		Steps:        tr.Steps,
		BatchSize:    tr.BatchSize,
		LearningRate: tr.LearningRate,
		Optimizer:    tr.Optimizer,
	})
	if err != nil {
		return nil, dataset.Split{}, err
	}
	return evaluator, split, nil
}

// Train trains one hand-picked architecture to the fixed budget, scores it
// on validation and test, and persists the run.
func (c *Client) Train(ctx context.Context, req TrainRequest) (TrainSummary, error) {
	tower, err := c.ensureTower(ctx)
	if err != nil {
		return TrainSummary{}, err
	}
	ds := req.Dataset.withDefaults()
	tr := req.Training.withDefaults()

	group, err := symmetry.ParseGroup(req.Genome.Symmetry)
	if err != nil {
		return TrainSummary{}, model.Configf("train request: %v", err)
	}
	genome := evo.NewGenome(req.Genome.NumBlocks, req.Genome.KernelSize, req.Genome.KernelWidth, req.Genome.FCWidth, group)
	if err := evo.ValidateGenome(genome); err != nil {
		return TrainSummary{}, err
	}

	evaluator, split, err := c.buildEvaluator(ds, tr, req.Seed)
	if err != nil {
		return TrainSummary{}, err
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := tower.RegisterRun(runID, cancel); err != nil {
		return TrainSummary{}, err
	}
	defer tower.UnregisterRun(runID)

	candidate, err := evaluator.Evaluate(runCtx, genome, req.Seed)
	if err != nil {
		return TrainSummary{}, err
	}

	summary := TrainSummary{
		RunID:       runID,
		GenomeID:    genome.ID,
		MemoryBytes: candidate.MemoryBytes,
		Diverged:    candidate.Diverged,
	}
	var records []model.CandidateRecord
	var history []model.FitnessPoint
	if !candidate.Diverged {
		summary.ValidationLoss = candidate.Fitness
		summary.ParamCount = candidate.Model.ParamCount()
		accuracy, err := train.Accuracy(candidate.Model, split.Test)
		if err != nil {
			return TrainSummary{}, err
		}
		summary.TestAccuracy = accuracy
		records = []model.CandidateRecord{{
			VersionedRecord: storage.Stamp(),
			ID:              uuid.NewString(),
			GenomeID:        genome.ID,
			Genome:          genome,
			Fitness:         candidate.Fitness,
			MemoryBytes:     candidate.MemoryBytes,
		}}
		history = []model.FitnessPoint{{BestLoss: candidate.Fitness, Feasible: true}}
	} else {
		history = []model.FitnessPoint{{Feasible: false}}
	}

	runConfig := stats.RunConfig{
		RunID:             runID,
		Kind:              "train",
		Seed:              req.Seed,
		Classes:           len(split.Train.Classes),
		SeqLen:            ds.SeqLen,
		TrainSamples:      ds.Train,
		ValidationSamples: ds.Validation,
		TestSamples:       ds.Test,
		Noise:             ds.Noise,
		Steps:             tr.Steps,
		BatchSize:         tr.BatchSize,
		LearningRate:      tr.LearningRate,
		Optimizer:         tr.Optimizer,
		Genome:            &genome,
	}
	artifactsDir, err := c.persistRun(ctx, tower, runConfig, history, nil, records, summary.ValidationLoss, candidate, genome)
	if err != nil {
		return TrainSummary{}, err
	}
	summary.ArtifactsDir = artifactsDir
	return summary, nil
}

// Search runs the evolutionary loop under the memory ceiling and persists
// the winning candidates. A search with no feasible candidate still
// completes and records an empty result.
func (c *Client) Search(ctx context.Context, req SearchRequest) (SearchSummary, error) {
	tower, err := c.ensureTower(ctx)
	if err != nil {
		return SearchSummary{}, err
	}
	ds := req.Dataset.withDefaults()
	tr := req.Training.withDefaults()
	if req.PopulationSize <= 0 {
		req.PopulationSize = 12
	}
	if req.EliteCount <= 0 {
		req.EliteCount = 3
	}
	if req.Generations <= 0 {
		req.Generations = 10
	}
	if req.Workers <= 0 {
		req.Workers = 4
	}
	if req.MemoryCeiling <= 0 {
		req.MemoryCeiling = 1 << 20
	}

	evaluator, _, err := c.buildEvaluator(ds, tr, req.Seed)
	if err != nil {
		return SearchSummary{}, err
	}
	monitor, err := evo.NewSearchMonitor(evo.SearchConfig{
		Evaluator:      evaluator,
		MemoryCeiling:  req.MemoryCeiling,
		PopulationSize: req.PopulationSize,
		EliteCount:     req.EliteCount,
		Generations:    req.Generations,
		Workers:        req.Workers,
		Seed:           req.Seed,
	})
	if err != nil {
		return SearchSummary{}, err
	}

	runID := uuid.NewString()
	runCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	if err := tower.RegisterRun(runID, cancel); err != nil {
		return SearchSummary{}, err
	}
	defer tower.UnregisterRun(runID)

	result, err := monitor.Run(runCtx, initialPopulation(ds))
	if err != nil {
		return SearchSummary{}, err
	}

	summary := SearchSummary{
		RunID:         runID,
		Fitness:       result.Fitness,
		BestByVariant: make(map[string]model.CandidateRecord),
	}
	evaluated := make([]model.CandidateRecord, len(result.Evaluated))
	for i, rec := range result.Evaluated {
		rec.VersionedRecord = storage.Stamp()
		evaluated[i] = rec
	}

	var bestGenome *model.Genome
	finalLoss := 0.0
	if result.Best != nil {
		record := candidateRecord(*result.Best, len(result.Fitness)-1)
		summary.Best = &record
		bestGenome = &result.Best.Genome
		finalLoss = result.Best.Fitness
	}
	for variant, cand := range result.BestByVariant {
		summary.BestByVariant[variant] = candidateRecord(*cand, len(result.Fitness)-1)
	}

	runConfig := stats.RunConfig{
		RunID:             runID,
		Kind:              "search",
		Seed:              req.Seed,
		Classes:           ds.Classes,
		SeqLen:            ds.SeqLen,
		TrainSamples:      ds.Train,
		ValidationSamples: ds.Validation,
		TestSamples:       ds.Test,
		Noise:             ds.Noise,
		Steps:             tr.Steps,
		BatchSize:         tr.BatchSize,
		LearningRate:      tr.LearningRate,
		Optimizer:         tr.Optimizer,
		Genome:            bestGenome,
		PopulationSize:    req.PopulationSize,
		EliteCount:        req.EliteCount,
		Generations:       req.Generations,
		Workers:           req.Workers,
		MemoryCeiling:     req.MemoryCeiling,
	}
	artifacts := stats.RunArtifacts{
		Config:        runConfig,
		Fitness:       result.Fitness,
		Diagnostics:   result.Diagnostics,
		Best:          summary.Best,
		BestByVariant: summary.BestByVariant,
		Evaluated:     evaluated,
		FinalLoss:     finalLoss,
	}
	artifactsDir, err := stats.WriteRunArtifacts(c.runsDir, artifacts)
	if err != nil {
		return SearchSummary{}, err
	}
	summary.ArtifactsDir = artifactsDir

	entry := stats.RunIndexEntry{
		RunID:        runID,
		Kind:         "search",
		FinalLoss:    finalLoss,
		Generations:  req.Generations,
		Seed:         req.Seed,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}
	record := model.RunSummaryRecord{
		RunID:       runID,
		Kind:        "search",
		FinalLoss:   finalLoss,
		Generations: req.Generations,
		Seed:        req.Seed,
	}
	if bestGenome != nil {
		entry.Symmetry = bestGenome.Symmetry
		entry.MemoryBytes = summary.Best.MemoryBytes
		record.GenomeID = bestGenome.ID
		record.MemoryBytes = summary.Best.MemoryBytes
	}
	if err := stats.AppendRunIndex(c.runsDir, entry); err != nil {
		return SearchSummary{}, err
	}
	if err := tower.PersistRun(ctx, record, bestGenome, evaluated, result.Fitness); err != nil {
		return SearchSummary{}, err
	}
	return summary, nil
}

// Evaluate reconstructs the run's model from its stored configuration,
// scores it on a held-out test set, and reports per-class precision/recall
// bootstrap intervals. For search runs the winning architecture is retrained
// under the run seed, so the test evaluation never reuses the data the
// search selected on.
func (c *Client) Evaluate(ctx context.Context, req EvaluateRequest) (model.EvaluationResult, error) {
	tower, err := c.ensureTower(ctx)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	if req.Resamples <= 0 {
		req.Resamples = 1000
	}
	if req.Coverage <= 0 {
		req.Coverage = 0.95
	}

	candidate, split, genome, err := c.rebuildRun(ctx, req.RunID)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	if candidate.Diverged {
		return model.EvaluationResult{}, model.ErrDiverged
	}

	predicted, err := train.PredictLabels(candidate.Model, split.Test)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	truth := make([]int, len(split.Test.Samples))
	for i, sample := range split.Test.Samples {
		truth[i] = sample.Label
	}

	result, err := stats.Bootstrap(stats.BootstrapConfig{
		Resamples: req.Resamples,
		Coverage:  req.Coverage,
		Seed:      req.Seed,
	}, truth, predicted, split.Test.Classes)
	if err != nil {
		return model.EvaluationResult{}, err
	}
	result.VersionedRecord = storage.Stamp()
	result.RunID = req.RunID
	result.GenomeID = genome.ID

	if _, err := stats.WriteEvaluation(c.runsDir, result); err != nil {
		return model.EvaluationResult{}, err
	}
	if err := tower.Store().SaveEvaluation(ctx, result); err != nil {
		return model.EvaluationResult{}, err
	}
	return result, nil
}

// Compare runs a paired sign-flip permutation test between two stored runs
// on a shared test set. The runs must have been trained against the same
// dataset configuration, otherwise their per-sample losses do not pair.
func (c *Client) Compare(ctx context.Context, req CompareRequest) (stats.ComparisonResult, error) {
	if _, err := c.ensureTower(ctx); err != nil {
		return stats.ComparisonResult{}, err
	}
	if req.Permutations <= 0 {
		req.Permutations = 2000
	}
	if req.Alpha <= 0 {
		req.Alpha = 0.05
	}

	candA, splitA, _, err := c.rebuildRun(ctx, req.RunIDA)
	if err != nil {
		return stats.ComparisonResult{}, err
	}
	candB, splitB, _, err := c.rebuildRun(ctx, req.RunIDB)
	if err != nil {
		return stats.ComparisonResult{}, err
	}
	if candA.Diverged || candB.Diverged {
		return stats.ComparisonResult{}, model.ErrDiverged
	}
	if len(splitA.Test.Samples) != len(splitB.Test.Samples) || len(splitA.Test.Classes) != len(splitB.Test.Classes) {
		return stats.ComparisonResult{}, model.Configf("runs %s and %s were trained on different dataset configurations", req.RunIDA, req.RunIDB)
	}

	lossesA, err := train.SampleLosses(candA.Model, splitA.Test)
	if err != nil {
		return stats.ComparisonResult{}, err
	}
	lossesB, err := train.SampleLosses(candB.Model, splitA.Test)
	if err != nil {
		return stats.ComparisonResult{}, err
	}

	result, err := stats.PermutationANOVA(stats.ANOVAConfig{
		Permutations: req.Permutations,
		Seed:         req.Seed,
		Alpha:        req.Alpha,
	}, lossesA, lossesB)
	if err != nil {
		return stats.ComparisonResult{}, err
	}
	if _, err := stats.WriteComparison(c.runsDir, req.RunIDA, result); err != nil {
		return stats.ComparisonResult{}, err
	}
	return result, nil
}

// Predict classifies one trajectory with the run's reconstructed model.
func (c *Client) Predict(ctx context.Context, req PredictRequest) (Prediction, error) {
	if _, err := c.ensureTower(ctx); err != nil {
		return Prediction{}, err
	}
	candidate, split, _, err := c.rebuildRun(ctx, req.RunID)
	if err != nil {
		return Prediction{}, err
	}
	if candidate.Diverged {
		return Prediction{}, model.ErrDiverged
	}

	group, err := symmetry.ParseGroup(candidate.Genome.Symmetry)
	if err != nil {
		return Prediction{}, err
	}
	sample := dataset.Sample{Channels: req.Channels}
	encoded, err := split.Test.Encode(sample, group)
	if err != nil {
		return Prediction{}, err
	}
	probs, err := candidate.Model.Predict(encoded)
	if err != nil {
		return Prediction{}, err
	}

	prediction := Prediction{Probabilities: make(map[string]float64, len(probs))}
	best := 0
	for i, p := range probs {
		prediction.Probabilities[split.Test.Classes[i]] = p
		if p > probs[best] {
			best = i
		}
	}
	prediction.Label = split.Test.Classes[best]
	return prediction, nil
}

// Runs lists stored run summaries, newest last.
func (c *Client) Runs(ctx context.Context) ([]model.RunSummaryRecord, error) {
	tower, err := c.ensureTower(ctx)
	if err != nil {
		return nil, err
	}
	return tower.Store().ListRunSummaries(ctx)
}

// FitnessHistory returns the stored best-by-generation series of a run.
func (c *Client) FitnessHistory(ctx context.Context, runID string) ([]model.FitnessPoint, error) {
	tower, err := c.ensureTower(ctx)
	if err != nil {
		return nil, err
	}
	history, ok, err := tower.Store().GetFitnessHistory(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("no fitness history for run %s", runID)
	}
	return history, nil
}

// Export copies a run's artifact directory into the exports directory.
func (c *Client) Export(_ context.Context, runID string) (string, error) {
	return stats.ExportRunArtifacts(c.runsDir, runID, c.exportsDir)
}

// rebuildRun reproduces a run's trained model from its persisted
// configuration: same dataset seed, same genome, same training seed.
func (c *Client) rebuildRun(ctx context.Context, runID string) (train.Candidate, dataset.Split, model.Genome, error) {
	if runID == "" {
		return train.Candidate{}, dataset.Split{}, model.Genome{}, model.Configf("run id is required")
	}
	cfg, ok, err := stats.ReadRunConfig(c.runsDir, runID)
	if err != nil {
		return train.Candidate{}, dataset.Split{}, model.Genome{}, err
	}
	if !ok {
		return train.Candidate{}, dataset.Split{}, model.Genome{}, fmt.Errorf("no stored configuration for run %s", runID)
	}
	if cfg.Genome == nil {
		return train.Candidate{}, dataset.Split{}, model.Genome{}, fmt.Errorf("run %s has no trained genome", runID)
	}

	ds := DatasetSpec{
		Train:      cfg.TrainSamples,
		Validation: cfg.ValidationSamples,
		Test:       cfg.TestSamples,
		SeqLen:     cfg.SeqLen,
		Classes:    cfg.Classes,
		Noise:      cfg.Noise,
	}
	tr := TrainingSpec{
		Steps:        cfg.Steps,
		BatchSize:    cfg.BatchSize,
		LearningRate: cfg.LearningRate,
		Optimizer:    cfg.Optimizer,
	}
	evaluator, split, err := c.buildEvaluator(ds, tr, cfg.Seed)
	if err != nil {
		return train.Candidate{}, dataset.Split{}, model.Genome{}, err
	}
	candidate, err := evaluator.Evaluate(ctx, *cfg.Genome, cfg.Seed)
	if err != nil {
		return train.Candidate{}, dataset.Split{}, model.Genome{}, err
	}
	return candidate, split, *cfg.Genome, nil
}

func (c *Client) persistRun(ctx context.Context, tower *platform.Tower, cfg stats.RunConfig, history []model.FitnessPoint, diagnostics []model.GenerationDiagnostics, records []model.CandidateRecord, finalLoss float64, candidate train.Candidate, genome model.Genome) (string, error) {
	var best *model.CandidateRecord
	if len(records) > 0 {
		best = &records[0]
	}
	artifacts := stats.RunArtifacts{
		Config:      cfg,
		Fitness:     history,
		Diagnostics: diagnostics,
		Best:        best,
		Evaluated:   records,
		FinalLoss:   finalLoss,
	}
	artifactsDir, err := stats.WriteRunArtifacts(c.runsDir, artifacts)
	if err != nil {
		return "", err
	}
	entry := stats.RunIndexEntry{
		RunID:        cfg.RunID,
		Kind:         cfg.Kind,
		Symmetry:     genome.Symmetry,
		FinalLoss:    finalLoss,
		MemoryBytes:  candidate.MemoryBytes,
		Seed:         cfg.Seed,
		CreatedAtUTC: time.Now().UTC().Format(time.RFC3339),
	}
	if err := stats.AppendRunIndex(c.runsDir, entry); err != nil {
		return "", err
	}
	record := model.RunSummaryRecord{
		RunID:       cfg.RunID,
		Kind:        cfg.Kind,
		GenomeID:    genome.ID,
		FinalLoss:   finalLoss,
		MemoryBytes: candidate.MemoryBytes,
		Seed:        cfg.Seed,
	}
	if err := tower.PersistRun(ctx, record, &genome, records, history); err != nil {
		return "", err
	}
	return artifactsDir, nil
}

// initialPopulation seeds the search with one small genome per symmetry
// variant.
func initialPopulation(_ DatasetSpec) []model.Genome {
	initial := make([]model.Genome, 0, len(symmetry.Groups()))
	for _, g := range symmetry.Groups() {
		initial = append(initial, evo.NewGenome(2, 3, 8, 16, g))
	}
	return initial
}

func candidateRecord(c train.Candidate, generation int) model.CandidateRecord {
	return model.CandidateRecord{
		VersionedRecord: storage.Stamp(),
		ID:              uuid.NewString(),
		GenomeID:        c.Genome.ID,
		Genome:          c.Genome,
		Fitness:         c.Fitness,
		MemoryBytes:     c.MemoryBytes,
		Generation:      generation,
	}
}
