package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"

	"volant/internal/model"
)

const (
	runIndexFile   = "run_index.json"
	evaluationsDir = "evaluations"
)

// RunConfig is the persisted configuration of one run. Train and search runs
// share the struct; fields that do not apply to a kind stay at their zero
// value and are omitted from the JSON.
type RunConfig struct {
	RunID             string        `json:"run_id"`
	Kind              string        `json:"kind"`
	Seed              int64         `json:"seed"`
	Classes           int           `json:"classes"`
	SeqLen            int           `json:"seq_len"`
	TrainSamples      int           `json:"train_samples"`
	ValidationSamples int           `json:"validation_samples"`
	TestSamples       int           `json:"test_samples"`
	Noise             float64       `json:"noise,omitempty"`
	Steps             int           `json:"steps"`
	BatchSize         int           `json:"batch_size"`
	LearningRate      float64       `json:"learning_rate"`
	Optimizer         string        `json:"optimizer"`
	Genome            *model.Genome `json:"genome,omitempty"`
	PopulationSize    int           `json:"population_size,omitempty"`
	EliteCount        int           `json:"elite_count,omitempty"`
	Generations       int           `json:"generations,omitempty"`
	Workers           int           `json:"workers,omitempty"`
	MemoryCeiling     int64         `json:"memory_ceiling_bytes,omitempty"`
}

// RunArtifacts is everything a finished run writes under its run directory.
type RunArtifacts struct {
	Config        RunConfig                        `json:"config"`
	Fitness       []model.FitnessPoint             `json:"fitness"`
	Diagnostics   []model.GenerationDiagnostics    `json:"diagnostics,omitempty"`
	Best          *model.CandidateRecord           `json:"best,omitempty"`
	BestByVariant map[string]model.CandidateRecord `json:"best_by_variant,omitempty"`
	Evaluated     []model.CandidateRecord          `json:"evaluated,omitempty"`
	FinalLoss     float64                          `json:"final_loss"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Kind         string  `json:"kind"`
	Symmetry     string  `json:"symmetry,omitempty"`
	FinalLoss    float64 `json:"final_loss"`
	MemoryBytes  int64   `json:"memory_bytes,omitempty"`
	Generations  int     `json:"generations,omitempty"`
	Seed         int64   `json:"seed"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

// WriteRunArtifacts lays the run out as one directory of JSON files and
// returns its path.
func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	if err := writeJSON(filepath.Join(runDir, "config.json"), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "fitness_history.json"), map[string]any{
		"fitness":    artifacts.Fitness,
		"final_loss": artifacts.FinalLoss,
	}); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "generation_diagnostics.json"), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "candidates.json"), artifacts.Evaluated); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, "best.json"), map[string]any{
		"best":            artifacts.Best,
		"best_by_variant": artifacts.BestByVariant,
	}); err != nil {
		return "", err
	}
	return runDir, nil
}

// AppendRunIndex upserts the entry into the shared run index.
func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}
	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}
	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns index entries newest-first. A missing index reads as
// empty, not as an error.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runIndexFile))
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}
	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].CreatedAtUTC > entries[j].CreatedAtUTC
	})
	return entries, nil
}

// WriteEvaluation stores a bootstrap evaluation under
// evaluations/<run-id>/evaluation.json.
func WriteEvaluation(baseDir string, result model.EvaluationResult) (string, error) {
	if result.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}
	dir := filepath.Join(baseDir, evaluationsDir, result.RunID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "evaluation.json")
	return path, writeJSON(path, result)
}

// WriteComparison stores a permutation-test comparison next to the
// evaluation of the first run.
func WriteComparison(baseDir, runID string, result ComparisonResult) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	dir := filepath.Join(baseDir, evaluationsDir, runID)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", err
	}
	path := filepath.Join(dir, "comparison.json")
	return path, writeJSON(path, result)
}

// ExportRunArtifacts copies a run directory into outDir for sharing.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}
	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}
	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}
	files := []string{"config.json", "fitness_history.json", "generation_diagnostics.json", "candidates.json", "best.json"}
	for _, file := range files {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "config.json"))
	if err != nil {
		if os.IsNotExist(err) {
			return RunConfig{}, false, nil
		}
		return RunConfig{}, false, err
	}
	var cfg RunConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return RunConfig{}, false, err
	}
	return cfg, true, nil
}

// ReadFitnessHistory loads the best-by-generation series of a stored run.
func ReadFitnessHistory(baseDir, runID string) ([]model.FitnessPoint, float64, error) {
	data, err := os.ReadFile(filepath.Join(baseDir, runID, "fitness_history.json"))
	if err != nil {
		return nil, 0, err
	}
	var payload struct {
		Fitness   []model.FitnessPoint `json:"fitness"`
		FinalLoss float64              `json:"final_loss"`
	}
	if err := json.Unmarshal(data, &payload); err != nil {
		return nil, 0, err
	}
	return payload.Fitness, payload.FinalLoss, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	if _, err := io.Copy(out, in); err != nil {
		out.Close()
		return err
	}
	return out.Close()
}
