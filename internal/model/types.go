package model

// VersionedRecord captures schema and codec evolution for persistent data.
type VersionedRecord struct {
	SchemaVersion int `json:"schema_version"`
	CodecVersion  int `json:"codec_version"`
}

// Genome is the architecture hyperparameter vector realized by the model
// builder. A genome is immutable once fitness-evaluated; every mutation
// produces a new genome under a fresh ID.
type Genome struct {
	VersionedRecord
	ID          string `json:"id"`
	NumBlocks   int    `json:"num_blocks"`
	KernelSize  int    `json:"kernel_size"`
	KernelWidth int    `json:"kernel_width"`
	FCWidth     int    `json:"fc_width"`
	Symmetry    string `json:"symmetry"`
}

// CandidateRecord is the persisted view of an evaluated candidate. Only
// feasible candidates are persisted, so Fitness is always finite here.
type CandidateRecord struct {
	VersionedRecord
	ID          string  `json:"id"`
	GenomeID    string  `json:"genome_id"`
	Genome      Genome  `json:"genome"`
	Fitness     float64 `json:"fitness"`
	MemoryBytes int64   `json:"memory_bytes"`
	Generation  int     `json:"generation"`
}

// FitnessPoint is one entry of a best-by-generation series. Feasible is
// false for generations in which every candidate exceeded the memory ceiling
// or diverged; BestLoss is meaningless then.
type FitnessPoint struct {
	Generation int     `json:"generation"`
	BestLoss   float64 `json:"best_loss"`
	Feasible   bool    `json:"feasible"`
}

type GenerationDiagnostics struct {
	Generation      int            `json:"generation"`
	BestLoss        float64        `json:"best_loss"`
	MeanLoss        float64        `json:"mean_loss"`
	WorstLoss       float64        `json:"worst_loss"`
	FeasibleCount   int            `json:"feasible_count"`
	InfeasibleCount int            `json:"infeasible_count"`
	VariantCounts   map[string]int `json:"variant_counts,omitempty"`
}

// ClassInterval reports precision/recall for one maneuver class together
// with bootstrap percentile interval bounds at the stated coverage.
type ClassInterval struct {
	Class         string  `json:"class"`
	Precision     float64 `json:"precision"`
	Recall        float64 `json:"recall"`
	PrecisionLow  float64 `json:"precision_low"`
	PrecisionHigh float64 `json:"precision_high"`
	RecallLow     float64 `json:"recall_low"`
	RecallHigh    float64 `json:"recall_high"`
	Support       int     `json:"support"`
}

// EvaluationResult is immutable after creation: one per trained model
// against a held-out test set.
type EvaluationResult struct {
	VersionedRecord
	RunID     string          `json:"run_id"`
	GenomeID  string          `json:"genome_id"`
	Resamples int             `json:"resamples"`
	Coverage  float64         `json:"coverage"`
	TestSize  int             `json:"test_size"`
	Classes   []ClassInterval `json:"classes"`
}

// RunSummaryRecord is the store-side summary of a completed train or search
// run; full artifacts live on disk next to the run index.
type RunSummaryRecord struct {
	VersionedRecord
	RunID       string  `json:"run_id"`
	Kind        string  `json:"kind"`
	GenomeID    string  `json:"genome_id,omitempty"`
	FinalLoss   float64 `json:"final_loss"`
	MemoryBytes int64   `json:"memory_bytes,omitempty"`
	Generations int     `json:"generations,omitempty"`
	Seed        int64   `json:"seed"`
}
