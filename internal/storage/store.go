package storage

import (
	"context"

	"volant/internal/model"
)

// Store defines persistence operations for the core entities: genomes,
// evaluated candidates, fitness series, bootstrap evaluations, and run
// summaries.
type Store interface {
	Init(ctx context.Context) error
	SaveGenome(ctx context.Context, genome model.Genome) error
	GetGenome(ctx context.Context, id string) (model.Genome, bool, error)
	SaveCandidates(ctx context.Context, runID string, candidates []model.CandidateRecord) error
	GetCandidates(ctx context.Context, runID string) ([]model.CandidateRecord, bool, error)
	SaveFitnessHistory(ctx context.Context, runID string, history []model.FitnessPoint) error
	GetFitnessHistory(ctx context.Context, runID string) ([]model.FitnessPoint, bool, error)
	SaveEvaluation(ctx context.Context, result model.EvaluationResult) error
	GetEvaluation(ctx context.Context, runID string) (model.EvaluationResult, bool, error)
	SaveRunSummary(ctx context.Context, summary model.RunSummaryRecord) error
	GetRunSummary(ctx context.Context, runID string) (model.RunSummaryRecord, bool, error)
	ListRunSummaries(ctx context.Context) ([]model.RunSummaryRecord, error)
}
