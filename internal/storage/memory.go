package storage

import (
	"context"
	"sync"

	"volant/internal/model"
)

type MemoryStore struct {
	mu          sync.RWMutex
	genomes     map[string]model.Genome
	candidates  map[string][]model.CandidateRecord
	history     map[string][]model.FitnessPoint
	evaluations map[string]model.EvaluationResult
	summaries   map[string]model.RunSummaryRecord
	runOrder    []string
}

func NewMemoryStore() *MemoryStore {
	return &MemoryStore{}
}

func (s *MemoryStore) Init(_ context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genomes = make(map[string]model.Genome)
	s.candidates = make(map[string][]model.CandidateRecord)
	s.history = make(map[string][]model.FitnessPoint)
	s.evaluations = make(map[string]model.EvaluationResult)
	s.summaries = make(map[string]model.RunSummaryRecord)
	s.runOrder = nil
	return nil
}

func (s *MemoryStore) SaveGenome(_ context.Context, genome model.Genome) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.genomes[genome.ID] = genome
	return nil
}

func (s *MemoryStore) GetGenome(_ context.Context, id string) (model.Genome, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	genome, ok := s.genomes[id]
	return genome, ok, nil
}

func (s *MemoryStore) SaveCandidates(_ context.Context, runID string, candidates []model.CandidateRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.CandidateRecord, len(candidates))
	copy(copied, candidates)
	s.candidates[runID] = copied
	return nil
}

func (s *MemoryStore) GetCandidates(_ context.Context, runID string) ([]model.CandidateRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candidates, ok := s.candidates[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.CandidateRecord, len(candidates))
	copy(copied, candidates)
	return copied, true, nil
}

func (s *MemoryStore) SaveFitnessHistory(_ context.Context, runID string, history []model.FitnessPoint) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	copied := make([]model.FitnessPoint, len(history))
	copy(copied, history)
	s.history[runID] = copied
	return nil
}

func (s *MemoryStore) GetFitnessHistory(_ context.Context, runID string) ([]model.FitnessPoint, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	history, ok := s.history[runID]
	if !ok {
		return nil, false, nil
	}
	copied := make([]model.FitnessPoint, len(history))
	copy(copied, history)
	return copied, true, nil
}

func (s *MemoryStore) SaveEvaluation(_ context.Context, result model.EvaluationResult) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	result.Classes = append([]model.ClassInterval(nil), result.Classes...)
	s.evaluations[result.RunID] = result
	return nil
}

func (s *MemoryStore) GetEvaluation(_ context.Context, runID string) (model.EvaluationResult, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	result, ok := s.evaluations[runID]
	if !ok {
		return model.EvaluationResult{}, false, nil
	}
	result.Classes = append([]model.ClassInterval(nil), result.Classes...)
	return result, true, nil
}

func (s *MemoryStore) SaveRunSummary(_ context.Context, summary model.RunSummaryRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.summaries[summary.RunID]; !ok {
		s.runOrder = append(s.runOrder, summary.RunID)
	}
	s.summaries[summary.RunID] = summary
	return nil
}

func (s *MemoryStore) GetRunSummary(_ context.Context, runID string) (model.RunSummaryRecord, bool, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summary, ok := s.summaries[runID]
	return summary, ok, nil
}

// ListRunSummaries returns summaries in first-saved order.
func (s *MemoryStore) ListRunSummaries(_ context.Context) ([]model.RunSummaryRecord, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	summaries := make([]model.RunSummaryRecord, 0, len(s.runOrder))
	for _, runID := range s.runOrder {
		summaries = append(summaries, s.summaries[runID])
	}
	return summaries, nil
}
