package storage

import (
	"errors"
	"testing"

	"volant/internal/model"
)

func TestGenomeCodecRoundTrip(t *testing.T) {
	genome := stampedGenome("g-codec")
	data, err := EncodeGenome(genome)
	if err != nil {
		t.Fatalf("EncodeGenome: %v", err)
	}
	got, err := DecodeGenome(data)
	if err != nil {
		t.Fatalf("DecodeGenome: %v", err)
	}
	if got != genome {
		t.Fatalf("round trip mismatch: %+v vs %+v", got, genome)
	}
}

func TestDecodeRejectsVersionMismatch(t *testing.T) {
	genome := stampedGenome("g-old")
	genome.SchemaVersion = CurrentSchemaVersion + 1
	data, err := EncodeGenome(genome)
	if err != nil {
		t.Fatalf("EncodeGenome: %v", err)
	}
	if _, err := DecodeGenome(data); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch, got %v", err)
	}

	record := model.CandidateRecord{ID: "c-old", GenomeID: "g-old"}
	payload, err := EncodeCandidates([]model.CandidateRecord{record})
	if err != nil {
		t.Fatalf("EncodeCandidates: %v", err)
	}
	if _, err := DecodeCandidates(payload); !errors.Is(err, ErrVersionMismatch) {
		t.Fatalf("expected ErrVersionMismatch for unstamped candidate, got %v", err)
	}
}

func TestEvaluationCodecRoundTrip(t *testing.T) {
	result := model.EvaluationResult{
		VersionedRecord: Stamp(),
		RunID:           "run-codec",
		GenomeID:        "g-codec",
		Resamples:       500,
		Coverage:        0.95,
		TestSize:        40,
		Classes: []model.ClassInterval{
			{Class: "descent", Precision: 0.8, Recall: 0.7, PrecisionLow: 0.6, PrecisionHigh: 0.95, RecallLow: 0.5, RecallHigh: 0.9, Support: 13},
		},
	}
	data, err := EncodeEvaluation(result)
	if err != nil {
		t.Fatalf("EncodeEvaluation: %v", err)
	}
	got, err := DecodeEvaluation(data)
	if err != nil {
		t.Fatalf("DecodeEvaluation: %v", err)
	}
	if got.RunID != result.RunID || len(got.Classes) != 1 || got.Classes[0] != result.Classes[0] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}

func TestFitnessHistoryCodecPreservesFeasibility(t *testing.T) {
	history := []model.FitnessPoint{
		{Generation: 0, BestLoss: 0.7, Feasible: true},
		{Generation: 1, Feasible: false},
	}
	data, err := EncodeFitnessHistory(history)
	if err != nil {
		t.Fatalf("EncodeFitnessHistory: %v", err)
	}
	got, err := DecodeFitnessHistory(data)
	if err != nil {
		t.Fatalf("DecodeFitnessHistory: %v", err)
	}
	if len(got) != 2 || got[0] != history[0] || got[1] != history[1] {
		t.Fatalf("round trip mismatch: %+v", got)
	}
}
