package dataset

import (
	"testing"
)

func TestGenerateSplitDeterministic(t *testing.T) {
	cfg := GenerateConfig{Train: 20, Validation: 10, Test: 10, SeqLen: 16, Classes: 3, Seed: 17}
	first, err := GenerateSplit(cfg)
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	second, err := GenerateSplit(cfg)
	if err != nil {
		t.Fatalf("generate again: %v", err)
	}
	if len(first.Train.Samples) != 20 || len(first.Validation.Samples) != 10 || len(first.Test.Samples) != 10 {
		t.Fatalf("unexpected partition sizes: %d/%d/%d", len(first.Train.Samples), len(first.Validation.Samples), len(first.Test.Samples))
	}
	for i := range first.Train.Samples {
		a, b := first.Train.Samples[i], second.Train.Samples[i]
		if a.Label != b.Label {
			t.Fatalf("sample %d label differs between runs", i)
		}
		for tt := range a.Channels {
			if !equalRow(a.Channels[tt], b.Channels[tt]) {
				t.Fatalf("sample %d row %d differs between runs", i, tt)
			}
		}
	}
}

func TestGenerateSplitCoversRequestedClasses(t *testing.T) {
	split, err := GenerateSplit(GenerateConfig{Train: 9, Validation: 3, Test: 3, SeqLen: 8, Classes: 3, Seed: 1})
	if err != nil {
		t.Fatalf("generate: %v", err)
	}
	if len(split.Train.Classes) != 3 {
		t.Fatalf("class list: got %d want 3", len(split.Train.Classes))
	}
	seen := map[int]bool{}
	for _, sample := range split.Train.Samples {
		seen[sample.Label] = true
	}
	for label := 0; label < 3; label++ {
		if !seen[label] {
			t.Fatalf("label %d missing from train partition", label)
		}
	}
}

func TestGenerateSplitRejectsBadConfig(t *testing.T) {
	if _, err := GenerateSplit(GenerateConfig{Train: 0, Validation: 1, Test: 1, SeqLen: 8}); err == nil {
		t.Fatal("expected error for empty train partition")
	}
	if _, err := GenerateSplit(GenerateConfig{Train: 1, Validation: 1, Test: 1, SeqLen: 1}); err == nil {
		t.Fatal("expected error for short sequences")
	}
	if _, err := GenerateSplit(GenerateConfig{Train: 1, Validation: 1, Test: 1, SeqLen: 8, Classes: 9}); err == nil {
		t.Fatal("expected error for class count out of range")
	}
}
