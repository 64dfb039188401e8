package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func writeProfile(t *testing.T, name, body string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}
	return path
}

func TestLoadTrainProfileJSON(t *testing.T) {
	path := writeProfile(t, "train.json", `{
		"dataset": {"train": 60, "validation": 20, "test": 20, "seq_len": 32, "classes": 3, "noise": 0.05},
		"training": {"steps": 150, "batch_size": 4, "learning_rate": 0.02, "optimizer": "sgd"},
		"genome": {"num_blocks": 3, "kernel_size": 5, "kernel_width": 10, "fc_width": 20, "symmetry": "se2"},
		"seed": 99
	}`)

	req, err := loadTrainProfile(path)
	if err != nil {
		t.Fatalf("load train profile: %v", err)
	}
	if req.Dataset.Train != 60 || req.Dataset.SeqLen != 32 || req.Dataset.Noise != 0.05 {
		t.Fatalf("unexpected dataset spec: %+v", req.Dataset)
	}
	if req.Training.Steps != 150 || req.Training.Optimizer != "sgd" {
		t.Fatalf("unexpected training spec: %+v", req.Training)
	}
	if req.Genome.NumBlocks != 3 || req.Genome.KernelSize != 5 || req.Genome.Symmetry != "se2" {
		t.Fatalf("unexpected genome spec: %+v", req.Genome)
	}
	if req.Seed != 99 {
		t.Fatalf("unexpected seed: %d", req.Seed)
	}
}

func TestLoadTrainProfileYAML(t *testing.T) {
	path := writeProfile(t, "train.yaml", `
dataset:
  train: 80
  validation: 30
  test: 30
  seq_len: 48
training:
  steps: 120
  batch_size: 6
  learning_rate: 0.01
  optimizer: adam
genome:
  num_blocks: 2
  kernel_size: 3
  kernel_width: 8
  fc_width: 16
  symmetry: se3
seed: 7
`)

	req, err := loadTrainProfile(path)
	if err != nil {
		t.Fatalf("load train profile: %v", err)
	}
	if req.Dataset.Validation != 30 || req.Dataset.SeqLen != 48 {
		t.Fatalf("unexpected dataset spec: %+v", req.Dataset)
	}
	if req.Genome.Symmetry != "se3" || req.Seed != 7 {
		t.Fatalf("unexpected genome/seed: %+v seed=%d", req.Genome, req.Seed)
	}
}

func TestLoadSearchProfileParsesMemoryCeiling(t *testing.T) {
	path := writeProfile(t, "search.yml", `
dataset:
  train: 40
  validation: 16
  test: 16
  seq_len: 24
training:
  steps: 60
  batch_size: 4
  learning_rate: 0.01
population_size: 6
elite_count: 2
generations: 3
workers: 2
memory_ceiling: 64KiB
seed: 5
`)

	req, err := loadSearchProfile(path)
	if err != nil {
		t.Fatalf("load search profile: %v", err)
	}
	if req.PopulationSize != 6 || req.EliteCount != 2 || req.Generations != 3 {
		t.Fatalf("unexpected search controls: %+v", req)
	}
	if req.MemoryCeiling != 64*1024 {
		t.Fatalf("expected 64KiB ceiling, got %d", req.MemoryCeiling)
	}
}

func TestLoadSearchProfileRejectsBadCeiling(t *testing.T) {
	path := writeProfile(t, "search.json", `{"memory_ceiling": "lots"}`)
	if _, err := loadSearchProfile(path); err == nil {
		t.Fatal("expected error for unparseable memory ceiling")
	}
}

func TestUnmarshalProfileRejectsUnknownExtension(t *testing.T) {
	path := writeProfile(t, "train.toml", `seed = 1`)
	if _, err := loadTrainProfile(path); err == nil || !strings.Contains(err.Error(), "unsupported extension") {
		t.Fatalf("expected unsupported extension error, got %v", err)
	}
}

func TestParseMemoryCeiling(t *testing.T) {
	ceiling, err := parseMemoryCeiling("1MiB")
	if err != nil {
		t.Fatalf("parse 1MiB: %v", err)
	}
	if ceiling != 1<<20 {
		t.Fatalf("expected %d, got %d", 1<<20, ceiling)
	}
	if _, err := parseMemoryCeiling("plenty"); err == nil {
		t.Fatal("expected error for non-size input")
	}
}
