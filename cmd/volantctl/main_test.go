package main

import (
	"context"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"volant/internal/stats"
)

func chdirTemp(t *testing.T) string {
	t.Helper()
	origWD, err := os.Getwd()
	if err != nil {
		t.Fatalf("getwd: %v", err)
	}
	workdir := t.TempDir()
	if err := os.Chdir(workdir); err != nil {
		t.Fatalf("chdir tempdir: %v", err)
	}
	t.Cleanup(func() {
		_ = os.Chdir(origWD)
	})
	return workdir
}

func TestRunRejectsMissingAndUnknownCommands(t *testing.T) {
	if err := run(context.Background(), nil); err == nil || !strings.Contains(err.Error(), "missing command") {
		t.Fatalf("expected missing command error, got %v", err)
	}
	if err := run(context.Background(), []string{"launch"}); err == nil || !strings.Contains(err.Error(), "unknown command: launch") {
		t.Fatalf("expected unknown command error, got %v", err)
	}
}

func TestResolveRunIDRequiresIDOrLatest(t *testing.T) {
	chdirTemp(t)
	if _, err := resolveRunID("", false); err == nil {
		t.Fatal("expected error without run id or -latest")
	}
	if _, err := resolveRunID("", true); err == nil {
		t.Fatal("expected error when no runs are indexed")
	}
	id, err := resolveRunID("run-7", false)
	if err != nil || id != "run-7" {
		t.Fatalf("expected explicit id to pass through, got %q err=%v", id, err)
	}
}

func TestTrainCommandWritesArtifacts(t *testing.T) {
	chdirTemp(t)

	args := []string{
		"train",
		"-store", "memory",
		"-train", "24", "-validation", "12", "-test", "12",
		"-seq-len", "16", "-classes", "3",
		"-blocks", "1", "-kernel-size", "3", "-kernel-width", "6", "-fc-width", "12",
		"-symmetry", "none",
		"-steps", "30", "-batch", "4",
		"-seed", "42",
	}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("train command: %v", err)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 {
		t.Fatalf("expected one indexed run, got %d", len(entries))
	}
	if entries[0].Kind != "train" {
		t.Fatalf("expected train run kind, got %s", entries[0].Kind)
	}

	for _, file := range []string{"config.json", "fitness_history.json", "best.json"} {
		path := filepath.Join(runsDir, entries[0].RunID, file)
		if _, err := os.Stat(path); err != nil {
			t.Fatalf("expected artifact %s: %v", path, err)
		}
	}
}

func TestTrainCommandLoadsProfile(t *testing.T) {
	workdir := chdirTemp(t)

	profile := filepath.Join(workdir, "train.json")
	body := `{
		"dataset": {"train": 24, "validation": 12, "test": 12, "seq_len": 16, "classes": 3},
		"training": {"steps": 30, "batch_size": 4, "learning_rate": 0.01, "optimizer": "adam"},
		"genome": {"num_blocks": 1, "kernel_size": 3, "kernel_width": 6, "fc_width": 12, "symmetry": "se2"},
		"seed": 17
	}`
	if err := os.WriteFile(profile, []byte(body), 0o644); err != nil {
		t.Fatalf("write profile: %v", err)
	}

	args := []string{"train", "-store", "memory", "-config", profile}
	if err := run(context.Background(), args); err != nil {
		t.Fatalf("train command with profile: %v", err)
	}

	entries, err := stats.ListRunIndex(runsDir)
	if err != nil {
		t.Fatalf("list run index: %v", err)
	}
	if len(entries) != 1 || entries[0].Symmetry != "se2" || entries[0].Seed != 17 {
		t.Fatalf("expected profile-driven se2 run with seed 17, got %+v", entries)
	}
}

func TestFitnessCommandPrintsLatestRun(t *testing.T) {
	chdirTemp(t)

	train := []string{
		"train",
		"-store", "memory",
		"-train", "24", "-validation", "12", "-test", "12",
		"-seq-len", "16", "-classes", "3",
		"-blocks", "1", "-kernel-size", "3", "-kernel-width", "6", "-fc-width", "12",
		"-steps", "30", "-batch", "4",
		"-seed", "42",
	}
	if err := run(context.Background(), train); err != nil {
		t.Fatalf("train command: %v", err)
	}

	if err := run(context.Background(), []string{"fitness", "-latest"}); err != nil {
		t.Fatalf("fitness command: %v", err)
	}
	if err := run(context.Background(), []string{"runs"}); err != nil {
		t.Fatalf("runs command: %v", err)
	}
}

func TestResetCommandClearsWorkspace(t *testing.T) {
	chdirTemp(t)

	if err := os.MkdirAll(filepath.Join(runsDir, "run-1"), 0o755); err != nil {
		t.Fatalf("seed runs dir: %v", err)
	}
	if err := os.WriteFile("volant.db", []byte("x"), 0o644); err != nil {
		t.Fatalf("seed db file: %v", err)
	}

	if err := run(context.Background(), []string{"reset"}); err != nil {
		t.Fatalf("reset command: %v", err)
	}
	if _, err := os.Stat(runsDir); !os.IsNotExist(err) {
		t.Fatalf("expected runs dir removed, got %v", err)
	}
	if _, err := os.Stat("volant.db"); !os.IsNotExist(err) {
		t.Fatalf("expected db file removed, got %v", err)
	}
}
