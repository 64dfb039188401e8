package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	yaml "gopkg.in/yaml.v2"

	volantapi "volant/pkg/volant"
)

// Profile files let a repeated experiment live next to the data instead of
// in shell history. JSON and YAML carry the same field names.
type datasetProfile struct {
	Train      int     `json:"train" yaml:"train"`
	Validation int     `json:"validation" yaml:"validation"`
	Test       int     `json:"test" yaml:"test"`
	SeqLen     int     `json:"seq_len" yaml:"seq_len"`
	Classes    int     `json:"classes" yaml:"classes"`
	Noise      float64 `json:"noise" yaml:"noise"`
}

type trainingProfile struct {
	Steps        int     `json:"steps" yaml:"steps"`
	BatchSize    int     `json:"batch_size" yaml:"batch_size"`
	LearningRate float64 `json:"learning_rate" yaml:"learning_rate"`
	Optimizer    string  `json:"optimizer" yaml:"optimizer"`
}

type genomeProfile struct {
	NumBlocks   int    `json:"num_blocks" yaml:"num_blocks"`
	KernelSize  int    `json:"kernel_size" yaml:"kernel_size"`
	KernelWidth int    `json:"kernel_width" yaml:"kernel_width"`
	FCWidth     int    `json:"fc_width" yaml:"fc_width"`
	Symmetry    string `json:"symmetry" yaml:"symmetry"`
}

type trainProfile struct {
	Dataset  datasetProfile  `json:"dataset" yaml:"dataset"`
	Training trainingProfile `json:"training" yaml:"training"`
	Genome   genomeProfile   `json:"genome" yaml:"genome"`
	Seed     int64           `json:"seed" yaml:"seed"`
}

type searchProfile struct {
	Dataset        datasetProfile  `json:"dataset" yaml:"dataset"`
	Training       trainingProfile `json:"training" yaml:"training"`
	PopulationSize int             `json:"population_size" yaml:"population_size"`
	EliteCount     int             `json:"elite_count" yaml:"elite_count"`
	Generations    int             `json:"generations" yaml:"generations"`
	Workers        int             `json:"workers" yaml:"workers"`
	MemoryCeiling  string          `json:"memory_ceiling" yaml:"memory_ceiling"`
	Seed           int64           `json:"seed" yaml:"seed"`
}

func loadTrainProfile(path string) (volantapi.TrainRequest, error) {
	var profile trainProfile
	if err := unmarshalProfile(path, &profile); err != nil {
		return volantapi.TrainRequest{}, err
	}
	return volantapi.TrainRequest{
		Dataset:  profile.Dataset.spec(),
		Training: profile.Training.spec(),
		Genome: volantapi.GenomeSpec{
			NumBlocks:   profile.Genome.NumBlocks,
			KernelSize:  profile.Genome.KernelSize,
			KernelWidth: profile.Genome.KernelWidth,
			FCWidth:     profile.Genome.FCWidth,
			Symmetry:    profile.Genome.Symmetry,
		},
		Seed: profile.Seed,
	}, nil
}

func loadSearchProfile(path string) (volantapi.SearchRequest, error) {
	var profile searchProfile
	if err := unmarshalProfile(path, &profile); err != nil {
		return volantapi.SearchRequest{}, err
	}
	req := volantapi.SearchRequest{
		Dataset:        profile.Dataset.spec(),
		Training:       profile.Training.spec(),
		PopulationSize: profile.PopulationSize,
		EliteCount:     profile.EliteCount,
		Generations:    profile.Generations,
		Workers:        profile.Workers,
		Seed:           profile.Seed,
	}
	if profile.MemoryCeiling != "" {
		ceiling, err := parseMemoryCeiling(profile.MemoryCeiling)
		if err != nil {
			return volantapi.SearchRequest{}, fmt.Errorf("profile %s: %w", filepath.Base(path), err)
		}
		req.MemoryCeiling = ceiling
	}
	return req, nil
}

func (p datasetProfile) spec() volantapi.DatasetSpec {
	return volantapi.DatasetSpec{
		Train:      p.Train,
		Validation: p.Validation,
		Test:       p.Test,
		SeqLen:     p.SeqLen,
		Classes:    p.Classes,
		Noise:      p.Noise,
	}
}

func (p trainingProfile) spec() volantapi.TrainingSpec {
	return volantapi.TrainingSpec{
		Steps:        p.Steps,
		BatchSize:    p.BatchSize,
		LearningRate: p.LearningRate,
		Optimizer:    p.Optimizer,
	}
}

// parseMemoryCeiling accepts human sizes like "64KiB" or "1MiB".
func parseMemoryCeiling(s string) (int64, error) {
	bytes, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("parse memory ceiling %q: %w", s, err)
	}
	return int64(bytes), nil
}

func unmarshalProfile(path string, out any) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return err
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		if err := yaml.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	case ".json":
		if err := json.Unmarshal(data, out); err != nil {
			return fmt.Errorf("parse %s: %w", filepath.Base(path), err)
		}
	default:
		return fmt.Errorf("profile %s: unsupported extension (want .json, .yaml or .yml)", filepath.Base(path))
	}
	return nil
}
