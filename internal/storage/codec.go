package storage

import (
	"encoding/json"
	"errors"

	"volant/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// Stamp returns the version pair every persisted record must carry.
func Stamp() model.VersionedRecord {
	return model.VersionedRecord{
		SchemaVersion: CurrentSchemaVersion,
		CodecVersion:  CurrentCodecVersion,
	}
}

func EncodeGenome(g model.Genome) ([]byte, error) {
	return json.Marshal(g)
}

func DecodeGenome(data []byte) (model.Genome, error) {
	var genome model.Genome
	if err := json.Unmarshal(data, &genome); err != nil {
		return model.Genome{}, err
	}
	if err := checkVersion(genome.VersionedRecord); err != nil {
		return model.Genome{}, err
	}
	return genome, nil
}

func EncodeCandidates(records []model.CandidateRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeCandidates(data []byte) ([]model.CandidateRecord, error) {
	var records []model.CandidateRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	for _, record := range records {
		if err := checkVersion(record.VersionedRecord); err != nil {
			return nil, err
		}
	}
	return records, nil
}

func EncodeEvaluation(result model.EvaluationResult) ([]byte, error) {
	return json.Marshal(result)
}

func DecodeEvaluation(data []byte) (model.EvaluationResult, error) {
	var result model.EvaluationResult
	if err := json.Unmarshal(data, &result); err != nil {
		return model.EvaluationResult{}, err
	}
	if err := checkVersion(result.VersionedRecord); err != nil {
		return model.EvaluationResult{}, err
	}
	return result, nil
}

func EncodeRunSummary(summary model.RunSummaryRecord) ([]byte, error) {
	return json.Marshal(summary)
}

func DecodeRunSummary(data []byte) (model.RunSummaryRecord, error) {
	var summary model.RunSummaryRecord
	if err := json.Unmarshal(data, &summary); err != nil {
		return model.RunSummaryRecord{}, err
	}
	if err := checkVersion(summary.VersionedRecord); err != nil {
		return model.RunSummaryRecord{}, err
	}
	return summary, nil
}

func EncodeFitnessHistory(history []model.FitnessPoint) ([]byte, error) {
	return json.Marshal(history)
}

func DecodeFitnessHistory(data []byte) ([]model.FitnessPoint, error) {
	var history []model.FitnessPoint
	if err := json.Unmarshal(data, &history); err != nil {
		return nil, err
	}
	return history, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}
