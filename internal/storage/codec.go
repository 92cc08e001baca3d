package storage

import (
	"encoding/json"
	"errors"
	"sort"

	"bendgen/internal/model"
)

const (
	CurrentSchemaVersion = 1
	CurrentCodecVersion  = 1
)

var ErrVersionMismatch = errors.New("record version mismatch")

// CurrentVersion is the version header new records are written with.
func CurrentVersion() model.VersionedRecord {
	return model.VersionedRecord{SchemaVersion: CurrentSchemaVersion, CodecVersion: CurrentCodecVersion}
}

func EncodeRun(r model.RunRecord) ([]byte, error) {
	return json.Marshal(r)
}

func DecodeRun(data []byte) (model.RunRecord, error) {
	var run model.RunRecord
	if err := json.Unmarshal(data, &run); err != nil {
		return model.RunRecord{}, err
	}
	if err := checkVersion(run.VersionedRecord); err != nil {
		return model.RunRecord{}, err
	}
	return run, nil
}

func EncodePopulation(p model.PopulationRecord) ([]byte, error) {
	return json.Marshal(p)
}

func DecodePopulation(data []byte) (model.PopulationRecord, error) {
	var population model.PopulationRecord
	if err := json.Unmarshal(data, &population); err != nil {
		return model.PopulationRecord{}, err
	}
	if err := checkVersion(population.VersionedRecord); err != nil {
		return model.PopulationRecord{}, err
	}
	return population, nil
}

func EncodeLineage(records []model.LineageRecord) ([]byte, error) {
	return json.Marshal(records)
}

func DecodeLineage(data []byte) ([]model.LineageRecord, error) {
	var records []model.LineageRecord
	if err := json.Unmarshal(data, &records); err != nil {
		return nil, err
	}
	return records, nil
}

func EncodeGenerationDiagnostics(diagnostics []model.GenerationDiagnostics) ([]byte, error) {
	return json.Marshal(diagnostics)
}

func DecodeGenerationDiagnostics(data []byte) ([]model.GenerationDiagnostics, error) {
	var diagnostics []model.GenerationDiagnostics
	if err := json.Unmarshal(data, &diagnostics); err != nil {
		return nil, err
	}
	return diagnostics, nil
}

func checkVersion(v model.VersionedRecord) error {
	if v.SchemaVersion != CurrentSchemaVersion || v.CodecVersion != CurrentCodecVersion {
		return ErrVersionMismatch
	}
	return nil
}

func clonePopulation(p model.PopulationRecord) model.PopulationRecord {
	out := p
	out.Organisms = make([]model.Organism, len(p.Organisms))
	for i, o := range p.Organisms {
		out.Organisms[i] = o.Clone()
	}
	return out
}

func cloneRun(r model.RunRecord) model.RunRecord {
	out := r
	if r.Best != nil {
		best := r.Best.Clone()
		out.Best = &best
	}
	return out
}

func cloneLineage(records []model.LineageRecord) []model.LineageRecord {
	out := make([]model.LineageRecord, len(records))
	for i, record := range records {
		out[i] = record
		out[i].ParentIDs = append([]string(nil), record.ParentIDs...)
	}
	return out
}

// sortRuns orders runs oldest first, then by id.
func sortRuns(runs []model.RunRecord) {
	sort.SliceStable(runs, func(i, j int) bool {
		if !runs[i].CreatedAtUTC.Equal(runs[j].CreatedAtUTC) {
			return runs[i].CreatedAtUTC.Before(runs[j].CreatedAtUTC)
		}
		return runs[i].ID < runs[j].ID
	})
}
