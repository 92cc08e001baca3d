package stats

import (
	"bytes"
	"image/png"
	"os"
	"path/filepath"
	"testing"

	"bendgen/internal/model"
	"bendgen/internal/render"
)

func organism(id string, gen, index int, sentence string, angle float64) model.Organism {
	a := angle
	return model.Organism{
		ID:         id,
		Generation: gen,
		Index:      index,
		Operation:  model.OpSeed,
		Genotype:   model.Genotype{Axiom: "A", Sentence: sentence},
		Phenotype:  []model.Coord{{X: 0, Y: 0}, {X: 1, Y: 0}, {X: 2, Y: 1}, {X: 3, Y: 1}},
		Angle:      &a,
		Distance:   abs(40 - angle),
	}
}

func abs(v float64) float64 {
	if v < 0 {
		return -v
	}
	return v
}

func TestWriteRunArtifactsAndExport(t *testing.T) {
	base := t.TempDir()
	artifacts := RunArtifacts{
		Config: RunConfig{
			RunID:        "surrogate-1324-abcd1234",
			RunConfig:    model.RunConfig{Population: 2, Generations: 2, Seed: 1324, TargetAngle: 40, Evaluator: "surrogate"},
			CreatedAtUTC: "2026-01-02T03:04:05Z",
		},
		Diagnostics: []model.GenerationDiagnostics{
			{Generation: 0, BestAngle: 30, BestDistance: 10, MeanAngle: 20},
			{Generation: 1, BestAngle: 38, BestDistance: 2, MeanAngle: 31},
		},
		TopOrganisms: []TopOrganism{{Rank: 1, ID: "g1-0", Angle: 38}},
		Lineage:      []model.LineageRecord{{OrganismID: "g1-0", ParentIDs: []string{"g0-1"}, Generation: 1, Operation: model.OpElite}},
	}

	runDir, err := WriteRunArtifacts(base, artifacts)
	if err != nil {
		t.Fatalf("write artifacts: %v", err)
	}
	for _, file := range []string{configFile, fitnessHistoryFile, diagnosticsFile, topOrganismsFile, lineageFile, fitnessPlotFile} {
		if _, err := os.Stat(filepath.Join(runDir, file)); err != nil {
			t.Fatalf("expected %s: %v", file, err)
		}
	}

	cfg, ok, err := ReadRunConfig(base, artifacts.Config.RunID)
	if err != nil || !ok {
		t.Fatalf("read config: ok=%t err=%v", ok, err)
	}
	if cfg.Seed != 1324 || cfg.Evaluator != "surrogate" {
		t.Fatalf("unexpected config: %+v", cfg)
	}
	diagnostics, ok, err := ReadDiagnostics(base, artifacts.Config.RunID)
	if err != nil || !ok || len(diagnostics) != 2 || diagnostics[1].BestAngle != 38 {
		t.Fatalf("unexpected diagnostics: %+v ok=%t err=%v", diagnostics, ok, err)
	}
	lineage, ok, err := ReadLineage(base, artifacts.Config.RunID)
	if err != nil || !ok || lineage[0].ParentIDs[0] != "g0-1" {
		t.Fatalf("unexpected lineage: %+v ok=%t err=%v", lineage, ok, err)
	}

	canvas := render.Canvas{Width: 4, Height: 4}
	pop := []model.Organism{organism("g1-0", 1, 0, "FF", 38)}
	if err := WriteGenerationFiles(runDir, canvas, 2, pop); err != nil {
		t.Fatalf("write generation files: %v", err)
	}

	out := t.TempDir()
	exported, err := ExportRunArtifacts(base, artifacts.Config.RunID, out)
	if err != nil {
		t.Fatalf("export: %v", err)
	}
	if _, err := os.Stat(CoordinatesPath(exported, 1, 0)); err != nil {
		t.Fatalf("expected exported coordinates: %v", err)
	}
	if _, err := os.Stat(CrossSectionPath(exported, 1, 0)); err != nil {
		t.Fatalf("expected exported cross section: %v", err)
	}
	top, ok, err := ReadTopOrganisms(out, artifacts.Config.RunID)
	if err != nil || !ok || len(top) != 1 {
		t.Fatalf("unexpected exported top organisms: %+v ok=%t err=%v", top, ok, err)
	}
}

func TestWriteRunArtifactsRequiresRunID(t *testing.T) {
	if _, err := WriteRunArtifacts(t.TempDir(), RunArtifacts{}); err == nil {
		t.Fatal("expected run id error")
	}
}

func TestWriteGenerationFilesNaming(t *testing.T) {
	runDir := t.TempDir()
	canvas := render.Canvas{Width: 4, Height: 4}
	pop := []model.Organism{organism("g3-0", 3, 2, "FF", 30), organism("g3-1", 3, 0, "F+F", 35)}
	if err := WriteGenerationFiles(runDir, canvas, 3, pop); err != nil {
		t.Fatalf("write: %v", err)
	}
	if filepath.Base(CoordinatesPath(runDir, 3, 2)) != "Individual3_2.json" {
		t.Fatalf("unexpected coordinates name %s", CoordinatesPath(runDir, 3, 2))
	}
	data, err := os.ReadFile(CrossSectionPath(runDir, 3, 2))
	if err != nil {
		t.Fatalf("read png: %v", err)
	}
	img, err := png.Decode(bytes.NewReader(data))
	if err != nil {
		t.Fatalf("decode png: %v", err)
	}
	if b := img.Bounds(); b.Dx() != 12 || b.Dy() != 12 {
		t.Fatalf("unexpected image size %v", b)
	}
	if _, err := os.Stat(CoordinatesPath(runDir, 3, 0)); err != nil {
		t.Fatalf("expected second organism coordinates: %v", err)
	}
}

func TestTopOrganismsDeduplicatesSentences(t *testing.T) {
	populations := [][]model.Organism{
		{organism("g0-0", 0, 0, "FF", 30), organism("g0-1", 0, 1, "F+F", 20)},
		{organism("g1-0", 1, 0, "FF", 30), organism("g1-1", 1, 1, "F-F", 39), {ID: "unevaluated"}},
	}
	top := TopOrganisms(populations, 5)
	if len(top) != 3 {
		t.Fatalf("expected 3 distinct organisms, got %d: %+v", len(top), top)
	}
	if top[0].ID != "g1-1" || top[1].ID != "g0-0" || top[2].ID != "g0-1" {
		t.Fatalf("unexpected order: %+v", top)
	}
	if top[0].Rank != 1 || top[2].Rank != 3 {
		t.Fatalf("unexpected ranks: %+v", top)
	}
	if limited := TopOrganisms(populations, 1); len(limited) != 1 {
		t.Fatalf("expected limit to apply, got %d", len(limited))
	}
}

func TestRunIndexNewestFirstAndReplace(t *testing.T) {
	base := t.TempDir()
	entries := []RunIndexEntry{
		{RunID: "a", CreatedAtUTC: "2026-01-01T00:00:00Z"},
		{RunID: "b", CreatedAtUTC: "2026-01-03T00:00:00Z"},
		{RunID: "c", CreatedAtUTC: "2026-01-02T00:00:00Z"},
	}
	for _, entry := range entries {
		if err := AppendRunIndex(base, entry); err != nil {
			t.Fatalf("append %s: %v", entry.RunID, err)
		}
	}
	if err := AppendRunIndex(base, RunIndexEntry{RunID: "a", CreatedAtUTC: "2026-01-04T00:00:00Z", BestAngle: 39}); err != nil {
		t.Fatalf("replace a: %v", err)
	}

	index, err := ListRunIndex(base)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(index) != 3 || index[0].RunID != "a" || index[0].BestAngle != 39 || index[1].RunID != "b" || index[2].RunID != "c" {
		t.Fatalf("unexpected index: %+v", index)
	}
}

func TestFitnessHistoryAndPlot(t *testing.T) {
	history := BuildFitnessHistory(40, []model.GenerationDiagnostics{{BestAngle: 31, MeanAngle: 20}})
	if len(history.BestAngle) != 1 || history.TargetAngle != 40 {
		t.Fatalf("unexpected history: %+v", history)
	}
	path := filepath.Join(t.TempDir(), "plot.png")
	if err := WriteFitnessPlot(path, "run", history); err != nil {
		t.Fatalf("plot: %v", err)
	}
	if info, err := os.Stat(path); err != nil || info.Size() == 0 {
		t.Fatalf("expected non-empty plot: %v", err)
	}
	if err := WriteFitnessPlot(path, "run", FitnessHistory{}); err == nil {
		t.Fatal("expected empty history error")
	}
}
