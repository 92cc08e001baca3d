package main

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestLoadRunConfigFormats(t *testing.T) {
	files := map[string]string{
		"run.json": `{
  "population": 12,
  "generations": 4,
  "seed": 77,
  "target_angle": 55.5,
  "elitism": 0,
  "replacement": 0.25,
  "width": 40,
  "evaluator": "abaqus",
  "evaluator_command": ["abaqus", "cae", "-noGUI", "Abaqus_script.py"],
  "store": "badger",
  "artifacts_dir": "out"
}`,
		"run.yaml": `population: 12
generations: 4
seed: 77
target_angle: 55.5
elitism: 0
replacement: 0.25
width: 40
evaluator: abaqus
evaluator_command:
  - abaqus
  - cae
  - -noGUI
  - Abaqus_script.py
store: badger
artifacts_dir: out
`,
		"run.toml": `population = 12
generations = 4
seed = 77
target_angle = 55.5
elitism = 0
replacement = 0.25
width = 40
evaluator = "abaqus"
evaluator_command = "abaqus cae -noGUI Abaqus_script.py"
store = "badger"
artifacts_dir = "out"
`,
	}

	dir := t.TempDir()
	for name, body := range files {
		path := filepath.Join(dir, name)
		if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
			t.Fatalf("write %s: %v", name, err)
		}

		cfg, err := loadRunConfig(path)
		if err != nil {
			t.Fatalf("%s: load: %v", name, err)
		}
		req := cfg.Request
		if req.Population != 12 || req.Generations != 4 || req.Seed != 77 {
			t.Fatalf("%s: unexpected sizes: %+v", name, req)
		}
		if req.TargetAngle != 55.5 || req.Elitism != 0 || req.Replacement != 0.25 {
			t.Fatalf("%s: unexpected fractions: %+v", name, req)
		}
		if req.Width != 40 || req.Height != 160 || req.Axiom != "A" {
			t.Fatalf("%s: expected unset keys to keep defaults: %+v", name, req)
		}
		if req.Evaluator != "abaqus" || strings.Join(req.EvaluatorCommand, " ") != "abaqus cae -noGUI Abaqus_script.py" {
			t.Fatalf("%s: unexpected evaluator: %s %v", name, req.Evaluator, req.EvaluatorCommand)
		}
		if cfg.Store != "badger" || cfg.ArtifactsDir != "out" || cfg.DBPath != defaultDBPath {
			t.Fatalf("%s: unexpected client settings: %+v", name, cfg)
		}
	}
}

func TestLoadRunConfigRejectsUnknownFormat(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.ini")
	if err := os.WriteFile(path, []byte("population=3"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadRunConfig(path); err == nil || !strings.Contains(err.Error(), "unsupported config format") {
		t.Fatalf("expected unsupported format error, got %v", err)
	}
}

func TestLoadRunConfigReportsDecodeErrors(t *testing.T) {
	path := filepath.Join(t.TempDir(), "run.yaml")
	if err := os.WriteFile(path, []byte("population: [1, 2\n"), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := loadOrDefaultRunConfig(path); err == nil || !strings.Contains(err.Error(), "load config") {
		t.Fatalf("expected load config error, got %v", err)
	}
}

func TestOverrideFromFlagsOnlyAppliesSetFlags(t *testing.T) {
	cfg := defaultRunConfig()
	cfg.Request.Population = 12

	overrideFromFlags(&cfg, map[string]bool{"gens": true, "evaluator-command": true, "store": true}, map[string]any{
		"pop":               30,
		"gens":              7,
		"evaluator-command": "sh -c true",
		"store":             "sqlite",
		"db-path":           "ignored.db",
	})

	if cfg.Request.Population != 12 {
		t.Fatalf("unset flag overrode population: %d", cfg.Request.Population)
	}
	if cfg.Request.Generations != 7 || cfg.Store != "sqlite" || cfg.DBPath != defaultDBPath {
		t.Fatalf("unexpected overrides: %+v", cfg)
	}
	if len(cfg.Request.EvaluatorCommand) != 3 || cfg.Request.EvaluatorCommand[2] != "true" {
		t.Fatalf("unexpected command: %v", cfg.Request.EvaluatorCommand)
	}
}

func TestAsIntAcceptsDecoderShapes(t *testing.T) {
	for _, v := range []any{int(5), int64(5), float64(5)} {
		if got, ok := asInt(v); !ok || got != 5 {
			t.Fatalf("asInt(%T) = %d, %t", v, got, ok)
		}
	}
	if _, ok := asInt("5"); ok {
		t.Fatal("expected string to be rejected")
	}
	if _, ok := asStringSlice([]any{"a", 1}); ok {
		t.Fatal("expected mixed list to be rejected")
	}
}
