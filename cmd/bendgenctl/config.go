package main

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/BurntSushi/toml"
	"gopkg.in/yaml.v3"

	"bendgen/pkg/bendgen"
)

// runConfig is what a run config file may set: the run request plus where
// results are kept.
type runConfig struct {
	Request      bendgen.RunRequest
	Store        string
	DBPath       string
	ArtifactsDir string
}

func defaultRunConfig() runConfig {
	return runConfig{
		Request:      bendgen.DefaultRunRequest(),
		Store:        defaultStore,
		DBPath:       defaultDBPath,
		ArtifactsDir: defaultArtifactsDir,
	}
}

// readConfigFile decodes a JSON, YAML or TOML file, chosen by extension,
// into a raw key/value map.
func readConfigFile(path string) (map[string]any, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	raw := make(map[string]any)
	switch ext := strings.ToLower(filepath.Ext(path)); ext {
	case ".json":
		err = json.Unmarshal(data, &raw)
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, &raw)
	case ".toml":
		_, err = toml.Decode(string(data), &raw)
	default:
		return nil, fmt.Errorf("unsupported config format %q", ext)
	}
	if err != nil {
		return nil, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}
	return raw, nil
}

func loadRunConfig(path string) (runConfig, error) {
	raw, err := readConfigFile(path)
	if err != nil {
		return runConfig{}, err
	}

	cfg := defaultRunConfig()
	req := &cfg.Request
	if v, ok := asString(raw["run_id"]); ok {
		req.RunID = v
	}
	if v, ok := asString(raw["evaluator"]); ok {
		req.Evaluator = v
	}
	if v, ok := asStringSlice(raw["evaluator_command"]); ok {
		req.EvaluatorCommand = v
	}
	if v, ok := asString(raw["evaluator_workdir"]); ok {
		req.EvaluatorWorkDir = v
	}
	if v, ok := asInt(raw["population"]); ok {
		req.Population = v
	}
	if v, ok := asInt(raw["generations"]); ok {
		req.Generations = v
	}
	if v, ok := asInt64(raw["seed"]); ok {
		req.Seed = v
	}
	if v, ok := asString(raw["axiom"]); ok {
		req.Axiom = v
	}
	if v, ok := asInt(raw["width"]); ok {
		req.Width = v
	}
	if v, ok := asInt(raw["height"]); ok {
		req.Height = v
	}
	if v, ok := asFloat64(raw["target_angle"]); ok {
		req.TargetAngle = v
	}
	if v, ok := asFloat64(raw["elitism"]); ok {
		req.Elitism = v
	}
	if v, ok := asFloat64(raw["replacement"]); ok {
		req.Replacement = v
	}
	if v, ok := asInt(raw["iterations"]); ok {
		req.Iterations = v
	}
	if v, ok := asInt(raw["repeat_factor"]); ok {
		req.RepeatFactor = v
	}
	if v, ok := asInt(raw["render_scale"]); ok {
		req.RenderScale = v
	}
	if v, ok := asBool(raw["skip_organism_files"]); ok {
		req.SkipOrganismFiles = v
	}
	if v, ok := asString(raw["store"]); ok {
		cfg.Store = v
	}
	if v, ok := asString(raw["db_path"]); ok {
		cfg.DBPath = v
	}
	if v, ok := asString(raw["artifacts_dir"]); ok {
		cfg.ArtifactsDir = v
	}
	return cfg, nil
}

func loadOrDefaultRunConfig(path string) (runConfig, error) {
	if path == "" {
		return defaultRunConfig(), nil
	}
	cfg, err := loadRunConfig(path)
	if err != nil {
		return runConfig{}, fmt.Errorf("load config: %w", err)
	}
	return cfg, nil
}

func asString(v any) (string, bool) {
	s, ok := v.(string)
	return s, ok
}

func asBool(v any) (bool, bool) {
	b, ok := v.(bool)
	return b, ok
}

// asInt accepts the integer shapes the three decoders produce: float64 from
// JSON, int from YAML and int64 from TOML.
func asInt(v any) (int, bool) {
	switch x := v.(type) {
	case int:
		return x, true
	case int64:
		return int(x), true
	case float64:
		return int(x), true
	default:
		return 0, false
	}
}

func asInt64(v any) (int64, bool) {
	switch x := v.(type) {
	case int64:
		return x, true
	case int:
		return int64(x), true
	case float64:
		return int64(x), true
	default:
		return 0, false
	}
}

func asFloat64(v any) (float64, bool) {
	switch x := v.(type) {
	case float64:
		return x, true
	case int:
		return float64(x), true
	case int64:
		return float64(x), true
	default:
		return 0, false
	}
}

// asStringSlice takes either a list of strings or a single command line,
// which is split on whitespace.
func asStringSlice(v any) ([]string, bool) {
	switch x := v.(type) {
	case string:
		return strings.Fields(x), true
	case []string:
		return append([]string(nil), x...), true
	case []any:
		out := make([]string, 0, len(x))
		for _, item := range x {
			s, ok := item.(string)
			if !ok {
				return nil, false
			}
			out = append(out, s)
		}
		return out, true
	default:
		return nil, false
	}
}

func overrideFromFlags(cfg *runConfig, set map[string]bool, flagValue map[string]any) {
	req := &cfg.Request
	for name := range set {
		v, ok := flagValue[name]
		if !ok {
			continue
		}
		switch name {
		case "run-id":
			req.RunID = v.(string)
		case "evaluator":
			req.Evaluator = v.(string)
		case "evaluator-command":
			req.EvaluatorCommand = strings.Fields(v.(string))
		case "evaluator-workdir":
			req.EvaluatorWorkDir = v.(string)
		case "pop":
			req.Population = v.(int)
		case "gens":
			req.Generations = v.(int)
		case "seed":
			req.Seed = v.(int64)
		case "axiom":
			req.Axiom = v.(string)
		case "width":
			req.Width = v.(int)
		case "height":
			req.Height = v.(int)
		case "target-angle":
			req.TargetAngle = v.(float64)
		case "elitism":
			req.Elitism = v.(float64)
		case "replacement":
			req.Replacement = v.(float64)
		case "iterations":
			req.Iterations = v.(int)
		case "repeat-factor":
			req.RepeatFactor = v.(int)
		case "render-scale":
			req.RenderScale = v.(int)
		case "skip-organism-files":
			req.SkipOrganismFiles = v.(bool)
		case "store":
			cfg.Store = v.(string)
		case "db-path":
			cfg.DBPath = v.(string)
		case "artifacts-dir":
			cfg.ArtifactsDir = v.(string)
		}
	}
}
