package stats

import (
	"encoding/json"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"bendgen/internal/model"
)

const (
	runIndexFile       = "run_index.json"
	configFile         = "config.json"
	fitnessHistoryFile = "fitness_history.json"
	diagnosticsFile    = "diagnostics.json"
	topOrganismsFile   = "top_organisms.json"
	lineageFile        = "lineage.json"
	fitnessPlotFile    = "fitness_history.png"
)

// RunConfig is the config.json written for every run.
type RunConfig struct {
	RunID string `json:"run_id"`
	model.RunConfig
	EvaluatorCommand []string `json:"evaluator_command,omitempty"`
	EvaluatorWorkDir string   `json:"evaluator_workdir,omitempty"`
	Store            string   `json:"store,omitempty"`
	RenderScale      int      `json:"render_scale,omitempty"`
	CreatedAtUTC     string   `json:"created_at_utc"`
}

type TopOrganism struct {
	Rank       int     `json:"rank"`
	ID         string  `json:"id"`
	Generation int     `json:"generation"`
	Index      int     `json:"index"`
	Operation  string  `json:"operation"`
	Angle      float64 `json:"angle"`
	Distance   float64 `json:"distance"`
	Sentence   string  `json:"sentence"`
	Seed       int64   `json:"seed"`
}

type FitnessHistory struct {
	TargetAngle  float64   `json:"target_angle"`
	BestAngle    []float64 `json:"best_angle"`
	BestDistance []float64 `json:"best_distance"`
	MeanAngle    []float64 `json:"mean_angle"`
}

type RunArtifacts struct {
	Config       RunConfig                     `json:"config"`
	Diagnostics  []model.GenerationDiagnostics `json:"diagnostics"`
	TopOrganisms []TopOrganism                 `json:"top_organisms"`
	Lineage      []model.LineageRecord         `json:"lineage"`
}

type RunIndexEntry struct {
	RunID        string  `json:"run_id"`
	Evaluator    string  `json:"evaluator"`
	Population   int     `json:"population"`
	Generations  int     `json:"generations"`
	Seed         int64   `json:"seed"`
	TargetAngle  float64 `json:"target_angle"`
	BestAngle    float64 `json:"best_angle"`
	BestDistance float64 `json:"best_distance"`
	CreatedAtUTC string  `json:"created_at_utc"`
}

func WriteRunArtifacts(baseDir string, artifacts RunArtifacts) (string, error) {
	if artifacts.Config.RunID == "" {
		return "", fmt.Errorf("run id is required")
	}

	runDir := filepath.Join(baseDir, artifacts.Config.RunID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return "", err
	}

	history := BuildFitnessHistory(artifacts.Config.TargetAngle, artifacts.Diagnostics)
	if err := writeJSON(filepath.Join(runDir, configFile), artifacts.Config); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, fitnessHistoryFile), history); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, diagnosticsFile), artifacts.Diagnostics); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, topOrganismsFile), artifacts.TopOrganisms); err != nil {
		return "", err
	}
	if err := writeJSON(filepath.Join(runDir, lineageFile), artifacts.Lineage); err != nil {
		return "", err
	}
	if len(artifacts.Diagnostics) > 0 {
		if err := WriteFitnessPlot(filepath.Join(runDir, fitnessPlotFile), artifacts.Config.RunID, history); err != nil {
			return "", fmt.Errorf("fitness plot: %w", err)
		}
	}

	return runDir, nil
}

// BuildFitnessHistory flattens per-generation diagnostics into series.
func BuildFitnessHistory(target float64, diagnostics []model.GenerationDiagnostics) FitnessHistory {
	history := FitnessHistory{
		TargetAngle:  target,
		BestAngle:    make([]float64, 0, len(diagnostics)),
		BestDistance: make([]float64, 0, len(diagnostics)),
		MeanAngle:    make([]float64, 0, len(diagnostics)),
	}
	for _, d := range diagnostics {
		history.BestAngle = append(history.BestAngle, d.BestAngle)
		history.BestDistance = append(history.BestDistance, d.BestDistance)
		history.MeanAngle = append(history.MeanAngle, d.MeanAngle)
	}
	return history
}

// TopOrganisms ranks every evaluated organism of a run by distance and keeps
// the first limit distinct sentences. Carried-over copies of an organism
// only count once, at their earliest generation.
func TopOrganisms(populations [][]model.Organism, limit int) []TopOrganism {
	var all []model.Organism
	for _, population := range populations {
		for _, o := range population {
			if o.Evaluated() {
				all = append(all, o)
			}
		}
	}
	sort.SliceStable(all, func(i, j int) bool {
		return all[i].Distance < all[j].Distance
	})

	seen := make(map[string]struct{}, len(all))
	out := make([]TopOrganism, 0, limit)
	for _, o := range all {
		if limit > 0 && len(out) >= limit {
			break
		}
		if _, dup := seen[o.Genotype.Sentence]; dup {
			continue
		}
		seen[o.Genotype.Sentence] = struct{}{}
		out = append(out, TopOrganism{
			Rank:       len(out) + 1,
			ID:         o.ID,
			Generation: o.Generation,
			Index:      o.Index,
			Operation:  o.Operation,
			Angle:      *o.Angle,
			Distance:   o.Distance,
			Sentence:   o.Genotype.Sentence,
			Seed:       o.Genotype.Seed,
		})
	}
	return out
}

func AppendRunIndex(baseDir string, entry RunIndexEntry) error {
	if entry.RunID == "" {
		return fmt.Errorf("run id is required")
	}
	if err := os.MkdirAll(baseDir, 0o755); err != nil {
		return err
	}

	index, err := ListRunIndex(baseDir)
	if err != nil {
		return err
	}

	for i := range index {
		if index[i].RunID == entry.RunID {
			index[i] = entry
			return writeJSON(filepath.Join(baseDir, runIndexFile), index)
		}
	}

	index = append(index, entry)
	return writeJSON(filepath.Join(baseDir, runIndexFile), index)
}

// ListRunIndex returns entries newest first.
func ListRunIndex(baseDir string) ([]RunIndexEntry, error) {
	path := filepath.Join(baseDir, runIndexFile)
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return []RunIndexEntry{}, nil
		}
		return nil, err
	}

	var entries []RunIndexEntry
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, err
	}

	type indexedEntry struct {
		entry RunIndexEntry
		idx   int
	}
	indexed := make([]indexedEntry, len(entries))
	for i := range entries {
		indexed[i] = indexedEntry{entry: entries[i], idx: i}
	}
	sort.Slice(indexed, func(i, j int) bool {
		if indexed[i].entry.CreatedAtUTC == indexed[j].entry.CreatedAtUTC {
			// Prefer later appended entries for equal timestamps.
			return indexed[i].idx > indexed[j].idx
		}
		return indexed[i].entry.CreatedAtUTC > indexed[j].entry.CreatedAtUTC
	})

	sorted := make([]RunIndexEntry, 0, len(indexed))
	for _, item := range indexed {
		sorted = append(sorted, item.entry)
	}
	return sorted, nil
}

// ExportRunArtifacts copies a run directory, including per-organism
// coordinate files and images, into outDir.
func ExportRunArtifacts(baseDir, runID, outDir string) (string, error) {
	if runID == "" {
		return "", fmt.Errorf("run id is required")
	}

	src := filepath.Join(baseDir, runID)
	if _, err := os.Stat(src); err != nil {
		return "", err
	}

	dst := filepath.Join(outDir, runID)
	if err := os.MkdirAll(dst, 0o755); err != nil {
		return "", err
	}

	for _, file := range []string{configFile, fitnessHistoryFile, diagnosticsFile, topOrganismsFile, lineageFile} {
		if err := copyFile(filepath.Join(src, file), filepath.Join(dst, file)); err != nil {
			return "", err
		}
	}
	plotPath := filepath.Join(src, fitnessPlotFile)
	if _, err := os.Stat(plotPath); err == nil {
		if err := copyFile(plotPath, filepath.Join(dst, fitnessPlotFile)); err != nil {
			return "", err
		}
	} else if !os.IsNotExist(err) {
		return "", err
	}
	for _, dir := range []string{coordinatesDir, crossSectionsDir} {
		if err := copyTree(filepath.Join(src, dir), filepath.Join(dst, dir)); err != nil {
			return "", err
		}
	}

	return dst, nil
}

func ReadRunConfig(baseDir, runID string) (RunConfig, bool, error) {
	var cfg RunConfig
	ok, err := readJSON(filepath.Join(baseDir, runID, configFile), &cfg)
	return cfg, ok, err
}

func WriteRunConfig(baseDir, runID string, cfg RunConfig) error {
	if strings.TrimSpace(runID) == "" {
		return fmt.Errorf("run id is required")
	}
	if strings.TrimSpace(cfg.RunID) == "" {
		cfg.RunID = strings.TrimSpace(runID)
	}
	if cfg.RunID != strings.TrimSpace(runID) {
		return fmt.Errorf("run config run id mismatch: got=%s want=%s", cfg.RunID, strings.TrimSpace(runID))
	}
	runDir := filepath.Join(baseDir, runID)
	if err := os.MkdirAll(runDir, 0o755); err != nil {
		return err
	}
	return writeJSON(filepath.Join(runDir, configFile), cfg)
}

func ReadTopOrganisms(baseDir, runID string) ([]TopOrganism, bool, error) {
	var top []TopOrganism
	ok, err := readJSON(filepath.Join(baseDir, runID, topOrganismsFile), &top)
	return top, ok, err
}

func ReadDiagnostics(baseDir, runID string) ([]model.GenerationDiagnostics, bool, error) {
	var diagnostics []model.GenerationDiagnostics
	ok, err := readJSON(filepath.Join(baseDir, runID, diagnosticsFile), &diagnostics)
	return diagnostics, ok, err
}

func ReadLineage(baseDir, runID string) ([]model.LineageRecord, bool, error) {
	var lineage []model.LineageRecord
	ok, err := readJSON(filepath.Join(baseDir, runID, lineageFile), &lineage)
	return lineage, ok, err
}

func readJSON(path string, value any) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return false, nil
		}
		return false, err
	}
	if err := json.Unmarshal(data, value); err != nil {
		return false, err
	}
	return true, nil
}

func writeJSON(path string, value any) error {
	data, err := json.MarshalIndent(value, "", "  ")
	if err != nil {
		return err
	}
	data = append(data, '\n')
	return os.WriteFile(path, data, 0o644)
}

func copyFile(src, dst string) error {
	in, err := os.Open(src)
	if err != nil {
		return err
	}
	defer in.Close()

	out, err := os.Create(dst)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, in); err != nil {
		return err
	}
	return out.Sync()
}

// copyTree copies regular files below src. A missing src is not an error.
func copyTree(src, dst string) error {
	if _, err := os.Stat(src); os.IsNotExist(err) {
		return nil
	}
	return filepath.WalkDir(src, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		rel, err := filepath.Rel(src, path)
		if err != nil {
			return err
		}
		target := filepath.Join(dst, rel)
		if d.IsDir() {
			return os.MkdirAll(target, 0o755)
		}
		return copyFile(path, target)
	})
}
