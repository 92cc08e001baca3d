package bendgen

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"

	"bendgen/internal/evo"
	"bendgen/internal/grammar"
	"bendgen/internal/model"
	"bendgen/internal/platform"
	"bendgen/internal/render"
	"bendgen/internal/scape"
	"bendgen/internal/stats"
	"bendgen/internal/storage"
)

const (
	defaultArtifactsDir = "runs"
	defaultExportsDir   = "exports"
	defaultDBPath       = "bendgen.db"
	defaultEvaluator    = "surrogate"
	processEvaluator    = "process"
	defaultRenderScale  = 4
	defaultTopLimit     = 10
)

type Options struct {
	StoreKind    string
	DBPath       string
	ArtifactsDir string
	ExportsDir   string
	Logger       *slog.Logger
}

type Client struct {
	store     storage.Store
	storeKind string
	polis     *platform.Polis
	log       *slog.Logger

	artifactsDir string
	exportsDir   string
}

// RunRequest describes one evolution. Use DefaultRunRequest as a starting
// point: Run fills in missing sizes and names but takes the fractions,
// target angle and seed as given.
type RunRequest struct {
	RunID            string
	Evaluator        string
	EvaluatorCommand []string
	EvaluatorWorkDir string
	Population       int
	Generations      int
	Seed             int64
	Axiom            string
	Width            int
	Height           int
	TargetAngle      float64
	Elitism          float64
	Replacement      float64
	Iterations       int
	RepeatFactor     int
	RenderScale      int
	// SkipOrganismFiles disables the per-organism coordinate and image files.
	SkipOrganismFiles bool
}

func DefaultRunRequest() RunRequest {
	return RunRequest{
		Evaluator:    defaultEvaluator,
		Population:   30,
		Generations:  15,
		Seed:         1324,
		Axiom:        grammar.DefaultAxiom,
		Width:        80,
		Height:       160,
		TargetAngle:  40,
		Elitism:      0.1,
		Replacement:  0.2,
		Iterations:   grammar.DefaultIterations,
		RepeatFactor: render.DefaultRepeatFactor,
		RenderScale:  defaultRenderScale,
	}
}

type RunSummary struct {
	RunID             string
	ArtifactsDir      string
	BestByGeneration  []float64
	MeanByGeneration  []float64
	BestID            string
	BestAngle         float64
	BestDistance      float64
	BestSentence      string
	GenerationsStored int
}

type RunsRequest struct {
	Limit int
}

type RunItem struct {
	RunID        string  `json:"run_id"`
	CreatedAtUTC string  `json:"created_at_utc"`
	Evaluator    string  `json:"evaluator"`
	Seed         int64   `json:"seed"`
	Population   int     `json:"population"`
	Generations  int     `json:"generations"`
	TargetAngle  float64 `json:"target_angle"`
	BestAngle    float64 `json:"best_angle"`
	BestDistance float64 `json:"best_distance"`
}

type TopRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type GenerationsRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageRequest struct {
	RunID  string
	Latest bool
	Limit  int
}

type LineageItem struct {
	OrganismID string   `json:"organism_id"`
	ParentIDs  []string `json:"parent_ids,omitempty"`
	Generation int      `json:"generation"`
	Operation  string   `json:"operation"`
	Sentence   string   `json:"sentence"`
}

type ExportRequest struct {
	RunID  string
	Latest bool
	OutDir string
}

type ExportSummary struct {
	RunID     string
	Directory string
}

// RenderRequest draws a single cross-section. A non-empty Sentence is drawn
// as is; otherwise a genotype is derived from Axiom and Seed.
type RenderRequest struct {
	Sentence     string
	Axiom        string
	Seed         int64
	Width        int
	Height       int
	Iterations   int
	RepeatFactor int
	Scale        int
	OutPath      string
	// CoordinatesPath optionally receives the exported outline as JSON.
	CoordinatesPath string
}

type RenderSummary struct {
	Sentence string
	Cells    int
	Path     string
}

func New(opts Options) (*Client, error) {
	storeKind := opts.StoreKind
	if storeKind == "" {
		storeKind = storage.DefaultStoreKind
	}
	dbPath := opts.DBPath
	if dbPath == "" {
		dbPath = defaultDBPath
	}
	artifactsDir := opts.ArtifactsDir
	if artifactsDir == "" {
		artifactsDir = defaultArtifactsDir
	}
	exportsDir := opts.ExportsDir
	if exportsDir == "" {
		exportsDir = defaultExportsDir
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	store, err := storage.NewStore(storeKind, dbPath)
	if err != nil {
		return nil, err
	}

	return &Client{
		store:        store,
		storeKind:    storeKind,
		log:          logger,
		artifactsDir: artifactsDir,
		exportsDir:   exportsDir,
	}, nil
}

func (c *Client) Close() error {
	return storage.CloseIfSupported(c.store)
}

func (c *Client) Init(ctx context.Context) error {
	_, err := c.ensurePolis(ctx)
	return err
}

// Evaluators lists the evaluator names a run can use without a command.
func (c *Client) Evaluators(ctx context.Context) ([]string, error) {
	p, err := c.ensurePolis(ctx)
	if err != nil {
		return nil, err
	}
	return p.RegisteredEvaluators(), nil
}

func (c *Client) Run(ctx context.Context, req RunRequest) (RunSummary, error) {
	def := DefaultRunRequest()
	if req.Evaluator == "" {
		req.Evaluator = def.Evaluator
		if len(req.EvaluatorCommand) > 0 {
			req.Evaluator = processEvaluator
		}
	}
	if req.Population <= 0 {
		req.Population = def.Population
	}
	if req.Generations <= 0 {
		req.Generations = def.Generations
	}
	if req.Axiom == "" {
		req.Axiom = def.Axiom
	}
	if req.Width <= 0 {
		req.Width = def.Width
	}
	if req.Height <= 0 {
		req.Height = def.Height
	}
	if req.Iterations <= 0 {
		req.Iterations = def.Iterations
	}
	if req.RepeatFactor <= 0 {
		req.RepeatFactor = def.RepeatFactor
	}
	if req.RenderScale <= 0 {
		req.RenderScale = def.RenderScale
	}

	p, err := c.ensurePolis(ctx)
	if err != nil {
		return RunSummary{}, err
	}
	if len(req.EvaluatorCommand) > 0 {
		if err := registerProcessEvaluator(p, req); err != nil {
			return RunSummary{}, err
		}
	}

	runID := req.RunID
	if runID == "" {
		runID = newRunID(req.Evaluator, req.Seed)
	}
	now := time.Now().UTC()
	runDir := filepath.Join(c.artifactsDir, runID)
	canvas := render.Canvas{Width: req.Width, Height: req.Height}

	var onGeneration evo.GenerationHook
	if !req.SkipOrganismFiles {
		onGeneration = func(_ context.Context, report evo.GenerationReport) error {
			return stats.WriteGenerationFiles(runDir, canvas, req.RenderScale, report.Population)
		}
	}

	result, err := p.RunEvolution(ctx, platform.EvolutionConfig{
		RunID:         runID,
		EvaluatorName: req.Evaluator,
		Population:    req.Population,
		Generations:   req.Generations,
		Seed:          req.Seed,
		Axiom:         req.Axiom,
		Canvas:        canvas,
		TargetAngle:   req.TargetAngle,
		Elitism:       req.Elitism,
		Replacement:   req.Replacement,
		Grammar:       grammar.Config{Iterations: req.Iterations, RegenIterations: grammar.DefaultRegenIterations},
		RepeatFactor:  req.RepeatFactor,
		CreatedAt:     now,
		OnGeneration:  onGeneration,
	})
	if err != nil {
		return RunSummary{}, err
	}

	createdAt := now.Format(time.RFC3339Nano)
	if _, err := stats.WriteRunArtifacts(c.artifactsDir, stats.RunArtifacts{
		Config: stats.RunConfig{
			RunID:            runID,
			RunConfig:        result.Run.Config,
			EvaluatorCommand: req.EvaluatorCommand,
			EvaluatorWorkDir: req.EvaluatorWorkDir,
			Store:            c.storeKind,
			RenderScale:      req.RenderScale,
			CreatedAtUTC:     createdAt,
		},
		Diagnostics:  result.Diagnostics,
		TopOrganisms: stats.TopOrganisms(result.Populations, defaultTopLimit),
		Lineage:      result.Lineage,
	}); err != nil {
		return RunSummary{}, err
	}

	summary := RunSummary{
		RunID:             runID,
		ArtifactsDir:      filepath.Clean(runDir),
		BestID:            result.Best.ID,
		BestDistance:      result.Best.Distance,
		BestSentence:      result.Best.Genotype.Sentence,
		GenerationsStored: len(result.Populations),
	}
	if result.Best.Angle != nil {
		summary.BestAngle = *result.Best.Angle
	}
	for _, d := range result.Diagnostics {
		summary.BestByGeneration = append(summary.BestByGeneration, d.BestAngle)
		summary.MeanByGeneration = append(summary.MeanByGeneration, d.MeanAngle)
	}

	if err := stats.AppendRunIndex(c.artifactsDir, stats.RunIndexEntry{
		RunID:        runID,
		Evaluator:    req.Evaluator,
		Population:   req.Population,
		Generations:  req.Generations,
		Seed:         req.Seed,
		TargetAngle:  req.TargetAngle,
		BestAngle:    summary.BestAngle,
		BestDistance: summary.BestDistance,
		CreatedAtUTC: createdAt,
	}); err != nil {
		return RunSummary{}, err
	}

	c.log.Info("run complete",
		slog.String("run_id", runID),
		slog.String("best", summary.BestID),
		slog.Float64("best_angle", summary.BestAngle),
	)
	return summary, nil
}

func (c *Client) Runs(_ context.Context, req RunsRequest) ([]RunItem, error) {
	if req.Limit <= 0 {
		req.Limit = 20
	}

	entries, err := stats.ListRunIndex(c.artifactsDir)
	if err != nil {
		return nil, err
	}
	if len(entries) > req.Limit {
		entries = entries[:req.Limit]
	}

	out := make([]RunItem, 0, len(entries))
	for _, e := range entries {
		out = append(out, RunItem{
			RunID:        e.RunID,
			CreatedAtUTC: e.CreatedAtUTC,
			Evaluator:    e.Evaluator,
			Seed:         e.Seed,
			Population:   e.Population,
			Generations:  e.Generations,
			TargetAngle:  e.TargetAngle,
			BestAngle:    e.BestAngle,
			BestDistance: e.BestDistance,
		})
	}
	return out, nil
}

func (c *Client) Top(_ context.Context, req TopRequest) ([]stats.TopOrganism, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "top")
	if err != nil {
		return nil, err
	}

	top, ok, err := stats.ReadTopOrganisms(c.artifactsDir, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, fmt.Errorf("top organisms not found for run id: %s", runID)
	}
	if req.Limit > 0 && len(top) > req.Limit {
		top = top[:req.Limit]
	}
	return top, nil
}

// Generations returns per-generation diagnostics, from the store when it
// still holds the run and from the run's artifacts otherwise.
func (c *Client) Generations(ctx context.Context, req GenerationsRequest) ([]model.GenerationDiagnostics, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "generations")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	diagnostics, ok, err := c.store.GetGenerationDiagnostics(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		diagnostics, ok, err = stats.ReadDiagnostics(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("diagnostics not found for run id: %s", runID)
		}
	}

	if req.Limit > 0 && len(diagnostics) > req.Limit {
		diagnostics = diagnostics[:req.Limit]
	}
	return diagnostics, nil
}

func (c *Client) Lineage(ctx context.Context, req LineageRequest) ([]LineageItem, error) {
	if req.Limit < 0 {
		return nil, errors.New("limit must be >= 0")
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "lineage")
	if err != nil {
		return nil, err
	}

	if _, err := c.ensurePolis(ctx); err != nil {
		return nil, err
	}
	lineage, ok, err := c.store.GetLineage(ctx, runID)
	if err != nil {
		return nil, err
	}
	if !ok {
		lineage, ok, err = stats.ReadLineage(c.artifactsDir, runID)
		if err != nil {
			return nil, err
		}
		if !ok {
			return nil, fmt.Errorf("lineage not found for run id: %s", runID)
		}
	}

	if req.Limit > 0 && len(lineage) > req.Limit {
		lineage = lineage[:req.Limit]
	}

	out := make([]LineageItem, 0, len(lineage))
	for _, rec := range lineage {
		out = append(out, LineageItem{
			OrganismID: rec.OrganismID,
			ParentIDs:  append([]string(nil), rec.ParentIDs...),
			Generation: rec.Generation,
			Operation:  rec.Operation,
			Sentence:   rec.Sentence,
		})
	}
	return out, nil
}

func (c *Client) Export(_ context.Context, req ExportRequest) (ExportSummary, error) {
	if req.OutDir == "" {
		req.OutDir = c.exportsDir
	}
	runID, err := c.resolveRunID(req.RunID, req.Latest, "export")
	if err != nil {
		return ExportSummary{}, err
	}

	exportedDir, err := stats.ExportRunArtifacts(c.artifactsDir, runID, req.OutDir)
	if err != nil {
		return ExportSummary{}, err
	}
	return ExportSummary{RunID: runID, Directory: filepath.Clean(exportedDir)}, nil
}

func (c *Client) Render(_ context.Context, req RenderRequest) (RenderSummary, error) {
	def := DefaultRunRequest()
	if req.OutPath == "" {
		return RenderSummary{}, errors.New("render requires an output path")
	}
	if req.Width <= 0 {
		req.Width = def.Width
	}
	if req.Height <= 0 {
		req.Height = def.Height
	}
	if req.RepeatFactor <= 0 {
		req.RepeatFactor = def.RepeatFactor
	}
	if req.Scale <= 0 {
		req.Scale = def.RenderScale
	}

	sentence := req.Sentence
	if sentence == "" {
		axiom := req.Axiom
		if axiom == "" {
			axiom = def.Axiom
		}
		if err := grammar.CheckAxiom(axiom); err != nil {
			return RenderSummary{}, err
		}
		g := grammar.NewGenotype(axiom, req.Seed, nil, grammar.Config{Iterations: req.Iterations})
		sentence = g.Sentence
	}

	canvas := render.Canvas{Width: req.Width, Height: req.Height}
	cells := render.Render(sentence, canvas, req.RepeatFactor)

	if dir := filepath.Dir(req.OutPath); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return RenderSummary{}, err
		}
	}
	f, err := os.Create(req.OutPath)
	if err != nil {
		return RenderSummary{}, err
	}
	if err := render.EncodePNG(f, cells, canvas, req.Scale); err != nil {
		_ = f.Close()
		return RenderSummary{}, err
	}
	if err := f.Close(); err != nil {
		return RenderSummary{}, err
	}

	if req.CoordinatesPath != "" {
		if err := scape.WriteCoordinatesJSON(req.CoordinatesPath, scape.ExportCoordinates(cells, canvas)); err != nil {
			return RenderSummary{}, err
		}
	}

	return RenderSummary{Sentence: sentence, Cells: len(cells), Path: filepath.Clean(req.OutPath)}, nil
}

func (c *Client) resolveRunID(runID string, latest bool, op string) (string, error) {
	if runID != "" && latest {
		return "", errors.New("use either run id or latest")
	}
	if latest {
		entries, err := stats.ListRunIndex(c.artifactsDir)
		if err != nil {
			return "", err
		}
		if len(entries) == 0 {
			return "", errors.New("no runs available")
		}
		return entries[0].RunID, nil
	}
	if runID == "" {
		return "", fmt.Errorf("%s requires run id or latest", op)
	}
	return runID, nil
}

func (c *Client) ensurePolis(ctx context.Context) (*platform.Polis, error) {
	if c.polis != nil {
		return c.polis, nil
	}
	p := platform.NewPolis(platform.Config{
		Store:      c.store,
		Logger:     c.log,
		Evaluators: []scape.Evaluator{scape.SurrogateEvaluator{}},
	})
	if err := p.Init(ctx); err != nil {
		return nil, err
	}
	c.polis = p
	return c.polis, nil
}

// registerProcessEvaluator binds the request's command under its evaluator
// name. A name that is already registered keeps its first binding.
func registerProcessEvaluator(p *platform.Polis, req RunRequest) error {
	if existing, ok := p.GetEvaluator(req.Evaluator); ok {
		if _, isProcess := existing.(*scape.ProcessEvaluator); !isProcess {
			return fmt.Errorf("evaluator %s does not take a command", req.Evaluator)
		}
		return nil
	}
	return p.RegisterEvaluator(&scape.ProcessEvaluator{
		ID:      req.Evaluator,
		Command: append([]string(nil), req.EvaluatorCommand...),
		WorkDir: req.EvaluatorWorkDir,
	})
}

func newRunID(evaluator string, seed int64) string {
	return fmt.Sprintf("%s-%d-%s", evaluator, seed, uuid.NewString()[:8])
}
