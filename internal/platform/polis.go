package platform

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"bendgen/internal/evo"
	"bendgen/internal/grammar"
	"bendgen/internal/model"
	"bendgen/internal/render"
	"bendgen/internal/scape"
	"bendgen/internal/storage"
)

var ErrNotStarted = errors.New("polis is not initialized")

type Config struct {
	Store      storage.Store
	Logger     *slog.Logger
	Evaluators []scape.Evaluator
}

type EvolutionConfig struct {
	RunID         string
	EvaluatorName string
	Population    int
	Generations   int
	Seed          int64
	Axiom         string
	Canvas        render.Canvas
	TargetAngle   float64
	Elitism       float64
	Replacement   float64
	Grammar       grammar.Config
	RepeatFactor  int
	CreatedAt     time.Time

	// OnGeneration runs after the generation has been persisted.
	OnGeneration evo.GenerationHook
}

type EvolutionResult struct {
	Run         model.RunRecord
	Populations [][]model.Organism
	Diagnostics []model.GenerationDiagnostics
	Lineage     []model.LineageRecord
	Best        model.Organism
}

// Polis owns the store and the evaluator registry and runs evolutions
// against them.
type Polis struct {
	store  storage.Store
	log    *slog.Logger
	config Config

	mu         sync.RWMutex
	evaluators *scape.Registry
	started    bool
}

func NewPolis(cfg Config) *Polis {
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &Polis{
		store:      cfg.Store,
		log:        logger,
		config:     cfg,
		evaluators: scape.NewRegistry(),
	}
}

func (p *Polis) Init(ctx context.Context) error {
	if p.store == nil {
		return fmt.Errorf("store is required")
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.started {
		return nil
	}
	if err := p.store.Init(ctx); err != nil {
		return err
	}

	registry := scape.NewRegistry()
	for i, e := range p.config.Evaluators {
		if e == nil {
			return fmt.Errorf("evaluator is nil at index %d", i)
		}
		if err := registry.Register(e); err != nil {
			return err
		}
	}
	p.evaluators = registry
	p.started = true
	p.log.Debug("polis started", slog.Int("evaluators", len(p.config.Evaluators)))
	return nil
}

func (p *Polis) Started() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.started
}

func (p *Polis) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.started = false
}

func (p *Polis) Store() storage.Store {
	return p.store
}

func (p *Polis) RegisterEvaluator(e scape.Evaluator) error {
	if e == nil {
		return fmt.Errorf("evaluator is nil")
	}
	if e.Name() == "" {
		return fmt.Errorf("evaluator name is required")
	}

	p.mu.Lock()
	defer p.mu.Unlock()
	if !p.started {
		return ErrNotStarted
	}
	return p.evaluators.Register(e)
}

func (p *Polis) GetEvaluator(name string) (scape.Evaluator, bool) {
	p.mu.RLock()
	defer p.mu.RUnlock()

	e, err := p.evaluators.Get(name)
	return e, err == nil
}

func (p *Polis) RegisteredEvaluators() []string {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.evaluators.Names()
}

// RunEvolution runs one evolution and persists the run record, every
// evaluated population, the cumulative diagnostics and the lineage as each
// generation completes. A failing generation leaves the previous ones in the
// store.
func (p *Polis) RunEvolution(ctx context.Context, cfg EvolutionConfig) (EvolutionResult, error) {
	if cfg.EvaluatorName == "" {
		return EvolutionResult{}, fmt.Errorf("evaluator name is required")
	}

	p.mu.RLock()
	evaluator, lookupErr := p.evaluators.Get(cfg.EvaluatorName)
	started := p.started
	p.mu.RUnlock()

	if !started {
		return EvolutionResult{}, ErrNotStarted
	}
	if lookupErr != nil {
		return EvolutionResult{}, lookupErr
	}

	runID := cfg.RunID
	if runID == "" {
		runID = fmt.Sprintf("evo:%s:%d", cfg.EvaluatorName, cfg.Seed)
	}
	created := cfg.CreatedAt
	if created.IsZero() {
		created = time.Now().UTC()
	}
	log := p.log.With(slog.String("component", "polis"), slog.String("run_id", runID))

	var (
		diagnostics []model.GenerationDiagnostics
		lineage     []model.LineageRecord
		run         model.RunRecord
	)
	hook := func(ctx context.Context, report evo.GenerationReport) error {
		population := model.PopulationRecord{
			VersionedRecord: storage.CurrentVersion(),
			RunID:           runID,
			Generation:      report.Generation,
			Organisms:       report.Population,
		}
		if err := p.store.SavePopulation(ctx, population); err != nil {
			return fmt.Errorf("save population: %w", err)
		}
		diagnostics = append(diagnostics, report.Diagnostics)
		if err := p.store.SaveGenerationDiagnostics(ctx, runID, diagnostics); err != nil {
			return fmt.Errorf("save diagnostics: %w", err)
		}
		lineage = append(lineage, report.Lineage...)
		if err := p.store.SaveLineage(ctx, runID, lineage); err != nil {
			return fmt.Errorf("save lineage: %w", err)
		}

		run.Generations = report.Generation + 1
		if top := evo.BestOf([][]model.Organism{report.Population}); top.Evaluated() {
			if run.Best == nil || top.Distance < run.Best.Distance {
				run.Best = &top
			}
		}
		if err := p.store.SaveRun(ctx, run); err != nil {
			return fmt.Errorf("save run: %w", err)
		}
		log.Debug("generation persisted", slog.Int("generation", report.Generation))

		if cfg.OnGeneration != nil {
			return cfg.OnGeneration(ctx, report)
		}
		return nil
	}

	controller, err := evo.NewController(evo.ControllerConfig{
		Evaluator:    evaluator,
		Grammar:      cfg.Grammar,
		Canvas:       cfg.Canvas,
		TargetAngle:  cfg.TargetAngle,
		Elitism:      cfg.Elitism,
		Replacement:  cfg.Replacement,
		Seed:         cfg.Seed,
		Axiom:        cfg.Axiom,
		Population:   cfg.Population,
		Generations:  cfg.Generations,
		RepeatFactor: cfg.RepeatFactor,
		Logger:       p.log,
		OnGeneration: hook,
	})
	if err != nil {
		return EvolutionResult{}, err
	}

	resolved := controller.Config()
	run = model.RunRecord{
		VersionedRecord: storage.CurrentVersion(),
		ID:              runID,
		CreatedAtUTC:    created,
		Config: model.RunConfig{
			Population:   resolved.Population,
			Generations:  resolved.Generations,
			Seed:         resolved.Seed,
			Axiom:        resolved.Axiom,
			Width:        resolved.Canvas.Width,
			Height:       resolved.Canvas.Height,
			TargetAngle:  resolved.TargetAngle,
			Elitism:      resolved.Elitism,
			Replacement:  resolved.Replacement,
			Iterations:   resolved.Grammar.Iterations,
			RepeatFactor: resolved.RepeatFactor,
			Evaluator:    cfg.EvaluatorName,
		},
	}
	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run: %w", err)
	}

	log.Info("evolution started",
		slog.Int("population", resolved.Population),
		slog.Int("generations", resolved.Generations),
		slog.Int64("seed", resolved.Seed),
	)
	result, err := controller.Run(ctx)
	if err != nil {
		return EvolutionResult{}, err
	}

	best := result.Best
	run.Best = &best
	if err := p.store.SaveRun(ctx, run); err != nil {
		return EvolutionResult{}, fmt.Errorf("save run: %w", err)
	}
	if best.Angle != nil {
		log.Info("evolution finished", slog.String("best", best.ID), slog.Float64("best_angle", *best.Angle))
	}

	return EvolutionResult{
		Run:         run,
		Populations: result.Populations,
		Diagnostics: result.Diagnostics,
		Lineage:     result.Lineage,
		Best:        result.Best,
	}, nil
}
