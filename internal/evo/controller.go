package evo

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"

	"bendgen/internal/grammar"
	"bendgen/internal/model"
	"bendgen/internal/render"
	"bendgen/internal/scape"
)

var (
	ErrInvalidConfig   = errors.New("invalid controller config")
	ErrEmptyPopulation = errors.New("population is empty")
)

// GenerationReport is handed to the generation hook after a population has
// been evaluated and ranked.
type GenerationReport struct {
	Generation  int
	Population  []model.Organism
	Diagnostics model.GenerationDiagnostics
	Lineage     []model.LineageRecord
}

type GenerationHook func(ctx context.Context, report GenerationReport) error

type ControllerConfig struct {
	Evaluator    scape.Evaluator
	Grammar      grammar.Config
	Canvas       render.Canvas
	TargetAngle  float64
	Elitism      float64
	Replacement  float64
	Seed         int64
	Axiom        string
	Population   int
	Generations  int
	RepeatFactor int
	Logger       *slog.Logger
	OnGeneration GenerationHook
}

type RunResult struct {
	Populations [][]model.Organism
	Diagnostics []model.GenerationDiagnostics
	Lineage     []model.LineageRecord
	Best        model.Organism
}

// Controller drives a single-population, rank-based search. Every operator
// derives its own random source from the base seed, so two controllers with
// the same config and evaluator produce the same run.
type Controller struct {
	cfg ControllerConfig
	log *slog.Logger
}

func NewController(cfg ControllerConfig) (*Controller, error) {
	if cfg.Evaluator == nil {
		return nil, fmt.Errorf("%w: evaluator is required", ErrInvalidConfig)
	}
	if cfg.Population <= 0 {
		return nil, fmt.Errorf("%w: population must be > 0", ErrInvalidConfig)
	}
	if cfg.Generations <= 0 {
		return nil, fmt.Errorf("%w: generations must be > 0", ErrInvalidConfig)
	}
	if cfg.Canvas.Width <= 0 || cfg.Canvas.Height <= 0 {
		return nil, fmt.Errorf("%w: canvas must be positive, got %dx%d", ErrInvalidConfig, cfg.Canvas.Width, cfg.Canvas.Height)
	}
	if cfg.Elitism < 0 || cfg.Elitism > 1 {
		return nil, fmt.Errorf("%w: elitism must be in [0, 1]", ErrInvalidConfig)
	}
	if cfg.Replacement < 0 || cfg.Replacement > 1 {
		return nil, fmt.Errorf("%w: replacement must be in [0, 1]", ErrInvalidConfig)
	}
	if math.IsNaN(cfg.TargetAngle) || math.IsInf(cfg.TargetAngle, 0) {
		return nil, fmt.Errorf("%w: target angle must be finite", ErrInvalidConfig)
	}
	if cfg.Axiom == "" {
		cfg.Axiom = grammar.DefaultAxiom
	}
	if err := grammar.CheckAxiom(cfg.Axiom); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidConfig, err)
	}
	if cfg.RepeatFactor <= 0 {
		cfg.RepeatFactor = render.DefaultRepeatFactor
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}

	return &Controller{
		cfg: cfg,
		log: logger.With(slog.String("component", "evo"), slog.String("evaluator", cfg.Evaluator.Name())),
	}, nil
}

func (c *Controller) Config() ControllerConfig {
	return c.cfg
}

// Run evaluates the initial population as generation 0 and then builds and
// evaluates Generations-1 further generations. There is no early stop.
func (c *Controller) Run(ctx context.Context) (RunResult, error) {
	result := RunResult{
		Populations: make([][]model.Organism, 0, c.cfg.Generations),
		Diagnostics: make([]model.GenerationDiagnostics, 0, c.cfg.Generations),
		Lineage:     make([]model.LineageRecord, 0, c.cfg.Population*c.cfg.Generations),
	}

	population := c.InitialPopulation()
	for gen := 0; gen < c.cfg.Generations; gen++ {
		if gen > 0 {
			next, err := c.NextGeneration(ctx, population, gen)
			if err != nil {
				return RunResult{}, err
			}
			population = next
		}

		ranked, evaluations, err := c.EvaluatePopulation(ctx, population, gen)
		if err != nil {
			return RunResult{}, err
		}
		diag := SummarizeGeneration(ranked, gen, evaluations)
		lineage := LineageOf(ranked)

		result.Populations = append(result.Populations, ranked)
		result.Diagnostics = append(result.Diagnostics, diag)
		result.Lineage = append(result.Lineage, lineage...)

		c.log.Info("generation evaluated",
			slog.Int("generation", gen),
			slog.Float64("best_angle", diag.BestAngle),
			slog.Float64("best_distance", diag.BestDistance),
			slog.Float64("mean_angle", diag.MeanAngle),
			slog.Float64("uniqueness", diag.Uniqueness),
			slog.Int("evaluations", evaluations),
		)

		if c.cfg.OnGeneration != nil {
			report := GenerationReport{
				Generation:  gen,
				Population:  ranked,
				Diagnostics: diag,
				Lineage:     lineage,
			}
			if err := c.cfg.OnGeneration(ctx, report); err != nil {
				return RunResult{}, fmt.Errorf("generation %d hook: %w", gen, err)
			}
		}
		population = ranked
	}

	result.Best = BestOf(result.Populations)
	return result, nil
}

// RandomGeneration builds and evaluates a single random population without
// any variation.
func (c *Controller) RandomGeneration(ctx context.Context) ([]model.Organism, model.GenerationDiagnostics, error) {
	ranked, evaluations, err := c.EvaluatePopulation(ctx, c.InitialPopulation(), 0)
	if err != nil {
		return nil, model.GenerationDiagnostics{}, err
	}
	return ranked, SummarizeGeneration(ranked, 0, evaluations), nil
}

// InitialPopulation seeds organism i from baseSeed + 2i. Nothing is
// evaluated yet.
func (c *Controller) InitialPopulation() []model.Organism {
	population := make([]model.Organism, 0, c.cfg.Population)
	for i := 0; i < c.cfg.Population; i++ {
		g := c.newGenotype(c.cfg.Seed + int64(2*i))
		population = append(population, c.fresh(g, model.OpSeed))
	}
	stamp(population, 0)
	return population
}

func (c *Controller) newGenotype(seed int64) model.Genotype {
	return grammar.NewGenotype(c.cfg.Axiom, seed, nil, c.cfg.Grammar)
}

// fresh wraps a new genotype into an unevaluated organism with its rendered
// phenotype.
func (c *Controller) fresh(g model.Genotype, op string, parentIDs ...string) model.Organism {
	return model.Organism{
		ParentIDs: append([]string(nil), parentIDs...),
		Operation: op,
		Genotype:  g,
		Phenotype: render.Render(g.Sentence, c.cfg.Canvas, c.cfg.RepeatFactor),
	}
}

// carry copies an admitted organism into the next generation, keeping its
// phenotype and cached angle.
func carry(o model.Organism, op string) model.Organism {
	out := o.Clone()
	out.ParentIDs = []string{o.ID}
	out.Operation = op
	out.Rank = 0
	out.Fitness = 0
	return out
}

func stamp(population []model.Organism, gen int) {
	for i := range population {
		population[i].ID = organismID(gen, i)
		population[i].Generation = gen
		population[i].Index = i
	}
}

func organismID(gen, index int) string {
	return fmt.Sprintf("g%d-%d", gen, index)
}

// LineageOf records how every organism of a population came to be.
func LineageOf(population []model.Organism) []model.LineageRecord {
	out := make([]model.LineageRecord, 0, len(population))
	for _, o := range population {
		out = append(out, model.LineageRecord{
			OrganismID: o.ID,
			ParentIDs:  append([]string(nil), o.ParentIDs...),
			Generation: o.Generation,
			Operation:  o.Operation,
			Sentence:   o.Genotype.Sentence,
		})
	}
	return out
}

// BestOf scans every stored generation for the smallest distance. Ties keep
// the earliest organism.
func BestOf(populations [][]model.Organism) model.Organism {
	var best model.Organism
	found := false
	for _, population := range populations {
		for _, o := range population {
			if !o.Evaluated() {
				continue
			}
			if !found || o.Distance < best.Distance {
				best = o
				found = true
			}
		}
	}
	if !found {
		return model.Organism{}
	}
	return best.Clone()
}
