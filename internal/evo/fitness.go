package evo

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"sort"

	"bendgen/internal/model"
	"bendgen/internal/scape"
)

// EvaluatePopulation scores every organism that has no cached angle, one at
// a time, then ranks the population by distance to the target. The second
// return value counts evaluator calls.
func (c *Controller) EvaluatePopulation(ctx context.Context, population []model.Organism, gen int) ([]model.Organism, int, error) {
	if len(population) == 0 {
		return nil, 0, ErrEmptyPopulation
	}

	out := make([]model.Organism, len(population))
	evaluations := 0
	for i := range population {
		if err := ctx.Err(); err != nil {
			return nil, evaluations, err
		}
		o := population[i].Clone()
		o.Generation = gen
		o.Index = i

		if !o.Evaluated() {
			angle, trace, err := c.cfg.Evaluator.Evaluate(ctx, scape.Request{
				Generation: gen,
				Index:      i,
				Canvas:     c.cfg.Canvas,
				Phenotype:  o.Phenotype,
			})
			if err != nil {
				return nil, evaluations, fmt.Errorf("evaluate organism %d/%d: %w", gen, i, err)
			}
			o.Angle = &angle
			evaluations++
			c.log.Debug("organism evaluated",
				slog.String("id", o.ID),
				slog.Float64("angle", angle),
				slog.Any("trace", trace),
			)
		}
		o.Distance = math.Abs(c.cfg.TargetAngle - *o.Angle)
		out[i] = o
	}

	Rank(out)
	return out, evaluations, nil
}

// Rank sorts by ascending distance (stable, so ties keep evaluation order)
// and assigns rank and the linear rank fitness 2(N+1-r) / (N(N+1)), which
// sums to 1 over the population.
func Rank(population []model.Organism) {
	sort.SliceStable(population, func(i, j int) bool {
		return population[i].Distance < population[j].Distance
	})
	n := float64(len(population))
	for i := range population {
		population[i].Rank = i + 1
		population[i].Fitness = 2 * (n + 1 - float64(population[i].Rank)) / (n * (n + 1))
	}
}

// Uniqueness is the share of distinct sentences in a population.
func Uniqueness(population []model.Organism) float64 {
	if len(population) == 0 {
		return 0
	}
	return float64(uniqueSentences(population)) / float64(len(population))
}

func uniqueSentences(population []model.Organism) int {
	seen := make(map[string]struct{}, len(population))
	for _, o := range population {
		seen[o.Genotype.Sentence] = struct{}{}
	}
	return len(seen)
}

// SummarizeGeneration expects a ranked population.
func SummarizeGeneration(ranked []model.Organism, gen, evaluations int) model.GenerationDiagnostics {
	diag := model.GenerationDiagnostics{Generation: gen, Evaluations: evaluations}
	if len(ranked) == 0 {
		return diag
	}

	sumAngle := 0.0
	sumDistance := 0.0
	for _, o := range ranked {
		if o.Angle != nil {
			sumAngle += *o.Angle
		}
		sumDistance += o.Distance
	}
	n := float64(len(ranked))
	diag.BestDistance = ranked[0].Distance
	if ranked[0].Angle != nil {
		diag.BestAngle = *ranked[0].Angle
	}
	diag.MeanAngle = sumAngle / n
	diag.MeanDistance = sumDistance / n
	diag.UniqueSentences = uniqueSentences(ranked)
	diag.Uniqueness = float64(diag.UniqueSentences) / n
	return diag
}
