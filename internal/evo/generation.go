package evo

import (
	"context"
	"math"
	"math/rand"

	"bendgen/internal/grammar"
	"bendgen/internal/model"
)

// nearTargetFraction marks organisms close enough to the target to pass
// through untouched.
const nearTargetFraction = 0.9

// crossoverCuts bounds the cut points to the first three rules.
const crossoverCuts = 3

// Crossover splices the rule lists of two parents at independent cut points
// drawn from a source seeded with baseSeed + i. Both children carry seed
// baseSeed + i and are re-expanded.
func (c *Controller) Crossover(p1, p2 model.Genotype, i int) (model.Genotype, model.Genotype) {
	seed := c.cfg.Seed + int64(i)
	rng := rand.New(rand.NewSource(seed))
	cut1 := rng.Intn(crossoverCuts)
	cut2 := rng.Intn(crossoverCuts)

	child1 := grammar.NewGenotype(c.cfg.Axiom, seed, grammar.Splice(p1.Rules, p2.Rules, cut1), c.cfg.Grammar)
	child2 := grammar.NewGenotype(c.cfg.Axiom, seed, grammar.Splice(p2.Rules, p1.Rules, cut2), c.cfg.Grammar)
	return child1, child2
}

// Slots returns how many elites and replacements a population of n gets.
// Elites are capped at n and replacements at whatever the elites leave.
func (c *Controller) Slots(n int) (elites, replacements int) {
	elites = min(int(math.Ceil(c.cfg.Elitism*float64(n))), n)
	replacements = min(int(math.Ceil(c.cfg.Replacement*float64(n))), n-elites)
	return elites, replacements
}

// NextGeneration builds generation gen from a ranked population: elites,
// then variation up to the replacement point, then fresh replacements. New
// organisms are rendered; carried ones keep their phenotype and angle.
func (c *Controller) NextGeneration(ctx context.Context, ranked []model.Organism, gen int) ([]model.Organism, error) {
	n := len(ranked)
	if n == 0 {
		return nil, ErrEmptyPopulation
	}
	base := c.cfg.Seed
	eliteCount, replaceCount := c.Slots(n)
	replacementPoint := n - replaceCount
	next := make([]model.Organism, 0, n)

	for i := 0; i < eliteCount; i++ {
		if i > 0 && ranked[i].Genotype.Sentence == ranked[i-1].Genotype.Sentence {
			g := c.newGenotype(base + int64(3*i*gen+i+10))
			next = append(next, c.fresh(g, model.OpEliteReplacement))
			continue
		}
		next = append(next, carry(ranked[i], model.OpElite))
	}

	uniqueness := Uniqueness(ranked)

	i := eliteCount
	for i < replacementPoint {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		rng := rand.New(rand.NewSource(base + int64(gen*i+i)))
		randCom := 2*rng.Float64() + (1 - uniqueness)
		randMut := rng.Float64()
		remaining := replacementPoint - i

		switch {
		case c.nearTarget(ranked[i]) && !admitted(next, ranked[i].Genotype.Sentence):
			next = append(next, carry(ranked[i], model.OpNearTarget))
			i++
		case randCom <= 1 && remaining >= 2:
			p1, p2, err := SelectPair(ranked, rng)
			if err != nil {
				return nil, err
			}
			child1, child2 := c.Crossover(p1.Genotype, p2.Genotype, gen*i)
			op := model.OpCrossover
			if randMut >= 0.5 {
				child1 = grammar.Mutate(child1, base, gen*i+i, c.cfg.Grammar)
				child2 = grammar.Mutate(child2, base, gen*i+2*i+1, c.cfg.Grammar)
				op = model.OpCrossoverMutation
			}
			next = append(next,
				c.fresh(child1, op, p1.ID, p2.ID),
				c.fresh(child2, op, p1.ID, p2.ID),
			)
			i += 2
		case randCom > 1 || remaining < 2:
			parent, err := SelectSingle(ranked, rng)
			if err != nil {
				return nil, err
			}
			child := grammar.Mutate(parent.Genotype, base, gen*i, c.cfg.Grammar)
			next = append(next, c.fresh(child, model.OpMutation, parent.ID))
			i++
		default:
			parent, err := SelectSingle(ranked, rng)
			if err != nil {
				return nil, err
			}
			next = append(next, carry(parent, model.OpFallback))
			i++
		}
	}

	for k := 0; k < replaceCount; k++ {
		g := c.newGenotype(base + int64(2*k*gen+k+10))
		next = append(next, c.fresh(g, model.OpReplacement))
	}

	stamp(next, gen)
	c.log.Debug("generation assembled",
		"generation", gen,
		"elites", eliteCount,
		"replacements", replaceCount,
		"uniqueness", uniqueness,
	)
	return next, nil
}

// nearTarget compares rounded angles with half-to-even rounding.
func (c *Controller) nearTarget(o model.Organism) bool {
	if o.Angle == nil {
		return false
	}
	return math.RoundToEven(*o.Angle) == math.RoundToEven(nearTargetFraction*c.cfg.TargetAngle)
}

func admitted(population []model.Organism, sentence string) bool {
	for _, o := range population {
		if o.Genotype.Sentence == sentence {
			return true
		}
	}
	return false
}
