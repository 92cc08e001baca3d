package evo

import (
	"fmt"
	"math/rand"

	"bendgen/internal/model"
)

// spin walks the pool accumulating fitness on top of a uniform offset and
// returns the first index that pushes the sum past 1, or -1 when the walk
// ends below it.
func spin(pool []model.Organism, rng *rand.Rand) int {
	partial := rng.Float64()
	for i := range pool {
		partial += pool[i].Fitness
		if partial > 1 {
			return i
		}
	}
	return -1
}

// SelectPair draws two roulette parents from a ranked pool, each with a fresh
// offset. Both offsets are consecutive draws from rng, which the caller seeds
// per variation step. A draw that never crosses falls back to pool[0] and
// pool[1].
func SelectPair(pool []model.Organism, rng *rand.Rand) (model.Organism, model.Organism, error) {
	if rng == nil {
		return model.Organism{}, model.Organism{}, fmt.Errorf("random source is required")
	}
	if len(pool) < 2 {
		return model.Organism{}, model.Organism{}, fmt.Errorf("pair selection needs at least 2 organisms, got %d", len(pool))
	}
	first, second := pool[0], pool[1]
	if i := spin(pool, rng); i >= 0 {
		first = pool[i]
	}
	if i := spin(pool, rng); i >= 0 {
		second = pool[i]
	}
	return first, second, nil
}

// SelectSingle draws one roulette parent, falling back to pool[0].
func SelectSingle(pool []model.Organism, rng *rand.Rand) (model.Organism, error) {
	if rng == nil {
		return model.Organism{}, fmt.Errorf("random source is required")
	}
	if len(pool) == 0 {
		return model.Organism{}, ErrEmptyPopulation
	}
	if i := spin(pool, rng); i >= 0 {
		return pool[i], nil
	}
	return pool[0], nil
}
