package scape

import (
	"context"
	"math"

	"bendgen/internal/model"
)

const (
	surrogateMaxAngle     = 90.0
	surrogateHeightWeight = 0.35
	surrogateRidgeWeight  = 0.65
)

// SurrogateEvaluator is a closed-form stand-in for the simulator. Taller
// profiles and profiles with more vertical ridges bend further. It is cheap
// and deterministic, which makes it suitable for offline runs and tests; it
// is not a mechanical model.
type SurrogateEvaluator struct{}

func (SurrogateEvaluator) Name() string {
	return "surrogate"
}

func (SurrogateEvaluator) Evaluate(ctx context.Context, req Request) (float64, Trace, error) {
	if err := ctx.Err(); err != nil {
		return 0, nil, err
	}
	if len(req.Phenotype) == 0 {
		return 0, nil, ErrEmptyPhenotype
	}

	height := float64(req.Canvas.Height)
	if height <= 0 {
		height = 1
	}
	meanHeight := 0.0
	for _, p := range req.Phenotype {
		meanHeight += float64(p.Y)
	}
	meanHeight /= float64(len(req.Phenotype)) * height

	ridges := ridgeFraction(req.Phenotype)
	angle := surrogateMaxAngle * (surrogateHeightWeight*meanHeight + surrogateRidgeWeight*ridges)
	angle = math.Max(0, math.Min(surrogateMaxAngle, angle))
	return angle, Trace{
		"mean_height": meanHeight,
		"ridges":      ridges,
	}, nil
}

// ridgeFraction is the share of path steps that climb.
func ridgeFraction(path []model.Coord) float64 {
	if len(path) < 2 {
		return 0
	}
	climbs := 0
	for i := 1; i < len(path); i++ {
		if path[i].Y != path[i-1].Y {
			climbs++
		}
	}
	return float64(climbs) / float64(len(path)-1)
}
