package scape

import (
	"context"
	"errors"

	"bendgen/internal/model"
	"bendgen/internal/render"
)

// Trace carries evaluator-specific details about one evaluation.
type Trace map[string]any

// Request is everything an evaluator needs to score one organism.
type Request struct {
	Generation int
	Index      int
	Canvas     render.Canvas
	Phenotype  []model.Coord
}

// Evaluator maps a rendered cross-section to the bend angle it produces.
// Calls block until the angle is known.
type Evaluator interface {
	Name() string
	Evaluate(ctx context.Context, req Request) (float64, Trace, error)
}

var (
	ErrEmptyPhenotype = errors.New("phenotype is empty")
	ErrMissingResult  = errors.New("evaluator produced no result")
	ErrInvalidResult  = errors.New("evaluator result is not a number")
)

// FuncEvaluator adapts a plain function to Evaluator.
type FuncEvaluator struct {
	ID string
	Fn func(ctx context.Context, req Request) (float64, error)
}

func (f FuncEvaluator) Name() string {
	if f.ID == "" {
		return "func"
	}
	return f.ID
}

func (f FuncEvaluator) Evaluate(ctx context.Context, req Request) (float64, Trace, error) {
	if f.Fn == nil {
		return 0, nil, errors.New("evaluator function is nil")
	}
	angle, err := f.Fn(ctx, req)
	if err != nil {
		return 0, nil, err
	}
	return angle, nil, nil
}
