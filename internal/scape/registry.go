package scape

import (
	"errors"
	"fmt"
	"sort"
	"sync"
)

var (
	ErrEvaluatorExists   = errors.New("evaluator already registered")
	ErrEvaluatorNotFound = errors.New("evaluator not found")
)

// Registry resolves evaluators by name. It is safe for concurrent use.
type Registry struct {
	mu sync.RWMutex
	m  map[string]Evaluator
}

func NewRegistry() *Registry {
	return &Registry{m: make(map[string]Evaluator)}
}

func (r *Registry) Register(e Evaluator) error {
	if e == nil {
		return errors.New("evaluator is required")
	}
	name := e.Name()
	if name == "" {
		return errors.New("evaluator name is required")
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	if _, exists := r.m[name]; exists {
		return fmt.Errorf("%w: %s", ErrEvaluatorExists, name)
	}
	r.m[name] = e
	return nil
}

func (r *Registry) Get(name string) (Evaluator, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.m[name]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrEvaluatorNotFound, name)
	}
	return e, nil
}

// Names lists registered evaluators in lexical order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.m))
	for name := range r.m {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
