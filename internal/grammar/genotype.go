package grammar

import (
	"errors"
	"fmt"
	"math/rand"
	"strings"

	"bendgen/internal/model"
)

const (
	DefaultIterations      = 5
	DefaultRegenIterations = 8
	DefaultAxiom           = "A"
	mutationSuccessorLen   = 5
)

// Config controls how genotypes are expanded.
type Config struct {
	// Iterations is used for the first expansion of a rule set.
	Iterations int
	// RegenIterations is used once the rules had to be regenerated.
	RegenIterations int
}

func DefaultConfig() Config {
	return Config{
		Iterations:      DefaultIterations,
		RegenIterations: DefaultRegenIterations,
	}
}

func (c Config) normalized() Config {
	if c.Iterations <= 0 {
		c.Iterations = DefaultIterations
	}
	if c.RegenIterations < 2 {
		c.RegenIterations = DefaultRegenIterations
	}
	return c
}

// NewGenotype builds a genotype from axiom and rules. Empty rules are derived
// from seed. When the expansion yields no placement symbol the rules are
// regenerated from seed+1, seed+2, ... until one does. The accepted sentence
// gets one trailing placement symbol.
func NewGenotype(axiom string, seed int64, rules []model.Rule, cfg Config) model.Genotype {
	cfg = cfg.normalized()
	if axiom == "" {
		axiom = DefaultAxiom
	}
	if len(rules) == 0 {
		rules = DeriveRules(seed)
	} else {
		rules = model.CloneRules(rules)
	}

	expansion := Expand(axiom, rules, cfg.Iterations)
	for j := int64(1); !expansion.OK; j++ {
		rules = DeriveRules(seed + j)
		expansion = Expand(axiom, rules, cfg.RegenIterations)
	}

	return model.Genotype{
		Axiom:    axiom,
		Seed:     seed,
		Rules:    rules,
		Sentence: expansion.Sentence + string(Placement),
	}
}

var ErrDegenerateAxiom = errors.New("axiom can never produce a placement symbol")

// CheckAxiom rejects axioms that no rule set can rewrite into a sentence
// with a placement symbol.
func CheckAxiom(axiom string) error {
	if axiom == "" {
		return nil
	}
	if strings.ContainsRune(axiom, Placement) {
		return nil
	}
	for _, pred := range Predecessors {
		if strings.IndexByte(axiom, pred) >= 0 {
			return nil
		}
	}
	return fmt.Errorf("%w: %q", ErrDegenerateAxiom, axiom)
}

// Validate checks the structural invariants of a genotype.
func Validate(g model.Genotype) error {
	if len(g.Rules) != RuleCount {
		return fmt.Errorf("genotype has %d rules, want %d", len(g.Rules), RuleCount)
	}
	if CountPlacements(g.Sentence) == 0 {
		return fmt.Errorf("genotype sentence %q has no placement symbol", g.Sentence)
	}
	return nil
}

// Mutate overwrites one or two rule successors of parent. Index i selects
// the deterministic random streams: baseSeed+i+i*i draws the mutation count
// and baseSeed+i+x drives mutation step x. The parent is left untouched.
func Mutate(parent model.Genotype, baseSeed int64, i int, cfg Config) model.Genotype {
	idx := int64(i)
	countRng := rand.New(rand.NewSource(baseSeed + idx + idx*idx))
	mutations := 1 + countRng.Intn(2)

	rules := model.CloneRules(parent.Rules)
	if len(rules) == 0 {
		rules = DeriveRules(parent.Seed)
	}
	for x := 0; x < mutations; x++ {
		stepRng := rand.New(rand.NewSource(baseSeed + idx + int64(x)))
		slot := stepRng.Intn(len(rules))
		rules[slot].Successor = SampleSuccessor(stepRng, mutationSuccessorLen)
	}
	return NewGenotype(parent.Axiom, baseSeed+idx, rules, cfg)
}
