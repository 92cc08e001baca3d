package grammar

import (
	"math/rand"
	"strings"

	"bendgen/internal/model"
)

// Placement is the only symbol the renderer turns into path cells.
const Placement = 'F'

// RuleCount is the number of rules carried by every genotype.
const RuleCount = 6

// Alphabet is the successor alphabet. Duplicates weight the draw toward
// placement and turn symbols; the empty entry draws nothing.
var Alphabet = []string{
	"A", "B", "C", "D", "F", "E", "F", "H", "G",
	"-", "+", "F", "-", "+", "F", "-", "+", "",
	"{", "}",
}

// NonTerminals is the restricted alphabet used for the constrained slot of
// the first rule.
var NonTerminals = []string{"A", "B", "C", "D", "E", "F", "H", "G"}

// Predecessors lists the rule heads in slot order.
var Predecessors = [RuleCount]byte{'A', 'B', 'C', 'D', 'E', 'G'}

// DeriveRules builds the rule set for seed. The result depends on seed only.
func DeriveRules(seed int64) []model.Rule {
	rng := rand.New(rand.NewSource(seed))
	rules := make([]model.Rule, 0, RuleCount)
	for i, pred := range Predecessors {
		var succ string
		if i == 0 {
			succ = pick(rng, Alphabet) + pick(rng, Alphabet) + pick(rng, NonTerminals) + pick(rng, Alphabet)
		} else {
			succ = SampleSuccessor(rng, 5)
		}
		rules = append(rules, model.Rule{Predecessor: pred, Successor: succ})
	}
	return rules
}

// SampleSuccessor draws n symbols from the full alphabet.
func SampleSuccessor(rng *rand.Rand, n int) string {
	var b strings.Builder
	for i := 0; i < n; i++ {
		b.WriteString(pick(rng, Alphabet))
	}
	return b.String()
}

func pick(rng *rand.Rand, symbols []string) string {
	return symbols[rng.Intn(len(symbols))]
}

// Splice returns head[:cut] followed by tail[cut:] as a fresh slice.
func Splice(head, tail []model.Rule, cut int) []model.Rule {
	if cut < 0 {
		cut = 0
	}
	if cut > len(head) {
		cut = len(head)
	}
	out := make([]model.Rule, 0, len(tail))
	out = append(out, head[:cut]...)
	if cut < len(tail) {
		out = append(out, tail[cut:]...)
	}
	return out
}
