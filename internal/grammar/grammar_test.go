package grammar

import (
	"errors"
	"math/rand"
	"reflect"
	"strings"
	"testing"

	"bendgen/internal/model"
)

func TestDeriveRulesDeterministicAndShaped(t *testing.T) {
	a := DeriveRules(1324)
	b := DeriveRules(1324)
	if !reflect.DeepEqual(a, b) {
		t.Fatalf("expected identical rules for the same seed: %+v vs %+v", a, b)
	}
	if len(a) != RuleCount {
		t.Fatalf("expected %d rules, got %d", RuleCount, len(a))
	}
	for i, rule := range a {
		if rule.Predecessor != Predecessors[i] {
			t.Fatalf("rule %d predecessor=%c want=%c", i, rule.Predecessor, Predecessors[i])
		}
		maxLen := 5
		if i == 0 {
			maxLen = 4
		}
		if len(rule.Successor) > maxLen {
			t.Fatalf("rule %d successor %q longer than %d", i, rule.Successor, maxLen)
		}
	}
	if reflect.DeepEqual(DeriveRules(1), DeriveRules(2)) {
		t.Fatal("expected different seeds to produce different rules")
	}
}

func TestDeriveRulesFirstRuleHasNonTerminal(t *testing.T) {
	for seed := int64(0); seed < 200; seed++ {
		succ := DeriveRules(seed)[0].Successor
		if !strings.ContainsAny(succ, strings.Join(NonTerminals, "")) {
			t.Fatalf("seed %d: first successor %q has no non-terminal", seed, succ)
		}
	}
}

func TestRewriteSubstitutesMatchingSymbols(t *testing.T) {
	rules := []model.Rule{
		{Predecessor: 'A', Successor: "F+B"},
		{Predecessor: 'B', Successor: "-F"},
	}
	if got := Rewrite("AxB", rules); got != "F+Bx-F" {
		t.Fatalf("unexpected rewrite: %q", got)
	}
	if got := Rewrite("", rules); got != "" {
		t.Fatalf("expected empty rewrite, got %q", got)
	}
}

func TestExpandReportsDegenerateSentence(t *testing.T) {
	rules := []model.Rule{{Predecessor: 'A', Successor: "B"}, {Predecessor: 'B', Successor: "A"}}
	exp := Expand("A", rules, 5)
	if exp.OK || exp.Placements != 0 {
		t.Fatalf("expected degenerate expansion, got %+v", exp)
	}

	rules = []model.Rule{{Predecessor: 'A', Successor: "FA"}}
	exp = Expand("A", rules, 4)
	if !exp.OK || exp.Sentence != "FFFA" || exp.Placements != 3 {
		t.Fatalf("unexpected expansion: %+v", exp)
	}
}

func TestExpandRepeats(t *testing.T) {
	cases := []struct {
		in     string
		factor int
		want   string
	}{
		{in: "F+F-F", factor: 3, want: "F+F-F"},
		{in: "{AB}", factor: 3, want: "ABABAB"},
		{in: "{ABB}", factor: 2, want: "ABBABB"},
		{in: "{A{B}}", factor: 2, want: "ABBABB"},
		{in: "F{F}-{+F}", factor: 2, want: "FFF-+F+F"},
		{in: "}A{", factor: 3, want: "}A{"},
		{in: "{}F", factor: 3, want: "F"},
	}
	for _, tc := range cases {
		if got := ExpandRepeats(tc.in, tc.factor); got != tc.want {
			t.Fatalf("ExpandRepeats(%q,%d)=%q want %q", tc.in, tc.factor, got, tc.want)
		}
	}
}

func TestExpandRepeatsInnermostFirst(t *testing.T) {
	open, closing := innermostGroup("{A{B}}")
	if open != 2 || closing != 4 {
		t.Fatalf("expected innermost group at 2..4, got %d..%d", open, closing)
	}
	if open, _ := innermostGroup("AB"); open != -1 {
		t.Fatalf("expected no group, got open=%d", open)
	}
}

func TestNewGenotypeAlwaysHasPlacement(t *testing.T) {
	for seed := int64(0); seed < 300; seed++ {
		g := NewGenotype("A", seed, nil, DefaultConfig())
		if err := Validate(g); err != nil {
			t.Fatalf("seed %d: %v", seed, err)
		}
		if !strings.HasSuffix(g.Sentence, "F") {
			t.Fatalf("seed %d: sentence %q lacks trailing F", seed, g.Sentence)
		}
	}
}

func TestNewGenotypeRegeneratesDegenerateRules(t *testing.T) {
	dead := []model.Rule{
		{Predecessor: 'A', Successor: "B"},
		{Predecessor: 'B', Successor: "A"},
		{Predecessor: 'C', Successor: ""},
		{Predecessor: 'D', Successor: ""},
		{Predecessor: 'E', Successor: ""},
		{Predecessor: 'G', Successor: ""},
	}
	g := NewGenotype("A", 7, dead, DefaultConfig())
	if reflect.DeepEqual(g.Rules, dead) {
		t.Fatal("expected degenerate rules to be regenerated")
	}
	if err := Validate(g); err != nil {
		t.Fatalf("validate: %v", err)
	}
	again := NewGenotype("A", 7, dead, DefaultConfig())
	if !reflect.DeepEqual(g, again) {
		t.Fatal("expected regeneration to be deterministic")
	}
}

func TestNewGenotypeCopiesRules(t *testing.T) {
	rules := DeriveRules(99)
	g := NewGenotype("A", 99, rules, DefaultConfig())
	rules[0].Successor = "changed"
	if g.Rules[0].Successor == "changed" {
		t.Fatal("expected genotype rules not to alias caller slice")
	}
}

func TestMutateLeavesParentUntouched(t *testing.T) {
	parent := NewGenotype("A", 1324, nil, DefaultConfig())
	before := parent.Clone()

	child := Mutate(parent, 1324, 3, DefaultConfig())
	if !reflect.DeepEqual(parent, before) {
		t.Fatal("mutation modified the parent genotype")
	}
	if len(child.Rules) != RuleCount {
		t.Fatalf("expected %d rules, got %d", RuleCount, len(child.Rules))
	}
	if child.Seed != 1324+3 {
		t.Fatalf("unexpected child seed %d", child.Seed)
	}
	again := Mutate(parent, 1324, 3, DefaultConfig())
	if !reflect.DeepEqual(child, again) {
		t.Fatal("expected mutation to be deterministic")
	}
}

func TestMutateChangesAtMostTwoSlots(t *testing.T) {
	rules := []model.Rule{
		{Predecessor: 'A', Successor: "FFFF"},
		{Predecessor: 'B', Successor: "FFFFF"},
		{Predecessor: 'C', Successor: "FFFFF"},
		{Predecessor: 'D', Successor: "FFFFF"},
		{Predecessor: 'E', Successor: "FFFFF"},
		{Predecessor: 'G', Successor: "FFFFF"},
	}
	parent := NewGenotype("F", 5, rules, DefaultConfig())
	for i := 0; i < 50; i++ {
		child := Mutate(parent, 11, i, DefaultConfig())
		changed := 0
		for slot := range rules {
			if child.Rules[slot] != parent.Rules[slot] {
				changed++
			}
		}
		if changed > 2 {
			t.Fatalf("index %d: %d slots changed", i, changed)
		}
	}
}

func TestSpliceLocality(t *testing.T) {
	p1 := DeriveRules(1)
	p2 := DeriveRules(2)
	for cut := 0; cut < 3; cut++ {
		child := Splice(p1, p2, cut)
		if len(child) != RuleCount {
			t.Fatalf("cut %d: got %d rules", cut, len(child))
		}
		if !reflect.DeepEqual(child[:cut], p1[:cut]) || !reflect.DeepEqual(child[cut:], p2[cut:]) {
			t.Fatalf("cut %d: unexpected splice %+v", cut, child)
		}
	}
}

func TestCheckAxiom(t *testing.T) {
	for _, ok := range []string{"", "A", "F", "xG"} {
		if err := CheckAxiom(ok); err != nil {
			t.Fatalf("axiom %q: %v", ok, err)
		}
	}
	if err := CheckAxiom("H"); !errors.Is(err, ErrDegenerateAxiom) {
		t.Fatalf("expected degenerate axiom error, got %v", err)
	}
}

func TestSampleSuccessorUsesAlphabet(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	allowed := strings.Join(Alphabet, "")
	for i := 0; i < 100; i++ {
		succ := SampleSuccessor(rng, 5)
		for _, c := range succ {
			if !strings.ContainsRune(allowed, c) {
				t.Fatalf("symbol %q outside alphabet", c)
			}
		}
	}
}
