package grammar

import (
	"strings"

	"bendgen/internal/model"
)

// Expansion is the outcome of rewriting an axiom. OK is false when the
// sentence holds no placement symbol and the rules must be regenerated.
type Expansion struct {
	Sentence   string
	Placements int
	OK         bool
}

// Rewrite performs one context-free substitution pass over sentence.
func Rewrite(sentence string, rules []model.Rule) string {
	var b strings.Builder
	b.Grow(len(sentence) * 4)
	for i := 0; i < len(sentence); i++ {
		c := sentence[i]
		replaced := false
		for _, rule := range rules {
			if rule.Predecessor == c {
				b.WriteString(rule.Successor)
				replaced = true
				break
			}
		}
		if !replaced {
			b.WriteByte(c)
		}
	}
	return b.String()
}

// Expand applies Rewrite iterations-1 times starting from axiom.
func Expand(axiom string, rules []model.Rule, iterations int) Expansion {
	sentence := axiom
	for i := 0; i < iterations-1; i++ {
		sentence = Rewrite(sentence, rules)
	}
	placements := CountPlacements(sentence)
	return Expansion{
		Sentence:   sentence,
		Placements: placements,
		OK:         placements > 0,
	}
}

func CountPlacements(sentence string) int {
	return strings.Count(sentence, string(Placement))
}

// ExpandRepeats replaces every matched {...} group with factor copies of its
// content, innermost groups first. Unmatched braces are left in place.
func ExpandRepeats(sentence string, factor int) string {
	if factor < 0 {
		factor = 0
	}
	for {
		open, closing := innermostGroup(sentence)
		if open < 0 {
			return sentence
		}
		inner := sentence[open+1 : closing]
		sentence = sentence[:open] + strings.Repeat(inner, factor) + sentence[closing+1:]
	}
}

// innermostGroup finds the first closing brace that has an opening brace
// before it and returns the pair. The content between them holds no braces.
func innermostGroup(s string) (int, int) {
	open := -1
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			open = i
		case '}':
			if open >= 0 {
				return open, i
			}
		}
	}
	return -1, -1
}
