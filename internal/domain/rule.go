package domain

import "iter"

// RuleOrigin identifies which rule document a rule was loaded from.
type RuleOrigin string

const (
	OriginPredefined RuleOrigin = "Predefined"
	OriginCustom     RuleOrigin = "Custom"
)

// Rule is a named equality predicate over event fields.
type Rule struct {
	Name  string         `json:"name" yaml:"name"`
	Risk  RiskLevel      `json:"risk" yaml:"risk"`
	Match map[string]any `json:"match" yaml:"match"`
}

// RuleSet is an immutable snapshot of the predefined and custom rules.
type RuleSet struct {
	Predefined []Rule
	Custom     []Rule
}

// Len is the total number of rules.
func (s RuleSet) Len() int {
	return len(s.Predefined) + len(s.Custom)
}

// All yields every rule in evaluation order: predefined rules first, then custom
// rules, each in declaration order.
func (s RuleSet) All() iter.Seq2[RuleOrigin, Rule] {
	return func(yield func(RuleOrigin, Rule) bool) {
		for _, r := range s.Predefined {
			if !yield(OriginPredefined, r) {
				return
			}
		}
		for _, r := range s.Custom {
			if !yield(OriginCustom, r) {
				return
			}
		}
	}
}
