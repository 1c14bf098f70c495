package classifier

import (
	"strings"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// RuleStrategy evaluates events against a fixed rule snapshot.
type RuleStrategy struct {
	set domain.RuleSet
}

func NewRuleStrategy(set domain.RuleSet) *RuleStrategy {
	return &RuleStrategy{set: set}
}

func (s *RuleStrategy) Name() string { return StrategyRules }

func (s *RuleStrategy) Classify(event domain.Event) domain.Classification {
	return Classify(event, s.set)
}

// Classify scans every rule in set against event. The result carries the highest
// risk among satisfied rules (Low when none) and one reason per satisfied rule in
// evaluation order. Reasons is empty, not nil, when nothing matched.
func Classify(event domain.Event, set domain.RuleSet) domain.Classification {
	result := domain.Classification{
		Event:   event,
		Risk:    domain.RiskLow,
		Reasons: []string{},
	}

	for origin, rule := range set.All() {
		if !Matches(event, rule) {
			continue
		}
		result.Risk = domain.MaxRisk(result.Risk, rule.Risk)
		result.Reasons = append(result.Reasons, string(origin)+" rule matched: "+rule.Name)
	}
	return result
}

// Matches reports whether every match entry of rule equals the corresponding
// event field, compared case-insensitively as strings. A missing field fails.
func Matches(event domain.Event, rule domain.Rule) bool {
	for field, want := range rule.Match {
		got, ok := event.Lookup(field)
		if !ok {
			return false
		}
		if !strings.EqualFold(domain.FormatValue(got), domain.FormatValue(want)) {
			return false
		}
	}
	return true
}
