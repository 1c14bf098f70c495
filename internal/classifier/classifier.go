// Package classifier assigns risk levels to audit-log events.
//
// Three strategies share the Strategy interface: the rule-based full scan and two
// hard-coded first-match heuristics used when no rule set applies.
package classifier

import (
	"fmt"
	"iter"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// Strategy names accepted by Engine.Strategy.
const (
	StrategyRules     = "rules"
	StrategyHeuristic = "heuristic"
	StrategyCoarse    = "coarse"
)

// DefaultTrustedRegionMarker is the substring a console-login source IP must carry
// to be treated as local by the heuristic strategy.
const DefaultTrustedRegionMarker = "IN"

// Strategy classifies one event at a time.
type Strategy interface {
	Name() string
	Classify(event domain.Event) domain.Classification
}

// RuleSource hands out the current rule snapshot.
type RuleSource interface {
	Snapshot() domain.RuleSet
}

// Engine selects strategies by name.
type Engine struct {
	rules         RuleSource
	trustedMarker string
}

// NewEngine creates an Engine. A nil rules source makes the rules strategy fall
// back to the fine-grained heuristic.
func NewEngine(rules RuleSource, trustedMarker string) *Engine {
	if trustedMarker == "" {
		trustedMarker = DefaultTrustedRegionMarker
	}
	return &Engine{rules: rules, trustedMarker: trustedMarker}
}

// Strategy returns the named strategy. The rules strategy is bound to the rule
// snapshot current at the time of the call, so one run sees one rule set.
func (e *Engine) Strategy(name string) (Strategy, error) {
	switch name {
	case StrategyRules:
		if e.rules == nil {
			return NewHeuristic(e.trustedMarker), nil
		}
		return NewRuleStrategy(e.rules.Snapshot()), nil
	case StrategyHeuristic:
		return NewHeuristic(e.trustedMarker), nil
	case StrategyCoarse:
		return Coarse{}, nil
	default:
		return nil, fmt.Errorf("unknown classification strategy %q", name)
	}
}

// ClassifyAll applies s to every event in order.
func ClassifyAll(s Strategy, events iter.Seq[domain.Event]) []domain.Classification {
	var results []domain.Classification
	for ev := range events {
		results = append(results, s.Classify(ev))
	}
	return results
}
