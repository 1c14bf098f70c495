package usecase

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/V4T54L/trailwatch/internal/adapter/metrics"
	"github.com/V4T54L/trailwatch/internal/adapter/rulefile"
	"github.com/V4T54L/trailwatch/internal/domain"
)

// RuleService owns the active rule set. Readers take immutable snapshots;
// writers build a new set and swap it in, so a classification run never sees a
// half-applied update.
type RuleService struct {
	current atomic.Pointer[domain.RuleSet]
	store   domain.Store[[]domain.Rule]
	metrics *metrics.AnalysisMetrics
	logger  *slog.Logger

	// mu serializes writers; readers never take it.
	mu sync.Mutex
}

// NewRuleService creates a RuleService holding predefined and no custom rules.
// Call Load to read the custom rules from the store.
func NewRuleService(predefined []domain.Rule, store domain.Store[[]domain.Rule], m *metrics.AnalysisMetrics, logger *slog.Logger) *RuleService {
	s := &RuleService{store: store, metrics: m, logger: logger.With("component", "rule_service")}
	s.swap(domain.RuleSet{Predefined: slices.Clone(predefined)})
	return s
}

// Snapshot returns the current rule set. The slices must not be modified.
func (s *RuleService) Snapshot() domain.RuleSet {
	return *s.current.Load()
}

// Load replaces the in-memory custom rules with the stored document.
func (s *RuleService) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	custom, err := s.store.Load(ctx)
	if err != nil {
		return fmt.Errorf("load custom rules: %w", err)
	}
	for i, r := range custom {
		if r.Name == "" || !r.Risk.Valid() || r.Match == nil {
			return fmt.Errorf("load custom rules: rule %d: %w", i, domain.ErrRuleFormat)
		}
	}

	next := s.Snapshot()
	next.Custom = slices.Clone(custom)
	s.swap(next)
	s.logger.Info("Custom rules loaded", "count", len(custom))
	return nil
}

// ReplaceCustom validates raw as a rule list, persists it and then makes it
// active. On any error the stored and active rules are left unchanged.
func (s *RuleService) ReplaceCustom(ctx context.Context, raw json.RawMessage) ([]domain.Rule, error) {
	rules, err := rulefile.ParseJSON(raw)
	if err != nil {
		s.countReplacement("invalid")
		return nil, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.Replace(ctx, rules); err != nil {
		s.countReplacement("error")
		return nil, fmt.Errorf("persist custom rules: %w", err)
	}

	next := s.Snapshot()
	next.Custom = rules
	s.swap(next)
	s.countReplacement("ok")
	s.logger.Info("Custom rules replaced", "count", len(rules))
	return rules, nil
}

// SetPredefined swaps in a new predefined list, e.g. after the rule file changed.
func (s *RuleService) SetPredefined(rules []domain.Rule) {
	s.mu.Lock()
	defer s.mu.Unlock()

	next := s.Snapshot()
	next.Predefined = slices.Clone(rules)
	s.swap(next)
}

func (s *RuleService) swap(set domain.RuleSet) {
	s.current.Store(&set)
	if s.metrics != nil {
		s.metrics.RulesLoaded.WithLabelValues(string(domain.OriginPredefined)).Set(float64(len(set.Predefined)))
		s.metrics.RulesLoaded.WithLabelValues(string(domain.OriginCustom)).Set(float64(len(set.Custom)))
	}
}

func (s *RuleService) countReplacement(result string) {
	if s.metrics != nil {
		s.metrics.RuleReplacements.WithLabelValues(result).Inc()
	}
}
