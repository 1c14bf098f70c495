package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/V4T54L/trailwatch/internal/domain"
)

// RuleService is the rule-set use case behind RulesHandler.
type RuleService interface {
	Snapshot() domain.RuleSet
	ReplaceCustom(ctx context.Context, raw json.RawMessage) ([]domain.Rule, error)
}

// RulesHandler exposes the predefined and custom rule lists.
type RulesHandler struct {
	svc    RuleService
	logger *slog.Logger
}

func NewRulesHandler(svc RuleService, logger *slog.Logger) *RulesHandler {
	return &RulesHandler{svc: svc, logger: logger.With("component", "rules_handler")}
}

type rulesResponse struct {
	PredefinedRules []domain.Rule `json:"predefinedRules"`
	CustomRules     []domain.Rule `json:"customRules"`
}

// List returns both rule lists.
// GET /api/rules
func (h *RulesHandler) List(w http.ResponseWriter, r *http.Request) {
	set := h.svc.Snapshot()
	respondWithJSON(w, h.logger, http.StatusOK, rulesResponse{
		PredefinedRules: nonNilRules(set.Predefined),
		CustomRules:     nonNilRules(set.Custom),
	})
}

// ReplaceCustom swaps the whole custom rule list.
// POST /api/rules/custom
func (h *RulesHandler) ReplaceCustom(w http.ResponseWriter, r *http.Request) {
	var req struct {
		CustomRules json.RawMessage `json:"customRules"`
	}
	if !decodeBody(w, r, h.logger, &req) {
		return
	}

	if _, err := h.svc.ReplaceCustom(r.Context(), req.CustomRules); err != nil {
		if errors.Is(err, domain.ErrRuleFormat) {
			respondWithMessage(w, h.logger, http.StatusBadRequest, err.Error())
			return
		}
		h.logger.Error("failed to replace custom rules", "error", err)
		respondWithMessage(w, h.logger, http.StatusInternalServerError, "Failed to save custom rules")
		return
	}

	respondWithMessage(w, h.logger, http.StatusOK, "Custom rules updated")
}

func nonNilRules(rules []domain.Rule) []domain.Rule {
	if rules == nil {
		return []domain.Rule{}
	}
	return rules
}
