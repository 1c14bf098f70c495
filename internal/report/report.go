// Package report maps classification results to response shapes.
package report

import (
	"github.com/V4T54L/trailwatch/internal/domain"
)

// EventEntry is the summary shape produced for heuristic classification.
type EventEntry struct {
	EventTime string           `json:"eventTime"`
	EventName string           `json:"eventName"`
	SourceIP  string           `json:"sourceIP"`
	RiskLevel domain.RiskLevel `json:"riskLevel"`
	Reason    string           `json:"reason"`
}

// LogEntry carries the full event with every matched reason.
type LogEntry struct {
	Log     domain.Event     `json:"log"`
	Risk    domain.RiskLevel `json:"risk"`
	Reasons []string         `json:"reasons"`
}

// Redactor masks sensitive event fields. *pii.Redactor satisfies it.
type Redactor interface {
	Redact(event domain.Event) (domain.Event, bool)
}

func EventEntries(results []domain.Classification) []EventEntry {
	entries := make([]EventEntry, 0, len(results))
	for _, r := range results {
		entries = append(entries, EventEntry{
			EventTime: r.Event.EventTime(),
			EventName: r.Event.EventName(),
			SourceIP:  r.Event.SourceIP(),
			RiskLevel: r.Risk,
			Reason:    r.Reason(),
		})
	}
	return entries
}

// LogEntries builds the full-event shape. A nil redactor leaves events untouched.
func LogEntries(results []domain.Classification, redactor Redactor) []LogEntry {
	entries := make([]LogEntry, 0, len(results))
	for _, r := range results {
		event := r.Event
		if redactor != nil {
			event, _ = redactor.Redact(event)
		}
		reasons := r.Reasons
		if reasons == nil {
			reasons = []string{}
		}
		entries = append(entries, LogEntry{Log: event, Risk: r.Risk, Reasons: reasons})
	}
	return entries
}

// Summarize counts results per risk level.
func Summarize(results []domain.Classification) domain.RiskSummary {
	var s domain.RiskSummary
	for _, r := range results {
		s.Add(r.Risk)
	}
	return s
}
