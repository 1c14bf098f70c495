package classifier

import (
	"strconv"
	"strings"

	"github.com/V4T54L/trailwatch/internal/domain"
)

const (
	businessHourStart = 9
	businessHourEnd   = 18
)

// Heuristic is the fine-grained first-match chain. Exactly one reason is returned.
type Heuristic struct {
	trustedMarker string
}

func NewHeuristic(trustedMarker string) Heuristic {
	if trustedMarker == "" {
		trustedMarker = DefaultTrustedRegionMarker
	}
	return Heuristic{trustedMarker: trustedMarker}
}

func (Heuristic) Name() string { return StrategyHeuristic }

func (h Heuristic) Classify(event domain.Event) domain.Classification {
	risk, reason := h.evaluate(event)
	return domain.Classification{Event: event, Risk: risk, Reasons: []string{reason}}
}

func (h Heuristic) evaluate(event domain.Event) (domain.RiskLevel, string) {
	name := event.EventName()

	switch {
	case name == "ConsoleLogin" && !strings.Contains(event.SourceIP(), h.trustedMarker):
		return domain.RiskHigh, "console login from foreign IP"
	case name == "TerminateInstances":
		return domain.RiskHigh, "terminating compute instance"
	case name == "ListBuckets" && event.IdentityType() == "AssumedRole":
		return domain.RiskMedium, "reconnaissance activity from assumed role"
	case name == "ChangePassword" && outsideBusinessHours(event.EventTime()):
		return domain.RiskMedium, "password change outside business hours"
	case name == "UnauthorizedOperation":
		return domain.RiskHigh, "unauthorized API call attempt"
	default:
		return domain.RiskLow, "no immediate risk"
	}
}

// outsideBusinessHours reads the hour at offsets 11-13 of an ISO-8601 timestamp.
// Timestamps it cannot read are never outside business hours.
func outsideBusinessHours(ts string) bool {
	hour, ok := timestampHour(ts)
	if !ok {
		return false
	}
	return hour < businessHourStart || hour > businessHourEnd
}

func timestampHour(ts string) (int, bool) {
	if len(ts) < 13 {
		return 0, false
	}
	hour, err := strconv.Atoi(ts[11:13])
	if err != nil {
		return 0, false
	}
	return hour, true
}

// Coarse is the coarse-grained first-match chain.
type Coarse struct{}

func (Coarse) Name() string { return StrategyCoarse }

func (Coarse) Classify(event domain.Event) domain.Classification {
	risk, reason := domain.RiskLow, "common API usage"
	switch name := event.EventName(); {
	case name == "DeleteTrail" || name == "StopLogging":
		risk, reason = domain.RiskHigh, "critical service manipulation"
	case event.IdentityType() == "AssumedRole":
		risk, reason = domain.RiskMedium, "role-based access"
	}
	return domain.Classification{Event: event, Risk: risk, Reasons: []string{reason}}
}
