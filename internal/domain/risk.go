package domain

import "fmt"

// RiskLevel is the ordered severity assigned to an event. The zero value is RiskLow.
type RiskLevel int

const (
	RiskLow RiskLevel = iota
	RiskMedium
	RiskHigh
)

var riskNames = [...]string{"Low", "Medium", "High"}

// RiskLevels returns every level in ascending order.
func RiskLevels() []RiskLevel {
	return []RiskLevel{RiskLow, RiskMedium, RiskHigh}
}

func (r RiskLevel) String() string {
	if !r.Valid() {
		return fmt.Sprintf("RiskLevel(%d)", int(r))
	}
	return riskNames[r]
}

// Valid reports whether r is one of the three defined levels.
func (r RiskLevel) Valid() bool {
	return r >= RiskLow && r <= RiskHigh
}

// ParseRiskLevel converts "Low", "Medium" or "High" to a RiskLevel. Matching is case-sensitive.
func ParseRiskLevel(s string) (RiskLevel, error) {
	for i, name := range riskNames {
		if name == s {
			return RiskLevel(i), nil
		}
	}
	return RiskLow, fmt.Errorf("%w: unknown risk level %q", ErrRuleFormat, s)
}

// MaxRisk returns the higher of a and b.
func MaxRisk(a, b RiskLevel) RiskLevel {
	if b > a {
		return b
	}
	return a
}

func (r RiskLevel) MarshalText() ([]byte, error) {
	if !r.Valid() {
		return nil, fmt.Errorf("invalid risk level %d", int(r))
	}
	return []byte(riskNames[r]), nil
}

func (r *RiskLevel) UnmarshalText(text []byte) error {
	level, err := ParseRiskLevel(string(text))
	if err != nil {
		return err
	}
	*r = level
	return nil
}

// RiskSummary counts results per risk level. All three keys are always encoded.
type RiskSummary struct {
	Low    int `json:"Low"`
	Medium int `json:"Medium"`
	High   int `json:"High"`
}

// Add increments the counter for level.
func (s *RiskSummary) Add(level RiskLevel) {
	switch level {
	case RiskLow:
		s.Low++
	case RiskMedium:
		s.Medium++
	case RiskHigh:
		s.High++
	}
}

// Count returns the counter for level.
func (s RiskSummary) Count(level RiskLevel) int {
	switch level {
	case RiskMedium:
		return s.Medium
	case RiskHigh:
		return s.High
	default:
		return s.Low
	}
}

// Total is the number of results counted.
func (s RiskSummary) Total() int {
	return s.Low + s.Medium + s.High
}
