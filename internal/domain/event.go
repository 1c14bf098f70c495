package domain

import (
	"encoding/json"
	"strconv"
	"strings"
)

// Canonical CloudTrail field names referenced by the classifiers.
const (
	FieldEventName    = "eventName"
	FieldEventTime    = "eventTime"
	FieldSourceIP     = "sourceIPAddress"
	FieldIdentityType = "userIdentity.type"
)

// Event is one decoded audit-log record. Values are strings, json.Number, bools,
// nested objects (map[string]any) or arrays, exactly as decoded.
type Event map[string]any

// Lookup returns the value stored under field. A top-level key wins; otherwise a
// dotted field is resolved as a path through nested objects.
func (e Event) Lookup(field string) (any, bool) {
	if v, ok := e[field]; ok {
		return v, true
	}
	if !strings.Contains(field, ".") {
		return nil, false
	}

	var cur any = map[string]any(e)
	for _, part := range strings.Split(field, ".") {
		obj, ok := asObject(cur)
		if !ok {
			return nil, false
		}
		if cur, ok = obj[part]; !ok {
			return nil, false
		}
	}
	return cur, true
}

// StringField returns the value under field if it is a string, or "".
func (e Event) StringField(field string) string {
	v, ok := e.Lookup(field)
	if !ok {
		return ""
	}
	s, _ := v.(string)
	return s
}

func (e Event) EventName() string    { return e.StringField(FieldEventName) }
func (e Event) EventTime() string    { return e.StringField(FieldEventTime) }
func (e Event) SourceIP() string     { return e.StringField(FieldSourceIP) }
func (e Event) IdentityType() string { return e.StringField(FieldIdentityType) }

func asObject(v any) (map[string]any, bool) {
	switch obj := v.(type) {
	case map[string]any:
		return obj, true
	case Event:
		return obj, true
	}
	return nil, false
}

// FormatValue renders a decoded JSON value as the string used for rule comparison.
func FormatValue(v any) string {
	switch val := v.(type) {
	case nil:
		return "null"
	case string:
		return val
	case json.Number:
		return val.String()
	case bool:
		return strconv.FormatBool(val)
	case float64:
		return strconv.FormatFloat(val, 'f', -1, 64)
	case float32:
		return strconv.FormatFloat(float64(val), 'f', -1, 32)
	case int:
		return strconv.Itoa(val)
	case int64:
		return strconv.FormatInt(val, 10)
	default:
		b, err := json.Marshal(val)
		if err != nil {
			return ""
		}
		return string(b)
	}
}

// Classification is the outcome of evaluating one event.
type Classification struct {
	Event   Event
	Risk    RiskLevel
	Reasons []string
}

// Reason returns the first reason, or "" when none was recorded.
func (c Classification) Reason() string {
	if len(c.Reasons) == 0 {
		return ""
	}
	return c.Reasons[0]
}
