package pii

import (
	"log/slog"
	"maps"
	"strings"

	"github.com/V4T54L/trailwatch/internal/domain"
)

const RedactedPlaceholder = "[REDACTED]"

// Redactor masks sensitive fields of audit events before they leave the service.
// Field names are either top-level keys or dotted paths into nested objects.
type Redactor struct {
	fields [][]string
	logger *slog.Logger
}

// NewRedactor creates a new Redactor instance with a given set of fields to redact.
func NewRedactor(fields []string, logger *slog.Logger) *Redactor {
	paths := make([][]string, 0, len(fields))
	for _, field := range fields {
		field = strings.TrimSpace(field)
		if field == "" {
			continue
		}
		paths = append(paths, strings.Split(field, "."))
	}
	return &Redactor{fields: paths, logger: logger}
}

// Redact returns event with every configured field replaced by the placeholder.
// The input is never modified: objects on a redacted path are copied, the rest
// is shared. The second result reports whether anything was redacted.
func (r *Redactor) Redact(event domain.Event) (domain.Event, bool) {
	if r == nil || len(r.fields) == 0 || len(event) == 0 {
		return event, false
	}

	out := map[string]any(event)
	redacted := false
	for _, path := range r.fields {
		if next, ok := redactPath(out, path, !redacted); ok {
			out = next
			redacted = true
		}
	}
	if redacted && r.logger != nil {
		r.logger.Debug("Redacted sensitive fields", "event_name", event.EventName())
	}
	return domain.Event(out), redacted
}

// redactPath returns a copy of obj with path masked. shared tells whether obj is
// still the caller's map and must be cloned before writing.
func redactPath(obj map[string]any, path []string, shared bool) (map[string]any, bool) {
	// A literal dotted top-level key takes precedence, as in domain.Event.Lookup.
	if joined := strings.Join(path, "."); len(path) > 1 {
		if _, ok := obj[joined]; ok {
			return setKey(obj, joined, RedactedPlaceholder, shared), true
		}
	}

	head := path[0]
	v, ok := obj[head]
	if !ok {
		return obj, false
	}
	if len(path) == 1 {
		return setKey(obj, head, RedactedPlaceholder, shared), true
	}

	child, ok := v.(map[string]any)
	if !ok {
		return obj, false
	}
	// Children below a copied parent are still the caller's maps.
	newChild, ok := redactPath(child, path[1:], true)
	if !ok {
		return obj, false
	}
	return setKey(obj, head, newChild, shared), true
}

func setKey(obj map[string]any, key string, value any, shared bool) map[string]any {
	if shared {
		obj = maps.Clone(obj)
	}
	obj[key] = value
	return obj
}
