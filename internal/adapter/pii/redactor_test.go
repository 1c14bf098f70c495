package pii

import (
	"encoding/json"
	"io"
	"log/slog"
	"testing"

	"github.com/V4T54L/trailwatch/internal/domain"
)

func TestRedactor(t *testing.T) {
	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	redactor := NewRedactor([]string{"requestParameters.password", "responseElements.credentials", "secret"}, logger)

	tests := []struct {
		name           string
		input          string
		expected       string
		expectRedacted bool
	}{
		{
			name:           "Redact nested field",
			input:          `{"eventName":"ChangePassword","requestParameters":{"password":"hunter2","userName":"bob"}}`,
			expected:       `{"eventName":"ChangePassword","requestParameters":{"password":"[REDACTED]","userName":"bob"}}`,
			expectRedacted: true,
		},
		{
			name:           "Redact nested object value",
			input:          `{"responseElements":{"credentials":{"accessKeyId":"AKIA","sessionToken":"x"}}}`,
			expected:       `{"responseElements":{"credentials":"[REDACTED]"}}`,
			expectRedacted: true,
		},
		{
			name:           "Redact multiple fields",
			input:          `{"secret":"s","requestParameters":{"password":"p"}}`,
			expected:       `{"secret":"[REDACTED]","requestParameters":{"password":"[REDACTED]"}}`,
			expectRedacted: true,
		},
		{
			name:           "Literal dotted key",
			input:          `{"requestParameters.password":"p"}`,
			expected:       `{"requestParameters.password":"[REDACTED]"}`,
			expectRedacted: true,
		},
		{
			name:           "Path through non-object",
			input:          `{"requestParameters":"none"}`,
			expected:       `{"requestParameters":"none"}`,
			expectRedacted: false,
		},
		{
			name:           "No fields to redact",
			input:          `{"eventName":"ListBuckets","requestParameters":{"bucket":"b"}}`,
			expected:       `{"eventName":"ListBuckets","requestParameters":{"bucket":"b"}}`,
			expectRedacted: false,
		},
		{
			name:           "Empty event",
			input:          `{}`,
			expected:       `{}`,
			expectRedacted: false,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var event domain.Event
			if err := json.Unmarshal([]byte(tt.input), &event); err != nil {
				t.Fatalf("failed to unmarshal input: %v", err)
			}
			before, _ := json.Marshal(event)

			got, redacted := redactor.Redact(event)

			if redacted != tt.expectRedacted {
				t.Errorf("redacted got = %v, want %v", redacted, tt.expectRedacted)
			}

			gotJSON, _ := json.Marshal(got)
			var expectedMap, actualMap map[string]any
			if err := json.Unmarshal([]byte(tt.expected), &expectedMap); err != nil {
				t.Fatalf("failed to unmarshal expected: %v", err)
			}
			_ = json.Unmarshal(gotJSON, &actualMap)
			wantJSON, _ := json.Marshal(expectedMap)
			normalized, _ := json.Marshal(actualMap)
			if string(normalized) != string(wantJSON) {
				t.Errorf("event mismatch: got %s, want %s", normalized, wantJSON)
			}

			after, _ := json.Marshal(event)
			if string(before) != string(after) {
				t.Errorf("input event was modified: before %s, after %s", before, after)
			}
		})
	}
}

func TestRedactor_NoFields(t *testing.T) {
	event := domain.Event{"password": "x"}
	got, redacted := NewRedactor(nil, nil).Redact(event)
	if redacted || got["password"] != "x" {
		t.Errorf("expected event untouched, got %v", got)
	}
}
