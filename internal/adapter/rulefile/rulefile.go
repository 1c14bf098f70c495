// Package rulefile reads and validates rule documents.
package rulefile

import (
	"bytes"
	_ "embed"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/go-playground/validator/v10"
	"gopkg.in/yaml.v3"

	"github.com/V4T54L/trailwatch/internal/domain"
)

//go:embed default_rules.json
var defaultRules []byte

// Format is the encoding of a rule document.
type Format int

const (
	JSON Format = iota
	YAML
)

// FormatForPath picks YAML for .yaml and .yml files and JSON otherwise.
func FormatForPath(path string) Format {
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return YAML
	default:
		return JSON
	}
}

// ruleDoc mirrors domain.Rule with the risk kept as text so every field can be
// checked before conversion.
type ruleDoc struct {
	Name  string         `json:"name" yaml:"name" validate:"required"`
	Risk  string         `json:"risk" yaml:"risk" validate:"required,oneof=Low Medium High"`
	Match map[string]any `json:"match" yaml:"match" validate:"required"`
}

var validate = validator.New()

// Parse decodes a rule document: a sequence of {name, risk, match} objects.
// Anything else is reported as domain.ErrRuleFormat.
func Parse(data []byte, format Format) ([]domain.Rule, error) {
	var docs []ruleDoc
	switch format {
	case YAML:
		if err := yaml.Unmarshal(data, &docs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRuleFormat, err)
		}
	default:
		dec := json.NewDecoder(bytes.NewReader(data))
		dec.UseNumber()
		if err := dec.Decode(&docs); err != nil {
			return nil, fmt.Errorf("%w: %v", domain.ErrRuleFormat, err)
		}
		if dec.More() {
			return nil, fmt.Errorf("%w: trailing data after rule list", domain.ErrRuleFormat)
		}
	}
	return convert(docs)
}

// ParseJSON is Parse for a JSON value already split out of a request body. A
// missing or null value is rejected.
func ParseJSON(raw json.RawMessage) ([]domain.Rule, error) {
	trimmed := bytes.TrimSpace(raw)
	if len(trimmed) == 0 || trimmed[0] != '[' {
		return nil, fmt.Errorf("%w: rules must be a list", domain.ErrRuleFormat)
	}
	return Parse(trimmed, JSON)
}

// convert validates decoded documents and builds domain rules.
func convert(docs []ruleDoc) ([]domain.Rule, error) {
	rules := make([]domain.Rule, 0, len(docs))
	for i, d := range docs {
		d.Name = strings.TrimSpace(d.Name)
		if err := validate.Struct(d); err != nil {
			var verrs validator.ValidationErrors
			if errors.As(err, &verrs) && len(verrs) > 0 {
				return nil, fmt.Errorf("%w: rule %d: field %s failed %q", domain.ErrRuleFormat, i, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
			}
			return nil, fmt.Errorf("%w: rule %d: %v", domain.ErrRuleFormat, i, err)
		}
		risk, err := domain.ParseRiskLevel(d.Risk)
		if err != nil {
			return nil, fmt.Errorf("rule %d: %w", i, err)
		}
		rules = append(rules, domain.Rule{Name: d.Name, Risk: risk, Match: d.Match})
	}
	return rules, nil
}

// Load reads rules from path. An empty path yields the built-in default set.
func Load(path string) ([]domain.Rule, error) {
	if path == "" {
		return Default()
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read rules from %s: %w", path, err)
	}
	rules, err := Parse(data, FormatForPath(path))
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return rules, nil
}

// Default returns the built-in predefined rules.
func Default() ([]domain.Rule, error) {
	return Parse(defaultRules, JSON)
}
