package config

import (
	_ "embed"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

//go:embed parse_rules.yaml
var embeddedRules []byte

// ParseRules controls how raw cells are coerced into typed values.
type ParseRules struct {
	DateLayouts         []string `yaml:"date_layouts"`
	ThousandsSeparators []string `yaml:"thousands_separators"`
	CurrencyTokens      []string `yaml:"currency_tokens"`
	TrueValues          []string `yaml:"true_values"`
	FalseValues         []string `yaml:"false_values"`
}

// DefaultParseRules returns the embedded rules. The embedded file is part of
// the binary, so a decode failure is a programming error.
func DefaultParseRules() ParseRules {
	rules, err := decodeRules(embeddedRules)
	if err != nil {
		panic(fmt.Sprintf("config: embedded parse rules: %v", err))
	}
	return rules
}

// LoadParseRules reads rules from path, or the embedded defaults when path is empty.
func LoadParseRules(path string) (ParseRules, error) {
	if path == "" {
		return DefaultParseRules(), nil
	}
	data, err := os.ReadFile(path)
	if err != nil {
		return ParseRules{}, fmt.Errorf("LoadParseRules: read %s: %w", path, err)
	}
	rules, err := decodeRules(data)
	if err != nil {
		return ParseRules{}, fmt.Errorf("LoadParseRules: %s: %w", path, err)
	}
	return rules, nil
}

func decodeRules(data []byte) (ParseRules, error) {
	var rules ParseRules
	if err := yaml.Unmarshal(data, &rules); err != nil {
		return ParseRules{}, fmt.Errorf("decode yaml: %w", err)
	}
	if err := rules.Validate(); err != nil {
		return ParseRules{}, err
	}
	for i, v := range rules.TrueValues {
		rules.TrueValues[i] = strings.ToLower(strings.TrimSpace(v))
	}
	for i, v := range rules.FalseValues {
		rules.FalseValues[i] = strings.ToLower(strings.TrimSpace(v))
	}
	return rules, nil
}

// Validate rejects rule sets that could never parse a date or a boolean, and
// true/false lists that overlap.
func (r ParseRules) Validate() error {
	var problems []string
	if len(r.DateLayouts) == 0 {
		problems = append(problems, "date_layouts must not be empty")
	}
	if len(r.TrueValues) == 0 || len(r.FalseValues) == 0 {
		problems = append(problems, "true_values and false_values must not be empty")
	}
	falses := make(map[string]bool, len(r.FalseValues))
	for _, v := range r.FalseValues {
		falses[strings.ToLower(strings.TrimSpace(v))] = true
	}
	for _, v := range r.TrueValues {
		if falses[strings.ToLower(strings.TrimSpace(v))] {
			problems = append(problems, fmt.Sprintf("value %q is both true and false", v))
		}
	}
	if len(problems) > 0 {
		return fmt.Errorf("invalid parse rules: %s", strings.Join(problems, "; "))
	}
	return nil
}
