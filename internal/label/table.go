// Package label assigns weak intent labels to sentences by ordered keyword
// match.
//
// A Table is immutable once built: rules are scanned in declaration order and
// the first rule with a matching keyword wins, so overlapping keywords always
// resolve to the same label.
package label

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// ErrEmptyTable is returned when a table has no usable rules.
var ErrEmptyTable = errors.New("label table has no rules")

// Rule maps one label to the keywords that select it.
type Rule struct {
	Label    string   `yaml:"label" json:"label"`
	Keywords []string `yaml:"keywords" json:"keywords"`
}

// Table is an ordered, versioned keyword table.
type Table struct {
	version string
	rules   []Rule
}

type tableFile struct {
	Version string `yaml:"version"`
	Labels  []Rule `yaml:"labels"`
}

// NewTable validates rules and returns an immutable Table. Keywords are
// lower-cased and blank keywords dropped.
func NewTable(version string, rules []Rule) (*Table, error) {
	seen := make(map[string]struct{}, len(rules))
	out := make([]Rule, 0, len(rules))
	for i, r := range rules {
		name := strings.TrimSpace(r.Label)
		if name == "" {
			return nil, fmt.Errorf("rule %d: label is required", i)
		}
		if strings.ContainsAny(name, " \t\r\n") {
			return nil, fmt.Errorf("rule %d: label %q must not contain whitespace", i, name)
		}
		if _, dup := seen[name]; dup {
			return nil, fmt.Errorf("rule %d: duplicate label %q", i, name)
		}
		seen[name] = struct{}{}

		kws := make([]string, 0, len(r.Keywords))
		for _, kw := range r.Keywords {
			kw = strings.ToLower(strings.TrimSpace(kw))
			if kw != "" {
				kws = append(kws, kw)
			}
		}
		if len(kws) == 0 {
			return nil, fmt.Errorf("rule %d (%s): at least one keyword is required", i, name)
		}
		out = append(out, Rule{Label: name, Keywords: kws})
	}
	if len(out) == 0 {
		return nil, ErrEmptyTable
	}
	return &Table{version: version, rules: out}, nil
}

// LoadTable reads a YAML (or JSON) table file:
//
//	version: "2"
//	labels:
//	  - label: zakat
//	    keywords: [zakat, zakat fitrah]
func LoadTable(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read label table: %w", err)
	}
	var f tableFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse label table %s: %w", path, err)
	}
	t, err := NewTable(f.Version, f.Labels)
	if err != nil {
		return nil, fmt.Errorf("label table %s: %w", path, err)
	}
	return t, nil
}

// Version returns the table's declared version.
func (t *Table) Version() string { return t.version }

// Labels returns the label names in match order.
func (t *Table) Labels() []string {
	names := make([]string, len(t.rules))
	for i, r := range t.rules {
		names[i] = r.Label
	}
	return names
}

// Label returns the first label whose keyword occurs in sentence.
func (t *Table) Label(sentence string) (string, bool) {
	return t.labelLower(strings.ToLower(sentence))
}

func (t *Table) labelLower(lower string) (string, bool) {
	for _, r := range t.rules {
		for _, kw := range r.Keywords {
			if strings.Contains(lower, kw) {
				return r.Label, true
			}
		}
	}
	return "", false
}
