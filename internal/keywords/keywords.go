// Package keywords derives a tiny rule model from labeled examples: the most
// frequent tokens per label, written as "label<TAB>kw1,kw2,...".
package keywords

import (
	"bufio"
	"fmt"
	"io"
	"sort"
	"strings"
	"unicode"

	"github.com/JakeFAU/fincorpus/internal/dataset"
)

// DefaultTopK is the number of keywords kept per label.
const DefaultTopK = 12

// Rule is one label and its keywords, most frequent first.
type Rule struct {
	Label    string
	Keywords []string
}

// Model is an ordered set of rules.
type Model struct {
	Rules []Rule
}

// Tokenize lowercases text and splits it on runs of characters that are not
// letters, digits, or underscores.
func Tokenize(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
	})
}

type tally struct {
	order  []string
	counts map[string]int
}

// Build counts tokens per label. Labels keep first-seen order; keywords are
// ranked by frequency with ties broken by first occurrence.
func Build(examples []dataset.Example, topK int) Model {
	if topK <= 0 {
		topK = DefaultTopK
	}
	var labels []string
	tallies := make(map[string]*tally)
	for _, ex := range examples {
		t, ok := tallies[ex.Label]
		if !ok {
			t = &tally{counts: make(map[string]int)}
			tallies[ex.Label] = t
			labels = append(labels, ex.Label)
		}
		for _, tok := range Tokenize(ex.Text) {
			if _, seen := t.counts[tok]; !seen {
				t.order = append(t.order, tok)
			}
			t.counts[tok]++
		}
	}

	model := Model{Rules: make([]Rule, 0, len(labels))}
	for _, name := range labels {
		t := tallies[name]
		ranked := append([]string(nil), t.order...)
		sort.SliceStable(ranked, func(i, j int) bool {
			return t.counts[ranked[i]] > t.counts[ranked[j]]
		})
		if len(ranked) > topK {
			ranked = ranked[:topK]
		}
		model.Rules = append(model.Rules, Rule{Label: name, Keywords: ranked})
	}
	return model
}

// WriteReport writes one "label<TAB>kw1,kw2" line per rule.
func (m Model) WriteReport(w io.Writer) error {
	bw := bufio.NewWriter(w)
	for _, r := range m.Rules {
		if _, err := fmt.Fprintf(bw, "%s\t%s\n", r.Label, strings.Join(r.Keywords, ",")); err != nil {
			return fmt.Errorf("write rule %s: %w", r.Label, err)
		}
	}
	if err := bw.Flush(); err != nil {
		return fmt.Errorf("flush rules: %w", err)
	}
	return nil
}
