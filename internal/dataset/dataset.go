// Package dataset reads labeled examples from CSV exports or from the
// application database through ordered schema adapters.
package dataset

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strings"
)

// UnknownLabel tags rows whose label column is empty.
const UnknownLabel = "unknown"

// Example is one labeled text.
type Example struct {
	Label string
	Text  string
}

var (
	labelHeaders = []string{"label", "intent", "Label", "intent_label"}
	textHeaders  = []string{"text", "Text", "message"}
)

// ReadCSV reads a headed CSV. The label comes from the first non-empty of
// label, intent, Label, intent_label; the text from text, Text, message.
// Rows missing either are skipped.
func ReadCSV(r io.Reader) ([]Example, error) {
	reader := csv.NewReader(r)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if errors.Is(err, io.EOF) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read csv header: %w", err)
	}
	columns := make(map[string]int, len(header))
	for i, name := range header {
		name = strings.TrimSpace(strings.TrimPrefix(name, "\ufeff"))
		if _, dup := columns[name]; !dup {
			columns[name] = i
		}
	}

	var out []Example
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			return out, nil
		}
		if err != nil {
			return nil, fmt.Errorf("read csv row: %w", err)
		}
		name := firstField(record, columns, labelHeaders)
		text := firstField(record, columns, textHeaders)
		if name == "" || text == "" {
			continue
		}
		out = append(out, Example{Label: name, Text: text})
	}
}

func firstField(record []string, columns map[string]int, names []string) string {
	for _, n := range names {
		i, ok := columns[n]
		if !ok || i >= len(record) {
			continue
		}
		if v := strings.TrimSpace(record[i]); v != "" {
			return v
		}
	}
	return ""
}
