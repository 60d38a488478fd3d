// Package output appends fastText training lines of the form
// "__label__<label> <text>".
package output

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// LabelPrefix is the fastText label marker.
const LabelPrefix = "__label__"

// ErrEmptyLine is returned when the label or text is blank.
var ErrEmptyLine = errors.New("label and text are required")

var lineBreaks = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

// Writer appends one line per accepted example. Each line is handed to the
// file in a single write so earlier lines are never corrupted.
type Writer struct {
	f     *os.File
	lines int
}

// Open creates parent directories and opens path, appending when resume is
// set and truncating otherwise.
func Open(path string, resume bool) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("create output dir: %w", err)
	}
	flags := os.O_CREATE | os.O_WRONLY
	if resume {
		flags |= os.O_APPEND
	} else {
		flags |= os.O_TRUNC
	}
	f, err := os.OpenFile(path, flags, 0o644) //nolint:gosec // training data is meant to be shared
	if err != nil {
		return nil, fmt.Errorf("open output %s: %w", path, err)
	}
	return &Writer{f: f}, nil
}

// Format renders one training line without the trailing newline.
func Format(label, text string) string {
	return LabelPrefix + label + " " + strings.TrimSpace(lineBreaks.Replace(text))
}

// Write appends a line for (label, text).
func (w *Writer) Write(label, text string) error {
	label = strings.TrimSpace(label)
	if label == "" || strings.TrimSpace(text) == "" {
		return ErrEmptyLine
	}
	if _, err := w.f.WriteString(Format(label, text) + "\n"); err != nil {
		return fmt.Errorf("write training line: %w", err)
	}
	w.lines++
	return nil
}

// Lines reports how many lines this Writer has written.
func (w *Writer) Lines() int { return w.lines }

// Close closes the underlying file.
func (w *Writer) Close() error {
	if err := w.f.Close(); err != nil {
		return fmt.Errorf("close output: %w", err)
	}
	return nil
}
