// Package extract turns fetched HTML and PDF bytes into flat,
// whitespace-collapsed text.
//
// Every entry point reports failure as ("", false): a malformed document
// never stops an acquisition run.
package extract

import (
	"bytes"
	"errors"
	"strings"

	"go.uber.org/zap"

	"github.com/JakeFAU/fincorpus/internal/logging"
)

// HTML strategies.
const (
	StrategyLandmark    = "landmark"
	StrategyReadability = "readability"
)

var (
	// ErrNotPDF is returned when bytes lack the PDF magic header.
	ErrNotPDF = errors.New("not a pdf document")
	// ErrNoText is returned when a document parses but yields no text.
	ErrNoText = errors.New("document contains no extractable text")
)

// Config tunes the extractor.
type Config struct {
	// ScratchDir receives temporary PDF files. Empty means os.TempDir.
	ScratchDir string
	// HTMLStrategy selects StrategyLandmark (default) or StrategyReadability.
	HTMLStrategy string
	// MaxPDFPages bounds PDF extraction; zero means all pages.
	MaxPDFPages int
}

// Extractor converts documents to text. It holds configuration only.
type Extractor struct {
	cfg    Config
	logger *zap.Logger
}

// New builds an Extractor.
func New(cfg Config, logger *zap.Logger) *Extractor {
	if cfg.HTMLStrategy == "" {
		cfg.HTMLStrategy = StrategyLandmark
	}
	return &Extractor{cfg: cfg, logger: logging.OrNop(logger).Named("extract")}
}

// Document dispatches on content type or magic bytes.
func (e *Extractor) Document(body []byte, contentType, sourceURL string) (string, bool) {
	if isPDF(body, contentType) {
		return e.PDF(body)
	}
	return e.HTML(body, contentType, sourceURL)
}

// Normalize collapses whitespace runs to single spaces and trims.
func Normalize(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

func isPDF(body []byte, contentType string) bool {
	if strings.Contains(strings.ToLower(contentType), "application/pdf") {
		return true
	}
	return bytes.HasPrefix(body, []byte("%PDF"))
}
