package extract

import (
	"bytes"
	"fmt"
	"os"
	"strings"

	"github.com/ledongthuc/pdf"
	"go.uber.org/zap"
)

// PDF writes body to a scratch file and extracts the text of its pages.
func (e *Extractor) PDF(body []byte) (string, bool) {
	text, err := e.pdfText(body)
	if err != nil {
		e.logger.Debug("pdf extraction failed", zap.Int("bytes", len(body)), zap.Error(err))
		return "", false
	}
	return text, true
}

func (e *Extractor) pdfText(body []byte) (text string, err error) {
	if !bytes.HasPrefix(body, []byte("%PDF")) {
		return "", ErrNotPDF
	}
	// The parser panics on some malformed cross-reference tables.
	defer func() {
		if r := recover(); r != nil {
			text, err = "", fmt.Errorf("pdf parser panic: %v", r)
		}
	}()

	scratch, err := os.CreateTemp(e.cfg.ScratchDir, "fincorpus-*.pdf")
	if err != nil {
		return "", fmt.Errorf("create scratch file: %w", err)
	}
	path := scratch.Name()
	defer func() {
		if rmErr := os.Remove(path); rmErr != nil && !os.IsNotExist(rmErr) {
			e.logger.Debug("remove scratch file", zap.String("path", path), zap.Error(rmErr))
		}
	}()
	if _, err := scratch.Write(body); err != nil {
		_ = scratch.Close()
		return "", fmt.Errorf("write scratch file: %w", err)
	}
	if err := scratch.Close(); err != nil {
		return "", fmt.Errorf("close scratch file: %w", err)
	}

	f, doc, err := pdf.Open(path)
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}
	defer f.Close()

	var b strings.Builder
	pages := doc.NumPage()
	if e.cfg.MaxPDFPages > 0 && pages > e.cfg.MaxPDFPages {
		pages = e.cfg.MaxPDFPages
	}
	for i := 1; i <= pages; i++ {
		page := doc.Page(i)
		if page.V.IsNull() {
			continue
		}
		pageText, err := page.GetPlainText(nil)
		if err != nil {
			continue
		}
		b.WriteString(pageText)
		b.WriteByte(' ')
	}

	text = Normalize(b.String())
	if text == "" {
		return "", ErrNoText
	}
	return text, nil
}
