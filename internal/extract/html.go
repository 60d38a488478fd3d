package extract

import (
	"bytes"
	"io"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"
	"go.uber.org/zap"
	"golang.org/x/net/html"
	"golang.org/x/net/html/charset"
)

const strippedTags = "script, style, noscript, iframe"

// HTML extracts text from markup, preferring a main or article landmark.
// The body is decoded to UTF-8 using the declared or sniffed charset.
func (e *Extractor) HTML(body []byte, contentType, sourceURL string) (string, bool) {
	reader, err := charset.NewReader(bytes.NewReader(body), contentType)
	if err != nil {
		e.logger.Debug("charset detection failed; assuming utf-8", zap.String("url", sourceURL), zap.Error(err))
		reader = bytes.NewReader(body)
	}

	if e.cfg.HTMLStrategy == StrategyReadability {
		decoded, err := io.ReadAll(reader)
		if err != nil {
			return "", false
		}
		if text, ok := e.readable(decoded, sourceURL); ok {
			return text, true
		}
		reader = bytes.NewReader(decoded)
	}

	doc, err := goquery.NewDocumentFromReader(reader)
	if err != nil {
		e.logger.Debug("html parse failed", zap.String("url", sourceURL), zap.Error(err))
		return "", false
	}
	text := landmarkText(doc)
	return text, text != ""
}

// Markup strips tags from an HTML or JATS fragment such as a CrossRef abstract.
func Markup(fragment string) string {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(fragment))
	if err != nil {
		return ""
	}
	return Normalize(nodeText(doc.Selection))
}

func (e *Extractor) readable(body []byte, sourceURL string) (string, bool) {
	pageURL, err := url.Parse(sourceURL)
	if err != nil {
		return "", false
	}
	article, err := readability.FromReader(bytes.NewReader(body), pageURL)
	if err != nil {
		e.logger.Debug("readability failed; using landmark strategy", zap.String("url", sourceURL), zap.Error(err))
		return "", false
	}
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(article.Content))
	if err != nil {
		return "", false
	}
	text := landmarkText(doc)
	return text, text != ""
}

func landmarkText(doc *goquery.Document) string {
	doc.Find(strippedTags).Remove()
	sel := doc.Find("main").First()
	if sel.Length() == 0 {
		sel = doc.Find("article").First()
	}
	if sel.Length() == 0 {
		sel = doc.Selection
	}
	return Normalize(nodeText(sel))
}

// nodeText joins every text node under sel with spaces so adjacent block
// elements do not run together.
func nodeText(sel *goquery.Selection) string {
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		switch n.Type {
		case html.TextNode:
			b.WriteString(n.Data)
			b.WriteByte(' ')
		case html.CommentNode:
			return
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	for _, n := range sel.Nodes {
		walk(n)
	}
	return b.String()
}
