package checkpoint

import (
	"encoding/json"
	"fmt"
)

// CrawlSchema tags crawl ledgers.
const CrawlSchema = "fincorpus.crawl-state/v1"

// SiteProgress counts lines written for one seed site.
type SiteProgress struct {
	Written int `json:"written"`
}

// CrawlLedger records processed page URLs across all sites of a manifest.
type CrawlLedger struct {
	Schema        string                   `json:"schema"`
	ProcessedURLs []string                 `json:"processed_urls"`
	Sites         map[string]*SiteProgress `json:"sites,omitempty"`

	processed map[string]struct{}
}

// NewCrawlLedger returns an empty ledger.
func NewCrawlLedger() *CrawlLedger {
	return &CrawlLedger{
		Schema:        CrawlSchema,
		ProcessedURLs: []string{},
		Sites:         make(map[string]*SiteProgress),
		processed:     make(map[string]struct{}),
	}
}

// Processed reports whether url was already labeled.
func (l *CrawlLedger) Processed(url string) bool {
	_, ok := l.processed[url]
	return ok
}

// MarkProcessed records url and reports whether it was new.
func (l *CrawlLedger) MarkProcessed(url string) bool {
	if _, ok := l.processed[url]; ok {
		return false
	}
	l.processed[url] = struct{}{}
	l.ProcessedURLs = append(l.ProcessedURLs, url)
	return true
}

// Site returns the progress entry for seed, creating it if needed.
func (l *CrawlLedger) Site(seed string) *SiteProgress {
	p, ok := l.Sites[seed]
	if !ok || p == nil {
		p = &SiteProgress{}
		l.Sites[seed] = p
	}
	return p
}

// UnmarshalJSON rebuilds the membership index; untagged files load as v1.
func (l *CrawlLedger) UnmarshalJSON(data []byte) error {
	type plain CrawlLedger
	var p plain
	if err := json.Unmarshal(data, &p); err != nil {
		return fmt.Errorf("decode crawl ledger: %w", err)
	}
	fresh := NewCrawlLedger()
	if p.Schema != "" {
		fresh.Schema = p.Schema
	}
	for _, u := range p.ProcessedURLs {
		fresh.MarkProcessed(u)
	}
	for seed, sp := range p.Sites {
		if sp != nil {
			fresh.Sites[seed] = sp
		}
	}
	*l = *fresh
	return nil
}
