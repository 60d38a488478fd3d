// Package manifest loads the list of seed sites to crawl.
//
// Two JSON shapes are accepted: a bare array of site entries, or an object
// with a "global" block and a "sites" array. Files ending in .yaml or .yml
// are read as YAML with the same fields.
package manifest

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/JakeFAU/fincorpus/internal/crawler"
	"github.com/JakeFAU/fincorpus/internal/label"
)

// ErrNoSites is returned when a manifest lists no usable entries.
var ErrNoSites = errors.New("manifest lists no sites")

// Global holds keyword gates and defaults shared by every site.
type Global struct {
	ExcludeIfContains []string `json:"exclude_if_contains" yaml:"exclude_if_contains"`
	PreferKeywords    []string `json:"prefer_keywords" yaml:"prefer_keywords"`
	PolitenessSeconds *float64 `json:"politeness_seconds" yaml:"politeness_seconds"`
}

// Site is one manifest entry as written in the file.
type Site struct {
	URL               string   `json:"url" yaml:"url"`
	Type              string   `json:"type" yaml:"type"`
	ArticleSelector   string   `json:"article_selector" yaml:"article_selector"`
	Limit             int      `json:"limit" yaml:"limit"`
	PolitenessSeconds *float64 `json:"politeness_seconds" yaml:"politeness_seconds"`
	MaxLines          int      `json:"max_lines" yaml:"max_lines"`
}

// Manifest is a parsed manifest file.
type Manifest struct {
	Global Global `json:"global" yaml:"global"`
	Sites  []Site `json:"sites" yaml:"sites"`
}

// Entry is a site with every default resolved.
type Entry struct {
	Seed     crawler.Seed
	Category string
	// MaxLines caps lines written for the site across runs; zero means no cap.
	MaxLines int
}

// Defaults fill fields a manifest leaves unset.
type Defaults struct {
	Limit      int
	Politeness time.Duration
}

// Load reads and parses the manifest at path.
func Load(path string) (*Manifest, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return parseYAML(data)
	default:
		return Parse(data)
	}
}

// Parse decodes a JSON manifest in either shape.
func Parse(data []byte) (*Manifest, error) {
	trimmed := bytes.TrimSpace(data)
	if len(trimmed) == 0 {
		return nil, ErrNoSites
	}
	var m Manifest
	if trimmed[0] == '[' {
		if err := json.Unmarshal(trimmed, &m.Sites); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		return &m, nil
	}
	if err := json.Unmarshal(trimmed, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

func parseYAML(data []byte) (*Manifest, error) {
	var node yaml.Node
	if err := yaml.Unmarshal(data, &node); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	var m Manifest
	if len(node.Content) > 0 && node.Content[0].Kind == yaml.SequenceNode {
		if err := node.Content[0].Decode(&m.Sites); err != nil {
			return nil, fmt.Errorf("decode manifest: %w", err)
		}
		return &m, nil
	}
	if err := node.Decode(&m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	return &m, nil
}

// Entries resolves every site with a URL, in file order.
func (m *Manifest) Entries(d Defaults) ([]Entry, error) {
	politeness := d.Politeness
	if m.Global.PolitenessSeconds != nil {
		politeness = seconds(*m.Global.PolitenessSeconds)
	}
	var out []Entry
	for _, s := range m.Sites {
		u := strings.TrimSpace(s.URL)
		if u == "" {
			continue
		}
		category := strings.TrimSpace(s.Type)
		if category == "" {
			category = label.CategoryConsumer
		}
		limit := s.Limit
		if limit <= 0 {
			limit = d.Limit
		}
		delay := politeness
		if s.PolitenessSeconds != nil {
			delay = seconds(*s.PolitenessSeconds)
		}
		out = append(out, Entry{
			Seed: crawler.Seed{
				URL:          u,
				Limit:        limit,
				Politeness:   delay,
				LinkSelector: strings.TrimSpace(s.ArticleSelector),
			},
			Category: category,
			MaxLines: s.MaxLines,
		})
	}
	if len(out) == 0 {
		return nil, ErrNoSites
	}
	return out, nil
}

// Filter builds the keyword gate for this manifest over table.
func (m *Manifest) Filter(table *label.Table) *label.SiteFilter {
	return label.NewSiteFilter(table, m.Global.ExcludeIfContains, m.Global.PreferKeywords)
}

func seconds(v float64) time.Duration {
	if v <= 0 {
		return 0
	}
	return time.Duration(v * float64(time.Second))
}
