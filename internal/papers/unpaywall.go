package papers

import (
	"context"
	"errors"
	"net/url"
	"strings"
)

// DefaultUnpaywallURL is the public Unpaywall endpoint.
const DefaultUnpaywallURL = "https://api.unpaywall.org"

// Location is one open-access copy of a work.
type Location struct {
	URL               string `json:"url"`
	URLForPDF         string `json:"url_for_pdf"`
	URLForLandingPage string `json:"url_for_landing_page"`
}

// Record is the Unpaywall view of a DOI.
type Record struct {
	DOI         string     `json:"doi"`
	IsOA        bool       `json:"is_oa"`
	OALocations []Location `json:"oa_locations"`
}

// BestLocation picks the download target: the first PDF, else the first
// landing page. Locations without a url are ignored. isPDF reports which
// kind was chosen; an empty target means nothing is downloadable.
func (r *Record) BestLocation() (target string, isPDF bool) {
	if r == nil || !r.IsOA {
		return "", false
	}
	landing := ""
	for _, loc := range r.OALocations {
		if loc.URL == "" {
			continue
		}
		if loc.URLForPDF != "" {
			return loc.URLForPDF, true
		}
		if landing == "" && loc.URLForLandingPage != "" {
			landing = loc.URLForLandingPage
		}
	}
	return landing, false
}

// Unpaywall resolves DOIs to open-access locations.
type Unpaywall struct {
	cfg ClientConfig
}

// NewUnpaywall builds an Unpaywall client. Email is required by the API.
func NewUnpaywall(cfg ClientConfig) *Unpaywall {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultUnpaywallURL
	}
	cfg.HTTPClient = cfg.httpClient()
	return &Unpaywall{cfg: cfg}
}

// Lookup fetches the record for doi. A non-200 answer means "unknown" and
// yields a nil record without error.
func (u *Unpaywall) Lookup(ctx context.Context, doi string) (*Record, error) {
	endpoint := strings.TrimRight(u.cfg.BaseURL, "/") + "/v2/" + escapeDOI(doi) +
		"?" + url.Values{"email": []string{u.cfg.Email}}.Encode()

	var rec Record
	status, err := getJSON(ctx, u.cfg, u.cfg.HTTPClient, endpoint, &rec)
	if err != nil {
		if status != 0 && errors.Is(err, ErrStatus) {
			return nil, nil
		}
		return nil, err
	}
	return &rec, nil
}

// escapeDOI escapes each path segment of doi; DOI suffixes may contain
// '?', '#' and '%'.
func escapeDOI(doi string) string {
	parts := strings.Split(doi, "/")
	for i, p := range parts {
		parts[i] = url.PathEscape(p)
	}
	return strings.Join(parts, "/")
}
