package papers

import (
	"context"
	"net/url"
	"strconv"
	"strings"
)

// DefaultCrossRefURL is the public CrossRef REST endpoint.
const DefaultCrossRefURL = "https://api.crossref.org"

// Work is one CrossRef search hit.
type Work struct {
	DOI      string   `json:"DOI"`
	Abstract string   `json:"abstract"`
	Title    []string `json:"title"`
}

type worksResponse struct {
	Message struct {
		Items []Work `json:"items"`
	} `json:"message"`
}

// CrossRef searches the CrossRef works index.
type CrossRef struct {
	cfg ClientConfig
}

// NewCrossRef builds a CrossRef client.
func NewCrossRef(cfg ClientConfig) *CrossRef {
	if cfg.BaseURL == "" {
		cfg.BaseURL = DefaultCrossRefURL
	}
	cfg.HTTPClient = cfg.httpClient()
	return &CrossRef{cfg: cfg}
}

// Works returns one page of search results in relevance order. Any status
// other than 200 is an error so the caller can retry.
func (c *CrossRef) Works(ctx context.Context, query string, rows, offset int) ([]Work, error) {
	params := url.Values{}
	params.Set("query", query)
	params.Set("rows", strconv.Itoa(rows))
	params.Set("offset", strconv.Itoa(offset))
	if c.cfg.Email != "" {
		params.Set("mailto", c.cfg.Email)
	}
	endpoint := strings.TrimRight(c.cfg.BaseURL, "/") + "/works?" + params.Encode()

	var body worksResponse
	if _, err := getJSON(ctx, c.cfg, c.cfg.HTTPClient, endpoint, &body); err != nil {
		return nil, err
	}
	return body.Message.Items, nil
}
