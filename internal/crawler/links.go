package crawler

import (
	"bytes"
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// DiscoverLinks returns absolute http(s) links found in body, in document
// order. With a selector, each matched element contributes its own href or,
// for containers, the href of its first descendant anchor.
func DiscoverLinks(body []byte, base *url.URL, selector string) ([]string, error) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("parse html: %w", err)
	}

	var hrefs []string
	if selector != "" {
		doc.Find(selector).Each(func(_ int, s *goquery.Selection) {
			href, ok := s.Attr("href")
			if !ok || strings.TrimSpace(href) == "" {
				href, ok = s.Find("a[href]").First().Attr("href")
			}
			if ok {
				hrefs = append(hrefs, href)
			}
		})
	} else {
		doc.Find("a[href]").Each(func(_ int, s *goquery.Selection) {
			href, _ := s.Attr("href")
			hrefs = append(hrefs, href)
		})
	}

	links := make([]string, 0, len(hrefs))
	for _, href := range hrefs {
		if abs, ok := resolveLink(base, href); ok {
			links = append(links, abs)
		}
	}
	return links, nil
}

func resolveLink(base *url.URL, href string) (string, bool) {
	href = strings.TrimSpace(href)
	if href == "" {
		return "", false
	}
	ref, err := url.Parse(href)
	if err != nil {
		return "", false
	}
	abs := base.ResolveReference(ref)
	if abs.Scheme != "http" && abs.Scheme != "https" {
		// mailto:, tel:, javascript: and friends.
		return "", false
	}
	return abs.String(), true
}
