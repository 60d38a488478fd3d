package label

import "strings"

// CategoryConsumer is the site category that does not require prefer keywords.
const CategoryConsumer = "consumer"

// SiteFilter gates crawled text before and after labeling.
type SiteFilter struct {
	table   *Table
	exclude []string
	prefer  []string
}

// NewSiteFilter builds a filter over table. Keywords are matched case-insensitively.
func NewSiteFilter(table *Table, exclude, prefer []string) *SiteFilter {
	return &SiteFilter{
		table:   table,
		exclude: lowerAll(exclude),
		prefer:  lowerAll(prefer),
	}
}

// PageExcluded reports whether a whole page should be skipped.
func (f *SiteFilter) PageExcluded(text string) bool {
	return containsAny(strings.ToLower(text), f.exclude)
}

// Accept labels sentence for a site of the given category. Sentences with an
// exclude keyword or without a label are rejected; sites that are not
// consumer-facing additionally need a prefer keyword.
func (f *SiteFilter) Accept(sentence, category string) (string, bool) {
	lower := strings.ToLower(sentence)
	if containsAny(lower, f.exclude) {
		return "", false
	}
	name, ok := f.table.labelLower(lower)
	if !ok {
		return "", false
	}
	if category != CategoryConsumer && !containsAny(lower, f.prefer) {
		return "", false
	}
	return name, true
}

func containsAny(lower string, keywords []string) bool {
	for _, kw := range keywords {
		if strings.Contains(lower, kw) {
			return true
		}
	}
	return false
}

func lowerAll(in []string) []string {
	out := make([]string, 0, len(in))
	for _, s := range in {
		s = strings.ToLower(strings.TrimSpace(s))
		if s != "" {
			out = append(out, s)
		}
	}
	return out
}
