package checkpoint

import (
	"encoding/json"
	"fmt"
)

// QuerySchema tags query ledgers.
const QuerySchema = "fincorpus.query-state/v1"

const schemaKey = "_schema"

// QueryProgress is the resumable state of one search query.
type QueryProgress struct {
	SeenDOIs []string `json:"seen_dois"`
	Written  int      `json:"written"`
	Offset   int      `json:"offset"`

	seen map[string]struct{}
}

// Seen reports whether doi was already processed.
func (p *QueryProgress) Seen(doi string) bool {
	p.index()
	_, ok := p.seen[doi]
	return ok
}

// MarkSeen records doi and reports whether it was new.
func (p *QueryProgress) MarkSeen(doi string) bool {
	p.index()
	if _, ok := p.seen[doi]; ok {
		return false
	}
	p.seen[doi] = struct{}{}
	p.SeenDOIs = append(p.SeenDOIs, doi)
	return true
}

func (p *QueryProgress) index() {
	if p.seen != nil {
		return
	}
	p.seen = make(map[string]struct{}, len(p.SeenDOIs))
	deduped := p.SeenDOIs[:0]
	for _, d := range p.SeenDOIs {
		if _, dup := p.seen[d]; dup {
			continue
		}
		p.seen[d] = struct{}{}
		deduped = append(deduped, d)
	}
	p.SeenDOIs = deduped
}

// QueryLedger maps query strings to their progress. On disk every query is a
// top-level key next to a reserved "_schema" key:
//
//	{"_schema": "...", "zakat": {"seen_dois": [...], "written": 5, "offset": 50}}
type QueryLedger struct {
	Schema  string
	Queries map[string]*QueryProgress
}

// NewQueryLedger returns an empty ledger.
func NewQueryLedger() *QueryLedger {
	return &QueryLedger{Schema: QuerySchema, Queries: make(map[string]*QueryProgress)}
}

// Progress returns the entry for query, creating it if needed.
func (l *QueryLedger) Progress(query string) *QueryProgress {
	p, ok := l.Queries[query]
	if !ok || p == nil {
		p = &QueryProgress{}
		l.Queries[query] = p
	}
	p.index()
	return p
}

// MarshalJSON flattens queries to top-level keys.
func (l *QueryLedger) MarshalJSON() ([]byte, error) {
	out := make(map[string]any, len(l.Queries)+1)
	for q, p := range l.Queries {
		if p.SeenDOIs == nil {
			p.SeenDOIs = []string{}
		}
		out[q] = p
	}
	out[schemaKey] = QuerySchema
	data, err := json.Marshal(out)
	if err != nil {
		return nil, fmt.Errorf("marshal query ledger: %w", err)
	}
	return data, nil
}

// UnmarshalJSON accepts tagged files and legacy untagged ones.
func (l *QueryLedger) UnmarshalJSON(data []byte) error {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("decode query ledger: %w", err)
	}
	l.Schema = QuerySchema
	l.Queries = make(map[string]*QueryProgress, len(raw))
	for key, msg := range raw {
		if key == schemaKey {
			if err := json.Unmarshal(msg, &l.Schema); err != nil {
				return fmt.Errorf("decode schema tag: %w", err)
			}
			continue
		}
		var p QueryProgress
		if err := json.Unmarshal(msg, &p); err != nil {
			return fmt.Errorf("decode query %q: %w", key, err)
		}
		p.index()
		l.Queries[key] = &p
	}
	return nil
}
