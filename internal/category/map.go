// Package category implements the optional two-stage search narrowing: a
// fast classification call shortlists category labels for a query, and the
// library map turns the shortlist into a set of allowed documents. Every
// failure path degrades to an unrestricted search; narrowing is an
// optimization, never a gate.
package category

import (
	"encoding/json"
	"fmt"
	"os"
	"sort"
	"strings"
)

// Map associates each document file name with its comma-separated category
// string. It is curated by hand (or by the update-map tooling) and lives
// outside the knowledge store.
type Map struct {
	categories map[string]string
}

// mapEntry is one value in the map file: either a bare string of categories
// or an object carrying a "categories" field.
type mapEntry struct {
	Categories string `json:"categories"`
}

// LoadMap reads a JSON map file. Values may be bare strings or objects with
// a "categories" field; both forms are accepted because older map files used
// the bare form.
func LoadMap(path string) (*Map, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read category map: %w", err)
	}
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("parse category map: %w", err)
	}

	m := &Map{categories: make(map[string]string, len(raw))}
	for file, val := range raw {
		var s string
		if err := json.Unmarshal(val, &s); err == nil {
			m.categories[file] = s
			continue
		}
		var e mapEntry
		if err := json.Unmarshal(val, &e); err == nil && e.Categories != "" {
			m.categories[file] = e.Categories
			continue
		}
		// Unrecognized entries are dropped rather than failing the load.
	}
	return m, nil
}

// NewMap builds a Map from an in-memory file→categories mapping.
func NewMap(categories map[string]string) *Map {
	cp := make(map[string]string, len(categories))
	for k, v := range categories {
		cp[k] = v
	}
	return &Map{categories: cp}
}

// Len returns the number of mapped documents.
func (m *Map) Len() int { return len(m.categories) }

// Categories returns the raw category string for a document.
func (m *Map) Categories(file string) string { return m.categories[file] }

// Set records (or replaces) a document's category string.
func (m *Map) Set(file, categories string) { m.categories[file] = categories }

// Save writes the map to path as pretty-printed JSON with bare string
// values, sorted by file name for stable diffs.
func (m *Map) Save(path string) error {
	data, err := json.MarshalIndent(m.categories, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal category map: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("write category map: %w", err)
	}
	return nil
}

// Vocabulary returns the distinct category labels across all documents,
// sorted, capped at max entries. The cap keeps the classification prompt
// bounded as the library grows.
func (m *Map) Vocabulary(max int) []string {
	seen := make(map[string]bool)
	for _, cats := range m.categories {
		for _, c := range strings.Split(cats, ",") {
			c = strings.TrimSpace(c)
			if c != "" {
				seen[strings.ToLower(c)] = true
			}
		}
	}
	vocab := make([]string, 0, len(seen))
	for c := range seen {
		vocab = append(vocab, c)
	}
	sort.Strings(vocab)
	if max > 0 && len(vocab) > max {
		vocab = vocab[:max]
	}
	return vocab
}

// AllowedDocuments returns the documents whose category string
// case-insensitively contains any shortlisted label. The match is a
// deliberate substring test: the vocabulary is informally curated free text,
// so exact tag equality would silently drop near-misses. Empty shortlist
// means no restriction (nil).
func (m *Map) AllowedDocuments(shortlist []string) []string {
	if len(shortlist) == 0 {
		return nil
	}
	var allowed []string
	for file, cats := range m.categories {
		lc := strings.ToLower(cats)
		for _, s := range shortlist {
			s = strings.ToLower(strings.TrimSpace(s))
			if s == "" {
				continue
			}
			if strings.Contains(lc, s) || strings.Contains(s, lc) {
				allowed = append(allowed, file)
				break
			}
		}
	}
	sort.Strings(allowed)
	return allowed
}
