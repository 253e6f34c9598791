package category

import (
	"os"
	"path/filepath"
	"reflect"
	"testing"
)

func TestLoadMapAcceptsBothValueForms(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	content := `{
		"old-style.pdf": "strategy, leadership",
		"new-style.pdf": {"categories": "finance, fundraising"},
		"broken.pdf": 42
	}`
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	m, err := LoadMap(path)
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if got := m.Categories("old-style.pdf"); got != "strategy, leadership" {
		t.Errorf("old-style = %q", got)
	}
	if got := m.Categories("new-style.pdf"); got != "finance, fundraising" {
		t.Errorf("new-style = %q", got)
	}
	if m.Len() != 2 {
		t.Errorf("Len = %d, want 2 (unrecognized entry dropped)", m.Len())
	}
}

func TestLoadMapMissingFile(t *testing.T) {
	if _, err := LoadMap(filepath.Join(t.TempDir(), "absent.json")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestVocabulary(t *testing.T) {
	m := NewMap(map[string]string{
		"a.pdf": "Strategy, Leadership",
		"b.pdf": "strategy, finance",
		"c.pdf": " , ",
	})
	got := m.Vocabulary(0)
	want := []string{"finance", "leadership", "strategy"}
	if !reflect.DeepEqual(got, want) {
		t.Errorf("Vocabulary = %v, want %v", got, want)
	}
}

func TestVocabularyCap(t *testing.T) {
	m := NewMap(map[string]string{
		"a.pdf": "alpha, bravo, charlie, delta, echo",
	})
	if got := m.Vocabulary(3); len(got) != 3 {
		t.Errorf("len = %d, want 3", len(got))
	}
}

func TestAllowedDocuments(t *testing.T) {
	m := NewMap(map[string]string{
		"strategy.pdf": "Business Strategy, Competitive Moats",
		"hiring.pdf":   "Hiring, Team Building",
		"tax.pdf":      "Accounting",
	})

	tests := []struct {
		name      string
		shortlist []string
		want      []string
	}{
		{"substring match", []string{"strategy"}, []string{"strategy.pdf"}},
		{"case insensitive", []string{"HIRING"}, []string{"hiring.pdf"}},
		{"multiple labels", []string{"moats", "team building"}, []string{"hiring.pdf", "strategy.pdf"}},
		{"no matches", []string{"astrophysics"}, nil},
		{"empty shortlist", nil, nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := m.AllowedDocuments(tt.shortlist)
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("AllowedDocuments(%v) = %v, want %v", tt.shortlist, got, tt.want)
			}
		})
	}
}

func TestSaveRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "map.json")
	m := NewMap(map[string]string{"a.pdf": "strategy"})
	m.Set("b.pdf", "finance")
	if err := m.Save(path); err != nil {
		t.Fatalf("Save: %v", err)
	}

	loaded, err := LoadMap(path)
	if err != nil {
		t.Fatalf("LoadMap: %v", err)
	}
	if loaded.Categories("a.pdf") != "strategy" || loaded.Categories("b.pdf") != "finance" {
		t.Errorf("round trip lost entries: %v", loaded.categories)
	}
}

func TestUpdateFromMarkdown(t *testing.T) {
	m := NewMap(map[string]string{
		"zero-to-one.pdf":           "old tags",
		"the_hard_thing_about.epub": "old tags",
		"unrelated.pdf":             "untouched",
	})

	markdown := `# Library descriptions

**1. zero-to-one.pdf**
**Title:** Zero to One
**Summary:** Startups, monopoly theory, vertical progress.

**2. Some Book Without A File**
**Title:** Hard Thing About Hard Things
**Summary:** Management in wartime, layoffs, founder psychology.
`
	updated := m.UpdateFromMarkdown(markdown)
	if updated != 2 {
		t.Fatalf("updated = %d, want 2", updated)
	}
	if got := m.Categories("zero-to-one.pdf"); got != "Startups, monopoly theory, vertical progress." {
		t.Errorf("exact filename match failed: %q", got)
	}
	if got := m.Categories("the_hard_thing_about.epub"); got != "Management in wartime, layoffs, founder psychology." {
		t.Errorf("title-word match failed: %q", got)
	}
	if got := m.Categories("unrelated.pdf"); got != "untouched" {
		t.Errorf("unrelated entry modified: %q", got)
	}
}

func TestUpdateFromMarkdownNoSummaryNoUpdate(t *testing.T) {
	m := NewMap(map[string]string{"a.pdf": "keep"})
	markdown := "**1. a.pdf**\n**Title:** A Book\n"
	if updated := m.UpdateFromMarkdown(markdown); updated != 0 {
		t.Errorf("updated = %d, want 0", updated)
	}
	if m.Categories("a.pdf") != "keep" {
		t.Error("entry without summary was overwritten")
	}
}
