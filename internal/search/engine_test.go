package search

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/analogtech/cofounder/internal/storage"
)

// fixedEmbedder always returns the same query vector.
type fixedEmbedder struct {
	vec []float64
	err error
}

func (e *fixedEmbedder) Embed(_ context.Context, _ string) ([]float64, error) {
	return e.vec, e.err
}

func seedStore(t *testing.T, rows []struct {
	file string
	text string
	vec  []float64
}) storage.Store {
	t.Helper()
	store, err := storage.NewSQLiteStore(filepath.Join(t.TempDir(), "test.sqlite"))
	if err != nil {
		t.Fatalf("NewSQLiteStore: %v", err)
	}
	t.Cleanup(func() { store.Close() })
	for _, r := range rows {
		if err := store.InsertChunk(context.Background(), r.file, r.text, r.vec); err != nil {
			t.Fatalf("InsertChunk: %v", err)
		}
	}
	return store
}

func TestSearchRanksAboveThreshold(t *testing.T) {
	store := seedStore(t, []struct {
		file string
		text string
		vec  []float64
	}{
		{"a.txt", "perfect match", []float64{1, 0}},
		{"b.txt", "good match", []float64{0.8, 0.6}},
		{"c.txt", "unrelated", []float64{0, 1}},
	})
	e := NewEngine(store, &fixedEmbedder{vec: []float64{1, 0}}, 0.45, 5, nil)

	results := e.Search(context.Background(), "query")
	if len(results) != 2 {
		t.Fatalf("got %d results, want 2", len(results))
	}
	if results[0].FileName != "a.txt" || results[1].FileName != "b.txt" {
		t.Errorf("order = [%s %s], want [a.txt b.txt]", results[0].FileName, results[1].FileName)
	}
	if results[0].Score <= results[1].Score {
		t.Errorf("scores not descending: %v then %v", results[0].Score, results[1].Score)
	}
}

func TestSearchThresholdIsStrict(t *testing.T) {
	// An orthogonal chunk scores exactly 0; with a zero threshold the strict
	// comparison must still exclude it.
	store := seedStore(t, []struct {
		file string
		text string
		vec  []float64
	}{
		{"orth.txt", "orthogonal", []float64{0, 1}},
	})
	e := NewEngine(store, &fixedEmbedder{vec: []float64{1, 0}}, 0, 5, nil)

	if results := e.Search(context.Background(), "query"); len(results) != 0 {
		t.Errorf("got %d results, want 0 (score 0 is not above threshold 0)", len(results))
	}
}

func TestSearchCapsAtLimit(t *testing.T) {
	rows := make([]struct {
		file string
		text string
		vec  []float64
	}, 0, 10)
	for i := 0; i < 10; i++ {
		rows = append(rows, struct {
			file string
			text string
			vec  []float64
		}{"doc.txt", "chunk", []float64{1, 0}})
	}
	store := seedStore(t, rows)
	e := NewEngine(store, &fixedEmbedder{vec: []float64{1, 0}}, 0.45, 5, nil)

	if results := e.Search(context.Background(), "query"); len(results) != 5 {
		t.Errorf("got %d results, want 5 (default top-K)", len(results))
	}
	if results := e.Search(context.Background(), "query", WithLimit(8)); len(results) != 8 {
		t.Errorf("got %d results, want 8 with explicit limit", len(results))
	}
}

func TestSearchAllowedDocumentsRestriction(t *testing.T) {
	store := seedStore(t, []struct {
		file string
		text string
		vec  []float64
	}{
		{"allowed.txt", "in scope", []float64{1, 0}},
		{"other.txt", "out of scope", []float64{1, 0}},
	})
	e := NewEngine(store, &fixedEmbedder{vec: []float64{1, 0}}, 0.45, 5, nil)

	results := e.Search(context.Background(), "query", WithAllowedDocuments([]string{"allowed.txt"}))
	if len(results) != 1 || results[0].FileName != "allowed.txt" {
		t.Errorf("results = %v, want only allowed.txt", results)
	}
}

func TestSearchEmbedFailureYieldsEmpty(t *testing.T) {
	store := seedStore(t, []struct {
		file string
		text string
		vec  []float64
	}{
		{"a.txt", "content", []float64{1, 0}},
	})
	e := NewEngine(store, &fixedEmbedder{err: errors.New("model down")}, 0.45, 5, nil)

	if results := e.Search(context.Background(), "query"); results != nil {
		t.Errorf("got %v, want nil on embedding failure", results)
	}
}

func TestSearchMalformedRowDoesNotPoison(t *testing.T) {
	store := seedStore(t, []struct {
		file string
		text string
		vec  []float64
	}{
		{"short.txt", "wrong dimensionality", []float64{1}},
		{"good.txt", "fine", []float64{1, 0}},
	})
	e := NewEngine(store, &fixedEmbedder{vec: []float64{1, 0}}, 0.45, 5, nil)

	results := e.Search(context.Background(), "query")
	if len(results) != 1 || results[0].FileName != "good.txt" {
		t.Errorf("results = %v, want only good.txt", results)
	}
}
