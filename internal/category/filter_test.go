package category

import (
	"context"
	"errors"
	"reflect"
	"testing"

	"github.com/analogtech/cofounder/internal/gemini"
)

type fakeClassifier struct {
	result gemini.GenerateResult
	err    error
	called bool
}

func (f *fakeClassifier) GenerateWith(_ context.Context, _, _ string, _ []gemini.Part) (gemini.GenerateResult, error) {
	f.called = true
	return f.result, f.err
}

func testMap() *Map {
	return NewMap(map[string]string{
		"strategy.pdf": "Business Strategy, Competitive Moats",
		"hiring.pdf":   "Hiring, Team Building",
	})
}

func TestFilterNarrowsToMatchingDocuments(t *testing.T) {
	cls := &fakeClassifier{result: gemini.GenerateResult{Text: `["business strategy"]`}}
	f := NewFilter(cls, "fast-model", testMap(), 300, nil)

	got := f.AllowedDocuments(context.Background(), "how do we build a moat?")
	if !reflect.DeepEqual(got, []string{"strategy.pdf"}) {
		t.Errorf("got %v, want [strategy.pdf]", got)
	}
}

func TestFilterFailsOpen(t *testing.T) {
	tests := []struct {
		name string
		cls  *fakeClassifier
	}{
		{"classifier error", &fakeClassifier{err: errors.New("model down")}},
		{"safety blocked", &fakeClassifier{result: gemini.GenerateResult{SafetyBlocked: true}}},
		{"garbage output", &fakeClassifier{result: gemini.GenerateResult{Text: "I cannot classify that."}}},
		{"empty array", &fakeClassifier{result: gemini.GenerateResult{Text: "[]"}}},
		{"off-vocabulary shortlist", &fakeClassifier{result: gemini.GenerateResult{Text: `["astrophysics"]`}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			f := NewFilter(tt.cls, "fast-model", testMap(), 300, nil)
			if got := f.AllowedDocuments(context.Background(), "real question"); got != nil {
				t.Errorf("got %v, want nil (unrestricted)", got)
			}
		})
	}
}

func TestFilterEmptyVocabularySkipsClassification(t *testing.T) {
	cls := &fakeClassifier{result: gemini.GenerateResult{Text: `["anything"]`}}
	f := NewFilter(cls, "fast-model", NewMap(nil), 300, nil)

	if got := f.AllowedDocuments(context.Background(), "question"); got != nil {
		t.Errorf("got %v, want nil", got)
	}
	if cls.called {
		t.Error("classifier called despite empty vocabulary")
	}
}

func TestParseShortlist(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want []string
	}{
		{"bare array", `["a", "b"]`, []string{"a", "b"}},
		{"fenced", "```json\n[\"a\"]\n```", []string{"a"}},
		{"prose wrapped", `Here you go: ["strategy", "finance"] hope that helps`, []string{"strategy", "finance"}},
		{"blank entries dropped", `["a", "  ", ""]`, []string{"a"}},
		{"no array", "nothing here", nil},
		{"invalid json", "[not json]", nil},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := parseShortlist(tt.in)
			if len(got) == 0 && len(tt.want) == 0 {
				return
			}
			if !reflect.DeepEqual(got, tt.want) {
				t.Errorf("parseShortlist(%q) = %v, want %v", tt.in, got, tt.want)
			}
		})
	}
}

func TestIsTrivial(t *testing.T) {
	tests := []struct {
		query string
		want  bool
	}{
		{"hi", true},
		{"Hello!", true},
		{"thanks", true},
		{"привет", true},
		{"ok then", true},
		{"yes", true},
		{"what?", false},
		{"why", false},
		{"how do we price the enterprise tier", false},
		{"should we raise a seed round now or wait", false},
		{"", true},
	}
	for _, tt := range tests {
		t.Run(tt.query, func(t *testing.T) {
			if got := IsTrivial(tt.query); got != tt.want {
				t.Errorf("IsTrivial(%q) = %v, want %v", tt.query, got, tt.want)
			}
		})
	}
}
