package category

import (
	"context"
	"encoding/json"
	"strings"

	"go.uber.org/zap"

	"github.com/analogtech/cofounder/internal/gemini"
)

// Classifier is the fast model call used to shortlist categories. Satisfied
// by *gemini.Client.
type Classifier interface {
	GenerateWith(ctx context.Context, model, system string, parts []gemini.Part) (gemini.GenerateResult, error)
}

// Filter narrows a query to a set of allowed documents via category
// classification.
type Filter struct {
	classifier Classifier
	model      string
	m          *Map
	maxVocab   int
	logger     *zap.Logger
}

// NewFilter creates a filter over the given map, classifying with the given
// model name.
func NewFilter(classifier Classifier, model string, m *Map, maxVocab int, logger *zap.Logger) *Filter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Filter{
		classifier: classifier,
		model:      model,
		m:          m,
		maxVocab:   maxVocab,
		logger:     logger,
	}
}

const shortlistSystem = "You are a classifier. Given a user query and a list of category labels, respond with a JSON array of the 5-10 labels most relevant to the query. Respond with ONLY the JSON array, nothing else."

// AllowedDocuments returns the documents the query should be searched
// against, or nil for an unrestricted search. Every failure mode — empty
// vocabulary, classification error, safety block, unparseable response,
// empty shortlist — falls back to nil: narrowing must never block a query.
func (f *Filter) AllowedDocuments(ctx context.Context, query string) []string {
	vocab := f.m.Vocabulary(f.maxVocab)
	if len(vocab) == 0 {
		return nil
	}

	shortlist := f.shortlist(ctx, query, vocab)
	if len(shortlist) == 0 {
		return nil
	}
	allowed := f.m.AllowedDocuments(shortlist)
	if len(allowed) == 0 {
		// A shortlist that matches nothing means the classifier drifted off
		// the vocabulary; searching everything beats searching nothing.
		return nil
	}
	f.logger.Debug("category filter narrowed search",
		zap.Int("shortlist", len(shortlist)),
		zap.Int("allowed_documents", len(allowed)),
	)
	return allowed
}

func (f *Filter) shortlist(ctx context.Context, query string, vocab []string) []string {
	prompt := "Query: " + query + "\n\nCategories:\n" + strings.Join(vocab, ", ")
	res, err := f.classifier.GenerateWith(ctx, f.model, shortlistSystem, []gemini.Part{gemini.TextPart(prompt)})
	if err != nil {
		f.logger.Warn("category classification failed, searching unrestricted", zap.Error(err))
		return nil
	}
	if res.SafetyBlocked {
		return nil
	}
	return parseShortlist(res.Text)
}

// parseShortlist extracts a JSON string array from model output. Models wrap
// arrays in prose or code fences often enough that the parse tolerates
// anything around the outermost brackets.
func parseShortlist(s string) []string {
	start := strings.Index(s, "[")
	end := strings.LastIndex(s, "]")
	if start < 0 || end <= start {
		return nil
	}
	var labels []string
	if err := json.Unmarshal([]byte(s[start:end+1]), &labels); err != nil {
		return nil
	}
	out := labels[:0]
	for _, l := range labels {
		if l = strings.TrimSpace(l); l != "" {
			out = append(out, l)
		}
	}
	return out
}
