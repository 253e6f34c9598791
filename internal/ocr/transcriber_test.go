package ocr

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/analogtech/cofounder/internal/gemini"
)

type fakeGenerator struct {
	calls   int
	results []gemini.GenerateResult
	errs    []error
	prompts []string
}

func (f *fakeGenerator) Generate(_ context.Context, _ string, parts []gemini.Part) (gemini.GenerateResult, error) {
	i := f.calls
	f.calls++
	if len(parts) > 0 {
		f.prompts = append(f.prompts, parts[0].Text)
	}
	var res gemini.GenerateResult
	var err error
	if i < len(f.results) {
		res = f.results[i]
	}
	if i < len(f.errs) {
		err = f.errs[i]
	}
	return res, err
}

func TestTranscribeBatchRetriesThenSucceeds(t *testing.T) {
	gen := &fakeGenerator{
		results: []gemini.GenerateResult{{}, {Text: "recovered text"}},
		errs:    []error{errors.New("boom"), nil},
	}
	tr := NewTranscriber(gen, 10, 3, WithRetryPause(0))

	text, err := tr.transcribeBatch(context.Background(), []byte("pdf"), promptTranscribe, 1, 10)
	if err != nil {
		t.Fatalf("transcribeBatch: %v", err)
	}
	if text != "recovered text" {
		t.Errorf("got %q, want %q", text, "recovered text")
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2", gen.calls)
	}
}

func TestTranscribeBatchExhaustsRetries(t *testing.T) {
	gen := &fakeGenerator{
		errs: []error{errors.New("a"), errors.New("b"), errors.New("c")},
	}
	tr := NewTranscriber(gen, 10, 3, WithRetryPause(0))

	_, err := tr.transcribeBatch(context.Background(), []byte("pdf"), promptTranscribe, 1, 10)
	if err == nil {
		t.Fatal("expected error after exhausted retries")
	}
	if gen.calls != 3 {
		t.Errorf("calls = %d, want 3", gen.calls)
	}
}

func TestTranscribeBatchRetriesEmptyResponse(t *testing.T) {
	gen := &fakeGenerator{
		results: []gemini.GenerateResult{{Text: "  \n"}, {Text: "second try"}},
	}
	tr := NewTranscriber(gen, 10, 3, WithRetryPause(0))

	text, err := tr.transcribeBatch(context.Background(), []byte("pdf"), promptTranscribe, 1, 10)
	if err != nil {
		t.Fatalf("transcribeBatch: %v", err)
	}
	if text != "second try" {
		t.Errorf("got %q, want %q", text, "second try")
	}
	if gen.calls != 2 {
		t.Errorf("calls = %d, want 2 (empty response consumes a retry)", gen.calls)
	}
}

func TestTranscribeSkipsExhaustedBatch(t *testing.T) {
	// First batch fails all three attempts; the second batch must still be
	// sent and its text kept.
	gen := &fakeGenerator{
		results: []gemini.GenerateResult{{}, {}, {}, {Text: "page two text"}},
		errs:    []error{errors.New("a"), errors.New("b"), errors.New("c"), nil},
	}
	tr := NewTranscriber(gen, 1, 3, WithRetryPause(0))
	tr.countPages = func([]byte) (int, error) { return 2, nil }
	tr.splitPages = func(_ []byte, start, _ int) ([]byte, error) { return []byte{byte(start)}, nil }

	text, err := tr.Transcribe(context.Background(), []byte("pdf"), Options{})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "page two text" {
		t.Errorf("got %q, want %q", text, "page two text")
	}
	if gen.calls != 4 {
		t.Errorf("calls = %d, want 4 (3 for the bad batch, 1 for the good one)", gen.calls)
	}
}

func TestTranscribeBatchSafetyBlockIsEmptyNotError(t *testing.T) {
	gen := &fakeGenerator{
		results: []gemini.GenerateResult{{SafetyBlocked: true}},
	}
	tr := NewTranscriber(gen, 10, 3, WithRetryPause(0))

	text, err := tr.transcribeBatch(context.Background(), []byte("pdf"), promptTranscribe, 1, 10)
	if err != nil {
		t.Fatalf("safety block should not be an error: %v", err)
	}
	if text != "" {
		t.Errorf("got %q, want empty", text)
	}
	if gen.calls != 1 {
		t.Errorf("calls = %d, want 1 (no retry on safety block)", gen.calls)
	}
}

func TestTranscribePromptSelection(t *testing.T) {
	tests := []struct {
		name string
		opts Options
		want string
	}{
		{"verbatim", Options{}, "Extract all text"},
		{"translate", Options{Translate: true, TargetLang: "Russian"}, "translate it to Russian"},
		{"translate default lang", Options{Translate: true}, "translate it to English"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			prompt := promptFor(tt.opts)
			if !strings.Contains(prompt, tt.want) {
				t.Errorf("prompt %q does not contain %q", prompt, tt.want)
			}
		})
	}
}
