package gemini

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
)

func newTestClient(handler http.HandlerFunc) (*Client, *httptest.Server) {
	srv := httptest.NewServer(handler)
	c := NewClient(srv.URL, "test-key", "embed-model", "gen-model", WithHTTPClient(srv.Client()))
	return c, srv
}

func TestEmbed(t *testing.T) {
	var gotPath, gotKey string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotKey = r.Header.Get("x-goog-api-key")
		json.NewEncoder(w).Encode(map[string]interface{}{
			"embedding": map[string]interface{}{"values": []float64{0.1, 0.2, 0.3}},
		})
	})
	defer srv.Close()

	vec, err := c.Embed(context.Background(), "some text")
	if err != nil {
		t.Fatalf("Embed: %v", err)
	}
	if len(vec) != 3 || vec[0] != 0.1 {
		t.Errorf("vec = %v", vec)
	}
	if gotPath != "/models/embed-model:embedContent" {
		t.Errorf("path = %q", gotPath)
	}
	if gotKey != "test-key" {
		t.Errorf("api key header = %q", gotKey)
	}
}

func TestEmbedErrorClassification(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		rateLimited bool
		transient   bool
	}{
		{"http 429", http.StatusTooManyRequests, `{"error":"slow down"}`, true, false},
		{"quota in body", http.StatusBadRequest, `{"error":{"status":"RESOURCE_EXHAUSTED"}}`, true, false},
		{"server error", http.StatusInternalServerError, "boom", false, true},
		{"bad request", http.StatusBadRequest, `{"error":"bad"}`, false, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				w.WriteHeader(tt.status)
				w.Write([]byte(tt.body))
			})
			defer srv.Close()

			_, err := c.Embed(context.Background(), "text")
			if err == nil {
				t.Fatal("expected error")
			}
			if got := IsRateLimited(err); got != tt.rateLimited {
				t.Errorf("IsRateLimited = %v, want %v", got, tt.rateLimited)
			}
			if got := IsTransient(err); got != tt.transient {
				t.Errorf("IsTransient = %v, want %v", got, tt.transient)
			}
		})
	}
}

func TestEmbedMalformedResponseIsTransient(t *testing.T) {
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte("not json at all"))
	})
	defer srv.Close()

	_, err := c.Embed(context.Background(), "text")
	if !IsTransient(err) {
		t.Errorf("malformed 200 body should classify transient, got %v", err)
	}
}

func TestGenerate(t *testing.T) {
	var gotBody generateRequest
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		if !strings.HasSuffix(r.URL.Path, "/models/gen-model:generateContent") {
			t.Errorf("path = %q", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{
					"content":      map[string]interface{}{"parts": []map[string]string{{"text": "hello "}, {"text": "world"}}},
					"finishReason": "STOP",
				},
			},
		})
	})
	defer srv.Close()

	res, err := c.Generate(context.Background(), "be brief", []Part{TextPart("question")})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}
	if res.Text != "hello world" {
		t.Errorf("Text = %q", res.Text)
	}
	if gotBody.SystemInstruction == nil || gotBody.SystemInstruction.Parts[0].Text != "be brief" {
		t.Errorf("system instruction not sent: %+v", gotBody.SystemInstruction)
	}
}

func TestGenerateSafetyBlocked(t *testing.T) {
	tests := []struct {
		name string
		body map[string]interface{}
	}{
		{
			"prompt feedback block",
			map[string]interface{}{
				"promptFeedback": map[string]string{"blockReason": "SAFETY"},
			},
		},
		{
			"candidate finish reason",
			map[string]interface{}{
				"candidates": []map[string]interface{}{{"finishReason": "SAFETY"}},
			},
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
				json.NewEncoder(w).Encode(tt.body)
			})
			defer srv.Close()

			res, err := c.Generate(context.Background(), "", []Part{TextPart("q")})
			if err != nil {
				t.Fatalf("Generate: %v", err)
			}
			if !res.SafetyBlocked {
				t.Error("SafetyBlocked = false, want true")
			}
		})
	}
}

func TestGenerateWithBlobEncodesInlineData(t *testing.T) {
	var raw map[string]interface{}
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		json.NewDecoder(r.Body).Decode(&raw)
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": "ok"}}}},
			},
		})
	})
	defer srv.Close()

	_, err := c.Generate(context.Background(), "", []Part{
		TextPart("describe this"),
		BlobPart("application/pdf", []byte("pdf bytes")),
	})
	if err != nil {
		t.Fatalf("Generate: %v", err)
	}

	contents := raw["contents"].([]interface{})
	parts := contents[0].(map[string]interface{})["parts"].([]interface{})
	if len(parts) != 2 {
		t.Fatalf("parts = %d, want 2", len(parts))
	}
	inline := parts[1].(map[string]interface{})["inlineData"].(map[string]interface{})
	if inline["mimeType"] != "application/pdf" {
		t.Errorf("mimeType = %v", inline["mimeType"])
	}
	if inline["data"] == "" {
		t.Error("blob data missing")
	}
}

func TestGenerateWithUsesExplicitModel(t *testing.T) {
	var gotPath string
	c, srv := newTestClient(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		json.NewEncoder(w).Encode(map[string]interface{}{
			"candidates": []map[string]interface{}{
				{"content": map[string]interface{}{"parts": []map[string]string{{"text": "[]"}}}},
			},
		})
	})
	defer srv.Close()

	if _, err := c.GenerateWith(context.Background(), "cheap-model", "", []Part{TextPart("q")}); err != nil {
		t.Fatalf("GenerateWith: %v", err)
	}
	if gotPath != "/models/cheap-model:generateContent" {
		t.Errorf("path = %q", gotPath)
	}
}
