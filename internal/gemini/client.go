// Package gemini is a thin REST client for the Gemini model API, covering
// the two calls the knowledge engine depends on: text embedding and content
// generation (text plus optional binary blobs).
package gemini

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

// Part is one element of a generation prompt: either text or a binary blob
// with its MIME type. Blob data is base64-encoded on the wire.
type Part struct {
	Text string
	Blob *Blob
}

// Blob is a binary prompt attachment (a PDF page batch, an image, ...).
type Blob struct {
	MimeType string
	Data     []byte
}

// TextPart returns a text-only prompt part.
func TextPart(text string) Part { return Part{Text: text} }

// BlobPart returns a binary prompt part.
func BlobPart(mimeType string, data []byte) Part {
	return Part{Blob: &Blob{MimeType: mimeType, Data: data}}
}

// GenerateResult is the outcome of a generation call. SafetyBlocked is set
// when the model refused the prompt; callers treat that as a non-error empty
// result, not a failure.
type GenerateResult struct {
	Text          string
	SafetyBlocked bool
}

// Client calls the Gemini REST API. The zero value is not usable; construct
// with NewClient.
type Client struct {
	baseURL    string
	apiKey     string
	embedModel string
	genModel   string
	httpClient *http.Client
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient overrides the underlying HTTP client (used by tests).
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) { c.httpClient = hc }
}

// NewClient creates a client for the given API base URL, key, and model
// names. Model names are given without the "models/" prefix.
func NewClient(baseURL, apiKey, embedModel, genModel string, opts ...Option) *Client {
	c := &Client{
		baseURL:    strings.TrimSuffix(baseURL, "/"),
		apiKey:     apiKey,
		embedModel: embedModel,
		genModel:   genModel,
		httpClient: &http.Client{Timeout: 120 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type embedRequest struct {
	Model   string  `json:"model"`
	Content content `json:"content"`
}

type embedResponse struct {
	Embedding struct {
		Values []float64 `json:"values"`
	} `json:"embedding"`
}

type content struct {
	Role  string     `json:"role,omitempty"`
	Parts []wirePart `json:"parts"`
}

type wirePart struct {
	Text       string    `json:"text,omitempty"`
	InlineData *wireBlob `json:"inlineData,omitempty"`
}

type wireBlob struct {
	MimeType string `json:"mimeType"`
	Data     []byte `json:"data"`
}

type generateRequest struct {
	SystemInstruction *content  `json:"systemInstruction,omitempty"`
	Contents          []content `json:"contents"`
}

type generateResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback *struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// Embed returns the embedding vector for text.
func (c *Client) Embed(ctx context.Context, text string) ([]float64, error) {
	req := embedRequest{
		Model:   "models/" + c.embedModel,
		Content: content{Parts: []wirePart{{Text: text}}},
	}
	var resp embedResponse
	url := fmt.Sprintf("%s/models/%s:embedContent", c.baseURL, c.embedModel)
	if err := c.post(ctx, url, req, &resp); err != nil {
		return nil, err
	}
	if len(resp.Embedding.Values) == 0 {
		return nil, &APIError{Kind: KindTransient, StatusCode: http.StatusOK, Message: "empty embedding in response"}
	}
	return resp.Embedding.Values, nil
}

// Generate submits prompt parts (with an optional system instruction) and
// returns the generated text. A safety-filter refusal is reported via
// GenerateResult.SafetyBlocked with a nil error.
func (c *Client) Generate(ctx context.Context, system string, parts []Part) (GenerateResult, error) {
	return c.generate(ctx, c.genModel, system, parts)
}

// GenerateWith is Generate against an explicit model name, used for the fast
// classification calls that may run on a cheaper model.
func (c *Client) GenerateWith(ctx context.Context, model, system string, parts []Part) (GenerateResult, error) {
	return c.generate(ctx, model, system, parts)
}

func (c *Client) generate(ctx context.Context, model, system string, parts []Part) (GenerateResult, error) {
	wireParts := make([]wirePart, 0, len(parts))
	for _, p := range parts {
		wp := wirePart{Text: p.Text}
		if p.Blob != nil {
			wp.InlineData = &wireBlob{MimeType: p.Blob.MimeType, Data: p.Blob.Data}
		}
		wireParts = append(wireParts, wp)
	}
	req := generateRequest{
		Contents: []content{{Role: "user", Parts: wireParts}},
	}
	if system != "" {
		req.SystemInstruction = &content{Parts: []wirePart{{Text: system}}}
	}

	var resp generateResponse
	url := fmt.Sprintf("%s/models/%s:generateContent", c.baseURL, model)
	if err := c.post(ctx, url, req, &resp); err != nil {
		return GenerateResult{}, err
	}

	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != "" {
		return GenerateResult{SafetyBlocked: true}, nil
	}
	if len(resp.Candidates) == 0 {
		return GenerateResult{}, &APIError{Kind: KindTransient, StatusCode: http.StatusOK, Message: "no candidates in response"}
	}
	cand := resp.Candidates[0]
	if cand.FinishReason == "SAFETY" {
		return GenerateResult{SafetyBlocked: true}, nil
	}
	var b strings.Builder
	for _, p := range cand.Content.Parts {
		b.WriteString(p.Text)
	}
	return GenerateResult{Text: b.String()}, nil
}

func (c *Client) post(ctx context.Context, url string, reqBody, respBody interface{}) error {
	payload, err := json.Marshal(reqBody)
	if err != nil {
		return fmt.Errorf("marshal request: %w", err)
	}
	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("create request: %w", err)
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("x-goog-api-key", c.apiKey)

	httpResp, err := c.httpClient.Do(httpReq)
	if err != nil {
		return &APIError{Kind: KindTransient, Message: err.Error()}
	}
	defer httpResp.Body.Close()

	body, err := io.ReadAll(httpResp.Body)
	if err != nil {
		return &APIError{Kind: KindTransient, StatusCode: httpResp.StatusCode, Message: err.Error()}
	}
	if httpResp.StatusCode != http.StatusOK {
		msg := string(body)
		return &APIError{
			Kind:       classifyStatus(httpResp.StatusCode, msg),
			StatusCode: httpResp.StatusCode,
			Message:    msg,
		}
	}
	if err := json.Unmarshal(body, respBody); err != nil {
		// A 200 with an undecodable body counts as malformed, i.e. transient.
		return &APIError{Kind: KindTransient, StatusCode: httpResp.StatusCode, Message: "decode response: " + err.Error()}
	}
	return nil
}
