// Package extract turns scanned report pages into per-page JSON documents
// with a vision model.
package extract

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"google.golang.org/genai"
)

// DefaultModelName is the default Gemini model used for page extraction.
const DefaultModelName = "gemini-2.5-flash"

// ErrEmptyResponse is returned when the model produced no text.
var ErrEmptyResponse = errors.New("empty response from model")

// Extractor produces the JSON document for one page image.
type Extractor interface {
	ExtractPage(ctx context.Context, image []byte, mimeType string) ([]byte, error)
}

// GeminiExtractor is the Extractor backed by the Gemini API.
type GeminiExtractor struct {
	client *genai.Client
	model  string
	prompt string
}

// NewGeminiExtractor creates a Gemini client. An empty apiKey falls back to the
// library's environment handling (GOOGLE_API_KEY, or Vertex AI settings).
func NewGeminiExtractor(ctx context.Context, apiKey, model string) (*GeminiExtractor, error) {
	cfg := &genai.ClientConfig{
		HTTPOptions: genai.HTTPOptions{APIVersion: "v1"},
	}
	if apiKey != "" {
		cfg.APIKey = apiKey
		cfg.Backend = genai.BackendGeminiAPI
	}
	client, err := genai.NewClient(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("NewGeminiExtractor: create genai client: %w", err)
	}
	if model == "" {
		model = DefaultModelName
	}
	return &GeminiExtractor{client: client, model: model, prompt: PagePrompt()}, nil
}

func (g *GeminiExtractor) ExtractPage(ctx context.Context, image []byte, mimeType string) ([]byte, error) {
	contents := []*genai.Content{
		{
			Role: "user",
			Parts: []*genai.Part{
				{Text: g.prompt},
				{InlineData: &genai.Blob{MIMEType: mimeType, Data: image}},
			},
		},
	}

	resp, err := g.client.Models.GenerateContent(ctx, g.model, contents, &genai.GenerateContentConfig{
		ResponseMIMEType: "application/json",
	})
	if err != nil {
		return nil, fmt.Errorf("ExtractPage: generate content: %w", err)
	}

	rawText := resp.Text()
	if rawText == "" {
		return nil, fmt.Errorf("ExtractPage: %w", ErrEmptyResponse)
	}

	return CleanModelJSON(rawText)
}

// CleanModelJSON strips Markdown fences and surrounding chatter from a model
// response, checks that what remains is a JSON object, and re-indents it.
func CleanModelJSON(raw string) ([]byte, error) {
	s := strings.TrimSpace(raw)

	// ```json ... ``` or ``` ... ```
	if strings.HasPrefix(s, "```") {
		if idx := strings.Index(s, "\n"); idx != -1 {
			s = s[idx+1:]
		} else {
			s = strings.TrimPrefix(strings.TrimPrefix(s, "```json"), "```")
		}
		s = strings.TrimSpace(s)
	}
	if idx := strings.LastIndex(s, "```"); idx != -1 {
		s = s[:idx]
	}
	s = strings.TrimSpace(s)

	// Keep only the outermost object if there is still text around it.
	if start := strings.Index(s, "{"); start != -1 {
		if end := strings.LastIndex(s, "}"); end > start {
			s = s[start : end+1]
		}
	}

	var obj map[string]json.RawMessage
	if err := json.Unmarshal([]byte(s), &obj); err != nil {
		return nil, fmt.Errorf("CleanModelJSON: response is not a JSON object: %w", err)
	}

	var out bytes.Buffer
	if err := json.Indent(&out, []byte(s), "", "  "); err != nil {
		return nil, fmt.Errorf("CleanModelJSON: indent: %w", err)
	}
	out.WriteByte('\n')
	return out.Bytes(), nil
}
