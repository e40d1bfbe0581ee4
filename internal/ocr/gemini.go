// Package ocr extracts receipt line items from photos via an external
// vision model. The rest of the system consumes it through the Scanner
// interface and a list of models.LineItem; everything about prompts and
// transport stays in here.
package ocr

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"strings"
	"time"

	"github.com/makansplit/backend/internal/models"
)

// Scanner parses a receipt image into ordered line items.
type Scanner interface {
	ParseReceipt(ctx context.Context, image []byte, mimeType string) ([]models.LineItem, error)
}

const (
	defaultBaseURL = "https://generativelanguage.googleapis.com"
	defaultModel   = "gemini-1.5-flash"

	prompt = `Extract items from this receipt image.
Return a JSON array of objects with exactly these keys: "name", "price", "quantity".
"price" must be a number (no currency symbols).
"quantity" must be an integer.
If quantity is not clearly visible, use 1.
Exclude tax, service charge, and total.`
)

// GeminiClient implements Scanner against the Gemini generateContent API
// in JSON response mode.
type GeminiClient struct {
	apiKey  string
	model   string
	baseURL string
	client  *http.Client
}

// Option configures a GeminiClient.
type Option func(*GeminiClient)

// WithModel overrides the default model name.
func WithModel(model string) Option {
	return func(c *GeminiClient) { c.model = model }
}

// WithBaseURL overrides the API endpoint, used by tests.
func WithBaseURL(baseURL string) Option {
	return func(c *GeminiClient) { c.baseURL = strings.TrimRight(baseURL, "/") }
}

// WithHTTPClient overrides the underlying HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *GeminiClient) { c.client = client }
}

// NewGeminiClient creates a client with the given API key.
func NewGeminiClient(apiKey string, opts ...Option) *GeminiClient {
	c := &GeminiClient{
		apiKey:  apiKey,
		model:   defaultModel,
		baseURL: defaultBaseURL,
		client:  &http.Client{Timeout: 60 * time.Second},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type generateRequest struct {
	Contents         []content         `json:"contents"`
	GenerationConfig *generationConfig `json:"generationConfig,omitempty"`
}

type content struct {
	Parts []part `json:"parts"`
}

type part struct {
	Text       string      `json:"text,omitempty"`
	InlineData *inlineData `json:"inline_data,omitempty"`
}

type inlineData struct {
	MimeType string `json:"mime_type"`
	Data     string `json:"data"`
}

type generationConfig struct {
	ResponseMimeType string `json:"response_mime_type,omitempty"`
}

type generateResponse struct {
	Candidates []struct {
		Content      content `json:"content"`
		FinishReason string  `json:"finishReason"`
	} `json:"candidates"`
	PromptFeedback struct {
		BlockReason string `json:"blockReason"`
	} `json:"promptFeedback"`
}

// ParseReceipt sends the image to the model and parses the returned item
// list. Failures are classified into the package's error values.
func (c *GeminiClient) ParseReceipt(ctx context.Context, image []byte, mimeType string) ([]models.LineItem, error) {
	if c.apiKey == "" {
		return nil, ErrNotConfigured
	}

	body, err := json.Marshal(generateRequest{
		Contents: []content{{
			Parts: []part{
				{Text: prompt},
				{InlineData: &inlineData{
					MimeType: mimeType,
					Data:     base64.StdEncoding.EncodeToString(image),
				}},
			},
		}},
		GenerationConfig: &generationConfig{ResponseMimeType: "application/json"},
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode request: %w", err)
	}

	url := fmt.Sprintf("%s/v1beta/models/%s:generateContent?key=%s", c.baseURL, c.model, c.apiKey)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("ocr request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, classifyStatus(resp.StatusCode)
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}

	var gr generateResponse
	if err := json.Unmarshal(data, &gr); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidResponse, err)
	}

	if gr.PromptFeedback.BlockReason != "" {
		return nil, fmt.Errorf("%w: %s", ErrContentBlocked, gr.PromptFeedback.BlockReason)
	}
	if len(gr.Candidates) == 0 {
		return nil, ErrInvalidResponse
	}
	if reason := gr.Candidates[0].FinishReason; strings.Contains(reason, "SAFETY") {
		return nil, fmt.Errorf("%w: %s", ErrContentBlocked, reason)
	}
	if len(gr.Candidates[0].Content.Parts) == 0 {
		return nil, ErrInvalidResponse
	}

	text := gr.Candidates[0].Content.Parts[0].Text
	items, err := parseItems(text)
	if err != nil {
		slog.Warn("ocr response could not be parsed", "error", err)
		return nil, err
	}
	return items, nil
}

func classifyStatus(status int) error {
	switch status {
	case http.StatusBadRequest:
		return ErrBadImage
	case http.StatusUnauthorized, http.StatusForbidden:
		return ErrAuthFailed
	case http.StatusNotFound:
		return ErrModelNotFound
	case http.StatusTooManyRequests:
		return ErrRateLimited
	default:
		return fmt.Errorf("ocr service returned status %d", status)
	}
}

var jsonArrayPattern = regexp.MustCompile(`(?s)\[.*\]`)

// parseItems decodes the model output, tolerating both a bare array and
// an {"items": [...]} wrapper, and falling back to extracting the first
// bracketed array when the model wrapped JSON in prose.
func parseItems(text string) ([]models.LineItem, error) {
	var raw []models.LineItem
	if err := json.Unmarshal([]byte(text), &raw); err == nil {
		return clean(raw), nil
	}

	var wrapper struct {
		Items []models.LineItem `json:"items"`
	}
	if err := json.Unmarshal([]byte(text), &wrapper); err == nil && wrapper.Items != nil {
		return clean(wrapper.Items), nil
	}

	if match := jsonArrayPattern.FindString(text); match != "" {
		if err := json.Unmarshal([]byte(match), &raw); err == nil {
			return clean(raw), nil
		}
	}

	return nil, fmt.Errorf("%w: %q", ErrInvalidResponse, truncate(text, 120))
}

// clean normalizes extracted items: no empty names, no negative prices,
// quantity at least 1.
func clean(items []models.LineItem) []models.LineItem {
	out := make([]models.LineItem, 0, len(items))
	for _, item := range items {
		if item.Name == "" {
			item.Name = "Unknown Item"
		}
		if item.Price < 0 {
			item.Price = 0
		}
		if item.Quantity <= 0 {
			item.Quantity = 1
		}
		out = append(out, item)
	}
	return out
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
