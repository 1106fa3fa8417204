package gemini

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"invoicelens/internal/config"
	"invoicelens/internal/extractor"
	"invoicelens/internal/port"
)

const (
	apiBaseURL = "https://generativelanguage.googleapis.com/v1beta/models"

	// ProviderName is the registry name of this provider.
	ProviderName = "gemini"
	defaultModel = "gemini-1.5-flash"
)

// Generation settings kept low-temperature for repeatable field extraction.
const (
	temperature     = 0.1
	topP            = 0.8
	topK            = 40
	maxOutputTokens = 4096
)

// Extractor implements port.Extractor using the Gemini REST API.
type Extractor struct {
	apiKey   string
	model    string
	endpoint string
	prompt   string
	client   *http.Client
}

// NewExtractor creates a Gemini-based extractor.
func NewExtractor(cfg *config.ExtractorProviderConfig, prompt string) *Extractor {
	return newExtractor(cfg, prompt, "")
}

// NewExtractorWithEndpoint creates an extractor pointing at a custom API endpoint (for testing).
func NewExtractorWithEndpoint(cfg *config.ExtractorProviderConfig, prompt, endpoint string) *Extractor {
	return newExtractor(cfg, prompt, endpoint)
}

// Factory adapts NewExtractor to extractor.ProviderFactory.
func Factory(cfg *config.ExtractorProviderConfig, prompt string) (port.Extractor, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("gemini: api key is required")
	}
	return NewExtractor(cfg, prompt), nil
}

func newExtractor(cfg *config.ExtractorProviderConfig, prompt, endpoint string) *Extractor {
	model := cfg.DefaultModel
	if model == "" {
		model = defaultModel
	}
	timeout := time.Duration(cfg.TimeoutSecs) * time.Second
	if timeout == 0 {
		timeout = 120 * time.Second
	}
	if endpoint == "" {
		endpoint = fmt.Sprintf("%s/%s:generateContent", apiBaseURL, model)
	}
	if prompt == "" {
		prompt = extractor.InvoicePrompt
	}
	return &Extractor{
		apiKey:   cfg.APIKey,
		model:    model,
		endpoint: endpoint,
		prompt:   prompt,
		client:   &http.Client{Timeout: timeout},
	}
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) *port.ExtractResult {
	raw, doc, err := e.call(ctx, input)
	if err != nil {
		return extractor.Failed(err, ProviderName, e.model, e.prompt)
	}
	payload, conf := extractor.PayloadFromDocument(doc)
	return &port.ExtractResult{
		Payload:         payload,
		Raw:             raw,
		Model:           e.model,
		Method:          ProviderName,
		Prompt:          e.prompt,
		ModelConfidence: conf,
	}
}

func (e *Extractor) call(ctx context.Context, input port.ExtractInput) (json.RawMessage, map[string]any, error) {
	mimeType, data, err := extractor.PrepareMedia(input.ContentType, input.FileBytes)
	if err != nil {
		return nil, nil, err
	}

	reqBody := map[string]interface{}{
		"contents": []map[string]interface{}{
			{
				"role": "user",
				"parts": []map[string]interface{}{
					{
						"inline_data": map[string]interface{}{
							"mime_type": mimeType,
							"data":      base64.StdEncoding.EncodeToString(data),
						},
					},
					{
						"text": e.prompt,
					},
				},
			},
		},
		"generationConfig": map[string]interface{}{
			"temperature":      temperature,
			"topP":             topP,
			"topK":             topK,
			"maxOutputTokens":  maxOutputTokens,
			"responseMimeType": "application/json",
		},
	}

	bodyBytes, err := json.Marshal(reqBody)
	if err != nil {
		return nil, nil, fmt.Errorf("marshaling request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.endpoint, bytes.NewReader(bodyBytes))
	if err != nil {
		return nil, nil, fmt.Errorf("creating request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("x-goog-api-key", e.apiKey)

	resp, err := e.client.Do(req)
	if err != nil {
		return nil, nil, fmt.Errorf("calling gemini API: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, nil, fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode == http.StatusTooManyRequests {
		retryAfter := extractor.ParseRetryAfterHeader(resp.Header.Get("Retry-After"))
		return nil, nil, extractor.NewRateLimitError(ProviderName,
			fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 300)), retryAfter)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, nil, fmt.Errorf("gemini API error (status %d): %s", resp.StatusCode, truncate(string(respBody), 300))
	}

	text, err := responseText(respBody)
	if err != nil {
		return nil, nil, err
	}
	doc, raw, err := extractor.ParseDocument(text)
	if err != nil {
		return nil, nil, err
	}
	return raw, doc, nil
}

// geminiResponse models the Gemini API response.
type geminiResponse struct {
	Candidates []struct {
		Content struct {
			Parts []struct {
				Text string `json:"text"`
			} `json:"parts"`
		} `json:"content"`
		FinishReason string `json:"finishReason"`
	} `json:"candidates"`
}

func responseText(body []byte) (string, error) {
	var resp geminiResponse
	if err := json.Unmarshal(body, &resp); err != nil {
		return "", fmt.Errorf("%w: unmarshaling response: %v", extractor.ErrMalformedResponse, err)
	}
	if len(resp.Candidates) == 0 {
		return "", fmt.Errorf("%w: no candidates", extractor.ErrMalformedResponse)
	}
	if len(resp.Candidates[0].Content.Parts) == 0 {
		return "", fmt.Errorf("%w: no parts (finish reason %s)", extractor.ErrMalformedResponse, resp.Candidates[0].FinishReason)
	}
	return resp.Candidates[0].Content.Parts[0].Text, nil
}

func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
