// Package geminisdk provides an extraction provider backed by the Gemini Go SDK.
package geminisdk

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/google/generative-ai-go/genai"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"invoicelens/internal/config"
	"invoicelens/internal/extractor"
	"invoicelens/internal/port"
)

// ProviderName is the registry name of this provider.
const ProviderName = "gemini_sdk"

const defaultModel = "gemini-1.5-flash"

// contentGenerator is the part of *genai.GenerativeModel the extractor uses.
type contentGenerator interface {
	GenerateContent(ctx context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error)
}

// Extractor implements port.Extractor through github.com/google/generative-ai-go.
type Extractor struct {
	client  *genai.Client
	model   contentGenerator
	name    string
	prompt  string
	timeout time.Duration
}

// NewExtractor creates an SDK client for the configured model.
func NewExtractor(ctx context.Context, cfg *config.ExtractorProviderConfig, prompt string) (*Extractor, error) {
	apiKey := strings.TrimSpace(cfg.APIKey)
	if apiKey == "" {
		return nil, errors.New("gemini_sdk: api key is required")
	}
	client, err := genai.NewClient(ctx, option.WithAPIKey(apiKey))
	if err != nil {
		return nil, fmt.Errorf("gemini_sdk: creating client: %w", err)
	}

	name := strings.TrimSpace(cfg.DefaultModel)
	if name == "" {
		name = defaultModel
	}
	m := client.GenerativeModel(name)
	m.GenerationConfig = genai.GenerationConfig{
		Temperature:      ptr[float32](0.1),
		TopP:             ptr[float32](0.8),
		TopK:             ptr[int32](40),
		MaxOutputTokens:  ptr[int32](4096),
		ResponseMIMEType: "application/json",
	}

	e := newExtractor(m, name, prompt, time.Duration(cfg.TimeoutSecs)*time.Second)
	e.client = client
	return e, nil
}

func newExtractor(model contentGenerator, name, prompt string, timeout time.Duration) *Extractor {
	if prompt == "" {
		prompt = extractor.InvoicePrompt
	}
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Extractor{model: model, name: name, prompt: prompt, timeout: timeout}
}

// Factory adapts NewExtractor to extractor.ProviderFactory.
func Factory(cfg *config.ExtractorProviderConfig, prompt string) (port.Extractor, error) {
	return NewExtractor(context.Background(), cfg, prompt)
}

// Close releases the SDK client.
func (e *Extractor) Close() error {
	if e.client == nil {
		return nil
	}
	return e.client.Close()
}

func (e *Extractor) Extract(ctx context.Context, input port.ExtractInput) *port.ExtractResult {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	mimeType, data, err := extractor.PrepareMedia(input.ContentType, input.FileBytes)
	if err != nil {
		return extractor.Failed(err, ProviderName, e.name, e.prompt)
	}

	resp, err := e.model.GenerateContent(ctx,
		genai.Text(e.prompt),
		&genai.Blob{MIMEType: mimeType, Data: data},
	)
	if err != nil {
		return extractor.Failed(classify(err), ProviderName, e.name, e.prompt)
	}

	text := firstText(resp)
	if text == "" {
		return extractor.Failed(fmt.Errorf("%w: empty response", extractor.ErrMalformedResponse), ProviderName, e.name, e.prompt)
	}
	doc, raw, err := extractor.ParseDocument(text)
	if err != nil {
		return extractor.Failed(err, ProviderName, e.name, e.prompt)
	}

	payload, conf := extractor.PayloadFromDocument(doc)
	return &port.ExtractResult{
		Payload:         payload,
		Raw:             raw,
		Model:           e.name,
		Method:          ProviderName,
		Prompt:          e.prompt,
		ModelConfidence: conf,
	}
}

// classify turns SDK quota errors into RateLimitError so the fallback chain can back off.
func classify(err error) error {
	var apiErr *googleapi.Error
	if errors.As(err, &apiErr) && apiErr.Code == http.StatusTooManyRequests {
		retryAfter := extractor.ParseRetryAfterHeader(apiErr.Header.Get("Retry-After"))
		return extractor.NewRateLimitError(ProviderName, err, retryAfter)
	}
	if strings.Contains(err.Error(), "RESOURCE_EXHAUSTED") {
		return extractor.NewRateLimitError(ProviderName, err, 0)
	}
	return fmt.Errorf("calling gemini SDK: %w", err)
}

func firstText(resp *genai.GenerateContentResponse) string {
	if resp == nil || len(resp.Candidates) == 0 {
		return ""
	}
	for _, c := range resp.Candidates {
		if c.Content == nil {
			continue
		}
		for _, p := range c.Content.Parts {
			if t, ok := p.(genai.Text); ok {
				return string(t)
			}
		}
	}
	return ""
}

func ptr[T any](v T) *T { return &v }
