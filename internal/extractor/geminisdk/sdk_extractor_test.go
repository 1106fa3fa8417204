package geminisdk

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/google/generative-ai-go/genai"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/googleapi"

	"invoicelens/internal/config"
	"invoicelens/internal/ingest"
	"invoicelens/internal/port"
)

type fakeGenerator struct {
	resp  *genai.GenerateContentResponse
	err   error
	parts []genai.Part
}

func (f *fakeGenerator) GenerateContent(_ context.Context, parts ...genai.Part) (*genai.GenerateContentResponse, error) {
	f.parts = parts
	return f.resp, f.err
}

func textResponse(text string) *genai.GenerateContentResponse {
	return &genai.GenerateContentResponse{
		Candidates: []*genai.Candidate{
			{Content: &genai.Content{Role: "model", Parts: []genai.Part{genai.Text(text)}}},
		},
	}
}

var input = port.ExtractInput{FileBytes: []byte("%PDF-1.4"), ContentType: "application/pdf"}

func TestExtract_Success(t *testing.T) {
	gen := &fakeGenerator{resp: textResponse(`{"vendor_name":{"value":"Acme","confidence":0.6},"invoice_date":{"value":"2024-02-27","confidence":0.8}}`)}
	e := newExtractor(gen, "gemini-1.5-flash", "the prompt", time.Second)

	res := e.Extract(context.Background(), input)

	require.True(t, res.OK(), "failure: %v", res.Err)
	assert.Equal(t, ProviderName, res.Method)
	assert.Equal(t, "gemini-1.5-flash", res.Model)
	assert.Equal(t, "Acme", res.Payload[ingest.KeyVendor])
	assert.Equal(t, "2024-02-27", res.Payload[ingest.KeyDate])
	require.NotNil(t, res.ModelConfidence)
	assert.InDelta(t, 0.7, *res.ModelConfidence, 1e-9)

	require.Len(t, gen.parts, 2)
	assert.Equal(t, genai.Text("the prompt"), gen.parts[0])
	blob, ok := gen.parts[1].(*genai.Blob)
	require.True(t, ok)
	assert.Equal(t, "application/pdf", blob.MIMEType)
	assert.Equal(t, input.FileBytes, blob.Data)
}

func TestExtract_RateLimited(t *testing.T) {
	gen := &fakeGenerator{err: &googleapi.Error{Code: http.StatusTooManyRequests, Header: http.Header{"Retry-After": []string{"20"}}}}
	res := newExtractor(gen, "m", "p", time.Second).Extract(context.Background(), input)

	assert.Equal(t, port.FailureRateLimited, res.Failure)
	assert.Equal(t, 20*time.Second, res.RetryAfter)
}

func TestExtract_ResourceExhausted(t *testing.T) {
	gen := &fakeGenerator{err: errors.New("rpc error: code = ResourceExhausted desc = RESOURCE_EXHAUSTED")}
	res := newExtractor(gen, "m", "p", time.Second).Extract(context.Background(), input)

	assert.Equal(t, port.FailureRateLimited, res.Failure)
	assert.Equal(t, 60*time.Second, res.RetryAfter)
}

func TestExtract_UpstreamError(t *testing.T) {
	gen := &fakeGenerator{err: &googleapi.Error{Code: http.StatusBadGateway}}
	res := newExtractor(gen, "m", "p", time.Second).Extract(context.Background(), input)

	assert.Equal(t, port.FailureUpstream, res.Failure)
}

func TestExtract_EmptyAndMalformed(t *testing.T) {
	for name, resp := range map[string]*genai.GenerateContentResponse{
		"nil":         nil,
		"no content":  {Candidates: []*genai.Candidate{{}}},
		"prose reply": textResponse("sorry"),
	} {
		t.Run(name, func(t *testing.T) {
			res := newExtractor(&fakeGenerator{resp: resp}, "m", "p", time.Second).Extract(context.Background(), input)
			assert.Equal(t, port.FailureMalformedResponse, res.Failure)
		})
	}
}

func TestNewExtractor_RequiresAPIKey(t *testing.T) {
	_, err := Factory(&config.ExtractorProviderConfig{Provider: ProviderName}, "")
	assert.Error(t, err)
}

func TestNewExtractor_Defaults(t *testing.T) {
	e := newExtractor(&fakeGenerator{}, "m", "", 0)
	assert.NotEmpty(t, e.prompt)
	assert.Equal(t, 120*time.Second, e.timeout)
	assert.NoError(t, e.Close())
}
