package extractor_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"invoicelens/internal/config"
	"invoicelens/internal/extractor"
	"invoicelens/internal/port"
	"invoicelens/mocks"
)

func TestNew_RegisteredProvider(t *testing.T) {
	var gotPrompt string
	fake := new(mocks.MockExtractor)
	extractor.RegisterProvider("fake", func(cfg *config.ExtractorProviderConfig, prompt string) (port.Extractor, error) {
		gotPrompt = prompt
		return fake, nil
	})

	e, err := extractor.New(&config.ExtractorProviderConfig{Provider: "fake"}, "extract it")
	require.NoError(t, err)
	assert.Same(t, fake, e)
	assert.Equal(t, "extract it", gotPrompt)
}

func TestNew_UnknownProvider(t *testing.T) {
	_, err := extractor.New(&config.ExtractorProviderConfig{Provider: "nope"}, "")
	assert.ErrorContains(t, err, "unknown extractor provider: nope")
}

func TestPromptFor(t *testing.T) {
	assert.Equal(t, extractor.InvoicePrompt, extractor.PromptFor(extractor.LanguageEnglish))
	assert.Equal(t, extractor.MultiLanguagePrompt, extractor.PromptFor(extractor.LanguageMulti))
	assert.Equal(t, extractor.InvoicePrompt, extractor.PromptFor(""))
}
