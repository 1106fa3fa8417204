package extractor

import (
	"fmt"

	"invoicelens/internal/config"
	"invoicelens/internal/port"
)

// ProviderFactory creates an Extractor from a provider config and the prompt it should send.
type ProviderFactory func(cfg *config.ExtractorProviderConfig, prompt string) (port.Extractor, error)

// registry of provider factories, populated explicitly via RegisterProvider at startup.
var providers = map[string]ProviderFactory{}

// RegisterProvider registers a provider factory by name.
func RegisterProvider(name string, factory ProviderFactory) {
	providers[name] = factory
}

// New creates an Extractor from a provider config using the registered factory.
func New(cfg *config.ExtractorProviderConfig, prompt string) (port.Extractor, error) {
	factory, ok := providers[cfg.Provider]
	if !ok {
		return nil, fmt.Errorf("unknown extractor provider: %s", cfg.Provider)
	}
	return factory(cfg, prompt)
}
