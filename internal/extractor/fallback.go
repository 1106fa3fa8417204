package extractor

import (
	"context"
	"errors"
	"log"
	"sync"
	"time"

	"invoicelens/internal/port"
)

// circuitState tracks rate-limit backoff for a single provider.
type circuitState struct {
	mu      sync.RWMutex
	resetAt time.Time // zero value = closed (healthy)
}

func (c *circuitState) isOpenWithReset(now time.Time) (time.Time, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.resetAt, !c.resetAt.IsZero() && now.Before(c.resetAt)
}

func (c *circuitState) open(resetAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.resetAt = resetAt
}

// FallbackExtractor tries providers in order, skipping those with open circuits.
// It implements port.Extractor.
type FallbackExtractor struct {
	extractors []port.Extractor
	circuits   []*circuitState
	names      []string
	now        func() time.Time
}

// NewFallbackExtractor creates a FallbackExtractor from an ordered list of providers and their names.
func NewFallbackExtractor(extractors []port.Extractor, names []string) *FallbackExtractor {
	circuits := make([]*circuitState, len(extractors))
	for i := range circuits {
		circuits[i] = &circuitState{}
	}
	return &FallbackExtractor{
		extractors: extractors,
		circuits:   circuits,
		names:      names,
		now:        time.Now,
	}
}

func (f *FallbackExtractor) Extract(ctx context.Context, input port.ExtractInput) *port.ExtractResult {
	now := f.now()
	var last *port.ExtractResult
	allRateLimited := true
	var earliestReset time.Time

	for i, e := range f.extractors {
		if resetAt, open := f.circuits[i].isOpenWithReset(now); open {
			log.Printf("extractor.FallbackExtractor: skipping %s (circuit open until %s)", f.names[i], resetAt.Format(time.RFC3339))
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
			continue
		}

		res := e.Extract(ctx, input)
		if res.OK() {
			return res
		}

		log.Printf("extractor.FallbackExtractor: %s failed (%s): %v", f.names[i], res.Failure, res.Err)
		last = res

		if res.Failure == port.FailureRateLimited {
			resetAt := now.Add(res.RetryAfter)
			f.circuits[i].open(resetAt)
			if earliestReset.IsZero() || resetAt.Before(earliestReset) {
				earliestReset = resetAt
			}
		} else {
			allRateLimited = false
		}

		if ctx.Err() != nil {
			break
		}
	}

	if last == nil || allRateLimited {
		retryAfter := earliestReset.Sub(now)
		if retryAfter < time.Second {
			retryAfter = time.Second
		}
		res := &port.ExtractResult{
			Failure:    port.FailureRateLimited,
			RetryAfter: retryAfter,
			Err:        NewRateLimitError("all", errors.New("all extractors rate limited"), int(retryAfter.Seconds())),
		}
		if last != nil {
			res.Method, res.Model, res.Prompt = last.Method, last.Model, last.Prompt
		}
		return res
	}

	return last
}
