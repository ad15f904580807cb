package resilience

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

// ErrAllProvidersFailed is returned by Transcriber.Transcribe when every
// provider in the chain failed or had an open breaker.
var ErrAllProvidersFailed = errors.New("resilience: all transcription providers failed")

// Transcriber chains STT providers with per-provider breakers. Providers are
// tried in registration order; the first success wins. An empty transcript
// from one provider is final, not a reason to fail over.
type Transcriber struct {
	entries []transcriberEntry
}

type transcriberEntry struct {
	provider stt.Provider
	breaker  *Breaker
}

var _ stt.Provider = (*Transcriber)(nil)

// NewTranscriber builds a chain over the given providers, primary first.
// At least one provider is required.
func NewTranscriber(providers ...stt.Provider) (*Transcriber, error) {
	if len(providers) == 0 {
		return nil, errors.New("resilience: at least one provider required")
	}
	t := &Transcriber{}
	for _, p := range providers {
		t.entries = append(t.entries, transcriberEntry{
			provider: p,
			breaker:  NewBreaker("stt/"+p.Name(), 0, 0),
		})
	}
	return t, nil
}

// Name implements stt.Provider with the active chain head's name.
func (t *Transcriber) Name() string {
	return t.entries[0].provider.Name()
}

// Transcribe implements stt.Provider by trying each chained provider in
// order, skipping those with open breakers.
func (t *Transcriber) Transcribe(ctx context.Context, audio []byte, mimeType string) (stt.Transcript, error) {
	var lastErr error
	for _, e := range t.entries {
		if err := e.breaker.Allow(); err != nil {
			slog.Debug("skipping transcription provider", "provider", e.provider.Name(), "reason", "breaker open")
			lastErr = err
			continue
		}

		result, err := e.provider.Transcribe(ctx, audio, mimeType)
		if err == nil || errors.Is(err, stt.ErrEmptyTranscript) {
			// No speech recognised is an answer, not a provider fault.
			e.breaker.Record(nil)
			return result, err
		}

		e.breaker.Record(err)
		lastErr = err
		slog.Warn("transcription provider failed, trying next",
			"provider", e.provider.Name(), "error", err)
	}
	return stt.Transcript{}, fmt.Errorf("%w: %v", ErrAllProvidersFailed, lastErr)
}
