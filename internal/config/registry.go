package config

import (
	"fmt"
	"sort"
	"sync"

	"github.com/voxcodehq/voxcode/pkg/provider/stt"
	"github.com/voxcodehq/voxcode/pkg/provider/stt/deepgram"
	"github.com/voxcodehq/voxcode/pkg/provider/stt/whisper"
)

// STTFactory constructs an stt.Provider from its configuration entry.
type STTFactory func(entry ProviderEntry) (stt.Provider, error)

// Registry maps provider names to constructors. The zero value is unusable;
// use [NewRegistry] (which pre-registers the built-in providers) or
// [DefaultRegistry].
type Registry struct {
	mu  sync.RWMutex
	stt map[string]STTFactory
}

// NewRegistry returns a Registry with the built-in providers registered.
func NewRegistry() *Registry {
	r := &Registry{stt: map[string]STTFactory{}}

	r.RegisterSTT("deepgram", func(entry ProviderEntry) (stt.Provider, error) {
		var opts []deepgram.Option
		if entry.Model != "" {
			opts = append(opts, deepgram.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, deepgram.WithLanguage(entry.Language))
		}
		if entry.BaseURL != "" {
			opts = append(opts, deepgram.WithBaseURL(entry.BaseURL))
		}
		return deepgram.New(entry.APIKey, opts...)
	})

	r.RegisterSTT("whisper", func(entry ProviderEntry) (stt.Provider, error) {
		var opts []whisper.Option
		if entry.Model != "" {
			opts = append(opts, whisper.WithModel(entry.Model))
		}
		if entry.Language != "" {
			opts = append(opts, whisper.WithLanguage(entry.Language))
		}
		return whisper.New(entry.BaseURL, opts...)
	})

	return r
}

// RegisterSTT adds (or replaces) a named provider constructor.
func (r *Registry) RegisterSTT(name string, f STTFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.stt[name] = f
}

// BuildSTT constructs the provider selected by entry.Name.
func (r *Registry) BuildSTT(entry ProviderEntry) (stt.Provider, error) {
	r.mu.RLock()
	f, ok := r.stt[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("config: unknown stt provider %q (registered: %v)", entry.Name, r.STTNames())
	}
	p, err := f(entry)
	if err != nil {
		return nil, fmt.Errorf("config: build stt provider %q: %w", entry.Name, err)
	}
	return p, nil
}

// STTNames returns the registered provider names, sorted.
func (r *Registry) STTNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.stt))
	for name := range r.stt {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

var (
	defaultRegistry     *Registry
	defaultRegistryOnce sync.Once
)

// DefaultRegistry returns the shared package-level Registry.
func DefaultRegistry() *Registry {
	defaultRegistryOnce.Do(func() {
		defaultRegistry = NewRegistry()
	})
	return defaultRegistry
}
