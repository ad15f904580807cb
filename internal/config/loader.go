package config

import (
	"bytes"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"slices"

	"gopkg.in/yaml.v3"
)

// ValidProviderNames lists known transcription provider names. [Validate]
// warns about unrecognised ones rather than rejecting them.
var ValidProviderNames = []string{"deepgram", "whisper"}

// Load reads the YAML configuration file at path, expands ${ENV} references
// in its text, and returns a validated [Config] with defaults applied.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %q: %w", path, err)
	}
	cfg, err := LoadFromReader(bytes.NewReader([]byte(os.ExpandEnv(string(data)))))
	if err != nil {
		return nil, fmt.Errorf("config: parse %q: %w", path, err)
	}
	return cfg, nil
}

// LoadFromReader decodes a YAML config from r, applies defaults, and
// validates the result. Useful in tests where configs are constructed from
// string literals. No environment expansion happens here.
func LoadFromReader(r io.Reader) (*Config, error) {
	cfg := &Config{}
	dec := yaml.NewDecoder(r)
	dec.KnownFields(true)
	if err := dec.Decode(cfg); err != nil {
		return nil, fmt.Errorf("config: decode yaml: %w", err)
	}
	cfg.ApplyDefaults()
	if err := Validate(cfg); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Validate checks that cfg contains a coherent set of values.
// It returns a joined error listing all validation failures found.
func Validate(cfg *Config) error {
	var errs []error

	if !cfg.Server.LogLevel.IsValid() {
		errs = append(errs, fmt.Errorf("server.log_level %q is invalid; valid values: debug, info, warn, error", cfg.Server.LogLevel))
	}

	if cfg.Telegram.Token == "" {
		errs = append(errs, errors.New("telegram.token is required"))
	}
	if len(cfg.Telegram.AllowedUserIDs) == 0 {
		slog.Warn("telegram.allowed_user_ids is empty; every Telegram user may drive the agent")
	}

	if cfg.Providers.STT.Name == "" {
		errs = append(errs, errors.New("providers.stt.name is required"))
	}
	validateProviderEntry("providers.stt", cfg.Providers.STT, &errs)
	if cfg.Providers.Fallback.Name != "" {
		validateProviderEntry("providers.fallback", cfg.Providers.Fallback, &errs)
	}

	if cfg.Agent.Workspace == "" {
		errs = append(errs, errors.New("agent.workspace is required"))
	}

	if !cfg.Storage.Backend.IsValid() {
		errs = append(errs, fmt.Errorf("storage.backend %q is invalid; valid values: file, postgres", cfg.Storage.Backend))
	}
	if cfg.Storage.Backend == StoragePostgres && cfg.Storage.PostgresDSN == "" {
		errs = append(errs, errors.New("storage.postgres_dsn is required when storage.backend is postgres"))
	}

	return errors.Join(errs...)
}

// validateProviderEntry checks provider-specific requirements and warns about
// unknown provider names.
func validateProviderEntry(prefix string, e ProviderEntry, errs *[]error) {
	if e.Name == "" {
		return
	}
	if !slices.Contains(ValidProviderNames, e.Name) {
		slog.Warn("unknown provider name, may be a typo",
			"entry", prefix, "name", e.Name, "known", ValidProviderNames)
	}
	switch e.Name {
	case "deepgram":
		if e.APIKey == "" {
			*errs = append(*errs, fmt.Errorf("%s.api_key is required for deepgram", prefix))
		}
	case "whisper":
		if e.BaseURL == "" {
			*errs = append(*errs, fmt.Errorf("%s.base_url is required for whisper", prefix))
		}
	}
}
