// Package config provides the configuration schema, loader, and provider
// registry for the voxcode bot.
package config

import "time"

// LogLevel controls log verbosity.
type LogLevel string

const (
	LogDebug LogLevel = "debug"
	LogInfo  LogLevel = "info"
	LogWarn  LogLevel = "warn"
	LogError LogLevel = "error"
)

// IsValid reports whether l is a recognised log level.
func (l LogLevel) IsValid() bool {
	switch l {
	case LogDebug, LogInfo, LogWarn, LogError:
		return true
	}
	return false
}

// StorageBackend selects the session store implementation.
type StorageBackend string

const (
	StorageFile     StorageBackend = "file"
	StoragePostgres StorageBackend = "postgres"
)

// IsValid reports whether b is a recognised storage backend.
func (b StorageBackend) IsValid() bool {
	return b == StorageFile || b == StoragePostgres
}

// Config is the root configuration structure, typically loaded from a YAML
// file using [Load] or [LoadFromReader].
type Config struct {
	Server    ServerConfig    `yaml:"server"`
	Telegram  TelegramConfig  `yaml:"telegram"`
	Providers ProvidersConfig `yaml:"providers"`
	Agent     AgentConfig     `yaml:"agent"`
	Git       GitConfig       `yaml:"git"`
	Storage   StorageConfig   `yaml:"storage"`
}

// ServerConfig holds the operational HTTP listener and logging settings. The
// listener serves health and metrics endpoints only; Telegram updates arrive
// via long polling.
type ServerConfig struct {
	// ListenAddr is the TCP address for /healthz, /readyz and /metrics
	// (e.g., ":8080").
	ListenAddr string `yaml:"listen_addr"`

	// LogLevel controls verbosity.
	LogLevel LogLevel `yaml:"log_level"`
}

// TelegramConfig configures the bot connection and authorisation.
type TelegramConfig struct {
	// Token is the Bot API token from @BotFather. Supports ${ENV} expansion.
	Token string `yaml:"token"`

	// AllowedUserIDs is the allowlist of Telegram user IDs permitted to use
	// the bot. Empty allows everyone (a warning is logged).
	AllowedUserIDs []int64 `yaml:"allowed_user_ids"`

	// PollTimeoutSeconds is the long-poll timeout for GetUpdates. Default: 30.
	PollTimeoutSeconds int `yaml:"poll_timeout_seconds"`
}

// ProvidersConfig declares the transcription providers. Primary is required;
// Fallback is optional and tried when the primary fails.
type ProvidersConfig struct {
	STT      ProviderEntry `yaml:"stt"`
	Fallback ProviderEntry `yaml:"fallback"`
}

// ProviderEntry is the common configuration block shared by all provider
// types. The Name field is used to look up the constructor in the [Registry].
type ProviderEntry struct {
	// Name selects the registered provider implementation
	// (e.g., "deepgram", "whisper").
	Name string `yaml:"name"`

	// APIKey is the authentication key for the provider's API if any.
	// Supports ${ENV} expansion.
	APIKey string `yaml:"api_key"`

	// BaseURL overrides the provider's default API endpoint. Required for
	// whisper (the server URL), optional elsewhere.
	BaseURL string `yaml:"base_url"`

	// Model selects a specific model within the provider (e.g., "nova-3").
	Model string `yaml:"model"`

	// Language is the recognition language code ("multi" auto-detects).
	Language string `yaml:"language"`
}

// AgentConfig configures the coding agent CLI subprocess.
type AgentConfig struct {
	// Binary is the agent executable (resolved via PATH when relative).
	Binary string `yaml:"binary"`

	// Workspace is the directory the agent operates in. Must exist.
	Workspace string `yaml:"workspace"`

	// SessionsDir is the agent's on-disk session directory used for the
	// /sessions housekeeping commands.
	SessionsDir string `yaml:"sessions_dir"`

	// Timeout bounds one agent invocation. Default: 1h.
	Timeout time.Duration `yaml:"timeout"`

	// MaxTurns caps agentic turns per invocation. Default: 50.
	MaxTurns int `yaml:"max_turns"`

	// FfmpegBinary overrides the ffmpeg executable. Default: "ffmpeg".
	FfmpegBinary string `yaml:"ffmpeg_binary"`
}

// GitConfig holds the commit identity used when the bot commits approved
// changes.
type GitConfig struct {
	AuthorName  string `yaml:"author_name"`
	AuthorEmail string `yaml:"author_email"`
}

// StorageConfig selects and configures the session store backend.
type StorageConfig struct {
	// Backend is "file" (default) or "postgres".
	Backend StorageBackend `yaml:"backend"`

	// Path is the JSON store file for the file backend.
	Path string `yaml:"path"`

	// PostgresDSN is the connection string for the postgres backend.
	// Supports ${ENV} expansion.
	PostgresDSN string `yaml:"postgres_dsn"`
}

// ApplyDefaults fills in zero-valued optional fields.
func (c *Config) ApplyDefaults() {
	if c.Server.ListenAddr == "" {
		c.Server.ListenAddr = ":8080"
	}
	if c.Server.LogLevel == "" {
		c.Server.LogLevel = LogInfo
	}
	if c.Telegram.PollTimeoutSeconds <= 0 {
		c.Telegram.PollTimeoutSeconds = 30
	}
	if c.Agent.Binary == "" {
		c.Agent.Binary = "claude"
	}
	if c.Agent.Timeout <= 0 {
		c.Agent.Timeout = time.Hour
	}
	if c.Agent.MaxTurns <= 0 {
		c.Agent.MaxTurns = 50
	}
	if c.Agent.FfmpegBinary == "" {
		c.Agent.FfmpegBinary = "ffmpeg"
	}
	if c.Git.AuthorName == "" {
		c.Git.AuthorName = "voxcode"
	}
	if c.Git.AuthorEmail == "" {
		c.Git.AuthorEmail = "voxcode@localhost"
	}
	if c.Storage.Backend == "" {
		c.Storage.Backend = StorageFile
	}
	if c.Storage.Backend == StorageFile && c.Storage.Path == "" {
		c.Storage.Path = "sessions.json"
	}
}
