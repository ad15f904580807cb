package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"
)

const validYAML = `
server:
  listen_addr: ":9090"
  log_level: debug
telegram:
  token: "123:abc"
  allowed_user_ids: [42, 99]
providers:
  stt:
    name: deepgram
    api_key: dg-key
    model: nova-3
    language: multi
  fallback:
    name: whisper
    base_url: http://localhost:8081
agent:
  binary: claude
  workspace: /srv/workspace
  sessions_dir: /srv/sessions
  timeout: 30m
  max_turns: 25
storage:
  backend: file
  path: /var/lib/voxcode/sessions.json
`

func TestLoadFromReaderValid(t *testing.T) {
	cfg, err := LoadFromReader(strings.NewReader(validYAML))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":9090" {
		t.Errorf("listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogDebug {
		t.Errorf("log_level: got %q", cfg.Server.LogLevel)
	}
	if len(cfg.Telegram.AllowedUserIDs) != 2 || cfg.Telegram.AllowedUserIDs[0] != 42 {
		t.Errorf("allowed_user_ids: got %v", cfg.Telegram.AllowedUserIDs)
	}
	if cfg.Providers.STT.Name != "deepgram" || cfg.Providers.Fallback.Name != "whisper" {
		t.Errorf("providers: %+v", cfg.Providers)
	}
	if cfg.Agent.Timeout != 30*time.Minute {
		t.Errorf("agent.timeout: got %v", cfg.Agent.Timeout)
	}
	if cfg.Agent.MaxTurns != 25 {
		t.Errorf("agent.max_turns: got %d", cfg.Agent.MaxTurns)
	}
}

func TestLoadFromReaderDefaults(t *testing.T) {
	minimal := `
telegram:
  token: "123:abc"
providers:
  stt:
    name: deepgram
    api_key: dg-key
agent:
  workspace: /srv/workspace
`
	cfg, err := LoadFromReader(strings.NewReader(minimal))
	if err != nil {
		t.Fatalf("LoadFromReader: %v", err)
	}

	if cfg.Server.ListenAddr != ":8080" {
		t.Errorf("default listen_addr: got %q", cfg.Server.ListenAddr)
	}
	if cfg.Server.LogLevel != LogInfo {
		t.Errorf("default log_level: got %q", cfg.Server.LogLevel)
	}
	if cfg.Telegram.PollTimeoutSeconds != 30 {
		t.Errorf("default poll timeout: got %d", cfg.Telegram.PollTimeoutSeconds)
	}
	if cfg.Agent.Binary != "claude" {
		t.Errorf("default agent binary: got %q", cfg.Agent.Binary)
	}
	if cfg.Agent.Timeout != time.Hour {
		t.Errorf("default agent timeout: got %v", cfg.Agent.Timeout)
	}
	if cfg.Storage.Backend != StorageFile || cfg.Storage.Path != "sessions.json" {
		t.Errorf("default storage: %+v", cfg.Storage)
	}
}

func TestLoadFromReaderUnknownField(t *testing.T) {
	bad := validYAML + "\nnot_a_real_section:\n  x: 1\n"
	if _, err := LoadFromReader(strings.NewReader(bad)); err == nil {
		t.Fatal("unknown top-level field should be rejected")
	}
}

func TestValidateFailures(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(*Config)
		wantSub string
	}{
		{
			name:    "missing token",
			mutate:  func(c *Config) { c.Telegram.Token = "" },
			wantSub: "telegram.token",
		},
		{
			name:    "missing stt provider",
			mutate:  func(c *Config) { c.Providers.STT.Name = "" },
			wantSub: "providers.stt.name",
		},
		{
			name:    "deepgram without key",
			mutate:  func(c *Config) { c.Providers.STT.APIKey = "" },
			wantSub: "api_key is required for deepgram",
		},
		{
			name:    "whisper without base url",
			mutate:  func(c *Config) { c.Providers.Fallback.BaseURL = "" },
			wantSub: "base_url is required for whisper",
		},
		{
			name:    "missing workspace",
			mutate:  func(c *Config) { c.Agent.Workspace = "" },
			wantSub: "agent.workspace",
		},
		{
			name:    "bad log level",
			mutate:  func(c *Config) { c.Server.LogLevel = "loud" },
			wantSub: "server.log_level",
		},
		{
			name: "postgres without dsn",
			mutate: func(c *Config) {
				c.Storage.Backend = StoragePostgres
				c.Storage.PostgresDSN = ""
			},
			wantSub: "storage.postgres_dsn",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg, err := LoadFromReader(strings.NewReader(validYAML))
			if err != nil {
				t.Fatalf("base config: %v", err)
			}
			tt.mutate(cfg)
			err = Validate(cfg)
			if err == nil {
				t.Fatal("expected validation error")
			}
			if !strings.Contains(err.Error(), tt.wantSub) {
				t.Errorf("error %q does not mention %q", err, tt.wantSub)
			}
		})
	}
}

func TestLoadExpandsEnv(t *testing.T) {
	t.Setenv("VOXCODE_TEST_TOKEN", "987:secret")

	path := filepath.Join(t.TempDir(), "config.yaml")
	content := strings.Replace(validYAML, `token: "123:abc"`, `token: "${VOXCODE_TEST_TOKEN}"`, 1)
	if err := os.WriteFile(path, []byte(content), 0o600); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if cfg.Telegram.Token != "987:secret" {
		t.Errorf("token: got %q, want expanded env value", cfg.Telegram.Token)
	}
}

func TestLoadMissingFile(t *testing.T) {
	if _, err := Load(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Fatal("expected error for missing file")
	}
}
