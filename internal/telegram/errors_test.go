package telegram

import (
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/voxcodehq/voxcode/internal/agent"
	"github.com/voxcodehq/voxcode/internal/resilience"
	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{name: "nil", err: nil, want: ""},
		{name: "empty transcript", err: fmt.Errorf("resilience: %w", stt.ErrEmptyTranscript), want: "🎤"},
		{name: "agent timeout", err: fmt.Errorf("%w after 1h", agent.ErrTimeout), want: "⏱"},
		{name: "all providers down", err: resilience.ErrAllProvidersFailed, want: "📡"},
		{name: "permission", err: errors.New("open /srv/ws/main.go: permission denied"), want: "🔒"},
		{name: "missing binary", err: errors.New(`exec: "ffmpeg": executable file not found in $PATH`), want: "🔍"},
		{name: "rate limited", err: errors.New("deepgram: transcribe: 429 Too Many Requests"), want: "🚦"},
		{name: "bad key", err: errors.New("deepgram: transcribe: 401 Invalid credentials"), want: "🔑"},
		{name: "network", err: errors.New("dial tcp 10.0.0.1:443: connection refused"), want: "📡"},
		{name: "fallback", err: errors.New("something very strange"), want: "❌"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := userMessage(tt.err)
			if !strings.HasPrefix(got, tt.want) {
				t.Errorf("userMessage(%v) = %q, want prefix %q", tt.err, got, tt.want)
			}
		})
	}
}

func TestUserMessageTruncatesUnknownErrors(t *testing.T) {
	err := errors.New(strings.Repeat("x", 500))
	got := userMessage(err)
	if len(got) > 250 {
		t.Errorf("userMessage() is %d bytes, expected the raw error truncated", len(got))
	}
}
