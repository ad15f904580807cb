package telegram

import (
	"context"
	"errors"
	"strings"

	"github.com/voxcodehq/voxcode/internal/agent"
	"github.com/voxcodehq/voxcode/internal/resilience"
	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

// userMessage maps an internal error to a short chat reply. The raw error
// text stays in the logs; users get a category and a next step.
func userMessage(err error) string {
	switch {
	case err == nil:
		return ""
	case errors.Is(err, stt.ErrEmptyTranscript):
		return "🎤 I couldn't hear anything in that voice note. Try again a bit closer to the microphone."
	case errors.Is(err, agent.ErrTimeout):
		return "⏱ The agent ran out of time. Try a smaller task, or /compact to shrink the session."
	case errors.Is(err, resilience.ErrAllProvidersFailed):
		return "📡 Transcription is unavailable right now. Both providers failed; try again in a minute."
	case errors.Is(err, context.DeadlineExceeded):
		return "⏱ That took too long and was cancelled. Please try again."
	}

	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "permission denied"):
		return "🔒 Permission denied while touching the workspace. Check file ownership on the server."
	case strings.Contains(msg, "no such file"), strings.Contains(msg, "not found"), strings.Contains(msg, "executable file not found"):
		return "🔍 A required file or binary is missing on the server. /info shows what is configured."
	case strings.Contains(msg, "rate limit"), strings.Contains(msg, "429"):
		return "🚦 Rate limited by an upstream API. Wait a moment and retry."
	case strings.Contains(msg, "unauthorized"), strings.Contains(msg, "invalid credentials"), strings.Contains(msg, "401"), strings.Contains(msg, "api key"):
		return "🔑 An API key was rejected. The server configuration needs attention."
	case strings.Contains(msg, "out of memory"), strings.Contains(msg, "cannot allocate"):
		return "💾 The server ran out of memory. Try a smaller task."
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "no route to host"),
		strings.Contains(msg, "dial tcp"), strings.Contains(msg, "network"):
		return "📡 A network error occurred talking to an upstream service. Please retry."
	}
	return "❌ Something went wrong: " + truncateText(err.Error(), 200)
}
