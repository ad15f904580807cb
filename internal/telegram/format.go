package telegram

import (
	"fmt"
	"strings"
	"time"
	"unicode/utf8"
)

const (
	// telegramMessageLimit is the Bot API hard cap per message. splitMessage
	// targets maxChunk to leave headroom for continuation markers.
	telegramMessageLimit = 4096
	maxChunk             = 3900

	continuedMarker = "_(...continued)_\n\n"
)

// splitMessage splits text into chunks that fit a Telegram message, breaking
// at the friendliest boundary available: end of a code block, paragraph,
// line, sentence, word, then a hard cut on a rune boundary. A cut inside a
// code block closes the fence and reopens it in the next chunk, so every
// chunk renders as valid Markdown. Chunks after the first are prefixed with a
// continuation marker.
func splitMessage(text string) []string {
	if len(text) <= maxChunk {
		return []string{text}
	}

	var chunks []string
	remaining := text
	for len(remaining) > maxChunk {
		cut := splitPoint(remaining, maxChunk)
		chunk := strings.TrimRight(remaining[:cut], "\n ")
		rest := strings.TrimLeft(remaining[cut:], "\n ")
		if !codeBlockBalanced(chunk) {
			chunk += "\n```"
			rest = "```\n" + rest
		}
		chunks = append(chunks, chunk)
		remaining = continuedMarker + rest
	}
	if remaining != "" {
		chunks = append(chunks, remaining)
	}
	return chunks
}

// splitPoint finds the best boundary at or before max.
func splitPoint(s string, max int) int {
	window := s[:max]

	// Prefer ending right after a closed code block.
	if i := strings.LastIndex(window, "```\n"); i > 0 && codeBlockBalanced(s[:i+4]) {
		return i + 4
	}
	for _, sep := range []string{"\n\n", "\n", ". ", " "} {
		if i := strings.LastIndex(window, sep); i > max/2 {
			return i + len(sep)
		}
	}
	return runeBoundary(s, max)
}

// runeBoundary returns the largest cut <= max where s[:cut] ends on a whole
// rune. Requires max < len(s).
func runeBoundary(s string, max int) int {
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return max
}

// codeBlockBalanced reports whether s contains an even number of ``` fences.
func codeBlockBalanced(s string) bool {
	return strings.Count(s, "```")%2 == 0
}

// toolsLine renders the set of tools an agent run used.
func toolsLine(tools []string) string {
	if len(tools) == 0 {
		return ""
	}
	return "🔧 Tools: " + strings.Join(tools, ", ")
}

// progressStep renders one tool-use event for the live status message.
func progressStep(step int, tool, detail string) string {
	if detail != "" {
		return fmt.Sprintf("🔧 `%s`: `%s` (step %d)", tool, detail, step)
	}
	return fmt.Sprintf("🔧 `%s` (step %d)", tool, step)
}

// deepgramPerMinuteUSD is the published pay-as-you-go rate used for the cost
// estimate in the details footer.
const deepgramPerMinuteUSD = 0.0043

// resultFooter renders the statistics block appended to a completed run.
func resultFooter(costUSD float64, duration time.Duration, inTokens, outTokens int, audioDuration time.Duration) string {
	var b strings.Builder
	b.WriteString(fmt.Sprintf("⏱ %s", duration.Round(time.Second)))
	if inTokens > 0 || outTokens > 0 {
		b.WriteString(fmt.Sprintf(" · 🎫 %d in / %d out", inTokens, outTokens))
	}
	total := costUSD
	if audioDuration > 0 {
		total += audioDuration.Minutes() * deepgramPerMinuteUSD
	}
	if total > 0 {
		b.WriteString(fmt.Sprintf(" · 💰 $%.4f", total))
	}
	return b.String()
}

// truncateText shortens s to at most max bytes with an ellipsis, never
// splitting a multibyte rune.
func truncateText(s string, max int) string {
	if len(s) <= max {
		return s
	}
	if max <= 3 {
		return s[:runeBoundary(s, max)]
	}
	return s[:runeBoundary(s, max-3)] + "..."
}

// codeBlock wraps s in a fenced Markdown code block.
func codeBlock(s string) string {
	return "```\n" + strings.TrimRight(s, "\n") + "\n```"
}
