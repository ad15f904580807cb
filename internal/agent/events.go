package agent

import (
	"encoding/json"
	"path/filepath"
	"unicode/utf8"
)

// streamEvent is one line of the agent CLI's stream-json output. Only the
// fields the executor consumes are declared; everything else is ignored.
type streamEvent struct {
	Type      string `json:"type"`
	Subtype   string `json:"subtype"`
	SessionID string `json:"session_id"`
	Model     string `json:"model"`

	// assistant events
	Message struct {
		Content []contentBlock `json:"content"`
	} `json:"message"`

	// result events
	TotalCostUSD float64  `json:"total_cost_usd"`
	DurationMs   int64    `json:"duration_ms"`
	NumTurns     int      `json:"num_turns"`
	IsError      bool     `json:"is_error"`
	Errors       []string `json:"errors"`
	Usage        struct {
		InputTokens  int `json:"input_tokens"`
		OutputTokens int `json:"output_tokens"`
	} `json:"usage"`
}

// contentBlock is one element of an assistant message's content array,
// either a text block or a tool_use block.
type contentBlock struct {
	Type  string          `json:"type"`
	Text  string          `json:"text"`
	Name  string          `json:"name"`
	Input json.RawMessage `json:"input"`
}

// toolDetail extracts a short human-readable hint from a tool_use block's
// input: the file name for file tools, the (truncated) command for Bash.
func toolDetail(name string, input json.RawMessage) string {
	if len(input) == 0 {
		return ""
	}
	var in struct {
		FilePath string `json:"file_path"`
		Command  string `json:"command"`
	}
	if err := json.Unmarshal(input, &in); err != nil {
		return ""
	}
	switch name {
	case "Write", "Edit", "MultiEdit", "Read", "Create":
		if in.FilePath != "" {
			return filepath.Base(in.FilePath)
		}
	case "Bash":
		return truncate(in.Command, 40)
	}
	return ""
}

func truncate(s string, max int) string {
	if len(s) <= max {
		return s
	}
	// Back up to a rune boundary so the cut never emits invalid UTF-8.
	for max > 0 && !utf8.RuneStart(s[max]) {
		max--
	}
	return s[:max] + "..."
}
