package agent

import (
	"strings"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestExecutor(t *testing.T, opts ...Option) *Executor {
	t.Helper()
	e, err := NewExecutor("claude", t.TempDir(), opts...)
	if err != nil {
		t.Fatalf("NewExecutor: %v", err)
	}
	return e
}

func TestNewExecutorValidation(t *testing.T) {
	if _, err := NewExecutor("", "/tmp"); err == nil {
		t.Error("expected error for empty binary")
	}
	if _, err := NewExecutor("claude", ""); err == nil {
		t.Error("expected error for empty workspace")
	}
}

func TestBuildArgs(t *testing.T) {
	e := newTestExecutor(t, WithMaxTurns(25))

	got := e.buildArgs("fix the bug", "")
	want := []string{
		"-p", "fix the bug",
		"--output-format", "stream-json",
		"--verbose",
		"--max-turns", "25",
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("fresh session args mismatch (-want +got):\n%s", diff)
	}

	got = e.buildArgs("continue", "abc-123")
	wantResume := []string{
		"-p", "continue",
		"--output-format", "stream-json",
		"--verbose",
		"--max-turns", "25",
		"--resume", "abc-123",
	}
	if diff := cmp.Diff(wantResume, got); diff != "" {
		t.Errorf("resumed session args mismatch (-want +got):\n%s", diff)
	}
}

func TestConsumeStream(t *testing.T) {
	stream := strings.Join([]string{
		`{"type":"system","subtype":"init","session_id":"sess-1","model":"sonnet-4"}`,
		`not json at all`,
		`{"type":"assistant","message":{"content":[{"type":"text","text":"Working on it. "}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/ws/main.go"}},{"type":"tool_use","name":"Bash","input":{"command":"go test ./..."}}]}}`,
		`{"type":"assistant","message":{"content":[{"type":"tool_use","name":"Read","input":{"file_path":"/ws/util.go"}},{"type":"text","text":"Done."}]}}`,
		`{"type":"result","subtype":"success","total_cost_usd":0.0421,"duration_ms":5300,"num_turns":4,"usage":{"input_tokens":1200,"output_tokens":350}}`,
	}, "\n")

	type call struct {
		Step   int
		Tool   string
		Detail string
	}
	var calls []call
	e := newTestExecutor(t)
	res, _ := e.consumeStream(strings.NewReader(stream), func(step int, tool, detail string) {
		calls = append(calls, call{step, tool, detail})
	})

	if res.SessionID != "sess-1" {
		t.Errorf("session id: got %q", res.SessionID)
	}
	if res.Model != "sonnet-4" {
		t.Errorf("model: got %q", res.Model)
	}
	if res.Output != "Working on it. Done." {
		t.Errorf("output: got %q", res.Output)
	}
	if res.CostUSD != 0.0421 {
		t.Errorf("cost: got %v", res.CostUSD)
	}
	if res.NumTurns != 4 || res.InputTokens != 1200 || res.OutputTokens != 350 {
		t.Errorf("usage: got turns=%d in=%d out=%d", res.NumTurns, res.InputTokens, res.OutputTokens)
	}
	if diff := cmp.Diff([]string{"Read", "Bash"}, res.ToolsUsed); diff != "" {
		t.Errorf("tools used (-want +got):\n%s", diff)
	}

	wantCalls := []call{
		{1, "Read", "main.go"},
		{2, "Bash", "go test ./..."},
		{3, "Read", "util.go"},
	}
	if diff := cmp.Diff(wantCalls, calls); diff != "" {
		t.Errorf("progress calls (-want +got):\n%s", diff)
	}
}

func TestConsumeStreamSessionIDFallback(t *testing.T) {
	stream := `{"type":"result","subtype":"success","session_id":"from-result"}`
	e := newTestExecutor(t)
	res, _ := e.consumeStream(strings.NewReader(stream), nil)
	if res.SessionID != "from-result" {
		t.Errorf("session id fallback: got %q", res.SessionID)
	}
}

func TestExtractError(t *testing.T) {
	tests := []struct {
		name string
		line string
		want string
	}{
		{
			name: "execution error with message",
			line: `{"type":"result","subtype":"error_during_execution","is_error":true,"errors":["rate limit exceeded"]}`,
			want: "rate limit exceeded",
		},
		{
			name: "error subtype without messages",
			line: `{"type":"result","subtype":"error_max_turns","is_error":true}`,
			want: "error max turns",
		},
		{
			name: "not a result event",
			line: `{"type":"assistant","message":{"content":[]}}`,
			want: "",
		},
		{
			name: "empty line",
			line: "",
			want: "",
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := extractError([]byte(tt.line)); got != tt.want {
				t.Errorf("extractError = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestToolDetail(t *testing.T) {
	tests := []struct {
		name  string
		tool  string
		input string
		want  string
	}{
		{"write file", "Write", `{"file_path":"/ws/internal/app/app.go"}`, "app.go"},
		{"edit file", "Edit", `{"file_path":"main.go"}`, "main.go"},
		{"bash short", "Bash", `{"command":"ls -la"}`, "ls -la"},
		{"bash long", "Bash", `{"command":"` + strings.Repeat("x", 60) + `"}`, strings.Repeat("x", 40) + "..."},
		// 40 bytes falls mid-rune (п is 2 bytes); the cut backs up to 39.
		{"bash long multibyte", "Bash", `{"command":"x` + strings.Repeat("п", 30) + `"}`, "x" + strings.Repeat("п", 19) + "..."},
		{"unknown tool", "WebSearch", `{"query":"golang"}`, ""},
		{"empty input", "Bash", "", ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := toolDetail(tt.tool, []byte(tt.input)); got != tt.want {
				t.Errorf("toolDetail = %q, want %q", got, tt.want)
			}
		})
	}
}
