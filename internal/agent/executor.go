// Package agent runs the coding agent CLI as a subprocess and parses its
// streaming JSON event output. Each invocation either starts a fresh agent
// session or resumes an existing one by session id.
package agent

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os/exec"
	"strconv"
	"strings"
	"time"
)

const (
	defaultTimeout  = time.Hour
	defaultMaxTurns = 50

	// maxLineBytes bounds a single stream-json line. Assistant messages with
	// large tool results can exceed bufio's default 64 KiB.
	maxLineBytes = 10 << 20
)

// ErrTimeout is returned when the agent process exceeded its deadline and was
// killed. The Result returned alongside carries any partial output.
var ErrTimeout = errors.New("agent: execution timed out")

// ProgressFunc is invoked for every tool_use event the agent emits, in order.
// step counts from 1. detail is a short hint (file name, truncated command)
// and may be empty.
type ProgressFunc func(step int, tool, detail string)

// Result is the outcome of one agent invocation.
type Result struct {
	// Output is the concatenated assistant text, or a placeholder when the
	// agent only used tools.
	Output string

	// SessionID identifies the agent session for later --resume calls.
	SessionID string

	Model        string
	CostUSD      float64
	Duration     time.Duration
	NumTurns     int
	InputTokens  int
	OutputTokens int

	// ToolsUsed holds the distinct tool names in first-use order.
	ToolsUsed []string
}

// Executor runs the agent binary inside a fixed workspace directory.
type Executor struct {
	binary    string
	workspace string
	maxTurns  int
	timeout   time.Duration
	log       *slog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

// WithMaxTurns caps the number of agentic turns per invocation.
func WithMaxTurns(n int) Option {
	return func(e *Executor) {
		if n > 0 {
			e.maxTurns = n
		}
	}
}

// WithTimeout sets the per-invocation deadline.
func WithTimeout(d time.Duration) Option {
	return func(e *Executor) {
		if d > 0 {
			e.timeout = d
		}
	}
}

// WithLogger sets the logger used for skipped-line and lifecycle events.
func WithLogger(log *slog.Logger) Option {
	return func(e *Executor) {
		e.log = log
	}
}

// NewExecutor creates an Executor for the given agent binary and workspace.
func NewExecutor(binary, workspace string, opts ...Option) (*Executor, error) {
	if binary == "" {
		return nil, errors.New("agent: binary must not be empty")
	}
	if workspace == "" {
		return nil, errors.New("agent: workspace must not be empty")
	}
	e := &Executor{
		binary:    binary,
		workspace: workspace,
		maxTurns:  defaultMaxTurns,
		timeout:   defaultTimeout,
		log:       slog.Default(),
	}
	for _, o := range opts {
		o(e)
	}
	return e, nil
}

// buildArgs constructs the CLI argv for one invocation. resumeID, when
// non-empty, continues an existing session.
func (e *Executor) buildArgs(prompt, resumeID string) []string {
	args := []string{
		"-p", prompt,
		"--output-format", "stream-json",
		"--verbose",
		"--max-turns", strconv.Itoa(e.maxTurns),
	}
	if resumeID != "" {
		args = append(args, "--resume", resumeID)
	}
	return args
}

// Run executes the agent with the given prompt, streaming tool-use progress
// through progress (which may be nil). On timeout it returns ErrTimeout
// together with whatever partial Result was accumulated.
func (e *Executor) Run(ctx context.Context, prompt, resumeID string, progress ProgressFunc) (Result, error) {
	ctx, cancel := context.WithTimeout(ctx, e.timeout)
	defer cancel()

	cmd := exec.CommandContext(ctx, e.binary, e.buildArgs(prompt, resumeID)...)
	cmd.Dir = e.workspace

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return Result{}, fmt.Errorf("agent: stdout pipe: %w", err)
	}
	var stderr bytes.Buffer
	cmd.Stderr = &stderr

	start := time.Now()
	if err := cmd.Start(); err != nil {
		return Result{}, fmt.Errorf("agent: start %s: %w", e.binary, err)
	}
	e.log.Info("agent started", "resume", resumeID != "", "max_turns", e.maxTurns)

	res, lastLine := e.consumeStream(stdout, progress)
	waitErr := cmd.Wait()
	res.Duration = time.Since(start)

	if ctx.Err() == context.DeadlineExceeded {
		return res, fmt.Errorf("%w after %s", ErrTimeout, e.timeout)
	}
	if waitErr != nil {
		if msg := extractError(lastLine); msg != "" {
			return res, fmt.Errorf("agent: %s", msg)
		}
		return res, fmt.Errorf("agent: process failed: %w: %s", waitErr, firstStderrLine(stderr.String()))
	}

	if res.Output == "" && len(res.ToolsUsed) == 0 {
		return res, errors.New("agent: no output produced")
	}
	if res.Output == "" {
		res.Output = fmt.Sprintf("Task completed using %d tool(s) with no text output.", len(res.ToolsUsed))
	}
	return res, nil
}

// consumeStream reads stream-json lines from r until EOF, folding them into a
// Result. It returns the last raw line for error extraction after a non-zero
// exit. Malformed lines are logged at debug and skipped.
func (e *Executor) consumeStream(r io.Reader, progress ProgressFunc) (Result, []byte) {
	var (
		res      Result
		text     strings.Builder
		seen     = map[string]bool{}
		step     int
		lastLine []byte
	)

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)

	for sc.Scan() {
		line := bytes.TrimSpace(sc.Bytes())
		if len(line) == 0 {
			continue
		}
		lastLine = append(lastLine[:0], line...)

		ev, ok := parseEvent(line)
		if !ok {
			e.log.Debug("skipping malformed agent output line", "len", len(line))
			continue
		}

		switch ev.Type {
		case "system":
			if ev.Subtype == "init" {
				res.SessionID = ev.SessionID
				res.Model = ev.Model
			}
		case "assistant":
			for _, block := range ev.Message.Content {
				switch block.Type {
				case "text":
					text.WriteString(block.Text)
				case "tool_use":
					step++
					if !seen[block.Name] {
						seen[block.Name] = true
						res.ToolsUsed = append(res.ToolsUsed, block.Name)
					}
					if progress != nil {
						progress(step, block.Name, toolDetail(block.Name, block.Input))
					}
				}
			}
		case "result":
			res.CostUSD = ev.TotalCostUSD
			res.NumTurns = ev.NumTurns
			res.InputTokens = ev.Usage.InputTokens
			res.OutputTokens = ev.Usage.OutputTokens
			if res.SessionID == "" {
				res.SessionID = ev.SessionID
			}
		}
	}
	if err := sc.Err(); err != nil {
		e.log.Warn("agent output stream ended early", "error", err)
	}

	res.Output = strings.TrimSpace(text.String())
	return res, lastLine
}

// parseEvent decodes one stream-json line.
func parseEvent(line []byte) (streamEvent, bool) {
	var ev streamEvent
	if err := json.Unmarshal(line, &ev); err != nil {
		return streamEvent{}, false
	}
	if ev.Type == "" {
		return streamEvent{}, false
	}
	return ev, true
}

// extractError pulls a human-readable message out of the final result event
// when the agent exits non-zero mid-execution.
func extractError(lastLine []byte) string {
	if len(lastLine) == 0 {
		return ""
	}
	ev, ok := parseEvent(lastLine)
	if !ok || ev.Type != "result" {
		return ""
	}
	if ev.Subtype == "error_during_execution" && len(ev.Errors) > 0 {
		return ev.Errors[0]
	}
	if ev.IsError && ev.Subtype != "" {
		return strings.ReplaceAll(ev.Subtype, "_", " ")
	}
	return ""
}

func firstStderrLine(s string) string {
	s = strings.TrimSpace(s)
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	return truncate(s, 200)
}
