// Package gitops wraps the git CLI for the workspace repository. All
// repository state lives in the workspace; this package only shells out and
// parses the output.
package gitops

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"os/exec"
	"strings"
	"time"
)

const commandTimeout = 30 * time.Second

// ErrNothingToCommit is returned by Commit when the index is empty.
var ErrNothingToCommit = errors.New("gitops: nothing to commit")

// ErrNotARepo is returned by operations that require an initialised repo.
var ErrNotARepo = errors.New("gitops: workspace is not a git repository")

// Git runs git commands against a fixed workspace directory.
type Git struct {
	workspace string
	binary    string
}

// New returns a Git wrapper for the workspace directory.
func New(workspace string) *Git {
	return &Git{workspace: workspace, binary: "git"}
}

// run executes git with -C workspace and returns combined trimmed stdout.
func (g *Git) run(ctx context.Context, args ...string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, commandTimeout)
	defer cancel()

	full := append([]string{"-C", g.workspace}, args...)
	cmd := exec.CommandContext(ctx, g.binary, full...)
	var stdout, stderr bytes.Buffer
	cmd.Stdout = &stdout
	cmd.Stderr = &stderr

	if err := cmd.Run(); err != nil {
		msg := strings.TrimSpace(stderr.String())
		if msg == "" {
			msg = strings.TrimSpace(stdout.String())
		}
		return "", fmt.Errorf("gitops: git %s: %w: %s", args[0], err, msg)
	}
	return strings.TrimSpace(stdout.String()), nil
}

// Version reports the installed git version.
func (g *Git) Version(ctx context.Context) (string, error) {
	return g.run(ctx, "--version")
}

// IsRepo reports whether the workspace is inside a git work tree.
func (g *Git) IsRepo(ctx context.Context) bool {
	out, err := g.run(ctx, "rev-parse", "--is-inside-work-tree")
	return err == nil && out == "true"
}

// Init initialises a repository in the workspace and configures the bot's
// commit identity locally.
func (g *Git) Init(ctx context.Context, name, email string) error {
	if g.IsRepo(ctx) {
		return errors.New("gitops: repository already initialised")
	}
	if _, err := g.run(ctx, "init"); err != nil {
		return err
	}
	if _, err := g.run(ctx, "config", "user.name", name); err != nil {
		return err
	}
	if _, err := g.run(ctx, "config", "user.email", email); err != nil {
		return err
	}
	return nil
}

// Status returns the parsed working tree status.
func (g *Git) Status(ctx context.Context) (Status, error) {
	if !g.IsRepo(ctx) {
		return Status{}, ErrNotARepo
	}
	out, err := g.run(ctx, "status", "--porcelain", "--branch")
	if err != nil {
		return Status{}, err
	}
	return parsePorcelain(out), nil
}

// Diff returns the full unified diff of unstaged and staged changes against
// HEAD. Empty when the tree is clean.
func (g *Git) Diff(ctx context.Context) (string, error) {
	if !g.IsRepo(ctx) {
		return "", ErrNotARepo
	}
	return g.run(ctx, "diff", "HEAD")
}

// DiffStat returns the parsed --stat summary of changes against HEAD.
func (g *Git) DiffStat(ctx context.Context) (DiffStat, error) {
	if !g.IsRepo(ctx) {
		return DiffStat{}, ErrNotARepo
	}
	out, err := g.run(ctx, "diff", "HEAD", "--stat")
	if err != nil {
		return DiffStat{}, err
	}
	return parseDiffStat(out), nil
}

// AddAll stages every change in the workspace.
func (g *Git) AddAll(ctx context.Context) error {
	_, err := g.run(ctx, "add", "-A")
	return err
}

// Commit commits the staged changes and returns the short hash.
// ErrNothingToCommit is returned when the index matches HEAD.
func (g *Git) Commit(ctx context.Context, message string) (string, error) {
	// "nothing to commit" arrives on stdout with a non-zero exit; run folds
	// stdout into the error when stderr is empty.
	if _, err := g.run(ctx, "commit", "-m", message); err != nil {
		if strings.Contains(err.Error(), "nothing to commit") {
			return "", ErrNothingToCommit
		}
		return "", err
	}
	return g.run(ctx, "rev-parse", "--short", "HEAD")
}

// Log returns the most recent commits, newest first.
func (g *Git) Log(ctx context.Context, limit int) ([]Commit, error) {
	if !g.IsRepo(ctx) {
		return nil, ErrNotARepo
	}
	if limit <= 0 {
		limit = 10
	}
	out, err := g.run(ctx, "log", fmt.Sprintf("-%d", limit), "--pretty=format:%h|%an|%ar|%s")
	if err != nil {
		// A freshly initialised repo has no HEAD yet.
		if strings.Contains(err.Error(), "does not have any commits") {
			return nil, nil
		}
		return nil, err
	}
	return parseLog(out), nil
}

// Branches lists local branch names, the current branch first.
func (g *Git) Branches(ctx context.Context) ([]string, error) {
	if !g.IsRepo(ctx) {
		return nil, ErrNotARepo
	}
	out, err := g.run(ctx, "branch", "--format=%(refname:short)")
	if err != nil {
		return nil, err
	}
	current, _ := g.run(ctx, "rev-parse", "--abbrev-ref", "HEAD")

	var branches []string
	if current != "" {
		branches = append(branches, current)
	}
	for _, line := range strings.Split(out, "\n") {
		b := strings.TrimSpace(line)
		if b != "" && b != current {
			branches = append(branches, b)
		}
	}
	return branches, nil
}

// CloneOrPull clones url into dest, or pulls when dest is already a clone.
func (g *Git) CloneOrPull(ctx context.Context, url, dest string) error {
	ctx, cancel := context.WithTimeout(ctx, 5*time.Minute)
	defer cancel()

	sub := New(dest)
	if sub.IsRepo(ctx) {
		_, err := sub.run(ctx, "pull", "--ff-only")
		return err
	}
	cmd := exec.CommandContext(ctx, g.binary, "clone", url, dest)
	var stderr bytes.Buffer
	cmd.Stderr = &stderr
	if err := cmd.Run(); err != nil {
		return fmt.Errorf("gitops: git clone: %w: %s", err, strings.TrimSpace(stderr.String()))
	}
	return nil
}
