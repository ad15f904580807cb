package telegram

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/voxcodehq/voxcode/internal/gitops"
	"github.com/voxcodehq/voxcode/internal/session"
)

const helpText = `*Voice-driven coding agent*

Send a voice note or a text message and it becomes a prompt for the coding agent working in the server workspace. When a run changes files you get an approve/reject keyboard; approving commits the change.

*Session*
/status - current session and working tree
/clear - drop the session and any pending change
/compact - start a fresh agent session
/sessions - list stored agent sessions
/sessioninfo - details of the active session
/newsession - force a brand new session
/cleansessions - delete sessions older than 30 days

*Workspace and git*
/info - server and tool versions
/workspace - what is in the workspace
/repo owner/name - clone or update a GitHub repository
/gitinit - initialise a repository
/gitstatus - working tree status
/gitdiff - diff against HEAD
/commit [message] - commit everything staged and unstaged
/gitlog - recent commits`

// handleCommand routes one slash command.
func (b *Bot) handleCommand(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	args := strings.TrimSpace(msg.CommandArguments())

	b.metrics.RecordUpdate(ctx, "command", "ok")
	b.log.Info("handling command", "command", msg.Command(), "user_id", userID)

	switch msg.Command() {
	case "start":
		b.send(chatID, "👋 Hi! Send me a voice note and I'll turn it into a coding task.\n\n"+helpText)
	case "help":
		b.send(chatID, helpText)
	case "info":
		b.cmdInfo(ctx, chatID)
	case "status":
		b.cmdStatus(ctx, chatID, userID)
	case "clear":
		b.cmdClear(ctx, chatID, userID)
	case "compact":
		b.cmdCompact(ctx, chatID, userID)
	case "workspace":
		b.cmdWorkspace(chatID)
	case "sessions":
		b.send(chatID, b.sessionListView())
	case "sessioninfo":
		b.cmdSessionInfo(ctx, chatID, userID)
	case "newsession":
		b.sendWithKeyboard(chatID, "🆕 Start a brand new agent session? The current conversation context will be lost.", confirmKeyboard("newsession"))
	case "cleansessions":
		b.sendWithKeyboard(chatID, "🧹 Delete all agent sessions older than 30 days?", confirmKeyboard("cleansessions"))
	case "repo":
		b.cmdRepo(ctx, chatID, userID, args)
	case "gitinit":
		b.cmdGitInit(ctx, chatID)
	case "gitstatus":
		b.sendWithKeyboard(chatID, b.gitStatusView(ctx), gitKeyboard())
	case "gitdiff":
		b.send(chatID, b.gitDiffView(ctx))
	case "commit":
		b.cmdCommit(ctx, chatID, userID, args)
	case "gitlog":
		b.send(chatID, b.gitLogView(ctx))
	default:
		b.send(chatID, "🤷 Unknown command. /help lists what I understand.")
	}
}

// cmdInfo reports tool versions and workspace health.
func (b *Bot) cmdInfo(ctx context.Context, chatID int64) {
	probe := func(f func(context.Context) (string, error)) string {
		out, err := f(ctx)
		if err != nil {
			return "unavailable"
		}
		return out
	}

	writable := "yes"
	if f, err := os.CreateTemp(b.opts.Workspace, ".voxcode-probe-*"); err != nil {
		writable = "no: " + err.Error()
	} else {
		f.Close()
		os.Remove(f.Name())
	}

	var sb strings.Builder
	sb.WriteString("ℹ️ *Server info*\n\n")
	fmt.Fprintf(&sb, "Agent binary: `%s`\n", b.opts.AgentBinary)
	fmt.Fprintf(&sb, "ffmpeg: `%s`\n", probe(b.converter.Version))
	fmt.Fprintf(&sb, "git: `%s`\n", probe(b.git.Version))
	fmt.Fprintf(&sb, "STT: `%s`\n", b.transcriber.Name())
	fmt.Fprintf(&sb, "Workspace: `%s` (writable: %s)\n", b.opts.Workspace, writable)
	fmt.Fprintf(&sb, "Uptime: %s", time.Since(b.startedAt).Round(time.Second))
	b.send(chatID, sb.String())
}

// cmdStatus summarises the user's session and the working tree.
func (b *Bot) cmdStatus(ctx context.Context, chatID, userID int64) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}

	var sb strings.Builder
	sb.WriteString("📊 *Status*\n\n")
	if rec.AgentSessionID == "" {
		sb.WriteString("Session: none yet\n")
	} else {
		fmt.Fprintf(&sb, "Session: `%s` (%d turns)\n", rec.AgentSessionID, rec.TurnCount)
	}
	if rec.Pending != nil {
		fmt.Fprintf(&sb, "Pending change: _%s_\n", truncateText(rec.Pending.Prompt, 80))
	} else {
		sb.WriteString("Pending change: none\n")
	}
	if rec.RepoURL != "" {
		fmt.Fprintf(&sb, "Repository: %s\n", rec.RepoURL)
	}

	switch st, err := b.git.Status(ctx); {
	case errors.Is(err, gitops.ErrNotARepo):
		sb.WriteString("Workspace: not a git repository (/gitinit)")
	case err != nil:
		sb.WriteString("Workspace: git status failed")
	case st.Clean():
		fmt.Fprintf(&sb, "Workspace: clean on `%s`", st.Branch)
	default:
		fmt.Fprintf(&sb, "Workspace: `%s`, %d staged / %d modified / %d untracked",
			st.Branch, len(st.Staged), len(st.Modified), len(st.Untracked))
	}
	b.send(chatID, sb.String())
}

// cmdClear resets the session, asking for confirmation first when a pending
// change would be dropped with it.
func (b *Bot) cmdClear(ctx context.Context, chatID, userID int64) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.Pending != nil {
		b.sendWithKeyboard(chatID,
			"⚠️ You have an unreviewed change:\n_"+truncateText(rec.Pending.Prompt, 120)+"_\n\nClearing drops it without committing.",
			clearConfirmKeyboard())
		return
	}
	rec.ResetSession()
	b.saveRecord(ctx, rec)
	b.send(chatID, "🧹 Session cleared. The next message starts fresh.")
}

// cmdCompact starts a new agent session, keeping workspace and history.
func (b *Bot) cmdCompact(ctx context.Context, chatID, userID int64) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	turns := rec.TurnCount
	rec.ResetSession()
	b.saveRecord(ctx, rec)
	b.send(chatID, fmt.Sprintf("🗜 Compacted after %d turns. The next prompt starts a fresh agent session in the same workspace.", turns))
}

const (
	workspaceMaxGroups      = 15
	workspaceMaxFilesPerDir = 8
)

// cmdWorkspace lists the workspace contents grouped by top-level directory.
func (b *Bot) cmdWorkspace(chatID int64) {
	listing, err := workspaceListing(b.opts.Workspace)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if listing == "" {
		b.send(chatID, "📁 The workspace is empty.")
		return
	}
	b.send(chatID, "📁 *Workspace* `"+b.opts.Workspace+"`\n\n"+listing)
}

func workspaceListing(root string) (string, error) {
	entries, err := os.ReadDir(root)
	if err != nil {
		return "", fmt.Errorf("telegram: read workspace: %w", err)
	}

	var sb strings.Builder
	groups := 0
	for _, e := range entries {
		name := e.Name()
		if strings.HasPrefix(name, ".") {
			continue
		}
		if groups >= workspaceMaxGroups {
			fmt.Fprintf(&sb, "... and %d more entries\n", len(entries)-groups)
			break
		}
		groups++
		if !e.IsDir() {
			fmt.Fprintf(&sb, "`%s`\n", name)
			continue
		}

		files, total := dirSample(filepath.Join(root, name))
		fmt.Fprintf(&sb, "`%s/` (%d files)\n", name, total)
		for _, f := range files {
			fmt.Fprintf(&sb, "  `%s`\n", f)
		}
		if total > len(files) {
			fmt.Fprintf(&sb, "  ...\n")
		}
	}
	return sb.String(), nil
}

// dirSample walks dir and returns the first few file paths relative to it,
// plus the total file count. Hidden directories are skipped.
func dirSample(dir string) (sample []string, total int) {
	filepath.WalkDir(dir, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return nil
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != dir {
				return filepath.SkipDir
			}
			return nil
		}
		total++
		if len(sample) < workspaceMaxFilesPerDir {
			if rel, err := filepath.Rel(dir, path); err == nil {
				sample = append(sample, rel)
			}
		}
		return nil
	})
	return sample, total
}

// cmdSessionInfo shows the on-disk state of the active agent session.
func (b *Bot) cmdSessionInfo(ctx context.Context, chatID, userID int64) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.AgentSessionID == "" {
		b.sendWithKeyboard(chatID, "ℹ️ No active session yet. Send a prompt to start one.", sessionKeyboard())
		return
	}

	info, err := b.sessions.Info(rec.AgentSessionID)
	if err != nil {
		b.send(chatID, fmt.Sprintf("ℹ️ Session `%s` (%d turns), no session file found yet.", rec.AgentSessionID, rec.TurnCount))
		return
	}
	b.sendWithKeyboard(chatID, fmt.Sprintf(
		"ℹ️ *Session* `%s`\n\nTurns: %d\nMessages on disk: %d\nSize: %.1f KiB\nLast activity: %s",
		info.ID, rec.TurnCount, info.Messages, float64(info.SizeBytes)/1024,
		info.ModifiedAt.Format("2006-01-02 15:04")), sessionKeyboard())
}

// sessionListView renders the stored agent sessions, newest first.
func (b *Bot) sessionListView() string {
	infos, err := b.sessions.List()
	if err != nil {
		return userMessage(err)
	}
	if len(infos) == 0 {
		return "📚 No stored sessions."
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📚 *%d stored session(s)*\n\n", len(infos))
	for i, info := range infos {
		if i >= 10 {
			fmt.Fprintf(&sb, "... and %d more", len(infos)-i)
			break
		}
		fmt.Fprintf(&sb, "`%s` · %.1f KiB · %s\n",
			truncateText(info.ID, 16), float64(info.SizeBytes)/1024, info.ModifiedAt.Format("Jan 2 15:04"))
	}
	return sb.String()
}

// cmdRepo clones or updates a GitHub repository into the workspace and points
// the session at it.
func (b *Bot) cmdRepo(ctx context.Context, chatID, userID int64, args string) {
	parts := strings.Split(args, "/")
	if args == "" || len(parts) != 2 || parts[0] == "" || parts[1] == "" {
		b.send(chatID, "Usage: /repo owner/name")
		return
	}
	owner, name := parts[0], strings.TrimSuffix(parts[1], ".git")

	cloneURL := fmt.Sprintf("https://github.com/%s/%s.git", owner, name)
	if token := os.Getenv("GITHUB_TOKEN"); token != "" {
		cloneURL = fmt.Sprintf("https://x-access-token:%s@github.com/%s/%s.git", token, owner, name)
	}
	dest := filepath.Join(b.opts.Workspace, name)

	b.send(chatID, fmt.Sprintf("⬇️ Fetching `%s/%s`...", owner, name))
	start := time.Now()
	err := b.git.CloneOrPull(ctx, cloneURL, dest)
	b.metrics.GitDuration.Record(ctx, time.Since(start).Seconds())
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}

	rec, lerr := b.loadRecord(ctx, userID)
	if lerr != nil {
		b.send(chatID, userMessage(lerr))
		return
	}
	rec.ResetSession()
	rec.RepoURL = fmt.Sprintf("https://github.com/%s/%s", owner, name)
	rec.RepoPath = dest
	b.saveRecord(ctx, rec)

	b.send(chatID, fmt.Sprintf("✅ `%s/%s` is ready at `%s`. Session reset; your next prompt works against it.", owner, name, dest))
}

// cmdGitInit initialises the workspace repository.
func (b *Bot) cmdGitInit(ctx context.Context, chatID int64) {
	err := b.git.Init(ctx, b.opts.GitAuthorName, b.opts.GitAuthorEmail)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	b.send(chatID, "✅ Initialised a git repository in the workspace.")
}

// cmdCommit commits everything in the working tree, with an optional custom
// message; otherwise the message derives from the changed files.
func (b *Bot) cmdCommit(ctx context.Context, chatID, userID int64, message string) {
	start := time.Now()
	hash, err := b.commitAll(ctx, message)
	b.metrics.GitDuration.Record(ctx, time.Since(start).Seconds())

	switch {
	case errors.Is(err, gitops.ErrNothingToCommit):
		b.send(chatID, "✨ Nothing to commit; the working tree is clean.")
		return
	case err != nil:
		b.send(chatID, userMessage(err))
		return
	}

	rec, lerr := b.loadRecord(ctx, userID)
	if lerr == nil && rec.Pending != nil {
		rec.Resolve(session.StateApproved)
		b.saveRecord(ctx, rec)
	}
	b.send(chatID, "✅ Committed as `"+hash+"`.")
}

// commitAll stages everything and commits. An empty message is derived from
// the diff stat before staging.
func (b *Bot) commitAll(ctx context.Context, message string) (string, error) {
	if message == "" {
		if ds, err := b.git.DiffStat(ctx); err == nil {
			sort.Strings(ds.Files)
			message = gitops.CommitMessage(ds.Files)
		} else {
			message = gitops.CommitMessage(nil)
		}
	}
	if err := b.git.AddAll(ctx); err != nil {
		return "", err
	}
	return b.git.Commit(ctx, message)
}

// gitStatusView renders the working tree status for chat.
func (b *Bot) gitStatusView(ctx context.Context) string {
	st, err := b.git.Status(ctx)
	if errors.Is(err, gitops.ErrNotARepo) {
		return "📊 The workspace is not a git repository. /gitinit creates one."
	}
	if err != nil {
		return userMessage(err)
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "📊 *Branch* `%s`", st.Branch)
	if st.Ahead > 0 || st.Behind > 0 {
		fmt.Fprintf(&sb, " (ahead %d, behind %d)", st.Ahead, st.Behind)
	}
	sb.WriteString("\n")
	if st.Clean() {
		sb.WriteString("\nWorking tree clean ✨")
		return sb.String()
	}
	writeFileList := func(label string, files []string) {
		if len(files) == 0 {
			return
		}
		fmt.Fprintf(&sb, "\n*%s* (%d)\n", label, len(files))
		for i, f := range files {
			if i >= 10 {
				fmt.Fprintf(&sb, "  ... and %d more\n", len(files)-i)
				break
			}
			fmt.Fprintf(&sb, "  `%s`\n", f)
		}
	}
	writeFileList("Staged", st.Staged)
	writeFileList("Modified", st.Modified)
	writeFileList("Untracked", st.Untracked)
	return strings.TrimRight(sb.String(), "\n")
}

// gitDiffView renders the diff against HEAD, truncated for chat.
func (b *Bot) gitDiffView(ctx context.Context) string {
	diff, err := b.git.Diff(ctx)
	if errors.Is(err, gitops.ErrNotARepo) {
		return "📋 The workspace is not a git repository. /gitinit creates one."
	}
	if err != nil {
		return userMessage(err)
	}
	if strings.TrimSpace(diff) == "" {
		return "📋 No changes against HEAD."
	}
	return "📋 *Diff against HEAD*\n" + codeBlock(truncateText(diff, 3500))
}

// gitLogView renders the recent commit log.
func (b *Bot) gitLogView(ctx context.Context) string {
	commits, err := b.git.Log(ctx, 10)
	if errors.Is(err, gitops.ErrNotARepo) {
		return "📜 The workspace is not a git repository. /gitinit creates one."
	}
	if err != nil {
		return userMessage(err)
	}
	if len(commits) == 0 {
		return "📜 No commits yet."
	}

	var sb strings.Builder
	sb.WriteString("📜 *Recent commits*\n\n")
	for _, c := range commits {
		fmt.Fprintf(&sb, "`%s` %s _(%s, %s)_\n", c.Hash, c.Subject, c.Author, c.Date)
	}
	return strings.TrimRight(sb.String(), "\n")
}

// gitBranchesView renders the local branches, current first.
func (b *Bot) gitBranchesView(ctx context.Context) string {
	branches, err := b.git.Branches(ctx)
	if errors.Is(err, gitops.ErrNotARepo) {
		return "🌿 The workspace is not a git repository. /gitinit creates one."
	}
	if err != nil {
		return userMessage(err)
	}
	if len(branches) == 0 {
		return "🌿 No branches yet."
	}

	var sb strings.Builder
	sb.WriteString("🌿 *Branches*\n\n")
	for i, br := range branches {
		marker := "  "
		if i == 0 {
			marker = "* "
		}
		fmt.Fprintf(&sb, "%s`%s`\n", marker, br)
	}
	return strings.TrimRight(sb.String(), "\n")
}
