package telegram

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/voxcodehq/voxcode/internal/gitops"
	"github.com/voxcodehq/voxcode/internal/session"
)

// cleanSessionsMaxAge is the cutoff for /cleansessions.
const cleanSessionsMaxAge = 30 * 24 * time.Hour

// handleCallback routes one inline-keyboard press.
func (b *Bot) handleCallback(ctx context.Context, cq *tgbotapi.CallbackQuery) {
	answer := func(text string) {
		if _, err := b.api.Request(tgbotapi.NewCallback(cq.ID, text)); err != nil {
			b.log.Debug("failed to answer callback", "error", err)
		}
	}
	if cq.Message == nil {
		answer("")
		return
	}
	chatID, userID := cq.Message.Chat.ID, cq.From.ID

	q, ok := parseCallback(cq.Data)
	if !ok {
		answer("")
		return
	}
	b.metrics.RecordUpdate(ctx, "callback", "ok")
	b.log.Info("handling callback", "data", cq.Data, "user_id", userID)

	switch q.Category {
	case "action":
		switch q.Action {
		case "approve":
			answer("Approving...")
			b.approvePending(ctx, chatID, userID, cq.Message.MessageID)
		case "reject":
			answer("Rejected")
			b.rejectPending(ctx, chatID, userID, cq.Message.MessageID)
		case "retry":
			answer("Retrying...")
			b.retryLast(ctx, chatID, userID, cq.Message.MessageID)
		case "dismiss":
			answer("Dismissed")
			b.dismissPending(ctx, chatID, userID, cq.Message.MessageID)
		default:
			answer("")
		}

	case "git":
		answer("")
		switch q.Action {
		case "diff":
			b.send(chatID, b.gitDiffView(ctx))
		case "status":
			b.send(chatID, b.gitStatusView(ctx))
		case "log":
			b.send(chatID, b.gitLogView(ctx))
		case "branches":
			b.send(chatID, b.gitBranchesView(ctx))
		}

	case "session":
		answer("")
		switch q.Action {
		case "new":
			b.sendWithKeyboard(chatID, "🆕 Start a brand new agent session? The current conversation context will be lost.", confirmKeyboard("newsession"))
		case "info":
			b.cmdSessionInfo(ctx, chatID, userID)
		case "list":
			b.send(chatID, b.sessionListView())
		case "clean":
			b.sendWithKeyboard(chatID, "🧹 Delete all agent sessions older than 30 days?", confirmKeyboard("cleansessions"))
		}

	case "clear":
		switch q.Action {
		case "confirm":
			answer("Cleared")
			b.clearConfirmed(ctx, chatID, userID, cq.Message.MessageID)
		case "cancel":
			answer("Kept")
			b.edit(chatID, cq.Message.MessageID, "👍 Keeping the session and its pending change.")
		default:
			answer("")
		}

	case "confirm":
		answer("")
		b.confirmedAction(ctx, chatID, userID, cq.Message.MessageID, q.Action)

	case "cancel":
		answer("Cancelled")
		b.edit(chatID, cq.Message.MessageID, "✖ Cancelled.")

	default:
		answer("")
	}
}

// approvePending commits the pending change and resolves it.
func (b *Bot) approvePending(ctx context.Context, chatID, userID int64, messageID int) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.Pending == nil {
		b.removeKeyboard(chatID, messageID)
		b.send(chatID, "ℹ️ There is no pending change to approve.")
		return
	}

	message := approvalCommitMessage(ctx, b.git, rec.Pending.Prompt)
	start := time.Now()
	if err := b.git.AddAll(ctx); err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	hash, err := b.git.Commit(ctx, message)
	b.metrics.GitDuration.Record(ctx, time.Since(start).Seconds())

	if errors.Is(err, gitops.ErrNothingToCommit) {
		rec.Resolve(session.StateApproved)
		b.saveRecord(ctx, rec)
		b.metrics.RecordApproval(ctx, "approved")
		b.removeKeyboard(chatID, messageID)
		b.send(chatID, "✨ Approved, but the working tree was already clean; nothing to commit.")
		return
	}
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}

	rec.Resolve(session.StateApproved)
	b.saveRecord(ctx, rec)
	b.metrics.RecordApproval(ctx, "approved")
	b.removeKeyboard(chatID, messageID)
	b.send(chatID, "✅ Approved and committed as `"+hash+"`.")
	b.log.Info("change approved", "user_id", userID, "commit", hash)
}

// approvalCommitMessage builds the commit message for an approved change: a
// subject derived from the changed files and the prompt as the body.
func approvalCommitMessage(ctx context.Context, git *gitops.Git, prompt string) string {
	subject := gitops.CommitMessage(nil)
	if ds, err := git.DiffStat(ctx); err == nil {
		subject = gitops.CommitMessage(ds.Files)
	}
	return subject + "\n\nPrompt: " + truncateText(prompt, 100)
}

// rejectPending resolves the pending change without committing. Files stay on
// disk; the user is told how to discard them.
func (b *Bot) rejectPending(ctx context.Context, chatID, userID int64, messageID int) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if !rec.Resolve(session.StateRejected) {
		b.removeKeyboard(chatID, messageID)
		b.send(chatID, "ℹ️ There is no pending change to reject.")
		return
	}
	b.saveRecord(ctx, rec)
	b.metrics.RecordApproval(ctx, "rejected")
	b.removeKeyboard(chatID, messageID)
	b.send(chatID, "❌ Rejected. The files are still on disk; run `git reset --hard HEAD` in the workspace to discard them, or just send a follow-up prompt.")
}

// retryLast drops the pending change and re-runs the last prompt.
func (b *Bot) retryLast(ctx context.Context, chatID, userID int64, messageID int) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.LastPrompt == "" {
		b.send(chatID, "ℹ️ There is no previous prompt to retry.")
		return
	}
	rec.Pending = nil
	b.saveRecord(ctx, rec)
	b.removeKeyboard(chatID, messageID)
	b.runPrompt(ctx, chatID, userID, rec.LastPrompt, "")
}

// dismissPending quietly resolves the pending change as rejected.
func (b *Bot) dismissPending(ctx context.Context, chatID, userID int64, messageID int) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.Resolve(session.StateRejected) {
		b.saveRecord(ctx, rec)
		b.metrics.RecordApproval(ctx, "dismissed")
	}
	b.removeKeyboard(chatID, messageID)
}

// clearConfirmed executes /clear after the user confirmed dropping a pending
// change.
func (b *Bot) clearConfirmed(ctx context.Context, chatID, userID int64, messageID int) {
	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.Pending != nil {
		rec.Resolve(session.StateRejected)
		b.metrics.RecordApproval(ctx, "dismissed")
	}
	rec.ResetSession()
	b.saveRecord(ctx, rec)
	b.edit(chatID, messageID, "🧹 Session cleared. The next message starts fresh.")
}

// confirmedAction runs a previously confirmed destructive action.
func (b *Bot) confirmedAction(ctx context.Context, chatID, userID int64, messageID int, action string) {
	switch action {
	case "newsession":
		rec, err := b.loadRecord(ctx, userID)
		if err != nil {
			b.send(chatID, userMessage(err))
			return
		}
		rec.ResetSession()
		b.saveRecord(ctx, rec)
		b.edit(chatID, messageID, "🆕 New session. Your next prompt starts from scratch.")

	case "cleansessions":
		removed, err := b.sessions.Cleanup(cleanSessionsMaxAge)
		if err != nil {
			b.send(chatID, userMessage(err))
			return
		}
		b.edit(chatID, messageID, fmt.Sprintf("🧹 Removed %d session(s) older than 30 days.", removed))

	default:
		b.edit(chatID, messageID, "🤷 That confirmation has expired.")
	}
}

// removeKeyboard strips the inline keyboard from a message, leaving its text.
func (b *Bot) removeKeyboard(chatID int64, messageID int) {
	markup := tgbotapi.NewEditMessageReplyMarkup(chatID, messageID,
		tgbotapi.InlineKeyboardMarkup{InlineKeyboard: [][]tgbotapi.InlineKeyboardButton{}})
	if _, err := b.api.Request(markup); err != nil {
		b.log.Debug("failed to remove keyboard", "error", err)
	}
}
