// Package telegram implements the bot surface: long-polling update intake,
// command routing, the voice-to-agent pipeline, and the approval callbacks.
package telegram

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/voxcodehq/voxcode/internal/agent"
	"github.com/voxcodehq/voxcode/internal/audio"
	"github.com/voxcodehq/voxcode/internal/gitops"
	"github.com/voxcodehq/voxcode/internal/observe"
	"github.com/voxcodehq/voxcode/internal/session"
	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

// Options configures the bot surface.
type Options struct {
	Token          string
	AllowedUserIDs []int64

	// PollTimeoutSeconds is the GetUpdates long-poll timeout.
	PollTimeoutSeconds int

	Workspace   string
	AgentBinary string

	GitAuthorName  string
	GitAuthorEmail string
}

// Deps are the collaborating services the bot drives.
type Deps struct {
	Store       session.Store
	Transcriber stt.Provider
	Converter   *audio.Converter
	Executor    *agent.Executor
	Sessions    *agent.SessionDir
	Git         *gitops.Git
	Metrics     *observe.Metrics
}

// Bot is the long-polling Telegram bot.
type Bot struct {
	api     *tgbotapi.BotAPI
	opts    Options
	allowed map[int64]struct{}

	store       session.Store
	transcriber stt.Provider
	converter   *audio.Converter
	executor    *agent.Executor
	sessions    *agent.SessionDir
	git         *gitops.Git
	metrics     *observe.Metrics

	// userMu guards userLock; each user's lock serialises their updates so
	// load-modify-save on the session record never interleaves.
	userMu   sync.Mutex
	userLock map[int64]*sync.Mutex

	log       *slog.Logger
	startedAt time.Time
}

// New authenticates against the Bot API and returns a ready Bot.
func New(opts Options, deps Deps) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(opts.Token)
	if err != nil {
		return nil, fmt.Errorf("telegram: authenticate bot: %w", err)
	}
	if opts.PollTimeoutSeconds <= 0 {
		opts.PollTimeoutSeconds = 30
	}

	allowed := make(map[int64]struct{}, len(opts.AllowedUserIDs))
	for _, id := range opts.AllowedUserIDs {
		allowed[id] = struct{}{}
	}
	if len(allowed) == 0 {
		slog.Warn("no allowed user ids configured; the bot will answer anyone")
	}

	return &Bot{
		api:         api,
		opts:        opts,
		allowed:     allowed,
		store:       deps.Store,
		transcriber: deps.Transcriber,
		converter:   deps.Converter,
		executor:    deps.Executor,
		sessions:    deps.Sessions,
		git:         deps.Git,
		metrics:     deps.Metrics,
		userLock:    make(map[int64]*sync.Mutex),
		log:         slog.Default().With("component", "telegram"),
		startedAt:   time.Now(),
	}, nil
}

// Username returns the authenticated bot account name.
func (b *Bot) Username() string { return b.api.Self.UserName }

// Run consumes updates until ctx is cancelled. Each update is handled in its
// own goroutine; updates from the same user are serialised by a per-user
// lock, so one user's messages queue while different users run in parallel.
func (b *Bot) Run(ctx context.Context) error {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = b.opts.PollTimeoutSeconds
	updates := b.api.GetUpdatesChan(u)

	b.log.Info("bot polling for updates", "username", b.Username())

	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			return ctx.Err()
		case update, ok := <-updates:
			if !ok {
				return nil
			}
			go b.handleUpdate(ctx, update)
		}
	}
}

// handleUpdate authorises and routes one update.
func (b *Bot) handleUpdate(ctx context.Context, update tgbotapi.Update) {
	ctx, span := observe.StartSpan(ctx, "telegram.update")
	defer span.End()

	userID, chatID := updateOrigin(update)
	if userID == 0 {
		return
	}
	defer b.lockUser(userID)()

	if !b.authorized(userID) {
		b.log.Warn("rejected update from unauthorised user", "user_id", userID)
		if chatID != 0 {
			b.send(chatID, "🚫 You are not authorised to use this bot.")
		}
		b.metrics.RecordUpdate(ctx, updateKind(update), "unauthorised")
		return
	}

	switch {
	case update.CallbackQuery != nil:
		b.handleCallback(ctx, update.CallbackQuery)
	case update.Message != nil && update.Message.IsCommand():
		b.handleCommand(ctx, update.Message)
	case update.Message != nil && update.Message.Voice != nil:
		b.handleVoice(ctx, update.Message)
	case update.Message != nil && update.Message.Text != "":
		b.runPrompt(ctx, update.Message.Chat.ID, userID, update.Message.Text, "")
	}
}

// lockUser acquires the user's lock, creating it on first use, and returns
// the unlock. A second update from the same user blocks here until the first
// finishes, which is what makes the pending-change gate reliable.
func (b *Bot) lockUser(userID int64) func() {
	b.userMu.Lock()
	mu, ok := b.userLock[userID]
	if !ok {
		mu = &sync.Mutex{}
		b.userLock[userID] = mu
	}
	b.userMu.Unlock()

	mu.Lock()
	return mu.Unlock
}

func (b *Bot) authorized(userID int64) bool {
	if len(b.allowed) == 0 {
		return true
	}
	_, ok := b.allowed[userID]
	return ok
}

// updateOrigin extracts the sending user and chat from an update.
func updateOrigin(update tgbotapi.Update) (userID, chatID int64) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		return update.Message.From.ID, update.Message.Chat.ID
	case update.CallbackQuery != nil && update.CallbackQuery.From != nil:
		if update.CallbackQuery.Message != nil {
			chatID = update.CallbackQuery.Message.Chat.ID
		}
		return update.CallbackQuery.From.ID, chatID
	}
	return 0, 0
}

// updateKind labels an update for metrics.
func updateKind(update tgbotapi.Update) string {
	switch {
	case update.CallbackQuery != nil:
		return "callback"
	case update.Message != nil && update.Message.IsCommand():
		return "command"
	case update.Message != nil && update.Message.Voice != nil:
		return "voice"
	default:
		return "text"
	}
}

// send delivers text to a chat, splitting over the message limit. Markdown
// parse failures are retried as plain text so a stray underscore in agent
// output cannot swallow a reply.
func (b *Bot) send(chatID int64, text string) {
	for _, chunk := range splitMessage(text) {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if _, err := b.api.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := b.api.Send(msg); err != nil {
				b.log.Error("failed to send message", "chat_id", chatID, "error", err)
			}
		}
	}
}

// sendWithKeyboard delivers one message with an inline keyboard attached to
// the final chunk.
func (b *Bot) sendWithKeyboard(chatID int64, text string, kb tgbotapi.InlineKeyboardMarkup) {
	chunks := splitMessage(text)
	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.ParseMode = tgbotapi.ModeMarkdown
		if i == len(chunks)-1 {
			msg.ReplyMarkup = kb
		}
		if _, err := b.api.Send(msg); err != nil {
			msg.ParseMode = ""
			if _, err := b.api.Send(msg); err != nil {
				b.log.Error("failed to send message", "chat_id", chatID, "error", err)
			}
		}
	}
}

// edit replaces the text of a previously sent message.
func (b *Bot) edit(chatID int64, messageID int, text string) {
	msg := tgbotapi.NewEditMessageText(chatID, messageID, text)
	msg.ParseMode = tgbotapi.ModeMarkdown
	if _, err := b.api.Send(msg); err != nil {
		msg.ParseMode = ""
		if _, err := b.api.Send(msg); err != nil {
			b.log.Debug("failed to edit message", "chat_id", chatID, "error", err)
		}
	}
}

// loadRecord fetches or creates the user's session record.
func (b *Bot) loadRecord(ctx context.Context, userID int64) (session.Record, error) {
	return session.GetOrCreate(ctx, b.store, userID)
}

// saveRecord persists a record, logging rather than surfacing store errors.
func (b *Bot) saveRecord(ctx context.Context, rec session.Record) {
	if err := b.store.Put(ctx, rec); err != nil {
		b.log.Error("failed to persist session record", "user_id", rec.UserID, "error", err)
	}
}
