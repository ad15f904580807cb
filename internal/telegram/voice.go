package telegram

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/voxcodehq/voxcode/internal/session"
	"github.com/voxcodehq/voxcode/pkg/provider/stt"
)

// progressThrottle batches tool-use events into at most one status-message
// edit every interval, keeping the last few steps visible.
type progressThrottle struct {
	bot       *Bot
	chatID    int64
	messageID int
	header    string

	mu       sync.Mutex
	steps    []string
	lastEdit time.Time
}

const (
	progressEditInterval = 2 * time.Second
	progressStepsShown   = 5
)

func newProgressThrottle(bot *Bot, chatID int64, messageID int, header string) *progressThrottle {
	return &progressThrottle{bot: bot, chatID: chatID, messageID: messageID, header: header}
}

// Note records one step and edits the status message when the throttle
// window has passed.
func (p *progressThrottle) Note(step int, tool, detail string) {
	p.mu.Lock()
	p.steps = append(p.steps, progressStep(step, tool, detail))
	if len(p.steps) > progressStepsShown {
		p.steps = p.steps[len(p.steps)-progressStepsShown:]
	}
	due := time.Since(p.lastEdit) >= progressEditInterval
	if due {
		p.lastEdit = time.Now()
	}
	text := p.header + "\n\n" + strings.Join(p.steps, "\n")
	p.mu.Unlock()

	if due {
		p.bot.edit(p.chatID, p.messageID, text)
	}
}

// handleVoice runs the full pipeline: download, convert, transcribe, then
// hand the transcript to the agent.
func (b *Bot) handleVoice(ctx context.Context, msg *tgbotapi.Message) {
	chatID, userID := msg.Chat.ID, msg.From.ID
	log := b.log.With("user_id", userID)

	status, err := b.api.Send(tgbotapi.NewMessage(chatID, "🎤 Transcribing voice note..."))
	if err != nil {
		log.Error("failed to send status message", "error", err)
		return
	}

	transcript, err := b.transcribeVoice(ctx, msg.Voice)
	if err != nil {
		b.edit(chatID, status.MessageID, userMessage(err))
		b.metrics.RecordUpdate(ctx, "voice", "error")
		log.Warn("voice transcription failed", "error", err)
		return
	}
	b.metrics.RecordUpdate(ctx, "voice", "ok")
	log.Info("voice note transcribed",
		"chars", len(transcript.Text), "confidence", transcript.Confidence)

	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.edit(chatID, status.MessageID, userMessage(err))
		return
	}
	rec.LastTranscription = transcript.Text
	b.saveRecord(ctx, rec)

	if rec.Preferences.ShowTranscription {
		b.edit(chatID, status.MessageID, "🎤 _"+truncateText(transcript.Text, 500)+"_")
	} else {
		b.api.Request(tgbotapi.NewDeleteMessage(chatID, status.MessageID))
	}

	b.runPromptWithAudio(ctx, chatID, userID, transcript.Text, transcript.AudioDuration)
}

// transcribeVoice downloads and converts the voice note, then runs the
// transcriber chain over the WAV bytes.
func (b *Bot) transcribeVoice(ctx context.Context, voice *tgbotapi.Voice) (stt.Transcript, error) {
	oggPath, err := b.downloadVoice(ctx, voice.FileID)
	if err != nil {
		return stt.Transcript{}, err
	}

	convStart := time.Now()
	wav, err := b.converter.ConvertVoiceNote(ctx, oggPath)
	b.metrics.ConvertDuration.Record(ctx, time.Since(convStart).Seconds())
	if err != nil {
		return stt.Transcript{}, err
	}

	sttStart := time.Now()
	transcript, err := b.transcriber.Transcribe(ctx, wav, "audio/wav")
	b.metrics.TranscribeDuration.Record(ctx, time.Since(sttStart).Seconds())
	status := "ok"
	if err != nil {
		status = "error"
	}
	b.metrics.RecordProviderRequest(ctx, b.transcriber.Name(), status)
	if err != nil {
		return stt.Transcript{}, err
	}
	if transcript.AudioDuration == 0 && voice.Duration > 0 {
		transcript.AudioDuration = time.Duration(voice.Duration) * time.Second
	}
	return transcript, nil
}

// downloadVoice fetches the voice file from Telegram into a temp .ogg file
// and returns its path. The caller's conversion step removes it.
func (b *Bot) downloadVoice(ctx context.Context, fileID string) (string, error) {
	f, err := b.api.GetFile(tgbotapi.FileConfig{FileID: fileID})
	if err != nil {
		return "", fmt.Errorf("telegram: resolve voice file: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, f.Link(b.api.Token), nil)
	if err != nil {
		return "", fmt.Errorf("telegram: build download request: %w", err)
	}
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("telegram: download voice file: %w", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("telegram: download voice file: HTTP %d", resp.StatusCode)
	}

	out, err := os.CreateTemp("", "voxcode-voice-*.ogg")
	if err != nil {
		return "", fmt.Errorf("telegram: create temp file: %w", err)
	}
	path := out.Name()
	if _, err := io.Copy(out, resp.Body); err != nil {
		out.Close()
		os.Remove(path)
		return "", fmt.Errorf("telegram: save voice file: %w", err)
	}
	if err := out.Close(); err != nil {
		os.Remove(path)
		return "", fmt.Errorf("telegram: close temp file: %w", err)
	}
	return path, nil
}

// runPrompt executes the agent with a text prompt.
func (b *Bot) runPrompt(ctx context.Context, chatID, userID int64, prompt, _ string) {
	b.runPromptWithAudio(ctx, chatID, userID, prompt, 0)
}

// runPromptWithAudio executes the agent, streaming progress into a status
// message, then replies with the output and (when the run changed files) the
// approval keyboard. audioDuration feeds the transcription cost estimate.
func (b *Bot) runPromptWithAudio(ctx context.Context, chatID, userID int64, prompt string, audioDuration time.Duration) {
	log := b.log.With("user_id", userID)

	rec, err := b.loadRecord(ctx, userID)
	if err != nil {
		b.send(chatID, userMessage(err))
		return
	}
	if rec.Pending != nil {
		b.send(chatID, "⚠️ You have a pending change. Approve or reject it before running a new task.")
		return
	}

	header := "🤖 Working..."
	status, err := b.api.Send(tgbotapi.NewMessage(chatID, header))
	if err != nil {
		log.Error("failed to send status message", "error", err)
		return
	}
	progress := newProgressThrottle(b, chatID, status.MessageID, header)

	fullPrompt := prompt
	if rec.RepoURL != "" {
		fullPrompt = fmt.Sprintf("Working in a checkout of %s.\n\n%s", rec.RepoURL, prompt)
	}

	b.metrics.ActiveExecutions.Add(ctx, 1)
	result, runErr := b.executor.Run(ctx, fullPrompt, rec.AgentSessionID, progress.Note)
	b.metrics.ActiveExecutions.Add(ctx, -1)

	runStatus := "ok"
	if runErr != nil {
		runStatus = "error"
	}
	b.metrics.RecordAgentRun(ctx, result.Duration, result.CostUSD, runStatus)
	b.metrics.RecordUpdate(ctx, "prompt", runStatus)

	if runErr != nil {
		b.edit(chatID, status.MessageID, userMessage(runErr))
		log.Warn("agent run failed", "error", runErr)
		return
	}

	rec.RecordTurn(result.SessionID)
	rec.LastPrompt = prompt

	b.api.Request(tgbotapi.NewDeleteMessage(chatID, status.MessageID))

	reply := result.Output
	if line := toolsLine(result.ToolsUsed); line != "" {
		reply += "\n\n" + line
	}
	reply += "\n" + resultFooter(result.CostUSD, result.Duration, result.InputTokens, result.OutputTokens, audioDuration)

	if len(result.ToolsUsed) > 0 {
		rec.SetPending(session.Change{
			ID:     fmt.Sprintf("%d-%d", userID, time.Now().Unix()),
			Prompt: prompt,
			Output: truncateText(result.Output, 1000),
			Tools:  result.ToolsUsed,
		})
		b.saveRecord(ctx, rec)
		b.sendWithKeyboard(chatID, reply, approvalKeyboard())
	} else {
		b.saveRecord(ctx, rec)
		b.send(chatID, reply)
	}

	if rec.ShouldCompact() {
		b.send(chatID, fmt.Sprintf("💡 This session has %d turns. /compact starts a fresh session while keeping your workspace.", rec.TurnCount))
	}

	log.Info("agent run completed",
		"session_id", result.SessionID,
		"turns", result.NumTurns,
		"tools", len(result.ToolsUsed),
		"cost_usd", result.CostUSD,
		"duration", result.Duration.Round(time.Millisecond))
}
