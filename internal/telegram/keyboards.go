package telegram

import (
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

// Callback data is "category:action" with an optional ":param" suffix, kept
// short because Telegram caps callback data at 64 bytes.

// callbackQuery is a parsed callback data string.
type callbackQuery struct {
	Category string
	Action   string
	Param    string
}

func parseCallback(data string) (callbackQuery, bool) {
	parts := strings.SplitN(data, ":", 3)
	if len(parts) < 2 || parts[0] == "" || parts[1] == "" {
		return callbackQuery{}, false
	}
	q := callbackQuery{Category: parts[0], Action: parts[1]}
	if len(parts) == 3 {
		q.Param = parts[2]
	}
	return q, true
}

// approvalKeyboard is attached to a completed run with a pending change.
func approvalKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("✅ Approve", "action:approve"),
			tgbotapi.NewInlineKeyboardButtonData("❌ Reject", "action:reject"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Diff", "git:diff"),
			tgbotapi.NewInlineKeyboardButtonData("🔄 Retry", "action:retry"),
			tgbotapi.NewInlineKeyboardButtonData("✖ Dismiss", "action:dismiss"),
		),
	)
}

// gitKeyboard offers the read-only git views.
func gitKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📋 Diff", "git:diff"),
			tgbotapi.NewInlineKeyboardButtonData("📊 Status", "git:status"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📜 Log", "git:log"),
			tgbotapi.NewInlineKeyboardButtonData("🌿 Branches", "git:branches"),
		),
	)
}

// sessionKeyboard offers session housekeeping actions.
func sessionKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("🆕 New", "session:new"),
			tgbotapi.NewInlineKeyboardButtonData("ℹ️ Info", "session:info"),
		),
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("📚 List", "session:list"),
			tgbotapi.NewInlineKeyboardButtonData("🧹 Clean old", "session:clean"),
		),
	)
}

// confirmKeyboard asks the user to confirm a destructive action. action is
// carried in the callback data so the handler knows what was confirmed.
func confirmKeyboard(action string) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Yes, do it", "confirm:"+action),
			tgbotapi.NewInlineKeyboardButtonData("Cancel", "cancel:"+action),
		),
	)
}

// clearConfirmKeyboard is shown when /clear would drop a pending change.
func clearConfirmKeyboard() tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("⚠️ Clear anyway", "clear:confirm"),
			tgbotapi.NewInlineKeyboardButtonData("Keep it", "clear:cancel"),
		),
	)
}
