package telegram

import (
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/google/go-cmp/cmp"
)

func TestParseCallback(t *testing.T) {
	tests := []struct {
		data string
		want callbackQuery
		ok   bool
	}{
		{data: "action:approve", want: callbackQuery{Category: "action", Action: "approve"}, ok: true},
		{data: "git:diff", want: callbackQuery{Category: "git", Action: "diff"}, ok: true},
		{data: "confirm:newsession", want: callbackQuery{Category: "confirm", Action: "newsession"}, ok: true},
		{data: "session:delete:abc-123", want: callbackQuery{Category: "session", Action: "delete", Param: "abc-123"}, ok: true},
		{data: "noseparator", ok: false},
		{data: ":missing", ok: false},
		{data: "missing:", ok: false},
		{data: "", ok: false},
	}
	for _, tt := range tests {
		t.Run(tt.data, func(t *testing.T) {
			got, ok := parseCallback(tt.data)
			if ok != tt.ok {
				t.Fatalf("parseCallback(%q) ok = %v, want %v", tt.data, ok, tt.ok)
			}
			if diff := cmp.Diff(tt.want, got, cmp.AllowUnexported(callbackQuery{})); diff != "" {
				t.Errorf("parseCallback(%q) mismatch (-want +got):\n%s", tt.data, diff)
			}
		})
	}
}

// keyboardData flattens every button's callback data.
func keyboardData(kb tgbotapi.InlineKeyboardMarkup) []string {
	var data []string
	for _, row := range kb.InlineKeyboard {
		for _, btn := range row {
			if btn.CallbackData != nil {
				data = append(data, *btn.CallbackData)
			}
		}
	}
	return data
}

func TestApprovalKeyboardData(t *testing.T) {
	want := []string{"action:approve", "action:reject", "git:diff", "action:retry", "action:dismiss"}
	if diff := cmp.Diff(want, keyboardData(approvalKeyboard())); diff != "" {
		t.Errorf("approvalKeyboard mismatch (-want +got):\n%s", diff)
	}
}

func TestConfirmKeyboardCarriesAction(t *testing.T) {
	want := []string{"confirm:cleansessions", "cancel:cleansessions"}
	if diff := cmp.Diff(want, keyboardData(confirmKeyboard("cleansessions"))); diff != "" {
		t.Errorf("confirmKeyboard mismatch (-want +got):\n%s", diff)
	}
}

func TestKeyboardDataRoundTrips(t *testing.T) {
	keyboards := []tgbotapi.InlineKeyboardMarkup{
		approvalKeyboard(),
		gitKeyboard(),
		sessionKeyboard(),
		confirmKeyboard("newsession"),
		clearConfirmKeyboard(),
	}
	for _, kb := range keyboards {
		for _, data := range keyboardData(kb) {
			if len(data) > 64 {
				t.Errorf("callback data %q exceeds the 64 byte cap", data)
			}
			if _, ok := parseCallback(data); !ok {
				t.Errorf("button data %q does not parse", data)
			}
		}
	}
}
