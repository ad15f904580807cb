package session

import (
	"fmt"
	"testing"
)

func TestRecordTurn(t *testing.T) {
	rec := NewRecord(42)

	rec.RecordTurn("sess-a")
	if rec.AgentSessionID != "sess-a" || rec.TurnCount != 1 {
		t.Errorf("first turn: got id=%q count=%d", rec.AgentSessionID, rec.TurnCount)
	}

	rec.RecordTurn("sess-a")
	if rec.TurnCount != 2 {
		t.Errorf("same session: got count=%d, want 2", rec.TurnCount)
	}

	// A new session id restarts the counter.
	rec.RecordTurn("sess-b")
	if rec.AgentSessionID != "sess-b" || rec.TurnCount != 1 {
		t.Errorf("new session: got id=%q count=%d", rec.AgentSessionID, rec.TurnCount)
	}

	// An empty id keeps the current session.
	rec.RecordTurn("")
	if rec.AgentSessionID != "sess-b" || rec.TurnCount != 2 {
		t.Errorf("empty id: got id=%q count=%d", rec.AgentSessionID, rec.TurnCount)
	}
}

func TestResetSession(t *testing.T) {
	rec := NewRecord(42)
	rec.RecordTurn("sess-a")
	rec.SetPending(Change{ID: "c1", Prompt: "do a thing"})
	rec.History = append(rec.History, Approval{ChangeID: "c0", State: StateApproved})

	rec.ResetSession()

	if rec.AgentSessionID != "" || rec.TurnCount != 0 || rec.Pending != nil {
		t.Errorf("reset left state behind: %+v", rec)
	}
	if len(rec.History) != 1 {
		t.Error("reset must not clear history")
	}
}

func TestResolve(t *testing.T) {
	rec := NewRecord(42)

	if rec.Resolve(StateApproved) {
		t.Error("resolve with nothing pending should return false")
	}

	rec.SetPending(Change{ID: "c1", Prompt: "fix the bug"})
	if rec.Pending == nil || rec.Pending.State != StatePending {
		t.Fatalf("pending change not recorded: %+v", rec.Pending)
	}

	if !rec.Resolve(StateApproved) {
		t.Fatal("resolve should succeed with a pending change")
	}
	if rec.Pending != nil {
		t.Error("pending not cleared after resolve")
	}
	if len(rec.History) != 1 {
		t.Fatalf("history: got %d entries, want 1", len(rec.History))
	}
	got := rec.History[0]
	if got.ChangeID != "c1" || got.State != StateApproved || got.Prompt != "fix the bug" {
		t.Errorf("history entry: %+v", got)
	}
}

func TestResolveHistoryCap(t *testing.T) {
	rec := NewRecord(42)
	for i := 0; i < historyCap+5; i++ {
		rec.SetPending(Change{ID: fmt.Sprintf("c%d", i)})
		rec.Resolve(StateRejected)
	}
	if len(rec.History) != historyCap {
		t.Fatalf("history length: got %d, want %d", len(rec.History), historyCap)
	}
	if rec.History[0].ChangeID != "c5" {
		t.Errorf("oldest surviving entry: got %s, want c5", rec.History[0].ChangeID)
	}
	if rec.History[historyCap-1].ChangeID != fmt.Sprintf("c%d", historyCap+4) {
		t.Errorf("newest entry: got %s", rec.History[historyCap-1].ChangeID)
	}
}

func TestShouldCompact(t *testing.T) {
	rec := NewRecord(42)
	if rec.ShouldCompact() {
		t.Error("fresh record should not need compaction")
	}
	rec.TurnCount = DefaultCompactThreshold
	if !rec.ShouldCompact() {
		t.Error("record at threshold should need compaction")
	}

	rec.Preferences.CompactThreshold = 5
	rec.TurnCount = 5
	if !rec.ShouldCompact() {
		t.Error("custom threshold not honoured")
	}

	// Zero threshold falls back to the default.
	rec.Preferences.CompactThreshold = 0
	rec.TurnCount = 10
	if rec.ShouldCompact() {
		t.Error("zero threshold should fall back to the default, not compact at 10")
	}
}
