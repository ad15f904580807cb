// Package session holds the per-user conversation record: the active agent
// session id, the pending change awaiting approval, approval history, and
// user preferences. Persistence backends live in this package too.
package session

import (
	"time"
)

// historyCap bounds the approval history kept per user.
const historyCap = 20

// DefaultCompactThreshold is the turn count at which auto-compaction of the
// agent session is suggested.
const DefaultCompactThreshold = 20

// ChangeState is the lifecycle state of a recorded change.
type ChangeState string

const (
	StatePending  ChangeState = "pending"
	StateApproved ChangeState = "approved"
	StateRejected ChangeState = "rejected"
)

// Change is the result of one successful agent run awaiting review.
type Change struct {
	ID        string      `json:"id"`
	State     ChangeState `json:"state"`
	Prompt    string      `json:"prompt"`
	Output    string      `json:"output"`
	Tools     []string    `json:"tools,omitempty"`
	CreatedAt time.Time   `json:"created_at"`
}

// Approval is one resolved change kept in the history.
type Approval struct {
	ChangeID   string      `json:"change_id"`
	State      ChangeState `json:"state"`
	Prompt     string      `json:"prompt"`
	ResolvedAt time.Time   `json:"resolved_at"`
}

// Preferences are per-user toggles.
type Preferences struct {
	ShowTranscription bool `json:"show_transcription"`
	AutoCompact       bool `json:"auto_compact"`
	CompactThreshold  int  `json:"compact_threshold"`
}

// DefaultPreferences returns the preferences applied to new users.
func DefaultPreferences() Preferences {
	return Preferences{
		ShowTranscription: true,
		AutoCompact:       false,
		CompactThreshold:  DefaultCompactThreshold,
	}
}

// Record is everything persisted for one Telegram user. At most one agent
// session id and one pending change exist per user at a time.
type Record struct {
	UserID            int64       `json:"user_id"`
	AgentSessionID    string      `json:"agent_session_id,omitempty"`
	TurnCount         int         `json:"turn_count"`
	Pending           *Change     `json:"pending,omitempty"`
	History           []Approval  `json:"history,omitempty"`
	LastPrompt        string      `json:"last_prompt,omitempty"`
	LastTranscription string      `json:"last_transcription,omitempty"`
	RepoURL           string      `json:"repo_url,omitempty"`
	RepoPath          string      `json:"repo_path,omitempty"`
	Preferences       Preferences `json:"preferences"`
	LastActive        time.Time   `json:"last_active"`
}

// NewRecord returns a fresh record for a user with default preferences.
func NewRecord(userID int64) Record {
	return Record{
		UserID:      userID,
		Preferences: DefaultPreferences(),
		LastActive:  time.Now().UTC(),
	}
}

// Touch updates the last-active timestamp.
func (r *Record) Touch() {
	r.LastActive = time.Now().UTC()
}

// RecordTurn stores the session id from an agent run and bumps the turn
// counter. A changed session id resets the counter to 1.
func (r *Record) RecordTurn(sessionID string) {
	if sessionID != "" && sessionID != r.AgentSessionID {
		r.AgentSessionID = sessionID
		r.TurnCount = 0
	}
	r.TurnCount++
	r.Touch()
}

// ResetSession clears the agent session id, turn counter, and any pending
// change. The approval history and preferences survive.
func (r *Record) ResetSession() {
	r.AgentSessionID = ""
	r.TurnCount = 0
	r.Pending = nil
	r.Touch()
}

// SetPending records a new change awaiting approval, replacing any previous
// unresolved one.
func (r *Record) SetPending(c Change) {
	c.State = StatePending
	if c.CreatedAt.IsZero() {
		c.CreatedAt = time.Now().UTC()
	}
	r.Pending = &c
	r.Touch()
}

// Resolve moves the pending change into the history with the given terminal
// state and clears it. Returns false when nothing is pending.
func (r *Record) Resolve(state ChangeState) bool {
	if r.Pending == nil {
		return false
	}
	r.History = append(r.History, Approval{
		ChangeID:   r.Pending.ID,
		State:      state,
		Prompt:     r.Pending.Prompt,
		ResolvedAt: time.Now().UTC(),
	})
	if len(r.History) > historyCap {
		r.History = r.History[len(r.History)-historyCap:]
	}
	r.Pending = nil
	r.Touch()
	return true
}

// ShouldCompact reports whether the turn count has reached the compaction
// threshold.
func (r *Record) ShouldCompact() bool {
	threshold := r.Preferences.CompactThreshold
	if threshold <= 0 {
		threshold = DefaultCompactThreshold
	}
	return r.TurnCount >= threshold
}
