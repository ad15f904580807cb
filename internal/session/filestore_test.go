package session

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func newTestStore(t *testing.T) (*FileStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "sessions.json")
	s, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("NewFileStore: %v", err)
	}
	return s, path
}

func TestFileStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	s, path := newTestStore(t)

	rec := NewRecord(42)
	rec.RecordTurn("sess-a")
	rec.LastPrompt = "fix the login page"
	if err := s.Put(ctx, rec); err != nil {
		t.Fatalf("Put: %v", err)
	}

	got, err := s.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if diff := cmp.Diff(rec, got); diff != "" {
		t.Errorf("in-memory round trip (-want +got):\n%s", diff)
	}

	// Reopen from disk: the record must survive the process boundary.
	s2, err := NewFileStore(path)
	if err != nil {
		t.Fatalf("reopen: %v", err)
	}
	got, err = s2.Get(ctx, 42)
	if err != nil {
		t.Fatalf("Get after reopen: %v", err)
	}
	if got.AgentSessionID != "sess-a" || got.LastPrompt != "fix the login page" {
		t.Errorf("persisted record: %+v", got)
	}
}

func TestFileStoreGetMissing(t *testing.T) {
	s, _ := newTestStore(t)
	_, err := s.Get(context.Background(), 99)
	if !errors.Is(err, ErrNotFound) {
		t.Fatalf("got %v, want ErrNotFound", err)
	}
}

func TestFileStoreDelete(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	if err := s.Put(ctx, NewRecord(1)); err != nil {
		t.Fatal(err)
	}
	if err := s.Delete(ctx, 1); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := s.Get(ctx, 1); !errors.Is(err, ErrNotFound) {
		t.Errorf("after delete: got %v, want ErrNotFound", err)
	}
	// Absent record is not an error.
	if err := s.Delete(ctx, 1); err != nil {
		t.Errorf("double delete: %v", err)
	}
}

func TestFileStoreListOrdering(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	older := NewRecord(1)
	newer := NewRecord(2)
	newer.LastActive = older.LastActive.Add(1)
	if err := s.Put(ctx, older); err != nil {
		t.Fatal(err)
	}
	if err := s.Put(ctx, newer); err != nil {
		t.Fatal(err)
	}

	recs, err := s.List(ctx)
	if err != nil {
		t.Fatalf("List: %v", err)
	}
	if len(recs) != 2 {
		t.Fatalf("got %d records, want 2", len(recs))
	}
	if recs[0].UserID != 2 {
		t.Errorf("most recently active should be first, got user %d", recs[0].UserID)
	}
}

func TestFileStorePing(t *testing.T) {
	s, _ := newTestStore(t)
	if err := s.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}

func TestGetOrCreate(t *testing.T) {
	ctx := context.Background()
	s, _ := newTestStore(t)

	rec, err := GetOrCreate(ctx, s, 7)
	if err != nil {
		t.Fatalf("GetOrCreate: %v", err)
	}
	if rec.UserID != 7 {
		t.Errorf("new record user id: got %d", rec.UserID)
	}
	if rec.Preferences != DefaultPreferences() {
		t.Errorf("new record preferences: %+v", rec.Preferences)
	}

	rec.LastPrompt = "hello"
	if err := s.Put(ctx, rec); err != nil {
		t.Fatal(err)
	}
	again, err := GetOrCreate(ctx, s, 7)
	if err != nil {
		t.Fatal(err)
	}
	if again.LastPrompt != "hello" {
		t.Errorf("existing record not returned: %+v", again)
	}
}
