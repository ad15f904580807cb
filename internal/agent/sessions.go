package agent

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"time"
)

// ErrSessionNotFound is returned when no session file exists for an id.
var ErrSessionNotFound = errors.New("agent: session not found")

// SessionInfo describes one on-disk agent session file.
type SessionInfo struct {
	ID         string
	Path       string
	SizeBytes  int64
	Messages   int
	ModifiedAt time.Time
}

// SessionDir manages the agent CLI's on-disk session files, one JSONL file
// per session id.
type SessionDir struct {
	dir string
}

// NewSessionDir returns a SessionDir rooted at dir. The directory does not
// need to exist yet; listing an absent directory yields no sessions.
func NewSessionDir(dir string) *SessionDir {
	return &SessionDir{dir: dir}
}

// Path returns the directory being managed.
func (s *SessionDir) Path() string { return s.dir }

// Info returns metadata about a single session, including its message count
// (one JSONL line per message).
func (s *SessionDir) Info(id string) (SessionInfo, error) {
	path := filepath.Join(s.dir, id+".jsonl")
	fi, err := os.Stat(path)
	if err != nil {
		if os.IsNotExist(err) {
			return SessionInfo{}, fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return SessionInfo{}, fmt.Errorf("agent: stat session: %w", err)
	}

	n, err := countLines(path)
	if err != nil {
		return SessionInfo{}, fmt.Errorf("agent: count session messages: %w", err)
	}

	return SessionInfo{
		ID:         id,
		Path:       path,
		SizeBytes:  fi.Size(),
		Messages:   n,
		ModifiedAt: fi.ModTime(),
	}, nil
}

// List returns all sessions sorted newest first. A missing directory is not
// an error.
func (s *SessionDir) List() ([]SessionInfo, error) {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("agent: read session dir: %w", err)
	}

	var infos []SessionInfo
	for _, e := range entries {
		if e.IsDir() || !strings.HasSuffix(e.Name(), ".jsonl") {
			continue
		}
		fi, err := e.Info()
		if err != nil {
			continue
		}
		infos = append(infos, SessionInfo{
			ID:         strings.TrimSuffix(e.Name(), ".jsonl"),
			Path:       filepath.Join(s.dir, e.Name()),
			SizeBytes:  fi.Size(),
			ModifiedAt: fi.ModTime(),
		})
	}
	sort.Slice(infos, func(i, j int) bool {
		return infos[i].ModifiedAt.After(infos[j].ModifiedAt)
	})
	return infos, nil
}

// Delete removes the session file for id.
func (s *SessionDir) Delete(id string) error {
	path := filepath.Join(s.dir, id+".jsonl")
	if err := os.Remove(path); err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrSessionNotFound, id)
		}
		return fmt.Errorf("agent: delete session: %w", err)
	}
	return nil
}

// Cleanup deletes sessions not modified within maxAge and returns how many
// were removed.
func (s *SessionDir) Cleanup(maxAge time.Duration) (int, error) {
	infos, err := s.List()
	if err != nil {
		return 0, err
	}
	cutoff := time.Now().Add(-maxAge)

	removed := 0
	for _, info := range infos {
		if info.ModifiedAt.After(cutoff) {
			continue
		}
		if err := os.Remove(info.Path); err != nil {
			return removed, fmt.Errorf("agent: cleanup session %s: %w", info.ID, err)
		}
		removed++
	}
	return removed, nil
}

func countLines(path string) (int, error) {
	f, err := os.Open(path)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	n := 0
	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineBytes)
	for sc.Scan() {
		if len(strings.TrimSpace(sc.Text())) > 0 {
			n++
		}
	}
	return n, sc.Err()
}
