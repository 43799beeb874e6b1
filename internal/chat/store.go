package chat

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/charmbracelet/log"
	"github.com/google/uuid"

	"github.com/theirongolddev/cchat/internal/util"
)

// ErrNotFound indicates no persisted record exists for the requested id.
var ErrNotFound = errors.New("chat: session not found")

// ErrNoActiveSession indicates an append without a current session.
var ErrNoActiveSession = errors.New("chat: no active session")

// Store keeps one JSON file per session under <dir> and tracks the single
// active session. Appends rewrite the whole session file through an atomic
// rename, so a crash mid-write never leaves a half-written record.
type Store struct {
	mu sync.Mutex

	dir string

	activeID  string
	createdAt time.Time
	messages  []Message
}

// NewStore opens (creating if needed) the session directory.
func NewStore(dataDir string) (*Store, error) {
	dir := filepath.Join(dataDir, "sessions")
	if err := os.MkdirAll(dir, 0o750); err != nil {
		return nil, fmt.Errorf("chat: creating session dir: %w", err)
	}
	return &Store{dir: dir}, nil
}

// NewSession starts a blank session and makes it active. Nothing touches
// disk until the first message is appended.
func (s *Store) NewSession() string {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = uuid.NewString()
	s.createdAt = time.Now()
	s.messages = nil
	return s.activeID
}

// ActiveID returns the id of the active session, or "" when none is active.
func (s *Store) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Messages returns a copy of the active session's transcript in append order.
func (s *Store) Messages() []Message {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out
}

// LoadSession reads the persisted messages for id and makes it active.
// A missing record fails with ErrNotFound and leaves the active session
// unchanged. A corrupt record is not an error: the session becomes active
// with an empty transcript and the condition is logged.
func (s *Store) LoadSession(id string) ([]Message, error) {
	data, err := os.ReadFile(s.path(id))
	if err != nil {
		if os.IsNotExist(err) {
			return nil, ErrNotFound
		}
		return nil, fmt.Errorf("chat: reading session %s: %w", id, err)
	}

	var rec sessionRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		log.Warn("session file is corrupt, treating as empty", "id", id, "err", err)
		rec = sessionRecord{ID: id, CreatedAt: time.Now()}
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.activeID = id
	s.createdAt = rec.CreatedAt
	s.messages = rec.Messages

	out := make([]Message, len(s.messages))
	copy(out, s.messages)
	return out, nil
}

// AppendMessage adds one turn to the active session and persists the full
// updated record before returning. On a persist failure the message is kept
// in memory (the next successful append rewrites the whole record) and the
// error is surfaced.
func (s *Store) AppendMessage(role Role, content, stopReason string, inputTokens, outputTokens int64) (Message, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.activeID == "" {
		return Message{}, ErrNoActiveSession
	}

	msg := Message{
		Role:         role,
		Content:      content,
		Timestamp:    time.Now(),
		StopReason:   stopReason,
		InputTokens:  inputTokens,
		OutputTokens: outputTokens,
	}
	if len(s.messages) == 0 {
		s.createdAt = msg.Timestamp
	}
	s.messages = append(s.messages, msg)

	if err := s.persistLocked(); err != nil {
		return msg, err
	}
	return msg, nil
}

// persistLocked writes the active session's full record. Caller holds s.mu.
func (s *Store) persistLocked() error {
	rec := sessionRecord{
		ID:        s.activeID,
		CreatedAt: s.createdAt,
		Messages:  s.messages,
	}
	data, err := json.MarshalIndent(rec, "", "  ")
	if err != nil {
		return fmt.Errorf("chat: encoding session %s: %w", s.activeID, err)
	}
	if err := util.AtomicWriteFile(s.path(s.activeID), data, 0o600); err != nil {
		return fmt.Errorf("chat: persisting session %s: %w", s.activeID, err)
	}
	return nil
}

// ListSessions enumerates all persisted sessions, newest-modified first,
// ties broken by id so repeated calls list stably. Files that fail to parse
// are skipped and logged.
func (s *Store) ListSessions() []SessionInfo {
	entries, err := os.ReadDir(s.dir)
	if err != nil {
		log.Warn("listing session dir failed", "dir", s.dir, "err", err)
		return nil
	}

	type listed struct {
		info  SessionInfo
		mtime time.Time
	}
	var sessions []listed

	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || !strings.HasSuffix(name, ".json") {
			continue
		}

		fi, err := e.Info()
		if err != nil {
			continue
		}

		data, err := os.ReadFile(filepath.Join(s.dir, name))
		if err != nil {
			log.Warn("skipping unreadable session file", "file", name, "err", err)
			continue
		}
		var rec sessionRecord
		if err := json.Unmarshal(data, &rec); err != nil {
			log.Warn("skipping corrupt session file", "file", name, "err", err)
			continue
		}
		if rec.ID == "" {
			rec.ID = strings.TrimSuffix(name, ".json")
		}

		sessions = append(sessions, listed{
			info: SessionInfo{
				ID:           rec.ID,
				Title:        DeriveTitle(rec.Messages),
				CreatedAt:    rec.CreatedAt,
				MessageCount: len(rec.Messages),
			},
			mtime: fi.ModTime(),
		})
	}

	sort.Slice(sessions, func(i, j int) bool {
		if !sessions[i].mtime.Equal(sessions[j].mtime) {
			return sessions[i].mtime.After(sessions[j].mtime)
		}
		return sessions[i].info.ID < sessions[j].info.ID
	})

	out := make([]SessionInfo, len(sessions))
	for i, l := range sessions {
		out[i] = l.info
	}
	return out
}

// DeleteSession removes the persisted record. Deleting an id with no record
// is not an error. If id was active, the active session becomes none.
func (s *Store) DeleteSession(id string) error {
	if err := os.Remove(s.path(id)); err != nil && !os.IsNotExist(err) {
		return fmt.Errorf("chat: deleting session %s: %w", id, err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if s.activeID == id {
		s.activeID = ""
		s.messages = nil
	}
	return nil
}

func (s *Store) path(id string) string {
	return filepath.Join(s.dir, id+".json")
}
