// Package store persists chat sessions on disk: a JSON index of session
// metadata plus one JSONL transcript per session. A file lock guards the
// store directory so only one process mutates it at a time.
package store

import (
	"bytes"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/gofrs/flock"
	"github.com/natefinch/atomic"
	"github.com/oklog/ulid/v2"

	lancetErrors "github.com/lancet-ai/lancet/internal/errors"
)

const (
	lockRetryInterval    = 100 * time.Millisecond
	transcriptRotateSize = 10 * 1024 * 1024
)

type SessionMeta struct {
	ID           string    `json:"id"`
	Title        string    `json:"title"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
	MessageCount int       `json:"message_count"`
}

type sessionIndex struct {
	Sessions map[string]SessionMeta `json:"sessions"`
}

type Store struct {
	basePath string
	lock     *flock.Flock

	mu    sync.Mutex
	index *sessionIndex
}

// Open acquires the store lock and loads the session index. It fails with
// ErrConflict when another process holds the lock past lockTimeout.
func Open(basePath string, lockTimeout time.Duration) (*Store, error) {
	if err := os.MkdirAll(filepath.Join(basePath, "sessions"), 0755); err != nil {
		return nil, fmt.Errorf("create store dir: %w", err)
	}

	lock := flock.New(filepath.Join(basePath, "store.lock"))
	deadline := time.Now().Add(lockTimeout)
	for {
		locked, err := lock.TryLock()
		if err != nil {
			return nil, fmt.Errorf("attempt store lock: %w", err)
		}
		if locked {
			break
		}
		if time.Now().After(deadline) {
			return nil, fmt.Errorf("%w: store %s is locked by another instance", lancetErrors.ErrConflict, basePath)
		}
		time.Sleep(lockRetryInterval)
	}

	index := &sessionIndex{Sessions: make(map[string]SessionMeta)}
	if data, err := os.ReadFile(filepath.Join(basePath, "sessions", "index.json")); err == nil {
		if err := json.Unmarshal(data, index); err != nil {
			slog.Warn("Failed to parse session index, starting fresh", "error", err)
			index = &sessionIndex{Sessions: make(map[string]SessionMeta)}
		}
	}

	slog.Info("Session store opened", "path", basePath, "sessions", len(index.Sessions))
	return &Store{basePath: basePath, lock: lock, index: index}, nil
}

func (s *Store) Close() {
	if err := s.lock.Unlock(); err != nil {
		slog.Error("Failed to release store lock", "error", err)
	}
}

// CreateSession registers a new session and returns its metadata. Session
// IDs are ULIDs, so lexical order is creation order.
func (s *Store) CreateSession(title string) (SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	now := time.Now().UTC()
	meta := SessionMeta{
		ID:        ulid.Make().String(),
		Title:     title,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.index.Sessions[meta.ID] = meta
	if err := s.saveIndex(); err != nil {
		delete(s.index.Sessions, meta.ID)
		return SessionMeta{}, err
	}
	return meta, nil
}

func (s *Store) Session(id string) (SessionMeta, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.index.Sessions[id]
	if !ok {
		return SessionMeta{}, fmt.Errorf("%w: session %s", lancetErrors.ErrNotFound, id)
	}
	return meta, nil
}

// Sessions lists all sessions, most recently updated first.
func (s *Store) Sessions() []SessionMeta {
	s.mu.Lock()
	defer s.mu.Unlock()

	out := make([]SessionMeta, 0, len(s.index.Sessions))
	for _, meta := range s.index.Sessions {
		out = append(out, meta)
	}
	sort.Slice(out, func(i, j int) bool {
		return out[i].UpdatedAt.After(out[j].UpdatedAt)
	})
	return out
}

// AppendRecord appends one JSON record to the session transcript and bumps
// the session metadata.
func (s *Store) AppendRecord(sessionID string, record interface{}) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	meta, ok := s.index.Sessions[sessionID]
	if !ok {
		return fmt.Errorf("%w: session %s", lancetErrors.ErrNotFound, sessionID)
	}

	data, err := json.Marshal(record)
	if err != nil {
		return fmt.Errorf("marshal transcript record: %w", err)
	}

	path := s.transcriptPath(sessionID)
	if err := s.checkAndRotate(sessionID, path); err != nil {
		slog.Warn("Failed to rotate transcript", "session", sessionID, "error", err)
	}

	f, err := os.OpenFile(path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return err
	}
	defer f.Close()

	if _, err := f.Write(data); err != nil {
		return err
	}
	if _, err := f.WriteString("\n"); err != nil {
		return err
	}
	if err := f.Sync(); err != nil {
		return err
	}

	meta.MessageCount++
	meta.UpdatedAt = time.Now().UTC()
	s.index.Sessions[sessionID] = meta
	return s.saveIndex()
}

// Records returns the session transcript as raw JSON lines. A positive
// limit returns only the last N records.
func (s *Store) Records(sessionID string, limit int) ([]json.RawMessage, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Sessions[sessionID]; !ok {
		return nil, fmt.Errorf("%w: session %s", lancetErrors.ErrNotFound, sessionID)
	}

	data, err := os.ReadFile(s.transcriptPath(sessionID))
	if err != nil {
		if os.IsNotExist(err) {
			return []json.RawMessage{}, nil
		}
		return nil, err
	}

	lines := strings.Split(strings.TrimSpace(string(data)), "\n")
	if len(lines) == 1 && lines[0] == "" {
		return []json.RawMessage{}, nil
	}
	if limit > 0 && len(lines) > limit {
		lines = lines[len(lines)-limit:]
	}

	records := make([]json.RawMessage, 0, len(lines))
	for _, line := range lines {
		records = append(records, json.RawMessage(line))
	}
	return records, nil
}

func (s *Store) DeleteSession(sessionID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, ok := s.index.Sessions[sessionID]; !ok {
		return fmt.Errorf("%w: session %s", lancetErrors.ErrNotFound, sessionID)
	}
	if err := os.Remove(s.transcriptPath(sessionID)); err != nil && !os.IsNotExist(err) {
		return err
	}
	delete(s.index.Sessions, sessionID)
	return s.saveIndex()
}

func (s *Store) transcriptPath(sessionID string) string {
	return filepath.Join(s.basePath, "sessions", sessionID+".jsonl")
}

func (s *Store) saveIndex() error {
	data, err := json.MarshalIndent(s.index, "", "  ")
	if err != nil {
		return err
	}
	return atomic.WriteFile(filepath.Join(s.basePath, "sessions", "index.json"), bytes.NewReader(data))
}

func (s *Store) checkAndRotate(sessionID, path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return err
	}
	if info.Size() < transcriptRotateSize {
		return nil
	}

	slog.Info("Rotating transcript", "session", sessionID, "size", info.Size())
	backupPath := fmt.Sprintf("%s.%s.bak", path, time.Now().Format("20060102150405"))
	if err := os.Rename(path, backupPath); err != nil {
		return fmt.Errorf("failed to rename: %w", err)
	}

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("failed to create new transcript: %w", err)
	}
	return f.Close()
}
