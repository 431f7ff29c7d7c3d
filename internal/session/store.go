package session

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	apperrors "github.com/jwalitptl/library-admin/pkg/errors"
	"github.com/jwalitptl/library-admin/pkg/logger"
)

// Store persists sessions. Load re-reads the backing storage on every call,
// and a missing session is reported as AuthMissing.
type Store interface {
	Load(ctx context.Context, id string) (Session, error)
	Save(ctx context.Context, s Session) error
	Delete(ctx context.Context, id string) error
}

func notFound(id string) error {
	return apperrors.AuthMissing(fmt.Sprintf("session %q not found", id), nil)
}

// FileStore keeps records in a single JSON file, the way a browser keeps
// them in local storage.
type FileStore struct {
	path   string
	logger *logger.Logger
	mu     sync.Mutex
}

func NewFileStore(path string, log *logger.Logger) *FileStore {
	if log == nil {
		log = logger.Nop()
	}
	return &FileStore{path: path, logger: log}
}

func (s *FileStore) Load(_ context.Context, id string) (Session, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return Session{}, err
	}
	rec, ok := records[id]
	if !ok {
		return Session{}, notFound(id)
	}
	return FromRecord(id, rec, s.logger), nil
}

func (s *FileStore) Save(_ context.Context, sess Session) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	records[sess.ID] = sess.Record()
	return s.write(records)
}

func (s *FileStore) Delete(_ context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	records, err := s.read()
	if err != nil {
		return err
	}
	delete(records, id)
	return s.write(records)
}

// read treats a missing or corrupt file as empty storage
func (s *FileStore) read() (map[string]Record, error) {
	records := make(map[string]Record)

	data, err := os.ReadFile(s.path)
	if errors.Is(err, os.ErrNotExist) {
		return records, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read session file: %w", err)
	}
	if len(data) == 0 {
		return records, nil
	}
	if err := json.Unmarshal(data, &records); err != nil {
		s.logger.Warn("session file is corrupt, treating as empty", "path", s.path, "error", err.Error())
		return make(map[string]Record), nil
	}
	return records, nil
}

func (s *FileStore) write(records map[string]Record) error {
	data, err := json.MarshalIndent(records, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to marshal sessions: %w", err)
	}
	if dir := filepath.Dir(s.path); dir != "" {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("failed to create session dir: %w", err)
		}
	}
	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o600); err != nil {
		return fmt.Errorf("failed to write session file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("failed to replace session file: %w", err)
	}
	return nil
}
