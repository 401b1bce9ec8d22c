package client

import (
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"

	"github.com/NicolasHaas/roulette/pkg/model"
)

// SessionStore persists the signed-in session between runs.
type SessionStore interface {
	// Load returns the persisted session, or nil when there is none.
	Load() (*model.Session, error)
	Save(s *model.Session) error
	Clear() error
}

// FileSessionStore keeps the session as YAML on disk.
type FileSessionStore struct {
	path string
}

// NewFileSessionStore stores the session at path. An empty path means
// session.yaml next to the executable.
func NewFileSessionStore(path string) *FileSessionStore {
	if path == "" {
		path = besideExecutable("session.yaml")
	}
	return &FileSessionStore{path: path}
}

// Path returns the file location.
func (fs *FileSessionStore) Path() string {
	return fs.path
}

// Load reads the session. A missing or unreadable file is treated as
// signed out.
func (fs *FileSessionStore) Load() (*model.Session, error) {
	data, err := os.ReadFile(fs.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("client: read session: %w", err)
	}
	var s model.Session
	if err := yaml.Unmarshal(data, &s); err != nil {
		slog.Error("parse session", "path", fs.path, "err", err)
		return nil, nil
	}
	if s.UserID <= 0 || s.Username == "" {
		slog.Warn("ignoring incomplete session file", "path", fs.path)
		return nil, nil
	}
	return &s, nil
}

// Save writes the session with owner-only permissions.
func (fs *FileSessionStore) Save(s *model.Session) error {
	data, err := yaml.Marshal(s)
	if err != nil {
		return fmt.Errorf("client: encode session: %w", err)
	}
	if err := os.WriteFile(fs.path, data, 0600); err != nil {
		return fmt.Errorf("client: write session: %w", err)
	}
	return nil
}

// Clear removes the session file.
func (fs *FileSessionStore) Clear() error {
	if err := os.Remove(fs.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("client: remove session: %w", err)
	}
	return nil
}

// MemorySessionStore is a SessionStore for tests and ephemeral clients.
type MemorySessionStore struct {
	s *model.Session
}

func (m *MemorySessionStore) Load() (*model.Session, error) { return m.s.Clone(), nil }
func (m *MemorySessionStore) Save(s *model.Session) error   { m.s = s.Clone(); return nil }
func (m *MemorySessionStore) Clear() error                  { m.s = nil; return nil }

func besideExecutable(name string) string {
	exe, err := os.Executable()
	if err != nil {
		return name
	}
	return filepath.Join(filepath.Dir(exe), name)
}
