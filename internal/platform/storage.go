package platform

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/sakif/snippet-vault/internal/model"
)

// Storage persists the session between runs.
//
// Load returns (nil, nil) when nothing is stored.
type Storage interface {
	Load() (*model.Session, error)
	Save(*model.Session) error
	Delete() error
}

// MemoryStorage keeps the session for the lifetime of the process.
type MemoryStorage struct {
	mu      sync.Mutex
	session *model.Session
}

// NewMemoryStorage returns an empty MemoryStorage.
func NewMemoryStorage() *MemoryStorage {
	return &MemoryStorage{}
}

func (m *MemoryStorage) Load() (*model.Session, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.session == nil {
		return nil, nil
	}
	s := *m.session
	return &s, nil
}

func (m *MemoryStorage) Save(s *model.Session) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	cp := *s
	m.session = &cp
	return nil
}

func (m *MemoryStorage) Delete() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.session = nil
	return nil
}

// FileStorage keeps the session in a JSON file readable only by the owner,
// since it holds a refresh token.
type FileStorage struct {
	path string
	mu   sync.Mutex
}

// NewFileStorage returns a FileStorage writing to path. The file and its
// directory are created on the first Save.
func NewFileStorage(path string) *FileStorage {
	return &FileStorage{path: path}
}

// Path returns the session file location.
func (f *FileStorage) Path() string {
	return f.path
}

func (f *FileStorage) Load() (*model.Session, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("platform: reading session file: %w", err)
	}

	var s model.Session
	if err := json.Unmarshal(data, &s); err != nil {
		return nil, fmt.Errorf("platform: decoding session file %s: %w", f.path, err)
	}
	if s.AccessToken == "" {
		return nil, nil
	}
	return &s, nil
}

// Save writes to a temp file and renames it, so a crash never leaves a
// half-written session behind.
func (f *FileStorage) Save(s *model.Session) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := json.Marshal(s)
	if err != nil {
		return fmt.Errorf("platform: encoding session: %w", err)
	}

	dir := filepath.Dir(f.path)
	if err := os.MkdirAll(dir, 0o700); err != nil {
		return fmt.Errorf("platform: creating session directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, ".session-*.tmp")
	if err != nil {
		return fmt.Errorf("platform: creating temp session file: %w", err)
	}
	defer os.Remove(tmp.Name()) // no-op after a successful rename

	if err := tmp.Chmod(0o600); err != nil {
		tmp.Close()
		return fmt.Errorf("platform: chmod session file: %w", err)
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		return fmt.Errorf("platform: writing session file: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return fmt.Errorf("platform: closing session file: %w", err)
	}
	if err := os.Rename(tmp.Name(), f.path); err != nil {
		return fmt.Errorf("platform: replacing session file: %w", err)
	}
	return nil
}

func (f *FileStorage) Delete() error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return fmt.Errorf("platform: removing session file: %w", err)
	}
	return nil
}
