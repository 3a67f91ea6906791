package storage

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"

	"github.com/KaramelBytes/edachat-cli/internal/utils"
)

// FileBackend keeps every key in one JSON object file, rewritten atomically
// on each change.
type FileBackend struct {
	mu   sync.Mutex
	path string
}

// NewFileBackend returns a backend stored at path, creating its directory.
func NewFileBackend(path string) (*FileBackend, error) {
	if err := utils.EnsureDir(filepath.Dir(path)); err != nil {
		return nil, fmt.Errorf("ensure dir: %w", err)
	}
	return &FileBackend{path: path}, nil
}

// Path returns the on-disk location of the store.
func (b *FileBackend) Path() string { return b.path }

func (b *FileBackend) read() (map[string]string, error) {
	data, err := os.ReadFile(b.path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return map[string]string{}, nil
		}
		return nil, fmt.Errorf("read store: %w", err)
	}
	m := map[string]string{}
	if len(data) == 0 {
		return m, nil
	}
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse %s: %w: %v", b.path, ErrCorrupt, err)
	}
	return m, nil
}

func (b *FileBackend) write(m map[string]string) error {
	data, err := utils.PrettyJSON(m)
	if err != nil {
		return err
	}
	return utils.SafeWriteFile(b.path, data)
}

func (b *FileBackend) Get(_ context.Context, key string) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		return nil, err
	}
	v, ok := m[key]
	if !ok {
		return nil, ErrNotFound
	}
	return []byte(v), nil
}

// Put overwrites key. A corrupt store file is replaced rather than merged.
func (b *FileBackend) Put(_ context.Context, key string, value []byte) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		m = map[string]string{}
	}
	m[key] = string(value)
	return b.write(m)
}

func (b *FileBackend) Delete(_ context.Context, key string) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	m, err := b.read()
	if err != nil {
		if !errors.Is(err, ErrCorrupt) {
			return err
		}
		m = map[string]string{}
	}
	if _, ok := m[key]; !ok && err == nil {
		return nil
	}
	delete(m, key)
	return b.write(m)
}

func (b *FileBackend) Close() error { return nil }
