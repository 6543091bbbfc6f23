package store

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/shashiranjanraj/storefront/pkg/crypt"
)

// Persister stores the serialized application state. Load returns nil, nil
// when nothing has been saved yet.
type Persister interface {
	Load() ([]byte, error)
	Save(data []byte) error
}

// MemoryPersister keeps state for the life of the process.
type MemoryPersister struct {
	mu   sync.Mutex
	data []byte
}

func (m *MemoryPersister) Load() ([]byte, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]byte(nil), m.data...), nil
}

func (m *MemoryPersister) Save(data []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data = append([]byte(nil), data...)
	return nil
}

// FilePersister writes state to one file, replacing it atomically.
type FilePersister struct {
	Path string
}

func NewFilePersister(path string) *FilePersister { return &FilePersister{Path: path} }

func (f *FilePersister) Load() ([]byte, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	return data, err
}

func (f *FilePersister) Save(data []byte) error {
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return err
	}
	tmp, err := os.CreateTemp(filepath.Dir(f.Path), ".state-*")
	if err != nil {
		return err
	}
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmp.Name())
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmp.Name())
		return err
	}
	return os.Rename(tmp.Name(), f.Path)
}

// EncryptedPersister seals state before handing it to Inner, so a saved
// token is unreadable without the passphrase.
type EncryptedPersister struct {
	Inner Persister
	Box   *crypt.Box
}

func NewEncryptedPersister(inner Persister, secret string) (*EncryptedPersister, error) {
	box, err := crypt.New(secret)
	if err != nil {
		return nil, err
	}
	return &EncryptedPersister{Inner: inner, Box: box}, nil
}

func (e *EncryptedPersister) Load() ([]byte, error) {
	sealed, err := e.Inner.Load()
	if err != nil || len(sealed) == 0 {
		return nil, err
	}
	plain, err := e.Box.Open(string(sealed))
	if err != nil {
		return nil, fmt.Errorf("store: %w", err)
	}
	return plain, nil
}

func (e *EncryptedPersister) Save(data []byte) error {
	sealed, err := e.Box.Seal(data)
	if err != nil {
		return err
	}
	return e.Inner.Save([]byte(sealed))
}
