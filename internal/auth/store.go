package auth

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
)

// TokenStore persists the credential in client-local storage.
type TokenStore interface {
	Load() (Credential, error)
	Save(Credential) error
	Clear() error
}

// NewTokenStore returns a file store for path, or a no-op store when path is empty.
func NewTokenStore(path string) TokenStore {
	if path == "" {
		return nopStore{}
	}
	return FileStore{Path: path}
}

// FileStore keeps the credential as a small JSON file readable only by the owner.
type FileStore struct {
	Path string
}

func (f FileStore) Load() (Credential, error) {
	data, err := os.ReadFile(f.Path)
	if errors.Is(err, os.ErrNotExist) {
		return Credential{}, nil
	}
	if err != nil {
		return Credential{}, fmt.Errorf("failed to read credential file: %w", err)
	}
	var cred Credential
	if err := json.Unmarshal(data, &cred); err != nil {
		return Credential{}, fmt.Errorf("failed to decode credential file: %w", err)
	}
	return cred, nil
}

func (f FileStore) Save(cred Credential) error {
	data, err := json.Marshal(cred)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(f.Path), 0o700); err != nil {
		return fmt.Errorf("failed to create credential dir: %w", err)
	}
	return os.WriteFile(f.Path, data, 0o600)
}

func (f FileStore) Clear() error {
	if err := os.Remove(f.Path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}

type nopStore struct{}

func (nopStore) Load() (Credential, error) { return Credential{}, nil }
func (nopStore) Save(Credential) error     { return nil }
func (nopStore) Clear() error              { return nil }
