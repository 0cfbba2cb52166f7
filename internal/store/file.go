package store

import (
	"context"
	"encoding/json"
	"os"
	"path/filepath"
	"sync"
	"time"

	"divtrack/internal/errors"
)

// FileTokenStore keeps the token in a JSON file readable only by the owner.
type FileTokenStore struct {
	path string
	mu   sync.Mutex
}

// tokenFile represents the persisted token file.
type tokenFile struct {
	AccessToken string    `json:"access_token"`
	SavedAt     time.Time `json:"saved_at"`
}

// NewFileTokenStore creates a token store backed by the file at path.
func NewFileTokenStore(path string) *FileTokenStore {
	if path == "" {
		homeDir, _ := os.UserHomeDir()
		path = filepath.Join(homeDir, ".config", "divtrack", "session.json")
	}
	return &FileTokenStore{path: path}
}

// Path returns the file location.
func (f *FileTokenStore) Path() string {
	return f.path
}

// Save writes the token, replacing any previous one.
func (f *FileTokenStore) Save(ctx context.Context, token string) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.MkdirAll(filepath.Dir(f.path), 0700); err != nil {
		return errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}

	data, err := json.Marshal(tokenFile{AccessToken: token, SavedAt: time.Now().UTC()})
	if err != nil {
		return err
	}

	// Write to a temp file and rename so a crash never leaves a torn token.
	tmp := f.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0600); err != nil {
		return errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}
	if err := os.Rename(tmp, f.path); err != nil {
		return errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}
	return nil
}

// Load reads the token. A missing or empty file means no token.
func (f *FileTokenStore) Load(ctx context.Context) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	data, err := os.ReadFile(f.path)
	if err != nil {
		if os.IsNotExist(err) {
			return "", false, nil
		}
		return "", false, errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}

	var tf tokenFile
	if err := json.Unmarshal(data, &tf); err != nil {
		return "", false, errors.Wrap(errors.ErrTokenStoreFailure, "corrupt token file")
	}
	if tf.AccessToken == "" {
		return "", false, nil
	}
	return tf.AccessToken, true, nil
}

// Clear removes the token file.
func (f *FileTokenStore) Clear(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()

	if err := os.Remove(f.path); err != nil && !os.IsNotExist(err) {
		return errors.Wrap(errors.ErrTokenStoreFailure, err.Error())
	}
	return nil
}
