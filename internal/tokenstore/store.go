package tokenstore

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"sync"

	"gopkg.in/yaml.v3"
)

// Store maps a Telegram user id to that user's Readeck API token.
type Store interface {
	Get(userID int64) (string, bool)
	Set(userID int64, token string) error
	Delete(userID int64) error
}

// FileStore persists the whole mapping to a single YAML file on every
// mutation. A single mutex serializes read-modify-write so two users
// registering close in time cannot clobber each other; the file is
// replaced atomically (tmp + rename) so readers never see a torn write.
type FileStore struct {
	mu     sync.Mutex
	path   string
	tokens map[string]string
}

// Open loads the mapping from path, tolerating a missing file.
func Open(path string) (*FileStore, error) {
	s := &FileStore{
		path:   path,
		tokens: make(map[string]string),
	}

	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return s, nil
		}
		return nil, fmt.Errorf("read token file %s: %w", path, err)
	}
	if len(b) == 0 {
		return s, nil
	}
	if err := yaml.Unmarshal(b, &s.tokens); err != nil {
		return nil, fmt.Errorf("parse token file %s: %w", path, err)
	}
	if s.tokens == nil {
		s.tokens = make(map[string]string)
	}
	return s, nil
}

func (s *FileStore) Get(userID int64) (string, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	token, ok := s.tokens[key(userID)]
	return token, ok
}

// Set overwrites any prior token for the user. Last write wins.
func (s *FileStore) Set(userID int64, token string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.tokens[key(userID)] = token
	return s.save()
}

func (s *FileStore) Delete(userID int64) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.tokens, key(userID))
	return s.save()
}

// Count returns the number of stored tokens.
func (s *FileStore) Count() int {
	s.mu.Lock()
	defer s.mu.Unlock()

	return len(s.tokens)
}

// save must be called with s.mu held.
func (s *FileStore) save() error {
	b, err := yaml.Marshal(s.tokens)
	if err != nil {
		return fmt.Errorf("marshal tokens: %w", err)
	}

	dir := filepath.Dir(s.path)
	if dir != "." {
		if err := os.MkdirAll(dir, 0o700); err != nil {
			return fmt.Errorf("create token dir: %w", err)
		}
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("write token file: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		_ = os.Remove(tmp)
		return fmt.Errorf("replace token file: %w", err)
	}
	return nil
}

func key(userID int64) string {
	return strconv.FormatInt(userID, 10)
}
