// Package credentials keeps rulectl's login between runs: the server and
// username in a small YAML profile, the token in the OS keyring.
package credentials

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/zalando/go-keyring"
	"gopkg.in/yaml.v3"
)

const keyringService = "tripwire-rulectl"

var ErrNotLoggedIn = errors.New("not logged in; run rulectl login")

// Profile is the non-secret part of a login.
type Profile struct {
	Server   string `yaml:"server"`
	Username string `yaml:"username"`
}

// ProfilePath returns the per-user profile location.
func ProfilePath() (string, error) {
	dir, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(dir, "tripwire", "rulectl.yaml"), nil
}

type Store struct {
	path string
}

// NewStore keeps the profile at path.
func NewStore(path string) *Store { return &Store{path: path} }

// Save records a login. The token goes to the keyring under the server URL.
func (s *Store) Save(p Profile, token string) error {
	if err := keyring.Set(keyringService, p.Server, token); err != nil {
		return fmt.Errorf("store token: %w", err)
	}
	data, err := yaml.Marshal(p)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o700); err != nil {
		return err
	}
	return os.WriteFile(s.path, data, 0o600)
}

// Load returns the saved profile and its token.
func (s *Store) Load() (Profile, string, error) {
	data, err := os.ReadFile(s.path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return Profile{}, "", ErrNotLoggedIn
		}
		return Profile{}, "", err
	}
	var p Profile
	if err := yaml.Unmarshal(data, &p); err != nil {
		return Profile{}, "", fmt.Errorf("parse profile: %w", err)
	}
	token, err := keyring.Get(keyringService, p.Server)
	if err != nil {
		if errors.Is(err, keyring.ErrNotFound) {
			return p, "", ErrNotLoggedIn
		}
		return p, "", fmt.Errorf("read token: %w", err)
	}
	return p, token, nil
}

// Clear forgets the login.
func (s *Store) Clear() error {
	p, _, err := s.Load()
	if err != nil && !errors.Is(err, ErrNotLoggedIn) {
		return err
	}
	if p.Server != "" {
		if err := keyring.Delete(keyringService, p.Server); err != nil && !errors.Is(err, keyring.ErrNotFound) {
			return fmt.Errorf("delete token: %w", err)
		}
	}
	if err := os.Remove(s.path); err != nil && !errors.Is(err, os.ErrNotExist) {
		return err
	}
	return nil
}
