// Package secret stores the Anthropic API credential outside the config
// file: in the OS keychain when one is available, falling back to a
// permission-restricted file under the data dir on headless systems.
package secret

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/charmbracelet/log"
	"github.com/zalando/go-keyring"
)

const (
	keyringService = "cchat"
	keyringAccount = "anthropic_api_key"

	fallbackFile = "credentials"
)

// ErrNotFound indicates no credential has been configured.
var ErrNotFound = errors.New("secret: no credential configured")

// Store is the opaque credential collaborator. Callers never learn whether
// the backing is a keychain or the degraded file fallback.
type Store interface {
	Get() (string, error)
	Set(value string) error
}

// APIKey resolves the credential: the ANTHROPIC_API_KEY environment variable
// wins, then the store. Returns "" when nothing is configured.
func APIKey(s Store) string {
	if key := os.Getenv("ANTHROPIC_API_KEY"); key != "" {
		return key
	}
	key, err := s.Get()
	if err != nil {
		return ""
	}
	return key
}

// Open returns the best available store for this system. When the OS
// keychain works, any credential left behind by an earlier degraded run is
// migrated into it.
func Open(dataDir string) Store {
	ks := keyringStore{}
	if err := ks.probe(); err != nil {
		log.Warn("OS keychain unavailable, storing API key in a plain file", "err", err)
		return fileStore{path: filepath.Join(dataDir, fallbackFile)}
	}

	fs := fileStore{path: filepath.Join(dataDir, fallbackFile)}
	if legacy, err := fs.Get(); err == nil && legacy != "" {
		if err := ks.Set(legacy); err == nil {
			_ = os.Remove(fs.path)
			log.Info("migrated API key from plain file into OS keychain")
		}
	}

	return ks
}

type keyringStore struct{}

// probe checks that the keychain backend actually responds; a missing entry
// is fine, a backend error means we must degrade.
func (keyringStore) probe() error {
	_, err := keyring.Get(keyringService, keyringAccount)
	if err == nil || errors.Is(err, keyring.ErrNotFound) {
		return nil
	}
	return err
}

func (keyringStore) Get() (string, error) {
	v, err := keyring.Get(keyringService, keyringAccount)
	if errors.Is(err, keyring.ErrNotFound) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("secret: reading keychain: %w", err)
	}
	return v, nil
}

func (keyringStore) Set(value string) error {
	if err := keyring.Set(keyringService, keyringAccount, value); err != nil {
		return fmt.Errorf("secret: writing keychain: %w", err)
	}
	return nil
}

type fileStore struct {
	path string
}

func (s fileStore) Get() (string, error) {
	data, err := os.ReadFile(s.path)
	if os.IsNotExist(err) {
		return "", ErrNotFound
	}
	if err != nil {
		return "", fmt.Errorf("secret: reading credential file: %w", err)
	}
	key := strings.TrimSpace(string(data))
	if key == "" {
		return "", ErrNotFound
	}
	return key, nil
}

func (s fileStore) Set(value string) error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("secret: creating data dir: %w", err)
	}
	if err := os.WriteFile(s.path, []byte(value+"\n"), 0o600); err != nil {
		return fmt.Errorf("secret: writing credential file: %w", err)
	}
	return nil
}
