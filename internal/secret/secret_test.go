package secret

import (
	"errors"
	"path/filepath"
	"testing"
)

type stubStore struct {
	key string
	err error
}

func (s stubStore) Get() (string, error) { return s.key, s.err }
func (s stubStore) Set(string) error     { return nil }

func TestFileStore_RoundTrip(t *testing.T) {
	fs := fileStore{path: filepath.Join(t.TempDir(), "credentials")}

	if _, err := fs.Get(); !errors.Is(err, ErrNotFound) {
		t.Fatalf("Get on empty store: err = %v, want ErrNotFound", err)
	}

	if err := fs.Set("sk-ant-test-123"); err != nil {
		t.Fatalf("Set: %v", err)
	}
	got, err := fs.Get()
	if err != nil {
		t.Fatalf("Get: %v", err)
	}
	if got != "sk-ant-test-123" {
		t.Fatalf("Get = %q, want sk-ant-test-123", got)
	}
}

func TestAPIKey_EnvWins(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "sk-ant-from-env")

	got := APIKey(stubStore{key: "sk-ant-from-store"})
	if got != "sk-ant-from-env" {
		t.Fatalf("APIKey = %q, want env value", got)
	}
}

func TestAPIKey_FallsBackToStore(t *testing.T) {
	t.Setenv("ANTHROPIC_API_KEY", "")

	if got := APIKey(stubStore{key: "sk-ant-from-store"}); got != "sk-ant-from-store" {
		t.Fatalf("APIKey = %q, want store value", got)
	}
	if got := APIKey(stubStore{err: ErrNotFound}); got != "" {
		t.Fatalf("APIKey with empty store = %q, want \"\"", got)
	}
}
