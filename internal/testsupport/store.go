package testsupport

import (
	"testing"

	"komf/internal/store"
)

// MustOpenStore opens a store backed by a temporary database and closes it
// when the test ends.
func MustOpenStore(t testing.TB) *store.Store {
	t.Helper()
	cfg := NewConfig(t)
	s, err := store.Open(cfg)
	if err != nil {
		t.Fatalf("store.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = s.Close()
	})
	return s
}
