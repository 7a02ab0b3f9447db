package testsupport

import (
	"testing"

	"clipper/internal/config"
	"clipper/internal/queue"
)

// MustOpenStore opens a job store for the provided config and closes it
// when the test ends.
func MustOpenStore(t *testing.T, cfg *config.Config) *queue.Store {
	t.Helper()

	store, err := queue.Open(cfg)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("close store: %v", err)
		}
	})
	return store
}
