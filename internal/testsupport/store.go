package testsupport

import (
	"testing"

	"tafsync/internal/journal"
)

// MustOpenJournal opens a journal.Store at path for tests and registers cleanup.
func MustOpenJournal(t testing.TB, path string) *journal.Store {
	t.Helper()

	store, err := journal.Open(path)
	if err != nil {
		t.Fatalf("journal.Open: %v", err)
	}
	t.Cleanup(func() {
		_ = store.Close()
	})
	return store
}
