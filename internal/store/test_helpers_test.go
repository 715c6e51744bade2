package store

import (
	"path/filepath"
	"testing"

	"github.com/roach88/agsrecall/internal/ir"
)

// createTestStore opens a fresh journal in a temp dir.
func createTestStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "test.db")
	s, err := Open(path)
	if err != nil {
		t.Fatalf("Open() failed: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func createTestContext(id, parent string, seq int64) ir.ContextRecord {
	return ir.ContextRecord{
		RecallID:    id,
		ParentID:    parent,
		Audio:       "synth",
		Orientation: "input",
		Scope:       "playback",
		Pad:         -1,
		StartedSeq:  seq,
	}
}
