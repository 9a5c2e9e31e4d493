package session_test

import (
	"errors"
	"os"
	"testing"

	"pgregory.net/rapid"

	"github.com/fakeyudi/oculist/internal/session"
)

// Feature: oculist, Property 5: Outline draft persistence round-trip
func TestOutlineDraftRoundTrip(t *testing.T) {
	// Use the outer *testing.T for TempDir/Setenv (rapid.T doesn't have these).
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := session.NewOutlineStore()
	if err != nil {
		t.Fatalf("NewOutlineStore: %v", err)
	}

	rapid.Check(t, func(t *rapid.T) {
		visitID := rapid.IntRange(1, 10_000).Draw(t, "visit_id")
		outline := rapid.SliceOfN(rapid.StringN(1, 80, -1), 0, 12).Draw(t, "outline")

		if err := store.Save(visitID, outline); err != nil {
			t.Fatalf("Save: %v", err)
		}
		loaded, err := store.Load(visitID)
		if err != nil {
			t.Fatalf("Load: %v", err)
		}
		if len(loaded) != len(outline) {
			t.Fatalf("length mismatch: got %d, want %d", len(loaded), len(outline))
		}
		for i := range outline {
			if loaded[i] != outline[i] {
				t.Errorf("outline[%d] mismatch: got %q, want %q", i, loaded[i], outline[i])
			}
		}
	})
}

func TestLoadReturnsErrNoDraft(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := session.NewOutlineStore()
	if err != nil {
		t.Fatalf("NewOutlineStore: %v", err)
	}
	if _, err := store.Load(42); !errors.Is(err, session.ErrNoDraft) {
		t.Errorf("expected ErrNoDraft, got: %v", err)
	}
}

func TestDeleteRemovesDraft(t *testing.T) {
	t.Setenv("XDG_DATA_HOME", t.TempDir())

	store, err := session.NewOutlineStore()
	if err != nil {
		t.Fatalf("NewOutlineStore: %v", err)
	}
	if err := store.Save(3, []string{"Diagnosis"}); err != nil {
		t.Fatalf("Save: %v", err)
	}
	if err := store.Delete(3); err != nil {
		t.Fatalf("Delete: %v", err)
	}
	if _, err := store.Load(3); !errors.Is(err, session.ErrNoDraft) {
		t.Errorf("expected ErrNoDraft after delete, got: %v", err)
	}
	// Deleting again is not an error.
	if err := store.Delete(3); err != nil {
		t.Errorf("second Delete: %v", err)
	}
}

func TestNewOutlineStoreFailsInUnwritableDir(t *testing.T) {
	if os.Getuid() == 0 {
		t.Skip("running as root; permission checks are ineffective")
	}

	tmp := t.TempDir()
	if err := os.Chmod(tmp, 0o000); err != nil {
		t.Fatalf("chmod: %v", err)
	}
	t.Cleanup(func() { os.Chmod(tmp, 0o755) })
	t.Setenv("XDG_DATA_HOME", tmp)

	if _, err := session.NewOutlineStore(); err == nil {
		t.Fatal("expected error creating store in unwritable directory, got nil")
	}
}
