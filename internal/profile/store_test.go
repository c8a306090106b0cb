package profile

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/orchestrator"
)

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(filepath.Join(t.TempDir(), "profiles.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func alice() orchestrator.Actor { return orchestrator.Actor{ID: "alice", Type: "user"} }

func TestPreferencesRoundTrip(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	want := orchestrator.Preferences{
		ResponseLength:     "short",
		Formality:          "casual",
		CustomInstructions: "always use metric units",
	}
	if err := s.SetAIPreferences(ctx, alice(), "alice", want); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := s.AIPreferences(ctx, alice(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != want {
		t.Errorf("preferences = %+v, want %+v", got, want)
	}
}

func TestPreferencesUpsert(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	s.SetAIPreferences(ctx, alice(), "alice", orchestrator.Preferences{ResponseLength: "long"})
	if err := s.SetAIPreferences(ctx, alice(), "alice", orchestrator.Preferences{ResponseLength: "short"}); err != nil {
		t.Fatalf("second set: %v", err)
	}
	got, _ := s.AIPreferences(ctx, alice(), "alice")
	if got.ResponseLength != "short" {
		t.Errorf("response length = %q, want short", got.ResponseLength)
	}
}

func TestPreferencesDefaultWhenUnset(t *testing.T) {
	s := openTestStore(t)
	got, err := s.AIPreferences(context.Background(), alice(), "alice")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if got != (orchestrator.Preferences{}) {
		t.Errorf("preferences = %+v, want zero defaults", got)
	}
}

func TestPreferencesCrossUserDenied(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.AIPreferences(ctx, alice(), "bob"); !errors.Is(err, fault.ErrPermissionDenied) {
		t.Errorf("cross-user read: err = %v, want ErrPermissionDenied", err)
	}
	if err := s.SetAIPreferences(ctx, alice(), "bob", orchestrator.Preferences{}); !errors.Is(err, fault.ErrPermissionDenied) {
		t.Errorf("cross-user write: err = %v, want ErrPermissionDenied", err)
	}
	// System actors read and write any profile.
	if err := s.SetAIPreferences(ctx, orchestrator.SystemActor, "bob", orchestrator.Preferences{Formality: "formal"}); err != nil {
		t.Errorf("system write: %v", err)
	}
	got, err := s.AIPreferences(ctx, orchestrator.SystemActor, "bob")
	if err != nil || got.Formality != "formal" {
		t.Errorf("system read = %+v, %v", got, err)
	}
}
