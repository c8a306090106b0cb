package memory

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
	s, err := Open(filepath.Join(t.TempDir(), "memories.db"))
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

func alice() orchestrator.Actor { return orchestrator.Actor{ID: "alice", Type: "user"} }

func TestSearchMemoriesRanking(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	seeds := []string{
		"alice prefers espresso over filter coffee",
		"alice plays jazz piano on weekends",
		"the garden needs watering twice a week",
	}
	for _, content := range seeds {
		if _, err := s.Add(ctx, alice(), "alice", content, "general", 5); err != nil {
			t.Fatalf("add %q: %v", content, err)
		}
	}

	got, err := s.SearchMemories(ctx, alice(), "alice", "what coffee does alice like, espresso or filter?", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) == 0 {
		t.Fatal("no fragments returned")
	}
	if got[0].Content != seeds[0] {
		t.Errorf("top fragment = %q", got[0].Content)
	}
	for _, f := range got {
		if f.Similarity < minSimilarity {
			t.Errorf("fragment below floor returned: %+v", f)
		}
		if f.Content == seeds[2] {
			t.Errorf("unrelated fragment returned: %q", f.Content)
		}
	}
}

func TestSearchMemoriesLimit(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	for _, content := range []string{
		"project apollo deadline is friday",
		"project apollo owner is alice",
		"project apollo budget is tight",
	} {
		if _, err := s.Add(ctx, alice(), "alice", content, "work", 5); err != nil {
			t.Fatalf("add: %v", err)
		}
	}

	got, err := s.SearchMemories(ctx, alice(), "alice", "tell me about project apollo", 2)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 2 {
		t.Errorf("fragments = %d, want 2", len(got))
	}
}

func TestSearchMemoriesIsolatedPerUser(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, orchestrator.SystemActor, "bob", "bob likes sailing", "general", 5); err != nil {
		t.Fatalf("add: %v", err)
	}

	got, err := s.SearchMemories(ctx, alice(), "alice", "who likes sailing boats", 5)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("leaked fragments across users: %+v", got)
	}
}

func TestMemoryPermissions(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, alice(), "bob", "x", "", 5); !errors.Is(err, fault.ErrPermissionDenied) {
		t.Errorf("cross-user add: err = %v, want ErrPermissionDenied", err)
	}
	if _, err := s.SearchMemories(ctx, alice(), "bob", "q", 5); !errors.Is(err, fault.ErrPermissionDenied) {
		t.Errorf("cross-user search: err = %v, want ErrPermissionDenied", err)
	}
	// System actors operate on any user.
	if _, err := s.Add(ctx, orchestrator.SystemActor, "bob", "fact", "", 5); err != nil {
		t.Errorf("system add: %v", err)
	}
}

func TestAddClampsImportance(t *testing.T) {
	s := openTestStore(t)
	ctx := context.Background()

	if _, err := s.Add(ctx, alice(), "alice", "importance way too high", "", 99); err != nil {
		t.Fatalf("add: %v", err)
	}
	got, err := s.SearchMemories(ctx, alice(), "alice", "importance way too high", 1)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(got) != 1 || got[0].Importance != 10 {
		t.Errorf("fragments = %+v, want importance clamped to 10", got)
	}
}

func TestTokenize(t *testing.T) {
	tokens := tokenize("The QUICK brown fox, is 42!")
	for _, want := range []string{"the", "quick", "brown", "fox"} {
		if !tokens[want] {
			t.Errorf("token %q missing", want)
		}
	}
	if tokens["42"] || tokens["is"] {
		t.Errorf("short tokens kept: %v", tokens)
	}
}

func TestOverlapScore(t *testing.T) {
	q := tokenize("alpha beta gamma delta")
	if got := overlapScore(q, tokenize("alpha beta")); got != 0.5 {
		t.Errorf("score = %v, want 0.5", got)
	}
	if got := overlapScore(q, tokenize("zzz")); got != 0 {
		t.Errorf("score = %v, want 0", got)
	}
	if got := overlapScore(tokenize(""), tokenize("alpha")); got != 0 {
		t.Errorf("empty query score = %v, want 0", got)
	}
}
