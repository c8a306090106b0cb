// Package memory stores long-lived user facts and retrieves the ones
// relevant to a query. Scoring is keyword overlap computed in Go — at the
// per-user row counts involved this is sub-millisecond.
package memory

import (
	"context"
	"database/sql"
	"fmt"
	"sort"
	"strings"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/orchestrator"
)

const schema = `
CREATE TABLE IF NOT EXISTS memories (
	id TEXT PRIMARY KEY,
	user_id TEXT NOT NULL,
	content TEXT NOT NULL,
	category TEXT NOT NULL DEFAULT 'general',
	importance INTEGER NOT NULL DEFAULT 5,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
CREATE INDEX IF NOT EXISTS idx_memories_user ON memories(user_id);
`

// minSimilarity filters out fragments with no meaningful token overlap.
const minSimilarity = 0.1

// Store is the SQLite-backed memory store.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the memory database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open memory db: %w", err)
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("failed to apply schema: %w", err)
	}
	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Add stores one memory for userID. Importance is clamped to 1-10.
func (s *Store) Add(ctx context.Context, actor orchestrator.Actor, userID, content, category string, importance int) (string, error) {
	if actor.Type == "user" && actor.ID != userID {
		return "", fault.PermissionDenied(actor.ID, "memories of "+userID)
	}
	if strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("memory content is required: %w", fault.ErrInvalidInput)
	}
	if category == "" {
		category = "general"
	}
	if importance < 1 {
		importance = 1
	}
	if importance > 10 {
		importance = 10
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO memories (id, user_id, content, category, importance) VALUES (?, ?, ?, ?, ?)`,
		id, userID, content, category, importance)
	if err != nil {
		return "", fmt.Errorf("add memory: %w", err)
	}
	return id, nil
}

// SearchMemories returns the top-limit memories of userID ranked by token
// overlap with the query. Fragments below the similarity floor are dropped.
func (s *Store) SearchMemories(ctx context.Context, actor orchestrator.Actor, userID, query string, limit int) ([]orchestrator.MemoryFragment, error) {
	if actor.Type == "user" && actor.ID != userID {
		return nil, fault.PermissionDenied(actor.ID, "memories of "+userID)
	}
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT content, category, importance FROM memories WHERE user_id = ?`, userID)
	if err != nil {
		return nil, fmt.Errorf("search memories: %w", err)
	}
	defer rows.Close()

	queryTokens := tokenize(query)

	var candidates []orchestrator.MemoryFragment
	for rows.Next() {
		var f orchestrator.MemoryFragment
		if err := rows.Scan(&f.Content, &f.Category, &f.Importance); err != nil {
			return nil, err
		}
		f.Similarity = overlapScore(queryTokens, tokenize(f.Content))
		if f.Similarity >= minSimilarity {
			candidates = append(candidates, f)
		}
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}

	sort.Slice(candidates, func(i, j int) bool {
		return candidates[i].Similarity > candidates[j].Similarity
	})
	if len(candidates) > limit {
		candidates = candidates[:limit]
	}
	return candidates, nil
}

// tokenize lowercases and splits on non-alphanumeric runes, dropping tokens
// shorter than 3 characters.
func tokenize(s string) map[string]bool {
	tokens := make(map[string]bool)
	for _, tok := range strings.FieldsFunc(strings.ToLower(s), func(r rune) bool {
		return !(r >= 'a' && r <= 'z' || r >= '0' && r <= '9')
	}) {
		if len(tok) >= 3 {
			tokens[tok] = true
		}
	}
	return tokens
}

// overlapScore is |query ∩ doc| / |query|, in 0..1.
func overlapScore(query, doc map[string]bool) float64 {
	if len(query) == 0 {
		return 0
	}
	matched := 0
	for tok := range query {
		if doc[tok] {
			matched++
		}
	}
	return float64(matched) / float64(len(query))
}
