// Package knowledge stores shared reference articles and retrieves the ones
// relevant to a query. Unlike memories, knowledge is not scoped to a user.
package knowledge

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
CREATE TABLE IF NOT EXISTS knowledge (
	id TEXT PRIMARY KEY,
	title TEXT NOT NULL,
	content TEXT NOT NULL,
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

const minSimilarity = 0.1

// Store is the SQLite-backed knowledge base.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the knowledge database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open knowledge db: %w", err)
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

// Add stores one knowledge entry. Only system actors may write.
func (s *Store) Add(ctx context.Context, actor orchestrator.Actor, title, content string) (string, error) {
	if actor.Type == "user" {
		return "", fault.PermissionDenied(actor.ID, "knowledge base")
	}
	if strings.TrimSpace(title) == "" || strings.TrimSpace(content) == "" {
		return "", fmt.Errorf("knowledge title and content are required: %w", fault.ErrInvalidInput)
	}
	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO knowledge (id, title, content) VALUES (?, ?, ?)`, id, title, content)
	if err != nil {
		return "", fmt.Errorf("add knowledge: %w", err)
	}
	return id, nil
}

// SearchKnowledge returns the top-limit entries ranked by token overlap with
// the query. Title tokens count toward the match.
func (s *Store) SearchKnowledge(ctx context.Context, actor orchestrator.Actor, query string, limit int) ([]orchestrator.KnowledgeFragment, error) {
	if limit <= 0 {
		limit = 5
	}

	rows, err := s.db.QueryContext(ctx, `SELECT title, content FROM knowledge`)
	if err != nil {
		return nil, fmt.Errorf("search knowledge: %w", err)
	}
	defer rows.Close()

	queryTokens := tokenize(query)

	var candidates []orchestrator.KnowledgeFragment
	for rows.Next() {
		var f orchestrator.KnowledgeFragment
		if err := rows.Scan(&f.Title, &f.Content); err != nil {
			return nil, err
		}
		f.Similarity = overlapScore(queryTokens, tokenize(f.Title+" "+f.Content))
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
