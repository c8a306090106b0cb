// Package governance manages versioned system prompts and the approval
// workflow that gates which prompt version is live.
package governance

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"

	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/orchestrator"
)

// Prompt statuses.
const (
	StatusDraft    = "draft"
	StatusPending  = "pending"
	StatusApproved = "approved"
	StatusDenied   = "denied"
)

const schema = `
CREATE TABLE IF NOT EXISTS prompts (
	id TEXT PRIMARY KEY,
	version INTEGER NOT NULL,
	content TEXT NOT NULL,
	status TEXT NOT NULL DEFAULT 'draft',
	active BOOLEAN NOT NULL DEFAULT 0,
	author TEXT DEFAULT '',
	reviewer TEXT DEFAULT '',
	created_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP,
	decided_at DATETIME
);
CREATE INDEX IF NOT EXISTS idx_prompts_status ON prompts(status);
CREATE INDEX IF NOT EXISTS idx_prompts_active ON prompts(active);
`

// Prompt is one versioned system-prompt revision.
type Prompt struct {
	ID        string
	Version   int
	Content   string
	Status    string
	Active    bool
	Author    string
	Reviewer  string
	CreatedAt time.Time
	DecidedAt *time.Time
}

// Store is the SQLite-backed prompt registry. At most one prompt is active
// at a time; only approved prompts can be active.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the governance database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open governance db: %w", err)
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

// CreateDraft registers a new prompt revision in draft state.
func (s *Store) CreateDraft(ctx context.Context, actor orchestrator.Actor, content string) (*Prompt, error) {
	if actor.Type == "user" {
		return nil, fault.PermissionDenied(actor.ID, "prompt governance")
	}
	if strings.TrimSpace(content) == "" {
		return nil, fmt.Errorf("prompt content is required: %w", fault.ErrInvalidInput)
	}

	var maxVersion int
	if err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(MAX(version), 0) FROM prompts`).Scan(&maxVersion); err != nil {
		return nil, fmt.Errorf("next prompt version: %w", err)
	}

	id := uuid.NewString()
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO prompts (id, version, content, status, author) VALUES (?, ?, ?, ?, ?)`,
		id, maxVersion+1, content, StatusDraft, actor.ID)
	if err != nil {
		return nil, fmt.Errorf("create prompt draft: %w", err)
	}
	return s.Get(ctx, id)
}

// Submit moves a draft into review.
func (s *Store) Submit(ctx context.Context, actor orchestrator.Actor, id string) error {
	return s.transition(ctx, actor, id, StatusDraft, StatusPending, "")
}

// Approve accepts a pending revision and makes it the single active prompt.
func (s *Store) Approve(ctx context.Context, actor orchestrator.Actor, id string) error {
	if actor.Type == "user" {
		return fault.PermissionDenied(actor.ID, "prompt governance")
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("approve prompt: %w", err)
	}
	defer tx.Rollback()

	res, err := tx.ExecContext(ctx,
		`UPDATE prompts SET status = ?, reviewer = ?, decided_at = datetime('now')
		 WHERE id = ? AND status = ?`,
		StatusApproved, actor.ID, id, StatusPending)
	if err != nil {
		return fmt.Errorf("approve prompt: %w", err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return s.missingOrWrongState(ctx, id, StatusPending)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE prompts SET active = 0 WHERE active = 1`); err != nil {
		return fmt.Errorf("deactivate previous prompt: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `UPDATE prompts SET active = 1 WHERE id = ?`, id); err != nil {
		return fmt.Errorf("activate prompt: %w", err)
	}
	return tx.Commit()
}

// Deny rejects a pending revision. The previously active prompt stays live.
func (s *Store) Deny(ctx context.Context, actor orchestrator.Actor, id string) error {
	return s.transition(ctx, actor, id, StatusPending, StatusDenied, actor.ID)
}

// ActivePrompt returns the live prompt content, or empty when none is
// approved yet.
func (s *Store) ActivePrompt(ctx context.Context, actor orchestrator.Actor) (string, error) {
	var content string
	err := s.db.QueryRowContext(ctx,
		`SELECT content FROM prompts WHERE active = 1 AND status = ? LIMIT 1`,
		StatusApproved).Scan(&content)
	if err == sql.ErrNoRows {
		return "", nil
	}
	if err != nil {
		return "", fmt.Errorf("active prompt: %w", err)
	}
	return content, nil
}

// Get returns one prompt revision by id.
func (s *Store) Get(ctx context.Context, id string) (*Prompt, error) {
	var p Prompt
	var decidedAt sql.NullTime
	err := s.db.QueryRowContext(ctx,
		`SELECT id, version, content, status, active, COALESCE(author,''), COALESCE(reviewer,''), created_at, decided_at
		 FROM prompts WHERE id = ?`, id).
		Scan(&p.ID, &p.Version, &p.Content, &p.Status, &p.Active, &p.Author, &p.Reviewer, &p.CreatedAt, &decidedAt)
	if err == sql.ErrNoRows {
		return nil, fault.NotFound("prompt", id)
	}
	if err != nil {
		return nil, fmt.Errorf("get prompt: %w", err)
	}
	if decidedAt.Valid {
		p.DecidedAt = &decidedAt.Time
	}
	return &p, nil
}

// List returns all revisions, newest version first.
func (s *Store) List(ctx context.Context) ([]Prompt, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id, version, content, status, active, COALESCE(author,''), COALESCE(reviewer,''), created_at, decided_at
		 FROM prompts ORDER BY version DESC`)
	if err != nil {
		return nil, fmt.Errorf("list prompts: %w", err)
	}
	defer rows.Close()

	var out []Prompt
	for rows.Next() {
		var p Prompt
		var decidedAt sql.NullTime
		if err := rows.Scan(&p.ID, &p.Version, &p.Content, &p.Status, &p.Active, &p.Author, &p.Reviewer, &p.CreatedAt, &decidedAt); err != nil {
			return nil, err
		}
		if decidedAt.Valid {
			p.DecidedAt = &decidedAt.Time
		}
		out = append(out, p)
	}
	return out, rows.Err()
}

func (s *Store) transition(ctx context.Context, actor orchestrator.Actor, id, from, to, reviewer string) error {
	if actor.Type == "user" {
		return fault.PermissionDenied(actor.ID, "prompt governance")
	}
	query := `UPDATE prompts SET status = ? WHERE id = ? AND status = ?`
	args := []any{to, id, from}
	if reviewer != "" {
		query = `UPDATE prompts SET status = ?, reviewer = ?, decided_at = datetime('now') WHERE id = ? AND status = ?`
		args = []any{to, reviewer, id, from}
	}
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("prompt transition to %s: %w", to, err)
	}
	n, _ := res.RowsAffected()
	if n == 0 {
		return s.missingOrWrongState(ctx, id, from)
	}
	return nil
}

func (s *Store) missingOrWrongState(ctx context.Context, id, wanted string) error {
	p, err := s.Get(ctx, id)
	if err != nil {
		return err
	}
	return fmt.Errorf("prompt %s is %s, expected %s: %w", id, p.Status, wanted, fault.ErrInvalidInput)
}
