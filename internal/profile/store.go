// Package profile stores per-user AI preferences.
package profile

import (
	"context"
	"database/sql"
	"fmt"

	_ "modernc.org/sqlite"

	"github.com/conversa-ai/conversa/internal/fault"
	"github.com/conversa-ai/conversa/internal/orchestrator"
)

const schema = `
CREATE TABLE IF NOT EXISTS ai_preferences (
	user_id TEXT PRIMARY KEY,
	response_length TEXT DEFAULT '',
	formality TEXT DEFAULT '',
	custom_instructions TEXT DEFAULT '',
	updated_at DATETIME NOT NULL DEFAULT CURRENT_TIMESTAMP
);
`

// Store is the SQLite-backed preferences directory.
type Store struct {
	db *sql.DB
}

// Open opens (creating if needed) the profile database at dbPath.
func Open(dbPath string) (*Store, error) {
	db, err := sql.Open("sqlite", "file:"+dbPath+"?_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open profile db: %w", err)
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

// AIPreferences returns the stored preferences for userID. A user with no
// stored row gets zero-valued defaults, not an error; only a cross-user read
// by a plain user actor fails.
func (s *Store) AIPreferences(ctx context.Context, actor orchestrator.Actor, userID string) (orchestrator.Preferences, error) {
	if actor.Type == "user" && actor.ID != userID {
		return orchestrator.Preferences{}, fault.PermissionDenied(actor.ID, "preferences of "+userID)
	}
	var p orchestrator.Preferences
	err := s.db.QueryRowContext(ctx,
		`SELECT COALESCE(response_length,''), COALESCE(formality,''), COALESCE(custom_instructions,'')
		 FROM ai_preferences WHERE user_id = ?`, userID).
		Scan(&p.ResponseLength, &p.Formality, &p.CustomInstructions)
	if err == sql.ErrNoRows {
		return orchestrator.Preferences{}, nil
	}
	if err != nil {
		return orchestrator.Preferences{}, fmt.Errorf("get preferences: %w", err)
	}
	return p, nil
}

// SetAIPreferences upserts the preferences for userID.
func (s *Store) SetAIPreferences(ctx context.Context, actor orchestrator.Actor, userID string, p orchestrator.Preferences) error {
	if actor.Type == "user" && actor.ID != userID {
		return fault.PermissionDenied(actor.ID, "preferences of "+userID)
	}
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO ai_preferences (user_id, response_length, formality, custom_instructions, updated_at)
		VALUES (?, ?, ?, ?, datetime('now'))
		ON CONFLICT(user_id) DO UPDATE SET
			response_length = excluded.response_length,
			formality = excluded.formality,
			custom_instructions = excluded.custom_instructions,
			updated_at = excluded.updated_at
	`, userID, p.ResponseLength, p.Formality, p.CustomInstructions)
	if err != nil {
		return fmt.Errorf("set preferences: %w", err)
	}
	return nil
}
