package sqlite

import (
	"context"
	"fmt"
)

func (c *Client) EnsureSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id       TEXT PRIMARY KEY,
		version          INTEGER NOT NULL,
		narrative_events INTEGER NOT NULL DEFAULT 0,
		state_events     INTEGER NOT NULL DEFAULT 0,
		payload          BLOB NOT NULL,
		updated_at       TEXT NOT NULL DEFAULT (datetime('now'))
	);

	CREATE INDEX IF NOT EXISTS idx_sessions_updated ON sessions (updated_at);
	`
	if _, err := c.db.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("ensuring schema: %w", err)
	}
	return nil
}
