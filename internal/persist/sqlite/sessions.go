package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"talekeeper/internal/persist"
	"talekeeper/internal/store"
)

func (c *Client) Save(ctx context.Context, sessionID string, s *store.Store) error {
	payload, err := s.Encode()
	if err != nil {
		return fmt.Errorf("saving session %s: %w", sessionID, err)
	}

	const query = `
	INSERT INTO sessions (session_id, version, narrative_events, state_events, payload, updated_at)
	VALUES (?, ?, ?, ?, ?, datetime('now'))
	ON CONFLICT (session_id) DO UPDATE SET
		version          = excluded.version,
		narrative_events = excluded.narrative_events,
		state_events     = excluded.state_events,
		payload          = excluded.payload,
		updated_at       = excluded.updated_at`
	if _, err := c.db.ExecContext(ctx, query,
		sessionID, s.Version, len(s.NarrativeEvents), len(s.StateEvents), payload); err != nil {
		return fmt.Errorf("saving session %s: %w", sessionID, err)
	}
	return nil
}

func (c *Client) Load(ctx context.Context, sessionID string) (*store.Store, error) {
	payload, err := c.LoadRaw(ctx, sessionID)
	if err != nil {
		return nil, err
	}
	s, err := store.Decode(payload)
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return s, nil
}

func (c *Client) LoadRaw(ctx context.Context, sessionID string) ([]byte, error) {
	var payload []byte
	err := c.db.QueryRowContext(ctx,
		`SELECT payload FROM sessions WHERE session_id = ?`, sessionID).Scan(&payload)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, persist.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return payload, nil
}

func (c *Client) List(ctx context.Context) ([]persist.SessionInfo, error) {
	rows, err := c.db.QueryContext(ctx, `
	SELECT session_id, version, narrative_events, state_events, updated_at
	FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []persist.SessionInfo
	for rows.Next() {
		var info persist.SessionInfo
		var updated string
		if err := rows.Scan(&info.SessionID, &info.Version,
			&info.NarrativeEvents, &info.StateEvents, &updated); err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		if t, err := time.Parse("2006-01-02 15:04:05", updated); err == nil {
			info.UpdatedAt = t
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	res, err := c.db.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	if affected == 0 {
		return fmt.Errorf("deleting session %s: %w", sessionID, persist.ErrSessionNotFound)
	}
	return nil
}
