package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

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
	VALUES ($1, $2, $3, $4, $5, now())
	ON CONFLICT (session_id) DO UPDATE SET
		version          = EXCLUDED.version,
		narrative_events = EXCLUDED.narrative_events,
		state_events     = EXCLUDED.state_events,
		payload          = EXCLUDED.payload,
		updated_at       = EXCLUDED.updated_at`
	if _, err := c.pool.Exec(ctx, query,
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
	err := c.pool.QueryRow(ctx,
		`SELECT payload FROM sessions WHERE session_id = $1`, sessionID).Scan(&payload)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, persist.ErrSessionNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("loading session %s: %w", sessionID, err)
	}
	return payload, nil
}

func (c *Client) List(ctx context.Context) ([]persist.SessionInfo, error) {
	rows, err := c.pool.Query(ctx, `
	SELECT session_id, version, narrative_events, state_events, updated_at
	FROM sessions ORDER BY updated_at DESC`)
	if err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	defer rows.Close()

	var out []persist.SessionInfo
	for rows.Next() {
		var info persist.SessionInfo
		if err := rows.Scan(&info.SessionID, &info.Version,
			&info.NarrativeEvents, &info.StateEvents, &info.UpdatedAt); err != nil {
			return nil, fmt.Errorf("listing sessions: %w", err)
		}
		out = append(out, info)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("listing sessions: %w", err)
	}
	return out, nil
}

func (c *Client) Delete(ctx context.Context, sessionID string) error {
	tag, err := c.pool.Exec(ctx, `DELETE FROM sessions WHERE session_id = $1`, sessionID)
	if err != nil {
		return fmt.Errorf("deleting session %s: %w", sessionID, err)
	}
	if tag.RowsAffected() == 0 {
		return fmt.Errorf("deleting session %s: %w", sessionID, persist.ErrSessionNotFound)
	}
	return nil
}
