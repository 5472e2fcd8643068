package drc

import (
	"context"
	"fmt"
	"time"

	"github.com/skybridge/skybridge-core/internal/infrastructure/database"
)

// SessionRepository persists DRC session history to the drc_sessions
// table. One row per session, opened on entry and closed on exit.
type SessionRepository struct {
	db *database.DB
}

// NewSessionRepository creates a repository over the given database.
func NewSessionRepository(db *database.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// SessionRecord is one row of session history.
type SessionRecord struct {
	ID        int64      `json:"id"`
	GatewaySN string     `json:"gateway_sn"`
	EnteredAt time.Time  `json:"entered_at"`
	ExitedAt  *time.Time `json:"exited_at,omitempty"`
	Outcome   string     `json:"outcome"`
	Detail    string     `json:"detail,omitempty"`
}

// RecordEntry inserts a new open session row and returns its id.
func (r *SessionRepository) RecordEntry(ctx context.Context, gatewaySN string) (int64, error) {
	result, err := r.db.ExecContext(ctx,
		`INSERT INTO drc_sessions (gateway_sn, entered_at, outcome) VALUES (?, ?, 'open')`,
		gatewaySN,
		time.Now().UTC().Format(time.RFC3339),
	)
	if err != nil {
		return 0, fmt.Errorf("recording session entry: %w", err)
	}

	id, err := result.LastInsertId()
	if err != nil {
		return 0, fmt.Errorf("reading session row id: %w", err)
	}
	return id, nil
}

// RecordExit closes a session row with its outcome.
func (r *SessionRepository) RecordExit(ctx context.Context, id int64, outcome string, detail string) error {
	_, err := r.db.ExecContext(ctx,
		`UPDATE drc_sessions SET exited_at = ?, outcome = ?, detail = ? WHERE id = ?`,
		time.Now().UTC().Format(time.RFC3339),
		outcome,
		detail,
		id,
	)
	if err != nil {
		return fmt.Errorf("recording session exit: %w", err)
	}
	return nil
}

// RecentSessions returns the most recent sessions for a gateway,
// newest first.
func (r *SessionRepository) RecentSessions(ctx context.Context, gatewaySN string, limit int) ([]SessionRecord, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := r.db.QueryContext(ctx,
		`SELECT id, gateway_sn, entered_at, exited_at, outcome, COALESCE(detail, '')
		 FROM drc_sessions
		 WHERE gateway_sn = ?
		 ORDER BY entered_at DESC
		 LIMIT ?`,
		gatewaySN, limit,
	)
	if err != nil {
		return nil, fmt.Errorf("querying sessions: %w", err)
	}
	defer rows.Close()

	var records []SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var enteredAt string
		var exitedAt *string
		if err := rows.Scan(&rec.ID, &rec.GatewaySN, &enteredAt, &exitedAt, &rec.Outcome, &rec.Detail); err != nil {
			return nil, fmt.Errorf("scanning session row: %w", err)
		}
		rec.EnteredAt, _ = time.Parse(time.RFC3339, enteredAt) //nolint:errcheck // Format is controlled
		if exitedAt != nil {
			t, _ := time.Parse(time.RFC3339, *exitedAt) //nolint:errcheck // Format is controlled
			rec.ExitedAt = &t
		}
		records = append(records, rec)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating session rows: %w", err)
	}
	return records, nil
}
