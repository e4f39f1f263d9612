// Package capture is an optional append-only sqlite log of handled webhook
// events, for operator inspection (`smartlead-bridge events`). It records
// outcomes, not delivery state: deduplication stays memory-resident and the
// bridge runs fine with capture disabled.
package capture

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	_ "modernc.org/sqlite"
)

// Record is one handled webhook event.
type Record struct {
	ID          string
	Fingerprint string
	EventType   string
	Outcome     string // accepted | ignored | duplicate | forwarded | forward_failed
	CampaignID  *int64
	LeadID      *int64
	LeadEmail   string
	Payload     []byte // raw payload; only stored when log_payloads is on
	Detail      string // forward error text, if any
	CreatedAt   time.Time
}

type Store struct {
	db *sql.DB
}

// Open opens (and creates if needed) the capture database at path.
func Open(ctx context.Context, path string) (*Store, error) {
	if path == "" {
		return nil, fmt.Errorf("capture path is empty")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("create capture directory: %w", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pctx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if _, err := db.ExecContext(pctx, "PRAGMA busy_timeout = 5000;"); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("set busy_timeout: %w", err)
	}

	if _, err := db.ExecContext(pctx, `
CREATE TABLE IF NOT EXISTS event_log (
  id          TEXT PRIMARY KEY,
  fingerprint TEXT NOT NULL,
  event_type  TEXT,
  outcome     TEXT NOT NULL,
  campaign_id INTEGER,
  lead_id     INTEGER,
  lead_email  TEXT,
  payload     JSON,
  detail      TEXT,
  created_at  TEXT NOT NULL
);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create event_log table: %w", err)
	}
	if _, err := db.ExecContext(pctx,
		`CREATE INDEX IF NOT EXISTS idx_event_log_created_at ON event_log(created_at);`); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create event_log index: %w", err)
	}

	return &Store{db: db}, nil
}

func (s *Store) Close() error {
	return s.db.Close()
}

// Insert appends a record and returns its generated id.
func (s *Store) Insert(ctx context.Context, rec Record) (string, error) {
	if rec.Fingerprint == "" {
		return "", fmt.Errorf("fingerprint is empty")
	}
	if rec.Outcome == "" {
		return "", fmt.Errorf("outcome is empty")
	}

	id := uuid.NewString()
	now := time.Now().UTC().Format(time.RFC3339Nano)

	var payload any
	if len(rec.Payload) > 0 {
		payload = string(rec.Payload)
	}

	_, err := s.db.ExecContext(ctx, `
INSERT INTO event_log(id, fingerprint, event_type, outcome, campaign_id, lead_id, lead_email, payload, detail, created_at)
VALUES(?, ?, ?, ?, ?, ?, ?, ?, ?, ?);
`, id, rec.Fingerprint, nullString(rec.EventType), rec.Outcome, rec.CampaignID, rec.LeadID,
		nullString(rec.LeadEmail), payload, nullString(rec.Detail), now)
	if err != nil {
		return "", fmt.Errorf("insert event: %w", err)
	}
	return id, nil
}

// SetOutcome updates the outcome and detail of an already-inserted record,
// used when the detached forward call finishes after the ack.
func (s *Store) SetOutcome(ctx context.Context, id, outcome, detail string) error {
	_, err := s.db.ExecContext(ctx,
		`UPDATE event_log SET outcome = ?, detail = ? WHERE id = ?;`,
		outcome, nullString(detail), id)
	if err != nil {
		return fmt.Errorf("update event outcome: %w", err)
	}
	return nil
}

// Recent returns the newest limit records, newest-first.
func (s *Store) Recent(ctx context.Context, limit int) ([]Record, error) {
	if limit <= 0 {
		limit = 20
	}

	rows, err := s.db.QueryContext(ctx, `
SELECT id, fingerprint, event_type, outcome, campaign_id, lead_id, lead_email, payload, detail, created_at
FROM event_log
ORDER BY created_at DESC, rowid DESC
LIMIT ?;
`, limit)
	if err != nil {
		return nil, fmt.Errorf("query events: %w", err)
	}
	defer rows.Close()

	var out []Record
	for rows.Next() {
		var (
			rec        Record
			eventType  sql.NullString
			campaignID sql.NullInt64
			leadID     sql.NullInt64
			leadEmail  sql.NullString
			payload    sql.NullString
			detail     sql.NullString
			createdAtS string
		)
		if err := rows.Scan(&rec.ID, &rec.Fingerprint, &eventType, &rec.Outcome,
			&campaignID, &leadID, &leadEmail, &payload, &detail, &createdAtS); err != nil {
			return nil, fmt.Errorf("scan event: %w", err)
		}
		rec.EventType = eventType.String
		if campaignID.Valid {
			rec.CampaignID = &campaignID.Int64
		}
		if leadID.Valid {
			rec.LeadID = &leadID.Int64
		}
		rec.LeadEmail = leadEmail.String
		if payload.Valid {
			rec.Payload = []byte(payload.String)
		}
		rec.Detail = detail.String
		if t, err := time.Parse(time.RFC3339Nano, createdAtS); err == nil {
			rec.CreatedAt = t
		}
		out = append(out, rec)
	}
	return out, rows.Err()
}

func nullString(s string) any {
	if s == "" {
		return nil
	}
	return s
}
