// Package audit records the commands the gateway routed to the backend.
//
// Each inbound .../set message produces one Entry carrying the decoded
// device and property, the value sent, and the outcome. Entries are kept
// in the command_audit SQLite table and listed newest first.
package audit

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

const (
	defaultLimit = 50
	maxLimit     = 200

	// timeLayout is fixed-width so received_at sorts as text.
	timeLayout = "2006-01-02T15:04:05.000000000Z"
)

// ErrInvalidEntry is returned by Create for an entry without topic or status.
var ErrInvalidEntry = errors.New("audit: invalid entry")

// Entry is one handled command.
type Entry struct {
	ID         string    `json:"id"`
	Topic      string    `json:"topic"`
	DeviceName string    `json:"device_name,omitempty"`
	DeviceID   string    `json:"device_id,omitempty"`
	Property   string    `json:"property,omitempty"`
	Value      string    `json:"value,omitempty"`
	Status     string    `json:"status"`
	Error      string    `json:"error,omitempty"`
	DurationMS int64     `json:"duration_ms"`
	ReceivedAt time.Time `json:"received_at"`
}

// Filter selects entries for List.
type Filter struct {
	DeviceName string // optional
	Status     string // optional: acked, failed, unresolved, rejected
	Limit      int    // default 50, max 200
	Offset     int
}

// ListResult is one page of entries.
type ListResult struct {
	Entries []Entry `json:"entries"`
	Total   int     `json:"total"`
	Limit   int     `json:"limit"`
	Offset  int     `json:"offset"`
}

// Repository stores entries in SQLite.
type Repository struct {
	db *sql.DB
}

// NewRepository creates a repository on an open, migrated database.
func NewRepository(db *sql.DB) *Repository {
	return &Repository{db: db}
}

// Create inserts e. ID and ReceivedAt are filled in when empty.
func (r *Repository) Create(ctx context.Context, e *Entry) error {
	if e.Topic == "" || e.Status == "" {
		return fmt.Errorf("%w: topic and status are required", ErrInvalidEntry)
	}
	if e.ID == "" {
		e.ID = "cmd-" + uuid.NewString()
	}
	if e.ReceivedAt.IsZero() {
		e.ReceivedAt = time.Now()
	}
	e.ReceivedAt = e.ReceivedAt.UTC()

	_, err := r.db.ExecContext(ctx,
		`INSERT INTO command_audit
		   (id, topic, device_name, device_id, property, value, status, error, duration_ms, received_at)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.ID, e.Topic,
		nullable(e.DeviceName), nullable(e.DeviceID), nullable(e.Property), nullable(e.Value),
		e.Status, nullable(e.Error), e.DurationMS,
		e.ReceivedAt.Format(timeLayout),
	)
	if err != nil {
		return fmt.Errorf("inserting command audit entry: %w", err)
	}
	return nil
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// List returns entries matching f, newest first.
func (r *Repository) List(ctx context.Context, f Filter) (*ListResult, error) {
	if f.Limit <= 0 {
		f.Limit = defaultLimit
	}
	if f.Limit > maxLimit {
		f.Limit = maxLimit
	}
	if f.Offset < 0 {
		f.Offset = 0
	}

	var conds []string
	var args []any
	if f.DeviceName != "" {
		conds = append(conds, "device_name = ?")
		args = append(args, f.DeviceName)
	}
	if f.Status != "" {
		conds = append(conds, "status = ?")
		args = append(args, f.Status)
	}
	where := ""
	if len(conds) > 0 {
		where = "WHERE " + strings.Join(conds, " AND ")
	}

	var total int
	countQuery := "SELECT COUNT(*) FROM command_audit " + where //nolint:gosec // conditions are placeholders only
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting command audit entries: %w", err)
	}

	query := `SELECT id, topic, device_name, device_id, property, value, status, error, duration_ms, received_at
	          FROM command_audit ` + where + ` ORDER BY received_at DESC, id LIMIT ? OFFSET ?` //nolint:gosec // conditions are placeholders only
	rows, err := r.db.QueryContext(ctx, query, append(args, f.Limit, f.Offset)...)
	if err != nil {
		return nil, fmt.Errorf("querying command audit entries: %w", err)
	}
	defer rows.Close()

	entries := []Entry{}
	for rows.Next() {
		var e Entry
		var deviceName, deviceID, property, value, errText sql.NullString
		var receivedAt string

		if err := rows.Scan(&e.ID, &e.Topic, &deviceName, &deviceID, &property, &value,
			&e.Status, &errText, &e.DurationMS, &receivedAt); err != nil {
			return nil, fmt.Errorf("scanning command audit entry: %w", err)
		}
		e.DeviceName = deviceName.String
		e.DeviceID = deviceID.String
		e.Property = property.String
		e.Value = value.String
		e.Error = errText.String

		t, err := time.Parse(timeLayout, receivedAt)
		if err != nil {
			return nil, fmt.Errorf("parsing received_at %q: %w", receivedAt, err)
		}
		e.ReceivedAt = t

		entries = append(entries, e)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating command audit entries: %w", err)
	}

	return &ListResult{Entries: entries, Total: total, Limit: f.Limit, Offset: f.Offset}, nil
}
