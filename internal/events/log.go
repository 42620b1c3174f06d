// Package events provides the append-only marketplace event log.
//
// Events are written in the same SQLite transaction as the mutation they
// describe, so the log and the registry/ledger state always agree: a
// rolled-back purchase leaves no event behind. Consumers read the log via
// pull-based, paginated queries; the Publisher additionally fans events out
// over MQTT and WebSocket after commit, best-effort only.
package events

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event types emitted by the marketplace core.
const (
	// TypeDeviceRegistered is appended once per device, at registration.
	TypeDeviceRegistered = "device.registered"

	// TypeDeviceUpdated is appended when a device's terms change.
	TypeDeviceUpdated = "device.updated"

	// TypeDeviceActivation is appended when a device is toggled
	// active/inactive.
	TypeDeviceActivation = "device.activation"

	// TypeAccessPurchased is appended once per successful purchase.
	TypeAccessPurchased = "access.purchased"
)

// Event represents a single append-only log entry.
type Event struct {
	ID        string         `json:"id"`
	Type      string         `json:"type"`
	DeviceID  string         `json:"device_id,omitempty"`
	Actor     string         `json:"actor,omitempty"`
	Payload   map[string]any `json:"payload,omitempty"`
	CreatedAt time.Time      `json:"created_at"`
}

// Filter controls which events to return.
type Filter struct {
	Type     string // optional: filter by event type
	DeviceID string // optional: filter by device
	Limit    int    // default 50, max 200
	Offset   int    // pagination offset
}

// ListResult contains the paginated event log results.
type ListResult struct {
	Events []Event `json:"events"`
	Total  int     `json:"total"`
	Limit  int     `json:"limit"`
	Offset int     `json:"offset"`
}

// execer is satisfied by both *sql.DB and *sql.Tx.
type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

// AppendTx inserts an event using the given transaction (or connection).
// The ID and CreatedAt are generated if empty. Callers that append an event
// as part of a mutation must pass the mutation's own transaction so the two
// commit or revert together.
func AppendTx(ctx context.Context, tx execer, e *Event) error {
	if e.ID == "" {
		e.ID = "evt-" + uuid.NewString()[:8]
	}
	if e.CreatedAt.IsZero() {
		e.CreatedAt = time.Now().UTC()
	}

	var payloadJSON *string
	if e.Payload != nil {
		b, err := json.Marshal(e.Payload)
		if err != nil {
			return fmt.Errorf("marshalling event payload: %w", err)
		}
		s := string(b)
		payloadJSON = &s
	}

	_, err := tx.ExecContext(ctx,
		`INSERT INTO events (id, type, device_id, actor, payload, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.ID, e.Type,
		nullableString(e.DeviceID), nullableString(e.Actor),
		payloadJSON,
		e.CreatedAt.Format(time.RFC3339),
	)
	if err != nil {
		return fmt.Errorf("inserting event: %w", err)
	}

	return nil
}

// nullableString returns nil for empty strings, or the string otherwise.
// Used for nullable TEXT columns in SQLite.
func nullableString(s string) any {
	if s == "" {
		return nil
	}
	return s
}

// Repository defines the read interface over the event log.
type Repository interface {
	List(ctx context.Context, filter Filter) (*ListResult, error)
}

// SQLiteRepository reads events from SQLite.
type SQLiteRepository struct {
	db *sql.DB
}

// NewSQLiteRepository creates a new event log repository.
func NewSQLiteRepository(db *sql.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

// List returns events matching the filter, most recent first.
func (r *SQLiteRepository) List(ctx context.Context, filter Filter) (*ListResult, error) {
	// Clamp limit.
	if filter.Limit <= 0 {
		filter.Limit = 50
	}
	if filter.Limit > 200 { //nolint:mnd // max page size for event log queries
		filter.Limit = 200
	}
	if filter.Offset < 0 {
		filter.Offset = 0
	}

	// Build WHERE clause dynamically.
	var conditions []string
	var args []any

	if filter.Type != "" {
		conditions = append(conditions, "type = ?")
		args = append(args, filter.Type)
	}
	if filter.DeviceID != "" {
		conditions = append(conditions, "device_id = ?")
		args = append(args, filter.DeviceID)
	}

	where := ""
	if len(conditions) > 0 {
		where = "WHERE " + strings.Join(conditions, " AND ")
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM events %s", where) //nolint:gosec // WHERE built from parameterised conditions, not user input
	var total int
	if err := r.db.QueryRowContext(ctx, countQuery, args...).Scan(&total); err != nil {
		return nil, fmt.Errorf("counting events: %w", err)
	}

	// rowid preserves true append order even when several events share
	// an RFC3339 second.
	query := fmt.Sprintf( //nolint:gosec // WHERE built from parameterised conditions, not user input
		"SELECT id, type, device_id, actor, payload, created_at FROM events %s ORDER BY rowid DESC LIMIT ? OFFSET ?",
		where,
	)
	args = append(args, filter.Limit, filter.Offset)

	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying events: %w", err)
	}
	defer rows.Close()

	var eventsList []Event
	for rows.Next() {
		var e Event
		var deviceID, actor, payloadJSON sql.NullString
		var createdAt string

		if err := rows.Scan(&e.ID, &e.Type, &deviceID, &actor, &payloadJSON, &createdAt); err != nil {
			return nil, fmt.Errorf("scanning event: %w", err)
		}

		if deviceID.Valid {
			e.DeviceID = deviceID.String
		}
		if actor.Valid {
			e.Actor = actor.String
		}
		if payloadJSON.Valid && payloadJSON.String != "" {
			var payload map[string]any
			if json.Unmarshal([]byte(payloadJSON.String), &payload) == nil {
				e.Payload = payload
			}
		}

		t, err := time.Parse(time.RFC3339, createdAt)
		if err != nil {
			return nil, fmt.Errorf("parsing event timestamp %q: %w", createdAt, err)
		}
		e.CreatedAt = t

		eventsList = append(eventsList, e)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterating events: %w", err)
	}

	if eventsList == nil {
		eventsList = []Event{}
	}

	return &ListResult{
		Events: eventsList,
		Total:  total,
		Limit:  filter.Limit,
		Offset: filter.Offset,
	}, nil
}
