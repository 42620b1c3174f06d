package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
)

// Repository defines persistence operations for access entries.
type Repository interface {
	// Get retrieves the entry for a subscriber/device pair, or ErrNoEntry.
	Get(ctx context.Context, subscriberID, deviceID string) (*Entry, error)

	// Expiry returns the pair's expiry in unix seconds, zero if no
	// entry exists.
	Expiry(ctx context.Context, subscriberID, deviceID string) (int64, error)

	// TotalPaid returns the cumulative amount the subscriber has paid
	// for the device, zero if no entry exists.
	TotalPaid(ctx context.Context, subscriberID, deviceID string) (int64, error)

	// ListBySubscriber returns all of a subscriber's entries, newest
	// update first.
	ListBySubscriber(ctx context.Context, subscriberID string) ([]*Entry, error)

	// ListByDevice returns all entries for a device, newest update first.
	ListByDevice(ctx context.Context, deviceID string) ([]*Entry, error)

	// GetTx retrieves the pair's entry inside an open transaction, or
	// ErrNoEntry.
	GetTx(ctx context.Context, tx *sql.Tx, subscriberID, deviceID string) (*Entry, error)

	// ExpiryTx reads the pair's current expiry inside an open
	// transaction, zero if no entry exists.
	ExpiryTx(ctx context.Context, tx *sql.Tx, subscriberID, deviceID string) (int64, error)

	// UpsertTx creates or extends an entry inside an open transaction,
	// setting the new expiry and adding payment to the running total.
	UpsertTx(ctx context.Context, tx *sql.Tx, subscriberID, deviceID string, expiry, payment int64) error

	// BeginTx starts a transaction on the underlying store.
	BeginTx(ctx context.Context) (*sql.Tx, error)
}

// SQLiteRepository implements Repository backed by SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository using the given database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const entryColumns = `subscriber_id, device_id, expiry, total_paid, created_at, updated_at`

// Get retrieves the entry for a subscriber/device pair.
func (r *SQLiteRepository) Get(ctx context.Context, subscriberID, deviceID string) (*Entry, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM access_entries
		 WHERE subscriber_id = ? AND device_id = ?`,
		subscriberID, deviceID)
	return scanEntry(row)
}

// Expiry returns the expiry for a pair, zero if no entry exists.
func (r *SQLiteRepository) Expiry(ctx context.Context, subscriberID, deviceID string) (int64, error) {
	var expiry int64
	err := r.db.QueryRowContext(ctx,
		`SELECT expiry FROM access_entries WHERE subscriber_id = ? AND device_id = ?`,
		subscriberID, deviceID).Scan(&expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading expiry: %w", err)
	}
	return expiry, nil
}

// TotalPaid returns the running payment total for a pair, zero if no
// entry exists.
func (r *SQLiteRepository) TotalPaid(ctx context.Context, subscriberID, deviceID string) (int64, error) {
	var total int64
	err := r.db.QueryRowContext(ctx,
		`SELECT total_paid FROM access_entries WHERE subscriber_id = ? AND device_id = ?`,
		subscriberID, deviceID).Scan(&total)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading total paid: %w", err)
	}
	return total, nil
}

// ListBySubscriber returns the subscriber's entries, newest update first.
func (r *SQLiteRepository) ListBySubscriber(ctx context.Context, subscriberID string) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM access_entries
		 WHERE subscriber_id = ? ORDER BY updated_at DESC, device_id`,
		subscriberID)
	if err != nil {
		return nil, fmt.Errorf("listing entries by subscriber: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// ListByDevice returns the device's entries, newest update first.
func (r *SQLiteRepository) ListByDevice(ctx context.Context, deviceID string) ([]*Entry, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+entryColumns+` FROM access_entries
		 WHERE device_id = ? ORDER BY updated_at DESC, subscriber_id`,
		deviceID)
	if err != nil {
		return nil, fmt.Errorf("listing entries by device: %w", err)
	}
	defer rows.Close()
	return collectEntries(rows)
}

// GetTx retrieves the pair's entry inside an open transaction.
func (r *SQLiteRepository) GetTx(ctx context.Context, tx *sql.Tx, subscriberID, deviceID string) (*Entry, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM access_entries
		 WHERE subscriber_id = ? AND device_id = ?`,
		subscriberID, deviceID)
	return scanEntry(row)
}

// ExpiryTx reads the current expiry inside an open transaction.
func (r *SQLiteRepository) ExpiryTx(ctx context.Context, tx *sql.Tx, subscriberID, deviceID string) (int64, error) {
	var expiry int64
	err := tx.QueryRowContext(ctx,
		`SELECT expiry FROM access_entries WHERE subscriber_id = ? AND device_id = ?`,
		subscriberID, deviceID).Scan(&expiry)
	if errors.Is(err, sql.ErrNoRows) {
		return 0, nil
	}
	if err != nil {
		return 0, fmt.Errorf("reading expiry: %w", err)
	}
	return expiry, nil
}

// UpsertTx creates or extends an entry inside an open transaction.
func (r *SQLiteRepository) UpsertTx(ctx context.Context, tx *sql.Tx, subscriberID, deviceID string, expiry, payment int64) error {
	now := time.Now().UTC().Format(time.RFC3339)
	_, err := tx.ExecContext(ctx,
		`INSERT INTO access_entries (subscriber_id, device_id, expiry, total_paid, created_at, updated_at)
		 VALUES (?, ?, ?, ?, ?, ?)
		 ON CONFLICT(subscriber_id, device_id) DO UPDATE SET
			expiry = excluded.expiry,
			total_paid = total_paid + excluded.total_paid,
			updated_at = excluded.updated_at`,
		subscriberID, deviceID, expiry, payment, now, now,
	)
	if err != nil {
		return fmt.Errorf("upserting access entry: %w", err)
	}
	return nil
}

// BeginTx starts a transaction on the underlying store.
func (r *SQLiteRepository) BeginTx(ctx context.Context) (*sql.Tx, error) {
	return r.db.BeginTx(ctx, nil)
}

type scanner interface {
	Scan(dest ...any) error
}

func scanEntry(row scanner) (*Entry, error) {
	var e Entry
	var createdAt, updatedAt string

	err := row.Scan(&e.SubscriberID, &e.DeviceID, &e.Expiry, &e.TotalPaid, &createdAt, &updatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNoEntry
	}
	if err != nil {
		return nil, fmt.Errorf("scanning access entry: %w", err)
	}

	if e.CreatedAt, err = time.Parse(time.RFC3339, createdAt); err != nil {
		return nil, fmt.Errorf("parsing created_at: %w", err)
	}
	if e.UpdatedAt, err = time.Parse(time.RFC3339, updatedAt); err != nil {
		return nil, fmt.Errorf("parsing updated_at: %w", err)
	}

	return &e, nil
}

func collectEntries(rows *sql.Rows) ([]*Entry, error) {
	entries := []*Entry{}
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
