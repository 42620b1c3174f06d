package registry

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/database"
)

// Repository defines persistence operations for devices.
//
// Mutations run inside a single transaction together with their event
// log append, so a device change and its event commit or revert as one.
// Ownership checks for mutations happen inside the same transaction.
type Repository interface {
	// Create registers a device, assigning its registration sequence
	// number. Returns ErrAlreadyRegistered if the identifier is taken.
	Create(ctx context.Context, d *Device) (*events.Event, error)

	// UpdateTerms applies the given changes if caller owns the device.
	UpdateTerms(ctx context.Context, id, caller string, in UpdateInput) (*Device, *events.Event, error)

	// SetActive changes the activation state if caller owns the device.
	SetActive(ctx context.Context, id, caller string, active bool) (*Device, *events.Event, error)

	// GetByID retrieves a device, or ErrNotRegistered.
	GetByID(ctx context.Context, id string) (*Device, error)

	// Exists reports whether a device with the identifier is registered.
	Exists(ctx context.Context, id string) (bool, error)

	// List returns all devices in registration order.
	List(ctx context.Context) ([]*Device, error)

	// ListByOwner returns the owner's devices in registration order.
	ListByOwner(ctx context.Context, owner string) ([]*Device, error)

	// ListIDs returns every device identifier in registration order.
	ListIDs(ctx context.Context) ([]string, error)

	// ListIDsByOwner returns the owner's device identifiers in
	// registration order.
	ListIDsByOwner(ctx context.Context, owner string) ([]string, error)

	// Count returns the total number of registered devices.
	Count(ctx context.Context) (int, error)
}

// SQLiteRepository implements Repository backed by SQLite.
type SQLiteRepository struct {
	db *database.DB
}

// NewSQLiteRepository creates a repository using the given database.
func NewSQLiteRepository(db *database.DB) *SQLiteRepository {
	return &SQLiteRepository{db: db}
}

const deviceColumns = `device_id, seq, owner, name, device_type, location,
	price_per_period, subscription_duration, metadata_uri, is_active, registered_at`

// Create registers a device. The sequence number is assigned from the
// current maximum inside the transaction; the single-connection pool
// guarantees no two registrations interleave.
func (r *SQLiteRepository) Create(ctx context.Context, d *Device) (*events.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	var taken int
	err = tx.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM devices WHERE device_id = ?`, d.ID).Scan(&taken)
	if err != nil {
		return nil, fmt.Errorf("checking device existence: %w", err)
	}
	if taken > 0 {
		return nil, ErrAlreadyRegistered
	}

	if d.RegisteredAt.IsZero() {
		d.RegisteredAt = time.Now().UTC()
	}

	_, err = tx.ExecContext(ctx,
		`INSERT INTO devices (device_id, seq, owner, name, device_type, location,
			price_per_period, subscription_duration, metadata_uri, is_active, registered_at)
		 VALUES (?, (SELECT COALESCE(MAX(seq), 0) + 1 FROM devices), ?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		d.ID, d.Owner, d.Name, d.DeviceType, d.Location,
		d.PricePerPeriod, d.SubscriptionDuration, d.MetadataURI,
		boolToInt(d.IsActive), d.RegisteredAt.Format(time.RFC3339),
	)
	if err != nil {
		return nil, fmt.Errorf("inserting device: %w", err)
	}

	if err := tx.QueryRowContext(ctx,
		`SELECT seq FROM devices WHERE device_id = ?`, d.ID).Scan(&d.Seq); err != nil {
		return nil, fmt.Errorf("reading assigned sequence: %w", err)
	}

	e := &events.Event{
		Type:     events.TypeDeviceRegistered,
		DeviceID: d.ID,
		Actor:    d.Owner,
		Payload: map[string]any{
			"name":                  d.Name,
			"device_type":           d.DeviceType,
			"location":              d.Location,
			"price_per_period":      d.PricePerPeriod,
			"subscription_duration": d.SubscriptionDuration,
			"metadata_uri":          d.MetadataURI,
		},
	}
	if err := events.AppendTx(ctx, tx, e); err != nil {
		return nil, fmt.Errorf("appending registration event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing registration: %w", err)
	}

	return e, nil
}

// UpdateTerms applies the requested changes after verifying ownership
// inside the transaction.
func (r *SQLiteRepository) UpdateTerms(ctx context.Context, id, caller string, in UpdateInput) (*Device, *events.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := getDeviceTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.Owner != caller {
		return nil, nil, ErrNotOwner
	}

	changed := make(map[string]any)
	if in.Name != nil && *in.Name != d.Name {
		d.Name = *in.Name
		changed["name"] = d.Name
	}
	if in.DeviceType != nil && *in.DeviceType != d.DeviceType {
		d.DeviceType = *in.DeviceType
		changed["device_type"] = d.DeviceType
	}
	if in.Location != nil && *in.Location != d.Location {
		d.Location = *in.Location
		changed["location"] = d.Location
	}
	if in.PricePerPeriod != nil && *in.PricePerPeriod != d.PricePerPeriod {
		d.PricePerPeriod = *in.PricePerPeriod
		changed["price_per_period"] = d.PricePerPeriod
	}
	if in.SubscriptionDuration != nil && *in.SubscriptionDuration != d.SubscriptionDuration {
		d.SubscriptionDuration = *in.SubscriptionDuration
		changed["subscription_duration"] = d.SubscriptionDuration
	}
	if in.MetadataURI != nil && *in.MetadataURI != d.MetadataURI {
		d.MetadataURI = *in.MetadataURI
		changed["metadata_uri"] = d.MetadataURI
	}
	if len(changed) == 0 {
		// nothing actually differs; treat as a successful no-op
		if err := tx.Commit(); err != nil {
			return nil, nil, fmt.Errorf("committing update: %w", err)
		}
		return d, nil, nil
	}

	_, err = tx.ExecContext(ctx,
		`UPDATE devices
		 SET name = ?, device_type = ?, location = ?, price_per_period = ?,
		     subscription_duration = ?, metadata_uri = ?
		 WHERE device_id = ?`,
		d.Name, d.DeviceType, d.Location, d.PricePerPeriod, d.SubscriptionDuration, d.MetadataURI, d.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating device: %w", err)
	}

	e := &events.Event{
		Type:     events.TypeDeviceUpdated,
		DeviceID: d.ID,
		Actor:    caller,
		Payload:  changed,
	}
	if err := events.AppendTx(ctx, tx, e); err != nil {
		return nil, nil, fmt.Errorf("appending update event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing update: %w", err)
	}

	return d, e, nil
}

// SetActive changes activation state after verifying ownership.
func (r *SQLiteRepository) SetActive(ctx context.Context, id, caller string, active bool) (*Device, *events.Event, error) {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, nil, fmt.Errorf("beginning transaction: %w", err)
	}
	defer tx.Rollback()

	d, err := getDeviceTx(ctx, tx, id)
	if err != nil {
		return nil, nil, err
	}
	if d.Owner != caller {
		return nil, nil, ErrNotOwner
	}

	if d.IsActive == active {
		if err := tx.Commit(); err != nil {
			return nil, nil, fmt.Errorf("committing activation: %w", err)
		}
		return d, nil, nil
	}

	d.IsActive = active
	_, err = tx.ExecContext(ctx,
		`UPDATE devices SET is_active = ? WHERE device_id = ?`,
		boolToInt(active), d.ID,
	)
	if err != nil {
		return nil, nil, fmt.Errorf("updating activation state: %w", err)
	}

	e := &events.Event{
		Type:     events.TypeDeviceActivation,
		DeviceID: d.ID,
		Actor:    caller,
		Payload:  map[string]any{"is_active": active},
	}
	if err := events.AppendTx(ctx, tx, e); err != nil {
		return nil, nil, fmt.Errorf("appending activation event: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return nil, nil, fmt.Errorf("committing activation: %w", err)
	}

	return d, e, nil
}

// GetByID retrieves a device by identifier.
func (r *SQLiteRepository) GetByID(ctx context.Context, id string) (*Device, error) {
	row := r.db.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`, id)
	return scanDevice(row)
}

// GetByIDTx retrieves a device inside an open transaction. The ledger
// reads the device this way so a purchase validates against the terms
// committed at its own serialization point, not an earlier snapshot.
func (r *SQLiteRepository) GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*Device, error) {
	return getDeviceTx(ctx, tx, id)
}

// Exists reports whether the device identifier is registered.
func (r *SQLiteRepository) Exists(ctx context.Context, id string) (bool, error) {
	var count int
	err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(1) FROM devices WHERE device_id = ?`, id).Scan(&count)
	if err != nil {
		return false, fmt.Errorf("checking device existence: %w", err)
	}
	return count > 0, nil
}

// List returns all devices ordered by registration sequence.
func (r *SQLiteRepository) List(ctx context.Context) ([]*Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices ORDER BY seq`)
	if err != nil {
		return nil, fmt.Errorf("listing devices: %w", err)
	}
	defer rows.Close()
	return collectDevices(rows)
}

// ListByOwner returns the owner's devices ordered by registration sequence.
func (r *SQLiteRepository) ListByOwner(ctx context.Context, owner string) ([]*Device, error) {
	rows, err := r.db.QueryContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE owner = ? ORDER BY seq`, owner)
	if err != nil {
		return nil, fmt.Errorf("listing devices by owner: %w", err)
	}
	defer rows.Close()
	return collectDevices(rows)
}

// ListIDs returns all device identifiers in registration order.
func (r *SQLiteRepository) ListIDs(ctx context.Context) ([]string, error) {
	return r.listIDs(ctx, `SELECT device_id FROM devices ORDER BY seq`)
}

// ListIDsByOwner returns the owner's device identifiers in registration order.
func (r *SQLiteRepository) ListIDsByOwner(ctx context.Context, owner string) ([]string, error) {
	return r.listIDs(ctx, `SELECT device_id FROM devices WHERE owner = ? ORDER BY seq`, owner)
}

func (r *SQLiteRepository) listIDs(ctx context.Context, query string, args ...any) ([]string, error) {
	rows, err := r.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("listing device ids: %w", err)
	}
	defer rows.Close()

	ids := []string{}
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, fmt.Errorf("scanning device id: %w", err)
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}

// Count returns the total number of registered devices.
func (r *SQLiteRepository) Count(ctx context.Context) (int, error) {
	var count int
	err := r.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM devices`).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("counting devices: %w", err)
	}
	return count, nil
}

// getDeviceTx reads a device inside an open transaction.
func getDeviceTx(ctx context.Context, tx *sql.Tx, id string) (*Device, error) {
	row := tx.QueryRowContext(ctx,
		`SELECT `+deviceColumns+` FROM devices WHERE device_id = ?`, id)
	return scanDevice(row)
}

// scanner abstracts sql.Row and sql.Rows for scanDevice.
type scanner interface {
	Scan(dest ...any) error
}

func scanDevice(row scanner) (*Device, error) {
	var d Device
	var isActive int
	var registeredAt string

	err := row.Scan(&d.ID, &d.Seq, &d.Owner, &d.Name, &d.DeviceType, &d.Location,
		&d.PricePerPeriod, &d.SubscriptionDuration, &d.MetadataURI, &isActive, &registeredAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotRegistered
	}
	if err != nil {
		return nil, fmt.Errorf("scanning device: %w", err)
	}

	d.IsActive = isActive != 0
	d.RegisteredAt, err = time.Parse(time.RFC3339, registeredAt)
	if err != nil {
		return nil, fmt.Errorf("parsing registered_at: %w", err)
	}

	return &d, nil
}

func collectDevices(rows *sql.Rows) ([]*Device, error) {
	devices := []*Device{}
	for rows.Next() {
		d, err := scanDevice(rows)
		if err != nil {
			return nil, err
		}
		devices = append(devices, d)
	}
	return devices, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
