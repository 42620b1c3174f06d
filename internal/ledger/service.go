package ledger

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
	"github.com/sensorgrid/sensorgrid-core/internal/infrastructure/config"
	"github.com/sensorgrid/sensorgrid-core/internal/registry"
)

// Logger interface for service logging. Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// DeviceReader provides the device lookup a purchase needs. The read
// happens inside the purchase's own transaction so the terms cannot
// change between validation and commit. Satisfied by
// registry.SQLiteRepository.
type DeviceReader interface {
	GetByIDTx(ctx context.Context, tx *sql.Tx, id string) (*registry.Device, error)
}

// Forwarder moves the purchase payment from subscriber to owner inside
// the purchase's transaction. Satisfied by wallet.Repository.
type Forwarder interface {
	Forward(ctx context.Context, tx *sql.Tx, from, to string, amount int64) error
}

// EventPublisher fans committed events out to live consumers.
type EventPublisher interface {
	Publish(e *events.Event)
}

// Metrics records purchase activity in the time-series store.
type Metrics interface {
	WritePurchase(deviceID, subscriber, owner string, amount, expiry int64)
}

// Policy holds the deployment's purchase rules.
type Policy struct {
	// Overpayment is config.OverpaymentReject (payment must equal the
	// price exactly) or config.OverpaymentAccept (anything at or above
	// the price is kept in full).
	Overpayment string

	// InactivePurchases is config.InactivePurchasesAllow (deactivation
	// only delists the device) or config.InactivePurchasesDeny.
	InactivePurchases string
}

// Service implements access purchases and subscription queries.
//
// A purchase is one transaction: read the current expiry, extend the
// entry, append the purchase event, then move the payment. The
// transfer runs last so a payment failure rolls back the grant and
// the event together, and no grant can ever outrun its funding.
type Service struct {
	repo      Repository
	devices   DeviceReader
	forwarder Forwarder
	policy    Policy
	publisher EventPublisher
	metrics   Metrics
	logger    Logger
	now       func() time.Time
}

// NewService creates an access ledger service.
func NewService(repo Repository, devices DeviceReader, forwarder Forwarder, policy Policy) *Service {
	return &Service{
		repo:      repo,
		devices:   devices,
		forwarder: forwarder,
		policy:    policy,
		logger:    noopLogger{},
		now:       time.Now,
	}
}

// SetLogger sets the logger for service operations.
func (s *Service) SetLogger(logger Logger) {
	if logger != nil {
		s.logger = logger
	}
}

// SetPublisher sets the post-commit event publisher.
func (s *Service) SetPublisher(p EventPublisher) {
	s.publisher = p
}

// SetMetrics sets the time-series metrics sink.
func (s *Service) SetMetrics(m Metrics) {
	s.metrics = m
}

// SetClock overrides the time source. Tests use this to pin expiry
// arithmetic to a known instant.
func (s *Service) SetClock(now func() time.Time) {
	if now != nil {
		s.now = now
	}
}

// PurchaseAccess buys one subscription period for the subscriber.
//
// The payment must equal the device's listed price (or exceed it when
// the deployment accepts overpayment). Renewals stack: purchasing
// before expiry extends from the current expiry, purchasing after
// expiry extends from now. The new expiry is always
// max(now, currentExpiry) + subscriptionDuration.
func (s *Service) PurchaseAccess(ctx context.Context, subscriberID, deviceID string, payment int64) (*Entry, error) {
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		return nil, fmt.Errorf("beginning purchase transaction: %w", err)
	}
	defer tx.Rollback()

	// Device terms are read under the same transaction that grants
	// access, so a concurrent price or activation change cannot land
	// between validation and commit.
	d, err := s.devices.GetByIDTx(ctx, tx, deviceID)
	if err != nil {
		return nil, err
	}

	if !d.IsActive && s.policy.InactivePurchases == config.InactivePurchasesDeny {
		return nil, ErrDeviceInactive
	}

	if payment < d.PricePerPeriod {
		return nil, fmt.Errorf("%w: got %d, price is %d", ErrInsufficientPayment, payment, d.PricePerPeriod)
	}
	if payment > d.PricePerPeriod && s.policy.Overpayment == config.OverpaymentReject {
		return nil, fmt.Errorf("%w: got %d, price is exactly %d", ErrInsufficientPayment, payment, d.PricePerPeriod)
	}

	current, err := s.repo.ExpiryTx(ctx, tx, subscriberID, deviceID)
	if err != nil {
		return nil, err
	}

	base := s.now().Unix()
	if current > base {
		base = current
	}
	newExpiry := base + d.SubscriptionDuration

	if err := s.repo.UpsertTx(ctx, tx, subscriberID, deviceID, newExpiry, payment); err != nil {
		return nil, err
	}

	// Read the finished entry before commit; once the transaction is
	// through, the caller gets it without another round trip that
	// could fail after the purchase is already durable.
	entry, err := s.repo.GetTx(ctx, tx, subscriberID, deviceID)
	if err != nil {
		return nil, err
	}

	e := &events.Event{
		Type:     events.TypeAccessPurchased,
		DeviceID: deviceID,
		Actor:    subscriberID,
		Payload: map[string]any{
			"owner":  d.Owner,
			"amount": payment,
			"expiry": newExpiry,
		},
	}
	if err := events.AppendTx(ctx, tx, e); err != nil {
		return nil, fmt.Errorf("appending purchase event: %w", err)
	}

	// The transfer runs after every ledger write so a failure here
	// reverts the grant and the event along with it.
	if err := s.forwarder.Forward(ctx, tx, subscriberID, d.Owner, payment); err != nil {
		s.logger.Warn("purchase payment failed",
			"device_id", deviceID,
			"subscriber", subscriberID,
			"error", err,
		)
		return nil, fmt.Errorf("%w: %w", ErrForwardingFailed, err)
	}

	if err := tx.Commit(); err != nil {
		return nil, fmt.Errorf("committing purchase: %w", err)
	}

	s.logger.Info("access purchased",
		"device_id", deviceID,
		"subscriber", subscriberID,
		"amount", payment,
		"expiry", newExpiry,
	)
	if s.publisher != nil {
		s.publisher.Publish(e)
	}
	if s.metrics != nil {
		s.metrics.WritePurchase(deviceID, subscriberID, d.Owner, payment, newExpiry)
	}

	return entry, nil
}

// Get retrieves the entry for a subscriber/device pair.
func (s *Service) Get(ctx context.Context, subscriberID, deviceID string) (*Entry, error) {
	return s.repo.Get(ctx, subscriberID, deviceID)
}

// Expiry returns when the pair's access lapses, zero if never purchased.
func (s *Service) Expiry(ctx context.Context, subscriberID, deviceID string) (int64, error) {
	return s.repo.Expiry(ctx, subscriberID, deviceID)
}

// TotalPaid returns the cumulative amount paid for the pair, zero if
// never purchased.
func (s *Service) TotalPaid(ctx context.Context, subscriberID, deviceID string) (int64, error) {
	return s.repo.TotalPaid(ctx, subscriberID, deviceID)
}

// HasAccess reports whether the pair's access is live right now.
func (s *Service) HasAccess(ctx context.Context, subscriberID, deviceID string) (bool, error) {
	expiry, err := s.repo.Expiry(ctx, subscriberID, deviceID)
	if err != nil {
		return false, err
	}
	return expiry > s.now().Unix(), nil
}

// ListBySubscriber returns all of the subscriber's entries.
func (s *Service) ListBySubscriber(ctx context.Context, subscriberID string) ([]*Entry, error) {
	return s.repo.ListBySubscriber(ctx, subscriberID)
}

// ListByDevice returns all entries for a device.
func (s *Service) ListByDevice(ctx context.Context, deviceID string) ([]*Entry, error) {
	return s.repo.ListByDevice(ctx, deviceID)
}
