package registry

import (
	"context"
	"fmt"

	"github.com/sensorgrid/sensorgrid-core/internal/events"
)

// Logger interface for service logging. Compatible with logging.Logger.
type Logger interface {
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}

// noopLogger discards all log output. Used when no logger is configured.
type noopLogger struct{}

func (noopLogger) Info(msg string, args ...any)  {}
func (noopLogger) Warn(msg string, args ...any)  {}
func (noopLogger) Error(msg string, args ...any) {}

// EventPublisher fans committed events out to live consumers.
type EventPublisher interface {
	Publish(e *events.Event)
}

// Metrics records registration activity in the time-series store.
type Metrics interface {
	WriteRegistration(deviceID, owner, deviceType string, pricePerPeriod, subscriptionDuration int64)
	WriteActivation(deviceID, owner string, active bool)
}

// Service implements device registration and term management.
//
// The caller principal comes from the authenticated request; the
// service enforces that only a device's owner can change it. Events
// are appended durably by the repository inside the mutation's
// transaction and fanned out here after commit.
type Service struct {
	repo           Repository
	publisher      EventPublisher
	metrics        Metrics
	allowZeroTerms bool
	logger         Logger
}

// NewService creates a registration service.
func NewService(repo Repository, allowZeroTerms bool) *Service {
	return &Service{
		repo:           repo,
		allowZeroTerms: allowZeroTerms,
		logger:         noopLogger{},
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

// Register records a new device owned by the caller.
//
// The device starts active. Zero price or duration is accepted only
// when the deployment allows free or instant-expiry listings.
func (s *Service) Register(ctx context.Context, caller string, in RegisterInput) (*Device, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !s.allowZeroTerms && (in.PricePerPeriod == 0 || in.SubscriptionDuration == 0) {
		return nil, fmt.Errorf("%w: zero price or duration not allowed", ErrInvalidTerms)
	}

	d := &Device{
		ID:                   in.DeviceID,
		Owner:                caller,
		Name:                 in.Name,
		DeviceType:           in.DeviceType,
		Location:             in.Location,
		PricePerPeriod:       in.PricePerPeriod,
		SubscriptionDuration: in.SubscriptionDuration,
		MetadataURI:          in.MetadataURI,
		IsActive:             true,
	}

	e, err := s.repo.Create(ctx, d)
	if err != nil {
		return nil, err
	}

	s.logger.Info("device registered",
		"device_id", d.ID,
		"owner", d.Owner,
		"seq", d.Seq,
	)
	s.publish(e)
	if s.metrics != nil {
		s.metrics.WriteRegistration(d.ID, d.Owner, d.DeviceType, d.PricePerPeriod, d.SubscriptionDuration)
	}

	return d, nil
}

// UpdateTerms changes a device's listing terms. Caller must be the owner.
func (s *Service) UpdateTerms(ctx context.Context, caller, deviceID string, in UpdateInput) (*Device, error) {
	if err := in.Validate(); err != nil {
		return nil, err
	}
	if !s.allowZeroTerms {
		if in.PricePerPeriod != nil && *in.PricePerPeriod == 0 {
			return nil, fmt.Errorf("%w: zero price not allowed", ErrInvalidTerms)
		}
		if in.SubscriptionDuration != nil && *in.SubscriptionDuration == 0 {
			return nil, fmt.Errorf("%w: zero duration not allowed", ErrInvalidTerms)
		}
	}

	d, e, err := s.repo.UpdateTerms(ctx, deviceID, caller, in)
	if err != nil {
		return nil, err
	}

	if e != nil {
		s.logger.Info("device terms updated", "device_id", d.ID, "owner", caller)
		s.publish(e)
	}

	return d, nil
}

// SetActive toggles a device's availability for new purchases.
// Caller must be the owner. Existing access entries are unaffected.
func (s *Service) SetActive(ctx context.Context, caller, deviceID string, active bool) (*Device, error) {
	d, e, err := s.repo.SetActive(ctx, deviceID, caller, active)
	if err != nil {
		return nil, err
	}

	if e != nil {
		s.logger.Info("device activation changed",
			"device_id", d.ID,
			"is_active", active,
		)
		s.publish(e)
		if s.metrics != nil {
			s.metrics.WriteActivation(d.ID, d.Owner, active)
		}
	}

	return d, nil
}

// Get retrieves a device by identifier.
func (s *Service) Get(ctx context.Context, deviceID string) (*Device, error) {
	return s.repo.GetByID(ctx, deviceID)
}

// Exists reports whether a device identifier is registered.
func (s *Service) Exists(ctx context.Context, deviceID string) (bool, error) {
	return s.repo.Exists(ctx, deviceID)
}

// List returns all devices in registration order.
func (s *Service) List(ctx context.Context) ([]*Device, error) {
	return s.repo.List(ctx)
}

// ListByOwner returns the owner's devices in registration order.
func (s *Service) ListByOwner(ctx context.Context, owner string) ([]*Device, error) {
	return s.repo.ListByOwner(ctx, owner)
}

// ListIDs returns every registered device identifier in registration order.
func (s *Service) ListIDs(ctx context.Context) ([]string, error) {
	return s.repo.ListIDs(ctx)
}

// ListIDsByOwner returns the owner's device identifiers in registration order.
func (s *Service) ListIDsByOwner(ctx context.Context, owner string) ([]string, error) {
	return s.repo.ListIDsByOwner(ctx, owner)
}

// Count returns the total number of registered devices.
func (s *Service) Count(ctx context.Context) (int, error) {
	return s.repo.Count(ctx)
}

func (s *Service) publish(e *events.Event) {
	if s.publisher != nil && e != nil {
		s.publisher.Publish(e)
	}
}
