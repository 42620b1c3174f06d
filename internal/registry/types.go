package registry

import (
	"strings"
	"time"
)

// Device represents a registered device and its subscription terms.
//
// A device is registered exactly once and never deleted. Ownership is
// fixed at registration; only the registering owner may change terms
// or activation state. Seq records global registration order.
type Device struct {
	ID                   string    `json:"device_id"`
	Seq                  int64     `json:"seq"`
	Owner                string    `json:"owner"`
	Name                 string    `json:"name"`
	DeviceType           string    `json:"device_type"`
	Location             string    `json:"location,omitempty"`
	PricePerPeriod       int64     `json:"price_per_period"`
	SubscriptionDuration int64     `json:"subscription_duration"`
	MetadataURI          string    `json:"metadata_uri,omitempty"`
	IsActive             bool      `json:"is_active"`
	RegisteredAt         time.Time `json:"registered_at"`
}

// RegisterInput contains the fields required to register a device.
//
// The caller chooses the device identifier; registration fails if it
// is already taken. PricePerPeriod is in the smallest payment unit and
// SubscriptionDuration in seconds.
type RegisterInput struct {
	DeviceID             string `json:"device_id"`
	Name                 string `json:"name"`
	DeviceType           string `json:"device_type"`
	Location             string `json:"location,omitempty"`
	PricePerPeriod       int64  `json:"price_per_period"`
	SubscriptionDuration int64  `json:"subscription_duration"`
	MetadataURI          string `json:"metadata_uri,omitempty"`
}

// Validate checks the input for structural problems. Zero price or
// duration is a policy question handled by the service, not here.
func (in RegisterInput) Validate() error {
	if strings.TrimSpace(in.DeviceID) == "" {
		return ErrInvalidDevice
	}
	if strings.ContainsAny(in.DeviceID, " /#+") {
		// device IDs appear in MQTT topics and URL paths
		return ErrInvalidDevice
	}
	if strings.TrimSpace(in.Name) == "" {
		return ErrInvalidDevice
	}
	if strings.TrimSpace(in.DeviceType) == "" {
		return ErrInvalidDevice
	}
	if in.PricePerPeriod < 0 || in.SubscriptionDuration < 0 {
		return ErrInvalidTerms
	}
	return nil
}

// UpdateInput contains the optional term changes for a device.
// Nil fields are left unchanged.
type UpdateInput struct {
	Name                 *string `json:"name,omitempty"`
	DeviceType           *string `json:"device_type,omitempty"`
	Location             *string `json:"location,omitempty"`
	PricePerPeriod       *int64  `json:"price_per_period,omitempty"`
	SubscriptionDuration *int64  `json:"subscription_duration,omitempty"`
	MetadataURI          *string `json:"metadata_uri,omitempty"`
}

// Validate checks the requested changes.
func (in UpdateInput) Validate() error {
	if in.Name == nil && in.DeviceType == nil && in.Location == nil &&
		in.PricePerPeriod == nil && in.SubscriptionDuration == nil && in.MetadataURI == nil {
		return ErrNoChanges
	}
	if in.Name != nil && strings.TrimSpace(*in.Name) == "" {
		return ErrInvalidDevice
	}
	if in.DeviceType != nil && strings.TrimSpace(*in.DeviceType) == "" {
		return ErrInvalidDevice
	}
	if in.PricePerPeriod != nil && *in.PricePerPeriod < 0 {
		return ErrInvalidTerms
	}
	if in.SubscriptionDuration != nil && *in.SubscriptionDuration < 0 {
		return ErrInvalidTerms
	}
	return nil
}
