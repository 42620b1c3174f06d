package ledger

import "time"

// Entry records a subscriber's access to a single device.
//
// An entry is created on first purchase and updated in place on every
// renewal. Expiry (unix seconds) and TotalPaid only ever grow; rows
// are never deleted, so an expired entry doubles as purchase history.
type Entry struct {
	SubscriberID string    `json:"subscriber_id"`
	DeviceID     string    `json:"device_id"`
	Expiry       int64     `json:"expiry"`
	TotalPaid    int64     `json:"total_paid"`
	CreatedAt    time.Time `json:"created_at"`
	UpdatedAt    time.Time `json:"updated_at"`
}

// Active reports whether the entry grants access at the given instant.
func (e *Entry) Active(at time.Time) bool {
	return e.Expiry > at.Unix()
}
