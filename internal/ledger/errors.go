package ledger

import "errors"

var (
	// ErrInsufficientPayment indicates the attached payment does not
	// match the device's listed price.
	ErrInsufficientPayment = errors.New("ledger: payment does not match price")

	// ErrForwardingFailed indicates the payment could not be moved to
	// the device owner. The purchase is rolled back in full.
	ErrForwardingFailed = errors.New("ledger: payment forwarding failed")

	// ErrDeviceInactive indicates the device is not accepting new
	// purchases under the deployment's policy.
	ErrDeviceInactive = errors.New("ledger: device not accepting purchases")

	// ErrNoEntry indicates no access entry exists for the pair.
	ErrNoEntry = errors.New("ledger: no access entry")
)
