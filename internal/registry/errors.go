package registry

import "errors"

var (
	// ErrAlreadyRegistered indicates the device identifier is already taken.
	// Registration happens exactly once per identifier.
	ErrAlreadyRegistered = errors.New("registry: device already registered")

	// ErrNotRegistered indicates no device exists with the given identifier.
	ErrNotRegistered = errors.New("registry: device not registered")

	// ErrNotOwner indicates the caller does not own the device it is
	// trying to mutate.
	ErrNotOwner = errors.New("registry: caller is not the device owner")

	// ErrInvalidDevice indicates malformed registration data.
	ErrInvalidDevice = errors.New("registry: invalid device data")

	// ErrInvalidTerms indicates a negative price or duration, or zero
	// terms when the deployment forbids them.
	ErrInvalidTerms = errors.New("registry: invalid subscription terms")

	// ErrNoChanges indicates an update request with no fields set.
	ErrNoChanges = errors.New("registry: no changes requested")
)
