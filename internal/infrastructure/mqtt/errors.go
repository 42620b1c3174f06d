package mqtt

import "errors"

var (
	// ErrConnectionFailed indicates the initial broker connection failed.
	ErrConnectionFailed = errors.New("mqtt: connection failed")

	// ErrNotConnected indicates an operation was attempted without an
	// active broker connection.
	ErrNotConnected = errors.New("mqtt: not connected")

	// ErrPublishFailed indicates a publish did not complete.
	ErrPublishFailed = errors.New("mqtt: publish failed")

	// ErrSubscribeFailed indicates a subscribe or unsubscribe did not complete.
	ErrSubscribeFailed = errors.New("mqtt: subscribe failed")

	// ErrMarshalFailed indicates the payload could not be serialized to JSON.
	ErrMarshalFailed = errors.New("mqtt: payload marshal failed")
)
