package session

import "errors"

// Session errors.
var (
	// ErrNotFound is returned when a key does not exist in the session.
	ErrNotFound = errors.New("session: not found")

	// ErrTypeMismatch is returned by Value when the stored value has another type.
	ErrTypeMismatch = errors.New("session: type mismatch")

	// ErrEncode is returned when the session payload cannot be serialized.
	ErrEncode = errors.New("session: encode failed")
)
