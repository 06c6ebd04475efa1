package protocol

import "errors"

var (
	ErrEmptyHost           = errors.New("protocol: empty host")
	ErrHostTooLong         = errors.New("protocol: host longer than 255 bytes")
	ErrInvalidMessage      = errors.New("protocol: invalid message")
	ErrMessageTypeMismatch = errors.New("protocol: message type mismatch")
)
