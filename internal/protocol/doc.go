// Package protocol owns the ring wiring header codec.
//
// Ownership boundary:
// - frame/header primitives (frame)
// - tlv payload primitives (tlv)
// - message ids and required-field validation (schema)
// - typed connect/hello encode and decode entry points (this package)
package protocol
