package schema

import (
	"fmt"

	"github.com/danmuck/shackles/internal/protocol/tlv"
	"github.com/rs/zerolog/log"
)

// Message type IDs.
const (
	MsgConnect   uint32 = 1
	MsgLinkHello uint32 = 2
)

// Field IDs.
const (
	FieldHost      uint16 = 1
	FieldPort      uint16 = 2
	FieldSessionID uint16 = 3
)

const MaxHostLen = 255

type Requirement struct {
	ID   uint16
	Type uint8
}

type ValidationError struct {
	MessageType uint32
	FieldID     uint16
	Reason      string
}

func (e ValidationError) Error() string {
	if e.FieldID == 0 {
		return fmt.Sprintf("schema: message_type=%d: %s", e.MessageType, e.Reason)
	}
	return fmt.Sprintf("schema: message_type=%d field=%d: %s", e.MessageType, e.FieldID, e.Reason)
}

var requirements = map[uint32][]Requirement{
	MsgConnect: {
		{FieldHost, tlv.TypeString},
		{FieldPort, tlv.TypeU16},
	},
	MsgLinkHello: {
		{FieldHost, tlv.TypeString},
		{FieldPort, tlv.TypeU16},
	},
}

func MessageName(messageType uint32) string {
	switch messageType {
	case MsgConnect:
		return "connect"
	case MsgLinkHello:
		return "link.hello"
	default:
		return "unknown"
	}
}

// Validate enforces required fields and their types for a message type.
// Unknown fields are ignored.
func Validate(messageType uint32, fields []tlv.Field) error {
	log.Debug().Uint32("message_type", messageType).Int("fields", len(fields)).Msg("schema.Validate")
	reqs, ok := requirements[messageType]
	if !ok {
		log.Error().Uint32("message_type", messageType).Msg("schema.Validate unknown message_type")
		return ValidationError{MessageType: messageType, Reason: "unknown message_type"}
	}
	for _, req := range reqs {
		f, found := tlv.GetField(fields, req.ID)
		if !found {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Msg("schema.Validate missing field")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "missing required field"}
		}
		if f.Type != req.Type {
			log.Error().
				Uint32("message_type", messageType).
				Uint16("field_id", req.ID).
				Uint8("got", f.Type).
				Uint8("want", req.Type).
				Msg("schema.Validate type mismatch")
			return ValidationError{MessageType: messageType, FieldID: req.ID, Reason: "type mismatch"}
		}
	}
	if f, found := tlv.GetField(fields, FieldHost); found {
		if len(f.Value) == 0 || len(f.Value) > MaxHostLen {
			return ValidationError{MessageType: messageType, FieldID: FieldHost, Reason: "host length out of range"}
		}
	}
	if f, found := tlv.GetField(fields, FieldPort); found && len(f.Value) != 2 {
		return ValidationError{MessageType: messageType, FieldID: FieldPort, Reason: "invalid u16 length"}
	}
	if f, found := tlv.GetField(fields, FieldSessionID); found && f.Type != tlv.TypeString {
		return ValidationError{MessageType: messageType, FieldID: FieldSessionID, Reason: "type mismatch"}
	}
	log.Debug().Uint32("message_type", messageType).Msg("schema.Validate ok")
	return nil
}
