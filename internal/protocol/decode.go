package protocol

import (
	"fmt"
	"io"

	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/protocol/frame"
	"github.com/danmuck/shackles/internal/protocol/schema"
	"github.com/danmuck/shackles/internal/protocol/tlv"
)

// ReadMessage reads exactly one frame from r and decodes it. A clean close
// before any byte arrives surfaces as io.EOF.
func ReadMessage(r io.Reader) (Message, error) {
	f, err := frame.ReadFrame(r, limits)
	if err != nil {
		return Message{}, err
	}
	fields, err := tlv.DecodeFields(f.Payload)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	if err := schema.Validate(f.Header.MessageType, fields); err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}

	host, _ := tlv.GetField(fields, schema.FieldHost)
	portField, _ := tlv.GetField(fields, schema.FieldPort)
	port, err := tlv.U16FromBytes(portField.Value)
	if err != nil {
		return Message{}, fmt.Errorf("%w: %w", ErrInvalidMessage, err)
	}
	msg := Message{
		Type: f.Header.MessageType,
		Addr: peer.New(string(host.Value), port),
	}
	if sid, ok := tlv.GetField(fields, schema.FieldSessionID); ok {
		msg.SessionID = string(sid.Value)
	}
	return msg, nil
}

// DecodeConnectHeader reads one connect instruction and returns its target.
func DecodeConnectHeader(r io.Reader) (string, uint16, error) {
	msg, err := ReadMessage(r)
	if err != nil {
		return "", 0, err
	}
	if msg.Type != schema.MsgConnect {
		return "", 0, fmt.Errorf("%w: got %s", ErrMessageTypeMismatch, msg.Name())
	}
	return msg.Addr.Host, msg.Addr.Port, nil
}
