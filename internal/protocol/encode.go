package protocol

import (
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/protocol/frame"
	"github.com/danmuck/shackles/internal/protocol/schema"
	"github.com/danmuck/shackles/internal/protocol/tlv"
)

// EncodeConnectHeader builds the self-delimited instruction telling a peer
// to connect to host:port.
func EncodeConnectHeader(host string, port uint16) ([]byte, error) {
	return encode(schema.MsgConnect, host, port, "")
}

// EncodeHello builds the first frame a peer sends on an outbound ring link.
func EncodeHello(origin peer.Address, sessionID string) ([]byte, error) {
	return encode(schema.MsgLinkHello, origin.Host, origin.Port, sessionID)
}

func encode(messageType uint32, host string, port uint16, sessionID string) ([]byte, error) {
	if host == "" {
		return nil, ErrEmptyHost
	}
	if len(host) > schema.MaxHostLen {
		return nil, ErrHostTooLong
	}
	fields := []tlv.Field{
		tlv.String(schema.FieldHost, host),
		tlv.U16(schema.FieldPort, port),
	}
	if sessionID != "" {
		fields = append(fields, tlv.String(schema.FieldSessionID, sessionID))
	}
	return frame.Marshal(frame.Frame{
		Header:  frame.Header{MessageType: messageType},
		Payload: tlv.EncodeFields(fields),
	}, limits)
}
