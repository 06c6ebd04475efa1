package protocol

import (
	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/protocol/frame"
	"github.com/danmuck/shackles/internal/protocol/schema"
)

const (
	MsgConnect   = schema.MsgConnect
	MsgLinkHello = schema.MsgLinkHello
)

// Message is a decoded wiring frame. For MsgConnect Addr is the target the
// receiver must dial; for MsgLinkHello it is the sender's listen address.
type Message struct {
	Type      uint32
	Addr      peer.Address
	SessionID string
}

func (m Message) Name() string {
	return schema.MessageName(m.Type)
}

var limits = frame.DefaultLimits()
