package link

import "github.com/danmuck/shackles/internal/peer"

// SessionContext says which side of the ring a connection belongs to.
// The set of variants is closed: ServerContext and ClientContext.
type SessionContext interface {
	sessionKind() string
}

// ServerContext marks connections accepted by the peer listening on Addr.
type ServerContext struct {
	Addr peer.Address
}

// ClientContext marks the orchestrator's ad-hoc instruction connection.
type ClientContext struct{}

func (ServerContext) sessionKind() string { return "server" }
func (ClientContext) sessionKind() string { return "client" }
