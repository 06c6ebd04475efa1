package peer

import "fmt"

// State is the lifecycle position of one ring peer.
type State int

const (
	StateUnbound State = iota
	StateBound
	StateConnected
	StateTerminated
)

func (s State) String() string {
	switch s {
	case StateUnbound:
		return "unbound"
	case StateBound:
		return "bound"
	case StateConnected:
		return "connected"
	case StateTerminated:
		return "terminated"
	default:
		return "unknown"
	}
}

func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

func (s *State) UnmarshalText(b []byte) error {
	for _, candidate := range []State{StateUnbound, StateBound, StateConnected, StateTerminated} {
		if candidate.String() == string(b) {
			*s = candidate
			return nil
		}
	}
	return fmt.Errorf("peer: unknown state %q", b)
}

// Status is an observer snapshot of one registered peer.
type Status struct {
	Position   int    `json:"position"`
	Addr       string `json:"addr"`
	ListenAddr string `json:"listen_addr"`
	State      State  `json:"state"`
	Outcome    string `json:"outcome,omitempty"`
	Error      string `json:"error,omitempty"`
}
