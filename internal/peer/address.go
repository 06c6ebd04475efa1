package peer

import (
	"errors"
	"fmt"
	"net"
	"strconv"
	"strings"
)

const DefaultHost = "127.0.0.1"

var (
	ErrInvalidAddress = errors.New("peer: invalid address")
	ErrNotLoopback    = errors.New("peer: address is not loopback")
)

// Address identifies one listening endpoint of the ring. It is comparable and
// used as the ring table key.
type Address struct {
	Host string
	Port uint16
}

func New(host string, port uint16) Address {
	return Address{Host: host, Port: port}
}

func (a Address) String() string {
	return net.JoinHostPort(a.Host, strconv.Itoa(int(a.Port)))
}

// IsLoopback reports whether the host resolves to this machine without DNS.
func (a Address) IsLoopback() bool {
	host := strings.TrimSpace(a.Host)
	if strings.EqualFold(host, "localhost") {
		return true
	}
	ip := net.ParseIP(host)
	return ip != nil && ip.IsLoopback()
}

func (a Address) Validate() error {
	if strings.TrimSpace(a.Host) == "" {
		return fmt.Errorf("%w: missing host", ErrInvalidAddress)
	}
	if a.Port == 0 {
		return fmt.Errorf("%w: %s: port must be non-zero", ErrInvalidAddress, a)
	}
	if !a.IsLoopback() {
		return fmt.Errorf("%w: %s", ErrNotLoopback, a)
	}
	return nil
}

// Parse reads "host:port". An empty host (":9001") means DefaultHost.
func Parse(raw string) (Address, error) {
	raw = strings.TrimSpace(raw)
	host, portStr, err := net.SplitHostPort(raw)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: %v", ErrInvalidAddress, raw, err)
	}
	port, err := strconv.ParseUint(portStr, 10, 16)
	if err != nil {
		return Address{}, fmt.Errorf("%w: %q: bad port", ErrInvalidAddress, raw)
	}
	if strings.TrimSpace(host) == "" {
		host = DefaultHost
	}
	return Address{Host: host, Port: uint16(port)}, nil
}

// ParseList parses a comma-separated address list, skipping empty entries.
func ParseList(raw string) ([]Address, error) {
	parts := strings.Split(raw, ",")
	out := make([]Address, 0, len(parts))
	for _, part := range parts {
		part = strings.TrimSpace(part)
		if part == "" {
			continue
		}
		addr, err := Parse(part)
		if err != nil {
			return nil, err
		}
		out = append(out, addr)
	}
	return out, nil
}

func (a Address) MarshalText() ([]byte, error) {
	return []byte(a.String()), nil
}

func (a *Address) UnmarshalText(b []byte) error {
	parsed, err := Parse(string(b))
	if err != nil {
		return err
	}
	*a = parsed
	return nil
}
