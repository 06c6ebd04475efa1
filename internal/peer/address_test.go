package peer

import (
	"errors"
	"testing"

	"github.com/danmuck/shackles/internal/testutil/testlog"
)

func TestParseAddress(t *testing.T) {
	testlog.Start(t)

	addr, err := Parse("127.0.0.1:9001")
	if err != nil {
		t.Fatalf("parse: %v", err)
	}
	if addr != New("127.0.0.1", 9001) {
		t.Fatalf("unexpected address: %+v", addr)
	}
	if addr.String() != "127.0.0.1:9001" {
		t.Fatalf("unexpected string: %q", addr.String())
	}

	bare, err := Parse(":9002")
	if err != nil {
		t.Fatalf("parse bare port: %v", err)
	}
	if bare.Host != DefaultHost || bare.Port != 9002 {
		t.Fatalf("unexpected bare address: %+v", bare)
	}

	v6, err := Parse("[::1]:9003")
	if err != nil {
		t.Fatalf("parse v6: %v", err)
	}
	if v6.String() != "[::1]:9003" {
		t.Fatalf("unexpected v6 string: %q", v6.String())
	}
}

func TestParseAddressRejectsMalformed(t *testing.T) {
	testlog.Start(t)

	for _, raw := range []string{"", "127.0.0.1", "127.0.0.1:http", "127.0.0.1:70000"} {
		if _, err := Parse(raw); !errors.Is(err, ErrInvalidAddress) {
			t.Fatalf("Parse(%q): expected ErrInvalidAddress, got %v", raw, err)
		}
	}
}

func TestParseListKeepsOrder(t *testing.T) {
	testlog.Start(t)

	addrs, err := ParseList("127.0.0.1:9003, 127.0.0.1:9001,,127.0.0.1:9002")
	if err != nil {
		t.Fatalf("parse list: %v", err)
	}
	want := []uint16{9003, 9001, 9002}
	if len(addrs) != len(want) {
		t.Fatalf("unexpected length: %d", len(addrs))
	}
	for i, port := range want {
		if addrs[i].Port != port {
			t.Fatalf("position %d: got %d want %d", i, addrs[i].Port, port)
		}
	}
}

func TestValidateLoopbackOnly(t *testing.T) {
	testlog.Start(t)

	for _, ok := range []Address{New("127.0.0.1", 1), New("localhost", 9001), New("::1", 9001), New("127.0.0.2", 9001)} {
		if err := ok.Validate(); err != nil {
			t.Fatalf("%s: unexpected error %v", ok, err)
		}
	}
	if err := New("10.0.0.1", 9001).Validate(); !errors.Is(err, ErrNotLoopback) {
		t.Fatalf("expected ErrNotLoopback, got %v", err)
	}
	if err := New("example.com", 9001).Validate(); !errors.Is(err, ErrNotLoopback) {
		t.Fatalf("expected ErrNotLoopback for hostname, got %v", err)
	}
	if err := New("127.0.0.1", 0).Validate(); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for port 0, got %v", err)
	}
	if err := New(" ", 9001).Validate(); !errors.Is(err, ErrInvalidAddress) {
		t.Fatalf("expected ErrInvalidAddress for empty host, got %v", err)
	}
}

func TestStateText(t *testing.T) {
	testlog.Start(t)

	b, err := StateConnected.MarshalText()
	if err != nil || string(b) != "connected" {
		t.Fatalf("unexpected text: %q %v", b, err)
	}
	if State(42).String() != "unknown" {
		t.Fatalf("unexpected fallback: %q", State(42).String())
	}
}

func TestStateTextRoundTrip(t *testing.T) {
	var s State
	if err := s.UnmarshalText([]byte("terminated")); err != nil || s != StateTerminated {
		t.Fatalf("unexpected state %v err=%v", s, err)
	}
	if err := s.UnmarshalText([]byte("gone")); err == nil {
		t.Fatalf("expected unknown state error")
	}
}
