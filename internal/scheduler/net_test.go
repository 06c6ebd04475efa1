package scheduler

import (
	"bufio"
	"context"
	"io"
	"net"
	"testing"
	"time"

	"github.com/danmuck/shackles/internal/peer"
	"github.com/danmuck/shackles/internal/testutil/testlog"
	"github.com/stretchr/testify/require"
)

var anyLoopback = peer.New("127.0.0.1", 0)

func listenerAddr(t *testing.T, l Listener) peer.Address {
	t.Helper()
	tcp, ok := l.Addr().(*net.TCPAddr)
	require.True(t, ok)
	return peer.New("127.0.0.1", uint16(tcp.Port))
}

func echoHandler() Handler {
	return HandlerFunc(func(ctx context.Context, conn net.Conn) {
		_, _ = io.Copy(conn, conn)
	})
}

func TestListenAndDialEcho(t *testing.T) {
	testlog.Start(t)
	s := NewNetScheduler(DefaultConfig())
	defer s.Close()

	l, err := s.Listen(context.Background(), anyLoopback, echoHandler())
	require.NoError(t, err)

	conn, err := s.Dial(context.Background(), listenerAddr(t, l), nil)
	require.NoError(t, err)
	defer conn.Close()

	_, err = conn.Write([]byte("ping\n"))
	require.NoError(t, err)
	line, err := bufio.NewReader(conn).ReadString('\n')
	require.NoError(t, err)
	require.Equal(t, "ping\n", line)
}

func TestDialRunsHandler(t *testing.T) {
	testlog.Start(t)
	s := NewNetScheduler(DefaultConfig())
	defer s.Close()

	l, err := s.Listen(context.Background(), anyLoopback, HandlerFunc(func(ctx context.Context, conn net.Conn) {
		_, _ = conn.Write([]byte("hi"))
	}))
	require.NoError(t, err)

	got := make(chan string, 1)
	_, err = s.Dial(context.Background(), listenerAddr(t, l), HandlerFunc(func(ctx context.Context, conn net.Conn) {
		b, _ := io.ReadAll(conn)
		got <- string(b)
	}))
	require.NoError(t, err)

	select {
	case v := <-got:
		require.Equal(t, "hi", v)
	case <-time.After(2 * time.Second):
		t.Fatal("dial handler did not run")
	}
}

func TestListenerCloseIsIdempotent(t *testing.T) {
	testlog.Start(t)
	s := NewNetScheduler(DefaultConfig())
	defer s.Close()

	l, err := s.Listen(context.Background(), anyLoopback, echoHandler())
	require.NoError(t, err)
	addr := listenerAddr(t, l)

	require.NoError(t, l.Close())
	require.NoError(t, l.Close())

	_, err = s.Dial(context.Background(), addr, nil)
	require.Error(t, err)
}

func TestListenAddressInUse(t *testing.T) {
	testlog.Start(t)
	s := NewNetScheduler(DefaultConfig())
	defer s.Close()

	l, err := s.Listen(context.Background(), anyLoopback, echoHandler())
	require.NoError(t, err)

	_, err = s.Listen(context.Background(), listenerAddr(t, l), echoHandler())
	require.Error(t, err)
}

func TestCloseEndsHandlersAndRejectsWork(t *testing.T) {
	testlog.Start(t)
	s := NewNetScheduler(Config{DialTimeout: time.Second})

	started := make(chan struct{})
	ended := make(chan struct{})
	l, err := s.Listen(context.Background(), anyLoopback, HandlerFunc(func(ctx context.Context, conn net.Conn) {
		close(started)
		_, _ = io.Copy(io.Discard, conn)
		close(ended)
	}))
	require.NoError(t, err)

	conn, err := s.Dial(context.Background(), listenerAddr(t, l), nil)
	require.NoError(t, err)
	<-started

	closed := make(chan error, 1)
	go func() { closed <- s.Close() }()
	select {
	case err := <-closed:
		require.NoError(t, err)
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler close did not return")
	}
	<-ended

	buf := make([]byte, 1)
	_ = conn.SetReadDeadline(time.Now().Add(time.Second))
	_, err = conn.Read(buf)
	require.Error(t, err)

	_, err = s.Listen(context.Background(), anyLoopback, echoHandler())
	require.ErrorIs(t, err, ErrClosed)
	require.NoError(t, s.Close())
}

func TestConfigValidate(t *testing.T) {
	require.NoError(t, DefaultConfig().Validate())
	require.Error(t, Config{DialTimeout: -1}.Validate())
	require.Error(t, Config{KeepAlive: -1}.Validate())
}
