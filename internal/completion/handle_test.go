package completion

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func TestResolveSettlesOnce(t *testing.T) {
	h := New()
	require.Equal(t, Pending, h.State())

	require.True(t, h.Resolve(nil))
	require.False(t, h.Resolve(errors.New("late")))
	require.False(t, h.Cancel())

	require.Equal(t, Resolved, h.State())
	require.NoError(t, h.Err())
	select {
	case <-h.Done():
	default:
		t.Fatal("done channel not closed")
	}
}

func TestResolveWithError(t *testing.T) {
	boom := errors.New("boom")
	h := New()
	require.True(t, h.Resolve(boom))
	require.Equal(t, Errored, h.State())
	require.ErrorIs(t, h.Wait(context.Background()), boom)
}

func TestCancel(t *testing.T) {
	h := New()
	require.True(t, h.Cancel())
	require.False(t, h.Resolve(nil))
	require.Equal(t, Cancelled, h.State())
	require.ErrorIs(t, h.Err(), ErrCancelled)
	require.Equal(t, "cancelled", h.State().String())
}

func TestWaitHonorsContext(t *testing.T) {
	h := New()
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	require.ErrorIs(t, h.Wait(ctx), context.DeadlineExceeded)
	require.Equal(t, Pending, h.State())
}

func TestWaitAllFirstErrorWins(t *testing.T) {
	ok := New()
	failed := New()
	boom := errors.New("peer session failed")

	go func() {
		ok.Resolve(nil)
		failed.Resolve(boom)
	}()

	require.ErrorIs(t, WaitAll(context.Background(), ok, failed, nil), boom)
}

func TestWaitAllWaitsForEveryHandle(t *testing.T) {
	a, b := New(), New()
	result := make(chan error, 1)
	go func() { result <- WaitAll(context.Background(), a, b) }()

	a.Resolve(nil)
	select {
	case err := <-result:
		t.Fatalf("WaitAll returned before every handle resolved: %v", err)
	case <-time.After(30 * time.Millisecond):
	}

	b.Resolve(nil)
	select {
	case err := <-result:
		require.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("WaitAll did not return")
	}
}

func TestWaitAllReturnsFirstErrorWhileOthersPending(t *testing.T) {
	pendingA, failed, pendingB := New(), New(), New()
	boom := errors.New("peer session failed")
	result := make(chan error, 1)
	go func() { result <- WaitAll(context.Background(), pendingA, failed, pendingB) }()

	failed.Resolve(boom)
	select {
	case err := <-result:
		require.ErrorIs(t, err, boom)
	case <-time.After(time.Second):
		t.Fatal("WaitAll still blocked after a handle errored")
	}
	require.Equal(t, Pending, pendingA.State())
	require.Equal(t, Pending, pendingB.State())
}

func TestWaitAllReturnsOnSingleCancel(t *testing.T) {
	a, b := New(), New()
	result := make(chan error, 1)
	go func() { result <- WaitAll(context.Background(), a, b) }()

	b.Cancel()
	select {
	case err := <-result:
		require.ErrorIs(t, err, ErrCancelled)
	case <-time.After(time.Second):
		t.Fatal("WaitAll still blocked after a handle was cancelled")
	}
	require.Equal(t, Pending, a.State())
}

func TestWaitAllCancelled(t *testing.T) {
	a, b := New(), New()
	a.Cancel()
	b.Cancel()
	require.ErrorIs(t, WaitAll(context.Background(), a, b), ErrCancelled)
}

func TestWaitAllEmpty(t *testing.T) {
	require.NoError(t, WaitAll(context.Background()))
}
