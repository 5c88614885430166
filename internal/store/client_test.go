package store

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
)

func waitForPending(t *testing.T, s *Store, c *Client) {
	t.Helper()

	require.Eventually(t, func() bool {
		var pending bool
		if err := s.loop.Do(context.Background(), func() { pending = c.pending }); err != nil {
			return false
		}
		return pending
	}, eventuallyTimeout, eventuallyTick)
}

func TestReadWokenByAppend(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, Config{}, newMemBackend(), newFakeSwapLog())

	key := KeyForURL("http://example.com/streaming")
	e, err := s.CreateEntry(ctx, key)
	require.NoError(t, err)

	c, err := s.OpenClient(ctx, key)
	require.NoError(t, err)

	type result struct {
		p   []byte
		err error
	}
	got := make(chan result, 1)
	go func() {
		p, err := c.Read(ctx, 0, 5)
		got <- result{p, err}
	}()

	waitForPending(t, s, c)

	require.NoError(t, e.Append(ctx, []byte("hello, world")))

	res := <-got
	require.NoError(t, res.err)
	require.Equal(t, []byte("hello"), res.p)

	require.NoError(t, c.Close(ctx))
}

func TestSecondReadRejectedWhilePending(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, Config{}, newMemBackend(), newFakeSwapLog())

	key := KeyForURL("http://example.com/busy")
	e, err := s.CreateEntry(ctx, key)
	require.NoError(t, err)

	c, err := s.OpenClient(ctx, key)
	require.NoError(t, err)

	firstErr := make(chan error, 1)
	go func() {
		_, err := c.Read(ctx, 0, 4)
		firstErr <- err
	}()
	waitForPending(t, s, c)

	// The rejection must not disturb the outstanding request.
	_, err = c.Read(ctx, 4, 4)
	require.ErrorIs(t, err, ErrReadPending)

	require.NoError(t, e.Append(ctx, []byte("data")))
	require.NoError(t, <-firstErr)

	require.NoError(t, c.Close(ctx))
}

func TestReadValidation(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, Config{}, newMemBackend(), newFakeSwapLog())

	key := KeyForURL("http://example.com/validation")
	e, err := s.CreateEntry(ctx, key)
	require.NoError(t, err)
	require.NoError(t, e.Append(ctx, []byte("content")))
	require.NoError(t, e.Complete(ctx))

	c, err := s.OpenClient(ctx, key)
	require.NoError(t, err)

	t.Run("negative offset", func(t *testing.T) {
		_, err := c.Read(ctx, -1, 4)
		require.Error(t, err)
	})

	t.Run("zero length", func(t *testing.T) {
		_, err := c.Read(ctx, 0, 0)
		require.Error(t, err)
	})

	t.Run("read past end of completed object", func(t *testing.T) {
		p, err := c.Read(ctx, 1000, 4)
		require.NoError(t, err)
		require.Empty(t, p)
	})

	t.Run("read on closed client", func(t *testing.T) {
		require.NoError(t, c.Close(ctx))
		_, err := c.Read(ctx, 0, 4)
		require.ErrorIs(t, err, ErrReleased)
	})
}

func TestAbortFailsPendingReads(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	s := newTestStore(t, Config{}, newMemBackend(), newFakeSwapLog())

	key := KeyForURL("http://example.com/aborted")
	e, err := s.CreateEntry(ctx, key)
	require.NoError(t, err)
	require.NoError(t, e.Append(ctx, []byte("partial")))

	c, err := s.OpenClient(ctx, key)
	require.NoError(t, err)

	readErr := make(chan error, 1)
	go func() {
		_, err := c.Read(ctx, 100, 10)
		readErr <- err
	}()
	waitForPending(t, s, c)

	require.NoError(t, e.Abort(ctx))

	require.ErrorIs(t, <-readErr, ErrAborted)
	require.ErrorIs(t, e.Append(ctx, []byte("more")), ErrAborted)
	require.ErrorIs(t, e.Complete(ctx), ErrAborted)

	_, err = s.OpenClient(ctx, key)
	require.ErrorIs(t, err, ErrNotFound)

	require.NoError(t, c.Close(ctx))
}

func TestCloseSuppressesInFlightSwapIn(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	backend := newMemBackend()
	s := newTestStore(t, Config{}, backend, newFakeSwapLog())

	key := KeyForURL("http://example.com/cancelled")
	body := testObjectBytes(64)
	e, err := s.CreateEntry(ctx, key)
	require.NoError(t, err)
	require.NoError(t, e.Append(ctx, body))
	require.NoError(t, e.Complete(ctx))
	waitForSwapStatus(t, s, key, SwapDone)
	require.NoError(t, s.EvictMemory(ctx, key))

	// Hold the swap-in read in flight.
	gate := make(chan struct{})
	backend.setReadGate(gate)

	c, err := s.OpenClient(ctx, key)
	require.NoError(t, err)

	readCtx, cancel := context.WithTimeout(ctx, 250*time.Millisecond)
	defer cancel()
	readErr := make(chan error, 1)
	go func() {
		_, err := c.Read(readCtx, 0, 32)
		readErr <- err
	}()

	require.Eventually(t, func() bool {
		var flying bool
		if err := s.loop.Do(ctx, func() { flying = c.flying }); err != nil {
			return false
		}
		return flying
	}, eventuallyTimeout, eventuallyTick)

	// Cancel while the backend read is blocked, then let it complete. The
	// late completion must be swallowed, not delivered.
	require.NoError(t, c.Close(ctx))
	close(gate)
	backend.setReadGate(nil)

	require.ErrorIs(t, <-readErr, context.DeadlineExceeded)

	// The entry survives the cancelled reader.
	c2, err := s.OpenClient(ctx, key)
	require.NoError(t, err)
	got := readAll(t, ctx, c2, 32)
	require.NoError(t, c2.Close(ctx))
	require.True(t, bytes.Equal(body, got))
}
