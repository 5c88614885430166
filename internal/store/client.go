package store

import (
	"context"
	"fmt"

	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

// ReadFunc receives the outcome of a scheduled read: the requested bytes on
// success (an empty slice means end-of-object), or an explicit error. Data
// is never silently truncated without the error saying so.
type ReadFunc func(p []byte, err error)

// Client is one concurrent reader's cursor into an entry. Many clients may
// read one entry; none owns it. A client holds a counted reference that
// keeps the entry alive at least until its pending request completes.
type Client struct {
	guard refGuard

	entry *Entry
	store *Store

	offset  int64
	length  int
	pending bool
	// flying is set while an asynchronous completion for the current
	// request is already scheduled, so kickReads does not double-dispatch.
	flying bool
	cb     ReadFunc

	// sio is the client's private swap-in handle; the entry's own handle
	// only ever writes.
	sio *swapio.Handle

	closed bool
}

// Read requests n bytes at off and blocks until they are delivered or ctx
// expires. A short result with a nil error means end-of-object. Callers
// abandoning a read after their own deadline must Close the client; this
// layer imposes no timeout of its own.
func (c *Client) Read(ctx context.Context, off int64, n int) ([]byte, error) {
	type result struct {
		p   []byte
		err error
	}
	ch := make(chan result, 1)

	var scheduleErr error
	if err := c.store.loop.Do(ctx, func() {
		scheduleErr = c.scheduleRead(off, n, func(p []byte, err error) {
			ch <- result{p: p, err: err}
		})
	}); err != nil {
		return nil, err
	}
	if scheduleErr != nil {
		return nil, scheduleErr
	}

	select {
	case res := <-ch:
		return res.p, res.err
	case <-ctx.Done():
		return nil, ctx.Err()
	}
}

// Close cancels the client. A late completion of an in-flight swap-in read
// is suppressed, not delivered.
func (c *Client) Close(ctx context.Context) error {
	return c.store.loop.Do(ctx, func() {
		c.cancel()
	})
}

// scheduleRead registers the client's single outstanding request and
// dispatches it. Runs on the event loop.
func (c *Client) scheduleRead(off int64, n int, cb ReadFunc) error {
	if c.closed {
		return ErrReleased
	}
	if !c.entry.guard.live() {
		return c.entry.releaseCause
	}
	if c.pending {
		// Caller error; rejected synchronously without touching entry state.
		return ErrReadPending
	}
	if off < 0 || n <= 0 {
		return fmt.Errorf("invalid read range [%d, %d+%d)", off, off, n)
	}

	c.offset = off
	c.length = n
	c.cb = cb
	c.pending = true
	c.dispatch()
	return nil
}

// dispatch is the three-way read protocol:
//  1. satisfiable from memory: delivered on a later loop turn, no I/O;
//  2. durable copy available: swap-in read through the private handle;
//  3. otherwise the request stays pending until the producer appends past
//     the range (kickReads on every append) or validation finishes.
func (c *Client) dispatch() {
	if !c.pending || c.flying {
		return
	}
	e := c.entry

	if e.mem == nil {
		e.store.hotGet(e)
	}

	// End-of-object.
	if e.completed && c.offset >= e.objectLen {
		c.flying = true
		p := []byte{}
		e.store.loop.Post(func() {
			if c.guard.live() && c.pending {
				c.deliver(p, nil)
			}
		})
		return
	}

	// Memory hit: the range is resident, or the object is complete and the
	// tail of the range is past end-of-object.
	if e.mem != nil && c.offset < e.mem.InmemHi() {
		covered := c.offset+int64(c.length) <= e.mem.InmemHi()
		if covered || e.completed {
			c.flying = true
			p := e.mem.copyAt(c.offset, c.length)
			e.store.loop.Post(func() {
				if c.guard.live() && c.pending {
					c.deliver(p, nil)
				}
			})
			return
		}
	}

	// Swap-in.
	if e.canSwapIn() {
		avail := e.objectLen - c.offset
		n := c.length
		if int64(n) > avail {
			n = int(avail)
		}
		c.flying = true
		if c.sio == nil {
			c.swapInStart()
		}
		c.sio.Read(c.offset, n)
		return
	}

	// Nothing can ever satisfy this: the object is complete and validated
	// yet neither memory nor a durable copy covers the range.
	if e.completed && e.flags.test(flagValidated) {
		c.deliver(nil, ErrUnavailable)
		return
	}

	// Held pending; a later append, completion or validation wakes us.
}

func (c *Client) deliver(p []byte, err error) {
	if !c.pending {
		panic("logic error: deliver without a pending read")
	}
	c.pending = false
	c.flying = false
	cb := c.cb
	c.cb = nil
	cb(p, err)
}

// cancel drops the client's reference first; the swap-in close path then
// sees no live client and only cleans up.
func (c *Client) cancel() {
	if c.closed {
		return
	}
	c.closed = true
	c.pending = false
	c.flying = false
	c.cb = nil

	if c.sio != nil {
		c.sio.Close()
	}

	e := c.entry
	for i, other := range e.clients {
		if other == c {
			e.clients = append(e.clients[:i], e.clients[i+1:]...)
			break
		}
	}

	c.guard.doom(c.destroy)
}

func (c *Client) destroy() {
	e := c.entry
	e.maybeReleaseMemory()
	e.guard.unlock(e.destroy)
}
