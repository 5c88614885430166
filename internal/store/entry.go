package store

import (
	"context"
	"fmt"

	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

// Entry is the cache's unit of identity for one cached object. All fields
// are owned by the store's event loop; external callers go through the
// exported methods, which post onto the loop.
//
// An entry is destroyed only when its reference count reaches zero and no
// swap I/O handle is active on it. Clients, pending I/O callbacks and the
// cache index each hold one reference.
type Entry struct {
	guard refGuard

	key   Key
	store *Store

	swapStatus SwapStatus
	memStatus  MemStatus
	flags      entryFlags

	// locator is immutable once assigned for this entry's lifetime; a new
	// write cycle gets a new locator.
	locator *swapio.Locator

	mem *MemObject
	sio *swapio.Handle

	clients []*Client

	completed    bool
	objectLen    int64 // -1 until the producer signals completion
	releaseCause error
}

func (e *Entry) Key() Key {
	return e.key
}

// Append grows the object with bytes from the upstream producer.
func (e *Entry) Append(ctx context.Context, p []byte) error {
	var err error
	if doErr := e.store.loop.Do(ctx, func() {
		err = e.append(p)
	}); doErr != nil {
		return doErr
	}
	return err
}

// Complete signals end-of-object from the producer.
func (e *Entry) Complete(ctx context.Context) error {
	var err error
	if doErr := e.store.loop.Do(ctx, func() {
		err = e.complete()
	}); doErr != nil {
		return doErr
	}
	return err
}

// Abort discards the object: pending readers fail explicitly and the entry
// is released.
func (e *Entry) Abort(ctx context.Context) error {
	return e.store.loop.Do(ctx, func() {
		e.abort()
	})
}

func (e *Entry) append(p []byte) error {
	if !e.guard.live() {
		return e.releaseCause
	}
	if e.completed {
		return ErrCompleted
	}
	if e.mem == nil {
		panic("logic error: append to entry without a MemObject")
	}
	e.mem.append(p)
	e.kickReads()
	e.maybeStartSwapOut()
	e.swapOutPages()
	return nil
}

func (e *Entry) complete() error {
	if !e.guard.live() {
		return e.releaseCause
	}
	if e.completed {
		return ErrCompleted
	}
	e.completed = true
	e.objectLen = e.mem.InmemHi()
	e.kickReads()
	e.maybeStartSwapOut()
	e.swapOutPages()
	e.maybeCloseSwapOut()
	return nil
}

func (e *Entry) abort() {
	if !e.guard.live() {
		return
	}
	e.flags.set(flagUncacheable)
	e.release(ErrAborted)
}

// release dooms the entry: pending reads fail with cause, any active
// swap-out is closed, the durable copy (if complete) is discarded, and the
// entry is destroyed once the last reference drops.
func (e *Entry) release(cause error) {
	if !e.guard.live() {
		return
	}
	e.releaseCause = cause

	if e.swapStatus == SwapDone && e.locator != nil {
		loc := *e.locator
		e.store.backend.Release(loc)
		e.store.removeSwapLog(e.key)
	}

	e.failPendingReads(cause)
	if e.sio != nil {
		// The close callback holds a reference, so destruction waits for it.
		e.sio.Close()
	}

	e.store.unindex(e)
	e.guard.doom(e.destroy)
	e.guard.unlock(e.destroy) // the index reference
}

func (e *Entry) destroy() {
	if e.sio != nil {
		panic("logic error: entry destroyed with active swap I/O handle")
	}
	if len(e.clients) != 0 {
		panic("logic error: entry destroyed with live clients")
	}
	e.mem = nil
	e.memStatus = NotInMemory
	e.store.logger.Debug("destroyed store entry", "key", e.key.String())
}

// kickReads re-dispatches every pending client request. Called whenever new
// bytes may have become available (producer append, completion, validation)
// or a source disappeared (swap-out failure).
func (e *Entry) kickReads() {
	for _, c := range append([]*Client(nil), e.clients...) {
		if c.pending && !c.flying {
			c.dispatch()
		}
	}
}

func (e *Entry) failPendingReads(err error) {
	for _, c := range append([]*Client(nil), e.clients...) {
		if c.pending {
			c.deliver(nil, err)
		}
	}
}

// maybeReleaseMemory hands the MemObject of a fully swapped-out idle entry
// to the hot-memory cache.
func (e *Entry) maybeReleaseMemory() {
	if e.mem == nil || !e.guard.live() {
		return
	}
	if e.swapStatus != SwapDone || !e.completed || len(e.clients) > 0 {
		return
	}
	e.store.hotPut(e.key, e.mem)
	e.mem = nil
	e.memStatus = NotInMemory
}

// swapInFileNotify records the locator a swap-in handle actually resolved
// to; the handle may land on storage different from the entry's nominal
// record if the backend remapped it. It never delivers bytes itself.
func (e *Entry) swapInFileNotify(h *swapio.Handle) {
	loc, ok := h.Locator()
	if !ok {
		return
	}
	if e.locator == nil || *e.locator != loc {
		e.store.logger.Debug("swap-in resolved to a different locator",
			"key", e.key.String(),
			"recorded", fmt.Sprintf("%v", e.locator),
			"actual", loc.String(),
		)
		e.locator = &loc
	}
}

// checkInvariants is called after every swap-status transition.
func (e *Entry) checkInvariants() {
	if e.swapStatus == SwapDone {
		if e.locator == nil {
			panic("logic error: swap status DONE without a locator")
		}
		if !e.flags.test(flagValidated) {
			panic("logic error: swap status DONE without validation")
		}
	}
}
