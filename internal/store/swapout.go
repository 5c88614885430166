package store

import (
	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

// maybeStartSwapOut drives the NONE -> WRITING transition. It acquires a
// locator (via the write-mode handle) and opens the entry-owned swap-out
// handle. Refusals leave the entry memory-only.
func (e *Entry) maybeStartSwapOut() {
	if e.swapStatus != SwapNone {
		return
	}
	if e.flags.test(flagUncacheable) || e.flags.test(flagSwapPending) {
		return
	}
	if e.mem == nil {
		return
	}
	if limit := e.store.cfg.MaxObjectSize; limit > 0 && e.mem.InmemHi() > limit {
		e.store.logger.Debug("object too large to swap out", "key", e.key.String(), "size", e.mem.InmemHi())
		e.flags.set(flagUncacheable)
		return
	}
	if !e.store.limiter.Allow() {
		if e.completed {
			// No further appends will retry; this object stays memory-only.
			e.store.logger.Debug("swap-out refused by pacing", "key", e.key.String())
			e.flags.set(flagUncacheable)
		}
		return
	}

	e.flags.set(flagSwapPending)
	e.swapStatus = SwapWriting

	e.guard.lock() // matched by the unlock in swapOutFileClosed
	var h *swapio.Handle
	h = swapio.Open(e.store.ctx, e.store.backend, swapio.ModeWrite, nil,
		nil,
		func(err error) { e.swapOutFileClosed(h, err) },
		e.store.loop.Post,
	)
	e.sio = h
}

// swapOutPages submits appended-but-unsubmitted bytes to the swap-out
// handle in chunk-sized writes. Submission order per handle is preserved by
// the handle itself.
func (e *Entry) swapOutPages() {
	if e.sio == nil || e.sio.Mode() != swapio.ModeWrite || e.mem == nil {
		return
	}
	off := e.mem.swapQueued
	p := e.mem.unqueued()
	chunk := e.store.cfg.SwapChunkSize
	for len(p) > 0 {
		n := chunk
		if n > len(p) {
			n = len(p)
		}
		e.sio.Write(off, p[:n], e.swapWriteDone)
		off += int64(n)
		p = p[n:]
	}
}

func (e *Entry) swapWriteDone(n int, err error) {
	if err != nil {
		// The handle closes itself on a fatal write error;
		// swapOutFileClosed performs the revert.
		return
	}
	if e.mem == nil {
		return
	}
	e.mem.swapOff += int64(n)
	e.store.metrics.AddBytesSwappedOut(e.store.ctx, int64(n))
	e.maybeCloseSwapOut()
}

// maybeCloseSwapOut requests the terminal close once the complete object
// has been flushed.
func (e *Entry) maybeCloseSwapOut() {
	if e.sio == nil || !e.completed || e.mem == nil {
		return
	}
	if e.mem.swapOff == e.objectLen {
		e.sio.Close()
	}
}

// swapOutFileClosed is the terminal callback of the entry-owned swap-out
// handle. Success completes WRITING -> DONE; failure reverts WRITING ->
// NONE, discards the allocated slot and leaves the entry servable from
// memory for any range still within inmem_hi.
func (e *Entry) swapOutFileClosed(h *swapio.Handle, err error) {
	e.sio = nil
	defer e.guard.unlock(e.destroy)

	e.flags.clear(flagSwapPending)

	flushed := e.completed && e.mem != nil && e.mem.swapOff == e.objectLen
	if err == nil && flushed && e.guard.live() {
		loc, ok := h.Locator()
		if !ok {
			panic("logic error: swap-out completed without a locator")
		}
		e.locator = &loc
		e.swapStatus = SwapDone
		e.checkInvariants()
		e.store.metrics.RecordSwapOut(e.store.ctx, false)
		e.store.recordSwapLog(e)
		e.store.logger.Debug("swap-out complete",
			"key", e.key.String(), "locator", loc.String(), "size", e.objectLen)
		e.maybeReleaseMemory()
		return
	}

	// Failure, producer abort, or entry release while writing: the slot
	// never becomes trustworthy.
	if loc, ok := h.Locator(); ok {
		e.store.backend.Release(loc)
	}
	if !e.guard.live() {
		return
	}
	e.swapStatus = SwapNone
	e.locator = nil
	e.flags.set(flagUncacheable)
	e.checkInvariants()
	e.store.metrics.RecordSwapOut(e.store.ctx, true)
	if err != nil {
		e.store.logger.Error("swap-out failed, keeping object memory-only",
			"key", e.key.String(), "error", err.Error())
		e.store.reportError(err)
	}
	// Readers waiting on a durable copy are redirected to memory or failed
	// explicitly by the dispatch logic.
	e.kickReads()
}
