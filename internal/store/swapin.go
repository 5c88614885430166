package store

import (
	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

// canSwapIn reports whether dispatch may start (or continue) a swap-in read
// for this entry. This is the caller-side check; swapInStart itself treats
// a violated precondition as a logic error.
func (e *Entry) canSwapIn() bool {
	if e.mem != nil {
		return false
	}
	if !e.flags.test(flagValidated) {
		return false
	}
	if e.swapStatus != SwapWriting && e.swapStatus != SwapDone {
		return false
	}
	return e.locator != nil
}

// swapInStart opens the client's private read-mode handle against the
// entry's locator and registers the per-chunk data notifier and the
// terminal closed notifier. Its preconditions are internal invariants, not
// environmental conditions; violating them is a caller bug.
func (sc *Client) swapInStart() {
	e := sc.entry
	if e.memStatus != NotInMemory {
		panic("logic error: swapInStart with object in memory")
	}
	if !e.flags.test(flagValidated) {
		panic("logic error: swapInStart on unvalidated entry")
	}
	if e.swapStatus != SwapWriting && e.swapStatus != SwapDone {
		panic("logic error: swapInStart with swap status " + e.swapStatus.String())
	}
	if e.locator == nil {
		panic("logic error: swapInStart without a locator")
	}

	e.store.logger.Debug("starting swap-in",
		"key", e.key.String(), "locator", e.locator.String())

	loc := *e.locator
	sc.guard.lock() // matched by the unlock in swapInFileClosed
	var h *swapio.Handle
	h = swapio.Open(e.store.ctx, e.store.backend, swapio.ModeRead, &loc,
		func(p []byte, err error) { sc.swapInData(h, p, err) },
		func(err error) { sc.swapInFileClosed(h, err) },
		e.store.loop.Post,
	)
	sc.sio = h
}

// swapInData is the per-chunk arrival path. Bookkeeping (the locator the
// handle actually used) is recorded on the entry even when delivery to the
// client is suppressed by cancellation.
func (sc *Client) swapInData(h *swapio.Handle, p []byte, err error) {
	sc.flying = false
	sc.entry.swapInFileNotify(h)
	if !sc.guard.live() {
		// Cancelled while the read was in flight; suppress delivery.
		return
	}
	if !sc.pending {
		return
	}
	if err == nil {
		sc.entry.store.metrics.AddBytesSwappedIn(sc.entry.store.ctx, int64(len(p)))
	}
	sc.deliver(p, err)
}

// swapInFileClosed fires exactly once per swap-in attempt. It must tolerate
// the client no longer wanting anything (a close can race a cancellation);
// in that case it only performs cleanup.
func (sc *Client) swapInFileClosed(h *swapio.Handle, err error) {
	sc.sio = nil
	sc.flying = false

	if sc.guard.live() && sc.pending {
		sc.deliver(nil, err)
	}

	store := sc.entry.store
	store.metrics.RecordSwapIn(store.ctx, err != nil)
	if err != nil {
		store.logger.Error("swap-in failed",
			"key", sc.entry.key.String(), "error", err.Error())
		store.reportError(err)
	}

	sc.guard.unlock(sc.destroy)
}
