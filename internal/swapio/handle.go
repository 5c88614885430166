// Package swapio moves object bytes between memory and a storage backend.
//
// A Handle is one outstanding open/transfer-sequence/close against a single
// backend slot. Transfers run on a per-handle goroutine in submission order;
// completions are posted back to the scheduler supplied at Open, so from the
// caller's point of view every operation is asynchronous: it returns before
// its effect and the completion fires on a later turn.
package swapio

import (
	"context"
	"errors"
	"io"
)

// ErrClosed completes transfers submitted after a close was requested but
// before the close callback delivered a more specific terminal error.
var ErrClosed = errors.New("swap I/O handle closed")

// DataFunc receives the bytes produced by a Read. A short (or empty) slice
// with a nil error means end-of-object was reached.
type DataFunc func(p []byte, err error)

// WriteFunc receives the completion of a single Write.
type WriteFunc func(n int, err error)

// CloseFunc receives the handle's terminal status, exactly once per handle.
// A nil error means every transfer completed successfully.
type CloseFunc func(err error)

type opKind int

const (
	opRead opKind = iota + 1
	opWrite
	opClose
)

type op struct {
	kind opKind
	off  int64
	n    int
	p    []byte
	done WriteFunc
}

// Handle is bound to exactly one slot for its lifetime. After the close
// callback starts running no further operation on the handle is valid;
// Read and Write check a state tag rather than trusting caller discipline.
// Between the close request and the callback the owner may still hold the
// handle, so transfers submitted in that window complete with the terminal
// error instead of panicking.
type Handle struct {
	mode    Mode
	onData  DataFunc
	onClose CloseFunc
	post    func(func())

	ops chan op

	// closing, finished and termErr belong to the scheduler goroutine.
	// closing is set when a close is requested, by Close or by the
	// self-close a transfer failure posts; finished is set when the close
	// callback starts running. termErr mirrors the worker's sticky error for
	// transfers arriving while the handle drains.
	closing  bool
	finished bool
	termErr  error

	// loc and err belong to the worker goroutine until the corresponding
	// completion is posted; the post ordering publishes them.
	loc    Locator
	hasLoc bool
	err    error
	file   File
}

// Open creates a handle and starts its worker. For ModeWrite with a nil
// locator a slot is allocated from the backend; allocation or open failure
// is reported via an immediate close callback, never a crash. post is the
// completion scheduler; every callback of this handle fires through it.
func Open(ctx context.Context, backend Backend, mode Mode, loc *Locator, onData DataFunc, onClose CloseFunc, post func(func())) *Handle {
	h := &Handle{
		mode:    mode,
		onData:  onData,
		onClose: onClose,
		post:    post,
		ops:     make(chan op, 16),
	}
	if loc != nil {
		h.loc = *loc
		h.hasLoc = true
	}
	go h.run(ctx, backend)
	return h
}

// Locator reports the slot the handle actually resolved to. It is only
// meaningful from within one of the handle's completion callbacks.
func (h *Handle) Locator() (Locator, bool) {
	return h.loc, h.hasLoc
}

func (h *Handle) Mode() Mode {
	return h.mode
}

// Read requests n bytes at off; completion delivers via the onData callback
// with however many bytes were actually read.
func (h *Handle) Read(off int64, n int) {
	if h.finished {
		panic("logic error: Read on closed swap I/O handle")
	}
	if h.mode != ModeRead {
		panic("logic error: Read on write-mode swap I/O handle")
	}
	if h.closing {
		h.completeWhileClosing(op{kind: opRead})
		return
	}
	h.ops <- op{kind: opRead, off: off, n: n}
}

// Write appends p at off. Writes are applied to the backing store in
// submission order. done may be nil.
func (h *Handle) Write(off int64, p []byte, done WriteFunc) {
	if h.finished {
		panic("logic error: Write on closed swap I/O handle")
	}
	if h.mode != ModeWrite {
		panic("logic error: Write on read-mode swap I/O handle")
	}
	if h.closing {
		h.completeWhileClosing(op{kind: opWrite, done: done})
		return
	}
	h.ops <- op{kind: opWrite, off: off, p: p, done: done}
}

// completeWhileClosing handles a transfer that raced the close request: the
// worker no longer accepts ops, so the completion is posted directly with
// the terminal error.
func (h *Handle) completeWhileClosing(o op) {
	err := h.termErr
	if err == nil {
		err = ErrClosed
	}
	h.complete(o, nil, 0, err)
}

// Close requests the terminal close. The close callback fires on a later
// turn with the handle's final status. Close after the handle already
// started closing (including the implicit close on a fatal transfer error)
// is a no-op.
func (h *Handle) Close() {
	if h.closing {
		return
	}
	h.closing = true
	h.ops <- op{kind: opClose}
}

// requestClose runs on the scheduler goroutine when a transfer fails, so
// that the handle closes itself even if the owner never asks.
func (h *Handle) requestClose(err error) {
	if h.termErr == nil {
		h.termErr = err
	}
	if h.closing {
		return
	}
	h.closing = true
	h.ops <- op{kind: opClose}
}

func (h *Handle) fail(err error) {
	if h.err != nil {
		return
	}
	h.err = err
	h.post(func() { h.requestClose(err) })
}

func (h *Handle) run(ctx context.Context, backend Backend) {
	h.open(ctx, backend)

	for o := range h.ops {
		if o.kind == opClose {
			break
		}
		if h.err != nil {
			// Sticky failure: remaining transfers complete with the
			// original error without touching the backend.
			h.complete(o, nil, 0, h.err)
			continue
		}
		switch o.kind {
		case opRead:
			buf := make([]byte, o.n)
			n, err := h.file.ReadAt(buf, o.off)
			if err == io.EOF {
				err = nil
			}
			if err != nil {
				h.fail(err)
			}
			h.complete(o, buf[:n], n, err)
		case opWrite:
			n, err := h.file.WriteAt(o.p, o.off)
			if err != nil {
				h.fail(err)
			}
			h.complete(o, nil, n, err)
		}
	}

	if h.file != nil {
		if err := h.file.Close(); err != nil && h.err == nil {
			h.err = err
		}
	}
	err := h.err
	h.post(func() {
		h.finished = true
		h.onClose(err)
	})
}

func (h *Handle) open(ctx context.Context, backend Backend) {
	if h.mode == ModeWrite && !h.hasLoc {
		loc, err := backend.Allocate(ctx)
		if err != nil {
			h.fail(err)
			return
		}
		h.loc = loc
		h.hasLoc = true
	}
	file, err := backend.Open(ctx, h.loc, h.mode)
	if err != nil {
		h.fail(err)
		return
	}
	h.file = file
}

func (h *Handle) complete(o op, p []byte, n int, err error) {
	switch o.kind {
	case opRead:
		if h.onData != nil {
			h.post(func() { h.onData(p, err) })
		}
	case opWrite:
		if o.done != nil {
			h.post(func() { o.done(n, err) })
		}
	}
}
