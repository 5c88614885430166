package swapio

import (
	"context"
	"fmt"
	"io"
)

// Locator identifies where an object's bytes live on durable storage.
// The store treats locator values as opaque tokens; only the backend that
// allocated a locator may interpret it.
type Locator struct {
	Dirn  int
	Filen uint64
}

func (l Locator) String() string {
	return fmt.Sprintf("%d/%08X", l.Dirn, l.Filen)
}

// File is the backend-level resource a handle performs transfers against.
type File interface {
	io.ReaderAt
	io.WriterAt
	io.Closer
}

type Mode int

const (
	ModeRead Mode = iota + 1
	ModeWrite
)

func (m Mode) String() string {
	switch m {
	case ModeRead:
		return "read"
	case ModeWrite:
		return "write"
	}
	return fmt.Sprintf("Mode(%d)", int(m))
}

// Backend allocates and resolves storage slots. Allocation failure (e.g.
// the cache directory is full) is an environmental error, not a crash.
type Backend interface {
	Allocate(ctx context.Context) (Locator, error)
	Open(ctx context.Context, loc Locator, mode Mode) (File, error)
	// Release discards the slot of a failed or aborted write.
	Release(loc Locator)
	// Resolve reports whether the locator still refers to stored bytes.
	Resolve(loc Locator) bool
}
