package store

import "fmt"

// SwapStatus tracks whether a durable copy of the object exists.
type SwapStatus uint8

const (
	// SwapNone: no durable copy exists.
	SwapNone SwapStatus = iota
	// SwapWriting: a write is in progress or the entry intends to persist.
	SwapWriting
	// SwapDone: the durable copy is complete and trustworthy. Terminal for
	// a given locator; updated content needs a fresh NONE -> WRITING cycle.
	SwapDone
)

func (s SwapStatus) String() string {
	switch s {
	case SwapNone:
		return "NONE"
	case SwapWriting:
		return "WRITING"
	case SwapDone:
		return "DONE"
	}
	return fmt.Sprintf("SwapStatus(%d)", uint8(s))
}

type MemStatus uint8

const (
	NotInMemory MemStatus = iota
	InMemory
)

func (s MemStatus) String() string {
	switch s {
	case NotInMemory:
		return "NOT_IN_MEMORY"
	case InMemory:
		return "IN_MEMORY"
	}
	return fmt.Sprintf("MemStatus(%d)", uint8(s))
}

type entryFlags uint16

const (
	// flagValidated: metadata confirmed consistent (fresh entries at
	// creation, rebuilt entries once their locator resolves). Entries
	// without it must not be swapped in.
	flagValidated entryFlags = 1 << iota
	// flagSwapPending: a swap-out handle is open for this entry.
	flagSwapPending
	// flagUncacheable: swap-out failed or was refused; never retried for
	// this entry.
	flagUncacheable
)

func (f entryFlags) test(bit entryFlags) bool { return f&bit != 0 }
func (f *entryFlags) set(bit entryFlags)      { *f |= bit }
func (f *entryFlags) clear(bit entryFlags)    { *f &^= bit }
