package store

import (
	"context"

	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

// EntryInfo is a point-in-time snapshot of an entry's swap state, taken on
// the event loop so it is internally consistent.
type EntryInfo struct {
	Key          Key
	SwapStatus   SwapStatus
	MemStatus    MemStatus
	Validated    bool
	Uncacheable  bool
	SwapPending  bool
	Completed    bool
	Locator      *swapio.Locator
	RefCount     int
	SwapIOActive bool
	InmemHi      int64
	ObjectLen    int64
	Clients      int
}

func (s *Store) EntryInfo(ctx context.Context, key Key) (EntryInfo, error) {
	var info EntryInfo
	var err error
	if doErr := s.loop.Do(ctx, func() {
		e, ok := s.entries[key]
		if !ok {
			err = ErrNotFound
			return
		}
		info = EntryInfo{
			Key:          e.key,
			SwapStatus:   e.swapStatus,
			MemStatus:    e.memStatus,
			Validated:    e.flags.test(flagValidated),
			Uncacheable:  e.flags.test(flagUncacheable),
			SwapPending:  e.flags.test(flagSwapPending),
			Completed:    e.completed,
			RefCount:     e.guard.refCount(),
			SwapIOActive: e.sio != nil,
			ObjectLen:    e.objectLen,
			Clients:      len(e.clients),
		}
		if e.locator != nil {
			loc := *e.locator
			info.Locator = &loc
		}
		if e.mem != nil {
			info.InmemHi = e.mem.InmemHi()
		}
	}); doErr != nil {
		return EntryInfo{}, doErr
	}
	return info, err
}
