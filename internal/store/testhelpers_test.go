package store

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sergey-Kirpa/squid/internal/swapio"
	"github.com/Sergey-Kirpa/squid/internal/telemetry"
)

// memBackend is an in-memory swap backend with injectable failures. It is
// shared between stores in rebuild tests, so everything is mutex-protected.
type memBackend struct {
	mu    sync.Mutex
	files map[swapio.Locator][]byte
	next  uint64

	failAllocate bool
	failWrites   bool

	// readGate, when non-nil, blocks every ReadAt until the channel is
	// closed. Used to hold a swap-in read in flight.
	readGate chan struct{}

	readOpens int
	released  []swapio.Locator
}

func newMemBackend() *memBackend {
	return &memBackend{files: make(map[swapio.Locator][]byte)}
}

func (b *memBackend) Allocate(ctx context.Context) (swapio.Locator, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.failAllocate {
		return swapio.Locator{}, fmt.Errorf("injected allocate failure")
	}
	loc := swapio.Locator{Dirn: 0, Filen: b.next}
	b.next++
	return loc, nil
}

func (b *memBackend) Open(ctx context.Context, loc swapio.Locator, mode swapio.Mode) (swapio.File, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch mode {
	case swapio.ModeRead:
		if _, ok := b.files[loc]; !ok {
			return nil, fmt.Errorf("no swap file for locator %s", loc.String())
		}
		b.readOpens++
	case swapio.ModeWrite:
		b.files[loc] = nil
	}
	return &memFile{backend: b, loc: loc}, nil
}

func (b *memBackend) Release(loc swapio.Locator) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.files, loc)
	b.released = append(b.released, loc)
}

func (b *memBackend) Resolve(loc swapio.Locator) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	_, ok := b.files[loc]
	return ok
}

func (b *memBackend) setReadGate(gate chan struct{}) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.readGate = gate
}

type memFile struct {
	backend *memBackend
	loc     swapio.Locator
}

func (f *memFile) ReadAt(p []byte, off int64) (int, error) {
	f.backend.mu.Lock()
	gate := f.backend.readGate
	data := f.backend.files[f.loc]
	f.backend.mu.Unlock()

	if gate != nil {
		<-gate
	}

	if off >= int64(len(data)) {
		return 0, io.EOF
	}
	n := copy(p, data[off:])
	if n < len(p) {
		return n, io.EOF
	}
	return n, nil
}

func (f *memFile) WriteAt(p []byte, off int64) (int, error) {
	f.backend.mu.Lock()
	defer f.backend.mu.Unlock()
	if f.backend.failWrites {
		return 0, fmt.Errorf("injected write failure")
	}
	data := f.backend.files[f.loc]
	if need := off + int64(len(p)); need > int64(len(data)) {
		grown := make([]byte, need)
		copy(grown, data)
		data = grown
	}
	copy(data[off:], p)
	f.backend.files[f.loc] = data
	return len(p), nil
}

func (f *memFile) Close() error {
	return nil
}

type fakeSwapLog struct {
	mu      sync.Mutex
	records map[Key]SwapLogRecord
	order   []Key
}

func newFakeSwapLog() *fakeSwapLog {
	return &fakeSwapLog{records: make(map[Key]SwapLogRecord)}
}

func (l *fakeSwapLog) Record(_ context.Context, rec SwapLogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.records[rec.Key]; !ok {
		l.order = append(l.order, rec.Key)
	}
	l.records[rec.Key] = rec
	return nil
}

func (l *fakeSwapLog) Remove(_ context.Context, key Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}
	return nil
}

func (l *fakeSwapLog) List(_ context.Context) ([]SwapLogRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()
	recs := make([]SwapLogRecord, 0, len(l.records))
	for _, k := range l.order {
		recs = append(recs, l.records[k])
	}
	return recs, nil
}

func (l *fakeSwapLog) len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.records)
}

func newTestStore(t *testing.T, cfg Config, backend swapio.Backend, swapLog SwapLog) *Store {
	t.Helper()

	metrics, err := telemetry.NewStoreMetrics()
	require.NoError(t, err)

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))

	s := New(cfg, backend, swapLog, metrics, logger)
	t.Cleanup(s.Close)
	return s
}

// readAll drains the object through the client in fixed-size chunks.
func readAll(t *testing.T, ctx context.Context, c *Client, chunk int) []byte {
	t.Helper()

	var out []byte
	for {
		p, err := c.Read(ctx, int64(len(out)), chunk)
		require.NoError(t, err)
		if len(p) == 0 {
			return out
		}
		out = append(out, p...)
	}
}
