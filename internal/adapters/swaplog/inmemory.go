package swaplog

import (
	"context"
	"sync"

	"github.com/Sergey-Kirpa/squid/internal/store"
)

type inMemorySwapLog struct {
	mu      sync.Mutex
	records map[store.Key]store.SwapLogRecord
	order   []store.Key
}

// NewInMemorySwapLog returns a store.SwapLog that lives in process memory.
// Meant for development and tests; the swap log does not survive restarts.
func NewInMemorySwapLog() *inMemorySwapLog {
	return &inMemorySwapLog{
		records: make(map[store.Key]store.SwapLogRecord),
	}
}

func (l *inMemorySwapLog) Record(_ context.Context, rec store.SwapLogRecord) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[rec.Key]; !ok {
		l.order = append(l.order, rec.Key)
	}
	l.records[rec.Key] = rec

	return nil
}

func (l *inMemorySwapLog) Remove(_ context.Context, key store.Key) error {
	l.mu.Lock()
	defer l.mu.Unlock()

	if _, ok := l.records[key]; !ok {
		return nil
	}
	delete(l.records, key)
	for i, k := range l.order {
		if k == key {
			l.order = append(l.order[:i], l.order[i+1:]...)
			break
		}
	}

	return nil
}

func (l *inMemorySwapLog) List(_ context.Context) ([]store.SwapLogRecord, error) {
	l.mu.Lock()
	defer l.mu.Unlock()

	records := make([]store.SwapLogRecord, 0, len(l.records))
	for _, key := range l.order {
		records = append(records, l.records[key])
	}

	return records, nil
}
