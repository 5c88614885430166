// Package store is the storage layer of the caching intermediary: it holds
// HTTP response bodies in memory or on the swap backend and streams them to
// any number of concurrent readers, possibly while the object is still
// arriving from upstream or being written to disk.
package store

import (
	"context"
	"log/slog"
	"time"

	"github.com/jellydator/ttlcache/v3"
	"golang.org/x/time/rate"

	"github.com/Sergey-Kirpa/squid/internal/reporting"
	"github.com/Sergey-Kirpa/squid/internal/swapio"
	"github.com/Sergey-Kirpa/squid/internal/telemetry"
)

// SwapLogRecord describes one durable copy for the startup rebuild.
type SwapLogRecord struct {
	Key       Key
	Locator   swapio.Locator
	Size      int64
	SwappedAt time.Time
}

// SwapLog is the durable index of swapped-out objects. Implementations live
// in internal/adapters/swaplog.
type SwapLog interface {
	Record(ctx context.Context, rec SwapLogRecord) error
	Remove(ctx context.Context, key Key) error
	List(ctx context.Context) ([]SwapLogRecord, error)
}

type Config struct {
	// SwapChunkSize is the write granularity towards the swap backend.
	SwapChunkSize int
	// MaxObjectSize: larger objects stay memory-only. 0 disables the limit.
	MaxObjectSize int64
	// HotMemoryTTL: how long the MemObject of a fully swapped-out idle
	// entry is retained so re-reads skip the swap-in path.
	HotMemoryTTL time.Duration
	// SwapOutRate / SwapOutBurst pace swap-out starts so a burst of
	// cacheable responses does not saturate the backend. Zero means
	// unlimited.
	SwapOutRate  rate.Limit
	SwapOutBurst int
}

func (c Config) withDefaults() Config {
	if c.SwapChunkSize <= 0 {
		c.SwapChunkSize = 4096
	}
	if c.HotMemoryTTL <= 0 {
		c.HotMemoryTTL = time.Minute
	}
	if c.SwapOutRate <= 0 {
		c.SwapOutRate = rate.Inf
	}
	if c.SwapOutBurst <= 0 {
		c.SwapOutBurst = 1
	}
	return c
}

type Store struct {
	cfg     Config
	loop    *EventLoop
	backend swapio.Backend
	swapLog SwapLog
	metrics *telemetry.StoreMetrics
	logger  *slog.Logger
	limiter *rate.Limiter

	ctx    context.Context
	cancel context.CancelFunc

	// entries and hot are touched on the event loop only.
	entries map[Key]*Entry
	hot     *ttlcache.Cache[string, *MemObject]
}

func New(cfg Config, backend swapio.Backend, swapLog SwapLog, metrics *telemetry.StoreMetrics, logger *slog.Logger) *Store {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())

	hot := ttlcache.New[string, *MemObject](
		ttlcache.WithTTL[string, *MemObject](cfg.HotMemoryTTL),
		ttlcache.WithDisableTouchOnHit[string, *MemObject](),
	)
	go hot.Start()

	return &Store{
		cfg:     cfg,
		loop:    NewEventLoop(),
		backend: backend,
		swapLog: swapLog,
		metrics: metrics,
		logger:  logger,
		limiter: rate.NewLimiter(cfg.SwapOutRate, cfg.SwapOutBurst),
		ctx:     ctx,
		cancel:  cancel,
		entries: make(map[Key]*Entry),
		hot:     hot,
	}
}

// Close drains the event loop and stops background work. Outstanding disk
// writes are not torn down mid-operation.
func (s *Store) Close() {
	s.hot.Stop()
	s.loop.Stop()
	s.cancel()
}

// CreateEntry begins a new cacheable object for key. An existing entry for
// the same key is released first: a DONE locator is terminal, so updated
// content always gets a fresh NONE -> WRITING cycle.
func (s *Store) CreateEntry(ctx context.Context, key Key) (*Entry, error) {
	var e *Entry
	if err := s.loop.Do(ctx, func() {
		if old, ok := s.entries[key]; ok {
			old.release(ErrReleased)
		}
		e = s.newEntry(key)
		e.mem = newMemObject()
		e.memStatus = InMemory
		e.flags.set(flagValidated)
	}); err != nil {
		return nil, err
	}
	return e, nil
}

// OpenClient opens a read session against the entry for key.
func (s *Store) OpenClient(ctx context.Context, key Key) (*Client, error) {
	var c *Client
	var err error
	if doErr := s.loop.Do(ctx, func() {
		e, ok := s.entries[key]
		if !ok || !e.guard.live() {
			err = ErrNotFound
			return
		}
		c = &Client{entry: e, store: s}
		e.guard.lock()
		e.clients = append(e.clients, c)
	}); doErr != nil {
		return nil, doErr
	}
	if err != nil {
		return nil, err
	}
	return c, nil
}

// Release discards the object for key, including its durable copy.
func (s *Store) Release(ctx context.Context, key Key) error {
	var err error
	if doErr := s.loop.Do(ctx, func() {
		e, ok := s.entries[key]
		if !ok {
			err = ErrNotFound
			return
		}
		e.release(ErrReleased)
	}); doErr != nil {
		return doErr
	}
	return err
}

// EvictMemory drops the in-memory copy of a fully swapped-out object,
// including its hot-cache retention, forcing the next read through the
// swap-in path. Reads of incomplete or memory-only objects are refused.
func (s *Store) EvictMemory(ctx context.Context, key Key) error {
	var err error
	if doErr := s.loop.Do(ctx, func() {
		e, ok := s.entries[key]
		if !ok || !e.guard.live() {
			err = ErrNotFound
			return
		}
		if e.swapStatus != SwapDone || !e.completed {
			err = ErrUnavailable
			return
		}
		s.hot.Delete(key.String())
		e.mem = nil
		e.memStatus = NotInMemory
	}); doErr != nil {
		return doErr
	}
	return err
}

// Rebuild replays the swap log after a restart: each record becomes a DONE
// entry that stays unvalidated (and therefore not swappable-in) until its
// locator is confirmed to still resolve. Returns the number of validated
// entries.
func (s *Store) Rebuild(ctx context.Context) (int, error) {
	recs, err := s.swapLog.List(ctx)
	if err != nil {
		return 0, err
	}

	// First pass: recreate the entries unvalidated. They already point at
	// their durable copy but stay in WRITING, so nothing swaps them in
	// before verification; readers arriving early are held pending.
	rebuilt := make([]*Entry, 0, len(recs))
	for _, rec := range recs {
		rec := rec
		var e *Entry
		if err := s.loop.Do(ctx, func() {
			if _, exists := s.entries[rec.Key]; exists {
				return
			}
			e = s.newEntry(rec.Key)
			e.completed = true
			e.objectLen = rec.Size
			loc := rec.Locator
			e.locator = &loc
			e.swapStatus = SwapWriting
		}); err != nil {
			return 0, err
		}
		if e != nil {
			rebuilt = append(rebuilt, e)
		}
	}

	// Second pass: verify each locator still resolves, then flip the entry
	// to DONE and wake any readers that were waiting on validation.
	validated := 0
	for _, e := range rebuilt {
		ok := s.backend.Resolve(*e.locator)

		if err := s.loop.Do(ctx, func() {
			if !e.guard.live() {
				return
			}
			if ok {
				e.flags.set(flagValidated)
				e.swapStatus = SwapDone
				e.checkInvariants()
				e.kickReads()
				validated++
				return
			}
			e.release(ErrUnavailable)
		}); err != nil {
			return validated, err
		}

		if !ok {
			s.logger.Warn("dropping unresolvable swap log record",
				"key", e.key.String(), "locator", e.locator.String())
			if err := s.swapLog.Remove(ctx, e.key); err != nil {
				s.logger.Error("failed to prune swap log", "key", e.key.String(), "error", err.Error())
			}
		}
	}

	s.logger.Info("swap log rebuild finished", "records", len(recs), "validated", validated)
	return validated, nil
}

// newEntry indexes a fresh entry; the index holds one reference. Runs on
// the event loop.
func (s *Store) newEntry(key Key) *Entry {
	e := &Entry{
		key:       key,
		store:     s,
		objectLen: -1,
	}
	e.guard.lock() // the index reference
	s.entries[key] = e
	return e
}

func (s *Store) unindex(e *Entry) {
	if s.entries[e.key] == e {
		delete(s.entries, e.key)
	}
}

func (s *Store) hotPut(key Key, mem *MemObject) {
	s.hot.Set(key.String(), mem, ttlcache.DefaultTTL)
}

// hotGet reattaches a hot-cached MemObject to the entry, if one is still
// retained.
func (s *Store) hotGet(e *Entry) {
	item := s.hot.Get(e.key.String())
	if item == nil {
		return
	}
	s.hot.Delete(e.key.String())
	e.mem = item.Value()
	e.memStatus = InMemory
}

func (s *Store) recordSwapLog(e *Entry) {
	rec := SwapLogRecord{
		Key:       e.key,
		Locator:   *e.locator,
		Size:      e.objectLen,
		SwappedAt: time.Now(),
	}
	go func() {
		if err := s.swapLog.Record(s.ctx, rec); err != nil {
			s.logger.Error("failed to record swap log entry",
				"key", rec.Key.String(), "error", err.Error())
			s.reportError(err)
		}
	}()
}

func (s *Store) removeSwapLog(key Key) {
	go func() {
		if err := s.swapLog.Remove(s.ctx, key); err != nil {
			s.logger.Error("failed to remove swap log entry",
				"key", key.String(), "error", err.Error())
		}
	}()
}

func (s *Store) reportError(err error) {
	reporting.Report(s.ctx, err)
}
