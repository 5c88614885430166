// Package swapdir is the filesystem implementation of the swap backend:
// it allocates (dir, file) slots, resolves them to paths in a two-level
// fanout tree and opens the files the swap I/O handles transfer against.
package swapdir

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sync"

	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

type SwapDir struct {
	dirn   int
	root   string
	l1, l2 int

	logger *slog.Logger

	mu        sync.Mutex
	nextFilen uint64
}

func New(dirn int, root string, l1, l2 int, logger *slog.Logger) (*SwapDir, error) {
	if l1 <= 0 || l2 <= 0 {
		return nil, fmt.Errorf("invalid swap directory fanout %dx%d", l1, l2)
	}
	return &SwapDir{
		dirn:   dirn,
		root:   root,
		l1:     l1,
		l2:     l2,
		logger: logger,
	}, nil
}

// Init creates the fanout tree. Safe to run on an already-initialized
// directory.
func (d *SwapDir) Init() error {
	for i := 0; i < d.l1; i++ {
		for j := 0; j < d.l2; j++ {
			dir := filepath.Join(d.root, fmt.Sprintf("%02X", i), fmt.Sprintf("%02X", j))
			if err := os.MkdirAll(dir, 0o755); err != nil {
				return fmt.Errorf("failed to create swap directory %s: %w", dir, err)
			}
		}
	}
	d.logger.Info("initialized swap directory", "root", d.root, "l1", d.l1, "l2", d.l2)
	return nil
}

// Advance moves the allocation watermark past filen. The rebuild calls this
// for every replayed locator so new allocations never collide with
// surviving objects.
func (d *SwapDir) Advance(filen uint64) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if filen >= d.nextFilen {
		d.nextFilen = filen + 1
	}
}

func (d *SwapDir) Allocate(ctx context.Context) (swapio.Locator, error) {
	if err := ctx.Err(); err != nil {
		return swapio.Locator{}, err
	}
	d.mu.Lock()
	filen := d.nextFilen
	d.nextFilen++
	d.mu.Unlock()
	return swapio.Locator{Dirn: d.dirn, Filen: filen}, nil
}

func (d *SwapDir) Open(ctx context.Context, loc swapio.Locator, mode swapio.Mode) (swapio.File, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if loc.Dirn != d.dirn {
		return nil, fmt.Errorf("locator %s does not belong to swap directory %d", loc.String(), d.dirn)
	}
	switch mode {
	case swapio.ModeRead:
		return os.Open(d.path(loc))
	case swapio.ModeWrite:
		path := d.path(loc)
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return nil, fmt.Errorf("failed to create swap subdirectory: %w", err)
		}
		return os.OpenFile(path, os.O_RDWR|os.O_CREATE|os.O_TRUNC, 0o644)
	}
	return nil, fmt.Errorf("invalid open mode %v", mode)
}

func (d *SwapDir) Release(loc swapio.Locator) {
	if err := os.Remove(d.path(loc)); err != nil && !os.IsNotExist(err) {
		d.logger.Error("failed to remove swap file", "locator", loc.String(), "error", err.Error())
	}
}

func (d *SwapDir) Resolve(loc swapio.Locator) bool {
	if loc.Dirn != d.dirn {
		return false
	}
	info, err := os.Stat(d.path(loc))
	return err == nil && info.Mode().IsRegular()
}

func (d *SwapDir) path(loc swapio.Locator) string {
	sub1 := (loc.Filen / uint64(d.l2)) % uint64(d.l1)
	sub2 := loc.Filen % uint64(d.l2)
	return filepath.Join(
		d.root,
		fmt.Sprintf("%02X", sub1),
		fmt.Sprintf("%02X", sub2),
		fmt.Sprintf("%08X", loc.Filen),
	)
}
