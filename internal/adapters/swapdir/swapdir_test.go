package swapdir

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

func newTestSwapDir(t *testing.T, l1, l2 int) *SwapDir {
	t.Helper()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	d, err := New(0, t.TempDir(), l1, l2, logger)
	require.NoError(t, err)
	return d
}

func TestNewValidatesFanout(t *testing.T) {
	t.Parallel()

	logger := slog.New(slog.NewJSONHandler(io.Discard, nil))
	_, err := New(0, t.TempDir(), 0, 256, logger)
	require.Error(t, err)
	_, err = New(0, t.TempDir(), 16, -1, logger)
	require.Error(t, err)
}

func TestInitCreatesFanoutTree(t *testing.T) {
	t.Parallel()

	d := newTestSwapDir(t, 4, 4)
	require.NoError(t, d.Init())

	for i := 0; i < 4; i++ {
		for j := 0; j < 4; j++ {
			dir := filepath.Join(d.root, fmt.Sprintf("%02X", i), fmt.Sprintf("%02X", j))
			info, err := os.Stat(dir)
			require.NoError(t, err)
			require.True(t, info.IsDir())
		}
	}

	// Idempotent.
	require.NoError(t, d.Init())
}

func TestAllocateIsSequential(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestSwapDir(t, 16, 256)

	for want := uint64(0); want < 5; want++ {
		loc, err := d.Allocate(ctx)
		require.NoError(t, err)
		require.Equal(t, swapio.Locator{Dirn: 0, Filen: want}, loc)
	}
}

func TestAdvanceMovesWatermark(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestSwapDir(t, 16, 256)

	d.Advance(41)
	d.Advance(7) // never moves backwards

	loc, err := d.Allocate(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(42), loc.Filen)
}

func TestWriteReadReleaseCycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestSwapDir(t, 4, 8)

	loc, err := d.Allocate(ctx)
	require.NoError(t, err)
	require.False(t, d.Resolve(loc))

	// Write without a prior Init; the parent directory is created on demand.
	f, err := d.Open(ctx, loc, swapio.ModeWrite)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("swapped bytes"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	require.True(t, d.Resolve(loc))

	r, err := d.Open(ctx, loc, swapio.ModeRead)
	require.NoError(t, err)
	buf := make([]byte, 13)
	n, err := r.ReadAt(buf, 0)
	require.NoError(t, err)
	require.Equal(t, 13, n)
	require.Equal(t, []byte("swapped bytes"), buf)
	require.NoError(t, r.Close())

	d.Release(loc)
	require.False(t, d.Resolve(loc))
	// Releasing a missing slot is not an error.
	d.Release(loc)

	_, err = d.Open(ctx, loc, swapio.ModeRead)
	require.Error(t, err)
}

func TestOpenRejectsForeignLocator(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestSwapDir(t, 4, 8)

	foreign := swapio.Locator{Dirn: 3, Filen: 0}
	_, err := d.Open(ctx, foreign, swapio.ModeRead)
	require.Error(t, err)
	require.False(t, d.Resolve(foreign))
}

func TestPathFanout(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	d := newTestSwapDir(t, 4, 8)

	loc := swapio.Locator{Dirn: 0, Filen: 0x2B} // (43/8)%4 = 1, 43%8 = 3 -> 01/03
	f, err := d.Open(ctx, loc, swapio.ModeWrite)
	require.NoError(t, err)
	_, err = f.WriteAt([]byte("x"), 0)
	require.NoError(t, err)
	require.NoError(t, f.Close())

	want := filepath.Join(d.root, "01", "03", "0000002B")
	_, err = os.Stat(want)
	require.NoError(t, err)
}
