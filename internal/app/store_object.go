package app

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"

	"github.com/Sergey-Kirpa/squid/internal/logging"
	"github.com/Sergey-Kirpa/squid/internal/store"
)

const storeChunkSize = 32 * 1024

// StoreObject reads the object body for url from r into the store and
// returns the content key and object length. The entry becomes readable as
// soon as the first chunk is appended; readers arriving mid-write are woken
// by each append.
type StoreObject func(ctx context.Context, url string, r io.Reader) (store.Key, int64, error)

func BuildStoreObject(objectStore *store.Store) StoreObject {
	return func(ctx context.Context, url string, r io.Reader) (store.Key, int64, error) {
		logger := logging.FromContext(ctx)

		key := store.KeyForURL(url)
		entry, err := objectStore.CreateEntry(ctx, key)
		if err != nil {
			return key, 0, fmt.Errorf("failed to create entry: %w", err)
		}

		var total int64
		buf := make([]byte, storeChunkSize)
		for {
			n, readErr := r.Read(buf)
			if n > 0 {
				if err := entry.Append(ctx, buf[:n]); err != nil {
					abortEntry(ctx, logger, entry)
					return key, total, fmt.Errorf("failed to append to entry: %w", err)
				}
				total += int64(n)
			}
			if readErr == io.EOF {
				break
			}
			if readErr != nil {
				abortEntry(ctx, logger, entry)
				return key, total, fmt.Errorf("failed to read object body: %w", readErr)
			}
		}

		if err := entry.Complete(ctx); err != nil {
			abortEntry(ctx, logger, entry)
			return key, total, fmt.Errorf("failed to complete entry: %w", err)
		}

		logger.Info("stored object", "key", key.String(), "size", total)

		return key, total, nil
	}
}

func abortEntry(ctx context.Context, logger *slog.Logger, entry *store.Entry) {
	if err := entry.Abort(ctx); err != nil && !errors.Is(err, store.ErrReleased) {
		logger.Error("failed to abort entry", "key", entry.Key().String(), "error", err.Error())
	}
}
