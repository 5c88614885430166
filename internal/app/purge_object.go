package app

import (
	"context"
	"fmt"

	"github.com/Sergey-Kirpa/squid/internal/logging"
	"github.com/Sergey-Kirpa/squid/internal/store"
)

// PurgeObject removes the object stored for url from the index and releases
// its durable copy. In-flight readers fail with the release cause.
type PurgeObject func(ctx context.Context, url string) error

func BuildPurgeObject(objectStore *store.Store) PurgeObject {
	return func(ctx context.Context, url string) error {
		logger := logging.FromContext(ctx)

		key := store.KeyForURL(url)
		if err := objectStore.Release(ctx, key); err != nil {
			return fmt.Errorf("failed to release entry: %w", err)
		}

		logger.Info("purged object", "key", key.String())

		return nil
	}
}
