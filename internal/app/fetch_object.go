package app

import (
	"context"
	"fmt"
	"io"

	"github.com/Sergey-Kirpa/squid/internal/logging"
	"github.com/Sergey-Kirpa/squid/internal/store"
)

const fetchChunkSize = 32 * 1024

// FetchObject streams the object stored for url to w and returns the number
// of bytes written. Reads are served from memory when the object is
// resident and from the swap backend otherwise; a fetch racing an ongoing
// store blocks until the writer appends past the requested range.
type FetchObject func(ctx context.Context, url string, w io.Writer) (int64, error)

func BuildFetchObject(objectStore *store.Store) FetchObject {
	return func(ctx context.Context, url string, w io.Writer) (int64, error) {
		logger := logging.FromContext(ctx)

		key := store.KeyForURL(url)
		client, err := objectStore.OpenClient(ctx, key)
		if err != nil {
			return 0, fmt.Errorf("failed to open client: %w", err)
		}
		defer func() {
			if err := client.Close(context.WithoutCancel(ctx)); err != nil {
				logger.Error("failed to close client", "key", key.String(), "error", err.Error())
			}
		}()

		var written int64
		for {
			p, err := client.Read(ctx, written, fetchChunkSize)
			if err != nil {
				return written, fmt.Errorf("failed to read object: %w", err)
			}
			if len(p) == 0 {
				break
			}
			n, err := w.Write(p)
			written += int64(n)
			if err != nil {
				return written, fmt.Errorf("failed to write object body: %w", err)
			}
		}

		return written, nil
	}
}
