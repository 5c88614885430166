package swaplog

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	"github.com/lib/pq"

	"github.com/Sergey-Kirpa/squid/internal/store"
	"github.com/Sergey-Kirpa/squid/internal/swapio"
)

type swapLogRow struct {
	ID         string    `db:"id"`
	ContentKey string    `db:"content_key"`
	Dirn       int       `db:"dirn"`
	Filen      int64     `db:"filen"`
	Size       int64     `db:"size"`
	SwappedAt  time.Time `db:"swapped_at"`
}

type postgresSwapLog struct {
	db     *sqlx.DB
	schema string
}

// NewPostgresSwapLog returns a store.SwapLog backed by the swap_log table in
// the given schema.
func NewPostgresSwapLog(db *sqlx.DB, schema string) *postgresSwapLog {
	return &postgresSwapLog{db: db, schema: schema}
}

func (p *postgresSwapLog) table() string {
	return fmt.Sprintf("%s.swap_log", pq.QuoteIdentifier(p.schema))
}

func (p *postgresSwapLog) Record(ctx context.Context, rec store.SwapLogRecord) error {
	query := fmt.Sprintf(`
		INSERT INTO %s (id, content_key, dirn, filen, size, swapped_at)
		VALUES (:id, :content_key, :dirn, :filen, :size, :swapped_at)
		ON CONFLICT (content_key) DO UPDATE
		SET dirn = EXCLUDED.dirn,
		    filen = EXCLUDED.filen,
		    size = EXCLUDED.size,
		    swapped_at = EXCLUDED.swapped_at`, p.table())

	_, err := p.db.NamedExecContext(ctx, query, swapLogRow{
		ID:         uuid.New().String(),
		ContentKey: rec.Key.String(),
		Dirn:       rec.Locator.Dirn,
		Filen:      int64(rec.Locator.Filen),
		Size:       rec.Size,
		SwappedAt:  rec.SwappedAt.UTC(),
	})
	if err != nil {
		return fmt.Errorf("swaplog: failed to record entry: %w", err)
	}

	return nil
}

func (p *postgresSwapLog) Remove(ctx context.Context, key store.Key) error {
	query := fmt.Sprintf("DELETE FROM %s WHERE content_key = $1", p.table())

	_, err := p.db.ExecContext(ctx, query, key.String())
	if err != nil {
		return fmt.Errorf("swaplog: failed to remove entry: %w", err)
	}

	return nil
}

func (p *postgresSwapLog) List(ctx context.Context) ([]store.SwapLogRecord, error) {
	query := fmt.Sprintf(
		"SELECT id, content_key, dirn, filen, size, swapped_at FROM %s ORDER BY swapped_at",
		p.table(),
	)

	var rows []swapLogRow
	err := p.db.SelectContext(ctx, &rows, query)
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("swaplog: failed to list entries: %w", err)
	}

	records := make([]store.SwapLogRecord, 0, len(rows))
	for _, row := range rows {
		key, err := store.ParseKey(row.ContentKey)
		if err != nil {
			return nil, fmt.Errorf("swaplog: bad content key %q: %w", row.ContentKey, err)
		}
		records = append(records, store.SwapLogRecord{
			Key:       key,
			Locator:   swapio.Locator{Dirn: row.Dirn, Filen: uint64(row.Filen)},
			Size:      row.Size,
			SwappedAt: row.SwappedAt,
		})
	}

	return records, nil
}
