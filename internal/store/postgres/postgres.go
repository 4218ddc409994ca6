// Package postgres implements internal/store.Backend on top of pgx, for
// production deployments where the catalog is queried by the read-side API
// alongside this engine's writes.
package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/store"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
)

var _ store.Backend = (*Backend)(nil)

// Backend is the Postgres-backed catalog store.
type Backend struct {
	pool *pgxpool.Pool
}

const schema = `
CREATE TABLE IF NOT EXISTS collectors (
	id TEXT PRIMARY KEY,
	project TEXT NOT NULL,
	url TEXT NOT NULL
);

CREATE TABLE IF NOT EXISTS items (
	url TEXT PRIMARY KEY,
	collector_id TEXT NOT NULL REFERENCES collectors(id),
	data_type TEXT NOT NULL,
	ts_start TIMESTAMPTZ NOT NULL,
	ts_end TIMESTAMPTZ NOT NULL,
	rough_size BIGINT NOT NULL,
	exact_size BIGINT NOT NULL DEFAULT 0,
	UNIQUE (collector_id, data_type, ts_start)
);

CREATE INDEX IF NOT EXISTS idx_items_collector_month ON items (collector_id, ts_start);
CREATE INDEX IF NOT EXISTS idx_items_unverified ON items (exact_size) WHERE exact_size = 0;
`

// New opens a pgx connection pool against dsn and ensures the catalog
// schema exists.
func New(ctx context.Context, dsn string) (*Backend, error) {
	pool, err := pgxpool.New(ctx, dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres pool: %w", err)
	}

	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}

	if _, err := pool.Exec(ctx, schema); err != nil {
		pool.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Backend{pool: pool}, nil
}

// RegisterCollectors inserts collectors whose ID is not yet present.
func (b *Backend) RegisterCollectors(ctx context.Context, collectors []catalog.Collector) error {
	for _, c := range collectors {
		_, err := b.pool.Exec(ctx, `
			INSERT INTO collectors (id, project, url) VALUES ($1, $2, $3)
			ON CONFLICT (id) DO NOTHING
		`, c.ID, string(c.Project), c.URL)
		if err != nil {
			return fmt.Errorf("register collector %s: %w", c.ID, err)
		}
	}
	return nil
}

// CountItemsInMonth counts items for collectorID whose ts_start falls in
// month's window.
func (b *Backend) CountItemsInMonth(ctx context.Context, collectorID string, month catalog.MonthToken) (int, error) {
	start, end, err := month.Window()
	if err != nil {
		return 0, err
	}
	var count int
	err = b.pool.QueryRow(ctx, `
		SELECT COUNT(*) FROM items WHERE collector_id = $1 AND ts_start >= $2 AND ts_start <= $3
	`, collectorID, start, end).Scan(&count)
	if err != nil {
		return 0, fmt.Errorf("count items in month %s for %s: %w", month, collectorID, err)
	}
	return count, nil
}

// URLsInMonth returns the set of already-cataloged URLs for collectorID
// within month's window.
func (b *Backend) URLsInMonth(ctx context.Context, collectorID string, month catalog.MonthToken) (map[string]struct{}, error) {
	start, end, err := month.Window()
	if err != nil {
		return nil, err
	}
	rows, err := b.pool.Query(ctx, `
		SELECT url FROM items WHERE collector_id = $1 AND ts_start >= $2 AND ts_start <= $3
	`, collectorID, start, end)
	if err != nil {
		return nil, fmt.Errorf("urls in month %s for %s: %w", month, collectorID, err)
	}
	defer rows.Close()

	urls := make(map[string]struct{})
	for rows.Next() {
		var url string
		if err := rows.Scan(&url); err != nil {
			return nil, fmt.Errorf("scan url row: %w", err)
		}
		urls[url] = struct{}{}
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate url rows: %w", err)
	}
	return urls, nil
}

// InsertItems inserts items not already present by URL, chunked and
// transacted per store.MaxInsertRows items.
func (b *Backend) InsertItems(ctx context.Context, items []catalog.Item) ([]catalog.Item, error) {
	var inserted []catalog.Item

	for _, chunk := range store.Chunk(items) {
		tx, err := b.pool.Begin(ctx)
		if err != nil {
			return inserted, fmt.Errorf("begin insert chunk: %w", err)
		}

		for _, it := range chunk {
			var url string
			err := tx.QueryRow(ctx, `
				INSERT INTO items (url, collector_id, data_type, ts_start, ts_end, rough_size, exact_size)
				VALUES ($1, $2, $3, $4, $5, $6, $7)
				ON CONFLICT DO NOTHING
				RETURNING url
			`, it.URL, it.CollectorID, string(it.DataType), it.TSStart, it.TSEnd, it.RoughSize, it.ExactSize).Scan(&url)
			if err != nil {
				if errors.Is(err, pgx.ErrNoRows) {
					continue
				}
				_ = tx.Rollback(ctx)
				return inserted, fmt.Errorf("insert item %s: %w", it.URL, err)
			}
			inserted = append(inserted, it)
		}

		if err := tx.Commit(ctx); err != nil {
			return inserted, fmt.Errorf("commit insert chunk: %w", err)
		}
	}

	return inserted, nil
}

// ScanUnverified returns up to limit items whose exact_size is still zero.
func (b *Backend) ScanUnverified(ctx context.Context, limit int) ([]catalog.Item, error) {
	rows, err := b.pool.Query(ctx, `
		SELECT url, collector_id, data_type, ts_start, ts_end, rough_size, exact_size
		FROM items WHERE exact_size = 0 ORDER BY ts_start DESC LIMIT $1
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("scan unverified items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var it catalog.Item
		var dataType string
		if err := rows.Scan(&it.URL, &it.CollectorID, &dataType, &it.TSStart, &it.TSEnd, &it.RoughSize, &it.ExactSize); err != nil {
			return nil, fmt.Errorf("scan unverified row: %w", err)
		}
		it.DataType = catalog.DataType(dataType)
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unverified rows: %w", err)
	}
	return items, nil
}

// ApplyExactSize records the verified byte size for url.
func (b *Backend) ApplyExactSize(ctx context.Context, url string, exactSize int64) error {
	_, err := b.pool.Exec(ctx, `UPDATE items SET exact_size = $1 WHERE url = $2`, exactSize, url)
	if err != nil {
		return fmt.Errorf("apply exact size for %s: %w", url, err)
	}
	return nil
}

// Close releases the connection pool.
func (b *Backend) Close() error {
	b.pool.Close()
	return nil
}
