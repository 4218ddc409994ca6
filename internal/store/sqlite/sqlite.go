// Package sqlite implements internal/store.Backend on top of
// modernc.org/sqlite, a CGO-free driver suited to tests and small bootstrap
// deployments.
package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/store"
	_ "modernc.org/sqlite"
)

var _ store.Backend = (*Backend)(nil)

// Backend is the SQLite-backed catalog store. Timestamps are stored as
// Unix-nanosecond integers rather than text: Go's RFC3339Nano formatting
// drops trailing zero fractional digits, which breaks lexical ordering of
// TEXT timestamp columns.
type Backend struct {
	db *sql.DB
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
	ts_start INTEGER NOT NULL,
	ts_end INTEGER NOT NULL,
	rough_size INTEGER NOT NULL,
	exact_size INTEGER NOT NULL DEFAULT 0,
	UNIQUE (collector_id, data_type, ts_start)
);

CREATE INDEX IF NOT EXISTS idx_items_collector_month ON items (collector_id, ts_start);
CREATE INDEX IF NOT EXISTS idx_items_unverified ON items (exact_size);
`

// New opens dsn (a file path or ":memory:") and ensures the catalog schema
// exists.
func New(dsn string) (*Backend, error) {
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite %s: %w", dsn, err)
	}
	// One connection only: every connection to ":memory:" opens its own
	// empty database, so a second pooled connection would not see the schema.
	db.SetMaxOpenConns(1)

	if _, err := db.Exec(schema); err != nil {
		_ = db.Close()
		return nil, fmt.Errorf("create catalog schema: %w", err)
	}

	return &Backend{db: db}, nil
}

// RegisterCollectors inserts collectors whose ID is not yet present.
func (b *Backend) RegisterCollectors(ctx context.Context, collectors []catalog.Collector) error {
	for _, c := range collectors {
		_, err := b.db.ExecContext(ctx, `
			INSERT INTO collectors (id, project, url) VALUES (?, ?, ?)
			ON CONFLICT(id) DO NOTHING
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
	err = b.db.QueryRowContext(ctx, `
		SELECT COUNT(*) FROM items WHERE collector_id = ? AND ts_start >= ? AND ts_start <= ?
	`, collectorID, start.UnixNano(), end.UnixNano()).Scan(&count)
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
	rows, err := b.db.QueryContext(ctx, `
		SELECT url FROM items WHERE collector_id = ? AND ts_start >= ? AND ts_start <= ?
	`, collectorID, start.UnixNano(), end.UnixNano())
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
		tx, err := b.db.BeginTx(ctx, nil)
		if err != nil {
			return inserted, fmt.Errorf("begin insert chunk: %w", err)
		}

		for _, it := range chunk {
			res, err := tx.ExecContext(ctx, `
				INSERT OR IGNORE INTO items (url, collector_id, data_type, ts_start, ts_end, rough_size, exact_size)
				VALUES (?, ?, ?, ?, ?, ?, ?)
			`, it.URL, it.CollectorID, string(it.DataType), it.TSStart.UnixNano(), it.TSEnd.UnixNano(), it.RoughSize, it.ExactSize)
			if err != nil {
				_ = tx.Rollback()
				return inserted, fmt.Errorf("insert item %s: %w", it.URL, err)
			}
			n, err := res.RowsAffected()
			if err != nil {
				_ = tx.Rollback()
				return inserted, fmt.Errorf("rows affected for %s: %w", it.URL, err)
			}
			if n > 0 {
				inserted = append(inserted, it)
			}
		}

		if err := tx.Commit(); err != nil {
			return inserted, fmt.Errorf("commit insert chunk: %w", err)
		}
	}

	return inserted, nil
}

// ScanUnverified returns up to limit items whose exact_size is still zero.
func (b *Backend) ScanUnverified(ctx context.Context, limit int) ([]catalog.Item, error) {
	rows, err := b.db.QueryContext(ctx, `
		SELECT url, collector_id, data_type, ts_start, ts_end, rough_size, exact_size
		FROM items WHERE exact_size = 0 ORDER BY ts_start DESC LIMIT ?
	`, limit)
	if err != nil {
		return nil, fmt.Errorf("scan unverified items: %w", err)
	}
	defer rows.Close()

	var items []catalog.Item
	for rows.Next() {
		var it catalog.Item
		var dataType string
		var tsStartNano, tsEndNano int64
		if err := rows.Scan(&it.URL, &it.CollectorID, &dataType, &tsStartNano, &tsEndNano, &it.RoughSize, &it.ExactSize); err != nil {
			return nil, fmt.Errorf("scan unverified row: %w", err)
		}
		it.DataType = catalog.DataType(dataType)
		it.TSStart = time.Unix(0, tsStartNano).UTC()
		it.TSEnd = time.Unix(0, tsEndNano).UTC()
		items = append(items, it)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate unverified rows: %w", err)
	}
	return items, nil
}

// ApplyExactSize records the verified byte size for url.
func (b *Backend) ApplyExactSize(ctx context.Context, url string, exactSize int64) error {
	_, err := b.db.ExecContext(ctx, `UPDATE items SET exact_size = ? WHERE url = ?`, exactSize, url)
	if err != nil {
		return fmt.Errorf("apply exact size for %s: %w", url, err)
	}
	return nil
}

// Close closes the underlying database handle.
func (b *Backend) Close() error {
	return b.db.Close()
}
