// Package store defines the Catalog Store contract shared by the Postgres
// and SQLite backends: collector registration, dedup-aware chunked inserts,
// month-scoped queries, and the size-verification backfill queries.
package store

import (
	"context"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// ItemColumns is the number of bound parameters a single Item insert uses.
const ItemColumns = 7

// MaxInsertParams is the parameter-count ceiling a single statement should
// stay under, matching the reference implementation's chunk sizing.
const MaxInsertParams = 60_000

// MaxInsertRows is the largest number of items safely bindable in one
// insert statement given ItemColumns.
const MaxInsertRows = MaxInsertParams / ItemColumns

// Backend is the storage contract the scraper, enumerator, and verifier
// depend on. Both the Postgres and SQLite implementations satisfy it
// identically; callers never need to know which is in use.
type Backend interface {
	// RegisterCollectors inserts the given collectors whose ID is not yet
	// present, leaving existing rows unchanged. It does not fail when every
	// collector is already registered.
	RegisterCollectors(ctx context.Context, collectors []catalog.Collector) error

	// CountItemsInMonth returns how many items already exist for the given
	// collector whose ts_start falls within the named month's window.
	CountItemsInMonth(ctx context.Context, collectorID string, month catalog.MonthToken) (int, error)

	// URLsInMonth returns the set of URLs already cataloged for the given
	// collector within the named month's window, for dedup filtering.
	URLsInMonth(ctx context.Context, collectorID string, month catalog.MonthToken) (map[string]struct{}, error)

	// InsertItems inserts items not already present (by URL), chunked to
	// stay under MaxInsertParams, one transaction per chunk. It returns the
	// items actually inserted (a subset of the input).
	InsertItems(ctx context.Context, items []catalog.Item) ([]catalog.Item, error)

	// ScanUnverified returns up to limit items whose exact_size is still
	// unknown (zero), for the size verifier's backfill loop.
	ScanUnverified(ctx context.Context, limit int) ([]catalog.Item, error)

	// ApplyExactSize records the verified byte size for the item
	// identified by url.
	ApplyExactSize(ctx context.Context, url string, exactSize int64) error

	Close() error
}

// Chunk splits items into slices no longer than MaxInsertRows, preserving
// order, so each chunk can be inserted within a single transaction.
func Chunk(items []catalog.Item) [][]catalog.Item {
	if len(items) == 0 {
		return nil
	}
	var chunks [][]catalog.Item
	for start := 0; start < len(items); start += MaxInsertRows {
		end := start + MaxInsertRows
		if end > len(items) {
			end = len(items)
		}
		chunks = append(chunks, items[start:end])
	}
	return chunks
}
