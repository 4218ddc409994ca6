package postgres

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// These tests only run against a real Postgres instance. Set
// BROKER_TEST_PG_DSN to a connection string (e.g. a local disposable
// database) to exercise them; they're skipped otherwise.
func testBackend(t *testing.T) *Backend {
	t.Helper()
	dsn := os.Getenv("BROKER_TEST_PG_DSN")
	if dsn == "" {
		t.Skip("Skipping Postgres backend test: BROKER_TEST_PG_DSN not set")
	}
	b, err := New(context.Background(), dsn)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return b
}

func TestInsertItemsAbsorbsNaturalKeyCollision(t *testing.T) {
	b := testBackend(t)
	defer b.Close()
	ctx := context.Background()

	collector := catalog.Collector{ID: "rrc-pg-test", Project: catalog.ProjectRIPERIS, URL: "https://example.org"}
	if err := b.RegisterCollectors(ctx, []catalog.Collector{collector}); err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	tsStart := time.Date(2022, 4, 2, 14, 40, 0, 0, time.UTC)
	first := catalog.Item{
		CollectorID: collector.ID,
		DataType:    catalog.DataTypeUpdate,
		URL:         "https://example.org/updates.20220402.1440.gz",
		TSStart:     tsStart,
		TSEnd:       tsStart.Add(5 * time.Minute),
	}
	// Same natural key (collector_id, data_type, ts_start), different URL.
	// The compound unique constraint must absorb this silently rather than
	// surface as a transport/insert error.
	collision := catalog.Item{
		CollectorID: collector.ID,
		DataType:    catalog.DataTypeUpdate,
		URL:         "https://example.org/updates.20220402.1440-mirror.gz",
		TSStart:     tsStart,
		TSEnd:       tsStart.Add(5 * time.Minute),
	}

	inserted, err := b.InsertItems(ctx, []catalog.Item{first, collision})
	if err != nil {
		t.Fatalf("InsertItems: %v", err)
	}
	if len(inserted) != 1 {
		t.Fatalf("got %d inserted, want 1 (natural-key collision absorbed): %+v", len(inserted), inserted)
	}
	if inserted[0].URL != first.URL {
		t.Errorf("inserted URL = %q, want %q", inserted[0].URL, first.URL)
	}
}

func TestScanUnverifiedOrdersByTSStartDescending(t *testing.T) {
	b := testBackend(t)
	defer b.Close()
	ctx := context.Background()

	collector := catalog.Collector{ID: "rrc-pg-order", Project: catalog.ProjectRIPERIS, URL: "https://example.org"}
	if err := b.RegisterCollectors(ctx, []catalog.Collector{collector}); err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	older := catalog.Item{
		CollectorID: collector.ID,
		DataType:    catalog.DataTypeRIB,
		URL:         "https://example.org/rib.20220401.0000.bz2",
		TSStart:     time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC),
		TSEnd:       time.Date(2022, 4, 1, 0, 0, 0, 0, time.UTC),
	}
	newer := catalog.Item{
		CollectorID: collector.ID,
		DataType:    catalog.DataTypeRIB,
		URL:         "https://example.org/rib.20220402.0000.bz2",
		TSStart:     time.Date(2022, 4, 2, 0, 0, 0, 0, time.UTC),
		TSEnd:       time.Date(2022, 4, 2, 0, 0, 0, 0, time.UTC),
	}
	if _, err := b.InsertItems(ctx, []catalog.Item{older, newer}); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}

	items, err := b.ScanUnverified(ctx, 10)
	if err != nil {
		t.Fatalf("ScanUnverified: %v", err)
	}
	if len(items) < 2 {
		t.Fatalf("got %d items, want at least 2", len(items))
	}
	if !items[0].TSStart.After(items[1].TSStart) {
		t.Errorf("items not ordered ts_start descending: %v before %v", items[0].TSStart, items[1].TSStart)
	}
}
