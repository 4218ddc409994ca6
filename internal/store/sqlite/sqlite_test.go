package sqlite

import (
	"context"
	"testing"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

func newTestBackend(t *testing.T) *Backend {
	t.Helper()
	b, err := New(":memory:")
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { _ = b.Close() })
	return b
}

func TestRegisterAndInsertRoundTrip(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	err := b.RegisterCollectors(ctx, []catalog.Collector{
		{ID: "rrc00", Project: catalog.ProjectRIPERIS, URL: "http://data.ris.ripe.net/rrc00/"},
	})
	if err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	item := catalog.Item{
		CollectorID: "rrc00",
		DataType:    catalog.DataTypeUpdate,
		URL:         "http://data.ris.ripe.net/rrc00/2022.10/updates.20221001.0000.gz",
		TSStart:     time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC),
		TSEnd:       time.Date(2022, 10, 1, 0, 5, 0, 0, time.UTC),
		RoughSize:   1000,
	}

	inserted, err := b.InsertItems(ctx, []catalog.Item{item})
	if err != nil {
		t.Fatalf("InsertItems: %v", err)
	}
	if len(inserted) != 1 {
		t.Fatalf("got %d inserted, want 1", len(inserted))
	}

	count, err := b.CountItemsInMonth(ctx, "rrc00", catalog.MonthToken("2022.10"))
	if err != nil {
		t.Fatalf("CountItemsInMonth: %v", err)
	}
	if count != 1 {
		t.Errorf("count = %d, want 1", count)
	}

	urls, err := b.URLsInMonth(ctx, "rrc00", catalog.MonthToken("2022.10"))
	if err != nil {
		t.Fatalf("URLsInMonth: %v", err)
	}
	if _, ok := urls[item.URL]; !ok {
		t.Errorf("URLsInMonth missing %s: %v", item.URL, urls)
	}
}

func TestInsertItemsDedupsSecondCall(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.RegisterCollectors(ctx, []catalog.Collector{{ID: "route-views2", Project: catalog.ProjectRouteViews}}); err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	item := catalog.Item{
		CollectorID: "route-views2",
		DataType:    catalog.DataTypeRIB,
		URL:         "http://archive.routeviews.org/bgpdata/2022.10/RIBS/rib.20221001.0000.bz2",
		TSStart:     time.Date(2022, 10, 1, 0, 0, 0, 0, time.UTC),
		TSEnd:       time.Date(2022, 10, 1, 2, 0, 0, 0, time.UTC),
		RoughSize:   500,
	}

	first, err := b.InsertItems(ctx, []catalog.Item{item})
	if err != nil {
		t.Fatalf("first InsertItems: %v", err)
	}
	if len(first) != 1 {
		t.Fatalf("first insert count = %d, want 1", len(first))
	}

	second, err := b.InsertItems(ctx, []catalog.Item{item})
	if err != nil {
		t.Fatalf("second InsertItems: %v", err)
	}
	if len(second) != 0 {
		t.Fatalf("second insert count = %d, want 0 (dedup)", len(second))
	}
}

func TestInsertItemsAbsorbsNaturalKeyCollision(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.RegisterCollectors(ctx, []catalog.Collector{{ID: "rrc00", Project: catalog.ProjectRIPERIS}}); err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	tsStart := time.Date(2022, 4, 2, 14, 40, 0, 0, time.UTC)
	first := catalog.Item{
		CollectorID: "rrc00",
		DataType:    catalog.DataTypeUpdate,
		URL:         "http://data.ris.ripe.net/rrc00/2022.04/updates.20220402.1440.gz",
		TSStart:     tsStart,
		TSEnd:       tsStart.Add(5 * time.Minute),
	}
	// Same natural key (collector_id, data_type, ts_start), different URL:
	// the compound unique constraint must absorb this silently.
	collision := catalog.Item{
		CollectorID: "rrc00",
		DataType:    catalog.DataTypeUpdate,
		URL:         "http://data.ris.ripe.net/rrc00/2022.04/updates.20220402.1440-mirror.gz",
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

func TestScanUnverifiedAndApplyExactSize(t *testing.T) {
	ctx := context.Background()
	b := newTestBackend(t)

	if err := b.RegisterCollectors(ctx, []catalog.Collector{{ID: "rrc00", Project: catalog.ProjectRIPERIS}}); err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	items := []catalog.Item{
		{CollectorID: "rrc00", DataType: catalog.DataTypeUpdate, URL: "http://example.org/a.gz", TSStart: time.Unix(1, 0), TSEnd: time.Unix(2, 0)},
		{CollectorID: "rrc00", DataType: catalog.DataTypeUpdate, URL: "http://example.org/b.gz", TSStart: time.Unix(3, 0), TSEnd: time.Unix(4, 0)},
	}
	if _, err := b.InsertItems(ctx, items); err != nil {
		t.Fatalf("InsertItems: %v", err)
	}

	unverified, err := b.ScanUnverified(ctx, 10)
	if err != nil {
		t.Fatalf("ScanUnverified: %v", err)
	}
	if len(unverified) != 2 {
		t.Fatalf("got %d unverified, want 2", len(unverified))
	}

	if err := b.ApplyExactSize(ctx, items[0].URL, 1234); err != nil {
		t.Fatalf("ApplyExactSize: %v", err)
	}

	remaining, err := b.ScanUnverified(ctx, 10)
	if err != nil {
		t.Fatalf("ScanUnverified after apply: %v", err)
	}
	if len(remaining) != 1 {
		t.Fatalf("got %d remaining unverified, want 1", len(remaining))
	}
	if remaining[0].URL != items[1].URL {
		t.Errorf("remaining url = %s, want %s", remaining[0].URL, items[1].URL)
	}
}
