package orchestrator

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/httpclient"
	"github.com/bgpkit/broker-updater/internal/scraper"
	"github.com/bgpkit/broker-updater/internal/store/sqlite"
)

func TestRunScrapesAllCollectorsAndRecordsSummary(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/", func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`<html><body><pre>
<a href="updates.20220402.1440.gz">updates.20220402.1440.gz</a>  02-Apr-2022 14:45   10K
</pre></body></html>`))
	})
	srv := httptest.NewServer(mux)
	defer srv.Close()

	client, err := httpclient.New(httpclient.Config{})
	if err != nil {
		t.Fatalf("httpclient.New: %v", err)
	}
	backend, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	defer backend.Close()

	collector := catalog.Collector{ID: "rrc01", Project: catalog.ProjectRIPERIS, URL: srv.URL}
	ctx := context.Background()
	if err := backend.RegisterCollectors(ctx, []catalog.Collector{{ID: collector.ID, Project: collector.Project}}); err != nil {
		t.Fatalf("RegisterCollectors: %v", err)
	}

	s := scraper.New(client, backend, nil, nil)
	o := New(s, nil)

	summary := o.Run(ctx, []catalog.Collector{collector}, catalog.ModeTwoMonths)
	if summary == nil {
		t.Fatal("expected non-nil summary")
	}
}

func TestRunWithNoCollectorsReturnsEmptySummary(t *testing.T) {
	client, err := httpclient.New(httpclient.Config{})
	if err != nil {
		t.Fatalf("httpclient.New: %v", err)
	}
	backend, err := sqlite.New(":memory:")
	if err != nil {
		t.Fatalf("sqlite.New: %v", err)
	}
	defer backend.Close()

	s := scraper.New(client, backend, nil, nil)
	o := New(s, nil)

	summary := o.Run(context.Background(), nil, catalog.ModeLatest)
	attempted, inserted := summary.Totals()
	if attempted != 0 || inserted != 0 {
		t.Errorf("expected zero totals for empty collector set, got attempted=%d inserted=%d", attempted, inserted)
	}
}
