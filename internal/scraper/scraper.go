// Package scraper implements the Collector Scraper: per-collector drivers
// for RouteViews and RIPE RIS that fetch a month's listing, parse it,
// build canonical catalog items, apply the mode-appropriate dedup filter,
// persist via the store, and hand the inserted set to the Notifier.
package scraper

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"regexp"
	"runtime"
	"strings"
	"sync"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/enumerate"
	"github.com/bgpkit/broker-updater/internal/httpclient"
	"github.com/bgpkit/broker-updater/internal/listing"
	"github.com/bgpkit/broker-updater/internal/metrics"
	"github.com/bgpkit/broker-updater/internal/notify"
	"github.com/bgpkit/broker-updater/internal/store"
)

// monthFanout bounds how many (month, branch) scrapes run concurrently per
// collector.
const monthFanout = 100

var timestampPattern = regexp.MustCompile(`(\d{8}\.\d{4})\.(?:bz2|gz)`)

// Scraper drives the scrape of a single collector across its enumerated
// months. HTML parsing runs on a bounded semaphore sized to half the
// available CPUs, so CPU-bound parsing never starves the scrape/fetch
// goroutines.
type Scraper struct {
	client   *httpclient.Client
	backend  store.Backend
	notifier notify.Notifier
	logger   *slog.Logger
	parseSem *semaphore.Weighted

	// OnMonthComplete, if set, is invoked once per (collector, month) scrape
	// with the attempted and inserted counts, letting a caller (the
	// orchestrator) build a run summary without the scraper owning one.
	OnMonthComplete func(collectorID string, month catalog.MonthToken, attempted, inserted int)
}

// New creates a Scraper. notifier may be nil (no notification sink).
// logger defaults to slog.Default() when nil.
func New(client *httpclient.Client, backend store.Backend, notifier notify.Notifier, logger *slog.Logger) *Scraper {
	if logger == nil {
		logger = slog.Default()
	}
	parseWorkers := runtime.NumCPU() / 2
	if parseWorkers < 1 {
		parseWorkers = 1
	}
	return &Scraper{
		client:   client,
		backend:  backend,
		notifier: notifier,
		logger:   logger,
		parseSem: semaphore.NewWeighted(int64(parseWorkers)),
	}
}

// ScrapeCollector dispatches to the RouteViews or RIPE RIS variant based on
// collector.Project. An unknown project returns an error after the months
// have been enumerated; config.Load already rejects unknown projects.
func (s *Scraper) ScrapeCollector(ctx context.Context, collector catalog.Collector, mode catalog.CrawlMode) error {
	months, err := enumerate.Enumerate(ctx, s.client, s.backend, collector, mode, time.Now())
	if err != nil {
		return fmt.Errorf("enumerate months for %s: %w", collector.ID, err)
	}
	s.logger.Info("enumerated months", "collector", collector.ID, "count", len(months))

	switch collector.Project {
	case catalog.ProjectRouteViews:
		s.scrapeRouteViews(ctx, collector, months, mode)
	case catalog.ProjectRIPERIS:
		s.scrapeRIPERIS(ctx, collector, months, mode)
	default:
		return fmt.Errorf("unknown project %q for collector %s", collector.Project, collector.ID)
	}
	return nil
}

// fetch issues a GET against url and returns its body. Callers log and
// skip on error rather than propagating it, so one month's transport
// failure never aborts sibling months.
func (s *Scraper) fetch(ctx context.Context, url string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return "", fmt.Errorf("build request for %s: %w", url, err)
	}
	start := time.Now()
	resp, err := s.client.Do(ctx, req)
	metrics.RecordHTTPDuration("listing", time.Since(start))
	if err != nil {
		return "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("unexpected status %d fetching %s", resp.StatusCode, url)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read body for %s: %w", url, err)
	}
	return string(body), nil
}

// parse runs listing.Parse bounded by the CPU-sized parse semaphore, so
// heavy HTML pages never starve concurrent fetches.
func (s *Scraper) parse(ctx context.Context, body string) ([]listing.Entry, error) {
	if err := s.parseSem.Acquire(ctx, 1); err != nil {
		return nil, fmt.Errorf("acquire parse slot: %w", err)
	}
	defer s.parseSem.Release(1)
	return listing.Parse(body)
}

// extractTimestamp pulls the YYYYMMDD.HHMM token out of a file link and
// parses it as a UTC instant.
func extractTimestamp(link string) (time.Time, error) {
	m := timestampPattern.FindStringSubmatch(link)
	if m == nil {
		return time.Time{}, fmt.Errorf("no timestamp token found in %q", link)
	}
	ts, err := time.Parse("20060102.1504", m[1])
	if err != nil {
		return time.Time{}, fmt.Errorf("parse timestamp %q: %w", m[1], err)
	}
	return ts.UTC(), nil
}

// upgradeToHTTPS rewrites an http:// URL to https://, leaving https:// (or
// anything else) untouched.
func upgradeToHTTPS(url string) string {
	if strings.HasPrefix(url, "http://") {
		return "https://" + strings.TrimPrefix(url, "http://")
	}
	return url
}

// filterByMode applies the mode-dependent dedup policy: Latest/TwoMonths
// drop items whose URL is already cataloged for the month; Bootstrap
// passes items through unchanged since the enumerator already restricted
// itself to empty months.
func filterByMode(ctx context.Context, backend store.Backend, collectorID string, month catalog.MonthToken, mode catalog.CrawlMode, items []catalog.Item) ([]catalog.Item, error) {
	if mode == catalog.ModeBootstrap {
		return items, nil
	}

	existing, err := backend.URLsInMonth(ctx, collectorID, month)
	if err != nil {
		return nil, fmt.Errorf("urls in month %s for %s: %w", month, collectorID, err)
	}

	var filtered []catalog.Item
	for _, it := range items {
		if _, ok := existing[it.URL]; ok {
			continue
		}
		filtered = append(filtered, it)
	}
	return filtered, nil
}

// filterInsertNotify applies the dedup filter, inserts the remaining
// items, logs attempted-vs-inserted counts, and forwards the inserted set
// to the notifier.
func (s *Scraper) filterInsertNotify(ctx context.Context, collector catalog.Collector, month catalog.MonthToken, mode catalog.CrawlMode, candidates []catalog.Item) {
	for _, it := range candidates {
		metrics.RecordScrapeAttempt(collector.ID, string(it.DataType))
	}

	filtered, err := filterByMode(ctx, s.backend, collector.ID, month, mode, candidates)
	if err != nil {
		s.logger.Error("dedup filter failed", "collector", collector.ID, "month", month, "error", err)
		return
	}

	inserted, err := s.backend.InsertItems(ctx, filtered)
	if err != nil {
		s.logger.Error("insert items failed", "collector", collector.ID, "month", month, "error", err)
		return
	}

	insertedByType := make(map[catalog.DataType]int)
	for _, it := range inserted {
		insertedByType[it.DataType]++
	}
	for dt, n := range insertedByType {
		metrics.RecordItemsInserted(collector.ID, string(dt), n)
	}

	s.logger.Info("scrape month complete",
		"collector", collector.ID, "month", month,
		"attempted", len(candidates), "inserted", len(inserted))

	if s.OnMonthComplete != nil {
		s.OnMonthComplete(collector.ID, month, len(candidates), len(inserted))
	}

	if s.notifier == nil || len(inserted) == 0 {
		return
	}
	if err := s.notifier.Notify(ctx, inserted); err != nil {
		s.logger.Error("notify failed", "collector", collector.ID, "month", month, "error", err)
	}
}

// fanOut runs fn once per task, bounded by monthFanout concurrent
// goroutines. fn is responsible for logging its own errors: a single
// task's failure must never abort its siblings (state machine §4.9), so
// fn never returns an error here.
func fanOut[T any](ctx context.Context, tasks []T, fn func(ctx context.Context, task T)) {
	sem := semaphore.NewWeighted(monthFanout)
	var wg sync.WaitGroup
	for _, task := range tasks {
		task := task
		if err := sem.Acquire(ctx, 1); err != nil {
			return
		}
		wg.Add(1)
		go func() {
			defer wg.Done()
			defer sem.Release(1)
			fn(ctx, task)
		}()
	}
	wg.Wait()
}
