// Package orchestrator drives the collector scrapers across every
// configured collector, with mode-dependent fan-out concurrency. The size
// verifier back-fill loop is not run here; it is verify.RunBackfill. It generalizes the teacher's SERP -> crawl -> analyze
// pipeline stub into a Collectors -> Scraper -> Notifier drive.
package orchestrator

import (
	"context"
	"log/slog"

	"golang.org/x/sync/semaphore"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/report"
	"github.com/bgpkit/broker-updater/internal/scraper"
)

// latestConcurrency is the collector fan-out width for Latest and
// TwoMonths runs; bootstrapConcurrency serializes bootstrap runs so a
// freshly added collector's full-history crawl doesn't compete with
// every other collector's steady-state poll.
const (
	latestConcurrency    = 20
	bootstrapConcurrency = 1
)

// Orchestrator fans scrape work out across collectors.
type Orchestrator struct {
	scraper *scraper.Scraper
	logger  *slog.Logger
}

// New builds an Orchestrator around an already-constructed Scraper.
func New(s *scraper.Scraper, logger *slog.Logger) *Orchestrator {
	if logger == nil {
		logger = slog.Default()
	}
	return &Orchestrator{scraper: s, logger: logger}
}

// Run scrapes every collector under the given mode, bounding concurrency
// according to mode, and returns a run summary of attempted/inserted
// counts. One collector's failure is logged and does not cancel the
// others; Run itself never returns an error for a single collector's
// failure.
func (o *Orchestrator) Run(ctx context.Context, collectors []catalog.Collector, mode catalog.CrawlMode) *report.RunSummary {
	concurrency := int64(latestConcurrency)
	if mode == catalog.ModeBootstrap {
		concurrency = bootstrapConcurrency
	}

	summary := report.NewRunSummary()
	if len(collectors) == 0 {
		summary.Finish()
		return summary
	}

	o.scraper.OnMonthComplete = summary.Record
	defer func() { o.scraper.OnMonthComplete = nil }()

	sem := semaphore.NewWeighted(concurrency)
	o.logger.Info("starting scrape run", "collectors", len(collectors), "mode", mode, "concurrency", concurrency)

	done := make(chan struct{})
	started := 0
	for _, c := range collectors {
		c := c
		if err := sem.Acquire(ctx, 1); err != nil {
			o.logger.Warn("aborting remaining collectors", "error", err)
			break
		}
		started++
		go func() {
			defer sem.Release(1)
			defer func() { done <- struct{}{} }()

			if err := o.scraper.ScrapeCollector(ctx, c, mode); err != nil {
				o.logger.Error("collector scrape failed", "collector", c.ID, "project", c.Project, "error", err)
			}
		}()
	}

	for i := 0; i < started; i++ {
		<-done
	}

	summary.Finish()
	o.logger.Info("scrape run complete", "collectors", len(collectors), "mode", mode)
	return summary
}
