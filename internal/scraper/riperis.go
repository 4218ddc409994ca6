package scraper

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// scrapeRIPERIS scrapes every enumerated month for a RIPE RIS collector.
// Unlike RouteViews, a RIPE RIS month directory is flat: both update and
// RIB files appear in the same listing, so each month is a single task.
func (s *Scraper) scrapeRIPERIS(ctx context.Context, collector catalog.Collector, months []catalog.MonthToken, mode catalog.CrawlMode) {
	fanOut(ctx, months, func(ctx context.Context, month catalog.MonthToken) {
		s.scrapeRIPERISMonth(ctx, collector, month, mode)
	})
}

func (s *Scraper) scrapeRIPERISMonth(ctx context.Context, collector catalog.Collector, month catalog.MonthToken, mode catalog.CrawlMode) {
	listingURL := fmt.Sprintf("%s/%s", collector.URL, month)

	body, err := s.fetch(ctx, listingURL)
	if err != nil {
		s.logger.Error("fetch riperis listing failed", "collector", collector.ID, "url", listingURL, "error", err)
		return
	}

	entries, err := s.parse(ctx, body)
	if err != nil {
		s.logger.Error("parse riperis listing failed", "collector", collector.ID, "url", listingURL, "error", err)
		return
	}

	var items []catalog.Item
	for _, e := range entries {
		url := fmt.Sprintf("%s/%s", listingURL, e.Link)

		ts, err := extractTimestamp(e.Link)
		if err != nil {
			s.logger.Warn("skip entry with no timestamp token", "collector", collector.ID, "link", e.Link, "error", err)
			continue
		}

		dataType := catalog.DataTypeRIB
		tsEnd := ts
		if strings.Contains(e.Link, "update") {
			dataType = catalog.DataTypeUpdate
			tsEnd = ts.Add(5*time.Minute - time.Second)
		}

		items = append(items, catalog.Item{
			CollectorID: collector.ID,
			DataType:    dataType,
			URL:         upgradeToHTTPS(url),
			TSStart:     ts,
			TSEnd:       tsEnd,
			RoughSize:   e.RoughSize,
		})
	}

	s.filterInsertNotify(ctx, collector, month, mode, items)
}
