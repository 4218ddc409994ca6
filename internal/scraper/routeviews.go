package scraper

import (
	"context"
	"fmt"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// routeViewsBranch is one of the two subdirectories a RouteViews month
// directory exposes.
type routeViewsBranch struct {
	month    catalog.MonthToken
	subpath  string
	dataType catalog.DataType
}

// scrapeRouteViews scrapes every enumerated month for a RouteViews
// collector, fanning out across (month, branch) pairs up to monthFanout
// at a time: each month contributes a RIBS branch and an UPDATES branch.
func (s *Scraper) scrapeRouteViews(ctx context.Context, collector catalog.Collector, months []catalog.MonthToken, mode catalog.CrawlMode) {
	var branches []routeViewsBranch
	for _, month := range months {
		branches = append(branches,
			routeViewsBranch{month: month, subpath: "RIBS", dataType: catalog.DataTypeRIB},
			routeViewsBranch{month: month, subpath: "UPDATES", dataType: catalog.DataTypeUpdate},
		)
	}

	fanOut(ctx, branches, func(ctx context.Context, branch routeViewsBranch) {
		s.scrapeRouteViewsBranch(ctx, collector, branch, mode)
	})
}

func (s *Scraper) scrapeRouteViewsBranch(ctx context.Context, collector catalog.Collector, branch routeViewsBranch, mode catalog.CrawlMode) {
	listingURL := fmt.Sprintf("%s/%s/%s", collector.URL, branch.month, branch.subpath)

	body, err := s.fetch(ctx, listingURL)
	if err != nil {
		s.logger.Error("fetch routeviews listing failed", "collector", collector.ID, "url", listingURL, "error", err)
		return
	}

	entries, err := s.parse(ctx, body)
	if err != nil {
		s.logger.Error("parse routeviews listing failed", "collector", collector.ID, "url", listingURL, "error", err)
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

		tsEnd := ts
		if branch.dataType == catalog.DataTypeUpdate {
			tsEnd = ts.Add(15*time.Minute - time.Second)
		}

		items = append(items, catalog.Item{
			CollectorID: collector.ID,
			DataType:    branch.dataType,
			URL:         upgradeToHTTPS(url),
			TSStart:     ts,
			TSEnd:       tsEnd,
			RoughSize:   e.RoughSize,
		})
	}

	s.filterInsertNotify(ctx, collector, branch.month, mode, items)
}
