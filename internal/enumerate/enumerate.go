// Package enumerate implements the Month Enumerator: given a collector and
// a crawl mode, it yields the ordered list of month tokens the scraper
// should fetch.
package enumerate

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"time"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/httpclient"
	"github.com/bgpkit/broker-updater/internal/store"
)

var monthDirPattern = regexp.MustCompile(`<a href="(.{4}\..{2})/">`)

// Enumerate returns the ordered month tokens to scrape for collector under
// mode: oldest first for Latest and TwoMonths, and in the order the root
// listing links them for Bootstrap (they are not sorted).
func Enumerate(ctx context.Context, client *httpclient.Client, backend store.Backend, collector catalog.Collector, mode catalog.CrawlMode, now time.Time) ([]catalog.MonthToken, error) {
	switch mode {
	case catalog.ModeLatest:
		return latestMonths(now), nil
	case catalog.ModeTwoMonths:
		return twoMonths(now), nil
	case catalog.ModeBootstrap:
		return bootstrapMonths(ctx, client, backend, collector)
	default:
		return nil, fmt.Errorf("unknown crawl mode %q", mode)
	}
}

// latestMonths returns the distinct months covering today and yesterday
// (UTC), oldest first.
func latestMonths(now time.Time) []catalog.MonthToken {
	today := catalog.NewMonthToken(now.UTC())
	yesterday := catalog.NewMonthToken(now.UTC().AddDate(0, 0, -1))
	if today == yesterday {
		return []catalog.MonthToken{today}
	}
	return []catalog.MonthToken{yesterday, today}
}

// twoMonths returns exactly two months: one calendar month earlier than
// now, then now's month, oldest first.
func twoMonths(now time.Time) []catalog.MonthToken {
	current := catalog.NewMonthToken(now.UTC())
	previous := catalog.NewMonthToken(catalog.ShiftMonths(now.UTC(), -1))
	return []catalog.MonthToken{previous, current}
}

// bootstrapMonths fetches the collector root HTML, extracts every month
// directory link, and emits only the months with zero existing catalog
// rows.
func bootstrapMonths(ctx context.Context, client *httpclient.Client, backend store.Backend, collector catalog.Collector) ([]catalog.MonthToken, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, collector.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("build root listing request for %s: %w", collector.ID, err)
	}

	resp, err := client.Do(ctx, req)
	if err != nil {
		return nil, fmt.Errorf("fetch root listing for %s: %w", collector.ID, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read root listing for %s: %w", collector.ID, err)
	}

	matches := monthDirPattern.FindAllStringSubmatch(string(body), -1)
	var months []catalog.MonthToken
	for _, m := range matches {
		month := catalog.MonthToken(m[1])
		count, err := backend.CountItemsInMonth(ctx, collector.ID, month)
		if err != nil {
			return nil, fmt.Errorf("count items in month %s for %s: %w", month, collector.ID, err)
		}
		if count == 0 {
			months = append(months, month)
		}
	}
	return months, nil
}
