// Package catalog defines the core data model shared by every stage of the
// ingestion engine: collectors, catalog items, crawl modes, and the month
// arithmetic the enumerator and scrapers depend on.
package catalog

import (
	"encoding/json"
	"fmt"
	"time"
)

// DataType identifies the kind of archive file a catalog Item represents.
type DataType string

const (
	DataTypeRIB    DataType = "rib"
	DataTypeUpdate DataType = "update"
)

// Project identifies the upstream archive project a Collector belongs to.
type Project string

const (
	ProjectRouteViews Project = "routeviews"
	ProjectRIPERIS    Project = "riperis"
)

// CrawlMode is the closed variant driving enumeration policy, concurrency
// budget, and dedup strategy.
type CrawlMode string

const (
	ModeLatest    CrawlMode = "latest"
	ModeTwoMonths CrawlMode = "two_months"
	ModeBootstrap CrawlMode = "bootstrap"
)

// ParseCrawlMode parses the crawl-mode flag value, rejecting anything outside
// the three recognized modes.
func ParseCrawlMode(s string) (CrawlMode, error) {
	switch CrawlMode(s) {
	case ModeLatest, ModeTwoMonths, ModeBootstrap:
		return CrawlMode(s), nil
	default:
		return "", fmt.Errorf("crawl mode must be one of latest, two_months, bootstrap, got %q", s)
	}
}

// Collector is a named BGP vantage point whose operator publishes an archive.
// Identified by ID; immutable once registered.
type Collector struct {
	ID      string
	Project Project
	URL     string
}

// Item is a single catalog record: one archived RIB snapshot or update file.
// Identity is URL; the compound (CollectorID, DataType, TSStart) must also be
// unique.
type Item struct {
	CollectorID string
	DataType    DataType
	URL         string
	TSStart     time.Time
	TSEnd       time.Time
	RoughSize   int64
	ExactSize   int64
}

const notificationTimeLayout = "2006-01-02T15:04:05"

// itemPayload is the wire shape for the notification payload: timestamps as
// %Y-%m-%dT%H:%M:%S strings, sizes as integers, everything else as strings.
type itemPayload struct {
	TSStart     string `json:"ts_start"`
	TSEnd       string `json:"ts_end"`
	CollectorID string `json:"collector_id"`
	DataType    string `json:"data_type"`
	URL         string `json:"url"`
	RoughSize   int64  `json:"rough_size"`
	ExactSize   int64  `json:"exact_size"`
}

// MarshalJSON encodes the Item using the notification payload format, so any
// JSON-based notifier automatically matches the wire contract.
func (it Item) MarshalJSON() ([]byte, error) {
	return json.Marshal(itemPayload{
		TSStart:     it.TSStart.UTC().Format(notificationTimeLayout),
		TSEnd:       it.TSEnd.UTC().Format(notificationTimeLayout),
		CollectorID: it.CollectorID,
		DataType:    string(it.DataType),
		URL:         it.URL,
		RoughSize:   it.RoughSize,
		ExactSize:   it.ExactSize,
	})
}

// UnmarshalJSON is the inverse of MarshalJSON, parsing the notification
// payload's timestamp strings back to UTC time.Time values.
func (it *Item) UnmarshalJSON(data []byte) error {
	var p itemPayload
	if err := json.Unmarshal(data, &p); err != nil {
		return err
	}
	tsStart, err := time.Parse(notificationTimeLayout, p.TSStart)
	if err != nil {
		return fmt.Errorf("parse ts_start %q: %w", p.TSStart, err)
	}
	tsEnd, err := time.Parse(notificationTimeLayout, p.TSEnd)
	if err != nil {
		return fmt.Errorf("parse ts_end %q: %w", p.TSEnd, err)
	}
	it.TSStart = tsStart.UTC()
	it.TSEnd = tsEnd.UTC()
	it.CollectorID = p.CollectorID
	it.DataType = DataType(p.DataType)
	it.URL = p.URL
	it.RoughSize = p.RoughSize
	it.ExactSize = p.ExactSize
	return nil
}

// MonthToken is a "YYYY.MM" string: a URL path component and a logical dedup
// partition.
type MonthToken string

// NewMonthToken formats t's UTC year/month as a MonthToken.
func NewMonthToken(t time.Time) MonthToken {
	return MonthToken(t.UTC().Format("2006.01"))
}

// Start returns the first instant of the month the token names.
func (m MonthToken) Start() (time.Time, error) {
	t, err := time.Parse("2006.01", string(m))
	if err != nil {
		return time.Time{}, fmt.Errorf("parse month token %q: %w", string(m), err)
	}
	return t, nil
}

// Window returns the inclusive [start, end] day-granularity range used by
// count_items_in_month and urls_in_month: start is the first instant of the
// month, end is start + 31 days.
func (m MonthToken) Window() (start, end time.Time, err error) {
	start, err = m.Start()
	if err != nil {
		return
	}
	end = start.AddDate(0, 0, 31)
	return
}

// IsLeapYear reports whether year is a leap year under the Gregorian calendar.
func IsLeapYear(year int) bool {
	return year%4 == 0 && (year%100 != 0 || year%400 == 0)
}

// normaliseDay clamps day to the last day of (year, month) when it overflows,
// handling February's leap-year boundary and the 30-day months.
func normaliseDay(year, month, day int) int {
	switch {
	case day <= 28:
		return day
	case month == 2:
		if IsLeapYear(year) {
			return 29
		}
		return 28
	case day == 31 && (month == 4 || month == 6 || month == 9 || month == 11):
		return 30
	default:
		return day
	}
}

// ShiftMonths returns t shifted by the given number of calendar months,
// clamping the day-of-month to the target month's length. Used for TwoMonths
// enumeration (shift -1) and any other calendar-month arithmetic.
func ShiftMonths(t time.Time, months int) time.Time {
	year := t.Year() + (int(t.Month())+months)/12
	month := (int(t.Month()) + months) % 12
	day := t.Day()

	if month < 1 {
		year--
		month += 12
	}

	day = normaliseDay(year, month, day)

	return time.Date(year, time.Month(month), day, t.Hour(), t.Minute(), t.Second(), t.Nanosecond(), t.Location())
}
