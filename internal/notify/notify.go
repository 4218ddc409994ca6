// Package notify models the Kafka-shaped change notification described by
// the catalog's external interface: a Notifier is invoked once per scraped
// listing with the items the store actually accepted. No live Kafka producer
// ships here; the wire protocol is out of scope, so Notifier only has
// in-process and file-based implementations.
package notify

import (
	"context"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// Notifier is given the items the store accepted for one scraped listing
// (a RIPE RIS month, or a RouteViews month's RIBS or UPDATES directory),
// once per listing and across all of that listing's insert chunks; it is
// not called when nothing was inserted.
type Notifier interface {
	Notify(ctx context.Context, items []catalog.Item) error
}

// Envelope is a single delivery unit: one item plus a unique delivery id,
// mirroring the Kafka message key/value contract (key = item.TSStart in
// the same string form as the JSON payload, value = the item payload).
type Envelope struct {
	DeliveryID string        `json:"delivery_id"`
	Key        string        `json:"key"`
	Item       catalog.Item  `json:"item"`
}

const notificationTimeLayout = "2006-01-02T15:04:05"

// Key returns the notification key for it: the same %Y-%m-%dT%H:%M:%S
// string used for ts_start in the JSON payload, so a consumer correlating
// keys against payload bodies sees one consistent timestamp format.
func Key(it catalog.Item) string {
	return it.TSStart.UTC().Format(notificationTimeLayout)
}
