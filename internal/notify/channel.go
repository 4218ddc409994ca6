package notify

import (
	"context"

	"github.com/google/uuid"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// ChannelNotifier delivers each inserted item over an in-process channel,
// for callers (tests, the read-side API in the same process) that want to
// observe catalog changes without a real message broker.
type ChannelNotifier struct {
	ch chan Envelope
}

// NewChannelNotifier creates a ChannelNotifier with the given channel
// buffer size.
func NewChannelNotifier(buffer int) *ChannelNotifier {
	return &ChannelNotifier{ch: make(chan Envelope, buffer)}
}

// Envelopes returns the channel envelopes are delivered on.
func (n *ChannelNotifier) Envelopes() <-chan Envelope {
	return n.ch
}

// Notify sends one Envelope per item, blocking on a full channel unless ctx
// is canceled first.
func (n *ChannelNotifier) Notify(ctx context.Context, items []catalog.Item) error {
	for _, it := range items {
		env := Envelope{
			DeliveryID: uuid.New().String(),
			Key:        Key(it),
			Item:       it,
		}
		select {
		case n.ch <- env:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// Close closes the underlying channel. Callers must stop calling Notify
// before closing.
func (n *ChannelNotifier) Close() {
	close(n.ch)
}
