package notify

import (
	"context"
	"encoding/json"
	"fmt"
	"os"
	"sync"

	"github.com/google/uuid"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

// JSONFileNotifier appends one NDJSON line per notified item to a file,
// adapted from a full NDJSON storage backend down to a write-only sink.
type JSONFileNotifier struct {
	mu   sync.Mutex
	file *os.File
}

// NewJSONFileNotifier opens (creating if needed) filePath for append.
func NewJSONFileNotifier(filePath string) (*JSONFileNotifier, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0644)
	if err != nil {
		return nil, fmt.Errorf("open notification file %s: %w", filePath, err)
	}
	return &JSONFileNotifier{file: f}, nil
}

// Notify writes one JSON line per item, each wrapped in an Envelope.
func (n *JSONFileNotifier) Notify(ctx context.Context, items []catalog.Item) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	for _, it := range items {
		env := Envelope{
			DeliveryID: uuid.New().String(),
			Key:        Key(it),
			Item:       it,
		}
		data, err := json.Marshal(env)
		if err != nil {
			return fmt.Errorf("marshal notification envelope for %s: %w", it.URL, err)
		}
		if _, err := n.file.Write(append(data, '\n')); err != nil {
			return fmt.Errorf("write notification line for %s: %w", it.URL, err)
		}
	}
	return nil
}

// Close closes the underlying file.
func (n *JSONFileNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file.Close()
}
