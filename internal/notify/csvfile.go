package notify

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"
	"strconv"
	"sync"

	"github.com/google/uuid"

	"github.com/bgpkit/broker-updater/internal/catalog"
)

var csvHeaders = []string{
	"delivery_id",
	"key",
	"collector_id",
	"data_type",
	"url",
	"ts_start",
	"ts_end",
	"rough_size",
	"exact_size",
}

// CSVFileNotifier appends one CSV row per notified item to a file, adapted
// from a full CSV storage backend down to a write-only sink.
type CSVFileNotifier struct {
	mu   sync.Mutex
	file *os.File
}

// NewCSVFileNotifier opens (creating if needed) filePath for append,
// writing the header row if the file is empty.
func NewCSVFileNotifier(filePath string) (*CSVFileNotifier, error) {
	f, err := os.OpenFile(filePath, os.O_APPEND|os.O_CREATE|os.O_RDWR, 0644)
	if err != nil {
		return nil, fmt.Errorf("open notification file %s: %w", filePath, err)
	}

	info, err := f.Stat()
	if err != nil {
		f.Close()
		return nil, fmt.Errorf("stat notification file %s: %w", filePath, err)
	}

	if info.Size() == 0 {
		w := csv.NewWriter(f)
		if err := w.Write(csvHeaders); err != nil {
			f.Close()
			return nil, fmt.Errorf("write csv header: %w", err)
		}
		w.Flush()
		if err := w.Error(); err != nil {
			f.Close()
			return nil, fmt.Errorf("flush csv header: %w", err)
		}
	}

	return &CSVFileNotifier{file: f}, nil
}

// Notify appends one CSV row per item.
func (n *CSVFileNotifier) Notify(ctx context.Context, items []catalog.Item) error {
	n.mu.Lock()
	defer n.mu.Unlock()

	w := csv.NewWriter(n.file)
	for _, it := range items {
		record := []string{
			uuid.New().String(),
			Key(it),
			it.CollectorID,
			string(it.DataType),
			it.URL,
			it.TSStart.UTC().Format(notificationTimeLayout),
			it.TSEnd.UTC().Format(notificationTimeLayout),
			strconv.FormatInt(it.RoughSize, 10),
			strconv.FormatInt(it.ExactSize, 10),
		}
		if err := w.Write(record); err != nil {
			return fmt.Errorf("write csv notification row for %s: %w", it.URL, err)
		}
	}
	w.Flush()
	if err := w.Error(); err != nil {
		return fmt.Errorf("flush csv notification rows: %w", err)
	}
	return nil
}

// Close closes the underlying file.
func (n *CSVFileNotifier) Close() error {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.file.Close()
}
