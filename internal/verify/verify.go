// Package verify implements the asynchronous size-verification backfill:
// for each catalog item whose exact size is still unknown, issue a HEAD
// request (falling back to GET) and record the advertised Content-Length.
package verify

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"golang.org/x/sync/semaphore"

	"github.com/bgpkit/broker-updater/internal/catalog"
	"github.com/bgpkit/broker-updater/internal/httpclient"
	"github.com/bgpkit/broker-updater/internal/metrics"
	"github.com/bgpkit/broker-updater/internal/retry"
	"github.com/bgpkit/broker-updater/internal/store"
)

const (
	attempts  = 3
	retryGap  = time.Second
	batchSize = 1000
	inFlight  = 100
)

// Verifier probes catalog items to discover their exact byte size.
type Verifier struct {
	client *httpclient.Client
	logger *slog.Logger
}

// New creates a Verifier using client for requests. logger defaults to
// slog.Default() when nil.
func New(client *httpclient.Client, logger *slog.Logger) *Verifier {
	if logger == nil {
		logger = slog.Default()
	}
	return &Verifier{client: client, logger: logger}
}

// probeResult is the definitive outcome of one HEAD/GET attempt: either a
// positive exact size, or "absent" (non-2xx or no usable Content-Length).
type probeResult struct {
	size   int64
	absent bool
}

// probe issues a single HEAD request, falling back to GET only when HEAD
// returns a 2xx response without a positive Content-Length; a non-2xx HEAD
// response is final and GET is not tried. A transport
// failure returns a non-nil error (triggering retry.Do's retry loop); a
// definitive non-2xx or missing-length response returns probeResult{absent:
// true} with a nil error, so retry.Do stops immediately without burning
// the retry budget on responses that will never change.
func (v *Verifier) probe(ctx context.Context, url string) (probeResult, error) {
	for _, method := range []string{http.MethodHead, http.MethodGet} {
		req, err := http.NewRequestWithContext(ctx, method, url, nil)
		if err != nil {
			return probeResult{}, fmt.Errorf("build %s request for %s: %w", method, url, err)
		}

		start := time.Now()
		resp, err := v.client.Do(ctx, req)
		metrics.RecordHTTPDuration("verify", time.Since(start))
		if err != nil {
			return probeResult{}, err
		}
		resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			return probeResult{absent: true}, nil
		}
		if resp.ContentLength > 0 {
			return probeResult{size: resp.ContentLength}, nil
		}
		// HEAD gave a 2xx with no usable length; try GET before giving up.
	}
	return probeResult{absent: true}, nil
}

// Verify probes it's URL and returns the verified item (exact_size filled
// in) and whether a size was found. On transport failures the probe is tried
// up to `attempts` times in total, with a fixed `retryGap` between tries; definitive
// absent results are never retried.
func (v *Verifier) Verify(ctx context.Context, it catalog.Item) (catalog.Item, bool) {
	result, err := retry.Do(ctx, attempts, retryGap, func(ctx context.Context) (probeResult, error) {
		return v.probe(ctx, it.URL)
	})
	if err != nil {
		metrics.RecordVerifyOutcome("transport_error")
		v.logger.Warn("verify transport failure", "url", it.URL, "error", err)
		return it, false
	}
	if result.absent {
		metrics.RecordVerifyOutcome("absent")
		return it, false
	}
	metrics.RecordVerifyOutcome("found")
	it.ExactSize = result.size
	return it, true
}

// RunBackfill repeatedly scans backend for unverified items in batches of
// batchSize, verifying up to inFlight concurrently, until a scan returns no
// items or a batch verifies none of its items. It never returns an error for
// per-item verification failures; those items simply remain unverified for
// the next run.
func RunBackfill(ctx context.Context, backend store.Backend, verifier *Verifier, logger *slog.Logger) error {
	if logger == nil {
		logger = slog.Default()
	}
	sem := semaphore.NewWeighted(inFlight)

	for {
		items, err := backend.ScanUnverified(ctx, batchSize)
		if err != nil {
			return fmt.Errorf("scan unverified batch: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		var verifiedCount atomic.Int64
		done := make(chan struct{}, len(items))
		for _, it := range items {
			it := it
			if err := sem.Acquire(ctx, 1); err != nil {
				return fmt.Errorf("acquire verify slot: %w", err)
			}
			go func() {
				defer sem.Release(1)
				defer func() { done <- struct{}{} }()

				verified, ok := verifier.Verify(ctx, it)
				if !ok {
					return
				}
				if err := backend.ApplyExactSize(ctx, verified.URL, verified.ExactSize); err != nil {
					logger.Error("apply exact size", "url", verified.URL, "error", err)
					return
				}
				verifiedCount.Add(1)
			}()
		}
		for range items {
			<-done
		}

		logger.Info("verify backfill batch complete", "scanned", len(items), "verified", verifiedCount.Load())
		if verifiedCount.Load() == 0 {
			// Nothing in this batch could be verified, so a further scan
			// would return the same items again.
			return nil
		}
	}
}
