// Package httpclient provides the shared HTTP client used by the collector
// scraper and the size verifier: a timeout, an explicit redirect policy, and
// a context-bound Do so callers never forget to thread cancellation through.
package httpclient

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"time"

	"github.com/bgpkit/broker-updater/pkg/useragent"
)

// UserAgent identifies this engine honestly to the archive hosts it polls.
const UserAgent = useragent.Identity

// Config defines the setup for the HTTP Client.
type Config struct {
	Timeout      time.Duration
	MaxRedirects int
	// Transport overrides the client's transport, used by tests to stub
	// out the network.
	Transport http.RoundTripper
}

// Client wraps a standard http.Client with the engine's politeness defaults.
type Client struct {
	*http.Client
}

// New creates a new HTTP client based on the provided configuration.
func New(cfg Config) (*Client, error) {
	if cfg.Timeout == 0 {
		cfg.Timeout = 30 * time.Second
	}

	c := &http.Client{
		Timeout: cfg.Timeout,
	}

	if cfg.MaxRedirects >= 0 {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			if len(via) >= cfg.MaxRedirects {
				return fmt.Errorf("stopped after %d redirects", cfg.MaxRedirects)
			}
			return nil
		}
	} else {
		c.CheckRedirect = func(req *http.Request, via []*http.Request) error {
			return http.ErrUseLastResponse
		}
	}

	if cfg.Transport != nil {
		c.Transport = cfg.Transport
	}

	return &Client{Client: c}, nil
}

// Do executes req with ctx bound to it, setting this engine's identifying
// User-Agent header.
func (c *Client) Do(ctx context.Context, req *http.Request) (*http.Response, error) {
	if ctx == nil {
		return nil, errors.New("httpclient: context cannot be nil")
	}

	reqWithCtx := req.Clone(ctx)
	if reqWithCtx.Header.Get("User-Agent") == "" {
		reqWithCtx.Header.Set("User-Agent", UserAgent)
	}

	resp, err := c.Client.Do(reqWithCtx)
	if err != nil {
		return nil, fmt.Errorf("fetch %s: %w", req.URL, err)
	}
	return resp, nil
}
