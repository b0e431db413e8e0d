// Package fetch is the polite HTTP layer. It paces requests, bounds
// concurrency, and retries transient upstream failures so the crawl loop can
// hammer away without hammering the source site.
package fetch

import (
	"context"
	"errors"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"
)

// ErrExhausted marks a fetch that failed after every retry attempt. This is
// the true-runtime-failure class: callers mark the document FAILED.
var ErrExhausted = errors.New("fetch: retries exhausted")

// Client wraps http.Client with crawl politeness: a minimum inter-request
// delay with random jitter, a per-client concurrency gate, and exponential
// backoff with jitter on 429/5xx responses.
type Client struct {
	HTTPClient *http.Client
	UserAgent  string
	// MaxAttempts includes the initial attempt. Minimum 1.
	MaxAttempts int
	// PerRequestTimeout bounds each attempt.
	PerRequestTimeout time.Duration
	// MinDelay is the minimum spacing between request starts across the
	// whole client. Zero disables pacing.
	MinDelay time.Duration
	// MaxConcurrent limits concurrent in-flight requests per client
	// instance. Zero means unlimited.
	MaxConcurrent int
	// RedirectMaxHops caps redirect following. Zero means default (5).
	RedirectMaxHops int

	limiter  chan struct{}
	pacer    *rate.Limiter
	initOnce sync.Once
}

func (c *Client) init() {
	c.initOnce.Do(func() {
		if c.MaxConcurrent > 0 {
			c.limiter = make(chan struct{}, c.MaxConcurrent)
		}
		if c.MinDelay > 0 {
			c.pacer = rate.NewLimiter(rate.Every(c.MinDelay), 1)
		}
	})
}

// SetMinDelay raises the pacing interval before the first request, e.g. when
// robots.txt asks for a longer crawl delay than configured.
func (c *Client) SetMinDelay(d time.Duration) {
	if d > c.MinDelay {
		c.MinDelay = d
	}
}

func (c *Client) httpClient() *http.Client {
	if c.HTTPClient != nil {
		// Clone to attach our redirect policy without mutating the
		// caller's client.
		base := *c.HTTPClient
		base.CheckRedirect = c.checkRedirectFunc()
		return &base
	}
	return &http.Client{Timeout: c.PerRequestTimeout, CheckRedirect: c.checkRedirectFunc()}
}

// Get issues a paced GET and returns the body and content type. Responses
// with status 429/5xx are retried with jittered exponential backoff up to
// MaxAttempts; exhaustion wraps ErrExhausted.
func (c *Client) Get(ctx context.Context, rawURL string) ([]byte, string, error) {
	c.init()

	attempts := c.MaxAttempts
	if attempts <= 0 {
		attempts = 1
	}
	var lastErr error
	for i := 0; i < attempts; i++ {
		if i > 0 {
			backoff := time.Duration(1<<uint(i-1)) * 200 * time.Millisecond
			backoff += time.Duration(rand.Int63n(int64(200 * time.Millisecond)))
			if backoff > 10*time.Second {
				backoff = 10 * time.Second
			}
			log.Debug().Str("url", rawURL).Int("attempt", i+1).Dur("backoff", backoff).Msg("retrying fetch")
			select {
			case <-time.After(backoff):
			case <-ctx.Done():
				return nil, "", ctx.Err()
			}
		}
		body, ct, err := c.tryOnce(ctx, rawURL)
		if err == nil {
			return body, ct, nil
		}
		if !isTransient(err) {
			return nil, "", err
		}
		lastErr = err
	}
	return nil, "", fmt.Errorf("%w: %s: %v", ErrExhausted, rawURL, lastErr)
}

// transientError marks a response worth retrying (429 or 5xx).
type transientError struct{ status int }

func (e *transientError) Error() string { return fmt.Sprintf("transient status: %d", e.status) }

func isTransient(err error) bool {
	var te *transientError
	if errors.As(err, &te) {
		return true
	}
	return errors.Is(err, context.DeadlineExceeded)
}

func (c *Client) tryOnce(ctx context.Context, rawURL string) ([]byte, string, error) {
	c.acquire()
	defer c.release()

	if c.pacer != nil {
		if err := c.pacer.Wait(ctx); err != nil {
			return nil, "", err
		}
		// Small extra jitter so the crawl never ticks like a metronome.
		jitter := time.Duration(rand.Int63n(int64(c.MinDelay)/2 + 1))
		select {
		case <-time.After(jitter):
		case <-ctx.Done():
			return nil, "", ctx.Err()
		}
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", fmt.Errorf("new request: %w", err)
	}
	if req.URL == nil || !isHTTPScheme(req.URL) {
		return nil, "", fmt.Errorf("unsupported URL scheme: %q", rawURL)
	}
	if c.UserAgent != "" {
		req.Header.Set("User-Agent", c.UserAgent)
	}

	if c.PerRequestTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(req.Context(), c.PerRequestTimeout)
		defer cancel()
		req = req.WithContext(ctx)
	}

	resp, err := c.httpClient().Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusTooManyRequests || (resp.StatusCode >= 500 && resp.StatusCode <= 599) {
		return nil, "", &transientError{status: resp.StatusCode}
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("unexpected status: %d", resp.StatusCode)
	}

	contentType := resp.Header.Get("Content-Type")
	if !isAllowedHTMLContentType(contentType) {
		return nil, "", fmt.Errorf("unsupported content type: %s", contentType)
	}
	b, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, "", fmt.Errorf("read body: %w", err)
	}
	return b, contentType, nil
}

func (c *Client) checkRedirectFunc() func(req *http.Request, via []*http.Request) error {
	max := c.RedirectMaxHops
	if max <= 0 {
		max = 5
	}
	return func(req *http.Request, via []*http.Request) error {
		if len(via) >= max {
			return errors.New("too many redirects")
		}
		if req.URL == nil || !isHTTPScheme(req.URL) {
			return errors.New("redirect to unsupported scheme")
		}
		return nil
	}
}

func isHTTPScheme(u *url.URL) bool {
	if u == nil {
		return false
	}
	scheme := strings.ToLower(u.Scheme)
	return scheme == "http" || scheme == "https"
}

func isAllowedHTMLContentType(ct string) bool {
	ct = strings.ToLower(strings.TrimSpace(ct))
	return strings.HasPrefix(ct, "text/html") || strings.HasPrefix(ct, "application/xhtml+xml")
}

func (c *Client) acquire() {
	if c.limiter == nil {
		return
	}
	c.limiter <- struct{}{}
}

func (c *Client) release() {
	if c.limiter == nil {
		return
	}
	select {
	case <-c.limiter:
	default:
	}
}
