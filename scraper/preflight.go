package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
)

// Preflight probes the seed URL over plain HTTP before the browser
// launches, so obviously dead or hostile targets fail fast without
// paying the Chrome startup cost.
type Preflight struct {
	client *resty.Client
}

// NewPreflight builds a probe client with the run's timeout and
// user agent.
func NewPreflight(timeout time.Duration, userAgent string) *Preflight {
	client := resty.New().
		SetTimeout(timeout).
		SetHeader("User-Agent", userAgent).
		SetRedirectPolicy(resty.FlexibleRedirectPolicy(5))
	return &Preflight{client: client}
}

// Client exposes the underlying HTTP client for transport injection in
// tests.
func (p *Preflight) Client() *resty.Client {
	return p.client
}

// Check issues one GET against target and maps the outcome onto the
// run's error taxonomy. A reachable page returns nil; anti-bot
// challenges are fatal, rate limits carry the server wait hint, and
// 5xx or network failures are transient.
func (p *Preflight) Check(ctx context.Context, target string) error {
	resp, err := p.client.R().SetContext(ctx).Get(target)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return ErrTimeout{Err: err}
		}
		var netErr net.Error
		if errors.As(err, &netErr) && netErr.Timeout() {
			return ErrTimeout{Err: err}
		}
		return ErrConnection{Err: err}
	}

	status := resp.StatusCode()
	switch {
	case status == http.StatusForbidden:
		return ErrAntiBot{Err: fmt.Errorf("preflight got status %d", status)}
	case status == http.StatusTooManyRequests:
		return ErrRateLimited{
			Err:        fmt.Errorf("preflight got status %d", status),
			RetryAfter: parseRetryAfter(resp.Header().Get("Retry-After")),
		}
	case status == http.StatusServiceUnavailable && containsAntiBotPhrase(resp.String()):
		return ErrAntiBot{Err: fmt.Errorf("preflight got challenge page with status %d", status)}
	case status >= http.StatusInternalServerError:
		return ErrBadStatus{Status: status, Err: fmt.Errorf("preflight got status %d", status)}
	case status >= http.StatusBadRequest:
		return fmt.Errorf("preflight got status %d", status)
	}
	return nil
}

// parseRetryAfter understands the delta-seconds form of the header.
// The HTTP-date form is rare on rate limiters and resolves to zero.
func parseRetryAfter(value string) time.Duration {
	if value == "" {
		return 0
	}
	seconds, err := strconv.Atoi(value)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
