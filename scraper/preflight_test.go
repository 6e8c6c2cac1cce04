package scraper

import (
	"context"
	"errors"
	"net/http"
	"testing"
	"time"

	"github.com/jarcoal/httpmock"
)

const preflightTarget = "https://reviews.example.com/product/1"

func newMockedPreflight(t *testing.T) *Preflight {
	t.Helper()
	p := NewPreflight(5*time.Second, "test-agent")
	httpmock.ActivateNonDefault(p.Client().GetClient())
	t.Cleanup(httpmock.DeactivateAndReset)
	return p
}

func TestPreflightOK(t *testing.T) {
	p := newMockedPreflight(t)
	httpmock.RegisterResponder(http.MethodGet, preflightTarget,
		httpmock.NewStringResponder(http.StatusOK, "<html>reviews</html>"))

	if err := p.Check(context.Background(), preflightTarget); err != nil {
		t.Fatalf("expected reachable target, got %v", err)
	}
}

func TestPreflightForbiddenIsAntiBot(t *testing.T) {
	p := newMockedPreflight(t)
	httpmock.RegisterResponder(http.MethodGet, preflightTarget,
		httpmock.NewStringResponder(http.StatusForbidden, "forbidden"))

	err := p.Check(context.Background(), preflightTarget)
	if !IsAntiBot(err) {
		t.Fatalf("status 403 should classify anti-bot, got %v", err)
	}
	if Classify(err) != SeverityFatal {
		t.Fatalf("anti-bot must be fatal, got %v", Classify(err))
	}
}

func TestPreflightChallengeBodyIsAntiBot(t *testing.T) {
	p := newMockedPreflight(t)
	httpmock.RegisterResponder(http.MethodGet, preflightTarget,
		httpmock.NewStringResponder(http.StatusServiceUnavailable,
			"<html>Checking your browser - Cloudflare</html>"))

	if err := p.Check(context.Background(), preflightTarget); !IsAntiBot(err) {
		t.Fatalf("challenge body should classify anti-bot, got %v", err)
	}
}

func TestPreflightRateLimitedCarriesHint(t *testing.T) {
	p := newMockedPreflight(t)
	responder := httpmock.ResponderFromResponse(&http.Response{
		StatusCode: http.StatusTooManyRequests,
		Header:     http.Header{"Retry-After": []string{"12"}},
		Body:       httpmock.NewRespBodyFromString("slow down"),
	})
	httpmock.RegisterResponder(http.MethodGet, preflightTarget, responder)

	err := p.Check(context.Background(), preflightTarget)
	var rateLimited ErrRateLimited
	if !errors.As(err, &rateLimited) {
		t.Fatalf("expected rate-limit error, got %v", err)
	}
	hint, ok := RetryAfterHint(err)
	if !ok || hint != 12*time.Second {
		t.Fatalf("hint=%v ok=%v, want 12s", hint, ok)
	}
	if Classify(err) != SeverityTransient {
		t.Fatalf("rate limit must be transient, got %v", Classify(err))
	}
}

func TestPreflightServerErrorIsTransient(t *testing.T) {
	p := newMockedPreflight(t)
	httpmock.RegisterResponder(http.MethodGet, preflightTarget,
		httpmock.NewStringResponder(http.StatusBadGateway, "upstream down"))

	err := p.Check(context.Background(), preflightTarget)
	var badStatus ErrBadStatus
	if !errors.As(err, &badStatus) || badStatus.Status != http.StatusBadGateway {
		t.Fatalf("expected status error, got %v", err)
	}
	if Classify(err) != SeverityTransient {
		t.Fatalf("5xx must be transient, got %v", Classify(err))
	}
}

func TestPreflightConnectionFailure(t *testing.T) {
	p := newMockedPreflight(t)
	httpmock.RegisterResponder(http.MethodGet, preflightTarget,
		httpmock.NewErrorResponder(errors.New("connection refused")))

	err := p.Check(context.Background(), preflightTarget)
	var conn ErrConnection
	if !errors.As(err, &conn) {
		t.Fatalf("expected connection error, got %v", err)
	}
	if Classify(err) != SeverityTransient {
		t.Fatalf("network failure must be transient, got %v", Classify(err))
	}
}

func TestParseRetryAfter(t *testing.T) {
	tests := []struct {
		value    string
		expected time.Duration
	}{
		{value: "30", expected: 30 * time.Second},
		{value: "0", expected: 0},
		{value: "", expected: 0},
		{value: "Wed, 21 Oct 2026 07:28:00 GMT", expected: 0},
		{value: "-5", expected: 0},
	}
	for _, tt := range tests {
		if got := parseRetryAfter(tt.value); got != tt.expected {
			t.Errorf("parseRetryAfter(%q) = %v, want %v", tt.value, got, tt.expected)
		}
	}
}
