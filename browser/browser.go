// Package browser wraps the automation runtime behind the small
// capability surface the scraper needs: navigation, DOM snapshots,
// visibility probes, clicks, and settle-related scrolling.
package browser

import (
	"context"
	"time"
)

// Page is the automation capability consumed by the navigator and the
// orchestrator. Implementations own exactly one rendered page at a
// time; callers must not retain element state across calls.
type Page interface {
	// Navigate loads url and returns the response status code. A zero
	// status with a non-nil error means no response arrived at all.
	Navigate(ctx context.Context, url string) (int, error)
	// WaitReady blocks until the document reaches ready state.
	WaitReady(ctx context.Context) error
	// WaitIdle waits up to d for network activity to quiet down.
	WaitIdle(ctx context.Context, d time.Duration) error
	// HTML returns a snapshot of the rendered document.
	HTML(ctx context.Context) (string, error)

	ScrollToBottom(ctx context.Context) error
	ScrollToTop(ctx context.Context) error
	// Height reports the current document scroll height in pixels.
	Height(ctx context.Context) (float64, error)

	// IsVisible reports whether the first match for sel exists and is
	// visible. A missing element is (false, nil), not an error.
	IsVisible(ctx context.Context, sel string) (bool, error)
	// Attribute returns the named attribute of the first match for sel
	// and whether it was present.
	Attribute(ctx context.Context, sel, name string) (string, bool, error)
	Click(ctx context.Context, sel string) error
	PressEscape(ctx context.Context) error
}
