package scraper

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"github.com/mferrazlima/go-scrape-reviews/browser"
	"github.com/mferrazlima/go-scrape-reviews/config"
)

// nextControlCandidates is the ordered probe list for the pagination
// control. New site variants get appended here, not branched in code.
var nextControlCandidates = []string{
	`a[rel="next"]`,
	`button[aria-label="Next page"]`,
	`a[aria-label="Next page"]`,
	`button[aria-label="Next"]`,
	`a[aria-label="Next"]`,
	`li.next a`,
	`a.next`,
	`button.next`,
	`.pagination__next`,
	`.pagination-next`,
	`[data-hook="pagination-button-next"]`,
}

// overlayCloseCandidates are controls that dismiss modals blocking the
// pagination control. The escape key is the fallback when none match.
var overlayCloseCandidates = []string{
	`[aria-label="Close"]`,
	`button.close`,
	`.modal-close`,
	`.popup-close`,
	`[data-dismiss="modal"]`,
}

const maxClickAttempts = 3

// growthThreshold is the relative height increase that counts as new
// lazy-loaded content during settle.
const growthThreshold = 1.10

// AdvanceResult reports one pagination attempt.
type AdvanceResult struct {
	Success bool
	HasNext bool
	Err     error
}

// Navigator drives URL navigation, lazy-load settling, and next-page
// detection against a single rendered page.
type Navigator struct {
	page browser.Page
	cfg  *config.Config

	sleep func(time.Duration)
}

// NewNavigator builds a navigator over page.
func NewNavigator(page browser.Page, cfg *config.Config) *Navigator {
	return &Navigator{
		page:  page,
		cfg:   cfg,
		sleep: time.Sleep,
	}
}

// Navigate loads url and reports success. Success requires a response
// with status below 400; any error or missing response is false, never
// an escape.
func (n *Navigator) Navigate(ctx context.Context, url string) bool {
	slog.Info("navigating", slog.String("url", url))
	status, err := n.page.Navigate(ctx, url)
	if err != nil {
		slog.Error("navigation failed", slog.String("url", url), slog.Any("error", err))
		return false
	}
	if status >= http.StatusBadRequest {
		slog.Error("navigation returned error status",
			slog.String("url", url),
			slog.Int("status", status),
		)
		return false
	}
	if err := n.page.WaitReady(ctx); err != nil {
		slog.Warn("document ready wait failed", slog.Any("error", err))
	}
	slog.Debug("navigation complete", slog.String("url", url), slog.Int("status", status))
	return true
}

// Settle triggers one lazy-load pass: scroll to bottom, pause, pause
// again if the page grew materially, then scroll back to top. All
// evaluation errors are logged and swallowed.
func (n *Navigator) Settle(ctx context.Context) {
	before, err := n.page.Height(ctx)
	if err != nil {
		slog.Debug("settle height probe failed", slog.Any("error", err))
	}

	if err := n.page.ScrollToBottom(ctx); err != nil {
		slog.Debug("settle scroll failed", slog.Any("error", err))
		return
	}
	n.sleep(n.cfg.SettlePause)

	after, err := n.page.Height(ctx)
	if err == nil && before > 0 && after > before*growthThreshold {
		slog.Debug("lazy content loaded",
			slog.Float64("height_before", before),
			slog.Float64("height_after", after),
		)
		n.sleep(n.cfg.SettlePause)
	}

	if err := n.page.ScrollToTop(ctx); err != nil {
		slog.Debug("settle scroll to top failed", slog.Any("error", err))
	}
	n.sleep(n.cfg.SettlePause)

	if err := n.page.WaitIdle(ctx, n.cfg.IdleTimeout); err != nil {
		slog.Debug("network idle wait failed", slog.Any("error", err))
	}
}

// HasNextPage reports whether a usable pagination control exists.
func (n *Navigator) HasNextPage(ctx context.Context) bool {
	_, ok := n.findNextControl(ctx)
	return ok
}

// Advance dismisses blocking overlays, clicks the next control with
// bounded attempts, and re-evaluates whether more pages remain. Fails
// closed: no control or exhausted clicks yield Success=false.
func (n *Navigator) Advance(ctx context.Context) AdvanceResult {
	n.dismissOverlays(ctx)

	sel, ok := n.findNextControl(ctx)
	if !ok {
		return AdvanceResult{Err: fmt.Errorf("no usable next-page control found")}
	}

	var clickErr error
	for attempt := 1; attempt <= maxClickAttempts; attempt++ {
		clickErr = n.page.Click(ctx, sel)
		if clickErr == nil {
			break
		}
		slog.Warn("next-page click failed",
			slog.String("selector", sel),
			slog.Int("attempt", attempt),
			slog.Any("error", clickErr),
		)
		n.dismissOverlays(ctx)
	}
	if clickErr != nil {
		return AdvanceResult{Err: fmt.Errorf("click next control %q: %w", sel, clickErr)}
	}

	if err := n.page.WaitReady(ctx); err != nil {
		slog.Debug("post-click ready wait failed", slog.Any("error", err))
	}

	return AdvanceResult{Success: true, HasNext: n.HasNextPage(ctx)}
}

// findNextControl returns the first candidate that is visible and not
// disabled.
func (n *Navigator) findNextControl(ctx context.Context) (string, bool) {
	for _, sel := range nextControlCandidates {
		visible, err := n.page.IsVisible(ctx, sel)
		if err != nil {
			slog.Debug("visibility probe failed", slog.String("selector", sel), slog.Any("error", err))
			continue
		}
		if !visible || n.controlDisabled(ctx, sel) {
			continue
		}
		return sel, true
	}
	return "", false
}

// controlDisabled checks the three disabled signals: the disabled
// attribute, a disabled class token, and aria-disabled="true".
func (n *Navigator) controlDisabled(ctx context.Context, sel string) bool {
	if _, present, err := n.page.Attribute(ctx, sel, "disabled"); err == nil && present {
		return true
	}
	if class, present, err := n.page.Attribute(ctx, sel, "class"); err == nil && present {
		for _, token := range strings.Fields(class) {
			if token == "disabled" {
				return true
			}
		}
	}
	if aria, present, err := n.page.Attribute(ctx, sel, "aria-disabled"); err == nil && present && aria == "true" {
		return true
	}
	return false
}

func (n *Navigator) dismissOverlays(ctx context.Context) {
	for _, sel := range overlayCloseCandidates {
		visible, err := n.page.IsVisible(ctx, sel)
		if err != nil || !visible {
			continue
		}
		if err := n.page.Click(ctx, sel); err == nil {
			slog.Debug("dismissed overlay", slog.String("selector", sel))
			return
		}
	}
	if err := n.page.PressEscape(ctx); err != nil {
		slog.Debug("escape keypress failed", slog.Any("error", err))
	}
}
