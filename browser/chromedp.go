package browser

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"
)

// Options configures the Chrome-backed page.
type Options struct {
	Headless  bool
	UserAgent string
	// Timeout bounds every individual page operation.
	Timeout time.Duration
}

// Chrome implements Page on top of a chromedp browser context.
type Chrome struct {
	allocCtx      context.Context
	browserCtx    context.Context
	cancelAlloc   context.CancelFunc
	cancelBrowser context.CancelFunc
	timeout       time.Duration
}

// NewChrome launches a browser and returns a single-page handle. The
// caller owns the handle and must Close it.
func NewChrome(ctx context.Context, opts Options) (*Chrome, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", opts.Headless),
		chromedp.Flag("disable-gpu", true),
		chromedp.Flag("no-sandbox", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
	)
	if opts.UserAgent != "" {
		allocOpts = append(allocOpts, chromedp.UserAgent(opts.UserAgent))
	}

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	c := &Chrome{
		allocCtx:      allocCtx,
		browserCtx:    browserCtx,
		cancelAlloc:   cancelAlloc,
		cancelBrowser: cancelBrowser,
		timeout:       timeout,
	}

	// Force the browser process to start now so a broken runtime
	// surfaces here instead of on the first navigation.
	startCtx, cancel := context.WithTimeout(browserCtx, timeout)
	defer cancel()
	if err := chromedp.Run(startCtx); err != nil {
		c.Close()
		return nil, fmt.Errorf("start browser: %w", err)
	}
	return c, nil
}

// Close tears down the browser process.
func (c *Chrome) Close() {
	if c.cancelBrowser != nil {
		c.cancelBrowser()
	}
	if c.cancelAlloc != nil {
		c.cancelAlloc()
	}
}

func (c *Chrome) run(ctx context.Context, actions ...chromedp.Action) error {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()
	return chromedp.Run(opCtx, actions...)
}

func (c *Chrome) opContext(ctx context.Context) (context.Context, context.CancelFunc) {
	if ctx == nil {
		ctx = context.Background()
	}
	merged, cancelDone := mergeDone(c.browserCtx, ctx)
	opCtx, cancelTimeout := context.WithTimeout(merged, c.timeout)
	return opCtx, func() {
		cancelTimeout()
		cancelDone()
	}
}

// mergeDone derives a context from base that is also cancelled when
// other is. chromedp actions must run on the browser context chain, so
// the caller's context can only be layered in by cancellation.
func mergeDone(base, other context.Context) (context.Context, context.CancelFunc) {
	merged, cancel := context.WithCancel(base)
	stop := make(chan struct{})
	go func() {
		select {
		case <-other.Done():
			cancel()
		case <-stop:
		}
	}()
	return merged, func() {
		close(stop)
		cancel()
	}
}

// Navigate loads url and reports the response status.
func (c *Chrome) Navigate(ctx context.Context, url string) (int, error) {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	resp, err := chromedp.RunResponse(opCtx, chromedp.Navigate(url))
	if err != nil {
		return 0, fmt.Errorf("navigate %s: %w", url, err)
	}
	if resp == nil {
		// In-page navigation or download; treat as missing response.
		return 0, fmt.Errorf("navigate %s: no response received", url)
	}
	return int(resp.Status), nil
}

// WaitReady blocks until the document body is ready.
func (c *Chrome) WaitReady(ctx context.Context) error {
	return c.run(ctx, chromedp.WaitReady("body", chromedp.ByQuery))
}

// WaitIdle polls document readiness for up to d. chromedp exposes no
// direct network-idle signal, so readiness plus a short quiet period is
// the observable proxy.
func (c *Chrome) WaitIdle(ctx context.Context, d time.Duration) error {
	opCtx, cancel := c.opContext(ctx)
	defer cancel()

	deadline := time.Now().Add(d)
	for {
		var state string
		if err := chromedp.Run(opCtx, chromedp.Evaluate(`document.readyState`, &state)); err != nil {
			return err
		}
		if state == "complete" {
			return nil
		}
		if time.Now().After(deadline) {
			slog.Debug("idle wait expired", slog.String("ready_state", state))
			return nil
		}
		select {
		case <-opCtx.Done():
			return opCtx.Err()
		case <-time.After(100 * time.Millisecond):
		}
	}
}

// HTML snapshots the rendered document.
func (c *Chrome) HTML(ctx context.Context) (string, error) {
	var html string
	if err := c.run(ctx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("snapshot html: %w", err)
	}
	return html, nil
}

// ScrollToBottom scrolls the window to the document end.
func (c *Chrome) ScrollToBottom(ctx context.Context) error {
	return c.run(ctx, chromedp.Evaluate(`window.scrollTo(0, document.body ? document.body.scrollHeight : 0)`, nil))
}

// ScrollToTop scrolls the window back to the origin.
func (c *Chrome) ScrollToTop(ctx context.Context) error {
	return c.run(ctx, chromedp.Evaluate(`window.scrollTo(0, 0)`, nil))
}

// Height reports the current document scroll height.
func (c *Chrome) Height(ctx context.Context) (float64, error) {
	var height float64
	if err := c.run(ctx, chromedp.Evaluate(`document.body ? document.body.scrollHeight : 0`, &height)); err != nil {
		return 0, err
	}
	return height, nil
}

// IsVisible reports whether the first match for sel is rendered.
func (c *Chrome) IsVisible(ctx context.Context, sel string) (bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return false;
		const style = window.getComputedStyle(el);
		if (style.display === 'none' || style.visibility === 'hidden') return false;
		const rect = el.getBoundingClientRect();
		return rect.width > 0 && rect.height > 0;
	})()`, strconv.Quote(sel))

	var visible bool
	if err := c.run(ctx, chromedp.Evaluate(script, &visible)); err != nil {
		return false, err
	}
	return visible, nil
}

// Attribute returns the named attribute of the first match for sel.
func (c *Chrome) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	script := fmt.Sprintf(`(() => {
		const el = document.querySelector(%s);
		if (!el) return null;
		const v = el.getAttribute(%s);
		return v === null ? null : String(v);
	})()`, strconv.Quote(sel), strconv.Quote(name))

	var value *string
	if err := c.run(ctx, chromedp.Evaluate(script, &value)); err != nil {
		return "", false, err
	}
	if value == nil {
		return "", false, nil
	}
	return *value, true, nil
}

// Click clicks the first visible match for sel.
func (c *Chrome) Click(ctx context.Context, sel string) error {
	return c.run(ctx, chromedp.Click(sel, chromedp.ByQuery, chromedp.NodeVisible))
}

// PressEscape sends an Escape keypress to the page.
func (c *Chrome) PressEscape(ctx context.Context) error {
	return c.run(ctx, chromedp.KeyEvent(kb.Escape))
}
