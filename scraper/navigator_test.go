package scraper

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/mferrazlima/go-scrape-reviews/config"
)

// fakePage is an in-memory browser.Page. It models a sequence of
// rendered pages; clicking the configured next selector advances to
// the following one.
type fakePage struct {
	pages []fakePageState
	index int

	nextSelector string
	navStatus    int
	navErr       error

	clicks  []string
	escapes int
	navs    []string
}

type fakePageState struct {
	html       string
	htmlErr    error
	visible    map[string]bool
	attrs      map[string]map[string]string
	failClicks map[string]int
	heights    []float64
	heightIdx  int
}

func (f *fakePage) current() *fakePageState {
	return &f.pages[f.index]
}

func (f *fakePage) Navigate(ctx context.Context, url string) (int, error) {
	f.navs = append(f.navs, url)
	if f.navErr != nil {
		return 0, f.navErr
	}
	if f.navStatus == 0 {
		return 200, nil
	}
	return f.navStatus, nil
}

func (f *fakePage) WaitReady(ctx context.Context) error                 { return nil }
func (f *fakePage) WaitIdle(ctx context.Context, d time.Duration) error { return nil }
func (f *fakePage) ScrollToBottom(ctx context.Context) error            { return nil }
func (f *fakePage) ScrollToTop(ctx context.Context) error               { return nil }

func (f *fakePage) HTML(ctx context.Context) (string, error) {
	if err := f.current().htmlErr; err != nil {
		return "", err
	}
	return f.current().html, nil
}

func (f *fakePage) Height(ctx context.Context) (float64, error) {
	state := f.current()
	if state.heightIdx < len(state.heights) {
		h := state.heights[state.heightIdx]
		state.heightIdx++
		return h, nil
	}
	return 1000, nil
}

func (f *fakePage) IsVisible(ctx context.Context, sel string) (bool, error) {
	return f.current().visible[sel], nil
}

func (f *fakePage) Attribute(ctx context.Context, sel, name string) (string, bool, error) {
	attrs, ok := f.current().attrs[sel]
	if !ok {
		return "", false, nil
	}
	value, ok := attrs[name]
	return value, ok, nil
}

func (f *fakePage) Click(ctx context.Context, sel string) error {
	f.clicks = append(f.clicks, sel)
	state := f.current()
	if remaining := state.failClicks[sel]; remaining > 0 {
		state.failClicks[sel] = remaining - 1
		return errors.New("element not clickable")
	}
	if sel == f.nextSelector && f.index+1 < len(f.pages) {
		f.index++
	}
	return nil
}

func (f *fakePage) PressEscape(ctx context.Context) error {
	f.escapes++
	return nil
}

func testConfig() *config.Config {
	cfg := config.DefaultConfig()
	cfg.TargetURL = "https://reviews.example.com/product/1"
	cfg.Delay = 0
	cfg.SettlePause = 0
	cfg.RetryBackoff = time.Millisecond
	cfg.RetryBackoffMax = 2 * time.Millisecond
	return cfg
}

func newTestNavigator(page *fakePage) (*Navigator, *[]time.Duration) {
	nav := NewNavigator(page, testConfig())
	var slept []time.Duration
	nav.sleep = func(d time.Duration) { slept = append(slept, d) }
	return nav, &slept
}

func singlePage(state fakePageState) *fakePage {
	if state.visible == nil {
		state.visible = map[string]bool{}
	}
	return &fakePage{pages: []fakePageState{state}}
}

func TestNavigateSuccess(t *testing.T) {
	page := singlePage(fakePageState{})
	nav, _ := newTestNavigator(page)

	if !nav.Navigate(context.Background(), "https://reviews.example.com") {
		t.Fatal("expected success for 200 response")
	}
}

func TestNavigateErrorStatus(t *testing.T) {
	page := singlePage(fakePageState{})
	page.navStatus = 404
	nav, _ := newTestNavigator(page)

	if nav.Navigate(context.Background(), "https://reviews.example.com") {
		t.Fatal("status 404 should fail navigation")
	}
}

func TestNavigateErrorNeverEscapes(t *testing.T) {
	page := singlePage(fakePageState{})
	page.navErr = errors.New("net::ERR_CONNECTION_REFUSED")
	nav, _ := newTestNavigator(page)

	if nav.Navigate(context.Background(), "https://reviews.example.com") {
		t.Fatal("navigation error should report false")
	}
}

func TestSettlePausesExtraOnGrowth(t *testing.T) {
	page := singlePage(fakePageState{heights: []float64{1000, 1500}})
	nav, slept := newTestNavigator(page)
	nav.cfg.SettlePause = 100 * time.Millisecond

	nav.Settle(context.Background())

	// Bottom pause, growth pause, top pause.
	if len(*slept) != 3 {
		t.Fatalf("pauses=%d, want 3 when height grows >10%%", len(*slept))
	}
}

func TestSettleNoGrowthSkipsExtraPause(t *testing.T) {
	page := singlePage(fakePageState{heights: []float64{1000, 1050}})
	nav, slept := newTestNavigator(page)
	nav.cfg.SettlePause = 100 * time.Millisecond

	nav.Settle(context.Background())

	if len(*slept) != 2 {
		t.Fatalf("pauses=%d, want 2 when height stays within 10%%", len(*slept))
	}
}

func TestHasNextPage(t *testing.T) {
	tests := []struct {
		name     string
		state    fakePageState
		expected bool
	}{
		{
			name: "visible enabled control",
			state: fakePageState{
				visible: map[string]bool{`a[rel="next"]`: true},
			},
			expected: true,
		},
		{
			name:     "no control at all",
			state:    fakePageState{visible: map[string]bool{}},
			expected: false,
		},
		{
			name: "disabled attribute",
			state: fakePageState{
				visible: map[string]bool{`a[rel="next"]`: true},
				attrs: map[string]map[string]string{
					`a[rel="next"]`: {"disabled": ""},
				},
			},
			expected: false,
		},
		{
			name: "disabled class token",
			state: fakePageState{
				visible: map[string]bool{`button.next`: true},
				attrs: map[string]map[string]string{
					`button.next`: {"class": "next disabled"},
				},
			},
			expected: false,
		},
		{
			name: "class containing but not equal to disabled",
			state: fakePageState{
				visible: map[string]bool{`button.next`: true},
				attrs: map[string]map[string]string{
					`button.next`: {"class": "next not-disabled-yet"},
				},
			},
			expected: true,
		},
		{
			name: "aria-disabled true",
			state: fakePageState{
				visible: map[string]bool{`a.next`: true},
				attrs: map[string]map[string]string{
					`a.next`: {"aria-disabled": "true"},
				},
			},
			expected: false,
		},
		{
			name: "first candidate disabled, later candidate usable",
			state: fakePageState{
				visible: map[string]bool{
					`a[rel="next"]`: true,
					`a.next`:        true,
				},
				attrs: map[string]map[string]string{
					`a[rel="next"]`: {"disabled": ""},
				},
			},
			expected: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			nav, _ := newTestNavigator(singlePage(tt.state))
			if got := nav.HasNextPage(context.Background()); got != tt.expected {
				t.Errorf("HasNextPage() = %v, want %v", got, tt.expected)
			}
		})
	}
}

func TestAdvanceClicksNextControl(t *testing.T) {
	page := &fakePage{
		nextSelector: `a[rel="next"]`,
		pages: []fakePageState{
			{visible: map[string]bool{`a[rel="next"]`: true}},
			{visible: map[string]bool{}},
		},
	}
	nav, _ := newTestNavigator(page)

	result := nav.Advance(context.Background())
	if !result.Success {
		t.Fatalf("advance failed: %v", result.Err)
	}
	if result.HasNext {
		t.Fatal("final page should report no further pages")
	}
	if page.index != 1 {
		t.Fatalf("page index=%d, want 1", page.index)
	}
}

func TestAdvanceRetriesClicks(t *testing.T) {
	page := &fakePage{
		nextSelector: `a[rel="next"]`,
		pages: []fakePageState{
			{
				visible:    map[string]bool{`a[rel="next"]`: true},
				failClicks: map[string]int{`a[rel="next"]`: 2},
			},
			{visible: map[string]bool{}},
		},
	}
	nav, _ := newTestNavigator(page)

	result := nav.Advance(context.Background())
	if !result.Success {
		t.Fatalf("advance should succeed on the third click: %v", result.Err)
	}
	if page.index != 1 {
		t.Fatalf("page index=%d, want 1", page.index)
	}
}

func TestAdvanceFailsClosedAfterClickAttempts(t *testing.T) {
	page := &fakePage{
		nextSelector: `a[rel="next"]`,
		pages: []fakePageState{
			{
				visible:    map[string]bool{`a[rel="next"]`: true},
				failClicks: map[string]int{`a[rel="next"]`: maxClickAttempts},
			},
		},
	}
	nav, _ := newTestNavigator(page)

	result := nav.Advance(context.Background())
	if result.Success || result.HasNext {
		t.Fatal("exhausted clicks should fail closed")
	}
	if result.Err == nil {
		t.Fatal("failed advance should carry a descriptive error")
	}
}

func TestAdvanceNoControl(t *testing.T) {
	nav, _ := newTestNavigator(singlePage(fakePageState{}))

	result := nav.Advance(context.Background())
	if result.Success || result.HasNext || result.Err == nil {
		t.Fatalf("advance without a control should fail closed, got %+v", result)
	}
}

func TestAdvanceDismissesOverlayFirst(t *testing.T) {
	page := &fakePage{
		nextSelector: `a[rel="next"]`,
		pages: []fakePageState{
			{
				visible: map[string]bool{
					`a[rel="next"]`:        true,
					`[aria-label="Close"]`: true,
				},
			},
			{visible: map[string]bool{}},
		},
	}
	nav, _ := newTestNavigator(page)

	result := nav.Advance(context.Background())
	if !result.Success {
		t.Fatalf("advance failed: %v", result.Err)
	}
	if len(page.clicks) < 2 || page.clicks[0] != `[aria-label="Close"]` {
		t.Fatalf("clicks=%v, want overlay close before next control", page.clicks)
	}
}

func TestAdvanceEscapeFallbackWhenNoOverlayControl(t *testing.T) {
	page := &fakePage{
		nextSelector: `a[rel="next"]`,
		pages: []fakePageState{
			{visible: map[string]bool{`a[rel="next"]`: true}},
			{visible: map[string]bool{}},
		},
	}
	nav, _ := newTestNavigator(page)

	nav.Advance(context.Background())
	if page.escapes == 0 {
		t.Fatal("missing overlay controls should fall back to escape")
	}
}
