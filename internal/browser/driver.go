// Package browser owns the boundary to the page-automation driver: the Page
// surface the rest of pubcast consumes, the locator resolver that finds UI
// roles through ranked candidate fallback, and the session controller that
// manages one authenticated browser-context lifetime per target.
package browser

import (
	"context"
	"time"

	"github.com/mxkodo/pubcast/internal/proxy"
)

// By is a selector strategy.
type By string

const (
	// ByCSS matches a CSS selector.
	ByCSS By = "css"
	// ByXPath matches an XPath expression.
	ByXPath By = "xpath"
	// ByText matches the first element whose visible text contains the value.
	ByText By = "text"
)

// Selector is one concrete way to find an element. Ordered lists of these
// form the fallback candidates for a semantic role.
type Selector struct {
	By    By     `json:"by" mapstructure:"by"`
	Value string `json:"value" mapstructure:"value"`
}

// CSS, XPath and Text are shorthand constructors for candidate lists.
func CSS(v string) Selector   { return Selector{By: ByCSS, Value: v} }
func XPath(v string) Selector { return Selector{By: ByXPath, Value: v} }
func Text(v string) Selector  { return Selector{By: ByText, Value: v} }

// LaunchSpec is everything the driver needs to open one browser context.
type LaunchSpec struct {
	Headless       bool
	UserAgent      string
	Locale         string
	Timezone       string
	ViewportWidth  int
	ViewportHeight int
	ExtraArgs      []string
	// Proxy is the optional egress for this context. Nil means direct.
	Proxy *proxy.Descriptor
	// NavigationTimeout bounds Navigate/Reload; ActionTimeout bounds
	// everything else. Both are mandatory: no wait in this package is
	// unbounded.
	NavigationTimeout time.Duration
	ActionTimeout     time.Duration
	// SettleDelay is the fixed pause after UI actions before the page is
	// trusted again; the targets render client-side.
	SettleDelay time.Duration
}

// Page is the capability surface pubcast consumes from the underlying
// page-automation driver. The core never depends on driver internals beyond
// this interface; tests substitute a fake.
//
// Dialogs (confirm/alert) raised by the page are auto-accepted by the
// implementation for the lifetime of the page, so no operation ever blocks
// on an unattended modal.
type Page interface {
	// Navigate loads a URL and waits for the document to become ready.
	Navigate(ctx context.Context, url string) error
	// Reload forces a fresh load of the current page, bypassing any stale
	// in-page state.
	Reload(ctx context.Context) error
	// CurrentURL returns the page's current location.
	CurrentURL(ctx context.Context) (string, error)
	// Exists reports whether the selector matches an interactable element:
	// present, visible, and not disabled. It never waits longer than the
	// given context allows and performs no page mutation.
	Exists(ctx context.Context, sel Selector) (bool, error)
	// Fill clears the matched field and types the value into it.
	Fill(ctx context.Context, sel Selector, value string) error
	// Click clicks the matched element.
	Click(ctx context.Context, sel Selector) error
	// Text returns the visible text of the matched element.
	Text(ctx context.Context, sel Selector) (string, error)
	// Content returns the full serialized HTML of the page.
	Content(ctx context.Context) (string, error)
	// Screenshot captures the full page as PNG bytes.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close releases the page and its browser context. Safe to call more
	// than once.
	Close(ctx context.Context) error
}

// DriverFactory opens one browser context and returns its page. The
// production factory launches a chromedp-managed Chromium; tests inject
// fakes through this seam.
type DriverFactory func(ctx context.Context, spec LaunchSpec) (Page, error)
