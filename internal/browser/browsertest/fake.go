// Package browsertest provides an in-memory Page implementation for tests
// that exercise session, adapter, dispatch and quota logic without a real
// browser.
package browsertest

import (
	"context"
	"fmt"
	"sync"

	"github.com/mxkodo/pubcast/internal/browser"
)

// key flattens a selector into a map key.
func key(sel browser.Selector) string {
	return string(sel.By) + ":" + sel.Value
}

// FakePage is a scriptable browser.Page. Tests configure which selectors
// exist, what text they carry, and which operations fail; the fake records
// every mutation so assertions can replay the interaction.
//
// All methods are safe for concurrent use; the dispatcher tests drive
// several fakes from one errgroup.
type FakePage struct {
	mu sync.Mutex

	// URL is what CurrentURL returns. Navigate sets it; tests may also
	// set NavigateURLOverride to simulate a redirect (a login that lands
	// on the dashboard, or one bounced back to the login page).
	URL string
	// ClickURLOverride, when set, replaces URL on the next Click. This is
	// how a fake models the post-submit redirect.
	ClickURLOverride string

	// Existing marks selectors that Exists reports as interactable.
	Existing map[string]bool
	// Texts maps selectors to the visible text Text returns. When
	// TextSequence has entries for a selector they are consumed first,
	// one per call, which models a counter that changes between reads.
	Texts        map[string]string
	TextSequence map[string][]string

	// HTML is returned by Content. PNG is returned by Screenshot.
	HTML string
	PNG  []byte

	// Errs injects a failure for a named operation: "navigate", "reload",
	// "url", "exists", "fill", "click", "text", "content", "screenshot",
	// "close".
	Errs map[string]error

	// Recorded interactions.
	Navigations []string
	Reloads     int
	Fills       map[string]string
	Clicks      []string
	CloseCalls  int

	// OnReload, when set, runs on each Reload while the lock is held.
	// Quota tests use it to advance TextSequence state.
	OnReload func(f *FakePage)
	// OnClick runs on each successful Click, after recording, with the
	// clicked selector.
	OnClick func(f *FakePage, sel browser.Selector)
}

// NewFakePage returns an empty fake at the given URL.
func NewFakePage(url string) *FakePage {
	return &FakePage{
		URL:          url,
		Existing:     make(map[string]bool),
		Texts:        make(map[string]string),
		TextSequence: make(map[string][]string),
		Errs:         make(map[string]error),
		Fills:        make(map[string]string),
	}
}

// AddElement marks a selector interactable, optionally with visible text.
func (f *FakePage) AddElement(sel browser.Selector, text string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Existing[key(sel)] = true
	if text != "" {
		f.Texts[key(sel)] = text
	}
}

// QueueText appends to the per-call text sequence for a selector.
func (f *FakePage) QueueText(sel browser.Selector, texts ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Existing[key(sel)] = true
	f.TextSequence[key(sel)] = append(f.TextSequence[key(sel)], texts...)
}

// FailWith injects err for the named operation.
func (f *FakePage) FailWith(op string, err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Errs[op] = err
}

func (f *FakePage) err(op string) error {
	if err, ok := f.Errs[op]; ok {
		return err
	}
	return nil
}

func (f *FakePage) Navigate(ctx context.Context, url string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("navigate"); err != nil {
		return err
	}
	f.Navigations = append(f.Navigations, url)
	f.URL = url
	return nil
}

func (f *FakePage) Reload(ctx context.Context) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("reload"); err != nil {
		return err
	}
	f.Reloads++
	if f.OnReload != nil {
		f.OnReload(f)
	}
	return nil
}

func (f *FakePage) CurrentURL(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("url"); err != nil {
		return "", err
	}
	return f.URL, nil
}

func (f *FakePage) Exists(ctx context.Context, sel browser.Selector) (bool, error) {
	if err := ctx.Err(); err != nil {
		return false, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("exists"); err != nil {
		return false, err
	}
	return f.Existing[key(sel)], nil
}

func (f *FakePage) Fill(ctx context.Context, sel browser.Selector, value string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("fill"); err != nil {
		return err
	}
	if !f.Existing[key(sel)] {
		return fmt.Errorf("fill: no element for %s", key(sel))
	}
	f.Fills[key(sel)] = value
	return nil
}

func (f *FakePage) Click(ctx context.Context, sel browser.Selector) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("click"); err != nil {
		return err
	}
	if !f.Existing[key(sel)] {
		return fmt.Errorf("click: no element for %s", key(sel))
	}
	f.Clicks = append(f.Clicks, key(sel))
	if f.ClickURLOverride != "" {
		f.URL = f.ClickURLOverride
		f.ClickURLOverride = ""
	}
	if f.OnClick != nil {
		f.OnClick(f, sel)
	}
	return nil
}

func (f *FakePage) Text(ctx context.Context, sel browser.Selector) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("text"); err != nil {
		return "", err
	}
	if seq := f.TextSequence[key(sel)]; len(seq) > 0 {
		head := seq[0]
		if len(seq) > 1 {
			f.TextSequence[key(sel)] = seq[1:]
		}
		return head, nil
	}
	text, ok := f.Texts[key(sel)]
	if !ok {
		return "", fmt.Errorf("text: no element for %s", key(sel))
	}
	return text, nil
}

func (f *FakePage) Content(ctx context.Context) (string, error) {
	if err := ctx.Err(); err != nil {
		return "", err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("content"); err != nil {
		return "", err
	}
	return f.HTML, nil
}

func (f *FakePage) Screenshot(ctx context.Context) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("screenshot"); err != nil {
		return nil, err
	}
	if f.PNG == nil {
		return []byte("fake-png"), nil
	}
	return f.PNG, nil
}

func (f *FakePage) Close(ctx context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if err := f.err("close"); err != nil {
		return err
	}
	f.CloseCalls++
	return nil
}

// Factory returns a DriverFactory that always hands out this fake.
func (f *FakePage) Factory() browser.DriverFactory {
	return func(ctx context.Context, spec browser.LaunchSpec) (browser.Page, error) {
		return f, nil
	}
}

// FailingFactory returns a DriverFactory whose launch always fails.
func FailingFactory(err error) browser.DriverFactory {
	return func(ctx context.Context, spec browser.LaunchSpec) (browser.Page, error) {
		return nil, err
	}
}
