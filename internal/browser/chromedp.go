package browser

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/chromedp/cdproto/emulation"
	"github.com/chromedp/cdproto/fetch"
	cdppage "github.com/chromedp/cdproto/page"
	"github.com/chromedp/chromedp"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
)

// evasionScript runs before any page script and hides the most common
// automation tells. Ported from the init scripts the target back offices are
// known to check against.
const evasionScript = `
Object.defineProperty(navigator, 'webdriver', { get: () => undefined });
window.navigator.chrome = { runtime: {}, loadTimes: function() {}, csi: function() {}, app: {} };
Object.defineProperty(navigator, 'plugins', { get: () => [1, 2, 3, 4, 5] });
Object.defineProperty(navigator, 'languages', { get: () => ['ja-JP', 'ja', 'en-US', 'en'] });
`

// cdpPage implements Page on a chromedp-managed Chromium tab. One cdpPage
// owns one exec allocator and one browser context; Close tears both down in
// reverse-acquisition order.
type cdpPage struct {
	ctx         context.Context
	cancel      context.CancelFunc
	allocCancel context.CancelFunc
	spec        LaunchSpec
	logger      *zap.Logger

	closeOnce sync.Once
	closeErr  error
}

// NewChromedpFactory returns the production DriverFactory.
func NewChromedpFactory(logger *zap.Logger) DriverFactory {
	return func(ctx context.Context, spec LaunchSpec) (Page, error) {
		return launchChromedp(ctx, spec, logger.Named("driver"))
	}
}

func launchChromedp(ctx context.Context, spec LaunchSpec, logger *zap.Logger) (Page, error) {
	opts := append([]chromedp.ExecAllocatorOption{}, chromedp.DefaultExecAllocatorOptions[:]...)
	opts = append(opts,
		chromedp.Flag("headless", spec.Headless),
		chromedp.NoSandbox,
		chromedp.Flag("disable-dev-shm-usage", true),
		chromedp.Flag("disable-blink-features", "AutomationControlled"),
		chromedp.UserAgent(spec.UserAgent),
		chromedp.WindowSize(spec.ViewportWidth, spec.ViewportHeight),
	)
	if spec.Proxy != nil {
		opts = append(opts, chromedp.ProxyServer(spec.Proxy.Server))
	}
	for _, arg := range spec.ExtraArgs {
		if name, value, found := strings.Cut(strings.TrimPrefix(arg, "--"), "="); found {
			opts = append(opts, chromedp.Flag(name, value))
		} else {
			opts = append(opts, chromedp.Flag(strings.TrimPrefix(arg, "--"), true))
		}
	}

	allocCtx, allocCancel := chromedp.NewExecAllocator(ctx, opts...)
	tabCtx, tabCancel := chromedp.NewContext(allocCtx)

	p := &cdpPage{
		ctx:         tabCtx,
		cancel:      tabCancel,
		allocCancel: allocCancel,
		spec:        spec,
		logger:      logger,
	}

	// Auto-accept every JavaScript dialog for the lifetime of the tab. The
	// accept must run on a fresh goroutine: the listener fires on the
	// event-handling goroutine, which must not issue CDP commands itself.
	chromedp.ListenTarget(tabCtx, func(ev interface{}) {
		switch e := ev.(type) {
		case *cdppage.EventJavascriptDialogOpening:
			logger.Debug("Auto-accepting dialog.", zap.String("message", e.Message))
			go func() {
				if err := chromedp.Run(tabCtx, cdppage.HandleJavaScriptDialog(true)); err != nil {
					logger.Warn("Failed to accept dialog.", zap.Error(err))
				}
			}()
		case *fetch.EventAuthRequired:
			go p.answerProxyAuth(e)
		case *fetch.EventRequestPaused:
			go func() {
				_ = chromedp.Run(tabCtx, fetch.ContinueRequest(e.RequestID))
			}()
		}
	})

	initTasks := chromedp.Tasks{
		chromedp.ActionFunc(func(c context.Context) error {
			_, err := cdppage.AddScriptToEvaluateOnNewDocument(evasionScript).Do(c)
			return err
		}),
		emulation.SetTimezoneOverride(spec.Timezone),
		emulation.SetLocaleOverride().WithLocale(spec.Locale),
	}
	if spec.Proxy != nil && spec.Proxy.Username != "" {
		// Credentialed proxies answer through the fetch domain.
		initTasks = append(initTasks, fetch.Enable().WithHandleAuthRequests(true))
	}

	launchCtx, cancel := context.WithTimeout(tabCtx, spec.NavigationTimeout)
	defer cancel()
	if err := chromedp.Run(launchCtx, initTasks); err != nil {
		p.Close(context.Background())
		return nil, schemas.NewFault(schemas.KindLaunchFailure, "browser.launch", err)
	}
	return p, nil
}

func (p *cdpPage) answerProxyAuth(ev *fetch.EventAuthRequired) {
	resp := &fetch.AuthChallengeResponse{
		Response: fetch.AuthChallengeResponseResponseProvideCredentials,
		Username: p.spec.Proxy.Username,
		Password: p.spec.Proxy.Password,
	}
	if err := chromedp.Run(p.ctx, fetch.ContinueWithAuth(ev.RequestID, resp)); err != nil {
		p.logger.Warn("Proxy auth answer failed.", zap.Error(err))
	}
}

// run executes actions bounded by both the page lifetime and the caller's
// context plus the given timeout.
func (p *cdpPage) run(ctx context.Context, timeout time.Duration, actions ...chromedp.Action) error {
	runCtx, cancel := context.WithTimeout(p.ctx, timeout)
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- chromedp.Run(runCtx, actions...) }()
	select {
	case err := <-done:
		if err != nil && runCtx.Err() != nil {
			return schemas.NewFault(schemas.KindTimeout, "browser.wait", err)
		}
		return err
	case <-ctx.Done():
		cancel()
		<-done
		return schemas.NewFault(schemas.KindTimeout, "browser.wait", ctx.Err())
	}
}

func (p *cdpPage) Navigate(ctx context.Context, url string) error {
	return p.run(ctx, p.spec.NavigationTimeout,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *cdpPage) Reload(ctx context.Context) error {
	return p.run(ctx, p.spec.NavigationTimeout,
		chromedp.Reload(),
		chromedp.WaitReady("body", chromedp.ByQuery),
	)
}

func (p *cdpPage) CurrentURL(ctx context.Context) (string, error) {
	var url string
	err := p.run(ctx, p.spec.ActionTimeout, chromedp.Location(&url))
	return url, err
}

// existsJS probes in one evaluate call whether a selector matches a visible,
// enabled element, so probing never mutates the page.
const existsJS = `(function(by, value) {
	let el = null;
	if (by === 'css') {
		el = document.querySelector(value);
	} else {
		const xp = by === 'text'
			? '//*[contains(normalize-space(text()), ' + JSON.stringify(value) + ')]'
			: value;
		el = document.evaluate(xp, document, null, XPathResult.FIRST_ORDERED_NODE_TYPE, null).singleNodeValue;
	}
	if (!el) return false;
	if (el.disabled) return false;
	const style = window.getComputedStyle(el);
	if (style.display === 'none' || style.visibility === 'hidden') return false;
	const rect = el.getBoundingClientRect();
	return rect.width > 0 && rect.height > 0;
})(%s, %s)`

func (p *cdpPage) Exists(ctx context.Context, sel Selector) (bool, error) {
	expr := fmt.Sprintf(existsJS, jsString(string(sel.By)), jsString(sel.Value))
	var found bool
	if err := p.run(ctx, p.spec.ActionTimeout, chromedp.Evaluate(expr, &found)); err != nil {
		return false, err
	}
	return found, nil
}

func (p *cdpPage) Fill(ctx context.Context, sel Selector, value string) error {
	selector, opt := cdpQuery(sel)
	return p.run(ctx, p.spec.ActionTimeout,
		chromedp.WaitVisible(selector, opt),
		chromedp.Clear(selector, opt),
		chromedp.SendKeys(selector, value, opt),
	)
}

func (p *cdpPage) Click(ctx context.Context, sel Selector) error {
	selector, opt := cdpQuery(sel)
	return p.run(ctx, p.spec.ActionTimeout,
		chromedp.WaitVisible(selector, opt),
		chromedp.Click(selector, opt),
	)
}

func (p *cdpPage) Text(ctx context.Context, sel Selector) (string, error) {
	selector, opt := cdpQuery(sel)
	var text string
	err := p.run(ctx, p.spec.ActionTimeout, chromedp.Text(selector, &text, opt))
	return text, err
}

func (p *cdpPage) Content(ctx context.Context) (string, error) {
	var html string
	err := p.run(ctx, p.spec.ActionTimeout, chromedp.OuterHTML("html", &html, chromedp.ByQuery))
	return html, err
}

func (p *cdpPage) Screenshot(ctx context.Context) ([]byte, error) {
	var buf []byte
	err := p.run(ctx, p.spec.ActionTimeout, chromedp.FullScreenshot(&buf, 90))
	return buf, err
}

func (p *cdpPage) Close(ctx context.Context) error {
	p.closeOnce.Do(func() {
		// Tab first, then the allocator that owns the browser process.
		p.cancel()
		p.allocCancel()
	})
	return p.closeErr
}

// cdpQuery maps a Selector onto a chromedp query. Text selectors become an
// XPath containment match resolved through DOM search.
func cdpQuery(sel Selector) (string, chromedp.QueryOption) {
	switch sel.By {
	case ByXPath:
		return sel.Value, chromedp.BySearch
	case ByText:
		return fmt.Sprintf(`//*[contains(normalize-space(text()), %s)]`, xpathString(sel.Value)), chromedp.BySearch
	default:
		return sel.Value, chromedp.ByQuery
	}
}

func jsString(s string) string {
	return fmt.Sprintf("%q", s)
}

// xpathString quotes a literal for XPath 1.0, which has no escape sequences.
func xpathString(s string) string {
	if !strings.Contains(s, `'`) {
		return "'" + s + "'"
	}
	if !strings.Contains(s, `"`) {
		return `"` + s + `"`
	}
	parts := strings.Split(s, `'`)
	quoted := make([]string, 0, len(parts)*2)
	for i, part := range parts {
		if i > 0 {
			quoted = append(quoted, `"'"`)
		}
		quoted = append(quoted, "'"+part+"'")
	}
	return "concat(" + strings.Join(quoted, ", ") + ")"
}
