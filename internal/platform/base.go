package platform

import (
	"context"
	"strings"
	"sync"

	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
)

// siteProfile is the per-target configuration the shared base behavior is
// parameterized over: the login form, the menu paths, and the locator
// candidates for the quota widgets. Adapters are mostly a siteProfile plus
// the capability methods their target actually supports.
type siteProfile struct {
	loginForm browser.LoginForm

	profilePath  string
	schedulePath string
	diaryPath    string
	counterPath  string

	counterLocs []browser.Selector
	refreshLocs []browser.Selector

	// errorMarkers are page-text fragments that mean a save was rejected
	// even though no error was thrown.
	errorMarkers []string
}

// base is the shared behavior object every adapter composes over: session
// ownership, the login flow, navigation with settle, outcome verification
// and counter reads. It also serializes the adapter's operations, because
// the underlying page is a single-threaded resource.
type base struct {
	target  schemas.TargetDescriptor
	cred    schemas.Credential
	site    siteProfile
	session *browser.Controller
	logger  *zap.Logger

	mu sync.Mutex
}

func newBase(deps Deps, site siteProfile) *base {
	return &base{
		target:  deps.Target,
		cred:    deps.Credential,
		site:    site,
		session: browser.NewController(deps.Target, deps.Spec, deps.Driver, deps.Logger),
		logger:  deps.Logger.Named("adapter").With(zap.String("target", deps.Target.Name)),
	}
}

func (b *base) Name() string { return b.target.Name }

func (b *base) Capabilities() schemas.CapabilitySet {
	return b.target.Capabilities
}

func (b *base) Login(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.Authenticate(ctx, b.cred, b.site.loginForm)
}

func (b *base) Screenshot(ctx context.Context) ([]byte, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	page, err := b.session.Page()
	if err != nil {
		return nil, err
	}
	return page.Screenshot(ctx)
}

func (b *base) Close(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.session.Close(ctx)
}

// unsupported is the uniform answer for capabilities this target lacks.
func (b *base) unsupported(op string) error {
	return schemas.Faultf(schemas.KindUnsupported, op, "%s does not support this capability", b.target.Name)
}

// authed returns the page and resolver, enforcing call ordering. No page
// interaction happens before a successful login.
func (b *base) authed() (browser.Page, *browser.Resolver, error) {
	page, err := b.session.Page()
	if err != nil {
		return nil, nil, err
	}
	resolver, err := b.session.Resolver()
	if err != nil {
		return nil, nil, err
	}
	return page, resolver, nil
}

// pageURL joins a menu path onto the target's base URL. Absolute paths pass
// through unchanged.
func (b *base) pageURL(path string) string {
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	return strings.TrimSuffix(b.target.BaseURL, "/") + "/" + strings.TrimPrefix(path, "/")
}

// open navigates to a menu path and waits out the client-side render.
func (b *base) open(ctx context.Context, page browser.Page, path string) error {
	if err := page.Navigate(ctx, b.pageURL(path)); err != nil {
		b.session.Invalidate()
		return err
	}
	return b.session.Settle(ctx)
}

// fillRole resolves a semantic role and fills it. A missing optional role
// is skipped; a missing required role is an UnparsableState fault because
// the page no longer has the shape this adapter was written against.
func (b *base) fillRole(ctx context.Context, page browser.Page, resolver *browser.Resolver, op, role string, candidates []browser.Selector, value string, required bool) error {
	if value == "" && !required {
		return nil
	}
	ref, err := resolver.Resolve(ctx, role, candidates)
	if err != nil {
		return err
	}
	if ref == nil {
		if !required {
			b.logger.Debug("Optional field absent, skipping.", zap.String("role", role))
			return nil
		}
		return schemas.Faultf(schemas.KindUnparsableState, op, "role %q not found on page", role)
	}
	return page.Fill(ctx, ref.Selector, value)
}

// clickRole resolves a semantic role and clicks it, then settles.
func (b *base) clickRole(ctx context.Context, page browser.Page, resolver *browser.Resolver, op, role string, candidates []browser.Selector) error {
	ref, err := resolver.Resolve(ctx, role, candidates)
	if err != nil {
		return err
	}
	if ref == nil {
		return schemas.Faultf(schemas.KindUnparsableState, op, "role %q not found on page", role)
	}
	if err := page.Click(ctx, ref.Selector); err != nil {
		return err
	}
	return b.session.Settle(ctx)
}

// verifyOutcome inspects the post-action page instead of trusting the lack
// of a thrown error. A URL bounced to an error page or a known rejection
// marker in the visible text both count as failure.
func (b *base) verifyOutcome(ctx context.Context, page browser.Page, op string) error {
	currentURL, err := page.CurrentURL(ctx)
	if err != nil {
		return err
	}
	if strings.Contains(strings.ToLower(currentURL), "error") {
		return schemas.Faultf(schemas.KindUnparsableState, op, "landed on error page %q", currentURL)
	}
	if len(b.site.errorMarkers) == 0 {
		return nil
	}
	html, err := page.Content(ctx)
	if err != nil {
		return err
	}
	text := browser.VisibleText(html)
	for _, marker := range b.site.errorMarkers {
		if browser.ContainsMarker(text, []string{marker}) {
			return schemas.Faultf(schemas.KindUnparsableState, op, "page reports %q after save", marker)
		}
	}
	return nil
}

// readCounter loads the counter page and parses the quota text. When the
// page is already showing it forces a reload instead, because the rendered
// number can be stale after a refresh action. A counter the page no longer
// renders in the expected shape comes back Unknown with a nil error; only
// page-level failures are errors.
func (b *base) readCounter(ctx context.Context) (schemas.Counter, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	page, resolver, err := b.authed()
	if err != nil {
		return schemas.Counter{}, err
	}
	counterURL := b.pageURL(b.site.counterPath)
	current, err := page.CurrentURL(ctx)
	if err != nil {
		return schemas.Counter{}, err
	}
	if current == counterURL {
		if err := page.Reload(ctx); err != nil {
			b.session.Invalidate()
			return schemas.Counter{}, err
		}
		if err := b.session.Settle(ctx); err != nil {
			return schemas.Counter{}, err
		}
	} else if err := b.open(ctx, page, b.site.counterPath); err != nil {
		return schemas.Counter{}, err
	}
	return b.readCounterOnPage(ctx, page, resolver)
}

// readCounterOnPage parses the counter from the already-loaded page. The
// quota loop uses it after a reload to re-read without a full navigation.
func (b *base) readCounterOnPage(ctx context.Context, page browser.Page, resolver *browser.Resolver) (schemas.Counter, error) {
	ref, err := resolver.Resolve(ctx, "quota counter", b.site.counterLocs)
	if err != nil {
		return schemas.Counter{}, err
	}
	if ref != nil {
		text, terr := page.Text(ctx, ref.Selector)
		if terr != nil {
			return schemas.Counter{}, terr
		}
		if c := ParseCounter(text); c.Known {
			return c, nil
		}
	}
	// The dedicated element is gone or unparsable; scan the whole page
	// before declaring the state unreadable.
	html, err := page.Content(ctx)
	if err != nil {
		return schemas.Counter{}, err
	}
	return ParseCounter(browser.VisibleText(html)), nil
}

// triggerRefresh clicks the refresh control on the counter page. Any
// confirm dialog the target raises is accepted by the page's standing
// dialog policy, so this never blocks.
func (b *base) triggerRefresh(ctx context.Context) error {
	b.mu.Lock()
	defer b.mu.Unlock()
	page, resolver, err := b.authed()
	if err != nil {
		return err
	}
	return b.clickRole(ctx, page, resolver, "platform.trigger_refresh", "refresh button", b.site.refreshLocs)
}
