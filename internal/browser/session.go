package browser

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/observability"
)

// State is the lifecycle position of a session controller.
type State string

const (
	StateUninitialized  State = "uninitialized"
	StateLaunching      State = "launching"
	StateLaunched       State = "launched"
	StateAuthenticating State = "authenticating"
	StateAuthenticated  State = "authenticated"
	StateErrored        State = "errored"
	StateClosed         State = "closed"
)

// ErrMissingLoginField is returned when neither the username nor password
// role resolves on the login page. No field is ever guessed.
var ErrMissingLoginField = errors.New("login form field not found")

// ErrControllerSpent is returned when a controller in Errored or Closed
// state is asked to do anything but Close. A new controller is required for
// the next attempt.
var ErrControllerSpent = errors.New("session controller is spent and must not be reused")

// LoginForm describes one target's login page: candidate selectors for the
// three roles plus the URL-marker heuristic that decides whether submission
// succeeded.
type LoginForm struct {
	Username []Selector
	Password []Selector
	Submit   []Selector
	// FailureMarkers are URL substrings that, post-submit, indicate the
	// login page or an error page is still showing. Defaults to
	// "login" and "error" when empty.
	FailureMarkers []string
	// SuccessMarker, when set, must appear in the post-submit URL. Used by
	// targets whose dashboard URL is a stronger signal than absence of a
	// failure marker.
	SuccessMarker string
}

var defaultFailureMarkers = []string{"login", "error"}

// Controller owns one browser-context lifetime for one target. It is not
// reentrant: exactly one adapter drives it, one operation at a time. After
// any error the controller is spent; Close is the only remaining valid call.
type Controller struct {
	id      string
	target  schemas.TargetDescriptor
	spec    LaunchSpec
	factory DriverFactory
	logger  *zap.Logger

	createdAt time.Time

	mu       sync.Mutex
	state    State
	page     Page
	resolver *Resolver
}

// NewController prepares a controller in Uninitialized state. Nothing is
// launched until Launch or Authenticate runs.
func NewController(target schemas.TargetDescriptor, spec LaunchSpec, factory DriverFactory, logger *zap.Logger) *Controller {
	id := uuid.New().String()
	return &Controller{
		id:        id,
		target:    target,
		spec:      spec,
		factory:   factory,
		logger:    logger.Named("session").With(zap.String("session_id", id), zap.String("target", target.Name)),
		createdAt: time.Now(),
		state:     StateUninitialized,
	}
}

// State returns the current lifecycle state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Info returns the log/evidence view of this session.
func (c *Controller) Info() schemas.SessionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return schemas.SessionInfo{
		ID:        c.id,
		Target:    c.target.Name,
		LoggedIn:  c.state == StateAuthenticated,
		CreatedAt: c.createdAt,
	}
}

// Launch acquires the browser context. Failure here is fatal for this run:
// the controller moves to Errored and is not retried automatically.
func (c *Controller) Launch(ctx context.Context) error {
	c.mu.Lock()
	switch c.state {
	case StateUninitialized:
		c.state = StateLaunching
	case StateErrored, StateClosed:
		c.mu.Unlock()
		return schemas.NewFault(schemas.KindLaunchFailure, "session.launch", ErrControllerSpent)
	default:
		c.mu.Unlock()
		return schemas.Faultf(schemas.KindLaunchFailure, "session.launch", "launch called in state %s", c.state)
	}
	c.mu.Unlock()

	c.logger.Info("Launching browser context.",
		zap.Bool("headless", c.spec.Headless),
		zap.Bool("proxied", c.spec.Proxy != nil))

	page, err := c.factory(ctx, c.spec)
	if err != nil {
		c.toErrored()
		if schemas.KindOf(err) == schemas.KindLaunchFailure {
			return err
		}
		return schemas.NewFault(schemas.KindLaunchFailure, "session.launch", err)
	}

	c.mu.Lock()
	c.page = page
	c.resolver = NewResolver(page, c.logger)
	c.state = StateLaunched
	c.mu.Unlock()
	return nil
}

// Authenticate performs the login flow: resolve the form roles, fill
// credentials, submit, and verify through the URL heuristic. A rejected
// credential is a reported outcome, not a panic; the controller still moves
// to Errored because a post-failure session must never be silently reused.
func (c *Controller) Authenticate(ctx context.Context, cred schemas.Credential, form LoginForm) error {
	if c.State() == StateUninitialized {
		if err := c.Launch(ctx); err != nil {
			return err
		}
	}

	c.mu.Lock()
	if c.state != StateLaunched {
		state := c.state
		c.mu.Unlock()
		if state == StateErrored || state == StateClosed {
			return schemas.NewFault(schemas.KindAuthenticationFailure, "session.authenticate", ErrControllerSpent)
		}
		return schemas.Faultf(schemas.KindAuthenticationFailure, "session.authenticate", "authenticate called in state %s", state)
	}
	c.state = StateAuthenticating
	page := c.page
	resolver := c.resolver
	c.mu.Unlock()

	c.logger.Info("Authenticating.",
		zap.String("login_url", c.target.LoginURL),
		zap.String("identifier", cred.Identifier),
		observability.Secret("secret"))

	if err := page.Navigate(ctx, c.target.LoginURL); err != nil {
		return c.failAuth(classify(err, "session.authenticate"))
	}
	if err := c.Settle(ctx); err != nil {
		return c.failAuth(err)
	}

	usernameRef, err := resolver.Resolve(ctx, "username field", form.Username)
	if err != nil {
		return c.failAuth(schemas.NewFault(schemas.KindTimeout, "session.authenticate", err))
	}
	passwordRef, rerr := resolver.Resolve(ctx, "password field", form.Password)
	if rerr != nil {
		return c.failAuth(schemas.NewFault(schemas.KindTimeout, "session.authenticate", rerr))
	}
	if usernameRef == nil || passwordRef == nil {
		return c.failAuth(schemas.NewFault(schemas.KindAuthenticationFailure, "session.authenticate", ErrMissingLoginField))
	}

	if err := page.Fill(ctx, usernameRef.Selector, cred.Identifier); err != nil {
		return c.failAuth(classify(err, "session.authenticate"))
	}
	if err := page.Fill(ctx, passwordRef.Selector, cred.Secret); err != nil {
		return c.failAuth(classify(err, "session.authenticate"))
	}

	submitRef, rerr := resolver.Resolve(ctx, "submit button", form.Submit)
	if rerr != nil {
		return c.failAuth(schemas.NewFault(schemas.KindTimeout, "session.authenticate", rerr))
	}
	if submitRef == nil {
		return c.failAuth(schemas.Faultf(schemas.KindAuthenticationFailure, "session.authenticate", "submit button not found"))
	}
	if err := page.Click(ctx, submitRef.Selector); err != nil {
		return c.failAuth(classify(err, "session.authenticate"))
	}
	if err := c.Settle(ctx); err != nil {
		return c.failAuth(err)
	}

	currentURL, err := page.CurrentURL(ctx)
	if err != nil {
		return c.failAuth(classify(err, "session.authenticate"))
	}
	if err := verifyLoginURL(currentURL, form); err != nil {
		return c.failAuth(err)
	}

	c.mu.Lock()
	c.state = StateAuthenticated
	c.mu.Unlock()
	c.logger.Info("Authenticated.", zap.String("url", currentURL))
	return nil
}

// verifyLoginURL applies the post-submit URL heuristic. It is the best
// signal these targets offer; false negatives are a known limitation.
func verifyLoginURL(currentURL string, form LoginForm) error {
	lower := strings.ToLower(currentURL)
	if form.SuccessMarker != "" {
		if !strings.Contains(lower, strings.ToLower(form.SuccessMarker)) {
			return schemas.Faultf(schemas.KindAuthenticationFailure, "session.authenticate",
				"post-login url %q lacks marker %q", currentURL, form.SuccessMarker)
		}
		return nil
	}
	markers := form.FailureMarkers
	if len(markers) == 0 {
		markers = defaultFailureMarkers
	}
	for _, m := range markers {
		if strings.Contains(lower, strings.ToLower(m)) {
			return schemas.Faultf(schemas.KindAuthenticationFailure, "session.authenticate",
				"still on %q after submit", currentURL)
		}
	}
	return nil
}

// Page returns the authenticated page. Any call before a successful
// Authenticate is an ordering error.
func (c *Controller) Page() (Page, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return nil, schemas.Faultf(schemas.KindNotAuthenticated, "session.page", "session state is %s", c.state)
	}
	return c.page, nil
}

// Resolver returns the locator resolver bound to the authenticated page.
func (c *Controller) Resolver() (*Resolver, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateAuthenticated {
		return nil, schemas.Faultf(schemas.KindNotAuthenticated, "session.resolver", "session state is %s", c.state)
	}
	return c.resolver, nil
}

// Settle pauses for the configured post-action delay, honoring cancellation.
func (c *Controller) Settle(ctx context.Context) error {
	if c.spec.SettleDelay <= 0 {
		return nil
	}
	t := time.NewTimer(c.spec.SettleDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return schemas.NewFault(schemas.KindTimeout, "session.settle", ctx.Err())
	}
}

// Invalidate moves an authenticated controller to Errored after a fatal
// capability failure so it cannot be reused. Adapters call it when a
// navigation or timeout error poisons the page.
func (c *Controller) Invalidate() {
	c.toErrored()
}

// Close releases the page and browser context. It runs on every exit path,
// is idempotent, and is the only valid transition out of Errored.
func (c *Controller) Close(ctx context.Context) error {
	c.mu.Lock()
	if c.state == StateClosed {
		c.mu.Unlock()
		return nil
	}
	page := c.page
	c.page = nil
	c.resolver = nil
	c.state = StateClosed
	c.mu.Unlock()

	if page == nil {
		return nil
	}
	c.logger.Debug("Closing browser session.")
	if err := page.Close(ctx); err != nil {
		return fmt.Errorf("closing session for %s: %w", c.target.Name, err)
	}
	return nil
}

func (c *Controller) failAuth(err error) error {
	c.toErrored()
	c.logger.Warn("Authentication failed.", zap.String("kind", string(schemas.KindOf(err))), zap.Error(err))
	return err
}

func (c *Controller) toErrored() {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.state != StateClosed {
		c.state = StateErrored
	}
}

// classify promotes driver errors into the fault taxonomy, preserving an
// existing classification.
func classify(err error, op string) error {
	if err == nil {
		return nil
	}
	if schemas.KindOf(err) != schemas.KindInternal {
		return err
	}
	if errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled) {
		return schemas.NewFault(schemas.KindTimeout, op, err)
	}
	return schemas.NewFault(schemas.KindInternal, op, err)
}
