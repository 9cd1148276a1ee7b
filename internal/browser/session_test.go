package browser_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
	"github.com/mxkodo/pubcast/internal/browser/browsertest"
)

var testTarget = schemas.TargetDescriptor{
	Name:     "heavennet",
	BaseURL:  "https://admin.heaven.test",
	LoginURL: "https://admin.heaven.test/login",
}

var testCred = schemas.Credential{Identifier: "shop-001", Secret: "hunter2"}

func loginFakePage() *browsertest.FakePage {
	page := browsertest.NewFakePage("about:blank")
	page.AddElement(browser.CSS("#userid"), "")
	page.AddElement(browser.CSS("#passwd"), "")
	page.AddElement(browser.CSS("#loginBtn"), "")
	return page
}

func testForm() browser.LoginForm {
	return browser.LoginForm{
		Username:      []browser.Selector{browser.CSS("#userid")},
		Password:      []browser.Selector{browser.CSS("#passwd")},
		Submit:        []browser.Selector{browser.CSS("#loginBtn")},
		SuccessMarker: "H1Main.php",
	}
}

func newController(page *browsertest.FakePage) *browser.Controller {
	return browser.NewController(testTarget, browser.LaunchSpec{
		NavigationTimeout: time.Second,
		ActionTimeout:     time.Second,
	}, page.Factory(), zap.NewNop())
}

func TestAuthenticateSuccess(t *testing.T) {
	page := loginFakePage()
	page.ClickURLOverride = "https://admin.heaven.test/H1Main.php"
	c := newController(page)
	defer c.Close(context.Background())

	require.NoError(t, c.Authenticate(context.Background(), testCred, testForm()))
	assert.Equal(t, browser.StateAuthenticated, c.State())

	// The form got the real values.
	assert.Equal(t, "shop-001", page.Fills["css:#userid"])
	assert.Equal(t, "hunter2", page.Fills["css:#passwd"])
	assert.Equal(t, []string{"css:#loginBtn"}, page.Clicks)

	p, err := c.Page()
	require.NoError(t, err)
	assert.NotNil(t, p)

	info := c.Info()
	assert.True(t, info.LoggedIn)
	assert.Equal(t, "heavennet", info.Target)
}

func TestAuthenticateRejectedCredentials(t *testing.T) {
	page := loginFakePage()
	// Submit bounces straight back to the login page.
	page.ClickURLOverride = "https://admin.heaven.test/login?error=1"
	c := newController(page)
	defer c.Close(context.Background())

	err := c.Authenticate(context.Background(), testCred, testForm())
	require.Error(t, err)
	assert.Equal(t, schemas.KindAuthenticationFailure, schemas.KindOf(err))
	assert.Equal(t, browser.StateErrored, c.State())
}

func TestAuthenticateMissingLoginField(t *testing.T) {
	// A page with no recognizable form. Nothing is guessed.
	page := browsertest.NewFakePage("about:blank")
	c := newController(page)
	defer c.Close(context.Background())

	err := c.Authenticate(context.Background(), testCred, testForm())
	require.ErrorIs(t, err, browser.ErrMissingLoginField)
	assert.Equal(t, schemas.KindAuthenticationFailure, schemas.KindOf(err))
	assert.Equal(t, browser.StateErrored, c.State())
	assert.Empty(t, page.Fills, "no field was filled")
}

func TestAuthenticateTimeoutLeavesErroredAndCloseReleases(t *testing.T) {
	page := loginFakePage()
	page.FailWith("navigate", context.DeadlineExceeded)
	c := newController(page)

	err := c.Authenticate(context.Background(), testCred, testForm())
	require.Error(t, err)
	assert.Equal(t, schemas.KindTimeout, schemas.KindOf(err))
	assert.Equal(t, browser.StateErrored, c.State())

	// The failure path still releases the browser context.
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, page.CloseCalls)
	assert.Equal(t, browser.StateClosed, c.State())
}

func TestPageBeforeAuthenticate(t *testing.T) {
	c := newController(loginFakePage())
	defer c.Close(context.Background())

	_, err := c.Page()
	require.Error(t, err)
	assert.Equal(t, schemas.KindNotAuthenticated, schemas.KindOf(err))

	_, err = c.Resolver()
	require.Error(t, err)
	assert.Equal(t, schemas.KindNotAuthenticated, schemas.KindOf(err))
}

func TestErroredControllerIsNeverReused(t *testing.T) {
	page := loginFakePage()
	page.ClickURLOverride = "https://admin.heaven.test/login"
	c := newController(page)
	defer c.Close(context.Background())

	require.Error(t, c.Authenticate(context.Background(), testCred, testForm()))
	require.Equal(t, browser.StateErrored, c.State())

	err := c.Authenticate(context.Background(), testCred, testForm())
	require.ErrorIs(t, err, browser.ErrControllerSpent)
}

func TestLaunchFailureIsFatal(t *testing.T) {
	c := browser.NewController(testTarget, browser.LaunchSpec{},
		browsertest.FailingFactory(errors.New("no chromium available")), zap.NewNop())
	defer c.Close(context.Background())

	err := c.Authenticate(context.Background(), testCred, testForm())
	require.Error(t, err)
	assert.Equal(t, schemas.KindLaunchFailure, schemas.KindOf(err))
	assert.Equal(t, browser.StateErrored, c.State())
}

func TestCloseIsIdempotent(t *testing.T) {
	page := loginFakePage()
	page.ClickURLOverride = "https://admin.heaven.test/H1Main.php"
	c := newController(page)
	require.NoError(t, c.Authenticate(context.Background(), testCred, testForm()))

	require.NoError(t, c.Close(context.Background()))
	require.NoError(t, c.Close(context.Background()))
	assert.Equal(t, 1, page.CloseCalls)
}
