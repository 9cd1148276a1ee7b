package platform

import (
	"context"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
)

// fuzokuJapan only takes diary posts. Its login form has no stable ids at
// all, so every role leans on attribute and text fallbacks.
type fuzokuJapan struct {
	*base
}

// NewFuzokuJapan builds the FuzokuJapan adapter.
func NewFuzokuJapan(deps Deps) Adapter {
	site := siteProfile{
		loginForm: browser.LoginForm{
			Username: []browser.Selector{
				browser.CSS(`input[name="login_id"]`),
				browser.CSS(`input[name="shop_id"]`),
				browser.XPath(`//form//input[@type="text"][1]`),
			},
			Password: []browser.Selector{
				browser.CSS(`input[name="login_pw"]`),
				browser.CSS(`input[type="password"]`),
			},
			Submit: []browser.Selector{
				browser.CSS(`input[type="submit"]`),
				browser.Text("ログイン"),
				browser.XPath(`//form//button`),
			},
			FailureMarkers: []string{"login", "error", "auth"},
		},
		diaryPath:    "shop/diary/entry",
		errorMarkers: []string{"投稿できませんでした"},
	}
	return &fuzokuJapan{base: newBase(deps, site)}
}

func (f *fuzokuJapan) UpdateProfile(ctx context.Context, _ schemas.ProfileUpdate) error {
	return f.unsupported("fuzokujapan.update_profile")
}

func (f *fuzokuJapan) UpdateSchedule(ctx context.Context, _ schemas.ScheduleUpdate) error {
	return f.unsupported("fuzokujapan.update_schedule")
}

func (f *fuzokuJapan) PostDiary(ctx context.Context, data schemas.DiaryPost) error {
	const op = "fuzokujapan.post_diary"
	f.mu.Lock()
	defer f.mu.Unlock()
	page, resolver, err := f.authed()
	if err != nil {
		return err
	}
	if err := f.open(ctx, page, f.site.diaryPath); err != nil {
		return err
	}
	if err := f.fillRole(ctx, page, resolver, op, "title field", []browser.Selector{
		browser.CSS(`input[name="diary_title"]`),
		browser.CSS(`input[name="title"]`),
	}, data.Title, true); err != nil {
		return err
	}
	if err := f.fillRole(ctx, page, resolver, op, "body field", []browser.Selector{
		browser.CSS(`textarea[name="diary_body"]`),
		browser.CSS("textarea"),
	}, data.Content, true); err != nil {
		return err
	}
	if err := f.clickRole(ctx, page, resolver, op, "post button", []browser.Selector{
		browser.CSS(`input[type="submit"]`),
		browser.Text("投稿する"),
	}); err != nil {
		return err
	}
	return f.verifyOutcome(ctx, page, op)
}

func (f *fuzokuJapan) ReadCounter(ctx context.Context) (schemas.Counter, error) {
	return schemas.Counter{}, f.unsupported("fuzokujapan.read_counter")
}

func (f *fuzokuJapan) TriggerRefresh(ctx context.Context) error {
	return f.unsupported("fuzokujapan.trigger_refresh")
}
