package platform

import (
	"context"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
)

// deliheruTown is a newer back office with an email login and a flat admin
// menu. It has no refresh quota and no schedule editor, so those
// capabilities answer Unsupported.
type deliheruTown struct {
	*base
}

// NewDeliheruTown builds the DeliheruTown adapter.
func NewDeliheruTown(deps Deps) Adapter {
	site := siteProfile{
		loginForm: browser.LoginForm{
			Username: []browser.Selector{
				browser.CSS(`input[name="email"]`),
				browser.CSS(`input[type="email"]`),
				browser.CSS("#email"),
			},
			Password: []browser.Selector{
				browser.CSS(`input[name="password"]`),
				browser.CSS(`input[type="password"]`),
			},
			Submit: []browser.Selector{
				browser.CSS(`button[type="submit"]`),
				browser.CSS(`input[type="submit"]`),
				browser.Text("ログイン"),
			},
			FailureMarkers: []string{"login", "error"},
		},
		profilePath:  "admin/cast",
		diaryPath:    "admin/diary/new",
		errorMarkers: []string{"保存に失敗しました", "入力エラー"},
	}
	return &deliheruTown{base: newBase(deps, site)}
}

func (d *deliheruTown) UpdateProfile(ctx context.Context, data schemas.ProfileUpdate) error {
	const op = "deliherutown.update_profile"
	d.mu.Lock()
	defer d.mu.Unlock()
	page, resolver, err := d.authed()
	if err != nil {
		return err
	}
	if err := d.open(ctx, page, d.site.profilePath); err != nil {
		return err
	}
	if err := d.clickRole(ctx, page, resolver, op, "cast edit link", []browser.Selector{
		browser.Text(data.Name),
		browser.CSS(`a[href*="/cast/edit"]`),
	}); err != nil {
		return err
	}
	if err := d.fillRole(ctx, page, resolver, op, "name field", []browser.Selector{
		browser.CSS(`input[name="name"]`),
		browser.CSS("#castName"),
	}, data.Name, true); err != nil {
		return err
	}
	if err := d.fillRole(ctx, page, resolver, op, "comment field", []browser.Selector{
		browser.CSS(`textarea[name="pr_comment"]`),
		browser.CSS(`textarea[name="comment"]`),
	}, data.Comment, false); err != nil {
		return err
	}
	if err := d.clickRole(ctx, page, resolver, op, "save button", []browser.Selector{
		browser.CSS(`button[type="submit"]`),
		browser.Text("保存する"),
	}); err != nil {
		return err
	}
	return d.verifyOutcome(ctx, page, op)
}

func (d *deliheruTown) UpdateSchedule(ctx context.Context, _ schemas.ScheduleUpdate) error {
	return d.unsupported("deliherutown.update_schedule")
}

func (d *deliheruTown) PostDiary(ctx context.Context, data schemas.DiaryPost) error {
	const op = "deliherutown.post_diary"
	d.mu.Lock()
	defer d.mu.Unlock()
	page, resolver, err := d.authed()
	if err != nil {
		return err
	}
	if err := d.open(ctx, page, d.site.diaryPath); err != nil {
		return err
	}
	if err := d.fillRole(ctx, page, resolver, op, "title field", []browser.Selector{
		browser.CSS(`input[name="title"]`),
		browser.CSS("#diaryTitle"),
	}, data.Title, true); err != nil {
		return err
	}
	if err := d.fillRole(ctx, page, resolver, op, "body field", []browser.Selector{
		browser.CSS(`textarea[name="body"]`),
		browser.CSS(`textarea[name="content"]`),
	}, data.Content, true); err != nil {
		return err
	}
	if err := d.clickRole(ctx, page, resolver, op, "post button", []browser.Selector{
		browser.CSS(`button[type="submit"]`),
		browser.Text("投稿"),
	}); err != nil {
		return err
	}
	return d.verifyOutcome(ctx, page, op)
}

func (d *deliheruTown) ReadCounter(ctx context.Context) (schemas.Counter, error) {
	return schemas.Counter{}, d.unsupported("deliherutown.read_counter")
}

func (d *deliheruTown) TriggerRefresh(ctx context.Context) error {
	return d.unsupported("deliherutown.trigger_refresh")
}
