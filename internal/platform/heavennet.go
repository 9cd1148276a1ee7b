package platform

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
)

// heavenNet drives the oldest and most complete of the back offices. It is
// the only target exposing the refresh quota, so it carries the full
// capability set. The admin pages are frame-era PHP with stable ids, which
// keeps the candidate lists short.
type heavenNet struct {
	*base
}

// NewHeavenNet builds the HeavenNet adapter.
func NewHeavenNet(deps Deps) Adapter {
	site := siteProfile{
		loginForm: browser.LoginForm{
			Username: []browser.Selector{
				browser.CSS("#userid"),
				browser.CSS(`input[name="id"]`),
				browser.CSS(`input[name="userid"]`),
			},
			Password: []browser.Selector{
				browser.CSS("#passwd"),
				browser.CSS(`input[name="pass"]`),
				browser.CSS(`input[type="password"]`),
			},
			Submit: []browser.Selector{
				browser.CSS("#loginBtn"),
				browser.CSS(`input[type="submit"]`),
				browser.Text("ログイン"),
			},
			SuccessMarker: "H1Main.php",
		},
		profilePath:  "H3GirlList.php",
		schedulePath: "H4ShukkinList.php",
		diaryPath:    "H8KeitaiDiaryList.php",
		counterPath:  "H1Main.php",
		counterLocs: []browser.Selector{
			browser.CSS(".update-counter"),
			browser.CSS("#updateCounter"),
			browser.XPath(`//*[contains(text(), "残り")]`),
		},
		refreshLocs: []browser.Selector{
			browser.CSS(".menu-update-btn"),
			browser.CSS(".update-btn"),
			browser.CSS(`a[href*="update"]`),
			browser.Text("更新ボタン"),
		},
		errorMarkers: []string{"エラーが発生しました", "入力内容に誤りがあります"},
	}
	return &heavenNet{base: newBase(deps, site)}
}

func (h *heavenNet) UpdateProfile(ctx context.Context, data schemas.ProfileUpdate) error {
	const op = "heavennet.update_profile"
	h.mu.Lock()
	defer h.mu.Unlock()
	page, resolver, err := h.authed()
	if err != nil {
		return err
	}
	if err := h.open(ctx, page, h.site.profilePath); err != nil {
		return err
	}
	// The list page links each cast to her edit form by name.
	if err := h.clickRole(ctx, page, resolver, op, "cast edit link", []browser.Selector{
		browser.Text(data.Name),
		browser.CSS(`a[href*="H3GirlEdit"]`),
	}); err != nil {
		return err
	}
	if err := h.fillRole(ctx, page, resolver, op, "name field", []browser.Selector{
		browser.CSS(`input[name="girl_name"]`),
		browser.CSS("#girlName"),
	}, data.Name, true); err != nil {
		return err
	}
	if data.Age > 0 {
		if err := h.fillRole(ctx, page, resolver, op, "age field", []browser.Selector{
			browser.CSS(`input[name="age"]`),
			browser.CSS("#girlAge"),
		}, fmt.Sprintf("%d", data.Age), false); err != nil {
			return err
		}
	}
	if err := h.fillRole(ctx, page, resolver, op, "comment field", []browser.Selector{
		browser.CSS(`textarea[name="comment"]`),
		browser.CSS("#comment"),
	}, data.Comment, false); err != nil {
		return err
	}
	if err := h.clickRole(ctx, page, resolver, op, "save button", []browser.Selector{
		browser.CSS(`input[type="submit"]`),
		browser.Text("更新する"),
		browser.Text("保存"),
	}); err != nil {
		return err
	}
	return h.verifyOutcome(ctx, page, op)
}

func (h *heavenNet) UpdateSchedule(ctx context.Context, data schemas.ScheduleUpdate) error {
	const op = "heavennet.update_schedule"
	h.mu.Lock()
	defer h.mu.Unlock()
	page, resolver, err := h.authed()
	if err != nil {
		return err
	}
	if err := h.open(ctx, page, h.site.schedulePath); err != nil {
		return err
	}
	for _, entry := range data.Entries {
		h.logger.Debug("Writing schedule entry.",
			zap.String("cast", entry.CastName),
			zap.String("date", entry.Date),
			zap.String("status", string(entry.Status)))
		if err := h.fillRole(ctx, page, resolver, op, "start time "+entry.Date, []browser.Selector{
			browser.CSS(fmt.Sprintf(`input[name="start_%s"]`, entry.Date)),
			browser.XPath(fmt.Sprintf(`//tr[contains(., %q)]//input[contains(@name, "start")]`, entry.Date)),
		}, entry.StartTime, entry.Status == schemas.ScheduleAvailable); err != nil {
			return err
		}
		if err := h.fillRole(ctx, page, resolver, op, "end time "+entry.Date, []browser.Selector{
			browser.CSS(fmt.Sprintf(`input[name="end_%s"]`, entry.Date)),
			browser.XPath(fmt.Sprintf(`//tr[contains(., %q)]//input[contains(@name, "end")]`, entry.Date)),
		}, entry.EndTime, entry.Status == schemas.ScheduleAvailable); err != nil {
			return err
		}
	}
	if err := h.clickRole(ctx, page, resolver, op, "save button", []browser.Selector{
		browser.CSS(`input[type="submit"]`),
		browser.Text("更新する"),
	}); err != nil {
		return err
	}
	return h.verifyOutcome(ctx, page, op)
}

func (h *heavenNet) PostDiary(ctx context.Context, data schemas.DiaryPost) error {
	const op = "heavennet.post_diary"
	h.mu.Lock()
	defer h.mu.Unlock()
	page, resolver, err := h.authed()
	if err != nil {
		return err
	}
	if err := h.open(ctx, page, h.site.diaryPath); err != nil {
		return err
	}
	if err := h.clickRole(ctx, page, resolver, op, "new entry button", []browser.Selector{
		browser.CSS(`a[href*="H8KeitaiDiaryEdit"]`),
		browser.Text("新規投稿"),
	}); err != nil {
		return err
	}
	if err := h.fillRole(ctx, page, resolver, op, "title field", []browser.Selector{
		browser.CSS(`input[name="title"]`),
		browser.CSS("#diaryTitle"),
	}, data.Title, true); err != nil {
		return err
	}
	if err := h.fillRole(ctx, page, resolver, op, "body field", []browser.Selector{
		browser.CSS(`textarea[name="body"]`),
		browser.CSS("#diaryBody"),
	}, data.Content, true); err != nil {
		return err
	}
	if err := h.clickRole(ctx, page, resolver, op, "post button", []browser.Selector{
		browser.CSS(`input[type="submit"]`),
		browser.Text("投稿する"),
	}); err != nil {
		return err
	}
	return h.verifyOutcome(ctx, page, op)
}

func (h *heavenNet) ReadCounter(ctx context.Context) (schemas.Counter, error) {
	return h.readCounter(ctx)
}

func (h *heavenNet) TriggerRefresh(ctx context.Context) error {
	return h.triggerRefresh(ctx)
}
