package browser_test

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/mxkodo/pubcast/internal/browser"
)

func TestVisibleTextSkipsNonRenderedContent(t *testing.T) {
	doc := `<html><head><title>admin</title><style>.x{}</style></head>
	<body><script>var login = "nope";</script>
	<div>残り3/10回</div><p>更新ボタン</p></body></html>`

	text := browser.VisibleText(doc)
	assert.Contains(t, text, "残り3/10回")
	assert.Contains(t, text, "更新ボタン")
	assert.NotContains(t, text, "var login")
	assert.NotContains(t, text, ".x{}")
	assert.NotContains(t, text, "admin")
}

func TestContainsMarker(t *testing.T) {
	text := "ログインに失敗しました Error Code 401"
	assert.True(t, browser.ContainsMarker(text, []string{"error"}))
	assert.True(t, browser.ContainsMarker(text, []string{"失敗"}))
	assert.False(t, browser.ContainsMarker(text, []string{"success"}))
	assert.False(t, browser.ContainsMarker(text, []string{""}), "empty marker never matches")
}
