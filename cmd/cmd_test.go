package cmd

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxkodo/pubcast/api/schemas"
)

func writePayloadFile(t *testing.T, name, content string) string {
	t.Helper()
	path := filepath.Join(t.TempDir(), name)
	require.NoError(t, os.WriteFile(path, []byte(content), 0o644))
	return path
}

func TestLoadPayloadProfile(t *testing.T) {
	path := writePayloadFile(t, "profile.json", `{"name":"ひなた","age":21,"comment":"新人です"}`)

	payload, err := loadPayload("profile", path)
	require.NoError(t, err)
	require.Equal(t, schemas.PayloadProfile, payload.Kind())

	p, ok := payload.(schemas.ProfileUpdate)
	require.True(t, ok)
	assert.Equal(t, "ひなた", p.Name)
	assert.Equal(t, 21, p.Age)
	require.NoError(t, payload.Validate())
}

func TestLoadPayloadSchedule(t *testing.T) {
	path := writePayloadFile(t, "schedule.json",
		`{"entries":[{"cast_name":"ひなた","date":"2026-09-01","start_time":"10:00","end_time":"18:00","status":"available"}]}`)

	payload, err := loadPayload("schedule", path)
	require.NoError(t, err)
	assert.Equal(t, schemas.PayloadSchedule, payload.Kind())
	require.NoError(t, payload.Validate())
}

func TestLoadPayloadDiary(t *testing.T) {
	path := writePayloadFile(t, "diary.json", `{"title":"本日の出勤","content":"よろしくお願いします"}`)

	payload, err := loadPayload("diary", path)
	require.NoError(t, err)
	assert.Equal(t, schemas.PayloadDiary, payload.Kind())
}

func TestLoadPayloadUnknownKind(t *testing.T) {
	path := writePayloadFile(t, "p.json", `{}`)
	_, err := loadPayload("newsletter", path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown payload kind")
}

func TestLoadPayloadMissingFile(t *testing.T) {
	_, err := loadPayload("profile", filepath.Join(t.TempDir(), "absent.json"))
	require.Error(t, err)
}

func TestLoadPayloadMalformedJSON(t *testing.T) {
	path := writePayloadFile(t, "bad.json", `{"title": `)
	_, err := loadPayload("diary", path)
	require.Error(t, err)
}

func TestRootCommandHasSubcommands(t *testing.T) {
	names := make(map[string]bool)
	for _, c := range rootCmd.Commands() {
		names[c.Name()] = true
	}
	assert.True(t, names["dispatch"])
	assert.True(t, names["exhaust"])
	assert.True(t, names["schedule"])
}
