package evidence

import (
	"os"
	"path/filepath"
	"regexp"
	"testing"
	"time"

	jsoniter "github.com/json-iterator/go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
)

func newTestRecorder(t *testing.T) *Recorder {
	t.Helper()
	r, err := NewRecorder(t.TempDir(), zap.NewNop())
	require.NoError(t, err)
	return r
}

func TestNewRecorderCreatesDirectory(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "nested", "evidence")
	_, err := NewRecorder(dir, zap.NewNop())
	require.NoError(t, err)

	info, err := os.Stat(dir)
	require.NoError(t, err)
	assert.True(t, info.IsDir())
}

func TestSaveScreenshotNaming(t *testing.T) {
	r := newTestRecorder(t)

	path, err := r.SaveScreenshot("heavennet", "quota-attempt", []byte("png-bytes"))
	require.NoError(t, err)

	assert.Regexp(t, regexp.MustCompile(`heavennet-quota-attempt-\d+\.png$`), path)
	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, []byte("png-bytes"), data)
}

func TestSaveReportRoundTrips(t *testing.T) {
	r := newTestRecorder(t)
	report := schemas.DistributionReport{
		ID:        "d-1",
		Payload:   schemas.PayloadDiary,
		StartedAt: time.Now().UTC(),
		Results: []schemas.DistributionResult{
			{Target: "heavennet", Succeeded: true, Evidence: "x.png"},
			{Target: "fuzokujapan", Succeeded: false, ErrorKind: schemas.KindAuthenticationFailure, ErrorDetail: "rejected"},
		},
	}

	path, err := r.SaveReport(report)
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got schemas.DistributionReport
	require.NoError(t, jsoniter.Unmarshal(data, &got))
	assert.Equal(t, report.ID, got.ID)
	require.Len(t, got.Results, 2)
	assert.Equal(t, schemas.KindAuthenticationFailure, got.Results[1].ErrorKind)
}

func TestSaveQuotaRun(t *testing.T) {
	r := newTestRecorder(t)
	run := schemas.QuotaRun{
		ID:        "q-1",
		Target:    "heavennet",
		Status:    schemas.RunDone,
		StartedAt: time.Now().UTC(),
		Attempts: []schemas.QuotaAttempt{
			{Number: 1, Before: schemas.Counter{Remaining: 1, Total: 10, Known: true}, After: schemas.Counter{Remaining: 0, Total: 10, Known: true}, Succeeded: true},
		},
	}

	path, err := r.SaveQuotaRun(run)
	require.NoError(t, err)
	assert.Contains(t, filepath.Base(path), "quota-heavennet-")

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	var got schemas.QuotaRun
	require.NoError(t, jsoniter.Unmarshal(data, &got))
	require.Len(t, got.Attempts, 1)
	assert.True(t, got.Attempts[0].After.Exhausted())
}
