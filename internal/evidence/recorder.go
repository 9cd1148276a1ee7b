// Package evidence persists the audit trail of every run: screenshots and
// structured JSON result logs, one file per attempt or run, named by target
// and timestamp so operators can trace a complaint back to the exact page
// the system saw.
package evidence

import (
	"fmt"
	"os"
	"path/filepath"
	"time"

	jsoniter "github.com/json-iterator/go"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
)

var json = jsoniter.ConfigCompatibleWithStandardLibrary

// Recorder writes evidence files under one directory. Credentials never
// reach this package: the schema types exclude secrets from serialization.
type Recorder struct {
	dir    string
	logger *zap.Logger
}

// NewRecorder creates the evidence directory if needed.
func NewRecorder(dir string, logger *zap.Logger) (*Recorder, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("creating evidence directory %s: %w", dir, err)
	}
	return &Recorder{dir: dir, logger: logger.Named("evidence")}, nil
}

// Dir returns the evidence directory.
func (r *Recorder) Dir() string { return r.dir }

// SaveScreenshot writes PNG bytes as <target>-<label>-<unixms>.png and
// returns the path for embedding in results.
func (r *Recorder) SaveScreenshot(target, label string, png []byte) (string, error) {
	name := fmt.Sprintf("%s-%s-%d.png", target, label, time.Now().UnixMilli())
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, png, 0o644); err != nil {
		return "", fmt.Errorf("writing screenshot %s: %w", name, err)
	}
	r.logger.Debug("Screenshot saved.", zap.String("path", path))
	return path, nil
}

// SaveReport writes one dispatch report as JSON.
func (r *Recorder) SaveReport(report schemas.DistributionReport) (string, error) {
	name := fmt.Sprintf("dispatch-%s-%d.json", report.Payload, report.StartedAt.UnixMilli())
	return r.writeJSON(name, report)
}

// SaveQuotaRun writes one quota run, attempts included, as JSON.
func (r *Recorder) SaveQuotaRun(run schemas.QuotaRun) (string, error) {
	name := fmt.Sprintf("quota-%s-%d.json", run.Target, run.StartedAt.UnixMilli())
	return r.writeJSON(name, run)
}

func (r *Recorder) writeJSON(name string, v any) (string, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return "", fmt.Errorf("encoding %s: %w", name, err)
	}
	path := filepath.Join(r.dir, name)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return "", fmt.Errorf("writing %s: %w", name, err)
	}
	r.logger.Debug("Evidence log saved.", zap.String("path", path))
	return path, nil
}
