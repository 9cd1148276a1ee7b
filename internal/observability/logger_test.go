package observability

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"github.com/mxkodo/pubcast/internal/config"
)

func TestSecretFieldNeverCarriesTheValue(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	logger := zap.New(core)

	logger.Info("Authenticating.",
		zap.String("identifier", "shop-001"),
		Secret("secret"))

	entries := logs.All()
	require.Len(t, entries, 1)
	fields := entries[0].ContextMap()
	assert.Equal(t, "shop-001", fields["identifier"])
	assert.Equal(t, "***", fields["secret"])
}

func TestRedactString(t *testing.T) {
	assert.Equal(t, "", RedactString(""))
	assert.Equal(t, "***", RedactString("hunter2"))
}

type syncBuffer struct {
	strings.Builder
}

func (*syncBuffer) Sync() error { return nil }

func TestInitializeWritesNamedEntries(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	buf := &syncBuffer{}
	Initialize(config.LoggerConfig{
		Level:       "debug",
		Format:      "json",
		ServiceName: "pubcast",
	}, zapcore.Lock(buf))

	GetLogger().Info("hello")
	out := buf.String()
	assert.Contains(t, out, `"pubcast"`)
	assert.Contains(t, out, "hello")
}

func TestInitializeIsOnce(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)

	first := &syncBuffer{}
	second := &syncBuffer{}
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "pubcast"}, zapcore.Lock(first))
	Initialize(config.LoggerConfig{Level: "info", Format: "json", ServiceName: "other"}, zapcore.Lock(second))

	GetLogger().Info("routed")
	assert.Contains(t, first.String(), "routed")
	assert.Empty(t, second.String())
}

func TestGetLoggerFallsBack(t *testing.T) {
	ResetForTest()
	t.Cleanup(ResetForTest)
	assert.NotNil(t, GetLogger())
}
