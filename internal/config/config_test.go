package config

import (
	"testing"
	"time"

	"github.com/spf13/viper"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/mxkodo/pubcast/api/schemas"
)

func TestDefaults(t *testing.T) {
	cfg := NewDefaultConfig()

	assert.Equal(t, "info", cfg.Logger.Level)
	assert.Equal(t, "pubcast", cfg.Logger.ServiceName)

	assert.True(t, cfg.Browser.Headless)
	assert.Equal(t, "ja-JP", cfg.Browser.Locale)
	assert.Equal(t, "Asia/Tokyo", cfg.Browser.Timezone)
	assert.Equal(t, 30*time.Second, cfg.Browser.NavigationTimeout)
	assert.Equal(t, 1500*time.Millisecond, cfg.Browser.SettleDelay)

	assert.Equal(t, 4, cfg.Dispatch.Workers)
	assert.Equal(t, 20, cfg.Quota.MaxAttempts)
	assert.Equal(t, 2*time.Second, cfg.Quota.PaceInterval)
	assert.Equal(t, "./evidence", cfg.Evidence.Dir)
	assert.Equal(t, "Asia/Tokyo", cfg.Schedule.Timezone)

	require.NoError(t, cfg.Validate())
}

func TestNewFromViperRejectsBadValues(t *testing.T) {
	tests := []struct {
		name string
		set  map[string]any
	}{
		{"zero workers", map[string]any{"dispatch.workers": 0}},
		{"negative attempts", map[string]any{"quota.max_attempts": -1}},
		{"zero navigation timeout", map[string]any{"browser.navigation_timeout": "0s"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			v := viper.New()
			SetDefaults(v)
			for k, val := range tt.set {
				v.Set(k, val)
			}
			_, err := NewFromViper(v)
			require.Error(t, err)
		})
	}
}

func TestValidateRejectsDuplicateTargets(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Targets = []TargetConfig{
		{Name: "heavennet", Capabilities: []string{"login"}},
		{Name: "heavennet", Capabilities: []string{"login"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "duplicate target")
}

func TestValidateRejectsUnknownCapability(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Targets = []TargetConfig{
		{Name: "heavennet", Capabilities: []string{"teleport"}},
	}
	err := cfg.Validate()
	require.Error(t, err)
	assert.Contains(t, err.Error(), "unknown capability")
}

func TestTargetDescriptor(t *testing.T) {
	tc := TargetConfig{
		Name:         "heavennet",
		BaseURL:      "https://admin.heaven.test",
		LoginURL:     "https://admin.heaven.test/login",
		Capabilities: []string{"login", "post-diary", "read-counter", "trigger-refresh"},
		Tier:         1,
	}
	desc, err := tc.Descriptor()
	require.NoError(t, err)
	assert.True(t, desc.Capabilities.Has(schemas.CapPostDiary))
	assert.True(t, desc.Capabilities.Has(schemas.CapTriggerRefresh))
	assert.False(t, desc.Capabilities.Has(schemas.CapUpdateSchedule))
}

func TestCredentialLookup(t *testing.T) {
	cfg := NewDefaultConfig()
	cfg.Credentials = map[string]CredentialConfig{
		"heavennet": {Username: "shop-001", Password: "hunter2", AccountID: 42},
	}

	cred, ok := cfg.CredentialFor("heavennet")
	require.True(t, ok)
	assert.Equal(t, schemas.Credential{Identifier: "shop-001", Secret: "hunter2", AccountID: 42}, cred)

	_, ok = cfg.CredentialFor("ghost")
	assert.False(t, ok)
}

func TestSensitiveValuesBindToEnv(t *testing.T) {
	t.Setenv("PUBCAST_DATABASE_URL", "postgres://pubcast:pw@localhost:5432/pubcast")
	t.Setenv("PUBCAST_PROXY_PASSWORD", "proxypw")

	v := viper.New()
	SetDefaults(v)
	cfg, err := NewFromViper(v)
	require.NoError(t, err)
	assert.Equal(t, "postgres://pubcast:pw@localhost:5432/pubcast", cfg.Database.URL)
	assert.Equal(t, "proxypw", cfg.Proxy.Password)
}
