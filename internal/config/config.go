// Package config loads and validates the pubcast configuration: logger,
// browser, dispatch, quota, evidence, database, proxy pool, refresh
// schedule, and the target/credential registry.
package config

import (
	"fmt"
	"time"

	"github.com/spf13/viper"

	"github.com/mxkodo/pubcast/api/schemas"
)

// Config is the entire application configuration. It is populated once at
// startup and treated as read-only afterwards.
type Config struct {
	Logger   LoggerConfig   `mapstructure:"logger" yaml:"logger"`
	Browser  BrowserConfig  `mapstructure:"browser" yaml:"browser"`
	Dispatch DispatchConfig `mapstructure:"dispatch" yaml:"dispatch"`
	Quota    QuotaConfig    `mapstructure:"quota" yaml:"quota"`
	Evidence EvidenceConfig `mapstructure:"evidence" yaml:"evidence"`
	Database DatabaseConfig `mapstructure:"database" yaml:"database"`
	Proxy    ProxyConfig    `mapstructure:"proxy" yaml:"proxy"`
	Schedule ScheduleConfig `mapstructure:"schedule" yaml:"schedule"`

	Targets     []TargetConfig              `mapstructure:"targets" yaml:"targets"`
	Credentials map[string]CredentialConfig `mapstructure:"credentials" yaml:"credentials"`
}

// LoggerConfig configures the zap logger and file rotation.
type LoggerConfig struct {
	Level       string `mapstructure:"level" yaml:"level"`
	Format      string `mapstructure:"format" yaml:"format"`
	AddSource   bool   `mapstructure:"add_source" yaml:"add_source"`
	ServiceName string `mapstructure:"service_name" yaml:"service_name"`
	LogFile     string `mapstructure:"log_file" yaml:"log_file"`
	MaxSize     int    `mapstructure:"max_size" yaml:"max_size"`
	MaxBackups  int    `mapstructure:"max_backups" yaml:"max_backups"`
	MaxAge      int    `mapstructure:"max_age" yaml:"max_age"`
	Compress    bool   `mapstructure:"compress" yaml:"compress"`
}

// BrowserConfig holds settings shared by every browser session. The targets
// are Japanese back offices, hence the ja-JP/Tokyo defaults.
type BrowserConfig struct {
	Headless          bool          `mapstructure:"headless" yaml:"headless"`
	UserAgent         string        `mapstructure:"user_agent" yaml:"user_agent"`
	Locale            string        `mapstructure:"locale" yaml:"locale"`
	Timezone          string        `mapstructure:"timezone" yaml:"timezone"`
	ViewportWidth     int           `mapstructure:"viewport_width" yaml:"viewport_width"`
	ViewportHeight    int           `mapstructure:"viewport_height" yaml:"viewport_height"`
	Args              []string      `mapstructure:"args" yaml:"args"`
	NavigationTimeout time.Duration `mapstructure:"navigation_timeout" yaml:"navigation_timeout"`
	ActionTimeout     time.Duration `mapstructure:"action_timeout" yaml:"action_timeout"`
	// ProbeTimeout bounds a single locator-candidate existence check.
	ProbeTimeout time.Duration `mapstructure:"probe_timeout" yaml:"probe_timeout"`
	// SettleDelay is the fixed pause after UI actions; the targets render
	// client-side and accept the next interaction only after a beat.
	SettleDelay time.Duration `mapstructure:"settle_delay" yaml:"settle_delay"`
}

// DispatchConfig bounds the fan-out.
type DispatchConfig struct {
	Workers int           `mapstructure:"workers" yaml:"workers"`
	Timeout time.Duration `mapstructure:"timeout" yaml:"timeout"`
}

// QuotaConfig tunes the quota-exhaustion loop.
type QuotaConfig struct {
	MaxAttempts  int           `mapstructure:"max_attempts" yaml:"max_attempts"`
	PaceInterval time.Duration `mapstructure:"pace_interval" yaml:"pace_interval"`
}

// EvidenceConfig locates the screenshot/log output directory.
type EvidenceConfig struct {
	Dir string `mapstructure:"dir" yaml:"dir"`
}

// DatabaseConfig is the optional Postgres result store. Empty URL disables
// persistence entirely.
type DatabaseConfig struct {
	URL string `mapstructure:"url" yaml:"url"`
}

// ProxyConfig describes the outbound egress pool. Service selects a provider
// convention ("brightdata", "oxylabs", "smartproxy", "manual", "list") whose
// normalization lives in the proxy package; an empty service means no proxy.
type ProxyConfig struct {
	Service  string   `mapstructure:"service" yaml:"service"`
	Host     string   `mapstructure:"host" yaml:"host"`
	Port     int      `mapstructure:"port" yaml:"port"`
	Username string   `mapstructure:"username" yaml:"username"`
	Password string   `mapstructure:"password" yaml:"-"`
	Country  string   `mapstructure:"country" yaml:"country"`
	Servers  []string `mapstructure:"servers" yaml:"servers"`
}

// ScheduleConfig drives the timed-refresh scheduler: wall-clock HH:MM slots
// at which one refresh attempt is fired against Target.
type ScheduleConfig struct {
	Target   string   `mapstructure:"target" yaml:"target"`
	Times    []string `mapstructure:"times" yaml:"times"`
	Timezone string   `mapstructure:"timezone" yaml:"timezone"`
}

// TargetConfig is the on-disk shape of one TargetDescriptor.
type TargetConfig struct {
	Name         string   `mapstructure:"name" yaml:"name"`
	BaseURL      string   `mapstructure:"base_url" yaml:"base_url"`
	LoginURL     string   `mapstructure:"login_url" yaml:"login_url"`
	Capabilities []string `mapstructure:"capabilities" yaml:"capabilities"`
	Tier         int      `mapstructure:"tier" yaml:"tier"`
}

// Descriptor converts the config entry into the immutable runtime form.
func (t TargetConfig) Descriptor() (schemas.TargetDescriptor, error) {
	caps := make(schemas.CapabilitySet, len(t.Capabilities))
	for _, raw := range t.Capabilities {
		c := schemas.Capability(raw)
		known := false
		for _, k := range schemas.AllCapabilities {
			if c == k {
				known = true
				break
			}
		}
		if !known {
			return schemas.TargetDescriptor{}, fmt.Errorf("target %q: unknown capability %q", t.Name, raw)
		}
		caps[c] = true
	}
	return schemas.TargetDescriptor{
		Name:         t.Name,
		BaseURL:      t.BaseURL,
		LoginURL:     t.LoginURL,
		Capabilities: caps,
		Tier:         t.Tier,
	}, nil
}

// CredentialConfig is the on-disk shape of one Credential, keyed by target
// name in the credentials map.
type CredentialConfig struct {
	Username  string `mapstructure:"username" yaml:"username"`
	Password  string `mapstructure:"password" yaml:"-"`
	AccountID int64  `mapstructure:"account_id" yaml:"account_id"`
}

// Credential converts to the runtime form.
func (c CredentialConfig) Credential() schemas.Credential {
	return schemas.Credential{Identifier: c.Username, Secret: c.Password, AccountID: c.AccountID}
}

// SetDefaults initializes default values on the given viper instance.
func SetDefaults(v *viper.Viper) {
	// -- Logger --
	v.SetDefault("logger.level", "info")
	v.SetDefault("logger.format", "console")
	v.SetDefault("logger.add_source", false)
	v.SetDefault("logger.service_name", "pubcast")
	v.SetDefault("logger.log_file", "")
	v.SetDefault("logger.max_size", 100)
	v.SetDefault("logger.max_backups", 5)
	v.SetDefault("logger.max_age", 30)
	v.SetDefault("logger.compress", true)

	// -- Browser --
	v.SetDefault("browser.headless", true)
	v.SetDefault("browser.user_agent",
		"Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/120.0.0.0 Safari/537.36")
	v.SetDefault("browser.locale", "ja-JP")
	v.SetDefault("browser.timezone", "Asia/Tokyo")
	v.SetDefault("browser.viewport_width", 1920)
	v.SetDefault("browser.viewport_height", 1080)
	v.SetDefault("browser.navigation_timeout", "30s")
	v.SetDefault("browser.action_timeout", "15s")
	v.SetDefault("browser.probe_timeout", "2s")
	v.SetDefault("browser.settle_delay", "1500ms")

	// -- Dispatch --
	v.SetDefault("dispatch.workers", 4)
	v.SetDefault("dispatch.timeout", "10m")

	// -- Quota --
	v.SetDefault("quota.max_attempts", 20)
	v.SetDefault("quota.pace_interval", "2s")

	// -- Evidence --
	v.SetDefault("evidence.dir", "./evidence")

	// -- Schedule --
	v.SetDefault("schedule.timezone", "Asia/Tokyo")
}

// NewFromViper unmarshals and validates a full configuration.
func NewFromViper(v *viper.Viper) (*Config, error) {
	// Sensitive values come from the environment, never the file.
	v.BindEnv("database.url", "PUBCAST_DATABASE_URL")
	v.BindEnv("proxy.password", "PUBCAST_PROXY_PASSWORD")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("error unmarshaling config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

// NewDefaultConfig returns a config populated with defaults only. Used by
// tests and as a fallback.
func NewDefaultConfig() *Config {
	v := viper.New()
	SetDefaults(v)
	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		panic(fmt.Sprintf("failed to unmarshal default config: %v", err))
	}
	return &cfg
}

// Validate checks for required fields and sane values.
func (c *Config) Validate() error {
	if c.Dispatch.Workers <= 0 {
		return fmt.Errorf("dispatch.workers must be a positive integer")
	}
	if c.Quota.MaxAttempts <= 0 {
		return fmt.Errorf("quota.max_attempts must be a positive integer")
	}
	if c.Browser.NavigationTimeout <= 0 || c.Browser.ActionTimeout <= 0 {
		return fmt.Errorf("browser timeouts must be positive durations")
	}
	seen := make(map[string]bool, len(c.Targets))
	for _, t := range c.Targets {
		if t.Name == "" {
			return fmt.Errorf("every target needs a name")
		}
		if seen[t.Name] {
			return fmt.Errorf("duplicate target %q", t.Name)
		}
		seen[t.Name] = true
		if _, err := t.Descriptor(); err != nil {
			return err
		}
	}
	return nil
}

// CredentialFor returns the credential configured for a target.
func (c *Config) CredentialFor(target string) (schemas.Credential, bool) {
	cc, ok := c.Credentials[target]
	if !ok {
		return schemas.Credential{}, false
	}
	return cc.Credential(), true
}

// TargetByName returns the descriptor for a configured target.
func (c *Config) TargetByName(name string) (schemas.TargetDescriptor, bool) {
	for _, t := range c.Targets {
		if t.Name == name {
			d, err := t.Descriptor()
			if err != nil {
				return schemas.TargetDescriptor{}, false
			}
			return d, true
		}
	}
	return schemas.TargetDescriptor{}, false
}
