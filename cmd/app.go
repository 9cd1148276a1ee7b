package cmd

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/spf13/viper"
	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
	"github.com/mxkodo/pubcast/internal/config"
	"github.com/mxkodo/pubcast/internal/dispatch"
	"github.com/mxkodo/pubcast/internal/evidence"
	"github.com/mxkodo/pubcast/internal/observability"
	"github.com/mxkodo/pubcast/internal/platform"
	"github.com/mxkodo/pubcast/internal/proxy"
	"github.com/mxkodo/pubcast/internal/store"
)

// app bundles everything a subcommand needs after config load.
type app struct {
	cfg      *config.Config
	logger   *zap.Logger
	recorder *evidence.Recorder
	proxies  *proxy.Selector
	driver   browser.DriverFactory
	spec     browser.LaunchSpec
	registry *platform.Registry
	store    *store.Store
	pool     *pgxpool.Pool
}

// newApp assembles the runtime from the already-loaded viper config.
func newApp(ctx context.Context) (*app, error) {
	cfg, err := config.NewFromViper(viper.GetViper())
	if err != nil {
		return nil, err
	}
	logger := observability.GetLogger()

	recorder, err := evidence.NewRecorder(cfg.Evidence.Dir, logger)
	if err != nil {
		return nil, err
	}

	proxies, err := proxy.NewSelectorFromConfig(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("building proxy pool: %w", err)
	}

	a := &app{
		cfg:      cfg,
		logger:   logger,
		recorder: recorder,
		proxies:  proxies,
		driver:   browser.NewChromedpFactory(logger),
		spec: browser.LaunchSpec{
			Headless:          cfg.Browser.Headless,
			UserAgent:         cfg.Browser.UserAgent,
			Locale:            cfg.Browser.Locale,
			Timezone:          cfg.Browser.Timezone,
			ViewportWidth:     cfg.Browser.ViewportWidth,
			ViewportHeight:    cfg.Browser.ViewportHeight,
			ExtraArgs:         cfg.Browser.Args,
			NavigationTimeout: cfg.Browser.NavigationTimeout,
			ActionTimeout:     cfg.Browser.ActionTimeout,
			SettleDelay:       cfg.Browser.SettleDelay,
		},
		registry: platform.DefaultRegistry(),
	}

	if cfg.Database.URL != "" {
		pool, err := pgxpool.New(ctx, cfg.Database.URL)
		if err != nil {
			return nil, fmt.Errorf("connecting to database: %w", err)
		}
		st, err := store.New(ctx, pool, logger)
		if err != nil {
			pool.Close()
			return nil, err
		}
		a.pool = pool
		a.store = st
	}
	return a, nil
}

func (a *app) close() {
	if a.pool != nil {
		a.pool.Close()
	}
}

// targetMaps resolves the configured targets and credentials into the
// runtime maps the dispatcher consumes.
func (a *app) targetMaps() (map[string]schemas.TargetDescriptor, map[string]schemas.Credential, error) {
	targets := make(map[string]schemas.TargetDescriptor, len(a.cfg.Targets))
	for _, t := range a.cfg.Targets {
		desc, err := t.Descriptor()
		if err != nil {
			return nil, nil, err
		}
		targets[t.Name] = desc
	}
	creds := make(map[string]schemas.Credential, len(a.cfg.Credentials))
	for name, cc := range a.cfg.Credentials {
		creds[name] = cc.Credential()
	}
	return targets, creds, nil
}

// dispatcher builds the fan-out engine over the app's runtime.
func (a *app) dispatcher() (*dispatch.Dispatcher, error) {
	targets, creds, err := a.targetMaps()
	if err != nil {
		return nil, err
	}
	return dispatch.New(
		a.registry, targets, creds,
		a.driver, a.spec, a.proxies, a.recorder, a.logger,
		dispatch.Options{
			Workers: a.cfg.Dispatch.Workers,
			Timeout: a.cfg.Dispatch.Timeout,
		},
	), nil
}

// adapterFor builds a fresh adapter for one target, proxy assigned from the
// pool when one is configured.
func (a *app) adapterFor(name string) (platform.Adapter, error) {
	desc, ok := a.cfg.TargetByName(name)
	if !ok {
		return nil, fmt.Errorf("target %q is not configured", name)
	}
	cred, ok := a.cfg.CredentialFor(name)
	if !ok {
		return nil, fmt.Errorf("no credential configured for %q", name)
	}
	spec := a.spec
	if a.proxies != nil {
		spec.Proxy = a.proxies.Next()
	}
	return a.registry.New(name, platform.Deps{
		Target:     desc,
		Credential: cred,
		Spec:       spec,
		Driver:     a.driver,
		Logger:     a.logger,
	})
}
