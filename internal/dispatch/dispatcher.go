// Package dispatch fans one content payload out across the configured
// targets, one independent browser session per target, and aggregates the
// per-target outcomes into a single report. Partial failure never shortens
// the report: every requested target gets exactly one result.
package dispatch

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
	"github.com/mxkodo/pubcast/internal/platform"
	"github.com/mxkodo/pubcast/internal/proxy"
)

// EvidenceSink receives per-target screenshots taken at the end of each
// capability run.
type EvidenceSink interface {
	SaveScreenshot(target, label string, png []byte) (string, error)
}

type nopSink struct{}

func (nopSink) SaveScreenshot(string, string, []byte) (string, error) { return "", nil }

// Options bound the fan-out.
type Options struct {
	// Workers caps concurrent target sessions. Zero means 4.
	Workers int
	// Timeout bounds the whole dispatch. Zero means no dispatcher-imposed
	// deadline beyond the caller's context.
	Timeout time.Duration
}

// Dispatcher resolves adapters and runs one capability call per target.
type Dispatcher struct {
	registry *platform.Registry
	targets  map[string]schemas.TargetDescriptor
	creds    map[string]schemas.Credential
	driver   browser.DriverFactory
	spec     browser.LaunchSpec
	proxies  *proxy.Selector
	sink     EvidenceSink
	logger   *zap.Logger
	workers  int
	timeout  time.Duration
}

// New wires a dispatcher. proxies and sink may be nil.
func New(
	registry *platform.Registry,
	targets map[string]schemas.TargetDescriptor,
	creds map[string]schemas.Credential,
	driver browser.DriverFactory,
	spec browser.LaunchSpec,
	proxies *proxy.Selector,
	sink EvidenceSink,
	logger *zap.Logger,
	opts Options,
) *Dispatcher {
	workers := opts.Workers
	if workers <= 0 {
		workers = 4
	}
	if sink == nil {
		sink = nopSink{}
	}
	return &Dispatcher{
		registry: registry,
		targets:  targets,
		creds:    creds,
		driver:   driver,
		spec:     spec,
		proxies:  proxies,
		sink:     sink,
		logger:   logger.Named("dispatch"),
		workers:  workers,
		timeout:  opts.Timeout,
	}
}

// Dispatch validates the payload and fans it out to the named targets. The
// returned report always carries len(targetNames) results in request order;
// the error is non-nil only when the payload itself is invalid and nothing
// was attempted.
func (d *Dispatcher) Dispatch(ctx context.Context, payload schemas.ContentPayload, targetNames []string) (schemas.DistributionReport, error) {
	report := schemas.DistributionReport{
		ID:        uuid.New().String(),
		Payload:   payload.Kind(),
		StartedAt: time.Now().UTC(),
	}
	if err := payload.Validate(); err != nil {
		return report, fmt.Errorf("invalid %s payload: %w", payload.Kind(), err)
	}

	if d.timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, d.timeout)
		defer cancel()
	}

	d.logger.Info("Dispatching.",
		zap.String("dispatch_id", report.ID),
		zap.String("payload", string(payload.Kind())),
		zap.Strings("targets", targetNames),
		zap.Int("workers", d.workers))

	results := make([]schemas.DistributionResult, len(targetNames))

	// A plain Group, not WithContext: one target's failure must never
	// cancel its siblings. Failures land in the per-target result.
	var g errgroup.Group
	g.SetLimit(d.workers)
	for i, name := range targetNames {
		i, name := i, name
		g.Go(func() error {
			results[i] = d.runTarget(ctx, name, payload)
			return nil
		})
	}
	_ = g.Wait()

	report.Results = results
	report.Duration = time.Since(report.StartedAt)
	d.logger.Info("Dispatch complete.",
		zap.String("dispatch_id", report.ID),
		zap.Int("succeeded", report.Succeeded()),
		zap.Int("failed", report.Failed()),
		zap.Duration("duration", report.Duration))
	return report, nil
}

// runTarget produces exactly one result, whatever happens inside, including
// a panic out of the driver.
func (d *Dispatcher) runTarget(ctx context.Context, name string, payload schemas.ContentPayload) (result schemas.DistributionResult) {
	start := time.Now()
	result = schemas.DistributionResult{Target: name}
	logger := d.logger.With(zap.String("target", name))

	defer func() {
		result.Duration = time.Since(start)
		if rec := recover(); rec != nil {
			result.Succeeded = false
			result.ErrorKind = schemas.KindInternal
			result.ErrorDetail = fmt.Sprintf("panic: %v", rec)
			logger.Error("Target run panicked.", zap.Any("panic", rec))
		}
	}()

	fail := func(err error) schemas.DistributionResult {
		result.Succeeded = false
		result.ErrorKind = schemas.KindOf(err)
		result.ErrorDetail = err.Error()
		logger.Warn("Target failed.", zap.String("kind", string(result.ErrorKind)), zap.Error(err))
		return result
	}

	if err := ctx.Err(); err != nil {
		// Deadline hit before this target got a worker slot. It still
		// gets its accounting entry.
		return fail(schemas.NewFault(schemas.KindTimeout, "dispatch.run_target", err))
	}

	desc, ok := d.targets[name]
	if !ok {
		return fail(schemas.Faultf(schemas.KindAdapterNotFound, "dispatch.run_target", "target %q is not configured", name))
	}
	cred, ok := d.creds[name]
	if !ok {
		return fail(schemas.Faultf(schemas.KindAuthenticationFailure, "dispatch.run_target", "no credential configured for %q", name))
	}
	if !desc.Capabilities.Has(payload.Capability()) {
		return fail(schemas.Faultf(schemas.KindUnsupported, "dispatch.run_target", "%q does not support %s", name, payload.Capability()))
	}

	spec := d.spec
	if d.proxies != nil {
		spec.Proxy = d.proxies.Next()
	}
	adapter, err := d.registry.New(name, platform.Deps{
		Target:     desc,
		Credential: cred,
		Spec:       spec,
		Driver:     d.driver,
		Logger:     logger,
	})
	if err != nil {
		return fail(err)
	}
	defer func() {
		if cerr := adapter.Close(context.WithoutCancel(ctx)); cerr != nil {
			logger.Warn("Adapter close failed.", zap.Error(cerr))
		}
	}()

	if err := adapter.Login(ctx); err != nil {
		return fail(err)
	}
	if err := platform.Apply(ctx, adapter, payload); err != nil {
		d.capture(ctx, adapter, &result, "failed")
		return fail(err)
	}
	d.capture(ctx, adapter, &result, "success")

	result.Succeeded = true
	logger.Info("Target succeeded.", zap.Duration("duration", time.Since(start)))
	return result
}

func (d *Dispatcher) capture(ctx context.Context, adapter platform.Adapter, result *schemas.DistributionResult, label string) {
	png, err := adapter.Screenshot(ctx)
	if err != nil {
		return
	}
	ref, err := d.sink.SaveScreenshot(adapter.Name(), label, png)
	if err != nil {
		d.logger.Warn("Failed to persist screenshot.", zap.String("target", adapter.Name()), zap.Error(err))
		return
	}
	result.Evidence = ref
}
