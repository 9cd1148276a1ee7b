// Package platform holds the per-target adapters: one implementation of the
// shared capability contract for each third-party back office, plus the
// shared behavior they compose over (login flow, page navigation, outcome
// verification, counter parsing).
package platform

import (
	"context"

	"go.uber.org/zap"

	"github.com/mxkodo/pubcast/api/schemas"
	"github.com/mxkodo/pubcast/internal/browser"
)

// Adapter is the unit of polymorphism: the fixed capability set implemented
// against exactly one target site's markup conventions. Not every adapter
// implements every capability; callers consult Capabilities before invoking
// and an unimplemented call returns an Unsupported fault, never a silent
// success.
//
// An adapter owns exactly one session and is not reentrant. It serializes
// its own operations; concurrency happens across adapters, never within one.
type Adapter interface {
	Name() string
	Capabilities() schemas.CapabilitySet

	Login(ctx context.Context) error
	UpdateProfile(ctx context.Context, data schemas.ProfileUpdate) error
	UpdateSchedule(ctx context.Context, data schemas.ScheduleUpdate) error
	PostDiary(ctx context.Context, data schemas.DiaryPost) error
	ReadCounter(ctx context.Context) (schemas.Counter, error)
	TriggerRefresh(ctx context.Context) error

	// Screenshot captures the current page as evidence. Valid only after a
	// successful Login.
	Screenshot(ctx context.Context) ([]byte, error)
	// Close tears down the session. Safe on every path, including after
	// errors.
	Close(ctx context.Context) error
}

// Deps is everything a factory needs to build one adapter instance.
type Deps struct {
	Target     schemas.TargetDescriptor
	Credential schemas.Credential
	Spec       browser.LaunchSpec
	Driver     browser.DriverFactory
	Logger     *zap.Logger
}

// Factory builds a fresh adapter. The dispatcher calls it once per target
// per dispatch; adapters are never pooled or reused across runs.
type Factory func(deps Deps) Adapter

// Apply invokes the capability matching the payload's kind. It is the
// single place the payload-to-capability mapping lives.
func Apply(ctx context.Context, a Adapter, payload schemas.ContentPayload) error {
	switch p := payload.(type) {
	case schemas.ProfileUpdate:
		return a.UpdateProfile(ctx, p)
	case *schemas.ProfileUpdate:
		return a.UpdateProfile(ctx, *p)
	case schemas.ScheduleUpdate:
		return a.UpdateSchedule(ctx, p)
	case *schemas.ScheduleUpdate:
		return a.UpdateSchedule(ctx, *p)
	case schemas.DiaryPost:
		return a.PostDiary(ctx, p)
	case *schemas.DiaryPost:
		return a.PostDiary(ctx, *p)
	default:
		return schemas.Faultf(schemas.KindUnsupported, "platform.apply", "no capability for payload kind %q", payload.Kind())
	}
}
