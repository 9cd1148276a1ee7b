package schemas

import (
	"errors"
	"fmt"
)

// Kind classifies a failure for reporting. Every failure surfaced to a
// DistributionResult or quota attempt carries exactly one kind.
type Kind string

const (
	// KindLaunchFailure means a browser context could not be acquired.
	// Fatal for the session; never retried automatically.
	KindLaunchFailure Kind = "LaunchFailure"
	// KindAuthenticationFailure covers rejected credentials and login UI
	// that could not be located. Recoverable by the caller.
	KindAuthenticationFailure Kind = "AuthenticationFailure"
	// KindNotAuthenticated means a capability was invoked before login.
	// An ordering bug in the caller, reported rather than panicking.
	KindNotAuthenticated Kind = "NotAuthenticated"
	// KindUnsupported means the adapter does not implement the capability.
	KindUnsupported Kind = "Unsupported"
	// KindAdapterNotFound means no adapter is registered for the target.
	KindAdapterNotFound Kind = "AdapterNotFound"
	// KindTimeout means a bounded wait elapsed.
	KindTimeout Kind = "TimeoutFailure"
	// KindUnparsableState means expected page text did not match its
	// documented shape (usually a target-side markup change).
	KindUnparsableState Kind = "UnparsableState"
	// KindInternal is the fallback for unclassified errors.
	KindInternal Kind = "Internal"
)

// Fault is a classified error. Op names the operation that failed in
// "component.action" form.
type Fault struct {
	Kind Kind
	Op   string
	Err  error
}

func (f *Fault) Error() string {
	if f.Err == nil {
		return fmt.Sprintf("%s: %s", f.Op, f.Kind)
	}
	return fmt.Sprintf("%s: %s: %v", f.Op, f.Kind, f.Err)
}

func (f *Fault) Unwrap() error { return f.Err }

// NewFault wraps err with a kind and operation name. err may be nil when the
// kind is self-describing (e.g. Unsupported).
func NewFault(kind Kind, op string, err error) *Fault {
	return &Fault{Kind: kind, Op: op, Err: err}
}

// Faultf is NewFault with a formatted message instead of a wrapped error.
func Faultf(kind Kind, op, format string, args ...any) *Fault {
	return &Fault{Kind: kind, Op: op, Err: fmt.Errorf(format, args...)}
}

// KindOf extracts the classification of err, or KindInternal when err carries
// no Fault. A nil error has no kind and returns "".
func KindOf(err error) Kind {
	if err == nil {
		return ""
	}
	var f *Fault
	if errors.As(err, &f) {
		return f.Kind
	}
	return KindInternal
}

// IsKind reports whether err is classified as kind.
func IsKind(err error, kind Kind) bool { return KindOf(err) == kind }
