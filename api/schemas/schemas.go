// Package schemas holds the data model shared across the pubcast core:
// targets, credentials, content payloads, dispatch results and the fault
// taxonomy. Nothing in here touches a browser or the network.
package schemas

import "time"

// Credential is one login identity for one target. Secrets must never be
// written verbatim to logs or evidence files; use observability.Secret when
// attaching them to log fields.
type Credential struct {
	Identifier string `json:"identifier"`
	Secret     string `json:"-"`
	// AccountID is the numeric shop/store id some platforms key the login
	// form on. Zero means the platform does not use one.
	AccountID int64 `json:"account_id,omitempty"`
}

// Capability names one operation a platform adapter may support.
type Capability string

const (
	CapLogin          Capability = "login"
	CapUpdateProfile  Capability = "update-profile"
	CapUpdateSchedule Capability = "update-schedule"
	CapPostDiary      Capability = "post-diary"
	CapReadCounter    Capability = "read-counter"
	CapTriggerRefresh Capability = "trigger-refresh"
)

// AllCapabilities lists every known capability in a stable order.
var AllCapabilities = []Capability{
	CapLogin,
	CapUpdateProfile,
	CapUpdateSchedule,
	CapPostDiary,
	CapReadCounter,
	CapTriggerRefresh,
}

// CapabilitySet is the set of capabilities one adapter implements.
type CapabilitySet map[Capability]bool

// NewCapabilitySet builds a set from the given capabilities.
func NewCapabilitySet(caps ...Capability) CapabilitySet {
	s := make(CapabilitySet, len(caps))
	for _, c := range caps {
		s[c] = true
	}
	return s
}

// Has reports whether the capability is present.
func (s CapabilitySet) Has(c Capability) bool { return s[c] }

// List returns the set's capabilities in the canonical order.
func (s CapabilitySet) List() []Capability {
	var out []Capability
	for _, c := range AllCapabilities {
		if s[c] {
			out = append(out, c)
		}
	}
	return out
}

// TargetDescriptor describes one configured third-party site. Loaded once at
// startup and read-only thereafter.
type TargetDescriptor struct {
	Name         string        `json:"name"`
	BaseURL      string        `json:"base_url"`
	LoginURL     string        `json:"login_url"`
	Capabilities CapabilitySet `json:"capabilities"`
	// Tier orders targets by importance; lower is more important. It has no
	// effect on correctness, only on how operators read reports.
	Tier int `json:"tier"`
}

// Counter is the remote "remaining actions today" value a target renders as
// page text. Known is false when the page text did not match the expected
// pattern; an unknown counter is never treated as zero.
type Counter struct {
	Remaining int  `json:"remaining"`
	Total     int  `json:"total"`
	Known     bool `json:"known"`
}

// Exhausted reports whether the counter is known and has reached zero.
func (c Counter) Exhausted() bool { return c.Known && c.Remaining == 0 }

// SessionInfo is the externally visible slice of a browser session's state,
// used in logs and evidence. The underlying browser context itself is owned
// exclusively by one adapter and never leaves the browser package.
type SessionInfo struct {
	ID        string    `json:"id"`
	Target    string    `json:"target"`
	LoggedIn  bool      `json:"logged_in"`
	CreatedAt time.Time `json:"created_at"`
}
