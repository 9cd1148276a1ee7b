package schemas

import "time"

// DistributionResult is the outcome for one (target, payload) pair. Exactly
// one of these exists per requested target in a report, no matter how the
// target fared.
type DistributionResult struct {
	Target      string        `json:"target"`
	Succeeded   bool          `json:"succeeded"`
	ErrorKind   Kind          `json:"error_kind,omitempty"`
	ErrorDetail string        `json:"error_detail,omitempty"`
	Evidence    string        `json:"evidence,omitempty"`
	Duration    time.Duration `json:"duration_ns"`
}

// DistributionReport is the complete accounting of one dispatch call.
// Results preserve the order of the requested targets.
type DistributionReport struct {
	ID        string               `json:"id"`
	Payload   PayloadKind          `json:"payload"`
	StartedAt time.Time            `json:"started_at"`
	Duration  time.Duration        `json:"duration_ns"`
	Results   []DistributionResult `json:"results"`
}

// Succeeded counts successful results.
func (r *DistributionReport) Succeeded() int {
	n := 0
	for _, res := range r.Results {
		if res.Succeeded {
			n++
		}
	}
	return n
}

// Failed counts unsuccessful results.
func (r *DistributionReport) Failed() int { return len(r.Results) - r.Succeeded() }

// RunStatus is the terminal state of a quota run.
type RunStatus string

const (
	RunDone    RunStatus = "done"
	RunAborted RunStatus = "aborted"
)

// QuotaAttempt records one refresh attempt: the counter before and after the
// action, and whether the action itself succeeded. Appended in order; never
// rewritten.
type QuotaAttempt struct {
	Number    int       `json:"number"`
	Timestamp time.Time `json:"timestamp"`
	Before    Counter   `json:"before"`
	After     Counter   `json:"after"`
	Succeeded bool      `json:"succeeded"`
	Error     string    `json:"error,omitempty"`
	Evidence  string    `json:"evidence,omitempty"`
}

// QuotaRun is the audit trail of one quota-exhaustion run.
type QuotaRun struct {
	ID         string         `json:"id"`
	Target     string         `json:"target"`
	Status     RunStatus      `json:"status"`
	Reason     string         `json:"reason,omitempty"`
	StartedAt  time.Time      `json:"started_at"`
	FinishedAt time.Time      `json:"finished_at"`
	Attempts   []QuotaAttempt `json:"attempts"`
}
