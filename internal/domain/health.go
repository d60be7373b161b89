package domain

import "time"

// CheckStatus indicates whether a single startup check passed.
type CheckStatus string

const (
	CheckStatusPass CheckStatus = "pass"
	CheckStatusFail CheckStatus = "fail"
)

// CheckResult is one startup check outcome with an optional remediation hint.
type CheckResult struct {
	Name    string      `json:"name"`
	Status  CheckStatus `json:"status"`
	Message string      `json:"message"`
	Hint    string      `json:"hint,omitempty"`
}

// HealthReport aggregates startup checks for the UI.
type HealthReport struct {
	CheckedAt time.Time     `json:"checkedAt"`
	Degraded  bool          `json:"degraded"`
	Checks    []CheckResult `json:"checks"`
}
