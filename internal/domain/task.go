package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Phase is the authoritative lifecycle stage reported by the processing server.
type Phase string

const (
	PhaseIdle              Phase = "idle"
	PhasePending           Phase = "pending"
	PhaseUploaded          Phase = "uploaded"
	PhaseProcessing        Phase = "processing"
	PhaseReadyForSynthesis Phase = "ready_for_synthesis"
	PhaseGeneratingSummary Phase = "generating_summary"
	PhaseCompleted         Phase = "completed"
	PhaseFailed            Phase = "failed"
)

// KnownPhase reports whether the server-sent phase is part of the contract.
// PhaseIdle is client-local and is never accepted from the wire.
func KnownPhase(p Phase) bool {
	switch p {
	case PhasePending, PhaseUploaded, PhaseProcessing,
		PhaseReadyForSynthesis, PhaseGeneratingSummary,
		PhaseCompleted, PhaseFailed:
		return true
	default:
		return false
	}
}

// Progress carries fractional stage completions, each in [0,1].
// Only meaningful while the task is in PhaseProcessing; values are not
// guaranteed to increase monotonically between polls.
type Progress struct {
	Vision    float64 `json:"vision"`
	Audio     float64 `json:"audio"`
	Synthesis float64 `json:"synthesis"`
}

// TaskStatus is one snapshot of a remote processing job.
type TaskStatus struct {
	TaskID       string    `json:"taskId"`
	Phase        Phase     `json:"phase"`
	Progress     *Progress `json:"progress,omitempty"`
	Filename     string    `json:"filename,omitempty"`
	ChannelName  string    `json:"channelName,omitempty"`
	ErrorMessage string    `json:"errorMessage,omitempty"`
}

// MalformedStatusError reports a service payload that violates the status contract.
type MalformedStatusError struct {
	Reason string
}

// Error formats the contract violation for logs.
func (e *MalformedStatusError) Error() string {
	return fmt.Sprintf("malformed task status: %s", e.Reason)
}

// ParseTaskStatus decodes and validates a raw status payload. A payload
// missing taskId or phase, or carrying a phase outside the enumerated set,
// is rejected with *MalformedStatusError.
func ParseTaskStatus(data []byte) (TaskStatus, error) {
	var status TaskStatus
	if err := json.Unmarshal(data, &status); err != nil {
		return TaskStatus{}, &MalformedStatusError{Reason: err.Error()}
	}

	if strings.TrimSpace(status.TaskID) == "" {
		return TaskStatus{}, &MalformedStatusError{Reason: "missing taskId"}
	}
	if status.Phase == "" {
		return TaskStatus{}, &MalformedStatusError{Reason: "missing phase"}
	}
	if !KnownPhase(status.Phase) {
		return TaskStatus{}, &MalformedStatusError{
			Reason: fmt.Sprintf("unknown phase: %s", status.Phase),
		}
	}

	return status, nil
}
