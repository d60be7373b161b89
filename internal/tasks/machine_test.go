package tasks

import (
	"errors"
	"testing"

	"lecture-companion/internal/domain"
)

// status is a test helper for phase-only snapshots.
func status(phase domain.Phase) domain.TaskStatus {
	return domain.TaskStatus{TaskID: "t-1", Phase: phase}
}

// TestMachinePhaseFollowsAuthoritativeStatus verifies the phase always
// matches the most recent non-error status across a realistic stream.
func TestMachinePhaseFollowsAuthoritativeStatus(t *testing.T) {
	m := NewMachine(0)
	m.Reset("t-1")

	stream := []domain.Phase{
		domain.PhaseUploaded,
		domain.PhaseProcessing,
		domain.PhaseProcessing,
		domain.PhaseReadyForSynthesis,
		domain.PhaseGeneratingSummary,
	}

	for _, phase := range stream {
		outcome := m.Apply(status(phase))
		if outcome.StopPolling {
			t.Fatalf("phase %s should keep polling", phase)
		}
		if outcome.FetchResult {
			t.Fatalf("phase %s should not fetch result", phase)
		}
		if m.Phase() != phase {
			t.Fatalf("phase = %s, want %s", m.Phase(), phase)
		}
	}
}

// TestMachineCompletedFetchesResultExactlyOnce checks fetch idempotency per
// distinct entry into the completed phase.
func TestMachineCompletedFetchesResultExactlyOnce(t *testing.T) {
	m := NewMachine(0)
	m.Reset("t-1")
	m.Apply(status(domain.PhaseProcessing))

	first := m.Apply(status(domain.PhaseCompleted))
	if !first.FetchResult || !first.StopPolling {
		t.Fatalf("first completed entry outcome = %+v", first)
	}

	again := m.Apply(status(domain.PhaseCompleted))
	if again.FetchResult {
		t.Fatal("repeated completed status must not re-fetch")
	}
	if !again.StopPolling {
		t.Fatal("completed must stop polling")
	}

	// A summary regeneration cycle makes the next completed a distinct entry.
	m.ConfirmSummary()
	m.Apply(status(domain.PhaseGeneratingSummary))
	third := m.Apply(status(domain.PhaseCompleted))
	if !third.FetchResult {
		t.Fatal("completed after regeneration must fetch again")
	}
}

// TestMachineFailedRecordsMessageAndStops checks terminal failure handling.
func TestMachineFailedRecordsMessageAndStops(t *testing.T) {
	m := NewMachine(0)
	m.Reset("t-1")
	m.Apply(status(domain.PhaseUploaded))

	outcome := m.Apply(domain.TaskStatus{
		TaskID:       "t-1",
		Phase:        domain.PhaseFailed,
		ErrorMessage: "decode error",
	})

	if !outcome.StopPolling {
		t.Fatal("failed must stop polling")
	}
	if outcome.FetchResult {
		t.Fatal("failed must not fetch result")
	}
	if m.ErrorMessage() != "decode error" {
		t.Fatalf("error message = %q", m.ErrorMessage())
	}
	if m.Phase() != domain.PhaseFailed {
		t.Fatalf("phase = %s, want failed", m.Phase())
	}
}

// TestMachineTransientErrorsKeepPhase verifies transport failures are never
// conflated with job failure.
func TestMachineTransientErrorsKeepPhase(t *testing.T) {
	m := NewMachine(3)
	m.Reset("t-1")
	m.Apply(status(domain.PhaseProcessing))

	if keep := m.NoteTransient(); !keep {
		t.Fatal("first transient error should keep polling")
	}
	if m.Phase() != domain.PhaseProcessing {
		t.Fatalf("phase = %s, want processing after transient error", m.Phase())
	}

	// Successful read resets the streak.
	m.Apply(status(domain.PhaseProcessing))
	if keep := m.NoteTransient(); !keep {
		t.Fatal("streak should have reset after successful read")
	}

	// Exhausting the streak asks the poller to give up, phase unchanged.
	if keep := m.NoteTransient(); !keep {
		t.Fatal("second consecutive transient should still keep polling")
	}
	if keep := m.NoteTransient(); keep {
		t.Fatal("streak cap reached, expected stop request")
	}
	if m.Phase() != domain.PhaseProcessing {
		t.Fatalf("phase = %s, transport errors must not change phase", m.Phase())
	}
}

// TestMachineSummaryTriggerEligibility table-checks BeginSummary per phase.
func TestMachineSummaryTriggerEligibility(t *testing.T) {
	tests := []struct {
		phase   domain.Phase
		allowed bool
	}{
		{domain.PhaseUploaded, false},
		{domain.PhasePending, false},
		{domain.PhaseProcessing, false},
		{domain.PhaseReadyForSynthesis, true},
		{domain.PhaseGeneratingSummary, true},
		{domain.PhaseCompleted, true},
		{domain.PhaseFailed, false},
	}

	for _, tt := range tests {
		t.Run(string(tt.phase), func(t *testing.T) {
			m := NewMachine(0)
			m.Reset("t-1")
			m.Apply(status(tt.phase))

			err := m.BeginSummary()
			if tt.allowed && err != nil {
				t.Fatalf("BeginSummary: %v", err)
			}
			if !tt.allowed {
				if !errors.Is(err, ErrInvalidTransition) {
					t.Fatalf("error = %v, want ErrInvalidTransition", err)
				}
				if m.Phase() != tt.phase {
					t.Fatalf("rejected trigger must leave phase unchanged, got %s", m.Phase())
				}
			}
		})
	}
}

// TestMachineFail verifies explicit terminal failure for unknown task ids.
func TestMachineFail(t *testing.T) {
	m := NewMachine(0)
	m.Reset("t-1")

	outcome := m.Fail("task not found: t-1")
	if !outcome.StopPolling || outcome.FetchResult {
		t.Fatalf("outcome = %+v", outcome)
	}
	if m.Phase() != domain.PhaseFailed {
		t.Fatalf("phase = %s, want failed", m.Phase())
	}
	if m.ErrorMessage() != "task not found: t-1" {
		t.Fatalf("error message = %q", m.ErrorMessage())
	}
}

// TestMachineResetClearsLifecycleState checks new-task replacement.
func TestMachineResetClearsLifecycleState(t *testing.T) {
	m := NewMachine(0)
	m.Reset("t-1")
	m.Apply(domain.TaskStatus{TaskID: "t-1", Phase: domain.PhaseFailed, ErrorMessage: "boom"})

	m.Reset("t-2")
	if m.Phase() != domain.PhaseUploaded {
		t.Fatalf("phase = %s, want uploaded", m.Phase())
	}
	if m.ErrorMessage() != "" {
		t.Fatalf("error message = %q, want empty", m.ErrorMessage())
	}
}
