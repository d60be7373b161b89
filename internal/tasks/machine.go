package tasks

import (
	"errors"
	"sync"

	"lecture-companion/internal/domain"
)

// ErrInvalidTransition is returned when a user action is rejected in the
// current phase. The caller surfaces it as a no-op notice.
var ErrInvalidTransition = errors.New("action not available in current phase")

// DefaultMaxTransientStreak bounds consecutive transport failures before the
// machine asks the poller to give up. The phase is never changed by transport
// errors, only the retry budget is.
const DefaultMaxTransientStreak = 20

// Outcome tells the caller what one status application requires: whether to
// fetch the synthesized result and whether polling should stop.
type Outcome struct {
	Phase        domain.Phase
	FetchResult  bool
	StopPolling  bool
	ErrorMessage string
}

// Machine interprets status snapshots for the single tracked task and decides
// polling continuation, result fetching, and summary-trigger eligibility.
// Only the server-reported phase is authoritative for transitions.
type Machine struct {
	mu                 sync.RWMutex
	taskID             string
	phase              domain.Phase
	errorMessage       string
	transientStreak    int
	maxTransientStreak int
}

// NewMachine creates a machine in the idle phase. maxTransientStreak bounds
// consecutive transport failures; zero selects the default.
func NewMachine(maxTransientStreak int) *Machine {
	if maxTransientStreak <= 0 {
		maxTransientStreak = DefaultMaxTransientStreak
	}

	return &Machine{
		phase:              domain.PhaseIdle,
		maxTransientStreak: maxTransientStreak,
	}
}

// Reset points the machine at a new task, discarding all prior lifecycle
// state. The phase starts at uploaded: a task only exists once its upload
// succeeded.
func (m *Machine) Reset(taskID string) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.taskID = taskID
	m.phase = domain.PhaseUploaded
	m.errorMessage = ""
	m.transientStreak = 0
}

// Apply records one authoritative status read and returns the required
// follow-up actions. Entering completed from any other phase requests exactly
// one result fetch; re-receiving completed does not re-fetch. Completed and
// failed stop polling, every other phase keeps it running.
func (m *Machine) Apply(status domain.TaskStatus) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transientStreak = 0

	outcome := Outcome{Phase: status.Phase}
	switch status.Phase {
	case domain.PhaseCompleted:
		outcome.FetchResult = m.phase != domain.PhaseCompleted
		outcome.StopPolling = true
	case domain.PhaseFailed:
		m.errorMessage = status.ErrorMessage
		outcome.ErrorMessage = status.ErrorMessage
		outcome.StopPolling = true
	}

	m.phase = status.Phase
	return outcome
}

// NoteTransient records one transport failure without changing the phase and
// reports whether polling should continue. The streak resets on any
// successful status read.
func (m *Machine) NoteTransient() (keepPolling bool) {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.transientStreak++
	return m.transientStreak < m.maxTransientStreak
}

// Fail moves the machine to the failed phase on a terminal, non-transient
// condition reported outside a status payload (an unknown task id).
func (m *Machine) Fail(message string) Outcome {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = domain.PhaseFailed
	m.errorMessage = message
	return Outcome{
		Phase:        domain.PhaseFailed,
		StopPolling:  true,
		ErrorMessage: message,
	}
}

// BeginSummary validates that summary (re)generation is allowed right now.
// It does not transition; the remote trigger must succeed first.
func (m *Machine) BeginSummary() error {
	m.mu.RLock()
	defer m.mu.RUnlock()

	switch m.phase {
	case domain.PhaseReadyForSynthesis, domain.PhaseGeneratingSummary, domain.PhaseCompleted:
		return nil
	default:
		return ErrInvalidTransition
	}
}

// ConfirmSummary commits the transition to generating_summary after the
// remote trigger succeeded. Polling is restarted by the caller.
func (m *Machine) ConfirmSummary() {
	m.mu.Lock()
	defer m.mu.Unlock()

	m.phase = domain.PhaseGeneratingSummary
	m.transientStreak = 0
}

// Phase returns the current lifecycle phase.
func (m *Machine) Phase() domain.Phase {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.phase
}

// ErrorMessage returns the recorded failure message, if any.
func (m *Machine) ErrorMessage() string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.errorMessage
}
