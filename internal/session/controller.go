package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"

	"lecture-companion/internal/domain"
	"lecture-companion/internal/remote"
	"lecture-companion/internal/tasks"
)

// ErrResultUnavailable is surfaced when the synthesized notes could not be
// downloaded even though the task itself completed. The phase stays completed
// so the user is not misled about the job failing.
var ErrResultUnavailable = errors.New("completed task result unavailable")

// RemoteService is the narrow contract consumed from the processing server.
type RemoteService interface {
	GetStatus(ctx context.Context, taskID string) (domain.TaskStatus, error)
	GetResult(ctx context.Context, taskID string) (domain.Result, error)
	RequestSummary(ctx context.Context, taskID string) error
}

// Config carries the lifecycle tunables.
type Config struct {
	ServerURL           string
	PollInterval        time.Duration
	MaxTransientStreak  int
	ResultFetchAttempts int
	ResultFetchBackoff  time.Duration
}

// withDefaults fills unset tunables.
func (c Config) withDefaults() Config {
	if c.PollInterval <= 0 {
		c.PollInterval = 3 * time.Second
	}
	if c.ResultFetchAttempts <= 0 {
		c.ResultFetchAttempts = 3
	}
	if c.ResultFetchBackoff <= 0 {
		c.ResultFetchBackoff = 2 * time.Second
	}
	return c
}

// Controller owns the single active tracking session: the task id, the latest
// authoritative status, the fetched result, and the user's SOS marks. All
// mutation goes through StartNewTask, RecordSos, and RequestSummaryGeneration;
// the UI only ever reads snapshots.
//
// Lock ordering is c.mu before the machine's internal mutex; machine calls
// happen under c.mu so a status delivery can never interleave with a session
// replacement.
type Controller struct {
	remote  RemoteService
	machine *tasks.Machine
	poller  *tasks.Poller
	events  *tasks.EventBus
	cfg     Config
	log     *zap.Logger

	mu         sync.Mutex
	taskID     string
	videoURL   string
	latest     domain.TaskStatus
	result     *domain.Result
	sosMarks   []float64
	generation string
}

// NewController wires machine and poller around the remote service. The
// controller itself is the poller's sink.
func NewController(svc RemoteService, events *tasks.EventBus, cfg Config, log *zap.Logger) *Controller {
	cfg = cfg.withDefaults()

	c := &Controller{
		remote:  svc,
		machine: tasks.NewMachine(cfg.MaxTransientStreak),
		events:  events,
		cfg:     cfg,
		log:     log,
	}
	c.poller = tasks.NewPoller(svc, c, cfg.PollInterval, log)
	return c
}

// StartNewTask replaces the entire session with a fresh one for taskID and
// starts polling. Prior task state, including SOS marks and any fetched
// result, is discarded. The playback location is derived from the fixed
// stream URL template.
func (c *Controller) StartNewTask(taskID string) {
	c.mu.Lock()
	c.taskID = taskID
	c.videoURL = fmt.Sprintf("%s/api/videos/%s/stream", c.cfg.ServerURL, taskID)
	c.latest = domain.TaskStatus{TaskID: taskID, Phase: domain.PhaseUploaded}
	c.result = nil
	c.sosMarks = nil
	c.machine.Reset(taskID)

	// Holding the lock across Start guarantees the first delivery observes
	// the new generation.
	c.generation = c.poller.Start(taskID)
	c.mu.Unlock()

	c.log.Info("tracking new task", zap.String("taskId", taskID))
	c.events.Publish(tasks.Event{
		TaskID: taskID,
		Type:   tasks.EventTypeStatus,
		Phase:  domain.PhaseUploaded,
	})
}

// RecordSos appends a playback timestamp to the session's SOS marks. The
// marks are append-only and order-preserving, valid in any lifecycle phase,
// including before any task exists. They stay client-local.
func (c *Controller) RecordSos(seconds float64) {
	c.mu.Lock()
	c.sosMarks = append(c.sosMarks, seconds)
	count := len(c.sosMarks)
	taskID := c.taskID
	c.mu.Unlock()

	c.log.Info("sos mark recorded",
		zap.String("taskId", taskID),
		zap.Float64("seconds", seconds),
		zap.Int("total", count))
}

// RequestSummaryGeneration triggers summary (re)generation for the current
// task. It is only accepted in the ready_for_synthesis, generating_summary,
// and completed phases; elsewhere it is a surfaced no-op. On success polling
// restarts for the same task id, even from a terminal phase. A failed remote
// trigger leaves phase and polling untouched.
func (c *Controller) RequestSummaryGeneration(ctx context.Context) error {
	c.mu.Lock()
	taskID := c.taskID
	err := c.machine.BeginSummary()
	c.mu.Unlock()

	if err != nil {
		c.events.Publish(tasks.Event{
			TaskID:  taskID,
			Type:    tasks.EventTypeNotice,
			Phase:   c.machine.Phase(),
			Message: "Summary generation is not available in the current phase.",
		})
		return err
	}

	if err := c.remote.RequestSummary(ctx, taskID); err != nil {
		c.log.Warn("summary request failed", zap.String("taskId", taskID), zap.Error(err))
		c.events.Publish(tasks.Event{
			TaskID:  taskID,
			Type:    tasks.EventTypeNotice,
			Phase:   c.machine.Phase(),
			Message: "Could not request summary generation. Please try again.",
		})
		return err
	}

	c.mu.Lock()
	if c.taskID != taskID {
		// The session was replaced while the request was in flight.
		c.mu.Unlock()
		return nil
	}
	c.machine.ConfirmSummary()
	c.latest.Phase = domain.PhaseGeneratingSummary
	c.generation = c.poller.Start(taskID)
	c.mu.Unlock()

	c.events.Publish(tasks.Event{
		TaskID: taskID,
		Type:   tasks.EventTypeStatus,
		Phase:  domain.PhaseGeneratingSummary,
	})
	return nil
}

// Snapshot returns a read-only copy of the current session.
func (c *Controller) Snapshot() domain.Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	var result *domain.Result
	if c.result != nil {
		copied := *c.result
		result = &copied
	}

	return domain.Session{
		TaskID:        c.taskID,
		VideoURL:      c.videoURL,
		Status:        c.latest,
		Result:        result,
		SosMarks:      append([]float64(nil), c.sosMarks...),
		PollingActive: c.poller.Active(),
	}
}

// Stop halts polling without discarding session state.
func (c *Controller) Stop() {
	c.poller.Stop()
}

// HandleStatus implements tasks.Sink. Each authoritative status read updates
// the session and drives the state machine; a delivery from a superseded
// generation never mutates session state.
func (c *Controller) HandleStatus(generation string, status domain.TaskStatus) bool {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return false
	}
	c.latest = status
	outcome := c.machine.Apply(status)
	c.mu.Unlock()

	c.events.Publish(tasks.Event{
		TaskID:   status.TaskID,
		Type:     tasks.EventTypeStatus,
		Phase:    outcome.Phase,
		Progress: status.Progress,
	})

	if outcome.Phase == domain.PhaseFailed {
		c.events.Publish(tasks.Event{
			TaskID:  status.TaskID,
			Type:    tasks.EventTypeError,
			Phase:   domain.PhaseFailed,
			Message: outcome.ErrorMessage,
		})
	}

	if outcome.FetchResult {
		go c.fetchResult(generation, status.TaskID)
	}

	return !outcome.StopPolling
}

// HandleStatusError implements tasks.Sink. Transport hiccups are retried on
// the next tick without changing phase; an unknown task id is terminal; a
// malformed payload is logged and the tick ignored.
func (c *Controller) HandleStatusError(generation string, err error) bool {
	c.mu.Lock()
	if generation != c.generation {
		c.mu.Unlock()
		return false
	}
	taskID := c.taskID

	var malformed *domain.MalformedStatusError
	switch {
	case errors.Is(err, remote.ErrNotFound):
		outcome := c.machine.Fail(err.Error())
		c.latest.Phase = domain.PhaseFailed
		c.latest.ErrorMessage = outcome.ErrorMessage
		c.mu.Unlock()

		c.events.Publish(tasks.Event{
			TaskID:  taskID,
			Type:    tasks.EventTypeError,
			Phase:   domain.PhaseFailed,
			Message: outcome.ErrorMessage,
		})
		return false

	case errors.As(err, &malformed):
		c.mu.Unlock()
		c.log.Warn("ignoring malformed status payload",
			zap.String("taskId", taskID),
			zap.Error(err))
		return true

	default:
		keep := c.machine.NoteTransient()
		c.mu.Unlock()

		c.log.Warn("status poll failed, will retry",
			zap.String("taskId", taskID),
			zap.Error(err))
		if !keep {
			c.events.Publish(tasks.Event{
				TaskID:  taskID,
				Type:    tasks.EventTypeNotice,
				Phase:   c.machine.Phase(),
				Message: "Lost contact with the processing server. Polling paused.",
			})
		}
		return keep
	}
}

// fetchResult downloads the synthesized notes after entering completed. It
// retries on its own short backoff, independent of the polling cadence, and
// gives up with a user-visible notice once attempts are exhausted. A stale
// generation aborts silently so a late result cannot land in a replaced
// session.
func (c *Controller) fetchResult(generation, taskID string) {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.ResultFetchAttempts; attempt++ {
		c.mu.Lock()
		current := generation == c.generation
		c.mu.Unlock()
		if !current {
			return
		}

		result, err := c.remote.GetResult(context.Background(), taskID)
		if err == nil {
			c.mu.Lock()
			if generation != c.generation {
				c.mu.Unlock()
				return
			}
			c.result = &result
			c.mu.Unlock()

			c.log.Info("result fetched", zap.String("taskId", taskID))
			c.events.Publish(tasks.Event{
				TaskID: taskID,
				Type:   tasks.EventTypeResult,
				Phase:  domain.PhaseCompleted,
			})
			return
		}

		lastErr = err
		c.log.Warn("result fetch failed",
			zap.String("taskId", taskID),
			zap.Int("attempt", attempt),
			zap.Error(err))

		if !remote.IsTransient(err) {
			break
		}
		if attempt < c.cfg.ResultFetchAttempts {
			time.Sleep(time.Duration(attempt) * c.cfg.ResultFetchBackoff)
		}
	}

	c.log.Error("giving up on result fetch",
		zap.String("taskId", taskID),
		zap.Error(fmt.Errorf("%w: %v", ErrResultUnavailable, lastErr)))
	c.events.Publish(tasks.Event{
		TaskID:  taskID,
		Type:    tasks.EventTypeNotice,
		Phase:   domain.PhaseCompleted,
		Message: "Processing finished, but the notes could not be downloaded.",
	})
}
