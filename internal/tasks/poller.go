package tasks

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"lecture-companion/internal/domain"
)

// StatusSource fetches one status snapshot for a task.
type StatusSource interface {
	GetStatus(ctx context.Context, taskID string) (domain.TaskStatus, error)
}

// Sink receives poll outcomes tagged with the generation token of the loop
// that produced them. The return value decides whether the loop continues.
type Sink interface {
	HandleStatus(generation string, status domain.TaskStatus) (keepPolling bool)
	HandleStatusError(generation string, err error) (keepPolling bool)
}

// Poller drives the repeating status fetch loop for exactly one task at a
// time. Starting a new loop supersedes the previous one; its in-flight fetch
// is allowed to finish but the delivery is discarded once the generation
// token no longer matches. Ticks never overlap: an interval firing while a
// fetch is still in flight is skipped, not queued.
type Poller struct {
	source   StatusSource
	sink     Sink
	interval time.Duration
	log      *zap.Logger

	mu          sync.Mutex
	generation  string
	taskID      string
	cancel      context.CancelFunc
	inFlightGen string
}

// NewPoller creates a stopped poller with the given cadence.
func NewPoller(source StatusSource, sink Sink, interval time.Duration, log *zap.Logger) *Poller {
	return &Poller{
		source:   source,
		sink:     sink,
		interval: interval,
		log:      log,
	}
}

// Start begins polling taskID, cancelling any prior loop first. It performs
// one immediate fetch and then repeats on the fixed interval until stopped.
// The returned generation token identifies this loop's deliveries.
func (p *Poller) Start(taskID string) string {
	p.mu.Lock()
	if p.cancel != nil {
		p.cancel()
	}

	generation := uuid.NewString()
	ctx, cancel := context.WithCancel(context.Background())
	p.generation = generation
	p.taskID = taskID
	p.cancel = cancel
	p.inFlightGen = ""
	p.mu.Unlock()

	p.log.Info("polling started",
		zap.String("taskId", taskID),
		zap.String("generation", generation))

	go p.loop(ctx, generation, taskID)
	return generation
}

// Stop cancels the interval timer synchronously. A fetch already in flight
// completes on its own and is discarded by the generation check.
func (p *Poller) Stop() {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.stopLocked(p.generation)
}

// Active reports whether a polling loop is currently running.
func (p *Poller) Active() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.cancel != nil
}

// loop runs the immediate fetch and the fixed-interval cadence.
func (p *Poller) loop(ctx context.Context, generation, taskID string) {
	p.tick(generation, taskID)

	ticker := time.NewTicker(p.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			p.tick(generation, taskID)
		}
	}
}

// tick launches one fetch unless the loop was superseded or a fetch is still
// outstanding.
func (p *Poller) tick(generation, taskID string) {
	p.mu.Lock()
	if p.generation != generation || p.cancel == nil {
		p.mu.Unlock()
		return
	}
	if p.inFlightGen == generation {
		p.mu.Unlock()
		p.log.Debug("skipping poll tick, previous fetch still in flight",
			zap.String("taskId", taskID))
		return
	}
	p.inFlightGen = generation
	p.mu.Unlock()

	go p.fetch(generation, taskID)
}

// fetch performs one status call and delivers the outcome to the sink. The
// call deliberately does not use the loop context: stopping the poller must
// not abort the transport call, only invalidate its delivery.
func (p *Poller) fetch(generation, taskID string) {
	status, err := p.source.GetStatus(context.Background(), taskID)

	p.mu.Lock()
	// Only the fetch that marked itself in flight may clear the marker. A
	// stale fetch from a superseded loop must not reopen the current loop's
	// tick window while its own fetch is still outstanding.
	if p.inFlightGen == generation {
		p.inFlightGen = ""
	}
	current := p.generation == generation && p.cancel != nil
	p.mu.Unlock()

	if !current {
		p.log.Debug("discarding poll response from superseded loop",
			zap.String("taskId", taskID),
			zap.String("generation", generation))
		return
	}

	var keep bool
	if err != nil {
		keep = p.sink.HandleStatusError(generation, err)
	} else {
		keep = p.sink.HandleStatus(generation, status)
	}

	if !keep {
		p.mu.Lock()
		p.stopLocked(generation)
		p.mu.Unlock()
		p.log.Info("polling stopped", zap.String("taskId", taskID))
	}
}

// stopLocked cancels the loop matching generation. Callers hold p.mu.
func (p *Poller) stopLocked(generation string) {
	if p.generation != generation || p.cancel == nil {
		return
	}
	p.cancel()
	p.cancel = nil
}
