package sync

import (
	"context"
	"log/slog"
	"math/rand/v2"
	"time"
)

const (
	// defaultPollingInterval is the base interval between queue scans.
	defaultPollingInterval = 30 * time.Second
	// defaultPollingJitter is the maximum random offset applied to the
	// polling interval.
	defaultPollingJitter = 5 * time.Second
)

// Coordinator drives the orchestrator on a jittered polling schedule. Task
// webhooks trigger additional runs through the HTTP layer; the poll catches
// tasks created while no webhook fired.
type Coordinator interface {
	// Start begins the polling loop. Blocks until the context is cancelled
	// or Stop is called.
	Start(ctx context.Context) error

	// Stop gracefully stops the coordinator.
	Stop() error
}

type defaultCoordinator struct {
	orchestrator Orchestrator

	interval time.Duration
	jitter   time.Duration

	cancelFunc context.CancelFunc
	done       chan struct{}
}

// CoordinatorOption configures the coordinator.
type CoordinatorOption func(*defaultCoordinator)

// WithInterval sets the base polling interval.
func WithInterval(d time.Duration) CoordinatorOption {
	return func(c *defaultCoordinator) {
		c.interval = d
	}
}

// WithJitter sets the maximum random offset applied to the interval.
func WithJitter(d time.Duration) CoordinatorOption {
	return func(c *defaultCoordinator) {
		c.jitter = d
	}
}

// NewCoordinator creates a coordinator around the given orchestrator.
func NewCoordinator(orchestrator Orchestrator, opts ...CoordinatorOption) Coordinator {
	c := &defaultCoordinator{
		orchestrator: orchestrator,
		interval:     defaultPollingInterval,
		jitter:       defaultPollingJitter,
		done:         make(chan struct{}),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// pollingInterval returns the base interval with a random jitter applied, so
// multiple broker instances do not scan the task graph simultaneously.
func (c *defaultCoordinator) pollingInterval() time.Duration {
	if c.jitter <= 0 {
		return c.interval
	}
	//nolint:gosec // G404: non-cryptographic randomness is fine for jitter
	offset := time.Duration(rand.Int64N(int64(2*c.jitter))) - c.jitter
	return c.interval + offset
}

func (c *defaultCoordinator) Start(ctx context.Context) error {
	coordCtx, cancel := context.WithCancel(ctx)
	c.cancelFunc = cancel
	defer func() {
		close(c.done)
		slog.Info("Task coordinator shutting down")
	}()

	interval := c.pollingInterval()
	slog.Info("Starting task coordinator", "base_interval", c.interval, "actual_interval", interval)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	c.runOnce(coordCtx)

	for {
		select {
		case <-ticker.C:
			c.runOnce(coordCtx)
			ticker.Reset(c.pollingInterval())
		case <-coordCtx.Done():
			slog.Info("Task coordinator stopping")
			return nil
		}
	}
}

func (c *defaultCoordinator) Stop() error {
	if c.cancelFunc != nil {
		slog.Info("Stopping task coordinator")
		c.cancelFunc()
		<-c.done
	}
	return nil
}

func (c *defaultCoordinator) runOnce(ctx context.Context) {
	summary, err := c.orchestrator.ProcessPending(ctx)
	if err != nil {
		slog.Error("Task discovery failed", "error", err)
		return
	}
	if summary.Discovered > 0 {
		slog.Info("Processed pending tasks",
			"discovered", summary.Discovered,
			"succeeded", summary.Succeeded,
			"failed", summary.Failed,
			"acknowledged", summary.Acknowledged)
	}
}
