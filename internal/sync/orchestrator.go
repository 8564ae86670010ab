package sync

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/tasks"
	"github.com/redpencilio/solid-shop-search-service/internal/telemetry"
)

// Summary reports what one processing run did.
type Summary struct {
	Discovered   int
	Succeeded    int
	Failed       int
	Acknowledged int
}

// Orchestrator drains the pending task queue.
type Orchestrator interface {
	// ProcessPending discovers the pending tasks and processes each one to
	// a single recorded outcome. The returned error covers discovery only;
	// per-task failures are recorded on the tasks themselves.
	ProcessPending(ctx context.Context) (Summary, error)
}

type defaultOrchestrator struct {
	queue     tasks.Queue
	extractor Extractor
	store     store.Client
	metrics   *telemetry.SyncMetrics
}

// OrchestratorOption configures the orchestrator.
type OrchestratorOption func(*defaultOrchestrator)

// WithMetrics records task outcomes on the given metrics.
func WithMetrics(m *telemetry.SyncMetrics) OrchestratorOption {
	return func(o *defaultOrchestrator) {
		o.metrics = m
	}
}

// NewOrchestrator creates an orchestrator with injected dependencies.
func NewOrchestrator(queue tasks.Queue, extractor Extractor, st store.Client, opts ...OrchestratorOption) Orchestrator {
	o := &defaultOrchestrator{
		queue:     queue,
		extractor: extractor,
		store:     st,
	}
	for _, opt := range opts {
		opt(o)
	}
	return o
}

func (o *defaultOrchestrator) ProcessPending(ctx context.Context) (Summary, error) {
	pending, err := o.queue.DiscoverPending(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("failed to discover pending tasks: %w", err)
	}

	summary := Summary{Discovered: len(pending)}
	for _, task := range pending {
		start := time.Now()
		status, acknowledged := o.processTask(ctx, task)
		o.metrics.RecordTask(string(task.Type), string(status), time.Since(start))

		switch {
		case acknowledged:
			summary.Acknowledged++
		case status == tasks.StatusDone:
			summary.Succeeded++
		default:
			summary.Failed++
		}

		// Recording the outcome is the single status transition this task
		// gets. When it fails the task stays pending and is retried on the
		// next run; applying deltas twice is safe.
		if err := o.queue.SetStatus(ctx, task.ID, status); err != nil {
			if errors.Is(err, tasks.ErrNotFound) {
				slog.Warn("Task vanished before its outcome could be recorded",
					"task", task.ID, "status", status)
				continue
			}
			slog.Error("Failed to record task outcome",
				"task", task.ID, "status", status, "error", err)
		}
	}
	return summary, nil
}

// processTask turns one task into its outcome status. The second return
// value marks unknown tasks drained without any store interaction.
func (o *defaultOrchestrator) processTask(ctx context.Context, task tasks.Task) (tasks.Status, bool) {
	slog.Info("Processing task", "task", task.ID, "type", task.Type)

	destinations, err := o.extractor.Extract(ctx, task)
	if err != nil {
		slog.Error("Task extraction failed", "task", task.ID, "type", task.Type, "error", err)
		return tasks.StatusFailed, false
	}
	if len(destinations) == 0 {
		if task.Type == tasks.TypeUnknown {
			slog.Info("Acknowledging task of unrecognized type", "task", task.ID)
			return tasks.StatusDone, true
		}
		return tasks.StatusDone, false
	}

	// Apply all destinations and collect every result before deciding: a
	// single failure fails the whole task even when siblings succeeded.
	results := make([]error, len(destinations))
	var group errgroup.Group
	for i, dest := range destinations {
		group.Go(func() error {
			results[i] = o.store.Apply(ctx, dest)
			return nil
		})
	}
	group.Wait() //nolint:errcheck

	status := tasks.StatusDone
	for i, applyErr := range results {
		if applyErr != nil {
			slog.Error("Failed to apply destination",
				"task", task.ID, "target", destinations[i].Target, "error", applyErr)
			status = tasks.StatusFailed
		}
	}
	return status, false
}
