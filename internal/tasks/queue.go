package tasks

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/knakk/sparql"

	"github.com/redpencilio/solid-shop-search-service/internal/catalog"
)

//go:embed queries.sparql
var queriesFile string

var queries = sparql.LoadBank(strings.NewReader(queriesFile))

// Queue discovers pending tasks and records their outcomes.
type Queue interface {
	// DiscoverPending returns a snapshot of the pending tasks, including
	// those of unrecognized types. Tasks picked up while still pending by
	// two overlapping runs are processed twice; processing is idempotent,
	// so the duplicate run is wasted work, not corruption.
	DiscoverPending(ctx context.Context) ([]Task, error)

	// SetStatus records the task's outcome. It returns ErrNotFound when
	// the task no longer has a status record, and ErrInvalidStatus when
	// status is outside the recognized set. A task receives exactly one
	// outcome per processing run.
	SetStatus(ctx context.Context, taskID string, status Status) error
}

type sparqlQueue struct {
	client *catalog.Client
	graph  string
}

// NewQueue creates a task queue backed by the given task graph.
func NewQueue(client *catalog.Client, graphIRI string) Queue {
	return &sparqlQueue{client: client, graph: graphIRI}
}

func (q *sparqlQueue) DiscoverPending(ctx context.Context) ([]Task, error) {
	query, err := queries.Prepare("discover-pending", struct{ Graph string }{q.graph})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare discover-pending query: %w", err)
	}
	res, err := q.client.Select(ctx, query)
	if err != nil {
		return nil, fmt.Errorf("failed to discover pending tasks: %w", err)
	}

	var found []Task
	for _, sol := range res.Solutions() {
		found = append(found, Task{
			ID:       binding(sol, "task"),
			Type:     TypeFromIRI(binding(sol, "taskType")),
			OrderRef: binding(sol, "order"),
			PodRef:   binding(sol, "pod"),
			PartyRef: binding(sol, "webId"),
		})
	}
	return found, nil
}

func (q *sparqlQueue) SetStatus(ctx context.Context, taskID string, status Status) error {
	if !status.Valid() {
		return fmt.Errorf("%w: %q", ErrInvalidStatus, status)
	}
	if _, err := rdf.NewIRI(taskID); err != nil {
		return fmt.Errorf("invalid task id %q: %w", taskID, err)
	}

	// A SPARQL update matching nothing succeeds silently, so check for the
	// status record first to tell a vanished task apart from a real write.
	query, err := queries.Prepare("current-status", struct{ Graph, Task string }{q.graph, taskID})
	if err != nil {
		return fmt.Errorf("failed to prepare current-status query: %w", err)
	}
	res, err := q.client.Select(ctx, query)
	if err != nil {
		return fmt.Errorf("failed to read status of %s: %w", taskID, err)
	}
	if len(res.Solutions()) == 0 {
		return fmt.Errorf("%w: %s", ErrNotFound, taskID)
	}

	update, err := queries.Prepare("replace-status", struct {
		Graph, Task string
		Status      Status
	}{q.graph, taskID, status})
	if err != nil {
		return fmt.Errorf("failed to prepare replace-status update: %w", err)
	}
	if err := q.client.Update(ctx, update); err != nil {
		return fmt.Errorf("failed to set status of %s to %s: %w", taskID, status, err)
	}
	return nil
}

// binding returns the solution's value for the variable, or the empty string
// when the optional binding is absent.
func binding(sol map[string]rdf.Term, name string) string {
	term, ok := sol[name]
	if !ok || term == nil {
		return ""
	}
	return term.String()
}
