package sync_test

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/sync"
	"github.com/redpencilio/solid-shop-search-service/internal/tasks"
)

// fakeQueue serves a fixed pending snapshot and records status transitions.
type fakeQueue struct {
	pending     []tasks.Task
	discoverErr error
	statusErr   error
	statuses    map[string]tasks.Status
}

func (f *fakeQueue) DiscoverPending(_ context.Context) ([]tasks.Task, error) {
	return f.pending, f.discoverErr
}

func (f *fakeQueue) SetStatus(_ context.Context, taskID string, status tasks.Status) error {
	if f.statusErr != nil {
		return f.statusErr
	}
	if f.statuses == nil {
		f.statuses = make(map[string]tasks.Status)
	}
	if _, done := f.statuses[taskID]; done {
		return errors.New("status already recorded")
	}
	f.statuses[taskID] = status
	return nil
}

// fakeExtractor maps task ids to canned destinations or errors.
type fakeExtractor struct {
	dests map[string][]store.Destination
	errs  map[string]error
}

func (f *fakeExtractor) Extract(_ context.Context, task tasks.Task) ([]store.Destination, error) {
	if err, ok := f.errs[task.ID]; ok {
		return nil, err
	}
	return f.dests[task.ID], nil
}

// applyStore records applies and fails configured targets.
type applyStore struct {
	fakeStore
	failTargets map[string]error
}

func (s *applyStore) Apply(ctx context.Context, dest store.Destination) error {
	if err, ok := s.failTargets[dest.Target]; ok {
		return err
	}
	return s.fakeStore.Apply(ctx, dest)
}

func TestProcessPending_Success(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{pending: []tasks.Task{
		{ID: "urn:task:1", Type: tasks.TypeSavedOrder, OrderRef: "urn:shop:order"},
	}}
	extractor := &fakeExtractor{dests: map[string][]store.Destination{
		"urn:task:1": {
			{Target: "https://buyer.example/doc.ttl"},
			{Target: "https://seller.example/doc.ttl"},
		},
	}}
	st := &applyStore{}

	orchestrator := sync.NewOrchestrator(queue, extractor, st)
	summary, err := orchestrator.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sync.Summary{Discovered: 1, Succeeded: 1}, summary)
	assert.Equal(t, tasks.StatusDone, queue.statuses["urn:task:1"])
	assert.Len(t, st.applied, 2)
}

func TestProcessPending_PartialFailureFailsWholesale(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{pending: []tasks.Task{
		{ID: "urn:task:1", Type: tasks.TypeUpdatedOrder, OrderRef: "urn:shop:order"},
	}}
	extractor := &fakeExtractor{dests: map[string][]store.Destination{
		"urn:task:1": {
			{Target: "https://buyer.example/doc.ttl"},
			{Target: "https://seller.example/doc.ttl"},
		},
	}}
	st := &applyStore{failTargets: map[string]error{
		"https://seller.example/doc.ttl": &store.UnreachableError{
			Source: "https://seller.example/doc.ttl", Err: errors.New("locked"),
		},
	}}

	orchestrator := sync.NewOrchestrator(queue, extractor, st)
	summary, err := orchestrator.ProcessPending(context.Background())
	require.NoError(t, err)

	// One destination succeeded, yet the task as a whole is failed.
	assert.Equal(t, sync.Summary{Discovered: 1, Failed: 1}, summary)
	assert.Equal(t, tasks.StatusFailed, queue.statuses["urn:task:1"])
	assert.Len(t, st.applied, 1)
}

func TestProcessPending_ExtractionFailure(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{pending: []tasks.Task{
		{ID: "urn:task:1", Type: tasks.TypeSavedOrder, OrderRef: "urn:shop:gone"},
	}}
	extractor := &fakeExtractor{errs: map[string]error{
		"urn:task:1": errors.New("order not found"),
	}}
	st := &applyStore{}

	orchestrator := sync.NewOrchestrator(queue, extractor, st)
	summary, err := orchestrator.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sync.Summary{Discovered: 1, Failed: 1}, summary)
	assert.Equal(t, tasks.StatusFailed, queue.statuses["urn:task:1"])
	assert.Empty(t, st.applied, "no destination may be applied after a failed extraction")
}

func TestProcessPending_UnknownTaskAcknowledged(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{pending: []tasks.Task{
		{ID: "urn:task:1", Type: tasks.TypeUnknown},
	}}
	extractor := &fakeExtractor{} // acknowledge policy: no destinations, no error
	st := &applyStore{}

	orchestrator := sync.NewOrchestrator(queue, extractor, st)
	summary, err := orchestrator.ProcessPending(context.Background())
	require.NoError(t, err)

	assert.Equal(t, sync.Summary{Discovered: 1, Acknowledged: 1}, summary)
	assert.Equal(t, tasks.StatusDone, queue.statuses["urn:task:1"])
	assert.Empty(t, st.applied, "acknowledged tasks must not touch any store")
}

func TestProcessPending_VanishedTaskIsNonFatal(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{
		pending: []tasks.Task{
			{ID: "urn:task:1", Type: tasks.TypeSavedOrder, OrderRef: "urn:shop:order"},
			{ID: "urn:task:2", Type: tasks.TypeSavedOrder, OrderRef: "urn:shop:order"},
		},
		statusErr: tasks.ErrNotFound,
	}
	extractor := &fakeExtractor{dests: map[string][]store.Destination{
		"urn:task:1": {{Target: "https://buyer.example/doc.ttl"}},
		"urn:task:2": {{Target: "https://buyer.example/doc.ttl"}},
	}}
	st := &applyStore{}

	orchestrator := sync.NewOrchestrator(queue, extractor, st)
	summary, err := orchestrator.ProcessPending(context.Background())
	require.NoError(t, err)

	// Both tasks were still processed despite the recording failures.
	assert.Equal(t, 2, summary.Succeeded)
	assert.Len(t, st.applied, 2)
}

func TestProcessPending_DiscoveryFailure(t *testing.T) {
	t.Parallel()

	queue := &fakeQueue{discoverErr: errors.New("endpoint down")}
	orchestrator := sync.NewOrchestrator(queue, &fakeExtractor{}, &applyStore{})

	_, err := orchestrator.ProcessPending(context.Background())
	assert.Error(t, err)
}
