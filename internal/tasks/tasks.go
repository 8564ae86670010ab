// Package tasks discovers pending synchronization tasks and performs their
// terminal status transitions. Tasks are created by other services when a
// business event occurs; this package never creates or deletes them.
package tasks

import (
	"errors"

	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

// Type classifies what a task asks the broker to propagate.
type Type string

const (
	// TypeSyncOfferings re-synchronizes a party's offerings into the catalog.
	TypeSyncOfferings Type = "sync-offerings"
	// TypeSavedOrder mirrors a freshly created order into both parties' pods.
	TypeSavedOrder Type = "saved-order"
	// TypeUpdatedOrder propagates an order status change into both pods.
	TypeUpdatedOrder Type = "updated-order"
	// TypeUnknown marks a task type this broker does not recognize.
	TypeUnknown Type = "unknown"
)

// TypeFromIRI maps a task type identifier from the task graph to a Type.
func TypeFromIRI(iri string) Type {
	switch iri {
	case vocab.ExtSyncOfferingsTask.String():
		return TypeSyncOfferings
	case vocab.ExtSavedOrderTask.String():
		return TypeSavedOrder
	case vocab.ExtUpdatedOrderTask.String():
		return TypeUpdatedOrder
	default:
		return TypeUnknown
	}
}

// Status is a task's processing status, stored as a plain literal.
type Status string

const (
	// StatusPending marks a task awaiting processing.
	StatusPending Status = "pending"
	// StatusDone marks a successfully processed task.
	StatusDone Status = "done"
	// StatusFailed marks a task whose processing failed. Failed is
	// terminal: discovery only returns pending tasks, so a failed task is
	// re-attempted only after an external reset.
	StatusFailed Status = "failed"
)

// Valid reports whether s is one of the recognized status values.
func (s Status) Valid() bool {
	switch s {
	case StatusPending, StatusDone, StatusFailed:
		return true
	default:
		return false
	}
}

var (
	// ErrInvalidStatus indicates a status outside the recognized set. This
	// is a programming error, not an operational condition.
	ErrInvalidStatus = errors.New("invalid task status")

	// ErrNotFound indicates the task's current status record is missing,
	// typically because the task was deleted concurrently. Callers treat
	// this as non-fatal.
	ErrNotFound = errors.New("task not found")
)

// Task is one entry of the synchronization queue.
type Task struct {
	// ID is the task's IRI in the task graph.
	ID string

	Type Type

	// OrderRef is set for order-related task types.
	OrderRef string

	// PodRef and PartyRef are set for offering synchronization tasks.
	PodRef   string
	PartyRef string
}
