// Package sync implements the task-driven synchronization core: turning
// pending tasks into store deltas, applying them, and recording one outcome
// per task.
package sync

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/knakk/sparql"

	"github.com/redpencilio/solid-shop-search-service/internal/catalog"
	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
	"github.com/redpencilio/solid-shop-search-service/internal/graph"
	"github.com/redpencilio/solid-shop-search-service/internal/orders"
	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/tasks"
	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

//go:embed queries.sparql
var queriesFile string

var queries = sparql.LoadBank(strings.NewReader(queriesFile))

// ErrUnsupportedTaskType indicates a task of a type the extractor has no
// handler for.
var ErrUnsupportedTaskType = errors.New("unsupported task type")

// UnknownTaskPolicy decides what happens to tasks of unrecognized types.
type UnknownTaskPolicy string

const (
	// PolicyAcknowledge marks unknown tasks done without touching any
	// store, so a queue shared with other services drains.
	PolicyAcknowledge UnknownTaskPolicy = "acknowledge"
	// PolicyFail marks unknown tasks failed.
	PolicyFail UnknownTaskPolicy = "fail"
)

// Valid reports whether p is a recognized policy.
func (p UnknownTaskPolicy) Valid() bool {
	return p == PolicyAcknowledge || p == PolicyFail
}

// Extractor computes the destinations a task must apply. Extraction only
// reads; all writes happen when the destinations are applied.
type Extractor interface {
	Extract(ctx context.Context, task tasks.Task) ([]store.Destination, error)
}

type defaultExtractor struct {
	catalog  *catalog.Client
	repo     orders.Repository
	store    store.Client
	resolver credentials.Resolver
	graph    string
	policy   UnknownTaskPolicy
	docPath  string
	prodPath string
}

// ExtractorOption configures the extractor.
type ExtractorOption func(*defaultExtractor)

// WithUnknownTaskPolicy sets the handling of unrecognized task types.
func WithUnknownTaskPolicy(p UnknownTaskPolicy) ExtractorOption {
	return func(e *defaultExtractor) {
		e.policy = p
	}
}

// WithDocumentPaths overrides the pod documents read and written during
// synchronization.
func WithDocumentPaths(offerings, products string) ExtractorOption {
	return func(e *defaultExtractor) {
		e.docPath = offerings
		e.prodPath = products
	}
}

// NewExtractor creates an extractor writing catalog deltas into the given
// graph.
func NewExtractor(
	cat *catalog.Client,
	repo orders.Repository,
	st store.Client,
	resolver credentials.Resolver,
	graphIRI string,
	opts ...ExtractorOption,
) Extractor {
	e := &defaultExtractor{
		catalog:  cat,
		repo:     repo,
		store:    st,
		resolver: resolver,
		graph:    graphIRI,
		policy:   PolicyAcknowledge,
		docPath:  orders.OfferingsDocument,
		prodPath: orders.ProductsDocument,
	}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

func (e *defaultExtractor) Extract(ctx context.Context, task tasks.Task) ([]store.Destination, error) {
	switch task.Type {
	case tasks.TypeSyncOfferings:
		return e.extractSyncOfferings(ctx, task)
	case tasks.TypeSavedOrder:
		return e.extractSavedOrder(ctx, task)
	case tasks.TypeUpdatedOrder:
		return e.extractUpdatedOrder(ctx, task)
	default:
		if e.policy == PolicyAcknowledge {
			return nil, nil
		}
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedTaskType, task.Type)
	}
}

// extractSyncOfferings replaces a party's catalog contribution with the
// current contents of its pod: delete everything tagged with the pod, insert
// the freshly shaped offerings.
func (e *defaultExtractor) extractSyncOfferings(ctx context.Context, task tasks.Task) ([]store.Destination, error) {
	if task.PodRef == "" || task.PartyRef == "" {
		return nil, fmt.Errorf("task %s lacks a pod or web id reference", task.ID)
	}
	pod := store.EnsureTrailingSlash(task.PodRef)

	fetch, err := e.resolver.Resolve(ctx, task.PartyRef)
	if err != nil {
		return nil, fmt.Errorf("failed to resolve credentials for %s: %w", task.PartyRef, err)
	}

	docs, err := e.store.ReadDocuments(ctx, fetch,
		store.DocumentURL(pod, e.docPath),
		store.DocumentURL(pod, e.prodPath),
	)
	if err != nil {
		return nil, err
	}

	shaped, err := orders.ShapeOfferings(docs, pod)
	if err != nil {
		return nil, err
	}

	old, err := e.oldOfferings(ctx, pod)
	if err != nil {
		return nil, err
	}

	return []store.Destination{{
		Target: e.graph,
		Delete: old,
		Insert: shaped,
	}}, nil
}

func (e *defaultExtractor) oldOfferings(ctx context.Context, pod string) ([]rdf.Triple, error) {
	q, err := queries.Prepare("old-offerings", struct{ Graph, Pod string }{e.graph, pod})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare old-offerings query: %w", err)
	}
	triples, err := e.catalog.SelectTriples(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("failed to read old offerings of %s: %w", pod, err)
	}
	return triples, nil
}

// extractSavedOrder mirrors a freshly placed order into both parties' pods.
func (e *defaultExtractor) extractSavedOrder(ctx context.Context, task tasks.Task) ([]store.Destination, error) {
	if task.OrderRef == "" {
		return nil, fmt.Errorf("task %s lacks an order reference", task.ID)
	}
	triples, err := e.repo.OrderSubgraph(ctx, task.OrderRef)
	if err != nil {
		return nil, err
	}

	g := graph.New(triples...)
	order, err := rdf.NewIRI(task.OrderRef)
	if err != nil {
		return nil, fmt.Errorf("invalid order IRI %q: %w", task.OrderRef, err)
	}

	buyerPod := objectString(g, order, vocab.ExtBuyerPod)
	sellerPod := objectString(g, order, vocab.ExtSellerPod)
	buyerWebID := objectString(g, order, vocab.SchemaCustomer)
	sellerWebID := objectString(g, order, vocab.SchemaSeller)
	if buyerPod == "" || sellerPod == "" || buyerWebID == "" || sellerWebID == "" {
		return nil, fmt.Errorf("order %s misses party references", task.OrderRef)
	}

	return []store.Destination{
		{
			Target:      store.DocumentURL(store.EnsureTrailingSlash(buyerPod), e.docPath),
			AuthContext: buyerWebID,
			Insert:      triples,
		},
		{
			Target:      store.DocumentURL(store.EnsureTrailingSlash(sellerPod), e.docPath),
			AuthContext: sellerWebID,
			Insert:      triples,
		},
	}, nil
}

// Order predicates kept consistent between the catalog and the pods.
var trackedOrderPredicates = []rdf.IRI{
	vocab.SchemaOrderStatus,
	vocab.ExtBuyerPod,
	vocab.ExtSellerPod,
	vocab.SchemaPaymentMethodID,
}

// extractUpdatedOrder propagates an order's current catalog state into both
// pods. Each pod is read first and the delta is the difference between what
// the pod holds and what the catalog says, so re-running the task yields
// empty sets.
func (e *defaultExtractor) extractUpdatedOrder(ctx context.Context, task tasks.Task) ([]store.Destination, error) {
	if task.OrderRef == "" {
		return nil, fmt.Errorf("task %s lacks an order reference", task.ID)
	}
	info, err := e.repo.PaymentInfo(ctx, task.OrderRef)
	if err != nil {
		return nil, err
	}
	order, err := rdf.NewIRI(task.OrderRef)
	if err != nil {
		return nil, fmt.Errorf("invalid order IRI %q: %w", task.OrderRef, err)
	}

	desired := graph.New(
		rdf.Triple{Subj: order, Pred: vocab.SchemaOrderStatus, Obj: statusTerm(info.Status)},
		rdf.Triple{Subj: order, Pred: vocab.SchemaPaymentMethodID, Obj: literal(info.PaymentID)},
	)

	parties := []struct {
		pod   string
		webID string
	}{
		{info.BuyerPod, info.BuyerWebID},
		{info.SellerPod, info.SellerWebID},
	}

	var destinations []store.Destination
	for _, party := range parties {
		doc := store.DocumentURL(store.EnsureTrailingSlash(party.pod), e.docPath)

		fetch, err := e.resolver.Resolve(ctx, party.webID)
		if err != nil {
			return nil, fmt.Errorf("failed to resolve credentials for %s: %w", party.webID, err)
		}
		podGraph, err := e.store.ReadDocuments(ctx, fetch, doc)
		if err != nil {
			return nil, err
		}

		current := graph.New()
		for _, pred := range trackedOrderPredicates {
			current.Add(podGraph.Match(order, pred, nil)...)
		}

		destinations = append(destinations, store.Destination{
			Target:      doc,
			AuthContext: party.webID,
			Delete:      current.Minus(desired).Triples(),
			Insert:      desired.Minus(current).Triples(),
		})
	}
	return destinations, nil
}

func objectString(g *graph.Graph, s rdf.Subject, p rdf.Predicate) string {
	obj := g.FirstObject(s, p)
	if obj == nil {
		return ""
	}
	return obj.String()
}

// statusTerm renders an order status binding back into a term. Statuses are
// schema.org IRIs; anything that does not parse as an IRI is kept literal.
func statusTerm(status string) rdf.Object {
	if iri, err := rdf.NewIRI(status); err == nil && strings.Contains(status, "://") {
		return iri
	}
	return literal(status)
}

func literal(s string) rdf.Literal {
	lit, err := rdf.NewLiteral(s)
	if err != nil {
		// NewLiteral only fails for unsupported Go types, never for strings.
		panic(err)
	}
	return lit
}
