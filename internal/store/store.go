// Package store applies computed deltas to the heterogeneous stores the
// broker keeps consistent: party pods (authenticated HTTP documents) and the
// central catalog (SPARQL endpoint). It also performs the authenticated pod
// document reads the extraction step needs.
package store

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/redpencilio/solid-shop-search-service/internal/catalog"
	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
	"github.com/redpencilio/solid-shop-search-service/internal/graph"

	"github.com/knakk/rdf"
)

const defaultTimeout = 30 * time.Second

// Destination describes one store mutation: the quads to delete and insert
// at a target. Destinations are produced per task by the extractor and
// discarded after application; they are never persisted.
type Destination struct {
	// Target is a pod document URL, or a catalog graph IRI.
	Target string

	// AuthContext is the web id used to resolve write credentials.
	// Empty for catalog targets, which need no authentication.
	AuthContext string

	// Delete and Insert are applied in that order. Deleting absent
	// triples is not an error; inserting existing ones is a no-op at the
	// store.
	Delete []rdf.Triple
	Insert []rdf.Triple
}

// UnreachableError reports a failed read from or write to a store, carrying
// the identifier of the failing source.
type UnreachableError struct {
	Source string
	Err    error
}

func (e *UnreachableError) Error() string {
	return fmt.Sprintf("store %s unreachable: %v", e.Source, e.Err)
}

func (e *UnreachableError) Unwrap() error {
	return e.Err
}

// Client reads pod documents and applies destinations.
type Client interface {
	// ReadDocuments fetches and parses the given Turtle documents into one
	// merged graph, fully materialized. A nil fetcher performs
	// unauthenticated requests.
	ReadDocuments(ctx context.Context, fetch credentials.Fetcher, sources ...string) (*graph.Graph, error)

	// Apply executes the destination's delete set, then its insert set.
	// Each set is sent as a single write operation; an empty set issues no
	// write at all. A failure between the two writes leaves the target in
	// an intermediate state, which the caller records as a task failure.
	Apply(ctx context.Context, dest Destination) error
}

type defaultClient struct {
	catalog       *catalog.Client
	resolver      credentials.Resolver
	hc            *http.Client
	catalogGraphs map[string]struct{}
}

// Option configures the client.
type Option func(*defaultClient)

// WithHTTPClient replaces the HTTP client used for pod requests.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *defaultClient) {
		c.hc = hc
	}
}

// NewClient creates a store client. Destinations whose target is one of
// catalogGraphs are written through the catalog endpoint; all other targets
// are treated as pod documents.
func NewClient(cat *catalog.Client, resolver credentials.Resolver, catalogGraphs []string, opts ...Option) Client {
	c := &defaultClient{
		catalog:       cat,
		resolver:      resolver,
		hc:            &http.Client{Timeout: defaultTimeout},
		catalogGraphs: make(map[string]struct{}, len(catalogGraphs)),
	}
	for _, g := range catalogGraphs {
		c.catalogGraphs[g] = struct{}{}
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

func (c *defaultClient) ReadDocuments(ctx context.Context, fetch credentials.Fetcher, sources ...string) (*graph.Graph, error) {
	if fetch == nil {
		fetch = &plainFetcher{hc: c.hc}
	}

	merged := graph.New()
	for _, source := range sources {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, source, nil)
		if err != nil {
			return nil, fmt.Errorf("invalid document URL %q: %w", source, err)
		}
		req.Header.Set("Accept", "text/turtle")

		resp, err := fetch.Do(req)
		if err != nil {
			return nil, &UnreachableError{Source: source, Err: err}
		}
		g, err := decodeDocument(resp)
		if err != nil {
			return nil, &UnreachableError{Source: source, Err: err}
		}
		merged.Add(g.Triples()...)
	}
	return merged, nil
}

func decodeDocument(resp *http.Response) (*graph.Graph, error) {
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(body)))
	}
	return graph.DecodeTurtle(resp.Body)
}

func (c *defaultClient) Apply(ctx context.Context, dest Destination) error {
	if _, ok := c.catalogGraphs[dest.Target]; ok {
		return c.applyCatalog(ctx, dest)
	}
	return c.applyPod(ctx, dest)
}

func (c *defaultClient) applyCatalog(ctx context.Context, dest Destination) error {
	if len(dest.Delete) > 0 {
		update, err := graphUpdate("DELETE DATA", dest.Target, dest.Delete)
		if err != nil {
			return err
		}
		if err := c.catalog.Update(ctx, update); err != nil {
			return &UnreachableError{Source: dest.Target, Err: err}
		}
	}
	if len(dest.Insert) > 0 {
		update, err := graphUpdate("INSERT DATA", dest.Target, dest.Insert)
		if err != nil {
			return err
		}
		if err := c.catalog.Update(ctx, update); err != nil {
			return &UnreachableError{Source: dest.Target, Err: err}
		}
	}
	return nil
}

func graphUpdate(operation, graphIRI string, triples []rdf.Triple) (string, error) {
	encoded, err := graph.EncodeTriples(triples)
	if err != nil {
		return "", fmt.Errorf("failed to encode triples for %s: %w", graphIRI, err)
	}
	return fmt.Sprintf("%s { GRAPH <%s> {\n%s\n} }", operation, graphIRI, encoded), nil
}

func (c *defaultClient) applyPod(ctx context.Context, dest Destination) error {
	var fetch credentials.Fetcher = &plainFetcher{hc: c.hc}
	if dest.AuthContext != "" {
		resolved, err := c.resolver.Resolve(ctx, dest.AuthContext)
		if err != nil {
			return err
		}
		fetch = resolved
	}

	if len(dest.Delete) > 0 {
		if err := c.patchDocument(ctx, fetch, dest.Target, "DELETE DATA", dest.Delete); err != nil {
			return err
		}
	}
	if len(dest.Insert) > 0 {
		if err := c.patchDocument(ctx, fetch, dest.Target, "INSERT DATA", dest.Insert); err != nil {
			return err
		}
	}
	return nil
}

func (c *defaultClient) patchDocument(
	ctx context.Context, fetch credentials.Fetcher, target, operation string, triples []rdf.Triple,
) error {
	encoded, err := graph.EncodeTriples(triples)
	if err != nil {
		return fmt.Errorf("failed to encode triples for %s: %w", target, err)
	}
	body := fmt.Sprintf("%s {\n%s\n}", operation, encoded)

	req, err := http.NewRequestWithContext(ctx, http.MethodPatch, target, strings.NewReader(body))
	if err != nil {
		return fmt.Errorf("invalid document URL %q: %w", target, err)
	}
	req.Header.Set("Content-Type", "application/sparql-update")

	resp, err := fetch.Do(req)
	if err != nil {
		return &UnreachableError{Source: target, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		responseBody, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return &UnreachableError{
			Source: target,
			Err:    fmt.Errorf("status %d: %s", resp.StatusCode, strings.TrimSpace(string(responseBody))),
		}
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return nil
}

// plainFetcher performs unauthenticated requests.
type plainFetcher struct {
	hc *http.Client
}

func (f *plainFetcher) Do(req *http.Request) (*http.Response, error) {
	return f.hc.Do(req)
}

// EnsureTrailingSlash normalizes a pod base URL.
func EnsureTrailingSlash(pod string) string {
	if strings.HasSuffix(pod, "/") {
		return pod
	}
	return pod + "/"
}

// DocumentURL resolves a document path inside a pod.
func DocumentURL(pod, relPath string) string {
	return EnsureTrailingSlash(pod) + strings.TrimPrefix(relPath, "/")
}
