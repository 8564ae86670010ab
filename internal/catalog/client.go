// Package catalog provides the client for the central catalog's SPARQL
// endpoint. It speaks the SPARQL 1.1 protocol directly so every call is
// context-aware; result parsing is delegated to knakk/sparql.
package catalog

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/knakk/rdf"
	"github.com/knakk/sparql"
)

const defaultTimeout = 30 * time.Second

// Client issues queries and updates against one SPARQL endpoint.
type Client struct {
	endpoint string
	hc       *http.Client
}

// Option configures the client.
type Option func(*Client)

// WithTimeout sets the HTTP timeout for endpoint requests.
func WithTimeout(d time.Duration) Option {
	return func(c *Client) {
		c.hc.Timeout = d
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.hc = hc
	}
}

// New creates a client for the given SPARQL endpoint URL.
func New(endpoint string, opts ...Option) (*Client, error) {
	if endpoint == "" {
		return nil, fmt.Errorf("endpoint is required")
	}
	if _, err := url.Parse(endpoint); err != nil {
		return nil, fmt.Errorf("invalid endpoint URL %q: %w", endpoint, err)
	}

	c := &Client{
		endpoint: endpoint,
		hc:       &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Endpoint returns the endpoint URL the client talks to.
func (c *Client) Endpoint() string {
	return c.endpoint
}

// Select runs a SELECT query and returns the parsed result set.
func (c *Client) Select(ctx context.Context, query string) (*sparql.Results, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "application/sparql-results+json")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog endpoint %s unreachable: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog endpoint %s returned status %d: %s",
			c.endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	res, err := sparql.ParseJSON(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to parse query results from %s: %w", c.endpoint, err)
	}
	return res, nil
}

// Update runs a SPARQL update against the endpoint.
func (c *Client) Update(ctx context.Context, update string) error {
	form := url.Values{"update": {update}}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return fmt.Errorf("failed to build update request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("catalog endpoint %s unreachable: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("catalog endpoint %s rejected update with status %d: %s",
			c.endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}
	io.Copy(io.Discard, resp.Body) //nolint:errcheck
	return nil
}

// Construct runs a CONSTRUCT query and returns the resulting triples. The
// endpoint is asked for Turtle.
func (c *Client) Construct(ctx context.Context, query string) ([]rdf.Triple, error) {
	form := url.Values{"query": {query}}
	req, err := http.NewRequestWithContext(
		ctx, http.MethodPost, c.endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to build query request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("Accept", "text/turtle")

	resp, err := c.hc.Do(req)
	if err != nil {
		return nil, fmt.Errorf("catalog endpoint %s unreachable: %w", c.endpoint, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("catalog endpoint %s returned status %d: %s",
			c.endpoint, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	triples, err := rdf.NewTripleDecoder(resp.Body, rdf.Turtle).DecodeAll()
	if err != nil {
		return nil, fmt.Errorf("failed to parse construct results from %s: %w", c.endpoint, err)
	}
	return triples, nil
}

// SelectTriples runs a SELECT query projecting the variables s, p and o and
// assembles the solutions into triples. Solutions with terms that cannot
// occupy their position (a literal subject, say) are reported as an error.
func (c *Client) SelectTriples(ctx context.Context, query string) ([]rdf.Triple, error) {
	res, err := c.Select(ctx, query)
	if err != nil {
		return nil, err
	}

	var triples []rdf.Triple
	for _, sol := range res.Solutions() {
		t, err := tripleFromSolution(sol)
		if err != nil {
			return nil, err
		}
		triples = append(triples, t)
	}
	return triples, nil
}

func tripleFromSolution(sol map[string]rdf.Term) (rdf.Triple, error) {
	subj, ok := sol["s"].(rdf.Subject)
	if !ok {
		return rdf.Triple{}, fmt.Errorf("solution term %v cannot be a subject", sol["s"])
	}
	pred, ok := sol["p"].(rdf.Predicate)
	if !ok {
		return rdf.Triple{}, fmt.Errorf("solution term %v cannot be a predicate", sol["p"])
	}
	obj, ok := sol["o"].(rdf.Object)
	if !ok {
		return rdf.Triple{}, fmt.Errorf("solution term %v cannot be an object", sol["o"])
	}
	return rdf.Triple{Subj: subj, Pred: pred, Obj: obj}, nil
}
