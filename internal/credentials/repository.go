// Package credentials resolves per-party store credentials into
// authenticated fetch capabilities. Credential records are kept in the
// catalog's application graph; resolution dispatches on the identity
// provider type of the party.
package credentials

import (
	"context"
	_ "embed"
	"fmt"
	"strings"

	"github.com/knakk/rdf"
	"github.com/knakk/sparql"

	"github.com/redpencilio/solid-shop-search-service/internal/catalog"
	"github.com/redpencilio/solid-shop-search-service/internal/graph"
)

//go:embed queries.sparql
var queriesFile string

var queries = sparql.LoadBank(strings.NewReader(queriesFile))

// IDPType identifies which kind of identity provider a party uses.
type IDPType string

const (
	// IDPTypeCSS parties authenticate via client credentials and DPoP
	// against their own OIDC issuer.
	IDPTypeCSS IDPType = "css"

	// IDPTypeESS parties are covered by the process-wide application
	// session established at startup.
	IDPTypeESS IDPType = "ess"
)

// CSSCredential holds the client credentials for a css-type party.
type CSSCredential struct {
	ClientID     string
	ClientSecret string
	IDPUrl       string
}

// Repository reads and replaces credential records.
//
// Replacing a credential is a delete followed by an insert: two sequential
// store writes, with a window in between where the party has no credential.
type Repository interface {
	// IDPType returns the identity provider type recorded for the web id,
	// or ErrNoCredential when no record exists.
	IDPType(ctx context.Context, webID string) (IDPType, error)

	// CSSCredential returns the client credentials for a css-type party.
	CSSCredential(ctx context.Context, webID string) (*CSSCredential, error)

	// SaveCSS replaces the party's credential with a css record.
	SaveCSS(ctx context.Context, webID string, cred CSSCredential) error

	// SaveESS replaces the party's credential with an ess marker record.
	SaveESS(ctx context.Context, webID string) error
}

type sparqlRepository struct {
	client *catalog.Client
	graph  string
}

// NewRepository creates a credential repository backed by the catalog's
// application graph.
func NewRepository(client *catalog.Client, graphIRI string) Repository {
	return &sparqlRepository{client: client, graph: graphIRI}
}

func (r *sparqlRepository) IDPType(ctx context.Context, webID string) (IDPType, error) {
	if err := validateIRI(webID); err != nil {
		return "", err
	}
	q, err := queries.Prepare("idp-type", struct{ Graph, WebID string }{r.graph, webID})
	if err != nil {
		return "", fmt.Errorf("failed to prepare idp-type query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return "", err
	}
	solutions := res.Solutions()
	if len(solutions) == 0 {
		return "", fmt.Errorf("%w: %s", ErrNoCredential, webID)
	}
	return IDPType(solutions[0]["idpType"].String()), nil
}

func (r *sparqlRepository) CSSCredential(ctx context.Context, webID string) (*CSSCredential, error) {
	if err := validateIRI(webID); err != nil {
		return nil, err
	}
	q, err := queries.Prepare("css-credentials", struct{ Graph, WebID string }{r.graph, webID})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare css-credentials query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	solutions := res.Solutions()
	if len(solutions) == 0 {
		return nil, fmt.Errorf("%w: %s", ErrNoCredential, webID)
	}
	sol := solutions[0]
	return &CSSCredential{
		ClientID:     sol["clientId"].String(),
		ClientSecret: sol["clientSecret"].String(),
		IDPUrl:       sol["idpUrl"].String(),
	}, nil
}

func (r *sparqlRepository) SaveCSS(ctx context.Context, webID string, cred CSSCredential) error {
	if err := validateIRI(webID); err != nil {
		return err
	}
	if err := r.deleteExisting(ctx, webID); err != nil {
		return err
	}

	q, err := queries.Prepare("insert-css-credentials", struct {
		Graph, WebID, ClientID, ClientSecret, IDPUrl string
	}{
		Graph:        r.graph,
		WebID:        webID,
		ClientID:     encodeString(cred.ClientID),
		ClientSecret: encodeString(cred.ClientSecret),
		IDPUrl:       encodeString(cred.IDPUrl),
	})
	if err != nil {
		return fmt.Errorf("failed to prepare insert-css-credentials update: %w", err)
	}
	if err := r.client.Update(ctx, q); err != nil {
		return fmt.Errorf("failed to store css credentials for %s: %w", webID, err)
	}
	return nil
}

func (r *sparqlRepository) SaveESS(ctx context.Context, webID string) error {
	if err := validateIRI(webID); err != nil {
		return err
	}
	if err := r.deleteExisting(ctx, webID); err != nil {
		return err
	}

	q, err := queries.Prepare("insert-ess-credentials", struct{ Graph, WebID string }{r.graph, webID})
	if err != nil {
		return fmt.Errorf("failed to prepare insert-ess-credentials update: %w", err)
	}
	if err := r.client.Update(ctx, q); err != nil {
		return fmt.Errorf("failed to store ess credentials for %s: %w", webID, err)
	}
	return nil
}

func (r *sparqlRepository) deleteExisting(ctx context.Context, webID string) error {
	q, err := queries.Prepare("delete-credentials", struct{ Graph, WebID string }{r.graph, webID})
	if err != nil {
		return fmt.Errorf("failed to prepare delete-credentials update: %w", err)
	}
	if err := r.client.Update(ctx, q); err != nil {
		return fmt.Errorf("failed to delete existing credentials for %s: %w", webID, err)
	}
	return nil
}

func validateIRI(s string) error {
	if _, err := rdf.NewIRI(s); err != nil {
		return fmt.Errorf("invalid web id %q: %w", s, err)
	}
	return nil
}

func encodeString(s string) string {
	lit, err := rdf.NewLiteral(s)
	if err != nil {
		// NewLiteral only fails for unsupported Go types, never for strings.
		panic(err)
	}
	encoded, err := graph.EncodeTerm(lit)
	if err != nil {
		panic(err)
	}
	return encoded
}
