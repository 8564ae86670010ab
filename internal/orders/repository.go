package orders

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

// Repository reads and writes shop records in the catalog's application
// graph.
type Repository interface {
	// FindOfferings searches the synchronized offerings.
	FindOfferings(ctx context.Context, filter Filter) ([]Offering, error)

	// OfferingDetails resolves one offering of one seller pod for purchase,
	// or ErrNotFound.
	OfferingDetails(ctx context.Context, offeringIRI, sellerPod string) (*OfferingDetails, error)

	// OrderSubgraph returns the order's triples together with its accepted
	// offer, as stored in the catalog.
	OrderSubgraph(ctx context.Context, orderIRI string) ([]rdf.Triple, error)

	// PaymentInfo returns the payment-relevant fields of the order, or
	// ErrNotFound.
	PaymentInfo(ctx context.Context, orderIRI string) (*PaymentInfo, error)

	// PaymentRouting resolves an external payment id back to its order, or
	// ErrNotFound.
	PaymentRouting(ctx context.Context, paymentID string) (*PaymentRouting, error)

	// Sales lists the orders sold by the given party.
	Sales(ctx context.Context, sellerWebID string) ([]OrderSummary, error)

	// Purchases lists the orders bought by the given party.
	Purchases(ctx context.Context, buyerWebID string) ([]OrderSummary, error)

	// MollieKey returns the seller's payment provider key, or ErrNotFound.
	MollieKey(ctx context.Context, sellerWebID string) (string, error)

	// SaveMollieKey replaces the seller's payment provider key. The
	// replacement is a delete followed by an insert.
	SaveMollieKey(ctx context.Context, sellerWebID, apiKey string) error
}

type sparqlRepository struct {
	client *catalog.Client
	graph  string
}

// NewRepository creates a repository backed by the given catalog graph.
func NewRepository(client *catalog.Client, graphIRI string) Repository {
	return &sparqlRepository{client: client, graph: graphIRI}
}

func (r *sparqlRepository) FindOfferings(ctx context.Context, filter Filter) ([]Offering, error) {
	q, err := queries.Prepare("find-offerings", struct {
		Graph, Name, Description, Seller string
	}{
		Graph:       r.graph,
		Name:        encodeOptional(filter.Name),
		Description: encodeOptional(filter.Description),
		Seller:      encodeOptional(filter.Seller),
	})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare find-offerings query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return nil, err
	}

	var found []Offering
	for _, sol := range res.Solutions() {
		found = append(found, offeringFromSolution(sol))
	}
	return found, nil
}

func (r *sparqlRepository) OfferingDetails(ctx context.Context, offeringIRI, sellerPod string) (*OfferingDetails, error) {
	if err := validateIRI(offeringIRI); err != nil {
		return nil, err
	}
	if err := validateIRI(sellerPod); err != nil {
		return nil, err
	}
	q, err := queries.Prepare("offering-details", struct{ Graph, Offering, Pod string }{r.graph, offeringIRI, sellerPod})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare offering-details query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	solutions := res.Solutions()
	if len(solutions) == 0 {
		return nil, fmt.Errorf("%w: offering %s in pod %s", ErrNotFound, offeringIRI, sellerPod)
	}
	return &OfferingDetails{
		Offering:   offeringFromSolution(solutions[0]),
		PriceValue: solutions[0]["currencyValue"],
	}, nil
}

func (r *sparqlRepository) OrderSubgraph(ctx context.Context, orderIRI string) ([]rdf.Triple, error) {
	if err := validateIRI(orderIRI); err != nil {
		return nil, err
	}
	q, err := queries.Prepare("order-subgraph", struct{ Graph, Order string }{r.graph, orderIRI})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare order-subgraph query: %w", err)
	}
	triples, err := r.client.Construct(ctx, q)
	if err != nil {
		return nil, err
	}
	if len(triples) == 0 {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderIRI)
	}
	return triples, nil
}

func (r *sparqlRepository) PaymentInfo(ctx context.Context, orderIRI string) (*PaymentInfo, error) {
	if err := validateIRI(orderIRI); err != nil {
		return nil, err
	}
	q, err := queries.Prepare("payment-info", struct{ Graph, Order string }{r.graph, orderIRI})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare payment-info query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	solutions := res.Solutions()
	if len(solutions) == 0 {
		return nil, fmt.Errorf("%w: order %s", ErrNotFound, orderIRI)
	}
	sol := solutions[0]
	return &PaymentInfo{
		Order:       orderIRI,
		Status:      binding(sol, "orderStatus"),
		BuyerPod:    binding(sol, "buyerPod"),
		SellerPod:   binding(sol, "sellerPod"),
		PaymentID:   binding(sol, "paymentId"),
		SellerWebID: binding(sol, "seller"),
		BuyerWebID:  binding(sol, "customer"),
	}, nil
}

func (r *sparqlRepository) PaymentRouting(ctx context.Context, paymentID string) (*PaymentRouting, error) {
	q, err := queries.Prepare("payment-by-id", struct{ Graph, PaymentID string }{r.graph, encodeString(paymentID)})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare payment-by-id query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return nil, err
	}
	solutions := res.Solutions()
	if len(solutions) == 0 {
		return nil, fmt.Errorf("%w: payment %s", ErrNotFound, paymentID)
	}
	sol := solutions[0]
	return &PaymentRouting{
		Order:     binding(sol, "order"),
		MollieKey: binding(sol, "mollieApiKey"),
		BuyerPod:  binding(sol, "buyerPod"),
		SellerPod: binding(sol, "sellerPod"),
	}, nil
}

func (r *sparqlRepository) Sales(ctx context.Context, sellerWebID string) ([]OrderSummary, error) {
	return r.orderSummaries(ctx, "sales", sellerWebID, "customerWebId")
}

func (r *sparqlRepository) Purchases(ctx context.Context, buyerWebID string) ([]OrderSummary, error) {
	return r.orderSummaries(ctx, "purchases", buyerWebID, "sellerWebId")
}

func (r *sparqlRepository) orderSummaries(ctx context.Context, tag, webID, counterpartyVar string) ([]OrderSummary, error) {
	if err := validateIRI(webID); err != nil {
		return nil, err
	}
	q, err := queries.Prepare(tag, struct{ Graph, WebID string }{r.graph, webID})
	if err != nil {
		return nil, fmt.Errorf("failed to prepare %s query: %w", tag, err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return nil, err
	}

	var found []OrderSummary
	for _, sol := range res.Solutions() {
		found = append(found, OrderSummary{
			OrderDate:        binding(sol, "orderDate"),
			OrderStatus:      binding(sol, "orderStatus"),
			OfferName:        binding(sol, "offerName"),
			OfferDescription: binding(sol, "offerDescription"),
			OfferPrice:       binding(sol, "offerPrice"),
			OfferCurrency:    binding(sol, "offerCurrency"),
			Counterparty:     binding(sol, counterpartyVar),
		})
	}
	return found, nil
}

func (r *sparqlRepository) MollieKey(ctx context.Context, sellerWebID string) (string, error) {
	if err := validateIRI(sellerWebID); err != nil {
		return "", err
	}
	q, err := queries.Prepare("mollie-key", struct{ Graph, WebID string }{r.graph, sellerWebID})
	if err != nil {
		return "", fmt.Errorf("failed to prepare mollie-key query: %w", err)
	}
	res, err := r.client.Select(ctx, q)
	if err != nil {
		return "", err
	}
	solutions := res.Solutions()
	if len(solutions) == 0 {
		return "", fmt.Errorf("%w: no payment key for %s", ErrNotFound, sellerWebID)
	}
	return binding(solutions[0], "mollieApiKey"), nil
}

func (r *sparqlRepository) SaveMollieKey(ctx context.Context, sellerWebID, apiKey string) error {
	if err := validateIRI(sellerWebID); err != nil {
		return err
	}
	del, err := queries.Prepare("delete-mollie-key", struct{ Graph, WebID string }{r.graph, sellerWebID})
	if err != nil {
		return fmt.Errorf("failed to prepare delete-mollie-key update: %w", err)
	}
	if err := r.client.Update(ctx, del); err != nil {
		return fmt.Errorf("failed to delete payment key for %s: %w", sellerWebID, err)
	}

	ins, err := queries.Prepare("insert-mollie-key", struct{ Graph, WebID, APIKey string }{
		r.graph, sellerWebID, encodeString(apiKey),
	})
	if err != nil {
		return fmt.Errorf("failed to prepare insert-mollie-key update: %w", err)
	}
	if err := r.client.Update(ctx, ins); err != nil {
		return fmt.Errorf("failed to store payment key for %s: %w", sellerWebID, err)
	}
	return nil
}

func offeringFromSolution(sol map[string]rdf.Term) Offering {
	return Offering{
		Offering:           binding(sol, "offering"),
		Product:            binding(sol, "product"),
		Name:               binding(sol, "name"),
		Description:        binding(sol, "description"),
		ProductName:        binding(sol, "productName"),
		ProductDescription: binding(sol, "productDescription"),
		Price:              binding(sol, "currencyValue"),
		Currency:           binding(sol, "currency"),
		Pod:                binding(sol, "pod"),
		Seller:             binding(sol, "seller"),
		SellerWebID:        binding(sol, "sellerWebId"),
	}
}

func binding(sol map[string]rdf.Term, name string) string {
	term, ok := sol[name]
	if !ok || term == nil {
		return ""
	}
	return term.String()
}

func validateIRI(s string) error {
	if _, err := rdf.NewIRI(s); err != nil {
		return fmt.Errorf("invalid IRI %q: %w", s, err)
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

func encodeOptional(s string) string {
	if s == "" {
		return ""
	}
	return encodeString(s)
}
