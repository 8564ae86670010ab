package orders

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/knakk/rdf"

	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

// BrokerIdentity supplies the broker's own web id, recorded on every order
// it places.
type BrokerIdentity interface {
	WebID() (string, error)
}

// OrderRequest carries everything needed to place an order for an offering.
type OrderRequest struct {
	Offering   OfferingDetails
	BuyerPod   string
	BuyerWebID string
	PaymentID  string
}

// Service places orders and confirms their payment across the catalog and
// both parties' pods.
type Service interface {
	// SaveOrder mints the order and offer records and inserts them into the
	// catalog and both pods. Writes are sequential; the first failure is
	// returned and earlier writes are not rolled back.
	SaveOrder(ctx context.Context, req OrderRequest) (*PlacedOrder, error)

	// ConfirmPayment moves the order from payment-due to delivered in the
	// catalog and both pods.
	ConfirmPayment(ctx context.Context, orderIRI string) error
}

type defaultService struct {
	repo    Repository
	store   store.Client
	broker  BrokerIdentity
	graph   string
	docPath string
}

// ServiceOption configures the service.
type ServiceOption func(*defaultService)

// WithDocumentPath overrides the pod document orders are written to.
func WithDocumentPath(path string) ServiceOption {
	return func(s *defaultService) {
		s.docPath = path
	}
}

// NewService creates the order service writing through the given catalog
// graph.
func NewService(repo Repository, st store.Client, broker BrokerIdentity, graphIRI string, opts ...ServiceOption) Service {
	s := &defaultService{
		repo:    repo,
		store:   st,
		broker:  broker,
		graph:   graphIRI,
		docPath: OfferingsDocument,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

func (s *defaultService) SaveOrder(ctx context.Context, req OrderRequest) (*PlacedOrder, error) {
	brokerWebID, err := s.broker.WebID()
	if err != nil {
		return nil, fmt.Errorf("broker identity unavailable: %w", err)
	}

	sellerPod := store.EnsureTrailingSlash(req.Offering.Pod)
	buyerPod := store.EnsureTrailingSlash(req.BuyerPod)
	sellerDoc := store.DocumentURL(sellerPod, s.docPath)
	buyerDoc := store.DocumentURL(buyerPod, s.docPath)

	// Both records are minted inside the seller's offerings document so the
	// pods and the catalog agree on the identifiers.
	offer, err := rdf.NewIRI(sellerDoc + "#" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to mint offer IRI: %w", err)
	}
	order, err := rdf.NewIRI(sellerDoc + "#" + uuid.NewString())
	if err != nil {
		return nil, fmt.Errorf("failed to mint order IRI: %w", err)
	}

	triples, err := s.orderTriples(req, offer, order, brokerWebID, buyerPod, sellerPod)
	if err != nil {
		return nil, err
	}

	destinations := []store.Destination{
		{Target: s.graph, Insert: triples},
		{Target: buyerDoc, AuthContext: req.BuyerWebID, Insert: triples},
		{Target: sellerDoc, AuthContext: req.Offering.SellerWebID, Insert: triples},
	}
	for _, dest := range destinations {
		if err := s.store.Apply(ctx, dest); err != nil {
			return nil, fmt.Errorf("failed to record order %s: %w", order.String(), err)
		}
	}

	return &PlacedOrder{Order: order.String(), Offer: offer.String()}, nil
}

func (s *defaultService) orderTriples(
	req OrderRequest, offer, order rdf.IRI, brokerWebID, buyerPod, sellerPod string,
) ([]rdf.Triple, error) {
	seller, err := rdf.NewIRI(req.Offering.SellerWebID)
	if err != nil {
		return nil, fmt.Errorf("invalid seller web id %q: %w", req.Offering.SellerWebID, err)
	}
	buyer, err := rdf.NewIRI(req.BuyerWebID)
	if err != nil {
		return nil, fmt.Errorf("invalid buyer web id %q: %w", req.BuyerWebID, err)
	}
	broker, err := rdf.NewIRI(brokerWebID)
	if err != nil {
		return nil, fmt.Errorf("invalid broker web id %q: %w", brokerWebID, err)
	}

	price, ok := req.Offering.PriceValue.(rdf.Object)
	if !ok {
		return nil, fmt.Errorf("offering %q has no usable price value", req.Offering.Name)
	}

	orderDate := time.Now().UTC().Format(time.RFC3339)

	return []rdf.Triple{
		triple(offer, vocab.RDFType, vocab.SchemaOffer),
		triple(offer, vocab.SchemaName, literal(req.Offering.Name)),
		triple(offer, vocab.SchemaDescription, literal(req.Offering.Description)),
		triple(offer, vocab.SchemaPrice, price),
		triple(offer, vocab.SchemaPriceCurrency, literal(req.Offering.Currency)),
		triple(offer, vocab.SchemaSeller, seller),

		triple(order, vocab.RDFType, vocab.SchemaOrder),
		triple(order, vocab.SchemaAcceptedOffer, offer),
		triple(order, vocab.SchemaOrderStatus, vocab.SchemaOrderPaymentDue),
		triple(order, vocab.SchemaSeller, seller),
		triple(order, vocab.SchemaCustomer, buyer),
		triple(order, vocab.SchemaBroker, broker),
		triple(order, vocab.SchemaOrderDate, literal(orderDate)),
		triple(order, vocab.ExtSellerPod, literal(sellerPod)),
		triple(order, vocab.ExtBuyerPod, literal(buyerPod)),
		triple(order, vocab.SchemaPaymentMethodID, literal(req.PaymentID)),
	}, nil
}

func (s *defaultService) ConfirmPayment(ctx context.Context, orderIRI string) error {
	info, err := s.repo.PaymentInfo(ctx, orderIRI)
	if err != nil {
		return err
	}
	order, err := rdf.NewIRI(info.Order)
	if err != nil {
		return fmt.Errorf("invalid order IRI %q: %w", info.Order, err)
	}

	buyerPod := store.EnsureTrailingSlash(info.BuyerPod)
	sellerPod := store.EnsureTrailingSlash(info.SellerPod)

	deleteSet := []rdf.Triple{
		triple(order, vocab.SchemaOrderStatus, vocab.SchemaOrderPaymentDue),
		triple(order, vocab.ExtSellerPod, literal(info.SellerPod)),
		triple(order, vocab.ExtBuyerPod, literal(info.BuyerPod)),
	}
	insertSet := []rdf.Triple{
		triple(order, vocab.SchemaOrderStatus, vocab.SchemaOrderDelivered),
	}

	destinations := []store.Destination{
		{Target: s.graph, Delete: deleteSet, Insert: insertSet},
		{Target: store.DocumentURL(buyerPod, s.docPath), AuthContext: info.BuyerWebID, Delete: deleteSet, Insert: insertSet},
		{Target: store.DocumentURL(sellerPod, s.docPath), AuthContext: info.SellerWebID, Delete: deleteSet, Insert: insertSet},
	}
	for _, dest := range destinations {
		if err := s.store.Apply(ctx, dest); err != nil {
			return fmt.Errorf("failed to confirm payment of %s: %w", info.Order, err)
		}
	}
	return nil
}

func literal(s string) rdf.Literal {
	lit, err := rdf.NewLiteral(s)
	if err != nil {
		// NewLiteral only fails for unsupported Go types, never for strings.
		panic(err)
	}
	return lit
}
