package orders_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/knakk/rdf"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
	"github.com/redpencilio/solid-shop-search-service/internal/graph"
	"github.com/redpencilio/solid-shop-search-service/internal/orders"
	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/vocab"
)

// recordingStore captures applied destinations instead of writing anywhere.
type recordingStore struct {
	applied []store.Destination
	failOn  string
}

func (r *recordingStore) ReadDocuments(_ context.Context, _ credentials.Fetcher, _ ...string) (*graph.Graph, error) {
	return graph.New(), nil
}

func (r *recordingStore) Apply(_ context.Context, dest store.Destination) error {
	if r.failOn != "" && strings.Contains(dest.Target, r.failOn) {
		return errors.New("write refused")
	}
	r.applied = append(r.applied, dest)
	return nil
}

type fakeBroker struct {
	webID string
	err   error
}

func (f *fakeBroker) WebID() (string, error) {
	return f.webID, f.err
}

// paymentInfoRepo serves a single canned payment info record.
type paymentInfoRepo struct {
	orders.Repository
	info *orders.PaymentInfo
	err  error
}

func (r *paymentInfoRepo) PaymentInfo(_ context.Context, _ string) (*orders.PaymentInfo, error) {
	return r.info, r.err
}

func offeringForSale(t *testing.T) orders.OfferingDetails {
	t.Helper()
	return orders.OfferingDetails{
		Offering: orders.Offering{
			Offering:    "urn:shop:offering",
			Name:        "City bike",
			Description: "A sturdy bike",
			Currency:    "EUR",
			Pod:         "https://seller.example",
			SellerWebID: "https://seller.example/profile#me",
		},
		PriceValue: rdf.NewTypedLiteral("25.0", vocab.XSDFloat),
	}
}

func TestSaveOrder(t *testing.T) {
	t.Parallel()

	st := &recordingStore{}
	service := orders.NewService(nil, st, &fakeBroker{webID: "https://broker.example/profile#me"}, applicationGraph)

	placed, err := service.SaveOrder(context.Background(), orders.OrderRequest{
		Offering:   offeringForSale(t),
		BuyerPod:   "https://buyer.example/",
		BuyerWebID: "https://buyer.example/profile#me",
		PaymentID:  "tr_1234",
	})
	require.NoError(t, err)

	// Identifiers are minted inside the seller's offerings document.
	assert.True(t, strings.HasPrefix(placed.Order, "https://seller.example/private/tests/my-offerings.ttl#"))
	assert.True(t, strings.HasPrefix(placed.Offer, "https://seller.example/private/tests/my-offerings.ttl#"))
	assert.NotEqual(t, placed.Order, placed.Offer)

	require.Len(t, st.applied, 3)

	catalogDest := st.applied[0]
	assert.Equal(t, applicationGraph, catalogDest.Target)
	assert.Empty(t, catalogDest.AuthContext)
	assert.Empty(t, catalogDest.Delete)

	buyerDest := st.applied[1]
	assert.Equal(t, "https://buyer.example/private/tests/my-offerings.ttl", buyerDest.Target)
	assert.Equal(t, "https://buyer.example/profile#me", buyerDest.AuthContext)

	sellerDest := st.applied[2]
	assert.Equal(t, "https://seller.example/private/tests/my-offerings.ttl", sellerDest.Target)
	assert.Equal(t, "https://seller.example/profile#me", sellerDest.AuthContext)

	// All destinations receive the same subgraph.
	assert.Equal(t, catalogDest.Insert, buyerDest.Insert)
	assert.Equal(t, catalogDest.Insert, sellerDest.Insert)

	inserted := graph.New(catalogDest.Insert...)
	order := iri(t, placed.Order)
	assert.True(t, inserted.Has(tr(order, vocab.SchemaOrderStatus, vocab.SchemaOrderPaymentDue)))
	assert.True(t, inserted.Has(tr(order, vocab.SchemaAcceptedOffer, iri(t, placed.Offer))))
	assert.True(t, inserted.Has(tr(order, vocab.SchemaBroker, iri(t, "https://broker.example/profile#me"))))
	assert.True(t, inserted.Has(tr(order, vocab.SchemaPaymentMethodID, lit(t, "tr_1234"))))
	assert.True(t, inserted.Has(tr(order, vocab.ExtBuyerPod, lit(t, "https://buyer.example/"))))
	assert.True(t, inserted.Has(tr(iri(t, placed.Offer), vocab.SchemaPrice, rdf.NewTypedLiteral("25.0", vocab.XSDFloat))))
}

func TestSaveOrder_BrokerUnavailable(t *testing.T) {
	t.Parallel()

	st := &recordingStore{}
	service := orders.NewService(nil, st, &fakeBroker{err: credentials.ErrNotReady}, applicationGraph)

	_, err := service.SaveOrder(context.Background(), orders.OrderRequest{
		Offering:   offeringForSale(t),
		BuyerPod:   "https://buyer.example/",
		BuyerWebID: "https://buyer.example/profile#me",
	})
	assert.ErrorIs(t, err, credentials.ErrNotReady)
	assert.Empty(t, st.applied)
}

func TestSaveOrder_WriteFailureSurfaces(t *testing.T) {
	t.Parallel()

	st := &recordingStore{failOn: "buyer.example"}
	service := orders.NewService(nil, st, &fakeBroker{webID: "https://broker.example/profile#me"}, applicationGraph)

	_, err := service.SaveOrder(context.Background(), orders.OrderRequest{
		Offering:   offeringForSale(t),
		BuyerPod:   "https://buyer.example/",
		BuyerWebID: "https://buyer.example/profile#me",
		PaymentID:  "tr_1234",
	})
	require.Error(t, err)
	// The catalog write happened before the pod write failed.
	require.Len(t, st.applied, 1)
	assert.Equal(t, applicationGraph, st.applied[0].Target)
}

func TestConfirmPayment(t *testing.T) {
	t.Parallel()

	st := &recordingStore{}
	repo := &paymentInfoRepo{info: &orders.PaymentInfo{
		Order:       "https://seller.example/private/tests/my-offerings.ttl#order-1",
		Status:      vocab.SchemaOrderPaymentDue.String(),
		BuyerPod:    "https://buyer.example/",
		SellerPod:   "https://seller.example/",
		PaymentID:   "tr_1234",
		SellerWebID: "https://seller.example/profile#me",
		BuyerWebID:  "https://buyer.example/profile#me",
	}}
	service := orders.NewService(repo, st, &fakeBroker{webID: "https://broker.example/profile#me"}, applicationGraph)

	err := service.ConfirmPayment(context.Background(), "https://seller.example/private/tests/my-offerings.ttl#order-1")
	require.NoError(t, err)

	require.Len(t, st.applied, 3)
	assert.Equal(t, applicationGraph, st.applied[0].Target)
	assert.Equal(t, "https://buyer.example/private/tests/my-offerings.ttl", st.applied[1].Target)
	assert.Equal(t, "https://seller.example/private/tests/my-offerings.ttl", st.applied[2].Target)

	order := iri(t, "https://seller.example/private/tests/my-offerings.ttl#order-1")
	for _, dest := range st.applied {
		deleted := graph.New(dest.Delete...)
		assert.True(t, deleted.Has(tr(order, vocab.SchemaOrderStatus, vocab.SchemaOrderPaymentDue)))
		assert.True(t, deleted.Has(tr(order, vocab.ExtBuyerPod, lit(t, "https://buyer.example/"))))
		assert.True(t, deleted.Has(tr(order, vocab.ExtSellerPod, lit(t, "https://seller.example/"))))

		inserted := graph.New(dest.Insert...)
		assert.True(t, inserted.Has(tr(order, vocab.SchemaOrderStatus, vocab.SchemaOrderDelivered)))
	}
}

func TestConfirmPayment_UnknownOrder(t *testing.T) {
	t.Parallel()

	st := &recordingStore{}
	repo := &paymentInfoRepo{err: orders.ErrNotFound}
	service := orders.NewService(repo, st, &fakeBroker{}, applicationGraph)

	err := service.ConfirmPayment(context.Background(), "urn:shop:missing")
	assert.ErrorIs(t, err, orders.ErrNotFound)
	assert.Empty(t, st.applied)
}
