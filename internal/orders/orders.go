// Package orders implements the shop domain on top of the catalog: offering
// search and shaping, order placement and payment confirmation, and the
// per-party sales and purchase projections.
package orders

import (
	"errors"

	"github.com/knakk/rdf"
)

// ErrNotFound indicates the requested catalog record does not exist.
var ErrNotFound = errors.New("record not found")

// Offering is one catalog search result, flattened from the offering
// subgraph a seller pod published.
type Offering struct {
	Offering           string `json:"offering"`
	Product            string `json:"product"`
	Name               string `json:"name"`
	Description        string `json:"description"`
	ProductName        string `json:"productName"`
	ProductDescription string `json:"productDescription"`
	Price              string `json:"price"`
	Currency           string `json:"currency"`
	Pod                string `json:"pod"`
	Seller             string `json:"seller"`
	SellerWebID        string `json:"sellerWebId"`
}

// OfferingDetails is an offering resolved for purchase. PriceValue keeps the
// typed price literal so the order carries the seller's datatype unchanged.
type OfferingDetails struct {
	Offering
	PriceValue rdf.Term
}

// OrderSummary is one row of a sales or purchases projection. Counterparty
// is the customer for sales and the seller for purchases.
type OrderSummary struct {
	OrderDate        string `json:"orderDate"`
	OrderStatus      string `json:"orderStatus"`
	OfferName        string `json:"offerName"`
	OfferDescription string `json:"offerDescription"`
	OfferPrice       string `json:"offerPrice"`
	OfferCurrency    string `json:"offerCurrency"`
	Counterparty     string `json:"counterparty"`
}

// PaymentInfo is the payment-relevant slice of an order record.
type PaymentInfo struct {
	Order       string
	Status      string
	BuyerPod    string
	SellerPod   string
	PaymentID   string
	SellerWebID string
	BuyerWebID  string
}

// PaymentRouting links an external payment id back to its order and the
// seller's payment provider key.
type PaymentRouting struct {
	Order     string
	MollieKey string
	BuyerPod  string
	SellerPod string
}

// PlacedOrder identifies the order and offer records minted by SaveOrder.
type PlacedOrder struct {
	Order string `json:"order"`
	Offer string `json:"offer"`
}

// Filter narrows an offering search. Empty fields match everything.
type Filter struct {
	Name        string
	Description string
	Seller      string
}
