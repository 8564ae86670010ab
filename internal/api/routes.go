package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
	"github.com/redpencilio/solid-shop-search-service/internal/orders"
	"github.com/redpencilio/solid-shop-search-service/internal/payments"
	"github.com/redpencilio/solid-shop-search-service/internal/store"
	"github.com/redpencilio/solid-shop-search-service/internal/sync"
	"github.com/redpencilio/solid-shop-search-service/internal/tasks"
)

// Dependencies bundles the services the routes delegate to.
type Dependencies struct {
	Offerings    orders.Repository
	Orders       orders.Service
	Payments     payments.Client
	Credentials  credentials.Repository
	Orchestrator sync.Orchestrator
	Extractor    sync.Extractor
	Store        store.Client
	Broker       orders.BrokerIdentity
}

// ErrorResponse represents a standardized error response
type ErrorResponse struct {
	Error string `json:"error"`
}

// Routes defines the routes for the broker API with dependency injection
type Routes struct {
	deps Dependencies
}

// NewRoutes creates a new Routes instance with the provided dependencies
func NewRoutes(deps Dependencies) *Routes {
	return &Routes{deps: deps}
}

type syncRequest struct {
	Pod   string `json:"pod"`
	WebID string `json:"webId"`
}

type syncResponse struct {
	Pod      string `json:"pod"`
	Deleted  int    `json:"deleted"`
	Inserted int    `json:"inserted"`
}

// syncPod handles POST /sync: an on-demand offering synchronization of one
// pod, outside the task queue.
func (rr *Routes) syncPod(w http.ResponseWriter, r *http.Request) {
	var req syncRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.Pod == "" {
		rr.writeErrorResponse(w, "Missing pod", http.StatusBadRequest)
		return
	}
	if req.WebID == "" {
		rr.writeErrorResponse(w, "Missing webId", http.StatusBadRequest)
		return
	}

	destinations, err := rr.deps.Extractor.Extract(r.Context(), tasks.Task{
		Type:     tasks.TypeSyncOfferings,
		PodRef:   req.Pod,
		PartyRef: req.WebID,
	})
	if err != nil {
		rr.writeDomainError(w, "Failed to read pod offerings", err)
		return
	}

	resp := syncResponse{Pod: req.Pod}
	for _, dest := range destinations {
		if err := rr.deps.Store.Apply(r.Context(), dest); err != nil {
			rr.writeDomainError(w, "Failed to update catalog", err)
			return
		}
		resp.Deleted += len(dest.Delete)
		resp.Inserted += len(dest.Insert)
	}

	rr.writeJSONResponse(w, resp)
}

type deltaResponse struct {
	Discovered   int `json:"discovered"`
	Succeeded    int `json:"succeeded"`
	Failed       int `json:"failed"`
	Acknowledged int `json:"acknowledged"`
}

// processDelta handles POST /delta: the task queue changed, drain it now
// instead of waiting for the next polling round.
func (rr *Routes) processDelta(w http.ResponseWriter, r *http.Request) {
	summary, err := rr.deps.Orchestrator.ProcessPending(r.Context())
	if err != nil {
		rr.writeDomainError(w, "Failed to process pending tasks", err)
		return
	}

	rr.writeJSONResponse(w, deltaResponse{
		Discovered:   summary.Discovered,
		Succeeded:    summary.Succeeded,
		Failed:       summary.Failed,
		Acknowledged: summary.Acknowledged,
	})
}

// queryOfferings handles GET /query
func (rr *Routes) queryOfferings(w http.ResponseWriter, r *http.Request) {
	filter := orders.Filter{
		Name:        r.URL.Query().Get("name"),
		Description: r.URL.Query().Get("description"),
		Seller:      r.URL.Query().Get("seller"),
	}

	offerings, err := rr.deps.Offerings.FindOfferings(r.Context(), filter)
	if err != nil {
		rr.writeDomainError(w, "Failed to search offerings", err)
		return
	}
	if offerings == nil {
		offerings = []orders.Offering{}
	}

	rr.writeJSONResponse(w, offerings)
}

// getSales handles GET /sales
func (rr *Routes) getSales(w http.ResponseWriter, r *http.Request) {
	sellerWebID := r.URL.Query().Get("sellerWebId")
	if sellerWebID == "" {
		rr.writeErrorResponse(w, "Missing sellerWebId", http.StatusBadRequest)
		return
	}

	sales, err := rr.deps.Offerings.Sales(r.Context(), sellerWebID)
	if err != nil {
		rr.writeDomainError(w, "Failed to list sales", err)
		return
	}
	if sales == nil {
		sales = []orders.OrderSummary{}
	}

	rr.writeJSONResponse(w, sales)
}

// getPurchases handles GET /purchases
func (rr *Routes) getPurchases(w http.ResponseWriter, r *http.Request) {
	buyerWebID := r.URL.Query().Get("buyerWebId")
	if buyerWebID == "" {
		rr.writeErrorResponse(w, "Missing buyerWebId", http.StatusBadRequest)
		return
	}

	purchases, err := rr.deps.Offerings.Purchases(r.Context(), buyerWebID)
	if err != nil {
		rr.writeDomainError(w, "Failed to list purchases", err)
		return
	}
	if purchases == nil {
		purchases = []orders.OrderSummary{}
	}

	rr.writeJSONResponse(w, purchases)
}

type buyRequest struct {
	Offering   string `json:"offering"`
	SellerPod  string `json:"sellerPod"`
	BuyerPod   string `json:"buyerPod"`
	BuyerWebID string `json:"buyerWebId"`
}

type buyResponse struct {
	Order       string `json:"order"`
	Offer       string `json:"offer"`
	PaymentID   string `json:"paymentId"`
	CheckoutURL string `json:"checkoutUrl"`
}

// buyOffering handles POST /buy: create a payment with the seller's provider
// key and record the order in the catalog and both pods.
func (rr *Routes) buyOffering(w http.ResponseWriter, r *http.Request) {
	var req buyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	for field, value := range map[string]string{
		"offering":   req.Offering,
		"sellerPod":  req.SellerPod,
		"buyerPod":   req.BuyerPod,
		"buyerWebId": req.BuyerWebID,
	} {
		if value == "" {
			rr.writeErrorResponse(w, "Missing "+field, http.StatusBadRequest)
			return
		}
	}

	details, err := rr.deps.Offerings.OfferingDetails(r.Context(), req.Offering, req.SellerPod)
	if err != nil {
		rr.writeDomainError(w, "Failed to resolve offering", err)
		return
	}

	apiKey, err := rr.deps.Offerings.MollieKey(r.Context(), details.SellerWebID)
	if err != nil {
		rr.writeDomainError(w, "Seller has no payment key", err)
		return
	}

	payment, err := rr.deps.Payments.CreatePayment(r.Context(), apiKey,
		details.Price, details.Currency,
		fmt.Sprintf("Payment for %s via The Solid Shop.", details.Name))
	if err != nil {
		rr.writeDomainError(w, "Failed to create payment", err)
		return
	}

	placed, err := rr.deps.Orders.SaveOrder(r.Context(), orders.OrderRequest{
		Offering:   *details,
		BuyerPod:   req.BuyerPod,
		BuyerWebID: req.BuyerWebID,
		PaymentID:  payment.ID,
	})
	if err != nil {
		rr.writeDomainError(w, "Failed to save order", err)
		return
	}

	rr.writeJSONResponse(w, buyResponse{
		Order:       placed.Order,
		Offer:       placed.Offer,
		PaymentID:   payment.ID,
		CheckoutURL: payment.CheckoutURL,
	})
}

type storeKeyRequest struct {
	SellerWebID string `json:"sellerWebId"`
	APIKey      string `json:"apiKey"`
}

// storePaymentKey handles POST /buy/key
func (rr *Routes) storePaymentKey(w http.ResponseWriter, r *http.Request) {
	var req storeKeyRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.SellerWebID == "" {
		rr.writeErrorResponse(w, "Missing sellerWebId", http.StatusBadRequest)
		return
	}
	if req.APIKey == "" {
		rr.writeErrorResponse(w, "Missing apiKey", http.StatusBadRequest)
		return
	}

	if err := rr.deps.Offerings.SaveMollieKey(r.Context(), req.SellerWebID, req.APIKey); err != nil {
		rr.writeDomainError(w, "Failed to store API key", err)
		return
	}

	rr.writeJSONResponse(w, map[string]string{"status": "stored"})
}

// paymentWebhook handles POST /payment/webhook. The payment provider posts
// the payment id form-encoded; the payment status itself is re-fetched from
// the provider rather than trusted from the callback.
func (rr *Routes) paymentWebhook(w http.ResponseWriter, r *http.Request) {
	paymentID := r.FormValue("id")
	if paymentID == "" {
		rr.writeErrorResponse(w, "Missing id", http.StatusBadRequest)
		return
	}

	routing, err := rr.deps.Offerings.PaymentRouting(r.Context(), paymentID)
	if err != nil {
		rr.writeDomainError(w, "Unknown payment", err)
		return
	}

	paid, err := rr.deps.Payments.IsPaid(r.Context(), routing.MollieKey, paymentID)
	if err != nil {
		rr.writeDomainError(w, "Failed to check payment status", err)
		return
	}
	if !paid {
		rr.writeJSONResponse(w, map[string]string{"status": "open"})
		return
	}

	if err := rr.deps.Orders.ConfirmPayment(r.Context(), routing.Order); err != nil {
		rr.writeDomainError(w, "Failed to confirm payment", err)
		return
	}

	rr.writeJSONResponse(w, map[string]string{"status": "paid"})
}

type credentialsRequest struct {
	IDPType      string `json:"idpType"`
	WebID        string `json:"webId"`
	ClientID     string `json:"clientId"`
	ClientSecret string `json:"clientSecret"`
	IDPUrl       string `json:"idpUrl"`
}

// storeCredentials handles POST /profile/credentials
func (rr *Routes) storeCredentials(w http.ResponseWriter, r *http.Request) {
	var req credentialsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		rr.writeErrorResponse(w, "Invalid request body", http.StatusBadRequest)
		return
	}
	if req.WebID == "" {
		rr.writeErrorResponse(w, "Missing webId", http.StatusBadRequest)
		return
	}

	switch credentials.IDPType(req.IDPType) {
	case credentials.IDPTypeCSS:
		for field, value := range map[string]string{
			"clientId":     req.ClientID,
			"clientSecret": req.ClientSecret,
			"idpUrl":       req.IDPUrl,
		} {
			if value == "" {
				rr.writeErrorResponse(w, "Missing "+field, http.StatusBadRequest)
				return
			}
		}
		if err := rr.deps.Credentials.SaveCSS(r.Context(), req.WebID, credentials.CSSCredential{
			ClientID:     req.ClientID,
			ClientSecret: req.ClientSecret,
			IDPUrl:       req.IDPUrl,
		}); err != nil {
			rr.writeDomainError(w, "Failed to store credentials", err)
			return
		}
	case credentials.IDPTypeESS:
		if err := rr.deps.Credentials.SaveESS(r.Context(), req.WebID); err != nil {
			rr.writeDomainError(w, "Failed to store credentials", err)
			return
		}
	default:
		rr.writeErrorResponse(w, "Unknown IDP type", http.StatusBadRequest)
		return
	}

	rr.writeJSONResponse(w, map[string]string{"status": "stored"})
}

// getBrokerWebID handles GET /auth/ess/webid
func (rr *Routes) getBrokerWebID(w http.ResponseWriter, _ *http.Request) {
	webID, err := rr.deps.Broker.WebID()
	if err != nil {
		rr.writeDomainError(w, "Broker identity unavailable", err)
		return
	}

	rr.writeJSONResponse(w, map[string]string{"webId": webID})
}

// writeJSONResponse writes a JSON response with the given data
func (*Routes) writeJSONResponse(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)

	if err := json.NewEncoder(w).Encode(data); err != nil {
		slog.Error("Failed to encode JSON response", "error", err)
	}
}

// writeErrorResponse writes a standardized error response
func (*Routes) writeErrorResponse(w http.ResponseWriter, message string, statusCode int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)

	if err := json.NewEncoder(w).Encode(ErrorResponse{Error: message}); err != nil {
		slog.Error("Failed to encode error response", "error", err)
	}
}

// writeDomainError maps service errors onto HTTP statuses.
func (rr *Routes) writeDomainError(w http.ResponseWriter, message string, err error) {
	slog.Error(message, "error", err)

	status := http.StatusInternalServerError
	switch {
	case errors.Is(err, orders.ErrNotFound),
		errors.Is(err, tasks.ErrNotFound),
		errors.Is(err, credentials.ErrNoCredential):
		status = http.StatusNotFound
	case errors.Is(err, credentials.ErrNotReady):
		status = http.StatusServiceUnavailable
	}

	rr.writeErrorResponse(w, message+": "+err.Error(), status)
}
