// Package payments talks to the Mollie payment API on behalf of sellers.
// Every call authenticates with the seller's own API key; the broker holds
// no key of its own.
package payments

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"strings"
	"time"
)

const (
	defaultBaseURL = "https://api.mollie.com/v2"
	defaultTimeout = 30 * time.Second

	// StatusPaid is the payment status Mollie reports once the buyer paid.
	StatusPaid = "paid"
)

// Payment is a created payment the buyer must complete at the checkout URL.
type Payment struct {
	ID          string
	Status      string
	CheckoutURL string
}

// Client creates and inspects payments.
type Client interface {
	// CreatePayment creates a payment over the given price. The price is
	// rendered with two decimals as the API requires.
	CreatePayment(ctx context.Context, apiKey, price, currency, description string) (*Payment, error)

	// IsPaid reports whether the payment has been completed.
	IsPaid(ctx context.Context, apiKey, paymentID string) (bool, error)
}

type defaultClient struct {
	baseURL     string
	redirectURL string
	webhookURL  string
	hc          *http.Client
}

// Option configures the client.
type Option func(*defaultClient)

// WithBaseURL overrides the payment API base URL.
func WithBaseURL(u string) Option {
	return func(c *defaultClient) {
		c.baseURL = strings.TrimSuffix(u, "/")
	}
}

// WithHTTPClient replaces the underlying HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *defaultClient) {
		c.hc = hc
	}
}

// NewClient creates a payment client. Buyers are sent to redirectURL after
// paying; Mollie reports status changes to webhookURL.
func NewClient(redirectURL, webhookURL string, opts ...Option) Client {
	c := &defaultClient{
		baseURL:     defaultBaseURL,
		redirectURL: redirectURL,
		webhookURL:  webhookURL,
		hc:          &http.Client{Timeout: defaultTimeout},
	}
	for _, opt := range opts {
		opt(c)
	}
	return c
}

type amountBody struct {
	Currency string `json:"currency"`
	Value    string `json:"value"`
}

type createPaymentBody struct {
	Amount      amountBody `json:"amount"`
	Description string     `json:"description"`
	RedirectURL string     `json:"redirectUrl,omitempty"`
	WebhookURL  string     `json:"webhookUrl,omitempty"`
}

type paymentResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Links  struct {
		Checkout struct {
			Href string `json:"href"`
		} `json:"checkout"`
	} `json:"_links"`
}

func (c *defaultClient) CreatePayment(ctx context.Context, apiKey, price, currency, description string) (*Payment, error) {
	value, err := formatAmount(price)
	if err != nil {
		return nil, err
	}

	body, err := json.Marshal(createPaymentBody{
		Amount:      amountBody{Currency: currency, Value: value},
		Description: description,
		RedirectURL: c.redirectURL,
		WebhookURL:  c.webhookURL,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to encode payment request: %w", err)
	}

	var resp paymentResponse
	if err := c.do(ctx, http.MethodPost, "/payments", apiKey, bytes.NewReader(body), &resp); err != nil {
		return nil, err
	}
	return &Payment{
		ID:          resp.ID,
		Status:      resp.Status,
		CheckoutURL: resp.Links.Checkout.Href,
	}, nil
}

func (c *defaultClient) IsPaid(ctx context.Context, apiKey, paymentID string) (bool, error) {
	var resp paymentResponse
	if err := c.do(ctx, http.MethodGet, "/payments/"+paymentID, apiKey, nil, &resp); err != nil {
		return false, err
	}
	return resp.Status == StatusPaid, nil
}

func (c *defaultClient) do(ctx context.Context, method, path, apiKey string, body io.Reader, out any) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return fmt.Errorf("failed to build payment request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+apiKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.hc.Do(req)
	if err != nil {
		return fmt.Errorf("payment API unreachable: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		detail, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return fmt.Errorf("payment API returned status %d: %s",
			resp.StatusCode, strings.TrimSpace(string(detail)))
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode payment response: %w", err)
	}
	return nil
}

// formatAmount renders a price with exactly two decimals.
func formatAmount(price string) (string, error) {
	f, err := strconv.ParseFloat(price, 64)
	if err != nil {
		return "", fmt.Errorf("invalid price %q: %w", price, err)
	}
	return strconv.FormatFloat(f, 'f', 2, 64), nil
}
