package credentials

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"
)

const defaultHTTPTimeout = 30 * time.Second

// Fetcher performs HTTP requests with store credentials attached. It is the
// capability handed to components that read from or write to a party's pod.
type Fetcher interface {
	Do(req *http.Request) (*http.Response, error)
}

// Resolver maps a party's web id to an authenticated fetch capability.
type Resolver interface {
	// Resolve returns a Fetcher for the party. Fails with ErrNoCredential
	// when the party has no credential record, and with ErrNotReady when
	// the party relies on the application session and it is unavailable.
	Resolve(ctx context.Context, webID string) (Fetcher, error)
}

type defaultResolver struct {
	repo    Repository
	session *SessionProvider
	hc      *http.Client
}

// ResolverOption configures the resolver.
type ResolverOption func(*defaultResolver)

// WithHTTPClient replaces the HTTP client used for token exchanges and for
// the fetchers handed out.
func WithHTTPClient(hc *http.Client) ResolverOption {
	return func(r *defaultResolver) {
		r.hc = hc
	}
}

// NewResolver creates a resolver with the given credential repository and
// application session provider.
func NewResolver(repo Repository, session *SessionProvider, opts ...ResolverOption) Resolver {
	r := &defaultResolver{
		repo:    repo,
		session: session,
		hc:      &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(r)
	}
	return r
}

func (r *defaultResolver) Resolve(ctx context.Context, webID string) (Fetcher, error) {
	idpType, err := r.repo.IDPType(ctx, webID)
	if err != nil {
		return nil, err
	}

	switch idpType {
	case IDPTypeCSS:
		cred, err := r.repo.CSSCredential(ctx, webID)
		if err != nil {
			return nil, err
		}
		return r.cssFetcher(ctx, cred)
	case IDPTypeESS:
		return r.session.Fetcher()
	default:
		return nil, fmt.Errorf("%w: unknown identity provider type %q for %s", ErrNoCredential, idpType, webID)
	}
}

// cssFetcher exchanges the party's client credentials for a DPoP-bound
// access token. Tokens are not cached: every resolution re-authenticates
// with a fresh key pair, so a replaced credential takes effect immediately.
func (r *defaultResolver) cssFetcher(ctx context.Context, cred *CSSCredential) (Fetcher, error) {
	key, err := newDPoPKey()
	if err != nil {
		return nil, err
	}

	token, err := requestAccessToken(ctx, r.hc, key, cred)
	if err != nil {
		return nil, err
	}

	return &dpopFetcher{hc: r.hc, token: token, key: key}, nil
}

func requestAccessToken(ctx context.Context, hc *http.Client, key *dpopKey, cred *CSSCredential) (string, error) {
	tokenURL := strings.TrimSuffix(cred.IDPUrl, "/") + "/.oidc/token"
	target, err := url.Parse(tokenURL)
	if err != nil {
		return "", fmt.Errorf("invalid identity provider URL %q: %w", cred.IDPUrl, err)
	}

	proof, err := key.proof(http.MethodPost, target)
	if err != nil {
		return "", err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, tokenURL,
		strings.NewReader("grant_type=client_credentials&scope=webid"))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}

	basic := url.QueryEscape(cred.ClientID) + ":" + url.QueryEscape(cred.ClientSecret)
	req.Header.Set("Authorization", "Basic "+base64.StdEncoding.EncodeToString([]byte(basic)))
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	req.Header.Set("DPoP", proof)

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("token endpoint %s unreachable: %w", tokenURL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("token endpoint %s returned status %d: %s",
			tokenURL, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var payload struct {
		AccessToken string `json:"access_token"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&payload); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if payload.AccessToken == "" {
		return "", fmt.Errorf("token endpoint %s returned no access token", tokenURL)
	}
	return payload.AccessToken, nil
}
