package credentials

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"sync"

	"github.com/golang-jwt/jwt/v5"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
)

// SessionState is the lifecycle state of the application session.
type SessionState int

const (
	// SessionUninitialized means startup login has not completed yet.
	SessionUninitialized SessionState = iota
	// SessionReady means login succeeded and the session can be used.
	SessionReady
	// SessionFailed means login failed; the session stays unavailable
	// until the process restarts.
	SessionFailed
)

func (s SessionState) String() string {
	switch s {
	case SessionUninitialized:
		return "uninitialized"
	case SessionReady:
		return "ready"
	case SessionFailed:
		return "failed"
	default:
		return "unknown"
	}
}

// SessionProvider holds the process-wide authenticated session for parties
// whose identity provider is the broker's own (ess type). It is written once
// by Login at startup and read concurrently afterwards.
type SessionProvider struct {
	hc *http.Client

	mu      sync.RWMutex
	state   SessionState
	fetcher Fetcher
	webID   string
}

// NewSessionProvider creates an uninitialized session provider.
func NewSessionProvider(hc *http.Client) *SessionProvider {
	if hc == nil {
		hc = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return &SessionProvider{hc: hc, state: SessionUninitialized}
}

// Login performs the startup client-credentials login against the issuer.
// It must be called exactly once; a failed login is terminal for the
// process.
func (s *SessionProvider) Login(ctx context.Context, clientID, clientSecret, issuer string) error {
	tokenURL, err := discoverTokenEndpoint(ctx, s.hc, issuer)
	if err != nil {
		s.fail()
		return err
	}

	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     tokenURL,
		Scopes:       []string{"webid"},
	}

	// The token source lives for the whole process; bind it to a background
	// context with our HTTP client rather than the login call's context.
	sourceCtx := context.WithValue(context.Background(), oauth2.HTTPClient, s.hc)

	token, err := cfg.TokenSource(sourceCtx).Token()
	if err != nil {
		s.fail()
		return fmt.Errorf("application session login failed: %w", err)
	}

	webID, err := webIDFromToken(token.AccessToken)
	if err != nil {
		s.fail()
		return err
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionReady
	s.webID = webID
	s.fetcher = &bearerFetcher{hc: s.hc, source: cfg.TokenSource(sourceCtx)}
	return nil
}

func (s *SessionProvider) fail() {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.state = SessionFailed
}

// State returns the current lifecycle state.
func (s *SessionProvider) State() SessionState {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.state
}

// Fetcher returns the session's fetch capability, or ErrNotReady.
func (s *SessionProvider) Fetcher() (Fetcher, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != SessionReady {
		return nil, fmt.Errorf("%w (state: %s)", ErrNotReady, s.state)
	}
	return s.fetcher, nil
}

// WebID returns the application's own web id, established at login.
func (s *SessionProvider) WebID() (string, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.state != SessionReady {
		return "", fmt.Errorf("%w (state: %s)", ErrNotReady, s.state)
	}
	return s.webID, nil
}

// bearerFetcher authenticates requests with a bearer token from the session
// token source, which refreshes expired tokens transparently.
type bearerFetcher struct {
	hc     *http.Client
	source oauth2.TokenSource
}

func (f *bearerFetcher) Do(req *http.Request) (*http.Response, error) {
	token, err := f.source.Token()
	if err != nil {
		return nil, fmt.Errorf("failed to obtain session token: %w", err)
	}
	token.SetAuthHeader(req)
	return f.hc.Do(req)
}

func discoverTokenEndpoint(ctx context.Context, hc *http.Client, issuer string) (string, error) {
	wellKnown := strings.TrimSuffix(issuer, "/") + "/.well-known/openid-configuration"
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, wellKnown, nil)
	if err != nil {
		return "", fmt.Errorf("failed to build discovery request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := hc.Do(req)
	if err != nil {
		return "", fmt.Errorf("identity provider %s unreachable: %w", issuer, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("discovery at %s returned status %d: %s",
			wellKnown, resp.StatusCode, strings.TrimSpace(string(body)))
	}

	var doc struct {
		TokenEndpoint string `json:"token_endpoint"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&doc); err != nil {
		return "", fmt.Errorf("failed to decode discovery document from %s: %w", wellKnown, err)
	}
	if doc.TokenEndpoint == "" {
		return "", fmt.Errorf("discovery document from %s has no token endpoint", wellKnown)
	}
	return doc.TokenEndpoint, nil
}

// webIDFromToken extracts the webid claim from the access token without
// verifying the signature; the token was just issued to us over TLS.
func webIDFromToken(accessToken string) (string, error) {
	claims := jwt.MapClaims{}
	if _, _, err := jwt.NewParser().ParseUnverified(accessToken, claims); err != nil {
		return "", fmt.Errorf("failed to parse session access token: %w", err)
	}
	webID, _ := claims["webid"].(string)
	if webID == "" {
		return "", fmt.Errorf("session access token carries no webid claim")
	}
	return webID, nil
}
