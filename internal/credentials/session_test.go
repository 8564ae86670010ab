package credentials_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
)

// newIssuer fakes an ess identity provider: OIDC discovery plus a token
// endpoint issuing a JWT with the given webid claim.
func newIssuer(t *testing.T, webID string) *httptest.Server {
	t.Helper()

	mux := http.NewServeMux()
	var server *httptest.Server

	mux.HandleFunc("/.well-known/openid-configuration", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]string{
			"issuer":         server.URL,
			"token_endpoint": server.URL + "/token",
		})
	})
	mux.HandleFunc("/token", func(w http.ResponseWriter, r *http.Request) {
		require.NoError(t, r.ParseForm())

		token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{"webid": webID})
		signed, err := token.SignedString([]byte("test-signing-key"))
		require.NoError(t, err)

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": signed,
			"token_type":   "Bearer",
			"expires_in":   3600,
		})
	})

	server = httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestSessionProvider_Lifecycle(t *testing.T) {
	t.Parallel()

	const webID = "https://broker.example/profile#me"
	issuer := newIssuer(t, webID)

	session := credentials.NewSessionProvider(nil)
	assert.Equal(t, credentials.SessionUninitialized, session.State())

	_, err := session.Fetcher()
	assert.ErrorIs(t, err, credentials.ErrNotReady)

	require.NoError(t, session.Login(context.Background(), "app-client", "app-secret", issuer.URL))
	assert.Equal(t, credentials.SessionReady, session.State())

	got, err := session.WebID()
	require.NoError(t, err)
	assert.Equal(t, webID, got)

	fetcher, err := session.Fetcher()
	require.NoError(t, err)

	var gotAuth string
	pod := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		w.Write([]byte("ok"))
	}))
	defer pod.Close()

	req, err := http.NewRequest(http.MethodGet, pod.URL+"/doc.ttl", nil)
	require.NoError(t, err)
	resp, err := fetcher.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Contains(t, gotAuth, "Bearer ")
}

func TestSessionProvider_FailedLoginIsTerminal(t *testing.T) {
	t.Parallel()

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		http.Error(w, "nope", http.StatusInternalServerError)
	}))
	defer server.Close()

	session := credentials.NewSessionProvider(nil)
	err := session.Login(context.Background(), "app-client", "app-secret", server.URL)
	require.Error(t, err)

	assert.Equal(t, credentials.SessionFailed, session.State())
	_, err = session.Fetcher()
	assert.ErrorIs(t, err, credentials.ErrNotReady)
	_, err = session.WebID()
	assert.ErrorIs(t, err, credentials.ErrNotReady)
}
