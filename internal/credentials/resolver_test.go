package credentials_test

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/redpencilio/solid-shop-search-service/internal/credentials"
)

// fakeRepository serves credential records from memory.
type fakeRepository struct {
	idpTypes map[string]credentials.IDPType
	css      map[string]credentials.CSSCredential
}

func (f *fakeRepository) IDPType(_ context.Context, webID string) (credentials.IDPType, error) {
	t, ok := f.idpTypes[webID]
	if !ok {
		return "", credentials.ErrNoCredential
	}
	return t, nil
}

func (f *fakeRepository) CSSCredential(_ context.Context, webID string) (*credentials.CSSCredential, error) {
	c, ok := f.css[webID]
	if !ok {
		return nil, credentials.ErrNoCredential
	}
	return &c, nil
}

func (f *fakeRepository) SaveCSS(_ context.Context, webID string, cred credentials.CSSCredential) error {
	f.idpTypes[webID] = credentials.IDPTypeCSS
	f.css[webID] = cred
	return nil
}

func (f *fakeRepository) SaveESS(_ context.Context, webID string) error {
	f.idpTypes[webID] = credentials.IDPTypeESS
	delete(f.css, webID)
	return nil
}

// newIDPServer fakes a css identity provider's token endpoint. It verifies
// the request shape and returns the given access token.
func newIDPServer(t *testing.T, accessToken string, sawDPoP *bool) *httptest.Server {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("/.oidc/token", func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, http.MethodPost, r.Method)

		auth := r.Header.Get("Authorization")
		require.True(t, strings.HasPrefix(auth, "Basic "), "expected basic auth, got %q", auth)
		decoded, err := base64.StdEncoding.DecodeString(strings.TrimPrefix(auth, "Basic "))
		require.NoError(t, err)
		assert.Contains(t, string(decoded), ":")

		if r.Header.Get("DPoP") != "" {
			*sawDPoP = true
		}

		body, err := io.ReadAll(r.Body)
		require.NoError(t, err)
		assert.Contains(t, string(body), "grant_type=client_credentials")

		w.Header().Set("Content-Type", "application/json")
		json.NewEncoder(w).Encode(map[string]any{
			"access_token": accessToken,
			"token_type":   "DPoP",
			"expires_in":   600,
		})
	})
	server := httptest.NewServer(mux)
	t.Cleanup(server.Close)
	return server
}

func TestResolver_CSS(t *testing.T) {
	t.Parallel()

	const webID = "https://seller.example/profile#me"

	var sawDPoP bool
	idp := newIDPServer(t, "token-abc", &sawDPoP)

	repo := &fakeRepository{
		idpTypes: map[string]credentials.IDPType{webID: credentials.IDPTypeCSS},
		css: map[string]credentials.CSSCredential{webID: {
			ClientID:     "client-1",
			ClientSecret: "s3cret",
			IDPUrl:       idp.URL,
		}},
	}

	session := credentials.NewSessionProvider(nil)
	resolver := credentials.NewResolver(repo, session)

	fetcher, err := resolver.Resolve(context.Background(), webID)
	require.NoError(t, err)
	assert.True(t, sawDPoP, "token exchange must carry a DPoP proof")

	// The fetcher must bind the token and a fresh proof to each request.
	var gotAuth, gotProof string
	pod := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotAuth = r.Header.Get("Authorization")
		gotProof = r.Header.Get("DPoP")
		w.Write([]byte("ok"))
	}))
	defer pod.Close()

	req, err := http.NewRequest(http.MethodGet, pod.URL+"/private/tests/my-offerings.ttl", nil)
	require.NoError(t, err)
	resp, err := fetcher.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	assert.Equal(t, "DPoP token-abc", gotAuth)
	require.NotEmpty(t, gotProof)

	// The proof is a JWT whose htu points at the request URL.
	claims := jwt.MapClaims{}
	_, _, err = jwt.NewParser().ParseUnverified(gotProof, claims)
	require.NoError(t, err)
	assert.Equal(t, pod.URL+"/private/tests/my-offerings.ttl", claims["htu"])
	assert.Equal(t, http.MethodGet, claims["htm"])
	assert.NotEmpty(t, claims["jti"])
}

func TestResolver_CSS_UsesReplacedCredential(t *testing.T) {
	t.Parallel()

	const webID = "https://seller.example/profile#me"

	var sawOld, sawNew bool
	oldIDP := newIDPServer(t, "old-token", &sawOld)
	newIDP := newIDPServer(t, "new-token", &sawNew)

	repo := &fakeRepository{
		idpTypes: map[string]credentials.IDPType{webID: credentials.IDPTypeCSS},
		css: map[string]credentials.CSSCredential{webID: {
			ClientID: "client-1", ClientSecret: "old", IDPUrl: oldIDP.URL,
		}},
	}

	resolver := credentials.NewResolver(repo, credentials.NewSessionProvider(nil))

	_, err := resolver.Resolve(context.Background(), webID)
	require.NoError(t, err)
	assert.True(t, sawOld)

	// Replace the credential; the next resolution must hit the new IDP
	// because nothing is cached between calls.
	require.NoError(t, repo.SaveCSS(context.Background(), webID, credentials.CSSCredential{
		ClientID: "client-2", ClientSecret: "new", IDPUrl: newIDP.URL,
	}))

	_, err = resolver.Resolve(context.Background(), webID)
	require.NoError(t, err)
	assert.True(t, sawNew)
}

func TestResolver_ESS_NotReady(t *testing.T) {
	t.Parallel()

	const webID = "https://buyer.example/profile#me"

	repo := &fakeRepository{idpTypes: map[string]credentials.IDPType{webID: credentials.IDPTypeESS}}
	resolver := credentials.NewResolver(repo, credentials.NewSessionProvider(nil))

	_, err := resolver.Resolve(context.Background(), webID)
	assert.ErrorIs(t, err, credentials.ErrNotReady)
}

func TestResolver_NoCredential(t *testing.T) {
	t.Parallel()

	repo := &fakeRepository{idpTypes: map[string]credentials.IDPType{}}
	resolver := credentials.NewResolver(repo, credentials.NewSessionProvider(nil))

	_, err := resolver.Resolve(context.Background(), "https://nobody.example/profile#me")
	assert.ErrorIs(t, err, credentials.ErrNoCredential)
}

func TestResolver_UnknownIDPType(t *testing.T) {
	t.Parallel()

	const webID = "https://odd.example/profile#me"
	repo := &fakeRepository{idpTypes: map[string]credentials.IDPType{webID: "saml"}}
	resolver := credentials.NewResolver(repo, credentials.NewSessionProvider(nil))

	_, err := resolver.Resolve(context.Background(), webID)
	assert.ErrorIs(t, err, credentials.ErrNoCredential)
}
