package credentials

import (
	"crypto/ecdsa"
	"crypto/elliptic"
	"crypto/rand"
	"fmt"
	"net/http"
	"net/url"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/lestrrat-go/jwx/v3/jwk"
)

// dpopKey is a proof-of-possession key pair. A fresh one is generated for
// every token exchange; keys are never persisted.
type dpopKey struct {
	private *ecdsa.PrivateKey
	public  jwk.Key
}

func newDPoPKey() (*dpopKey, error) {
	private, err := ecdsa.GenerateKey(elliptic.P256(), rand.Reader)
	if err != nil {
		return nil, fmt.Errorf("failed to generate dpop key pair: %w", err)
	}
	public, err := jwk.Import(private.Public())
	if err != nil {
		return nil, fmt.Errorf("failed to build jwk for dpop key: %w", err)
	}
	return &dpopKey{private: private, public: public}, nil
}

// proof builds the DPoP proof JWT for one HTTP request. The htu claim is the
// target URL stripped of query and fragment, per RFC 9449.
func (k *dpopKey) proof(method string, target *url.URL) (string, error) {
	htu := url.URL{Scheme: target.Scheme, Host: target.Host, Path: target.Path}

	token := jwt.NewWithClaims(jwt.SigningMethodES256, jwt.MapClaims{
		"htu": htu.String(),
		"htm": method,
		"jti": uuid.NewString(),
		"iat": time.Now().Unix(),
	})
	token.Header["typ"] = "dpop+jwt"
	token.Header["jwk"] = k.public

	signed, err := token.SignedString(k.private)
	if err != nil {
		return "", fmt.Errorf("failed to sign dpop proof: %w", err)
	}
	return signed, nil
}

// dpopFetcher performs requests authenticated with a DPoP-bound access
// token, generating a fresh proof per request.
type dpopFetcher struct {
	hc    *http.Client
	token string
	key   *dpopKey
}

func (f *dpopFetcher) Do(req *http.Request) (*http.Response, error) {
	proof, err := f.key.proof(req.Method, req.URL)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "DPoP "+f.token)
	req.Header.Set("DPoP", proof)
	return f.hc.Do(req)
}
