// Package helpers provides common test utilities for the gateway tests.
package helpers

import (
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// TestKeyID is the key ID of the signing key served by FakeIssuer.
const TestKeyID = "test-key"

var (
	sharedKeyOnce sync.Once
	sharedKey     *rsa.PrivateKey
)

// RSAKey returns a process-wide 2048-bit RSA key. Generating one per test is slow.
func RSAKey(t testing.TB) *rsa.PrivateKey {
	t.Helper()
	sharedKeyOnce.Do(func() {
		k, err := rsa.GenerateKey(rand.Reader, 2048)
		if err != nil {
			panic(err)
		}
		sharedKey = k
	})
	return sharedKey
}

// FakeIssuer is an httptest OIDC provider serving a discovery document and
// a JWKS containing one RSA key.
type FakeIssuer struct {
	Server *httptest.Server
	Key    *rsa.PrivateKey

	DiscoveryHits atomic.Int64
	JWKSHits      atomic.Int64

	mu              sync.Mutex
	discoveryStatus int
	jwksStatus      int
	jwksBody        []byte
	omitJWKSURI     bool
}

// NewFakeIssuer starts a FakeIssuer closed at test cleanup.
func NewFakeIssuer(t testing.TB) *FakeIssuer {
	t.Helper()

	f := &FakeIssuer{
		Key:             RSAKey(t),
		discoveryStatus: http.StatusOK,
		jwksStatus:      http.StatusOK,
	}
	f.jwksBody = MustJWKS(t, f.Key, TestKeyID)

	mux := http.NewServeMux()
	mux.HandleFunc("/.well-known/openid-configuration", f.serveDiscovery)
	mux.HandleFunc("/jwks", f.serveJWKS)
	f.Server = httptest.NewServer(mux)
	t.Cleanup(f.Server.Close)

	return f
}

// Issuer returns the issuer identifier, equal to the server URL.
func (f *FakeIssuer) Issuer() string {
	return f.Server.URL
}

// SetDiscoveryStatus makes the discovery endpoint answer with status.
func (f *FakeIssuer) SetDiscoveryStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.discoveryStatus = status
}

// SetJWKSStatus makes the JWKS endpoint answer with status.
func (f *FakeIssuer) SetJWKSStatus(status int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jwksStatus = status
}

// SetJWKSBody replaces the JWKS document.
func (f *FakeIssuer) SetJWKSBody(body []byte) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.jwksBody = body
}

// OmitJWKSURI serves a discovery document without jwks_uri.
func (f *FakeIssuer) OmitJWKSURI() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.omitJWKSURI = true
}

func (f *FakeIssuer) serveDiscovery(w http.ResponseWriter, _ *http.Request) {
	f.DiscoveryHits.Add(1)

	f.mu.Lock()
	status, omit := f.discoveryStatus, f.omitJWKSURI
	f.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}

	doc := map[string]any{"issuer": f.Issuer()}
	if !omit {
		doc["jwks_uri"] = f.Issuer() + "/jwks"
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(doc)
}

func (f *FakeIssuer) serveJWKS(w http.ResponseWriter, _ *http.Request) {
	f.JWKSHits.Add(1)

	f.mu.Lock()
	status, body := f.jwksStatus, f.jwksBody
	f.mu.Unlock()

	if status != http.StatusOK {
		w.WriteHeader(status)
		return
	}
	w.Header().Set("Content-Type", "application/json")
	_, _ = w.Write(body)
}

// MustJWKS returns the JSON JWKS holding the public half of key.
func MustJWKS(t testing.TB, key *rsa.PrivateKey, kid string) []byte {
	t.Helper()

	pub, err := jwk.FromRaw(key.Public())
	if err != nil {
		t.Fatalf("jwk.FromRaw: %v", err)
	}
	if err := pub.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("set kid: %v", err)
	}
	if err := pub.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatalf("set alg: %v", err)
	}

	set := jwk.NewSet()
	if err := set.AddKey(pub); err != nil {
		t.Fatalf("add key: %v", err)
	}

	b, err := json.Marshal(set)
	if err != nil {
		t.Fatalf("marshal jwks: %v", err)
	}
	return b
}

// TokenClaims are the claims minted by SignToken. Zero times are omitted.
type TokenClaims struct {
	Issuer    string
	Audience  []string
	Subject   string
	IssuedAt  time.Time
	NotBefore time.Time
	Expiry    time.Time
	Extra     map[string]any
}

// SignToken mints an RS256 token signed by key with the given kid.
func SignToken(t testing.TB, key *rsa.PrivateKey, kid string, c TokenClaims) string {
	t.Helper()

	b := jwt.NewBuilder().Issuer(c.Issuer).Subject(c.Subject)
	if len(c.Audience) > 0 {
		b = b.Audience(c.Audience)
	}
	if !c.IssuedAt.IsZero() {
		b = b.IssuedAt(c.IssuedAt)
	}
	if !c.NotBefore.IsZero() {
		b = b.NotBefore(c.NotBefore)
	}
	if !c.Expiry.IsZero() {
		b = b.Expiration(c.Expiry)
	}
	for k, v := range c.Extra {
		b = b.Claim(k, v)
	}

	tok, err := b.Build()
	if err != nil {
		t.Fatalf("build token: %v", err)
	}

	signingKey, err := jwk.FromRaw(key)
	if err != nil {
		t.Fatalf("jwk.FromRaw: %v", err)
	}
	if err := signingKey.Set(jwk.KeyIDKey, kid); err != nil {
		t.Fatalf("set kid: %v", err)
	}

	signed, err := jwt.Sign(tok, jwt.WithKey(jwa.RS256, signingKey))
	if err != nil {
		t.Fatalf("sign token: %v", err)
	}
	return string(signed)
}

// Token mints a token from the issuer's key, valid for an hour from now.
func (f *FakeIssuer) Token(t testing.TB, audience, subject string, extra map[string]any) string {
	t.Helper()
	now := time.Now()
	return SignToken(t, f.Key, TestKeyID, TokenClaims{
		Issuer:   f.Issuer(),
		Audience: []string{audience},
		Subject:  subject,
		IssuedAt: now,
		Expiry:   now.Add(time.Hour),
		Extra:    extra,
	})
}
