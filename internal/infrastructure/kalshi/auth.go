package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/json"
	"encoding/pem"
	"errors"
	"fmt"
	"sync"
	"time"
)

// TokenSource yields a bearer token for the Authorization header. Callers
// never see key material or signing details.
type TokenSource interface {
	Token(ctx context.Context) (string, error)
}

// Token lifetime and the refresh margin. A token is reissued once it is
// within refreshMargin of expiry, so in-flight requests never carry a token
// that lapses mid-request.
const (
	tokenLifetime = time.Hour
	refreshMargin = 60 * time.Second
)

// rsaTokenSource signs a compact JWS with RSA-PSS (PS256) over the key ID
// and validity claims, caching the result until the refresh margin.
type rsaTokenSource struct {
	apiKeyID string
	key      *rsa.PrivateKey
	now      func() time.Time

	mu      sync.Mutex
	token   string
	expires time.Time
}

// NewTokenSource parses a PEM-encoded RSA private key and returns the
// per-process token source for it.
func NewTokenSource(apiKeyID, privateKeyPEM string) (TokenSource, error) {
	if apiKeyID == "" {
		return nil, errors.New("kalshi api key id is empty")
	}
	block, _ := pem.Decode([]byte(privateKeyPEM))
	if block == nil {
		return nil, errors.New("kalshi private key is not PEM")
	}
	key, err := parseRSAKey(block.Bytes)
	if err != nil {
		return nil, fmt.Errorf("parse kalshi private key: %w", err)
	}
	return &rsaTokenSource{
		apiKeyID: apiKeyID,
		key:      key,
		now:      func() time.Time { return time.Now().UTC() },
	}, nil
}

func parseRSAKey(der []byte) (*rsa.PrivateKey, error) {
	if key, err := x509.ParsePKCS1PrivateKey(der); err == nil {
		return key, nil
	}
	parsed, err := x509.ParsePKCS8PrivateKey(der)
	if err != nil {
		return nil, err
	}
	key, ok := parsed.(*rsa.PrivateKey)
	if !ok {
		return nil, errors.New("key is not RSA")
	}
	return key, nil
}

func (s *rsaTokenSource) Token(_ context.Context) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	if s.token != "" && now.Before(s.expires.Add(-refreshMargin)) {
		return s.token, nil
	}

	expires := now.Add(tokenLifetime)
	token, err := s.sign(now, expires)
	if err != nil {
		return "", fmt.Errorf("sign kalshi token: %w", err)
	}
	s.token = token
	s.expires = expires
	return token, nil
}

// sign builds the compact header.claims.signature form with PS256.
func (s *rsaTokenSource) sign(issued, expires time.Time) (string, error) {
	header := map[string]string{"alg": "PS256", "typ": "JWT", "kid": s.apiKeyID}
	claims := map[string]any{
		"sub": s.apiKeyID,
		"iat": issued.Unix(),
		"exp": expires.Unix(),
	}
	h, err := json.Marshal(header)
	if err != nil {
		return "", err
	}
	c, err := json.Marshal(claims)
	if err != nil {
		return "", err
	}
	payload := b64(h) + "." + b64(c)

	digest := sha256.Sum256([]byte(payload))
	sig, err := rsa.SignPSS(rand.Reader, s.key, crypto.SHA256, digest[:], &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	if err != nil {
		return "", err
	}
	return payload + "." + b64(sig), nil
}

func b64(b []byte) string {
	return base64.RawURLEncoding.EncodeToString(b)
}

// staticTokenSource serves tests and local setups with a fixed token.
type staticTokenSource struct{ token string }

// StaticTokenSource returns a TokenSource that always yields token.
func StaticTokenSource(token string) TokenSource {
	return &staticTokenSource{token: token}
}

func (s *staticTokenSource) Token(context.Context) (string, error) {
	return s.token, nil
}
