package kalshi

import (
	"context"
	"crypto"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"crypto/x509"
	"encoding/base64"
	"encoding/pem"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testKeyPEM(t *testing.T) (*rsa.PrivateKey, string) {
	t.Helper()
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	block := &pem.Block{
		Type:  "RSA PRIVATE KEY",
		Bytes: x509.MarshalPKCS1PrivateKey(key),
	}
	return key, string(pem.EncodeToMemory(block))
}

func TestTokenSourceRejectsBadInput(t *testing.T) {
	_, keyPEM := testKeyPEM(t)

	_, err := NewTokenSource("", keyPEM)
	assert.Error(t, err)

	_, err = NewTokenSource("key-id", "not pem at all")
	assert.Error(t, err)
}

func TestTokenCachedUntilRefreshMargin(t *testing.T) {
	_, keyPEM := testKeyPEM(t)
	ts, err := NewTokenSource("key-id", keyPEM)
	require.NoError(t, err)

	src := ts.(*rsaTokenSource)
	base := time.Date(2026, 8, 24, 12, 0, 0, 0, time.UTC)
	src.now = func() time.Time { return base }

	first, err := ts.Token(context.Background())
	require.NoError(t, err)

	// Well inside the lifetime: same token.
	src.now = func() time.Time { return base.Add(30 * time.Minute) }
	again, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.Equal(t, first, again)

	// Inside the 60s refresh margin: reissued.
	src.now = func() time.Time { return base.Add(tokenLifetime - 30*time.Second) }
	refreshed, err := ts.Token(context.Background())
	require.NoError(t, err)
	assert.NotEqual(t, first, refreshed)
}

func TestTokenSignatureVerifies(t *testing.T) {
	key, keyPEM := testKeyPEM(t)
	ts, err := NewTokenSource("key-id", keyPEM)
	require.NoError(t, err)

	token, err := ts.Token(context.Background())
	require.NoError(t, err)

	parts := strings.Split(token, ".")
	require.Len(t, parts, 3)

	sig, err := base64.RawURLEncoding.DecodeString(parts[2])
	require.NoError(t, err)
	digest := sha256.Sum256([]byte(parts[0] + "." + parts[1]))
	err = rsa.VerifyPSS(&key.PublicKey, crypto.SHA256, digest[:], sig, &rsa.PSSOptions{
		SaltLength: rsa.PSSSaltLengthEqualsHash,
	})
	assert.NoError(t, err)

	header, err := base64.RawURLEncoding.DecodeString(parts[0])
	require.NoError(t, err)
	assert.Contains(t, string(header), `"PS256"`)
	assert.Contains(t, string(header), `"key-id"`)
}
