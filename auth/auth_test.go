package auth

import (
	"crypto/rand"
	"crypto/rsa"
	"crypto/x509"
	"encoding/pem"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/crypto/bcrypt"

	"github.com/warp/slot-engine/booking"
)

var alice = booking.User{ID: "u-1", Username: "alice", Role: booking.RoleAdmin}

func TestBcryptHasher(t *testing.T) {
	h := BcryptHasher{Cost: bcrypt.MinCost}

	hash, err := h.Hash("correct horse")
	require.NoError(t, err)
	assert.NotEqual(t, "correct horse", hash)

	assert.NoError(t, h.Compare(hash, "correct horse"))
	assert.ErrorIs(t, h.Compare(hash, "wrong"), booking.ErrInvalidCredentials)
}

func TestIssuer_HS256RoundTrip(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{Secret: "s3cret", TTL: time.Minute})
	require.NoError(t, err)

	token, err := iss.Issue(alice)
	require.NoError(t, err)

	p, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, booking.Principal{UserID: "u-1", Role: booking.RoleAdmin}, p)
}

func TestIssuer_RejectsExpiredToken(t *testing.T) {
	iss, err := NewIssuer(IssuerConfig{Secret: "s3cret", TTL: time.Minute})
	require.NoError(t, err)
	issuedAt := time.Date(2025, 9, 1, 10, 0, 0, 0, time.UTC)
	iss.now = func() time.Time { return issuedAt }

	token, err := iss.Issue(alice)
	require.NoError(t, err)

	iss.now = func() time.Time { return issuedAt.Add(2 * time.Minute) }
	_, err = iss.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsForeignSignatures(t *testing.T) {
	a, err := NewIssuer(IssuerConfig{Secret: "one"})
	require.NoError(t, err)
	b, err := NewIssuer(IssuerConfig{Secret: "two"})
	require.NoError(t, err)

	token, err := a.Issue(alice)
	require.NoError(t, err)
	_, err = b.Parse(token)
	assert.ErrorIs(t, err, ErrInvalidToken)

	_, err = a.Parse("not-a-token")
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RejectsAlgorithmSwitch(t *testing.T) {
	// GIVEN: RS256 issuer
	// WHEN: A token arrives signed HS256
	// THEN: Rejected before key use

	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	iss := NewRSAIssuer(key, time.Minute)

	forged, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{
		Role:             booking.RoleAdmin,
		RegisteredClaims: jwt.RegisteredClaims{Subject: "u-1", ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour))},
	}).SignedString([]byte("guess"))
	require.NoError(t, err)

	_, err = iss.Parse(forged)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestIssuer_RS256FromPEMFiles(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	dir := t.TempDir()

	privPath := filepath.Join(dir, "jwt.key")
	pubPath := filepath.Join(dir, "jwt.pub")
	privDER := x509.MarshalPKCS1PrivateKey(key)
	require.NoError(t, os.WriteFile(privPath, pem.EncodeToMemory(&pem.Block{Type: "RSA PRIVATE KEY", Bytes: privDER}), 0o600))
	pubDER, err := x509.MarshalPKIXPublicKey(&key.PublicKey)
	require.NoError(t, err)
	require.NoError(t, os.WriteFile(pubPath, pem.EncodeToMemory(&pem.Block{Type: "PUBLIC KEY", Bytes: pubDER}), 0o600))

	iss, err := NewIssuer(IssuerConfig{PrivateKeyPath: privPath, PublicKeyPath: pubPath})
	require.NoError(t, err)
	assert.Equal(t, DefaultTokenTTL, iss.TTL())

	token, err := iss.Issue(booking.User{ID: "u-2", Role: booking.RoleUser})
	require.NoError(t, err)
	p, err := iss.Parse(token)
	require.NoError(t, err)
	assert.Equal(t, booking.UserID("u-2"), p.UserID)
	assert.False(t, p.IsAdmin())
}

func TestNewIssuer_RequiresKeyMaterial(t *testing.T) {
	_, err := NewIssuer(IssuerConfig{})
	assert.Error(t, err)

	_, err = NewIssuer(IssuerConfig{PrivateKeyPath: "/nope/key", PublicKeyPath: "/nope/pub"})
	assert.Error(t, err)
}
