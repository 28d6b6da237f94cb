package auth

import (
	"crypto/rsa"
	"errors"
	"fmt"
	"os"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/warp/slot-engine/booking"
)

// =============================================================================
// BEARER TOKENS
// =============================================================================

// DefaultTokenTTL is used when IssuerConfig.TTL is zero.
const DefaultTokenTTL = time.Hour

// ErrInvalidToken is returned for any token that fails parsing, signature
// or expiry checks.
var ErrInvalidToken = errors.New("invalid or expired token")

// Claims carries the caller identity. Subject holds the user id.
type Claims struct {
	Role booking.Role `json:"role"`
	jwt.RegisteredClaims
}

// IssuerConfig selects the signing scheme. When both key paths are set
// tokens are RS256; otherwise Secret is used for HS256.
type IssuerConfig struct {
	Secret         string
	PrivateKeyPath string
	PublicKeyPath  string
	TTL            time.Duration
	Issuer         string
}

// Issuer signs and verifies bearer tokens.
type Issuer struct {
	method  jwt.SigningMethod
	signKey any
	verify  any
	ttl     time.Duration
	issuer  string
	now     func() time.Time
}

func NewIssuer(cfg IssuerConfig) (*Issuer, error) {
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	iss := &Issuer{ttl: ttl, issuer: cfg.Issuer, now: time.Now}

	if cfg.PrivateKeyPath != "" && cfg.PublicKeyPath != "" {
		priv, pub, err := loadRSAKeys(cfg.PrivateKeyPath, cfg.PublicKeyPath)
		if err != nil {
			return nil, err
		}
		iss.method, iss.signKey, iss.verify = jwt.SigningMethodRS256, priv, pub
		return iss, nil
	}

	if cfg.Secret == "" {
		return nil, errors.New("auth: either a JWT secret or an RSA key pair is required")
	}
	iss.method, iss.signKey, iss.verify = jwt.SigningMethodHS256, []byte(cfg.Secret), []byte(cfg.Secret)
	return iss, nil
}

// NewRSAIssuer builds an RS256 issuer from keys already in memory.
func NewRSAIssuer(priv *rsa.PrivateKey, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = DefaultTokenTTL
	}
	return &Issuer{method: jwt.SigningMethodRS256, signKey: priv, verify: &priv.PublicKey, ttl: ttl, now: time.Now}
}

func loadRSAKeys(privatePath, publicPath string) (*rsa.PrivateKey, *rsa.PublicKey, error) {
	privPEM, err := os.ReadFile(privatePath)
	if err != nil {
		return nil, nil, fmt.Errorf("read private key: %w", err)
	}
	priv, err := jwt.ParseRSAPrivateKeyFromPEM(privPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse private key: %w", err)
	}
	pubPEM, err := os.ReadFile(publicPath)
	if err != nil {
		return nil, nil, fmt.Errorf("read public key: %w", err)
	}
	pub, err := jwt.ParseRSAPublicKeyFromPEM(pubPEM)
	if err != nil {
		return nil, nil, fmt.Errorf("parse public key: %w", err)
	}
	return priv, pub, nil
}

// TTL reports how long issued tokens stay valid.
func (i *Issuer) TTL() time.Duration {
	return i.ttl
}

// Issue signs a token for u.
func (i *Issuer) Issue(u booking.User) (string, error) {
	now := i.now()
	claims := Claims{
		Role: u.Role,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   string(u.ID),
			Issuer:    i.issuer,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
		},
	}
	return jwt.NewWithClaims(i.method, claims).SignedString(i.signKey)
}

// Parse verifies a token and returns the caller it names.
func (i *Issuer) Parse(tokenString string) (booking.Principal, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if t.Method.Alg() != i.method.Alg() {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return i.verify, nil
	}, jwt.WithTimeFunc(i.now))
	if err != nil || !token.Valid {
		return booking.Principal{}, ErrInvalidToken
	}
	if claims.Subject == "" || !claims.Role.Valid() {
		return booking.Principal{}, ErrInvalidToken
	}
	return booking.Principal{UserID: booking.UserID(claims.Subject), Role: claims.Role}, nil
}
