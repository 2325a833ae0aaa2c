package auth

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// MinSecretLength is the shortest HMAC secret accepted for signing admin tokens.
const MinSecretLength = 32

// TokenConfig configures the HS256 issuer used for admin sessions.
type TokenConfig struct {
	Secret []byte
	Issuer string
	TTL    time.Duration
	Now    func() time.Time
}

// Subject is the identity encoded into an issued token.
type Subject struct {
	ID      string
	Email   string
	Name    string
	IsAdmin bool
}

// IssuedToken is a signed token and its expiry.
type IssuedToken struct {
	Token     string
	ExpiresAt time.Time
}

type sessionClaims struct {
	jwt.RegisteredClaims
	Email   string `json:"email"`
	Name    string `json:"name,omitempty"`
	IsAdmin bool   `json:"isAdmin"`
}

// TokenIssuer signs and verifies admin session tokens.
type TokenIssuer struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewTokenIssuer validates cfg and returns an issuer.
func NewTokenIssuer(cfg TokenConfig) (*TokenIssuer, error) {
	if len(cfg.Secret) < MinSecretLength {
		return nil, fmt.Errorf("token secret must be at least %d bytes", MinSecretLength)
	}
	issuer := strings.TrimSpace(cfg.Issuer)
	if issuer == "" {
		return nil, errors.New("token issuer is required")
	}
	ttl := cfg.TTL
	if ttl <= 0 {
		ttl = 12 * time.Hour
	}
	now := cfg.Now
	if now == nil {
		now = time.Now
	}

	return &TokenIssuer{secret: cfg.Secret, issuer: issuer, ttl: ttl, now: now}, nil
}

// Issue signs a token for subject.
func (i *TokenIssuer) Issue(subject Subject) (IssuedToken, error) {
	if strings.TrimSpace(subject.ID) == "" {
		return IssuedToken{}, errors.New("subject id is required")
	}

	issuedAt := i.now().UTC().Truncate(time.Second)
	expiresAt := issuedAt.Add(i.ttl)

	claims := sessionClaims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    i.issuer,
			Subject:   subject.ID,
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
			ExpiresAt: jwt.NewNumericDate(expiresAt),
			ID:        uuid.NewString(),
		},
		Email:   subject.Email,
		Name:    subject.Name,
		IsAdmin: subject.IsAdmin,
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(i.secret)
	if err != nil {
		return IssuedToken{}, fmt.Errorf("sign token: %w", err)
	}

	return IssuedToken{Token: signed, ExpiresAt: expiresAt}, nil
}

// Verifier returns a VerifyFunc accepting only tokens signed by this issuer.
func (i *TokenIssuer) Verifier() VerifyFunc {
	return func(ctx context.Context, token string) (map[string]interface{}, error) {
		claims := jwt.MapClaims{}
		_, err := jwt.ParseWithClaims(token, claims, func(t *jwt.Token) (any, error) {
			return i.secret, nil
		},
			jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
			jwt.WithIssuer(i.issuer),
			jwt.WithExpirationRequired(),
			jwt.WithTimeFunc(i.now),
		)
		if err != nil {
			return nil, mapJWTError(err)
		}
		return claims, nil
	}
}

// ErrTokenExpired reports an expired session token.
var ErrTokenExpired = errors.New("token expired")

// ErrTokenInvalid reports a malformed, unsigned or foreign token.
var ErrTokenInvalid = errors.New("token invalid")

func mapJWTError(err error) error {
	if errors.Is(err, jwt.ErrTokenExpired) {
		return ErrTokenExpired
	}
	return fmt.Errorf("%w: %v", ErrTokenInvalid, err)
}
