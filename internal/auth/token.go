package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"skein.org/internal/config"
)

// Audience tags every issued token with the serving API it is meant for.
const Audience = "skein-apis"

// Claims is the signed envelope carried by identity tokens: the serialized
// identity plus the registered audience/expiry claims.
type Claims struct {
	User map[string]any `json:"user"`
	jwt.RegisteredClaims
}

// TokenCodec mints and verifies signed identity tokens (HS256 JWTs). The
// signing secret and lifetime are resolved once at construction; nothing is
// read from ambient configuration at request time.
type TokenCodec struct {
	secret   []byte
	ttl      time.Duration
	audience string
	now      func() time.Time
}

// NewTokenCodec builds a codec from a resolved secret and token lifetime.
// An empty secret or non-positive lifetime is a configuration error and
// must abort startup.
func NewTokenCodec(secret string, ttl time.Duration) (*TokenCodec, error) {
	secret = strings.TrimSpace(secret)
	if secret == "" {
		return nil, errors.New("auth: jwt secret is not configured")
	}
	if ttl <= 0 {
		return nil, errors.New("auth: jwt lifetime must be greater than zero")
	}
	return &TokenCodec{
		secret:   []byte(secret),
		ttl:      ttl,
		audience: Audience,
		now:      time.Now,
	}, nil
}

// NewTokenCodecFromConfig builds a codec from the well-known configuration
// keys api.auth_jwt_secret and api.auth_jwt_expiration_time.
func NewTokenCodecFromConfig(cfg *config.Config) (*TokenCodec, error) {
	ttl, err := cfg.TokenTTL()
	if err != nil {
		return nil, err
	}
	return NewTokenCodec(cfg.Get(config.KeyJWTSecret), ttl)
}

// Issue signs the serialized identity into a time-bounded token and returns
// it along with its expiry.
func (c *TokenCodec) Issue(user map[string]any) (string, time.Time, error) {
	if user == nil {
		return "", time.Time{}, errors.New("auth: user payload is required")
	}
	now := c.now().UTC()
	exp := now.Add(c.ttl)
	claims := Claims{
		User: user,
		RegisteredClaims: jwt.RegisteredClaims{
			Audience:  jwt.ClaimStrings{c.audience},
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(exp),
			ID:        uuid.NewString(),
		},
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, exp, nil
}

// Verify checks signature, audience and expiry and returns the serialized
// identity. Every failure mode collapses into ErrInvalidToken so callers
// cannot probe verification internals.
func (c *TokenCodec) Verify(token string) (map[string]any, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return nil, ErrInvalidToken
	}
	parsed, err := jwt.ParseWithClaims(token, &Claims{}, func(t *jwt.Token) (any, error) {
		if t.Method != jwt.SigningMethodHS256 {
			return nil, ErrInvalidToken
		}
		return c.secret, nil
	},
		jwt.WithAudience(c.audience),
		jwt.WithExpirationRequired(),
		jwt.WithIssuedAt(),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		return nil, ErrInvalidToken
	}
	claims, ok := parsed.Claims.(*Claims)
	if !ok || !parsed.Valid || claims.User == nil {
		return nil, ErrInvalidToken
	}
	return claims.User, nil
}
