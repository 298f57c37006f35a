package handler

import (
	"context"
	"crypto/subtle"
	"errors"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	errMissingToken = errors.New("missing token")
	errInvalidToken = errors.New("invalid token")
)

// Claims is the token payload issued by the account service.
type Claims struct {
	UserID int64 `json:"user_id"`
	jwt.RegisteredClaims
}

// Principal is the authenticated caller of a request.
type Principal struct {
	UserID int64
	Admin  bool
}

type principalKey struct{}

func withPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, principalKey{}, p)
}

func principalFrom(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(principalKey{}).(Principal)
	return p, ok
}

// Authenticator verifies HS256 bearer tokens and the admin API key. Token
// issuance belongs to the account service.
type Authenticator struct {
	secret   []byte
	adminKey []byte
}

func NewAuthenticator(secretKey, adminAPIKey string) *Authenticator {
	return &Authenticator{secret: []byte(secretKey), adminKey: []byte(adminAPIKey)}
}

func (a *Authenticator) ParseToken(raw string) (Principal, error) {
	if raw == "" {
		return Principal{}, errMissingToken
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(raw, &claims, func(*jwt.Token) (any, error) {
		return a.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return Principal{}, errInvalidToken
	}
	if claims.UserID <= 0 {
		return Principal{}, errInvalidToken
	}
	return Principal{UserID: claims.UserID}, nil
}

// IsAdminKey reports whether key matches the configured admin key. An
// unconfigured key matches nothing.
func (a *Authenticator) IsAdminKey(key string) bool {
	if len(a.adminKey) == 0 || key == "" {
		return false
	}
	return subtle.ConstantTimeCompare([]byte(key), a.adminKey) == 1
}

func bearerToken(header string) string {
	scheme, token, ok := strings.Cut(strings.TrimSpace(header), " ")
	if !ok || !strings.EqualFold(scheme, "Bearer") {
		return ""
	}
	return strings.TrimSpace(token)
}
