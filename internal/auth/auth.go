// Package auth turns a bearer token into a caller identity.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/golang-jwt/jwt/v5"
)

var (
	ErrMissingToken = errors.New("auth: no token provided")
	ErrInvalidToken = errors.New("auth: invalid token")
)

// Verifier returns the user id a token was issued to.
type Verifier interface {
	Verify(ctx context.Context, token string) (string, error)
}

// Claims carries the caller id in user_id, falling back to sub.
type Claims struct {
	UserID string `json:"user_id,omitempty"`
	jwt.RegisteredClaims
}

type HMACVerifier struct {
	secret []byte
	parser *jwt.Parser
}

var _ Verifier = (*HMACVerifier)(nil)

// NewHMACVerifier accepts HS256/384/512 tokens signed with secret. An empty
// issuer disables the iss check.
func NewHMACVerifier(secret, issuer string) (*HMACVerifier, error) {
	if secret == "" {
		return nil, errors.New("auth: empty jwt secret")
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{"HS256", "HS384", "HS512"}),
		jwt.WithExpirationRequired(),
	}
	if issuer != "" {
		opts = append(opts, jwt.WithIssuer(issuer))
	}

	return &HMACVerifier{secret: []byte(secret), parser: jwt.NewParser(opts...)}, nil
}

func (v *HMACVerifier) Verify(_ context.Context, token string) (string, error) {
	if token == "" {
		return "", ErrMissingToken
	}

	claims := new(Claims)

	_, err := v.parser.ParseWithClaims(token, claims, func(*jwt.Token) (any, error) {
		return v.secret, nil
	})
	if err != nil {
		return "", fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	id := claims.UserID
	if id == "" {
		id = claims.Subject
	}

	if id == "" {
		return "", fmt.Errorf("%w: no subject", ErrInvalidToken)
	}

	return id, nil
}

// BearerToken extracts the token from an Authorization header. A bare
// token without the "Bearer " prefix is accepted as well.
func BearerToken(r *http.Request) string {
	h := strings.TrimSpace(r.Header.Get("Authorization"))

	if len(h) > 7 && strings.EqualFold(h[:7], "bearer ") {
		return strings.TrimSpace(h[7:])
	}

	return h
}
