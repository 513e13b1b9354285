package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"

	"github.com/vovakirdan/wirespace-server/internal/core"
)

var (
	// ErrTokenRequired is returned when a connection carries no token and
	// guests are not admitted.
	ErrTokenRequired = errors.New("token required")
	// ErrInvalidToken is returned when a presented token does not validate.
	ErrInvalidToken = errors.New("invalid token")
)

// Resolver turns the token a client connects with into an identity.
type Resolver struct {
	jwt          *JWTConfig
	requireToken bool
}

// NewResolver builds a resolver. With requireToken unset, connections without
// a token are admitted as guests.
func NewResolver(cfg *JWTConfig, requireToken bool) *Resolver {
	return &Resolver{jwt: cfg, requireToken: requireToken}
}

// Resolve validates token. An empty token yields a zero identity, which the
// core fills in as a guest. A non-empty token must be valid even when guests
// are allowed.
func (r *Resolver) Resolve(token string) (core.Identity, error) {
	if token == "" {
		if r.requireToken {
			return core.Identity{}, ErrTokenRequired
		}
		return core.Identity{}, nil
	}

	claims, err := ValidateToken(r.jwt, token)
	if err != nil {
		return core.Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	return core.Identity{
		UserID: claims.UserID,
		Name:   claims.Username,
		Guest:  claims.IsGuest,
	}, nil
}

// TokenFromRequest reads the token from the "token" query parameter or from
// an "Authorization: Bearer" header, in that order.
func TokenFromRequest(r *http.Request) string {
	if token := r.URL.Query().Get("token"); token != "" {
		return token
	}
	parts := strings.SplitN(r.Header.Get("Authorization"), " ", 2)
	if len(parts) == 2 && parts[0] == "Bearer" {
		return strings.TrimSpace(parts[1])
	}
	return ""
}
