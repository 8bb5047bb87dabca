// Package auth resolves bearer credentials to an authenticated actor.
// Token issuance, password hashing and refresh flows live in the external
// auth system; this package only validates HS256 access tokens signed with
// the shared secret and exposes the resulting actor on the request context.
package auth

import (
	"context"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kosix-io/datahub/pkg/authz"
)

// contextKey is a custom type for context keys to avoid collisions.
type contextKey string

// ActorKey is the context key for the authenticated actor.
const ActorKey contextKey = "actor"

// Claims is the access-token claim structure. The subject carries the
// account ID and role carries the global role.
type Claims struct {
	jwt.RegisteredClaims
	Role string `json:"role,omitempty"`
}

// GetActor retrieves the authenticated actor from the request context.
// Returns false if the request did not pass through the auth middleware.
func GetActor(ctx context.Context) (authz.Actor, bool) {
	actor, ok := ctx.Value(ActorKey).(authz.Actor)
	return actor, ok
}

// WithActor returns a context carrying the authenticated actor.
func WithActor(ctx context.Context, actor authz.Actor) context.Context {
	return context.WithValue(ctx, ActorKey, actor)
}
