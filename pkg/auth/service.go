package auth

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/kosix-io/datahub/pkg/authz"
	"github.com/kosix-io/datahub/pkg/models"
)

// Common authentication errors.
var (
	ErrMissingAuthorization = errors.New("missing authorization")
	ErrInvalidAuthFormat    = errors.New("invalid authorization header format")
	ErrInvalidToken         = errors.New("invalid token")
)

// AuthService defines the credential-resolution boundary: it turns a bearer
// credential into an authenticated actor or rejects the request.
type AuthService interface {
	// ResolveRequest extracts and validates the bearer token from the request
	// and returns the actor it identifies.
	ResolveRequest(r *http.Request) (authz.Actor, error)
}

// authService implements AuthService using HS256 JWT validation.
type authService struct {
	secret      []byte
	maxTokenAge time.Duration
	logger      *zap.Logger
}

// NewAuthService creates an AuthService validating tokens signed with secret.
// Tokens whose iat claim is older than maxTokenAge are rejected even when
// their exp has not passed; zero disables the age bound.
func NewAuthService(secret string, maxTokenAge time.Duration, logger *zap.Logger) AuthService {
	return &authService{
		secret:      []byte(secret),
		maxTokenAge: maxTokenAge,
		logger:      logger,
	}
}

// ResolveRequest extracts and validates a JWT from the Authorization header.
func (s *authService) ResolveRequest(r *http.Request) (authz.Actor, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		s.logger.Debug("No bearer token in request",
			zap.String("path", r.URL.Path),
			zap.String("method", r.Method))
		return authz.Actor{}, ErrMissingAuthorization
	}

	parts := strings.Split(authHeader, " ")
	if len(parts) != 2 || parts[0] != "Bearer" {
		s.logger.Debug("Invalid Authorization header format",
			zap.String("path", r.URL.Path))
		return authz.Actor{}, ErrInvalidAuthFormat
	}

	claims, err := s.parseToken(parts[1])
	if err != nil {
		s.logger.Debug("Token validation failed",
			zap.String("path", r.URL.Path),
			zap.Error(err))
		return authz.Actor{}, err
	}

	return actorFromClaims(claims)
}

func (s *authService) parseToken(tokenString string) (*Claims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(t *jwt.Token) (any, error) {
		return s.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidToken
	}

	if s.maxTokenAge > 0 && claims.IssuedAt != nil &&
		time.Since(claims.IssuedAt.Time) > s.maxTokenAge {
		return nil, fmt.Errorf("%w: token issued too long ago", ErrInvalidToken)
	}

	return claims, nil
}

// actorFromClaims maps validated claims to an actor. Tokens without a valid
// account ID or with an unknown role are rejected.
func actorFromClaims(claims *Claims) (authz.Actor, error) {
	accountID, err := uuid.Parse(claims.Subject)
	if err != nil {
		return authz.Actor{}, fmt.Errorf("%w: invalid subject", ErrInvalidToken)
	}

	role := models.AccountRole(claims.Role)
	if role == "" {
		role = models.RoleUser
	}
	if !models.IsValidAccountRole(role) {
		return authz.Actor{}, fmt.Errorf("%w: unknown role %q", ErrInvalidToken, claims.Role)
	}

	return authz.Actor{ID: accountID, Role: role}, nil
}
