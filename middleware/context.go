package middleware

import (
	"context"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/guard"
)

// Context key type to avoid collisions
type contextKey string

const (
	// PrincipalKey is the context key for the resolved principal
	PrincipalKey contextKey = "principal"

	// TokenKey is the context key for the raw session token
	TokenKey contextKey = "session_token"
)

// GetRequestIDFromContext retrieves the request ID from context
func GetRequestIDFromContext(ctx context.Context) string {
	return guard.RequestIDFromContext(ctx)
}

// WithRequestID adds a request ID to the context. The guard reads it from
// the same place when recording denials.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return guard.WithRequestID(ctx, requestID)
}

// GetPrincipalFromContext returns the request's principal, or
// models.Anonymous when none was resolved
func GetPrincipalFromContext(ctx context.Context) *models.Principal {
	if p, ok := ctx.Value(PrincipalKey).(*models.Principal); ok {
		return p
	}
	return models.Anonymous
}

// WithPrincipal adds the resolved principal to the context
func WithPrincipal(ctx context.Context, p *models.Principal) context.Context {
	return context.WithValue(ctx, PrincipalKey, p)
}

// GetTokenFromContext returns the session token presented with the request
func GetTokenFromContext(ctx context.Context) string {
	token, _ := ctx.Value(TokenKey).(string)
	return token
}

// WithToken adds the session token to the context
func WithToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, TokenKey, token)
}
