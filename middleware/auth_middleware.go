package middleware

import (
	"context"
	"net/http"
	"strings"

	"github.com/amoreldmija/hospital/auth"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/utils"
	"go.uber.org/zap"
)

// PrincipalResolver maps a session token to a principal
type PrincipalResolver interface {
	Resolve(ctx context.Context, token string) (*models.Principal, error)
}

// AuthMiddleware resolves the caller of every request
type AuthMiddleware struct {
	resolver PrincipalResolver
	logger   *zap.Logger
}

// NewAuthMiddleware creates a new AuthMiddleware
func NewAuthMiddleware(resolver PrincipalResolver, logger *zap.Logger) *AuthMiddleware {
	return &AuthMiddleware{
		resolver: resolver,
		logger:   logger,
	}
}

// ResolvePrincipal puts the caller's principal in the request context.
// Requests without a valid session continue as anonymous; whether that is
// acceptable is decided per route by the guard. Only an unreachable
// identity backend stops the request here.
func (m *AuthMiddleware) ResolvePrincipal(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		ctx := r.Context()
		requestID := GetRequestIDFromContext(ctx)

		token := extractToken(r)
		if token == "" {
			next.ServeHTTP(w, r.WithContext(WithPrincipal(ctx, models.Anonymous)))
			return
		}

		principal, err := m.resolver.Resolve(ctx, token)
		if err != nil {
			m.logger.Error("failed to resolve principal",
				zap.String("request_id", requestID),
				zap.Error(err))
			_ = utils.WriteError(w, http.StatusServiceUnavailable, "Identity service unavailable", nil)
			return
		}

		if !principal.IsAnonymous() {
			m.logger.Debug("principal resolved",
				zap.String("request_id", requestID),
				zap.String("uid", principal.UID),
				zap.String("role", string(principal.Role)))
		}

		ctx = WithToken(ctx, token)
		ctx = WithPrincipal(ctx, principal)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// extractToken extracts the session token from the Authorization header
// ("Bearer TOKEN") or the session cookie. The header takes precedence.
func extractToken(r *http.Request) string {
	if token := extractBearerToken(r); token != "" {
		return token
	}
	if cookie, err := r.Cookie(auth.SessionCookieName); err == nil && cookie.Value != "" {
		return cookie.Value
	}
	return ""
}

// extractBearerToken extracts the Bearer token from the Authorization header
func extractBearerToken(r *http.Request) string {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return ""
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || strings.ToLower(parts[0]) != "bearer" {
		return ""
	}

	return strings.TrimSpace(parts[1])
}
