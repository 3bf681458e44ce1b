package middleware

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/services/guard"
	"github.com/amoreldmija/hospital/utils"
	"go.uber.org/zap"
)

const (
	// LoginPath is where browsers are sent when no one is signed in
	LoginPath = "/login"

	// HomePath is where browsers are sent when their role is refused
	HomePath = "/"
)

// GuardMiddleware enforces one ResourceAction per route
type GuardMiddleware struct {
	guard  *guard.Guard
	logger *zap.Logger
}

// NewGuardMiddleware creates a new GuardMiddleware
func NewGuardMiddleware(g *guard.Guard, logger *zap.Logger) *GuardMiddleware {
	return &GuardMiddleware{
		guard:  g,
		logger: logger,
	}
}

// Require admits the request only when the guard lets the caller perform
// action. Browsers get redirects; API clients get 401 or 403 with the
// redirect target in the details.
func (m *GuardMiddleware) Require(action models.ResourceAction) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx := r.Context()
			principal := GetPrincipalFromContext(ctx)

			result := m.guard.CheckPrincipal(ctx, principal, action)
			switch result.Outcome {
			case guard.Proceed:
				next.ServeHTTP(w, r)

			case guard.RedirectToLogin:
				if wantsHTML(r) {
					http.Redirect(w, r, LoginPath+"?next="+url.QueryEscape(r.URL.RequestURI()), http.StatusFound)
					return
				}
				_ = utils.WriteJSON(w, http.StatusUnauthorized, utils.ErrorResponse{
					Error:   "unauthorized",
					Message: result.Reason,
					Details: map[string]interface{}{"redirect": LoginPath, "action": action.String()},
				})

			default:
				if wantsHTML(r) {
					http.Redirect(w, r, HomePath, http.StatusFound)
					return
				}
				_ = utils.WriteJSON(w, http.StatusForbidden, utils.ErrorResponse{
					Error:   "forbidden",
					Message: result.Reason,
					Details: map[string]interface{}{"redirect": HomePath, "action": action.String()},
				})
			}
		})
	}
}

// wantsHTML reports whether the client is a browser navigating pages
func wantsHTML(r *http.Request) bool {
	accept := r.Header.Get("Accept")
	return strings.Contains(accept, "text/html") && !strings.Contains(accept, "application/json")
}
