package routes

import (
	"net/http"
	"time"

	"github.com/amoreldmija/hospital/app"
	hmw "github.com/amoreldmija/hospital/middleware"
	"github.com/amoreldmija/hospital/models"
	"github.com/amoreldmija/hospital/utils"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/unrolled/secure"
	"go.uber.org/zap"
)

// SetupRoutes configures all application routes and middleware. Every
// resource route is bound to exactly one ResourceAction.
func SetupRoutes(deps *app.Dependencies) http.Handler {
	cfg := deps.Config
	h := deps.Handlers
	guard := deps.GuardMiddleware

	r := chi.NewRouter()

	// Core middleware
	r.Use(hmw.RequestID)
	r.Use(middleware.RealIP)
	r.Use(hmw.RequestLogger(deps.Logger))
	r.Use(middleware.Recoverer)
	r.Use(middleware.Timeout(requestTimeout(cfg.Server.RequestTimeout)))
	r.Use(securityHeaders(cfg.IsProduction(), deps.Logger))

	// CORS middleware
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.Server.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", hmw.RequestIDHeader},
		ExposedHeaders:   []string{hmw.RequestIDHeader},
		AllowCredentials: true,
		MaxAge:           300,
	}))

	// Every request carries a principal, anonymous when there is no session
	r.Use(deps.AuthMiddleware.ResolvePrincipal)

	// Health check endpoints
	r.Get("/health", h.Health.HandleHealth)
	r.Get("/health/ready", h.Health.HandleReadiness)

	// Session endpoints
	r.Route("/auth", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(signInLimiter(cfg.Auth.SignInRateLimit))
			r.With(guard.Require(models.ActionSignIn)).Post("/signin", h.Auth.HandleSignIn)
			r.With(guard.Require(models.ActionSignUp)).Post("/signup", h.Auth.HandleSignUp)
		})
		r.Post("/signout", h.Auth.HandleSignOut)
	})

	// API v1 routes
	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/me", h.Auth.HandleMe)
		r.Get("/me/capabilities", h.Capabilities.HandleCapabilities)

		r.Route("/patients", func(r chi.Router) {
			r.With(guard.Require(action(models.ResourcePatients, models.OpView))).Get("/", h.Records.HandleListPatients)
			r.With(guard.Require(action(models.ResourcePatients, models.OpCreate))).Post("/", h.Records.HandleCreatePatient)
			r.With(guard.Require(action(models.ResourcePatients, models.OpView))).Get("/{id}", h.Records.HandleGetPatient)
			r.With(guard.Require(action(models.ResourcePatients, models.OpView))).Get("/{id}/chart", h.Records.HandleGetChart)
			r.With(guard.Require(action(models.ResourcePatients, models.OpUpdate))).Put("/{id}", h.Records.HandleUpdatePatient)
			r.With(guard.Require(action(models.ResourcePatients, models.OpDelete))).Delete("/{id}", h.Records.HandleDeletePatient)
		})

		r.Route("/doctors", func(r chi.Router) {
			r.With(guard.Require(action(models.ResourceDoctors, models.OpView))).Get("/", h.Records.HandleListDoctors)
			r.With(guard.Require(action(models.ResourceDoctors, models.OpCreate))).Post("/", h.Records.HandleCreateDoctor)
			r.With(guard.Require(action(models.ResourceDoctors, models.OpView))).Get("/{id}", h.Records.HandleGetDoctor)
			r.With(guard.Require(action(models.ResourceDoctors, models.OpUpdate))).Put("/{id}", h.Records.HandleUpdateDoctor)
			r.With(guard.Require(action(models.ResourceDoctors, models.OpDelete))).Delete("/{id}", h.Records.HandleDeleteDoctor)
		})

		r.Route("/appointments", func(r chi.Router) {
			r.With(guard.Require(action(models.ResourceAppointments, models.OpView))).Get("/", h.Appointments.HandleList)
			r.With(guard.Require(action(models.ResourceAppointments, models.OpCreate))).Post("/", h.Appointments.HandleCreate)
			r.With(guard.Require(action(models.ResourceAppointments, models.OpView))).Get("/{id}", h.Appointments.HandleGet)
			r.With(guard.Require(action(models.ResourceAppointments, models.OpUpdate))).Put("/{id}", h.Appointments.HandleUpdate)
			r.With(guard.Require(action(models.ResourceAppointments, models.OpDelete))).Delete("/{id}", h.Appointments.HandleDelete)
			r.With(guard.Require(action(models.ResourceAppointments, models.OpApprove))).Post("/{id}/approve", h.Appointments.HandleApprove)
		})

		r.Route("/prescriptions", func(r chi.Router) {
			r.With(guard.Require(action(models.ResourcePrescriptions, models.OpView))).Get("/", h.Prescriptions.HandleList)
			r.With(guard.Require(action(models.ResourcePrescriptions, models.OpCreate))).Post("/", h.Prescriptions.HandleCreate)
			r.With(guard.Require(action(models.ResourcePrescriptions, models.OpView))).Get("/{id}", h.Prescriptions.HandleGet)
			r.With(guard.Require(action(models.ResourcePrescriptions, models.OpUpdate))).Put("/{id}", h.Prescriptions.HandleUpdate)
			r.With(guard.Require(action(models.ResourcePrescriptions, models.OpDelete))).Delete("/{id}", h.Prescriptions.HandleDelete)
		})

		r.Route("/billing", func(r chi.Router) {
			r.With(guard.Require(action(models.ResourceBilling, models.OpView))).Get("/", h.Records.HandleListBills)
			r.With(guard.Require(action(models.ResourceBilling, models.OpCreate))).Post("/", h.Records.HandleCreateBill)
			r.With(guard.Require(action(models.ResourceBilling, models.OpView))).Get("/{id}", h.Records.HandleGetBill)
			r.With(guard.Require(action(models.ResourceBilling, models.OpUpdate))).Put("/{id}", h.Records.HandleUpdateBill)
			r.With(guard.Require(action(models.ResourceBilling, models.OpDelete))).Delete("/{id}", h.Records.HandleDeleteBill)
		})

		r.Route("/users", func(r chi.Router) {
			r.With(guard.Require(action(models.ResourceUsers, models.OpView))).Get("/", h.Users.HandleList)
			r.With(guard.Require(action(models.ResourceUsers, models.OpCreate))).Post("/", h.Users.HandleCreate)
			r.With(guard.Require(action(models.ResourceUsers, models.OpView))).Get("/{uid}", h.Users.HandleGet)
			r.With(guard.Require(action(models.ResourceUsers, models.OpUpdate))).Put("/{uid}", h.Users.HandleUpdate)
			r.With(guard.Require(action(models.ResourceUsers, models.OpDelete))).Delete("/{uid}", h.Users.HandleDelete)
		})

		// The audit trail is user administration data
		r.With(guard.Require(action(models.ResourceUsers, models.OpView))).Get("/audit", h.Audit.HandleList)
	})

	// 404 handler
	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteNotFound(w, "endpoint not found")
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		_ = utils.WriteError(w, http.StatusMethodNotAllowed, "method not allowed", nil)
	})

	return r
}

func action(resource models.ResourceKind, op models.Operation) models.ResourceAction {
	return models.Action(resource, op)
}

func requestTimeout(d time.Duration) time.Duration {
	if d <= 0 {
		return 60 * time.Second
	}
	return d
}

// signInLimiter throttles credential attempts per client IP. A limit of zero
// disables it.
func signInLimiter(perMinute int) func(http.Handler) http.Handler {
	if perMinute <= 0 {
		return func(next http.Handler) http.Handler { return next }
	}
	return httprate.Limit(perMinute, time.Minute,
		httprate.WithKeyFuncs(httprate.KeyByIP),
		httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
			_ = utils.WriteTooManyRequests(w, "Too many sign-in attempts, try again later", nil)
		}),
	)
}

// securityHeaders sets the usual browser hardening headers and, in
// production, redirects plain HTTP to HTTPS
func securityHeaders(production bool, logger *zap.Logger) func(http.Handler) http.Handler {
	sec := secure.New(secure.Options{
		FrameDeny:             true,
		ContentTypeNosniff:    true,
		BrowserXssFilter:      true,
		ReferrerPolicy:        "strict-origin-when-cross-origin",
		ContentSecurityPolicy: "default-src 'none'; frame-ancestors 'none'",
		SSLRedirect:           production,
		SSLProxyHeaders:       map[string]string{"X-Forwarded-Proto": "https"},
		IsDevelopment:         !production,
	})

	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if err := sec.Process(w, r); err != nil {
				logger.Warn("secure headers blocked request",
					zap.String("path", r.URL.Path),
					zap.Error(err))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
