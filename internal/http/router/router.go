package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/globetrotter/globetrotter-api/internal/health"
	"github.com/globetrotter/globetrotter-api/internal/http/handler"
	"github.com/globetrotter/globetrotter-api/internal/http/middleware"
	"github.com/globetrotter/globetrotter-api/internal/http/response"
	"github.com/globetrotter/globetrotter-api/internal/security"
)

const (
	AuthRateLimitMessage   = "Too many attempts, please try again after 15 minutes"
	ForgotRateLimitMessage = "Too many password reset requests, please try again later"
)

type Dependencies struct {
	AuthHandler       *handler.AuthHandler
	ProfileHandler    *handler.ProfileHandler
	TokenIssuer       *security.TokenIssuer
	Revocations       middleware.RevocationChecker
	CORSOrigins       []string
	APIRateLimitRPM   int
	GlobalRateLimiter GlobalRateLimiterFunc
	AuthRateLimiter   AuthRateLimiterFunc
	ForgotRateLimiter ForgotRateLimiterFunc
	Readiness         *health.ProbeRunner
	EnableOTelHTTP    bool
}

type GlobalRateLimiterFunc func(http.Handler) http.Handler
type AuthRateLimiterFunc func(http.Handler) http.Handler
type ForgotRateLimiterFunc func(http.Handler) http.Handler

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.GlobalRateLimiter != nil {
		r.Use(dep.GlobalRateLimiter)
	} else {
		r.Use(middleware.APIRateLimit(dep.APIRateLimitRPM))
	}

	authLimiter := dep.AuthRateLimiter
	if authLimiter == nil {
		authLimiter = middleware.NewRateLimiter("auth", 10, 15*time.Minute).WithMessage(AuthRateLimitMessage).Middleware()
	}
	forgotLimiter := dep.ForgotRateLimiter
	if forgotLimiter == nil {
		forgotLimiter = middleware.NewRateLimiter("forgot", 3, time.Hour).WithMessage(ForgotRateLimitMessage).Middleware()
	}
	requireAuth := middleware.AuthMiddleware(dep.TokenIssuer, dep.Revocations)
	optionalAuth := middleware.OptionalAuthMiddleware(dep.TokenIssuer, dep.Revocations)

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusNotFound, "NOT_FOUND", "Not found", nil)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		response.Error(w, r, http.StatusMethodNotAllowed, "METHOD_NOT_ALLOWED", "Method not allowed", nil)
	})

	r.Get("/health/live", func(w http.ResponseWriter, r *http.Request) {
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})
	r.Get("/health/ready", func(w http.ResponseWriter, r *http.Request) {
		if dep.Readiness == nil {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": []any{}})
			return
		}
		ready, results := dep.Readiness.Ready(r.Context())
		if ready {
			response.JSON(w, r, http.StatusOK, map[string]any{"status": "ready", "checks": results})
			return
		}
		response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", "Dependencies are not ready", map[string]any{"checks": results})
	})

	r.Route("/auth", func(r chi.Router) {
		r.With(authLimiter).Post("/signup", dep.AuthHandler.Signup)
		r.With(authLimiter).Post("/login", dep.AuthHandler.Login)
		r.Post("/refresh", dep.AuthHandler.Refresh)
		r.With(optionalAuth).Post("/logout", dep.AuthHandler.Logout)
		r.With(forgotLimiter).Post("/forgot-password", dep.AuthHandler.ForgotPassword)
		r.With(authLimiter).Post("/reset-password", dep.AuthHandler.ResetPassword)

		r.Group(func(r chi.Router) {
			r.Use(requireAuth)
			r.Post("/logout-all", dep.AuthHandler.LogoutAll)
			r.Post("/change-password", dep.AuthHandler.ChangePassword)
			r.Get("/me", dep.AuthHandler.Me)
			r.Get("/sessions", dep.AuthHandler.Sessions)
			r.Delete("/sessions/{id}", dep.AuthHandler.RevokeSession)
		})
	})

	r.Route("/profile", func(r chi.Router) {
		r.Use(requireAuth)
		r.Get("/", dep.ProfileHandler.Get)
		r.Put("/", dep.ProfileHandler.Update)
		r.Delete("/", dep.ProfileHandler.Delete)
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
