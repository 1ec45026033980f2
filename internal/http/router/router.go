package router

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	"github.com/polymorphcorp/profilegpt/internal/http/handler"
	"github.com/polymorphcorp/profilegpt/internal/http/middleware"
	"github.com/polymorphcorp/profilegpt/internal/http/response"
)

type Dependencies struct {
	ChatHandler     *handler.ChatHandler
	AdminHandler    *handler.AdminHandler
	AdminKey        string
	CORSOrigins     []string
	SessionTTL      time.Duration
	SecureCookies   bool
	APIRateLimitRPM int
	RateLimiter     func(http.Handler) http.Handler
	ReadyCheck      func(r *http.Request) error
	EnableOTelHTTP  bool
}

func NewRouter(dep Dependencies) http.Handler {
	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.RequestID)
	r.Use(middleware.StructuredRequestLogger)
	r.Use(middleware.SecurityHeaders)
	r.Use(middleware.CORS(dep.CORSOrigins))
	r.Use(middleware.BodyLimit(1 << 20))
	if dep.RateLimiter != nil {
		r.Use(dep.RateLimiter)
	} else {
		r.Use(middleware.NewRateLimiterWithKey(
			dep.APIRateLimitRPM, time.Minute,
			middleware.SessionOrIPKeyFunc(middleware.SessionCookieName),
		).Middleware())
	}

	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		if dep.ReadyCheck != nil {
			if err := dep.ReadyCheck(r); err != nil {
				response.Error(w, r, http.StatusServiceUnavailable, "DEPENDENCY_UNREADY", err.Error(), nil)
				return
			}
		}
		response.JSON(w, r, http.StatusOK, map[string]string{"status": "ok"})
	})

	r.Group(func(r chi.Router) {
		r.Use(middleware.Session(dep.SessionTTL, dep.SecureCookies))
		r.Post("/chat", dep.ChatHandler.Chat)
		r.Post("/vet", dep.ChatHandler.Vet)
		r.Get("/status", dep.ChatHandler.Status)

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.AdminKey(dep.AdminKey))
			r.Get("/reset", dep.AdminHandler.Reset)
			r.Get("/dataset", dep.AdminHandler.Dataset)
			r.Get("/extension-requests", dep.AdminHandler.ExtensionRequests)
			r.Post("/approve-extension", dep.AdminHandler.ApproveExtension)
			r.Post("/deny-extension", dep.AdminHandler.DenyExtension)
			r.Get("/usage", dep.AdminHandler.Usage)
		})
	})

	var h http.Handler = r
	if dep.EnableOTelHTTP {
		h = otelhttp.NewHandler(r, "http.server")
	}
	return h
}
