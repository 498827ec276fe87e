// Package handler serves the practice-quiz JSON API.
package handler

import (
	"crypto/rand"
	"fmt"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/gorilla/sessions"

	"github.com/pavelanni/revision/internal/catalog"
	"github.com/pavelanni/revision/internal/evaluate"
	"github.com/pavelanni/revision/internal/generate"
	appI18n "github.com/pavelanni/revision/internal/i18n"
	"github.com/pavelanni/revision/internal/metrics"
	"github.com/pavelanni/revision/internal/model"
	"github.com/pavelanni/revision/internal/store"
)

// Handler holds shared dependencies for HTTP handlers.
type Handler struct {
	store   *store.Store
	gen     *generate.Service
	eval    *evaluate.Evaluator
	catalog catalog.Catalog
	metrics *metrics.Metrics
	cookies *sessions.CookieStore
	limiter *rateLimiter
	config  model.AppConfig
}

// New creates a new Handler. m may be nil to disable metrics.
func New(s *store.Store, gen *generate.Service, ev *evaluate.Evaluator, cat catalog.Catalog, m *metrics.Metrics, cfg model.AppConfig) (*Handler, error) {
	secret := []byte(cfg.SessionSecret)
	if len(secret) == 0 {
		secret = make([]byte, 32)
		if _, err := rand.Read(secret); err != nil {
			return nil, fmt.Errorf("generate session secret: %w", err)
		}
		slog.Warn("no session secret configured, sessions will not survive a restart")
	}
	if cfg.SessionTTL <= 0 {
		cfg.SessionTTL = store.DefaultSessionTTL
	}
	cookies := sessions.NewCookieStore(secret)
	cookies.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   int(cfg.SessionTTL / time.Second),
		HttpOnly: true,
		Secure:   cfg.SecureCookies,
		SameSite: http.SameSiteLaxMode,
	}
	if cfg.Lang == "" {
		cfg.Lang = "en"
	}

	return &Handler{
		store:   s,
		gen:     gen,
		eval:    ev,
		catalog: cat,
		metrics: m,
		cookies: cookies,
		limiter: newRateLimiter(cfg.RateLimit, cfg.RateBurst),
		config:  cfg,
	}, nil
}

// Router builds the full middleware stack and registers all routes.
func (h *Handler) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)
	if len(h.config.CORSOrigins) > 0 {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins:   h.config.CORSOrigins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "DELETE", "OPTIONS"},
			AllowedHeaders:   []string{"Accept", "Accept-Language", "Content-Type"},
			AllowCredentials: true,
			MaxAge:           300,
		}))
	}
	if h.metrics != nil {
		r.Use(h.metrics.Middleware)
	}
	r.Use(appI18n.Middleware(h.config.Lang))

	h.Routes(r)
	return r
}

// Routes registers all HTTP routes.
func (h *Handler) Routes(r chi.Router) {
	r.Get("/healthz", h.handleHealth)
	if h.metrics != nil {
		r.Method(http.MethodGet, "/metrics", h.metrics.Handler())
	}

	r.Route("/api", func(r chi.Router) {
		r.Get("/catalog", h.handleCatalog)

		r.Route("/session", func(r chi.Router) {
			r.Get("/", h.handleGetSession)
			r.With(h.rateLimit).Post("/", h.handleStartSession)
			r.Delete("/", h.handleResetSession)
			r.Put("/answer", h.handleAnswer)
			r.With(h.rateLimit).Post("/check", h.handleCheck)
			r.Post("/next", h.transition(sessionNext))
			r.Post("/previous", h.transition(sessionPrevious))
			r.Post("/review", h.transition(sessionReview))
			r.Post("/results", h.transition(sessionShowResults))
			r.Get("/results", h.handleResults)
			r.Get("/score", h.handleScore)
		})

		r.With(h.rateLimit).Post("/generate-questions", h.handleGenerateQuestions)
		r.With(h.rateLimit).Post("/check-answer", h.handleCheckAnswer)

		r.Route("/admin", func(r chi.Router) {
			r.Get("/sessions", h.handleSessionCounts)
			r.Get("/exchanges", h.handleExchanges)
		})
	})
}

func (h *Handler) handleHealth(w http.ResponseWriter, r *http.Request) {
	if err := h.store.Ping(r.Context()); err != nil {
		slog.Error("health check failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"status": "unavailable"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) handleCatalog(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, h.catalog)
}
