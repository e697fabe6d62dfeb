// Package server exposes the platform over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/rotisserie/eris"
	"go.uber.org/zap"

	"github.com/findius/findius/internal/apierr"
	"github.com/findius/findius/internal/assistant"
	"github.com/findius/findius/internal/auth"
	"github.com/findius/findius/internal/community"
	"github.com/findius/findius/internal/compare"
	"github.com/findius/findius/internal/config"
	"github.com/findius/findius/internal/cost"
	"github.com/findius/findius/internal/resilience"
	"github.com/findius/findius/internal/sitemap"
	"github.com/findius/findius/internal/store"
)

const (
	maxBodyBytes     = 1 << 20
	viewTimeout      = 5 * time.Second
	shutdownTimeout  = 15 * time.Second
	readHeaderTimout = 10 * time.Second
)

// Deps are the services behind the API.
type Deps struct {
	Store     store.Store
	Compare   *compare.Service
	Assistant *assistant.Service
	Community *community.Service
	Sitemap   *sitemap.Generator
	Auth      *auth.Verifier
	Breakers  *resilience.Breakers
	Costs     *cost.Calculator
}

// Server is the HTTP API.
type Server struct {
	cfg config.ServerConfig
	Deps
	limiter *ipLimiter

	// bg tracks fire-and-forget work such as view counting.
	bg sync.WaitGroup
}

// New creates a Server.
func New(cfg config.ServerConfig, deps Deps) *Server {
	return &Server{
		cfg:     cfg,
		Deps:    deps,
		limiter: newIPLimiter(cfg.AIRequestsPerMin),
	}
}

// Routes builds the router.
func (s *Server) Routes() http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger)
	r.Use(chimiddleware.Recoverer)
	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   s.cfg.AllowedOrigins,
		AllowedMethods:   []string{http.MethodGet, http.MethodPost, http.MethodPut, http.MethodDelete, http.MethodOptions},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type", "X-Admin-Key", "X-Request-Id"},
		ExposedHeaders:   []string{"X-Request-Id"},
		AllowCredentials: true,
		MaxAge:           300,
	}))
	if s.cfg.RequestTimeoutSecs > 0 {
		r.Use(chimiddleware.Timeout(time.Duration(s.cfg.RequestTimeoutSecs) * time.Second))
	}
	r.Use(s.Auth.Middleware)

	r.Get("/health", s.handleHealth)
	r.Get("/sitemap.xml", s.handleSitemap)
	r.Get("/robots.txt", s.handleRobots)

	r.Route("/api", func(r chi.Router) {
		r.Group(func(r chi.Router) {
			r.Use(s.limiter.middleware)
			r.Post("/validate-query", s.handleValidate)
			r.Post("/generate-questions", s.handleQuestions)
			r.Post("/generate-page", s.handleGeneratePage)
			r.Post("/chat", s.handleChat)
			r.Post("/evaluate-batch", s.handleEvaluateBatch)
		})

		r.Get("/pages/{slug}", s.handleGetPage)
		r.Get("/pages/{slug}/comments", s.handleListComments)
		r.Get("/pages/{slug}/rating", s.handleGetRating)
		r.Post("/referrals/track", s.handleTrackReferral)
		r.Get("/users/{username}", s.handlePublicProfile)

		r.Group(func(r chi.Router) {
			r.Use(auth.Required)
			r.Post("/pages/{slug}/comments", s.handleCreateComment)
			r.Delete("/comments/{id}", s.handleDeleteComment)
			r.Post("/comments/{id}/like", s.handleToggleLike)
			r.Put("/pages/{slug}/rating", s.handleRate)
			r.Get("/me/dashboard", s.handleDashboard)
			r.Put("/me/profile", s.handleUpdateProfile)
			r.Post("/me/payouts", s.handleRequestPayout)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(adminOnly(s.cfg.AdminKey))
			r.Post("/referrals/{id}/convert", s.handleConvertReferral)
			r.Get("/payouts", s.handleListPayouts)
			r.Post("/payouts/{id}/status", s.handlePayoutStatus)
			r.Put("/pages/{slug}/index", s.handleSetIndex)
		})
	})

	r.NotFound(func(w http.ResponseWriter, r *http.Request) {
		apierr.Write(w, r, apierr.NotFound(""))
	})
	return r
}

// ListenAndServe runs the server until ctx is cancelled, then drains
// in-flight requests and background work.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", s.cfg.Port),
		Handler:           s.Routes(),
		ReadHeaderTimeout: readHeaderTimout,
	}

	errc := make(chan error, 1)
	go func() {
		zap.L().Info("starting server", zap.Int("port", s.cfg.Port))
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if !errors.Is(err, http.ErrServerClosed) {
			return eris.Wrap(err, "server: listen")
		}
		return nil
	case <-ctx.Done():
	}

	zap.L().Info("shutting down server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.bg.Wait()
	return eris.Wrap(err, "server: shutdown")
}

// background runs fn detached from the request with its own timeout.
func (s *Server) background(name string, timeout time.Duration, fn func(ctx context.Context) error) {
	s.bg.Add(1)
	go func() {
		defer s.bg.Done()
		ctx, cancel := context.WithTimeout(context.Background(), timeout)
		defer cancel()
		if err := fn(ctx); err != nil {
			zap.L().Warn("background task failed", zap.String("task", name), zap.Error(err))
		}
	}()
}

var errBadBody = apierr.Validation("Ungültige Anfrage.")

// decode reads a JSON request body into v.
func decode(w http.ResponseWriter, r *http.Request, v any) error {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodyBytes)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		if errors.Is(err, io.EOF) {
			return errBadBody
		}
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			return apierr.Validation("Die Anfrage ist zu groß.")
		}
		return errBadBody
	}
	return nil
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	apierr.WriteJSON(w, status, v)
}
