// Package rest serves the memo use cases over JSON HTTP.
package rest

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/apptype"
	"github.com/ZanzyTHEbar/mcp-memo-libsql-go/internal/memo"
)

// Router creates and configures the HTTP router
type Router struct {
	service        *memo.Service
	health         func() apptype.HealthResult
	allowedOrigins []string
	logger         *zap.Logger
}

// NewRouter creates a new router instance. health may be nil.
func NewRouter(service *memo.Service, health func() apptype.HealthResult, allowedOrigins []string, logger *zap.Logger) *Router {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Router{
		service:        service,
		health:         health,
		allowedOrigins: allowedOrigins,
		logger:         logger,
	}
}

// Setup configures all routes and middleware
func (rt *Router) Setup() http.Handler {
	router := chi.NewRouter()

	router.Use(chimiddleware.RequestID)
	router.Use(chimiddleware.RealIP)
	router.Use(chimiddleware.Recoverer)
	router.Use(requestLogger(rt.logger))

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: rt.allowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-ID"},
		ExposedHeaders: []string{"X-Request-ID"},
		MaxAge:         300,
	}))

	router.Get("/healthz", rt.healthCheck)

	memoHandler := NewMemoHandler(rt.service, rt.logger)
	router.Route("/memos", func(r chi.Router) {
		r.Post("/", memoHandler.CreateMemo)
		r.Get("/", memoHandler.ListMemos)
		r.Post("/search", memoHandler.SearchMemos)
		r.Get("/graph", memoHandler.GetGraph)
		r.Get("/graph/3d", memoHandler.GetGraph3D)
		r.Get("/{memoID}", memoHandler.GetMemo)
		r.Patch("/{memoID}", memoHandler.UpdateMemo)
		r.Delete("/{memoID}", memoHandler.DeleteMemo)
	})

	return router
}

func (rt *Router) healthCheck(w http.ResponseWriter, r *http.Request) {
	body := map[string]any{"status": "ok"}
	if rt.health != nil {
		body["info"] = rt.health()
	}
	respondJSON(rt.logger, w, http.StatusOK, body)
}

// ListenAndServe serves handler on addr until ctx is cancelled.
func ListenAndServe(ctx context.Context, addr string, handler http.Handler, logger *zap.Logger) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()
	logger.Info("REST API listening", zap.String("addr", addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}
