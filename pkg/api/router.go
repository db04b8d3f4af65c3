package api

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/modelsilo/silo/internal/logger"
	"github.com/modelsilo/silo/pkg/api/handlers"
	"github.com/modelsilo/silo/pkg/api/middleware"
	"github.com/modelsilo/silo/pkg/metrics"
)

// NewRouter wires the hub endpoints onto a chi router.
//
// Middleware order matters: request id and real-ip first, then logging
// and recovery, then authentication so every handler below sees the
// resolved principal.
func NewRouter(h *handlers.Handler, deps handlers.Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(chimiddleware.RequestID)
	r.Use(chimiddleware.RealIP)
	r.Use(requestLogger(deps.Metrics))
	r.Use(chimiddleware.Recoverer)
	r.Use(middleware.Authenticate(deps.Authn))

	// Probes and metrics, unauthenticated.
	r.Get("/health", h.Liveness)
	r.Get("/health/ready", h.Readiness)
	r.Method(http.MethodGet, "/metrics", promhttp.Handler())

	// Session and account surface.
	r.Post("/api/login", h.Login)
	r.Get("/api/whoami-v2", h.Whoami)
	r.Route("/api/tokens", func(r chi.Router) {
		r.Post("/", h.CreateToken)
		r.Get("/", h.ListTokens)
		r.Delete("/{id}", h.RevokeToken)
	})

	// Repository management.
	r.Post("/api/repos/create", h.CreateRepo)
	r.Delete("/api/repos/delete", h.DeleteRepo)

	// Kind-scoped repository API. {kind} matches the plural segment
	// (models, datasets, spaces).
	r.Route("/api/{kind:models|datasets|spaces}/{namespace}/{name}", func(r chi.Router) {
		r.Post("/preupload/{revision}", h.Preupload)
		r.Post("/commit/{revision}", h.Commit)
		r.Get("/tree/{revision}", h.Tree)
		r.Get("/tree/{revision}/*", h.Tree)
		r.Post("/paths-info/{revision}", h.PathsInfo)
		r.Get("/revision/{revision}", h.Revision)
		r.Get("/commits/{revision}", h.Commits)
		r.Get("/refs", h.Refs)
		r.Put("/settings", h.UpdateSettings)
		r.Post("/branch/{branch}", h.CreateBranch)
		r.Delete("/branch/{branch}", h.DeleteBranch)
		r.Post("/tag/{tag}", h.CreateTag)
		r.Delete("/tag/{tag}", h.DeleteTag)
	})

	// Git-LFS transfer endpoints.
	r.Post("/{namespace}/{name}.git/info/lfs/objects/batch", h.LFSBatch)
	r.Post("/{namespace}/{name}.git/info/lfs/objects/verify", h.LFSVerify)

	// Byte resolution.
	r.Head("/{namespace}/{name}/resolve/{revision}/*", h.ResolveHead)
	r.Get("/{namespace}/{name}/resolve/{revision}/*", h.ResolveGet)

	return r
}

// requestLogger logs every request and feeds the HTTP metrics.
func requestLogger(m *metrics.Metrics) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			requestID := chimiddleware.GetReqID(r.Context())

			logger.Debug("request started",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"remote_addr", r.RemoteAddr,
			)

			ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
			next.ServeHTTP(ww, r)
			duration := time.Since(start)

			route := r.URL.Path
			if ctx := chi.RouteContext(r.Context()); ctx != nil && ctx.RoutePattern() != "" {
				route = ctx.RoutePattern()
			}
			m.ObserveRequest(r.Method, route, ww.Status(), duration)

			logger.Info("request completed",
				"request_id", requestID,
				"method", r.Method,
				"path", r.URL.Path,
				"status", ww.Status(),
				"bytes", ww.BytesWritten(),
				"duration", duration.String(),
			)
		})
	}
}
