package core

import (
	"net/http"

	"github.com/klauspost/compress/gzhttp"

	"caliseed/internal/types"
)

// MountRoutes registers the middleware chain, the handler groups and the
// operational endpoints.
func (s *Server) MountRoutes() {
	s.registerGlobalMiddleware()

	for _, registrar := range s.RouteRegistrars {
		registrar(s.router)
	}

	s.router.Get("/health", s.HandleHealth)
	if s.Metrics != nil {
		s.router.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	s.router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Error(w, r, types.NewAppError(types.ErrCodeNotFoundRoute, "route not found", nil))
	})
	s.router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Allow", "GET, OPTIONS")
		JSON(w, r, http.StatusMethodNotAllowed, ErrorResponse{Error: "method not allowed"})
	})
}

// registerGlobalMiddleware applies middleware in order:
//  1. Recoverer      catches panics from everything below it.
//  2. RequestID      generates or propagates X-Request-ID.
//  3. RequestLogger  logs method, path, status and duration.
//  4. CORS
//  5. Metrics        records per-route counters and latency.
//  6. Compression    gzips responses when the client accepts it.
func (s *Server) registerGlobalMiddleware() {
	s.router.Use(s.Recoverer)
	s.router.Use(RequestIDMiddleware)
	s.router.Use(RequestLogger(s.Logger))
	s.router.Use(NewCORSMiddleware(s.corsAllowedOrigins()))
	if s.Metrics != nil {
		s.router.Use(s.Metrics.Middleware)
	}
	s.router.Use(func(next http.Handler) http.Handler { return gzhttp.GzipHandler(next) })
}

func (s *Server) corsAllowedOrigins() []string {
	if len(s.Config.Security.CorsAllowedOrigins) > 0 {
		return s.Config.Security.CorsAllowedOrigins
	}
	return []string{"*"}
}
