package httpapi

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"
)

// Registrar mounts a handler's routes on a sub-router.
type Registrar interface {
	RegisterRoutes(r chi.Router)
}

// HealthChecker reports store liveness for /health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
	GetStats() map[string]any
}

type Options struct {
	Logger         *zap.Logger
	AllowedOrigins []string
	// TrackRateLimit is requests per minute per client IP on /api/track.
	// Zero disables limiting.
	TrackRateLimit int
	Health         HealthChecker
	Gatherer       prometheus.Gatherer
}

// NewRouter creates the chi router with middleware, the ingestion routes
// under /api/track and the dashboard routes under /api/analytics.
func NewRouter(opts Options, track []Registrar, analytics []Registrar) chi.Router {
	router := chi.NewRouter()

	router.Use(middleware.RequestID)
	router.Use(middleware.RealIP)
	router.Use(LoggerMiddleware(opts.Logger))
	router.Use(middleware.Recoverer)

	router.Use(cors.Handler(cors.Options{
		AllowedOrigins: opts.AllowedOrigins,
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"Accept", "Content-Type", "X-Request-Id"},
		ExposedHeaders: []string{"Content-Disposition"},
		MaxAge:         300,
	}))

	router.Get("/health", healthHandler(opts.Health))
	if opts.Gatherer != nil {
		router.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{}))
	}

	router.Route("/api/track", func(r chi.Router) {
		if opts.TrackRateLimit > 0 {
			r.Use(httprate.Limit(
				opts.TrackRateLimit,
				time.Minute,
				httprate.WithKeyFuncs(httprate.KeyByIP),
				httprate.WithLimitHandler(func(w http.ResponseWriter, r *http.Request) {
					Write(w, http.StatusTooManyRequests, Response{Error: "rate limit exceeded"})
				}),
			))
		}
		for _, h := range track {
			h.RegisterRoutes(r)
		}
	})

	router.Route("/api/analytics", func(r chi.Router) {
		for _, h := range analytics {
			h.RegisterRoutes(r)
		}
	})

	router.NotFound(func(w http.ResponseWriter, r *http.Request) {
		Write(w, http.StatusNotFound, Response{Error: "endpoint not found"})
	})
	router.MethodNotAllowed(func(w http.ResponseWriter, r *http.Request) {
		Write(w, http.StatusMethodNotAllowed, Response{Error: "method not allowed"})
	})

	return router
}

func healthHandler(hc HealthChecker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if hc == nil {
			Write(w, http.StatusOK, map[string]any{"status": "ok"})
			return
		}

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Second)
		defer cancel()

		if err := hc.HealthCheck(ctx); err != nil {
			Write(w, http.StatusServiceUnavailable, map[string]any{
				"status": "unavailable",
				"error":  err.Error(),
			})
			return
		}
		Write(w, http.StatusOK, map[string]any{
			"status":   "ok",
			"database": hc.GetStats(),
		})
	}
}

// LoggerMiddleware logs every HTTP request once it has been served.
func LoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			start := time.Now()
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			defer func() {
				logger.Info("HTTP request",
					zap.String("method", r.Method),
					zap.String("path", r.URL.Path),
					zap.String("remote_addr", r.RemoteAddr),
					zap.Int("status", ww.Status()),
					zap.Int("bytes", ww.BytesWritten()),
					zap.Duration("duration", time.Since(start)),
					zap.String("request_id", middleware.GetReqID(r.Context())),
				)
			}()
			next.ServeHTTP(ww, r)
		})
	}
}
