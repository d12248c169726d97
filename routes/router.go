package routes

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"mediaforge/config"
	"mediaforge/failures"
	"mediaforge/job"
	"mediaforge/logger"
	"mediaforge/metrics"
	"mediaforge/models"
	"mediaforge/retention"
	"mediaforge/success"
	writerbackends "mediaforge/writerBackends"
)

// JobRunner runs one conversion job.
type JobRunner interface {
	Process(ctx context.Context, req models.ConversionRequest) (models.JobResult, error)
}

// Server carries the dependencies of the HTTP handlers.
type Server struct {
	Config    *config.Config
	Store     writerbackends.ObjectStore
	Relay     *writerbackends.Relay // nil when the backend signs its own URLs
	Jobs      JobRunner
	Tracker   *job.Tracker
	Retention *retention.Manager
	Successes *success.Store
	Failures  *failures.Store
	Metrics   *metrics.Metrics

	validate *validator.Validate
}

// NewRouter builds the HTTP handler for s.
func NewRouter(s *Server) http.Handler {
	s.validate = validator.New(validator.WithRequiredStructEnabled())
	limiter := NewIPRateLimiter(s.Config.RateLimit, s.Config.RateBurst, s.Metrics)

	r := chi.NewRouter()

	r.Use(chimw.RealIP)
	r.Use(chimw.RequestID)
	r.Use(s.accessLog)
	r.Use(chimw.Recoverer)
	r.Use(securityHeaders)
	r.Use(corsHandler(s.Config.CORSOrigins))

	r.Get("/health", s.HealthHandler)
	r.Get("/version", VersionHandler)
	if s.Metrics != nil {
		r.Method(http.MethodGet, "/metrics", s.Metrics.Handler())
	}

	r.Route("/api/convert", func(r chi.Router) {
		r.With(limiter.Middleware).Post("/upload", s.UploadHandler)
		r.With(limiter.Middleware).Post("/process", s.ProcessHandler)
		r.Get("/download/{filename}", s.DownloadHandler)
		r.Get("/formats/{category}", FormatsHandler)
		r.Get("/cleanup/status", s.CleanupStatusHandler)
		r.Post("/cleanup/run", s.CleanupRunHandler)
		r.Get("/jobs/{jobId}", s.JobStatusHandler)
		r.Get("/failures", s.FailureListHandler)
		r.Get("/failures/{jobId}", s.FailureQueryHandler)
		r.Get("/success", s.SuccessListHandler)
		r.Get("/success/{jobId}", s.SuccessQueryHandler)
	})

	if s.Relay != nil {
		r.Put("/api/objects/{token}", s.RelayUploadHandler)
		r.Get("/api/objects/{token}", s.RelayDownloadHandler)
	}

	return r
}

// NewHTTPServer wraps handler with the server timeouts. Write timeout is left
// open because a process request lasts as long as its transcode.
func NewHTTPServer(cfg *config.Config, handler http.Handler) *http.Server {
	return &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
	}
}

func securityHeaders(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("X-Content-Type-Options", "nosniff")
		w.Header().Set("X-Frame-Options", "DENY")
		w.Header().Set("Referrer-Policy", "strict-origin-when-cross-origin")
		next.ServeHTTP(w, r)
	})
}

func corsHandler(origins []string) func(http.Handler) http.Handler {
	if len(origins) > 0 {
		return cors.Handler(cors.Options{
			AllowedOrigins:   origins,
			AllowedMethods:   []string{"GET", "POST", "PUT", "OPTIONS"},
			AllowedHeaders:   []string{"*"},
			AllowCredentials: true,
			MaxAge:           86400,
		})
	}
	return cors.Handler(cors.Options{
		AllowedOrigins: []string{"*"},
		AllowedMethods: []string{"GET", "POST", "PUT", "OPTIONS"},
		AllowedHeaders: []string{"*"},
		MaxAge:         86400,
	})
}

// accessLog writes one structured line per request and counts it.
func (s *Server) accessLog(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := chimw.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := r.URL.Path
		if rctx := chi.RouteContext(r.Context()); rctx != nil && rctx.RoutePattern() != "" {
			route = rctx.RoutePattern()
		}
		status := ww.Status()
		if status == 0 {
			status = http.StatusOK
		}
		s.Metrics.IncrementRequest(r.Method, route, status)

		logger.Z().Info("http request",
			zap.String("method", r.Method),
			zap.String("path", r.URL.Path),
			zap.Int("status", status),
			zap.Int("bytes", ww.BytesWritten()),
			zap.Duration("duration", time.Since(start)),
			zap.String("remote", r.RemoteAddr),
			zap.String("request_id", chimw.GetReqID(r.Context())),
		)
	})
}
