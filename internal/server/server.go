package server

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"regexp"
	"sync"
	"time"

	"github.com/getkin/kin-openapi/openapi3"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	oapimiddleware "github.com/oapi-codegen/nethttp-middleware"
	"go.uber.org/zap"

	"github.com/dgnsrekt/tgin/api"
	"github.com/dgnsrekt/tgin/internal/manage"
	"github.com/dgnsrekt/tgin/internal/relay"
	"github.com/dgnsrekt/tgin/internal/route"
)

// Options configures a Server.
type Options struct {
	Registry       *route.Registry
	Manager        *manage.Manager
	Relay          relay.Config
	MaxPollTimeout time.Duration // Upper bound for a client's poll timeout (0 = unbounded)
	CommandTimeout time.Duration // Bound for a management command round trip
	Ingested       func() int64  // Reported by /api/health when set
	Logger         *zap.Logger
}

// Loop is a background function scheduled by a bound route.
type Loop struct {
	Name string
	Run  func(ctx context.Context)
}

// Server owns the HTTP surface: long-poll fetches on registered paths,
// handlers mounted by routes and ingestion sources, and the management
// API under /api. It implements route.Binder.
type Server struct {
	opts   Options
	router chi.Router
	logger *zap.Logger

	mu      sync.Mutex
	mounted map[string]bool
	loops   []Loop
}

// New creates a server with its router and management API ready. Routes
// bind to it before the returned Handler starts serving.
func New(opts Options) (*Server, error) {
	if opts.Logger == nil {
		opts.Logger = zap.NewNop()
	}
	if opts.Registry == nil {
		return nil, errors.New("server: registry is required")
	}
	if opts.Manager == nil {
		return nil, errors.New("server: manager is required")
	}
	if opts.CommandTimeout <= 0 {
		opts.CommandTimeout = 5 * time.Second
	}

	// Load OpenAPI spec for validation
	swagger, err := openapi3.NewLoader().LoadFromData(api.OpenAPISpec)
	if err != nil {
		return nil, fmt.Errorf("loading openapi spec: %w", err)
	}
	swagger.Servers = nil // Allow any host

	s := &Server{
		opts:    opts,
		logger:  opts.Logger,
		mounted: make(map[string]bool),
	}

	r := chi.NewRouter()

	// Global middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(middleware.Compress(5))
	r.Use(corsMiddleware)
	r.Use(zapLoggerMiddleware(s.logger))

	// Non-validated routes
	r.Get("/openapi.yaml", openapiHandler)
	r.Get("/docs", swaggerUIHandler)

	// Management API with OpenAPI validation
	r.Route("/api", func(apiRouter chi.Router) {
		apiRouter.Use(oapimiddleware.OapiRequestValidatorWithOptions(swagger, &oapimiddleware.Options{
			ErrorHandler: func(w http.ResponseWriter, message string, statusCode int) {
				writeError(w, statusCode, message)
			},
		}))

		apiRouter.Get("/health", s.handleHealth)
		apiRouter.Get("/routes", s.handleListRoutes)
		apiRouter.Post("/routes", s.handleAddRoute)
	})

	// Every other path is a candidate long-poll queue
	r.HandleFunc("/*", s.handlePoll)

	s.router = r
	return s, nil
}

// Handler returns the HTTP handler to serve.
func (s *Server) Handler() http.Handler {
	return s.router
}

// RegisterQueue implements route.Binder.
func (s *Server) RegisterQueue(q *route.LongPollQueue) {
	s.opts.Registry.Register(q.Path(), q)
	s.logger.Info("long-poll route bound", zap.String("path", q.Path()))
}

// Mount implements route.Binder. Mounted paths take precedence over
// long-poll dispatch.
func (s *Server) Mount(path string, h http.Handler) {
	s.mu.Lock()
	s.mounted[path] = true
	s.mu.Unlock()

	s.router.Handle(path, h)
	s.logger.Info("handler mounted", zap.String("path", path))
}

// Go implements route.Binder.
func (s *Server) Go(name string, fn func(ctx context.Context)) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.loops = append(s.loops, Loop{Name: name, Run: fn})
}

// Loops returns the background loops scheduled by bound routes.
func (s *Server) Loops() []Loop {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]Loop(nil), s.loops...)
}

func (s *Server) isMounted(path string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.mounted[path]
}

// Compile-time interface verification
var _ route.Binder = (*Server)(nil)

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "*")

		if r.Method == "OPTIONS" {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}

func zapLoggerMiddleware(logger *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			logger.Debug("request",
				zap.String("method", r.Method),
				zap.String("path", maskToken(r.URL.Path)),
				zap.String("requestID", middleware.GetReqID(r.Context())),
			)
			next.ServeHTTP(w, r)
		})
	}
}

var botToken = regexp.MustCompile(`(\d+):[A-Za-z0-9_-]+`)

// maskToken masks bot tokens embedded in a path
func maskToken(path string) string {
	return botToken.ReplaceAllString(path, "$1:****")
}

func openapiHandler(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/yaml")
	w.Write(api.OpenAPISpec)
}

func swaggerUIHandler(w http.ResponseWriter, r *http.Request) {
	html := `<!DOCTYPE html>
<html>
<head>
    <title>tgin management API</title>
    <link rel="stylesheet" href="https://unpkg.com/swagger-ui-dist@5.10.3/swagger-ui.css">
</head>
<body>
    <div id="swagger-ui"></div>
    <script src="https://unpkg.com/swagger-ui-dist@5.10.3/swagger-ui-bundle.js"></script>
    <script>
        window.onload = function() {
            SwaggerUIBundle({
                url: "/openapi.yaml",
                dom_id: '#swagger-ui',
            });
        };
    </script>
</body>
</html>`
	w.Header().Set("Content-Type", "text/html")
	w.Write([]byte(html))
}
