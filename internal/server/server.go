package server

import (
	"context"
	"database/sql"
	"encoding/json"
	"net"
	"net/http"
	"time"

	"golang.org/x/time/rate"

	"github.com/jayrajpamnani/HexDrop/internal/transfer"
)

// BuildInfo identifies the running binary.
type BuildInfo struct {
	Version string
	Commit  string
}

// ObjectProber reports whether the blob backend is reachable. Satisfied by
// the storage package; kept narrow so /ready is testable without MinIO.
type ObjectProber interface {
	Probe(ctx context.Context) error
}

// Config wires the HTTP surface to its dependencies.
type Config struct {
	Addr      string // e.g. ":8080"
	Build     BuildInfo
	DB        *sql.DB
	Objects   ObjectProber
	Service   *transfer.Service
	RateLimit rate.Limit
	RateBurst int

	// MaxUploadBytes caps the request body on /api/upload. Zero means no cap
	// beyond the service's own file-size policy.
	MaxUploadBytes int64
}

type Server struct {
	httpServer *http.Server
}

func New(cfg Config) *Server {
	mux := http.NewServeMux()

	mux.Handle("POST /api/upload", cfg.uploadHandler())
	mux.Handle("GET /api/download/{key}", cfg.downloadHandler())

	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(http.StatusOK)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status":  "ok",
			"version": cfg.Build.Version,
		})
	})
	mux.Handle("GET /ready", cfg.readyHandler())
	mux.Handle("GET /metrics", NewPrometheusExporter(cfg.Build.Version).Handler())

	// Wrap middleware: requestID -> logging -> headers -> rate limit -> mux
	var handler http.Handler = mux
	if cfg.RateLimit > 0 {
		rl := newRateLimiter(cfg.RateLimit, cfg.RateBurst)
		handler = rl.middleware(handler)
	}
	handler = securityHeadersMiddleware(handler)
	handler = loggingMiddleware(handler)
	handler = requestIDMiddleware(handler)

	s := &http.Server{
		Addr:              cfg.Addr,
		Handler:           handler,
		ReadHeaderTimeout: 5 * time.Second,
	}

	return &Server{httpServer: s}
}

// Handler exposes the composed handler, mainly for httptest servers.
func (s *Server) Handler() http.Handler {
	return s.httpServer.Handler
}

func (s *Server) Start() error {
	ln, err := net.Listen("tcp", s.httpServer.Addr)
	if err != nil {
		return err
	}
	return s.httpServer.Serve(ln)
}

func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}
