// Package server exposes the cached catalog over HTTP.
package server

import (
	"context"
	"errors"
	"net"
	"net/http"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	"github.com/law-makers/catalog/internal/cache"
	"github.com/law-makers/catalog/pkg/models"
)

const (
	DefaultShutdownTimeout = 10 * time.Second
	readHeaderTimeout      = 10 * time.Second
)

// Catalog is the part of *cache.Manager the handlers need
type Catalog interface {
	GetCatalog(ctx context.Context) ([]models.MarkedUpListing, error)
	ForceRefresh(ctx context.Context) ([]models.MarkedUpListing, error)
	Stats() cache.Stats
}

// Options configures a Server
type Options struct {
	Addr            string
	CORSOrigin      string
	Payment         models.PaymentInfo
	ShutdownTimeout time.Duration
}

// Server serves the storefront API
type Server struct {
	catalog Catalog
	opts    Options
	started time.Time
}

// New creates a Server; it does not listen until ListenAndServe
func New(catalog Catalog, opts Options) *Server {
	if opts.ShutdownTimeout <= 0 {
		opts.ShutdownTimeout = DefaultShutdownTimeout
	}
	return &Server{
		catalog: catalog,
		opts:    opts,
		started: time.Now(),
	}
}

// Handler returns the routed API with middleware applied
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/products", s.handleProducts)
	mux.HandleFunc("POST /api/products/refresh", s.handleRefresh)
	mux.HandleFunc("GET /api/payment-info", s.handlePaymentInfo)
	mux.HandleFunc("GET /healthz", s.handleHealth)

	return withRequestID(withAccessLog(withCORS(s.opts.CORSOrigin, mux)))
}

// ListenAndServe serves until ctx is cancelled, then drains in-flight
// requests for up to ShutdownTimeout.
func (s *Server) ListenAndServe(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return err
	}
	return s.Serve(ctx, ln)
}

// Serve is ListenAndServe on an existing listener
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           h2c.NewHandler(s.Handler(), &http2.Server{}),
		ReadHeaderTimeout: readHeaderTimeout,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Info().Str("addr", ln.Addr().String()).Msg("HTTP server listening")
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	log.Info().Dur("timeout", s.opts.ShutdownTimeout).Msg("Shutting down HTTP server")
	shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), s.opts.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Warn().Err(err).Msg("HTTP server did not shut down cleanly")
		return err
	}
	return nil
}
