// Package server exposes lookup, relay and mux jobs over HTTP.
package server

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/hlog"
	"github.com/spf13/afero"

	"github.com/famomatic/tubemux/internal/mux"
	"github.com/famomatic/tubemux/internal/provider"
)

// DefaultEventInterval is how often /jobs/{id}/events pushes a snapshot.
const DefaultEventInterval = 500 * time.Millisecond

// Lookuper resolves a video URL; *provider.Provider implements it.
type Lookuper interface {
	Lookup(ctx context.Context, rawURL string) (*provider.VideoInfo, error)
}

// Options wires a Server.
type Options struct {
	Provider Lookuper
	Relay    mux.Fetcher
	Pipeline *mux.Pipeline
	// Files is where the pipeline's sink writes outputs.
	Files afero.Fs
	// AllowedOrigins defaults to "*".
	AllowedOrigins []string
	EventInterval  time.Duration
	// Ready reports whether the server can run mux jobs, for /healthz.
	Ready  func() error
	Logger zerolog.Logger
}

// Server holds the HTTP handlers.
type Server struct {
	opts Options
	log  zerolog.Logger
}

func New(opts Options) *Server {
	if opts.EventInterval <= 0 {
		opts.EventInterval = DefaultEventInterval
	}
	if opts.Files == nil {
		opts.Files = afero.NewOsFs()
	}
	if len(opts.AllowedOrigins) == 0 {
		opts.AllowedOrigins = []string{"*"}
	}
	return &Server{opts: opts, log: opts.Logger}
}

// Handler returns the routed handler with middleware applied.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()

	r.Use(middleware.RequestID)
	r.Use(hlog.NewHandler(s.log))
	r.Use(hlog.AccessHandler(func(r *http.Request, status, size int, d time.Duration) {
		hlog.FromRequest(r).Info().
			Str("method", r.Method).
			Str("path", r.URL.Path).
			Str("request_id", middleware.GetReqID(r.Context())).
			Int("status", status).
			Int("size", size).
			Dur("duration", d).
			Msg("request")
	}))
	r.Use(middleware.Recoverer)
	r.Use(corsMiddleware(s.opts.AllowedOrigins))

	r.Get("/healthz", s.handleHealth)
	r.Post("/lookup", s.handleLookup)
	r.Get("/relay", s.handleRelay)

	r.Route("/jobs", func(r chi.Router) {
		r.Get("/", s.handleListJobs)
		r.Post("/", s.handleCreateJob)
		r.Get("/{id}", s.handleGetJob)
		r.Get("/{id}/events", s.handleJobEvents)
		r.Get("/{id}/file", s.handleJobFile)
	})
	return r
}

// ListenAndServe serves on addr until ctx is canceled, then shuts down and
// waits for running mux jobs.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	srv := &http.Server{
		Addr:              addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	errc := make(chan error, 1)
	go func() {
		s.log.Info().Str("addr", addr).Msg("http server listening")
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	s.log.Info().Msg("shutting down http server")
	err := srv.Shutdown(shutdownCtx)
	if s.opts.Pipeline != nil {
		s.opts.Pipeline.Wait()
	}
	return err
}

func corsMiddleware(allowed []string) func(http.Handler) http.Handler {
	origins := map[string]struct{}{}
	allowAll := false
	for _, o := range allowed {
		if o == "*" {
			allowAll = true
		}
		origins[o] = struct{}{}
	}
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			origin := r.Header.Get("Origin")
			switch {
			case allowAll:
				w.Header().Set("Access-Control-Allow-Origin", "*")
			case origin != "":
				if _, ok := origins[origin]; !ok {
					http.Error(w, "CORS origin denied", http.StatusForbidden)
					return
				}
				w.Header().Set("Access-Control-Allow-Origin", origin)
				w.Header().Add("Vary", "Origin")
			}
			w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
			w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Range")
			w.Header().Set("Access-Control-Expose-Headers", "Content-Disposition, Content-Length")
			if r.Method == http.MethodOptions {
				w.WriteHeader(http.StatusOK)
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}
