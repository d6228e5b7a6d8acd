// Package server implements the read-only diagnostics HTTP server started by
// "projmigrate serve".
//
// Every request loads the workspace afresh, so the server never shares a
// graph between goroutines and always reflects the files on disk. Routes:
//
//	GET /healthz         build information
//	GET /graph.{format}  dependency diagram (puml, dot, json, svg, png)
//	GET /report          dry-run migration report as JSON
//	GET /metrics         Prometheus metrics
package server

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"net/http"
	"strconv"
	"time"

	"github.com/charmbracelet/log"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/matzehuels/projmigrate/pkg/buildinfo"
	"github.com/matzehuels/projmigrate/pkg/config"
	"github.com/matzehuels/projmigrate/pkg/diag"
	"github.com/matzehuels/projmigrate/pkg/errors"
	"github.com/matzehuels/projmigrate/pkg/graph"
	"github.com/matzehuels/projmigrate/pkg/observability"
	"github.com/matzehuels/projmigrate/pkg/pipeline"
)

// shutdownTimeout bounds graceful shutdown.
const shutdownTimeout = 5 * time.Second

// Server serves diagnostics for one workspace.
type Server struct {
	dir      string
	cfg      config.Config
	runner   *pipeline.Runner
	logger   *log.Logger
	gatherer prometheus.Gatherer
}

// New creates a server for the workspace in dir. A nil gatherer serves the
// default Prometheus registry.
func New(dir string, cfg config.Config, runner *pipeline.Runner, logger *log.Logger, gatherer prometheus.Gatherer) *Server {
	if gatherer == nil {
		gatherer = prometheus.DefaultGatherer
	}
	if logger == nil {
		logger = log.Default()
	}
	return &Server{
		dir:      dir,
		cfg:      cfg,
		runner:   runner,
		logger:   logger,
		gatherer: gatherer,
	}
}

// Handler returns the router.
func (s *Server) Handler() http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	r.Use(s.instrument)

	r.Get("/healthz", s.handleHealth)
	r.Get("/graph.{format}", s.handleGraph)
	r.Get("/report", s.handleReport)
	r.Method(http.MethodGet, "/metrics", promhttp.HandlerFor(s.gatherer, promhttp.HandlerOpts{}))
	return r
}

// ListenAndServe serves on the configured address until ctx is cancelled,
// then shuts down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	srv := &http.Server{
		Addr:              s.cfg.Serve.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 1)
	go func() {
		s.logger.Info("serving diagnostics", "addr", srv.Addr, "dir", s.dir)
		errc <- srv.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if stderrors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		s.logger.Info("shutting down")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return srv.Shutdown(shutdownCtx)
	}
}

// instrument reports each request to the HTTP hooks and the debug log.
func (s *Server) instrument(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)

		route := chi.RouteContext(r.Context()).RoutePattern()
		if route == "" {
			route = "unmatched"
		}
		hooks := observability.HTTP()
		hooks.OnRequest(r.Context(), r.Method, route)
		hooks.OnResponse(r.Context(), r.Method, route, ww.Status(), time.Since(start))
		s.logger.Debug("request",
			"method", r.Method,
			"path", r.URL.Path,
			"status", ww.Status(),
			"duration", time.Since(start),
			"request_id", middleware.GetReqID(r.Context()))
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status": "ok",
		"build":  buildinfo.Current(),
	})
}

// handleGraph renders the workspace graph. With reconciled=true the graph
// is taken from a dry-run migration and the modules it would change are
// highlighted.
func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	ctx := r.Context()
	q := r.URL.Query()

	opts := s.cfg.DiagramOptions()
	opts.Format = chi.URLParam(r, "format")
	if err := pipeline.ValidateFormat(opts.Format); err != nil {
		writeError(w, errors.Wrap(errors.ErrCodeInvalidFormat, err, "unsupported diagram format"))
		return
	}
	if v := q.Get("detailed"); v != "" {
		opts.Detailed = queryBool(v)
	}
	if v := q.Get("separator"); v != "" {
		opts.Separator = v
	}
	opts.Refresh = queryBool(q.Get("refresh"))

	var g *graph.Graph
	if queryBool(q.Get("reconciled")) {
		res, err := s.dryRun(ctx, false)
		if err != nil {
			writeError(w, err)
			return
		}
		g = res.Graph
		for _, p := range res.Projects {
			if p.Changed() {
				opts.Highlight = append(opts.Highlight, p.Name)
			}
		}
	} else {
		var err error
		g, err = s.runner.Graph(ctx, s.dir, diag.NewLogSink(s.logger))
		if err != nil {
			writeError(w, err)
			return
		}
	}

	data, hit, err := s.runner.DiagramWithCacheInfo(ctx, g, opts)
	if err != nil {
		writeError(w, err)
		return
	}
	w.Header().Set("Content-Type", pipeline.ContentTypes[opts.Format])
	w.Header().Set("X-Cache", cacheStatus(hit))
	_, _ = w.Write(data)
}

// handleReport runs a dry-run migration; convert=false only reconciles.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	skipConvert := r.URL.Query().Has("convert") && !queryBool(r.URL.Query().Get("convert"))
	res, err := s.dryRun(r.Context(), skipConvert)
	if err != nil {
		writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (s *Server) dryRun(ctx context.Context, skipConvert bool) (*pipeline.Result, error) {
	opts := s.cfg.MigrateOptions(s.dir)
	opts.DryRun = true
	opts.SkipConvert = skipConvert
	return s.runner.Migrate(ctx, opts)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	_ = enc.Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, statusFor(err), map[string]string{
		"error": errors.UserMessage(err),
		"code":  string(errors.GetCode(err)),
	})
}

func statusFor(err error) int {
	switch errors.GetCode(err) {
	case errors.ErrCodeNotFound:
		return http.StatusNotFound
	case errors.ErrCodeInvalidInput, errors.ErrCodeInvalidPath, errors.ErrCodeInvalidFormat:
		return http.StatusBadRequest
	}
	if stderrors.Is(err, context.Canceled) {
		return 499 // client closed request
	}
	return http.StatusInternalServerError
}

func queryBool(v string) bool {
	b, err := strconv.ParseBool(v)
	return err == nil && b
}

func cacheStatus(hit bool) string {
	if hit {
		return "HIT"
	}
	return "MISS"
}
