// Package webui exposes the standardizer over HTTP so a single payload can
// be rewritten without a pipeline file.
//
// Routes:
//
//	GET  /healthz          → 200 "ok"
//	POST /api/standardize  → rewritten body; settings come from the query
//	                         (flowFormat, timezone, invalidDates, avroSchema)
//
// Successful and bypassed runs answer 200 with the outcome in
// X-Datestd-Outcome. Failed runs answer 422 with the error text; a body over
// the configured limit answers 413.
package webui

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"

	"datestd/internal/config"
	"datestd/internal/logger"
	"datestd/internal/metrics"
	"datestd/internal/transformer"
)

// Response headers.
const (
	HeaderOutcome     = "X-Datestd-Outcome"
	HeaderRunID       = "X-Datestd-Run-Id"
	HeaderFingerprint = "X-Datestd-Fingerprint"
	HeaderMatched     = "X-Datestd-Matched"
)

// DefaultMaxBodyBytes caps request bodies when Config.MaxBodyBytes is zero.
const DefaultMaxBodyBytes = 64 << 20

// Config controls server startup.
type Config struct {
	Addr string
	// Job labels metrics and logs; defaults to "datestd-web".
	Job string
	// MaxBodyBytes caps the request body.
	MaxBodyBytes int64
	// Defaults are merged under the query parameters of every request, e.g.
	// a deployment-wide timezone.
	Defaults config.Options
}

// Server wraps a chi router and an http.Server.
type Server struct {
	cfg Config
	mux *chi.Mux
	srv *http.Server
}

// NewServer constructs a Server with its routes mounted.
func NewServer(cfg Config) *Server {
	if cfg.Job == "" {
		cfg.Job = "datestd-web"
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	s := &Server{cfg: cfg, mux: chi.NewRouter()}
	s.routes()
	s.srv = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.mux,
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// Handler returns the routed handler, mainly for tests.
func (s *Server) Handler() http.Handler { return s.mux }

// ListenAndServe blocks until the server stops. A graceful Shutdown is not
// reported as an error.
func (s *Server) ListenAndServe() error {
	logger.Named("http").Info().Str("addr", s.cfg.Addr).Msg("http listening")
	if err := s.srv.ListenAndServe(); !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown stops the server gracefully.
func (s *Server) Shutdown(ctx context.Context) error { return s.srv.Shutdown(ctx) }

func (s *Server) routes() {
	s.mux.Use(chimw.RequestID)
	s.mux.Use(chimw.RealIP)
	s.mux.Use(accessLog)
	s.mux.Use(chimw.Recoverer)

	s.mux.Get("/healthz", s.handleHealth)
	s.mux.Post("/api/standardize", s.handleStandardize)
}

func (s *Server) handleHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	_, _ = w.Write([]byte("ok"))
}

// settingsFor merges the configured defaults with the request query.
func (s *Server) settingsFor(r *http.Request) transformer.Settings {
	opts := config.Options{}
	for k, v := range s.cfg.Defaults {
		opts[k] = v
	}
	q := r.URL.Query()
	for _, k := range []string{
		transformer.OptFlowFormat,
		transformer.OptTimezone,
		transformer.OptInvalidDates,
		transformer.OptAvroSchema,
	} {
		if q.Has(k) {
			opts[k] = q.Get(k)
		}
	}
	return transformer.SettingsFromOptions(opts)
}

func (s *Server) handleStandardize(w http.ResponseWriter, r *http.Request) {
	runID := uuid.NewString()
	settings := s.settingsFor(r)
	body := http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes)

	start := time.Now()
	out := transformer.Run(r.Context(), settings, body)
	elapsed := time.Since(start)

	metrics.RecordRun(s.cfg.Job, out.Kind.String(), elapsed)
	metrics.RecordBytes(s.cfg.Job, "in", out.BytesIn)
	metrics.RecordFields(s.cfg.Job, "standardized", int64(out.Standardized))
	metrics.RecordFields(s.cfg.Job, "null", int64(out.Nulls))

	log := logger.Named("http").With().
		Str("run_id", runID).
		Str("request_id", chimw.GetReqID(r.Context())).
		Str("outcome", out.Kind.String()).
		Strs("matched", out.Matched).
		Dur("duration", elapsed).
		Logger()

	h := w.Header()
	h.Set(HeaderRunID, runID)
	h.Set(HeaderOutcome, out.Kind.String())
	if out.Fingerprint != "" {
		h.Set(HeaderFingerprint, out.Fingerprint)
	}
	if len(out.Matched) > 0 {
		h.Set(HeaderMatched, strings.Join(out.Matched, ","))
	}

	if out.Kind == transformer.Failure {
		status := http.StatusUnprocessableEntity
		var tooBig *http.MaxBytesError
		if errors.As(out.Err, &tooBig) {
			status = http.StatusRequestEntityTooLarge
		}
		log.Warn().Err(out.Err).Int("status", status).Msg("run failed")
		http.Error(w, out.Err.Error(), status)
		return
	}

	metrics.RecordBytes(s.cfg.Job, "out", int64(len(out.Body)))
	log.Info().Int("lines", out.Lines).Msg("run done")

	h.Set("Content-Type", contentType(settings, out))
	h.Set("Content-Length", strconv.Itoa(len(out.Body)))
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write(out.Body)
}

func contentType(s transformer.Settings, out transformer.Outcome) string {
	if out.Kind == transformer.Bypass {
		return "application/octet-stream"
	}
	if s.FlowFormat == transformer.FormatAvro {
		return "application/avro"
	}
	return "application/x-ndjson"
}
