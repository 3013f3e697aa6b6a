package httpapi

import (
	"context"
	"encoding/json"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"go.uber.org/zap"

	"github.com/hamed0406/apihealth/internal/domain"
	apimw "github.com/hamed0406/apihealth/internal/httpapi/middleware"
	"github.com/hamed0406/apihealth/internal/metrics"
	"github.com/hamed0406/apihealth/internal/repo"
	"github.com/hamed0406/apihealth/internal/scheduler"
)

// Trigger runs one monitoring pass.
type Trigger interface {
	RunOnce(ctx context.Context) (scheduler.Summary, error)
}

type Options struct {
	Keys           apimw.Keys
	AllowedOrigins []string
	RateLimitRPM   int
	RateLimitBurst int
}

type Server struct {
	Logger    *zap.Logger
	Runner    Trigger
	Endpoints repo.EndpointSource
	States    repo.StateStore
	Metrics   *metrics.Metrics
	opts      Options

	runMu   sync.Mutex // held for the duration of a pass
	lastMu  sync.RWMutex
	lastRun *runResponse
}

func NewServer(l *zap.Logger, runner Trigger, endpoints repo.EndpointSource, states repo.StateStore,
	m *metrics.Metrics, opts Options) *Server {
	if l == nil {
		l = zap.NewNop()
	}
	return &Server{Logger: l, Runner: runner, Endpoints: endpoints, States: states, Metrics: m, opts: opts}
}

func (s *Server) Router() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.Recoverer)
	if len(s.opts.AllowedOrigins) == 0 {
		r.Use(cors.AllowAll().Handler)
	} else {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: s.opts.AllowedOrigins,
			AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodOptions},
			AllowedHeaders: []string{"Authorization", "Content-Type", "X-API-Key"},
			MaxAge:         300,
		}))
	}

	r.Get("/healthz", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})
	r.Handle("/metrics", s.Metrics.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Use(apimw.RateLimit(s.opts.RateLimitRPM, s.opts.RateLimitBurst))
		r.With(apimw.RequireAny(s.opts.Keys)).Get("/status", s.handleStatus)
		r.With(apimw.RequireAdmin(s.opts.Keys)).Post("/run", s.handleRun)
	})
	return r
}

type runResponse struct {
	scheduler.Summary
	Errors []string `json:"errors,omitempty"`
	Error  string   `json:"error,omitempty"`
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	if !s.runMu.TryLock() {
		writeJSON(w, http.StatusConflict, map[string]string{"error": "run already in progress"})
		return
	}
	defer s.runMu.Unlock()

	// a client hanging up must not leave the pass half done
	ctx := context.WithoutCancel(r.Context())
	sum, err := s.Runner.RunOnce(ctx)

	resp := &runResponse{Summary: sum, Errors: sum.ErrorMessages()}
	status := http.StatusOK
	if err != nil {
		resp.Error = err.Error()
		status = http.StatusServiceUnavailable
		s.Logger.Error("api_run_failed", zap.String("run_id", sum.RunID), zap.Error(err))
	} else {
		s.Logger.Info("api_run_done", zap.String("run_id", sum.RunID), zap.Int("changed", sum.Changed))
	}

	s.lastMu.Lock()
	s.lastRun = resp
	s.lastMu.Unlock()

	writeJSON(w, status, resp)
}

type endpointStatus struct {
	Endpoint domain.EndpointSpec  `json:"endpoint"`
	Record   *domain.HealthRecord `json:"record"`
	Error    string               `json:"error,omitempty"`
}

type statusResponse struct {
	GeneratedAt time.Time        `json:"generated_at"`
	LastRun     *runResponse     `json:"last_run"`
	Endpoints   []endpointStatus `json:"endpoints"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	specs, err := s.Endpoints.ListEndpoints(r.Context())
	if err != nil {
		s.Logger.Warn("api_status_list_error", zap.Error(err))
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": "endpoint configuration unavailable"})
		return
	}

	out := statusResponse{GeneratedAt: time.Now().UTC(), Endpoints: make([]endpointStatus, 0, len(specs))}
	for _, spec := range specs {
		st := endpointStatus{Endpoint: spec}
		rec, err := s.States.Get(r.Context(), spec.ID)
		if err != nil {
			s.Logger.Warn("api_status_get_error", zap.String("endpoint_id", spec.ID), zap.Error(err))
			st.Error = "state unavailable"
		}
		st.Record = rec
		out.Endpoints = append(out.Endpoints, st)
	}

	s.lastMu.RLock()
	out.LastRun = s.lastRun
	s.lastMu.RUnlock()

	writeJSON(w, http.StatusOK, out)
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
