// Package status exposes the HTTP status/control surface for the task
// roster: JSON snapshots cheap enough for sub-second polling, manual-trigger
// and start/stop forwarding, and Prometheus metrics fed from the event bus.
package status

import (
	"context"
	"encoding/json"
	"errors"
	"net"
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/time/rate"

	"taskdeck/internal/eventbus"
	"taskdeck/internal/task"
	logx "taskdeck/pkg/logx"
)

type Config struct {
	Enabled bool
	Addr    string

	// TriggerRatePerSec bounds manual-trigger requests across the roster.
	// 0 applies the default of 5/s.
	TriggerRatePerSec int
}

type Server struct {
	cfg   Config
	log   logx.Logger
	tasks *task.Registry
	bus   eventbus.Bus

	metrics   *Metrics
	limiter   *rate.Limiter
	startedAt time.Time

	mu  sync.Mutex
	ln  net.Listener
	srv *http.Server
}

func New(cfg Config, tasks *task.Registry, bus eventbus.Bus, log logx.Logger) *Server {
	if log.IsZero() {
		log = logx.Nop()
	}
	rps := cfg.TriggerRatePerSec
	if rps <= 0 {
		rps = 5
	}
	return &Server{
		cfg:       cfg,
		log:       log,
		tasks:     tasks,
		bus:       bus,
		metrics:   newMetrics(tasks),
		limiter:   rate.NewLimiter(rate.Limit(rps), rps),
		startedAt: time.Now(),
	}
}

func (s *Server) Enabled() bool { return s.cfg.Enabled }

// Addr returns the bound listen address, useful when the config requested
// an ephemeral port.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ln == nil {
		return ""
	}
	return s.ln.Addr().String()
}

func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.srv != nil {
		return nil
	}

	ln, err := net.Listen("tcp", s.cfg.Addr)
	if err != nil {
		return err
	}
	s.ln = ln
	s.srv = &http.Server{
		Handler:           s.router(),
		ReadHeaderTimeout: 5 * time.Second,
		// Stop-all may legitimately block for the task stop grace period.
		WriteTimeout: task.StopGracePeriod + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	go func() {
		if err := s.srv.Serve(ln); err != nil && !errors.Is(err, http.ErrServerClosed) {
			s.log.Error("status server failed", logx.Err(err))
		}
	}()
	s.log.Info("status server started", logx.String("addr", ln.Addr().String()))
	return nil
}

func (s *Server) Stop(ctx context.Context) {
	s.mu.Lock()
	srv := s.srv
	s.srv = nil
	s.ln = nil
	s.mu.Unlock()
	if srv == nil {
		return
	}

	shCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shCtx); err != nil {
		_ = srv.Close()
	}
	s.log.Info("status server stopped")
}

func (s *Server) router() http.Handler {
	r := chi.NewRouter()

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write([]byte("ok"))
	})
	r.Get("/status", s.handleStatus)
	r.Get("/metrics", promhttp.HandlerFor(s.metrics.reg, promhttp.HandlerOpts{}).ServeHTTP)

	r.Post("/tasks/start", s.handleStartAll)
	r.Post("/tasks/stop", s.handleStopAll)
	r.Route("/tasks/{index}", func(r chi.Router) {
		r.Post("/trigger", s.handleTrigger)
		r.Post("/start", s.handleStartOne)
		r.Post("/stop", s.handleStopOne)
	})

	return r
}

// statusResponse is the JSON body for GET /status, polled by the
// presentation layer on a short cadence.
type statusResponse struct {
	Uptime time.Duration `json:"uptime_seconds"`
	Tasks  []task.Status `json:"tasks"`
}

func (s *Server) handleStatus(w http.ResponseWriter, _ *http.Request) {
	resp := statusResponse{
		Uptime: time.Since(s.startedAt) / time.Second,
		Tasks:  s.tasks.Snapshots(),
	}
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(resp)
}

func (s *Server) handleStartAll(w http.ResponseWriter, _ *http.Request) {
	s.tasks.StartAll()
	w.WriteHeader(http.StatusAccepted)
}

// handleStopAll blocks for up to roughly one stop grace period (tasks are
// stopped concurrently).
func (s *Server) handleStopAll(w http.ResponseWriter, _ *http.Request) {
	s.tasks.StopAll()
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleTrigger(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.taskIndex(w, r)
	if !ok {
		return
	}
	if !s.limiter.Allow() {
		http.Error(w, "trigger rate limit exceeded", http.StatusTooManyRequests)
		return
	}
	if err := s.tasks.Trigger(idx); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStartOne(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.taskIndex(w, r)
	if !ok {
		return
	}
	if err := s.tasks.StartTask(idx); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) handleStopOne(w http.ResponseWriter, r *http.Request) {
	idx, ok := s.taskIndex(w, r)
	if !ok {
		return
	}
	if err := s.tasks.StopTask(idx); err != nil {
		http.Error(w, err.Error(), http.StatusNotFound)
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

func (s *Server) taskIndex(w http.ResponseWriter, r *http.Request) (int, bool) {
	raw := chi.URLParam(r, "index")
	idx, err := strconv.Atoi(raw)
	if err != nil {
		http.Error(w, "invalid task index", http.StatusBadRequest)
		return 0, false
	}
	return idx, true
}
