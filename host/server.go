package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/davidroman0O/afflow"
	"github.com/davidroman0O/afflow/state"
)

// ServerConfig is the HTTP server configuration, loaded from the
// environment.
type ServerConfig struct {
	Addr            string        `env:"AFFLOW_ADDR" envDefault:":8080"`
	ReadTimeout     time.Duration `env:"AFFLOW_READ_TIMEOUT" envDefault:"10s"`
	WriteTimeout    time.Duration `env:"AFFLOW_WRITE_TIMEOUT" envDefault:"30s"`
	ShutdownTimeout time.Duration `env:"AFFLOW_SHUTDOWN_TIMEOUT" envDefault:"10s"`
}

// LoadServerConfig reads the server configuration from the environment.
func LoadServerConfig() (ServerConfig, error) {
	var cfg ServerConfig
	if err := env.Parse(&cfg); err != nil {
		return cfg, fmt.Errorf("parse server config: %w", err)
	}
	return cfg, nil
}

// Server exposes campaign management over HTTP.
type Server struct {
	cfg      ServerConfig
	registry *Registry
	pipeline afflow.Config
	log      afflow.Logger
	http     *http.Server
}

// NewServer creates a server managing campaigns built from the given
// pipeline configuration.
func NewServer(cfg ServerConfig, pipeline afflow.Config, log afflow.Logger) *Server {
	s := &Server{
		cfg:      cfg,
		registry: NewRegistry(),
		pipeline: pipeline,
		log:      log,
	}
	s.http = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  cfg.ReadTimeout,
		WriteTimeout: cfg.WriteTimeout,
	}
	return s
}

// Registry returns the server's campaign registry.
func (s *Server) Registry() *Registry { return s.registry }

// Handler builds the route table.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("POST /campaigns", s.handleCreate)
	mux.HandleFunc("GET /campaigns", s.handleList)
	mux.HandleFunc("GET /campaigns/{id}", s.handleStatus)
	mux.HandleFunc("GET /campaigns/{id}/status", s.handleStatus)
	mux.HandleFunc("POST /campaigns/{id}/run", s.handleRun)
	mux.HandleFunc("POST /campaigns/{id}/step", s.handleStep)
	mux.HandleFunc("POST /campaigns/{id}/outreach", s.handleOutreach)
	mux.HandleFunc("GET /campaigns/{id}/leads", s.handleLeads)
	mux.HandleFunc("GET /campaigns/{id}/affiliates", s.handleAffiliates)
	mux.HandleFunc("GET /campaigns/{id}/commissions", s.handleCommissions)
	mux.HandleFunc("GET /campaigns/{id}/report", s.handleReport)
	mux.Handle("GET /metrics", promhttp.Handler())
	return mux
}

// ListenAndServe runs the server until the context is canceled, then shuts
// down gracefully.
func (s *Server) ListenAndServe(ctx context.Context) error {
	errc := make(chan error, 1)
	go func() {
		s.log.Info("host: listening on %s", s.cfg.Addr)
		errc <- s.http.ListenAndServe()
	}()

	select {
	case err := <-errc:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
		shutdownCtx, cancel := context.WithTimeout(context.Background(), s.cfg.ShutdownTimeout)
		defer cancel()
		err := s.http.Shutdown(shutdownCtx)
		for _, c := range s.registry.List() {
			if cerr := c.Close(); cerr != nil {
				s.log.Warn("host: closing campaign %s: %v", c.ID, cerr)
			}
		}
		return err
	}
}

func (s *Server) handleCreate(w http.ResponseWriter, r *http.Request) {
	var req createCampaignRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("decode request: %w", err))
		return
	}
	if strings.TrimSpace(req.Name) == "" {
		writeError(w, http.StatusBadRequest, errors.New("campaign name is required"))
		return
	}

	cfg := s.pipeline
	if req.ConfigPath != "" {
		loaded, err := afflow.LoadConfig(req.ConfigPath)
		if err != nil {
			writeError(w, http.StatusBadRequest, err)
			return
		}
		cfg = loaded
	}

	c := NewCampaign(req.Name, cfg, s.log)
	c.Description = req.Description
	s.registry.Add(c)
	s.log.Info("host: created campaign %s (%s)", c.ID, c.Name)
	writeJSON(w, http.StatusCreated, c.Snapshot())
}

func (s *Server) handleList(w http.ResponseWriter, _ *http.Request) {
	campaigns := s.registry.List()
	out := make([]Status, 0, len(campaigns))
	for _, c := range campaigns {
		out = append(out, c.Snapshot())
	}
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Snapshot())
}

func (s *Server) handleRun(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	status, err := c.RunCycle(r.Context())
	if err != nil {
		s.log.Warn("host: campaign %s cycle failed: %v", c.ID, err)
		writeJSON(w, http.StatusConflict, status)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleStep(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, c.Step(r.Context()))
}

func (s *Server) handleOutreach(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	status, err := c.SelectOutreach(r.Context())
	if err != nil {
		writeError(w, http.StatusConflict, err)
		return
	}
	writeJSON(w, http.StatusOK, status)
}

func (s *Server) handleLeads(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	q := r.URL.Query()
	status := q.Get("status")
	platform := q.Get("platform")
	search := strings.ToLower(q.Get("search"))
	minAudience := 0
	if v := q.Get("min_audience"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil {
			writeError(w, http.StatusBadRequest, fmt.Errorf("min_audience: %w", err))
			return
		}
		minAudience = n
	}

	var out []leadView
	c.View(func(st *state.State) {
		for _, l := range st.Prospects {
			if status != "" && string(l.Status) != status {
				continue
			}
			if platform != "" && l.Platform != platform {
				continue
			}
			if l.AudienceSize < minAudience {
				continue
			}
			if search != "" && !strings.Contains(strings.ToLower(l.Name), search) {
				continue
			}
			out = append(out, toLeadView(l))
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleAffiliates(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	var out []leadView
	c.View(func(st *state.State) {
		for _, l := range st.ActiveAffiliates {
			out = append(out, toLeadView(l))
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleCommissions(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	filter := r.URL.Query().Get("status")
	var out []state.Commission
	c.View(func(st *state.State) {
		for _, comm := range st.CommissionsLog {
			if filter == "" || string(comm.Status) == filter {
				out = append(out, *comm)
			}
		}
	})
	writeJSON(w, http.StatusOK, out)
}

func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	c, ok := s.campaign(w, r)
	if !ok {
		return
	}
	var report *state.Report
	c.View(func(st *state.State) {
		if st.PerformanceReport != nil {
			cp := *st.PerformanceReport
			report = &cp
		}
	})
	if report == nil {
		writeError(w, http.StatusNotFound, errors.New("no performance report yet"))
		return
	}
	writeJSON(w, http.StatusOK, report)
}

func (s *Server) campaign(w http.ResponseWriter, r *http.Request) (*Campaign, bool) {
	c, err := s.registry.Get(r.PathValue("id"))
	if err != nil {
		writeError(w, http.StatusNotFound, err)
		return nil, false
	}
	return c, true
}

func writeJSON(w http.ResponseWriter, code int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, errorResponse{Error: err.Error()})
}
