// Package server exposes the monitoring manager, the stored readings, and the
// stateless evaluators over HTTP.
package server

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"time"

	gorilla "github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"plantwatch/internal/efficiency"
	"plantwatch/internal/logger"
	"plantwatch/internal/middleware"
	"plantwatch/internal/models"
	"plantwatch/internal/monitor"
	"plantwatch/internal/risk"
	"plantwatch/internal/storage"
)

// Config holds the server's collaborators.
type Config struct {
	Addr      string
	APIKey    string
	Manager   *monitor.Manager
	Store     storage.Store
	Predictor *efficiency.Predictor

	// Stats supplies pipeline counters for the /stats endpoint. Optional.
	Stats func() map[string]any
}

// Server is the HTTP front end.
type Server struct {
	cfg       Config
	manager   *monitor.Manager
	store     storage.Store
	predictor *efficiency.Predictor
	stats     func() map[string]any
	log       zerolog.Logger
	startTime time.Time

	httpServer *http.Server
}

// New builds a Server. Call Start to begin serving.
func New(cfg Config) *Server {
	s := &Server{
		cfg:       cfg,
		manager:   cfg.Manager,
		store:     cfg.Store,
		predictor: cfg.Predictor,
		stats:     cfg.Stats,
		log:       logger.WithComponent("server"),
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:         cfg.Addr,
		Handler:      s.Handler(),
		ReadTimeout:  15 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}
	return s
}

// Handler builds the routed and middleware-wrapped handler. Exposed so tests
// can drive it through httptest without binding a port.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()

	r.HandleFunc("/start/{machine}", s.handleStart).Methods("POST")
	r.HandleFunc("/stop/{machine}", s.handleStop).Methods("POST")
	r.HandleFunc("/reset/{machine}", s.handleReset).Methods("POST")
	r.HandleFunc("/data/{machine}", s.handleData).Methods("GET")
	r.HandleFunc("/latest/{machine}", s.handleLatest).Methods("GET")
	r.HandleFunc("/machines", s.handleMachines).Methods("GET")
	r.HandleFunc("/assess/{machine}", s.handleAssess).Methods("POST")
	r.HandleFunc("/efficiency", s.handleEfficiency).Methods("POST")
	r.HandleFunc("/maintenance/{machine}", s.handleMaintenance).Methods("POST")
	r.HandleFunc("/health", s.handleHealth).Methods("GET")
	r.HandleFunc("/stats", s.handleStats).Methods("GET")
	r.Handle("/metrics", promhttp.Handler()).Methods("GET")

	cors := gorilla.CORS(
		gorilla.AllowedOrigins([]string{"*"}),
		gorilla.AllowedMethods([]string{"GET", "POST", "OPTIONS"}),
		gorilla.AllowedHeaders([]string{"Content-Type", "X-API-Key"}),
	)

	return middleware.Chain(
		cors(r),
		middleware.Recovery,
		middleware.Logging,
		middleware.Auth(s.cfg.APIKey),
	)
}

// Start serves until the listener fails or Shutdown is called.
func (s *Server) Start() error {
	s.log.Info().Str("addr", s.cfg.Addr).Msg("http server listening")
	if err := s.httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

// Shutdown drains in-flight requests.
func (s *Server) Shutdown(ctx context.Context) error {
	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	if err := s.manager.Start(machine); err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "monitoring started for " + machine,
	})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	if err := s.manager.Stop(machine); err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "monitoring stopped for " + machine,
	})
}

func (s *Server) handleReset(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	if err := s.manager.Reset(r.Context(), machine); err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "machine " + machine + " reset",
	})
}

func (s *Server) handleData(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	if _, err := s.manager.Profile(machine); err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}
	readings, err := s.store.Readings(r.Context(), machine)
	if err != nil {
		s.log.Error().Err(err).Str("machine", machine).Msg("reading fetch failed")
		writeError(w, http.StatusInternalServerError, "could not load readings")
		return
	}
	if readings == nil {
		readings = []models.Reading{}
	}
	writeJSON(w, http.StatusOK, readings)
}

func (s *Server) handleLatest(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	if _, err := s.manager.Profile(machine); err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}
	reading, err := s.store.Latest(r.Context(), machine)
	if err != nil {
		if errors.Is(err, storage.ErrNoReadings) {
			writeError(w, http.StatusNotFound, "no readings for "+machine)
			return
		}
		s.log.Error().Err(err).Str("machine", machine).Msg("latest fetch failed")
		writeError(w, http.StatusInternalServerError, "could not load reading")
		return
	}
	writeJSON(w, http.StatusOK, reading)
}

// machineInfo is one row of the /machines listing.
type machineInfo struct {
	Name    string   `json:"name"`
	Sensors []string `json:"sensors"`
	Running bool     `json:"running"`
	Tripped bool     `json:"tripped"`
}

func (s *Server) handleMachines(w http.ResponseWriter, r *http.Request) {
	status := s.manager.Status()
	out := make([]machineInfo, 0, len(status))
	for _, name := range s.manager.Machines() {
		profile, err := s.manager.Profile(name)
		if err != nil {
			continue
		}
		st := status[name]
		out = append(out, machineInfo{
			Name:    name,
			Sensors: profile.Sensors(),
			Running: st.Running,
			Tripped: st.Tripped,
		})
	}
	writeJSON(w, http.StatusOK, map[string]any{"machines": out})
}

// assessRequest is a one-off evaluation of caller-supplied sensor values.
type assessRequest struct {
	Values    map[string]float64 `json:"values"`
	Timestamp time.Time          `json:"timestamp,omitempty"`
}

type assessResponse struct {
	Machine         string       `json:"machine"`
	Score           float64      `json:"score"`
	Status          risk.Status  `json:"status"`
	Issues          []risk.Issue `json:"issues"`
	Recommendations string       `json:"recommendations"`
	Timestamp       time.Time    `json:"timestamp"`
}

func (s *Server) handleAssess(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	profile, err := s.manager.Profile(machine)
	if err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}

	var req assessRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if len(req.Values) == 0 {
		writeError(w, http.StatusBadRequest, "no sensor values provided")
		return
	}

	params := risk.ParameterSet{Values: req.Values, Timestamp: req.Timestamp}
	report, err := risk.CalculateFailureLikelihood(profile.Specs, params)
	if err != nil {
		if errors.Is(err, risk.ErrUnknownSensor) {
			writeError(w, http.StatusBadRequest, err.Error())
			return
		}
		s.log.Error().Err(err).Str("machine", machine).Msg("assessment failed")
		writeError(w, http.StatusInternalServerError, "assessment failed")
		return
	}

	rc := risk.RuntimeContext{CurrentRuntime: req.Values["runtime"]}
	if last, err := s.store.LastMaintenance(r.Context(), machine); err != nil {
		// Recommendations degrade to no maintenance history.
		s.log.Warn().Err(err).Str("machine", machine).Msg("maintenance history lookup failed")
	} else {
		rc.LastMaintenanceRuntime = last
	}

	ts := req.Timestamp
	if ts.IsZero() {
		ts = time.Now().UTC()
	}
	issues := report.Issues
	if issues == nil {
		issues = []risk.Issue{}
	}
	writeJSON(w, http.StatusOK, assessResponse{
		Machine:         machine,
		Score:           report.Score,
		Status:          report.OverallStatus(),
		Issues:          issues,
		Recommendations: risk.GenerateRecommendations(report.Issues, rc),
		Timestamp:       ts,
	})
}

func (s *Server) handleEfficiency(w http.ResponseWriter, r *http.Request) {
	var in efficiency.Input
	if err := json.NewDecoder(r.Body).Decode(&in); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	result, err := s.predictor.Predict(r.Context(), in)
	if err != nil {
		s.log.Error().Err(err).Msg("efficiency prediction failed")
		writeError(w, http.StatusInternalServerError, "prediction failed")
		return
	}
	writeJSON(w, http.StatusOK, result)
}

type maintenanceRequest struct {
	Runtime float64 `json:"runtime"`
}

func (s *Server) handleMaintenance(w http.ResponseWriter, r *http.Request) {
	machine := mux.Vars(r)["machine"]
	if _, err := s.manager.Profile(machine); err != nil {
		s.writeMonitorError(w, machine, err)
		return
	}
	var req maintenanceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid JSON body")
		return
	}
	if req.Runtime < 0 {
		writeError(w, http.StatusBadRequest, "runtime cannot be negative")
		return
	}
	if err := s.store.RecordMaintenance(r.Context(), machine, req.Runtime); err != nil {
		s.log.Error().Err(err).Str("machine", machine).Msg("maintenance record failed")
		writeError(w, http.StatusInternalServerError, "could not record maintenance")
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{
		"message": "maintenance recorded for " + machine,
	})
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "healthy",
		"uptime_seconds": time.Since(s.startTime).Seconds(),
	})
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	out := map[string]any{
		"machines": s.manager.Status(),
	}
	if s.stats != nil {
		for k, v := range s.stats() {
			out[k] = v
		}
	}
	writeJSON(w, http.StatusOK, out)
}

// writeMonitorError maps manager errors onto HTTP statuses.
func (s *Server) writeMonitorError(w http.ResponseWriter, machine string, err error) {
	switch {
	case errors.Is(err, monitor.ErrUnknownMachine):
		writeError(w, http.StatusNotFound, "unknown machine: "+machine)
	case errors.Is(err, monitor.ErrAlreadyRunning):
		writeError(w, http.StatusConflict, "monitoring already running for "+machine)
	case errors.Is(err, monitor.ErrNotRunning):
		writeError(w, http.StatusConflict, "monitoring not running for "+machine)
	case errors.Is(err, monitor.ErrTripped):
		writeError(w, http.StatusConflict, "machine "+machine+" tripped by a critical reading; reset required")
	default:
		s.log.Error().Err(err).Str("machine", machine).Msg("monitor operation failed")
		writeError(w, http.StatusInternalServerError, err.Error())
	}
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]string{"error": msg})
}
