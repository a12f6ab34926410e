package server

import (
	"encoding/json"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/jpalmerr/pulsemeter/internal/settings"
	"github.com/jpalmerr/pulsemeter/internal/store"
)

// settingsView is the API representation of a settings snapshot.
type settingsView struct {
	Endpoint     string `json:"endpoint"`
	Method       string `json:"method"`
	AuthToken    string `json:"auth_token,omitempty"`
	HasAuthToken bool   `json:"has_auth_token"`
	IntervalMs   int64  `json:"interval_ms"`
	Monitoring   bool   `json:"monitoring"`
}

func newSettingsView(s settings.Snapshot) settingsView {
	r := s.Redacted()
	return settingsView{
		Endpoint:     r.Endpoint,
		Method:       r.Method,
		AuthToken:    r.AuthToken,
		HasAuthToken: s.AuthToken != "",
		IntervalMs:   r.Interval.Milliseconds(),
		Monitoring:   r.Monitoring,
	}
}

// settingsRequest is a partial settings update; nil fields are left unchanged.
type settingsRequest struct {
	Endpoint   *string `json:"endpoint"`
	Method     *string `json:"method"`
	AuthToken  *string `json:"auth_token"`
	IntervalMs *int64  `json:"interval_ms"`
	Monitoring *bool   `json:"monitoring"`
}

func (req settingsRequest) apply(s *settings.Snapshot) {
	if req.Endpoint != nil {
		s.Endpoint = *req.Endpoint
	}
	if req.Method != nil {
		s.Method = *req.Method
	}
	if req.AuthToken != nil {
		s.AuthToken = *req.AuthToken
	}
	if req.IntervalMs != nil {
		s.Interval = time.Duration(*req.IntervalMs) * time.Millisecond
	}
	if req.Monitoring != nil {
		s.Monitoring = *req.Monitoring
	}
}

type statsView struct {
	TotalReads    int64      `json:"total_reads"`
	StartTime     *time.Time `json:"start_time"`
	Uptime        string     `json:"uptime"`
	UptimeSeconds int64      `json:"uptime_seconds"`
}

type snapshotView struct {
	Settings settingsView     `json:"settings"`
	State    string           `json:"state"`
	Samples  []store.Sample   `json:"samples"`
	Logs     []store.LogEntry `json:"logs"`
	Stats    statsView        `json:"stats"`
	Reading  store.Reading    `json:"reading"`
}

type errorResponse struct {
	Error string `json:"error"`
}

func (s *Server) statsView() statsView {
	st := s.store.Stats()
	up := st.Uptime(s.now())
	return statsView{
		TotalReads:    st.TotalReads,
		StartTime:     st.StartTime,
		Uptime:        store.FormatUptime(up),
		UptimeSeconds: int64(up / time.Second),
	}
}

func (s *Server) snapshot() snapshotView {
	return snapshotView{
		Settings: newSettingsView(s.control.Settings()),
		State:    s.control.State(),
		Samples:  s.store.Samples(),
		Logs:     s.store.Logs(),
		Stats:    s.statsView(),
		Reading:  s.store.Reading(),
	}
}

func (s *Server) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.snapshot())
}

func (s *Server) handleSamples(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Samples())
}

func (s *Server) handleStats(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet) {
		return
	}
	s.writeJSON(w, http.StatusOK, s.statsView())
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodDelete) {
		return
	}
	if r.Method == http.MethodDelete {
		s.store.ClearLogs()
		w.WriteHeader(http.StatusNoContent)
		return
	}
	s.writeJSON(w, http.StatusOK, s.store.Logs())
}

func (s *Server) handleSettings(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodGet, http.MethodPut) {
		return
	}
	if r.Method == http.MethodGet {
		s.writeJSON(w, http.StatusOK, newSettingsView(s.control.Settings()))
		return
	}

	var req settingsRequest
	if err := decodeBody(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}

	next, err := s.control.UpdateSettings(req.apply)
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	s.logger.Info("settings updated",
		"endpoint", next.Endpoint,
		"method", next.Method,
		"interval", next.Interval,
		"monitoring", next.Monitoring,
	)
	s.writeJSON(w, http.StatusOK, newSettingsView(next))
}

func (s *Server) handleMonitoring(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}

	var req struct {
		Enabled *bool `json:"enabled"`
	}
	if err := decodeBody(w, r, &req); err != nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: err.Error()})
		return
	}
	if req.Enabled == nil {
		s.writeJSON(w, http.StatusBadRequest, errorResponse{Error: "enabled is required"})
		return
	}

	enabled := *req.Enabled
	if enabled && s.control.Settings().Endpoint == "" {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: "endpoint URL is required"})
		return
	}

	next, err := s.control.UpdateSettings(func(snap *settings.Snapshot) { snap.Monitoring = enabled })
	if err != nil {
		s.writeJSON(w, http.StatusUnprocessableEntity, errorResponse{Error: err.Error()})
		return
	}
	s.writeJSON(w, http.StatusOK, newSettingsView(next))
}

func (s *Server) handleTest(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	entry := s.control.TestConnection(r.Context())
	s.writeJSON(w, http.StatusOK, entry)
}

func (s *Server) handleSessionReset(w http.ResponseWriter, r *http.Request) {
	if !allowMethods(w, r, http.MethodPost) {
		return
	}
	s.store.ResetSession()
	w.WriteHeader(http.StatusNoContent)
}

// allowMethods writes 405 and returns false unless r uses one of methods.
func allowMethods(w http.ResponseWriter, r *http.Request, methods ...string) bool {
	for _, m := range methods {
		if r.Method == m {
			return true
		}
	}
	w.Header().Set("Allow", strings.Join(methods, ", "))
	http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
	return false
}

func decodeBody(w http.ResponseWriter, r *http.Request, v any) error {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxRequestBody))
	dec.DisallowUnknownFields()
	if err := dec.Decode(v); err != nil {
		return errors.New("invalid JSON body: " + err.Error())
	}
	return nil
}

func (s *Server) writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.logger.Error("failed to encode response", "error", err)
	}
}
