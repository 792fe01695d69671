package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"

	"github.com/ankityadav/craftwatch/internal/monitor"
	"github.com/ankityadav/craftwatch/internal/stats"
	"github.com/ankityadav/craftwatch/internal/storage"
)

type ErrorResponse struct {
	Error string `json:"error"`
	Field string `json:"field,omitempty"`
}

type StatusResponse struct {
	monitor.Summary
	UptimeText string `json:"uptimeText"`
	Backend    string `json:"backend"`
}

type LoginRequest struct {
	Username string `json:"username"`
	Server   string `json:"server"`
}

type PlayerUpdate struct {
	Notes *string `json:"notes"`
	Rank  *string `json:"rank"`
}

type AlertOptions struct {
	Enabled bool `json:"enabled"`
	Desktop bool `json:"desktop"`
	Sound   bool `json:"sound"`
}

func (s *Server) sendJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		s.log.Debug().Err(err).Msg("failed to write response")
	}
}

// sendError maps monitor and storage errors onto status codes.
func (s *Server) sendError(w http.ResponseWriter, err error) {
	var verr *monitor.ValidationError
	switch {
	case errors.As(err, &verr):
		s.sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: verr.Error(), Field: verr.Field})
	case errors.Is(err, storage.ErrNotFound):
		s.sendJSON(w, http.StatusNotFound, ErrorResponse{Error: err.Error()})
	default:
		s.log.Error().Err(err).Msg("request failed")
		s.sendJSON(w, http.StatusInternalServerError, ErrorResponse{Error: err.Error()})
	}
}

func (s *Server) decode(w http.ResponseWriter, r *http.Request, v any) bool {
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		s.sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid request body"})
		return false
	}
	return true
}

func formatUptime(sum monitor.Summary) string {
	if !sum.Running {
		return "stopped"
	}
	return stats.FormatUptime(sum.Uptime)
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	sum := s.monitor.Summary()
	s.sendJSON(w, http.StatusOK, StatusResponse{
		Summary:    sum,
		UptimeText: formatUptime(sum),
		Backend:    string(s.monitor.Backend()),
	})
}

func (s *Server) handleStart(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.Start(); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]bool{"running": true})
}

func (s *Server) handleStop(w http.ResponseWriter, r *http.Request) {
	s.monitor.Stop()
	s.sendJSON(w, http.StatusOK, map[string]bool{"running": false})
}

func (s *Server) handleCycle(w http.ResponseWriter, r *http.Request) {
	s.monitor.RunCycle(r.Context())
	s.sendJSON(w, http.StatusOK, s.monitor.Servers())
}

func (s *Server) handleListServers(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.monitor.Servers())
}

func (s *Server) handleGetServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.monitor.Server(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, srv)
}

func (s *Server) handleAddServer(w http.ResponseWriter, r *http.Request) {
	var in monitor.ServerInput
	if !s.decode(w, r, &in) {
		return
	}
	srv, err := s.monitor.AddServer(in)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, srv)
}

func (s *Server) handleUpdateServer(w http.ResponseWriter, r *http.Request) {
	var in monitor.ServerInput
	if !s.decode(w, r, &in) {
		return
	}
	srv, err := s.monitor.UpdateServer(chi.URLParam(r, "id"), in)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, srv)
}

func (s *Server) handleRemoveServer(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.RemoveServer(chi.URLParam(r, "id")); err != nil {
		s.sendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleToggleServer(w http.ResponseWriter, r *http.Request) {
	srv, err := s.monitor.ToggleServer(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, srv)
}

func (s *Server) handleListPlayers(w http.ResponseWriter, r *http.Request) {
	players := s.monitor.Players()
	if r.URL.Query().Get("online") == "true" {
		online := players[:0]
		for _, p := range players {
			if p.IsOnline {
				online = append(online, p)
			}
		}
		players = online
	}
	s.sendJSON(w, http.StatusOK, players)
}

func (s *Server) handleGetPlayer(w http.ResponseWriter, r *http.Request) {
	p, err := s.monitor.Player(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, p)
}

func (s *Server) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	p, err := s.monitor.PlayerLogin(req.Username, req.Server)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, p)
}

func (s *Server) handleLogout(w http.ResponseWriter, r *http.Request) {
	var req LoginRequest
	if !s.decode(w, r, &req) {
		return
	}
	ok, err := s.monitor.PlayerLogout(req.Username)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]bool{"loggedOut": ok})
}

func (s *Server) handleUpdatePlayer(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	var req PlayerUpdate
	if !s.decode(w, r, &req) {
		return
	}

	p, err := s.monitor.Player(id)
	if req.Notes != nil && err == nil {
		p, err = s.monitor.SetPlayerNotes(id, *req.Notes)
	}
	if req.Rank != nil && err == nil {
		p, err = s.monitor.SetPlayerRank(id, *req.Rank)
	}
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, p)
}

func (s *Server) handleToggleFavorite(w http.ResponseWriter, r *http.Request) {
	p, err := s.monitor.ToggleFavorite(chi.URLParam(r, "id"))
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, p)
}

func (s *Server) handlePlayerSessions(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, err := s.monitor.Player(id); err != nil {
		s.sendError(w, err)
		return
	}
	sessions, err := s.monitor.PlayerSessions(id)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, sessions)
}

func (s *Server) handleGetSettings(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.monitor.Settings())
}

func (s *Server) handleSaveSettings(w http.ResponseWriter, r *http.Request) {
	var settings storage.Settings
	if !s.decode(w, r, &settings) {
		return
	}
	if err := s.monitor.SaveSettings(settings); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.monitor.Settings())
}

func (s *Server) handleGetAlerts(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.monitor.Alerts())
}

func (s *Server) handleAlertOptions(w http.ResponseWriter, r *http.Request) {
	var req AlertOptions
	if !s.decode(w, r, &req) {
		return
	}
	if err := s.monitor.SetAlertOptions(req.Enabled, req.Desktop, req.Sound); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.monitor.Alerts())
}

func (s *Server) handleAlertRule(w http.ResponseWriter, r *http.Request) {
	var rule storage.AlertRule
	if !s.decode(w, r, &rule) {
		return
	}
	rule.ID = chi.URLParam(r, "id")
	if err := s.monitor.SetAlertRule(rule); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, s.monitor.Alerts())
}

func (s *Server) handleMarkRead(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.MarkAlertsRead(); err != nil {
		s.sendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleClearHistory(w http.ResponseWriter, r *http.Request) {
	if err := s.monitor.ClearAlertHistory(); err != nil {
		s.sendError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	s.sendJSON(w, http.StatusOK, s.monitor.ActivityLog())
}

func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	limit := 50
	if v := r.URL.Query().Get("limit"); v != "" {
		n, err := strconv.Atoi(v)
		if err != nil || n < 0 {
			s.sendJSON(w, http.StatusBadRequest, ErrorResponse{Error: "invalid limit", Field: "limit"})
			return
		}
		limit = n
	}
	events, err := s.monitor.RecentEvents(limit)
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, events)
}

func (s *Server) handleExport(w http.ResponseWriter, r *http.Request) {
	format := r.URL.Query().Get("format")
	if format == "" {
		format = monitor.FormatJSON
	}
	data, err := s.monitor.ExportData(format)
	if err != nil {
		s.sendError(w, err)
		return
	}

	contentType := "application/json"
	if format == monitor.FormatCSV {
		contentType = "text/csv"
	}
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Content-Disposition",
		fmt.Sprintf(`attachment; filename="craftwatch-export-%s.%s"`, time.Now().Format(time.DateOnly), format))
	w.WriteHeader(http.StatusOK)
	w.Write(data)
}

func (s *Server) handleListBackups(w http.ResponseWriter, r *http.Request) {
	keys, err := s.monitor.ListBackups()
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, keys)
}

func (s *Server) handleCreateBackup(w http.ResponseWriter, r *http.Request) {
	key, err := s.monitor.Backup()
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusCreated, map[string]string{"key": key})
}

func (s *Server) handleRestoreBackup(w http.ResponseWriter, r *http.Request) {
	key := chi.URLParam(r, "key")
	if err := s.monitor.RestoreBackup(key); err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"restored": key})
}

func (s *Server) handleClearData(w http.ResponseWriter, r *http.Request) {
	key, err := s.monitor.ClearData()
	if err != nil {
		s.sendError(w, err)
		return
	}
	s.sendJSON(w, http.StatusOK, map[string]string{"backup": key})
}
