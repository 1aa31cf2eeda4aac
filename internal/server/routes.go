// -----------------------------------------------------------------------
// setupRoutes exposes the engine's RPC surface over HTTP: one POST endpoint
// per method under /rpc/, plus the live status stream under /rpc/stream.
// -----------------------------------------------------------------------

package server

import (
	"encoding/json"
	"net/http"

	"github.com/go-playground/validator/v10"
	"github.com/ternarybob/workqueue/internal/models"
	"github.com/ternarybob/workqueue/internal/queue/matcher"
)

var rpcValidator = validator.New()

// setupRoutes configures all HTTP routes
func (s *Server) setupRoutes() *http.ServeMux {
	mux := http.NewServeMux()

	mux.HandleFunc("/rpc/stream", s.hub.HandleStream)
	mux.HandleFunc("/rpc/", s.handleRPC)

	mux.HandleFunc("/api/health", s.handleHealth)
	mux.HandleFunc("/api/version", s.handleVersion)
	mux.HandleFunc("/api/shutdown", s.ShutdownHandler)

	return mux
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (s *Server) handleVersion(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"version": s.app.Config.Environment})
}

// handleRPC dispatches POST /rpc/{method} to the matching engine call.
func (s *Server) handleRPC(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}

	method := r.URL.Path[len("/rpc/"):]
	ctx := r.Context()

	switch method {
	case "queueWork":
		var req struct {
			RequestName string `json:"request_name" validate:"required"`
			TeamName    string `json:"team_name" validate:"required"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		if err := s.app.Engine.QueueWork(ctx, req.RequestName, req.TeamName); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "queued"})

	case "pullWork":
		var req struct {
			Resources map[string]int `json:"resources"`
		}
		if !decode(w, r, &req) {
			return
		}
		elements, err := s.app.Engine.PullWork(ctx, req.Resources)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, elements)

	case "getWork":
		var req matcher.Offer
		if !decode(w, r, &req) {
			return
		}
		elements, err := s.app.Engine.GetWork(ctx, req)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, elements)

	case "status":
		var req struct {
			RequestName string `json:"request_name" validate:"required"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		elements, err := s.app.Engine.Status(ctx, req.RequestName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, elements)

	case "statusInbox":
		var req struct {
			RequestName string `json:"request_name" validate:"required"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		inboxes, err := s.app.Engine.StatusInbox(ctx, req.RequestName)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, inboxes)

	case "setStatus":
		var req struct {
			Ids    []string      `json:"ids" validate:"required,min=1"`
			Status models.Status `json:"status" validate:"required"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		if err := s.app.Engine.SetStatus(ctx, req.Ids, req.Status); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "setPriority":
		var req struct {
			Priority  int      `json:"priority"`
			Workflows []string `json:"workflows"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := s.app.Engine.SetPriority(ctx, req.Priority, req.Workflows); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "resetWork":
		var req struct {
			Ids []string `json:"ids"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := s.app.Engine.ResetWork(ctx, req.Ids); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "cancelWork":
		var req struct {
			RequestName string `json:"request_name" validate:"required"`
		}
		if !decodeValidated(w, r, &req) {
			return
		}
		if err := s.app.Engine.CancelWork(ctx, req.RequestName); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "doneWork":
		var req struct {
			Ids []string `json:"ids"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := s.app.Engine.DoneWork(ctx, req.Ids); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "closeWork":
		var req struct {
			Workflows []string `json:"workflows"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := s.app.Engine.CloseWork(ctx, req.Workflows); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "deleteWorkflows":
		var req struct {
			Requests []string `json:"requests"`
		}
		if !decode(w, r, &req) {
			return
		}
		if err := s.app.Engine.DeleteWorkflows(ctx, req.Requests); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "performQueueCleanupActions":
		if err := s.app.Engine.PerformQueueCleanupActions(ctx); err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})

	case "monitorWorkQueue":
		counts, err := s.app.Engine.MonitorWorkQueue(ctx)
		if err != nil {
			writeError(w, err)
			return
		}
		writeJSON(w, http.StatusOK, counts)

	default:
		http.Error(w, "unknown rpc method", http.StatusNotFound)
	}
}

func decode(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if r.Body == nil {
		return true
	}
	defer r.Body.Close()
	dec := json.NewDecoder(r.Body)
	if err := dec.Decode(v); err != nil && err.Error() != "EOF" {
		http.Error(w, "invalid request body: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

// decodeValidated decodes the request body and rejects it with 400 if it
// fails the request struct's validator tags.
func decodeValidated(w http.ResponseWriter, r *http.Request, v interface{}) bool {
	if !decode(w, r, v) {
		return false
	}
	if err := rpcValidator.Struct(v); err != nil {
		http.Error(w, "invalid request: "+err.Error(), http.StatusBadRequest)
		return false
	}
	return true
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, err error) {
	writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
}
