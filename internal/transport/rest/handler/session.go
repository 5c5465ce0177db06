package handler

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"

	"interviewlab/internal/cache"
	"interviewlab/internal/repository"
	"interviewlab/internal/session"
	"interviewlab/internal/vision"
)

// SessionHandler exposes the session lifecycle over REST.
type SessionHandler struct {
	manager     *session.Manager
	sessions    repository.SessionRepo
	metrics     repository.MetricsRepo
	liveMetrics cache.MetricsCache
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(manager *session.Manager, sessions repository.SessionRepo, metrics repository.MetricsRepo, liveMetrics cache.MetricsCache) *SessionHandler {
	return &SessionHandler{
		manager:     manager,
		sessions:    sessions,
		metrics:     metrics,
		liveMetrics: liveMetrics,
	}
}

// Create handles POST /v1/sessions
func (h *SessionHandler) Create(w http.ResponseWriter, r *http.Request) {
	var params session.Params
	if err := json.NewDecoder(r.Body).Decode(&params); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	s, err := h.manager.Create(r.Context(), params)
	if err != nil {
		writeError(w, http.StatusBadRequest, err.Error())
		return
	}
	writeJSON(w, http.StatusCreated, s)
}

// Get handles GET /v1/sessions/{sessionId}
func (h *SessionHandler) Get(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	s, err := h.sessions.GetByID(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if s == nil {
		writeError(w, http.StatusNotFound, "session not found")
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Start handles POST /v1/sessions/{sessionId}/start. Frames for the session
// are pushed by the client through the frames endpoint.
func (h *SessionHandler) Start(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	if err := h.manager.Start(r.Context(), id, nil); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "in_progress"})
}

// Pause handles POST /v1/sessions/{sessionId}/pause
func (h *SessionHandler) Pause(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	if err := h.manager.Pause(r.Context(), id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "paused"})
}

// Resume handles POST /v1/sessions/{sessionId}/resume
func (h *SessionHandler) Resume(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	if err := h.manager.Resume(r.Context(), id); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "in_progress"})
}

// Complete handles POST /v1/sessions/{sessionId}/complete
func (h *SessionHandler) Complete(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	s, err := h.manager.Complete(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

// Abandon handles POST /v1/sessions/{sessionId}/abandon
func (h *SessionHandler) Abandon(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	s, err := h.manager.Abandon(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	writeJSON(w, http.StatusOK, s)
}

type framePayload struct {
	Width     int    `json:"width"`
	Height    int    `json:"height"`
	Timestamp int64  `json:"timestamp"`
	Data      []byte `json:"data"`
}

// IngestFrame handles POST /v1/sessions/{sessionId}/frames
func (h *SessionHandler) IngestFrame(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	var p framePayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid frame payload")
		return
	}

	frame := vision.Frame{Data: p.Data, Width: p.Width, Height: p.Height, Timestamp: p.Timestamp}
	if err := h.manager.IngestFrame(r.Context(), id, frame); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusAccepted)
}

type responseStartPayload struct {
	QuestionID string `json:"questionId"`
}

// BeginResponse handles POST /v1/sessions/{sessionId}/responses/start
func (h *SessionHandler) BeginResponse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	var p responseStartPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.manager.BeginResponse(id, p.QuestionID); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type responseEndPayload struct {
	Transcription string `json:"transcription"`
}

// EndResponse handles POST /v1/sessions/{sessionId}/responses/end
func (h *SessionHandler) EndResponse(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	var p responseEndPayload
	if err := json.NewDecoder(r.Body).Decode(&p); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if err := h.manager.EndResponse(r.Context(), id, p.Transcription); err != nil {
		writeError(w, http.StatusConflict, err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// LiveMetrics handles GET /v1/sessions/{sessionId}/metrics/live. The cache
// answers for recently published snapshots; a live aggregator answers
// directly when the cache is cold.
func (h *SessionHandler) LiveMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	cached, err := h.liveMetrics.GetLive(r.Context(), id)
	if err == nil && cached != nil {
		writeJSON(w, http.StatusOK, cached)
		return
	}

	if metrics, ok := h.manager.LiveMetrics(id); ok {
		writeJSON(w, http.StatusOK, metrics)
		return
	}
	writeError(w, http.StatusNotFound, "no live metrics for session")
}

// MetricsHistory handles GET /v1/sessions/{sessionId}/metrics/history: the
// bounded per-frame snapshot history of a live session.
func (h *SessionHandler) MetricsHistory(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	snapshots, ok := h.manager.SnapshotHistory(id)
	if !ok {
		writeError(w, http.StatusNotFound, "session is not live")
		return
	}
	writeJSON(w, http.StatusOK, snapshots)
}

// FinalMetrics handles GET /v1/sessions/{sessionId}/metrics
func (h *SessionHandler) FinalMetrics(w http.ResponseWriter, r *http.Request) {
	id := mux.Vars(r)["sessionId"]

	metrics, err := h.metrics.Get(r.Context(), id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, err.Error())
		return
	}
	if metrics == nil {
		writeError(w, http.StatusNotFound, "metrics not found")
		return
	}
	writeJSON(w, http.StatusOK, metrics)
}
