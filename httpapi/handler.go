// Package httpapi exposes the workflow engine over HTTP for presentation
// layers. The surface is the caller-facing protocol only: submit a
// question, submit a decision, read the session snapshot.
package httpapi

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/querytrio/querytrio/workflow"
)

// maxBodySize limits request body size to prevent DoS.
const maxBodySize = 1 << 20 // 1 MB

// Handler provides the HTTP endpoints for one engine's session.
type Handler struct {
	engine *workflow.Engine
	logger *slog.Logger
}

// NewHandler creates an HTTP handler wrapping the engine.
func NewHandler(engine *workflow.Engine, logger *slog.Logger) *Handler {
	if logger == nil {
		logger = slog.Default()
	}
	return &Handler{engine: engine, logger: logger}
}

// Register registers the API endpoints on the mux.
func (h *Handler) Register(mux *http.ServeMux) {
	// POST /session/question - open a new round
	mux.HandleFunc("POST /session/question", h.handleQuestion)

	// POST /session/decision - execute, regenerate, or cancel
	mux.HandleFunc("POST /session/decision", h.handleDecision)

	// GET /session - current session snapshot
	mux.HandleFunc("GET /session", h.handleSnapshot)

	// GET /healthz - liveness probe
	mux.HandleFunc("GET /healthz", h.handleHealthz)

	// GET /metrics - Prometheus metrics
	mux.Handle("GET /metrics", promhttp.Handler())
}

// QuestionRequest is the request body for POST /session/question.
type QuestionRequest struct {
	Question string `json:"question"`
}

// RoundResponse is the response for question and decision submissions.
// Error is set when the round advanced to a failure; rejected inputs get
// an error status instead.
type RoundResponse struct {
	*workflow.RoundResult
	Error string `json:"error,omitempty"`
}

func (h *Handler) handleQuestion(w http.ResponseWriter, r *http.Request) {
	var req QuestionRequest
	if !h.decodeBody(w, r, &req) {
		return
	}

	res, err := h.engine.SubmitQuestion(r.Context(), req.Question)
	h.writeRound(w, res, err)
}

func (h *Handler) handleDecision(w http.ResponseWriter, r *http.Request) {
	var decision workflow.Decision
	if !h.decodeBody(w, r, &decision) {
		return
	}

	res, err := h.engine.SubmitDecision(r.Context(), decision)
	h.writeRound(w, res, err)
}

func (h *Handler) handleSnapshot(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, h.engine.Snapshot())
}

func (h *Handler) handleHealthz(w http.ResponseWriter, r *http.Request) {
	h.writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

func (h *Handler) decodeBody(w http.ResponseWriter, r *http.Request, v any) bool {
	r.Body = http.MaxBytesReader(w, r.Body, maxBodySize)
	if err := json.NewDecoder(r.Body).Decode(v); err != nil {
		h.writeError(w, http.StatusBadRequest, "invalid request body: "+err.Error())
		return false
	}
	return true
}

// writeRound maps engine outcomes onto HTTP statuses. A nil result means
// the input was rejected before the round advanced; a non-nil result with
// an error means the round itself failed and the caller gets the terminal
// phase alongside the error text.
func (h *Handler) writeRound(w http.ResponseWriter, res *workflow.RoundResult, err error) {
	if res != nil {
		resp := RoundResponse{RoundResult: res}
		if err != nil {
			resp.Error = err.Error()
		}
		h.writeJSON(w, http.StatusOK, resp)
		return
	}

	var phaseErr *workflow.InvalidPhaseError
	var originErr *workflow.UnknownOriginError
	switch {
	case errors.Is(err, workflow.ErrBusy):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &phaseErr):
		h.writeError(w, http.StatusConflict, err.Error())
	case errors.As(err, &originErr):
		h.writeError(w, http.StatusNotFound, err.Error())
	case err != nil:
		h.writeError(w, http.StatusBadRequest, err.Error())
	default:
		h.logger.Error("round returned neither result nor error")
		h.writeError(w, http.StatusInternalServerError, "internal error")
	}
}

func (h *Handler) writeJSON(w http.ResponseWriter, status int, data any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(data); err != nil {
		h.logger.Warn("Failed to write JSON response", "error", err)
	}
}

func (h *Handler) writeError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(map[string]string{"error": message})
}
