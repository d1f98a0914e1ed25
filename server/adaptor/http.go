package adaptor

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/ridewire/ridewire/server/domain"
)

// Handler serves the request/response transport: send, history, call action.
type Handler struct {
	uc     Usecase
	logger *slog.Logger
}

func NewHandler(uc Usecase, logger *slog.Logger) *Handler {
	return &Handler{uc: uc, logger: logger}
}

// NewRouter wires the HTTP and WebSocket transports onto one mux.
func NewRouter(h *Handler, ws *WSHandler) http.Handler {
	mux := http.NewServeMux()

	mux.HandleFunc("/v1/messages", h.Messages)
	mux.HandleFunc("/v1/call", h.Call)
	mux.HandleFunc("/v1/call/state", h.CallState)
	mux.HandleFunc("/v1/call/history", h.CallHistory)
	mux.HandleFunc("/v1/stats", h.StatsHandler)
	mux.HandleFunc("/v1/healthz", h.Healthz)
	mux.HandleFunc("/v1/ws", ws.Serve)

	return mux
}

func (h *Handler) Messages(w http.ResponseWriter, r *http.Request) {
	switch r.Method {
	case http.MethodPost:
		h.sendMessage(w, r)
	case http.MethodGet:
		h.listMessages(w, r)
	default:
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
	}
}

func (h *Handler) sendMessage(w http.ResponseWriter, r *http.Request) {
	var req sendRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	role, err := domain.ParseRole(req.SenderRole)
	if err != nil {
		h.writeError(w, err)
		return
	}
	msg, err := h.uc.SendMessage(req.BookingCode, role, req.Body)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusCreated, toMessageJSON(msg))
}

func (h *Handler) listMessages(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := 0
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "bad limit"})
			return
		}
		limit = n
	}

	msgs, next, err := h.uc.Messages(q.Get("booking_code"), limit, q.Get("cursor"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := listResponse{Messages: make([]messageJSON, 0, len(msgs)), NextCursor: next}
	for _, msg := range msgs {
		out.Messages = append(out.Messages, toMessageJSON(msg))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) Call(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	var req callRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "malformed request body"})
		return
	}
	actor, err := domain.ParseRole(req.ActorRole)
	if err != nil {
		h.writeError(w, err)
		return
	}
	action, err := domain.ParseCallAction(req.Action)
	if err != nil {
		h.writeError(w, err)
		return
	}
	callType, err := domain.ParseCallType(req.CallType)
	if err != nil {
		h.writeError(w, err)
		return
	}
	status, err := h.uc.CallAction(req.BookingCode, actor, action, callType, req.ClientDuration)
	if err != nil {
		h.writeError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, toCallResponse(status))
}

func (h *Handler) CallState(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	bookingCode := r.URL.Query().Get("booking_code")
	if bookingCode == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "missing booking_code"})
		return
	}
	writeJSON(w, http.StatusOK, map[string]string{"state": h.uc.CallState(bookingCode).String()})
}

func (h *Handler) CallHistory(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		writeJSON(w, http.StatusMethodNotAllowed, map[string]string{"error": "method not allowed"})
		return
	}
	recs, err := h.uc.CallHistory(r.URL.Query().Get("booking_code"))
	if err != nil {
		h.writeError(w, err)
		return
	}
	out := callHistoryResponse{Calls: make([]callRecordJSON, 0, len(recs))}
	for _, rec := range recs {
		out.Calls = append(out.Calls, toCallRecordJSON(rec))
	}
	writeJSON(w, http.StatusOK, out)
}

func (h *Handler) StatsHandler(w http.ResponseWriter, r *http.Request) {
	stats := h.uc.Stats()
	writeJSON(w, http.StatusOK, map[string]int{
		"active_connections": stats.ActiveConnections,
		"active_bookings":    stats.ActiveBookings,
	})
}

func (h *Handler) Healthz(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// writeError maps the error taxonomy onto status codes: deterministic caller
// errors are 4xx and must not be retried, store failures are 503 and may be.
func (h *Handler) writeError(w http.ResponseWriter, err error) {
	var invalid domain.InvalidTransitionError
	switch {
	case domain.IsValidation(err):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.As(err, &invalid), errors.Is(err, domain.ErrCallAlreadyActive):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	default:
		h.logger.Error("request failed", "error", err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]any{"error": err.Error(), "retryable": true})
	}
}

func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(payload); err != nil {
		http.Error(w, "encoding error", http.StatusInternalServerError)
	}
}
