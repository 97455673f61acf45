// Package chat exposes the browser-facing relay endpoints: the streaming
// message relay, the greeting, and session reset.
package chat

import (
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"

	agentservice "github.com/astrochat/relay/internal/service/agent"
	"github.com/astrochat/relay/internal/session"
	"github.com/astrochat/relay/pkg/utils"
)

// Handler relays chat messages between the browser and the remote agent.
type Handler struct {
	agentSvc *agentservice.Service
	sessions *session.Store
	upgrader websocket.Upgrader
}

// New creates the chat handler.
func New(agentSvc *agentservice.Service, sessions *session.Store) *Handler {
	return &Handler{
		agentSvc: agentSvc,
		sessions: sessions,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool {
				return true
			},
			ReadBufferSize:  1024,
			WriteBufferSize: 1024,
		},
	}
}

// RegisterRoutes wires the chat endpoints.
func (h *Handler) RegisterRoutes(r chi.Router) {
	r.Post("/chat", h.handleSend)
	r.Get("/chat/greeting", h.handleGreeting)
	r.Post("/chat/reset", h.handleReset)
	r.Get("/chat/ws", h.handleWebSocket)
}

// handleSend accepts {"message": string} and answers with the raw upstream
// line stream. The browser session cookie is attached before the stream
// starts so the header can still be written.
func (h *Handler) handleSend(w http.ResponseWriter, r *http.Request) {
	var payload struct {
		Message string `json:"message"`
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		utils.RespondError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if strings.TrimSpace(payload.Message) == "" {
		utils.RespondError(w, http.StatusBadRequest, "message is required")
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		utils.RespondError(w, http.StatusInternalServerError, "streaming unsupported")
		return
	}

	state := h.sessions.Attach(w, r)

	upstream, err := h.agentSvc.StreamMessage(r.Context(), state, payload.Message)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}
	defer upstream.Close()

	utils.SetupStreamHeaders(w)
	flusher.Flush()

	// Mid-stream failures are swallowed after partial output: the browser
	// sees the stream end, matching an agent that finished talking.
	if err := utils.ForwardLines(upstream, w, flusher); err != nil {
		log.Printf("[chat] upstream stream ended abnormally: %v", err)
	}
}

// handleGreeting lazily bootstraps the agent session and returns its welcome
// message.
func (h *Handler) handleGreeting(w http.ResponseWriter, r *http.Request) {
	state := h.sessions.Attach(w, r)

	conv, err := h.agentSvc.EnsureSession(r.Context(), state)
	if err != nil {
		respondUpstreamError(w, err)
		return
	}

	utils.RespondJSON(w, http.StatusOK, map[string]string{"message": conv.WelcomeMessage})
}

// handleReset drops the browser session's agent session and credential; the
// next message starts a fresh conversation.
func (h *Handler) handleReset(w http.ResponseWriter, r *http.Request) {
	state := h.sessions.Attach(w, r)
	state.Reset()
	utils.RespondJSON(w, http.StatusOK, map[string]string{"status": "reset"})
}

// respondUpstreamError maps pre-stream upstream failures to a non-stream
// error response.
func respondUpstreamError(w http.ResponseWriter, err error) {
	log.Printf("[chat] upstream call failed: %v", err)

	var sessionErr *agentservice.SessionError
	var streamErr *agentservice.StreamError
	switch {
	case errors.As(err, &sessionErr):
		utils.RespondError(w, http.StatusBadGateway, "agent session unavailable")
	case errors.As(err, &streamErr):
		utils.RespondError(w, http.StatusBadGateway, "agent unavailable")
	default:
		utils.RespondError(w, http.StatusBadGateway, "agent authentication failed")
	}
}
