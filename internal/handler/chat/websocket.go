package chat

import (
	"bufio"
	"log"
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/astrochat/relay/internal/session"
)

type inboundFrame struct {
	Message string `json:"message"`
}

type outboundFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

// handleWebSocket relays chat over a WebSocket instead of the event stream.
// Each inbound {"message": ...} frame triggers one upstream turn whose lines
// come back as chunk frames, closed off by a done frame. Unlike the raw
// event-stream path, frames give this transport room to report errors
// explicitly.
func (h *Handler) handleWebSocket(w http.ResponseWriter, r *http.Request) {
	// The upgrader writes its own handshake headers, so a fresh session
	// cookie has to travel with the upgrade response rather than through
	// the ResponseWriter.
	state, cookie := h.sessions.Resolve(r)
	var respHeader http.Header
	if cookie != nil {
		respHeader = http.Header{"Set-Cookie": {cookie.String()}}
	}

	conn, err := h.upgrader.Upgrade(w, r, respHeader)
	if err != nil {
		log.Printf("[chat-ws] upgrade failed: %v", err)
		return
	}
	defer conn.Close()

	for {
		var frame inboundFrame
		if err := conn.ReadJSON(&frame); err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseNormalClosure) {
				log.Printf("[chat-ws] read failed: %v", err)
			}
			return
		}

		if strings.TrimSpace(frame.Message) == "" {
			if err := conn.WriteJSON(outboundFrame{Type: "error", Data: "message is required"}); err != nil {
				return
			}
			continue
		}

		if err := h.relayTurn(r, state, conn, frame.Message); err != nil {
			return
		}
	}
}

// relayTurn forwards one user turn. A non-nil return means the WebSocket
// itself is broken and the loop should stop; upstream failures are reported
// in-band and keep the connection alive.
func (h *Handler) relayTurn(r *http.Request, state *session.State, conn *websocket.Conn, message string) error {
	upstream, err := h.agentSvc.StreamMessage(r.Context(), state, message)
	if err != nil {
		log.Printf("[chat-ws] upstream call failed: %v", err)
		return conn.WriteJSON(outboundFrame{Type: "error", Data: "agent unavailable"})
	}
	defer upstream.Close()

	scanner := bufio.NewScanner(upstream)
	scanner.Buffer(make([]byte, 64*1024), 1<<20)
	for scanner.Scan() {
		if err := conn.WriteJSON(outboundFrame{Type: "chunk", Data: scanner.Text()}); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		log.Printf("[chat-ws] upstream stream ended abnormally: %v", err)
		return conn.WriteJSON(outboundFrame{Type: "error", Data: "stream interrupted"})
	}

	return conn.WriteJSON(outboundFrame{Type: "done"})
}
