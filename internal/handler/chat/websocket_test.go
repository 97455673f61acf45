package chat_test

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"testing"

	"github.com/gorilla/websocket"
)

type wsFrame struct {
	Type string `json:"type"`
	Data string `json:"data,omitempty"`
}

func dialChat(t *testing.T, f *fixture) *websocket.Conn {
	t.Helper()

	url := "ws" + strings.TrimPrefix(f.relay.URL, "http") + "/api/chat/ws"
	dialer := websocket.Dialer{Jar: f.client.Jar}
	conn, resp, err := dialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial err: %v", err)
	}
	if resp.StatusCode != http.StatusSwitchingProtocols {
		t.Fatalf("unexpected upgrade status: %d", resp.StatusCode)
	}
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readFrame(t *testing.T, conn *websocket.Conn) wsFrame {
	t.Helper()

	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read frame err: %v", err)
	}
	var frame wsFrame
	if err := json.Unmarshal(data, &frame); err != nil {
		t.Fatalf("decode frame %q: %v", data, err)
	}
	return frame
}

func TestWebSocketRelaysChunksThenDone(t *testing.T) {
	f := newFixture(t)
	conn := dialChat(t, f)

	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	want := []string{"a", "b", "c"}
	for _, expected := range want {
		frame := readFrame(t, conn)
		if frame.Type != "chunk" || frame.Data != expected {
			t.Fatalf("unexpected frame: %+v, want chunk %q", frame, expected)
		}
	}

	done := readFrame(t, conn)
	if done.Type != "done" {
		t.Fatalf("expected done frame, got %+v", done)
	}
}

func TestWebSocketRejectsEmptyMessage(t *testing.T) {
	f := newFixture(t)
	conn := dialChat(t, f)

	if err := conn.WriteJSON(map[string]string{"message": ""}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "error" {
		t.Fatalf("expected error frame, got %+v", frame)
	}

	// Connection survives the rejected message.
	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write after error err: %v", err)
	}
	frame = readFrame(t, conn)
	if frame.Type != "chunk" {
		t.Fatalf("expected chunk frame after recovery, got %+v", frame)
	}
}

func TestWebSocketMidStreamFailureEmitsErrorFrame(t *testing.T) {
	f := newFixture(t)
	f.streamHandler = func(w http.ResponseWriter, r *http.Request) {
		fmt.Fprint(w, "partial\n")
		w.(http.Flusher).Flush()
		panic(http.ErrAbortHandler)
	}
	conn := dialChat(t, f)

	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "chunk" || frame.Data != "partial" {
		t.Fatalf("expected the pre-failure chunk, got %+v", frame)
	}

	frame = readFrame(t, conn)
	if frame.Type != "error" || frame.Data != "stream interrupted" {
		t.Fatalf("expected stream-interrupted error frame, got %+v", frame)
	}
}

func TestWebSocketReportsUpstreamError(t *testing.T) {
	f := newFixture(t)
	f.streamHandler = func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "boom", http.StatusServiceUnavailable)
	}
	conn := dialChat(t, f)

	if err := conn.WriteJSON(map[string]string{"message": "hello"}); err != nil {
		t.Fatalf("write err: %v", err)
	}

	frame := readFrame(t, conn)
	if frame.Type != "error" {
		t.Fatalf("expected error frame, got %+v", frame)
	}
}
