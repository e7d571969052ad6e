package wsserver

import (
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/gorilla/websocket"
)

func TestHandleConnEchoesProbeAndDispatchesAudio(t *testing.T) {
	var mu sync.Mutex
	var gotCallID string
	var gotAudio []byte

	s := New("", func(callID string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		gotCallID = callID
		gotAudio = append([]byte(nil), payload...)
	}, nil)

	ts := httptest.NewServer(http.HandlerFunc(s.handleConn))
	defer ts.Close()

	wsURL := "ws" + strings.TrimPrefix(ts.URL, "http") + "/u/call-42"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	if err := conn.WriteMessage(websocket.TextMessage, []byte("{}")); err != nil {
		t.Fatalf("write probe: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	_, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read probe reply: %v", err)
	}
	if string(data) != `{"ok":true}` {
		t.Fatalf("unexpected probe reply: %s", data)
	}

	if err := conn.WriteMessage(websocket.BinaryMessage, []byte{9, 8, 7}); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		mu.Lock()
		done := gotCallID != ""
		mu.Unlock()
		if done {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}

	mu.Lock()
	defer mu.Unlock()
	if gotCallID != "call-42" {
		t.Fatalf("expected call-42, got %q", gotCallID)
	}
	if string(gotAudio) != "\x09\x08\x07" {
		t.Fatalf("unexpected audio: %v", gotAudio)
	}
}
