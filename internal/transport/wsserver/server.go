// Package wsserver implements the WebSocket audio ingress transport
// (§6): URL path `/u/<call_uuid>`, binary messages carry mu-law audio
// frames, a `"{}"` text message is a liveness probe answered with
// `"{\"ok\":true}"`.
package wsserver

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// FrameHandler receives one binary audio frame for call_uuid, same
// contract as rtpserver.FrameHandler (must not block).
type FrameHandler func(callID string, payload []byte)

var upgrader = websocket.Upgrader{
	ReadBufferSize:  4096,
	WriteBufferSize: 4096,
	CheckOrigin:     func(r *http.Request) bool { return true },
}

// Server upgrades `/u/<call_uuid>` connections and dispatches frames.
type Server struct {
	addr    string
	handler FrameHandler
	log     logging.Logger
}

// New builds a Server bound to addr (e.g. ":9001").
func New(addr string, handler FrameHandler, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{addr: addr, handler: handler, log: log}
}

// ListenAndServe starts the HTTP server hosting the WebSocket endpoint. It
// blocks until the server stops (ListenAndServe's own contract); run it in
// its own goroutine.
func (s *Server) ListenAndServe() error {
	mux := http.NewServeMux()
	mux.HandleFunc("/u/", s.handleConn)
	return http.ListenAndServe(s.addr, mux)
}

func (s *Server) handleConn(w http.ResponseWriter, r *http.Request) {
	callID := strings.TrimPrefix(r.URL.Path, "/u/")
	if callID == "" {
		http.Error(w, "missing call uuid", http.StatusBadRequest)
		return
	}

	conn, err := upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.log.Warnw("ws_upgrade_failed", "call_id", callID, "error", err)
		return
	}
	defer conn.Close()

	s.log.Infow("ws_connected", "call_id", callID, "remote", r.RemoteAddr)

	for {
		msgType, data, err := conn.ReadMessage()
		if err != nil {
			s.log.Debugw("ws_read_closed", "call_id", callID, "error", err)
			return
		}

		switch msgType {
		case websocket.TextMessage:
			if string(data) == "{}" {
				if err := conn.WriteMessage(websocket.TextMessage, []byte(`{"ok":true}`)); err != nil {
					return
				}
			}
		case websocket.BinaryMessage:
			s.handler(callID, data)
		}
	}
}
