// Package initserver implements the softswitch -> engine init channel
// (§6): JSON call-setup frames accepted over a gin HTTP endpoint and, per
// the spec's "local UNIX or TCP socket" requirement, an additional raw
// Unix-domain-socket listener for softswitch deployments that dial a
// socket path directly instead of issuing an HTTP request.
//
// Grounded on the teacher's gin handler shape
// (internal/channel/telephony/internal/asterisk/telephony.go:
// StatusCallback — read raw body, parse JSON, fall back gracefully,
// extract fields defensively) generalized from a status-callback handler
// to a call-init handler.
package initserver

import (
	"bufio"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"os"

	"github.com/gin-gonic/gin"

	"github.com/libertycall/ivr-gateway/internal/lifecycle"
	"github.com/libertycall/ivr-gateway/internal/logging"
)

// initFrame is the softswitch's call-setup JSON payload (§6).
type initFrame struct {
	Op                string            `json:"op"`
	CallID            string            `json:"call_id"`
	ChannelUUID       string            `json:"channel_uuid"`
	CallerNumber      string            `json:"caller_number"`
	DestinationNumber string            `json:"destination_number"`
	ClientID          string            `json:"client_id"`
	SIPHeaders        map[string]string `json:"sip_headers"`
}

// InitHandler is implemented by the Call Lifecycle Manager. The softswitch
// multiplexes init, transfer, and hangup RPCs over this same channel
// (initFrame.Op), matching §4.10's "handles init/transfer/hangup RPCs from
// the softswitch".
type InitHandler interface {
	OnInit(req lifecycle.InitRequest) (*lifecycle.Session, lifecycle.ClientProfile)
	OnHangup(callID string) error
	OnTransfer(callID string) error
}

// Server hosts both the HTTP and Unix-socket init surfaces.
type Server struct {
	handler    InitHandler
	log        logging.Logger
	httpAddr   string
	socketPath string
}

// New builds a Server. httpAddr and socketPath may each be empty to
// disable that surface.
func New(handler InitHandler, httpAddr, socketPath string, log logging.Logger) *Server {
	if log == nil {
		log = logging.NewNop()
	}
	return &Server{handler: handler, log: log, httpAddr: httpAddr, socketPath: socketPath}
}

// ListenAndServeHTTP starts the gin-based init endpoint. Blocks; run in
// its own goroutine.
func (s *Server) ListenAndServeHTTP() error {
	gin.SetMode(gin.ReleaseMode)
	r := gin.New()
	r.POST("/init", s.handleHTTPInit)
	return r.Run(s.httpAddr)
}

func (s *Server) handleHTTPInit(c *gin.Context) {
	var frame initFrame
	if err := c.ShouldBindJSON(&frame); err != nil {
		s.log.Warnw("init_frame_parse_failed", "error", err)
		c.JSON(http.StatusBadRequest, gin.H{"ok": false, "error": err.Error()})
		return
	}
	s.dispatch(frame)
	c.JSON(http.StatusOK, gin.H{"ok": true})
}

// ListenAndServeSocket accepts JSON init frames over a Unix-domain
// socket, one frame per line, replying `{"ok":true}` per frame.
// Blocks; run in its own goroutine.
func (s *Server) ListenAndServeSocket() error {
	if s.socketPath == "" {
		return nil
	}
	_ = os.Remove(s.socketPath)
	ln, err := net.Listen("unix", s.socketPath)
	if err != nil {
		return fmt.Errorf("initserver: listen unix %s: %w", s.socketPath, err)
	}
	defer ln.Close()

	for {
		conn, err := ln.Accept()
		if err != nil {
			return fmt.Errorf("initserver: accept: %w", err)
		}
		go s.handleSocketConn(conn)
	}
}

func (s *Server) handleSocketConn(conn net.Conn) {
	defer conn.Close()
	reader := bufio.NewReader(conn)
	for {
		line, err := reader.ReadBytes('\n')
		if len(line) > 0 {
			var frame initFrame
			if err := json.Unmarshal(line, &frame); err != nil {
				s.log.Warnw("init_socket_frame_parse_failed", "error", err)
			} else {
				s.dispatch(frame)
			}
			if _, werr := conn.Write([]byte(`{"ok":true}` + "\n")); werr != nil {
				return
			}
		}
		if err != nil {
			return
		}
	}
}

func (s *Server) dispatch(frame initFrame) {
	switch frame.Op {
	case "hangup":
		if err := s.handler.OnHangup(frame.CallID); err != nil {
			s.log.Warnw("hangup_rpc_failed", "call_id", frame.CallID, "error", err)
		}
	case "transfer":
		if err := s.handler.OnTransfer(frame.CallID); err != nil {
			s.log.Warnw("transfer_rpc_failed", "call_id", frame.CallID, "error", err)
		}
	default:
		s.handler.OnInit(lifecycle.InitRequest{
			CallID:            frame.CallID,
			ChannelUUID:       frame.ChannelUUID,
			CallerNumber:      frame.CallerNumber,
			DestinationNumber: frame.DestinationNumber,
			SIPHeaders:        frame.SIPHeaders,
			ExplicitClientID:  frame.ClientID,
		})
	}
}
