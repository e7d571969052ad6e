// Package rtpserver implements the RTP UDP ingress transport (§6): one
// bound UDP socket receiving 20ms mono 8kHz mu-law frames, RFC 3550
// headers stripped via pion/rtp, demultiplexed to call_id by source port.
//
// Grounded on the teacher's `readRemoteAudio` reader-goroutine shape
// (internal/channel/webrtc/streamer.go): a single read loop, per-packet
// decode, and a bounded non-blocking handoff — generalized here from a
// WebRTC track to a raw UDP socket and from Opus to mu-law frames.
package rtpserver

import (
	"fmt"
	"net"

	"github.com/pion/rtp"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// FrameHandler receives one 20ms mu-law frame for a resolved call_id. The
// audio pipeline (internal/audio) is wired in by the caller; rtpserver
// only demultiplexes and hands off, matching §5's requirement that "the
// RTP receive path MUST NOT block on ASR or on softswitch commands."
type FrameHandler func(callID string, payload []byte)

// PortMap resolves a UDP source port to the call_id bound to it. The
// softswitch publishes this binding via its RTP info files
// (/tmp/rtp_info_*.txt); rtpinfo.Resolver scans those on a cache miss
// and maps the channel UUID it finds to a call_id.
type PortMap interface {
	CallIDForPort(port int) (string, bool)
}

// Server owns the bound UDP socket and dispatches decoded frames to
// handler, non-blocking, dropping frames for unresolvable ports.
type Server struct {
	conn    *net.UDPConn
	ports   PortMap
	handler FrameHandler
	log     logging.Logger
}

// New binds 0.0.0.0:port and returns a ready-to-run Server.
func New(port int, ports PortMap, handler FrameHandler, log logging.Logger) (*Server, error) {
	if log == nil {
		log = logging.NewNop()
	}
	addr := &net.UDPAddr{IP: net.IPv4zero, Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("rtpserver: listen %s: %w", addr, err)
	}
	return &Server{conn: conn, ports: ports, handler: handler, log: log}, nil
}

// Serve reads packets until the socket is closed. Call it in its own
// goroutine; Close unblocks it.
func (s *Server) Serve() {
	buf := make([]byte, 1500)
	for {
		n, remote, err := s.conn.ReadFromUDP(buf)
		if err != nil {
			// Closed socket (normal shutdown) or transient read error; either
			// way there's nothing useful left to do but stop.
			return
		}

		callID, ok := s.ports.CallIDForPort(remote.Port)
		if !ok {
			s.log.Debugw("rtp_unresolved_port", "port", remote.Port)
			continue
		}

		var pkt rtp.Packet
		if err := pkt.Unmarshal(buf[:n]); err != nil {
			s.log.Debugw("rtp_unmarshal_failed", "call_id", callID, "error", err)
			continue
		}
		if len(pkt.Payload) == 0 {
			continue
		}

		s.handler(callID, pkt.Payload)
	}
}

// Close releases the UDP socket.
func (s *Server) Close() error {
	return s.conn.Close()
}
