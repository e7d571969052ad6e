package rtpserver

import (
	"net"
	"sync"
	"testing"
	"time"

	"github.com/pion/rtp"
)

type fakePortMap struct {
	callID string
}

func (f fakePortMap) CallIDForPort(port int) (string, bool) {
	return f.callID, f.callID != ""
}

func TestServeDispatchesResolvedFrames(t *testing.T) {
	var mu sync.Mutex
	var received []byte
	var gotCallID string

	handler := func(callID string, payload []byte) {
		mu.Lock()
		defer mu.Unlock()
		gotCallID = callID
		received = append([]byte(nil), payload...)
	}

	srv, err := New(0, fakePortMap{callID: "call-1"}, handler, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	defer srv.Close()

	go srv.Serve()

	pkt := rtp.Packet{
		Header:  rtp.Header{Version: 2, SequenceNumber: 1, Timestamp: 160, SSRC: 1},
		Payload: []byte{1, 2, 3, 4},
	}
	raw, err := pkt.Marshal()
	if err != nil {
		t.Fatalf("marshal rtp packet: %v", err)
	}

	client, err := net.Dial("udp", srv.conn.LocalAddr().String())
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer client.Close()
	if _, err := client.Write(raw); err != nil {
		t.Fatalf("write: %v", err)
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
	if gotCallID != "call-1" {
		t.Fatalf("expected call-1, got %q", gotCallID)
	}
	if string(received) != "\x01\x02\x03\x04" {
		t.Fatalf("unexpected payload: %v", received)
	}
}
