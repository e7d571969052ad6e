package initserver

import (
	"bufio"
	"net"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"

	"github.com/libertycall/ivr-gateway/internal/lifecycle"
)

type fakeHandler struct {
	got          lifecycle.InitRequest
	hangupCallID string
	transferCallID string
}

func (f *fakeHandler) OnInit(req lifecycle.InitRequest) (*lifecycle.Session, lifecycle.ClientProfile) {
	f.got = req
	return nil, lifecycle.ClientProfile{}
}

func (f *fakeHandler) OnHangup(callID string) error {
	f.hangupCallID = callID
	return nil
}

func (f *fakeHandler) OnTransfer(callID string) error {
	f.transferCallID = callID
	return nil
}

func TestHandleHTTPInitDispatches(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fh := &fakeHandler{}
	s := New(fh, "", "", nil)

	r := gin.New()
	r.POST("/init", s.handleHTTPInit)

	req := httptest.NewRequest("POST", "/init", strings.NewReader(
		`{"op":"init","call_id":"in-20260305","caller_number":"09011112222","destination_number":"05012345678"}`,
	))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fh.got.CallID != "in-20260305" || fh.got.CallerNumber != "09011112222" {
		t.Fatalf("unexpected dispatched request: %+v", fh.got)
	}
}

func TestHandleHTTPInitRoutesHangupOp(t *testing.T) {
	gin.SetMode(gin.TestMode)
	fh := &fakeHandler{}
	s := New(fh, "", "", nil)

	r := gin.New()
	r.POST("/init", s.handleHTTPInit)

	req := httptest.NewRequest("POST", "/init", strings.NewReader(`{"op":"hangup","call_id":"in-20260305"}`))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)

	if w.Code != 200 {
		t.Fatalf("expected 200, got %d: %s", w.Code, w.Body.String())
	}
	if fh.hangupCallID != "in-20260305" {
		t.Fatalf("expected OnHangup dispatched for in-20260305, got %q (OnInit got %+v)", fh.hangupCallID, fh.got)
	}
}

func TestSocketListenerRepliesOKPerFrame(t *testing.T) {
	dir := t.TempDir()
	path := dir + "/init.sock"

	fh := &fakeHandler{}
	s := New(fh, "", path, nil)
	go s.ListenAndServeSocket()

	var conn net.Conn
	var err error
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		conn, err = net.Dial("unix", path)
		if err == nil {
			break
		}
		time.Sleep(10 * time.Millisecond)
	}
	if err != nil {
		t.Fatalf("dial unix socket: %v", err)
	}
	defer conn.Close()

	if _, err := conn.Write([]byte(`{"op":"init","call_id":"in-1"}` + "\n")); err != nil {
		t.Fatalf("write: %v", err)
	}
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	reply, err := bufio.NewReader(conn).ReadString('\n')
	if err != nil {
		t.Fatalf("read reply: %v", err)
	}
	if strings.TrimSpace(reply) != `{"ok":true}` {
		t.Fatalf("unexpected reply: %q", reply)
	}
	if fh.got.CallID != "in-1" {
		t.Fatalf("expected dispatched call_id in-1, got %+v", fh.got)
	}
}
