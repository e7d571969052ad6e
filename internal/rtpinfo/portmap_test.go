package rtpinfo

import (
	"os"
	"path/filepath"
	"testing"
)

func TestResolverFindsUUIDByPort(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtp_info_abc.txt")
	content := "uuid=chan-uuid-1\nlocal=10.0.0.5:20000\nremote=203.0.113.4:30000\n"
	if err := os.WriteFile(path, []byte(content), 0o644); err != nil {
		t.Fatal(err)
	}

	resolved := map[string]string{"chan-uuid-1": "call-1"}
	r := NewResolver(filepath.Join(dir, "rtp_info_*.txt"), func(uuid string) (string, bool) {
		callID, ok := resolved[uuid]
		return callID, ok
	}, nil)

	callID, ok := r.CallIDForPort(20000)
	if !ok || callID != "call-1" {
		t.Fatalf("expected call-1, got %q (%v)", callID, ok)
	}
}

func TestResolverUnresolvedPort(t *testing.T) {
	dir := t.TempDir()
	r := NewResolver(filepath.Join(dir, "rtp_info_*.txt"), func(string) (string, bool) { return "", false }, nil)
	if _, ok := r.CallIDForPort(9999); ok {
		t.Error("expected no match for unknown port")
	}
}

func TestResolverForgetClearsCache(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "rtp_info_x.txt")
	os.WriteFile(path, []byte("uuid=u1\nlocal=0.0.0.0:21000\n"), 0o644)

	r := NewResolver(filepath.Join(dir, "rtp_info_*.txt"), func(uuid string) (string, bool) { return "call-x", true }, nil)
	if _, ok := r.CallIDForPort(21000); !ok {
		t.Fatal("expected initial resolve to succeed")
	}
	r.Forget("u1")
	r.mu.Lock()
	_, cached := r.cache[21000]
	r.mu.Unlock()
	if cached {
		t.Error("expected cache entry removed after Forget")
	}
}
