package lifecycle

import (
	"os"
	"path/filepath"
	"testing"
)

func TestClientMapperResolvesByPriority(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "client_mapping.json")
	body := `{
		"mappings": {
			"by_caller_number": {"090": "caller-client"},
			"by_destination_number": {"0501234": "dest-client"},
			"by_sip_header": {"X-Liberty-Client": "header-client"}
		},
		"default_client_id": "000"
	}`
	if err := os.WriteFile(path, []byte(body), 0o644); err != nil {
		t.Fatal(err)
	}

	m := NewClientMapper(path, nil)

	if got := m.Resolve("explicit", "09011112222", "05012345678", map[string]string{"X-Liberty-Client": "header-client"}, ""); got != "explicit" {
		t.Errorf("explicit override should win, got %q", got)
	}
	if got := m.Resolve("", "09011112222", "05012345678", map[string]string{"X-Liberty-Client": "header-client"}, ""); got != "header-client" {
		t.Errorf("SIP header should beat destination/caller, got %q", got)
	}
	if got := m.Resolve("", "09011112222", "05012345678", nil, ""); got != "dest-client" {
		t.Errorf("destination number should beat caller number, got %q", got)
	}
	if got := m.Resolve("", "09011112222", "", nil, ""); got != "caller-client" {
		t.Errorf("caller number prefix should match, got %q", got)
	}
	if got := m.Resolve("", "", "", nil, "fallback-client"); got != "fallback-client" {
		t.Errorf("fallback should be used when nothing matches, got %q", got)
	}
	if got := m.Resolve("", "", "", nil, ""); got != "000" {
		t.Errorf("default_client_id should be the last resort, got %q", got)
	}
}

func TestClientMapperMissingFileUsesDefault(t *testing.T) {
	m := NewClientMapper(filepath.Join(t.TempDir(), "missing.json"), nil)
	if got := m.Resolve("", "", "", nil, ""); got != "000" {
		t.Errorf("expected default 000 for a missing mapping file, got %q", got)
	}
}

func TestProfileLoaderFallsBackToDefault(t *testing.T) {
	l := NewProfileLoader(t.TempDir(), nil)
	p := l.Load("999")
	if p.ClientID != "999" || p.ClientName != "Default" {
		t.Errorf("expected default profile for unknown client, got %+v", p)
	}
}

func TestRegistryRegisterGetRemove(t *testing.T) {
	r := NewRegistry()
	s := &Session{CallID: "call-1"}
	r.Register(s)
	if got, ok := r.Get("call-1"); !ok || got != s {
		t.Fatalf("expected to retrieve registered session, got %+v ok=%v", got, ok)
	}
	if r.Active() != 1 {
		t.Fatalf("expected 1 active call, got %d", r.Active())
	}
	r.Remove("call-1")
	if _, ok := r.Get("call-1"); ok {
		t.Fatalf("expected session removed")
	}
	if r.Active() != 0 {
		t.Fatalf("expected 0 active calls after removal, got %d", r.Active())
	}
}
