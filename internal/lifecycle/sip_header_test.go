package lifecycle

import "testing"

func TestExtractSIPUserFromURI(t *testing.T) {
	got := extractSIPUser("<sip:09011112222@192.168.1.10;user=phone>")
	if got != "09011112222" {
		t.Errorf("expected extracted user 09011112222, got %q", got)
	}
}

func TestExtractSIPUserPassesThroughPlainNumber(t *testing.T) {
	got := extractSIPUser("09011112222")
	if got != "09011112222" {
		t.Errorf("expected passthrough for non-SIP-URI value, got %q", got)
	}
}
