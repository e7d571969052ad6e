package esl

import "testing"

func TestParseEventName(t *testing.T) {
	body := "Event-Name: CHANNEL_EXECUTE_COMPLETE\nUnique-ID: abc-123\n"
	if got := parseEventName(body); got != "CHANNEL_EXECUTE_COMPLETE" {
		t.Errorf("expected CHANNEL_EXECUTE_COMPLETE, got %q", got)
	}
}

func TestParseEventNameMissing(t *testing.T) {
	if got := parseEventName("Unique-ID: abc-123\n"); got != "" {
		t.Errorf("expected empty event name, got %q", got)
	}
}

func TestHeaders2Map(t *testing.T) {
	h := map[string][]string{
		"Unique-ID":  {"abc-123"},
		"Event-Name": {"CHANNEL_EXECUTE_COMPLETE"},
		"Empty":      {},
	}
	out := headers2map(h)
	if out["Unique-ID"] != "abc-123" || out["Event-Name"] != "CHANNEL_EXECUTE_COMPLETE" {
		t.Fatalf("unexpected map: %+v", out)
	}
	if _, ok := out["Empty"]; ok {
		t.Errorf("expected empty-valued header to be skipped")
	}
}
