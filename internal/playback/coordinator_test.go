package playback

import "testing"

func TestDuplicateSuppressWindowConstant(t *testing.T) {
	if duplicateSuppressWindow.Seconds() != 10 {
		t.Fatalf("expected a 10s duplicate suppression window, got %s", duplicateSuppressWindow)
	}
}

func TestCompletionTimeoutConstant(t *testing.T) {
	if completionTimeout.Minutes() != 2 {
		t.Fatalf("expected a 2m completion timeout fallback, got %s", completionTimeout)
	}
}
