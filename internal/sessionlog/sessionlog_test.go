package sessionlog

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestWriterCreatesLayoutAndAppends(t *testing.T) {
	root := t.TempDir()
	start := time.Date(2026, 3, 5, 10, 0, 0, 0, time.UTC)

	w, err := New(root, "007", "abcdef1234567890", start, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}

	if err := w.AppendTranscript(TranscriptEvent{Timestamp: start, CallID: "abcdef1234567890", Text: "もしもし", IsFinal: true}); err != nil {
		t.Fatalf("AppendTranscript: %v", err)
	}
	if err := w.AppendTurn(start, "caller", "もしもし", "-", "greeting"); err != nil {
		t.Fatalf("AppendTurn: %v", err)
	}
	if err := w.Close(Summary{ClientID: "007", UUID: "uuid-1", StartTime: start, EndTime: start.Add(time.Minute), FinalPhase: "CLOSING"}); err != nil {
		t.Fatalf("Close: %v", err)
	}

	wantDir := filepath.Join(root, "2026-03-05", "007")
	entries, err := os.ReadDir(wantDir)
	if err != nil || len(entries) != 1 {
		t.Fatalf("expected exactly one session dir under %s, err=%v entries=%v", wantDir, err, entries)
	}

	sessionDir := filepath.Join(wantDir, entries[0].Name())
	for _, name := range []string{"transcript.jsonl", "call_log.txt", "summary.json"} {
		if _, err := os.Stat(filepath.Join(sessionDir, name)); err != nil {
			t.Errorf("expected %s to exist: %v", name, err)
		}
	}
}

func TestJanitorRemovesOldSessionDirs(t *testing.T) {
	root := t.TempDir()
	old := filepath.Join(root, time.Now().AddDate(0, 0, -40).Format("2006-01-02"))
	recent := filepath.Join(root, time.Now().Format("2006-01-02"))
	if err := os.MkdirAll(old, 0o755); err != nil {
		t.Fatal(err)
	}
	if err := os.MkdirAll(recent, 0o755); err != nil {
		t.Fatal(err)
	}

	j := NewJanitor(root, 30, time.Hour, nil)
	j.sweepOnce()

	if _, err := os.Stat(old); !os.IsNotExist(err) {
		t.Errorf("expected old session dir removed, stat err=%v", err)
	}
	if _, err := os.Stat(recent); err != nil {
		t.Errorf("expected recent session dir kept, stat err=%v", err)
	}
}
