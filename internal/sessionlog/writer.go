package sessionlog

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sync"
	"time"

	"github.com/libertycall/ivr-gateway/internal/logging"
)

// TranscriptEvent is one line of transcript.jsonl (§4.11).
type TranscriptEvent struct {
	Timestamp time.Time `json:"timestamp"`
	CallID    string    `json:"call_id"`
	Text      string    `json:"text"`
	IsFinal   bool      `json:"is_final"`
}

// Summary is summary.json, written once at teardown (§4.11).
type Summary struct {
	ClientID        string    `json:"client_id"`
	UUID            string    `json:"uuid"`
	StartTime       time.Time `json:"start_time"`
	EndTime         time.Time `json:"end_time"`
	TotalPhrases    int       `json:"total_phrases"`
	Intents         []string  `json:"intents"`
	HandoffOccurred bool      `json:"handoff_occurred"`
	FinalPhase      string    `json:"final_phase"`
}

// Writer owns one call's session directory and its three artifacts. One
// Writer per call; all methods are safe for concurrent use since a single
// dialogue actor drives each call, but file appends are still
// mutex-guarded to protect against concurrent log callers (e.g. the ASR
// worker writing transcript events while the dialogue machine writes
// call_log lines).
type Writer struct {
	dir string
	log logging.Logger

	mu            sync.Mutex
	transcriptF   *os.File
	callLogF      *os.File
	totalPhrases  int
	intentsSeen   []string
}

// New creates (and mkdir -p's) the session directory for one call, rooted
// at <root>/<YYYY-MM-DD>/<client_id>/session_<ts>_<call_id[:8]>/.
func New(root, clientID, callID string, startedAt time.Time, log logging.Logger) (*Writer, error) {
	if log == nil {
		log = logging.NewNop()
	}
	shortID := callID
	if len(shortID) > 8 {
		shortID = shortID[:8]
	}
	dir := filepath.Join(
		root,
		startedAt.Format("2006-01-02"),
		clientID,
		fmt.Sprintf("session_%d_%s", startedAt.Unix(), shortID),
	)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return nil, fmt.Errorf("sessionlog: mkdir %s: %w", dir, err)
	}

	transcriptF, err := os.OpenFile(filepath.Join(dir, "transcript.jsonl"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return nil, fmt.Errorf("sessionlog: open transcript.jsonl: %w", err)
	}
	callLogF, err := os.OpenFile(filepath.Join(dir, "call_log.txt"), os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		transcriptF.Close()
		return nil, fmt.Errorf("sessionlog: open call_log.txt: %w", err)
	}

	return &Writer{dir: dir, log: log, transcriptF: transcriptF, callLogF: callLogF}, nil
}

// Dir returns the session directory path.
func (w *Writer) Dir() string { return w.dir }

// AppendTranscript writes one ASR event line to transcript.jsonl.
func (w *Writer) AppendTranscript(ev TranscriptEvent) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line, err := json.Marshal(ev)
	if err != nil {
		return fmt.Errorf("sessionlog: marshal transcript event: %w", err)
	}
	if _, err := w.transcriptF.Write(append(line, '\n')); err != nil {
		return fmt.Errorf("sessionlog: write transcript.jsonl: %w", err)
	}
	if ev.IsFinal {
		w.totalPhrases++
	}
	return nil
}

// AppendTurn writes one "[HH:MM:SS] role: text (template: id)" line to
// call_log.txt and records the intent for the eventual summary.
func (w *Writer) AppendTurn(ts time.Time, role, text, templateID, intentLabel string) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	line := fmt.Sprintf("[%s] %s: %s (template: %s)\n", ts.Format("15:04:05"), role, text, templateID)
	if _, err := w.callLogF.WriteString(line); err != nil {
		return fmt.Errorf("sessionlog: write call_log.txt: %w", err)
	}
	if intentLabel != "" {
		w.intentsSeen = append(w.intentsSeen, intentLabel)
	}
	return nil
}

// Close writes summary.json and releases the open file handles. It is
// always called from teardown (§4.10/§4.11), regardless of how the call
// ended.
func (w *Writer) Close(s Summary) error {
	w.mu.Lock()
	defer w.mu.Unlock()

	if s.Intents == nil {
		s.Intents = w.intentsSeen
	}
	if s.TotalPhrases == 0 {
		s.TotalPhrases = w.totalPhrases
	}

	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		w.log.Errorw("session_summary_marshal_failed", "dir", w.dir, "error", err)
	} else if err := os.WriteFile(filepath.Join(w.dir, "summary.json"), data, 0o644); err != nil {
		w.log.Errorw("session_summary_write_failed", "dir", w.dir, "error", err)
	}

	w.transcriptF.Close()
	w.callLogF.Close()
	return nil
}
