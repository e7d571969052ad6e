// Package dialogue implements the per-call Dialogue State Machine: the
// conversation phase, the misunderstanding guard that watches unclear/
// not-heard streaks, and the handoff confirmation sub-machine.
package dialogue

import (
	"sync"

	"github.com/libertycall/ivr-gateway/internal/intent"
)

// Phase is a value of the call's top-level dialogue phase.
type Phase string

const (
	PhaseIntro              Phase = "INTRO"
	PhaseEntry              Phase = "ENTRY"
	PhaseEntryConfirm       Phase = "ENTRY_CONFIRM"
	PhaseQA                 Phase = "QA"
	PhaseAfter085           Phase = "AFTER_085"
	PhaseClosing            Phase = "CLOSING"
	PhaseHandoff            Phase = "HANDOFF"
	PhaseHandoffConfirmWait Phase = "HANDOFF_CONFIRM_WAIT"
	PhaseHandoffDone        Phase = "HANDOFF_DONE"
	PhaseEnd                Phase = "END"
)

// HandoffState is the handoff confirmation sub-machine's state.
type HandoffState string

const (
	HandoffIdle       HandoffState = "idle"
	HandoffConfirming HandoffState = "confirming"
	HandoffDone       HandoffState = "done"
)

// State is the per-call conversation state, guarded by an internal mutex
// since the dialogue goroutine, the timer callbacks, and the session
// logger can all observe it concurrently.
type State struct {
	mu sync.Mutex

	Phase              Phase
	LastIntent         intent.Label
	HandoffState       HandoffState
	HandoffRetryCount  int
	TransferRequested  bool
	TransferExecuted   bool
	UnclearStreak      int
	NotHeardStreak     int
	HandoffCompleted   bool
	HandoffPromptSent  bool
	Meta               map[string]interface{}
	LastAITemplates    []string
	NoInputStreak      int

	// LastPartialText holds the most recent non-empty interim ASR result,
	// so a final result that arrives empty (the recognizer sometimes
	// closes an utterance with no text of its own) can fall back to it
	// instead of being treated as silence.
	LastPartialText string
}

// New returns a fresh State for a call that has just been answered.
func New() *State {
	return &State{
		Phase:        PhaseEntry,
		HandoffState: HandoffIdle,
		Meta:         make(map[string]interface{}),
	}
}

// Snapshot returns a value copy of the state for logging, taken under the
// lock.
func (s *State) Snapshot() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	meta := make(map[string]interface{}, len(s.Meta))
	for k, v := range s.Meta {
		meta[k] = v
	}
	templates := append([]string(nil), s.LastAITemplates...)
	cp := *s
	cp.Meta = meta
	cp.LastAITemplates = templates
	return cp
}

// Lock and Unlock expose the mutex directly for callers (the dialogue
// machine, the misunderstanding guard, the handoff sub-machine) that need
// to perform several field updates as one atomic step.
func (s *State) Lock()   { s.mu.Lock() }
func (s *State) Unlock() { s.mu.Unlock() }

func (s *State) SetMeta(key string, value interface{}) {
	if s.Meta == nil {
		s.Meta = make(map[string]interface{})
	}
	s.Meta[key] = value
}
