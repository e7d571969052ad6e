package lifecycle

import (
	"fmt"
	"sync"
	"time"

	"github.com/libertycall/ivr-gateway/internal/dialogue"
)

// Session is the process-wide record of one active call: its dialogue
// state, client_id, SIP identifiers, and the channel UUID the ESL client
// uses to address it.
type Session struct {
	CallID            string
	ChannelUUID       string
	ClientID          string
	CallerNumber      string
	DestinationNumber string
	StartedAt         time.Time

	State *dialogue.State

	TransferNotified bool
	IntroPlayed      bool
}

// Registry is the process-wide table of active calls (§4.10/§5:
// "`_active_calls`... are process-wide sets/maps; all mutations occur on
// named lifecycle events and must be safe under concurrent calls").
// Generalized from the teacher's callcontext Store (Save/Get/Claim over a
// Postgres-backed row) down to an in-memory map-of-sessions-with-mutex: the
// gateway needs no persistence claim semantics since one process owns a
// call end-to-end, but the same "safe concurrent access by call_id" shape
// carries over directly.
type Registry struct {
	mu       sync.RWMutex
	sessions map[string]*Session
}

// NewRegistry returns an empty, ready-to-use Registry.
func NewRegistry() *Registry {
	return &Registry{sessions: make(map[string]*Session)}
}

// Register adds a new session, replacing (and returning) any prior session
// under the same call_id — matching the Python's `_reset_call_state` when
// a new init arrives reusing a call_id.
func (r *Registry) Register(s *Session) (previous *Session) {
	r.mu.Lock()
	defer r.mu.Unlock()
	previous = r.sessions[s.CallID]
	r.sessions[s.CallID] = s
	return previous
}

// Get returns the session for call_id, or false if no active call matches.
func (r *Registry) Get(callID string) (*Session, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	s, ok := r.sessions[callID]
	return s, ok
}

// Remove deletes the call_id's session from the registry (part of
// teardown, §4.10).
func (r *Registry) Remove(callID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.sessions, callID)
}

// Active reports the current number of live calls.
func (r *Registry) Active() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.sessions)
}

// ByChannelUUID looks up the call_id owning a channel UUID, used by the
// RTP/WebSocket transports (which only know the channel UUID or a raw UDP
// port) to resolve the call_id the rest of the engine keys everything by.
func (r *Registry) ByChannelUUID(uuid string) (string, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for callID, s := range r.sessions {
		if s.ChannelUUID == uuid {
			return callID, true
		}
	}
	return "", false
}

// ErrNotFound is returned by manager operations addressing an unknown call.
type ErrNotFound struct {
	CallID string
}

func (e *ErrNotFound) Error() string {
	return fmt.Sprintf("lifecycle: no active call %s", e.CallID)
}
