package lifecycle

import (
	"context"
	"fmt"
	"time"

	"github.com/libertycall/ivr-gateway/internal/dialogue"
	"github.com/libertycall/ivr-gateway/internal/esl"
	"github.com/libertycall/ivr-gateway/internal/logging"
	"github.com/libertycall/ivr-gateway/internal/playback"
	"github.com/libertycall/ivr-gateway/internal/timers"
)

const operatorNumberVar = "operator_number"

// InitRequest carries the softswitch's call-init event payload (§4.10,
// §6).
type InitRequest struct {
	CallID            string
	ChannelUUID       string
	CallerNumber      string
	DestinationNumber string
	SIPHeaders        map[string]string
	ExplicitClientID  string
}

// Manager is the Call Lifecycle Manager: it owns the CallRegistry, the
// shared ESL client, and resolves/loads client routing on init, drives
// transfer and hangup, and always tears a call down, matching
// call_lifecycle_handler.py's `handle_init_from_asterisk` /
// `handle_transfer` / `handle_hangup` plus its always-runs `finally`
// teardown block.
type Manager struct {
	registry *Registry
	mapper   *ClientMapper
	profiles *ProfileLoader
	esl      *esl.Client
	presence *PresenceMirror
	log      logging.Logger

	defaultClientID string
	operatorNumber  string

	coordinators map[string]*playback.Coordinator
	timerSets    map[string]*timers.Manager
}

// NewManager wires the lifecycle manager to its shared collaborators. The
// ESL client is process-wide (§5: "The single softswitch command client is
// shared across calls"); the registry, coordinators, and timer sets are
// per-call. presence may be nil (built from a nil *redis.Client by
// NewPresenceMirror) to run with no cross-process shared state at all.
func NewManager(eslClient *esl.Client, mapper *ClientMapper, profiles *ProfileLoader, presence *PresenceMirror, defaultClientID, operatorNumber string, log logging.Logger) *Manager {
	if log == nil {
		log = logging.NewNop()
	}
	if presence == nil {
		presence = NewPresenceMirror(nil, log)
	}
	return &Manager{
		registry:        NewRegistry(),
		mapper:          mapper,
		profiles:        profiles,
		esl:             eslClient,
		presence:        presence,
		log:             log,
		defaultClientID: defaultClientID,
		operatorNumber:  operatorNumber,
		coordinators:    make(map[string]*playback.Coordinator),
		timerSets:       make(map[string]*timers.Manager),
	}
}

// OnInit resolves client_id, allocates a fresh Session and its per-call
// collaborators, and registers them. It never fails the call outright —
// missing profile or mapping data falls back to defaults, matching the
// Python's resilience around init (§4.10 step 2).
func (m *Manager) OnInit(req InitRequest) (*Session, ClientProfile) {
	clientID := m.mapper.Resolve(req.ExplicitClientID, req.CallerNumber, req.DestinationNumber, req.SIPHeaders, m.defaultClientID)
	profile := m.profiles.Load(clientID)

	if _, exists := m.registry.Get(req.CallID); exists {
		m.teardownLocked(req.CallID)
	}

	session := &Session{
		CallID:            req.CallID,
		ChannelUUID:       req.ChannelUUID,
		ClientID:          clientID,
		CallerNumber:      normalizeCallerNumber(req.CallerNumber),
		DestinationNumber: req.DestinationNumber,
		StartedAt:         time.Now(),
		State:             dialogue.New(),
	}
	m.registry.Register(session)
	m.timerSets[req.CallID] = timers.New()
	m.presence.MarkActive(context.Background(), req.CallID, clientID)

	m.log.Infow("call_init", "call_id", req.CallID, "client_id", clientID, "caller_number", session.CallerNumber)
	return session, profile
}

// AttachCoordinator registers the Playback Coordinator built for this call
// (constructed by the caller once ChannelUUID/registry/client are known)
// so Transfer/Hangup/teardown can reach it.
func (m *Manager) AttachCoordinator(callID string, c *playback.Coordinator) {
	m.coordinators[callID] = c
}

// Timers returns the per-call timer set, creating one if OnInit hasn't run
// yet for this call_id (defensive; should not happen in normal operation).
func (m *Manager) Timers(callID string) *timers.Manager {
	if t, ok := m.timerSets[callID]; ok {
		return t
	}
	t := timers.New()
	m.timerSets[callID] = t
	return t
}

// OnTransfer executes §4.9: stop playback, set outbound caller-id, issue
// uuid_transfer. `transfer_executed` is a one-shot latch per the Data
// Model invariant; a retry after a known-failed attempt is still allowed
// (session.TransferNotified is not itself a guard, matching the Python's
// comment that removed that check in favor of the dialogue state's own
// one-way latch).
func (m *Manager) OnTransfer(callID string) error {
	session, ok := m.registry.Get(callID)
	if !ok {
		return &ErrNotFound{CallID: callID}
	}

	session.State.Lock()
	alreadyExecuted := session.State.TransferExecuted
	session.State.Unlock()
	if alreadyExecuted {
		m.log.Infow("transfer_already_executed", "call_id", callID)
		return nil
	}

	if c, ok := m.coordinators[callID]; ok {
		c.BargeIn()
	}

	destination := m.operatorNumber
	if destination == "" {
		destination = operatorNumberVar
	}
	if err := m.esl.SetVar(session.ChannelUUID, "effective_caller_id_number", session.CallerNumber); err != nil {
		m.log.Warnw("transfer_setvar_failed", "call_id", callID, "error", err)
	}
	if err := m.esl.Transfer(session.ChannelUUID, destination, "xml", "default"); err != nil {
		m.log.Errorw("transfer_failed", "call_id", callID, "error", err)
		return fmt.Errorf("lifecycle: transfer call %s: %w", callID, err)
	}

	session.State.Lock()
	session.State.TransferExecuted = true
	session.State.Unlock()
	session.TransferNotified = true
	m.log.Infow("transfer_executed", "call_id", callID, "destination", destination)
	return nil
}

// Kill issues uuid_kill for callID's channel, without running teardown.
// Exposed separately from OnHangup so a caller that also owns non-lifecycle
// per-call resources (the engine's Call actor) can sequence the kill
// command before its own full teardown.
func (m *Manager) Kill(callID string) error {
	session, ok := m.registry.Get(callID)
	if !ok {
		return &ErrNotFound{CallID: callID}
	}
	return m.esl.Kill(session.ChannelUUID)
}

// OnHangup issues uuid_kill and always runs teardown, regardless of
// whether the kill command itself succeeds (§4.10: "run teardown
// regardless of errors"). Used when nothing beyond the registry/timers/
// coordinator needs tearing down (e.g. a bare lifecycle.Manager with no
// engine.Call wrapping it, such as in tests).
func (m *Manager) OnHangup(callID string) error {
	session, ok := m.registry.Get(callID)
	var killErr error
	if ok {
		killErr = m.esl.Kill(session.ChannelUUID)
		if killErr != nil {
			m.log.Warnw("hangup_kill_failed", "call_id", callID, "error", killErr)
		}
	}
	m.teardownLocked(callID)
	return killErr
}

// teardownLocked performs §4.10's always-runs teardown: cancel timers,
// drop the playback coordinator, and remove the call from the registry.
func (m *Manager) teardownLocked(callID string) {
	if t, ok := m.timerSets[callID]; ok {
		t.CancelAll()
		delete(m.timerSets, callID)
	}
	delete(m.coordinators, callID)
	m.registry.Remove(callID)
	m.presence.MarkInactive(context.Background(), callID)
	m.log.Infow("call_teardown", "call_id", callID)
}

// ActivePresence reports the cross-process active-call count mirrored in
// Redis, or -1 if presence mirroring is disabled/unreachable.
func (m *Manager) ActivePresence(ctx context.Context) int {
	return m.presence.ActiveCount(ctx)
}

// Teardown exposes teardown for callers that need to force it outside of
// OnHangup (e.g. transport-level disconnects with no explicit hangup
// event).
func (m *Manager) Teardown(ctx context.Context, callID string) {
	_ = ctx
	m.teardownLocked(callID)
}

// Registry exposes the CallRegistry for read-only lookups by other
// components (e.g. the ASR worker correlating call_id -> session).
func (m *Manager) Registry() *Registry { return m.registry }

// normalizeCallerNumber strips the softswitch's "no caller id" sentinel
// and unwraps a caller_number field that arrived as a full SIP URI
// (some trunk configurations forward the raw From/P-Asserted-Identity
// value instead of a bare digit string).
func normalizeCallerNumber(raw string) string {
	if raw == "" || raw == "-" {
		return ""
	}
	return extractSIPUser(raw)
}
