package dialogue

import (
	"github.com/libertycall/ivr-gateway/internal/intent"
	"github.com/libertycall/ivr-gateway/internal/logging"
)

// HandoffStateMachine interprets replies while the call is in
// HANDOFF_CONFIRM_WAIT, deciding whether to transfer, end the call, or
// re-ask once before failing safe to a transfer.
type HandoffStateMachine struct {
	log logging.Logger
}

func NewHandoffStateMachine(log logging.Logger) *HandoffStateMachine {
	if log == nil {
		log = logging.NewNop()
	}
	return &HandoffStateMachine{log: log}
}

// HandleConfirm resolves one caller reply to the handoff confirmation
// prompt. It returns the template ids to play, the resolved intent label,
// whether a transfer should now be requested, and leaves s updated in
// place.
func (h *HandoffStateMachine) HandleConfirm(callID, rawText string, in intent.Label, s *State) ([]string, intent.Label, bool) {
	s.Lock()
	defer s.Unlock()

	handIntent := intent.InterpretHandoffReply(rawText, in)
	if handIntent == intent.Unknown {
		handIntent = in
	}

	switch handIntent {
	case intent.HandoffYes:
		h.resetToHandoffDoneLocked(callID, s, true)
		return []string{"081", "082"}, intent.HandoffYes, true

	case intent.HandoffNo:
		s.HandoffState = HandoffDone
		s.HandoffRetryCount = 0
		s.TransferRequested = false
		h.resetUnclearLocked(callID, s)
		s.Phase = PhaseEnd
		s.HandoffCompleted = true
		return []string{"086", "087"}, intent.HandoffNo, false
	}

	if s.HandoffRetryCount == 0 {
		s.HandoffState = HandoffConfirming
		s.HandoffRetryCount = 1
		s.TransferRequested = false
		h.log.Debugw("handoff_confirm_retry", "call_id", callID, "intent", handIntent, "retry", 0)
		return []string{"0604"}, "HANDOFF_FALLBACK_REASK", false
	}

	h.log.Debugw("handoff_confirm_ambiguous_failsafe", "call_id", callID, "intent", handIntent, "retry", s.HandoffRetryCount)
	h.resetToHandoffDoneLocked(callID, s, true)
	return []string{"081", "082"}, "HANDOFF_FALLBACK_YES", true
}

func (h *HandoffStateMachine) resetToHandoffDoneLocked(callID string, s *State, transfer bool) {
	s.HandoffState = HandoffDone
	s.HandoffRetryCount = 0
	s.TransferRequested = transfer
	h.resetUnclearLocked(callID, s)
	s.Phase = PhaseHandoffDone
	s.HandoffCompleted = true
}

func (h *HandoffStateMachine) resetUnclearLocked(callID string, s *State) {
	if s.UnclearStreak > 0 {
		h.log.Warnw("unclear_streak_reset", "call_id", callID, "reason", "handoff_done")
	}
	s.UnclearStreak = 0
}
