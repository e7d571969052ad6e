package dialogue

import (
	"github.com/libertycall/ivr-gateway/internal/intent"
	"github.com/libertycall/ivr-gateway/internal/logging"
)

// normalTemplates is the allow-list of template ids that indicate the
// conversation is proceeding normally; seeing any of them resets the
// unclear streak.
var normalTemplates = map[string]struct{}{
	"006": {}, "006_SYS": {}, "010": {}, "004": {}, "005": {}, "020": {}, "021": {},
	"022": {}, "023": {}, "040": {}, "041": {}, "042": {}, "060": {}, "061": {},
	"070": {}, "071": {}, "072": {}, "080": {}, "081": {}, "082": {}, "084": {},
	"085": {}, "086": {}, "087": {}, "088": {}, "089": {}, "090": {}, "091": {},
	"092": {}, "099": {}, "100": {}, "101": {}, "102": {}, "103": {}, "104": {},
	"0600": {}, "0601": {}, "0602": {}, "0603": {}, "0604": {},
}

// MisunderstandingGuard watches the unclear/not-heard streaks and forces a
// handoff once the caller has been misunderstood too many times in a row.
type MisunderstandingGuard struct {
	log logging.Logger
}

func NewMisunderstandingGuard(log logging.Logger) *MisunderstandingGuard {
	if log == nil {
		log = logging.NewNop()
	}
	return &MisunderstandingGuard{log: log}
}

// CheckAutoHandoffFromUnclear forces HANDOFF_REQUEST once unclear_streak
// reaches 2 and the handoff sub-machine is not already mid-confirmation.
// Returns the (possibly rewritten) intent and whether it rewrote it.
func (g *MisunderstandingGuard) CheckAutoHandoffFromUnclear(callID string, s *State, in intent.Label) (intent.Label, bool) {
	s.Lock()
	defer s.Unlock()

	if s.UnclearStreak >= 2 &&
		(s.HandoffState == HandoffIdle || s.HandoffState == HandoffDone) &&
		in != intent.HandoffRequest && in != intent.HandoffYes && in != intent.HandoffNo {
		s.SetMeta("reason_for_handoff", "auto_unclear")
		s.SetMeta("unclear_streak_at_trigger", s.UnclearStreak)
		g.log.Warnw("intent_force_handoff", "call_id", callID, "unclear_streak", s.UnclearStreak)
		return intent.HandoffRequest, true
	}
	return in, false
}

// HandleNotHeardStreak tracks consecutive "please repeat" (template 110)
// selections: the second in a row escalates to a handoff confirmation
// prompt (0604) instead of another repeat request. The silence-driven
// 110 -> 111 -> 112 ladder is separate (Machine.OnNoInputTimeout).
func (g *MisunderstandingGuard) HandleNotHeardStreak(callID string, s *State, templateIDs []string, in, baseIntent intent.Label) ([]string, intent.Label, bool) {
	s.Lock()
	defer s.Unlock()

	if isOnly110(templateIDs) && s.Phase != PhaseEnd {
		s.NotHeardStreak++
		if s.NotHeardStreak >= 2 {
			s.NotHeardStreak = 0
			s.HandoffState = HandoffConfirming
			s.HandoffPromptSent = true
			s.TransferRequested = false
			updated := []string{"0604"}
			g.log.Debugw("nlg_debug", "call_id", callID, "intent", in, "base_intent", baseIntent, "templates", updated)
			return updated, baseIntent, true
		}
	} else {
		s.NotHeardStreak = 0
	}
	return templateIDs, in, false
}

// HandleUnclearStreak increments unclear_streak whenever the selection
// falls back to template 110, and resets it to zero whenever any selected
// template belongs to the normal-flow allow-list.
func (g *MisunderstandingGuard) HandleUnclearStreak(callID string, s *State, templateIDs []string) {
	s.Lock()
	defer s.Unlock()

	if isOnly110(templateIDs) {
		s.UnclearStreak++
		g.log.Warnw("unclear_streak_inc", "call_id", callID, "unclear_streak", s.UnclearStreak)
		return
	}
	for _, id := range templateIDs {
		if _, ok := normalTemplates[id]; ok {
			if s.UnclearStreak > 0 {
				g.log.Warnw("unclear_streak_reset", "call_id", callID, "reason", "tpl_"+id)
			}
			s.UnclearStreak = 0
			return
		}
	}
}

// ResetUnclearStreakOnHandoffDone zeroes the unclear streak once a handoff
// has been resolved, logging the reset the same way every other reset path
// does.
func (g *MisunderstandingGuard) ResetUnclearStreakOnHandoffDone(callID string, s *State, reason string) {
	s.Lock()
	defer s.Unlock()
	if s.UnclearStreak > 0 {
		g.log.Warnw("unclear_streak_reset", "call_id", callID, "reason", reason)
	}
	s.UnclearStreak = 0
}

func isOnly110(templateIDs []string) bool {
	return len(templateIDs) == 1 && templateIDs[0] == "110"
}
