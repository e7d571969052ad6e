package dialogue

// noInputLadder maps the 1-based no_input_streak value to its template id,
// per spec §4.4's ladder: "no_input_streak++, select template by value
// (1 → "110", 2 → "111", 3 → "112")". A streak beyond 3 repeats "112" —
// the terminal rung keeps firing the auto-hangup template rather than
// indexing off the end of the ladder.
var noInputLadder = []string{"110", "111", "112"}

// OnNoInputTimeout is invoked by the Timer Manager's silence timer when no
// caller speech arrived within the window. It advances no_input_streak,
// returns the template id to queue, and reports whether that template
// carries auto_hangup (only "112" does, per the Template Registry).
func (m *Machine) OnNoInputTimeout(callID string, s *State) (templateID string, autoHangup bool) {
	s.Lock()
	s.NoInputStreak++
	streak := s.NoInputStreak
	s.Unlock()

	idx := streak - 1
	if idx >= len(noInputLadder) {
		idx = len(noInputLadder) - 1
	}
	templateID = noInputLadder[idx]
	autoHangup = templateID == "112"

	s.Lock()
	s.LastAITemplates = []string{templateID}
	s.Unlock()

	m.log.Infow("no_input_timeout", "call_id", callID, "streak", streak, "template_id", templateID)
	return templateID, autoHangup
}

// OnCallerSpeech resets the no-input streak; per §4.6, "Any caller speech
// resets no_input_streak to 0."
func (m *Machine) OnCallerSpeech(s *State) {
	s.Lock()
	s.NoInputStreak = 0
	s.Unlock()
}
