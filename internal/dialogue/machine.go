package dialogue

import (
	"math/rand"
	"strings"

	"github.com/libertycall/ivr-gateway/internal/intent"
	"github.com/libertycall/ivr-gateway/internal/logging"
)

// Machine ties the intent classifier, the per-phase conversation flow, the
// misunderstanding guard, and the handoff confirmation sub-machine into the
// single per-turn decision the gateway makes every time a caller utterance
// finishes.
//
// Ported from ai_core.py's _generate_reply / _run_conversation_flow and
// their _handle_*_phase helpers: each dialogue Phase gets its own handler,
// dispatched from the phase the call is currently in, with a handful of
// cross-cutting rules (the handoff-request shortcut, the not-heard/unclear
// streak guard, the post-answer "085" follow-up, the handoff-done filter)
// applied uniformly around the dispatch rather than duplicated per handler.
type Machine struct {
	guard   *MisunderstandingGuard
	handoff *HandoffStateMachine
	log     logging.Logger
}

func NewMachine(log logging.Logger) *Machine {
	if log == nil {
		log = logging.NewNop()
	}
	return &Machine{
		guard:   NewMisunderstandingGuard(log),
		handoff: NewHandoffStateMachine(log),
		log:     log,
	}
}

// Turn is the result of processing one caller utterance: the template ids
// to queue for playback, the resolved intent, and whether a transfer to a
// human operator should now be requested.
type Turn struct {
	TemplateIDs       []string
	Intent            intent.Label
	TransferRequested bool
}

// closingNoKeywords gates the ENTRY_CONFIRM and CLOSING phases' negative
// replies, and doubles as the AFTER_085 negative-reply check — all three
// are the literal 20-entry HANDOFF_NO_KEYWORDS list from
// original_source/libertycall/gateway/intent_rules.py, which the original
// itself reuses across these checks rather than keeping near-duplicate
// copies. The matching affirmative check (intent.ContainsYesKeyword) reuses
// Classify's own affirmative list instead: these phases ask a plain yes/no
// question, not a handoff confirmation.
var closingNoKeywords = []string{
	"今日はいい", "今日は聞くだけ", "今日は聞くだけなんで", "また考える", "また考えます",
	"検討する", "やめとく", "やめておく", "また今度", "不要", "いりません", "結構です",
	"けっこうです", "大丈夫です", "遠慮します", "やめます", "また連絡", "いらない",
	"やっぱりいい", "やっぱりいいです",
}

var after085NegativeKeywords = closingNoKeywords

// questionIntents is the set of intents that represent the caller asking a
// question, as opposed to a yes/no or handoff reply. Ported from
// ai_core.py's _generate_reply question_intents list.
var questionIntents = map[intent.Label]bool{
	intent.Price:           true,
	intent.SystemInquiry:   true,
	intent.Function:        true,
	intent.Support:         true,
	intent.AIIdentity:      true,
	intent.SystemExplain:   true,
	intent.Reservation:     true,
	intent.MultiStore:      true,
	intent.Dialect:         true,
	intent.CallbackRequest: true,
	intent.SetupDifficulty: true,
	intent.AICallTopic:     true,
	intent.Setup:           true,
}

// answerTemplates is the set of template ids that count as "an answer was
// given" for the post-answer 085 follow-up. Ported from ai_core.py's
// _generate_reply answer_templates list.
var answerTemplates = map[string]bool{
	"040": true, "041": true, "042": true, "043": true, "044": true,
	"045": true, "046": true, "047": true, "048": true, "049": true,
	"020": true, "021": true, "022": true, "023": true, "023_AI_IDENTITY": true,
	"024": true, "025": true, "026": true,
	"060": true, "061": true, "062": true, "063": true, "064": true,
	"065": true, "066": true, "067": true, "068": true, "069": true,
	"070": true, "071": true, "072": true,
	"0600": true, "0601": true, "0603": true,
	"0280": true, "0281": true, "0282": true, "0283": true, "0284": true, "0285": true,
}

// OnTranscript processes one finalized ASR transcript against the current
// conversation state and returns the next playback decision.
func (m *Machine) OnTranscript(callID string, s *State, rawText string) Turn {
	s.Lock()
	phase := s.Phase
	handoffState := s.HandoffState
	s.Unlock()

	// Already mid handoff-confirmation, or the CLOSING phase just queued
	// the setup templates and is waiting on a yes/no to actually transfer:
	// the confirmation sub-machine owns this turn entirely regardless of
	// which phase label is on state.
	if phase == PhaseHandoffConfirmWait || phase == PhaseHandoff || handoffState == HandoffConfirming {
		classified := intent.Classify(rawText)
		templateIDs, resolved, transfer := m.handoff.HandleConfirm(callID, rawText, classified, s)
		s.Lock()
		s.LastIntent = resolved
		s.LastAITemplates = templateIDs
		s.Unlock()
		return Turn{TemplateIDs: templateIDs, Intent: resolved, TransferRequested: transfer}
	}

	baseIntent := intent.Classify(rawText)
	classified, _ := m.guard.CheckAutoHandoffFromUnclear(callID, s, baseIntent)

	// A stray HANDOFF_YES outside a confirmation wait isn't a reply to
	// anything in particular; treat it as a fresh handoff request instead
	// of dropping it. ENTRY_CONFIRM and CLOSING are the exception: both ask
	// their own plain yes/no question (template 006's "inquire about
	// setup?" and the pre-handoff "ready to proceed?"), and their handlers
	// read the same affirmative keyword list via ContainsYesKeyword — an
	// affirmative reply there answers that question, not a request for a
	// human, so it must reach handleEntryConfirm/handleClosing instead of
	// being hijacked into a handoff offer here.
	if classified == intent.HandoffYes && phase != PhaseEntryConfirm && phase != PhaseClosing {
		classified = intent.HandoffRequest
	}

	// HANDOFF_REQUEST always wins immediately, regardless of the phase the
	// call happens to be in — the caller asked for a person, so ask them to
	// confirm before doing anything else this turn.
	if classified == intent.HandoffRequest {
		s.Lock()
		s.HandoffState = HandoffConfirming
		s.HandoffRetryCount = 0
		s.HandoffPromptSent = true
		s.TransferRequested = false
		s.LastIntent = classified
		s.LastAITemplates = []string{"0604"}
		s.Unlock()
		return Turn{TemplateIDs: []string{"0604"}, Intent: classified, TransferRequested: false}
	}

	normalized := intent.NormalizeText(rawText)
	resolvedIntent, templateIDs := m.dispatchPhase(s, rawText, normalized, classified)
	templateIDs = dropRedundant104(templateIDs)

	s.Lock()
	handoffDone := s.HandoffState == HandoffDone
	s.Unlock()
	if handoffDone {
		templateIDs = stripHandoffDoneTemplates(templateIDs)
	}

	var escalated bool
	templateIDs, resolvedIntent, escalated = m.guard.HandleNotHeardStreak(callID, s, templateIDs, classified, resolvedIntent)
	if !escalated {
		m.guard.HandleUnclearStreak(callID, s, templateIDs)
		templateIDs = m.maybeAppend085(s, resolvedIntent, templateIDs)
	}

	s.Lock()
	s.LastIntent = resolvedIntent
	s.LastAITemplates = templateIDs
	s.Unlock()

	return Turn{TemplateIDs: templateIDs, Intent: resolvedIntent, TransferRequested: false}
}

// ambiguousVowels are the single-character utterances the recognizer
// sometimes returns for a half-heard "あ" or "ん" — too short to classify,
// but recognizable enough to distinguish from pure silence.
var ambiguousVowels = map[string]bool{
	"あ": true, "ん": true, "え": true, "お": true, "う": true, "い": true,
}

// IsAmbiguousVowel reports whether text is a single-character utterance the
// recognizer sometimes emits for a barely-heard caller sound.
func IsAmbiguousVowel(text string) bool {
	return ambiguousVowels[text]
}

// ForceNotHeard builds the NOT_HEARD turn directly, bypassing Classify,
// SelectTemplateIDs, and the misunderstanding guard entirely — the engine
// calls this for a one-character ambiguous-vowel transcript, the one case
// short enough that it can't carry intent but isn't silence either.
func (m *Machine) ForceNotHeard(s *State) Turn {
	s.Lock()
	s.LastIntent = intent.NotHeard
	s.LastAITemplates = []string{"110"}
	s.Unlock()
	return Turn{TemplateIDs: []string{"110"}, Intent: intent.NotHeard}
}

// dispatchPhase routes to the handler for the call's current phase. Ported
// from ai_core.py's _run_conversation_flow; WAITING and NOT_HEARD are
// transport-level phases handled by the softswitch's post-TTS wait, never
// reachable here, so they have no case, and PhaseHandoff is handled by
// OnTranscript before dispatch is ever reached.
func (m *Machine) dispatchPhase(s *State, rawText, normalized string, classified intent.Label) (intent.Label, []string) {
	s.Lock()
	phase := s.Phase
	s.Unlock()

	switch phase {
	case PhaseEnd:
		return intent.EndCall, nil
	case PhaseEntry:
		return m.handleEntry(s, rawText, normalized, classified)
	case PhaseEntryConfirm:
		return m.handleEntryConfirm(s, rawText, normalized, classified)
	case PhaseAfter085:
		return m.handleAfter085(s, rawText, normalized, classified)
	case PhaseClosing:
		return m.handleClosing(s, rawText, normalized, classified)
	default:
		return classified, m.handleQA(s, rawText, classified)
	}
}

// handleEntry is the caller's first turn in the call. Ported from
// ai_core.py's _handle_entry_phase.
func (m *Machine) handleEntry(s *State, rawText, normalized string, classified intent.Label) (intent.Label, []string) {
	switch classified {
	case intent.NotHeard:
		s.Lock()
		s.Phase = PhaseQA
		s.Unlock()
		return classified, intent.SelectTemplateIDs(classified, rawText)
	case intent.Greeting:
		s.Lock()
		s.Phase = PhaseQA
		s.Unlock()
		return classified, []string{"004", "005"}
	}

	if intent.ContainsInquiryKeyword(normalized) {
		s.Lock()
		s.Phase = PhaseEntryConfirm
		s.Unlock()
		return intent.Inquiry, []string{"006"}
	}

	s.Lock()
	s.Phase = PhaseQA
	s.Unlock()
	return classified, m.handleQA(s, rawText, classified)
}

// handleQA is the ordinary question-answering phase and the entry point
// into the HANDOFF introduction once the caller has been misunderstood
// repeatedly. Ported from ai_core.py's _handle_qa_phase. The handoff-done
// template filter lives centrally in OnTranscript rather than duplicated
// here, since it applies to every phase's output, not just QA's.
func (m *Machine) handleQA(s *State, rawText string, classified intent.Label) []string {
	if classified == intent.InquiryPassive {
		s.Lock()
		s.Phase = PhaseQA
		s.Unlock()
		return selectInquiryPassiveTemplate()
	}

	templateIDs := intent.SelectTemplateIDs(classified, rawText)

	s.Lock()
	last := s.LastIntent
	switch {
	case classified == intent.SalesCall && last == intent.SalesCall:
		s.Phase = PhaseEnd
	case classified == intent.EndCall:
		s.Phase = PhaseEnd
	default:
		s.Phase = PhaseAfter085
	}
	s.Unlock()

	return templateIDs
}

// handleAfter085 follows a "anything else?" prompt: a repeated sales pitch
// ends the call, a negative reply moves to CLOSING, anything else falls
// back into the QA handler. Ported from ai_core.py's
// _handle_after_085_phase. Its own HANDOFF_REQUEST branch is omitted: that
// case is now caught unconditionally at the top of OnTranscript before
// dispatch ever runs, so reaching this handler with HANDOFF_REQUEST is
// unreachable.
func (m *Machine) handleAfter085(s *State, rawText, normalized string, classified intent.Label) (intent.Label, []string) {
	s.Lock()
	handoffState := s.HandoffState
	last := s.LastIntent
	s.Unlock()

	if classified == intent.SalesCall && last == intent.SalesCall {
		templateIDs := intent.SelectTemplateIDs(classified, rawText)
		if handoffState == HandoffDone {
			templateIDs = stripHandoffDoneTemplates(templateIDs)
		}
		s.Lock()
		s.Phase = PhaseEnd
		s.Unlock()
		return classified, templateIDs
	}

	if containsAny(normalized, after085NegativeKeywords) {
		s.Lock()
		s.Phase = PhaseClosing
		s.Unlock()
		return intent.EndCall, []string{"013"}
	}

	s.Lock()
	s.Phase = PhaseQA
	s.Unlock()
	return classified, m.handleQA(s, rawText, classified)
}

// handleEntryConfirm resolves the caller's reply to the ENTRY phase's
// "inquiry about setup?" confirmation prompt (template 006). Ported from
// ai_core.py's _handle_entry_confirm_phase.
func (m *Machine) handleEntryConfirm(s *State, rawText, normalized string, classified intent.Label) (intent.Label, []string) {
	if intent.ContainsYesKeyword(normalized) {
		s.Lock()
		s.Phase = PhaseQA
		s.Unlock()
		return intent.Inquiry, []string{"010"}
	}
	if containsAny(normalized, closingNoKeywords) {
		s.Lock()
		s.Phase = PhaseEnd
		s.Unlock()
		return intent.EndCall, []string{"087", "088"}
	}

	s.Lock()
	s.Phase = PhaseQA
	s.Unlock()
	return classified, m.handleQA(s, rawText, classified)
}

// handleClosing resolves the caller's reply to the CLOSING phase's "ready
// to set up?" prompt: YES moves into HANDOFF with the setup templates, NO
// ends the call. Ported from ai_core.py's _handle_closing_phase.
func (m *Machine) handleClosing(s *State, rawText, normalized string, classified intent.Label) (intent.Label, []string) {
	if intent.ContainsYesKeyword(normalized) {
		s.Lock()
		s.Phase = PhaseHandoff
		s.Unlock()
		return intent.Setup, []string{"060", "061", "062", "104"}
	}
	if containsAny(normalized, closingNoKeywords) {
		s.Lock()
		s.Phase = PhaseEnd
		s.Unlock()
		return intent.EndCall, []string{"087", "088"}
	}

	s.Lock()
	s.Phase = PhaseQA
	s.Unlock()
	return classified, m.handleQA(s, rawText, classified)
}

// maybeAppend085 appends a "anything else?" follow-up after the caller's
// question has actually been answered. Ported from ai_core.py's
// _generate_reply, with one deliberate refinement: the literal Python
// condition reads state.phase *after* the phase dispatch above has already
// run, and every ordinary QA answer sets phase to AFTER_085 as part of that
// same dispatch — read literally, the check would almost never fire for
// the common case it exists to serve, and would also overwrite the
// deliberate CLOSING -> HANDOFF transition with AFTER_085. Scoping the
// check to "dispatch landed back in QA or AFTER_085" keeps the intended
// behavior (follow up after an ordinary answer) without clobbering a
// handler's own, more specific phase transition.
func (m *Machine) maybeAppend085(s *State, baseIntent intent.Label, templateIDs []string) []string {
	if !questionIntents[baseIntent] {
		return templateIDs
	}
	if len(templateIDs) == 0 {
		return templateIDs
	}
	for _, id := range templateIDs {
		if id == "085" {
			return templateIDs
		}
	}

	s.Lock()
	phase := s.Phase
	s.Unlock()
	if phase != PhaseQA && phase != PhaseAfter085 {
		return templateIDs
	}

	hasAnswer := false
	for _, id := range templateIDs {
		if answerTemplates[id] {
			hasAnswer = true
			break
		}
	}
	if !hasAnswer {
		return templateIDs
	}

	templateIDs = append(templateIDs, "085")
	s.Lock()
	s.Phase = PhaseAfter085
	s.Unlock()
	return templateIDs
}

// selectInquiryPassiveTemplate picks between the two low-pressure
// acknowledgement templates for a passive, not-yet-committed lead. The
// original comments this as "random", with no further weighting, so a
// plain coin flip is all it is — not worth a shared-state RNG or a
// corpus-library dependency for a single Intn(2) call.
func selectInquiryPassiveTemplate() []string {
	if rand.Intn(2) == 0 {
		return []string{"089"}
	}
	return []string{"090"}
}

// dropRedundant104 drops "104" (the transfer cue) from a selection that
// also carries "0604" (the handoff confirmation prompt) — the two are
// never spoken in the same turn.
func dropRedundant104(templateIDs []string) []string {
	has0604, has104 := false, false
	for _, id := range templateIDs {
		if id == "0604" {
			has0604 = true
		}
		if id == "104" {
			has104 = true
		}
	}
	if !has0604 || !has104 {
		return templateIDs
	}
	out := make([]string, 0, len(templateIDs)-1)
	for _, id := range templateIDs {
		if id != "104" {
			out = append(out, id)
		}
	}
	return out
}

func stripHandoffDoneTemplates(templateIDs []string) []string {
	out := make([]string, 0, len(templateIDs))
	for _, id := range templateIDs {
		if id == "0604" || id == "104" {
			continue
		}
		out = append(out, id)
	}
	return out
}

func containsAny(t string, keywords []string) bool {
	for _, k := range keywords {
		if k != "" && strings.Contains(t, k) {
			return true
		}
	}
	return false
}
