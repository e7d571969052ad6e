package dialogue

import (
	"testing"

	"github.com/libertycall/ivr-gateway/internal/intent"
)

func TestNotHeardStreakEscalatesToHandoffPrompt(t *testing.T) {
	s := New()
	m := NewMachine(nil)

	// First unintelligible utterance: template 110, streak 1, no escalation.
	turn := m.OnTranscript("call-1", s, "xxxxx")
	if len(turn.TemplateIDs) != 1 || turn.TemplateIDs[0] != "110" {
		t.Fatalf("expected first unclear turn to select 110, got %v", turn.TemplateIDs)
	}

	// Second unintelligible utterance: streak reaches 2, escalate to 0604.
	turn = m.OnTranscript("call-1", s, "yyyyy")
	if len(turn.TemplateIDs) != 1 || turn.TemplateIDs[0] != "0604" {
		t.Fatalf("expected escalation to 0604, got %v", turn.TemplateIDs)
	}
	snap := s.Snapshot()
	if snap.HandoffState != HandoffConfirming {
		t.Errorf("expected handoff_state=confirming, got %v", snap.HandoffState)
	}
}

func TestHandoffConfirmYesTransfersAndResetsUnclear(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseHandoffConfirmWait
	s.HandoffState = HandoffConfirming
	s.UnclearStreak = 3
	s.Unlock()

	turn := m.OnTranscript("call-1", s, "はい、お願いします")
	if !turn.TransferRequested {
		t.Fatal("expected transfer to be requested on HANDOFF_YES")
	}
	if len(turn.TemplateIDs) != 2 || turn.TemplateIDs[0] != "081" {
		t.Errorf("unexpected templates: %v", turn.TemplateIDs)
	}
	snap := s.Snapshot()
	if snap.UnclearStreak != 0 {
		t.Errorf("expected unclear_streak reset to 0, got %d", snap.UnclearStreak)
	}
	if snap.Phase != PhaseHandoffDone {
		t.Errorf("expected phase HANDOFF_DONE, got %v", snap.Phase)
	}
}

func TestHandoffConfirmAmbiguousFailsSafeOnRetry(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseHandoffConfirmWait
	s.HandoffState = HandoffConfirming
	s.HandoffRetryCount = 1 // already retried once
	s.Unlock()

	turn := m.OnTranscript("call-1", s, "えーっと")
	if !turn.TransferRequested {
		t.Fatal("expected fail-safe-to-yes to request transfer on second ambiguous reply")
	}
	if turn.Intent != "HANDOFF_FALLBACK_YES" {
		t.Errorf("expected HANDOFF_FALLBACK_YES, got %v", turn.Intent)
	}
}

func TestUnclearStreakResetsOnNormalTemplate(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	m.OnTranscript("call-1", s, "xxxxx") // unclear_streak -> 1
	if s.Snapshot().UnclearStreak != 1 {
		t.Fatalf("expected unclear_streak=1 after first unclear turn")
	}
	m.OnTranscript("call-1", s, "料金を教えてください") // PRICE -> 040, resets streak
	if got := s.Snapshot().UnclearStreak; got != 0 {
		t.Errorf("expected unclear_streak reset to 0, got %d", got)
	}
}

func TestEntryGreetingMovesToQA(t *testing.T) {
	s := New()
	m := NewMachine(nil)

	turn := m.OnTranscript("call-1", s, "もしもし")
	if len(turn.TemplateIDs) != 2 || turn.TemplateIDs[0] != "004" || turn.TemplateIDs[1] != "005" {
		t.Fatalf("expected greeting templates [004 005], got %v", turn.TemplateIDs)
	}
	if s.Snapshot().Phase != PhaseQA {
		t.Errorf("expected phase QA after greeting, got %v", s.Snapshot().Phase)
	}
}

func TestEntryInquiryMovesToEntryConfirmThenQA(t *testing.T) {
	s := New()
	m := NewMachine(nil)

	turn := m.OnTranscript("call-1", s, "サービスについて詳しく教えてください")
	if len(turn.TemplateIDs) != 1 || turn.TemplateIDs[0] != "006" {
		t.Fatalf("expected ENTRY inquiry template [006], got %v", turn.TemplateIDs)
	}
	if s.Snapshot().Phase != PhaseEntryConfirm {
		t.Fatalf("expected phase ENTRY_CONFIRM, got %v", s.Snapshot().Phase)
	}

	turn = m.OnTranscript("call-1", s, "はい、お願いします")
	if len(turn.TemplateIDs) != 1 || turn.TemplateIDs[0] != "010" {
		t.Fatalf("expected ENTRY_CONFIRM yes template [010], got %v", turn.TemplateIDs)
	}
	if s.Snapshot().Phase != PhaseQA {
		t.Errorf("expected phase QA after ENTRY_CONFIRM yes, got %v", s.Snapshot().Phase)
	}
}

func TestQAAnswerAppends085AndMovesToAfter085(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseQA
	s.Unlock()

	turn := m.OnTranscript("call-1", s, "料金を教えてください")
	if len(turn.TemplateIDs) != 2 || turn.TemplateIDs[0] != "040" || turn.TemplateIDs[1] != "085" {
		t.Fatalf("expected [040 085], got %v", turn.TemplateIDs)
	}
	if s.Snapshot().Phase != PhaseAfter085 {
		t.Errorf("expected phase AFTER_085, got %v", s.Snapshot().Phase)
	}
}

func TestClosingYesMovesToHandoffWithSetupTemplates(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseClosing
	s.Unlock()

	turn := m.OnTranscript("call-1", s, "はい、お願いします")
	want := []string{"060", "061", "062", "104"}
	if len(turn.TemplateIDs) != len(want) {
		t.Fatalf("expected %v, got %v", want, turn.TemplateIDs)
	}
	for i, id := range want {
		if turn.TemplateIDs[i] != id {
			t.Errorf("template[%d] = %q, want %q", i, turn.TemplateIDs[i], id)
		}
	}
	if s.Snapshot().Phase != PhaseHandoff {
		t.Errorf("expected phase HANDOFF, got %v", s.Snapshot().Phase)
	}
}

func TestClosingNoEndsCall(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseClosing
	s.Unlock()

	turn := m.OnTranscript("call-1", s, "いりません")
	if len(turn.TemplateIDs) != 2 || turn.TemplateIDs[0] != "087" || turn.TemplateIDs[1] != "088" {
		t.Fatalf("expected [087 088], got %v", turn.TemplateIDs)
	}
	if s.Snapshot().Phase != PhaseEnd {
		t.Errorf("expected phase END, got %v", s.Snapshot().Phase)
	}
}

func TestPhaseEndShortCircuitsToEmptyTurn(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseEnd
	s.Unlock()

	turn := m.OnTranscript("call-1", s, "まだいますか")
	if len(turn.TemplateIDs) != 0 {
		t.Errorf("expected no templates once phase is END, got %v", turn.TemplateIDs)
	}
	if turn.TransferRequested {
		t.Error("expected no transfer from a closed call")
	}
}

func TestHandoffDoneStripsHandoffTemplatesFromFutureSelections(t *testing.T) {
	s := New()
	m := NewMachine(nil)
	s.Lock()
	s.Phase = PhaseClosing
	s.HandoffState = HandoffDone
	s.Unlock()

	// CLOSING's own YES branch would normally queue "104" (the transfer
	// cue) along with the setup templates; once handoff is already done,
	// the central filter in OnTranscript must strip it before playback.
	turn := m.OnTranscript("call-1", s, "はい、お願いします")
	for _, id := range turn.TemplateIDs {
		if id == "0604" || id == "104" {
			t.Errorf("expected 0604/104 stripped once handoff is done, got %v", turn.TemplateIDs)
		}
	}
	if len(turn.TemplateIDs) == 0 {
		t.Fatal("expected the setup templates to still play, just without 104")
	}
}

func TestDropRedundant104KeepsOnlyOneHandoffCue(t *testing.T) {
	got := dropRedundant104([]string{"060", "0604", "104"})
	want := []string{"060", "0604"}
	if len(got) != len(want) {
		t.Fatalf("got %v, want %v", got, want)
	}
	for i, id := range want {
		if got[i] != id {
			t.Errorf("got[%d] = %q, want %q", i, got[i], id)
		}
	}

	unchanged := []string{"060", "061", "062", "104"}
	if got := dropRedundant104(unchanged); len(got) != 4 || got[3] != "104" {
		t.Errorf("expected 104 to survive without a 0604 alongside it, got %v", got)
	}
}

func TestAutoHandoffFromUnclearStreak(t *testing.T) {
	s := New()
	g := NewMisunderstandingGuard(nil)
	s.Lock()
	s.UnclearStreak = 2
	s.HandoffState = HandoffIdle
	s.Unlock()

	resolved, rewrote := g.CheckAutoHandoffFromUnclear("call-1", s, intent.Price)
	if !rewrote || resolved != intent.HandoffRequest {
		t.Fatalf("expected forced HANDOFF_REQUEST, got %v rewrote=%v", resolved, rewrote)
	}
}
