package dialogue

import "testing"

func TestNoInputLadderEscalates(t *testing.T) {
	m := NewMachine(nil)
	s := New()

	id1, hang1 := m.OnNoInputTimeout("call-1", s)
	if id1 != "110" || hang1 {
		t.Fatalf("1st timeout: got %q hangup=%v, want 110/false", id1, hang1)
	}
	id2, hang2 := m.OnNoInputTimeout("call-1", s)
	if id2 != "111" || hang2 {
		t.Fatalf("2nd timeout: got %q hangup=%v, want 111/false", id2, hang2)
	}
	id3, hang3 := m.OnNoInputTimeout("call-1", s)
	if id3 != "112" || !hang3 {
		t.Fatalf("3rd timeout: got %q hangup=%v, want 112/true", id3, hang3)
	}
	id4, hang4 := m.OnNoInputTimeout("call-1", s)
	if id4 != "112" || !hang4 {
		t.Fatalf("4th timeout: got %q hangup=%v, want terminal 112/true", id4, hang4)
	}
}

func TestCallerSpeechResetsNoInputStreak(t *testing.T) {
	m := NewMachine(nil)
	s := New()
	m.OnNoInputTimeout("call-1", s)
	m.OnNoInputTimeout("call-1", s)
	m.OnCallerSpeech(s)
	s.Lock()
	streak := s.NoInputStreak
	s.Unlock()
	if streak != 0 {
		t.Fatalf("expected streak reset to 0, got %d", streak)
	}
}
