package audio

import "testing"

func TestPCM16RoundTrip(t *testing.T) {
	samples := []float32{0, 0.5, -0.5, 1, -1}
	pcm := Float32ToPCM16(samples)
	back := PCM16ToFloat32(pcm)
	if len(back) != len(samples) {
		t.Fatalf("length mismatch: got %d want %d", len(back), len(samples))
	}
	for i := range samples {
		diff := back[i] - samples[i]
		if diff < 0 {
			diff = -diff
		}
		if diff > 0.001 {
			t.Errorf("sample %d: got %f want %f", i, back[i], samples[i])
		}
	}
}

func TestRMSSilenceIsVeryNegativeDB(t *testing.T) {
	silence := make([]float32, 160)
	db := RMSToDB(RMS(silence))
	if db != -100 {
		t.Errorf("expected -100dB for silence, got %f", db)
	}
}

func TestRingBufferDropsOldestOnOverflow(t *testing.T) {
	rb := NewRingBuffer(4)
	rb.Write([]byte{1, 2})
	rb.Write([]byte{3, 4, 5})
	got := rb.Drain()
	want := []byte{2, 3, 4, 5}
	if len(got) != len(want) {
		t.Fatalf("got %v want %v", got, want)
	}
	for i := range want {
		if got[i] != want[i] {
			t.Fatalf("got %v want %v", got, want)
		}
	}
}

func TestEncodeWAVHeader(t *testing.T) {
	pcm := []byte{1, 2, 3, 4}
	w := EncodeWAV(pcm, 8000, 1)
	if string(w[0:4]) != "RIFF" || string(w[8:12]) != "WAVE" {
		t.Fatalf("malformed WAV header: %x", w[:12])
	}
	if len(w) != 44+len(pcm) {
		t.Errorf("expected 44-byte header + pcm, got total length %d", len(w))
	}
}
