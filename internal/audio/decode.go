// Package audio implements the per-call Audio Pipeline: mu-law decode,
// RMS gate + VAD-based barge-in detection, 8kHz<->16kHz resampling, and the
// bounded pre-stream ring buffer that holds audio captured before the ASR
// worker has finished warming up.
package audio

import (
	"math"

	"github.com/zaf/g711"
)

const (
	// SampleRateNarrowband is the RTP leg's native rate (telephony mu-law).
	SampleRateNarrowband = 8000
	// SampleRateWideband is the rate Google Speech's streaming recognizer
	// expects.
	SampleRateWideband = 16000
)

// DecodeMulaw converts a mu-law encoded RTP payload into linear PCM16 LE
// samples.
func DecodeMulaw(encoded []byte) []byte {
	return g711.DecodeUlaw(encoded)
}

// PCM16ToFloat32 converts little-endian PCM16 bytes into normalized
// float32 samples in [-1, 1], the representation the VAD and resampler
// operate on.
func PCM16ToFloat32(pcm []byte) []float32 {
	n := len(pcm) / 2
	out := make([]float32, n)
	for i := 0; i < n; i++ {
		v := int16(uint16(pcm[2*i]) | uint16(pcm[2*i+1])<<8)
		out[i] = float32(v) / math.MaxInt16
	}
	return out
}

// Float32ToPCM16 is the inverse of PCM16ToFloat32, used when handing
// resampled caller audio to the ASR worker.
func Float32ToPCM16(samples []float32) []byte {
	out := make([]byte, len(samples)*2)
	for i, s := range samples {
		v := int16(clamp(s) * math.MaxInt16)
		out[2*i] = byte(v)
		out[2*i+1] = byte(v >> 8)
	}
	return out
}

func clamp(v float32) float32 {
	if v > 1 {
		return 1
	}
	if v < -1 {
		return -1
	}
	return v
}

// RMS returns the root-mean-square energy of a float32 sample block, used
// both by the barge-in gate and by the VAD's own energy computation.
func RMS(samples []float32) float64 {
	if len(samples) == 0 {
		return 0
	}
	var sum float64
	for _, s := range samples {
		sum += float64(s) * float64(s)
	}
	return math.Sqrt(sum / float64(len(samples)))
}

// RMSToDB converts a linear RMS value to dBFS, clamped at -100dB for
// silence so comparisons against a threshold never divide by zero.
func RMSToDB(rms float64) float64 {
	if rms < 1e-10 {
		return -100
	}
	return 20 * math.Log10(rms)
}
