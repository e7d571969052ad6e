package audio

import (
	resampler "github.com/tphakala/go-audio-resampler"
)

// Resampler wraps the pack's polyphase resampler to convert between the
// RTP leg's 8kHz narrowband audio and the 16kHz wideband audio the ASR
// worker streams to Google Speech.
type Resampler struct {
	srcRate int
	dstRate int
	r       *resampler.Resampler
}

// NewUpsampler8to16 builds a resampler that converts 8kHz mu-law-derived
// PCM into 16kHz PCM for ASR ingestion.
func NewUpsampler8to16() (*Resampler, error) {
	r, err := resampler.New(SampleRateNarrowband, SampleRateWideband, 1)
	if err != nil {
		return nil, err
	}
	return &Resampler{srcRate: SampleRateNarrowband, dstRate: SampleRateWideband, r: r}, nil
}

// NewDownsampler16to8 builds a resampler for the reverse direction, used
// when feeding TTS-synthesized 16kHz audio back to an 8kHz playback leg.
func NewDownsampler16to8() (*Resampler, error) {
	r, err := resampler.New(SampleRateWideband, SampleRateNarrowband, 1)
	if err != nil {
		return nil, err
	}
	return &Resampler{srcRate: SampleRateWideband, dstRate: SampleRateNarrowband, r: r}, nil
}

// Process resamples one block of float32 samples.
func (rs *Resampler) Process(samples []float32) ([]float32, error) {
	if rs.srcRate == rs.dstRate {
		return samples, nil
	}
	return rs.r.Resample(samples)
}
