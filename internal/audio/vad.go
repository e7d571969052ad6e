package audio

import (
	"time"

	sileroSpeech "github.com/streamer45/silero-vad-go/speech"
)

// GateConfig controls the combined RMS + VAD barge-in gate.
type GateConfig struct {
	SpeechThresholdDB float64
	SilenceTimeout    time.Duration
	MinSpeechDuration time.Duration
	PreSpeechBuffer   time.Duration
	SampleRate        int
	ModelPath         string
}

// DefaultGateConfig matches the gateway's production call-center tuning.
func DefaultGateConfig(modelPath string) GateConfig {
	return GateConfig{
		SpeechThresholdDB: -30,
		SilenceTimeout:    1000 * time.Millisecond,
		MinSpeechDuration: 300 * time.Millisecond,
		PreSpeechBuffer:   300 * time.Millisecond,
		SampleRate:        SampleRateWideband,
		ModelPath:         modelPath,
	}
}

// Gate combines a cheap RMS pre-filter (so silence never reaches the
// model) with a Silero VAD pass that confirms genuine speech before the
// dialogue machine treats it as a barge-in or as utterance content.
type Gate struct {
	cfg      GateConfig
	detector *sileroSpeech.Detector

	isSpeech       bool
	speechStart    time.Time
	lastSpeechTime time.Time
	buffer         []float32
	preSpeech      []float32
	preSpeechLen   int
}

// NewGate constructs a Gate, loading the Silero ONNX model from
// cfg.ModelPath.
func NewGate(cfg GateConfig) (*Gate, error) {
	detector, err := sileroSpeech.NewDetector(sileroSpeech.DetectorConfig{
		ModelPath:            cfg.ModelPath,
		SampleRate:           cfg.SampleRate,
		Threshold:            0.5,
		MinSilenceDurationMs: int(cfg.SilenceTimeout.Milliseconds()),
		SpeechPadMs:          int(cfg.PreSpeechBuffer.Milliseconds()),
	})
	if err != nil {
		return nil, err
	}
	preSpeechSamples := int(cfg.PreSpeechBuffer.Seconds() * float64(cfg.SampleRate))
	return &Gate{
		cfg:          cfg,
		detector:     detector,
		preSpeechLen: preSpeechSamples,
		preSpeech:    make([]float32, 0, preSpeechSamples),
	}, nil
}

// Result is the outcome of feeding one block of caller audio through the
// gate.
type Result struct {
	IsSpeech    bool // true while the caller is actively speaking
	BargeIn     bool // true the instant speech starts while TTS is playing
	SpeechEnded bool
	Audio       []float32
}

// Process runs the RMS pre-filter, then (only on energy above threshold)
// confirms with the VAD model. It never calls the VAD on silent blocks,
// keeping steady-state CPU cost near zero between utterances.
func (g *Gate) Process(samples []float32, ttsPlaying bool) (Result, error) {
	energyDB := RMSToDB(RMS(samples))
	if energyDB < g.cfg.SpeechThresholdDB {
		return g.handleSilence(samples), nil
	}

	segments, err := g.detector.Detect(samples)
	if err != nil {
		return Result{}, err
	}
	if len(segments) == 0 {
		return g.handleSilence(samples), nil
	}
	return g.handleSpeech(samples, ttsPlaying), nil
}

func (g *Gate) handleSpeech(samples []float32, ttsPlaying bool) Result {
	now := time.Now()
	bargeIn := false
	if !g.isSpeech {
		g.isSpeech = true
		g.speechStart = now
		g.buffer = append(g.buffer, g.preSpeech...)
		bargeIn = ttsPlaying
	}
	g.lastSpeechTime = now
	g.buffer = append(g.buffer, samples...)
	g.preSpeech = g.preSpeech[:0]
	return Result{IsSpeech: true, BargeIn: bargeIn}
}

func (g *Gate) handleSilence(samples []float32) Result {
	g.preSpeech = append(g.preSpeech, samples...)
	if len(g.preSpeech) > g.preSpeechLen {
		g.preSpeech = g.preSpeech[len(g.preSpeech)-g.preSpeechLen:]
	}
	if !g.isSpeech {
		return Result{}
	}
	g.buffer = append(g.buffer, samples...)
	if time.Since(g.lastSpeechTime) < g.cfg.SilenceTimeout {
		return Result{IsSpeech: true}
	}
	g.isSpeech = false
	if time.Since(g.speechStart) < g.cfg.MinSpeechDuration {
		g.buffer = g.buffer[:0]
		return Result{}
	}
	audio := g.buffer
	g.buffer = nil
	return Result{SpeechEnded: true, Audio: audio}
}

// Close releases the underlying VAD model resources.
func (g *Gate) Close() error {
	return g.detector.Close()
}
