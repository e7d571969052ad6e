// Package engine wires one active call's audio pipeline, ASR worker,
// dialogue machine, playback coordinator, and timers into a single
// per-call actor, and the Gateway that creates one of these per init event
// and tears it down on hangup.
//
// Grounded on the teacher's webrtcStreamer: one goroutine draining ASR
// transcripts (the equivalent of its runGrpcReader loop), non-blocking
// audio handoff into the pipeline, and a sync.WaitGroup-tracked shutdown.
package engine

import (
	"context"
	"sync"
	"time"
	"unicode/utf8"

	"github.com/libertycall/ivr-gateway/internal/asr"
	"github.com/libertycall/ivr-gateway/internal/audio"
	"github.com/libertycall/ivr-gateway/internal/dialogue"
	"github.com/libertycall/ivr-gateway/internal/esl"
	"github.com/libertycall/ivr-gateway/internal/lifecycle"
	"github.com/libertycall/ivr-gateway/internal/logging"
	"github.com/libertycall/ivr-gateway/internal/playback"
	"github.com/libertycall/ivr-gateway/internal/sessionlog"
	"github.com/libertycall/ivr-gateway/internal/templates"
	"github.com/libertycall/ivr-gateway/internal/timers"
)

// minTextLengthForIntent is the shortest transcript Classify/SelectTemplateIDs
// are allowed to see. A single ambiguous-vowel character still gets a
// NOT_HEARD reply (dialogue.IsAmbiguousVowel); anything else under the
// floor is too short to carry intent and gets no reply at all.
const minTextLengthForIntent = 2

// ASRFactory builds a streaming ASR worker for one call, isolating engine
// from Google's concrete client construction (and letting tests substitute
// a fake).
type ASRFactory func(ctx context.Context, callID string) (*asr.Worker, error)

// Call owns every per-call collaborator and the goroutines driving them.
type Call struct {
	id      string
	session *lifecycle.Session
	log     logging.Logger

	manager     *lifecycle.Manager
	machine     *dialogue.Machine
	coordinator *playback.Coordinator
	timerSet    *timers.Manager
	writer      *sessionlog.Writer
	worker      *asr.Worker
	resampler   *audio.Resampler
	gate        *audio.Gate
	hangup      func(callID string) error

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	closeOnce sync.Once
}

func newCall(
	ctx context.Context,
	session *lifecycle.Session,
	manager *lifecycle.Manager,
	machine *dialogue.Machine,
	coordinator *playback.Coordinator,
	timerSet *timers.Manager,
	writer *sessionlog.Writer,
	worker *asr.Worker,
	resampler *audio.Resampler,
	gate *audio.Gate,
	hangup func(callID string) error,
	log logging.Logger,
) *Call {
	callCtx, cancel := context.WithCancel(ctx)
	c := &Call{
		id:          session.CallID,
		session:     session,
		log:         log,
		manager:     manager,
		machine:     machine,
		coordinator: coordinator,
		timerSet:    timerSet,
		writer:      writer,
		worker:      worker,
		resampler:   resampler,
		gate:        gate,
		hangup:      hangup,
		ctx:         callCtx,
		cancel:      cancel,
	}

	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		coordinator.Run(callCtx)
	}()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		worker.Run(callCtx)
	}()
	c.wg.Add(1)
	go func() {
		defer c.wg.Done()
		c.drainTranscripts()
	}()

	return c
}

// ArmNoInput starts the call's initial no-input timer. The Gateway calls
// this once, either immediately on init or after the client-specific intro
// sequence finishes playing (§4.10 step 6: "arm the initial no-input timer
// after the greeting completes").
func (c *Call) ArmNoInput() {
	c.armNoInput()
}

// OnAudioFrame decodes one mu-law RTP/WS frame, feeds it to the ASR worker,
// and runs the barge-in gate against the coordinator's current playback
// state. Never blocks: Worker.Push and the gate itself are both bounded.
func (c *Call) OnAudioFrame(payload []byte) {
	pcm := audio.DecodeMulaw(payload)
	floats := audio.PCM16ToFloat32(pcm)

	wideband, err := c.resampler.Process(floats)
	if err != nil {
		c.log.Warnw("audio_resample_failed", "call_id", c.id, "error", err)
		return
	}

	if err := c.worker.Push(audio.Float32ToPCM16(wideband)); err != nil {
		c.log.Debugw("asr_push_dropped", "call_id", c.id, "error", err)
	}

	if c.gate == nil {
		return
	}
	result, err := c.gate.Process(wideband, c.coordinator.IsPlaying())
	if err != nil {
		c.log.Warnw("vad_gate_failed", "call_id", c.id, "error", err)
		return
	}
	if result.BargeIn {
		c.coordinator.BargeIn()
		c.timerSet.CancelPlaybackWatchdog()
	}
}

func (c *Call) drainTranscripts() {
	for {
		select {
		case <-c.ctx.Done():
			return
		case t, ok := <-c.worker.Transcripts():
			if !ok {
				return
			}
			c.onTranscript(t)
		}
	}
}

func (c *Call) onTranscript(t asr.Transcript) {
	if err := c.writer.AppendTranscript(sessionlog.TranscriptEvent{
		Timestamp: t.ReceivedAt,
		CallID:    c.id,
		Text:      t.Text,
		IsFinal:   t.IsFinal,
	}); err != nil {
		c.log.Warnw("transcript_append_failed", "call_id", c.id, "error", err)
	}
	if !t.IsFinal {
		// Interim results are never run through the dialogue machine, only
		// remembered: Google's final result occasionally closes an
		// utterance with no text of its own, and the last interim text is
		// the best stand-in for what was actually said.
		if t.Text != "" {
			c.session.State.Lock()
			c.session.State.LastPartialText = t.Text
			c.session.State.Unlock()
		}
		return
	}

	mergedText := t.Text
	c.session.State.Lock()
	if mergedText == "" {
		mergedText = c.session.State.LastPartialText
	}
	c.session.State.LastPartialText = ""
	c.session.State.Unlock()

	if mergedText == "" {
		return
	}

	runeLen := utf8.RuneCountInString(mergedText)
	if runeLen < minTextLengthForIntent && !(runeLen == 1 && dialogue.IsAmbiguousVowel(mergedText)) {
		// Too short to carry intent and not even an ambiguous vowel: the
		// recognizer heard something, but not enough to react to.
		return
	}

	c.timerSet.CancelNoInput()
	c.machine.OnCallerSpeech(c.session.State)

	var turn dialogue.Turn
	if runeLen == 1 && dialogue.IsAmbiguousVowel(mergedText) {
		turn = c.machine.ForceNotHeard(c.session.State)
	} else {
		turn = c.machine.OnTranscript(c.id, c.session.State, mergedText)
	}
	if err := c.writer.AppendTurn(t.ReceivedAt, "caller", mergedText, "", string(turn.Intent)); err != nil {
		c.log.Warnw("call_log_append_failed", "call_id", c.id, "error", err)
	}

	for _, templateID := range turn.TemplateIDs {
		c.playTemplate(templateID)
	}

	if turn.TransferRequested {
		if err := c.manager.OnTransfer(c.id); err != nil {
			c.log.Errorw("transfer_failed", "call_id", c.id, "error", err)
		}
		return
	}

	if _, ok := lastTemplateAutoHangup(turn.TemplateIDs); ok {
		c.timerSet.ScheduleHangup(timers.HangupAfterDecline, func() { _ = c.hangup(c.id) })
	}
	c.armNoInput()
}

func (c *Call) playTemplate(templateID string) {
	c.timerSet.ArmPlaybackWatchdog(func() { c.timerSet.CancelPlaybackWatchdog() })
	if err := c.coordinator.Play(c.ctx, templateID); err != nil {
		c.log.Warnw("playback_failed", "call_id", c.id, "template_id", templateID, "error", err)
	}
	c.timerSet.CancelPlaybackWatchdog()
	if err := c.writer.AppendTurn(time.Now(), "ai", "", templateID, ""); err != nil {
		c.log.Warnw("call_log_append_failed", "call_id", c.id, "error", err)
	}
}

func lastTemplateAutoHangup(templateIDs []string) (string, bool) {
	for i := len(templateIDs) - 1; i >= 0; i-- {
		if tmpl, ok := templates.Config[templateIDs[i]]; ok && tmpl.AutoHangupAfter {
			return templateIDs[i], true
		}
	}
	return "", false
}

func (c *Call) armNoInput() {
	c.timerSet.ArmNoInput(timers.NoInputInterval, func() {
		templateID, autoHangup := c.machine.OnNoInputTimeout(c.id, c.session.State)
		c.playTemplate(templateID)
		if autoHangup {
			c.timerSet.ScheduleHangup(timers.HangupAfter112, func() { _ = c.hangup(c.id) })
			return
		}
		c.armNoInput()
	})
}

// Close stops every goroutine this call owns. Idempotent; safe to call
// more than once from concurrent teardown paths (hangup event racing a
// transport disconnect).
func (c *Call) Close() {
	c.closeOnce.Do(func() {
		c.cancel()
		c.worker.Close()
		if c.gate != nil {
			_ = c.gate.Close()
		}
		c.wg.Wait()
	})
}
