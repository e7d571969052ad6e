// Package playback implements the Playback Coordinator: a per-call actor
// that serializes uuid_broadcast/uuid_break ESL commands so two template
// playbacks never overlap on one channel, suppresses duplicate plays of
// the same template within a short window, and breaks playback the
// instant a barge-in is detected.
//
// Grounded on the actor/mailbox pattern of the teacher's WebRTC streamer
// (one goroutine, one inbound channel per session), generalized here from
// audio frames to playback commands.
package playback

import (
	"context"
	"time"

	"github.com/libertycall/ivr-gateway/internal/esl"
	"github.com/libertycall/ivr-gateway/internal/logging"
	"github.com/libertycall/ivr-gateway/internal/templates"
)

// duplicateSuppressWindow is how long after a template plays that an
// identical request is dropped rather than replayed.
const duplicateSuppressWindow = 10 * time.Second

// completionTimeout bounds how long play() waits for a
// CHANNEL_EXECUTE_COMPLETE event before assuming the softswitch's playback
// finished on its own (guards against a dropped event or a misconfigured
// event subscription leaving IsPlaying stuck true).
const completionTimeout = 2 * time.Minute

// command is one playback request accepted into the coordinator's mailbox.
type command struct {
	templateID string
	path       string
	done       chan error
}

// Coordinator serializes playback for exactly one call.
type Coordinator struct {
	callID   string
	uuid     string
	client   *esl.Client
	registry *templates.Registry
	events   <-chan esl.Event
	log      logging.Logger

	mailbox chan command
	breakCh chan struct{}

	lastPlayed   map[string]time.Time
	isPlayingVal bool
}

// NewCoordinator builds a Coordinator for one call's channel UUID. events is
// the call's esl.Router subscription for CHANNEL_EXECUTE_COMPLETE
// notifications; pass nil to fall back to completionTimeout on every play
// (e.g. in tests with no live ESL event stream).
func NewCoordinator(callID, uuid string, client *esl.Client, registry *templates.Registry, events <-chan esl.Event, log logging.Logger) *Coordinator {
	if log == nil {
		log = logging.NewNop()
	}
	c := &Coordinator{
		callID:     callID,
		uuid:       uuid,
		client:     client,
		registry:   registry,
		events:     events,
		log:        log,
		mailbox:    make(chan command, 8),
		breakCh:    make(chan struct{}, 1),
		lastPlayed: make(map[string]time.Time),
	}
	return c
}

// Run drives the coordinator's mailbox until ctx is cancelled. Call it in
// its own goroutine, one per call.
func (c *Coordinator) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case cmd := <-c.mailbox:
			cmd.done <- c.play(cmd.templateID, cmd.path)
		}
	}
}

// Play enqueues template playback and blocks until it completes, is broken
// by a barge-in, or the context is cancelled. A request for a template
// already played within the last 10 seconds is silently dropped (returns
// nil without touching the channel).
func (c *Coordinator) Play(ctx context.Context, templateID string) error {
	path, err := c.registry.ResolveAudioPath(templateID)
	if err != nil {
		return err
	}
	done := make(chan error, 1)
	select {
	case c.mailbox <- command{templateID: templateID, path: path, done: done}:
	case <-ctx.Done():
		return ctx.Err()
	}
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (c *Coordinator) play(templateID, path string) error {
	if last, ok := c.lastPlayed[templateID]; ok && time.Since(last) < duplicateSuppressWindow {
		c.log.Debugw("playback_duplicate_suppressed", "call_id", c.callID, "template_id", templateID)
		return nil
	}

	c.isPlayingVal = true
	defer func() { c.isPlayingVal = false }()

	if err := c.client.Broadcast(c.uuid, path, "aleg"); err != nil {
		return err
	}
	c.lastPlayed[templateID] = time.Now()

	timeout := time.NewTimer(completionTimeout)
	defer timeout.Stop()
	select {
	case <-c.breakCh:
		return c.client.Break(c.uuid)
	case <-c.events:
		return nil
	case <-timeout.C:
		c.log.Debugw("playback_completion_timeout", "call_id", c.callID, "template_id", templateID)
		return nil
	}
}

// BargeIn requests that any in-flight playback stop immediately.
func (c *Coordinator) BargeIn() {
	select {
	case c.breakCh <- struct{}{}:
	default:
	}
	_ = c.client.Break(c.uuid)
}

// IsPlaying reports whether a template is currently being broadcast. It is
// read without synchronization; engine.Call.OnAudioFrame passes it to the
// barge-in gate.
func (c *Coordinator) IsPlaying() bool { return c.isPlayingVal }
