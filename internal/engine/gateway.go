package engine

import (
	"context"
	"path/filepath"
	"sync"
	"time"

	"github.com/libertycall/ivr-gateway/internal/audio"
	"github.com/libertycall/ivr-gateway/internal/dialogue"
	"github.com/libertycall/ivr-gateway/internal/esl"
	"github.com/libertycall/ivr-gateway/internal/lifecycle"
	"github.com/libertycall/ivr-gateway/internal/logging"
	"github.com/libertycall/ivr-gateway/internal/playback"
	"github.com/libertycall/ivr-gateway/internal/sessionlog"
	"github.com/libertycall/ivr-gateway/internal/templates"
)

// introClientID is the one client that gets a combined recording-notice +
// greeting WAV queued immediately on init (§4.10 step 5); every other
// client waits for the caller to speak before its ENTRY templates play.
const introClientID = "001"

// introSilencePad holds the line briefly before the recording-notice/
// greeting plays, giving the softswitch's RTP path time to stabilize.
const introSilencePad = 500 * time.Millisecond

// Gateway is the top-level orchestrator: one process-wide instance owning
// the Call Lifecycle Manager, the shared ESL client and template registry,
// and the table of in-flight Calls keyed by call_id. It implements
// initserver.InitHandler and is the FrameHandler both transports dispatch
// into.
type Gateway struct {
	manager    *lifecycle.Manager
	machine    *dialogue.Machine
	templates  *templates.Registry
	esl        *esl.Client
	router     *esl.Router
	store      sessionlog.Store
	sessionDir string
	vadModel   string
	asrFactory ASRFactory
	log        logging.Logger

	mu    sync.Mutex
	calls map[string]*Call

	ctx context.Context
}

// Config bundles Gateway's static dependencies.
type Config struct {
	Manager       *lifecycle.Manager
	Templates     *templates.Registry
	ESL           *esl.Client
	Store         sessionlog.Store
	SessionRoot   string
	VADModelPath  string
	ASRFactory    ASRFactory
	Log           logging.Logger
}

// New builds a Gateway. Pass context.Background()-derived ctx; it is the
// parent for every per-call Call context and for the esl.Router's drain
// loop, which it starts immediately if cfg.ESL is set.
func New(ctx context.Context, cfg Config) *Gateway {
	log := cfg.Log
	if log == nil {
		log = logging.NewNop()
	}
	var router *esl.Router
	if cfg.ESL != nil {
		router = esl.NewRouter(cfg.ESL, log)
		go router.Run(ctx)
	}
	return &Gateway{
		manager:    cfg.Manager,
		machine:    dialogue.NewMachine(log),
		templates:  cfg.Templates,
		esl:        cfg.ESL,
		router:     router,
		store:      cfg.Store,
		sessionDir: cfg.SessionRoot,
		vadModel:   cfg.VADModelPath,
		asrFactory: cfg.ASRFactory,
		log:        log,
		calls:      make(map[string]*Call),
		ctx:        ctx,
	}
}

// OnInit implements initserver.InitHandler: resolves client routing,
// allocates every per-call collaborator, and starts the call's actor
// goroutines.
func (g *Gateway) OnInit(req lifecycle.InitRequest) (*lifecycle.Session, lifecycle.ClientProfile) {
	session, profile := g.manager.OnInit(req)

	writer, err := sessionlog.New(g.sessionDir, session.ClientID, session.CallID, session.StartedAt, g.log)
	if err != nil {
		g.log.Errorw("session_writer_init_failed", "call_id", session.CallID, "error", err)
		return session, profile
	}

	var completionEvents <-chan esl.Event
	if g.router != nil {
		completionEvents = g.router.Subscribe(session.ChannelUUID)
	}
	coordinator := playback.NewCoordinator(session.CallID, session.ChannelUUID, g.esl, g.templates, completionEvents, g.log)
	g.manager.AttachCoordinator(session.CallID, coordinator)
	timerSet := g.manager.Timers(session.CallID)

	worker, err := g.asrFactory(g.ctx, session.CallID)
	if err != nil {
		g.log.Errorw("asr_worker_init_failed", "call_id", session.CallID, "error", err)
		return session, profile
	}

	resampler, err := audio.NewUpsampler8to16()
	if err != nil {
		g.log.Errorw("resampler_init_failed", "call_id", session.CallID, "error", err)
		return session, profile
	}

	var gate *audio.Gate
	if g.vadModel != "" {
		gate, err = audio.NewGate(audio.DefaultGateConfig(g.vadModel))
		if err != nil {
			g.log.Warnw("vad_gate_init_failed", "call_id", session.CallID, "error", err)
			gate = nil
		}
	}

	call := newCall(g.ctx, session, g.manager, g.machine, coordinator, timerSet, writer, worker, resampler, gate, g.OnHangup, g.log)

	g.mu.Lock()
	g.calls[session.CallID] = call
	g.mu.Unlock()

	recordPath := filepath.Join(writer.Dir(), "call.wav")
	go func() {
		if err := g.esl.Record(session.ChannelUUID, recordPath, true); err != nil {
			g.log.Warnw("recording_start_failed", "call_id", session.CallID, "error", err)
		}
		if session.ClientID == introClientID {
			time.Sleep(introSilencePad)
			call.playTemplate("000-002")
		}
		call.ArmNoInput()
	}()

	return session, profile
}

// OnFrame implements both rtpserver.FrameHandler and wsserver.FrameHandler:
// it must never block, matching §5's real-time requirement.
func (g *Gateway) OnFrame(callID string, payload []byte) {
	g.mu.Lock()
	call, ok := g.calls[callID]
	g.mu.Unlock()
	if !ok {
		return
	}
	call.OnAudioFrame(payload)
}

// CallIDForChannelUUID adapts the lifecycle registry's channel-UUID index
// for rtpinfo.Resolver and wsserver's path-based dispatch.
func (g *Gateway) CallIDForChannelUUID(uuid string) (string, bool) {
	return g.manager.Registry().ByChannelUUID(uuid)
}

// Teardown stops and removes a call's Call actor and, on its way out,
// persists the Postgres summary mirror and closes the transcript/call_log
// files. Called from OnHangup, which serves both the softswitch's hangup
// RPC and the call's own auto-hangup timers.
func (g *Gateway) Teardown(callID string) {
	g.mu.Lock()
	call, ok := g.calls[callID]
	delete(g.calls, callID)
	g.mu.Unlock()
	if !ok {
		return
	}

	session := call.session
	snapshot := session.State.Snapshot()
	call.Close()
	if g.router != nil {
		g.router.Unsubscribe(session.ChannelUUID)
	}

	summary := sessionlog.Summary{
		ClientID:        session.ClientID,
		UUID:            session.ChannelUUID,
		StartTime:       session.StartedAt,
		EndTime:         time.Now(),
		HandoffOccurred: snapshot.HandoffCompleted,
		FinalPhase:      string(snapshot.Phase),
	}
	if err := call.writer.Close(summary); err != nil {
		g.log.Warnw("session_writer_close_failed", "call_id", callID, "error", err)
	}

	if g.store != nil {
		record := &sessionlog.SessionRecord{
			CallID:            callID,
			ClientID:          session.ClientID,
			ChannelUUID:       session.ChannelUUID,
			CallerNumber:      session.CallerNumber,
			StartTime:         session.StartedAt,
			EndTime:           summary.EndTime,
			TotalPhrases:      summary.TotalPhrases,
			HandoffOccurred:   summary.HandoffOccurred,
			FinalPhase:        summary.FinalPhase,
			SessionDirectory:  call.writer.Dir(),
		}
		if err := g.store.Save(g.ctx, record); err != nil {
			g.log.Warnw("session_record_save_failed", "call_id", callID, "error", err)
		}
	}

	g.manager.Teardown(g.ctx, callID)
}

// OnHangup implements initserver.InitHandler for the softswitch's hangup
// RPC (§4.10 on_hangup): issue uuid_kill, then always run the full call
// teardown regardless of whether the kill itself succeeded.
func (g *Gateway) OnHangup(callID string) error {
	killErr := g.manager.Kill(callID)
	if killErr != nil {
		g.log.Warnw("hangup_kill_failed", "call_id", callID, "error", killErr)
	}
	g.Teardown(callID)
	return killErr
}

// OnTransfer implements initserver.InitHandler for the softswitch's
// transfer RPC, delegating to the lifecycle Manager (§4.9).
func (g *Gateway) OnTransfer(callID string) error {
	return g.manager.OnTransfer(callID)
}

// ActiveCalls reports how many calls the gateway is currently driving.
func (g *Gateway) ActiveCalls() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.calls)
}
