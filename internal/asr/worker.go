package asr

import (
	"context"
	"errors"
	"io"
	"sync"
	"time"

	speech "cloud.google.com/go/speech/apiv2"
	"cloud.google.com/go/speech/apiv2/speechpb"
	"google.golang.org/api/option"

	"github.com/libertycall/ivr-gateway/internal/gatewayerr"
	"github.com/libertycall/ivr-gateway/internal/logging"
)

const (
	// queueWarmup is the length of the silence burst (16kHz PCM16) the
	// worker sends ahead of the caller's first queued audio, giving the
	// bidi stream time to establish before the caller's first words arrive.
	queueWarmup = 200 * time.Millisecond
	// idleKeepAlive empties the queue on a schedule even with no caller
	// audio, preventing the server from timing out the stream during long
	// TTS-only stretches.
	idleKeepAlive = 1 * time.Second
	// backoffInitial/backoffMax bound the restart delay after a stream
	// crash that looks transient rather than permanent.
	backoffInitial = 250 * time.Millisecond
	backoffMax     = 5 * time.Second
)

// Transcript is one ASR result, partial or final.
type Transcript struct {
	CallID     string
	Text       string
	IsFinal    bool
	Confidence float32
	ReceivedAt time.Time
}

// Worker owns one call's Google Speech streaming recognition session.
type Worker struct {
	callID     string
	client     *speech.Client
	recognizer string
	streamCfg  *speechpb.StreamingRecognitionConfig
	log        logging.Logger

	queue chan []byte

	transcripts chan Transcript
	done        chan struct{}
	closeOnce   sync.Once
}

// NewWorker constructs a Worker for one call. The returned Worker has not
// started streaming yet; call Run in its own goroutine.
func NewWorker(ctx context.Context, callID, recognizer string, streamCfg *speechpb.StreamingRecognitionConfig, queueSize int, clientOpts []option.ClientOption, log logging.Logger) (*Worker, error) {
	client, err := speech.NewClient(ctx, clientOpts...)
	if err != nil {
		return nil, gatewayerr.WrapCall(callID, "asr_client_init", err)
	}
	if log == nil {
		log = logging.NewNop()
	}
	return &Worker{
		callID:      callID,
		client:      client,
		recognizer:  recognizer,
		streamCfg:   streamCfg,
		log:         log,
		queue:       make(chan []byte, queueSize),
		transcripts: make(chan Transcript, 32),
		done:        make(chan struct{}),
	}, nil
}

// Push enqueues one chunk of 16kHz PCM16 audio. It never blocks: if the
// bounded queue is full, the oldest chunk is dropped so RTP/WS readers
// never stall waiting on ASR.
func (w *Worker) Push(chunk []byte) error {
	select {
	case <-w.done:
		return gatewayerr.WrapCall(w.callID, "asr_push", gatewayerr.ErrASRStreamClosed)
	default:
	}
	select {
	case w.queue <- chunk:
		return nil
	default:
		select {
		case <-w.queue:
		default:
		}
		select {
		case w.queue <- chunk:
		default:
		}
		return nil
	}
}

// Transcripts returns the channel the dialogue machine should drain for
// partial and final results.
func (w *Worker) Transcripts() <-chan Transcript { return w.transcripts }

// Close stops the worker and releases the underlying gRPC client.
func (w *Worker) Close() {
	w.closeOnce.Do(func() {
		close(w.done)
		_ = w.client.Close()
	})
}

// Run drives the bidi stream until ctx is cancelled or Close is called,
// restarting on transient failures with exponential backoff. Permanent
// errors (bad credentials, invalid config) are not retried.
func (w *Worker) Run(ctx context.Context) {
	backoff := backoffInitial
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		default:
		}

		err := w.runOnce(ctx)
		if err == nil || errors.Is(err, context.Canceled) {
			return
		}
		if isPermanent(err) {
			w.log.Errorw("asr_permanent_error", "call_id", w.callID, "error", err)
			return
		}
		w.log.Warnw("asr_stream_restart", "call_id", w.callID, "error", err, "backoff", backoff)
		select {
		case <-time.After(backoff):
		case <-ctx.Done():
			return
		case <-w.done:
			return
		}
		backoff *= 2
		if backoff > backoffMax {
			backoff = backoffMax
		}
	}
}

func (w *Worker) runOnce(ctx context.Context) error {
	stream, err := w.client.StreamingRecognize(ctx)
	if err != nil {
		return gatewayerr.WrapCall(w.callID, "asr_stream_open", err)
	}

	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		Recognizer: w.recognizer,
		StreamingRequest: &speechpb.StreamingRecognizeRequest_StreamingConfig{
			StreamingConfig: w.streamCfg,
		},
	}); err != nil {
		return gatewayerr.WrapCall(w.callID, "asr_stream_config", err)
	}

	errCh := make(chan error, 2)
	go w.sendLoop(ctx, stream, errCh)
	go w.recvLoop(stream, errCh)

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		return ctx.Err()
	case <-w.done:
		return nil
	}
}

func (w *Worker) sendLoop(ctx context.Context, stream speechpb.Speech_StreamingRecognizeClient, errCh chan<- error) {
	warmup := make([]byte, int(queueWarmup/time.Millisecond)*16*2)
	if err := stream.Send(&speechpb.StreamingRecognizeRequest{
		StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: warmup},
	}); err != nil {
		errCh <- gatewayerr.WrapCall(w.callID, "asr_send", err)
		return
	}
	ticker := time.NewTicker(idleKeepAlive)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-w.done:
			return
		case chunk := <-w.queue:
			if err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: chunk},
			}); err != nil {
				errCh <- gatewayerr.WrapCall(w.callID, "asr_send", err)
				return
			}
		case <-ticker.C:
			// Idle keepalive: drain whatever has accumulated since the
			// last tick, even an empty slice, to keep the stream alive
			// during silence.
			chunk := []byte{}
			select {
			case chunk = <-w.queue:
			default:
			}
			if err := stream.Send(&speechpb.StreamingRecognizeRequest{
				StreamingRequest: &speechpb.StreamingRecognizeRequest_Audio{Audio: chunk},
			}); err != nil {
				errCh <- gatewayerr.WrapCall(w.callID, "asr_send", err)
				return
			}
		}
	}
}

func (w *Worker) recvLoop(stream speechpb.Speech_StreamingRecognizeClient, errCh chan<- error) {
	for {
		resp, err := stream.Recv()
		if err == io.EOF {
			errCh <- nil
			return
		}
		if err != nil {
			errCh <- gatewayerr.WrapCall(w.callID, "asr_recv", err)
			return
		}
		for _, result := range resp.GetResults() {
			alts := result.GetAlternatives()
			if len(alts) == 0 {
				continue
			}
			t := Transcript{
				CallID:     w.callID,
				Text:       alts[0].GetTranscript(),
				IsFinal:    result.GetIsFinal(),
				Confidence: alts[0].GetConfidence(),
				ReceivedAt: time.Now(),
			}
			select {
			case w.transcripts <- t:
			default:
				// Slow consumer: drop the oldest queued transcript
				// (partial or final) rather than block the recv loop.
				select {
				case <-w.transcripts:
				default:
				}
				select {
				case w.transcripts <- t:
				default:
				}
			}
		}
	}
}

func isPermanent(err error) bool {
	var callErr *gatewayerr.CallError
	if errors.As(err, &callErr) {
		switch callErr.Stage {
		case "asr_client_init", "asr_stream_config":
			return true
		}
	}
	return false
}
