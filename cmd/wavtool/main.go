// Command wavtool regenerates the prerecorded response WAV files under the
// template audio directory from the Template Registry's static text, and
// can optionally play a freshly rendered file back locally for manual
// review before it's shipped to production.
//
// This is offline authoring tooling, run by hand against a client's audio
// directory; it is never invoked from the call path.
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"time"

	texttospeech "cloud.google.com/go/texttospeech/apiv1"
	"cloud.google.com/go/texttospeech/apiv1/texttospeechpb"
	"github.com/gen2brain/malgo"
	"github.com/joho/godotenv"

	"github.com/libertycall/ivr-gateway/internal/audio"
	"github.com/libertycall/ivr-gateway/internal/templates"
)

func main() {
	_ = godotenv.Load()

	var (
		templateID = flag.String("template", "", "template_id to render (omit to render every template)")
		outDir     = flag.String("out", "", "directory to write rendered WAV files (required)")
		audition   = flag.Bool("audition", false, "play each rendered file back through the default audio device")
	)
	flag.Parse()

	if *outDir == "" {
		log.Fatal("wavtool: -out is required")
	}

	ctx := context.Background()
	client, err := texttospeech.NewClient(ctx)
	if err != nil {
		log.Fatalf("wavtool: texttospeech client: %v", err)
	}
	defer client.Close()

	ids := []string{*templateID}
	if *templateID == "" {
		ids = ids[:0]
		for id := range templates.Config {
			ids = append(ids, id)
		}
	}

	var player *devicePlayer
	if *audition {
		p, err := newDevicePlayer()
		if err != nil {
			log.Fatalf("wavtool: audio device: %v", err)
		}
		defer p.Close()
		player = p
	}

	for _, id := range ids {
		tmpl, ok := templates.Config[id]
		if !ok {
			log.Printf("wavtool: unknown template %q, skipping", id)
			continue
		}
		pcm, err := synthesize(ctx, client, tmpl)
		if err != nil {
			log.Printf("wavtool: synthesize %q: %v", id, err)
			continue
		}
		wav := audio.EncodeWAV(pcm, audio.SampleRateNarrowband, 1)
		path := filepath.Join(*outDir, id+".wav")
		if err := os.WriteFile(path, wav, 0o644); err != nil {
			log.Printf("wavtool: write %q: %v", path, err)
			continue
		}
		fmt.Printf("rendered %s -> %s (%d bytes)\n", id, path, len(wav))

		if player != nil {
			if err := player.Play(pcm); err != nil {
				log.Printf("wavtool: audition %q: %v", id, err)
			}
		}
	}
}

func synthesize(ctx context.Context, client *texttospeech.Client, tmpl templates.Template) ([]byte, error) {
	req := texttospeechpb.SynthesizeSpeechRequest{
		Input: &texttospeechpb.SynthesisInput{
			InputSource: &texttospeechpb.SynthesisInput_Text{Text: tmpl.Text},
		},
		Voice: &texttospeechpb.VoiceSelectionParams{
			LanguageCode: "ja-JP",
			Name:         tmpl.Voice,
		},
		AudioConfig: &texttospeechpb.AudioConfig{
			SpeakingRate:    tmpl.Rate,
			SampleRateHertz: int32(audio.SampleRateNarrowband),
			AudioEncoding:   texttospeechpb.AudioEncoding_LINEAR16,
		},
	}
	resp, err := client.SynthesizeSpeech(ctx, &req)
	if err != nil {
		return nil, err
	}
	// SynthesizeSpeech's LINEAR16 response still carries a WAV header;
	// the session directory/registry convention is raw PCM on disk inside
	// our own minimal container, so strip Google's header before
	// re-wrapping with audio.EncodeWAV.
	const googleWAVHeaderLen = 44
	if len(resp.AudioContent) <= googleWAVHeaderLen {
		return resp.AudioContent, nil
	}
	return resp.AudioContent[googleWAVHeaderLen:], nil
}

// devicePlayer is a minimal malgo-backed playback device for auditioning
// freshly rendered templates, grounded on the pack's local-microphone/
// speaker duplex device setup (malgo.InitContext/InitDevice/Start).
type devicePlayer struct {
	ctx    *malgo.AllocatedContext
	device *malgo.Device
	feed   chan []byte
}

func newDevicePlayer() (*devicePlayer, error) {
	mctx, err := malgo.InitContext(nil, malgo.ContextConfig{}, nil)
	if err != nil {
		return nil, err
	}

	feed := make(chan []byte, 1)
	deviceConfig := malgo.DefaultDeviceConfig(malgo.Playback)
	deviceConfig.Playback.Format = malgo.FormatS16
	deviceConfig.Playback.Channels = 1
	deviceConfig.SampleRate = uint32(audio.SampleRateNarrowband)

	var pending []byte
	onSamples := func(out, _ []byte, frameCount uint32) {
		if len(pending) == 0 {
			select {
			case chunk := <-feed:
				pending = chunk
			default:
			}
		}
		n := copy(out, pending)
		pending = pending[n:]
		for i := n; i < len(out); i++ {
			out[i] = 0
		}
	}

	device, err := malgo.InitDevice(mctx.Context, deviceConfig, malgo.DeviceCallbacks{Data: onSamples})
	if err != nil {
		mctx.Uninit()
		return nil, err
	}
	if err := device.Start(); err != nil {
		device.Uninit()
		mctx.Uninit()
		return nil, err
	}
	return &devicePlayer{ctx: mctx, device: device, feed: feed}, nil
}

// Play blocks roughly for the duration of pcm at the narrowband rate,
// giving the device callback time to drain it before returning.
func (p *devicePlayer) Play(pcm []byte) error {
	select {
	case p.feed <- pcm:
	default:
	}
	durationMs := len(pcm) / 2 * 1000 / audio.SampleRateNarrowband
	time.Sleep(time.Duration(durationMs) * time.Millisecond)
	return nil
}

func (p *devicePlayer) Close() {
	p.device.Uninit()
	p.ctx.Uninit()
}
