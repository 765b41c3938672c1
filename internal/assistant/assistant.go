// Package assistant ties voice input to the admission controller: it runs
// capture sessions, reports their outcome as notices and submits recognized
// speech as if it had been typed.
package assistant

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"delta/internal/capture"
	"delta/internal/ui"
	"delta/pkg/audioconv"
)

const (
	ListeningNotice   = "Listening..."
	NotCaughtNotice   = "Sorry, I didn't catch that."
	BusyNotice        = "Already listening."
	MicTestingNotice  = "Testing microphone..."
	MicTestOK         = "Microphone test successful!"
	MicTestNoAudio    = "Microphone test failed: No audio detected."
	micTestFailPrefix = "Microphone test failed: "

	// VoiceEchoPrefix marks recognized speech in the conversation.
	VoiceEchoPrefix = "You (voice): "

	DefaultMicTestDuration = 2 * time.Second
)

type Capturer interface {
	Capture(ctx context.Context, maxDur time.Duration) (capture.Result, error)
	Record(ctx context.Context, d time.Duration) ([]byte, error)
	SampleRate() int
}

type Submitter interface {
	Submit(text string)
}

// Ducker lowers other audio while listening.
type Ducker interface {
	Duck(ctx context.Context) error
	Restore(ctx context.Context) error
}

// Chime signals that listening has started.
type Chime interface {
	Play(ctx context.Context) error
}

type Config struct {
	Capturer  Capturer
	Submitter Submitter
	Sink      ui.Sink
	Ducker    Ducker
	Chime     Chime
	MaxListen time.Duration
	MicTest   time.Duration
	Logger    *slog.Logger
}

type Assistant struct {
	cfg Config
	log *slog.Logger
}

func New(cfg Config) *Assistant {
	if cfg.MaxListen <= 0 {
		cfg.MaxListen = 5 * time.Second
	}
	if cfg.MicTest <= 0 {
		cfg.MicTest = DefaultMicTestDuration
	}
	log := cfg.Logger
	if log == nil {
		log = slog.Default()
	}
	return &Assistant{cfg: cfg, log: log.With("component", "assistant")}
}

func (a *Assistant) notice(msg string) {
	a.cfg.Sink.Display(msg, true)
}

// Listen runs one voice capture and submits what was heard.
func (a *Assistant) Listen(ctx context.Context) {
	if a.cfg.Chime != nil {
		if err := a.cfg.Chime.Play(ctx); err != nil {
			a.log.Warn("chime failed", "err", err)
		}
	}

	a.notice(ListeningNotice)

	if a.cfg.Ducker != nil {
		if err := a.cfg.Ducker.Duck(ctx); err != nil {
			a.log.Warn("duck failed", "err", err)
		}
		defer func() {
			rctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 2*time.Second)
			defer cancel()
			if err := a.cfg.Ducker.Restore(rctx); err != nil {
				a.log.Warn("restore volume failed", "err", err)
			}
		}()
	}

	res, err := a.cfg.Capturer.Capture(ctx, a.cfg.MaxListen)
	switch {
	case errors.Is(err, capture.ErrBusy):
		a.notice(BusyNotice)
		return
	case ctx.Err() != nil:
		return
	case err != nil:
		a.log.Error("capture failed", "err", err)
		a.notice("Microphone error: " + err.Error())
		return
	}

	a.log.Info("capture finished", "status", res.Status)

	switch res.Status {
	case capture.Recognized:
		if text := strings.TrimSpace(res.Text); text != "" {
			a.cfg.Sink.Display(VoiceEchoPrefix+text, false)
			a.cfg.Submitter.Submit(text)
			return
		}
		a.notice(NotCaughtNotice)
	case capture.Unrecognized:
		a.notice(NotCaughtNotice)
	case capture.Unavailable:
		a.notice(res.Text)
	}
}

// TestMicrophone records a short clip, round-trips it through a WAV file and
// reports whether any audio arrived.
func (a *Assistant) TestMicrophone(ctx context.Context) {
	a.notice(MicTestingNotice)

	frames, level, err := a.micTest(ctx)
	switch {
	case errors.Is(err, capture.ErrBusy):
		a.notice(BusyNotice)
	case err != nil:
		a.log.Error("microphone test failed", "err", err)
		a.notice(micTestFailPrefix + err.Error())
	case frames == 0:
		a.notice(MicTestNoAudio)
	default:
		a.log.Info("microphone test passed", "frames", frames, "rms", level)
		a.notice(MicTestOK)
	}
}

func (a *Assistant) micTest(ctx context.Context) (int, float64, error) {
	pcm, err := a.cfg.Capturer.Record(ctx, a.cfg.MicTest)
	if err != nil {
		return 0, 0, err
	}
	if len(pcm) < 2 {
		return 0, 0, nil
	}

	dir, err := os.MkdirTemp("", "delta-mictest")
	if err != nil {
		return 0, 0, err
	}
	defer os.RemoveAll(dir)

	path := filepath.Join(dir, "test.wav")
	if err := audioconv.WriteWAVFile(path, audioconv.PCM16ToInt16(pcm), a.cfg.Capturer.SampleRate(), 1); err != nil {
		return 0, 0, fmt.Errorf("write wav: %w", err)
	}

	info, err := audioconv.ReadWAVInfo(path)
	if err != nil {
		return 0, 0, fmt.Errorf("read wav: %w", err)
	}

	return info.Frames, audioconv.RMS(pcm), nil
}
