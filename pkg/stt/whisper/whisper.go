// Package whisper recognizes speech locally with a whisper.cpp model.
package whisper

import (
	"context"
	"errors"
	"fmt"
	"io"
	log "log/slog"
	"runtime"
	"strings"
	"sync"

	"github.com/ggerganov/whisper.cpp/bindings/go/pkg/whisper"

	"delta/pkg/audioconv"
	"delta/pkg/stt"
)

// whisper.cpp only accepts mono float audio at this rate.
const modelRate = 16000

type Options struct {
	Language      string // "auto", "en", "ru"; region suffixes are dropped
	TranslateToEn bool
	Threads       int // <=0 => NumCPU()
	InitialPrompt string
	BeamSize      int // 0 = greedy
}

type Segment struct {
	Text     string
	StartSec float64
	EndSec   float64
}

type Result struct {
	Text     string
	Segments []Segment
	Language string
}

// Transcriber owns a loaded model. Contexts created from the model are not
// safe for concurrent use, so Transcribe calls are serialized.
type Transcriber struct {
	mu    sync.Mutex
	model whisper.Model
	opt   Options
}

func New(modelPath string, opt Options) (*Transcriber, error) {
	if modelPath == "" {
		return nil, errors.New("empty model path")
	}
	m, err := whisper.New(modelPath)
	if err != nil {
		return nil, fmt.Errorf("load model: %w", err)
	}
	return &Transcriber{model: m, opt: opt}, nil
}

func (t *Transcriber) Close() error {
	if t.model == nil {
		return nil
	}
	return t.model.Close()
}

// Recognize implements stt.Recognizer.
func (t *Transcriber) Recognize(ctx context.Context, pcm []byte, sampleRate, sampleWidth int) (string, error) {
	if sampleWidth != 2 {
		return "", fmt.Errorf("unsupported sample width %d", sampleWidth)
	}
	if len(pcm) == 0 {
		return "", stt.ErrUnrecognized
	}

	samples := audioconv.Resample(audioconv.PCM16ToFloat32(pcm), sampleRate, modelRate)
	res, err := t.Transcribe(ctx, samples)
	if err != nil {
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return "", err
		}
		return "", fmt.Errorf("whisper: %w: %w", stt.ErrServiceUnavailable, err)
	}

	text := strings.TrimSpace(res.Text)
	if text == "" || isBlankMarker(text) {
		return "", stt.ErrUnrecognized
	}
	return text, nil
}

// isBlankMarker reports whisper's placeholder for silent input.
func isBlankMarker(text string) bool {
	switch strings.ToUpper(strings.Trim(text, "[]() ")) {
	case "BLANK_AUDIO", "SILENCE", "NO SPEECH":
		return true
	}
	return false
}

// Transcribe runs the model over mono 16 kHz float samples in [-1, 1].
func (t *Transcriber) Transcribe(ctx context.Context, pcm16k []float32) (Result, error) {
	if t.model == nil {
		return Result{}, errors.New("nil model")
	}
	if len(pcm16k) == 0 {
		return Result{}, errors.New("no audio samples provided")
	}

	t.mu.Lock()
	defer t.mu.Unlock()

	wctx, err := t.model.NewContext()
	if err != nil {
		return Result{}, fmt.Errorf("new context: %w", err)
	}

	lang := t.opt.Language
	if lang == "" {
		lang = "auto"
	}
	lang, _, _ = strings.Cut(lang, "-")
	if err := wctx.SetLanguage(lang); err != nil {
		return Result{}, fmt.Errorf("set language: %w", err)
	}
	wctx.SetTranslate(t.opt.TranslateToEn)

	threads := t.opt.Threads
	if threads <= 0 {
		threads = runtime.NumCPU()
	}
	wctx.SetThreads(uint(threads))

	if t.opt.BeamSize > 0 {
		wctx.SetBeamSize(t.opt.BeamSize)
	}
	if t.opt.InitialPrompt != "" {
		wctx.SetInitialPrompt(t.opt.InitialPrompt)
	}

	if err := wctx.Process(pcm16k, nil, nil, nil); err != nil {
		return Result{}, fmt.Errorf("process: %w", err)
	}

	var (
		segs  []Segment
		texts []string
	)
	for {
		if err := ctx.Err(); err != nil {
			return Result{}, err
		}

		s, err := wctx.NextSegment()
		if err == io.EOF {
			break
		}
		if err != nil {
			return Result{}, fmt.Errorf("next segment: %w", err)
		}
		segs = append(segs, Segment{
			Text:     s.Text,
			StartSec: s.Start.Seconds(),
			EndSec:   s.End.Seconds(),
		})
		texts = append(texts, strings.TrimSpace(s.Text))
	}

	detected := wctx.DetectedLanguage()
	if detected == "" {
		detected = wctx.Language()
	}

	log.Debug("Transcribed", "segments", len(segs), "language", detected)

	return Result{
		Text:     strings.Join(texts, " "),
		Segments: segs,
		Language: detected,
	}, nil
}
