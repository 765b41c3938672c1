// Package capture records fixed-length utterances from a microphone source
// and hands them to a speech recognizer.
package capture

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync/atomic"
	"time"

	"delta/pkg/stt"
)

const (
	DefaultPollTimeout  = 500 * time.Millisecond
	DefaultSilenceLimit = 5
	DefaultQueueSize    = 256

	// UnavailableText is the Result text when the recognizer could not be reached.
	UnavailableText = "Speech recognition service unavailable."
)

// ErrBusy is returned when a capture session is already running.
var ErrBusy = errors.New("capture: session already in progress")

// Source is a microphone-like producer of little-endian PCM16 chunks.
// Start must not block; onChunk may be called from any goroutine and must not
// retain the slice after it returns.
type Source interface {
	Start(onChunk func(chunk []byte)) error
	Stop() error
	SampleRate() int
	// ChunkSize is the number of frames per delivered chunk.
	ChunkSize() int
}

type Status int

const (
	Recognized Status = iota
	Unrecognized
	Unavailable
)

func (s Status) String() string {
	switch s {
	case Recognized:
		return "recognized"
	case Unrecognized:
		return "unrecognized"
	case Unavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("Status(%d)", int(s))
	}
}

type Result struct {
	Status Status
	Text   string
}

type Options struct {
	PollTimeout  time.Duration
	SilenceLimit int
	QueueSize    int
	Logger       *slog.Logger
}

type Capturer struct {
	src  Source
	rec  stt.Recognizer
	opts Options
	log  *slog.Logger

	queue   chan []byte
	dropped atomic.Int64
	busy    atomic.Bool
}

func New(src Source, rec stt.Recognizer, opts Options) *Capturer {
	if opts.PollTimeout <= 0 {
		opts.PollTimeout = DefaultPollTimeout
	}
	if opts.SilenceLimit <= 0 {
		opts.SilenceLimit = DefaultSilenceLimit
	}
	if opts.QueueSize <= 0 {
		opts.QueueSize = DefaultQueueSize
	}
	log := opts.Logger
	if log == nil {
		log = slog.Default()
	}

	return &Capturer{
		src:   src,
		rec:   rec,
		opts:  opts,
		log:   log.With("component", "capture"),
		queue: make(chan []byte, opts.QueueSize),
	}
}

func (c *Capturer) SampleRate() int { return c.src.SampleRate() }

// Dropped reports how many chunks were discarded because the queue was full.
func (c *Capturer) Dropped() int64 { return c.dropped.Load() }

// Capture records at most maxDur of audio and recognizes it. The returned
// error is non-nil only for microphone faults, ErrBusy and context
// cancellation; recognition problems are reported through Result.Status.
func (c *Capturer) Capture(ctx context.Context, maxDur time.Duration) (Result, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return Result{}, ErrBusy
	}
	defer c.busy.Store(false)

	pcm, err := c.collect(ctx, maxDur)
	if err != nil {
		return Result{}, err
	}

	if len(pcm) == 0 {
		c.log.Debug("no audio captured")
		return Result{Status: Unrecognized}, nil
	}

	text, err := c.rec.Recognize(ctx, pcm, c.src.SampleRate(), 2)
	switch {
	case err == nil:
		return Result{Status: Recognized, Text: text}, nil
	case errors.Is(err, stt.ErrUnrecognized):
		return Result{Status: Unrecognized}, nil
	default:
		if !errors.Is(err, stt.ErrServiceUnavailable) {
			c.log.Warn("recognizer failed", "err", err)
		}
		return Result{Status: Unavailable, Text: UnavailableText}, nil
	}
}

// Record returns up to d of raw PCM16 audio without recognizing it.
func (c *Capturer) Record(ctx context.Context, d time.Duration) ([]byte, error) {
	if !c.busy.CompareAndSwap(false, true) {
		return nil, ErrBusy
	}
	defer c.busy.Store(false)

	return c.collect(ctx, d)
}

func (c *Capturer) maxChunks(d time.Duration) int {
	chunk := c.src.ChunkSize()
	if chunk <= 0 {
		return 0
	}
	return int(int64(d) * int64(c.src.SampleRate()) / (int64(chunk) * int64(time.Second)))
}

func (c *Capturer) drain() {
	for {
		select {
		case <-c.queue:
		default:
			return
		}
	}
}

func (c *Capturer) push(chunk []byte) {
	buf := append([]byte(nil), chunk...)
	select {
	case c.queue <- buf:
	default:
		c.dropped.Add(1)
	}
}

func (c *Capturer) collect(ctx context.Context, d time.Duration) ([]byte, error) {
	c.drain()

	maxChunks := c.maxChunks(d)
	dropped := c.dropped.Load()

	defer func() {
		if err := c.src.Stop(); err != nil {
			c.log.Warn("stop source", "err", err)
		}
	}()

	if err := c.src.Start(c.push); err != nil {
		return nil, fmt.Errorf("start microphone: %w", err)
	}

	var (
		chunks  [][]byte
		silence int
	)

	timer := time.NewTimer(c.opts.PollTimeout)
	defer timer.Stop()

loop:
	for len(chunks) < maxChunks {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case chunk := <-c.queue:
			chunks = append(chunks, chunk)
		case <-timer.C:
			silence++
			if silence >= c.opts.SilenceLimit {
				c.log.Debug("silence limit reached", "timeouts", silence, "chunks", len(chunks))
				break loop
			}
		}
		if !timer.Stop() {
			select {
			case <-timer.C:
			default:
			}
		}
		timer.Reset(c.opts.PollTimeout)
	}

	if n := c.dropped.Load() - dropped; n > 0 {
		c.log.Warn("audio chunks dropped", "count", n)
	}

	size := 0
	for _, ch := range chunks {
		size += len(ch)
	}
	pcm := make([]byte, 0, size)
	for _, ch := range chunks {
		pcm = append(pcm, ch...)
	}

	return pcm, nil
}
