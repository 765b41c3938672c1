// Package tts queues responses for speech so callers never wait on playback.
package tts

import (
	"context"
	"log/slog"
	"strings"
	"sync"
)

// Engine synthesizes and plays one utterance, blocking until done.
type Engine interface {
	Speak(ctx context.Context, text string) error
}

// Queue speaks utterances one at a time in the order they were queued.
type Queue struct {
	engine Engine
	log    *slog.Logger

	mu      sync.Mutex
	cond    *sync.Cond
	pending []string
	closed  bool
}

func NewQueue(engine Engine, log *slog.Logger) *Queue {
	if log == nil {
		log = slog.Default()
	}
	q := &Queue{engine: engine, log: log.With("component", "tts")}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// Say queues text and returns immediately. Blank text and text queued after
// Close are ignored.
func (q *Queue) Say(text string) {
	if strings.TrimSpace(text) == "" {
		return
	}

	q.mu.Lock()
	defer q.mu.Unlock()

	if q.closed {
		return
	}
	q.pending = append(q.pending, text)
	q.cond.Signal()
}

// Close stops accepting new text. Run returns once the queue is drained.
func (q *Queue) Close() {
	q.mu.Lock()
	q.closed = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Run speaks queued text until ctx is done or the queue is closed and empty.
func (q *Queue) Run(ctx context.Context) error {
	stop := context.AfterFunc(ctx, q.Close)
	defer stop()

	for {
		q.mu.Lock()
		for len(q.pending) == 0 && !q.closed {
			q.cond.Wait()
		}
		if len(q.pending) == 0 || ctx.Err() != nil {
			q.mu.Unlock()
			return nil
		}
		text := q.pending[0]
		q.pending = q.pending[1:]
		q.mu.Unlock()

		if err := q.engine.Speak(ctx, text); err != nil {
			q.log.Error("Failed to voice out", "err", err)
		}
	}
}
