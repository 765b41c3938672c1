package tts

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type recordingEngine struct {
	mu     sync.Mutex
	spoken []string
	gate   chan struct{}
	fail   string
}

func (e *recordingEngine) Speak(_ context.Context, text string) error {
	if e.gate != nil {
		<-e.gate
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.spoken = append(e.spoken, text)
	if text == e.fail {
		return errors.New("audio device busy")
	}
	return nil
}

func (e *recordingEngine) said() []string {
	e.mu.Lock()
	defer e.mu.Unlock()
	return append([]string(nil), e.spoken...)
}

func TestQueueSpeaksInOrder(t *testing.T) {
	eng := &recordingEngine{fail: "two"}
	q := NewQueue(eng, nil)

	q.Say("one")
	q.Say("   ")
	q.Say("two")
	q.Say("three")
	q.Close()
	q.Say("late")

	require.NoError(t, q.Run(context.Background()))
	assert.Equal(t, []string{"one", "two", "three"}, eng.said())
}

func TestQueueSayDoesNotBlock(t *testing.T) {
	eng := &recordingEngine{gate: make(chan struct{})}
	q := NewQueue(eng, nil)

	done := make(chan error, 1)
	go func() { done <- q.Run(context.Background()) }()

	returned := make(chan struct{})
	go func() {
		q.Say("first")
		q.Say("second")
		close(returned)
	}()

	select {
	case <-returned:
	case <-time.After(time.Second):
		t.Fatal("Say blocked on playback")
	}

	close(eng.gate)
	q.Close()
	require.NoError(t, <-done)
	assert.Equal(t, []string{"first", "second"}, eng.said())
}

func TestQueueStopsOnCancel(t *testing.T) {
	q := NewQueue(&recordingEngine{}, nil)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan error, 1)
	go func() { done <- q.Run(ctx) }()

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Run did not return after cancel")
	}
}
