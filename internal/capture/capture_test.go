package capture

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delta/pkg/stt"
)

type fakeSource struct {
	rate     int
	chunk    int
	emit     int
	interval time.Duration
	startErr error

	started atomic.Int32
	stopped atomic.Int32

	mu   sync.Mutex
	done chan struct{}
}

func (f *fakeSource) SampleRate() int { return f.rate }
func (f *fakeSource) ChunkSize() int  { return f.chunk }

func (f *fakeSource) Start(onChunk func([]byte)) error {
	f.started.Add(1)
	if f.startErr != nil {
		return f.startErr
	}

	done := make(chan struct{})
	f.mu.Lock()
	f.done = done
	f.mu.Unlock()

	go func() {
		for i := 0; i < f.emit; i++ {
			select {
			case <-done:
				return
			case <-time.After(f.interval):
			}
			buf := make([]byte, f.chunk*2)
			buf[0] = byte(i)
			onChunk(buf)
		}
	}()
	return nil
}

func (f *fakeSource) Stop() error {
	f.stopped.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done != nil {
		close(f.done)
		f.done = nil
	}
	return nil
}

type recordingRecognizer struct {
	mu    sync.Mutex
	calls int
	pcm   []byte
	text  string
	err   error
}

func (r *recordingRecognizer) Recognize(_ context.Context, pcm []byte, rate, width int) (string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.calls++
	r.pcm = append([]byte(nil), pcm...)
	return r.text, r.err
}

func TestCaptureStopsAtMaxChunks(t *testing.T) {
	src := &fakeSource{rate: 16000, chunk: 1600, emit: 30, interval: time.Millisecond}
	rec := &recordingRecognizer{text: "hello"}
	c := New(src, rec, Options{PollTimeout: time.Second, QueueSize: 64})

	res, err := c.Capture(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, Result{Status: Recognized, Text: "hello"}, res)

	// floor(1s * 16000 / 1600) = 10 chunks of 3200 bytes, in arrival order.
	require.Len(t, rec.pcm, 10*3200)
	for i := 0; i < 10; i++ {
		assert.Equal(t, byte(i), rec.pcm[i*3200], "chunk %d out of order", i)
	}
	assert.EqualValues(t, 1, src.stopped.Load())
}

func TestCaptureMaxChunksFloors(t *testing.T) {
	c := New(&fakeSource{rate: 16000, chunk: 1024}, &recordingRecognizer{}, Options{})
	assert.Equal(t, 78, c.maxChunks(5*time.Second))
	assert.Equal(t, 0, c.maxChunks(50*time.Millisecond))
}

func TestCaptureSilenceEndsEarly(t *testing.T) {
	src := &fakeSource{rate: 16000, chunk: 1024}
	rec := &recordingRecognizer{}
	c := New(src, rec, Options{PollTimeout: 20 * time.Millisecond, SilenceLimit: 5})

	start := time.Now()
	res, err := c.Capture(context.Background(), 5*time.Second)
	elapsed := time.Since(start)

	require.NoError(t, err)
	assert.Equal(t, Unrecognized, res.Status)
	assert.Empty(t, res.Text)
	assert.Zero(t, rec.calls, "recognizer must not be called without audio")
	assert.GreaterOrEqual(t, elapsed, 5*20*time.Millisecond)
	assert.Less(t, elapsed, 2*time.Second)
	assert.EqualValues(t, 1, src.stopped.Load())
}

func TestCaptureSilenceIsCumulative(t *testing.T) {
	// Chunks arrive slower than the poll timeout, so every chunk is preceded
	// by a timeout. The counter never resets and the loop ends after five.
	src := &fakeSource{rate: 16000, chunk: 160, emit: 100, interval: 30 * time.Millisecond}
	rec := &recordingRecognizer{text: "partial"}
	c := New(src, rec, Options{PollTimeout: 20 * time.Millisecond, SilenceLimit: 5})

	res, err := c.Capture(context.Background(), 10*time.Second)
	require.NoError(t, err)
	assert.Equal(t, Recognized, res.Status)
	assert.Less(t, len(rec.pcm)/320, 100)
}

func TestCaptureStartFailure(t *testing.T) {
	src := &fakeSource{rate: 16000, chunk: 1024, startErr: errors.New("no device")}
	rec := &recordingRecognizer{}
	c := New(src, rec, Options{})

	_, err := c.Capture(context.Background(), time.Second)
	require.Error(t, err)
	assert.ErrorContains(t, err, "no device")
	assert.EqualValues(t, 1, src.stopped.Load())
	assert.Zero(t, rec.calls)
}

func TestCaptureContextCancel(t *testing.T) {
	src := &fakeSource{rate: 16000, chunk: 1024}
	c := New(src, &recordingRecognizer{}, Options{PollTimeout: time.Second})

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := c.Capture(ctx, 5*time.Second)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), time.Second)
	assert.EqualValues(t, 1, src.stopped.Load())
}

func TestCaptureStatusMapping(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want Result
	}{
		{"unrecognized", stt.ErrUnrecognized, Result{Status: Unrecognized}},
		{"unavailable", stt.ErrServiceUnavailable, Result{Status: Unavailable, Text: UnavailableText}},
		{"wrapped unavailable", errors.Join(errors.New("dial"), stt.ErrServiceUnavailable), Result{Status: Unavailable, Text: UnavailableText}},
		{"unknown", errors.New("boom"), Result{Status: Unavailable, Text: UnavailableText}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			src := &fakeSource{rate: 16000, chunk: 1600, emit: 2, interval: time.Millisecond}
			c := New(src, &recordingRecognizer{text: "ignored", err: tt.err}, Options{PollTimeout: 20 * time.Millisecond, SilenceLimit: 1})

			res, err := c.Capture(context.Background(), time.Second)
			require.NoError(t, err)
			assert.Equal(t, tt.want, res)
		})
	}
}

func TestCaptureRejectsConcurrentSession(t *testing.T) {
	gate := make(chan struct{})
	entered := make(chan struct{})
	rec := stt.RecognizerFunc(func(context.Context, []byte, int, int) (string, error) {
		close(entered)
		<-gate
		return "first", nil
	})

	src := &fakeSource{rate: 16000, chunk: 1600, emit: 1, interval: time.Millisecond}
	c := New(src, rec, Options{PollTimeout: 10 * time.Millisecond, SilenceLimit: 1})

	var (
		wg  sync.WaitGroup
		res Result
	)
	wg.Add(1)
	go func() {
		defer wg.Done()
		res, _ = c.Capture(context.Background(), time.Second)
	}()

	<-entered
	_, err := c.Capture(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrBusy)
	_, err = c.Record(context.Background(), time.Second)
	assert.ErrorIs(t, err, ErrBusy)

	close(gate)
	wg.Wait()
	assert.Equal(t, "first", res.Text)
}

func TestCaptureReleasesAfterPanic(t *testing.T) {
	src := &fakeSource{rate: 16000, chunk: 1600, emit: 1, interval: time.Millisecond}
	panicking := stt.RecognizerFunc(func(context.Context, []byte, int, int) (string, error) {
		panic("recognizer exploded")
	})
	c := New(src, panicking, Options{PollTimeout: 10 * time.Millisecond, SilenceLimit: 1})

	assert.Panics(t, func() {
		_, _ = c.Capture(context.Background(), time.Second)
	})
	assert.EqualValues(t, 1, src.stopped.Load())

	c.rec = &recordingRecognizer{text: "again"}
	res, err := c.Capture(context.Background(), time.Second)
	require.NoError(t, err)
	assert.Equal(t, "again", res.Text)
}

func TestCaptureDrainsStaleChunks(t *testing.T) {
	src := &fakeSource{rate: 16000, chunk: 1600, emit: 1, interval: time.Millisecond}
	rec := &recordingRecognizer{text: "fresh"}
	c := New(src, rec, Options{PollTimeout: 10 * time.Millisecond, SilenceLimit: 1})

	stale := make([]byte, 3200)
	stale[0] = 0xff
	c.push(stale)
	c.push(stale)

	_, err := c.Capture(context.Background(), time.Second)
	require.NoError(t, err)
	require.Len(t, rec.pcm, 3200)
	assert.Equal(t, byte(0), rec.pcm[0])
}

func TestCaptureCountsDroppedChunks(t *testing.T) {
	c := New(&fakeSource{rate: 16000, chunk: 4}, &recordingRecognizer{}, Options{QueueSize: 2})

	for i := 0; i < 5; i++ {
		c.push([]byte{1, 2})
	}
	assert.EqualValues(t, 3, c.Dropped())
}

func TestRecordReturnsRawAudio(t *testing.T) {
	src := &fakeSource{rate: 8000, chunk: 800, emit: 50, interval: time.Millisecond}
	rec := &recordingRecognizer{}
	c := New(src, rec, Options{PollTimeout: time.Second, QueueSize: 64})

	pcm, err := c.Record(context.Background(), 2*time.Second)
	require.NoError(t, err)
	assert.Len(t, pcm, 20*1600)
	assert.Zero(t, rec.calls)
	assert.Equal(t, 8000, c.SampleRate())
}

type panickingSource struct{ fakeSource }

func (p *panickingSource) Start(func([]byte)) error {
	panic("driver fault")
}

func TestCaptureStopsSourceOnPanic(t *testing.T) {
	src := &panickingSource{fakeSource{rate: 16000, chunk: 1024}}
	c := New(src, &recordingRecognizer{}, Options{})

	assert.Panics(t, func() {
		_, _ = c.Capture(context.Background(), time.Second)
	})
	assert.EqualValues(t, 1, src.stopped.Load())
	assert.False(t, c.busy.Load())
}
