// Package audio wraps the default PortAudio input device.
package audio

import (
	"errors"
	"log/slog"
	"sync"

	"github.com/gordonklaus/portaudio"

	"delta/pkg/audioconv"
)

// Init must be called once before any Microphone is started.
func Init() error {
	return portaudio.Initialize()
}

func Terminate() {
	_ = portaudio.Terminate()
}

// Microphone reads mono PCM16 chunks from the default input device on a
// background goroutine.
type Microphone struct {
	rate  int
	chunk int
	log   *slog.Logger

	mu     sync.Mutex
	stream *portaudio.Stream
	done   chan struct{}
	wg     sync.WaitGroup
}

func NewMicrophone(sampleRate, chunkSize int, log *slog.Logger) *Microphone {
	if log == nil {
		log = slog.Default()
	}
	return &Microphone{
		rate:  sampleRate,
		chunk: chunkSize,
		log:   log.With("component", "microphone"),
	}
}

func (m *Microphone) SampleRate() int { return m.rate }
func (m *Microphone) ChunkSize() int  { return m.chunk }

func (m *Microphone) Start(onChunk func([]byte)) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream != nil {
		return errors.New("microphone already started")
	}

	buf := make([]int16, m.chunk)

	stream, err := portaudio.OpenDefaultStream(1, 0, float64(m.rate), len(buf), buf)
	if err != nil {
		return err
	}

	if err := stream.Start(); err != nil {
		stream.Close()
		return err
	}

	m.stream = stream
	m.done = make(chan struct{})

	m.wg.Add(1)
	go m.read(stream, buf, m.done, onChunk)

	return nil
}

func (m *Microphone) read(stream *portaudio.Stream, buf []int16, done <-chan struct{}, onChunk func([]byte)) {
	defer m.wg.Done()

	for {
		select {
		case <-done:
			return
		default:
		}

		if err := stream.Read(); err != nil {
			if errors.Is(err, portaudio.InputOverflowed) {
				m.log.Debug("input overflowed")
				continue
			}
			m.log.Error("read failed", "err", err)
			return
		}

		onChunk(audioconv.Int16ToPCM16(buf))
	}
}

// Stop is safe to call when the microphone is not running.
func (m *Microphone) Stop() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.stream == nil {
		return nil
	}

	close(m.done)
	m.wg.Wait()

	stopErr := m.stream.Stop()
	closeErr := m.stream.Close()
	m.stream = nil

	return errors.Join(stopErr, closeErr)
}
