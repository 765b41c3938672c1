package audioconv

import (
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/go-audio/audio"
	"github.com/go-audio/wav"
)

// WriteWAV stores 16-bit samples as a PCM WAV file.
func WriteWAV(w io.WriteSeeker, samples []int16, rate, channels int) error {
	if channels <= 0 {
		channels = 1
	}

	data := make([]int, len(samples))
	for i, s := range samples {
		data[i] = int(s)
	}

	enc := wav.NewEncoder(w, rate, 16, channels, 1)
	buf := &audio.IntBuffer{
		Format: &audio.Format{
			NumChannels: channels,
			SampleRate:  rate,
		},
		Data:           data,
		SourceBitDepth: 16,
	}
	if err := enc.Write(buf); err != nil {
		return fmt.Errorf("write wav: %w", err)
	}
	if err := enc.Close(); err != nil {
		return fmt.Errorf("close wav: %w", err)
	}
	return nil
}

// WriteWAVFile is WriteWAV into a new file at path.
func WriteWAVFile(path string, samples []int16, rate, channels int) error {
	f, err := os.Create(path)
	if err != nil {
		return err
	}
	if err := WriteWAV(f, samples, rate, channels); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// EncodeWAV returns a complete mono WAV file holding pcm (little-endian
// 16-bit samples). The encoder needs to seek, so it goes through a temp file.
func EncodeWAV(pcm []byte, rate int) ([]byte, error) {
	f, err := os.CreateTemp("", "delta-*.wav")
	if err != nil {
		return nil, fmt.Errorf("create temp wav: %w", err)
	}
	defer os.Remove(f.Name())
	defer f.Close()

	if err := WriteWAV(f, PCM16ToInt16(pcm), rate, 1); err != nil {
		return nil, err
	}
	if _, err := f.Seek(0, io.SeekStart); err != nil {
		return nil, err
	}
	return io.ReadAll(f)
}

// WAVInfo describes a WAV file header.
type WAVInfo struct {
	SampleRate int
	Channels   int
	BitDepth   int
	Frames     int
}

// ReadWAVInfo decodes the file and counts its sample frames.
func ReadWAVInfo(path string) (WAVInfo, error) {
	f, err := os.Open(path)
	if err != nil {
		return WAVInfo{}, err
	}
	defer f.Close()

	dec := wav.NewDecoder(f)
	if !dec.IsValidFile() {
		return WAVInfo{}, errors.New("invalid wav")
	}
	buf, err := dec.FullPCMBuffer()
	if err != nil {
		return WAVInfo{}, fmt.Errorf("decode wav: %w", err)
	}

	info := WAVInfo{
		SampleRate: int(dec.SampleRate),
		Channels:   int(dec.NumChans),
		BitDepth:   int(dec.BitDepth),
	}
	if info.Channels > 0 {
		info.Frames = len(buf.Data) / info.Channels
	}
	return info, nil
}
