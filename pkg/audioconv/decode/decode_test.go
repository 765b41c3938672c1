package decode

import (
	"os"
	"path/filepath"
	"testing"

	"delta/pkg/audioconv"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDecodeFileResamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "tone.wav")
	samples := make([]int16, 1600)
	for i := range samples {
		samples[i] = int16(i % 100 * 100)
	}
	require.NoError(t, audioconv.WriteWAVFile(path, samples, 16000, 1))

	clip, err := DecodeFile(path, Options{Rate: 8000})
	require.NoError(t, err)
	assert.Equal(t, 8000, clip.Rate)
	assert.Len(t, clip.Samples, 800)
}

func TestDecodeFileMaxSamples(t *testing.T) {
	path := filepath.Join(t.TempDir(), "clip.wav")
	require.NoError(t, audioconv.WriteWAVFile(path, make([]int16, 3200), 16000, 1))

	clip, err := DecodeFile(path, Options{MaxSamples: 100})
	require.NoError(t, err)
	assert.Len(t, clip.Samples, 100)
	assert.Equal(t, 16000, clip.Rate)
}

func TestDecodeFileSniffsMagic(t *testing.T) {
	path := filepath.Join(t.TempDir(), "recording.bin")
	require.NoError(t, audioconv.WriteWAVFile(path, make([]int16, 160), 16000, 1))

	clip, err := DecodeFile(path, Options{})
	require.NoError(t, err)
	assert.Len(t, clip.Samples, 160)
}

func TestDecodeFileUnsupported(t *testing.T) {
	path := filepath.Join(t.TempDir(), "notes.txt")
	require.NoError(t, os.WriteFile(path, []byte("not audio at all"), 0o644))

	_, err := DecodeFile(path, Options{})
	assert.ErrorContains(t, err, "unsupported format")
}
