// Package audioconv converts between the audio representations used by the
// assistant: raw little-endian PCM16 from the microphone, float32 samples for
// whisper, WAV files for uploads and self-tests, and compressed files fed to
// the file transcriber.
package audioconv

import (
	"encoding/binary"
	"math"
)

// PCM16ToInt16 decodes little-endian 16-bit samples. A trailing odd byte is
// ignored.
func PCM16ToInt16(pcm []byte) []int16 {
	out := make([]int16, len(pcm)/2)
	for i := range out {
		out[i] = int16(binary.LittleEndian.Uint16(pcm[2*i:]))
	}
	return out
}

// Int16ToPCM16 is the inverse of PCM16ToInt16.
func Int16ToPCM16(samples []int16) []byte {
	out := make([]byte, 2*len(samples))
	for i, s := range samples {
		binary.LittleEndian.PutUint16(out[2*i:], uint16(s))
	}
	return out
}

// Int16ToFloat32 scales samples into [-1, 1).
func Int16ToFloat32(data []int16) []float32 {
	out := make([]float32, len(data))
	const scale = 1.0 / 32768.0
	for i, v := range data {
		out[i] = float32(float64(v) * scale)
	}
	return out
}

// Float32ToInt16 clamps and scales float samples to 16-bit.
func Float32ToInt16(data []float32) []int16 {
	out := make([]int16, len(data))
	for i, v := range data {
		out[i] = int16(math.Round(clamp(float64(v), -1, 1) * 32767))
	}
	return out
}

// PCM16ToFloat32 decodes microphone bytes straight to float samples.
func PCM16ToFloat32(pcm []byte) []float32 {
	return Int16ToFloat32(PCM16ToInt16(pcm))
}

// IntToFloat32 scales integer PCM of the given bit depth to [-1, 1].
func IntToFloat32(data []int, bitDepth int) []float32 {
	out := make([]float32, len(data))
	scale := 1.0 / float64(int64(1)<<(bitDepth-1))
	for i, v := range data {
		out[i] = float32(clamp(float64(v)*scale, -1.0, 1.0))
	}
	return out
}

// Downmix averages interleaved channels into mono.
func Downmix(in []float32, channels int) []float32 {
	if channels <= 1 {
		return in
	}
	frames := len(in) / channels
	out := make([]float32, frames)
	for i := range out {
		var sum float64
		for c := 0; c < channels; c++ {
			sum += float64(in[i*channels+c])
		}
		out[i] = float32(sum / float64(channels))
	}
	return out
}

// Resample converts between sample rates by linear interpolation.
func Resample(in []float32, inRate, outRate int) []float32 {
	if inRate == outRate || len(in) == 0 || inRate <= 0 || outRate <= 0 {
		return in
	}
	ratio := float64(outRate) / float64(inRate)
	n := int(math.Ceil(float64(len(in)) * ratio))
	out := make([]float32, n)
	last := len(in) - 1
	for i := range out {
		src := float64(i) / ratio
		i0 := int(math.Floor(src))
		if i0 >= last {
			out[i] = in[last]
			continue
		}
		a := float32(src - float64(i0))
		out[i] = in[i0]*(1-a) + in[i0+1]*a
	}
	return out
}

func clamp(x, lo, hi float64) float64 {
	if x < lo {
		return lo
	}
	if x > hi {
		return hi
	}
	return x
}

// RMS returns the root-mean-square level of PCM16 audio in [0, 1].
func RMS(pcm []byte) float64 {
	samples := PCM16ToFloat32(pcm)
	if len(samples) == 0 {
		return 0
	}

	var s float64
	for _, x := range samples {
		s += float64(x) * float64(x)
	}
	return math.Sqrt(s / float64(len(samples)))
}
