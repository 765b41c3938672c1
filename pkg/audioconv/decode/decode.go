// Package decode reads compressed and container audio files into mono
// samples. It links libopusfile through cgo, so only file transcription
// imports it.
package decode

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"delta/pkg/audioconv"

	"github.com/go-audio/wav"
	"github.com/hajimehoshi/go-mp3"
	"github.com/jfreymuth/oggvorbis"
	popus "github.com/pekim/opus"
)

// Options tune DecodeFile.
type Options struct {
	// Rate is the output sample rate; 0 means 16 kHz.
	Rate int
	// MaxSamples truncates the output; 0 means no limit.
	MaxSamples int
}

// Clip is mono float audio.
type Clip struct {
	Samples []float32
	Rate    int
}

type decoder func(io.ReadSeeker) (Clip, error)

var byExtension = map[string]decoder{
	".wav": decodeWAV,
	".mp3": decodeMP3,
	".ogg": decodeOgg,
	".oga": decodeOgg,
}

var byMagic = map[string]decoder{
	"RIFF":    decodeWAV,
	"OggS":    decodeOgg,
	"ID3\x03": decodeMP3,
	"ID3\x04": decodeMP3,
}

// DecodeFile reads a wav, mp3 or ogg (vorbis or opus) file into mono float
// samples at opt.Rate.
func DecodeFile(path string, opt Options) (Clip, error) {
	f, err := os.Open(path)
	if err != nil {
		return Clip{}, err
	}
	defer f.Close()

	dec, ok := byExtension[strings.ToLower(filepath.Ext(path))]
	if !ok {
		magic, _ := bufio.NewReader(f).Peek(4)
		if dec, ok = byMagic[string(magic)]; !ok {
			return Clip{}, fmt.Errorf("unsupported format: %s (supported: wav/mp3/ogg)", filepath.Ext(path))
		}
		if _, err := f.Seek(0, io.SeekStart); err != nil {
			return Clip{}, err
		}
	}

	clip, err := dec(f)
	if err != nil {
		return Clip{}, fmt.Errorf("decode %s: %w", filepath.Base(path), err)
	}

	rate := opt.Rate
	if rate <= 0 {
		rate = 16000
	}
	clip.Samples = audioconv.Resample(clip.Samples, clip.Rate, rate)
	clip.Rate = rate
	if opt.MaxSamples > 0 && len(clip.Samples) > opt.MaxSamples {
		clip.Samples = clip.Samples[:opt.MaxSamples]
	}
	return clip, nil
}

func decodeWAV(r io.ReadSeeker) (Clip, error) {
	dec := wav.NewDecoder(r)
	if !dec.IsValidFile() {
		return Clip{}, errors.New("invalid wav")
	}
	pb, err := dec.FullPCMBuffer()
	if err != nil {
		return Clip{}, err
	}
	if pb == nil || pb.Data == nil {
		return Clip{}, errors.New("empty wav")
	}

	bd := int(dec.BitDepth)
	if bd == 0 {
		bd = 16
	}
	x := audioconv.IntToFloat32(pb.Data, bd)

	ch, rate := 1, 44100
	if pb.Format != nil {
		if pb.Format.NumChannels > 0 {
			ch = pb.Format.NumChannels
		}
		if pb.Format.SampleRate > 0 {
			rate = pb.Format.SampleRate
		}
	}
	return Clip{Samples: audioconv.Downmix(x, ch), Rate: rate}, nil
}

func decodeMP3(r io.ReadSeeker) (Clip, error) {
	dec, err := mp3.NewDecoder(r)
	if err != nil {
		return Clip{}, err
	}
	var raw bytes.Buffer
	if _, err := io.Copy(&raw, dec); err != nil {
		return Clip{}, err
	}
	ints := make([]int16, raw.Len()/2)
	if err := binary.Read(bytes.NewReader(raw.Bytes()), binary.LittleEndian, &ints); err != nil {
		return Clip{}, err
	}

	rate := dec.SampleRate()
	if rate <= 0 {
		rate = 44100
	}
	// go-mp3 always produces interleaved stereo
	return Clip{Samples: audioconv.Downmix(audioconv.Int16ToFloat32(ints), 2), Rate: rate}, nil
}

// decodeOgg tries vorbis first and falls back to opus.
func decodeOgg(r io.ReadSeeker) (Clip, error) {
	clip, verr := decodeVorbis(r)
	if verr == nil {
		return clip, nil
	}
	if _, err := r.Seek(0, io.SeekStart); err != nil {
		return Clip{}, err
	}
	clip, oerr := decodeOpus(r)
	if oerr != nil {
		return Clip{}, fmt.Errorf("neither vorbis (%v) nor opus (%w)", verr, oerr)
	}
	return clip, nil
}

func decodeVorbis(r io.Reader) (Clip, error) {
	pcm, format, err := oggvorbis.ReadAll(r)
	if err != nil {
		return Clip{}, err
	}
	if format == nil || format.Channels <= 0 || format.SampleRate <= 0 {
		return Clip{}, errors.New("invalid ogg/vorbis stream")
	}
	return Clip{Samples: audioconv.Downmix(pcm, format.Channels), Rate: format.SampleRate}, nil
}

func decodeOpus(r io.ReadSeeker) (Clip, error) {
	dec, err := popus.NewDecoder(r)
	if err != nil {
		return Clip{}, err
	}
	defer dec.Destroy()

	ch := dec.ChannelCount()
	if ch <= 0 {
		ch = 1
	}

	// opusfile always decodes at 48 kHz; read about half a second at a time
	var (
		pcm []float32
		buf = make([]int16, 48_000*ch/2)
	)
	for {
		n, err := dec.Read(buf)
		if n > 0 {
			pcm = append(pcm, audioconv.Int16ToFloat32(buf[:n*ch])...)
		}
		if err == io.EOF {
			break
		}
		if err != nil {
			return Clip{}, err
		}
	}

	return Clip{Samples: audioconv.Downmix(pcm, ch), Rate: 48000}, nil
}
