// Package stt turns captured microphone audio into text.
//
// Every Recognizer reports the two expected failures as sentinel errors so
// callers can pick the right user-facing message with errors.Is:
// ErrUnrecognized when the audio held no intelligible speech and
// ErrServiceUnavailable when the recognition backend could not be reached.
// Recognizers make exactly one attempt per call.
package stt

import (
	"context"
	"errors"
	"fmt"
)

var (
	ErrUnrecognized       = errors.New("speech not recognized")
	ErrServiceUnavailable = errors.New("speech recognition service unavailable")
)

// Recognizer transcribes raw little-endian PCM audio.
type Recognizer interface {
	Recognize(ctx context.Context, pcm []byte, sampleRate, sampleWidth int) (string, error)
}

// RecognizerFunc adapts a function to Recognizer.
type RecognizerFunc func(ctx context.Context, pcm []byte, sampleRate, sampleWidth int) (string, error)

func (f RecognizerFunc) Recognize(ctx context.Context, pcm []byte, sampleRate, sampleWidth int) (string, error) {
	return f(ctx, pcm, sampleRate, sampleWidth)
}

func unavailable(provider string, err error) error {
	return fmt.Errorf("%s: %w: %w", provider, ErrServiceUnavailable, err)
}

func checkFormat(sampleRate, sampleWidth int) error {
	if sampleRate <= 0 {
		return fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	if sampleWidth != 2 {
		return fmt.Errorf("unsupported sample width %d, only 16-bit PCM is supported", sampleWidth)
	}
	return nil
}
