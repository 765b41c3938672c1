// Package wake listens for a spoken wake word.
package wake

import (
	"context"
	"errors"
	"log/slog"
	"strings"
	"time"

	"delta/internal/capture"
)

type Capturer interface {
	Capture(ctx context.Context, maxDur time.Duration) (capture.Result, error)
}

type Detector struct {
	Capturer  Capturer
	Word      string
	MaxListen time.Duration
	Retry     time.Duration
	Logger    *slog.Logger
}

// Heard reports whether transcript contains the wake word, ignoring case.
func Heard(transcript, word string) bool {
	word = strings.ToLower(strings.TrimSpace(word))
	if word == "" {
		return false
	}
	return strings.Contains(strings.ToLower(transcript), word)
}

// Wait captures repeatedly until the wake word is heard or ctx is done.
// Microphone faults are logged and retried like any other miss.
func (d *Detector) Wait(ctx context.Context) error {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	if strings.TrimSpace(d.Word) == "" {
		return errors.New("empty wake word")
	}

	for {
		res, err := d.Capturer.Capture(ctx, d.MaxListen)
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch {
		case err != nil:
			log.Warn("capture failed", "err", err)
		case res.Status == capture.Recognized && Heard(res.Text, d.Word):
			log.Info("wake word detected", "text", res.Text)
			return nil
		case res.Status == capture.Recognized:
			log.Debug("wake word not detected", "text", res.Text)
		default:
			log.Debug("nothing recognized", "status", res.Status)
		}

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(d.Retry):
		}
	}
}
