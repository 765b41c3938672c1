package stt

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	log "log/slog"
	"net/http"
	"strings"

	openai "github.com/openai/openai-go/v3"
	"github.com/openai/openai-go/v3/option"

	"delta/pkg/audioconv"
)

// OpenAI uploads the utterance as a WAV file to the transcription endpoint.
type OpenAI struct {
	client   openai.Client
	model    string
	language string
}

type OpenAIConfig struct {
	APIKey     string
	Model      string // default whisper-1
	Language   string // ISO-639-1, empty for auto-detect
	BaseURL    string
	HTTPClient *http.Client
}

func NewOpenAI(cfg OpenAIConfig) (*OpenAI, error) {
	if cfg.APIKey == "" {
		return nil, errors.New("openai stt: api key not set")
	}
	if cfg.Model == "" {
		cfg.Model = "whisper-1"
	}

	opts := []option.RequestOption{
		option.WithAPIKey(cfg.APIKey),
		option.WithMaxRetries(0),
	}
	if cfg.BaseURL != "" {
		opts = append(opts, option.WithBaseURL(cfg.BaseURL))
	}
	if cfg.HTTPClient != nil {
		opts = append(opts, option.WithHTTPClient(cfg.HTTPClient))
	}

	return &OpenAI{
		client:   openai.NewClient(opts...),
		model:    cfg.Model,
		language: isoLanguage(cfg.Language),
	}, nil
}

// isoLanguage turns "en-US" into "en".
func isoLanguage(lang string) string {
	lang, _, _ = strings.Cut(lang, "-")
	if lang == "auto" {
		return ""
	}
	return strings.ToLower(lang)
}

func (o *OpenAI) Recognize(ctx context.Context, pcm []byte, sampleRate, sampleWidth int) (string, error) {
	if err := checkFormat(sampleRate, sampleWidth); err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", ErrUnrecognized
	}

	wav, err := audioconv.EncodeWAV(pcm, sampleRate)
	if err != nil {
		return "", fmt.Errorf("openai stt: %w", err)
	}

	params := openai.AudioTranscriptionNewParams{
		File:  openai.File(bytes.NewReader(wav), "utterance.wav", "audio/wav"),
		Model: openai.AudioModel(o.model),
	}
	if o.language != "" {
		params.Language = openai.String(o.language)
	}

	resp, err := o.client.Audio.Transcriptions.New(ctx, params)
	if err != nil {
		return "", unavailable("openai", err)
	}

	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrUnrecognized
	}

	log.Debug("Recognized", "provider", "openai", "text", text)
	return text, nil
}
