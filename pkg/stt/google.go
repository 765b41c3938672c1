package stt

import (
	"context"
	"fmt"
	log "log/slog"
	"strings"

	speech "cloud.google.com/go/speech/apiv1"
	"cloud.google.com/go/speech/apiv1/speechpb"
	"github.com/googleapis/gax-go/v2"
	"google.golang.org/api/option"
)

type speechClient interface {
	Recognize(ctx context.Context, req *speechpb.RecognizeRequest, opts ...gax.CallOption) (*speechpb.RecognizeResponse, error)
	Close() error
}

// Google uses the Cloud Speech-to-Text synchronous API.
type Google struct {
	client   speechClient
	language string
}

// NewGoogle dials the speech API. credsFile may be empty to use the
// application default credentials.
func NewGoogle(ctx context.Context, language, credsFile string) (*Google, error) {
	var opts []option.ClientOption
	if credsFile != "" {
		opts = append(opts, option.WithCredentialsFile(credsFile))
	}

	client, err := speech.NewClient(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("google speech client: %w", err)
	}
	return newGoogle(client, language), nil
}

func newGoogle(client speechClient, language string) *Google {
	if language == "" {
		language = "en-US"
	}
	return &Google{client: client, language: language}
}

func (g *Google) Recognize(ctx context.Context, pcm []byte, sampleRate, sampleWidth int) (string, error) {
	if err := checkFormat(sampleRate, sampleWidth); err != nil {
		return "", err
	}
	if len(pcm) == 0 {
		return "", ErrUnrecognized
	}

	resp, err := g.client.Recognize(ctx, &speechpb.RecognizeRequest{
		Config: &speechpb.RecognitionConfig{
			Encoding:        speechpb.RecognitionConfig_LINEAR16,
			SampleRateHertz: int32(sampleRate),
			LanguageCode:    g.language,
		},
		Audio: &speechpb.RecognitionAudio{
			AudioSource: &speechpb.RecognitionAudio_Content{Content: pcm},
		},
	})
	if err != nil {
		return "", unavailable("google", err)
	}

	var parts []string
	for _, res := range resp.GetResults() {
		alts := res.GetAlternatives()
		if len(alts) == 0 {
			continue
		}
		if t := strings.TrimSpace(alts[0].GetTranscript()); t != "" {
			parts = append(parts, t)
		}
	}
	if len(parts) == 0 {
		return "", ErrUnrecognized
	}

	text := strings.Join(parts, " ")
	log.Debug("Recognized", "provider", "google", "text", text)
	return text, nil
}

func (g *Google) Close() error {
	return g.client.Close()
}
