// Package backend builds the chat and speech services named in the settings.
package backend

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"os"

	"delta/internal/chat"
	"delta/internal/config"
	"delta/internal/proxy"
	"delta/pkg/stt"
	"delta/pkg/stt/whisper"
)

// APIKeyEnv holds the OpenAI key for both chat and transcription.
const APIKeyEnv = "OPENAI_API_KEY"

// HTTPClient returns a SOCKS-routed client when a proxy is configured and
// nil otherwise, leaving each SDK to its default transport.
func HTTPClient(cfg *config.Config) (*http.Client, error) {
	if cfg.Proxy == "" {
		return nil, nil
	}
	c, err := proxy.NewSocksClient(cfg.Proxy)
	if err != nil {
		return nil, fmt.Errorf("socks proxy %s: %w", cfg.Proxy, err)
	}
	return c, nil
}

func Chat(cfg *config.Config, hc *http.Client) (chat.Backend, error) {
	switch cfg.Chat.Provider {
	case "openai":
		return chat.NewOpenAI(chat.OpenAIConfig{
			APIKey:     os.Getenv(APIKeyEnv),
			Model:      cfg.Chat.Model,
			BaseURL:    cfg.Chat.BaseURL,
			HTTPClient: hc,
		})
	case "ollama":
		return chat.NewOllama(cfg.Chat.Model, cfg.Chat.BaseURL)
	default:
		return nil, fmt.Errorf("unknown chat provider %q", cfg.Chat.Provider)
	}
}

// newGoogle is replaced in tests.
var newGoogle = stt.NewGoogle

type nopCloser struct{}

func (nopCloser) Close() error { return nil }

// Recognizer returns the configured speech recognizer and a closer for the
// resources it holds.
func Recognizer(ctx context.Context, cfg *config.Config, hc *http.Client) (stt.Recognizer, io.Closer, error) {
	sc := cfg.Speech

	switch sc.Provider {
	case "google":
		// The client may keep ctx for token refresh, so it must outlive this call.
		g, err := newGoogle(ctx, sc.Language, sc.CredsFile)
		if err != nil {
			return nil, nil, err
		}
		return g, g, nil
	case "openai":
		o, err := stt.NewOpenAI(stt.OpenAIConfig{
			APIKey:     os.Getenv(APIKeyEnv),
			Model:      sc.Model,
			Language:   sc.Language,
			HTTPClient: hc,
		})
		if err != nil {
			return nil, nil, err
		}
		return o, nopCloser{}, nil
	case "whisper":
		t, err := whisper.New(sc.Model, whisper.Options{Language: sc.Language})
		if err != nil {
			return nil, nil, err
		}
		return t, t, nil
	default:
		return nil, nil, fmt.Errorf("unknown speech provider %q", sc.Provider)
	}
}
