package backend

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delta/internal/config"
	"delta/pkg/stt"
)

func TestHTTPClient(t *testing.T) {
	cfg := config.Default()

	hc, err := HTTPClient(cfg)
	require.NoError(t, err)
	assert.Nil(t, hc)

	cfg.Proxy = "127.0.0.1:8888"
	hc, err = HTTPClient(cfg)
	require.NoError(t, err)
	assert.NotNil(t, hc)
}

func TestChat(t *testing.T) {
	cfg := config.Default()

	b, err := Chat(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, b)

	t.Setenv(APIKeyEnv, "")
	cfg.Chat.Provider = "openai"
	_, err = Chat(cfg, nil)
	assert.Error(t, err, "openai needs a key")

	t.Setenv(APIKeyEnv, "sk-test")
	b, err = Chat(cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, b)

	cfg.Chat.Provider = "llama.cpp"
	_, err = Chat(cfg, nil)
	assert.Error(t, err)
}

func TestRecognizer(t *testing.T) {
	cfg := config.Default()

	t.Setenv(APIKeyEnv, "sk-test")
	cfg.Speech.Provider = "openai"
	rec, closer, err := Recognizer(context.Background(), cfg, nil)
	require.NoError(t, err)
	assert.NotNil(t, rec)
	assert.NoError(t, closer.Close())

	cfg.Speech.Provider = "whisper"
	cfg.Speech.Model = ""
	_, _, err = Recognizer(context.Background(), cfg, nil)
	assert.Error(t, err, "whisper needs a model path")

	cfg.Speech.Provider = "vosk"
	_, _, err = Recognizer(context.Background(), cfg, nil)
	assert.Error(t, err)
}

func TestGoogleRecognizerKeepsCallerContext(t *testing.T) {
	var got context.Context
	orig := newGoogle
	newGoogle = func(ctx context.Context, language, credsFile string) (*stt.Google, error) {
		got = ctx
		assert.Equal(t, "en-GB", language)
		assert.Equal(t, "creds.json", credsFile)
		return nil, errors.New("no credentials")
	}
	t.Cleanup(func() { newGoogle = orig })

	cfg := config.Default()
	cfg.Speech.Language = "en-GB"
	cfg.Speech.CredsFile = "creds.json"

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	_, _, err := Recognizer(ctx, cfg, nil)
	require.Error(t, err)
	require.NotNil(t, got)
	assert.NoError(t, got.Err(), "client context must outlive construction")
	_, hasDeadline := got.Deadline()
	assert.False(t, hasDeadline)
}
