package chat

import (
	"context"
	"fmt"
	log "log/slog"

	anyllm "github.com/mozilla-ai/any-llm-go"
	"github.com/mozilla-ai/any-llm-go/providers/ollama"
)

// DefaultOllamaModel is the model the assistant was built around.
const DefaultOllamaModel = "deepseek-v2"

// Ollama sends chats to a local Ollama server.
type Ollama struct {
	backend anyllm.Provider
	model   string
}

// NewOllama connects to baseURL, or to the library default
// (http://localhost:11434) when baseURL is empty.
func NewOllama(model, baseURL string) (*Ollama, error) {
	if model == "" {
		model = DefaultOllamaModel
	}

	var opts []anyllm.Option
	if baseURL != "" {
		opts = append(opts, anyllm.WithBaseURL(baseURL))
	}

	backend, err := ollama.New(opts...)
	if err != nil {
		return nil, fmt.Errorf("ollama: %w", err)
	}

	return &Ollama{backend: backend, model: model}, nil
}

func (o *Ollama) Complete(ctx context.Context, messages []Message) (string, error) {
	params := anyllm.CompletionParams{
		Model:    o.model,
		Messages: make([]anyllm.Message, 0, len(messages)),
	}
	for _, m := range messages {
		params.Messages = append(params.Messages, anyllm.Message{
			Role:    m.Role,
			Content: m.Content,
		})
	}

	resp, err := o.backend.Completion(ctx, params)
	if err != nil {
		return "", fmt.Errorf("ollama completion: %w", err)
	}
	if len(resp.Choices) == 0 {
		return "", fmt.Errorf("no choices in response")
	}

	content := resp.Choices[0].Message.ContentString()
	log.Debug("Chat completed", "model", o.model, "chars", len(content))

	return content, nil
}
