// Package chat talks to the remote language model that answers free-form
// queries.
package chat

import "context"

const (
	RoleSystem    = "system"
	RoleUser      = "user"
	RoleAssistant = "assistant"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Backend performs one chat completion.
type Backend interface {
	Complete(ctx context.Context, messages []Message) (string, error)
}

// Conversation builds the message list sent for a single user utterance.
func Conversation(systemPrompt, text string) []Message {
	msgs := make([]Message, 0, 2)
	if systemPrompt != "" {
		msgs = append(msgs, Message{Role: RoleSystem, Content: systemPrompt})
	}
	return append(msgs, Message{Role: RoleUser, Content: text})
}
