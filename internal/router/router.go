// Package router answers user utterances, either from the canned command
// table or by asking the chat backend.
package router

import (
	"context"
	log "log/slog"
	"strings"
	"time"

	"delta/internal/chat"
)

// FallbackReply is shown whenever the chat backend cannot be reached.
const FallbackReply = "I'm having trouble connecting to the AI."

type Router struct {
	commands     map[string]Reply
	backend      chat.Backend
	systemPrompt string
	now          func() time.Time
}

type Option func(*Router)

// WithCommands replaces the canned command table.
func WithCommands(cmds map[string]Reply) Option {
	return func(r *Router) { r.commands = cmds }
}

// WithSystemPrompt prepends a system message to every chat request.
func WithSystemPrompt(prompt string) Option {
	return func(r *Router) { r.systemPrompt = prompt }
}

// WithClock overrides the time source used by computed replies.
func WithClock(now func() time.Time) Option {
	return func(r *Router) { r.now = now }
}

func New(backend chat.Backend, opts ...Option) *Router {
	r := &Router{
		commands: DefaultCommands(),
		backend:  backend,
		now:      time.Now,
	}
	for _, o := range opts {
		o(r)
	}
	return r
}

// Normalize lowercases and trims an utterance.
func Normalize(text string) string {
	return strings.ToLower(strings.TrimSpace(text))
}

// Lookup returns the canned reply for text, if the table has an exact match.
func (r *Router) Lookup(text string) (string, bool) {
	reply, ok := r.commands[Normalize(text)]
	if !ok {
		return "", false
	}
	return reply(r.now()), true
}

// Route never fails: backend errors become FallbackReply.
func (r *Router) Route(ctx context.Context, text string) string {
	if reply, ok := r.Lookup(text); ok {
		log.Debug("Canned command", "text", text)
		return reply
	}

	if r.backend == nil {
		return FallbackReply
	}

	reply, err := r.backend.Complete(ctx, chat.Conversation(r.systemPrompt, Normalize(text)))
	if err != nil {
		log.Warn("Chat backend unreachable", "err", err)
		return FallbackReply
	}
	return reply
}
