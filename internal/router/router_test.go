package router

import (
	"context"
	"errors"
	"regexp"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"delta/internal/chat"
)

type fakeBackend struct {
	reply string
	err   error
	got   [][]chat.Message
}

func (f *fakeBackend) Complete(_ context.Context, msgs []chat.Message) (string, error) {
	f.got = append(f.got, msgs)
	return f.reply, f.err
}

func fixedClock(t time.Time) Option {
	return WithClock(func() time.Time { return t })
}

func TestRouteGreetingIgnoresCaseAndPadding(t *testing.T) {
	backend := &fakeBackend{reply: "from backend"}
	r := New(backend)

	want := r.Route(context.Background(), "hello")
	assert.Equal(t, "Hello! How can I assist you today?", want)

	for _, in := range []string{" HELLO ", "Hello", "\thello\n"} {
		assert.Equal(t, want, r.Route(context.Background(), in), in)
	}
	assert.Empty(t, backend.got)
}

func TestRouteTime(t *testing.T) {
	at := time.Date(2024, 3, 9, 14, 5, 0, 0, time.Local)
	r := New(nil, fixedClock(at))

	got := r.Route(context.Background(), "What time is it")
	assert.Equal(t, "The time is 02:05 PM.", got)
	assert.Regexp(t, regexp.MustCompile(`\d{2}:\d{2} (AM|PM)`), got)
}

func TestRouteTimeWithRealClock(t *testing.T) {
	r := New(nil)
	assert.Regexp(t, `^The time is \d{2}:\d{2} (AM|PM)\.$`, r.Route(context.Background(), "what time is it"))
}

func TestRouteDate(t *testing.T) {
	at := time.Date(2024, 3, 9, 9, 0, 0, 0, time.Local)
	r := New(nil, fixedClock(at))

	assert.Equal(t, "Today's date is Saturday, March 09, 2024.", r.Route(context.Background(), "what is today's date"))
}

func TestRouteForwardsUnknownText(t *testing.T) {
	backend := &fakeBackend{reply: "42"}
	r := New(backend, WithSystemPrompt("You are Delta."))

	got := r.Route(context.Background(), "  What Is The Answer  ")

	assert.Equal(t, "42", got)
	require.Len(t, backend.got, 1)
	assert.Equal(t, []chat.Message{
		{Role: chat.RoleSystem, Content: "You are Delta."},
		{Role: chat.RoleUser, Content: "what is the answer"},
	}, backend.got[0])
}

func TestRouteNoFuzzyMatching(t *testing.T) {
	backend := &fakeBackend{reply: "llm"}
	r := New(backend)

	for _, in := range []string{"hello there", "hell", "say hello"} {
		assert.Equal(t, "llm", r.Route(context.Background(), in), in)
	}
	assert.Len(t, backend.got, 3)
}

func TestRouteBackendFailureFallsBack(t *testing.T) {
	r := New(&fakeBackend{err: errors.New("dial tcp: connection refused")})
	assert.Equal(t, FallbackReply, r.Route(context.Background(), "anything"))
}

func TestRouteWithoutBackend(t *testing.T) {
	r := New(nil)
	assert.Equal(t, FallbackReply, r.Route(context.Background(), "anything"))
}

func TestWithCommands(t *testing.T) {
	r := New(nil, WithCommands(map[string]Reply{"ping": fixed("pong")}))

	reply, ok := r.Lookup(" PING ")
	require.True(t, ok)
	assert.Equal(t, "pong", reply)

	_, ok = r.Lookup("hello")
	assert.False(t, ok)
}
