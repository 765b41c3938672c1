package ipc

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParse(t *testing.T) {
	msg, err := Parse([]string{"listen"})
	require.NoError(t, err)
	assert.Equal(t, ControlMessage{Cmd: CmdListen}, msg)

	msg, err = Parse([]string{"ASK", "what", "time", "is", "it"})
	require.NoError(t, err)
	assert.Equal(t, ControlMessage{Cmd: CmdAsk, Text: "what time is it"}, msg)

	msg, err = Parse([]string{"mictest"})
	require.NoError(t, err)
	assert.Equal(t, CmdMicTest, msg.Cmd)

	for _, bad := range [][]string{nil, {"ask"}, {"ask", "  "}, {"listen", "now"}, {"trigger"}} {
		_, err := Parse(bad)
		assert.Error(t, err, "%v", bad)
	}
}

func TestServeAndSend(t *testing.T) {
	dir, err := os.MkdirTemp("", "ipc")
	require.NoError(t, err)
	t.Cleanup(func() { os.RemoveAll(dir) })
	path := filepath.Join(dir, "d.sock")

	got := make(chan ControlMessage, 2)
	ctx, cancel := context.WithCancel(context.Background())

	served := make(chan error, 1)
	go func() {
		served <- Serve(ctx, path, func(m ControlMessage) { got <- m })
	}()

	require.Eventually(t, func() bool {
		return Send(context.Background(), path, ControlMessage{Cmd: CmdListen}) == nil
	}, time.Second, 10*time.Millisecond)

	select {
	case m := <-got:
		assert.Equal(t, CmdListen, m.Cmd)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	require.NoError(t, Send(context.Background(), path, ControlMessage{Cmd: CmdAsk, Text: "hello"}))
	select {
	case m := <-got:
		assert.Equal(t, ControlMessage{Cmd: CmdAsk, Text: "hello"}, m)
	case <-time.After(time.Second):
		t.Fatal("message not delivered")
	}

	cancel()
	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(time.Second):
		t.Fatal("Serve did not stop")
	}

	_, err = os.Stat(path)
	assert.True(t, os.IsNotExist(err), "socket removed on shutdown")
}

func TestSendWithoutServer(t *testing.T) {
	err := Send(context.Background(), filepath.Join(t.TempDir(), "none.sock"), ControlMessage{Cmd: CmdListen})
	assert.Error(t, err)
}
