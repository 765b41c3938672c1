// Package ipc carries control commands to a running assistant over a unix
// socket, one JSON object per connection.
package ipc

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"os"
	"strings"
	"time"
)

const DefaultSocketPath = "/tmp/delta.sock"

const (
	CmdListen  = "listen"
	CmdAsk     = "ask"
	CmdMicTest = "mictest"
)

type ControlMessage struct {
	Cmd  string `json:"cmd"`
	Text string `json:"text,omitempty"`
}

// Parse turns command-line words into a message: "listen", "mictest" or
// "ask <text...>".
func Parse(args []string) (ControlMessage, error) {
	if len(args) == 0 {
		return ControlMessage{}, errors.New("no command")
	}

	msg := ControlMessage{Cmd: strings.ToLower(args[0])}
	switch msg.Cmd {
	case CmdListen, CmdMicTest:
		if len(args) > 1 {
			return ControlMessage{}, fmt.Errorf("%s takes no arguments", msg.Cmd)
		}
	case CmdAsk:
		msg.Text = strings.TrimSpace(strings.Join(args[1:], " "))
		if msg.Text == "" {
			return ControlMessage{}, errors.New("ask needs text")
		}
	default:
		return ControlMessage{}, fmt.Errorf("unknown command %q", args[0])
	}

	return msg, nil
}

// Serve listens on path until ctx is done. Each message is handled on its own
// goroutine.
func Serve(ctx context.Context, path string, handler func(ControlMessage)) error {
	_ = os.Remove(path)

	var lc net.ListenConfig
	ln, err := lc.Listen(ctx, "unix", path)
	if err != nil {
		return fmt.Errorf("listen: %w", err)
	}
	defer os.Remove(path)

	stop := context.AfterFunc(ctx, func() { ln.Close() })
	defer stop()

	slog.Info("IPC listening", "socket", path)

	for {
		conn, err := ln.Accept()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, net.ErrClosed) {
				return err
			}
			slog.Warn("IPC accept failed", "err", err)
			continue
		}
		go handleConn(conn, handler)
	}
}

func handleConn(conn net.Conn, handler func(ControlMessage)) {
	defer conn.Close()

	_ = conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var msg ControlMessage
	if err := json.NewDecoder(conn).Decode(&msg); err != nil {
		slog.Warn("IPC bad message", "err", err)
		return
	}

	slog.Debug("IPC message", "cmd", msg.Cmd)
	handler(msg)
}

// Send delivers one message to the assistant listening on path.
func Send(ctx context.Context, path string, msg ControlMessage) error {
	var d net.Dialer
	conn, err := d.DialContext(ctx, "unix", path)
	if err != nil {
		return err
	}
	defer conn.Close()

	return json.NewEncoder(conn).Encode(msg)
}
