package ui

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// Console is a line-oriented front end. Lines typed on in are submitted;
// "/listen" and "/mictest" trigger voice capture and the microphone test.
type Console struct {
	in  io.Reader
	out io.Writer

	mu sync.Mutex
}

func NewConsole(in io.Reader, out io.Writer) *Console {
	return &Console{in: in, out: out}
}

func (c *Console) Deliver(ev Event) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if ev.System {
		fmt.Fprintf(c.out, "* %s\n", ev.Text)
		return
	}
	fmt.Fprintln(c.out, ev.Text)
}

// Run reads input and returns when ctx is done. End of input does not stop
// it.
func (c *Console) Run(ctx context.Context, act Actions) error {
	lines := make(chan string)
	errc := make(chan error, 1)

	go func() {
		sc := bufio.NewScanner(c.in)
		for sc.Scan() {
			select {
			case lines <- sc.Text():
			case <-ctx.Done():
				return
			}
		}
		errc <- sc.Err()
	}()

	for {
		select {
		case <-ctx.Done():
			return nil
		case err := <-errc:
			// Input is gone but voice, IPC and the bus still drive the
			// assistant, so keep going until ctx is done.
			if err != nil {
				slog.Warn("console input failed", "err", err)
			}
			slog.Debug("console input closed")
			errc = nil
		case line := <-lines:
			c.handle(strings.TrimSpace(line), act)
		}
	}
}

func (c *Console) handle(line string, act Actions) {
	switch line {
	case "":
	case "/listen":
		if act.Listen != nil {
			go act.Listen()
		}
	case "/mictest":
		if act.MicTest != nil {
			go act.MicTest()
		}
	default:
		if act.Submit != nil {
			act.Submit(line)
		}
	}
}
