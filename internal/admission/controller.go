// Package admission keeps at most one chat request in flight.
//
// A request submitted while another one is being answered is parked in a
// single pending slot. A newer submission overwrites the parked one, so the
// backlog never grows past one entry. The parked request is dispatched as
// soon as the in-flight answer has been displayed.
package admission

import (
	"context"
	"log/slog"
	"strings"
	"sync"
	"time"
)

const (
	ExitCommand = "exit"

	WaitNotice     = "Please wait, processing current command..."
	ShutdownNotice = "Shutting down chat room"

	DefaultExitDelay = 2 * time.Second
)

// State of the controller.
type State int

const (
	Idle State = iota
	Busy
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Busy:
		return "busy"
	default:
		return "unknown"
	}
}

// Responder answers a user utterance. It never fails: backend faults are
// turned into a displayable reply by the implementation.
type Responder interface {
	Route(ctx context.Context, text string) string
}

// Sink receives display events in call order. The controller calls it while
// holding its lock, so Display must not block or call back into the
// controller.
type Sink interface {
	Display(message string, system bool)
}

// Speaker voices responses. Say must not block on playback.
type Speaker interface {
	Say(text string)
}

type Config struct {
	Responder Responder
	Sink      Sink
	Speaker   Speaker // optional

	// OnExit runs once, ExitDelay after the exit command was submitted.
	OnExit    func()
	ExitDelay time.Duration
}

type Controller struct {
	responder Responder
	sink      Sink
	speaker   Speaker
	onExit    func()
	exitDelay time.Duration

	ctx context.Context

	mu         sync.Mutex
	state      State
	pending    string
	hasPending bool

	exitOnce sync.Once
	workers  sync.WaitGroup
}

// New creates a controller. ctx bounds every dispatched request.
func New(ctx context.Context, cfg Config) *Controller {
	if cfg.ExitDelay <= 0 {
		cfg.ExitDelay = DefaultExitDelay
	}
	if cfg.OnExit == nil {
		cfg.OnExit = func() {}
	}

	return &Controller{
		responder: cfg.Responder,
		sink:      cfg.Sink,
		speaker:   cfg.Speaker,
		onExit:    cfg.OnExit,
		exitDelay: cfg.ExitDelay,
		ctx:       ctx,
	}
}

// Submit admits a user utterance.
func (c *Controller) Submit(text string) {
	text = strings.TrimSpace(text)
	if text == "" {
		return
	}

	if strings.EqualFold(text, ExitCommand) {
		c.shutdown()
		return
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	if c.state == Busy {
		c.pending = text
		c.hasPending = true

		slog.Debug("Request parked", "text", text)
		c.sink.Display(WaitNotice, true)
		return
	}
	c.state = Busy
	c.dispatch(text, false)
}

// State reports whether a request is in flight.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Pending returns the parked request, if any.
func (c *Controller) Pending() (string, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.pending, c.hasPending
}

// Wait blocks until every dispatched request has completed.
func (c *Controller) Wait() {
	c.workers.Wait()
}

// dispatch must be called with mu held, after the controller moved to Busy,
// so the echo is ordered before any notice about the request.
func (c *Controller) dispatch(text string, delayed bool) {
	if delayed {
		c.sink.Display("You (Delayed): "+text, false)
	} else {
		c.sink.Display("You: "+text, false)
	}

	slog.Debug("Dispatching request", "text", text, "delayed", delayed)

	c.workers.Add(1)
	go func() {
		defer c.workers.Done()
		c.complete(c.responder.Route(c.ctx, text))
	}()
}

// complete runs the completion sequence: display the answer, leave Busy,
// then dispatch the parked request if there is one.
func (c *Controller) complete(response string) {
	c.sink.Display(response, false)
	if c.speaker != nil {
		c.speaker.Say(response)
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.state = Idle
	if !c.hasPending {
		return
	}
	next := c.pending
	c.pending, c.hasPending = "", false
	c.state = Busy
	c.dispatch(next, true)
}

func (c *Controller) shutdown() {
	c.exitOnce.Do(func() {
		slog.Info("Exit requested", "delay", c.exitDelay)
		c.sink.Display(ShutdownNotice, true)
		time.AfterFunc(c.exitDelay, c.onExit)
	})
}
