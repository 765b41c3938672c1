// Package ui holds the presentation side of the assistant: an ordered
// dispatcher for display events and the terminal front ends that render them.
package ui

// Sink receives display events. System notices are status messages from the
// assistant itself rather than conversation text.
type Sink interface {
	Display(msg string, system bool)
}

type Event struct {
	Text   string
	System bool
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(msg string, system bool)

func (f SinkFunc) Display(msg string, system bool) { f(msg, system) }

// Fanout forwards every event to each sink in order.
type Fanout []Sink

func (f Fanout) Display(msg string, system bool) {
	for _, s := range f {
		if s != nil {
			s.Display(msg, system)
		}
	}
}

// Actions are the user intents a front end can raise. Listen and MicTest may
// block; front ends call them off their render loop.
type Actions struct {
	Submit  func(text string)
	Listen  func()
	MicTest func()
}
