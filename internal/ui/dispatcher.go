package ui

import (
	"context"
	"sync"
)

// Dispatcher queues display events from any goroutine and delivers them, in
// call order, on the single goroutine running Run. Display never blocks.
type Dispatcher struct {
	mu      sync.Mutex
	cond    *sync.Cond
	pending []Event
	closed  bool
}

func NewDispatcher() *Dispatcher {
	d := &Dispatcher{}
	d.cond = sync.NewCond(&d.mu)
	return d
}

func (d *Dispatcher) Display(msg string, system bool) {
	d.mu.Lock()
	defer d.mu.Unlock()

	if d.closed {
		return
	}
	d.pending = append(d.pending, Event{Text: msg, System: system})
	d.cond.Signal()
}

// Close stops accepting events. Run delivers what is already queued and
// returns.
func (d *Dispatcher) Close() {
	d.mu.Lock()
	d.closed = true
	d.mu.Unlock()
	d.cond.Broadcast()
}

// Run calls deliver for each event until the dispatcher is closed and empty
// or ctx is done.
func (d *Dispatcher) Run(ctx context.Context, deliver func(Event)) {
	stop := context.AfterFunc(ctx, d.Close)
	defer stop()

	for {
		d.mu.Lock()
		for len(d.pending) == 0 && !d.closed {
			d.cond.Wait()
		}
		if len(d.pending) == 0 || ctx.Err() != nil {
			d.mu.Unlock()
			return
		}
		batch := d.pending
		d.pending = nil
		d.mu.Unlock()

		for _, ev := range batch {
			deliver(ev)
		}
	}
}
