// Package bus connects the assistant to a websocket message hub. Other
// shards can send it questions and receive everything it displays.
package bus

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/gorilla/websocket"

	"delta/internal/ui"
)

// DefaultWriteTimeout bounds a single frame write to the hub.
const DefaultWriteTimeout = 5 * time.Second

const (
	KindAsk     = "ask"
	KindDisplay = "display"
	KindNotice  = "notice"
)

// ErrMalformed is returned by Read for frames that are not a JSON Message.
var ErrMalformed = errors.New("malformed bus message")

type Message struct {
	From    string `json:"from"`
	To      string `json:"to"`
	Kind    string `json:"kind"`
	Content string `json:"content"`
	Audio   []byte `json:"audio,omitempty"`
}

type Bus struct {
	url   string
	shard string

	// Reconnect is the pause between redial attempts after the hub drops the
	// connection. Zero makes Run return instead.
	Reconnect time.Duration
	// WriteTimeout bounds each frame write.
	WriteTimeout time.Duration

	outbox *ui.Dispatcher

	mu   sync.Mutex
	conn *websocket.Conn

	wmu sync.Mutex
}

// Dial connects to the hub at wsURL and identifies as shard.
func Dial(ctx context.Context, wsURL, shard string) (*Bus, error) {
	b := &Bus{
		url:          wsURL,
		shard:        shard,
		WriteTimeout: DefaultWriteTimeout,
		outbox:       ui.NewDispatcher(),
	}
	if err := b.dial(ctx); err != nil {
		return nil, err
	}
	return b, nil
}

func (b *Bus) dial(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, b.url, nil)
	if err != nil {
		return fmt.Errorf("dial bus: %w", err)
	}

	b.mu.Lock()
	old := b.conn
	b.conn = conn
	b.mu.Unlock()

	if old != nil {
		old.Close()
	}

	slog.Info("Connected to bus", "url", b.url, "shard", b.shard)
	return nil
}

func (b *Bus) current() *websocket.Conn {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.conn
}

func (b *Bus) Read() (*Message, error) {
	_, data, err := b.current().ReadMessage()
	if err != nil {
		return nil, err
	}

	var m Message
	if err := json.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrMalformed, err)
	}

	return &m, nil
}

// Write is safe for concurrent use.
func (b *Bus) Write(m *Message) error {
	data, err := json.Marshal(m)
	if err != nil {
		return err
	}

	conn := b.current()

	b.wmu.Lock()
	defer b.wmu.Unlock()

	if b.WriteTimeout > 0 {
		_ = conn.SetWriteDeadline(time.Now().Add(b.WriteTimeout))
	}
	return conn.WriteMessage(websocket.TextMessage, data)
}

func (b *Bus) Close() error {
	return b.current().Close()
}

// Display queues a display event for Publish and never blocks.
func (b *Bus) Display(msg string, system bool) {
	b.outbox.Display(msg, system)
}

// Publish sends queued display events to the hub, in order, until ctx is
// done. A failed write is logged and the event dropped.
func (b *Bus) Publish(ctx context.Context) {
	b.outbox.Run(ctx, func(ev ui.Event) {
		if ctx.Err() != nil {
			return
		}

		kind := KindDisplay
		if ev.System {
			kind = KindNotice
		}

		if err := b.Write(&Message{From: b.shard, Kind: kind, Content: ev.Text}); err != nil {
			slog.Warn("Failed to publish to bus", "err", err)
		}
	})
}

// Run reads messages until ctx is done, passing the content of every ask
// addressed to this shard (or to nobody) to submit. A dropped connection is
// redialed when Reconnect is set and ends Run otherwise.
func (b *Bus) Run(ctx context.Context, submit func(string)) error {
	stop := context.AfterFunc(ctx, func() { b.Close() })
	defer stop()

	for {
		m, err := b.Read()
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}
			if errors.Is(err, ErrMalformed) {
				slog.Warn("Malformed bus message", "err", err)
				continue
			}
			if b.Reconnect <= 0 {
				return fmt.Errorf("read bus: %w", err)
			}
			slog.Warn("Trying to reconnect on", "url", b.url, "err", err)
			if err := b.redial(ctx); err != nil {
				return nil
			}
			continue
		}

		if m.From == b.shard || (m.To != "" && m.To != b.shard) {
			continue
		}

		switch m.Kind {
		case KindAsk:
			slog.Debug("Bus ask", "from", m.From)
			submit(m.Content)
		default:
			slog.Debug("Ignoring bus message", "kind", m.Kind, "from", m.From)
		}
	}
}

// redial retries until it connects or ctx is done.
func (b *Bus) redial(ctx context.Context) error {
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(b.Reconnect):
		}

		if err := b.dial(ctx); err == nil {
			if ctx.Err() != nil {
				b.Close()
				return ctx.Err()
			}
			return nil
		}
	}
}
