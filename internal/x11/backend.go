package x11

import (
	"log/slog"
	"sync"

	"github.com/BurntSushi/xgb"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/format"
)

// Backend adapts Engine to the backend.Backend contract. The engine state
// is confined to one goroutine: the run loop is the only caller of
// HandleEvent and of the engine's public operations; Notice, Release and
// Request post onto it.
type Backend struct {
	d   *Display
	eng *Engine

	ops    chan func()
	events chan xgb.Event
	done   chan struct{}
	once   sync.Once
}

// New connects to the X display. Returning an error here is the capability
// signal the daemon uses to fall back to the polling backend.
func New(display string) (*Backend, error) {
	d, err := Dial(display)
	if err != nil {
		return nil, err
	}
	return &Backend{
		d:      d,
		eng:    NewEngine(d, d.Win),
		ops:    make(chan func(), 16),
		events: make(chan xgb.Event, 64),
		done:   make(chan struct{}),
	}, nil
}

func (b *Backend) Name() string { return "X11 selections (xgb)" }

// Start resolves the atom registry, subscribes to ownership changes, and
// begins event processing.
func (b *Backend) Start(cb backend.Callbacks) error {
	if err := b.eng.Init(cb); err != nil {
		b.d.Close()
		return err
	}
	go b.pump()
	go b.run()
	slog.Info("x11 selection backend started", "window", b.d.Win)
	return nil
}

// pump moves events off the X connection onto the run loop's channel.
func (b *Backend) pump() {
	for {
		ev, err := b.d.WaitEvent()
		if err != nil {
			// X errors (e.g. a peer window vanished mid-transfer) are not
			// fatal to the event stream.
			slog.Debug("x11 error event", "err", err)
			continue
		}
		if ev == nil {
			close(b.events)
			return
		}
		select {
		case b.events <- ev:
		case <-b.done:
			return
		}
	}
}

// run is the single goroutine that may touch engine state.
func (b *Backend) run() {
	for {
		select {
		case <-b.done:
			return
		case op := <-b.ops:
			op()
		case ev, ok := <-b.events:
			if !ok {
				slog.Info("x11 connection closed")
				return
			}
			b.eng.HandleEvent(ev)
		}
	}
}

// post schedules an operation on the run loop.
func (b *Backend) post(op func()) {
	select {
	case b.ops <- op:
	case <-b.done:
	}
}

func (b *Backend) Notice(f format.Format, provide backend.ProviderFunc) {
	b.post(func() { b.eng.Notice(f, provide) })
}

func (b *Backend) Release() {
	b.post(func() { b.eng.Release() })
}

func (b *Backend) Request(f format.Format) {
	b.post(func() { b.eng.Request(f) })
}

func (b *Backend) Close() {
	b.once.Do(func() {
		close(b.done)
		b.d.Close()
	})
}
