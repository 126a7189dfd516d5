// Package poll implements the fallback selection backend on top of
// golang.design/x/clipboard. It has no access to ownership events or the
// chunked transfer protocol, so it approximates the backend contract by
// polling: a detected change is reported as a remote offer, and Request
// reads the current contents in one shot.
//
// Used when the native X11 backend cannot start (no display, missing
// XFixes). Wayland sessions without XWayland land here too.
package poll

import (
	"bytes"
	"log/slog"
	"time"

	"golang.design/x/clipboard"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/format"
)

const pollInterval = 250 * time.Millisecond

// Backend is the polling variant. Safe for use from multiple goroutines:
// state is touched only by the poll loop and guarded operations.
type Backend struct {
	cb   backend.Callbacks
	done chan struct{}

	lastText []byte
	lastImg  []byte

	// ours suppresses change notifications for writes we made ourselves,
	// the polling equivalent of ignoring an owner-change for our own
	// window.
	ours struct {
		text []byte
		img  []byte
	}
}

// New returns an unstarted polling backend.
func New() *Backend {
	return &Backend{done: make(chan struct{})}
}

func (b *Backend) Name() string { return "clipboard polling (golang.design)" }

// Start initializes the clipboard bridge and begins the poll loop.
func (b *Backend) Start(cb backend.Callbacks) error {
	if err := clipboard.Init(); err != nil {
		return err
	}
	b.cb = cb
	go b.loop()
	slog.Info("polling selection backend started", "interval", pollInterval)
	return nil
}

func (b *Backend) Close() {
	select {
	case <-b.done:
	default:
		close(b.done)
	}
}

func (b *Backend) loop() {
	t := time.NewTicker(pollInterval)
	defer t.Stop()
	for {
		select {
		case <-b.done:
			return
		case <-t.C:
			b.scan()
		}
	}
}

// scan compares current clipboard contents with the last observation and
// reports a change as a remote offer of the changed format.
func (b *Backend) scan() {
	text := clipboard.Read(clipboard.FmtText)
	img := clipboard.Read(clipboard.FmtImage)

	if !bytes.Equal(text, b.lastText) {
		b.lastText = text
		if len(text) > 0 && !bytes.Equal(text, b.ours.text) {
			b.cb.Notify(format.Text)
		}
	}
	if !bytes.Equal(img, b.lastImg) {
		b.lastImg = img
		if len(img) > 0 && !bytes.Equal(img, b.ours.img) {
			b.cb.Notify(format.PNG)
		}
	}
}

// Notice advertises data by writing it to the system clipboard outright —
// the polling bridge cannot defer production the way a selection owner can,
// so the provider is drained immediately.
func (b *Backend) Notice(f format.Format, provide backend.ProviderFunc) {
	provide(f, func(data []byte) {
		switch f {
		case format.Text:
			b.ours.text = data
			clipboard.Write(clipboard.FmtText, data)
		case format.PNG:
			b.ours.img = data
			clipboard.Write(clipboard.FmtImage, data)
		default:
			slog.Warn("polling backend cannot offer format", "format", f)
		}
	})
}

// Release is a no-op: the bridge has no ownership concept to relinquish.
func (b *Backend) Release() {}

// Request reads the current clipboard contents in the requested format and
// delivers them through the data callback. Unsupported formats answer with
// the None sentinel, mirroring the protocol backend's failure reporting.
func (b *Backend) Request(f format.Format) {
	var data []byte
	switch f {
	case format.Text:
		data = clipboard.Read(clipboard.FmtText)
	case format.PNG:
		data = clipboard.Read(clipboard.FmtImage)
	}
	if len(data) == 0 {
		b.cb.Data(format.None, nil)
		return
	}
	b.cb.Data(f, data)
}
