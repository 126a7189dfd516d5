// Package x11 implements the native selection backend: ownership of the
// PRIMARY and CLIPBOARD selections, TARGETS discovery, direct property
// transfers, and the INCR chunked-read protocol, with ownership-change
// notifications via the XFixes extension.
//
// The Engine is a single-threaded state machine: all events and public
// operations must be delivered from one goroutine (the Backend wrapper in
// this package takes care of that). Replies to conversion requests arrive
// as later events through the same dispatch path, so at most one inbound
// conversion may be outstanding per selection at a time.
package x11

import (
	"fmt"
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/format"
)

// replyProperty is the private property on our window that remote owners
// write conversion results into.
const replyProperty = "SELPORT_DATA"

// incrState tracks one in-progress chunked inbound read. active is cleared
// exactly once, on the zero-length final chunk or on a terminal error; no
// two chunked reads overlap.
type incrState struct {
	active bool
	first  bool          // start notification not yet delivered
	f      format.Format // format recorded on the first chunk
	lower  uint32        // advisory remaining-size hint
}

// Engine is the selection protocol state machine. Not safe for concurrent
// use; see the package comment.
type Engine struct {
	c   Conn
	win xproto.Window
	cb  backend.Callbacks

	aClipboard xproto.Atom
	aTargets   xproto.Atom
	aReply     xproto.Atom
	aIncr      xproto.Atom
	aType      [format.Count]xproto.Atom

	// curSel is the remote selection that last reported a foreign owner;
	// AtomNone until a valid ownership-change arrives. Overwritten, never
	// merged.
	curSel xproto.Atom

	// provide is non-nil exactly while this side owns the selections.
	provide backend.ProviderFunc
	offered format.Format

	incr incrState
}

// NewEngine creates an engine bound to a connection and requestor window.
// Call Init before delivering events.
func NewEngine(c Conn, win xproto.Window) *Engine {
	e := &Engine{c: c, win: win, offered: format.None}
	e.resetIncr()
	return e
}

// resetIncr clears chunked-transfer state. The zero Format is Text, so the
// recorded transfer format must be reset to None explicitly.
func (e *Engine) resetIncr() {
	e.incr = incrState{f: format.None}
}

// Init resolves the atom registry and subscribes to ownership-change
// notifications for both tracked selections. Any resolution failure is
// fatal: the engine must not start half-initialized.
func (e *Engine) Init(cb backend.Callbacks) error {
	e.cb = cb

	named := []struct {
		name string
		dst  *xproto.Atom
	}{
		{"CLIPBOARD", &e.aClipboard},
		{"TARGETS", &e.aTargets},
		{replyProperty, &e.aReply},
		{"INCR", &e.aIncr},
	}
	for _, n := range named {
		a, err := e.c.InternAtom(n.name)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", n.name, err)
		}
		*n.dst = a
	}
	for _, f := range format.All() {
		a, err := e.c.InternAtom(f.AtomName())
		if err != nil {
			return fmt.Errorf("resolve format %s: %w", f, err)
		}
		e.aType[f] = a
	}

	for _, sel := range []xproto.Atom{xproto.AtomPrimary, e.aClipboard} {
		if err := e.c.SelectOwnerInput(e.win, sel); err != nil {
			return fmt.Errorf("subscribe owner changes: %w", err)
		}
	}

	e.curSel = xproto.AtomNone
	return nil
}

// tracked reports whether sel is one of the two selections this engine
// negotiates.
func (e *Engine) tracked(sel xproto.Atom) bool {
	return sel == xproto.AtomPrimary || sel == e.aClipboard
}

// typeOf reverse-resolves a property type atom to a format, returning
// format.None for anything outside the registered set.
func (e *Engine) typeOf(a xproto.Atom) format.Format {
	for _, f := range format.All() {
		if e.aType[f] == a {
			return f
		}
	}
	return format.None
}

// HandleEvent classifies a decoded X event and routes it. Pure routing;
// events that do not concern the engine are dropped silently. The
// PropertyNotify guard admits only new-value changes to our reply property
// while a chunked read is active.
func (e *Engine) HandleEvent(ev xgb.Event) {
	switch t := ev.(type) {
	case xproto.SelectionRequestEvent:
		e.onSelectionRequest(t)
	case xproto.SelectionClearEvent:
		e.onSelectionClear(t)
	case xproto.SelectionNotifyEvent:
		e.onSelectionNotify(t)
	case xproto.PropertyNotifyEvent:
		if t.Window != e.win || t.Atom != e.aReply ||
			t.State != xproto.PropertyNewValue || !e.incr.active {
			return
		}
		e.onIncrChunk(t)
	case xfixes.SelectionNotifyEvent:
		e.onOwnerChanged(t)
	}
}

// Notice claims ownership of both selections, advertising format f.
// Idempotent: calling again replaces the advertised format and provider.
// Only concrete formats can be advertised; anything else is refused,
// since the TARGETS reply and the atom registry have no entry for it.
func (e *Engine) Notice(f format.Format, provide backend.ProviderFunc) {
	if !f.Valid() {
		slog.Warn("cannot advertise format", "format", f)
		return
	}
	e.provide = provide
	e.offered = f
	e.c.SetSelectionOwner(e.win, xproto.AtomPrimary)
	e.c.SetSelectionOwner(e.win, e.aClipboard)
	e.c.Flush()
	slog.Debug("selection ownership claimed", "format", f)
}

// Release relinquishes ownership of both selections. Safe when not owning.
func (e *Engine) Release() {
	e.provide = nil
	e.offered = format.None
	e.c.SetSelectionOwner(xproto.WindowNone, xproto.AtomPrimary)
	e.c.SetSelectionOwner(xproto.WindowNone, e.aClipboard)
	e.c.Flush()
	slog.Debug("selection ownership released")
}

// Request asks the current remote owner for data in format f, targeting the
// private reply property. A deliberate no-op when no remote owner is known:
// the upper layer may call speculatively.
func (e *Engine) Request(f format.Format) {
	if e.curSel == xproto.AtomNone || !f.Valid() {
		return
	}
	e.c.ConvertSelection(e.win, e.curSel, e.aType[f], e.aReply)
	e.c.Flush()
}

// onSelectionClear handles involuntary loss of ownership: another client
// claimed one of our selections.
func (e *Engine) onSelectionClear(ev xproto.SelectionClearEvent) {
	if !e.tracked(ev.Selection) {
		return
	}
	e.curSel = xproto.AtomNone
	e.provide = nil
	e.offered = format.None
	if e.cb.Release != nil {
		e.cb.Release()
	}
}

// onOwnerChanged handles an XFixes foreign-ownership notification: record
// which selection to work with and start format discovery against it.
// Notifications for untracked selections, for our own window, or with no
// owner are ignored.
func (e *Engine) onOwnerChanged(ev xfixes.SelectionNotifyEvent) {
	if !e.tracked(ev.Selection) || ev.Owner == e.win || ev.Owner == xproto.WindowNone {
		return
	}
	e.curSel = ev.Selection
	e.c.ConvertSelection(e.win, ev.Selection, e.aTargets, e.aTargets)
	e.c.Flush()
}
