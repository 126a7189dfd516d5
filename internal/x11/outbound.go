package x11

import (
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"
)

// replyToken captures the identifiers a SelectionNotify acknowledgment
// needs, so a provider can complete asynchronously after the request event
// is long gone. Completion touches only the connection, never engine state,
// which is what makes calling it from another goroutine safe.
type replyToken struct {
	c         Conn
	requestor xproto.Window
	selection xproto.Atom
	target    xproto.Atom
	property  xproto.Atom
	time      xproto.Timestamp
}

// ack sends the SelectionNotify for this request. prop is the property the
// data was written to, or AtomNone to signal "no data". Every request must
// be acknowledged exactly once or the peer hangs waiting.
func (t replyToken) ack(prop xproto.Atom) {
	t.c.SendNotify(t.requestor, &xproto.SelectionNotifyEvent{
		Time:      t.time,
		Requestor: t.requestor,
		Selection: t.selection,
		Target:    t.target,
		Property:  prop,
	})
	t.c.Flush()
}

// complete writes the provider's payload into the peer's requested property
// and acknowledges. Single-step write; peers needing chunking drive their
// own INCR read against the resulting property.
func (t replyToken) complete(data []byte) {
	t.c.ChangeProperty(t.requestor, t.property, t.target, 8, data)
	t.ack(t.property)
}

// onSelectionRequest answers a peer asking for our selection data. Three
// answers exist: the two-entry target list for discovery, a provider
// delegation for the advertised format, and an empty reply for everything
// else. Each path ends in exactly one acknowledgment.
func (e *Engine) onSelectionRequest(ev xproto.SelectionRequestEvent) {
	tok := replyToken{
		c:         e.c,
		requestor: ev.Requestor,
		selection: ev.Selection,
		target:    ev.Target,
		property:  ev.Property,
		time:      ev.Time,
	}

	if e.provide == nil {
		tok.ack(xproto.AtomNone)
		return
	}

	if ev.Target == e.aTargets {
		targets := make([]byte, 8)
		xgb.Put32(targets, uint32(e.aTargets))
		xgb.Put32(targets[4:], uint32(e.aType[e.offered]))
		e.c.ChangeProperty(ev.Requestor, ev.Property, xproto.AtomAtom, 32, targets)
		tok.ack(ev.Property)
		return
	}

	if e.offered.Valid() && ev.Target == e.aType[e.offered] {
		slog.Debug("peer requested selection data", "format", e.offered)
		e.provide(e.offered, tok.complete)
		return
	}

	// Peer asked for a format we are not advertising.
	tok.ack(xproto.AtomNone)
}
