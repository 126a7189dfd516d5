package x11

import (
	"log/slog"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"go.klb.dev/selport/internal/format"
)

// reportNone tells the upper layer that nothing usable is available. Every
// locally recovered conversion failure funnels through here exactly once
// per failed step.
func (e *Engine) reportNone() {
	if e.cb.Notify != nil {
		e.cb.Notify(format.None)
	}
}

// abortIncr terminates a chunked read on an error path, clearing the active
// flag so later property events are ignored. The failure is signalled as an
// empty None delivery so the receiver discards any partial accumulation.
func (e *Engine) abortIncr() {
	e.resetIncr()
	if e.cb.Data != nil {
		e.cb.Data(format.None, nil)
	}
}

// onSelectionNotify interprets a conversion reply: a TARGETS list, a direct
// payload, or the start of an INCR transfer.
func (e *Engine) onSelectionNotify(ev xproto.SelectionNotifyEvent) {
	if ev.Property == xproto.AtomNone {
		// The owner refused the conversion.
		e.reportNone()
		return
	}

	r, err := e.c.GetProperty(true, e.win, ev.Property, xproto.GetPropertyTypeAny)
	if err != nil {
		slog.Info("selection property read failed", "err", err)
		e.reportNone()
		return
	}

	if r.Type == e.aIncr {
		// Chunked transfer begins. The property carries only a size hint;
		// data arrives via PropertyNotify events. Deleting the property
		// above is what told the owner to start producing.
		e.incr = incrState{active: true, first: true, f: format.None, lower: sizeHint(r.Value)}
		return
	}

	if ev.Property == e.aTargets {
		e.scanTargets(r)
		return
	}

	if ev.Property == e.aReply {
		f := e.typeOf(r.Type)
		if f == format.None {
			slog.Warn("selection data not in a supported format", "type", r.Type)
			return
		}
		if e.cb.Data != nil {
			e.cb.Data(f, r.Value[:r.ValueLen])
		}
	}
}

// scanTargets reports the first advertised target that matches a registered
// format. Order-preserving over the peer's list: the peer's preference
// wins, not ours.
func (e *Engine) scanTargets(r *xproto.GetPropertyReply) {
	if len(r.Value) == 0 || r.Format != 32 {
		e.reportNone()
		return
	}

	for i := 0; i+4 <= len(r.Value); i += 4 {
		f := e.typeOf(xproto.Atom(xgb.Get32(r.Value[i:])))
		if f != format.None {
			if e.cb.Notify != nil {
				e.cb.Notify(f)
			}
			return
		}
	}
	e.reportNone()
}

// onIncrChunk consumes the next chunk of an active INCR transfer. Reached
// only through the dispatcher's guard. Mirrors the owner-side protocol:
// reading-and-deleting the property is what asks the owner for the next
// chunk, and a zero-length chunk ends the transfer.
func (e *Engine) onIncrChunk(ev xproto.PropertyNotifyEvent) {
	// Peek at the declared type without consuming: a read with a
	// mismatched requested type returns the actual type and performs no
	// deletion.
	peek, err := e.c.GetProperty(true, e.win, ev.Atom, e.aIncr)
	if err != nil {
		slog.Info("chunk type read failed", "err", err)
		e.abortIncr()
		return
	}

	f := e.typeOf(peek.Type)
	if f == format.None {
		slog.Warn("chunk not in a supported format", "type", peek.Type)
		e.abortIncr()
		return
	}
	if e.incr.f != format.None && f != e.incr.f {
		slog.Warn("chunk format changed mid-transfer", "was", e.incr.f, "now", f)
		e.abortIncr()
		return
	}

	if e.incr.first {
		if e.cb.Begin != nil {
			e.cb.Begin(f, e.incr.lower)
		}
		e.incr.first = false
		e.incr.f = f
	}

	// Consuming read: deletes the property, prompting the next chunk.
	r, err := e.c.GetProperty(true, e.win, ev.Atom, peek.Type)
	if err != nil {
		slog.Info("chunk read failed", "err", err)
		e.abortIncr()
		return
	}

	n := uint32(len(r.Value))
	if n == 0 {
		// Zero-length chunk: end of transfer.
		e.resetIncr()
		return
	}

	if e.cb.Data != nil {
		e.cb.Data(f, r.Value)
	}
	if n > e.incr.lower {
		// The hint is a lower bound, not a count. Drift is expected.
		slog.Debug("size hint underflow", "hint", e.incr.lower, "chunk", n)
		e.incr.lower = 0
	} else {
		e.incr.lower -= n
	}
}

// sizeHint decodes the advisory total-size lower bound from an INCR
// property value. Malformed or short values yield 0.
func sizeHint(v []byte) uint32 {
	if len(v) < 4 {
		return 0
	}
	return xgb.Get32(v)
}
