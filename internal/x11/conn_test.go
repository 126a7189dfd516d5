package x11

import (
	"errors"
	"testing"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xproto"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/format"
)

const testWindow xproto.Window = 7

// storedProp is a window property as the fake server holds it.
type storedProp struct {
	typ      xproto.Atom
	bitWidth byte
	value    []byte
}

type ownerCall struct {
	owner xproto.Window
	sel   xproto.Atom
}

type convertCall struct {
	requestor xproto.Window
	sel       xproto.Atom
	target    xproto.Atom
	prop      xproto.Atom
}

type writeCall struct {
	win      xproto.Window
	prop     xproto.Atom
	typ      xproto.Atom
	bitWidth byte
	value    []byte
}

// fakeConn implements Conn against an in-memory property table, mimicking
// the server's GetProperty rules: a read with a mismatched concrete type
// returns the actual type with no value and performs no deletion.
type fakeConn struct {
	atoms    map[string]xproto.Atom
	nextAtom xproto.Atom

	props map[xproto.Atom]storedProp // properties on the engine's window

	owners   []ownerCall
	converts []convertCall
	writes   []writeCall
	notifies []xproto.SelectionNotifyEvent

	failReads bool
}

func newFakeConn() *fakeConn {
	return &fakeConn{
		atoms:    make(map[string]xproto.Atom),
		nextAtom: 100,
		props:    make(map[xproto.Atom]storedProp),
	}
}

func (c *fakeConn) InternAtom(name string) (xproto.Atom, error) {
	if a, ok := c.atoms[name]; ok {
		return a, nil
	}
	c.nextAtom++
	c.atoms[name] = c.nextAtom
	return c.nextAtom, nil
}

func (c *fakeConn) SetSelectionOwner(owner xproto.Window, sel xproto.Atom) {
	c.owners = append(c.owners, ownerCall{owner, sel})
}

func (c *fakeConn) ConvertSelection(requestor xproto.Window, sel, target, prop xproto.Atom) {
	c.converts = append(c.converts, convertCall{requestor, sel, target, prop})
}

func (c *fakeConn) GetProperty(del bool, win xproto.Window, prop, typ xproto.Atom) (*xproto.GetPropertyReply, error) {
	if c.failReads {
		return nil, errors.New("injected read failure")
	}
	p, ok := c.props[prop]
	if !ok {
		return &xproto.GetPropertyReply{Type: xproto.AtomNone}, nil
	}
	if typ != xproto.GetPropertyTypeAny && typ != p.typ {
		// Type mismatch: actual type, no value, no deletion.
		return &xproto.GetPropertyReply{
			Type:       p.typ,
			Format:     p.bitWidth,
			BytesAfter: uint32(len(p.value)),
		}, nil
	}
	if del {
		delete(c.props, prop)
	}
	units := uint32(len(p.value))
	if p.bitWidth == 32 {
		units /= 4
	}
	return &xproto.GetPropertyReply{
		Type:     p.typ,
		Format:   p.bitWidth,
		ValueLen: units,
		Value:    p.value,
	}, nil
}

func (c *fakeConn) ChangeProperty(win xproto.Window, prop, typ xproto.Atom, bitWidth byte, data []byte) {
	c.writes = append(c.writes, writeCall{win, prop, typ, bitWidth, append([]byte(nil), data...)})
}

func (c *fakeConn) SendNotify(dst xproto.Window, ev *xproto.SelectionNotifyEvent) {
	c.notifies = append(c.notifies, *ev)
}

func (c *fakeConn) SelectOwnerInput(win xproto.Window, sel xproto.Atom) error { return nil }

func (c *fakeConn) Flush() {}

// setProp places a property on the engine's window, as a peer write would.
func (c *fakeConn) setProp(prop, typ xproto.Atom, bitWidth byte, value []byte) {
	c.props[prop] = storedProp{typ, bitWidth, append([]byte(nil), value...)}
}

// atom returns an already-interned atom by name, failing the test if the
// engine never resolved it.
func (c *fakeConn) atom(t *testing.T, name string) xproto.Atom {
	t.Helper()
	a, ok := c.atoms[name]
	if !ok {
		t.Fatalf("atom %q never interned", name)
	}
	return a
}

// callbackRec records upstream callback invocations.
type callbackRec struct {
	releases int
	notifies []format.Format
	begins   []beginCall
	data     []dataCall
}

type beginCall struct {
	f    format.Format
	hint uint32
}

type dataCall struct {
	f     format.Format
	bytes []byte
}

func (r *callbackRec) callbacks() backend.Callbacks {
	return backend.Callbacks{
		Release: func() { r.releases++ },
		Notify:  func(f format.Format) { r.notifies = append(r.notifies, f) },
		Begin:   func(f format.Format, hint uint32) { r.begins = append(r.begins, beginCall{f, hint}) },
		Data: func(f format.Format, b []byte) {
			r.data = append(r.data, dataCall{f, append([]byte(nil), b...)})
		},
	}
}

func newTestEngine(t *testing.T) (*Engine, *fakeConn, *callbackRec) {
	t.Helper()
	c := newFakeConn()
	rec := &callbackRec{}
	e := NewEngine(c, testWindow)
	if err := e.Init(rec.callbacks()); err != nil {
		t.Fatalf("Init: %v", err)
	}
	return e, c, rec
}

// typeAtom resolves the target atom the engine registered for a format.
func typeAtom(t *testing.T, c *fakeConn, f format.Format) xproto.Atom {
	t.Helper()
	return c.atom(t, f.AtomName())
}

// atomList packs atoms into the 32-bit wire form of an ATOM property.
func atomList(atoms ...xproto.Atom) []byte {
	out := make([]byte, 4*len(atoms))
	for i, a := range atoms {
		xgb.Put32(out[i*4:], uint32(a))
	}
	return out
}
