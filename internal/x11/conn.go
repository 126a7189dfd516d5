package x11

import (
	"fmt"

	"github.com/BurntSushi/xgb"
	"github.com/BurntSushi/xgb/xfixes"
	"github.com/BurntSushi/xgb/xproto"
)

// maxPropertyLen is the longest property read we issue, in 32-bit units
// (64 MiB). The server truncates to the actual property size.
const maxPropertyLen = 1 << 24

// Conn is the slice of an X connection the selection engine uses. The
// engine talks to the display only through this interface so tests can
// substitute a fake display server. All methods are safe for concurrent
// use when backed by a real *xgb.Conn.
type Conn interface {
	// InternAtom resolves a named atom, creating it if necessary.
	InternAtom(name string) (xproto.Atom, error)

	// SetSelectionOwner claims (or, with owner None, relinquishes) a
	// selection for a window.
	SetSelectionOwner(owner xproto.Window, sel xproto.Atom)

	// ConvertSelection asks the owner of sel to produce target-format data
	// into prop on requestor's window.
	ConvertSelection(requestor xproto.Window, sel, target, prop xproto.Atom)

	// GetProperty reads a window property. With del set the property is
	// deleted after the read — unless typ is a concrete atom that does not
	// match the property's actual type, in which case the server performs
	// no deletion and returns the actual type with an empty value.
	GetProperty(del bool, win xproto.Window, prop, typ xproto.Atom) (*xproto.GetPropertyReply, error)

	// ChangeProperty replaces prop on win with data, declared as typ with
	// the given bit width (8 or 32).
	ChangeProperty(win xproto.Window, prop, typ xproto.Atom, bitWidth byte, data []byte)

	// SendNotify delivers a SelectionNotify acknowledgment to dst.
	SendNotify(dst xproto.Window, ev *xproto.SelectionNotifyEvent)

	// SelectOwnerInput subscribes win to XFixes ownership-change
	// notifications for sel.
	SelectOwnerInput(win xproto.Window, sel xproto.Atom) error

	// Flush pushes buffered requests to the server.
	Flush()
}

// Display is a live X connection with a hidden 1x1 window used as the
// selection requestor and owner. It implements Conn.
type Display struct {
	X   *xgb.Conn
	Win xproto.Window
}

// Dial connects to the X display (empty string means $DISPLAY), creates the
// requestor window, and initializes the XFixes extension. The window selects
// PropertyChange events, which chunked transfers depend on.
func Dial(display string) (*Display, error) {
	x, err := xgb.NewConnDisplay(display)
	if err != nil {
		return nil, fmt.Errorf("connect display: %w", err)
	}

	win, err := xproto.NewWindowId(x)
	if err != nil {
		x.Close()
		return nil, fmt.Errorf("allocate window id: %w", err)
	}

	screen := xproto.Setup(x).DefaultScreen(x)
	err = xproto.CreateWindowChecked(x, screen.RootDepth, win, screen.Root,
		0, 0, 1, 1, 0, xproto.WindowClassInputOutput, screen.RootVisual,
		xproto.CwEventMask, []uint32{xproto.EventMaskPropertyChange}).Check()
	if err != nil {
		x.Close()
		return nil, fmt.Errorf("create window: %w", err)
	}

	if err := xfixes.Init(x); err != nil {
		x.Close()
		return nil, fmt.Errorf("xfixes unavailable: %w", err)
	}
	// Version negotiation is mandatory before any other xfixes request.
	if _, err := xfixes.QueryVersion(x, 5, 0).Reply(); err != nil {
		x.Close()
		return nil, fmt.Errorf("xfixes version: %w", err)
	}

	return &Display{X: x, Win: win}, nil
}

// WaitEvent blocks until the next event arrives. A nil event with a nil
// error means the connection is closed.
func (d *Display) WaitEvent() (xgb.Event, error) {
	ev, xerr := d.X.WaitForEvent()
	if xerr != nil {
		return nil, fmt.Errorf("x11 event: %s", xerr.Error())
	}
	return ev, nil
}

// Close shuts down the X connection.
func (d *Display) Close() { d.X.Close() }

func (d *Display) InternAtom(name string) (xproto.Atom, error) {
	r, err := xproto.InternAtom(d.X, false, uint16(len(name)), name).Reply()
	if err != nil {
		return xproto.AtomNone, fmt.Errorf("intern %q: %w", name, err)
	}
	return r.Atom, nil
}

func (d *Display) SetSelectionOwner(owner xproto.Window, sel xproto.Atom) {
	xproto.SetSelectionOwner(d.X, owner, sel, xproto.TimeCurrentTime)
}

func (d *Display) ConvertSelection(requestor xproto.Window, sel, target, prop xproto.Atom) {
	xproto.ConvertSelection(d.X, requestor, sel, target, prop, xproto.TimeCurrentTime)
}

func (d *Display) GetProperty(del bool, win xproto.Window, prop, typ xproto.Atom) (*xproto.GetPropertyReply, error) {
	return xproto.GetProperty(d.X, del, win, prop, typ, 0, maxPropertyLen).Reply()
}

func (d *Display) ChangeProperty(win xproto.Window, prop, typ xproto.Atom, bitWidth byte, data []byte) {
	units := uint32(len(data)) / uint32(bitWidth/8)
	xproto.ChangeProperty(d.X, xproto.PropModeReplace, win, prop, typ, bitWidth, units, data)
}

func (d *Display) SendNotify(dst xproto.Window, ev *xproto.SelectionNotifyEvent) {
	xproto.SendEvent(d.X, false, dst, 0, string(ev.Bytes()))
}

func (d *Display) SelectOwnerInput(win xproto.Window, sel xproto.Atom) error {
	return xfixes.SelectSelectionInputChecked(d.X, win, sel,
		xfixes.SelectionEventMaskSetSelectionOwner).Check()
}

func (d *Display) Flush() { d.X.Sync() }
