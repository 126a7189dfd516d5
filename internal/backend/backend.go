// Package backend defines the interface every selection backend satisfies
// and the callback set a backend reports through. Concrete variants:
//
//	internal/x11  — native X11 selections via xgb (TARGETS, INCR, XFixes)
//	internal/poll — golang.design/x/clipboard polling fallback
//
// Exactly one variant is chosen at daemon startup based on what the host
// supports; callers never switch variants at runtime.
package backend

import "go.klb.dev/selport/internal/format"

// ProviderFunc supplies the bytes for a format this side has advertised.
// It may complete asynchronously: the backend's reply function must be
// called exactly once, from any goroutine, with the payload. The reply
// closure carries the peer's request token internally.
type ProviderFunc func(f format.Format, reply func(data []byte))

// Callbacks is the upstream surface a backend reports through. All four
// functions must be non-nil; the backend invokes them from its own event
// goroutine, so they must not block. Calling Request from inside a
// callback is allowed and is how discovery turns into a fetch.
//
// A peer owning both tracked selections announces the same offer once per
// alias, so Notify may repeat for one logical offer. The backend reports
// discovery and transfer start through separate callbacks so the receiver
// never has to infer which one a Notify was.
type Callbacks struct {
	// Release is invoked when selection ownership is lost involuntarily
	// (another client claimed the selection).
	Release func()

	// Notify is invoked with a discovery result: the remote owner's best
	// advertised format, or format.None when nothing usable is offered.
	Notify func(f format.Format)

	// Begin marks the start of a chunked inbound transfer for a
	// previously requested format. sizeHint is an advisory lower bound on
	// the total size, 0 when unknown. Direct transfers skip Begin.
	Begin func(f format.Format, sizeHint uint32)

	// Data delivers payload bytes: once for a direct transfer, repeatedly
	// after Begin for a chunked one. f == format.None with empty data
	// signals a failed or aborted transfer.
	Data func(f format.Format, data []byte)
}

// Backend is a selection engine variant.
type Backend interface {
	// Name returns a human-readable name for the variant.
	Name() string

	// Start resolves platform resources and begins event processing.
	// A failure here is fatal to the variant; the caller may fall back to
	// another one.
	Start(cb Callbacks) error

	// Close stops event processing and releases platform resources.
	Close()

	// Notice claims selection ownership, advertising exactly one format.
	// provide is called whenever a peer requests the advertised data.
	// Calling Notice again replaces the advertised format and provider.
	Notice(f format.Format, provide ProviderFunc)

	// Release relinquishes selection ownership voluntarily. Safe to call
	// when not owning.
	Release()

	// Request asks the current remote owner for data in format f. The
	// answer arrives via Callbacks.Data. Fire-and-forget: a no-op when no
	// remote owner is known.
	Request(f format.Format)
}
