// Package broker is the application layer above a selection backend. It
// owns the backend callbacks, caches the most recent inbound payload, acts
// as the data provider while this side owns the selection, and answers the
// IPC surface the CLI tools use. It is transport-agnostic: the daemon wires
// a listener to it.
package broker

import (
	"log/slog"
	"sync"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/format"
	"go.klb.dev/selport/internal/message"
)

// Broker mediates between the selection backend and local IPC clients.
// Safe for concurrent use; backend callbacks and IPC handlers run on
// different goroutines.
type Broker struct {
	b backend.Backend

	mu sync.Mutex

	owns    bool
	offered format.Format
	outb    []byte // payload served to peers while owning

	// latest is the most recent complete-enough inbound payload. During a
	// chunked transfer it grows with each delivery.
	latestF format.Format
	latest  []byte

	// remote is the best format the current remote owner advertised.
	remote format.Format

	// fetch tracks the one inbound conversion that may be outstanding.
	// A repeated discovery for the same format while a request is in
	// flight (a peer owning both selection aliases announces its offer
	// once per alias) must not issue a second request.
	fetch  fetchState
	fetchF format.Format
}

type fetchState int

const (
	fetchIdle      fetchState = iota
	fetchRequested            // conversion issued, nothing received yet
	fetchStreaming            // chunked transfer in progress or finished
)

// New creates a broker over a started-or-startable backend. Call Start to
// register callbacks and begin processing.
func New(b backend.Backend) *Broker {
	return &Broker{
		b:       b,
		offered: format.None,
		latestF: format.None,
		remote:  format.None,
		fetchF:  format.None,
	}
}

// Start starts the backend with this broker's callbacks.
func (k *Broker) Start() error {
	return k.b.Start(backend.Callbacks{
		Release: k.onRelease,
		Notify:  k.onNotify,
		Begin:   k.onBegin,
		Data:    k.onData,
	})
}

// Close shuts the backend down.
func (k *Broker) Close() { k.b.Close() }

func (k *Broker) onRelease() {
	k.mu.Lock()
	k.owns = false
	k.offered = format.None
	k.outb = nil
	k.mu.Unlock()
	slog.Info("selection ownership lost")
}

// onNotify handles a discovery result. A hit triggers an immediate fetch;
// a repeat of the in-flight format (the other selection alias announcing
// the same offer) is absorbed without a second request.
func (k *Broker) onNotify(f format.Format) {
	k.mu.Lock()
	if f == format.None {
		k.remote = format.None
		k.fetch = fetchIdle
		k.fetchF = format.None
		k.mu.Unlock()
		slog.Debug("remote owner offers nothing usable")
		return
	}

	k.remote = f
	if k.fetch == fetchRequested && k.fetchF == f {
		k.mu.Unlock()
		slog.Debug("fetch already in flight", "format", f)
		return
	}

	k.fetch = fetchRequested
	k.fetchF = f
	k.mu.Unlock()

	slog.Info("remote selection available", "format", f)
	k.b.Request(f)
}

// onBegin sizes the accumulator for a chunked transfer; subsequent Data
// deliveries append to it.
func (k *Broker) onBegin(f format.Format, hint uint32) {
	k.mu.Lock()
	k.fetch = fetchStreaming
	k.fetchF = f
	k.latestF = f
	k.latest = make([]byte, 0, hint)
	k.mu.Unlock()
	slog.Debug("chunked transfer starting", "format", f, "size_hint", hint)
}

func (k *Broker) onData(f format.Format, data []byte) {
	k.mu.Lock()
	defer k.mu.Unlock()

	if f == format.None {
		if k.fetch == fetchStreaming {
			// Aborted mid-transfer: the partial accumulation is garbage.
			k.latestF = format.None
			k.latest = nil
		}
		k.fetch = fetchIdle
		k.fetchF = format.None
		slog.Debug("selection fetch failed")
		return
	}

	if k.fetch == fetchStreaming && k.fetchF == f {
		// Continuation of a chunked transfer.
		k.latest = append(k.latest, data...)
		return
	}

	// Direct single-shot delivery.
	k.fetch = fetchIdle
	k.latestF = f
	k.latest = append([]byte(nil), data...)
	slog.Debug("selection data cached", "format", f, "bytes", len(k.latest))
}

// Copy takes ownership of the selection, serving data for the first
// supported item. Returns false if no item carries a supported format.
func (k *Broker) Copy(items []message.Item) bool {
	for _, it := range items {
		f := it.Format()
		if f == format.None {
			continue
		}
		data, err := it.Decode()
		if err != nil {
			slog.Warn("copy payload undecodable", "mime", it.MIME, "err", err)
			continue
		}

		k.mu.Lock()
		k.owns = true
		k.offered = f
		k.outb = data
		k.mu.Unlock()

		k.b.Notice(f, k.provide)
		slog.Info("selection claimed", "format", f, "bytes", len(data))
		return true
	}
	return false
}

// provide serves the currently offered payload to a requesting peer.
func (k *Broker) provide(f format.Format, reply func([]byte)) {
	k.mu.Lock()
	data := k.outb
	k.mu.Unlock()
	reply(data)
}

// Release gives the selection up voluntarily.
func (k *Broker) Release() {
	k.mu.Lock()
	k.owns = false
	k.offered = format.None
	k.outb = nil
	k.mu.Unlock()
	k.b.Release()
}

// Paste returns the cached inbound payload as IPC items, filtered by the
// accept MIME type (empty means any). Nil when nothing matches.
func (k *Broker) Paste(accept string) []message.Item {
	k.mu.Lock()
	defer k.mu.Unlock()
	if k.latestF == format.None || len(k.latest) == 0 {
		return nil
	}
	if accept != "" && k.latestF.String() != accept {
		return nil
	}
	return []message.Item{message.NewItem(k.latestF, k.latest)}
}

// Targets reports the best format the current remote owner advertised.
func (k *Broker) Targets() format.Format {
	k.mu.Lock()
	defer k.mu.Unlock()
	return k.remote
}

// Status snapshots the daemon state for the status CLI.
func (k *Broker) Status() message.Status {
	k.mu.Lock()
	defer k.mu.Unlock()
	s := message.Status{
		Backend: k.b.Name(),
		Owns:    k.owns,
	}
	if k.offered != format.None {
		s.Offered = k.offered.String()
	}
	if k.latestF != format.None {
		s.Latest = k.latestF.String()
		s.LatestSize = len(k.latest)
	}
	return s
}

// Handle answers one IPC request message.
func (k *Broker) Handle(msg *message.Message) *message.Message {
	switch msg.Type {
	case message.TypeCopy:
		if !k.Copy(msg.Items) {
			return &message.Message{Type: message.TypeError, Error: "no supported format in copy payload"}
		}
		return &message.Message{Type: message.TypeCopy}

	case message.TypePaste:
		return &message.Message{Type: message.TypePasteResponse, Items: k.Paste(msg.Accept)}

	case message.TypeStatus:
		st := k.Status()
		return &message.Message{Type: message.TypeStatusResponse, Status: &st}

	case message.TypeTargets:
		return &message.Message{Type: message.TypeTargetsReply, Target: k.Targets().String()}

	default:
		return &message.Message{Type: message.TypeError, Error: "unknown request"}
	}
}
