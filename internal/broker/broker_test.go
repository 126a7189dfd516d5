package broker

import (
	"bytes"
	"testing"

	"go.klb.dev/selport/internal/backend"
	"go.klb.dev/selport/internal/format"
	"go.klb.dev/selport/internal/message"
)

// fakeBackend records operations and exposes the callbacks for tests to
// drive events through.
type fakeBackend struct {
	cb       backend.Callbacks
	requests []format.Format
	noticed  []format.Format
	provide  backend.ProviderFunc
	releases int
}

func (f *fakeBackend) Name() string { return "fake" }

func (f *fakeBackend) Start(cb backend.Callbacks) error {
	f.cb = cb
	return nil
}

func (f *fakeBackend) Close() {}

func (f *fakeBackend) Notice(fo format.Format, p backend.ProviderFunc) {
	f.noticed = append(f.noticed, fo)
	f.provide = p
}

func (f *fakeBackend) Release() { f.releases++ }

func (f *fakeBackend) Request(fo format.Format) { f.requests = append(f.requests, fo) }

func newTestBroker(t *testing.T) (*Broker, *fakeBackend) {
	t.Helper()
	fb := &fakeBackend{}
	k := New(fb)
	if err := k.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	return k, fb
}

func TestDiscoveryTriggersFetchAndCachesResult(t *testing.T) {
	k, fb := newTestBroker(t)

	fb.cb.Notify(format.Text)
	if len(fb.requests) != 1 || fb.requests[0] != format.Text {
		t.Fatalf("requests = %v, want [Text]", fb.requests)
	}

	fb.cb.Data(format.Text, []byte("hello"))

	items := k.Paste("")
	if len(items) != 1 {
		t.Fatalf("Paste returned %d items, want 1", len(items))
	}
	got, err := items[0].Decode()
	if err != nil || string(got) != "hello" {
		t.Fatalf("Paste payload = %q (%v), want hello", got, err)
	}
}

func TestChunkedTransferAccumulatesWithoutReRequest(t *testing.T) {
	k, fb := newTestBroker(t)

	fb.cb.Notify(format.PNG) // discovery
	if len(fb.requests) != 1 {
		t.Fatalf("requests after discovery = %v, want one", fb.requests)
	}

	fb.cb.Begin(format.PNG, 1000) // chunked transfer start
	if len(fb.requests) != 1 {
		t.Fatal("broker re-requested during an active transfer")
	}

	fb.cb.Data(format.PNG, bytes.Repeat([]byte{1}, 600))
	fb.cb.Data(format.PNG, bytes.Repeat([]byte{2}, 400))

	items := k.Paste("image/png")
	if len(items) != 1 {
		t.Fatalf("Paste returned %d items, want 1", len(items))
	}
	got, _ := items[0].Decode()
	if len(got) != 1000 {
		t.Fatalf("accumulated %d bytes, want 1000", len(got))
	}
}

func TestNewDiscoveryAfterChunkedTransferFetchesAgain(t *testing.T) {
	_, fb := newTestBroker(t)

	fb.cb.Notify(format.Text)
	fb.cb.Begin(format.Text, 10)
	fb.cb.Data(format.Text, []byte("0123456789"))

	// Peer copies something new: a fresh discovery must fetch again.
	fb.cb.Notify(format.Text)
	if len(fb.requests) != 2 {
		t.Fatalf("requests = %v, want two fetches", fb.requests)
	}
}

func TestDualSelectionDiscoveryKeepsChunkedFetchIntact(t *testing.T) {
	k, fb := newTestBroker(t)

	// A peer owning PRIMARY and CLIPBOARD announces the offer once per
	// selection alias; only the first may turn into a fetch.
	fb.cb.Notify(format.Text)
	fb.cb.Notify(format.Text)
	if len(fb.requests) != 1 {
		t.Fatalf("requests = %v, want a single fetch", fb.requests)
	}

	fb.cb.Begin(format.Text, 10)
	fb.cb.Data(format.Text, []byte("01234"))
	fb.cb.Data(format.Text, []byte("56789"))

	if len(fb.requests) != 1 {
		t.Fatalf("requests = %v, want no re-request mid-transfer", fb.requests)
	}
	items := k.Paste("")
	if len(items) != 1 {
		t.Fatalf("Paste returned %d items, want 1", len(items))
	}
	got, _ := items[0].Decode()
	if string(got) != "0123456789" {
		t.Fatalf("accumulated %q, want the full chunk sequence", got)
	}
}

func TestAbortedChunkedTransferDiscardsPartialData(t *testing.T) {
	k, fb := newTestBroker(t)

	fb.cb.Notify(format.PNG)
	fb.cb.Begin(format.PNG, 100)
	fb.cb.Data(format.PNG, bytes.Repeat([]byte{9}, 40))
	fb.cb.Data(format.None, nil)

	if items := k.Paste(""); items != nil {
		t.Fatalf("Paste served a partial aborted transfer: %v", items)
	}
}

func TestCopyClaimsOwnershipAndServesProvider(t *testing.T) {
	k, fb := newTestBroker(t)

	payload := []byte("clipboard text")
	ok := k.Copy([]message.Item{message.NewItem(format.Text, payload)})
	if !ok {
		t.Fatal("Copy rejected a supported item")
	}
	if len(fb.noticed) != 1 || fb.noticed[0] != format.Text {
		t.Fatalf("noticed = %v, want [Text]", fb.noticed)
	}

	var served []byte
	fb.provide(format.Text, func(b []byte) { served = b })
	if !bytes.Equal(served, payload) {
		t.Fatalf("provider served %q, want %q", served, payload)
	}

	st := k.Status()
	if !st.Owns || st.Offered != "text/plain" {
		t.Fatalf("status = %+v, want owning text/plain", st)
	}
}

func TestCopyWithoutSupportedFormatRefused(t *testing.T) {
	k, fb := newTestBroker(t)

	ok := k.Copy([]message.Item{{MIME: "application/pdf", Data: "QUJD"}})
	if ok {
		t.Fatal("Copy accepted an unsupported item")
	}
	if len(fb.noticed) != 0 {
		t.Fatalf("ownership claimed for unsupported payload: %v", fb.noticed)
	}
}

func TestInvoluntaryReleaseClearsOwnership(t *testing.T) {
	k, fb := newTestBroker(t)
	k.Copy([]message.Item{message.NewItem(format.Text, []byte("x"))})

	fb.cb.Release()

	st := k.Status()
	if st.Owns || st.Offered != "" {
		t.Fatalf("status after release = %+v, want not owning", st)
	}
}

func TestPasteFiltersByAccept(t *testing.T) {
	k, fb := newTestBroker(t)
	fb.cb.Notify(format.Text)
	fb.cb.Data(format.Text, []byte("hi"))

	if items := k.Paste("image/png"); items != nil {
		t.Fatalf("Paste(image/png) = %v, want nil", items)
	}
	if items := k.Paste("text/plain"); len(items) != 1 {
		t.Fatalf("Paste(text/plain) returned %d items, want 1", len(items))
	}
}

func TestHandleRoutes(t *testing.T) {
	k, fb := newTestBroker(t)
	fb.cb.Notify(format.JPEG)

	resp := k.Handle(&message.Message{Type: message.TypeTargets})
	if resp.Type != message.TypeTargetsReply || resp.Target != "image/jpeg" {
		t.Fatalf("targets response = %+v, want image/jpeg", resp)
	}

	resp = k.Handle(&message.Message{Type: message.TypeStatus})
	if resp.Type != message.TypeStatusResponse || resp.Status == nil || resp.Status.Backend != "fake" {
		t.Fatalf("status response = %+v", resp)
	}

	resp = k.Handle(&message.Message{Type: "BOGUS"})
	if resp.Type != message.TypeError {
		t.Fatalf("unknown request answered %+v, want error", resp)
	}
}

func TestFailedFetchReportsNothingCached(t *testing.T) {
	k, fb := newTestBroker(t)

	fb.cb.Notify(format.Text)
	fb.cb.Data(format.None, nil)

	if items := k.Paste(""); items != nil {
		t.Fatalf("Paste after failed fetch = %v, want nil", items)
	}
	if tg := k.Targets(); tg != format.Text {
		t.Fatalf("Targets = %v, want Text (offer still stands)", tg)
	}
}
