// Package message defines the selport IPC protocol between the CLI tools
// and the running daemon.
//
// All messages are newline-delimited JSON. Payloads are always
// base64-encoded so binary content (images) is safe to embed in JSON
// strings. Each message is exactly one line: <json>\n
package message

import (
	"encoding/base64"
	"encoding/json"
	"fmt"

	"go.klb.dev/selport/internal/format"
)

// Type identifies the kind of message.
type Type string

const (
	TypeCopy           Type = "COPY"
	TypePaste          Type = "PASTE"
	TypePasteResponse  Type = "PASTE_RESPONSE"
	TypeStatus         Type = "STATUS"
	TypeStatusResponse Type = "STATUS_RESPONSE"
	TypeTargets        Type = "TARGETS"
	TypeTargetsReply   Type = "TARGETS_RESPONSE"
	TypeError          Type = "ERROR"
)

// Item is one clipboard payload with its MIME type. Data is always
// base64-encoded.
type Item struct {
	MIME string `json:"mime"`
	Data string `json:"data"` // base64-encoded
}

// NewItem creates an Item from raw bytes and a format.
func NewItem(f format.Format, data []byte) Item {
	return Item{
		MIME: f.String(),
		Data: base64.StdEncoding.EncodeToString(data),
	}
}

// Format maps the item's MIME type back to a Format (None if unsupported).
func (it Item) Format() format.Format { return format.FromMIME(it.MIME) }

// Decode returns the raw bytes of the item payload.
func (it Item) Decode() ([]byte, error) {
	return base64.StdEncoding.DecodeString(it.Data)
}

// Status describes the daemon's current state, used in STATUS responses.
type Status struct {
	Backend    string `json:"backend"`
	Owns       bool   `json:"owns"`
	Offered    string `json:"offered,omitempty"`     // MIME of the advertised format
	Latest     string `json:"latest,omitempty"`      // MIME of the cached inbound payload
	LatestSize int    `json:"latest_size,omitempty"` // bytes cached
}

// Message is the top-level IPC envelope.
type Message struct {
	Type Type `json:"type"`

	// COPY / PASTE_RESPONSE — the clipboard payload
	Items []Item `json:"items,omitempty"`

	// PASTE / TARGETS — preferred MIME type, empty means any
	Accept string `json:"accept,omitempty"`

	// STATUS_RESPONSE
	Status *Status `json:"status,omitempty"`

	// TARGETS_RESPONSE — MIME of the remote owner's best offer, "none" if
	// no remote owner has been seen
	Target string `json:"target,omitempty"`

	// ERROR
	Error string `json:"error,omitempty"`
}

// Encode serialises the message to JSON without a trailing newline.
func (m *Message) Encode() ([]byte, error) {
	return json.Marshal(m)
}

// Decode deserialises a message from raw JSON bytes.
func Decode(b []byte) (*Message, error) {
	var m Message
	if err := json.Unmarshal(b, &m); err != nil {
		return nil, fmt.Errorf("message decode: %w", err)
	}
	return &m, nil
}

// FirstItem returns the decoded bytes and format of the first item whose
// MIME type matches accept (any item when accept is empty). ok is false if
// no item matches or decoding fails.
func (m *Message) FirstItem(accept string) (f format.Format, data []byte, ok bool) {
	for _, it := range m.Items {
		if accept != "" && it.MIME != accept {
			continue
		}
		b, err := it.Decode()
		if err != nil {
			return format.None, nil, false
		}
		return it.Format(), b, true
	}
	return format.None, nil, false
}
