package wire

import (
	"github.com/fxamacker/cbor/v2"
)

// MessageType discriminates the room protocol messages.
type MessageType string

const (
	MessageTypeInit           MessageType = "init"
	MessageTypeRoomExpired    MessageType = "room-expired"
	MessageTypeUserJoined     MessageType = "user-joined"
	MessageTypeUserLeft       MessageType = "user-left"
	MessageTypeCanvasUpdate   MessageType = "canvas-update"
	MessageTypeMarkdownUpdate MessageType = "markdown-update"
	MessageTypeImageUpdate    MessageType = "image-update"
)

// Snapshot is the serialized shared document of one room. The payload
// groups are opaque to the room server: each is stored and replaced as
// a unit, never inspected or merged element by element. Timestamps are
// unix milliseconds.
type Snapshot struct {
	Elements       cbor.RawMessage `cbor:"elements,omitempty"`
	AppState       cbor.RawMessage `cbor:"appState,omitempty"`
	Files          cbor.RawMessage `cbor:"files,omitempty"`
	MarkdownNotes  cbor.RawMessage `cbor:"markdownNotes,omitempty"`
	ImageHistory   cbor.RawMessage `cbor:"imageHistory,omitempty"`
	LastActivityAt int64           `cbor:"lastActivityAt,omitempty"`
	CreatedAt      int64           `cbor:"createdAt,omitempty"`
}

// Message is the envelope for every frame exchanged with a room. Only
// the fields relevant to Type are populated; the rest stay zero and are
// omitted from the encoded form.
type Message struct {
	Type MessageType `cbor:"type"`

	// init
	State       *Snapshot `cbor:"state,omitempty"`
	ActiveUsers int       `cbor:"activeUsers,omitempty"`

	// user-joined / user-left
	UserID string `cbor:"userId,omitempty"`

	// room-expired
	Notice       string `cbor:"message,omitempty"`
	InactiveDays int    `cbor:"inactiveDays,omitempty"`

	// canvas-update
	Elements cbor.RawMessage `cbor:"elements,omitempty"`
	AppState cbor.RawMessage `cbor:"appState,omitempty"`
	Files    cbor.RawMessage `cbor:"files,omitempty"`

	// markdown-update
	MarkdownNotes cbor.RawMessage `cbor:"markdownNotes,omitempty"`

	// image-update
	ImageHistory cbor.RawMessage `cbor:"imageHistory,omitempty"`
}
