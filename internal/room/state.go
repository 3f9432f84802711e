package room

import (
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/quillboard/backend/internal/wire"
)

// State is the authoritative shared document of one room. Each payload
// group is replaced wholesale by its matching update message; the room
// never merges at the element level, so the last applied update wins.
//
// State carries no lock: it is owned by one coordinator and only ever
// touched from that coordinator's event loop.
type State struct {
	snapshot wire.Snapshot
	clock    func() time.Time
}

func NewState(clock func() time.Time) *State {
	if clock == nil {
		clock = time.Now
	}
	return &State{clock: clock}
}

// RestoreState rebuilds a resident state from a persisted snapshot.
func RestoreState(snapshot wire.Snapshot, clock func() time.Time) *State {
	state := NewState(clock)
	state.snapshot = snapshot
	return state
}

// ApplyCanvasUpdate replaces the drawing elements, the application view
// state and the attached files as one group.
func (s *State) ApplyCanvasUpdate(elements, appState, files cbor.RawMessage) {
	s.snapshot.Elements = elements
	s.snapshot.AppState = appState
	s.snapshot.Files = files
	s.markWritten()
}

// ApplyMarkdownUpdate replaces the markdown notes wholesale.
func (s *State) ApplyMarkdownUpdate(notes cbor.RawMessage) {
	s.snapshot.MarkdownNotes = notes
	s.markWritten()
}

// ApplyImageUpdate replaces the generated-image history wholesale.
func (s *State) ApplyImageUpdate(history cbor.RawMessage) {
	s.snapshot.ImageHistory = history
	s.markWritten()
}

// TouchActivity records activity without a content write. Used on
// connect so an occupied room does not age toward expiry.
func (s *State) TouchActivity() {
	s.bumpActivity()
}

// HasContent reports whether any update was ever applied to this room,
// either in this process or in a restored snapshot.
func (s *State) HasContent() bool {
	return s.snapshot.CreatedAt != 0
}

// Snapshot returns the current serialized form of the room document.
func (s *State) Snapshot() wire.Snapshot {
	return s.snapshot
}

func (s *State) markWritten() {
	s.bumpActivity()
	if s.snapshot.CreatedAt == 0 {
		s.snapshot.CreatedAt = s.now()
	}
}

func (s *State) bumpActivity() {
	if now := s.now(); now > s.snapshot.LastActivityAt {
		s.snapshot.LastActivityAt = now
	}
}

func (s *State) now() int64 {
	return s.clock().UTC().UnixMilli()
}
