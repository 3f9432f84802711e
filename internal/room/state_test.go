package room

import (
	"reflect"
	"testing"
	"time"

	"github.com/fxamacker/cbor/v2"
	"github.com/quillboard/backend/internal/wire"
)

func mustRaw(t *testing.T, value any) cbor.RawMessage {
	t.Helper()
	payload, err := wire.Marshal(value)
	if err != nil {
		t.Fatalf("failed to marshal fixture: %v", err)
	}
	return cbor.RawMessage(payload)
}

type stepClock struct {
	current time.Time
}

func newStepClock(start time.Time) *stepClock {
	return &stepClock{current: start}
}

func (c *stepClock) Now() time.Time {
	return c.current
}

func (c *stepClock) Advance(delta time.Duration) {
	c.current = c.current.Add(delta)
}

func TestApplyCanvasUpdateReplacesGroupWholesale(t *testing.T) {
	clock := newStepClock(time.Unix(1756000000, 0))
	state := NewState(clock.Now)

	first := mustRaw(t, []any{map[string]any{"id": "rect-1"}})
	state.ApplyCanvasUpdate(first, mustRaw(t, map[string]any{"zoom": int64(1)}), mustRaw(t, map[string]any{}))

	second := mustRaw(t, []any{map[string]any{"id": "ellipse-1"}})
	appState := mustRaw(t, map[string]any{"zoom": int64(2)})
	files := mustRaw(t, map[string]any{"file-1": []byte{0x01}})
	state.ApplyCanvasUpdate(second, appState, files)

	snapshot := state.Snapshot()
	if !reflect.DeepEqual(snapshot.Elements, second) {
		t.Fatalf("expected elements to be replaced wholesale")
	}
	if !reflect.DeepEqual(snapshot.AppState, appState) || !reflect.DeepEqual(snapshot.Files, files) {
		t.Fatalf("expected app state and files to follow the canvas group")
	}
}

func TestApplyCanvasUpdateIsIdempotentForIdenticalPayloads(t *testing.T) {
	clock := newStepClock(time.Unix(1756000000, 0))
	state := NewState(clock.Now)

	elements := mustRaw(t, []any{map[string]any{"id": "rect-1"}})
	appState := mustRaw(t, map[string]any{"zoom": int64(1)})
	files := mustRaw(t, map[string]any{})

	state.ApplyCanvasUpdate(elements, appState, files)
	once := state.Snapshot()
	state.ApplyCanvasUpdate(elements, appState, files)
	twice := state.Snapshot()

	if !reflect.DeepEqual(once.Elements, twice.Elements) ||
		!reflect.DeepEqual(once.AppState, twice.AppState) ||
		!reflect.DeepEqual(once.Files, twice.Files) {
		t.Fatalf("expected identical payloads to leave identical content")
	}
}

func TestMarkdownAndImageGroupsAreIndependentOfCanvas(t *testing.T) {
	clock := newStepClock(time.Unix(1756000000, 0))
	state := NewState(clock.Now)

	elements := mustRaw(t, []any{map[string]any{"id": "rect-1"}})
	state.ApplyCanvasUpdate(elements, mustRaw(t, map[string]any{}), mustRaw(t, map[string]any{}))

	notes := mustRaw(t, []any{map[string]any{"id": "note-1"}})
	state.ApplyMarkdownUpdate(notes)

	history := mustRaw(t, []any{map[string]any{"prompt": "sunrise"}})
	state.ApplyImageUpdate(history)

	snapshot := state.Snapshot()
	if !reflect.DeepEqual(snapshot.Elements, elements) {
		t.Fatalf("expected markdown and image updates to leave the canvas group untouched")
	}
	if !reflect.DeepEqual(snapshot.MarkdownNotes, notes) || !reflect.DeepEqual(snapshot.ImageHistory, history) {
		t.Fatalf("unexpected note or image payloads")
	}
}

func TestCreatedAtIsSetExactlyOnce(t *testing.T) {
	clock := newStepClock(time.Unix(1756000000, 0))
	state := NewState(clock.Now)

	if state.HasContent() {
		t.Fatalf("expected a fresh room to have no content")
	}

	state.ApplyCanvasUpdate(mustRaw(t, []any{}), mustRaw(t, map[string]any{}), mustRaw(t, map[string]any{}))
	createdAt := state.Snapshot().CreatedAt
	if createdAt == 0 {
		t.Fatalf("expected first update to set createdAt")
	}

	clock.Advance(time.Hour)
	state.ApplyMarkdownUpdate(mustRaw(t, []any{}))
	if state.Snapshot().CreatedAt != createdAt {
		t.Fatalf("expected createdAt to stay fixed, got %d", state.Snapshot().CreatedAt)
	}
}

func TestTouchActivityDoesNotCreateContent(t *testing.T) {
	clock := newStepClock(time.Unix(1756000000, 0))
	state := NewState(clock.Now)

	state.TouchActivity()
	if state.HasContent() {
		t.Fatalf("expected touch to leave the room without content")
	}
	if state.Snapshot().LastActivityAt == 0 {
		t.Fatalf("expected touch to record activity")
	}
}

func TestLastActivityNeverRegresses(t *testing.T) {
	clock := newStepClock(time.Unix(1756000000, 0))
	state := NewState(clock.Now)

	clock.Advance(time.Hour)
	state.TouchActivity()
	recorded := state.Snapshot().LastActivityAt

	clock.Advance(-30 * time.Minute)
	state.TouchActivity()
	if state.Snapshot().LastActivityAt != recorded {
		t.Fatalf("expected lastActivityAt to hold at %d, got %d", recorded, state.Snapshot().LastActivityAt)
	}

	clock.Advance(time.Hour)
	state.ApplyMarkdownUpdate(mustRaw(t, []any{}))
	if state.Snapshot().LastActivityAt <= recorded {
		t.Fatalf("expected lastActivityAt to advance with new activity")
	}
}

func TestRestoreStateKeepsPersistedTimestamps(t *testing.T) {
	snapshot := wire.Snapshot{
		Elements:       mustRaw(t, []any{map[string]any{"id": "rect-1"}}),
		LastActivityAt: 1756000000000,
		CreatedAt:      1750000000000,
	}
	state := RestoreState(snapshot, newStepClock(time.Unix(1757000000, 0)).Now)

	if !state.HasContent() {
		t.Fatalf("expected restored state to have content")
	}
	restored := state.Snapshot()
	if restored.CreatedAt != 1750000000000 || restored.LastActivityAt != 1756000000000 {
		t.Fatalf("unexpected restored timestamps: %+v", restored)
	}
}
