package prism

import "fmt"

// EventKind identifies what happened.
type EventKind uint8

const (
	// EventClipStarted: a clip was triggered on a layer.
	EventClipStarted EventKind = iota
	// EventTransitionComplete: a pending clip became active.
	EventTransitionComplete
	// EventLayerStopped: a layer reached Idle.
	EventLayerStopped
	// EventScreenDisabled: a screen hit a resource error and was disabled.
	EventScreenDisabled
	// EventCommandRejected: a queued command failed validation.
	EventCommandRejected
)

var eventKindNames = [...]string{
	"clip-started", "transition-complete", "layer-stopped", "screen-disabled", "command-rejected",
}

func (k EventKind) String() string {
	if int(k) < len(eventKindNames) {
		return eventKindNames[k]
	}
	return fmt.Sprintf("EventKind(%d)", uint8(k))
}

// Event is emitted by the engine on the render goroutine.
type Event struct {
	Kind   EventKind
	Tick   uint64
	Layer  LayerID
	Cell   CellKey
	Screen ScreenID
	Err    error
}

// EventSink receives engine events. HandleEvent runs on the render
// goroutine and must not block.
type EventSink interface {
	HandleEvent(Event)
}

// EventSinkFunc adapts a function to EventSink.
type EventSinkFunc func(Event)

// HandleEvent calls f.
func (f EventSinkFunc) HandleEvent(e Event) { f(e) }
