package ecs

import (
	"github.com/yohamta/donburi"
	"github.com/yohamta/donburi/features/events"

	"github.com/phanxgames/prism"
)

// EngineEventType is the Donburi event type for prism engine events.
var EngineEventType = events.NewEventType[prism.Event]()

type donburiSink struct {
	world donburi.World
	kinds map[prism.EventKind]bool
}

// NewDonburiSink creates an EventSink backed by a Donburi world. Events are
// published to EngineEventType and consumed with events.Subscribe and
// ProcessEvents. When kinds are given, only those are published.
func NewDonburiSink(world donburi.World, kinds ...prism.EventKind) prism.EventSink {
	s := &donburiSink{world: world}
	if len(kinds) > 0 {
		s.kinds = make(map[prism.EventKind]bool, len(kinds))
		for _, k := range kinds {
			s.kinds[k] = true
		}
	}
	return s
}

func (s *donburiSink) HandleEvent(e prism.Event) {
	if s.kinds != nil && !s.kinds[e.Kind] {
		return
	}
	EngineEventType.Publish(s.world, e)
}
