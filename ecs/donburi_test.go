package ecs

import (
	"context"
	"testing"

	"github.com/yohamta/donburi"

	"github.com/phanxgames/prism"
)

func TestNewDonburiSink(t *testing.T) {
	world := donburi.NewWorld()
	if NewDonburiSink(world) == nil {
		t.Fatal("NewDonburiSink returned nil")
	}
}

func TestDonburiSink_HandleEvent(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world)

	var received []prism.Event
	EngineEventType.Subscribe(world, func(w donburi.World, e prism.Event) {
		received = append(received, e)
	})

	sink.HandleEvent(prism.Event{Kind: prism.EventClipStarted, Tick: 3, Layer: 7})
	sink.HandleEvent(prism.Event{Kind: prism.EventScreenDisabled, Screen: 2})

	// Events are queued until processed.
	if len(received) != 0 {
		t.Fatalf("events delivered before ProcessEvents: %d", len(received))
	}
	EngineEventType.ProcessEvents(world)

	if len(received) != 2 {
		t.Fatalf("expected 2 events, got %d", len(received))
	}
	if e := received[0]; e.Kind != prism.EventClipStarted || e.Tick != 3 || e.Layer != 7 {
		t.Errorf("event 0: %+v", e)
	}
	if e := received[1]; e.Kind != prism.EventScreenDisabled || e.Screen != 2 {
		t.Errorf("event 1: %+v", e)
	}
}

func TestDonburiSink_FiltersKinds(t *testing.T) {
	world := donburi.NewWorld()
	sink := NewDonburiSink(world, prism.EventLayerStopped)

	var received []prism.Event
	EngineEventType.Subscribe(world, func(w donburi.World, e prism.Event) {
		received = append(received, e)
	})
	sink.HandleEvent(prism.Event{Kind: prism.EventClipStarted})
	sink.HandleEvent(prism.Event{Kind: prism.EventLayerStopped, Layer: 1})
	EngineEventType.ProcessEvents(world)

	if len(received) != 1 || received[0].Kind != prism.EventLayerStopped {
		t.Errorf("received %+v, want one layer-stopped event", received)
	}
}

func TestDonburiSink_FromEngine(t *testing.T) {
	world := donburi.NewWorld()
	eng, err := prism.NewEngine(prism.Config{Width: 16, Height: 16}, prism.Options{
		Events: NewDonburiSink(world),
	})
	if err != nil {
		t.Fatal(err)
	}
	defer eng.Close()

	var received []prism.Event
	EngineEventType.Subscribe(world, func(w donburi.World, e prism.Event) {
		received = append(received, e)
	})

	ctx := context.Background()
	// An out-of-range tempo is rejected on the render goroutine.
	eng.Submit(prism.SetTempo{BPM: -1})
	if err := eng.Tick(ctx); err != nil {
		t.Fatal(err)
	}
	EngineEventType.ProcessEvents(world)

	if len(received) != 1 || received[0].Kind != prism.EventCommandRejected {
		t.Fatalf("received %+v, want one command-rejected event", received)
	}
}
