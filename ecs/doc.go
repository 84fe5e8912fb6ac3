// Package ecs bridges prism engine events into ECS worlds.
//
// The primary adapter is [NewDonburiSink], which publishes engine events
// (clip started, transition complete, layer stopped, screen disabled,
// command rejected) into a [Donburi] world as typed events. Subscribe to
// [EngineEventType] in your ECS systems to receive them.
//
// Usage:
//
//	eng, _ := prism.NewEngine(cfg, prism.Options{Events: ecs.NewDonburiSink(world)})
//	ecs.EngineEventType.Subscribe(world, onEngineEvent)
//
// Events are queued; call EngineEventType.ProcessEvents(world) from your
// update loop to dispatch them.
//
// [Donburi]: https://github.com/yohamta/donburi
package ecs
