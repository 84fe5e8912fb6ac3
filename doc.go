// Package prism is a real-time video compositor and projection-mapping
// engine.
//
// Media clips play on layers; layers run effect chains and blend onto an
// Environment canvas; screens map regions of the canvas, or of single
// layers, onto physical outputs through warped, masked, edge-blended
// slices. Rendering runs on the CPU ([SoftwareBackend]) or on the GPU with
// [Ebitengine] (package prism/gpu).
//
// # Quick start
//
//	eng, err := prism.NewEngine(prism.DefaultConfig(), prism.Options{
//		Sink: prism.FrameSinkFunc(func(id prism.ScreenID, f *prism.Frame) {
//			// hand f to a display or encoder
//		}),
//	})
//	if err != nil { ... }
//	defer eng.Close()
//
//	eng.Submit(prism.AddScreen{Name: "projector", Width: 1920, Height: 1080})
//	go eng.Run(ctx)
//
// With the GPU backend, drive the engine from [ebiten.Game.Update] with
// [Engine.Tick] instead of [Engine.Run]; see cmd/prism.
//
// # Model and commands
//
// The [Model] holds the [Environment] (canvas size and layer stack) and the
// [OutputManager] (screens and their slices). It is changed only through
// [Command] values submitted to the engine and applied at tick boundaries
// on the render goroutine:
//
//	r, err := eng.Do(ctx, prism.AddLayer{Name: "bg"})
//	layer := prism.LayerID(r.ID)
//	eng.Submit(prism.AssignClip{Layer: layer, Cell: prism.ClipCell{
//		Source: prism.ClipSource{Kind: prism.SourceGenerator, Pattern: prism.PatternBars},
//	}})
//	eng.Submit(prism.TriggerClip{Layer: layer, Policy: &prism.Cut})
//
// Commands that fail validation leave the model untouched and report the
// error on their result channel and as an [EventCommandRejected] event.
//
// # Layers and clips
//
// Each [Layer] has a sparse clip grid, a playback state machine with cut,
// fade and crossfade transitions, a 2D transform with tiling, an opacity
// and a blend mode. Media frames reach the engine through a [MediaProvider]
// writing into a single-slot [Mailbox]; the built-in [ProviderMux] serves
// generated test patterns and still images.
//
// # Effects and automation
//
// Effects are registered by type in an [EffectRegistry]. Shader effects
// carry a Kage program and an equivalent CPU implementation; host effects
// modulate the layer transform. Parameters can be driven by LFOs,
// envelopes or audio bands relative to the engine [Clock], or ramped over
// time with easing from [gween].
//
// # Outputs
//
// A [Screen] renders its [Slice] list in order. A slice crops its input,
// warps it with a four-corner perspective or a Bezier [WarpMesh], shapes it
// with a polygon or [SliceMask], color corrects it, applies [EdgeBlend]
// attenuation and lands in a rotated, optionally flipped output rect. Key
// slices act as a luma matte over what lies beneath them.
//
// # Snapshots
//
// [Model.Snapshot] and [Restore] persist the whole model as JSON; load one
// into a running engine with the [LoadSnapshot] command.
//
// # Events
//
// An [EventSink] receives clip, transition, layer, screen and command
// events on the render goroutine. Package prism/ecs republishes them into a
// [Donburi] world.
//
// [Ebitengine]: https://ebitengine.org
// [gween]: https://github.com/tanema/gween
// [Donburi]: https://github.com/yohamta/donburi
package prism
