package prism

import "time"

// TextureKey names a clip texture held by a backend: the layer and the
// playback slot token it belongs to.
type TextureKey struct {
	Layer LayerID
	Token uint64
}

// ClipDraw is one weighted clip texture of a layer mix.
type ClipDraw struct {
	Texture TextureKey
	Weight  float64

	// Fallback is drawn in place of Texture until Texture has been uploaded.
	// The zero key means none.
	Fallback TextureKey
}

// LayerPlan describes how one layer is rendered this tick.
type LayerPlan struct {
	ID LayerID
	// Clips are mixed by weight into the layer's clip mix, each stretched
	// to the canvas. Zero weights are omitted.
	Clips []ClipDraw
	// Transform is the layer transform combined with host effects.
	Transform Transform2D
	Tiling    Tiling
	Passes    []EffectPass
	Opacity   float64
	Blend     BlendMode
	// Composite is set when the layer is painted onto the canvas.
	Composite bool
	// Sampled is set when a slice reads the layer surface directly.
	Sampled bool
}

// FramePlan is one tick of rendering work, back layer first. It must not be
// retained after the backend call returns.
type FramePlan struct {
	Tick          uint64
	Time          time.Duration
	Width, Height int
	Layers        []LayerPlan
	// Screens holds the enabled screens.
	Screens []*Screen
}

// Capture is a rendered screen awaiting read back. Read is called once,
// from the capture goroutine.
type Capture interface {
	Read() (*Frame, error)
}

// ScreenResult is the outcome of rendering one screen. A nil Capture with
// no error means the backend does not read this screen back.
type ScreenResult struct {
	Screen  ScreenID
	Capture Capture
	Err     error
}

// Backend owns every rendering resource. All methods except Capture.Read
// are called from the render goroutine.
type Backend interface {
	Name() string
	// Upload replaces the clip texture key with the contents of f.
	Upload(key TextureKey, f *Frame) error
	// Freeze stores the last clip mix of layer as texture key. It reports
	// false when the layer has not produced a mix yet.
	Freeze(layer LayerID, key TextureKey) bool
	// Release frees texture key.
	Release(key TextureKey)
	// ReleaseLayer frees every surface owned by layer.
	ReleaseLayer(layer LayerID)
	// Composite renders layer surfaces and the canvas.
	Composite(plan *FramePlan) error
	// RenderScreens maps the canvas and sampled layers onto each screen of
	// plan. A failing screen does not stop the others.
	RenderScreens(plan *FramePlan) []ScreenResult
	Close() error
}
