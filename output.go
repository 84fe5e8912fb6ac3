package prism

import (
	"fmt"
	"math"
	"slices"
)

// MaxOutputDelay bounds Screen.Delay, in frames.
const MaxOutputDelay = 120

// InputKind selects what a slice samples.
type InputKind string

const (
	// InputComposition samples the composited Environment canvas.
	InputComposition InputKind = "composition"
	// InputLayer samples one layer's post-effect surface, ignoring its
	// opacity and visibility in the main composite.
	InputLayer InputKind = "layer"
)

// InputSource is the input of a slice. Layer is a lookup key only; a missing
// layer renders nothing.
type InputSource struct {
	Kind  InputKind `json:"kind"`
	Layer LayerID   `json:"layer,omitempty"`
}

// Composition is the default slice input.
var Composition = InputSource{Kind: InputComposition}

// LayerInput returns an input sampling layer id.
func LayerInput(id LayerID) InputSource { return InputSource{Kind: InputLayer, Layer: id} }

// OutputRect places a slice on its screen, in screen pixels. The slice is
// flipped in its own space, then rotated about the rect center.
type OutputRect struct {
	Rect     Rect    `json:"rect"`
	Rotation float64 `json:"rotation"`
	FlipX    bool    `json:"flip_x,omitempty"`
	FlipY    bool    `json:"flip_y,omitempty"`
}

// Local maps screen position (x, y) to normalized slice coordinates. ok is
// false outside the rect.
func (o OutputRect) Local(x, y float64) (u, v float64, ok bool) {
	r := o.Rect
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	px, py := x-cx, y-cy
	if o.Rotation != 0 {
		sin, cos := math.Sincos(-o.Rotation)
		px, py = px*cos-py*sin, px*sin+py*cos
	}
	u = (px + r.Width/2) / r.Width
	v = (py + r.Height/2) / r.Height
	if u < 0 || u > 1 || v < 0 || v > 1 {
		return 0, 0, false
	}
	if o.FlipX {
		u = 1 - u
	}
	if o.FlipY {
		v = 1 - v
	}
	return u, v, true
}

// Bounds returns the axis-aligned screen bounds of the rotated rect.
func (o OutputRect) Bounds() Rect {
	if o.Rotation == 0 {
		return o.Rect
	}
	r := o.Rect
	cx, cy := r.X+r.Width/2, r.Y+r.Height/2
	sin, cos := math.Sincos(o.Rotation)
	hw := math.Abs(r.Width/2*cos) + math.Abs(r.Height/2*sin)
	hh := math.Abs(r.Width/2*sin) + math.Abs(r.Height/2*cos)
	return Rect{cx - hw, cy - hh, 2 * hw, 2 * hh}
}

// Slice maps an input region onto part of a screen.
type Slice struct {
	ID      SliceID `json:"id"`
	Name    string  `json:"name"`
	Enabled bool    `json:"enabled"`

	Input InputSource `json:"input"`
	// InputRect crops the input, in the input's pixel space.
	InputRect Rect       `json:"input_rect"`
	Output    OutputRect `json:"output"`
	// Polygon, when set, restricts the slice to a shape in normalized slice
	// space. Polygonal slices cannot use perspective.
	Polygon []Vec2 `json:"polygon,omitempty"`

	Perspective *Perspective `json:"perspective,omitempty"`
	// Mesh overrides Perspective when present.
	Mesh *WarpMesh `json:"mesh,omitempty"`

	EdgeBlend EdgeBlend       `json:"edge_blend"`
	Mask      *SliceMask      `json:"mask,omitempty"`
	Color     ColorCorrection `json:"color"`

	// IsKey makes the slice a luma matte over what the screen holds beneath
	// it instead of drawing its own content.
	IsKey bool `json:"is_key,omitempty"`
	// BlackBackground fills the output region with black before drawing.
	BlackBackground bool `json:"black_background,omitempty"`
}

// NewSlice returns an enabled slice mapping input onto output with no
// warp, blend, mask or correction.
func NewSlice(id SliceID, name string, input, output Rect) *Slice {
	return &Slice{
		ID:        id,
		Name:      name,
		Enabled:   true,
		Input:     Composition,
		InputRect: input,
		Output:    OutputRect{Rect: output},
		EdgeBlend: DefaultEdgeBlend,
		Color:     IdentityColorCorrection,
	}
}

// Validate checks every configuration invariant of s.
func (s *Slice) Validate() error {
	switch s.Input.Kind {
	case InputComposition, InputLayer:
	default:
		return fmt.Errorf("%w: slice %d input kind %q", ErrInvalidConfig, s.ID, s.Input.Kind)
	}
	if !s.InputRect.finite() || !s.Output.Rect.finite() || !finite(s.Output.Rotation) {
		return fmt.Errorf("%w: slice %d geometry %+v %+v", ErrInvalidConfig, s.ID, s.InputRect, s.Output)
	}
	if s.InputRect.Empty() {
		return fmt.Errorf("%w: slice %d input rect %+v", ErrZeroArea, s.ID, s.InputRect)
	}
	if s.Output.Rect.Empty() {
		return fmt.Errorf("%w: slice %d output rect %+v", ErrZeroArea, s.ID, s.Output.Rect)
	}
	if s.Polygon != nil {
		if s.Perspective != nil {
			return fmt.Errorf("%w: slice %d", ErrPerspectiveOnPolygon, s.ID)
		}
		if err := validatePolygon(s.Polygon); err != nil {
			return fmt.Errorf("slice %d shape: %w", s.ID, err)
		}
	}
	if s.Perspective != nil {
		if err := s.Perspective.Validate(); err != nil {
			return fmt.Errorf("slice %d: %w", s.ID, err)
		}
	}
	if s.Mesh != nil {
		if err := s.Mesh.Validate(); err != nil {
			return fmt.Errorf("slice %d: %w", s.ID, err)
		}
	}
	if err := s.EdgeBlend.Validate(); err != nil {
		return fmt.Errorf("slice %d: %w", s.ID, err)
	}
	if s.Mask != nil {
		if err := s.Mask.Validate(); err != nil {
			return fmt.Errorf("slice %d mask: %w", s.ID, err)
		}
	}
	if err := s.Color.Validate(); err != nil {
		return fmt.Errorf("slice %d: %w", s.ID, err)
	}
	return nil
}

// Warp returns the effective warp of s, nil for none.
func (s *Slice) Warp() WarpFunc {
	if s.Polygon != nil {
		return warpFunc(nil, s.Mesh)
	}
	return warpFunc(s.Perspective, s.Mesh)
}

// Coverage evaluates the polygon shape and mask of a slice over its pixel
// image.
type Coverage struct {
	w, h    float64
	polygon []Vec2
	mask    *MaskField
}

// Coverage prepares the shape coverage of s for a w x h pixel image. It
// returns nil when the slice covers its whole output rect.
func (s *Slice) Coverage(w, h int) *Coverage {
	c := &Coverage{w: float64(w), h: float64(h), polygon: s.Polygon}
	if s.Mask != nil && s.Mask.Enabled {
		c.mask = s.Mask.Field(w, h)
	}
	if c.polygon == nil && c.mask == nil {
		return nil
	}
	return c
}

// At returns coverage at normalized slice position (u, v).
func (c *Coverage) At(u, v float64) float64 {
	if c.polygon != nil && !pointInPolygon(Vec2{u, v}, c.polygon) {
		return 0
	}
	if c.mask == nil {
		return 1
	}
	return c.mask.Coverage(u*c.w, v*c.h)
}

// Map returns coverage at every pixel center, row major.
func (c *Coverage) Map() []float32 {
	w, h := int(c.w), int(c.h)
	out := make([]float32, w*h)
	for y := 0; y < h; y++ {
		for x := 0; x < w; x++ {
			out[y*w+x] = float32(c.At((float64(x)+0.5)/c.w, (float64(y)+0.5)/c.h))
		}
	}
	return out
}

// Clone returns a deep copy keeping the id.
func (s *Slice) Clone() *Slice {
	c := *s
	c.Polygon = slices.Clone(s.Polygon)
	if s.Perspective != nil {
		p := *s.Perspective
		c.Perspective = &p
	}
	if s.Mesh != nil {
		c.Mesh = s.Mesh.Clone()
	}
	if s.Mask != nil {
		c.Mask = s.Mask.Clone()
	}
	return &c
}

// Screen is one physical or virtual output.
type Screen struct {
	ID   ScreenID `json:"id"`
	Name string   `json:"name"`
	// Device is an opaque handle interpreted by the egress collaborator.
	Device  string          `json:"device"`
	Width   int             `json:"width"`
	Height  int             `json:"height"`
	Slices  []*Slice        `json:"slices"`
	Enabled bool            `json:"enabled"`
	Color   ColorCorrection `json:"color"`
	// Delay holds egress back by this many frames.
	Delay int `json:"delay"`
}

// NewScreen returns an enabled screen with one full-screen slice of the
// canvas.
func NewScreen(id ScreenID, name string, w, h int, slice SliceID, canvasW, canvasH int) *Screen {
	sc := &Screen{ID: id, Name: name, Width: w, Height: h, Enabled: true, Color: IdentityColorCorrection}
	sc.Slices = []*Slice{NewSlice(slice, "Slice 1",
		Rect{0, 0, float64(canvasW), float64(canvasH)},
		Rect{0, 0, float64(w), float64(h)})}
	return sc
}

// Validate checks the screen and every slice.
func (sc *Screen) Validate() error {
	if sc.Width <= 0 || sc.Height <= 0 {
		return fmt.Errorf("%w: screen %d size %dx%d", ErrInvalidConfig, sc.ID, sc.Width, sc.Height)
	}
	if sc.Delay < 0 || sc.Delay > MaxOutputDelay {
		return fmt.Errorf("%w: screen %d delay %d", ErrInvalidConfig, sc.ID, sc.Delay)
	}
	if len(sc.Slices) == 0 {
		return fmt.Errorf("%w: screen %d", ErrLastSlice, sc.ID)
	}
	if err := sc.Color.Validate(); err != nil {
		return fmt.Errorf("screen %d: %w", sc.ID, err)
	}
	for _, s := range sc.Slices {
		if err := s.Validate(); err != nil {
			return err
		}
	}
	return nil
}

// Slice returns the slice with id and its index.
func (sc *Screen) Slice(id SliceID) (*Slice, int) {
	for i, s := range sc.Slices {
		if s.ID == id {
			return s, i
		}
	}
	return nil, -1
}

// InsertSlice adds s at index; an out of range index appends.
func (sc *Screen) InsertSlice(s *Slice, index int) {
	if index < 0 || index > len(sc.Slices) {
		index = len(sc.Slices)
	}
	sc.Slices = slices.Insert(sc.Slices, index, s)
}

// RemoveSlice deletes the slice with id. The last slice cannot be removed.
func (sc *Screen) RemoveSlice(id SliceID) error {
	_, i := sc.Slice(id)
	if i < 0 {
		return fmt.Errorf("%w: slice %d on screen %d", ErrNotFound, id, sc.ID)
	}
	if len(sc.Slices) == 1 {
		return fmt.Errorf("%w: slice %d on screen %d", ErrLastSlice, id, sc.ID)
	}
	sc.Slices = slices.Delete(sc.Slices, i, i+1)
	return nil
}

// MoveSlice places the slice with id at index, clamped.
func (sc *Screen) MoveSlice(id SliceID, index int) error {
	s, i := sc.Slice(id)
	if s == nil {
		return fmt.Errorf("%w: slice %d on screen %d", ErrNotFound, id, sc.ID)
	}
	sc.Slices = slices.Delete(sc.Slices, i, i+1)
	sc.Slices = slices.Insert(sc.Slices, clampInt(index, 0, len(sc.Slices)), s)
	return nil
}

// ClearSlice resets the slice with id to a full-screen mapping of the whole
// canvas, keeping its id and name.
func (sc *Screen) ClearSlice(id SliceID, canvasW, canvasH int) error {
	s, i := sc.Slice(id)
	if s == nil {
		return fmt.Errorf("%w: slice %d on screen %d", ErrNotFound, id, sc.ID)
	}
	sc.Slices[i] = NewSlice(s.ID, s.Name,
		Rect{0, 0, float64(canvasW), float64(canvasH)},
		Rect{0, 0, float64(sc.Width), float64(sc.Height)})
	return nil
}

// Clone returns a deep copy keeping all ids.
func (sc *Screen) Clone() *Screen {
	c := *sc
	c.Slices = make([]*Slice, len(sc.Slices))
	for i, s := range sc.Slices {
		c.Slices[i] = s.Clone()
	}
	return &c
}

// OutputManager owns the screens.
type OutputManager struct {
	Screens []*Screen `json:"screens"`
}

// Screen returns the screen with id.
func (o *OutputManager) Screen(id ScreenID) (*Screen, error) {
	for _, sc := range o.Screens {
		if sc.ID == id {
			return sc, nil
		}
	}
	return nil, fmt.Errorf("%w: screen %d", ErrNotFound, id)
}

// Slice returns the slice id on screen sid.
func (o *OutputManager) Slice(sid ScreenID, id SliceID) (*Screen, *Slice, error) {
	sc, err := o.Screen(sid)
	if err != nil {
		return nil, nil, err
	}
	s, _ := sc.Slice(id)
	if s == nil {
		return nil, nil, fmt.Errorf("%w: slice %d on screen %d", ErrNotFound, id, sid)
	}
	return sc, s, nil
}

// Add appends sc.
func (o *OutputManager) Add(sc *Screen) { o.Screens = append(o.Screens, sc) }

// Remove deletes the screen with id.
func (o *OutputManager) Remove(id ScreenID) error {
	i := slices.IndexFunc(o.Screens, func(sc *Screen) bool { return sc.ID == id })
	if i < 0 {
		return fmt.Errorf("%w: screen %d", ErrNotFound, id)
	}
	o.Screens = slices.Delete(o.Screens, i, i+1)
	return nil
}

// Clone returns a deep copy keeping all ids.
func (o *OutputManager) Clone() *OutputManager {
	c := &OutputManager{Screens: make([]*Screen, len(o.Screens))}
	for i, sc := range o.Screens {
		c.Screens[i] = sc.Clone()
	}
	return c
}
