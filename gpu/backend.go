package gpu

import (
	"fmt"
	"image"
	"image/color"
	"math"
	"time"

	"github.com/hajimehoshi/ebiten/v2"

	"github.com/phanxgames/prism"
)

// DefaultSubdivision is the number of quads per warp mesh cell edge.
// Perspective slices use perspectiveCells quads per side.
const (
	DefaultSubdivision = 8
	perspectiveCells   = 16
)

// Backend renders with Ebitengine. Every method except Capture.Read must be
// called from the goroutine driving the game loop. Capture.Read reads pixels
// back on the caller's goroutine, which waits for the game loop's next frame
// boundary; with read back enabled, do not block the game loop on pending
// captures.
type Backend struct {
	maxSurface  int
	subdivision int
	displayOnly bool

	pool     renderTexturePool
	shaders  shaderCache
	grids    map[int]*warpGrid
	textures map[prism.TextureKey]*ebiten.Image
	layers   map[prism.LayerID]*gpuLayer
	canvas   *ebiten.Image
	screens  map[prism.ScreenID]*sharedImage
	coverage map[prism.SliceID]*coverageImage
	white    *ebiten.Image

	upload []byte
}

type gpuLayer struct {
	mix     *ebiten.Image
	surface *ebiten.Image
}

// coverageImage caches the shape coverage of one slice. It is rebuilt when
// the slice value or its drawn size changes.
type coverageImage struct {
	slice *prism.Slice
	w, h  int
	img   *ebiten.Image
}

// NewBackend returns an Ebitengine backend refusing surfaces larger than
// maxSurface on either side. subdivision sets the quads per warp mesh cell
// edge; zero uses DefaultSubdivision.
func NewBackend(maxSurface, subdivision int) *Backend {
	if subdivision <= 0 {
		subdivision = DefaultSubdivision
	}
	white := ebiten.NewImage(1, 1)
	white.Fill(color.White)
	return &Backend{
		maxSurface:  maxSurface,
		subdivision: subdivision,
		grids:       make(map[int]*warpGrid),
		textures:    make(map[prism.TextureKey]*ebiten.Image),
		layers:      make(map[prism.LayerID]*gpuLayer),
		screens:     make(map[prism.ScreenID]*sharedImage),
		coverage:    make(map[prism.SliceID]*coverageImage),
		white:       white,
	}
}

// SetDisplayOnly stops screen read back. Screens are still rendered and
// available from Screen, but no frames reach the engine's sink.
func (b *Backend) SetDisplayOnly(on bool) { b.displayOnly = on }

// Name returns "ebitengine".
func (b *Backend) Name() string { return "ebitengine" }

// Canvas returns the last composited canvas, nil before the first pass.
func (b *Backend) Canvas() *ebiten.Image { return b.canvas }

// Screen returns the last rendered image of screen id, nil if none.
func (b *Backend) Screen(id prism.ScreenID) *ebiten.Image {
	if s := b.screens[id]; s != nil {
		return s.img
	}
	return nil
}

// LayerSurface returns the last post-effect surface of a layer.
func (b *Backend) LayerSurface(id prism.LayerID) *ebiten.Image {
	if l := b.layers[id]; l != nil {
		return l.surface
	}
	return nil
}

func (b *Backend) checkSize(w, h int) error {
	if w <= 0 || h <= 0 || w > b.maxSurface || h > b.maxSurface {
		return fmt.Errorf("%w: surface %dx%d, limit %d", prism.ErrResourceUnavailable, w, h, b.maxSurface)
	}
	return nil
}

// Upload writes f into the texture for key.
func (b *Backend) Upload(key prism.TextureKey, f *prism.Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := b.checkSize(f.Width, f.Height); err != nil {
		return err
	}
	t := b.textures[key]
	if t == nil || t.Bounds().Dx() != f.Width || t.Bounds().Dy() != f.Height {
		b.pool.Release(t)
		t = b.pool.Acquire(f.Width, f.Height)
		b.textures[key] = t
	}
	b.upload = premultiply(f, b.upload)
	t.WritePixels(b.upload)
	return nil
}

// Freeze copies the last clip mix of layer into texture key.
func (b *Backend) Freeze(layer prism.LayerID, key prism.TextureKey) bool {
	l := b.layers[layer]
	if l == nil || l.mix == nil {
		return false
	}
	b.pool.Release(b.textures[key])
	bounds := l.mix.Bounds()
	t := b.pool.Acquire(bounds.Dx(), bounds.Dy())
	t.DrawImage(l.mix, &ebiten.DrawImageOptions{Blend: ebiten.BlendCopy})
	b.textures[key] = t
	return true
}

// Release frees texture key.
func (b *Backend) Release(key prism.TextureKey) {
	if t, ok := b.textures[key]; ok {
		b.pool.Release(t)
		delete(b.textures, key)
	}
}

// ReleaseLayer frees the mix, surface and textures of layer.
func (b *Backend) ReleaseLayer(id prism.LayerID) {
	if l := b.layers[id]; l != nil {
		b.pool.Release(l.mix)
		b.pool.Release(l.surface)
		delete(b.layers, id)
	}
	for k, t := range b.textures {
		if k.Layer == id {
			b.pool.Release(t)
			delete(b.textures, k)
		}
	}
}

// Close deallocates every GPU resource.
func (b *Backend) Close() error {
	for _, t := range b.textures {
		t.Deallocate()
	}
	for _, l := range b.layers {
		if l.mix != nil {
			l.mix.Deallocate()
		}
		if l.surface != nil {
			l.surface.Deallocate()
		}
	}
	for _, s := range b.screens {
		s.release()
	}
	for _, c := range b.coverage {
		c.img.Deallocate()
	}
	if b.canvas != nil {
		b.canvas.Deallocate()
	}
	clear(b.textures)
	clear(b.layers)
	clear(b.screens)
	clear(b.coverage)
	b.canvas = nil
	b.pool.Dispose()
	b.shaders.dispose()
	return nil
}

// Composite renders every needed layer surface and paints the canvas,
// starting from opaque black.
func (b *Backend) Composite(plan *prism.FramePlan) error {
	w, h := plan.Width, plan.Height
	if err := b.checkSize(w, h); err != nil {
		return err
	}
	if b.canvas == nil || b.canvas.Bounds().Dx() != w || b.canvas.Bounds().Dy() != h {
		b.pool.Release(b.canvas)
		b.canvas = b.pool.Acquire(w, h)
	}
	b.canvas.Fill(color.Black)
	for i := range plan.Layers {
		lp := &plan.Layers[i]
		l := b.layers[lp.ID]
		if l == nil {
			l = &gpuLayer{}
			b.layers[lp.ID] = l
		}
		if !b.mixClips(l, lp.Clips, w, h) || (!lp.Composite && !lp.Sampled) {
			b.pool.Release(l.surface)
			l.surface = nil
			continue
		}
		b.renderLayer(l, lp, w, h)
		if lp.Composite && lp.Opacity > 0 {
			var op ebiten.DrawImageOptions
			op.ColorScale.ScaleAlpha(float32(lp.Opacity))
			op.Blend = ebitenBlend(lp.Blend)
			b.canvas.DrawImage(l.surface, &op)
		}
	}
	return nil
}

// texture returns the image drawn for d, falling back while d.Texture has no
// upload.
func (b *Backend) texture(d prism.ClipDraw) *ebiten.Image {
	if t := b.textures[d.Texture]; t != nil {
		return t
	}
	return b.textures[d.Fallback]
}

// mixClips draws the weighted sum of the clip textures, each stretched to
// the canvas, into l.mix.
func (b *Backend) mixClips(l *gpuLayer, draws []prism.ClipDraw, w, h int) bool {
	var n int
	for _, d := range draws {
		if b.texture(d) != nil && d.Weight > 0 {
			n++
		}
	}
	if n == 0 {
		b.pool.Release(l.mix)
		l.mix = nil
		return false
	}
	if l.mix == nil || l.mix.Bounds().Dx() != w || l.mix.Bounds().Dy() != h {
		b.pool.Release(l.mix)
		l.mix = b.pool.Acquire(w, h)
	} else {
		l.mix.Clear()
	}
	for _, d := range draws {
		t := b.texture(d)
		if t == nil || d.Weight <= 0 {
			continue
		}
		tb := t.Bounds()
		var op ebiten.DrawImageOptions
		op.GeoM.Scale(float64(w)/float64(tb.Dx()), float64(h)/float64(tb.Dy()))
		op.Filter = ebiten.FilterLinear
		if n == 1 && d.Weight == 1 {
			op.Blend = ebiten.BlendCopy
		} else {
			op.ColorScale.ScaleAlpha(float32(d.Weight))
			op.Blend = ebiten.BlendLighter
		}
		l.mix.DrawImage(t, &op)
	}
	return true
}

// renderLayer places the mix over the tiling grid and runs the shader
// passes.
func (b *Backend) renderLayer(l *gpuLayer, lp *prism.LayerPlan, w, h int) {
	cur := l.surface
	if cur == nil || cur.Bounds().Dx() != w || cur.Bounds().Dy() != h {
		b.pool.Release(cur)
		cur = b.pool.Acquire(w, h)
	} else {
		cur.Clear()
	}
	fw, fh := float64(w), float64(h)
	layer := geoMFromAff3(lp.Transform.Matrix(fw, fh, fw, fh))
	tx, ty := max(lp.Tiling.X, 1), max(lp.Tiling.Y, 1)
	for j := 0; j < ty; j++ {
		for i := 0; i < tx; i++ {
			var op ebiten.DrawImageOptions
			op.GeoM.Scale(1/float64(tx), 1/float64(ty))
			op.GeoM.Translate(float64(i)*fw/float64(tx), float64(j)*fh/float64(ty))
			op.GeoM.Concat(layer)
			op.Filter = ebiten.FilterLinear
			cur.DrawImage(l.mix, &op)
		}
	}
	result, spare := applyPasses(lp.Passes, cur, &b.pool, &b.shaders)
	if spare != nil {
		b.pool.Release(spare)
	}
	l.surface = result
}

// RenderScreens maps the canvas and sampled layers onto each screen. The GPU
// serializes draws, so screens render in order.
func (b *Backend) RenderScreens(plan *prism.FramePlan) []prism.ScreenResult {
	results := make([]prism.ScreenResult, len(plan.Screens))
	live := make(map[prism.SliceID]bool)
	for i, sc := range plan.Screens {
		results[i] = b.renderScreen(sc, plan.Time)
		for _, s := range sc.Slices {
			live[s.ID] = true
		}
	}
	for id, c := range b.coverage {
		if !live[id] {
			b.pool.Release(c.img)
			delete(b.coverage, id)
		}
	}
	return results
}

func (b *Backend) renderScreen(sc *prism.Screen, ts time.Duration) prism.ScreenResult {
	if err := b.checkSize(sc.Width, sc.Height); err != nil {
		return prism.ScreenResult{Screen: sc.ID, Err: fmt.Errorf("screen %d: %w", sc.ID, err)}
	}
	out := b.pool.Acquire(sc.Width, sc.Height)
	out.Fill(color.Black)
	for _, s := range sc.Slices {
		if s.Enabled {
			b.drawSlice(out, s)
		}
	}
	if !sc.Color.IsIdentity() {
		tmp := b.pool.Acquire(sc.Width, sc.Height)
		var op ebiten.DrawRectShaderOptions
		op.Images[0] = out
		op.Uniforms = make(map[string]any, 5)
		colorUniforms(op.Uniforms, sc.Color)
		op.Blend = ebiten.BlendCopy
		tmp.DrawRectShader(sc.Width, sc.Height, ensureScreenColorShader(), &op)
		b.pool.Release(out)
		out = tmp
	}
	if prev := b.screens[sc.ID]; prev != nil {
		prev.release()
	}
	holders := int32(2)
	if b.displayOnly {
		holders = 1
	}
	shared := newSharedImage(out, holders, &b.pool)
	b.screens[sc.ID] = shared

	if b.displayOnly {
		return prism.ScreenResult{Screen: sc.ID}
	}
	return prism.ScreenResult{Screen: sc.ID, Capture: &gpuCapture{
		src:  out,
		done: shared.release,
		w:    sc.Width,
		h:    sc.Height,
		ts:   ts,
	}}
}

func (b *Backend) sliceInput(in prism.InputSource) *ebiten.Image {
	if in.Kind == prism.InputLayer {
		return b.LayerSurface(in.Layer)
	}
	return b.canvas
}

// drawSlice renders s into its own w x h image in slice space, then places
// that image on out with the slice's flip and rotation.
func (b *Backend) drawSlice(out *ebiten.Image, s *prism.Slice) {
	r := s.Output.Rect
	sw, sh := int(math.Ceil(r.Width)), int(math.Ceil(r.Height))
	if sw <= 0 || sh <= 0 {
		return
	}
	place := slicePlacement(s.Output, sw, sh)

	if s.BlackBackground {
		var op ebiten.DrawImageOptions
		op.GeoM.Scale(float64(sw), float64(sh))
		op.GeoM.Concat(place)
		op.ColorScale.Scale(0, 0, 0, 1)
		out.DrawImage(b.white, &op)
	}

	src := b.sliceInput(s.Input)
	if src == nil {
		return
	}
	ir := s.InputRect
	crop := image.Rect(
		int(math.Floor(ir.X)), int(math.Floor(ir.Y)),
		int(math.Ceil(ir.X+ir.Width)), int(math.Ceil(ir.Y+ir.Height))).Intersect(src.Bounds())
	if crop.Empty() {
		return
	}
	input := src.SubImage(crop).(*ebiten.Image)

	img := b.pool.Acquire(sw, sh)
	defer func() { b.pool.Release(img) }()
	verts, inds := b.gridFor(s).update(sw, sh, ir, s.Warp())
	img.DrawTriangles(verts, inds, input, &ebiten.DrawTrianglesOptions{
		Filter:  ebiten.FilterLinear,
		Address: ebiten.AddressClampToZero,
		Blend:   ebiten.BlendCopy,
	})

	cov := b.coverageFor(s, sw, sh)
	if cov != nil || s.IsKey || s.EdgeBlend.Active() || !s.Color.IsIdentity() {
		post := b.pool.Acquire(sw, sh)
		var op ebiten.DrawRectShaderOptions
		op.Images[0] = img
		op.Images[1] = cov
		op.Uniforms = slicePostUniforms(s, sw, sh, cov != nil)
		op.Blend = ebiten.BlendCopy
		post.DrawRectShader(sw, sh, ensureSlicePostShader(), &op)
		b.pool.Release(img)
		img = post
	}

	var op ebiten.DrawImageOptions
	op.GeoM = place
	op.Filter = ebiten.FilterLinear
	if s.IsKey {
		op.Blend = keyBlend
	}
	out.DrawImage(img, &op)
}

// gridFor returns the warp grid sized for the warp of s.
func (b *Backend) gridFor(s *prism.Slice) *warpGrid {
	cells := gridCells(s, b.subdivision)
	g := b.grids[cells]
	if g == nil {
		g = newWarpGrid(cells)
		b.grids[cells] = g
	}
	return g
}

// gridCells is the grid size per side: subdivision quads per mesh cell, a
// fixed density for perspective and one quad otherwise.
func gridCells(s *prism.Slice, subdivision int) int {
	switch {
	case s.Mesh != nil:
		return min(subdivision*(max(s.Mesh.Columns, s.Mesh.Rows)-1), maxGridCells)
	case s.Perspective != nil && s.Polygon == nil:
		return perspectiveCells
	}
	return 1
}

// slicePlacement maps the sw x sh slice image onto its output rect:
// stretch, flip in slice space, then rotate about the rect center.
func slicePlacement(o prism.OutputRect, sw, sh int) ebiten.GeoM {
	r := o.Rect
	var g ebiten.GeoM
	g.Scale(r.Width/float64(sw), r.Height/float64(sh))
	if o.FlipX {
		g.Scale(-1, 1)
		g.Translate(r.Width, 0)
	}
	if o.FlipY {
		g.Scale(1, -1)
		g.Translate(0, r.Height)
	}
	g.Translate(-r.Width/2, -r.Height/2)
	if o.Rotation != 0 {
		g.Rotate(o.Rotation)
	}
	g.Translate(r.X+r.Width/2, r.Y+r.Height/2)
	return g
}

// coverageFor returns the cached coverage image of s, nil when the slice
// covers its whole rect.
func (b *Backend) coverageFor(s *prism.Slice, w, h int) *ebiten.Image {
	c := b.coverage[s.ID]
	if c != nil && c.slice == s && c.w == w && c.h == h {
		return c.img
	}
	if c != nil {
		b.pool.Release(c.img)
		delete(b.coverage, s.ID)
	}
	cov := s.Coverage(w, h)
	if cov == nil {
		return nil
	}
	img := b.pool.Acquire(w, h)
	img.WritePixels(coveragePixels(cov.Map()))
	b.coverage[s.ID] = &coverageImage{slice: s, w: w, h: h, img: img}
	return img
}

// coveragePixels encodes coverage as premultiplied white.
func coveragePixels(cov []float32) []byte {
	pix := make([]byte, len(cov)*4)
	for i, c := range cov {
		v := uint8(math.Round(float64(min(max(c, 0), 1)) * 255))
		pix[i*4], pix[i*4+1], pix[i*4+2], pix[i*4+3] = v, v, v, v
	}
	return pix
}

// geoMFromAff3 converts a row-major affine matrix to an ebiten.GeoM.
func geoMFromAff3(m [6]float64) ebiten.GeoM {
	var g ebiten.GeoM
	g.SetElement(0, 0, m[0])
	g.SetElement(0, 1, m[1])
	g.SetElement(0, 2, m[2])
	g.SetElement(1, 0, m[3])
	g.SetElement(1, 1, m[4])
	g.SetElement(1, 2, m[5])
	return g
}

// premultiply converts a straight-alpha frame to tightly packed
// premultiplied RGBA, reusing buf.
func premultiply(f *prism.Frame, buf []byte) []byte {
	n := f.Width * f.Height * 4
	if cap(buf) < n {
		buf = make([]byte, n)
	}
	buf = buf[:n]
	stride := f.Stride
	if stride <= 0 {
		stride = f.Width * 4
	}
	ri, bi := 0, 2
	if f.Format == prism.FormatBGRA {
		ri, bi = 2, 0
	}
	o := 0
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*stride : y*stride+f.Width*4]
		for x := 0; x < len(row); x += 4 {
			a := uint32(row[x+3])
			buf[o] = mulDiv255(uint32(row[x+ri]), a)
			buf[o+1] = mulDiv255(uint32(row[x+1]), a)
			buf[o+2] = mulDiv255(uint32(row[x+bi]), a)
			buf[o+3] = uint8(a)
			o += 4
		}
	}
	return buf
}

func mulDiv255(v, a uint32) uint8 {
	return uint8((v*a + 127) / 255)
}

// unpremultiply converts premultiplied RGBA in place to straight alpha.
func unpremultiply(pix []byte) {
	for i := 0; i < len(pix); i += 4 {
		a := uint32(pix[i+3])
		if a == 0 || a == 255 {
			continue
		}
		for c := 0; c < 3; c++ {
			pix[i+c] = uint8(min((uint32(pix[i+c])*255+a/2)/a, 255))
		}
	}
}

// pixelReader is the part of *ebiten.Image a capture reads from.
type pixelReader interface {
	ReadPixels(pixels []byte)
}

type gpuCapture struct {
	src  pixelReader
	done func()
	w, h int
	ts   time.Duration
}

// Read reads the screen image back and converts it to a straight-alpha
// frame. The image is released afterwards.
func (c *gpuCapture) Read() (*prism.Frame, error) {
	if c.src == nil {
		return nil, fmt.Errorf("%w: capture already read", prism.ErrResourceUnavailable)
	}
	src, done := c.src, c.done
	c.src, c.done = nil, nil
	pix := make([]byte, c.w*c.h*4)
	src.ReadPixels(pix)
	if done != nil {
		done()
	}
	unpremultiply(pix)
	return &prism.Frame{
		Width:     c.w,
		Height:    c.h,
		Format:    prism.FormatRGBA,
		Pix:       pix,
		Timestamp: c.ts,
	}, nil
}

var _ prism.Backend = (*Backend)(nil)
