package prism

import (
	"fmt"
	"image"
	"math"
	"runtime"
	"time"

	"golang.org/x/image/draw"
	"golang.org/x/sync/errgroup"
)

// SoftwareBackend renders on the CPU into float pixmaps. It is the reference
// renderer: exact where the model promises exact output.
type SoftwareBackend struct {
	maxSurface int
	workers    int
	pool       pixmapPool
	textures   map[TextureKey]*Pixmap
	layers     map[LayerID]*softLayer
	canvas     *Pixmap
}

type softLayer struct {
	// mix is the last clip mix, canvas sized, before placement and effects.
	mix *Pixmap
	// surface is the post-effect, pre-composite layer image.
	surface *Pixmap
}

// NewSoftwareBackend returns a CPU backend refusing surfaces larger than
// maxSurface on either side.
func NewSoftwareBackend(maxSurface int) *SoftwareBackend {
	return &SoftwareBackend{
		maxSurface: maxSurface,
		workers:    runtime.GOMAXPROCS(0),
		textures:   make(map[TextureKey]*Pixmap),
		layers:     make(map[LayerID]*softLayer),
	}
}

// Name returns "software".
func (b *SoftwareBackend) Name() string { return "software" }

// Canvas returns the last composited canvas, nil before the first pass.
func (b *SoftwareBackend) Canvas() *Pixmap { return b.canvas }

// LayerSurface returns the last post-effect surface of a layer, nil when it
// had no content.
func (b *SoftwareBackend) LayerSurface(id LayerID) *Pixmap {
	if l := b.layers[id]; l != nil {
		return l.surface
	}
	return nil
}

func (b *SoftwareBackend) checkSize(w, h int) error {
	if w <= 0 || h <= 0 || w > b.maxSurface || h > b.maxSurface {
		return fmt.Errorf("%w: surface %dx%d, limit %d", ErrResourceUnavailable, w, h, b.maxSurface)
	}
	return nil
}

// Upload decodes f into the texture for key.
func (b *SoftwareBackend) Upload(key TextureKey, f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	if err := b.checkSize(f.Width, f.Height); err != nil {
		return err
	}
	t := b.textures[key]
	if t == nil || t.Width != f.Width || t.Height != f.Height {
		b.pool.Release(t)
		t = b.pool.Acquire(f.Width, f.Height)
		b.textures[key] = t
	}
	f.decodeInto(t)
	return nil
}

// Freeze copies the last clip mix of layer into texture key.
func (b *SoftwareBackend) Freeze(layer LayerID, key TextureKey) bool {
	l := b.layers[layer]
	if l == nil || l.mix == nil {
		return false
	}
	b.pool.Release(b.textures[key])
	t := b.pool.Acquire(l.mix.Width, l.mix.Height)
	t.CopyFrom(l.mix)
	b.textures[key] = t
	return true
}

// Release frees texture key.
func (b *SoftwareBackend) Release(key TextureKey) {
	if t, ok := b.textures[key]; ok {
		b.pool.Release(t)
		delete(b.textures, key)
	}
}

// ReleaseLayer frees the mix, surface and textures of layer.
func (b *SoftwareBackend) ReleaseLayer(id LayerID) {
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

// Close drops every resource.
func (b *SoftwareBackend) Close() error {
	clear(b.textures)
	clear(b.layers)
	b.canvas = nil
	return nil
}

// rows splits [0, h) into bands and runs fn on them in parallel.
func (b *SoftwareBackend) rows(h int, fn func(y0, y1 int)) {
	n := max(b.workers, 1)
	step := (h + n - 1) / n
	if step < 16 {
		step = 16
	}
	var g errgroup.Group
	for y := 0; y < h; y += step {
		y0, y1 := y, min(y+step, h)
		g.Go(func() error {
			fn(y0, y1)
			return nil
		})
	}
	_ = g.Wait()
}

// Composite renders every needed layer surface and paints the canvas,
// starting from opaque black.
func (b *SoftwareBackend) Composite(plan *FramePlan) error {
	w, h := plan.Width, plan.Height
	if err := b.checkSize(w, h); err != nil {
		return err
	}
	if b.canvas == nil || b.canvas.Width != w || b.canvas.Height != h {
		b.canvas = NewPixmap(w, h)
	}
	b.canvas.Fill(ColorBlack)
	for i := range plan.Layers {
		lp := &plan.Layers[i]
		l := b.layers[lp.ID]
		if l == nil {
			l = &softLayer{}
			b.layers[lp.ID] = l
		}
		if !b.mixClips(l, lp.Clips, w, h) {
			b.pool.Release(l.surface)
			l.surface = nil
			continue
		}
		if !lp.Composite && !lp.Sampled {
			b.pool.Release(l.surface)
			l.surface = nil
			continue
		}
		b.renderLayer(l, lp, w, h)
		if lp.Composite {
			b.blendOnto(b.canvas, l.surface, lp.Blend, lp.Opacity)
		}
	}
	return nil
}

// mixClips writes the weighted clip mix of draws into l.mix. It reports
// false, dropping the mix, when no clip has a texture.
func (b *SoftwareBackend) mixClips(l *softLayer, draws []ClipDraw, w, h int) bool {
	type weighted struct {
		tex *Pixmap
		w   float64
	}
	var in []weighted
	for _, d := range draws {
		t := b.textures[d.Texture]
		if t == nil {
			t = b.textures[d.Fallback]
		}
		if t != nil && d.Weight > 0 {
			in = append(in, weighted{t, d.Weight})
		}
	}
	if len(in) == 0 {
		b.pool.Release(l.mix)
		l.mix = nil
		return false
	}
	if l.mix == nil || l.mix.Width != w || l.mix.Height != h {
		b.pool.Release(l.mix)
		l.mix = b.pool.Acquire(w, h)
	}
	var scratch []*Pixmap
	defer func() {
		for _, s := range scratch {
			b.pool.Release(s)
		}
	}()
	// Stretch each texture to the canvas.
	for i := range in {
		t := in[i].tex
		if t.Width == w && t.Height == h {
			continue
		}
		s := b.pool.Acquire(w, h)
		draw.BiLinear.Scale(s, s.Bounds(), t, t.Bounds(), draw.Src, nil)
		scratch = append(scratch, s)
		in[i].tex = s
	}
	if len(in) == 1 && in[0].w == 1 {
		l.mix.CopyFrom(in[0].tex)
		return true
	}
	b.rows(h, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < w; x++ {
				var r, g, bl, a float64
				for _, c := range in {
					p := c.tex.Pixel(x, y)
					pa := p.A * c.w
					r += p.R * pa
					g += p.G * pa
					bl += p.B * pa
					a += pa
				}
				if a == 0 {
					l.mix.SetPixel(x, y, Color{})
					continue
				}
				l.mix.SetPixel(x, y, Color{r / a, g / a, bl / a, a})
			}
		}
	})
	return true
}

// renderLayer places the mix and runs the shader passes, ping-ponging
// between two surfaces.
func (b *SoftwareBackend) renderLayer(l *softLayer, lp *LayerPlan, w, h int) {
	cur := l.surface
	if cur == nil || cur.Width != w || cur.Height != h {
		b.pool.Release(cur)
		cur = b.pool.Acquire(w, h)
	} else {
		cur.Clear()
	}
	place(cur, l.mix, lp.Transform, lp.Tiling)

	var other *Pixmap
	for _, p := range lp.Passes {
		if p.Shader == nil {
			continue
		}
		if other == nil {
			other = b.pool.Acquire(w, h)
		}
		p.Shader.ProcessPixels(cur, other, p.Values)
		cur, other = other, cur
	}
	b.pool.Release(other)
	l.surface = cur
}

// place draws mix onto the cleared dst with transform t, repeated over the
// tiling grid.
func place(dst, mix *Pixmap, t Transform2D, tiling Tiling) {
	tx, ty := max(tiling.X, 1), max(tiling.Y, 1)
	if tx == 1 && ty == 1 && t.IsIdentity() {
		dst.CopyFrom(mix)
		return
	}
	w, h := float64(dst.Width), float64(dst.Height)
	layer := t.Matrix(w, h, w, h)
	for j := 0; j < ty; j++ {
		for i := 0; i < tx; i++ {
			tile := multiplyAff3(
				translateAff3(float64(i)*w/float64(tx), float64(j)*h/float64(ty)),
				scaleAff3(1/float64(tx), 1/float64(ty)))
			draw.BiLinear.Transform(dst, multiplyAff3(layer, tile), mix, mix.Bounds(), draw.Over, nil)
		}
	}
}

func (b *SoftwareBackend) blendOnto(dst, src *Pixmap, mode BlendMode, opacity float64) {
	if opacity <= 0 {
		return
	}
	b.rows(dst.Height, func(y0, y1 int) {
		for y := y0; y < y1; y++ {
			for x := 0; x < dst.Width; x++ {
				s := src.Pixel(x, y)
				if s.A == 0 {
					continue
				}
				dst.SetPixel(x, y, BlendColor(mode, dst.Pixel(x, y), s, opacity))
			}
		}
	})
}

// RenderScreens renders the screens of plan in parallel.
func (b *SoftwareBackend) RenderScreens(plan *FramePlan) []ScreenResult {
	results := make([]ScreenResult, len(plan.Screens))
	var g errgroup.Group
	g.SetLimit(max(b.workers, 1))
	for i, sc := range plan.Screens {
		g.Go(func() error {
			results[i] = b.renderScreen(sc, plan.Time)
			return nil
		})
	}
	_ = g.Wait()
	return results
}

func (b *SoftwareBackend) renderScreen(sc *Screen, ts time.Duration) ScreenResult {
	if err := b.checkSize(sc.Width, sc.Height); err != nil {
		return ScreenResult{Screen: sc.ID, Err: fmt.Errorf("screen %d: %w", sc.ID, err)}
	}
	out := b.pool.Acquire(sc.Width, sc.Height)
	out.Fill(ColorBlack)
	for _, s := range sc.Slices {
		if s.Enabled {
			b.drawSlice(out, s)
		}
	}
	sc.Color.ApplyPixmap(out)
	return ScreenResult{Screen: sc.ID, Capture: &softCapture{pix: out, pool: &b.pool, ts: ts}}
}

// sliceInput resolves the texture a slice samples; nil renders nothing.
func (b *SoftwareBackend) sliceInput(in InputSource) *Pixmap {
	if in.Kind == InputLayer {
		return b.LayerSurface(in.Layer)
	}
	return b.canvas
}

func (b *SoftwareBackend) drawSlice(out *Pixmap, s *Slice) {
	src := b.sliceInput(s.Input)
	ir := s.InputRect
	crop := image.Rect(
		int(math.Floor(ir.X)), int(math.Floor(ir.Y)),
		int(math.Ceil(ir.X+ir.Width)), int(math.Ceil(ir.Y+ir.Height)))
	warp := s.Warp()
	cov := s.Coverage(int(math.Ceil(s.Output.Rect.Width)), int(math.Ceil(s.Output.Rect.Height)))
	correct := !s.Color.IsIdentity()

	ob := s.Output.Bounds()
	x0 := clampInt(int(math.Floor(ob.X)), 0, out.Width)
	x1 := clampInt(int(math.Ceil(ob.X+ob.Width)), 0, out.Width)
	y0 := clampInt(int(math.Floor(ob.Y)), 0, out.Height)
	y1 := clampInt(int(math.Ceil(ob.Y+ob.Height)), 0, out.Height)

	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			u, v, ok := s.Output.Local(float64(x)+0.5, float64(y)+0.5)
			if !ok {
				continue
			}
			if s.BlackBackground {
				out.SetPixel(x, y, ColorBlack)
			}
			a := 1.0
			if cov != nil {
				if a = cov.At(u, v); a == 0 {
					continue
				}
			}
			var c Color
			if src != nil {
				su, sv := u, v
				if warp != nil {
					p := warp(u, v)
					su, sv = p.X, p.Y
				}
				if su >= 0 && su <= 1 && sv >= 0 && sv <= 1 {
					c = src.SampleBilinear(ir.X+su*ir.Width, ir.Y+sv*ir.Height, crop)
				}
			}
			if correct {
				c = s.Color.Apply(c)
			}
			c = s.EdgeBlend.Apply(c, u, v)
			c.A *= a
			if c.A == 0 {
				continue
			}
			dst := out.Pixel(x, y)
			if s.IsKey {
				k := 1 - c.A + c.A*luma(c.R, c.G, c.B)
				dst.R, dst.G, dst.B = dst.R*k, dst.G*k, dst.B*k
				out.SetPixel(x, y, dst)
				continue
			}
			out.SetPixel(x, y, BlendColor(BlendNormal, dst, c, 1))
		}
	}
}

type softCapture struct {
	pix  *Pixmap
	pool *pixmapPool
	ts   time.Duration
}

// Read converts the screen to bytes and recycles its pixmap.
func (c *softCapture) Read() (*Frame, error) {
	if c.pix == nil {
		return nil, fmt.Errorf("%w: capture already read", ErrResourceUnavailable)
	}
	f := FrameFromPixmap(c.pix, c.ts)
	c.pool.Release(c.pix)
	c.pix = nil
	return f, nil
}
