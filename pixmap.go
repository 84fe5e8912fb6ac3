package prism

import (
	"image"
	"image/color"
	"math"
	"sync"
)

// Pixmap is a CPU surface of straight-alpha float32 RGBA pixels. It is the
// working surface of the software backend and implements draw.Image so that
// golang.org/x/image/draw can resample into it.
//
// Channel values are not clamped; additive compositing may exceed 1 until a
// frame is produced for egress.
type Pixmap struct {
	Width  int
	Height int
	// Pix holds 4 float32 per pixel, row major, no padding.
	Pix []float32
}

// NewPixmap allocates a transparent pixmap.
func NewPixmap(w, h int) *Pixmap {
	if w < 0 {
		w = 0
	}
	if h < 0 {
		h = 0
	}
	return &Pixmap{Width: w, Height: h, Pix: make([]float32, w*h*4)}
}

func (p *Pixmap) offset(x, y int) int { return (y*p.Width + x) * 4 }

// Pixel returns the straight-alpha color at (x, y). Out of range reads are
// transparent.
func (p *Pixmap) Pixel(x, y int) Color {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return Color{}
	}
	i := p.offset(x, y)
	s := p.Pix[i : i+4 : i+4]
	return Color{float64(s[0]), float64(s[1]), float64(s[2]), float64(s[3])}
}

// SetPixel writes c at (x, y). Out of range writes are ignored.
func (p *Pixmap) SetPixel(x, y int, c Color) {
	if x < 0 || y < 0 || x >= p.Width || y >= p.Height {
		return
	}
	i := p.offset(x, y)
	s := p.Pix[i : i+4 : i+4]
	s[0], s[1], s[2], s[3] = float32(c.R), float32(c.G), float32(c.B), float32(c.A)
}

// Fill sets every pixel to c.
func (p *Pixmap) Fill(c Color) {
	r, g, b, a := float32(c.R), float32(c.G), float32(c.B), float32(c.A)
	for i := 0; i < len(p.Pix); i += 4 {
		p.Pix[i], p.Pix[i+1], p.Pix[i+2], p.Pix[i+3] = r, g, b, a
	}
}

// Clear makes every pixel transparent.
func (p *Pixmap) Clear() { clear(p.Pix) }

// CopyFrom copies src into p. Both must have the same size.
func (p *Pixmap) CopyFrom(src *Pixmap) {
	copy(p.Pix, src.Pix)
}

// Clone returns a deep copy of p.
func (p *Pixmap) Clone() *Pixmap {
	c := &Pixmap{Width: p.Width, Height: p.Height, Pix: make([]float32, len(p.Pix))}
	copy(c.Pix, p.Pix)
	return c
}

// Equal reports whether p and o have the same size and identical pixels.
func (p *Pixmap) Equal(o *Pixmap) bool {
	if p.Width != o.Width || p.Height != o.Height {
		return false
	}
	for i := range p.Pix {
		if p.Pix[i] != o.Pix[i] {
			return false
		}
	}
	return true
}

// --- image.Image / draw.Image ---

// ColorModel implements image.Image.
func (p *Pixmap) ColorModel() color.Model { return color.NRGBA64Model }

// Bounds implements image.Image.
func (p *Pixmap) Bounds() image.Rectangle { return image.Rect(0, 0, p.Width, p.Height) }

// At implements image.Image.
func (p *Pixmap) At(x, y int) color.Color {
	c := p.Pixel(x, y)
	return color.NRGBA64{to16(c.R), to16(c.G), to16(c.B), to16(c.A)}
}

// RGBA64At implements image.RGBA64Image.
func (p *Pixmap) RGBA64At(x, y int) color.RGBA64 {
	r, g, b, a := p.At(x, y).RGBA()
	return color.RGBA64{uint16(r), uint16(g), uint16(b), uint16(a)}
}

// Set implements draw.Image.
func (p *Pixmap) Set(x, y int, c color.Color) {
	r, g, b, a := c.RGBA()
	p.setPremul16(x, y, r, g, b, a)
}

// SetRGBA64 implements draw.RGBA64Image.
func (p *Pixmap) SetRGBA64(x, y int, c color.RGBA64) {
	p.setPremul16(x, y, uint32(c.R), uint32(c.G), uint32(c.B), uint32(c.A))
}

func (p *Pixmap) setPremul16(x, y int, r, g, b, a uint32) {
	if a == 0 {
		p.SetPixel(x, y, Color{})
		return
	}
	fa := float64(a)
	p.SetPixel(x, y, Color{
		R: float64(r) / fa,
		G: float64(g) / fa,
		B: float64(b) / fa,
		A: fa / 0xffff,
	})
}

func to16(v float64) uint16 {
	return uint16(math.Round(clamp01(v) * 0xffff))
}

// --- sampling ---

// sampleSnap is the distance below which a sample coordinate is treated as
// landing exactly on a texel center.
const sampleSnap = 1e-6

// SampleBilinear samples p at pixel-space position (x, y), where texel
// centers lie at integer+0.5, restricted to the crop rect r. Positions
// outside r are transparent; taps inside r are clamped to its edges.
// Interpolation runs on premultiplied values. A position that lands on a
// texel center returns that texel unchanged.
func (p *Pixmap) SampleBilinear(x, y float64, r image.Rectangle) Color {
	r = r.Intersect(p.Bounds())
	if r.Empty() {
		return Color{}
	}
	if x < float64(r.Min.X) || y < float64(r.Min.Y) || x > float64(r.Max.X) || y > float64(r.Max.Y) {
		return Color{}
	}
	fx := x - 0.5
	fy := y - 0.5
	if rx := math.Round(fx); math.Abs(fx-rx) < sampleSnap {
		fx = rx
	}
	if ry := math.Round(fy); math.Abs(fy-ry) < sampleSnap {
		fy = ry
	}
	x0 := int(math.Floor(fx))
	y0 := int(math.Floor(fy))
	tx := fx - float64(x0)
	ty := fy - float64(y0)
	if tx == 0 && ty == 0 {
		return p.Pixel(clampInt(x0, r.Min.X, r.Max.X-1), clampInt(y0, r.Min.Y, r.Max.Y-1))
	}
	x1 := clampInt(x0+1, r.Min.X, r.Max.X-1)
	y1 := clampInt(y0+1, r.Min.Y, r.Max.Y-1)
	x0 = clampInt(x0, r.Min.X, r.Max.X-1)
	y0 = clampInt(y0, r.Min.Y, r.Max.Y-1)

	var acc [4]float64
	tap := func(px, py int, w float64) {
		if w == 0 {
			return
		}
		c := p.Pixel(px, py)
		acc[0] += c.R * c.A * w
		acc[1] += c.G * c.A * w
		acc[2] += c.B * c.A * w
		acc[3] += c.A * w
	}
	tap(x0, y0, (1-tx)*(1-ty))
	tap(x1, y0, tx*(1-ty))
	tap(x0, y1, (1-tx)*ty)
	tap(x1, y1, tx*ty)
	if acc[3] == 0 {
		return Color{}
	}
	return Color{acc[0] / acc[3], acc[1] / acc[3], acc[2] / acc[3], acc[3]}
}

// SampleNearest returns the texel containing (x, y) inside r, or transparent.
func (p *Pixmap) SampleNearest(x, y float64, r image.Rectangle) Color {
	r = r.Intersect(p.Bounds())
	px := int(math.Floor(x))
	py := int(math.Floor(y))
	if !image.Pt(px, py).In(r) {
		return Color{}
	}
	return p.Pixel(px, py)
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// --- pool ---

// pixmapPool recycles pixmaps keyed by exact size. Software surfaces are not
// rounded up: every pass reads and writes whole surfaces.
type pixmapPool struct {
	mu      sync.Mutex
	buckets map[uint64][]*Pixmap
}

func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared pixmap of exactly (w, h).
func (p *pixmapPool) Acquire(w, h int) *Pixmap {
	key := poolKey(w, h)
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			pm := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			pm.Clear()
			return pm
		}
	}
	return NewPixmap(w, h)
}

// Release returns a pixmap for reuse.
func (p *pixmapPool) Release(pm *Pixmap) {
	if pm == nil {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*Pixmap)
	}
	key := poolKey(pm.Width, pm.Height)
	p.buckets[key] = append(p.buckets[key], pm)
}
