package prism

import (
	"fmt"
	"image"
	"sync"
	"time"
)

// PixelFormat tags the byte order of a Frame.
type PixelFormat uint8

const (
	FormatRGBA PixelFormat = iota
	FormatBGRA
)

func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA:
		return "rgba"
	case FormatBGRA:
		return "bgra"
	}
	return fmt.Sprintf("PixelFormat(%d)", uint8(f))
}

// Frame is a decoded picture handed to the core by a media source, or handed
// out by the core to a FrameSink. Pixels are 8-bit, straight alpha.
type Frame struct {
	Width  int
	Height int
	Format PixelFormat
	// Stride is the byte distance between rows. Zero means Width*4.
	Stride int
	Pix    []byte
	// Timestamp is monotonic per source.
	Timestamp time.Duration
}

func (f *Frame) stride() int {
	if f.Stride > 0 {
		return f.Stride
	}
	return f.Width * 4
}

// Validate checks that the frame's buffer covers its dimensions.
func (f *Frame) Validate() error {
	if f.Width <= 0 || f.Height <= 0 {
		return fmt.Errorf("%w: frame %dx%d", ErrZeroArea, f.Width, f.Height)
	}
	if f.Format != FormatRGBA && f.Format != FormatBGRA {
		return fmt.Errorf("%w: %v", ErrUnsupportedFormat, f.Format)
	}
	s := f.stride()
	if s < f.Width*4 || len(f.Pix) < s*(f.Height-1)+f.Width*4 {
		return fmt.Errorf("%w: frame buffer too small for %dx%d stride %d",
			ErrInvalidConfig, f.Width, f.Height, s)
	}
	return nil
}

// ToPixmap converts f into a float pixmap.
func (f *Frame) ToPixmap() (*Pixmap, error) {
	if err := f.Validate(); err != nil {
		return nil, err
	}
	p := NewPixmap(f.Width, f.Height)
	f.decodeInto(p)
	return p, nil
}

func (f *Frame) decodeInto(p *Pixmap) {
	s := f.stride()
	ri, bi := 0, 2
	if f.Format == FormatBGRA {
		ri, bi = 2, 0
	}
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*s : y*s+f.Width*4]
		out := p.Pix[y*f.Width*4 : (y+1)*f.Width*4]
		for x := 0; x < f.Width; x++ {
			px := row[x*4 : x*4+4 : x*4+4]
			o := out[x*4 : x*4+4 : x*4+4]
			o[0] = float32(px[ri]) / 255
			o[1] = float32(px[1]) / 255
			o[2] = float32(px[bi]) / 255
			o[3] = float32(px[3]) / 255
		}
	}
}

// FrameFromPixmap converts a pixmap to an RGBA frame, clamping channels.
func FrameFromPixmap(p *Pixmap, ts time.Duration) *Frame {
	f := &Frame{Width: p.Width, Height: p.Height, Format: FormatRGBA, Pix: make([]byte, p.Width*p.Height*4), Timestamp: ts}
	for i, v := range p.Pix {
		f.Pix[i] = to8(float64(v))
	}
	return f
}

// FrameFromImage converts any image to an RGBA frame.
func FrameFromImage(img image.Image, ts time.Duration) *Frame {
	b := img.Bounds()
	f := &Frame{Width: b.Dx(), Height: b.Dy(), Format: FormatRGBA, Pix: make([]byte, b.Dx()*b.Dy()*4), Timestamp: ts}
	i := 0
	for y := b.Min.Y; y < b.Max.Y; y++ {
		for x := b.Min.X; x < b.Max.X; x++ {
			r, g, bl, a := img.At(x, y).RGBA()
			if a > 0 {
				r = r * 0xffff / a
				g = g * 0xffff / a
				bl = bl * 0xffff / a
			}
			f.Pix[i], f.Pix[i+1], f.Pix[i+2], f.Pix[i+3] = uint8(r>>8), uint8(g>>8), uint8(bl>>8), uint8(a>>8)
			i += 4
		}
	}
	return f
}

// ToNRGBA returns the frame as an image.NRGBA.
func (f *Frame) ToNRGBA() *image.NRGBA {
	img := image.NewNRGBA(image.Rect(0, 0, f.Width, f.Height))
	s := f.stride()
	for y := 0; y < f.Height; y++ {
		row := f.Pix[y*s : y*s+f.Width*4]
		dst := img.Pix[y*img.Stride : y*img.Stride+f.Width*4]
		copy(dst, row)
		if f.Format == FormatBGRA {
			for x := 0; x < len(dst); x += 4 {
				dst[x], dst[x+2] = dst[x+2], dst[x]
			}
		}
	}
	return img
}

func to8(v float64) uint8 {
	return uint8(clamp01(v)*255 + 0.5)
}

// Mailbox is a single-slot, overwrite-on-full hand-off between a frame source
// goroutine and the render goroutine. Put never blocks; Take returns the most
// recent frame at most once.
type Mailbox struct {
	mu      sync.Mutex
	frame   *Frame
	dropped uint64
	closed  bool
}

// NewMailbox returns an empty mailbox.
func NewMailbox() *Mailbox { return &Mailbox{} }

// Put stores f, replacing any frame not yet taken. Puts after Close are
// discarded. Reports whether the frame was accepted.
func (m *Mailbox) Put(f *Frame) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return false
	}
	if m.frame != nil {
		m.dropped++
	}
	m.frame = f
	return true
}

// Take removes and returns the pending frame, or nil.
func (m *Mailbox) Take() *Frame {
	m.mu.Lock()
	f := m.frame
	m.frame = nil
	m.mu.Unlock()
	return f
}

// Pending reports whether a frame is waiting.
func (m *Mailbox) Pending() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.frame != nil
}

// Dropped returns the number of frames overwritten before being taken.
func (m *Mailbox) Dropped() uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.dropped
}

// Close rejects further puts and drops any pending frame.
func (m *Mailbox) Close() {
	m.mu.Lock()
	m.closed = true
	m.frame = nil
	m.mu.Unlock()
}

// Closed reports whether Close has been called.
func (m *Mailbox) Closed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}
