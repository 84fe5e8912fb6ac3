package prism

import (
	"context"
	"fmt"
	"image"
	_ "image/gif" // still image formats
	_ "image/jpeg"
	_ "image/png"
	"math"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	_ "golang.org/x/image/bmp"
	_ "golang.org/x/image/tiff"
	_ "golang.org/x/image/webp"
)

// MediaProvider feeds frames of a clip source into a mailbox. Open must not
// block: long-running work belongs on a goroutine that stops when ctx is
// canceled. The engine closes the mailbox when the slot is released.
type MediaProvider interface {
	Open(ctx context.Context, src ClipSource, mb *Mailbox) error
}

// ProviderFunc adapts a function to MediaProvider.
type ProviderFunc func(ctx context.Context, src ClipSource, mb *Mailbox) error

// Open calls f.
func (f ProviderFunc) Open(ctx context.Context, src ClipSource, mb *Mailbox) error {
	return f(ctx, src, mb)
}

// ProviderMux routes sources to providers by kind.
type ProviderMux struct {
	mu        sync.RWMutex
	providers map[SourceKind]MediaProvider
}

// NewProviderMux returns a mux serving generator and still sources at the
// given frame size. Media and stream kinds need registered providers.
func NewProviderMux(w, h int) *ProviderMux {
	m := &ProviderMux{providers: make(map[SourceKind]MediaProvider)}
	m.Handle(SourceGenerator, &GeneratorProvider{Width: w, Height: h})
	m.Handle(SourceStill, StillProvider{})
	return m
}

// Handle registers p for kind, replacing any previous provider.
func (m *ProviderMux) Handle(kind SourceKind, p MediaProvider) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.providers[kind] = p
}

// Open dispatches to the provider registered for src.Kind.
func (m *ProviderMux) Open(ctx context.Context, src ClipSource, mb *Mailbox) error {
	m.mu.RLock()
	p, ok := m.providers[src.Kind]
	m.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: no provider for %q sources", ErrNotFound, src.Kind)
	}
	return p.Open(ctx, src, mb)
}

// Generator patterns.
const (
	PatternSolid    = "solid"
	PatternBars     = "bars"
	PatternGradient = "gradient"
	PatternChecker  = "checker"
)

// GeneratorProvider renders static test patterns.
type GeneratorProvider struct {
	Width, Height int
}

// Open renders the pattern once and delivers it.
func (g *GeneratorProvider) Open(ctx context.Context, src ClipSource, mb *Mailbox) error {
	gen, err := patternFunc(src)
	if err != nil {
		return err
	}
	w, h := g.Width, g.Height
	go func() {
		p := NewPixmap(w, h)
		for y := 0; y < h; y++ {
			for x := 0; x < w; x++ {
				p.SetPixel(x, y, gen((float64(x)+0.5)/float64(w), (float64(y)+0.5)/float64(h)))
			}
		}
		if ctx.Err() == nil {
			mb.Put(FrameFromPixmap(p, 0))
		}
	}()
	return nil
}

// barColors are the 75% SMPTE color bars.
var barColors = [...]Color{
	{0.75, 0.75, 0.75, 1}, {0.75, 0.75, 0, 1}, {0, 0.75, 0.75, 1}, {0, 0.75, 0, 1},
	{0.75, 0, 0.75, 1}, {0.75, 0, 0, 1}, {0, 0, 0.75, 1},
}

func patternFunc(src ClipSource) (func(u, v float64) Color, error) {
	c := src.Color
	if c == (Color{}) {
		c = ColorWhite
	}
	switch src.Pattern {
	case PatternSolid, "":
		return func(_, _ float64) Color { return c }, nil
	case PatternBars:
		return func(u, _ float64) Color {
			return barColors[min(int(u*float64(len(barColors))), len(barColors)-1)]
		}, nil
	case PatternGradient:
		return func(u, _ float64) Color { return Color{c.R * u, c.G * u, c.B * u, c.A} }, nil
	case PatternChecker:
		return func(u, v float64) Color {
			if (int(math.Floor(u*8))+int(math.Floor(v*8)))%2 == 0 {
				return c
			}
			return ColorBlack
		}, nil
	}
	return nil, fmt.Errorf("%w: generator pattern %q", ErrInvalidConfig, src.Pattern)
}

// StillProvider decodes an image file once. PNG, JPEG, GIF, BMP, TIFF and
// WebP are supported.
type StillProvider struct{}

// Open decodes src.URI on a goroutine and delivers the image.
func (StillProvider) Open(ctx context.Context, src ClipSource, mb *Mailbox) error {
	if src.URI == "" {
		return fmt.Errorf("%w: still source without uri", ErrInvalidConfig)
	}
	go func() {
		f, err := decodeStill(src.URI)
		if err != nil {
			logFn("StillProvider.Open").WithFields(logrus.Fields{
				"uri":   src.URI,
				"error": err,
			}).Warn("still image unavailable")
			return
		}
		if ctx.Err() == nil {
			mb.Put(f)
		}
	}()
	return nil
}

func decodeStill(path string) (*Frame, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer file.Close()
	img, format, err := image.Decode(file)
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrUnsupportedFormat, path, err)
	}
	logFn("decodeStill").WithFields(logrus.Fields{
		"path":   path,
		"format": format,
		"size":   img.Bounds().Size(),
	}).Debug("decoded still")
	return FrameFromImage(img, 0), nil
}
