package gpu

import (
	"image"
	"sync"
	"sync/atomic"

	"github.com/hajimehoshi/ebiten/v2"
)

// --- Render texture pool ---

// renderTexturePool manages reusable offscreen ebiten.Images keyed by exact
// dimensions. Canvas, layer and screen surfaces keep their size from tick to
// tick, so after warmup Acquire/Release are zero-alloc. Captures release
// from the capture goroutine, hence the mutex.
type renderTexturePool struct {
	mu      sync.Mutex
	buckets map[uint64][]*ebiten.Image
}

// poolKey packs width and height into a single uint64.
func poolKey(w, h int) uint64 {
	return uint64(w)<<32 | uint64(h)
}

// Acquire returns a cleared offscreen image of exactly (w, h) pixels.
func (p *renderTexturePool) Acquire(w, h int) *ebiten.Image {
	key := poolKey(w, h)

	p.mu.Lock()
	if p.buckets != nil {
		if stack := p.buckets[key]; len(stack) > 0 {
			img := stack[len(stack)-1]
			p.buckets[key] = stack[:len(stack)-1]
			p.mu.Unlock()
			img.Clear()
			return img
		}
	}
	p.mu.Unlock()

	return ebiten.NewImageWithOptions(
		image.Rect(0, 0, w, h),
		&ebiten.NewImageOptions{Unmanaged: true},
	)
}

// Release returns an image to the pool for reuse. The image is cleared on
// next Acquire, not here (avoids redundant GPU work if released then
// immediately re-acquired).
func (p *renderTexturePool) Release(img *ebiten.Image) {
	if img == nil {
		return
	}
	b := img.Bounds()
	key := poolKey(b.Dx(), b.Dy())

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.buckets == nil {
		p.buckets = make(map[uint64][]*ebiten.Image)
	}
	p.buckets[key] = append(p.buckets[key], img)
}

// Len returns the number of pooled images.
func (p *renderTexturePool) Len() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	n := 0
	for _, s := range p.buckets {
		n += len(s)
	}
	return n
}

// Dispose deallocates every pooled image.
func (p *renderTexturePool) Dispose() {
	p.mu.Lock()
	defer p.mu.Unlock()
	for _, s := range p.buckets {
		for _, img := range s {
			img.Deallocate()
		}
	}
	p.buckets = nil
}

// imageReleaser takes back an image nobody holds any more.
type imageReleaser interface {
	Release(img *ebiten.Image)
}

// sharedImage is a screen image held by the display and by the capture that
// reads it back. The last release hands it back to the pool.
type sharedImage struct {
	img  *ebiten.Image
	refs atomic.Int32
	pool imageReleaser
}

func newSharedImage(img *ebiten.Image, holders int32, pool imageReleaser) *sharedImage {
	s := &sharedImage{img: img, pool: pool}
	s.refs.Store(holders)
	return s
}

// release drops one holder. Safe for concurrent use.
func (s *sharedImage) release() {
	if s.refs.Add(-1) == 0 {
		s.pool.Release(s.img)
	}
}
