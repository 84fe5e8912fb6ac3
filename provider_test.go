package prism

import (
	"context"
	"image"
	"image/color"
	"image/png"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func takeEventually(t *testing.T, mb *Mailbox) *Frame {
	t.Helper()
	require.Eventually(t, mb.Pending, 2*time.Second, 5*time.Millisecond)
	f := mb.Take()
	require.NotNil(t, f)
	return f
}

func TestGeneratorBars(t *testing.T) {
	g := &GeneratorProvider{Width: 14, Height: 2}
	mb := NewMailbox()
	require.NoError(t, g.Open(context.Background(), ClipSource{Kind: SourceGenerator, Pattern: PatternBars}, mb))
	f := takeEventually(t, mb)
	require.Equal(t, 14, f.Width)

	px := func(x int) []byte { return f.Pix[x*4 : x*4+4] }
	assert.Equal(t, []byte{191, 191, 191, 255}, px(0), "grey bar")
	assert.Equal(t, []byte{191, 191, 0, 255}, px(2), "yellow bar")
	assert.Equal(t, []byte{0, 0, 191, 255}, px(13), "blue bar")
}

func TestGeneratorPatterns(t *testing.T) {
	g := &GeneratorProvider{Width: 16, Height: 16}
	red := Color{1, 0, 0, 1}

	mb := NewMailbox()
	require.NoError(t, g.Open(context.Background(), ClipSource{Kind: SourceGenerator, Pattern: PatternChecker, Color: red}, mb))
	f := takeEventually(t, mb)
	assert.Equal(t, byte(255), f.Pix[0], "first square has the color")
	assert.Equal(t, byte(0), f.Pix[2*4], "second square is black")

	mb = NewMailbox()
	require.NoError(t, g.Open(context.Background(), ClipSource{Kind: SourceGenerator}, mb))
	f = takeEventually(t, mb)
	assert.Equal(t, []byte{255, 255, 255, 255}, f.Pix[:4], "solid defaults to white")

	mb = NewMailbox()
	require.NoError(t, g.Open(context.Background(), ClipSource{Kind: SourceGenerator, Pattern: PatternGradient, Color: red}, mb))
	f = takeEventually(t, mb)
	assert.Less(t, f.Pix[0], f.Pix[15*4], "gradient rises left to right")

	err := g.Open(context.Background(), ClipSource{Kind: SourceGenerator, Pattern: "plasma"}, NewMailbox())
	assert.ErrorIs(t, err, ErrInvalidConfig)
}

func TestGeneratorCanceledBeforeDelivery(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	mb := NewMailbox()
	require.NoError(t, (&GeneratorProvider{Width: 4, Height: 4}).Open(ctx, ClipSource{Kind: SourceGenerator}, mb))
	assert.Never(t, mb.Pending, 50*time.Millisecond, 5*time.Millisecond)
}

func writeStillPNG(t *testing.T) string {
	t.Helper()
	img := image.NewNRGBA(image.Rect(0, 0, 3, 2))
	img.Set(0, 0, color.NRGBA{255, 0, 0, 255})
	img.Set(2, 1, color.NRGBA{0, 0, 255, 128})
	path := filepath.Join(t.TempDir(), "still.png")
	file, err := os.Create(path)
	require.NoError(t, err)
	require.NoError(t, png.Encode(file, img))
	require.NoError(t, file.Close())
	return path
}

func TestStillProviderDecodes(t *testing.T) {
	mb := NewMailbox()
	require.NoError(t, StillProvider{}.Open(context.Background(), ClipSource{Kind: SourceStill, URI: writeStillPNG(t)}, mb))
	f := takeEventually(t, mb)
	assert.Equal(t, 3, f.Width)
	assert.Equal(t, 2, f.Height)
	assert.Equal(t, []byte{255, 0, 0, 255}, f.Pix[:4])
	last := f.Pix[5*4 : 6*4]
	assert.InDelta(t, 255, last[2], 1, "straight alpha color survives")
	assert.Equal(t, byte(128), last[3])
}

func TestStillProviderErrors(t *testing.T) {
	err := StillProvider{}.Open(context.Background(), ClipSource{Kind: SourceStill}, NewMailbox())
	assert.ErrorIs(t, err, ErrInvalidConfig)

	// A missing file is reported asynchronously and delivers nothing.
	mb := NewMailbox()
	require.NoError(t, StillProvider{}.Open(context.Background(), ClipSource{Kind: SourceStill, URI: filepath.Join(t.TempDir(), "nope.png")}, mb))
	assert.Never(t, mb.Pending, 50*time.Millisecond, 5*time.Millisecond)

	bad := filepath.Join(t.TempDir(), "bad.png")
	require.NoError(t, os.WriteFile(bad, []byte("not an image"), 0o644))
	_, err = decodeStill(bad)
	assert.ErrorIs(t, err, ErrUnsupportedFormat)
}

func TestProviderMux(t *testing.T) {
	m := NewProviderMux(4, 4)
	mb := NewMailbox()
	require.NoError(t, m.Open(context.Background(), ClipSource{Kind: SourceGenerator}, mb))
	takeEventually(t, mb)

	err := m.Open(context.Background(), ClipSource{Kind: SourceStream, URI: "cam1"}, NewMailbox())
	assert.ErrorIs(t, err, ErrNotFound)

	var got ClipSource
	m.Handle(SourceStream, ProviderFunc(func(_ context.Context, src ClipSource, _ *Mailbox) error {
		got = src
		return nil
	}))
	require.NoError(t, m.Open(context.Background(), ClipSource{Kind: SourceStream, URI: "cam1"}, NewMailbox()))
	assert.Equal(t, "cam1", got.URI)
}
