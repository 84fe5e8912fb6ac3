package prism

import (
	"fmt"
	"image/png"
	"io"
	"os"
	"path/filepath"
	"strings"
	"time"
)

// Screenshot writes the last frame delivered for screen id as a PNG into dir
// with a timestamped, labeled file name, and returns the path. Output delay
// applies: the file shows what the screen is currently emitting.
func (e *Engine) Screenshot(id ScreenID, dir, label string) (string, error) {
	f := e.LastFrame(id)
	if f == nil {
		return "", fmt.Errorf("%w: no frame delivered for screen %d", ErrNotFound, id)
	}
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("screenshot: mkdir %s: %w", dir, err)
	}
	stamp := time.Now().Format("20060102_150405")
	path := filepath.Join(dir, fmt.Sprintf("%s_screen%d_%s.png", stamp, id, sanitizeLabel(label)))
	if err := writePNG(path, f); err != nil {
		return "", err
	}
	logFn("Engine.Screenshot").WithField("path", path).Info("screenshot written")
	return path, nil
}

// EncodePNG writes f as a PNG image.
func EncodePNG(w io.Writer, f *Frame) error {
	if err := f.Validate(); err != nil {
		return err
	}
	return png.Encode(w, f.ToNRGBA())
}

// writePNG encodes a frame to a PNG file at the given path.
func writePNG(path string, f *Frame) error {
	file, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create %s: %w", path, err)
	}
	if err := EncodePNG(file, f); err != nil {
		file.Close()
		return fmt.Errorf("encode %s: %w", path, err)
	}
	return file.Close()
}

// sanitizeLabel replaces characters that are unsafe in file names with
// underscores and falls back to "unlabeled" for empty strings.
func sanitizeLabel(label string) string {
	label = strings.TrimSpace(label)
	if label == "" {
		return "unlabeled"
	}
	var b strings.Builder
	b.Grow(len(label))
	for _, r := range label {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z',
			r >= '0' && r <= '9', r == '-', r == '.':
			b.WriteRune(r)
		default:
			b.WriteByte('_')
		}
	}
	return b.String()
}
