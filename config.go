package prism

import (
	"encoding/json"
	"fmt"
	"os"
)

// Config holds engine-wide settings. Zero values are replaced by the
// defaults from DefaultConfig when passed to NewEngine.
type Config struct {
	// Width and Height are the Environment canvas resolution in pixels.
	Width  int `json:"width"`
	Height int `json:"height"`

	// TargetFPS is the tick rate of Engine.Run.
	TargetFPS int `json:"target_fps"`

	// MaxInFlight bounds the passes whose output capture has not completed.
	// The render goroutine waits once the bound is reached.
	MaxInFlight int `json:"max_in_flight"`

	// MaxUploadsPerTick bounds frame uploads per tick. Slots not serviced are
	// deferred to the next tick.
	MaxUploadsPerTick int `json:"max_uploads_per_tick"`

	// MaxSurfaceSize is the largest width or height a backend will allocate.
	MaxSurfaceSize int `json:"max_surface_size"`

	// Tempo is the initial clock tempo in beats per minute.
	Tempo float64 `json:"tempo"`

	// AudioSmoothing is the time constant, in seconds, of the audio band
	// smoother.
	AudioSmoothing float64 `json:"audio_smoothing"`

	// MeshSubdivision is the number of quads per mesh cell edge used by
	// triangle-based warp backends.
	MeshSubdivision int `json:"mesh_subdivision"`

	// QueueCapacity bounds pending commands.
	QueueCapacity int `json:"queue_capacity"`
}

// DefaultConfig returns the engine defaults: a 1920x1080 canvas at 60 FPS.
func DefaultConfig() Config {
	return Config{
		Width:             1920,
		Height:            1080,
		TargetFPS:         60,
		MaxInFlight:       2,
		MaxUploadsPerTick: 4,
		MaxSurfaceSize:    8192,
		Tempo:             120,
		AudioSmoothing:    0.15,
		MeshSubdivision:   8,
		QueueCapacity:     1024,
	}
}

// withDefaults fills zero fields from DefaultConfig.
func (c Config) withDefaults() Config {
	d := DefaultConfig()
	if c.Width == 0 {
		c.Width = d.Width
	}
	if c.Height == 0 {
		c.Height = d.Height
	}
	if c.TargetFPS == 0 {
		c.TargetFPS = d.TargetFPS
	}
	if c.MaxInFlight == 0 {
		c.MaxInFlight = d.MaxInFlight
	}
	if c.MaxUploadsPerTick == 0 {
		c.MaxUploadsPerTick = d.MaxUploadsPerTick
	}
	if c.MaxSurfaceSize == 0 {
		c.MaxSurfaceSize = d.MaxSurfaceSize
	}
	if c.Tempo == 0 {
		c.Tempo = d.Tempo
	}
	if c.AudioSmoothing == 0 {
		c.AudioSmoothing = d.AudioSmoothing
	}
	if c.MeshSubdivision == 0 {
		c.MeshSubdivision = d.MeshSubdivision
	}
	if c.QueueCapacity == 0 {
		c.QueueCapacity = d.QueueCapacity
	}
	return c
}

// Validate reports the first out-of-range field.
func (c Config) Validate() error {
	switch {
	case c.Width <= 0 || c.Height <= 0:
		return fmt.Errorf("%w: canvas %dx%d", ErrInvalidConfig, c.Width, c.Height)
	case c.TargetFPS <= 0:
		return fmt.Errorf("%w: target fps %d", ErrInvalidConfig, c.TargetFPS)
	case c.MaxInFlight < 1:
		return fmt.Errorf("%w: max in flight %d", ErrInvalidConfig, c.MaxInFlight)
	case c.MaxUploadsPerTick < 1:
		return fmt.Errorf("%w: max uploads per tick %d", ErrInvalidConfig, c.MaxUploadsPerTick)
	case c.MaxSurfaceSize < 1:
		return fmt.Errorf("%w: max surface size %d", ErrInvalidConfig, c.MaxSurfaceSize)
	case c.Width > c.MaxSurfaceSize || c.Height > c.MaxSurfaceSize:
		return fmt.Errorf("%w: canvas %dx%d exceeds max surface size %d",
			ErrResourceUnavailable, c.Width, c.Height, c.MaxSurfaceSize)
	case c.Tempo <= 0:
		return fmt.Errorf("%w: tempo %v", ErrInvalidConfig, c.Tempo)
	case c.AudioSmoothing < 0:
		return fmt.Errorf("%w: audio smoothing %v", ErrInvalidConfig, c.AudioSmoothing)
	case c.MeshSubdivision < 1:
		return fmt.Errorf("%w: mesh subdivision %d", ErrInvalidConfig, c.MeshSubdivision)
	case c.QueueCapacity < 1:
		return fmt.Errorf("%w: queue capacity %d", ErrInvalidConfig, c.QueueCapacity)
	}
	return nil
}

// LoadConfig reads a JSON config file. Missing fields take their defaults.
func LoadConfig(path string) (Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return Config{}, fmt.Errorf("read config %s: %w", path, err)
	}
	return ParseConfig(data)
}

// ParseConfig decodes a JSON config. Missing fields take their defaults.
func ParseConfig(data []byte) (Config, error) {
	var c Config
	if err := json.Unmarshal(data, &c); err != nil {
		return Config{}, fmt.Errorf("parse config: %w", err)
	}
	c = c.withDefaults()
	if err := c.Validate(); err != nil {
		return Config{}, err
	}
	return c, nil
}
