package prism

import (
	"fmt"
	"slices"
)

// Environment is the fixed-resolution canvas. Layers are painted in slice
// order: index 0 is the back.
type Environment struct {
	Width  int      `json:"width"`
	Height int      `json:"height"`
	Layers []*Layer `json:"layers"`
}

// NewEnvironment returns an empty canvas of w x h.
func NewEnvironment(w, h int) *Environment {
	return &Environment{Width: w, Height: h}
}

// Layer returns the layer with id and its paint index.
func (e *Environment) Layer(id LayerID) (*Layer, int) {
	for i, l := range e.Layers {
		if l.ID == id {
			return l, i
		}
	}
	return nil, -1
}

// Insert adds l at index; an index outside the list appends (front-most).
func (e *Environment) Insert(l *Layer, index int) {
	if index < 0 || index > len(e.Layers) {
		index = len(e.Layers)
	}
	e.Layers = slices.Insert(e.Layers, index, l)
}

// Remove deletes the layer with id and returns it.
func (e *Environment) Remove(id LayerID) (*Layer, error) {
	l, i := e.Layer(id)
	if l == nil {
		return nil, fmt.Errorf("%w: layer %d", ErrNotFound, id)
	}
	e.Layers = slices.Delete(e.Layers, i, i+1)
	return l, nil
}

// Move places the layer with id at index, clamped to the list.
func (e *Environment) Move(id LayerID, index int) error {
	l, i := e.Layer(id)
	if l == nil {
		return fmt.Errorf("%w: layer %d", ErrNotFound, id)
	}
	e.Layers = slices.Delete(e.Layers, i, i+1)
	e.Layers = slices.Insert(e.Layers, clampInt(index, 0, len(e.Layers)), l)
	return nil
}

// Clone returns a deep copy keeping all ids.
func (e *Environment) Clone() *Environment {
	c := &Environment{Width: e.Width, Height: e.Height, Layers: make([]*Layer, len(e.Layers))}
	for i, l := range e.Layers {
		c.Layers[i] = l.Clone(l.ID, nil)
	}
	return c
}
