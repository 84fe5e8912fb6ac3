package prism

import (
	"encoding/json"
	"fmt"
)

// SnapshotVersion is the document version written by Model.Snapshot.
const SnapshotVersion = 1

// Model is the complete serializable state: the Environment with its layers
// and the OutputManager with its screens. It holds no runtime resources.
type Model struct {
	Environment *Environment   `json:"environment"`
	Outputs     *OutputManager `json:"outputs"`
	// NextID is the last id issued. Ids of every kind share the counter and
	// are never reused.
	NextID uint32 `json:"next_id"`
}

// NewModel returns an empty model with a w x h canvas.
func NewModel(w, h int) *Model {
	return &Model{Environment: NewEnvironment(w, h), Outputs: &OutputManager{}}
}

func (m *Model) newID() uint32 {
	m.NextID++
	return m.NextID
}

func (m *Model) newLayerID() LayerID   { return LayerID(m.newID()) }
func (m *Model) newEffectID() EffectID { return EffectID(m.newID()) }
func (m *Model) newScreenID() ScreenID { return ScreenID(m.newID()) }
func (m *Model) newSliceID() SliceID   { return SliceID(m.newID()) }

// Layer returns the layer with id.
func (m *Model) Layer(id LayerID) (*Layer, error) {
	l, _ := m.Environment.Layer(id)
	if l == nil {
		return nil, fmt.Errorf("%w: layer %d", ErrNotFound, id)
	}
	return l, nil
}

// Effect returns the effect instance id on layer lid.
func (m *Model) Effect(lid LayerID, id EffectID) (*Layer, *EffectInstance, error) {
	l, err := m.Layer(lid)
	if err != nil {
		return nil, nil, err
	}
	inst, ok := l.Effects.Find(id)
	if !ok {
		return nil, nil, fmt.Errorf("%w: effect %d on layer %d", ErrNotFound, id, lid)
	}
	return l, inst, nil
}

// Validate checks the whole model.
func (m *Model) Validate() error {
	if m.Environment == nil || m.Environment.Width <= 0 || m.Environment.Height <= 0 {
		return fmt.Errorf("%w: missing or empty environment", ErrInvalidConfig)
	}
	if m.Outputs == nil {
		return fmt.Errorf("%w: missing outputs", ErrInvalidConfig)
	}
	seen := make(map[uint32]bool)
	claim := func(id uint32, what string) error {
		if id == 0 || id > m.NextID || seen[id] {
			return fmt.Errorf("%w: %s id %d", ErrInvalidConfig, what, id)
		}
		seen[id] = true
		return nil
	}
	for _, l := range m.Environment.Layers {
		if err := claim(uint32(l.ID), "layer"); err != nil {
			return err
		}
		props := LayerProps{Opacity: &l.Opacity, Blend: &l.Blend, Tiling: &l.Tiling, Transform: &l.Transform}
		if err := props.Validate(); err != nil {
			return fmt.Errorf("layer %d: %w", l.ID, err)
		}
		if l.Grid == nil {
			return fmt.Errorf("%w: layer %d has no grid", ErrInvalidConfig, l.ID)
		}
		for _, e := range l.Effects.Instances {
			if err := claim(uint32(e.ID), "effect"); err != nil {
				return err
			}
		}
	}
	for _, sc := range m.Outputs.Screens {
		if err := claim(uint32(sc.ID), "screen"); err != nil {
			return err
		}
		if err := sc.Validate(); err != nil {
			return err
		}
		for _, s := range sc.Slices {
			if err := claim(uint32(s.ID), "slice"); err != nil {
				return err
			}
		}
	}
	return nil
}

// Clone returns a deep copy.
func (m *Model) Clone() *Model {
	return &Model{Environment: m.Environment.Clone(), Outputs: m.Outputs.Clone(), NextID: m.NextID}
}

type snapshotDoc struct {
	Version int    `json:"version"`
	Model   *Model `json:"model"`
}

// Snapshot encodes the model as a JSON document.
func (m *Model) Snapshot() ([]byte, error) {
	data, err := json.MarshalIndent(snapshotDoc{Version: SnapshotVersion, Model: m}, "", "  ")
	if err != nil {
		return nil, fmt.Errorf("snapshot: %w", err)
	}
	return data, nil
}

// Restore decodes and validates a document written by Snapshot.
func Restore(data []byte) (*Model, error) {
	var doc snapshotDoc
	if err := json.Unmarshal(data, &doc); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	if doc.Version != SnapshotVersion {
		return nil, fmt.Errorf("%w: snapshot version %d", ErrInvalidConfig, doc.Version)
	}
	if doc.Model == nil {
		return nil, fmt.Errorf("%w: snapshot has no model", ErrInvalidConfig)
	}
	if doc.Model.Outputs == nil {
		doc.Model.Outputs = &OutputManager{}
	}
	if err := doc.Model.Validate(); err != nil {
		return nil, fmt.Errorf("restore: %w", err)
	}
	return doc.Model, nil
}
