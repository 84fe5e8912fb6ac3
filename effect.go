package prism

import (
	"fmt"
	"slices"
	"sort"
	"sync"
)

// Effect is the capability set every effect type provides: a type tag and
// the parameters a new instance starts with.
type Effect interface {
	// Type is the registry tag, e.g. "blur".
	Type() string
	// Params describes the parameters of a new instance.
	Params() []ParamSpec
}

// ShaderEffect processes pixels. The GPU backend runs the Kage program; the
// software backend calls ProcessPixels. Both must produce the same image.
type ShaderEffect interface {
	Effect
	// Shader returns the Kage source. Programs use //kage:unit pixels and
	// receive premultiplied texels.
	Shader() string
	// Uniforms maps evaluated values to shader uniforms for a w x h surface.
	Uniforms(v Values, w, h int) map[string]any
	// ProcessPixels reads src and writes every pixel of dst. Both have the
	// same size and hold straight-alpha colors.
	ProcessPixels(src, dst *Pixmap, v Values)
}

// HostEffect computes on the CPU and produces a placement offset that is
// combined with the layer transform instead of touching pixels.
type HostEffect interface {
	Effect
	Transform(v Values, c *Clock) Transform2D
}

// EffectRegistry maps type tags to implementations. New effect types are
// added by registering them.
type EffectRegistry struct {
	mu      sync.RWMutex
	effects map[string]Effect
}

// NewEffectRegistry returns an empty registry.
func NewEffectRegistry() *EffectRegistry {
	return &EffectRegistry{effects: make(map[string]Effect)}
}

// NewDefaultRegistry returns a registry holding the built-in effects.
func NewDefaultRegistry() *EffectRegistry {
	r := NewEffectRegistry()
	for _, e := range builtinEffects() {
		if err := r.Register(e); err != nil {
			panic("prism: " + err.Error())
		}
	}
	return r
}

// Register adds e. Registering a tag twice is an error.
func (r *EffectRegistry) Register(e Effect) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	tag := e.Type()
	if tag == "" {
		return fmt.Errorf("%w: empty effect type", ErrInvalidConfig)
	}
	if _, dup := r.effects[tag]; dup {
		return fmt.Errorf("%w: effect type %q already registered", ErrInvalidConfig, tag)
	}
	r.effects[tag] = e
	return nil
}

// Lookup returns the implementation for tag.
func (r *EffectRegistry) Lookup(tag string) (Effect, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	e, ok := r.effects[tag]
	return e, ok
}

// Types returns the registered tags, sorted.
func (r *EffectRegistry) Types() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	out := make([]string, 0, len(r.effects))
	for k := range r.effects {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}

// Instantiate creates an instance of tag with default parameters. An unknown
// tag yields an instance without parameters that renders as a pass-through.
func (r *EffectRegistry) Instantiate(id EffectID, tag string) EffectInstance {
	inst := EffectInstance{ID: id, Type: tag}
	if e, ok := r.Lookup(tag); ok {
		for _, spec := range e.Params() {
			inst.Params = append(inst.Params, NewParameter(spec))
		}
	}
	return inst
}

// EffectInstance is one entry of an effect stack.
type EffectInstance struct {
	ID       EffectID `json:"id"`
	Type     string   `json:"type"`
	Params   Params   `json:"params"`
	Bypassed bool     `json:"bypassed"`
	Soloed   bool     `json:"soloed"`
}

// Evaluate returns the effective parameter values for this tick.
func (e *EffectInstance) Evaluate(c *Clock) Values {
	v := make(Values, len(e.Params))
	for i := range e.Params {
		v[e.Params[i].Spec.Name] = e.Params[i].Evaluate(c)
	}
	return v
}

// Clone returns a deep copy with id.
func (e *EffectInstance) Clone(id EffectID) EffectInstance {
	c := *e
	c.ID = id
	c.Params = e.Params.Clone()
	return c
}

// EffectStack is an ordered effect chain; order is execution order.
type EffectStack struct {
	Instances []EffectInstance `json:"instances"`
}

func (s *EffectStack) index(id EffectID) int {
	return slices.IndexFunc(s.Instances, func(e EffectInstance) bool { return e.ID == id })
}

// Find returns the instance with id.
func (s *EffectStack) Find(id EffectID) (*EffectInstance, bool) {
	i := s.index(id)
	if i < 0 {
		return nil, false
	}
	return &s.Instances[i], true
}

// Insert adds inst at index; an index outside the stack appends.
func (s *EffectStack) Insert(inst EffectInstance, index int) {
	if index < 0 || index > len(s.Instances) {
		index = len(s.Instances)
	}
	s.Instances = slices.Insert(s.Instances, index, inst)
}

// Remove deletes the instance with id.
func (s *EffectStack) Remove(id EffectID) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: effect %d", ErrNotFound, id)
	}
	s.Instances = slices.Delete(s.Instances, i, i+1)
	return nil
}

// Move places the instance with id at index, clamped to the stack.
func (s *EffectStack) Move(id EffectID, index int) error {
	i := s.index(id)
	if i < 0 {
		return fmt.Errorf("%w: effect %d", ErrNotFound, id)
	}
	inst := s.Instances[i]
	s.Instances = slices.Delete(s.Instances, i, i+1)
	index = clampInt(index, 0, len(s.Instances))
	s.Instances = slices.Insert(s.Instances, index, inst)
	return nil
}

// Runnable returns the instances that execute this tick, in order. When any
// instance is soloed only soloed instances run; bypassed instances never run.
func (s *EffectStack) Runnable() []*EffectInstance {
	solo := slices.ContainsFunc(s.Instances, func(e EffectInstance) bool { return e.Soloed })
	var out []*EffectInstance
	for i := range s.Instances {
		e := &s.Instances[i]
		if e.Bypassed || solo && !e.Soloed {
			continue
		}
		out = append(out, e)
	}
	return out
}

// Clone returns a deep copy; newID issues the id of each copied instance.
func (s *EffectStack) Clone(newID func() EffectID) EffectStack {
	out := EffectStack{Instances: make([]EffectInstance, len(s.Instances))}
	for i := range s.Instances {
		id := s.Instances[i].ID
		if newID != nil {
			id = newID()
		}
		out.Instances[i] = s.Instances[i].Clone(id)
	}
	return out
}

// EffectPass is one resolved step of a layer's chain for this tick.
type EffectPass struct {
	Instance *EffectInstance
	Shader   ShaderEffect
	Host     HostEffect
	Values   Values
}

// resolveChain evaluates the runnable instances of s against reg. Unknown
// types are skipped.
func resolveChain(s *EffectStack, reg *EffectRegistry, c *Clock) []EffectPass {
	var out []EffectPass
	for _, inst := range s.Runnable() {
		impl, ok := reg.Lookup(inst.Type)
		if !ok {
			continue
		}
		p := EffectPass{Instance: inst, Values: inst.Evaluate(c)}
		switch e := impl.(type) {
		case ShaderEffect:
			p.Shader = e
		case HostEffect:
			p.Host = e
		default:
			continue
		}
		out = append(out, p)
	}
	return out
}
