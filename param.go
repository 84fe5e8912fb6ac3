package prism

import (
	"encoding/json"
	"fmt"
	"math"
	"slices"
)

// ParamKind discriminates parameter values.
type ParamKind uint8

const (
	KindFloat ParamKind = iota
	KindInt
	KindBool
	KindVec2
	KindVec3
	KindColor
	KindEnum
)

var paramKindNames = [...]string{"float", "int", "bool", "vec2", "vec3", "color", "enum"}

func (k ParamKind) String() string {
	if int(k) < len(paramKindNames) {
		return paramKindNames[k]
	}
	return fmt.Sprintf("ParamKind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k ParamKind) MarshalText() ([]byte, error) {
	if int(k) >= len(paramKindNames) {
		return nil, fmt.Errorf("%w: param kind %d", ErrInvalidConfig, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *ParamKind) UnmarshalText(text []byte) error {
	for i, name := range paramKindNames {
		if name == string(text) {
			*k = ParamKind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown param kind %q", ErrInvalidConfig, text)
}

// numeric reports whether values of kind k can be automated.
func (k ParamKind) numeric() bool { return k == KindFloat || k == KindInt }

// ParamValue is a tagged union. Only the field selected by Kind is meaningful.
type ParamValue struct {
	Kind  ParamKind
	Float float64
	Int   int
	Bool  bool
	Vec2  Vec2
	Vec3  [3]float64
	Color Color
	Enum  string
}

// Constructors for each kind.
func FloatValue(v float64) ParamValue   { return ParamValue{Kind: KindFloat, Float: v} }
func IntValue(v int) ParamValue         { return ParamValue{Kind: KindInt, Int: v} }
func BoolValue(v bool) ParamValue       { return ParamValue{Kind: KindBool, Bool: v} }
func Vec2Value(v Vec2) ParamValue       { return ParamValue{Kind: KindVec2, Vec2: v} }
func Vec3Value(v [3]float64) ParamValue { return ParamValue{Kind: KindVec3, Vec3: v} }
func ColorValue(v Color) ParamValue     { return ParamValue{Kind: KindColor, Color: v} }
func EnumValue(v string) ParamValue     { return ParamValue{Kind: KindEnum, Enum: v} }

// Number returns the value of a float or int parameter as float64.
func (v ParamValue) Number() float64 {
	switch v.Kind {
	case KindFloat:
		return v.Float
	case KindInt:
		return float64(v.Int)
	case KindBool:
		if v.Bool {
			return 1
		}
	}
	return 0
}

type paramValueJSON struct {
	Kind  ParamKind       `json:"kind"`
	Value json.RawMessage `json:"value"`
}

// MarshalJSON writes {"kind": ..., "value": ...}.
func (v ParamValue) MarshalJSON() ([]byte, error) {
	var payload any
	switch v.Kind {
	case KindFloat:
		payload = v.Float
	case KindInt:
		payload = v.Int
	case KindBool:
		payload = v.Bool
	case KindVec2:
		payload = v.Vec2
	case KindVec3:
		payload = v.Vec3
	case KindColor:
		payload = v.Color
	case KindEnum:
		payload = v.Enum
	default:
		return nil, fmt.Errorf("%w: param kind %d", ErrInvalidConfig, v.Kind)
	}
	raw, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return json.Marshal(paramValueJSON{Kind: v.Kind, Value: raw})
}

// UnmarshalJSON reads the form written by MarshalJSON.
func (v *ParamValue) UnmarshalJSON(data []byte) error {
	var j paramValueJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	out := ParamValue{Kind: j.Kind}
	var target any
	switch j.Kind {
	case KindFloat:
		target = &out.Float
	case KindInt:
		target = &out.Int
	case KindBool:
		target = &out.Bool
	case KindVec2:
		target = &out.Vec2
	case KindVec3:
		target = &out.Vec3
	case KindColor:
		target = &out.Color
	case KindEnum:
		target = &out.Enum
	}
	if err := json.Unmarshal(j.Value, target); err != nil {
		return fmt.Errorf("param value %v: %w", j.Kind, err)
	}
	*v = out
	return nil
}

// ParamSpec is the metadata of a parameter.
type ParamSpec struct {
	Name        string     `json:"name"`
	Kind        ParamKind  `json:"kind"`
	Min         float64    `json:"min"`
	Max         float64    `json:"max"`
	Default     ParamValue `json:"default"`
	Automatable bool       `json:"automatable"`
	Options     []string   `json:"options,omitempty"`
}

// Range returns the numeric range of the spec.
func (s ParamSpec) Range() Range { return Range{Min: s.Min, Max: s.Max} }

// Check validates v against the spec.
func (s ParamSpec) Check(v ParamValue) error {
	if v.Kind != s.Kind {
		return fmt.Errorf("%w: %s wants %v, got %v", ErrKindMismatch, s.Name, s.Kind, v.Kind)
	}
	switch v.Kind {
	case KindFloat:
		if math.IsNaN(v.Float) || math.IsInf(v.Float, 0) {
			return fmt.Errorf("%w: %s = %v", ErrInvalidConfig, s.Name, v.Float)
		}
	case KindEnum:
		if !slices.Contains(s.Options, v.Enum) {
			return fmt.Errorf("%w: %s has no option %q", ErrInvalidConfig, s.Name, v.Enum)
		}
	}
	return nil
}

// Clamp limits numeric values to the spec range.
func (s ParamSpec) Clamp(v ParamValue) ParamValue {
	switch v.Kind {
	case KindFloat:
		v.Float = s.Range().Clamp(v.Float)
	case KindInt:
		v.Int = int(s.Range().Clamp(float64(v.Int)))
	}
	return v
}

// Parameter is a named effect parameter: its spec, current value and
// optional automation.
type Parameter struct {
	Spec       ParamSpec   `json:"spec"`
	Value      ParamValue  `json:"value"`
	Automation *Automation `json:"automation,omitempty"`
}

// NewParameter returns a parameter set to its default.
func NewParameter(spec ParamSpec) Parameter {
	return Parameter{Spec: spec, Value: spec.Default}
}

// Set validates and stores v.
func (p *Parameter) Set(v ParamValue) error {
	if err := p.Spec.Check(v); err != nil {
		return err
	}
	p.Value = v
	return nil
}

// Automate attaches a (or detaches with nil).
func (p *Parameter) Automate(a *Automation) error {
	if a == nil {
		p.Automation = nil
		return nil
	}
	if !p.Spec.Automatable || !p.Spec.Kind.numeric() {
		return fmt.Errorf("%w: %s", ErrNotAutomatable, p.Spec.Name)
	}
	if err := a.Validate(); err != nil {
		return err
	}
	p.Automation = a
	return nil
}

// Evaluate returns the effective value for this tick: automation applied to
// the base value, then clamped to the spec range.
func (p *Parameter) Evaluate(c *Clock) ParamValue {
	v := p.Value
	if p.Automation == nil || !p.Spec.Kind.numeric() {
		return p.Spec.Clamp(v)
	}
	mod := p.Automation.Value(c)
	span := p.Spec.Max - p.Spec.Min
	n := v.Number() + p.Automation.Depth*span*mod
	switch v.Kind {
	case KindFloat:
		v.Float = n
	case KindInt:
		v.Int = int(math.Round(n))
	}
	return p.Spec.Clamp(v)
}

// Params is an ordered parameter list.
type Params []Parameter

// Find returns the parameter named name.
func (ps Params) Find(name string) (*Parameter, bool) {
	for i := range ps {
		if ps[i].Spec.Name == name {
			return &ps[i], true
		}
	}
	return nil, false
}

// Clone returns a deep copy.
func (ps Params) Clone() Params {
	if ps == nil {
		return nil
	}
	out := make(Params, len(ps))
	for i, p := range ps {
		if p.Automation != nil {
			a := p.Automation.Clone()
			p.Automation = &a
		}
		p.Spec.Options = slices.Clone(p.Spec.Options)
		out[i] = p
	}
	return out
}

// Values is the evaluated parameter set handed to effect implementations.
type Values map[string]ParamValue

// Float returns a numeric value by name, or def.
func (v Values) Float(name string, def float64) float64 {
	if pv, ok := v[name]; ok {
		return pv.Number()
	}
	return def
}

// Int returns an integer value by name, or def.
func (v Values) Int(name string, def int) int {
	if pv, ok := v[name]; ok {
		return int(math.Round(pv.Number()))
	}
	return def
}

// Bool returns a bool value by name, or def.
func (v Values) Bool(name string, def bool) bool {
	if pv, ok := v[name]; ok && pv.Kind == KindBool {
		return pv.Bool
	}
	return def
}

// Color returns a color value by name, or def.
func (v Values) Color(name string, def Color) Color {
	if pv, ok := v[name]; ok && pv.Kind == KindColor {
		return pv.Color
	}
	return def
}

// Vec2 returns a vec2 value by name, or def.
func (v Values) Vec2(name string, def Vec2) Vec2 {
	if pv, ok := v[name]; ok && pv.Kind == KindVec2 {
		return pv.Vec2
	}
	return def
}

// Enum returns an enum value by name, or def.
func (v Values) Enum(name string, def string) string {
	if pv, ok := v[name]; ok && pv.Kind == KindEnum {
		return pv.Enum
	}
	return def
}
