package prism

import (
	"encoding/json"
	"fmt"
	"slices"
	"time"
)

// SourceKind discriminates ClipSource variants.
type SourceKind string

const (
	// SourceNone is an empty source; a cell holding it renders nothing.
	SourceNone SourceKind = "none"
	// SourceMedia references a file or URI decoded by an external provider.
	SourceMedia SourceKind = "media"
	// SourceStill references a still image decoded by the still provider.
	SourceStill SourceKind = "still"
	// SourceGenerator is a procedurally generated test pattern.
	SourceGenerator SourceKind = "generator"
	// SourceStream references a named network stream owned by a transport
	// collaborator.
	SourceStream SourceKind = "stream"
)

// Valid reports whether k is a known source kind.
func (k SourceKind) Valid() bool {
	switch k {
	case SourceNone, SourceMedia, SourceStill, SourceGenerator, SourceStream:
		return true
	}
	return false
}

// ClipSource is a media reference. Which fields are meaningful depends on
// Kind: URI for media, still and stream; Pattern and Color for generator.
type ClipSource struct {
	Kind    SourceKind `json:"kind"`
	URI     string     `json:"uri,omitempty"`
	Pattern string     `json:"pattern,omitempty"`
	Color   Color      `json:"color,omitzero"`
	// Loop restarts media at its end. Providers that cannot loop ignore it.
	Loop bool `json:"loop,omitempty"`
}

// Key returns a string identifying the source for provider caching.
func (s ClipSource) Key() string {
	switch s.Kind {
	case SourceGenerator:
		return fmt.Sprintf("%s:%s:%g,%g,%g,%g", s.Kind, s.Pattern, s.Color.R, s.Color.G, s.Color.B, s.Color.A)
	default:
		return string(s.Kind) + ":" + s.URI
	}
}

// TransitionKind selects how a newly triggered clip replaces the active one.
type TransitionKind uint8

const (
	TransitionCut TransitionKind = iota
	TransitionFade
	TransitionCrossfade
)

var transitionNames = [...]string{"cut", "fade", "crossfade"}

func (k TransitionKind) String() string {
	if int(k) < len(transitionNames) {
		return transitionNames[k]
	}
	return fmt.Sprintf("TransitionKind(%d)", uint8(k))
}

// MarshalText encodes the kind by name.
func (k TransitionKind) MarshalText() ([]byte, error) {
	if int(k) >= len(transitionNames) {
		return nil, fmt.Errorf("%w: transition kind %d", ErrInvalidConfig, uint8(k))
	}
	return []byte(k.String()), nil
}

// UnmarshalText decodes a kind name.
func (k *TransitionKind) UnmarshalText(text []byte) error {
	for i, name := range transitionNames {
		if name == string(text) {
			*k = TransitionKind(i)
			return nil
		}
	}
	return fmt.Errorf("%w: unknown transition kind %q", ErrInvalidConfig, text)
}

// TransitionPolicy describes a transition. Duration is in seconds; Easing
// names an easing function (see EasingByName), empty meaning linear.
type TransitionPolicy struct {
	Kind     TransitionKind `json:"kind"`
	Duration float64        `json:"duration"`
	Easing   string         `json:"easing,omitempty"`
}

// Cut is the instant policy.
var Cut = TransitionPolicy{Kind: TransitionCut}

// Validate checks the duration and easing name.
func (p TransitionPolicy) Validate() error {
	if p.Kind > TransitionCrossfade {
		return fmt.Errorf("%w: transition kind %d", ErrInvalidConfig, p.Kind)
	}
	if !(p.Duration >= 0) || !finite(p.Duration) {
		return fmt.Errorf("%w: transition duration %v", ErrInvalidConfig, p.Duration)
	}
	if _, ok := EasingByName(p.Easing); !ok {
		return fmt.Errorf("%w: unknown easing %q", ErrInvalidConfig, p.Easing)
	}
	return nil
}

// instant reports whether the policy completes without a Transitioning state.
func (p TransitionPolicy) instant() bool {
	return p.Kind == TransitionCut || p.Duration <= 0
}

func (p TransitionPolicy) duration() time.Duration {
	return time.Duration(p.Duration * float64(time.Second))
}

// ClipCell is one entry of a layer's clip grid.
type ClipCell struct {
	Name   string     `json:"name,omitempty"`
	Source ClipSource `json:"source"`
	// Transition overrides the grid policy when this cell is triggered.
	Transition *TransitionPolicy `json:"transition,omitempty"`
}

// CellKey addresses a grid cell.
type CellKey struct {
	Row int `json:"row"`
	Col int `json:"col"`
}

// ClipGrid is a sparse rows x columns grid of clip cells.
type ClipGrid struct {
	Rows    int
	Columns int
	// Policy is the default transition for cells without an override.
	Policy TransitionPolicy
	cells  map[CellKey]ClipCell
}

// NewClipGrid returns an empty grid.
func NewClipGrid(rows, cols int) *ClipGrid {
	return &ClipGrid{Rows: rows, Columns: cols, Policy: Cut, cells: make(map[CellKey]ClipCell)}
}

func (g *ClipGrid) inBounds(k CellKey) bool {
	return k.Row >= 0 && k.Col >= 0 && k.Row < g.Rows && k.Col < g.Columns
}

// Set stores a cell at (row, col).
func (g *ClipGrid) Set(row, col int, cell ClipCell) error {
	k := CellKey{row, col}
	if !g.inBounds(k) {
		return fmt.Errorf("%w: cell (%d,%d) outside %dx%d grid", ErrInvalidConfig, row, col, g.Rows, g.Columns)
	}
	if !cell.Source.Kind.Valid() {
		return fmt.Errorf("%w: source kind %q", ErrInvalidConfig, cell.Source.Kind)
	}
	if cell.Transition != nil {
		if err := cell.Transition.Validate(); err != nil {
			return err
		}
	}
	if g.cells == nil {
		g.cells = make(map[CellKey]ClipCell)
	}
	g.cells[k] = cell
	return nil
}

// Get returns the cell at (row, col).
func (g *ClipGrid) Get(row, col int) (ClipCell, bool) {
	c, ok := g.cells[CellKey{row, col}]
	return c, ok
}

// Clear removes the cell at (row, col). Reports whether one existed.
func (g *ClipGrid) Clear(row, col int) bool {
	k := CellKey{row, col}
	_, ok := g.cells[k]
	delete(g.cells, k)
	return ok
}

// Len returns the number of populated cells.
func (g *ClipGrid) Len() int { return len(g.cells) }

// Resize changes the grid dimensions. Cells at coordinates still inside the
// grid are kept; others are dropped.
func (g *ClipGrid) Resize(rows, cols int) error {
	if rows < 1 || cols < 1 {
		return fmt.Errorf("%w: grid %dx%d", ErrInvalidConfig, rows, cols)
	}
	g.Rows, g.Columns = rows, cols
	for k := range g.cells {
		if !g.inBounds(k) {
			delete(g.cells, k)
		}
	}
	return nil
}

// PolicyFor returns the transition policy of the cell at k.
func (g *ClipGrid) PolicyFor(k CellKey) TransitionPolicy {
	if c, ok := g.cells[k]; ok && c.Transition != nil {
		return *c.Transition
	}
	return g.Policy
}

// GridEntry is one populated cell in row-major order.
type GridEntry struct {
	CellKey
	Cell ClipCell `json:"cell"`
}

// Entries returns populated cells sorted row-major.
func (g *ClipGrid) Entries() []GridEntry {
	out := make([]GridEntry, 0, len(g.cells))
	for k, c := range g.cells {
		out = append(out, GridEntry{CellKey: k, Cell: c})
	}
	slices.SortFunc(out, func(a, b GridEntry) int {
		if a.Row != b.Row {
			return a.Row - b.Row
		}
		return a.Col - b.Col
	})
	return out
}

// Clone returns a deep copy.
func (g *ClipGrid) Clone() *ClipGrid {
	c := &ClipGrid{Rows: g.Rows, Columns: g.Columns, Policy: g.Policy, cells: make(map[CellKey]ClipCell, len(g.cells))}
	for k, v := range g.cells {
		if v.Transition != nil {
			p := *v.Transition
			v.Transition = &p
		}
		c.cells[k] = v
	}
	return c
}

type clipGridJSON struct {
	Rows    int              `json:"rows"`
	Columns int              `json:"columns"`
	Policy  TransitionPolicy `json:"policy"`
	Cells   []GridEntry      `json:"cells"`
}

// MarshalJSON encodes the sparse map as a sorted cell list.
func (g *ClipGrid) MarshalJSON() ([]byte, error) {
	return json.Marshal(clipGridJSON{Rows: g.Rows, Columns: g.Columns, Policy: g.Policy, Cells: g.Entries()})
}

// UnmarshalJSON decodes a grid written by MarshalJSON.
func (g *ClipGrid) UnmarshalJSON(data []byte) error {
	var j clipGridJSON
	if err := json.Unmarshal(data, &j); err != nil {
		return err
	}
	ng := NewClipGrid(j.Rows, j.Columns)
	ng.Policy = j.Policy
	for _, e := range j.Cells {
		if err := ng.Set(e.Row, e.Col, e.Cell); err != nil {
			return err
		}
	}
	*g = *ng
	return nil
}
