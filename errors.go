package prism

import "errors"

// Sentinel errors for prism operations.
// Callers classify failures with errors.Is; every returned error wraps one
// of these with the offending id or value.

// Configuration errors. Rejected at the mutation boundary; the model keeps
// its previous state.
var (
	// ErrInvalidConfig indicates a value outside its documented range.
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrInvalidMesh indicates a warp mesh smaller than 2x2 or with a point
	// count that does not match its dimensions.
	ErrInvalidMesh = errors.New("invalid warp mesh")

	// ErrZeroArea indicates a slice input or output rect without area.
	ErrZeroArea = errors.New("rect has zero area")

	// ErrSelfIntersecting indicates a polygon whose edges cross.
	ErrSelfIntersecting = errors.New("polygon is self-intersecting")

	// ErrPerspectiveOnPolygon indicates a perspective warp on a polygonal slice.
	ErrPerspectiveOnPolygon = errors.New("perspective warp requires a rectangular slice")

	// ErrNotAutomatable indicates automation attached to a parameter that
	// does not accept it.
	ErrNotAutomatable = errors.New("parameter is not automatable")

	// ErrKindMismatch indicates a parameter value of the wrong kind.
	ErrKindMismatch = errors.New("parameter kind mismatch")
)

// Lookup errors. Returned by commands addressing ids that do not exist.
var (
	// ErrNotFound indicates an unknown layer, effect, screen, slice or cell.
	ErrNotFound = errors.New("not found")

	// ErrLastSlice indicates an attempt to delete the only slice of a screen.
	ErrLastSlice = errors.New("screen must keep at least one slice")
)

// Resource errors. Fatal for the affected resource only.
var (
	// ErrResourceUnavailable indicates a surface could not be allocated.
	ErrResourceUnavailable = errors.New("resource unavailable")

	// ErrUnsupportedFormat indicates a frame pixel format the core cannot read.
	ErrUnsupportedFormat = errors.New("unsupported pixel format")
)

// Lifecycle errors.
var (
	// ErrEngineClosed indicates use of an engine after Close.
	ErrEngineClosed = errors.New("engine closed")

	// ErrQueueFull indicates the command queue rejected a submission.
	ErrQueueFull = errors.New("command queue full")
)
