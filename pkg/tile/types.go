package tile

import (
	"errors"
	"fmt"
)

// Size is the edge length in pixels of one slippy-map tile.
const Size = 256

// MaxZoom is the deepest level of detail a texture may be built from.
const MaxZoom = 18

// Output format constants
const (
	FormatPNG = iota
	FormatRaw
)

// ErrDegenerateViewport is returned when the requested raster is smaller than one tile.
var ErrDegenerateViewport = errors.New("viewport smaller than one tile")

// Coordinate identifies one tile in the slippy-tile pyramid.
type Coordinate struct {
	X, Y, Z int
}

// Valid reports whether the coordinate lies inside the pyramid at its zoom.
func (c Coordinate) Valid() bool {
	if c.Z < 0 || c.Z > 30 {
		return false
	}
	n := 1 << uint(c.Z)
	return c.X >= 0 && c.Y >= 0 && c.X < n && c.Y < n
}

func (c Coordinate) String() string {
	return fmt.Sprintf("%d/%d/%d", c.Z, c.X, c.Y)
}

// RowOrder is the vertical storage convention of a destination raster.
type RowOrder int

const (
	// TopDown stores the northernmost tile row first (image/png order).
	TopDown RowOrder = iota
	// BottomUp stores the southernmost tile row first (OpenGL texture order).
	BottomUp
)

func (o RowOrder) String() string {
	switch o {
	case TopDown:
		return "top-down"
	case BottomUp:
		return "bottom-up"
	}
	return fmt.Sprintf("RowOrder(%d)", int(o))
}

// ParseRowOrder parses "top-down" or "bottom-up".
func ParseRowOrder(s string) (RowOrder, error) {
	switch s {
	case "", "top-down", "topdown":
		return TopDown, nil
	case "bottom-up", "bottomup":
		return BottomUp, nil
	}
	return TopDown, fmt.Errorf("unknown row order %q (want top-down or bottom-up)", s)
}

// MalformedURLError reports a tile URL that does not parse as an absolute URL.
type MalformedURLError struct {
	URL   string
	Coord Coordinate
	Err   error
}

func (e *MalformedURLError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("malformed URL for tile %s: %q: %v", e.Coord, e.URL, e.Err)
	}
	return fmt.Sprintf("malformed URL for tile %s: %q", e.Coord, e.URL)
}

func (e *MalformedURLError) Unwrap() error { return e.Err }
