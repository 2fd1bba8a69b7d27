package tile

import (
	"fmt"
	"image"
	"math"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/maptile"
)

// ZoomForEdge derives the pyramid level from the edge length of the
// destination raster: floor(log2(edge/256)).
func ZoomForEdge(edge int) (int, error) {
	if edge < Size {
		return 0, fmt.Errorf("edge of %d px: %w", edge, ErrDegenerateViewport)
	}
	z := int(math.Floor(math.Log2(float64(edge) / Size)))
	if z > MaxZoom {
		return 0, fmt.Errorf("edge of %d px needs zoom %d, maximum is %d", edge, z, MaxZoom)
	}
	return z, nil
}

// WorldPixels returns the edge length of the whole world at zoom z.
func WorldPixels(z int) int {
	return Size << uint(z)
}

// TilesNeeded returns the tiles covering rect (pixel space at zoom z) in
// row-major order. The rectangle is clipped to the world first, so no
// coordinate falls outside [0, 2^z).
func TilesNeeded(rect image.Rectangle, z int) []Coordinate {
	world := image.Rect(0, 0, WorldPixels(z), WorldPixels(z))
	rect = rect.Canon().Intersect(world)
	if rect.Empty() {
		return nil
	}

	x0, y0 := rect.Min.X/Size, rect.Min.Y/Size
	x1, y1 := (rect.Max.X+Size-1)/Size, (rect.Max.Y+Size-1)/Size

	coords := make([]Coordinate, 0, (x1-x0)*(y1-y0))
	for y := y0; y < y1; y++ {
		for x := x0; x < x1; x++ {
			coords = append(coords, Coordinate{X: x, Y: y, Z: z})
		}
	}
	return coords
}

// Grid maps tile coordinates of one pass to cells of the composite raster.
type Grid struct {
	Edge  int // requested edge length in pixels
	Zoom  int
	Cols  int
	Rows  int
	Order RowOrder
}

// NewGrid lays out a square raster of the given edge length.
func NewGrid(edge int, order RowOrder) (*Grid, error) {
	z, err := ZoomForEdge(edge)
	if err != nil {
		return nil, err
	}
	n := (edge + Size - 1) / Size
	return &Grid{Edge: edge, Zoom: z, Cols: n, Rows: n, Order: order}, nil
}

// Viewport is the pixel rectangle the grid was built for.
func (g *Grid) Viewport() image.Rectangle {
	return image.Rect(0, 0, g.Edge, g.Edge)
}

// Tiles returns every tile the grid needs.
func (g *Grid) Tiles() []Coordinate {
	return TilesNeeded(g.Viewport(), g.Zoom)
}

// Bounds is the pixel size of the composite raster: Cols*256 by Rows*256.
func (g *Grid) Bounds() image.Rectangle {
	return image.Rect(0, 0, g.Cols*Size, g.Rows*Size)
}

// CoversWorld reports whether the composite raster is exactly the world at Zoom.
func (g *Grid) CoversWorld() bool {
	n := 1 << uint(g.Zoom)
	return g.Cols == n && g.Rows == n
}

// World returns the part of the composite raster the world occupies at
// Zoom. It is the whole raster unless CoversWorld is false, in which case
// the world sits in the top-left corner, or bottom-left for BottomUp.
func (g *Grid) World() image.Rectangle {
	n := min(1<<uint(g.Zoom), g.Cols, g.Rows)
	y0 := min(g.FlippedRow(0), g.FlippedRow(n-1)) * Size
	return image.Rect(0, y0, n*Size, y0+n*Size)
}

// FlippedRow returns the storage row of tile row y under the grid's row order.
func (g *Grid) FlippedRow(y int) int {
	if g.Order == BottomUp {
		return g.Rows - 1 - y
	}
	return y
}

// Cell returns the destination rectangle of a tile in the composite raster.
func (g *Grid) Cell(c Coordinate) image.Rectangle {
	x := c.X * Size
	y := g.FlippedRow(c.Y) * Size
	return image.Rect(x, y, x+Size, y+Size)
}

// Bound returns the longitude/latitude extent of the tiles in the grid.
func (g *Grid) Bound() orb.Bound {
	tiles := g.Tiles()
	if len(tiles) == 0 {
		return orb.Bound{}
	}
	z := maptile.Zoom(g.Zoom)
	first, last := tiles[0], tiles[len(tiles)-1]
	b := maptile.New(uint32(first.X), uint32(first.Y), z).Bound()
	return b.Union(maptile.New(uint32(last.X), uint32(last.Y), z).Bound())
}
