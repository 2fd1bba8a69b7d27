package tile

import (
	"errors"
	"image"
	"math"
	"testing"
)

func TestZoomForEdge(t *testing.T) {
	testCases := []struct {
		edge int
		want int
	}{
		{256, 0},
		{511, 0},
		{512, 1},
		{1024, 2},
		{1500, 2},
		{4096, 4},
	}
	for _, tc := range testCases {
		got, err := ZoomForEdge(tc.edge)
		if err != nil {
			t.Fatalf("ZoomForEdge(%d) failed: %v", tc.edge, err)
		}
		if got != tc.want {
			t.Errorf("ZoomForEdge(%d) = %d, expected %d", tc.edge, got, tc.want)
		}
	}
}

func TestZoomForEdge_Degenerate(t *testing.T) {
	for _, edge := range []int{0, -5, 100, 255} {
		if _, err := ZoomForEdge(edge); !errors.Is(err, ErrDegenerateViewport) {
			t.Errorf("ZoomForEdge(%d) = %v, expected ErrDegenerateViewport", edge, err)
		}
	}
	if _, err := ZoomForEdge(Size << (MaxZoom + 1)); err == nil {
		t.Error("Expected error above maximum zoom")
	}
}

func TestTilesNeeded_Aligned(t *testing.T) {
	testCases := []struct {
		name       string
		rect       image.Rectangle
		zoom       int
		cols, rows int
	}{
		{"whole world z2", image.Rect(0, 0, 1024, 1024), 2, 4, 4},
		{"whole world z0", image.Rect(0, 0, 256, 256), 0, 1, 1},
		{"sub rectangle", image.Rect(256, 512, 1024, 1024), 3, 3, 2},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			coords := TilesNeeded(tc.rect, tc.zoom)
			if len(coords) != tc.cols*tc.rows {
				t.Fatalf("Expected %d tiles, got %d", tc.cols*tc.rows, len(coords))
			}
			seen := make(map[Coordinate]bool)
			for _, c := range coords {
				if seen[c] {
					t.Errorf("Duplicate tile %v", c)
				}
				seen[c] = true
				if !c.Valid() || c.Z != tc.zoom {
					t.Errorf("Tile %v outside pyramid at zoom %d", c, tc.zoom)
				}
				px := image.Rect(c.X*Size, c.Y*Size, (c.X+1)*Size, (c.Y+1)*Size)
				if !px.In(tc.rect) {
					t.Errorf("Tile %v (%v) not inside %v", c, px, tc.rect)
				}
			}
		})
	}
}

func TestTilesNeeded_ClipsToWorld(t *testing.T) {
	coords := TilesNeeded(image.Rect(-100, -100, 1500, 1500), 2)
	if len(coords) != 16 {
		t.Fatalf("Expected 16 tiles, got %d", len(coords))
	}
	for _, c := range coords {
		if !c.Valid() {
			t.Errorf("Tile %v outside [0, 4)", c)
		}
	}
	if got := TilesNeeded(image.Rect(2000, 2000, 3000, 3000), 2); len(got) != 0 {
		t.Errorf("Expected no tiles outside the world, got %v", got)
	}
}

func TestTilesNeeded_Unaligned(t *testing.T) {
	coords := TilesNeeded(image.Rect(10, 10, 300, 260), 2)
	want := []Coordinate{{0, 0, 2}, {1, 0, 2}, {0, 1, 2}, {1, 1, 2}}
	if len(coords) != len(want) {
		t.Fatalf("Expected %v, got %v", want, coords)
	}
	for i := range want {
		if coords[i] != want[i] {
			t.Errorf("Tile %d = %v, expected %v", i, coords[i], want[i])
		}
	}
}

func TestGrid_CellFlip(t *testing.T) {
	top, err := NewGrid(1024, TopDown)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	bottom, err := NewGrid(1024, BottomUp)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}

	if top.Zoom != 2 || top.Cols != 4 || top.Rows != 4 {
		t.Fatalf("Unexpected grid %+v", top)
	}
	if !top.CoversWorld() {
		t.Error("1024 px grid should cover the world")
	}
	if top.Bounds() != image.Rect(0, 0, 1024, 1024) {
		t.Errorf("Unexpected bounds %v", top.Bounds())
	}

	c := Coordinate{X: 1, Y: 0, Z: 2}
	if got := top.Cell(c); got != image.Rect(256, 0, 512, 256) {
		t.Errorf("Top-down cell = %v", got)
	}
	if got := bottom.Cell(c); got != image.Rect(256, 768, 512, 1024) {
		t.Errorf("Bottom-up cell = %v", got)
	}

	cells := make(map[image.Rectangle]bool)
	for _, c := range bottom.Tiles() {
		cell := bottom.Cell(c)
		if cells[cell] {
			t.Errorf("Two tiles claim cell %v", cell)
		}
		cells[cell] = true
	}
}

func TestGrid_Bound(t *testing.T) {
	g, err := NewGrid(512, TopDown)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	b := g.Bound()
	if math.Abs(b.Min.Lon()+180) > 1e-9 || math.Abs(b.Max.Lon()-180) > 1e-9 {
		t.Errorf("Unexpected longitude extent %v", b)
	}
	if math.Abs(b.Max.Lat()-85.0511287798) > 1e-6 || math.Abs(b.Min.Lat()+85.0511287798) > 1e-6 {
		t.Errorf("Unexpected latitude extent %v", b)
	}
}

func TestParseRowOrder(t *testing.T) {
	if o, err := ParseRowOrder("bottom-up"); err != nil || o != BottomUp {
		t.Errorf("ParseRowOrder(bottom-up) = %v, %v", o, err)
	}
	if o, err := ParseRowOrder(""); err != nil || o != TopDown {
		t.Errorf("ParseRowOrder(\"\") = %v, %v", o, err)
	}
	if _, err := ParseRowOrder("sideways"); err == nil {
		t.Error("Expected error for unknown row order")
	}
}

func TestGrid_World(t *testing.T) {
	testCases := []struct {
		edge  int
		order RowOrder
		want  image.Rectangle
	}{
		{1024, TopDown, image.Rect(0, 0, 1024, 1024)},
		{1024, BottomUp, image.Rect(0, 0, 1024, 1024)},
		{768, TopDown, image.Rect(0, 0, 512, 512)},
		{768, BottomUp, image.Rect(0, 256, 512, 768)},
		{300, TopDown, image.Rect(0, 0, 256, 256)},
		{300, BottomUp, image.Rect(0, 256, 256, 512)},
	}

	for _, tc := range testCases {
		g, err := NewGrid(tc.edge, tc.order)
		if err != nil {
			t.Fatalf("NewGrid(%d) failed: %v", tc.edge, err)
		}
		if got := g.World(); got != tc.want {
			t.Errorf("World() for edge %d %v = %v, expected %v", tc.edge, tc.order, got, tc.want)
		}
		// Every fetched tile lands inside the world rectangle.
		for _, c := range g.Tiles() {
			if cell := g.Cell(c); !cell.In(g.World()) {
				t.Errorf("Edge %d %v: cell %v of %s outside world %v", tc.edge, tc.order, cell, c, g.World())
			}
		}
	}
}
