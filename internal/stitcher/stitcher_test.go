package stitcher

import (
	"errors"
	"image"
	"image/color"
	"testing"

	"github.com/kiesman99/globestitch/internal/fetch"
	"github.com/kiesman99/globestitch/pkg/tile"
)

func solidTile(c color.RGBA) *image.RGBA {
	img := image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	for i := 0; i < len(img.Pix); i += 4 {
		img.Pix[i], img.Pix[i+1], img.Pix[i+2], img.Pix[i+3] = c.R, c.G, c.B, c.A
	}
	return img
}

// tileColor identifies a tile by its position.
func tileColor(c tile.Coordinate) color.RGBA {
	return color.RGBA{R: uint8(40 * (c.X + 1)), G: uint8(40 * (c.Y + 1)), B: 7, A: 255}
}

func coloredLayer(grid *tile.Grid, skip map[tile.Coordinate]bool) Layer {
	layer := make(Layer)
	for _, c := range grid.Tiles() {
		if !skip[c] {
			layer[c] = solidTile(tileColor(c))
		}
	}
	return layer
}

func TestComposite_Placement(t *testing.T) {
	testCases := []struct {
		name  string
		order tile.RowOrder
		row   func(y int) int
	}{
		{"top-down", tile.TopDown, func(y int) int { return y }},
		{"bottom-up", tile.BottomUp, func(y int) int { return 3 - y }},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			grid, err := tile.NewGrid(1024, tc.order)
			if err != nil {
				t.Fatalf("NewGrid failed: %v", err)
			}

			img := Composite(grid, coloredLayer(grid, nil))
			if img.Bounds() != image.Rect(0, 0, 1024, 1024) {
				t.Fatalf("Unexpected bounds %v", img.Bounds())
			}

			for _, c := range grid.Tiles() {
				want := tileColor(c)
				x0, y0 := c.X*tile.Size, tc.row(c.Y)*tile.Size
				for _, p := range []image.Point{{0, 0}, {128, 128}, {255, 255}, {0, 255}} {
					if got := img.RGBAAt(x0+p.X, y0+p.Y); got != want {
						t.Errorf("Tile %v at %v: got %v, expected %v", c, p, got, want)
					}
				}
			}
		})
	}
}

func TestComposite_MissingTilesStayBlank(t *testing.T) {
	grid, err := tile.NewGrid(1024, tile.TopDown)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}

	missing := map[tile.Coordinate]bool{
		{X: 0, Y: 0, Z: 2}: true,
		{X: 2, Y: 1, Z: 2}: true,
		{X: 3, Y: 3, Z: 2}: true,
	}
	img := Composite(grid, coloredLayer(grid, missing))

	for _, c := range grid.Tiles() {
		cell := grid.Cell(c)
		blank := true
		for y := cell.Min.Y; y < cell.Max.Y; y++ {
			for x := cell.Min.X; x < cell.Max.X; x++ {
				if img.RGBAAt(x, y) != (color.RGBA{}) {
					blank = false
				}
			}
		}
		if blank != missing[c] {
			t.Errorf("Tile %v: blank=%v, expected %v", c, blank, missing[c])
		}
	}
}

func TestComposite_UnalignedEdgeKeepsFullCells(t *testing.T) {
	grid, err := tile.NewGrid(300, tile.TopDown)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	img := Composite(grid, coloredLayer(grid, nil))
	if img.Bounds() != image.Rect(0, 0, 512, 512) {
		t.Errorf("Expected 512x512 composite, got %v", img.Bounds())
	}
}

func TestComposite_SkipsForeignTiles(t *testing.T) {
	grid, err := tile.NewGrid(512, tile.TopDown)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	layer := Layer{
		{X: 0, Y: 0, Z: 3}: solidTile(color.RGBA{255, 0, 0, 255}),
		{X: 5, Y: 0, Z: 1}: solidTile(color.RGBA{255, 0, 0, 255}),
	}
	img := Composite(grid, layer)
	for i, v := range img.Pix {
		if v != 0 {
			t.Fatalf("Expected blank raster, byte %d = %d", i, v)
		}
	}
}

func TestComposite_Overlay(t *testing.T) {
	grid, err := tile.NewGrid(256, tile.TopDown)
	if err != nil {
		t.Fatalf("NewGrid failed: %v", err)
	}
	c := tile.Coordinate{Z: 0}
	base := Layer{c: solidTile(color.RGBA{0, 0, 255, 255})}

	overlay := image.NewRGBA(image.Rect(0, 0, tile.Size, tile.Size))
	overlay.SetRGBA(10, 10, color.RGBA{255, 255, 255, 255})

	img := Composite(grid, base, Layer{c: overlay})
	if got := img.RGBAAt(10, 10); got != (color.RGBA{255, 255, 255, 255}) {
		t.Errorf("Expected opaque overlay pixel, got %v", got)
	}
	if got := img.RGBAAt(11, 10); got != (color.RGBA{0, 0, 255, 255}) {
		t.Errorf("Expected base to show through, got %v", got)
	}
}

func TestReport(t *testing.T) {
	status := 404
	results := fetch.Results{
		{X: 0, Y: 0, Z: 1}: {Image: solidTile(color.RGBA{1, 2, 3, 255})},
		{X: 1, Y: 0, Z: 1}: {Err: &fetch.FetchError{Coord: tile.Coordinate{X: 1, Z: 1}, URL: "https://a/1/1/0.png", StatusCode: status}},
		{X: 0, Y: 1, Z: 1}: {Err: errors.New("decode failed")},
	}

	r := NewReport(results)
	if r.TotalTiles != 3 || r.SuccessfulTiles != 1 || len(r.FailedTiles) != 2 {
		t.Fatalf("Unexpected report %+v", r)
	}
	first := r.FailedTiles[0]
	if first.Coord != (tile.Coordinate{X: 1, Y: 0, Z: 1}) || first.StatusCode == nil || *first.StatusCode != 404 {
		t.Errorf("Unexpected first failure %+v", first)
	}
	if r.Err() != nil {
		t.Errorf("Partial success should not be an error: %v", r.Err())
	}

	allFailed := NewReport(fetch.Results{{Z: 0}: {Err: errors.New("x")}})
	var te *TileError
	if !errors.As(allFailed.Err(), &te) || te.TotalTiles != 1 {
		t.Errorf("Expected TileError, got %v", allFailed.Err())
	}
}

func TestReport_Overlays(t *testing.T) {
	ok := fetch.Result{Image: solidTile(color.RGBA{1, 2, 3, 255})}
	base := fetch.Results{
		{X: 0, Y: 0, Z: 1}: ok,
		{X: 1, Y: 0, Z: 1}: ok,
	}

	tests := []struct {
		name     string
		overlays []fetch.Results
		want     []FailedTile
	}{
		{
			name: "no overlays",
		},
		{
			name:     "overlay complete",
			overlays: []fetch.Results{base},
		},
		{
			name: "failures tagged by layer",
			overlays: []fetch.Results{
				{{X: 0, Y: 0, Z: 1}: ok, {X: 1, Y: 0, Z: 1}: {Err: errors.New("timeout")}},
				{{X: 0, Y: 0, Z: 1}: {Err: errors.New("refused")}, {X: 1, Y: 0, Z: 1}: ok},
			},
			want: []FailedTile{
				{Layer: 1, Coord: tile.Coordinate{X: 1, Y: 0, Z: 1}, Error: "timeout"},
				{Layer: 2, Coord: tile.Coordinate{X: 0, Y: 0, Z: 1}, Error: "refused"},
			},
		},
		{
			name: "overlay failures never fail the pass",
			overlays: []fetch.Results{
				{{X: 0, Y: 0, Z: 1}: {Err: errors.New("a")}, {X: 1, Y: 0, Z: 1}: {Err: errors.New("b")}},
			},
			want: []FailedTile{
				{Layer: 1, Coord: tile.Coordinate{X: 0, Y: 0, Z: 1}, Error: "a"},
				{Layer: 1, Coord: tile.Coordinate{X: 1, Y: 0, Z: 1}, Error: "b"},
			},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewReport(base, tt.overlays...)
			if r.TotalTiles != 2 || r.SuccessfulTiles != 2 || len(r.FailedTiles) != 0 {
				t.Errorf("Overlays changed the base counts: %+v", r)
			}
			if err := r.Err(); err != nil {
				t.Errorf("Expected no error, got %v", err)
			}
			if len(r.OverlayFailedTiles) != len(tt.want) {
				t.Fatalf("Expected %d overlay failures, got %+v", len(tt.want), r.OverlayFailedTiles)
			}
			for i, want := range tt.want {
				got := r.OverlayFailedTiles[i]
				if got.Layer != want.Layer || got.Coord != want.Coord || got.Error != want.Error {
					t.Errorf("Failure %d = %+v, expected %+v", i, got, want)
				}
			}
		})
	}
}
