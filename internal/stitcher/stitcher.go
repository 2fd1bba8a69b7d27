// Package stitcher assembles decoded tiles into one composite raster.
package stitcher

import (
	"errors"
	"fmt"
	"image"

	"golang.org/x/image/draw"

	"github.com/kiesman99/globestitch/internal/fetch"
	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/pkg/tile"
)

// Layer is the set of decoded tiles of one tile source.
type Layer map[tile.Coordinate]*image.RGBA

// Composite creates a raster of exactly grid.Bounds() and copies every tile
// of the base layer into its cell. Cells of missing tiles stay transparent.
// Overlay layers are blended over the base with Porter-Duff "over".
func Composite(grid *tile.Grid, base Layer, overlays ...Layer) *image.RGBA {
	dst := image.NewRGBA(grid.Bounds())

	place(grid, dst, base, draw.Src)
	for _, layer := range overlays {
		place(grid, dst, layer, draw.Over)
	}
	return dst
}

// place copies tiles into their disjoint cells.
func place(grid *tile.Grid, dst *image.RGBA, layer Layer, op draw.Op) {
	for c, img := range layer {
		if img == nil {
			continue
		}
		if c.Z != grid.Zoom || !c.Valid() {
			logging.Logger().Warn("skipping tile outside grid", "tile", c.String(), "zoom", grid.Zoom)
			continue
		}
		cell := grid.Cell(c)
		if !cell.In(dst.Rect) {
			logging.Logger().Warn("skipping tile outside raster", "tile", c.String(), "cell", cell)
			continue
		}
		draw.Draw(dst, cell, img, img.Bounds().Min, op)
	}
}

// FailedTile represents a single failed tile download. Layer 0 is the base
// layer, overlays count from 1.
type FailedTile struct {
	Layer      int
	Coord      tile.Coordinate
	URL        string
	StatusCode *int
	Error      string
}

// Report summarizes the fetch outcome of one pass. The tile counts cover
// the base layer; overlay failures are listed on their own.
type Report struct {
	TotalTiles         int
	SuccessfulTiles    int
	FailedTiles        []FailedTile
	OverlayFailedTiles []FailedTile
}

// NewReport builds a report from the base layer's fetch results and those
// of its overlays.
func NewReport(results fetch.Results, overlays ...fetch.Results) *Report {
	r := &Report{
		TotalTiles:      len(results),
		SuccessfulTiles: results.Succeeded(),
		FailedTiles:     failedTiles(0, results),
	}
	for i, o := range overlays {
		r.OverlayFailedTiles = append(r.OverlayFailedTiles, failedTiles(i+1, o)...)
	}
	return r
}

func failedTiles(layer int, results fetch.Results) []FailedTile {
	var failed []FailedTile
	for _, c := range results.Failed() {
		ft := FailedTile{Layer: layer, Coord: c}
		if err := results[c].Err; err != nil {
			ft.Error = err.Error()
			var fe *fetch.FetchError
			if errors.As(err, &fe) {
				ft.URL = fe.URL
				if fe.StatusCode != 0 {
					status := fe.StatusCode
					ft.StatusCode = &status
				}
			}
		}
		failed = append(failed, ft)
	}
	return failed
}

// Err returns a *TileError when no tile at all could be fetched.
func (r *Report) Err() error {
	if r.TotalTiles > 0 && r.SuccessfulTiles == 0 {
		return &TileError{
			Message:         "No tiles could be downloaded successfully",
			FailedTiles:     r.FailedTiles,
			SuccessfulTiles: r.SuccessfulTiles,
			TotalTiles:      r.TotalTiles,
		}
	}
	return nil
}

// TileError represents errors related to tile downloading
type TileError struct {
	Message         string
	FailedTiles     []FailedTile
	SuccessfulTiles int
	TotalTiles      int
}

func (e *TileError) Error() string {
	return fmt.Sprintf("%s (%d/%d failed)", e.Message, len(e.FailedTiles), e.TotalTiles)
}
