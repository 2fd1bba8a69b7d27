package globe

import (
	"github.com/paulmach/orb"
	"github.com/paulmach/orb/project"

	"github.com/kiesman99/globestitch/internal/projection"
	"github.com/kiesman99/globestitch/pkg/tile"
)

// WorldFile georeferences the texture. An equirectangular texture is
// described in degrees, a Mercator one in EPSG:3857 metres. Either way the
// georeferenced span is the world region of the grid; cells past the edge
// of the world extend it at the same pixel size.
func (t *Texture) WorldFile() []byte {
	w, h := t.Image.Rect.Dx(), t.Image.Rect.Dy()
	world := t.Grid.World()
	worldPx := float64(world.Dx())

	var minX, maxY, spanX, spanY float64
	if t.Reprojected && t.Projection == projection.ToEquirectangular {
		minX, maxY, spanX, spanY = -180, 90, 360, 180
	} else {
		b := t.Grid.Bound()
		nw := project.WGS84.ToMercator(orb.Point{b.Min.Lon(), b.Max.Lat()})
		se := project.WGS84.ToMercator(orb.Point{b.Max.Lon(), b.Min.Lat()})
		minX, maxY = nw.X(), nw.Y()
		spanX, spanY = se.X()-nw.X(), nw.Y()-se.Y()
	}

	// Shift the origin to the raster corner when the world does not start there.
	px, py := spanX/worldPx, spanY/float64(world.Dy())
	minX -= float64(world.Min.X) * px
	maxY += float64(world.Min.Y) * py

	return tile.WorldFile(w, h, minX, maxY, px*float64(w), py*float64(h))
}
