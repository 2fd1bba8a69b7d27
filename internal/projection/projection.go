// Package projection resamples world rasters between Web-Mercator and
// equirectangular (plate carrée) projections.
//
// Both projections map longitude linearly onto x, so only rows move. Row
// positions are in a raster of height H with row 0 at the top (north);
// the formulas are symmetric about the equator, so a bottom-up raster
// resamples identically.
package projection

import (
	"image"
	"math"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// maxSin keeps ln((1+s)/(1-s)) finite at the poles.
const maxSin = 1 - 1e-12

// Parameters is everything the row mappings need.
type Parameters struct {
	ImageHeight float64
}

// Unproject maps a Mercator row to the equirectangular row at the same latitude.
func Unproject(y float64, p Parameters) float64 {
	h := p.ImageHeight
	t := -((y / h) - 0.5) // -0.5..0.5
	lat := 90 - 360*math.Atan(math.Exp(t*2*math.Pi))/math.Pi
	return (lat + 90) * h / 180
}

// Project maps an equirectangular row to the Mercator row at the same
// latitude. Rows at the poles map far outside the raster but stay finite.
func Project(y float64, p Parameters) float64 {
	h := p.ImageHeight
	t := -((y / h) - 0.5)
	s := math.Sin(t * math.Pi) // sin(latitude)
	if s > maxSin {
		s = maxSin
	} else if s < -maxSin {
		s = -maxSin
	}
	return h * (0.5 - math.Log((1+s)/(1-s))/(4*math.Pi))
}

// Direction selects which projection the resampled raster is in.
type Direction int

const (
	// ToEquirectangular turns a Mercator raster into a globe texture.
	ToEquirectangular Direction = iota
	// ToMercator turns an equirectangular raster back into Mercator.
	ToMercator
)

func (d Direction) String() string {
	if d == ToMercator {
		return "mercator"
	}
	return "equirectangular"
}

// ParseDirection parses "equirectangular" or "mercator".
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "", "equirectangular", "plate-carree":
		return ToEquirectangular, true
	case "mercator":
		return ToMercator, true
	}
	return ToEquirectangular, false
}

// sourceRow returns the source row sampled for destination row y. A warp
// pulls from the source, so building an equirectangular raster samples
// Mercator rows through Project and vice versa.
func (d Direction) sourceRow(y float64, p Parameters) float64 {
	if d == ToMercator {
		return Unproject(y, p)
	}
	return Project(y, p)
}

// SourceRows returns, for each destination row of a raster of the given
// height, the fractional source row it samples, clamped to [0, height-1].
// Row height/2 is the equator and samples itself exactly.
func SourceRows(height int, d Direction) []float64 {
	p := Parameters{ImageHeight: float64(height)}
	maxRow := float64(height - 1)

	rows := make([]float64, height)
	for y := range rows {
		sy := d.sourceRow(float64(y), p)
		switch {
		case math.IsNaN(sy):
			if y < height/2 {
				sy = 0
			} else {
				sy = maxRow
			}
		case sy < 0:
			sy = 0
		case sy > maxRow:
			sy = maxRow
		}
		rows[y] = sy
	}
	return rows
}

// Resample returns a raster of the same bounds as src, re-projected in
// direction d. Destination rows are spread over workers goroutines; zero
// or less uses GOMAXPROCS.
func Resample(src *image.RGBA, d Direction, workers int) *image.RGBA {
	b := src.Bounds()
	dst := image.NewRGBA(b)
	if b.Empty() {
		return dst
	}
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}

	rows := SourceRows(b.Dy(), d)

	var g errgroup.Group
	g.SetLimit(workers)
	chunk := (len(rows) + workers - 1) / workers
	for start := 0; start < len(rows); start += chunk {
		start := start
		end := min(start+chunk, len(rows))
		g.Go(func() error {
			for y := start; y < end; y++ {
				resampleRow(dst, src, y, rows[y])
			}
			return nil
		})
	}
	_ = g.Wait() // row workers never fail

	return dst
}

// resampleRow fills destination row y by bilinear interpolation at
// (x, sy). x maps to itself, so the horizontal weight is always zero and
// only the two neighbouring source rows contribute.
func resampleRow(dst, src *image.RGBA, y int, sy float64) {
	b := src.Bounds()
	y0 := int(math.Floor(sy))
	y1 := min(y0+1, b.Dy()-1)
	f := sy - float64(y0)

	w := b.Dx() * 4
	row0 := src.Pix[y0*src.Stride : y0*src.Stride+w]
	row1 := src.Pix[y1*src.Stride : y1*src.Stride+w]
	out := dst.Pix[y*dst.Stride : y*dst.Stride+w]

	if f == 0 {
		copy(out, row0)
		return
	}
	for i := range out {
		v := float64(row0[i])*(1-f) + float64(row1[i])*f
		out[i] = uint8(v + 0.5)
	}
}
