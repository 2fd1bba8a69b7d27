package fetch

import (
	"context"
	"errors"
	"image"
	"sort"

	"golang.org/x/sync/semaphore"

	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/pkg/tile"
)

// Result is the outcome of one tile fetch: either Image or Err is set.
type Result struct {
	Image *image.RGBA
	Err   error
}

// Results maps every requested coordinate to its outcome.
type Results map[tile.Coordinate]Result

// Images returns the successfully decoded tiles.
func (r Results) Images() map[tile.Coordinate]*image.RGBA {
	images := make(map[tile.Coordinate]*image.RGBA, len(r))
	for c, res := range r {
		if res.Err == nil && res.Image != nil {
			images[c] = res.Image
		}
	}
	return images
}

// Succeeded counts the tiles that were decoded.
func (r Results) Succeeded() int {
	n := 0
	for _, res := range r {
		if res.Err == nil && res.Image != nil {
			n++
		}
	}
	return n
}

// Failed returns the failed coordinates in row-major order.
func (r Results) Failed() []tile.Coordinate {
	var failed []tile.Coordinate
	for c, res := range r {
		if res.Err != nil || res.Image == nil {
			failed = append(failed, c)
		}
	}
	sort.Slice(failed, func(i, j int) bool {
		if failed[i].Y != failed[j].Y {
			return failed[i].Y < failed[j].Y
		}
		return failed[i].X < failed[j].X
	})
	return failed
}

type tileResult struct {
	coord tile.Coordinate
	Result
}

// FetchAll fetches every coordinate from src and returns once all attempts
// have resolved. A failed tile is recorded and never stops the others.
// maxConcurrent bounds the fetches in flight; zero or less means unbounded.
func FetchAll(ctx context.Context, src Source, coords []tile.Coordinate, maxConcurrent int) Results {
	var sem *semaphore.Weighted
	if maxConcurrent > 0 {
		sem = semaphore.NewWeighted(int64(maxConcurrent))
	}

	seen := make(map[tile.Coordinate]bool, len(coords))
	resultChan := make(chan tileResult, len(coords))
	total := 0

	for _, c := range coords {
		if seen[c] {
			continue
		}
		seen[c] = true
		total++

		go func(c tile.Coordinate) {
			if sem != nil {
				if err := sem.Acquire(ctx, 1); err != nil {
					resultChan <- tileResult{coord: c, Result: Result{Err: &FetchError{Coord: c, Err: err}}}
					return
				}
				defer sem.Release(1)
			}

			img, err := fetchOne(ctx, src, c)
			resultChan <- tileResult{coord: c, Result: Result{Image: img, Err: err}}
		}(c)
	}

	results := make(Results, total)
	for processed := 0; processed < total; processed++ {
		res := <-resultChan
		if res.Err != nil && !errors.Is(res.Err, context.Canceled) {
			logging.Logger().Warn("tile fetch failed", "tile", res.coord.String(), "err", res.Err)
		}
		results[res.coord] = res.Result
	}

	logging.Logger().Debug("tile fetch complete", "total", total, "failed", total-results.Succeeded())
	return results
}

func fetchOne(ctx context.Context, src Source, c tile.Coordinate) (*image.RGBA, error) {
	if err := ctx.Err(); err != nil {
		return nil, &FetchError{Coord: c, Err: err}
	}
	img, err := src.FetchTile(ctx, c)
	if err != nil {
		var fe *FetchError
		if !errors.As(err, &fe) {
			err = &FetchError{Coord: c, Err: err}
		}
		return nil, err
	}
	if img == nil {
		return nil, &FetchError{Coord: c, Err: errors.New("source returned no image")}
	}
	return img, nil
}
