package globe

import (
	"errors"
	"fmt"

	"github.com/kiesman99/globestitch/internal/projection"
	"github.com/kiesman99/globestitch/pkg/tile"
)

const (
	// DefaultEdgePixels is the texture size used when none is configured.
	DefaultEdgePixels = 1024
	// MaxEdgePixels caps the texture size. 16384 px is 4096 tiles and
	// 1 GiB per RGBA raster.
	MaxEdgePixels = 16384
)

// ErrEdgeTooLarge rejects textures above MaxEdgePixels.
var ErrEdgeTooLarge = errors.New("edge exceeds the maximum texture size")

// Config describes one texture target.
type Config struct {
	TargetEdgePixels     int
	TileTemplateURL      string
	OverlayTemplateURLs  []string
	MaxConcurrentFetches int // zero means unbounded
	RowOrder             tile.RowOrder
	Projection           projection.Direction
	SkipReprojection     bool // publish the Mercator composite as is
	ResampleWorkers      int
}

// ConfigError rejects a request before any tile is fetched.
type ConfigError struct {
	Field string
	Err   error
}

func (e *ConfigError) Error() string {
	return fmt.Sprintf("invalid %s: %v", e.Field, e.Err)
}

func (e *ConfigError) Unwrap() error { return e.Err }

// Validate checks the configuration and returns the grid and templates it
// describes.
func (c *Config) Validate() (*tile.Grid, []*tile.Template, error) {
	if c.RowOrder != tile.TopDown && c.RowOrder != tile.BottomUp {
		return nil, nil, &ConfigError{Field: "row order", Err: fmt.Errorf("unknown value %d", c.RowOrder)}
	}
	if c.MaxConcurrentFetches < 0 {
		return nil, nil, &ConfigError{Field: "max concurrent fetches", Err: errors.New("must not be negative")}
	}

	if c.TargetEdgePixels > MaxEdgePixels {
		return nil, nil, &ConfigError{Field: "target edge", Err: fmt.Errorf("%d px: %w", c.TargetEdgePixels, ErrEdgeTooLarge)}
	}
	grid, err := tile.NewGrid(c.TargetEdgePixels, c.RowOrder)
	if err != nil {
		return nil, nil, &ConfigError{Field: "target edge", Err: err}
	}

	raw := c.TileTemplateURL
	if raw == "" {
		raw = tile.DefaultTemplate
	}
	base, err := tile.ParseTemplate(raw)
	if err != nil {
		return nil, nil, &ConfigError{Field: "tile template", Err: err}
	}

	templates := []*tile.Template{base}
	for _, o := range c.OverlayTemplateURLs {
		t, err := tile.ParseTemplate(o)
		if err != nil {
			return nil, nil, &ConfigError{Field: "overlay template", Err: err}
		}
		templates = append(templates, t)
	}

	return grid, templates, nil
}
