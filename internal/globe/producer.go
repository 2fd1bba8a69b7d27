// Package globe turns a slippy-tile service into an equirectangular globe
// texture: fetch, composite, reproject, publish.
package globe

import (
	"context"
	"fmt"
	"image"
	"sync"
	"time"

	lru "github.com/hashicorp/golang-lru/v2"
	"golang.org/x/image/draw"

	"github.com/kiesman99/globestitch/internal/fetch"
	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/internal/projection"
	"github.com/kiesman99/globestitch/internal/stitcher"
	"github.com/kiesman99/globestitch/pkg/tile"
)

// State is the progress of the current pass.
type State int

const (
	Idle State = iota
	TilesRequested
	Composited
	Reprojected
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case TilesRequested:
		return "tiles-requested"
	case Composited:
		return "composited"
	case Reprojected:
		return "reprojected"
	case Failed:
		return "failed"
	}
	return fmt.Sprintf("State(%d)", int(s))
}

// Texture is a published raster and how it was made.
type Texture struct {
	Image       *image.RGBA
	Grid        *tile.Grid
	Report      *stitcher.Report
	Projection  projection.Direction
	Reprojected bool
	Elapsed     time.Duration
}

// SourceFactory creates the tile source for a template.
type SourceFactory func(tmpl *tile.Template) (fetch.Source, error)

// maxSources bounds the HTTP sources HTTPSources keeps alive.
const maxSources = 32

// HTTPSources returns a factory building HTTP tile sources with opts. The
// most recently used sources are kept per template so their cache and rate
// limit span passes.
func HTTPSources(opts *fetch.Options) SourceFactory {
	var mu sync.Mutex
	sources, _ := lru.New[string, *fetch.HTTPSource](maxSources)

	return func(tmpl *tile.Template) (fetch.Source, error) {
		mu.Lock()
		defer mu.Unlock()
		if src, ok := sources.Get(tmpl.String()); ok {
			return src, nil
		}
		src, err := fetch.NewHTTPSource(tmpl, opts)
		if err != nil {
			return nil, err
		}
		sources.Add(tmpl.String(), src)
		return src, nil
	}
}

// Option configures a Producer.
type Option func(*Producer)

// WithPublish registers the display collaborator called with every
// published texture.
func WithPublish(fn func(*Texture)) Option {
	return func(p *Producer) { p.onPublish = fn }
}

// WithStateHook registers a callback for state transitions of current passes.
func WithStateHook(fn func(State)) Option {
	return func(p *Producer) { p.onState = fn }
}

// Producer owns one texture target. At most one pass runs at a time: a new
// request cancels the pass in flight and waits for it to unwind.
type Producer struct {
	newSource SourceFactory
	onPublish func(*Texture)
	onState   func(State)

	mu      sync.Mutex
	state   State
	pass    uint64
	cancel  context.CancelFunc
	done    chan struct{}
	texture *Texture
}

// NewProducer creates an idle producer.
func NewProducer(newSource SourceFactory, opts ...Option) *Producer {
	p := &Producer{newSource: newSource}
	for _, opt := range opts {
		opt(p)
	}
	return p
}

// State returns the state of the latest pass.
func (p *Producer) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Texture returns the last published texture, or nil.
func (p *Producer) Texture() *Texture {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.texture
}

// Close cancels the pass in flight, if any, and waits for it to finish.
func (p *Producer) Close() {
	p.mu.Lock()
	cancel, done := p.cancel, p.done
	p.mu.Unlock()

	if cancel != nil {
		cancel()
		<-done
	}
}

// Produce runs one pass for cfg and publishes its texture. Tile failures
// leave blank cells and are listed in the texture's report; only a bad
// configuration or cancellation returns an error, and then nothing is
// published.
func (p *Producer) Produce(ctx context.Context, cfg Config) (*Texture, error) {
	grid, templates, err := cfg.Validate()
	if err != nil {
		return nil, err
	}

	sources := make([]fetch.Source, len(templates))
	for i, tmpl := range templates {
		if sources[i], err = p.newSource(tmpl); err != nil {
			return nil, fmt.Errorf("failed to create tile source for %s: %w", tmpl, err)
		}
	}

	ctx, id, finish, err := p.begin(ctx)
	if err != nil {
		return nil, err
	}
	defer finish()

	start := time.Now()
	log := logging.Logger().With("pass", id, "zoom", grid.Zoom, "edge", grid.Edge)
	if !grid.CoversWorld() {
		log.Warn("edge is not a power-of-two multiple of the tile size; the world fills only part of the raster",
			"world", tile.WorldPixels(grid.Zoom), "raster", grid.Bounds().Dx())
	}

	// Idle -> TilesRequested
	p.setState(id, TilesRequested)
	coords := grid.Tiles()
	log.Info("requesting tiles", "tiles", len(coords), "template", templates[0].String())

	// Base and overlay layers share one join.
	layers := make([]fetch.Results, len(sources))
	var wg sync.WaitGroup
	for i, src := range sources {
		i, src := i, src
		wg.Add(1)
		go func() {
			defer wg.Done()
			layers[i] = fetch.FetchAll(ctx, src, coords, cfg.MaxConcurrentFetches)
		}()
	}
	wg.Wait()
	if err := ctx.Err(); err != nil {
		p.setState(id, Failed)
		return nil, err
	}

	// TilesRequested -> Composited, only after every fetch has resolved.
	report := stitcher.NewReport(layers[0], layers[1:]...)
	if len(report.FailedTiles) > 0 {
		log.Warn("tiles missing from composite", "failed", len(report.FailedTiles), "total", report.TotalTiles)
	}
	if len(report.OverlayFailedTiles) > 0 {
		log.Warn("overlay tiles missing from composite", "failed", len(report.OverlayFailedTiles))
	}
	overlays := make([]stitcher.Layer, 0, len(layers)-1)
	for _, l := range layers[1:] {
		overlays = append(overlays, l.Images())
	}
	composite := stitcher.Composite(grid, layers[0].Images(), overlays...)
	p.setState(id, Composited)

	tex := &Texture{
		Image:      composite,
		Grid:       grid,
		Report:     report,
		Projection: projection.ToMercator,
	}

	// Composited -> Reprojected, exactly once over the world.
	if !cfg.SkipReprojection {
		tex.Image = resampleWorld(grid, composite, cfg.Projection, cfg.ResampleWorkers)
		tex.Projection = cfg.Projection
		tex.Reprojected = true
	}
	tex.Elapsed = time.Since(start)

	if err := p.publish(ctx, id, tex); err != nil {
		return nil, err
	}
	log.Info("texture published", "width", tex.Image.Rect.Dx(), "height", tex.Image.Rect.Dy(),
		"failed", len(report.FailedTiles), "elapsed", tex.Elapsed)
	return tex, nil
}

// resampleWorld reprojects the world region of the composite. Cells past
// the edge of the world stay blank.
func resampleWorld(grid *tile.Grid, composite *image.RGBA, d projection.Direction, workers int) *image.RGBA {
	if grid.CoversWorld() {
		return projection.Resample(composite, d, workers)
	}
	world := grid.World()
	warped := projection.Resample(composite.SubImage(world).(*image.RGBA), d, workers)

	dst := image.NewRGBA(composite.Rect)
	draw.Draw(dst, world, warped, world.Min, draw.Src)
	return dst
}

// begin cancels the pass in flight, waits for it, and registers a new one.
// A pass's done channel closes only after every earlier pass has finished.
func (p *Producer) begin(parent context.Context) (context.Context, uint64, func(), error) {
	ctx, cancel := context.WithCancel(parent)
	done := make(chan struct{})

	p.mu.Lock()
	prevCancel, prevDone := p.cancel, p.done
	p.pass++
	id := p.pass
	p.cancel, p.done = cancel, done
	p.mu.Unlock()

	finish := func() {
		cancel()
		p.mu.Lock()
		if p.pass == id {
			p.cancel, p.done = nil, nil
		}
		p.mu.Unlock()
		close(done)
	}

	if prevCancel != nil {
		logging.Logger().Debug("cancelling superseded pass", "pass", id-1)
		prevCancel()
		select {
		case <-prevDone:
		case <-ctx.Done():
			// This pass is over, but the one before it may still be
			// unwinding. Later passes wait on done, so close it only
			// once the predecessor has finished.
			go func() {
				<-prevDone
				finish()
			}()
			return nil, 0, nil, ctx.Err()
		}
	}
	return ctx, id, finish, nil
}

func (p *Producer) setState(id uint64, s State) {
	p.mu.Lock()
	if p.pass != id {
		p.mu.Unlock()
		return
	}
	p.state = s
	hook := p.onState
	p.mu.Unlock()

	if hook != nil {
		hook(s)
	}
}

// publish replaces the texture unless the pass was cancelled or superseded.
func (p *Producer) publish(ctx context.Context, id uint64, tex *Texture) error {
	p.mu.Lock()
	if err := ctx.Err(); err != nil || p.pass != id {
		if p.pass == id {
			p.state = Failed
		}
		p.mu.Unlock()
		if err == nil {
			err = context.Canceled
		}
		return err
	}
	p.texture = tex
	if tex.Reprojected {
		p.state = Reprojected
	}
	hook, onPublish := p.onState, p.onPublish
	p.mu.Unlock()

	if hook != nil && tex.Reprojected {
		hook(Reprojected)
	}
	if onPublish != nil {
		onPublish(tex)
	}
	return nil
}
