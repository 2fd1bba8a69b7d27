package server

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/go-chi/chi/v5/middleware"
	lru "github.com/hashicorp/golang-lru/v2"

	"github.com/kiesman99/globestitch/internal/api"
	"github.com/kiesman99/globestitch/internal/globe"
	"github.com/kiesman99/globestitch/internal/logging"
	"github.com/kiesman99/globestitch/internal/projection"
	"github.com/kiesman99/globestitch/internal/stitcher"
	"github.com/kiesman99/globestitch/pkg/tile"
)

// DefaultMaxEdge caps the texture size a client may request. It never
// exceeds globe.MaxEdgePixels.
const DefaultMaxEdge = 8192

// DefaultMaxTargets bounds the producers a server keeps.
const DefaultMaxTargets = 64

// target identifies one texture a client can ask for. Requests for the same
// target share a producer, so a newer request supersedes an older one.
type target struct {
	size       int
	url        string
	overlays   string
	order      tile.RowOrder
	projection projection.Direction
}

// Server implements the ServerInterface from the generated API
type Server struct {
	startTime time.Time
	version   string
	newSource globe.SourceFactory
	defaults  globe.Config
	maxEdge   int

	mu         sync.Mutex
	maxTargets int
	producers  *lru.Cache[target, *globe.Producer]
}

// Option configures a Server.
type Option func(*Server)

// WithDefaults sets the configuration used for parameters a request omits.
func WithDefaults(cfg globe.Config) Option {
	return func(s *Server) { s.defaults = cfg }
}

// WithMaxEdge sets the largest accepted texture edge.
func WithMaxEdge(n int) Option {
	return func(s *Server) { s.maxEdge = n }
}

// WithMaxTargets sets how many targets keep a producer. The least recently
// used producer is closed when a new target exceeds the limit.
func WithMaxTargets(n int) Option {
	return func(s *Server) { s.maxTargets = n }
}

// NewServer creates a new server instance
func NewServer(version string, newSource globe.SourceFactory, opts ...Option) *Server {
	s := &Server{
		startTime: time.Now(),
		version:   version,
		newSource: newSource,
		defaults:  globe.Config{TargetEdgePixels: globe.DefaultEdgePixels},
		maxEdge:    DefaultMaxEdge,
		maxTargets: DefaultMaxTargets,
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.maxTargets <= 0 {
		s.maxTargets = DefaultMaxTargets
	}
	// Close waits for the pass to unwind, so it must not hold s.mu.
	s.producers, _ = lru.NewWithEvict(s.maxTargets, func(key target, p *globe.Producer) {
		logging.Logger().Debug("closing evicted producer", "size", key.size, "url", key.url)
		go p.Close()
	})
	return s
}

// Close cancels every pass in flight.
func (s *Server) Close() {
	s.mu.Lock()
	producers := s.producers.Values()
	s.mu.Unlock()

	for _, p := range producers {
		p.Close()
	}
}

// GetHealth implements the health check endpoint
func (s *Server) GetHealth(w http.ResponseWriter, r *http.Request) {
	uptime := int(time.Since(s.startTime).Seconds())

	response := api.HealthResponse{
		Status:    api.Healthy,
		Timestamp: time.Now(),
		Uptime:    &uptime,
		Version:   &s.version,
	}

	s.writeJSON(w, http.StatusOK, response)
}

// GetGlobe renders the globe texture for the requested target as PNG.
func (s *Server) GetGlobe(w http.ResponseWriter, r *http.Request, params api.GetGlobeParams) {
	requestID := requestID(r)

	cfg, field, err := s.globeConfig(params)
	if err != nil {
		s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
		return
	}
	if _, _, err := cfg.Validate(); err != nil {
		var ce *globe.ConfigError
		if errors.As(err, &ce) {
			field = ce.Field
		}
		s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
		return
	}

	tex, err := s.producer(cfg).Produce(r.Context(), cfg)
	if err != nil {
		s.handleProduceError(w, r, err, &requestID)
		return
	}
	if err := tex.Report.Err(); err != nil {
		s.handleProduceError(w, r, err, &requestID)
		return
	}

	data, err := tile.EncodePNG(tex.Image)
	if err != nil {
		s.writeErrorResponse(w, http.StatusInternalServerError, "ENCODING_ERROR",
			"Failed to encode texture", &requestID, nil)
		return
	}

	w.Header().Set("Content-Type", "image/png")
	w.Header().Set("X-Request-ID", requestID)
	w.Header().Set("X-Tiles-Total", strconv.Itoa(tex.Report.TotalTiles))
	w.Header().Set("X-Tiles-Failed", strconv.Itoa(len(tex.Report.FailedTiles)))
	w.Header().Set("X-Zoom", strconv.Itoa(tex.Grid.Zoom))
	w.Header().Set("Content-Length", strconv.Itoa(len(data)))

	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(data); err != nil {
		logging.Logger().Error("failed to write response", "request_id", requestID, "error", err)
	}
}

// GetTileUrl resolves a template for one tile without fetching it.
func (s *Server) GetTileUrl(w http.ResponseWriter, r *http.Request, z int, x int, y int, params api.GetTileUrlParams) {
	requestID := requestID(r)

	raw := s.defaults.TileTemplateURL
	if params.Url != nil {
		raw = *params.Url
	}
	if raw == "" {
		raw = tile.DefaultTemplate
	}
	tmpl, err := tile.ParseTemplate(raw)
	if err != nil {
		s.writeValidationErrorResponse(w, "url", err.Error(), &requestID)
		return
	}

	c := tile.Coordinate{X: x, Y: y, Z: z}
	if !c.Valid() || z > tile.MaxZoom {
		s.writeValidationErrorResponse(w, "tile",
			fmt.Sprintf("tile %s is outside the zoom %d grid", c, z), &requestID)
		return
	}

	u, err := tmpl.URL(c)
	if err != nil {
		s.writeValidationErrorResponse(w, "url", err.Error(), &requestID)
		return
	}

	response := api.TileUrlResponse{Tile: c.String(), Url: u}
	if host := tmpl.Shard(x, y); host != "" {
		response.Host = &host
	}
	s.writeJSON(w, http.StatusOK, response)
}

// globeConfig merges request parameters over the server defaults. On error
// it also names the offending parameter.
func (s *Server) globeConfig(params api.GetGlobeParams) (globe.Config, string, error) {
	cfg := s.defaults
	if cfg.TargetEdgePixels == 0 {
		cfg.TargetEdgePixels = globe.DefaultEdgePixels
	}

	if params.Size != nil {
		cfg.TargetEdgePixels = *params.Size
	}
	if cfg.TargetEdgePixels < tile.Size {
		return cfg, "size", fmt.Errorf("size must be at least %d", tile.Size)
	}
	if s.maxEdge > 0 && cfg.TargetEdgePixels > s.maxEdge {
		return cfg, "size", fmt.Errorf("size must not exceed %d", s.maxEdge)
	}

	if params.Url != nil {
		cfg.TileTemplateURL = *params.Url
	}
	if params.Overlay != nil {
		cfg.OverlayTemplateURLs = *params.Overlay
	}

	if params.RowOrder != nil {
		order, err := tile.ParseRowOrder(string(*params.RowOrder))
		if err != nil {
			return cfg, "row_order", err
		}
		cfg.RowOrder = order
	}

	if params.Projection != nil {
		d, ok := projection.ParseDirection(string(*params.Projection))
		if !ok {
			return cfg, "projection", fmt.Errorf("unknown projection %q (want equirectangular or mercator)", *params.Projection)
		}
		cfg.Projection = d
	}

	return cfg, "", nil
}

// producer returns the producer owning cfg's target, creating it on first use.
func (s *Server) producer(cfg globe.Config) *globe.Producer {
	key := target{
		size:       cfg.TargetEdgePixels,
		url:        cfg.TileTemplateURL,
		overlays:   strings.Join(cfg.OverlayTemplateURLs, "\n"),
		order:      cfg.RowOrder,
		projection: cfg.Projection,
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	p, ok := s.producers.Get(key)
	if !ok {
		p = globe.NewProducer(s.newSource)
		s.producers.Add(key, p)
	}
	return p
}

// handleProduceError handles errors from a texture pass
func (s *Server) handleProduceError(w http.ResponseWriter, r *http.Request, err error, requestID *string) {
	// Check if it's a tile-related error
	var tileErr *stitcher.TileError
	if errors.As(err, &tileErr) {
		response := api.TileErrorResponse{
			Error:           "TILE_SERVER_ERROR",
			Message:         tileErr.Message,
			SuccessfulTiles: tileErr.SuccessfulTiles,
			TotalTiles:      tileErr.TotalTiles,
			RequestId:       requestID,
		}
		response.FailedTiles = make([]struct {
			Error      string  `json:"error"`
			StatusCode *int    `json:"status_code,omitempty"`
			Tile       string  `json:"tile"`
			Url        *string `json:"url,omitempty"`
		}, len(tileErr.FailedTiles))

		for i, ft := range tileErr.FailedTiles {
			response.FailedTiles[i].Error = ft.Error
			response.FailedTiles[i].StatusCode = ft.StatusCode
			response.FailedTiles[i].Tile = ft.Coord.String()
			if ft.URL != "" {
				u := ft.URL
				response.FailedTiles[i].Url = &u
			}
		}

		s.writeJSON(w, http.StatusBadGateway, response)
		return
	}

	var cfgErr *globe.ConfigError
	if errors.As(err, &cfgErr) {
		s.writeValidationErrorResponse(w, cfgErr.Field, err.Error(), requestID)
		return
	}

	// Check if it's a timeout error
	if errors.Is(err, context.DeadlineExceeded) {
		s.writeErrorResponse(w, http.StatusGatewayTimeout, "TILE_SERVER_TIMEOUT",
			"Tile server requests timed out", requestID, nil)
		return
	}

	if errors.Is(err, context.Canceled) {
		if r.Context().Err() != nil {
			// The client went away; nobody reads the response.
			return
		}
		s.writeErrorResponse(w, http.StatusConflict, "REQUEST_SUPERSEDED",
			"A newer request for the same texture replaced this one", requestID, nil)
		return
	}

	logging.Logger().Error("texture pass failed", "request_id", *requestID, "error", err)
	// Generic internal server error
	s.writeErrorResponse(w, http.StatusInternalServerError, "INTERNAL_ERROR",
		"Internal server error", requestID, nil)
}

// writeErrorResponse writes a standard error response
func (s *Server) writeErrorResponse(w http.ResponseWriter, statusCode int, errorCode, message string, requestID *string, details map[string]interface{}) {
	response := api.ErrorResponse{
		Error:     errorCode,
		Message:   message,
		RequestId: requestID,
	}

	if details != nil {
		response.Details = &details
	}

	s.writeJSON(w, statusCode, response)
}

// writeValidationErrorResponse writes a validation error response
func (s *Server) writeValidationErrorResponse(w http.ResponseWriter, field, message string, requestID *string) {
	if field == "" {
		field = "request"
	}
	response := api.ValidationErrorResponse{
		Error:     api.VALIDATIONERROR,
		Message:   message,
		RequestId: requestID,
		ValidationErrors: []struct {
			Code    *string `json:"code,omitempty"`
			Field   string  `json:"field"`
			Message string  `json:"message"`
		}{
			{
				Field:   field,
				Message: message,
			},
		},
	}

	s.writeJSON(w, http.StatusBadRequest, response)
}

func (s *Server) writeJSON(w http.ResponseWriter, statusCode int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		logging.Logger().Error("failed to encode response", "error", err)
	}
}

// ParamErrorHandler reports parameter binding failures in the API's
// validation error format.
func (s *Server) ParamErrorHandler(w http.ResponseWriter, r *http.Request, err error) {
	requestID := requestID(r)
	field := "request"
	var pe *api.InvalidParamFormatError
	if errors.As(err, &pe) {
		field = pe.ParamName
	}
	s.writeValidationErrorResponse(w, field, err.Error(), &requestID)
}

// requestID returns the ID assigned by the RequestID middleware, or a fresh one.
func requestID(r *http.Request) string {
	if id := middleware.GetReqID(r.Context()); id != "" {
		return id
	}
	return generateRequestID()
}

// generateRequestID generates a unique request ID
func generateRequestID() string {
	return fmt.Sprintf("req_%d", time.Now().UnixNano())
}
