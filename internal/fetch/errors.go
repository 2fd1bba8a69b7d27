package fetch

import (
	"fmt"

	"github.com/kiesman99/globestitch/pkg/tile"
)

// FetchError records why one tile could not be retrieved or decoded.
type FetchError struct {
	Coord      tile.Coordinate
	URL        string
	StatusCode int // 0 when no HTTP response was received
	Err        error
}

func (e *FetchError) Error() string {
	switch {
	case e.StatusCode != 0:
		return fmt.Sprintf("tile %s: %s: HTTP %d", e.Coord, e.URL, e.StatusCode)
	case e.URL != "":
		return fmt.Sprintf("tile %s: %s: %v", e.Coord, e.URL, e.Err)
	}
	return fmt.Sprintf("tile %s: %v", e.Coord, e.Err)
}

func (e *FetchError) Unwrap() error { return e.Err }

// retryable reports whether another attempt could succeed.
func (e *FetchError) retryable() bool {
	if e.StatusCode == 0 {
		return e.Err != nil && !isDecodeError(e.Err)
	}
	return e.StatusCode == 429 || e.StatusCode >= 500
}

type decodeError struct{ err error }

func (e *decodeError) Error() string { return "decode: " + e.err.Error() }
func (e *decodeError) Unwrap() error { return e.err }

func isDecodeError(err error) bool {
	_, ok := err.(*decodeError)
	return ok
}
