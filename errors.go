package mapview

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidMapSize is returned by New when either map dimension is not
	// a positive finite number.
	ErrInvalidMapSize = errors.New("mapview: map size must be positive")

	// ErrInvalidZoom is returned by New when MaxZoom is NaN or infinite.
	ErrInvalidZoom = errors.New("mapview: max zoom must be finite")

	// ErrNilLayer is returned by AddLayer for a nil layer.
	ErrNilLayer = errors.New("mapview: nil layer")

	// ErrLayerAttached is returned by AddLayer when the layer already
	// belongs to another viewport.
	ErrLayerAttached = errors.New("mapview: layer is attached to another viewport")

	// ErrClosed is returned by operations on a closed viewport.
	ErrClosed = errors.New("mapview: viewport closed")

	// ErrFetch wraps resource fetch failures (bad status, decode errors).
	ErrFetch = errors.New("mapview: fetch failed")

	// errLayerDisposed is returned by Init when the layer was removed before
	// its resources were published.
	errLayerDisposed = errors.New("mapview: layer disposed during init")
)

// LayerError reports a failed layer initialization. It is delivered through
// Options.OnError; the layer stays registered but is never drawn.
type LayerError struct {
	Layer Layer
	Err   error
}

func (e *LayerError) Error() string {
	return fmt.Sprintf("mapview: init %T: %v", e.Layer, e.Err)
}

func (e *LayerError) Unwrap() error { return e.Err }
