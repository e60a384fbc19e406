// Package stream opens decoded PCM audio for playable items and pushes it
// into a Discord voice connection as opus frames.
//
// Opening is modeled as an ordered chain of strategies. Each strategy is a
// function from an item to an open stream; the chain tries them in sequence
// and the final tier may substitute a different item than the one requested.
package stream

import (
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/Kp4103/Vibe/internal/music/track"
)

// ErrUnplayable is returned once every strategy in a chain has failed.
var ErrUnplayable = errors.New("all streaming strategies failed")

// Opened is an open decoded audio stream for exactly one item. Item carries
// the item actually being played, which differs from the requested one when
// the alternatives tier substituted it. Cleanup must be called exactly once
// after the stream is no longer read.
type Opened struct {
	PCM     io.ReadCloser
	Cleanup func()
	Item    track.Item
	Quality track.Quality
}

// Strategy attempts to open a stream for an item.
type Strategy func(ctx context.Context, item track.Item) (*Opened, error)

// OpenFunc is the player-facing entry point of a strategy chain.
type OpenFunc func(ctx context.Context, item track.Item) (*Opened, error)

// Chain tries each strategy in order and returns the first stream that
// opens. When every strategy fails the combined error wraps ErrUnplayable.
func Chain(strategies ...Strategy) OpenFunc {
	return func(ctx context.Context, item track.Item) (*Opened, error) {
		var errs []error
		for _, s := range strategies {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			opened, err := s(ctx, item)
			if err == nil {
				return opened, nil
			}
			errs = append(errs, err)
		}
		return nil, fmt.Errorf("%w for %q: %v", ErrUnplayable, item.String(), errors.Join(errs...))
	}
}
