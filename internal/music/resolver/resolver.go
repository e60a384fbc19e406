// Package resolver turns a user query (free text, a video link or a catalog
// track link) into a single playable item.
package resolver

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kp4103/Vibe/internal/music/catalog"
	"github.com/Kp4103/Vibe/internal/music/search"
	"github.com/Kp4103/Vibe/internal/music/track"
	"github.com/Kp4103/Vibe/pkg/throttle"
)

var (
	ErrMalformedLink = errors.New("could not extract an id from the link")
	ErrLiveContent   = errors.New("live broadcasts are not supported")
	ErrNoResult      = errors.New("no playable result for query")
	ErrUpstream      = errors.New("upstream service failure")
)

// Candidates shorter than this are assumed to be previews or stubs and are
// skipped during free-text selection.
const minTrackDuration = 10 * time.Second

const searchLimit = 3

// VideoMetadata fetches direct metadata for a canonical video link.
// Implemented by the stream layer's YouTube client.
type VideoMetadata interface {
	VideoInfo(ctx context.Context, videoURL string) (item track.Item, live bool, err error)
}

type Resolver struct {
	search  search.Client
	catalog catalog.Client // nil when catalog credentials are absent
	meta    VideoMetadata
	lim     *throttle.Limiter
	log     zerolog.Logger
}

func New(searchClient search.Client, catalogClient catalog.Client, meta VideoMetadata, lim *throttle.Limiter, log zerolog.Logger) *Resolver {
	return &Resolver{
		search:  searchClient,
		catalog: catalogClient,
		meta:    meta,
		lim:     lim,
		log:     log.With().Str("component", "resolver").Logger(),
	}
}

// Resolve maps a query to exactly one playable item. It is stateless across
// calls; the only shared state is the process-wide request limiter.
func (r *Resolver) Resolve(ctx context.Context, query string) (track.Item, error) {
	query = strings.TrimSpace(query)

	switch {
	case IsSpotifyTrackURL(query):
		return r.resolveCatalogLink(ctx, query)
	case IsYouTubeURL(query):
		return r.resolveVideoLink(ctx, query)
	default:
		return r.resolveText(ctx, query)
	}
}

func (r *Resolver) resolveCatalogLink(ctx context.Context, link string) (track.Item, error) {
	id, ok := ExtractSpotifyTrackID(link)
	if !ok {
		return track.Item{}, fmt.Errorf("%w: %s", ErrMalformedLink, link)
	}
	if r.catalog == nil {
		return track.Item{}, fmt.Errorf("%w: catalog client not configured", ErrUpstream)
	}

	var meta catalog.Track
	err := throttle.WithRetry(ctx, r.lim, func() error {
		var err error
		meta, err = r.catalog.GetTrack(ctx, id)
		return err
	})
	if err != nil {
		r.log.Warn().Err(err).Str("track_id", id).Msg("catalog lookup failed")
		return track.Item{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	r.log.Debug().Str("track_id", id).Str("name", meta.Name).Str("artist", meta.Artist).
		Msg("catalog track resolved, searching by title")
	return r.resolveText(ctx, strings.TrimSpace(meta.Name+" "+meta.Artist))
}

func (r *Resolver) resolveVideoLink(ctx context.Context, link string) (track.Item, error) {
	canonical, ok := CanonicalVideoURL(link)
	if !ok {
		return track.Item{}, fmt.Errorf("%w: %s", ErrMalformedLink, link)
	}

	var (
		item track.Item
		live bool
	)
	err := throttle.WithRetry(ctx, r.lim, func() error {
		var err error
		item, live, err = r.meta.VideoInfo(ctx, canonical)
		return err
	})
	if err == nil {
		if live {
			return track.Item{}, fmt.Errorf("%w: %s", ErrLiveContent, canonical)
		}
		return item, nil
	}

	// Direct metadata is flaky for some regions and age-gated videos; fall
	// back to a text search on the best string we have for this link.
	fallback := item.Title
	if fallback == "" {
		fallback, _ = ExtractVideoID(link)
	}
	r.log.Warn().Err(err).Str("url", canonical).Str("fallback", fallback).
		Msg("direct metadata fetch failed, falling back to search")
	return r.resolveText(ctx, fallback)
}

func (r *Resolver) resolveText(ctx context.Context, text string) (track.Item, error) {
	if text == "" {
		return track.Item{}, ErrNoResult
	}

	var candidates []search.Candidate
	err := throttle.WithRetry(ctx, r.lim, func() error {
		var err error
		candidates, err = r.search.Search(ctx, text, searchLimit)
		return err
	})
	if err != nil {
		return track.Item{}, fmt.Errorf("%w: %v", ErrUpstream, err)
	}

	for _, c := range candidates {
		if c.Live || c.URL == "" || c.Duration < minTrackDuration {
			continue
		}
		return track.Item{
			Title:     c.Title,
			Author:    c.Channel,
			SourceURL: c.URL,
			Thumbnail: c.Thumb,
			Duration:  c.Duration,
		}, nil
	}
	return track.Item{}, fmt.Errorf("%w: %q", ErrNoResult, text)
}
