// Package catalog abstracts the music-catalog metadata service used to turn
// catalog track links into searchable "name artist" queries.
package catalog

import "context"

// Track is the metadata needed to build a search query for a catalog track.
type Track struct {
	Name   string
	Artist string
}

type Client interface {
	GetTrack(ctx context.Context, id string) (Track, error)
}
