package search

import (
	"context"
	"fmt"
	"time"

	"github.com/raitonoberu/ytsearch"
)

// YouTube implements Client on top of the public YouTube search frontend.
type YouTube struct{}

func NewYouTube() *YouTube {
	return &YouTube{}
}

func (y *YouTube) Search(ctx context.Context, query string, limit int) ([]Candidate, error) {
	if limit <= 0 {
		limit = 3
	}

	s := ytsearch.VideoSearch(query)
	res, err := s.Next()
	if err != nil {
		return nil, fmt.Errorf("youtube search: %w", err)
	}

	out := make([]Candidate, 0, limit)
	for _, v := range res.Videos {
		if len(out) >= limit {
			break
		}
		if v.ID == "" {
			continue
		}

		thumb := ""
		if len(v.Thumbnails) > 0 {
			thumb = v.Thumbnails[len(v.Thumbnails)-1].URL
		}

		out = append(out, Candidate{
			Title:    v.Title,
			Channel:  v.Channel.Title,
			URL:      "https://www.youtube.com/watch?v=" + v.ID,
			Thumb:    thumb,
			Duration: time.Duration(v.Duration) * time.Second,
			// the search frontend reports no duration for live broadcasts
			Live: v.Duration == 0,
		})
	}
	return out, nil
}
