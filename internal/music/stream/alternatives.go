package stream

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"unicode"

	"github.com/Kp4103/Vibe/internal/music/search"
	"github.com/Kp4103/Vibe/internal/music/track"
	"github.com/Kp4103/Vibe/pkg/throttle"
)

const alternativeLimit = 5

// Alternatives is the last streaming tier: search for equivalent uploads of
// the failed item and return the first one that streams. The substituted
// item rides back on Opened.Item so the player can swap it into the queue.
func Alternatives(searchClient search.Client, lim *throttle.Limiter, open func(ctx context.Context, item track.Item) (*Opened, error)) Strategy {
	return func(ctx context.Context, item track.Item) (*Opened, error) {
		query := SanitizeQuery(item.Title + " " + item.Author)
		if query == "" {
			return nil, errors.New("no usable query for alternative lookup")
		}

		if lim != nil {
			if err := lim.Wait(ctx); err != nil {
				return nil, err
			}
		}

		candidates, err := searchClient.Search(ctx, query, alternativeLimit)
		if err != nil {
			return nil, fmt.Errorf("alternative search: %w", err)
		}

		var errs []error
		for _, c := range candidates {
			if c.URL == "" || c.Live || c.URL == item.SourceURL {
				continue
			}

			alt := track.Item{
				Title:     c.Title,
				Author:    c.Channel,
				SourceURL: c.URL,
				Thumbnail: c.Thumb,
				Duration:  c.Duration,
			}
			opened, err := open(ctx, alt)
			if err == nil {
				return opened, nil
			}
			errs = append(errs, err)
		}

		if len(errs) > 0 {
			return nil, fmt.Errorf("no alternative streamed for %q: %v", query, errors.Join(errs...))
		}
		return nil, fmt.Errorf("no alternative candidates for %q", query)
	}
}

// SanitizeQuery reduces a title/author pair to a plain search string:
// everything that is not a letter, digit or space becomes a space, and runs
// of whitespace collapse.
func SanitizeQuery(s string) string {
	mapped := strings.Map(func(r rune) rune {
		if unicode.IsLetter(r) || unicode.IsDigit(r) || unicode.IsSpace(r) {
			return r
		}
		return ' '
	}, s)
	return strings.Join(strings.Fields(mapped), " ")
}
