package track

import (
	"fmt"
	"time"
)

// Item describes one resolved, playable track. Items are values; the player
// swaps in a whole new Item when it substitutes an alternative, it never
// mutates fields of one already in a queue.
type Item struct {
	Title     string
	Author    string
	SourceURL string
	Thumbnail string
	Duration  time.Duration
}

func (i Item) String() string {
	if i.Title == "" {
		return i.SourceURL
	}
	if i.Author == "" {
		return i.Title
	}
	return fmt.Sprintf("%s - %s", i.Title, i.Author)
}

// Quality describes the format the currently open stream was selected with.
// A zero value means unknown.
type Quality struct {
	BitrateKbps int
	Codec       string
	Container   string
}

func (q Quality) Known() bool {
	return q.BitrateKbps != 0 || q.Codec != "" || q.Container != ""
}
