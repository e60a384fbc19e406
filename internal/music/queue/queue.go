package queue

import (
	"slices"
	"sync"

	"github.com/Kp4103/Vibe/internal/music/track"
)

const (
	DefaultVolume = 0.50
	MinVolume     = 0.01
	MaxVolume     = 1.00
)

// Queue holds the per-guild playback state: the ordered track list, the
// stored volume fraction and the playing flag. Index 0 is the track that is
// playing or about to play. All methods are safe for concurrent use.
type Queue struct {
	mu      sync.Mutex
	items   []track.Item
	volume  float64
	playing bool
	quality track.Quality
}

func New() *Queue {
	return &Queue{volume: DefaultVolume}
}

// Enqueue appends an item to the tail.
func (q *Queue) Enqueue(it track.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = append(q.items, it)
}

// PeekHead returns the current head without removing it.
func (q *Queue) PeekHead() (track.Item, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) == 0 {
		return track.Item{}, false
	}
	return q.items[0], true
}

// Advance drops the head item.
func (q *Queue) Advance() {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items = q.items[1:]
	}
}

// ReplaceHead swaps a new item value into slot 0. Used when the player
// substitutes an unplayable head with a working alternative.
func (q *Queue) ReplaceHead(it track.Item) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if len(q.items) > 0 {
		q.items[0] = it
	}
}

// Clear empties the queue and marks it not playing.
func (q *Queue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.items = nil
	q.playing = false
}

func (q *Queue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

// Items returns a snapshot copy of the queue.
func (q *Queue) Items() []track.Item {
	q.mu.Lock()
	defer q.mu.Unlock()
	return slices.Clone(q.items)
}

// SetVolume stores a volume fraction, clamped to [MinVolume, MaxVolume].
// Range validation of raw user input happens at the command layer; by the
// time a fraction reaches the queue it is only ever clamped.
func (q *Queue) SetVolume(fraction float64) {
	q.mu.Lock()
	defer q.mu.Unlock()
	if fraction < MinVolume {
		fraction = MinVolume
	}
	if fraction > MaxVolume {
		fraction = MaxVolume
	}
	q.volume = fraction
}

func (q *Queue) Volume() float64 {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.volume
}

func (q *Queue) SetPlaying(playing bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.playing = playing
}

func (q *Queue) IsPlaying() bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.playing
}

// SetQuality records the format metadata of the currently open stream.
func (q *Queue) SetQuality(quality track.Quality) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quality = quality
}

// ClearQuality resets the snapshot when no stream is open.
func (q *Queue) ClearQuality() {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.quality = track.Quality{}
}

func (q *Queue) Quality() (track.Quality, bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	return q.quality, q.quality.Known()
}
