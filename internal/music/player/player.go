// Package player drives playback for one guild: it owns the guild's queue,
// the voice session and the single goroutine that streams queue heads in
// order, handling end-of-track and failure transitions.
package player

import (
	"context"
	"errors"
	"slices"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kp4103/Vibe/internal/music/queue"
	"github.com/Kp4103/Vibe/internal/music/stream"
	"github.com/Kp4103/Vibe/internal/music/track"
)

type State int

const (
	StateIdle State = iota
	StateConnecting
	StateStreaming
)

func (s State) String() string {
	switch s {
	case StateConnecting:
		return "Connecting"
	case StateStreaming:
		return "Streaming"
	default:
		return "Idle"
	}
}

type Status string

const (
	StatusPlaying Status = "Playing"
	StatusAdded   Status = "Track Added"
	StatusStopped Status = "Playback Stopped"
	StatusPaused  Status = "Playback Paused"
	StatusResumed Status = "Playback Resumed"
	StatusError   Status = "Error"
)

// Signal is one playback notification. Item is the track the signal is
// about; Requested is the track as originally queued, which differs from
// Item only after an alternative substitution. Listeners match on Requested
// to follow their own enqueue across a substitution.
type Signal struct {
	Status    Status
	Item      track.Item
	Requested track.Item
}

var (
	ErrNothingPlaying = errors.New("no track is currently playing")
	ErrNothingToSkip  = errors.New("nothing queued after the current track")
	ErrInvalidVolume  = errors.New("volume must be between 1 and 100")
)

// DefaultCooldown is the fixed delay before retrying playback after an
// unrecoverable per-item failure.
const DefaultCooldown = 3 * time.Second

// VoiceSession is the narrow surface the player needs from a joined voice
// channel.
type VoiceSession interface {
	OpusSend() chan<- []byte
	Speaking(speaking bool) error
	Disconnect() error
}

// JoinFunc acquires a voice session for a channel.
type JoinFunc func(guildID, channelID string) (VoiceSession, error)

// PlayFunc streams an opened track until it ends, is stopped through the
// controls, or fails. A nil error is a normal end of stream.
type PlayFunc func(ctx context.Context, opened *stream.Opened, send chan<- []byte, ctrl *stream.Controls) error

type Config struct {
	GuildID  string
	Open     stream.OpenFunc
	Play     PlayFunc
	Join     JoinFunc
	Cooldown time.Duration
	Logger   zerolog.Logger
}

// Player is the per-guild playback controller. All queue mutation between
// Start and destruction happens on one playback goroutine; commands only
// flip flags, signal controls or append to the queue.
type Player struct {
	guildID  string
	queue    *queue.Queue
	open     stream.OpenFunc
	play     PlayFunc
	join     JoinFunc
	cooldown time.Duration
	log      zerolog.Logger

	mu        sync.Mutex
	state     State
	session   VoiceSession
	controls  *stream.Controls
	gen       uint64
	running   bool
	closing   bool
	cancel    context.CancelFunc
	history   []track.Item
	onDestroy func()
	listeners []chan Signal
}

func New(cfg Config) *Player {
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = DefaultCooldown
	}
	return &Player{
		guildID:  cfg.GuildID,
		queue:    queue.New(),
		open:     cfg.Open,
		play:     cfg.Play,
		join:     cfg.Join,
		cooldown: cfg.Cooldown,
		log:      cfg.Logger.With().Str("component", "player").Str("guild", cfg.GuildID).Logger(),
	}
}

// Generation identifies the player's current lifetime. Commands snapshot it
// before a slow resolution; EnqueueResolved rejects results from a lifetime
// that a stop has since ended.
func (p *Player) Generation() uint64 {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.gen
}

// EnqueueResolved appends a resolved item if the player still belongs to
// the given generation. The check and the append hold p.mu together so a
// concurrent Stop cannot slip between them and leave a raced item in a
// cleared queue. It reports whether the item was accepted.
func (p *Player) EnqueueResolved(gen uint64, item track.Item) bool {
	p.mu.Lock()
	if p.gen != gen || p.closing {
		p.mu.Unlock()
		return false
	}
	p.queue.Enqueue(item)
	streaming := p.state == StateStreaming
	p.mu.Unlock()

	if streaming {
		p.emit(StatusAdded, item)
	}
	return true
}

// Start launches the playback goroutine if one is not already running. A
// stopped or destroyed player stays dead; callers get a fresh one from the
// registry.
func (p *Player) Start(channelID string) {
	p.mu.Lock()
	if p.running || p.closing {
		p.mu.Unlock()
		return
	}
	p.running = true
	ctx, cancel := context.WithCancel(context.Background())
	p.cancel = cancel
	p.mu.Unlock()

	go p.run(ctx, channelID)
}

func (p *Player) run(ctx context.Context, channelID string) {
	defer p.destroy()

	for {
		if p.isClosing() {
			return
		}

		item, ok := p.queue.PeekHead()
		if !ok {
			p.log.Debug().Msg("queue exhausted")
			return
		}

		p.setState(StateConnecting)
		session, err := p.connect(channelID)
		if err != nil {
			p.log.Error().Err(err).Str("channel", channelID).Msg("voice join failed")
			p.emit(StatusError, item)
			return
		}

		opened, err := p.open(ctx, item)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			p.log.Warn().Err(err).Str("track", item.Title).Msg("track unplayable, dropping")
			p.emit(StatusError, item)
			p.queue.Advance()
			p.wait(ctx, p.cooldown)
			continue
		}

		requested := item
		if opened.Item.SourceURL != item.SourceURL {
			p.log.Info().Str("from", item.Title).Str("to", opened.Item.Title).
				Msg("substituted alternative for unplayable track")
			p.queue.ReplaceHead(opened.Item)
			item = opened.Item
		}

		ctrl := stream.NewControls(p.queue.Volume())
		p.mu.Lock()
		p.controls = ctrl
		p.state = StateStreaming
		p.history = append(p.history, item)
		p.mu.Unlock()

		p.queue.SetQuality(opened.Quality)
		p.queue.SetPlaying(true)
		p.broadcast(Signal{Status: StatusPlaying, Item: item, Requested: requested})
		p.log.Info().Str("track", item.Title).Str("url", item.SourceURL).Msg("streaming")

		err = p.play(ctx, opened, session.OpusSend(), ctrl)
		opened.Cleanup()
		_ = opened.PCM.Close()

		p.mu.Lock()
		p.controls = nil
		p.mu.Unlock()
		p.queue.SetPlaying(false)
		p.queue.ClearQuality()

		if p.isClosing() {
			return
		}
		p.queue.Advance()

		switch {
		case err == nil, errors.Is(err, stream.ErrStopped):
			// normal end of stream, or a skip forcing one
		case errors.Is(err, context.Canceled):
			return
		default:
			p.log.Warn().Err(err).Str("track", item.Title).Msg("stream failed mid-playback")
			p.emit(StatusError, item)
			p.wait(ctx, p.cooldown)
		}
	}
}

func (p *Player) connect(channelID string) (VoiceSession, error) {
	p.mu.Lock()
	session := p.session
	p.mu.Unlock()
	if session != nil {
		return session, nil
	}

	session, err := p.join(p.guildID, channelID)
	if err != nil {
		return nil, err
	}
	_ = session.Speaking(true)

	p.mu.Lock()
	p.session = session
	p.mu.Unlock()
	p.log.Info().Str("channel", channelID).Msg("joined voice channel")
	return session, nil
}

// destroy releases the voice session, clears all state and removes the
// player from its registry. Terminal for this player instance.
func (p *Player) destroy() {
	p.mu.Lock()
	p.gen++
	p.running = false
	p.closing = true
	p.state = StateIdle
	session := p.session
	p.session = nil
	cancel := p.cancel
	p.cancel = nil
	onDestroy := p.onDestroy
	p.mu.Unlock()

	if cancel != nil {
		cancel()
	}
	p.queue.Clear()
	p.queue.ClearQuality()

	if session != nil {
		_ = session.Speaking(false)
		_ = session.Disconnect()
	}
	p.emit(StatusStopped, track.Item{})
	if onDestroy != nil {
		onDestroy()
	}
	p.log.Debug().Msg("player destroyed")
}

// Stop clears the queue, ends any active stream, releases the voice session
// and removes the player from the registry.
func (p *Player) Stop() {
	p.mu.Lock()
	p.gen++ // invalidate in-flight resolutions right away
	p.closing = true
	ctrl := p.controls
	cancel := p.cancel
	running := p.running
	p.mu.Unlock()

	p.queue.Clear()
	if ctrl != nil {
		ctrl.Stop()
	}
	if cancel != nil {
		cancel()
	}
	if !running {
		p.destroy()
	}
}

// Skip forces the current stream to end so the normal end-of-stream
// transition advances the queue. Rejected when nothing is queued behind the
// playing track.
func (p *Player) Skip() error {
	if p.queue.Len() <= 1 {
		return ErrNothingToSkip
	}

	p.mu.Lock()
	ctrl := p.controls
	p.mu.Unlock()
	if ctrl == nil {
		return ErrNothingPlaying
	}
	ctrl.Stop()
	return nil
}

// Pause suspends the active stream without touching the queue.
func (p *Player) Pause() error {
	p.mu.Lock()
	ctrl := p.controls
	p.mu.Unlock()
	if ctrl == nil {
		return ErrNothingPlaying
	}
	ctrl.Pause()
	p.emit(StatusPaused, track.Item{})
	return nil
}

// Resume continues a paused stream.
func (p *Player) Resume() error {
	p.mu.Lock()
	ctrl := p.controls
	p.mu.Unlock()
	if ctrl == nil {
		return ErrNothingPlaying
	}
	ctrl.Resume()
	p.emit(StatusResumed, track.Item{})
	return nil
}

// SetVolume validates a raw percentage and stores it as a fraction. When a
// stream is open the gain changes immediately, otherwise it takes effect on
// the next track.
func (p *Player) SetVolume(percent int) error {
	if percent < 1 || percent > 100 {
		return ErrInvalidVolume
	}
	fraction := float64(percent) / 100

	p.queue.SetVolume(fraction)
	p.mu.Lock()
	ctrl := p.controls
	p.mu.Unlock()
	if ctrl != nil {
		ctrl.SetGain(fraction)
	}
	return nil
}

// Volume returns the stored volume as a percentage.
func (p *Player) Volume() int {
	return int(p.queue.Volume()*100 + 0.5)
}

// NowPlaying returns the current head while a stream is open or paused.
func (p *Player) NowPlaying() (track.Item, bool) {
	p.mu.Lock()
	streaming := p.state == StateStreaming
	p.mu.Unlock()
	if !streaming {
		return track.Item{}, false
	}
	return p.queue.PeekHead()
}

// Queue returns a snapshot of the queued items, head first.
func (p *Player) Queue() []track.Item {
	return p.queue.Items()
}

// History returns a copy of the tracks whose playback started, oldest
// first.
func (p *Player) History() []track.Item {
	p.mu.Lock()
	defer p.mu.Unlock()
	return slices.Clone(p.history)
}

func (p *Player) Quality() (track.Quality, bool) {
	return p.queue.Quality()
}

func (p *Player) IsPlaying() bool {
	return p.queue.IsPlaying()
}

func (p *Player) Paused() bool {
	p.mu.Lock()
	ctrl := p.controls
	p.mu.Unlock()
	return ctrl != nil && ctrl.Paused()
}

func (p *Player) State() State {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.state
}

// Connected reports whether a voice session is currently held.
func (p *Player) Connected() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.session != nil
}

// Subscribe registers a listener for playback signals. Each subscriber gets
// its own buffered channel, so concurrent command invocations do not steal
// each other's signals. Callers must Unsubscribe when done.
func (p *Player) Subscribe() chan Signal {
	ch := make(chan Signal, 10)
	p.mu.Lock()
	p.listeners = append(p.listeners, ch)
	p.mu.Unlock()
	return ch
}

// Unsubscribe removes a listener registered with Subscribe.
func (p *Player) Unsubscribe(ch chan Signal) {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, l := range p.listeners {
		if l == ch {
			p.listeners = append(p.listeners[:i], p.listeners[i+1:]...)
			return
		}
	}
}

func (p *Player) setState(s State) {
	p.mu.Lock()
	p.state = s
	p.mu.Unlock()
}

func (p *Player) isClosing() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.closing
}

func (p *Player) wait(ctx context.Context, d time.Duration) {
	select {
	case <-ctx.Done():
	case <-time.After(d):
	}
}

func (p *Player) emit(s Status, it track.Item) {
	p.broadcast(Signal{Status: s, Item: it, Requested: it})
}

// broadcast sends a signal to all subscribers without blocking; a full
// subscriber buffer drops the signal for that subscriber only.
func (p *Player) broadcast(sig Signal) {
	p.mu.Lock()
	listeners := slices.Clone(p.listeners)
	p.mu.Unlock()

	for _, ch := range listeners {
		select {
		case ch <- sig:
		default:
			p.log.Debug().Str("status", string(sig.Status)).Msg("status signal dropped")
		}
	}
}
