package player

import (
	"context"
	"errors"
	"fmt"
	"io"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/Kp4103/Vibe/internal/music/stream"
	"github.com/Kp4103/Vibe/internal/music/track"
)

const testTimeout = 2 * time.Second

func item(title, videoID string) track.Item {
	return track.Item{
		Title:     title,
		Author:    "artist",
		SourceURL: "https://www.youtube.com/watch?v=" + videoID,
		Duration:  3 * time.Minute,
	}
}

type fakeSession struct {
	mu           sync.Mutex
	send         chan []byte
	disconnected bool
}

func newFakeSession() *fakeSession {
	return &fakeSession{send: make(chan []byte, 16)}
}

func (f *fakeSession) OpusSend() chan<- []byte { return f.send }
func (f *fakeSession) Speaking(bool) error     { return nil }

func (f *fakeSession) Disconnect() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.disconnected = true
	return nil
}

func (f *fakeSession) Disconnected() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.disconnected
}

// playScript lets a test decide when and how each simulated stream ends.
type playScript struct {
	started chan track.Item
	finish  chan error
}

func newPlayScript() *playScript {
	return &playScript{
		started: make(chan track.Item, 8),
		finish:  make(chan error),
	}
}

func (s *playScript) play(ctx context.Context, opened *stream.Opened, _ chan<- []byte, ctrl *stream.Controls) error {
	s.started <- opened.Item
	select {
	case err := <-s.finish:
		return err
	case <-ctrl.Stopped():
		return stream.ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (s *playScript) awaitStart(t *testing.T) track.Item {
	t.Helper()
	select {
	case it := <-s.started:
		return it
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for playback to start")
		return track.Item{}
	}
}

func (s *playScript) endStream(t *testing.T, err error) {
	t.Helper()
	select {
	case s.finish <- err:
	case <-time.After(testTimeout):
		t.Fatal("timed out ending simulated stream")
	}
}

func openedFor(it track.Item) *stream.Opened {
	return &stream.Opened{
		PCM:     io.NopCloser(strings.NewReader("")),
		Cleanup: func() {},
		Item:    it,
		Quality: track.Quality{BitrateKbps: 128, Codec: "opus", Container: "webm"},
	}
}

type rig struct {
	reg       *Registry
	script    *playScript
	session   *fakeSession
	mu        sync.Mutex
	joinCalls int
}

func newRig(open stream.OpenFunc) *rig {
	r := &rig{
		script:  newPlayScript(),
		session: newFakeSession(),
	}
	if open == nil {
		open = func(_ context.Context, it track.Item) (*stream.Opened, error) {
			return openedFor(it), nil
		}
	}
	r.reg = NewRegistry(func(guildID string) *Player {
		return New(Config{
			GuildID:  guildID,
			Open:     open,
			Play:     r.script.play,
			Join:     r.joinFake,
			Cooldown: time.Millisecond,
			Logger:   zerolog.Nop(),
		})
	})
	return r
}

func (r *rig) joinFake(_, _ string) (VoiceSession, error) {
	r.mu.Lock()
	r.joinCalls++
	r.mu.Unlock()
	return r.session, nil
}

func (r *rig) joined() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.joinCalls
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(testTimeout)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func TestPlayThroughQueueThenDestroy(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()

	a, b := item("A", "aaaaaaaaaaa"), item("B", "bbbbbbbbbbb")
	if !p.EnqueueResolved(gen, a) || !p.EnqueueResolved(gen, b) {
		t.Fatal("enqueue rejected")
	}
	p.Start("voice-chan")

	got := r.script.awaitStart(t)
	if got.Title != "A" {
		t.Fatalf("first track = %q, want A", got.Title)
	}
	if p.State() != StateStreaming {
		t.Errorf("state = %v, want Streaming", p.State())
	}
	if !p.IsPlaying() {
		t.Error("queue not marked playing during stream")
	}
	if now, ok := p.NowPlaying(); !ok || now.Title != "A" {
		t.Errorf("NowPlaying = %v/%v, want A", now.Title, ok)
	}
	if q, ok := p.Quality(); !ok || q.Codec != "opus" {
		t.Errorf("quality snapshot = %+v/%v, want the opened format", q, ok)
	}
	if r.joined() != 1 {
		t.Errorf("join calls = %d, want 1", r.joined())
	}

	r.script.endStream(t, nil) // A ends normally

	got = r.script.awaitStart(t)
	if got.Title != "B" {
		t.Fatalf("second track = %q, want B", got.Title)
	}
	if items := p.Queue(); len(items) != 1 || items[0].Title != "B" {
		t.Errorf("queue during B = %v", items)
	}

	r.script.endStream(t, nil) // B ends normally

	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
	waitFor(t, "voice disconnect", func() bool { return r.session.Disconnected() })
	if p.State() != StateIdle {
		t.Errorf("terminal state = %v, want Idle", p.State())
	}
	if p.IsPlaying() {
		t.Error("queue still marked playing after destroy")
	}
	if hist := p.History(); len(hist) != 2 || hist[0].Title != "A" || hist[1].Title != "B" {
		t.Errorf("history = %v, want [A B]", hist)
	}
}

func TestSkipWithSingleItemIsRejected(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	p.EnqueueResolved(p.Generation(), item("A", "aaaaaaaaaaa"))
	p.Start("voice-chan")
	r.script.awaitStart(t)

	if err := p.Skip(); !errors.Is(err, ErrNothingToSkip) {
		t.Fatalf("Skip = %v, want ErrNothingToSkip", err)
	}
	if items := p.Queue(); len(items) != 1 || items[0].Title != "A" {
		t.Errorf("queue after rejected skip = %v, want unchanged [A]", items)
	}
	if p.State() != StateStreaming {
		t.Errorf("state = %v, stream should not restart", p.State())
	}

	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
}

func TestSkipAdvancesToNextTrack(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()
	p.EnqueueResolved(gen, item("A", "aaaaaaaaaaa"))
	p.EnqueueResolved(gen, item("B", "bbbbbbbbbbb"))
	p.Start("voice-chan")
	r.script.awaitStart(t)

	if err := p.Skip(); err != nil {
		t.Fatalf("Skip: %v", err)
	}

	got := r.script.awaitStart(t)
	if got.Title != "B" {
		t.Fatalf("track after skip = %q, want B", got.Title)
	}

	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
}

func TestAlternativeSubstitutionReplacesHead(t *testing.T) {
	a := item("A", "aaaaaaaaaaa")
	alt := item("A (reupload)", "zzzzzzzzzzz")

	open := func(_ context.Context, it track.Item) (*stream.Opened, error) {
		if it.SourceURL == a.SourceURL {
			// the chain found an alternative instead of the requested item
			return openedFor(alt), nil
		}
		return openedFor(it), nil
	}

	r := newRig(open)
	p := r.reg.GetOrCreate("g1")
	p.EnqueueResolved(p.Generation(), a)
	p.Start("voice-chan")

	got := r.script.awaitStart(t)
	if got.Title != "A (reupload)" {
		t.Fatalf("playing %q, want the substituted alternative", got.Title)
	}
	if p.State() != StateStreaming {
		t.Errorf("state = %v, want Streaming after substitution", p.State())
	}
	if items := p.Queue(); len(items) != 1 || items[0].SourceURL != alt.SourceURL {
		t.Errorf("queue head = %v, want the alternative swapped into slot 0", items)
	}

	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
}

func TestUnplayableHeadIsDropped(t *testing.T) {
	a := item("A", "aaaaaaaaaaa")
	open := func(_ context.Context, it track.Item) (*stream.Opened, error) {
		if it.SourceURL == a.SourceURL {
			return nil, fmt.Errorf("%w for %q", stream.ErrUnplayable, it.Title)
		}
		return openedFor(it), nil
	}

	r := newRig(open)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()
	p.EnqueueResolved(gen, a)
	p.EnqueueResolved(gen, item("B", "bbbbbbbbbbb"))
	p.Start("voice-chan")

	got := r.script.awaitStart(t)
	if got.Title != "B" {
		t.Fatalf("playing %q, want B after dropping unplayable A", got.Title)
	}
	if items := p.Queue(); len(items) != 1 || items[0].Title != "B" {
		t.Errorf("queue = %v, want [B]", items)
	}

	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
}

func TestStreamErrorAdvancesQueue(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()
	p.EnqueueResolved(gen, item("A", "aaaaaaaaaaa"))
	p.EnqueueResolved(gen, item("B", "bbbbbbbbbbb"))
	p.Start("voice-chan")

	r.script.awaitStart(t)
	r.script.endStream(t, errors.New("connection reset mid-stream"))

	got := r.script.awaitStart(t)
	if got.Title != "B" {
		t.Fatalf("track after stream error = %q, want B", got.Title)
	}

	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
}

func TestStopDuringInFlightResolution(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()

	// the user stops before the (slow) resolution settles
	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })

	if p.EnqueueResolved(gen, item("A", "aaaaaaaaaaa")) {
		t.Fatal("stale resolution was accepted after stop")
	}
	if r.joined() != 0 {
		t.Errorf("join calls = %d, want 0 (no stream may open)", r.joined())
	}
	if r.reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", r.reg.Len())
	}
}

func TestStopWhileStreaming(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()
	p.EnqueueResolved(gen, item("A", "aaaaaaaaaaa"))
	p.EnqueueResolved(gen, item("B", "bbbbbbbbbbb"))
	p.Start("voice-chan")
	r.script.awaitStart(t)

	p.Stop()

	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
	waitFor(t, "voice disconnect", func() bool { return r.session.Disconnected() })
	if items := p.Queue(); len(items) != 0 {
		t.Errorf("queue after stop = %v, want empty", items)
	}
}

func TestPauseResumeRequireActiveStream(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")

	if err := p.Pause(); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Pause without stream = %v, want ErrNothingPlaying", err)
	}
	if err := p.Resume(); !errors.Is(err, ErrNothingPlaying) {
		t.Errorf("Resume without stream = %v, want ErrNothingPlaying", err)
	}

	p.EnqueueResolved(p.Generation(), item("A", "aaaaaaaaaaa"))
	p.Start("voice-chan")
	r.script.awaitStart(t)

	if err := p.Pause(); err != nil {
		t.Fatalf("Pause: %v", err)
	}
	if !p.Paused() {
		t.Error("player not paused after Pause")
	}
	if err := p.Resume(); err != nil {
		t.Fatalf("Resume: %v", err)
	}
	if p.Paused() {
		t.Error("player still paused after Resume")
	}

	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })
}

func TestSetVolumeValidatesRawRange(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")

	for _, bad := range []int{0, -5, 101, 1000} {
		if err := p.SetVolume(bad); !errors.Is(err, ErrInvalidVolume) {
			t.Errorf("SetVolume(%d) = %v, want ErrInvalidVolume", bad, err)
		}
	}

	if err := p.SetVolume(42); err != nil {
		t.Fatalf("SetVolume(42): %v", err)
	}
	if got := p.Volume(); got != 42 {
		t.Errorf("Volume() = %d, want 42", got)
	}
}

func TestStartAfterStopIsRefused(t *testing.T) {
	r := newRig(nil)
	p := r.reg.GetOrCreate("g1")
	gen := p.Generation()
	p.EnqueueResolved(gen, item("A", "aaaaaaaaaaa"))

	p.Stop()
	p.Start("voice-chan")

	time.Sleep(30 * time.Millisecond)
	if r.joined() != 0 {
		t.Errorf("join calls = %d, a stopped player must not reconnect", r.joined())
	}
	select {
	case it := <-r.script.started:
		t.Errorf("playback of %q started on a stopped player", it.Title)
	default:
	}
	if r.reg.Len() != 0 {
		t.Errorf("registry len = %d, want 0", r.reg.Len())
	}
	if p.State() != StateIdle {
		t.Errorf("state = %v, want Idle", p.State())
	}
}

func TestStopRacingEnqueueNeverResurrects(t *testing.T) {
	a := item("A", "aaaaaaaaaaa")
	for i := 0; i < 100; i++ {
		r := newRig(nil)
		p := r.reg.GetOrCreate("g1")
		gen := p.Generation()

		done := make(chan struct{})
		go func() {
			defer close(done)
			if p.EnqueueResolved(gen, a) {
				p.Start("voice-chan")
			}
		}()
		p.Stop()
		<-done

		// whichever side won, the player must settle stopped: idle,
		// unregistered and with nothing left queued
		waitFor(t, "player teardown", func() bool {
			return p.State() == StateIdle && r.reg.Len() == 0
		})
		if items := p.Queue(); len(items) != 0 {
			t.Fatalf("iteration %d: queue = %v after stop, want empty", i, items)
		}
	}
}

func awaitSignal(t *testing.T, ch chan Signal) Signal {
	t.Helper()
	select {
	case sig := <-ch:
		return sig
	case <-time.After(testTimeout):
		t.Fatal("timed out waiting for a status signal")
		return Signal{}
	}
}

func TestStatusSignalsFanOutWithAttribution(t *testing.T) {
	a := item("A", "aaaaaaaaaaa")
	alt := item("A (reupload)", "zzzzzzzzzzz")
	open := func(_ context.Context, it track.Item) (*stream.Opened, error) {
		if it.SourceURL == a.SourceURL {
			return openedFor(alt), nil
		}
		return openedFor(it), nil
	}

	r := newRig(open)
	p := r.reg.GetOrCreate("g1")
	ch1, ch2 := p.Subscribe(), p.Subscribe()
	p.EnqueueResolved(p.Generation(), a)
	p.Start("voice-chan")
	r.script.awaitStart(t)

	for _, ch := range []chan Signal{ch1, ch2} {
		sig := awaitSignal(t, ch)
		if sig.Status != StatusPlaying {
			t.Fatalf("first signal = %v, want StatusPlaying on every subscriber", sig.Status)
		}
		if sig.Item.SourceURL != alt.SourceURL {
			t.Errorf("signal item = %q, want the substituted track", sig.Item.Title)
		}
		if sig.Requested.SourceURL != a.SourceURL {
			t.Errorf("signal requested = %q, want the originally queued track", sig.Requested.Title)
		}
	}

	p.Unsubscribe(ch1)
	p.Stop()
	waitFor(t, "registry cleanup", func() bool { return r.reg.Len() == 0 })

	if sig := awaitSignal(t, ch2); sig.Status != StatusStopped {
		t.Errorf("subscriber signal = %v, want StatusStopped", sig.Status)
	}
	select {
	case sig := <-ch1:
		t.Errorf("unsubscribed channel received %v", sig.Status)
	default:
	}
}

func TestRegistryReusesAndRecreates(t *testing.T) {
	r := newRig(nil)

	p1 := r.reg.GetOrCreate("g1")
	if again := r.reg.GetOrCreate("g1"); again != p1 {
		t.Fatal("expected the same player for one guild")
	}
	if other := r.reg.GetOrCreate("g2"); other == p1 {
		t.Fatal("expected distinct players per guild")
	}

	p1.Stop()
	waitFor(t, "g1 removal", func() bool {
		_, ok := r.reg.Get("g1")
		return !ok
	})
	if fresh := r.reg.GetOrCreate("g1"); fresh == p1 {
		t.Error("expected a fresh player after the old one was destroyed")
	}
}
