package stream

import (
	"context"
	"encoding/binary"
	"errors"
	"fmt"
	"io"
	"sync"
	"time"

	"layeh.com/gopus"
)

const (
	channels   = 2
	sampleRate = 48000
	frameSize  = 960 // 20ms at 48kHz
)

// ErrStopped is returned by PlayPCM when playback was ended through
// Controls rather than by the stream running out.
var ErrStopped = errors.New("playback stopped")

// Controls is the live playback handle: pause state, stop signal and the
// gain applied to PCM samples before encoding. Safe for concurrent use.
type Controls struct {
	mu       sync.Mutex
	gain     float64
	paused   bool
	stop     chan struct{}
	stopOnce sync.Once
}

func NewControls(gain float64) *Controls {
	return &Controls{gain: gain, stop: make(chan struct{})}
}

// SetGain changes the software volume applied to subsequent frames.
func (c *Controls) SetGain(gain float64) {
	c.mu.Lock()
	c.gain = gain
	c.mu.Unlock()
}

func (c *Controls) Gain() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gain
}

func (c *Controls) Pause()  { c.setPaused(true) }
func (c *Controls) Resume() { c.setPaused(false) }

func (c *Controls) setPaused(p bool) {
	c.mu.Lock()
	c.paused = p
	c.mu.Unlock()
}

func (c *Controls) Paused() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.paused
}

// Stop ends playback. Idempotent.
func (c *Controls) Stop() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Controls) Stopped() <-chan struct{} { return c.stop }

// PlayPCM reads s16le PCM frames, applies gain, encodes them to opus and
// writes them to send until the stream ends, the controls stop it or the
// context is canceled. A nil error means the stream ended normally.
func PlayPCM(ctx context.Context, pcm io.Reader, send chan<- []byte, c *Controls) error {
	encoder, err := gopus.NewEncoder(sampleRate, channels, gopus.Audio)
	if err != nil {
		return fmt.Errorf("opus encoder: %w", err)
	}

	pcmBuf := make([]byte, frameSize*channels*2)
	intBuf := make([]int16, frameSize*channels)

	for {
		select {
		case <-c.Stopped():
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		if c.Paused() {
			time.Sleep(20 * time.Millisecond)
			continue
		}

		if _, err := io.ReadFull(pcm, pcmBuf); err != nil {
			if errors.Is(err, io.EOF) || errors.Is(err, io.ErrUnexpectedEOF) {
				return nil
			}
			return fmt.Errorf("pcm read: %w", err)
		}

		applyGain(pcmBuf, intBuf, c.Gain())

		frame, err := encoder.Encode(intBuf, frameSize, len(pcmBuf))
		if err != nil {
			return fmt.Errorf("opus encode: %w", err)
		}

		select {
		case send <- frame:
		case <-c.Stopped():
			return ErrStopped
		case <-ctx.Done():
			return ctx.Err()
		}
	}
}

// applyGain decodes little-endian s16 samples into out, scaled by gain with
// clipping at the int16 bounds.
func applyGain(in []byte, out []int16, gain float64) {
	for i := range out {
		sample := int16(binary.LittleEndian.Uint16(in[i*2 : i*2+2]))
		scaled := float64(sample) * gain
		switch {
		case scaled > 32767:
			scaled = 32767
		case scaled < -32768:
			scaled = -32768
		}
		out[i] = int16(scaled)
	}
}
