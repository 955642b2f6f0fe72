// Package playback owns the synthesize -> decode -> play -> rate-control ->
// stop flow. One playback session is alive at most at a time; its output
// handle is released on every exit path.
package playback

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/device"
	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/media"
)

// State of the playback machine.
type State int

const (
	StateIdle State = iota
	StateSynthesizing
	StatePlaying
)

func (s State) String() string {
	switch s {
	case StateSynthesizing:
		return "synthesizing"
	case StatePlaying:
		return "playing"
	default:
		return "idle"
	}
}

// Synthesizer is the one AI operation this controller needs.
type Synthesizer interface {
	Synthesize(ctx context.Context, text string) (*audio.Buffer, error)
}

const arbiterID = "playback"

// Controller runs the playback state machine. The rate multiplier is
// sticky: it survives across playback sessions and applies to the next
// Play when nothing is live.
type Controller struct {
	synth Synthesizer
	out   device.Output
	arb   *media.Arbiter

	mu     sync.Mutex
	state  State
	rate   float64
	handle device.Handle
}

func New(synth Synthesizer, out device.Output, arb *media.Arbiter, defaultRate float64) *Controller {
	if defaultRate <= 0 {
		defaultRate = 1.0
	}
	return &Controller{synth: synth, out: out, arb: arb, rate: defaultRate}
}

// Play synthesizes the text and starts output at the current rate. Valid
// only from idle; fails fast if a recording session holds the media token.
func (c *Controller) Play(ctx context.Context, text string) error {
	if strings.TrimSpace(text) == "" {
		return fault.Validation("nothing to read")
	}

	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fault.Validation("playback is already %s", c.state)
	}
	if !c.arb.TryAcquire(arbiterID) {
		holder := c.arb.Holder()
		c.mu.Unlock()
		return fault.Validation("%s in progress", holder)
	}
	c.state = StateSynthesizing
	rate := c.rate
	c.mu.Unlock()

	buf, err := c.synth.Synthesize(ctx, text)
	if err != nil {
		c.reset()
		return err
	}

	handle, err := c.out.Play(buf, rate)
	if err != nil {
		c.reset()
		return err
	}

	c.mu.Lock()
	c.state = StatePlaying
	c.handle = handle
	c.mu.Unlock()

	log.Debugf("playback started: %v of audio at %.2fx", buf.Duration(), rate)

	// Natural end-of-audio and explicit stop share one release path.
	go func() {
		<-handle.Done()
		c.finish(handle)
	}()
	return nil
}

// SetRate is valid from any state. Live playback adjusts immediately
// without restarting; otherwise the rate applies on the next Play.
func (c *Controller) SetRate(rate float64) error {
	if rate <= 0 {
		return fault.Validation("rate must be positive, got %v", rate)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.rate = rate
	if c.handle != nil {
		c.handle.SetRate(rate)
	}
	return nil
}

// Stop halts output immediately and releases the output node. Calling it
// again, or after natural end-of-audio, is a no-op.
func (c *Controller) Stop() {
	c.mu.Lock()
	if c.state != StatePlaying || c.handle == nil {
		c.mu.Unlock()
		return
	}
	handle := c.handle
	c.mu.Unlock()

	handle.Stop()
	c.finish(handle)
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// Rate returns the sticky rate multiplier.
func (c *Controller) Rate() float64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.rate
}

// finish releases the session owning handle. The comparison makes it
// idempotent and keeps a stale Done goroutine from tearing down a newer
// session.
func (c *Controller) finish(handle device.Handle) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.handle != handle {
		return
	}
	c.handle = nil
	c.state = StateIdle
	c.arb.Release(arbiterID)
}

// reset returns to idle after a failure before any handle existed.
func (c *Controller) reset() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.handle = nil
	c.state = StateIdle
	c.arb.Release(arbiterID)
}
