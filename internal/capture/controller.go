// Package capture owns the record -> encode -> transcribe flow. A recording
// session holds the exclusive input stream and an ordered chunk sequence;
// both are destroyed the moment the stop transition completes or the
// session is abandoned by an error.
package capture

import (
	"context"
	"fmt"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/voxnote/voxnote/internal/device"
	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/media"
)

// State of the capture machine.
type State int

const (
	StateIdle State = iota
	StateCapturing
	StateFinalizing
)

func (s State) String() string {
	switch s {
	case StateCapturing:
		return "capturing"
	case StateFinalizing:
		return "finalizing"
	default:
		return "idle"
	}
}

// Transcriber is the one AI operation this controller needs.
type Transcriber interface {
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// Result is a finished capture: the transcript and the note it was bound to
// when recording started. The caller decides whether that note is still the
// active one before merging.
type Result struct {
	NoteID string
	Text   string
}

const arbiterID = "capture"

// Controller runs the capture state machine.
type Controller struct {
	in  device.Input
	svc Transcriber
	arb *media.Arbiter

	mu          sync.Mutex
	state       State
	stream      device.Stream
	chunks      [][]byte
	noteID      string
	collectDone chan struct{}
}

func New(in device.Input, svc Transcriber, arb *media.Arbiter) *Controller {
	return &Controller{in: in, svc: svc, arb: arb}
}

// Start acquires the input device and begins accumulating chunks for the
// given note. Valid only from idle; fails fast while playback is active.
func (c *Controller) Start(ctx context.Context, noteID string) error {
	c.mu.Lock()
	if c.state != StateIdle {
		c.mu.Unlock()
		return fault.Validation("recording is already %s", c.state)
	}
	if !c.arb.TryAcquire(arbiterID) {
		holder := c.arb.Holder()
		c.mu.Unlock()
		return fault.Validation("%s in progress", holder)
	}
	c.mu.Unlock()

	stream, err := c.in.Acquire(ctx)
	if err != nil {
		c.arb.Release(arbiterID)
		return err
	}

	done := make(chan struct{})
	c.mu.Lock()
	c.state = StateCapturing
	c.stream = stream
	c.chunks = nil
	c.noteID = noteID
	c.collectDone = done
	c.mu.Unlock()

	go func() {
		defer close(done)
		for chunk := range stream.Chunks() {
			c.mu.Lock()
			c.chunks = append(c.chunks, chunk)
			c.mu.Unlock()
		}
	}()

	log.Debugf("capture started for note %s", noteID)
	return nil
}

// Stop releases the device, concatenates the accumulated chunks in arrival
// order and hands them to transcription. On failure the audio is discarded,
// never retried, and the machine is back at idle either way.
func (c *Controller) Stop(ctx context.Context) (Result, error) {
	c.mu.Lock()
	if c.state != StateCapturing {
		c.mu.Unlock()
		return Result{}, fault.Validation("no recording in progress")
	}
	c.state = StateFinalizing
	stream := c.stream
	done := c.collectDone
	c.mu.Unlock()

	// Release the device first, then wait for the collector to drain the
	// closing channel so no tail chunk is lost.
	if err := stream.Close(); err != nil {
		log.Warnf("release input stream: %v", err)
	}
	<-done

	c.mu.Lock()
	var size int
	for _, chunk := range c.chunks {
		size += len(chunk)
	}
	data := make([]byte, 0, size)
	for _, chunk := range c.chunks {
		data = append(data, chunk...)
	}
	mimeType := stream.MimeType()
	noteID := c.noteID
	c.mu.Unlock()

	// Every path out of finalizing destroys the session.
	defer func() {
		c.mu.Lock()
		c.state = StateIdle
		c.stream = nil
		c.chunks = nil
		c.noteID = ""
		c.collectDone = nil
		c.mu.Unlock()
		c.arb.Release(arbiterID)
	}()

	if len(data) == 0 {
		log.Debug("capture produced no audio, skipping transcription")
		return Result{NoteID: noteID}, nil
	}

	text, err := c.svc.Transcribe(ctx, data, mimeType)
	if err != nil {
		return Result{}, fmt.Errorf("transcription failed: %w", err)
	}
	return Result{NoteID: noteID, Text: text}, nil
}

// Abort tears down an in-progress capture without transcribing, for
// navigation away and shutdown. Harmless when idle.
func (c *Controller) Abort() {
	c.mu.Lock()
	if c.state != StateCapturing {
		c.mu.Unlock()
		return
	}
	c.state = StateFinalizing
	stream := c.stream
	done := c.collectDone
	c.mu.Unlock()

	if err := stream.Close(); err != nil {
		log.Warnf("release input stream: %v", err)
	}
	<-done

	c.mu.Lock()
	c.state = StateIdle
	c.stream = nil
	c.chunks = nil
	c.noteID = ""
	c.collectDone = nil
	c.mu.Unlock()
	c.arb.Release(arbiterID)
	log.Debug("capture aborted, audio discarded")
}

// State returns the current machine state.
func (c *Controller) State() State {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.state
}

// NoteID returns the note bound at start, empty when idle.
func (c *Controller) NoteID() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.noteID
}
