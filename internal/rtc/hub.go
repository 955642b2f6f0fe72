package rtc

import (
	"context"
	"errors"
	"sync"

	"github.com/pion/webrtc/v4"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/device"
	"github.com/voxnote/voxnote/internal/fault"
)

// Hub is the stable device endpoint the controllers hold. Sessions come and
// go as the browser reconnects; the hub always points at the latest one and
// answers with a device error when none is up.
type Hub struct {
	mu   sync.Mutex
	sess *Session
}

func NewHub() *Hub {
	return &Hub{}
}

// Connect negotiates a new session from a browser offer. A previous session
// is torn down first; the newest connection always wins.
func (h *Hub) Connect(offer webrtc.SessionDescription) (webrtc.SessionDescription, error) {
	sess, answer, err := Negotiate(offer)
	if err != nil {
		return webrtc.SessionDescription{}, err
	}
	h.mu.Lock()
	old := h.sess
	h.sess = sess
	h.mu.Unlock()
	if old != nil {
		old.Close()
	}
	return answer, nil
}

// Connected reports whether a live session exists.
func (h *Hub) Connected() bool {
	return h.current() != nil
}

// Shutdown closes the live session, if any.
func (h *Hub) Shutdown() {
	h.mu.Lock()
	sess := h.sess
	h.sess = nil
	h.mu.Unlock()
	if sess != nil {
		sess.Close()
	}
}

func (h *Hub) current() *Session {
	h.mu.Lock()
	defer h.mu.Unlock()
	if h.sess != nil && !h.sess.alive() {
		h.sess = nil
	}
	return h.sess
}

// Acquire implements device.Input by delegating to the live session.
func (h *Hub) Acquire(ctx context.Context) (device.Stream, error) {
	sess := h.current()
	if sess == nil {
		return nil, fault.Device(errors.New("no session"), "no voice channel connected")
	}
	return sess.Acquire(ctx)
}

// Play implements device.Output by delegating to the live session.
func (h *Hub) Play(buf *audio.Buffer, rate float64) (device.Handle, error) {
	sess := h.current()
	if sess == nil {
		return nil, fault.Device(errors.New("no session"), "no voice channel connected")
	}
	return sess.Play(buf, rate)
}
