// Package device defines the audio hardware contracts the controllers
// depend on. The WebRTC session in internal/rtc implements both; tests use
// in-memory fakes.
package device

import (
	"context"

	"github.com/voxnote/voxnote/internal/audio"
)

// Stream is an open audio input. Chunks arrive in capture order and the
// channel closes when the stream is released.
type Stream interface {
	Chunks() <-chan []byte
	MimeType() string
	Close() error
}

// Input is an exclusive audio input device. Acquire fails with a device
// error when permission is denied or no device exists.
type Input interface {
	Acquire(ctx context.Context) (Stream, error)
}

// Handle controls one live playback. Stop is idempotent; Done is closed
// when output ends, whether stopped or played to completion.
type Handle interface {
	SetRate(rate float64)
	Stop()
	Done() <-chan struct{}
}

// Output plays a decoded buffer at the given rate multiplier.
type Output interface {
	Play(buf *audio.Buffer, rate float64) (Handle, error)
}
