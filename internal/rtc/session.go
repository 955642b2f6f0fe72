// Package rtc carries voice between the browser and the server over a
// single WebRTC peer connection: the remote mic track feeds capture, a
// local Opus track plays synthesized speech back.
package rtc

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"github.com/pion/webrtc/v4"
	log "github.com/sirupsen/logrus"
	"gopkg.in/hraban/opus.v2"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/device"
	"github.com/voxnote/voxnote/internal/fault"
)

// Session is one negotiated peer connection. It implements both device
// contracts: Acquire for the mic direction, Play for the speaker direction.
type Session struct {
	pc    *webrtc.PeerConnection
	track *webrtc.TrackLocalStaticSample

	mu     sync.Mutex
	mic    *micStream
	closed chan struct{}
	once   sync.Once
}

// Negotiate answers a browser SDP offer and returns the connected session.
// The answer carries the full ICE candidate set, so no trickle endpoint is
// needed.
func Negotiate(offer webrtc.SessionDescription) (*Session, webrtc.SessionDescription, error) {
	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return nil, webrtc.SessionDescription{}, fmt.Errorf("create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"voxnote",
	)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("create audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("add track: %w", err)
	}

	s := &Session{pc: pc, track: track, closed: make(chan struct{})}

	pc.OnTrack(func(remote *webrtc.TrackRemote, _ *webrtc.RTPReceiver) {
		if remote.Kind() != webrtc.RTPCodecTypeAudio {
			return
		}
		go s.readMic(remote)
	})
	pc.OnConnectionStateChange(func(state webrtc.PeerConnectionState) {
		switch state {
		case webrtc.PeerConnectionStateFailed,
			webrtc.PeerConnectionStateClosed,
			webrtc.PeerConnectionStateDisconnected:
			log.Infof("voice channel %s", state)
			s.Close()
		}
	})

	if err := pc.SetRemoteDescription(offer); err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fault.Validation("bad SDP offer: %v", err)
	}
	answer, err := pc.CreateAnswer(nil)
	if err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("create answer: %w", err)
	}
	if err := pc.SetLocalDescription(answer); err != nil {
		pc.Close()
		return nil, webrtc.SessionDescription{}, fmt.Errorf("set local description: %w", err)
	}
	<-webrtc.GatheringCompletePromise(pc)

	log.Info("voice channel connected")
	return s, *pc.LocalDescription(), nil
}

// Close tears the connection down. Idempotent; also fired by the connection
// state callback on disconnect.
func (s *Session) Close() {
	s.once.Do(func() {
		close(s.closed)
		s.mu.Lock()
		mic := s.mic
		s.mic = nil
		s.mu.Unlock()
		if mic != nil {
			mic.shutdown()
		}
		s.pc.Close()
	})
}

// Done is closed when the peer connection is gone.
func (s *Session) Done() <-chan struct{} {
	return s.closed
}

func (s *Session) alive() bool {
	select {
	case <-s.closed:
		return false
	default:
		return true
	}
}

// readMic decodes the remote Opus track into 16kHz mono PCM chunks and
// hands them to the acquired mic stream, if any. Audio arriving while no
// capture is active is discarded.
func (s *Session) readMic(remote *webrtc.TrackRemote) {
	dec, err := opus.NewDecoder(audio.CaptureSampleRate, audio.Channels)
	if err != nil {
		log.Errorf("opus decoder: %v", err)
		return
	}
	// Opus frames are at most 120ms: 1920 samples at 16kHz mono.
	pcm := make([]int16, 1920)

	for s.alive() {
		pkt, _, err := remote.ReadRTP()
		if err != nil {
			return
		}
		if len(pkt.Payload) == 0 {
			continue
		}
		n, err := dec.Decode(pkt.Payload, pcm)
		if err != nil {
			log.Warnf("opus decode: %v", err)
			continue
		}

		s.mu.Lock()
		mic := s.mic
		s.mu.Unlock()
		if mic != nil {
			mic.deliver(audio.SamplesToBytes(pcm[:n]))
		}
	}
}

// Acquire claims the mic direction. Fails when the channel is gone or a
// capture already holds it.
func (s *Session) Acquire(ctx context.Context) (device.Stream, error) {
	if !s.alive() {
		return nil, fault.Device(errors.New("peer connection closed"), "voice channel disconnected")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.mic != nil {
		return nil, fault.Device(errors.New("mic stream held"), "microphone already in use")
	}
	m := newMicStream(s)
	s.mic = m
	return m, nil
}

// release detaches a mic stream. Only the current holder detaches.
func (s *Session) release(m *micStream) {
	s.mu.Lock()
	if s.mic == m {
		s.mic = nil
	}
	s.mu.Unlock()
}

// micStream is the capture side of the session: decoded PCM chunks in
// arrival order, channel closed on release. The mutex keeps deliver and
// close mutually exclusive: the RTP read loop snapshots the stream outside
// the session lock, so a chunk can still be in flight when the recorder
// detaches, and it must be dropped rather than sent on a closed channel.
type micStream struct {
	sess *Session

	mu     sync.Mutex
	ch     chan []byte
	closed bool
}

func newMicStream(s *Session) *micStream {
	return &micStream{sess: s, ch: make(chan []byte, 256)}
}

func (m *micStream) Chunks() <-chan []byte { return m.ch }
func (m *micStream) MimeType() string      { return audio.CaptureMimeType }

func (m *micStream) Close() error {
	m.sess.release(m)
	m.closeChan()
	return nil
}

// shutdown closes the channel without touching the session lock; used from
// Session.Close which already detached it.
func (m *micStream) shutdown() {
	m.closeChan()
}

func (m *micStream) closeChan() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if !m.closed {
		m.closed = true
		close(m.ch)
	}
}

// deliver hands a chunk to the collector. A chunk arriving after release is
// dropped; a stalled collector gets chunks dropped rather than blocking the
// RTP read loop.
func (m *micStream) deliver(chunk []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.closed {
		return
	}
	select {
	case m.ch <- chunk:
	default:
		log.Warn("mic chunk dropped: capture not draining")
	}
}
