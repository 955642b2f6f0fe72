package rtc

import (
	"errors"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	log "github.com/sirupsen/logrus"
	"gopkg.in/hraban/opus.v2"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/device"
	"github.com/voxnote/voxnote/internal/fault"
)

// Play starts pacing the buffer onto the session's outbound track. The rate
// multiplier stretches or squeezes how many source samples each 20ms frame
// consumes, so rate changes take effect mid-clip without re-encoding the
// whole buffer.
func (s *Session) Play(buf *audio.Buffer, rate float64) (device.Handle, error) {
	if !s.alive() {
		return nil, fault.Device(errors.New("peer connection closed"), "voice channel disconnected")
	}
	if buf == nil || len(buf.Samples) == 0 {
		return nil, fault.Validation("empty audio buffer")
	}
	if rate <= 0 {
		rate = 1.0
	}

	enc, err := opus.NewEncoder(audio.PlaybackSampleRate, audio.Channels, opus.AppVoIP)
	if err != nil {
		return nil, fault.Device(err, "opus encoder unavailable")
	}
	enc.SetBitrate(64000)

	// Samples one output frame draws at 1x, in the buffer's native rate.
	perFrame := buf.SampleRate * int(audio.FrameDuration/time.Millisecond) / 1000
	if perFrame <= 0 {
		return nil, fault.Validation("bad sample rate %d", buf.SampleRate)
	}

	p := &player{
		sess:     s,
		enc:      enc,
		src:      buf.Samples,
		perFrame: perFrame,
		rate:     rate,
		stop:     make(chan struct{}),
		done:     make(chan struct{}),
	}
	go p.run()
	return p, nil
}

type player struct {
	sess     *Session
	enc      *opus.Encoder
	src      []int16
	perFrame int

	mu   sync.Mutex
	pos  int
	rate float64

	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

func (p *player) SetRate(rate float64) {
	if rate <= 0 {
		return
	}
	p.mu.Lock()
	p.rate = rate
	p.mu.Unlock()
}

func (p *player) Stop() {
	p.stopOnce.Do(func() { close(p.stop) })
}

func (p *player) Done() <-chan struct{} {
	return p.done
}

// run paces one Opus sample onto the track every 20ms until the source is
// drained, Stop is called, or the connection goes away.
func (p *player) run() {
	defer close(p.done)

	opusBuf := make([]byte, 4000)
	ticker := time.NewTicker(audio.FrameDuration)
	defer ticker.Stop()

	for {
		select {
		case <-p.stop:
			return
		case <-p.sess.closed:
			return
		case <-ticker.C:
			window, ok := p.next()
			if !ok {
				return
			}
			frame := audio.ResampleFrame(window, audio.FrameSize)
			n, err := p.enc.Encode(frame, opusBuf)
			if err != nil {
				log.Warnf("opus encode: %v", err)
				continue
			}
			if err := p.sess.track.WriteSample(media.Sample{
				Data:     opusBuf[:n],
				Duration: audio.FrameDuration,
			}); err != nil {
				log.Warnf("write sample: %v", err)
				return
			}
		}
	}
}

// next consumes the source window for one output frame at the current rate.
func (p *player) next() ([]int16, bool) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.pos >= len(p.src) {
		return nil, false
	}
	take := int(p.rate * float64(p.perFrame))
	if take < 1 {
		take = 1
	}
	end := p.pos + take
	if end > len(p.src) {
		end = len(p.src)
	}
	window := p.src[p.pos:end]
	p.pos = end
	return window, true
}
