package audio

import "time"

const (
	// PlaybackSampleRate is the rate of the synthesized voice PCM payload.
	PlaybackSampleRate = 24000
	// CaptureSampleRate is the rate mic chunks are decoded to before
	// being handed to transcription.
	CaptureSampleRate = 16000

	Channels      = 1 // synthesized and captured voice are mono
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 480               // samples per 20ms frame at 24kHz
	FrameBytes    = FrameSize * 2     // bytes per frame (int16 = 2 bytes)
)

// CaptureMimeType describes the PCM chunks the capture path produces,
// carried alongside the payload so the transcription request is explicit
// about what it is sent.
const CaptureMimeType = "audio/pcm;rate=16000"

// Buffer is one decoded audio clip bound to a sample rate.
type Buffer struct {
	Samples    []int16
	SampleRate int
}

// Duration returns the clip length at its native rate.
func (b *Buffer) Duration() time.Duration {
	if b.SampleRate <= 0 {
		return 0
	}
	return time.Duration(len(b.Samples)) * time.Second / time.Duration(b.SampleRate)
}
