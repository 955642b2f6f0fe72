package audio

import (
	"encoding/binary"
	"fmt"
)

// BytesToSamples converts little-endian s16le PCM bytes to int16 samples.
// A trailing odd byte is dropped for alignment.
func BytesToSamples(data []byte) []int16 {
	if len(data)%2 != 0 {
		data = data[:len(data)-1]
	}
	samples := make([]int16, len(data)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(data[i*2 : i*2+2]))
	}
	return samples
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// DecodePCM wraps a raw s16le payload into a playable buffer at the given
// sample rate. An empty payload is an error: the synthesis path must never
// hand playback a silent zero-length clip as success.
func DecodePCM(data []byte, sampleRate int) (*Buffer, error) {
	if len(data) < 2 {
		return nil, fmt.Errorf("pcm payload too short: %d bytes", len(data))
	}
	if sampleRate <= 0 {
		return nil, fmt.Errorf("invalid sample rate %d", sampleRate)
	}
	return &Buffer{Samples: BytesToSamples(data), SampleRate: sampleRate}, nil
}
