package audio

// ResampleFrame linearly interpolates src down or up to outLen samples.
// This is how the playback-rate multiplier works: each 20ms output frame
// draws rate*FrameSize source samples and squeezes them into FrameSize,
// so a higher rate consumes the clip faster at the same output cadence.
func ResampleFrame(src []int16, outLen int) []int16 {
	out := make([]int16, outLen)
	if len(src) == 0 || outLen == 0 {
		return out
	}
	if len(src) == 1 {
		for i := range out {
			out[i] = src[0]
		}
		return out
	}

	step := float64(len(src)-1) / float64(outLen-1)
	if outLen == 1 {
		out[0] = src[0]
		return out
	}
	for i := 0; i < outLen; i++ {
		pos := float64(i) * step
		idx := int(pos)
		if idx >= len(src)-1 {
			out[i] = src[len(src)-1]
			continue
		}
		frac := pos - float64(idx)
		a := float64(src[idx])
		b := float64(src[idx+1])
		out[i] = Clip(a + (b-a)*frac)
	}
	return out
}

// Clip bounds a sample value to the int16 range.
func Clip(v float64) int16 {
	if v > 32767 {
		return 32767
	}
	if v < -32768 {
		return -32768
	}
	return int16(v)
}
