package playback

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/voxnote/internal/audio"
	"github.com/voxnote/voxnote/internal/device"
	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/media"
)

type fakeSynth struct {
	mu    sync.Mutex
	calls int
	err   error
}

func (f *fakeSynth) Synthesize(ctx context.Context, text string) (*audio.Buffer, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	if f.err != nil {
		return nil, f.err
	}
	return &audio.Buffer{Samples: make([]int16, 480), SampleRate: audio.PlaybackSampleRate}, nil
}

func (f *fakeSynth) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

type fakeHandle struct {
	mu    sync.Mutex
	rate  float64
	stops int
	done  chan struct{}
	once  sync.Once
}

func (h *fakeHandle) SetRate(rate float64) {
	h.mu.Lock()
	h.rate = rate
	h.mu.Unlock()
}

func (h *fakeHandle) Stop() {
	h.mu.Lock()
	h.stops++
	h.mu.Unlock()
	h.once.Do(func() { close(h.done) })
}

func (h *fakeHandle) Done() <-chan struct{} { return h.done }

func (h *fakeHandle) finishNaturally() {
	h.once.Do(func() { close(h.done) })
}

type fakeOutput struct {
	mu      sync.Mutex
	handles []*fakeHandle
	err     error
}

func (f *fakeOutput) Play(buf *audio.Buffer, rate float64) (device.Handle, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	h := &fakeHandle{rate: rate, done: make(chan struct{})}
	f.handles = append(f.handles, h)
	return h, nil
}

func (f *fakeOutput) last() *fakeHandle {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.handles) == 0 {
		return nil
	}
	return f.handles[len(f.handles)-1]
}

func newController(synth *fakeSynth, out *fakeOutput) (*Controller, *media.Arbiter) {
	arb := media.NewArbiter()
	return New(synth, out, arb, 1.0), arb
}

func waitIdle(t *testing.T, c *Controller) {
	t.Helper()
	deadline := time.After(time.Second)
	for c.State() != StateIdle {
		select {
		case <-deadline:
			t.Fatal("controller never returned to idle")
		case <-time.After(time.Millisecond):
		}
	}
}

func TestPlayEmptyText(t *testing.T) {
	c, _ := newController(&fakeSynth{}, &fakeOutput{})
	err := c.Play(context.Background(), "   ")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	assert.Equal(t, StateIdle, c.State())
}

func TestPlayStartsAtRequestedRate(t *testing.T) {
	synth := &fakeSynth{}
	out := &fakeOutput{}
	c, _ := newController(synth, out)
	require.NoError(t, c.SetRate(1.5))

	require.NoError(t, c.Play(context.Background(), "hello"))
	assert.Equal(t, StatePlaying, c.State())
	assert.Equal(t, 1.5, out.last().rate)
}

func TestSetRateLiveDoesNotResynthesize(t *testing.T) {
	synth := &fakeSynth{}
	out := &fakeOutput{}
	c, _ := newController(synth, out)

	require.NoError(t, c.Play(context.Background(), "hello"))
	require.Equal(t, 1, synth.callCount())

	require.NoError(t, c.SetRate(2.0))
	h := out.last()
	h.mu.Lock()
	rate := h.rate
	h.mu.Unlock()
	assert.Equal(t, 2.0, rate, "live handle must pick up the new rate")
	assert.Equal(t, 1, synth.callCount(), "rate change must not issue a new remote call")
	assert.Equal(t, StatePlaying, c.State())
}

func TestSetRateWhileIdleIsSticky(t *testing.T) {
	out := &fakeOutput{}
	c, _ := newController(&fakeSynth{}, out)
	require.NoError(t, c.SetRate(0.75))

	require.NoError(t, c.Play(context.Background(), "hello"))
	assert.Equal(t, 0.75, out.last().rate)
}

func TestSetRateRejectsNonPositive(t *testing.T) {
	c, _ := newController(&fakeSynth{}, &fakeOutput{})
	assert.Error(t, c.SetRate(0))
	assert.Error(t, c.SetRate(-1))
}

func TestStopIdempotent(t *testing.T) {
	out := &fakeOutput{}
	c, arb := newController(&fakeSynth{}, out)

	require.NoError(t, c.Play(context.Background(), "hello"))
	h := out.last()

	c.Stop()
	waitIdle(t, c)
	assert.Empty(t, arb.Holder(), "stop must release the media token")

	c.Stop() // second stop is a no-op
	h.mu.Lock()
	stops := h.stops
	h.mu.Unlock()
	assert.Equal(t, 1, stops)
}

func TestNaturalEndReleases(t *testing.T) {
	out := &fakeOutput{}
	c, arb := newController(&fakeSynth{}, out)

	require.NoError(t, c.Play(context.Background(), "hello"))
	out.last().finishNaturally()
	waitIdle(t, c)
	assert.Empty(t, arb.Holder())

	// stop after natural end is the same no-op
	c.Stop()
	assert.Equal(t, StateIdle, c.State())
}

func TestSynthesisFailureReturnsToIdle(t *testing.T) {
	synth := &fakeSynth{err: errors.New("tts down")}
	out := &fakeOutput{}
	c, arb := newController(synth, out)

	err := c.Play(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, arb.Holder())
	assert.Nil(t, out.last(), "no output node may remain allocated")

	// recoverable: next play succeeds
	synth.mu.Lock()
	synth.err = nil
	synth.mu.Unlock()
	require.NoError(t, c.Play(context.Background(), "hello again"))
}

func TestOutputFailureReturnsToIdle(t *testing.T) {
	out := &fakeOutput{err: errors.New("no speaker")}
	c, arb := newController(&fakeSynth{}, out)

	err := c.Play(context.Background(), "hello")
	require.Error(t, err)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, arb.Holder())
}

func TestPlayRejectedWhileBusy(t *testing.T) {
	out := &fakeOutput{}
	c, _ := newController(&fakeSynth{}, out)

	require.NoError(t, c.Play(context.Background(), "first"))
	err := c.Play(context.Background(), "second")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestPlayRejectedWhileRecording(t *testing.T) {
	c, arb := newController(&fakeSynth{}, &fakeOutput{})
	require.True(t, arb.TryAcquire("capture"))

	err := c.Play(context.Background(), "hello")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "capture in progress", "error names the actual holder")
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, "capture", arb.Holder(), "rejection must not disturb the recorder's claim")
}
