package capture

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

type fakeStream struct {
	ch     chan []byte
	once   sync.Once
	closes int
}

func newFakeStream() *fakeStream {
	return &fakeStream{ch: make(chan []byte, 16)}
}

func (s *fakeStream) Chunks() <-chan []byte { return s.ch }
func (s *fakeStream) MimeType() string      { return audio.CaptureMimeType }

func (s *fakeStream) Close() error {
	s.closes++
	s.once.Do(func() { close(s.ch) })
	return nil
}

func (s *fakeStream) push(t *testing.T, chunk []byte) {
	t.Helper()
	select {
	case s.ch <- chunk:
	case <-time.After(time.Second):
		t.Fatal("stream buffer full")
	}
}

type fakeInput struct {
	mu      sync.Mutex
	streams []*fakeStream
	err     error
}

func (f *fakeInput) Acquire(ctx context.Context) (device.Stream, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	s := newFakeStream()
	f.streams = append(f.streams, s)
	return s, nil
}

func (f *fakeInput) last() *fakeStream {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.streams) == 0 {
		return nil
	}
	return f.streams[len(f.streams)-1]
}

type fakeTranscriber struct {
	mu    sync.Mutex
	calls int
	data  []byte
	mime  string
	text  string
	err   error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.calls++
	f.data = append([]byte(nil), data...)
	f.mime = mimeType
	if f.err != nil {
		return "", f.err
	}
	return f.text, nil
}

func (f *fakeTranscriber) callCount() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls
}

func newCapture(in *fakeInput, svc *fakeTranscriber) (*Controller, *media.Arbiter) {
	arb := media.NewArbiter()
	return New(in, svc, arb), arb
}

// drain waits until the collector has observed all buffered chunks.
func drain(t *testing.T, c *Controller, want int) {
	t.Helper()
	deadline := time.After(time.Second)
	for {
		c.mu.Lock()
		n := len(c.chunks)
		c.mu.Unlock()
		if n >= want {
			return
		}
		select {
		case <-deadline:
			t.Fatalf("collector saw %d of %d chunks", n, want)
		case <-time.After(time.Millisecond):
		}
	}
}

func TestStopWithoutStart(t *testing.T) {
	c, _ := newCapture(&fakeInput{}, &fakeTranscriber{})
	_, err := c.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
}

func TestStartWhileCapturing(t *testing.T) {
	c, _ := newCapture(&fakeInput{}, &fakeTranscriber{})
	require.NoError(t, c.Start(context.Background(), "n1"))
	err := c.Start(context.Background(), "n2")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	assert.Equal(t, "n1", c.NoteID(), "rejection must not rebind the session")
}

func TestStartRejectedWhilePlaying(t *testing.T) {
	c, arb := newCapture(&fakeInput{}, &fakeTranscriber{})
	require.True(t, arb.TryAcquire("playback"))

	err := c.Start(context.Background(), "n1")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "playback in progress")
	assert.Equal(t, StateIdle, c.State())
	assert.Equal(t, "playback", arb.Holder(), "rejection must not disturb the player's claim")
}

func TestStartRejectionNamesHolder(t *testing.T) {
	c, arb := newCapture(&fakeInput{}, &fakeTranscriber{})
	// a racing recorder can hold the token while this controller is still
	// idle; the error must name what actually holds the device
	require.True(t, arb.TryAcquire("capture"))

	err := c.Start(context.Background(), "n1")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))
	assert.Contains(t, err.Error(), "capture in progress")
}

func TestAcquireFailureIsRecoverable(t *testing.T) {
	in := &fakeInput{err: fault.Device(errors.New("permission denied"), "microphone unavailable")}
	c, arb := newCapture(in, &fakeTranscriber{})

	err := c.Start(context.Background(), "n1")
	require.Error(t, err)
	assert.Equal(t, fault.KindDevice, fault.KindOf(err))
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, arb.Holder(), "failed acquire must release the media token")

	in.mu.Lock()
	in.err = nil
	in.mu.Unlock()
	require.NoError(t, c.Start(context.Background(), "n1"))
}

func TestStopConcatenatesChunksInOrder(t *testing.T) {
	in := &fakeInput{}
	svc := &fakeTranscriber{text: "hello world"}
	c, arb := newCapture(in, svc)

	require.NoError(t, c.Start(context.Background(), "n1"))
	s := in.last()
	s.push(t, []byte{1, 2})
	s.push(t, []byte{3})
	s.push(t, []byte{4, 5, 6})
	drain(t, c, 3)

	res, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n1", res.NoteID)
	assert.Equal(t, "hello world", res.Text)
	assert.Equal(t, []byte{1, 2, 3, 4, 5, 6}, svc.data)
	assert.Equal(t, audio.CaptureMimeType, svc.mime)
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, arb.Holder())
}

func TestStopWithoutAudioSkipsTranscription(t *testing.T) {
	in := &fakeInput{}
	svc := &fakeTranscriber{}
	c, arb := newCapture(in, svc)

	require.NoError(t, c.Start(context.Background(), "n1"))
	res, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, "n1", res.NoteID)
	assert.Empty(t, res.Text)
	assert.Zero(t, svc.callCount(), "no audio means no remote call")
	assert.Empty(t, arb.Holder())
}

func TestTranscribeFailureDiscardsAudio(t *testing.T) {
	in := &fakeInput{}
	svc := &fakeTranscriber{err: fault.AI(errors.New("503"), "transcription unavailable")}
	c, arb := newCapture(in, svc)

	require.NoError(t, c.Start(context.Background(), "n1"))
	in.last().push(t, []byte{1, 2, 3, 4})
	drain(t, c, 1)

	_, err := c.Stop(context.Background())
	require.Error(t, err)
	assert.Equal(t, fault.KindAI, fault.KindOf(err))
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, arb.Holder())

	// the failed take is gone: a fresh session starts from nothing
	svc.mu.Lock()
	svc.err = nil
	svc.text = "second take"
	svc.mu.Unlock()
	require.NoError(t, c.Start(context.Background(), "n1"))
	in.last().push(t, []byte{9})
	drain(t, c, 1)
	res, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.Equal(t, []byte{9}, svc.data)
	assert.Equal(t, "second take", res.Text)
}

func TestAbortDiscardsSession(t *testing.T) {
	in := &fakeInput{}
	svc := &fakeTranscriber{}
	c, arb := newCapture(in, svc)

	require.NoError(t, c.Start(context.Background(), "n1"))
	in.last().push(t, []byte{1, 2})
	drain(t, c, 1)

	c.Abort()
	assert.Equal(t, StateIdle, c.State())
	assert.Empty(t, c.NoteID())
	assert.Empty(t, arb.Holder())
	assert.Zero(t, svc.callCount())

	c.Abort() // idle abort is a no-op
	assert.Equal(t, StateIdle, c.State())
}

func TestCaptureBlocksPlaybackToken(t *testing.T) {
	c, arb := newCapture(&fakeInput{}, &fakeTranscriber{})
	require.NoError(t, c.Start(context.Background(), "n1"))
	assert.False(t, arb.TryAcquire("playback"), "recording must hold the media token")
	_, err := c.Stop(context.Background())
	require.NoError(t, err)
	assert.True(t, arb.TryAcquire("playback"))
}
