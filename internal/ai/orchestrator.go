package ai

import (
	"context"
	"errors"
	"sync/atomic"

	"github.com/voxnote/voxnote/internal/audio"
)

// Service is the set of remote operations the orchestrator guards.
type Service interface {
	Summarize(ctx context.Context, text string) (string, error)
	Rewrite(ctx context.Context, text, instruction string) (string, error)
	Synthesize(ctx context.Context, text string) (*audio.Buffer, error)
	Transcribe(ctx context.Context, data []byte, mimeType string) (string, error)
}

// ErrBusy rejects a second operation while one is in flight. Concurrent
// requests are rejected, never queued: the UI shows a single processing
// indicator, and two AI writes must not race on the same note.
var ErrBusy = errors.New("an AI operation is already in flight")

// Orchestrator enforces the single-flight policy over a Service. One
// orchestrator exists per editor session.
type Orchestrator struct {
	svc  Service
	busy atomic.Bool
}

func NewOrchestrator(svc Service) *Orchestrator {
	return &Orchestrator{svc: svc}
}

// Busy reports whether an operation is currently in flight.
func (o *Orchestrator) Busy() bool {
	return o.busy.Load()
}

func (o *Orchestrator) acquire() bool {
	return o.busy.CompareAndSwap(false, true)
}

func (o *Orchestrator) release() {
	o.busy.Store(false)
}

// Summarize returns immediately on empty text without touching the remote
// service or the in-flight slot.
func (o *Orchestrator) Summarize(ctx context.Context, text string) (string, error) {
	if text == "" {
		return "", nil
	}
	if !o.acquire() {
		return "", ErrBusy
	}
	defer o.release()
	return o.svc.Summarize(ctx, text)
}

// Rewrite returns immediately on empty text, like Summarize.
func (o *Orchestrator) Rewrite(ctx context.Context, text, instruction string) (string, error) {
	if text == "" {
		return "", nil
	}
	if !o.acquire() {
		return "", ErrBusy
	}
	defer o.release()
	return o.svc.Rewrite(ctx, text, instruction)
}

func (o *Orchestrator) Synthesize(ctx context.Context, text string) (*audio.Buffer, error) {
	if !o.acquire() {
		return nil, ErrBusy
	}
	defer o.release()
	return o.svc.Synthesize(ctx, text)
}

func (o *Orchestrator) Transcribe(ctx context.Context, data []byte, mimeType string) (string, error) {
	if !o.acquire() {
		return "", ErrBusy
	}
	defer o.release()
	return o.svc.Transcribe(ctx, data, mimeType)
}
