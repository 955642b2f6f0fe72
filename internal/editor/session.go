// Package editor coordinates the note being worked on: opening through the
// access gate, field updates, the AI assists, and the voice flows. One
// session exists per running server; it tracks a single active note.
package editor

import (
	"context"
	"strings"
	"sync"

	log "github.com/sirupsen/logrus"

	"github.com/voxnote/voxnote/internal/ai"
	"github.com/voxnote/voxnote/internal/capture"
	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/gate"
	"github.com/voxnote/voxnote/internal/note"
	"github.com/voxnote/voxnote/internal/playback"
	"github.com/voxnote/voxnote/internal/store"
)

// Rewrite presets. The instruction is sent to the model verbatim.
const (
	InstructionGrammar   = "Fix grammar, spelling, and improve flow without changing the meaning."
	InstructionElaborate = "Elaborate on the key points, adding detail and depth."
)

const summaryHeading = "\n\n**AI Summary:**\n"

// Update is a partial edit of the active note. Nil fields are left alone.
type Update struct {
	Title    *string   `json:"title"`
	Content  *string   `json:"content"`
	Tags     *[]string `json:"tags"`
	Color    *string   `json:"color"`
	IsPinned *bool     `json:"isPinned"`
	IsSecret *bool     `json:"isSecret"`
}

// DictationResult reports what happened to a finished dictation. Merged is
// false when the transcript arrived for a note that is no longer active and
// was dropped.
type DictationResult struct {
	Merged bool      `json:"merged"`
	Text   string    `json:"text"`
	Note   note.Note `json:"note"`
}

// Session is the single editing context.
type Session struct {
	store    *store.NoteStore
	gate     *gate.Gate
	ai       *ai.Orchestrator
	playback *playback.Controller
	capture  *capture.Controller

	mu       sync.Mutex
	activeID string
}

func NewSession(s *store.NoteStore, g *gate.Gate, o *ai.Orchestrator, p *playback.Controller, c *capture.Controller) *Session {
	return &Session{store: s, gate: g, ai: o, playback: p, capture: c}
}

// ActiveID returns the id of the note being edited, empty when none.
func (s *Session) ActiveID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.activeID
}

// Open makes a note the active one. A locked note requires its lock pin; a
// wrong or missing pin is an auth error and the note stays closed.
func (s *Session) Open(ctx context.Context, id, pin string) (note.Note, error) {
	n, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return note.Note{}, err
	}
	if !ok {
		return note.Note{}, fault.Validation("note %s not found", id)
	}
	if n.IsLocked && !s.gate.CheckNotePin(n, pin) {
		return note.Note{}, fault.Auth("incorrect PIN")
	}

	s.Close()
	s.mu.Lock()
	s.activeID = id
	s.mu.Unlock()
	return n, nil
}

// Close leaves the active note: any recording is discarded and any playback
// stopped. Safe to call with nothing open.
func (s *Session) Close() {
	s.capture.Abort()
	s.playback.Stop()
	s.mu.Lock()
	s.activeID = ""
	s.mu.Unlock()
}

// Create inserts a blank note in the given category and makes it active.
func (s *Session) Create(ctx context.Context, secret bool) (note.Note, error) {
	n := note.New()
	n.IsSecret = secret
	if err := s.store.Put(ctx, n); err != nil {
		return note.Note{}, err
	}
	s.Close()
	s.mu.Lock()
	s.activeID = n.ID
	s.mu.Unlock()
	return n, nil
}

// Save applies a partial update to a note and persists it.
func (s *Session) Save(ctx context.Context, id string, up Update) (note.Note, error) {
	n, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return note.Note{}, err
	}
	if !ok {
		return note.Note{}, fault.Validation("note %s not found", id)
	}
	if up.Title != nil {
		n.Title = *up.Title
	}
	if up.Content != nil {
		n.Content = *up.Content
	}
	if up.Tags != nil {
		n.Tags = *up.Tags
	}
	if up.Color != nil {
		n.Color = *up.Color
	}
	if up.IsPinned != nil {
		n.IsPinned = *up.IsPinned
	}
	if up.IsSecret != nil {
		n.IsSecret = *up.IsSecret
	}
	n.Touch()
	if err := s.store.Put(ctx, n); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

// Delete removes a note. Deleting the active note closes the session first.
func (s *Session) Delete(ctx context.Context, id string) error {
	if s.ActiveID() == id {
		s.Close()
	}
	return s.store.Delete(ctx, id)
}

// Summarize appends an AI summary section to the active note. Empty notes
// are left untouched without a remote call.
func (s *Session) Summarize(ctx context.Context) (note.Note, error) {
	n, err := s.active(ctx)
	if err != nil {
		return note.Note{}, err
	}
	summary, err := s.ai.Summarize(ctx, n.Content)
	if err != nil {
		return note.Note{}, err
	}
	if summary == "" {
		return n, nil
	}
	n.Content += summaryHeading + summary
	n.Touch()
	if err := s.store.Put(ctx, n); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

// Rewrite replaces the active note's content with an AI revision. The
// instruction is free text; InstructionGrammar and InstructionElaborate are
// the built-in presets.
func (s *Session) Rewrite(ctx context.Context, instruction string) (note.Note, error) {
	if strings.TrimSpace(instruction) == "" {
		return note.Note{}, fault.Validation("rewrite needs an instruction")
	}
	n, err := s.active(ctx)
	if err != nil {
		return note.Note{}, err
	}
	revised, err := s.ai.Rewrite(ctx, n.Content, instruction)
	if err != nil {
		return note.Note{}, err
	}
	if revised == "" {
		return n, nil
	}
	n.Content = revised
	n.Touch()
	if err := s.store.Put(ctx, n); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

// Speak reads the active note's content aloud.
func (s *Session) Speak(ctx context.Context) error {
	n, err := s.active(ctx)
	if err != nil {
		return err
	}
	return s.playback.Play(ctx, n.Content)
}

// StopSpeaking halts playback. A no-op when nothing is playing.
func (s *Session) StopSpeaking() {
	s.playback.Stop()
}

// SetRate adjusts the playback rate, live or for the next Speak.
func (s *Session) SetRate(rate float64) error {
	return s.playback.SetRate(rate)
}

// StartDictation begins recording into the active note.
func (s *Session) StartDictation(ctx context.Context) error {
	s.mu.Lock()
	id := s.activeID
	s.mu.Unlock()
	if id == "" {
		return fault.Validation("no note is open")
	}
	return s.capture.Start(ctx, id)
}

// StopDictation ends recording and merges the transcript into the note the
// recording was bound to. If that note is no longer the active one the
// transcript is dropped, not written into whatever the user navigated to.
func (s *Session) StopDictation(ctx context.Context) (DictationResult, error) {
	res, err := s.capture.Stop(ctx)
	if err != nil {
		return DictationResult{}, err
	}
	if res.Text == "" {
		return DictationResult{Text: ""}, nil
	}

	s.mu.Lock()
	active := s.activeID
	s.mu.Unlock()
	if res.NoteID != active {
		log.Warnf("dropping transcript for note %s: no longer active", res.NoteID)
		return DictationResult{Text: res.Text}, nil
	}

	n, ok, err := s.store.Get(ctx, res.NoteID)
	if err != nil {
		return DictationResult{}, err
	}
	if !ok {
		log.Warnf("dropping transcript for note %s: note deleted", res.NoteID)
		return DictationResult{Text: res.Text}, nil
	}
	n.Content = note.MergeTranscript(n.Content, res.Text)
	n.Touch()
	if err := s.store.Put(ctx, n); err != nil {
		return DictationResult{}, err
	}
	return DictationResult{Merged: true, Text: res.Text, Note: n}, nil
}

// active loads the currently open note.
func (s *Session) active(ctx context.Context) (note.Note, error) {
	s.mu.Lock()
	id := s.activeID
	s.mu.Unlock()
	if id == "" {
		return note.Note{}, fault.Validation("no note is open")
	}
	n, ok, err := s.store.Get(ctx, id)
	if err != nil {
		return note.Note{}, err
	}
	if !ok {
		return note.Note{}, fault.Validation("note %s not found", id)
	}
	return n, nil
}
