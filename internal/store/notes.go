package store

import (
	"context"
	"encoding/json"
	"fmt"
	"sync"

	"github.com/voxnote/voxnote/internal/note"
)

// NoteStore is pure CRUD over the notes slot plus accessors for the vault
// PIN slot. New notes are inserted at the front, so "insertion order" reads
// newest first. A small cache avoids re-parsing the collection on every
// read; Invalidate drops it when the backing slot changed externally.
type NoteStore struct {
	mu     sync.Mutex
	kv     KV
	notes  []note.Note
	loaded bool
}

func NewNoteStore(kv KV) *NoteStore {
	return &NoteStore{kv: kv}
}

// Invalidate discards the in-memory copy of the collection. The next read
// reloads from the slot.
func (s *NoteStore) Invalidate() {
	s.mu.Lock()
	s.notes = nil
	s.loaded = false
	s.mu.Unlock()
}

// load populates the cache. Caller must hold mu.
func (s *NoteStore) load(ctx context.Context) error {
	if s.loaded {
		return nil
	}
	data, ok, err := s.kv.Get(ctx, SlotNotes)
	if err != nil {
		return err
	}
	if !ok {
		s.notes = []note.Note{}
		s.loaded = true
		return nil
	}
	var notes []note.Note
	if err := json.Unmarshal(data, &notes); err != nil {
		return fmt.Errorf("parse notes slot: %w", err)
	}
	s.notes = notes
	s.loaded = true
	return nil
}

// flush rewrites the whole collection. Caller must hold mu.
func (s *NoteStore) flush(ctx context.Context) error {
	data, err := json.Marshal(s.notes)
	if err != nil {
		return fmt.Errorf("marshal notes: %w", err)
	}
	return s.kv.Set(ctx, SlotNotes, data)
}

// List returns the collection in insertion order (newest first).
func (s *NoteStore) List(ctx context.Context) ([]note.Note, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return nil, err
	}
	out := make([]note.Note, len(s.notes))
	copy(out, s.notes)
	return out, nil
}

// Get returns the note with the given id, if present.
func (s *NoteStore) Get(ctx context.Context, id string) (note.Note, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return note.Note{}, false, err
	}
	for _, n := range s.notes {
		if n.ID == id {
			return n, true, nil
		}
	}
	return note.Note{}, false, nil
}

// Put upserts by id: an existing note is replaced in place, a new one is
// inserted at the front.
func (s *NoteStore) Put(ctx context.Context, n note.Note) error {
	if n.ID == "" {
		return fmt.Errorf("note has no id")
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}
	replaced := false
	for i := range s.notes {
		if s.notes[i].ID == n.ID {
			s.notes[i] = n
			replaced = true
			break
		}
	}
	if !replaced {
		s.notes = append([]note.Note{n}, s.notes...)
	}
	return s.flush(ctx)
}

// Delete removes the note with the given id. Deleting an absent id is a
// no-op.
func (s *NoteStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.load(ctx); err != nil {
		return err
	}
	kept := s.notes[:0]
	for _, n := range s.notes {
		if n.ID != id {
			kept = append(kept, n)
		}
	}
	s.notes = kept
	return s.flush(ctx)
}

// VaultPin reads the vault credential slot. The bool reports whether a PIN
// has ever been set.
func (s *NoteStore) VaultPin(ctx context.Context) (string, bool, error) {
	data, ok, err := s.kv.Get(ctx, SlotVaultPin)
	if err != nil || !ok {
		return "", false, err
	}
	return string(data), true, nil
}

// SetVaultPin persists the vault credential. Stored as given: the PIN is an
// access gate, not a cryptographic protection.
func (s *NoteStore) SetVaultPin(ctx context.Context, pin string) error {
	return s.kv.Set(ctx, SlotVaultPin, []byte(pin))
}
