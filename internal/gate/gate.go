// Package gate decides whether a requested view of a note or category may
// proceed. Two independent checks: one shared vault PIN for all secret
// notes, and an optional per-note lock PIN.
//
// Both PINs are stored and compared as plain strings with no attempt
// limiting. That is the application's contract, preserved here as-is; it is
// an access gate, not a cryptographic protection.
package gate

import (
	"context"
	"fmt"

	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/note"
	"github.com/voxnote/voxnote/internal/store"
)

// EnterResult is the answer to a category-entry request.
type EnterResult struct {
	Allowed    bool `json:"allowed"`
	NeedsSetup bool `json:"needsSetup"`
}

// Gate enforces the vault and per-note PIN checks. All mutations go through
// the note store's write path.
type Gate struct {
	store *store.NoteStore
}

func New(s *store.NoteStore) *Gate {
	return &Gate{store: s}
}

// EnterCategory gates switching into the secret category. The normal
// category is always allowed. If no vault credential has ever been set, the
// caller is redirected to a PIN-creation flow rather than a PIN check.
func (g *Gate) EnterCategory(ctx context.Context, secret bool) (EnterResult, error) {
	if !secret {
		return EnterResult{Allowed: true}, nil
	}
	_, exists, err := g.store.VaultPin(ctx)
	if err != nil {
		return EnterResult{}, fmt.Errorf("read vault credential: %w", err)
	}
	if !exists {
		return EnterResult{NeedsSetup: true}, nil
	}
	// A credential exists: the caller must collect input and CheckVaultPin.
	return EnterResult{}, nil
}

// SetVaultPin creates the vault credential and grants immediate entry.
func (g *Gate) SetVaultPin(ctx context.Context, pin string) error {
	if len(pin) < note.MinPinLength {
		return fault.Validation("PIN must be at least %d characters", note.MinPinLength)
	}
	if err := g.store.SetVaultPin(ctx, pin); err != nil {
		return fmt.Errorf("persist vault credential: %w", err)
	}
	return nil
}

// CheckVaultPin is an exact string match against the stored credential.
// Returns false when no credential exists.
func (g *Gate) CheckVaultPin(ctx context.Context, pin string) (bool, error) {
	stored, exists, err := g.store.VaultPin(ctx)
	if err != nil {
		return false, fmt.Errorf("read vault credential: %w", err)
	}
	return exists && stored == pin, nil
}

// LockNote applies a per-note lock and persists the result.
func (g *Gate) LockNote(ctx context.Context, id, pin string) (note.Note, error) {
	if len(pin) < note.MinPinLength {
		return note.Note{}, fault.Validation("PIN must be at least %d characters", note.MinPinLength)
	}
	n, ok, err := g.store.Get(ctx, id)
	if err != nil {
		return note.Note{}, err
	}
	if !ok {
		return note.Note{}, fault.Validation("note %s not found", id)
	}
	n.IsLocked = true
	n.LockPin = pin
	n.Touch()
	if err := g.store.Put(ctx, n); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

// UnlockNote removes a note's lock after a PIN challenge. The pin must
// match the stored one; a failed challenge is an auth error and the note is
// left untouched. On success the pin is cleared, not merely hidden.
func (g *Gate) UnlockNote(ctx context.Context, id, pin string) (note.Note, error) {
	n, ok, err := g.store.Get(ctx, id)
	if err != nil {
		return note.Note{}, err
	}
	if !ok {
		return note.Note{}, fault.Validation("note %s not found", id)
	}
	if !n.IsLocked {
		return n, nil
	}
	if !g.CheckNotePin(n, pin) {
		return note.Note{}, fault.Auth("incorrect PIN")
	}
	n.IsLocked = false
	n.LockPin = ""
	n.Touch()
	if err := g.store.Put(ctx, n); err != nil {
		return note.Note{}, err
	}
	return n, nil
}

// CheckNotePin is an exact match against the note's lock pin.
func (g *Gate) CheckNotePin(n note.Note, pin string) bool {
	return n.IsLocked && n.LockPin != "" && n.LockPin == pin
}
