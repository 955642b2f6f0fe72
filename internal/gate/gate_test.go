package gate

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/voxnote/voxnote/internal/fault"
	"github.com/voxnote/voxnote/internal/note"
	"github.com/voxnote/voxnote/internal/store"
)

func newGate(t *testing.T) (*Gate, *store.NoteStore) {
	t.Helper()
	kv, err := store.NewFileKV(t.TempDir())
	require.NoError(t, err)
	s := store.NewNoteStore(kv)
	return New(s), s
}

func TestEnterCategoryNormalAlwaysAllowed(t *testing.T) {
	g, _ := newGate(t)
	res, err := g.EnterCategory(context.Background(), false)
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.False(t, res.NeedsSetup)
}

func TestVaultFlow(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)

	// vault never configured -> setup flow
	res, err := g.EnterCategory(ctx, true)
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.True(t, res.NeedsSetup)

	require.NoError(t, g.SetVaultPin(ctx, "1234"))

	res, err = g.EnterCategory(ctx, true)
	require.NoError(t, err)
	assert.False(t, res.NeedsSetup, "credential exists, caller must run the PIN check")

	ok, err := g.CheckVaultPin(ctx, "1234")
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = g.CheckVaultPin(ctx, "0000")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestSetVaultPinTooShort(t *testing.T) {
	ctx := context.Background()
	g, _ := newGate(t)

	err := g.SetVaultPin(ctx, "123")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))

	// state unchanged: still needs setup
	res, err := g.EnterCategory(ctx, true)
	require.NoError(t, err)
	assert.True(t, res.NeedsSetup)
}

func TestCheckVaultPinBeforeSetup(t *testing.T) {
	g, _ := newGate(t)
	ok, err := g.CheckVaultPin(context.Background(), "1234")
	require.NoError(t, err)
	assert.False(t, ok, "no credential can ever match")
}

func TestLockNote(t *testing.T) {
	ctx := context.Background()
	g, s := newGate(t)
	n := note.New()
	require.NoError(t, s.Put(ctx, n))

	locked, err := g.LockNote(ctx, n.ID, "9876")
	require.NoError(t, err)
	assert.True(t, locked.IsLocked)
	assert.Equal(t, "9876", locked.LockPin)

	// persisted through the store's write path
	got, ok, err := s.Get(ctx, n.ID)
	require.NoError(t, err)
	require.True(t, ok)
	assert.True(t, got.IsLocked)
}

func TestLockNotePinTooShort(t *testing.T) {
	ctx := context.Background()
	g, s := newGate(t)
	n := note.New()
	require.NoError(t, s.Put(ctx, n))

	_, err := g.LockNote(ctx, n.ID, "12")
	require.Error(t, err)
	assert.Equal(t, fault.KindValidation, fault.KindOf(err))

	got, _, err := s.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked, "failed lock must not mutate the note")
}

func TestUnlockNote(t *testing.T) {
	ctx := context.Background()
	g, s := newGate(t)
	n := note.New()
	require.NoError(t, s.Put(ctx, n))
	_, err := g.LockNote(ctx, n.ID, "9876")
	require.NoError(t, err)

	// wrong pin: auth error, no mutation
	_, err = g.UnlockNote(ctx, n.ID, "0000")
	require.Error(t, err)
	assert.Equal(t, fault.KindAuth, fault.KindOf(err))
	got, _, err := s.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.True(t, got.IsLocked)

	// correct pin: unlocked, pin cleared not hidden
	unlocked, err := g.UnlockNote(ctx, n.ID, "9876")
	require.NoError(t, err)
	assert.False(t, unlocked.IsLocked)
	assert.Empty(t, unlocked.LockPin)

	got, _, err = s.Get(ctx, n.ID)
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
	assert.Empty(t, got.LockPin, "lockPin must not survive in the store")
}

func TestUnlockAlreadyUnlocked(t *testing.T) {
	ctx := context.Background()
	g, s := newGate(t)
	n := note.New()
	require.NoError(t, s.Put(ctx, n))

	got, err := g.UnlockNote(ctx, n.ID, "whatever")
	require.NoError(t, err)
	assert.False(t, got.IsLocked)
}

func TestCheckNotePin(t *testing.T) {
	g, _ := newGate(t)
	n := note.Note{IsLocked: true, LockPin: "4444"}
	assert.True(t, g.CheckNotePin(n, "4444"))
	assert.False(t, g.CheckNotePin(n, "4445"))
	assert.False(t, g.CheckNotePin(note.Note{}, ""), "unlocked note never matches")
}
