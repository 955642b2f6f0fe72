// Package store persists the note collection and the vault credential.
//
// The layout is deliberately primitive: one KV slot holds the entire note
// sequence as a single serialized collection, a second independent slot
// holds the vault PIN. Every mutation reads the slot in full and rewrites
// it in full; there are no partial updates and no transaction log.
package store

import "context"

// Slot keys. These are the only two values the application ever persists.
const (
	SlotNotes    = "notes"
	SlotVaultPin = "vault_pin"
)

// KV is a whole-value key-value slot. Get reports absence via the bool,
// not an error.
type KV interface {
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Set(ctx context.Context, key string, value []byte) error
}
