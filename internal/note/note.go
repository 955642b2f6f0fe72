// Package note defines the note record and the small amount of pure logic
// attached to it (timestamps, transcript merging, list ordering).
package note

import (
	"sort"
	"time"

	"github.com/google/uuid"
)

// MinPinLength is the shortest PIN accepted for both the vault and
// per-note locks.
const MinPinLength = 4

// Note is one note record. Timestamps are unix milliseconds.
// LockPin is cleared, not hidden, when the lock is removed; a note with
// IsLocked false must never persist a pin.
type Note struct {
	ID        string   `json:"id"`
	Title     string   `json:"title"`
	Content   string   `json:"content"`
	CreatedAt int64    `json:"createdAt"`
	UpdatedAt int64    `json:"updatedAt"`
	IsLocked  bool     `json:"isLocked"`
	LockPin   string   `json:"lockPin,omitempty"`
	Tags      []string `json:"tags"`
	IsSecret  bool     `json:"isSecret"`
	IsPinned  bool     `json:"isPinned"`
	Color     string   `json:"color,omitempty"`
}

// Now returns the current time in unix milliseconds.
func Now() int64 {
	return time.Now().UnixMilli()
}

// New creates a note with default field values and a fresh unique id.
func New() Note {
	ts := Now()
	return Note{
		ID:        uuid.NewString(),
		CreatedAt: ts,
		UpdatedAt: ts,
		Tags:      []string{},
	}
}

// Touch refreshes UpdatedAt. Call on every mutation before persisting.
func (n *Note) Touch() {
	n.UpdatedAt = Now()
}

// MergeTranscript appends transcribed text to existing content with a single
// separating space. Empty existing content takes the transcript verbatim,
// with no leading space.
func MergeTranscript(content, transcript string) string {
	if transcript == "" {
		return content
	}
	if content == "" {
		return transcript
	}
	return content + " " + transcript
}

// SortForList orders notes for display: pinned first, then most recently
// updated. The store's insertion order is left untouched; sort a copy.
func SortForList(notes []Note) {
	sort.SliceStable(notes, func(i, j int) bool {
		if notes[i].IsPinned != notes[j].IsPinned {
			return notes[i].IsPinned
		}
		return notes[i].UpdatedAt > notes[j].UpdatedAt
	})
}
