// Package track provides the Track and QueueEntry domain entities.
package track

import (
	"time"

	"github.com/google/uuid"
)

// Track represents a resolved audio source.
// Contains only information returned by the audio node (or a metadata provider).
type Track struct {
	Encoded    string        // Node-opaque handle used for play directives
	Identifier string        // Source identifier (e.g. YouTube video ID)
	URI        string        // Source URL
	Title      string        // Track title
	Author     string        // Uploader or artist
	Duration   time.Duration // Track length (0 for streams)
	IsStream   bool          // Live stream flag
	SourceName string        // Source provider name (youtube, soundcloud, ...)
	ArtworkURL string        // Artwork URL (optional)
}

// Key returns the identity used to correlate node events with this track.
func (t Track) Key() string {
	if t.Encoded != "" {
		return t.Encoded
	}
	return t.Identifier
}

// Requester represents the user who enqueued a track.
type Requester struct {
	ID         string // Chat platform user ID
	Name       string // Display name
	AvatarURL  string // Avatar URL (optional)
	Privileged bool   // DJ role, bypasses requester quotas
}

// QueueEntry binds a track to the requester who enqueued it.
type QueueEntry struct {
	ID         string    // Entry UUID, unique per enqueue
	Track      Track     // Track info
	Requester  Requester // Requester info
	EnqueuedAt time.Time // Time when added to queue
}

// NewEntry creates a new queue entry.
func NewEntry(t Track, r Requester) QueueEntry {
	return QueueEntry{
		ID:         uuid.New().String(),
		Track:      t,
		Requester:  r,
		EnqueuedAt: time.Now(),
	}
}

// String returns a short human-readable form used in logs and announcements.
func (e QueueEntry) String() string {
	if e.Requester.Name == "" {
		return e.Track.Title
	}
	return e.Track.Title + " [" + e.Requester.Name + "]"
}
