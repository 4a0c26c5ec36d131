// Package playback implements the per-guild player state machine: the queue,
// the current entry, and the transitions driven by commands and node events.
package playback

import (
	"time"

	"github.com/osa030/guildbox/internal/domain/track"
)

// State is the externally visible playback state of a player.
type State int

const (
	StateIdle    State = iota // Nothing current
	StatePlaying              // Current entry is playing
	StatePaused               // Current entry is paused
)

// String returns the string representation of the state.
func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StatePlaying:
		return "playing"
	case StatePaused:
		return "paused"
	default:
		return "unknown"
	}
}

// Status is a point-in-time snapshot of a player.
type Status struct {
	SessionID string
	State     State
	Current   *track.QueueEntry
	Previous  *track.QueueEntry
	Queue     []track.QueueEntry
	Position  time.Duration
	SkipVotes int
}
