package playback

import (
	"context"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Errors
var (
	ErrNodeUnavailable    = errors.New("audio node unavailable")
	ErrNotFound           = errors.New("entry not found in queue")
	ErrPositionOutOfRange = errors.New("queue position out of range")
	ErrInvalidEventKind   = errors.New("invalid event kind")
	ErrPlayerClosed       = errors.New("player closed")
)

// AudioNode is the per-session handle to the remote audio node.
// Directives return once the node has accepted them; the resulting lifecycle
// events arrive later on Events.
type AudioNode interface {
	Play(ctx context.Context, t track.Track) error
	Stop(ctx context.Context) error
	SetPaused(ctx context.Context, paused bool) error
	Destroy(ctx context.Context) error
	Position() time.Duration
	Events() <-chan Event
}

// Announcer is told about user-visible transitions. Implementations must not
// block for long and must not call back into the player.
type Announcer interface {
	AnnounceNowPlaying(ctx context.Context, sessionID string, entry track.QueueEntry)
	AnnounceIdle(ctx context.Context, sessionID string)
}

// Announcers fans out to every announcer in order.
type Announcers []Announcer

// AnnounceNowPlaying implements Announcer.
func (as Announcers) AnnounceNowPlaying(ctx context.Context, sessionID string, entry track.QueueEntry) {
	for _, a := range as {
		a.AnnounceNowPlaying(ctx, sessionID, entry)
	}
}

// AnnounceIdle implements Announcer.
func (as Announcers) AnnounceIdle(ctx context.Context, sessionID string) {
	for _, a := range as {
		a.AnnounceIdle(ctx, sessionID)
	}
}
