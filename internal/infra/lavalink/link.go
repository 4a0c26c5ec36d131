package lavalink

import (
	"context"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Link is the player of one guild on one node. It implements
// playback.AudioNode.
type Link struct {
	client  *Client
	guildID string
	events  chan playback.Event
	done    chan struct{}
	wake    chan struct{}

	// inbox holds events not yet handed to events, in arrival order.
	inbox []playback.Event

	mu         sync.Mutex
	position   time.Duration
	positionAt time.Time
	paused     bool
	playing    bool
	voice      voiceState
	destroyed  bool
}

func newLink(c *Client, guildID string, buffer int) *Link {
	l := &Link{
		client:  c,
		guildID: guildID,
		events:  make(chan playback.Event, buffer),
		done:    make(chan struct{}),
		wake:    make(chan struct{}, 1),
	}
	go l.deliver()
	return l
}

// GuildID returns the guild this link plays for.
func (l *Link) GuildID() string {
	return l.guildID
}

// Node returns the name of the node the link is bound to.
func (l *Link) Node() string {
	return l.client.Name()
}

// Play starts t, replacing whatever is playing.
func (l *Link) Play(ctx context.Context, t track.Track) error {
	if t.Encoded == "" {
		return errors.Newf("track %q has not been loaded on a node", t.Title)
	}
	enc := t.Encoded
	if err := l.client.updatePlayer(ctx, l.guildID, playerUpdate{Track: &trackUpdate{Encoded: &enc}}); err != nil {
		return err
	}

	l.mu.Lock()
	l.position, l.positionAt, l.playing = 0, time.Now(), true
	l.mu.Unlock()
	return nil
}

// Stop stops the current track. The node reports the end with reason
// "stopped".
func (l *Link) Stop(ctx context.Context) error {
	if err := l.client.updatePlayer(ctx, l.guildID, playerUpdate{Track: &trackUpdate{Encoded: nil}}); err != nil {
		return err
	}

	l.mu.Lock()
	l.playing = false
	l.mu.Unlock()
	return nil
}

// SetPaused pauses or resumes the player. The node does not report pause
// changes, so the matching TrackPause or TrackResume event is queued here
// once the node has accepted the change. It never waits for the consumer.
func (l *Link) SetPaused(ctx context.Context, paused bool) error {
	if err := l.client.updatePlayer(ctx, l.guildID, playerUpdate{Paused: &paused}); err != nil {
		return err
	}

	l.mu.Lock()
	if !l.paused && paused {
		l.position += time.Since(l.positionAt)
	}
	l.positionAt = time.Now()
	l.paused = paused
	l.mu.Unlock()

	if paused {
		l.emit(playback.TrackPause{Session: l.guildID})
	} else {
		l.emit(playback.TrackResume{Session: l.guildID})
	}
	return nil
}

// Destroy removes the player from the node and detaches the link. Events
// are no longer delivered afterwards.
func (l *Link) Destroy(ctx context.Context) error {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		return nil
	}
	l.destroyed = true
	close(l.done)
	l.mu.Unlock()

	l.client.removeLink(l.guildID)
	if err := l.client.destroyPlayer(ctx, l.guildID); err != nil && !errors.Is(err, ErrNotReady) {
		return err
	}
	return nil
}

// Position returns the playback position, extrapolated from the node's last
// player update.
func (l *Link) Position() time.Duration {
	l.mu.Lock()
	defer l.mu.Unlock()
	if !l.playing {
		return 0
	}
	if l.paused || l.positionAt.IsZero() {
		return l.position
	}
	return l.position + time.Since(l.positionAt)
}

// Events returns the ordered event stream for this guild.
func (l *Link) Events() <-chan playback.Event {
	return l.events
}

// UpdateVoiceServer records the voice server token and endpoint for the
// guild and forwards the voice state once the session ID is known too.
func (l *Link) UpdateVoiceServer(ctx context.Context, token, endpoint string) error {
	l.mu.Lock()
	l.voice.Token, l.voice.Endpoint = token, endpoint
	v := l.voice
	l.mu.Unlock()
	return l.sendVoice(ctx, v)
}

// UpdateVoiceSession records the bot's voice session ID for the guild and
// forwards the voice state once the server is known too.
func (l *Link) UpdateVoiceSession(ctx context.Context, sessionID string) error {
	l.mu.Lock()
	l.voice.SessionID = sessionID
	v := l.voice
	l.mu.Unlock()
	return l.sendVoice(ctx, v)
}

func (l *Link) sendVoice(ctx context.Context, v voiceState) error {
	if v.Token == "" || v.Endpoint == "" || v.SessionID == "" {
		return nil
	}
	return l.client.updatePlayer(ctx, l.guildID, playerUpdate{Voice: &v})
}

func (l *Link) updateState(s wirePlayerState) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.position = time.Duration(s.Position) * time.Millisecond
	l.positionAt = time.Now()
	if s.Time > 0 {
		l.positionAt = time.UnixMilli(s.Time)
	}
}

// emit queues ev for delivery without blocking, so a slow consumer never
// holds up the node's read loop or a directive. Order is preserved.
func (l *Link) emit(ev playback.Event) {
	l.mu.Lock()
	if l.destroyed {
		l.mu.Unlock()
		zlog.Debug().Msgf("lavalink: event after destroy dropped guild=%s kind=%s", l.guildID, ev.Kind())
		return
	}
	l.inbox = append(l.inbox, ev)
	l.mu.Unlock()

	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// deliver moves queued events onto the events channel until the link is
// destroyed.
func (l *Link) deliver() {
	for {
		select {
		case <-l.wake:
		case <-l.done:
			return
		}

		for {
			l.mu.Lock()
			batch := l.inbox
			l.inbox = nil
			l.mu.Unlock()
			if len(batch) == 0 {
				break
			}
			for _, ev := range batch {
				select {
				case l.events <- ev:
				case <-l.done:
					return
				}
			}
		}
	}
}
