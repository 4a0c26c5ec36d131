package discord

import (
	"context"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

const (
	nowPlayingPrefix = "♫ Now playing "
	idleTopic        = "Not playing anything right now..."

	announceTimeout = 10 * time.Second
	announceBuffer  = 64
)

// ChannelAPI is the part of the Discord REST API the announcer uses.
// *discordgo.Session implements it.
type ChannelAPI interface {
	ChannelEdit(channelID string, data *discordgo.ChannelEdit, options ...discordgo.RequestOption) (*discordgo.Channel, error)
	ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error)
}

// ChannelLookup returns where a guild's announcements go.
// *settings.Store implements it.
type ChannelLookup interface {
	AnnounceChannel(ctx context.Context, guildID string) (channelID string, messages bool, ok bool, err error)
}

type announcement struct {
	guildID string
	text    string // topic; also sent as a message for now-playing
	message bool
}

// Announcer writes playback announcements to each guild's configured text
// channel. Announcements are delivered in order by a background worker so
// players never wait on Discord. It implements playback.Announcer.
type Announcer struct {
	api      ChannelAPI
	channels ChannelLookup

	mu     sync.RWMutex
	jobs   chan announcement
	done   chan struct{}
	closed bool
}

// NewAnnouncer creates an announcer and starts its worker.
func NewAnnouncer(api ChannelAPI, channels ChannelLookup) *Announcer {
	a := &Announcer{
		api:      api,
		channels: channels,
		jobs:     make(chan announcement, announceBuffer),
		done:     make(chan struct{}),
	}
	go a.run()
	return a
}

// NowPlayingText returns the announcement for entry.
func NowPlayingText(entry track.QueueEntry) string {
	return nowPlayingPrefix + entry.String()
}

// AnnounceNowPlaying sets the channel topic to the playing entry and, when
// the guild asked for it, sends it as a message.
func (a *Announcer) AnnounceNowPlaying(_ context.Context, guildID string, entry track.QueueEntry) {
	a.enqueue(announcement{guildID: guildID, text: NowPlayingText(entry), message: true})
}

// AnnounceIdle resets the channel topic.
func (a *Announcer) AnnounceIdle(_ context.Context, guildID string) {
	a.enqueue(announcement{guildID: guildID, text: idleTopic})
}

// Close stops the worker after the queued announcements are delivered.
func (a *Announcer) Close() {
	a.mu.Lock()
	if !a.closed {
		a.closed = true
		close(a.jobs)
	}
	a.mu.Unlock()
	<-a.done
}

func (a *Announcer) enqueue(j announcement) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	if a.closed {
		return
	}
	select {
	case a.jobs <- j:
	default:
		zlog.Warn().Msgf("discord: announcement queue full, dropped guild=%s", j.guildID)
	}
}

func (a *Announcer) run() {
	defer close(a.done)
	for j := range a.jobs {
		a.deliver(j)
	}
}

func (a *Announcer) deliver(j announcement) {
	ctx, cancel := context.WithTimeout(context.Background(), announceTimeout)
	defer cancel()

	channelID, messages, ok, err := a.channels.AnnounceChannel(ctx, j.guildID)
	if err != nil {
		zlog.Warn().Msgf("discord: announce channel lookup failed guild=%s error=%v", j.guildID, err)
		return
	}
	if !ok {
		return
	}

	if _, err := a.api.ChannelEdit(channelID, &discordgo.ChannelEdit{Topic: j.text}, discordgo.WithContext(ctx)); err != nil {
		zlog.Warn().Msgf("discord: topic update failed guild=%s channel=%s error=%v", j.guildID, channelID, err)
	}
	if j.message && messages {
		if _, err := a.api.ChannelMessageSend(channelID, j.text, discordgo.WithContext(ctx)); err != nil {
			zlog.Warn().Msgf("discord: announcement failed guild=%s channel=%s error=%v", j.guildID, channelID, err)
		}
	}
}
