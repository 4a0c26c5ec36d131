package discord

import (
	"context"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

const voiceUpdateTimeout = 5 * time.Second

// VoiceUpdater receives the voice connection details the audio node needs
// to connect to a guild's voice server. *lavalink.Pool implements it.
type VoiceUpdater interface {
	UpdateVoiceServer(ctx context.Context, guildID, token, endpoint string) error
	UpdateVoiceSession(ctx context.Context, guildID, sessionID string) error
}

// VoiceJoiner sends voice state updates on the gateway.
// *discordgo.Session implements it.
type VoiceJoiner interface {
	ChannelVoiceJoinManual(gID, cID string, mute, deaf bool) error
}

// VoiceBridge joins voice channels without opening a local voice
// connection and forwards the gateway's voice events to the audio nodes,
// which connect to Discord's voice servers themselves.
type VoiceBridge struct {
	joiner VoiceJoiner
	nodes  VoiceUpdater
	selfID func() string
}

// NewVoiceBridge creates a bridge and registers its gateway handlers on s.
func NewVoiceBridge(s *discordgo.Session, nodes VoiceUpdater) *VoiceBridge {
	b := &VoiceBridge{
		joiner: s,
		nodes:  nodes,
		selfID: func() string { return SelfID(s) },
	}
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceServerUpdate) { b.onVoiceServerUpdate(e) })
	s.AddHandler(func(_ *discordgo.Session, e *discordgo.VoiceStateUpdate) { b.onVoiceStateUpdate(e) })
	return b
}

// Join joins channelID in guildID, self-deafened.
func (b *VoiceBridge) Join(_ context.Context, guildID, channelID string) error {
	if err := b.joiner.ChannelVoiceJoinManual(guildID, channelID, false, true); err != nil {
		return errors.Wrapf(err, "discord: join voice guild=%s channel=%s", guildID, channelID)
	}
	return nil
}

// Leave disconnects from the guild's voice channel.
func (b *VoiceBridge) Leave(_ context.Context, guildID string) error {
	if err := b.joiner.ChannelVoiceJoinManual(guildID, "", false, false); err != nil {
		return errors.Wrapf(err, "discord: leave voice guild=%s", guildID)
	}
	return nil
}

func (b *VoiceBridge) onVoiceServerUpdate(e *discordgo.VoiceServerUpdate) {
	ctx, cancel := context.WithTimeout(context.Background(), voiceUpdateTimeout)
	defer cancel()

	if err := b.nodes.UpdateVoiceServer(ctx, e.GuildID, e.Token, e.Endpoint); err != nil {
		zlog.Warn().Msgf("discord: voice server update not forwarded guild=%s error=%v", e.GuildID, err)
	}
}

func (b *VoiceBridge) onVoiceStateUpdate(e *discordgo.VoiceStateUpdate) {
	if e.VoiceState == nil || e.UserID != b.selfID() || e.ChannelID == "" {
		return
	}
	ctx, cancel := context.WithTimeout(context.Background(), voiceUpdateTimeout)
	defer cancel()

	if err := b.nodes.UpdateVoiceSession(ctx, e.GuildID, e.SessionID); err != nil {
		zlog.Warn().Msgf("discord: voice session update not forwarded guild=%s error=%v", e.GuildID, err)
	}
}
