// Package discord connects guildbox to the Discord gateway: it announces
// playback in text channels and bridges voice connection updates to the
// audio nodes.
package discord

import (
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
)

// Open creates a gateway session with the intents guildbox needs and
// connects it.
func Open(token string) (*discordgo.Session, error) {
	s, err := discordgo.New("Bot " + token)
	if err != nil {
		return nil, errors.Wrap(err, "discord: create session")
	}
	s.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates

	if err := s.Open(); err != nil {
		return nil, errors.Wrap(err, "discord: open session")
	}
	zlog.Info().Msgf("discord: connected user=%s", SelfID(s))
	return s, nil
}

// SelfID returns the bot's user ID, or "" before the gateway is ready.
func SelfID(s *discordgo.Session) string {
	if s == nil || s.State == nil || s.State.User == nil {
		return ""
	}
	return s.State.User.ID
}
