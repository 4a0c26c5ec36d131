package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	v1 "github.com/osa030/guildbox/internal/api/guildboxv1"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/infra/settings"
)

// GuildSettings stores per-guild announcement settings.
// *settings.Store implements it.
type GuildSettings interface {
	Set(ctx context.Context, g settings.Guild) error
}

// AdminService implements the AdminService RPC.
type AdminService struct {
	sessions *session.Manager
	settings GuildSettings
}

// NewAdminService creates a new AdminService.
func NewAdminService(sessions *session.Manager, store GuildSettings) *AdminService {
	return &AdminService{
		sessions: sessions,
		settings: store,
	}
}

// Ensure AdminService implements the interface.
var _ v1.AdminServiceHandler = (*AdminService)(nil)

func done(message string) *connect.Response[v1.CommandResponse] {
	return connect.NewResponse(&v1.CommandResponse{Success: true, Message: message})
}

// command runs fn against the guild's session and replies with message.
func command(guildID, name, message string, fn func() error) (*connect.Response[v1.CommandResponse], error) {
	if err := requireGuild(guildID); err != nil {
		return nil, err
	}
	if err := fn(); err != nil {
		zlog.Debug().Msgf("rpc: %s failed guild=%s error=%v", name, guildID, err)
		return nil, toConnectError(err)
	}
	zlog.Info().Msgf("rpc: %s guild=%s", name, guildID)
	return done(message), nil
}

// Skip skips the current track.
func (s *AdminService) Skip(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "skip", "Track skipped", func() error {
		return s.sessions.Skip(ctx, req.Msg.GuildID)
	})
}

// SkipTo skips to a 1-based queue position.
func (s *AdminService) SkipTo(
	ctx context.Context,
	req *connect.Request[v1.SkipToRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "skip-to", "Skipped ahead", func() error {
		return s.sessions.SkipTo(ctx, req.Msg.GuildID, req.Msg.Position-1)
	})
}

// Stop stops playback and clears the queue.
func (s *AdminService) Stop(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "stop", "Playback stopped", func() error {
		return s.sessions.Stop(ctx, req.Msg.GuildID)
	})
}

// Pause pauses the current track.
func (s *AdminService) Pause(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "pause", "Playback paused", func() error {
		return s.sessions.Pause(ctx, req.Msg.GuildID)
	})
}

// Resume resumes the current track.
func (s *AdminService) Resume(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "resume", "Playback resumed", func() error {
		return s.sessions.Resume(ctx, req.Msg.GuildID)
	})
}

// Shuffle shuffles the queue.
func (s *AdminService) Shuffle(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "shuffle", "Queue shuffled", func() error {
		return s.sessions.Shuffle(req.Msg.GuildID)
	})
}

// Clear empties the queue.
func (s *AdminService) Clear(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "clear", "Queue cleared", func() error {
		return s.sessions.Clear(req.Msg.GuildID)
	})
}

// Move moves an entry to a 1-based queue position.
func (s *AdminService) Move(
	ctx context.Context,
	req *connect.Request[v1.MoveRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "move", "Entry moved", func() error {
		return s.sessions.Move(req.Msg.GuildID, req.Msg.EntryID, req.Msg.Position-1)
	})
}

// Remove removes an entry from the queue.
func (s *AdminService) Remove(
	ctx context.Context,
	req *connect.Request[v1.RemoveRequest],
) (*connect.Response[v1.RemoveResponse], error) {
	if err := requireGuild(req.Msg.GuildID); err != nil {
		return nil, err
	}
	entry, err := s.sessions.Remove(req.Msg.GuildID, req.Msg.EntryID)
	if err != nil {
		return nil, toConnectError(err)
	}
	zlog.Info().Msgf("rpc: remove guild=%s entry=%s", req.Msg.GuildID, entry)
	return connect.NewResponse(&v1.RemoveResponse{Entry: toEntry(entry)}), nil
}

// ListSessions lists every active session.
func (s *AdminService) ListSessions(
	ctx context.Context,
	req *connect.Request[v1.ListSessionsRequest],
) (*connect.Response[v1.ListSessionsResponse], error) {
	statuses := s.sessions.Statuses()
	out := make([]v1.SessionStatus, len(statuses))
	for i, st := range statuses {
		out[i] = toSessionStatus(st)
	}
	return connect.NewResponse(&v1.ListSessionsResponse{Sessions: out}), nil
}

// Leave destroys the guild's session and leaves voice.
func (s *AdminService) Leave(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.CommandResponse], error) {
	return command(req.Msg.GuildID, "leave", "Session closed", func() error {
		return s.sessions.Leave(ctx, req.Msg.GuildID)
	})
}

// SetChannel sets where the guild's announcements go.
func (s *AdminService) SetChannel(
	ctx context.Context,
	req *connect.Request[v1.SetChannelRequest],
) (*connect.Response[v1.CommandResponse], error) {
	msg := req.Msg
	if err := requireGuild(msg.GuildID); err != nil {
		return nil, err
	}
	if err := s.settings.Set(ctx, settings.Guild{
		GuildID:          msg.GuildID,
		TextChannelID:    msg.ChannelID,
		AnnounceMessages: msg.AnnounceMessages,
	}); err != nil {
		return nil, connect.NewError(connect.CodeInternal, errors.Wrap(err, "save guild settings"))
	}

	if msg.ChannelID == "" {
		return done("Announcements disabled"), nil
	}
	return done("Announcements will go to channel " + msg.ChannelID), nil
}
