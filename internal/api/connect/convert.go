package connect

import (
	"context"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"

	v1 "github.com/osa030/guildbox/internal/api/guildboxv1"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/resolve"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/track"
)

func toEntry(e track.QueueEntry) v1.Entry {
	return v1.Entry{
		ID:            e.ID,
		Title:         e.Track.Title,
		Author:        e.Track.Author,
		URI:           e.Track.URI,
		DurationMs:    e.Track.Duration.Milliseconds(),
		IsStream:      e.Track.IsStream,
		Source:        e.Track.SourceName,
		RequesterID:   e.Requester.ID,
		RequesterName: e.Requester.Name,
		EnqueuedAt:    e.EnqueuedAt,
	}
}

func toEntryPtr(e *track.QueueEntry) *v1.Entry {
	if e == nil {
		return nil
	}
	out := toEntry(*e)
	return &out
}

func toSessionStatus(s playback.Status) v1.SessionStatus {
	queue := make([]v1.Entry, len(s.Queue))
	for i, e := range s.Queue {
		queue[i] = toEntry(e)
	}
	return v1.SessionStatus{
		GuildID:    s.SessionID,
		State:      s.State.String(),
		Current:    toEntryPtr(s.Current),
		Previous:   toEntryPtr(s.Previous),
		Queue:      queue,
		PositionMs: s.Position.Milliseconds(),
		SkipVotes:  s.SkipVotes,
	}
}

// toConnectError classifies err into a Connect status code.
func toConnectError(err error) error {
	var code connect.Code
	switch {
	case errors.Is(err, session.ErrNoSession),
		errors.Is(err, playback.ErrNotFound),
		errors.Is(err, resolve.ErrNoMatches):
		code = connect.CodeNotFound
	case errors.Is(err, playback.ErrPositionOutOfRange),
		errors.Is(err, resolve.ErrEmptyQuery):
		code = connect.CodeInvalidArgument
	case errors.Is(err, playback.ErrNodeUnavailable),
		errors.Is(err, playback.ErrPlayerClosed),
		errors.Is(err, session.ErrNoNode),
		errors.Is(err, session.ErrClosed):
		code = connect.CodeUnavailable
	case errors.Is(err, context.DeadlineExceeded):
		code = connect.CodeDeadlineExceeded
	case errors.Is(err, context.Canceled):
		code = connect.CodeCanceled
	default:
		code = connect.CodeInternal
	}
	return connect.NewError(code, err)
}

func requireGuild(guildID string) error {
	if guildID == "" {
		return connect.NewError(connect.CodeInvalidArgument, errors.New("guild_id is required"))
	}
	return nil
}
