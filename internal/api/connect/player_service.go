package connect

import (
	"context"
	"sync"
	"time"

	"connectrpc.com/connect"
	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	v1 "github.com/osa030/guildbox/internal/api/guildboxv1"
	"github.com/osa030/guildbox/internal/app/notification"
	"github.com/osa030/guildbox/internal/app/resolve"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/config"
)

// RejectionCodeKey carries the rejection code on Enqueue errors.
const RejectionCodeKey = "Guildbox-Rejection-Code"

// PlayerService implements the PlayerService RPC.
type PlayerService struct {
	sessions      *session.Manager
	notifications *notification.Manager
	config        *config.Config

	done      chan struct{}
	closeOnce sync.Once
}

// NewPlayerService creates a new PlayerService.
func NewPlayerService(sessions *session.Manager, notifications *notification.Manager, cfg *config.Config) *PlayerService {
	return &PlayerService{
		sessions:      sessions,
		notifications: notifications,
		config:        cfg,
		done:          make(chan struct{}),
	}
}

var _ v1.PlayerServiceHandler = (*PlayerService)(nil)

// Close ends every open Watch stream.
func (s *PlayerService) Close() {
	s.closeOnce.Do(func() { close(s.done) })
}

// Enqueue resolves the query and queues the accepted tracks. A request whose
// every track was refused fails with FailedPrecondition and the first
// refusal's message.
func (s *PlayerService) Enqueue(
	ctx context.Context,
	req *connect.Request[v1.EnqueueRequest],
) (*connect.Response[v1.EnqueueResponse], error) {
	msg := req.Msg
	if err := requireGuild(msg.GuildID); err != nil {
		return nil, err
	}

	result, err := s.sessions.Enqueue(ctx, session.Request{
		GuildID:        msg.GuildID,
		VoiceChannelID: msg.VoiceChannelID,
		Query:          msg.Query,
		Requester: track.Requester{
			ID:         msg.RequesterID,
			Name:       msg.RequesterName,
			Privileged: msg.Privileged,
		},
	})
	if err != nil && len(result.Queued) == 0 {
		if errors.Is(err, resolve.ErrNoMatches) {
			return nil, s.rejection(connect.CodeNotFound, "track_not_found")
		}
		return nil, toConnectError(err)
	}
	if err != nil {
		zlog.Warn().Msgf("rpc: enqueue stopped part-way guild=%s queued=%d error=%v", msg.GuildID, len(result.Queued), err)
	}

	resp := &v1.EnqueueResponse{}
	for _, q := range result.Queued {
		resp.Queued = append(resp.Queued, v1.QueuedEntry{Entry: toEntry(q.Entry), Position: q.Position + 1})
	}
	for _, r := range result.Rejected {
		resp.Rejected = append(resp.Rejected, v1.RejectedTrack{
			Title:   r.Track.Title,
			Code:    r.Code,
			Message: s.config.GetMessage(r.Code),
		})
	}

	if len(resp.Queued) == 0 && len(resp.Rejected) > 0 {
		return nil, s.rejection(connect.CodeFailedPrecondition, resp.Rejected[0].Code)
	}

	resp.Success = true
	resp.Message = s.config.GetMessage("success")
	return connect.NewResponse(resp), nil
}

func (s *PlayerService) rejection(code connect.Code, reason string) error {
	err := connect.NewError(code, errors.New(s.config.GetMessage(reason)))
	err.Meta().Set(RejectionCodeKey, reason)
	return err
}

// VoteSkip casts a skip vote against the current track.
func (s *PlayerService) VoteSkip(
	ctx context.Context,
	req *connect.Request[v1.VoteSkipRequest],
) (*connect.Response[v1.VoteSkipResponse], error) {
	if err := requireGuild(req.Msg.GuildID); err != nil {
		return nil, err
	}
	if req.Msg.VoterID == "" {
		return nil, connect.NewError(connect.CodeInvalidArgument, errors.New("voter_id is required"))
	}

	res, err := s.sessions.VoteSkip(ctx, req.Msg.GuildID, req.Msg.VoterID, req.Msg.Eligible)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&v1.VoteSkipResponse{
		Votes:    res.Votes,
		Required: res.Required,
		Skipped:  res.Skipped,
	}), nil
}

// Status returns the guild's session.
func (s *PlayerService) Status(
	ctx context.Context,
	req *connect.Request[v1.GuildRequest],
) (*connect.Response[v1.StatusResponse], error) {
	if err := requireGuild(req.Msg.GuildID); err != nil {
		return nil, err
	}
	status, err := s.sessions.Status(req.Msg.GuildID)
	if err != nil {
		return nil, toConnectError(err)
	}
	return connect.NewResponse(&v1.StatusResponse{Session: toSessionStatus(status)}), nil
}

// Watch streams a guild's notifications, or every guild's when no guild is
// given. The stream opens with the current state.
func (s *PlayerService) Watch(
	ctx context.Context,
	req *connect.Request[v1.WatchRequest],
	stream *connect.ServerStream[v1.Notification],
) error {
	guildID := req.Msg.GuildID
	adapter := &notificationStreamAdapter{stream: stream}

	// Hold the adapter until the initial state is out so broadcasts queue
	// behind it.
	adapter.mu.Lock()
	subscriptionID := s.notifications.Subscribe(guildID, adapter)
	err := s.sendInitialState(guildID, stream)
	adapter.mu.Unlock()

	defer func() {
		s.notifications.Unsubscribe(subscriptionID)
		adapter.close()
	}()
	if err != nil {
		return err
	}

	select {
	case <-ctx.Done():
	case <-s.done:
	}
	return nil
}

func (s *PlayerService) sendInitialState(guildID string, stream *connect.ServerStream[v1.Notification]) error {
	var statuses []v1.SessionStatus
	if guildID != "" {
		status, err := s.sessions.Status(guildID)
		switch {
		case err == nil:
			statuses = append(statuses, toSessionStatus(status))
		case !errors.Is(err, session.ErrNoSession):
			return toConnectError(err)
		}
	} else {
		for _, status := range s.sessions.Statuses() {
			statuses = append(statuses, toSessionStatus(status))
		}
	}

	if len(statuses) == 0 {
		return stream.Send(&v1.Notification{
			SequenceNo: s.notifications.NextSequenceNo(),
			Type:       v1.NotificationInitialState,
			GuildID:    guildID,
			Time:       time.Now(),
		})
	}
	for i := range statuses {
		st := &statuses[i]
		if err := stream.Send(&v1.Notification{
			SequenceNo: s.notifications.NextSequenceNo(),
			Type:       v1.NotificationInitialState,
			GuildID:    st.GuildID,
			Entry:      st.Current,
			Session:    st,
			Time:       time.Now(),
		}); err != nil {
			return err
		}
	}
	return nil
}

// notificationStreamAdapter adapts connect.ServerStream to
// notification.Stream. Sends are serialized and stop once the handler has
// returned.
type notificationStreamAdapter struct {
	mu     sync.Mutex
	stream *connect.ServerStream[v1.Notification]
	closed bool
}

func (a *notificationStreamAdapter) Send(n *notification.Notification) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return errors.New("stream closed")
	}
	return a.stream.Send(&v1.Notification{
		SequenceNo: n.SequenceNo,
		Type:       v1.NotificationType(n.Type),
		GuildID:    n.GuildID,
		Entry:      toEntryPtr(n.Entry),
		Time:       n.Time,
	})
}

func (a *notificationStreamAdapter) close() {
	a.mu.Lock()
	a.closed = true
	a.mu.Unlock()
}
