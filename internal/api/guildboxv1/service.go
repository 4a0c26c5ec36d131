package guildboxv1

import (
	"context"
	"net/http"
	"strings"

	"connectrpc.com/connect"
)

const (
	// PlayerServiceName is the fully-qualified name of the PlayerService.
	PlayerServiceName = "guildbox.v1.PlayerService"
	// AdminServiceName is the fully-qualified name of the AdminService.
	AdminServiceName = "guildbox.v1.AdminService"
)

const (
	PlayerServiceEnqueueProcedure  = "/guildbox.v1.PlayerService/Enqueue"
	PlayerServiceVoteSkipProcedure = "/guildbox.v1.PlayerService/VoteSkip"
	PlayerServiceStatusProcedure   = "/guildbox.v1.PlayerService/Status"
	PlayerServiceWatchProcedure    = "/guildbox.v1.PlayerService/Watch"

	AdminServiceSkipProcedure         = "/guildbox.v1.AdminService/Skip"
	AdminServiceSkipToProcedure       = "/guildbox.v1.AdminService/SkipTo"
	AdminServiceStopProcedure         = "/guildbox.v1.AdminService/Stop"
	AdminServicePauseProcedure        = "/guildbox.v1.AdminService/Pause"
	AdminServiceResumeProcedure       = "/guildbox.v1.AdminService/Resume"
	AdminServiceShuffleProcedure      = "/guildbox.v1.AdminService/Shuffle"
	AdminServiceClearProcedure        = "/guildbox.v1.AdminService/Clear"
	AdminServiceMoveProcedure         = "/guildbox.v1.AdminService/Move"
	AdminServiceRemoveProcedure       = "/guildbox.v1.AdminService/Remove"
	AdminServiceListSessionsProcedure = "/guildbox.v1.AdminService/ListSessions"
	AdminServiceLeaveProcedure        = "/guildbox.v1.AdminService/Leave"
	AdminServiceSetChannelProcedure   = "/guildbox.v1.AdminService/SetChannel"
)

// PlayerServiceHandler is the request side of a guild's player: anyone
// allowed to reach the server may call it.
type PlayerServiceHandler interface {
	Enqueue(context.Context, *connect.Request[EnqueueRequest]) (*connect.Response[EnqueueResponse], error)
	VoteSkip(context.Context, *connect.Request[VoteSkipRequest]) (*connect.Response[VoteSkipResponse], error)
	Status(context.Context, *connect.Request[GuildRequest]) (*connect.Response[StatusResponse], error)
	Watch(context.Context, *connect.Request[WatchRequest], *connect.ServerStream[Notification]) error
}

// AdminServiceHandler controls sessions directly.
type AdminServiceHandler interface {
	Skip(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	SkipTo(context.Context, *connect.Request[SkipToRequest]) (*connect.Response[CommandResponse], error)
	Stop(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	Pause(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	Resume(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	Shuffle(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	Clear(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	Move(context.Context, *connect.Request[MoveRequest]) (*connect.Response[CommandResponse], error)
	Remove(context.Context, *connect.Request[RemoveRequest]) (*connect.Response[RemoveResponse], error)
	ListSessions(context.Context, *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error)
	Leave(context.Context, *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error)
	SetChannel(context.Context, *connect.Request[SetChannelRequest]) (*connect.Response[CommandResponse], error)
}

// NewPlayerServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewPlayerServiceHandler(svc PlayerServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	routes := map[string]http.Handler{
		PlayerServiceEnqueueProcedure:  connect.NewUnaryHandler(PlayerServiceEnqueueProcedure, svc.Enqueue, opts...),
		PlayerServiceVoteSkipProcedure: connect.NewUnaryHandler(PlayerServiceVoteSkipProcedure, svc.VoteSkip, opts...),
		PlayerServiceStatusProcedure:   connect.NewUnaryHandler(PlayerServiceStatusProcedure, svc.Status, opts...),
		PlayerServiceWatchProcedure:    connect.NewServerStreamHandler(PlayerServiceWatchProcedure, svc.Watch, opts...),
	}
	return "/" + PlayerServiceName + "/", router(routes)
}

// NewAdminServiceHandler builds an HTTP handler from the service
// implementation. It returns the path on which to mount the handler and the
// handler itself.
func NewAdminServiceHandler(svc AdminServiceHandler, opts ...connect.HandlerOption) (string, http.Handler) {
	opts = append([]connect.HandlerOption{WithJSON()}, opts...)
	routes := map[string]http.Handler{
		AdminServiceSkipProcedure:         connect.NewUnaryHandler(AdminServiceSkipProcedure, svc.Skip, opts...),
		AdminServiceSkipToProcedure:       connect.NewUnaryHandler(AdminServiceSkipToProcedure, svc.SkipTo, opts...),
		AdminServiceStopProcedure:         connect.NewUnaryHandler(AdminServiceStopProcedure, svc.Stop, opts...),
		AdminServicePauseProcedure:        connect.NewUnaryHandler(AdminServicePauseProcedure, svc.Pause, opts...),
		AdminServiceResumeProcedure:       connect.NewUnaryHandler(AdminServiceResumeProcedure, svc.Resume, opts...),
		AdminServiceShuffleProcedure:      connect.NewUnaryHandler(AdminServiceShuffleProcedure, svc.Shuffle, opts...),
		AdminServiceClearProcedure:        connect.NewUnaryHandler(AdminServiceClearProcedure, svc.Clear, opts...),
		AdminServiceMoveProcedure:         connect.NewUnaryHandler(AdminServiceMoveProcedure, svc.Move, opts...),
		AdminServiceRemoveProcedure:       connect.NewUnaryHandler(AdminServiceRemoveProcedure, svc.Remove, opts...),
		AdminServiceListSessionsProcedure: connect.NewUnaryHandler(AdminServiceListSessionsProcedure, svc.ListSessions, opts...),
		AdminServiceLeaveProcedure:        connect.NewUnaryHandler(AdminServiceLeaveProcedure, svc.Leave, opts...),
		AdminServiceSetChannelProcedure:   connect.NewUnaryHandler(AdminServiceSetChannelProcedure, svc.SetChannel, opts...),
	}
	return "/" + AdminServiceName + "/", router(routes)
}

func router(routes map[string]http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		h, ok := routes[r.URL.Path]
		if !ok {
			http.NotFound(w, r)
			return
		}
		h.ServeHTTP(w, r)
	})
}

// PlayerServiceClient is a client for the PlayerService.
type PlayerServiceClient struct {
	enqueue  *connect.Client[EnqueueRequest, EnqueueResponse]
	voteSkip *connect.Client[VoteSkipRequest, VoteSkipResponse]
	status   *connect.Client[GuildRequest, StatusResponse]
	watch    *connect.Client[WatchRequest, Notification]
}

// NewPlayerServiceClient constructs a client for the PlayerService at
// baseURL, e.g. http://localhost:8080.
func NewPlayerServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *PlayerServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &PlayerServiceClient{
		enqueue:  connect.NewClient[EnqueueRequest, EnqueueResponse](httpClient, baseURL+PlayerServiceEnqueueProcedure, opts...),
		voteSkip: connect.NewClient[VoteSkipRequest, VoteSkipResponse](httpClient, baseURL+PlayerServiceVoteSkipProcedure, opts...),
		status:   connect.NewClient[GuildRequest, StatusResponse](httpClient, baseURL+PlayerServiceStatusProcedure, opts...),
		watch:    connect.NewClient[WatchRequest, Notification](httpClient, baseURL+PlayerServiceWatchProcedure, opts...),
	}
}

func (c *PlayerServiceClient) Enqueue(ctx context.Context, req *connect.Request[EnqueueRequest]) (*connect.Response[EnqueueResponse], error) {
	return c.enqueue.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) VoteSkip(ctx context.Context, req *connect.Request[VoteSkipRequest]) (*connect.Response[VoteSkipResponse], error) {
	return c.voteSkip.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Status(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[StatusResponse], error) {
	return c.status.CallUnary(ctx, req)
}

func (c *PlayerServiceClient) Watch(ctx context.Context, req *connect.Request[WatchRequest]) (*connect.ServerStreamForClient[Notification], error) {
	return c.watch.CallServerStream(ctx, req)
}

// AdminServiceClient is a client for the AdminService. Calls need the admin
// token header.
type AdminServiceClient struct {
	skip         *connect.Client[GuildRequest, CommandResponse]
	skipTo       *connect.Client[SkipToRequest, CommandResponse]
	stop         *connect.Client[GuildRequest, CommandResponse]
	pause        *connect.Client[GuildRequest, CommandResponse]
	resume       *connect.Client[GuildRequest, CommandResponse]
	shuffle      *connect.Client[GuildRequest, CommandResponse]
	clear        *connect.Client[GuildRequest, CommandResponse]
	move         *connect.Client[MoveRequest, CommandResponse]
	remove       *connect.Client[RemoveRequest, RemoveResponse]
	listSessions *connect.Client[ListSessionsRequest, ListSessionsResponse]
	leave        *connect.Client[GuildRequest, CommandResponse]
	setChannel   *connect.Client[SetChannelRequest, CommandResponse]
}

// NewAdminServiceClient constructs a client for the AdminService at baseURL.
func NewAdminServiceClient(httpClient connect.HTTPClient, baseURL string, opts ...connect.ClientOption) *AdminServiceClient {
	baseURL = strings.TrimRight(baseURL, "/")
	opts = append([]connect.ClientOption{WithJSON()}, opts...)
	return &AdminServiceClient{
		skip:         connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServiceSkipProcedure, opts...),
		skipTo:       connect.NewClient[SkipToRequest, CommandResponse](httpClient, baseURL+AdminServiceSkipToProcedure, opts...),
		stop:         connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServiceStopProcedure, opts...),
		pause:        connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServicePauseProcedure, opts...),
		resume:       connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServiceResumeProcedure, opts...),
		shuffle:      connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServiceShuffleProcedure, opts...),
		clear:        connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServiceClearProcedure, opts...),
		move:         connect.NewClient[MoveRequest, CommandResponse](httpClient, baseURL+AdminServiceMoveProcedure, opts...),
		remove:       connect.NewClient[RemoveRequest, RemoveResponse](httpClient, baseURL+AdminServiceRemoveProcedure, opts...),
		listSessions: connect.NewClient[ListSessionsRequest, ListSessionsResponse](httpClient, baseURL+AdminServiceListSessionsProcedure, opts...),
		leave:        connect.NewClient[GuildRequest, CommandResponse](httpClient, baseURL+AdminServiceLeaveProcedure, opts...),
		setChannel:   connect.NewClient[SetChannelRequest, CommandResponse](httpClient, baseURL+AdminServiceSetChannelProcedure, opts...),
	}
}

func (c *AdminServiceClient) Skip(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.skip.CallUnary(ctx, req)
}

func (c *AdminServiceClient) SkipTo(ctx context.Context, req *connect.Request[SkipToRequest]) (*connect.Response[CommandResponse], error) {
	return c.skipTo.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Stop(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.stop.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Pause(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.pause.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Resume(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.resume.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Shuffle(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.shuffle.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Clear(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.clear.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Move(ctx context.Context, req *connect.Request[MoveRequest]) (*connect.Response[CommandResponse], error) {
	return c.move.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Remove(ctx context.Context, req *connect.Request[RemoveRequest]) (*connect.Response[RemoveResponse], error) {
	return c.remove.CallUnary(ctx, req)
}

func (c *AdminServiceClient) ListSessions(ctx context.Context, req *connect.Request[ListSessionsRequest]) (*connect.Response[ListSessionsResponse], error) {
	return c.listSessions.CallUnary(ctx, req)
}

func (c *AdminServiceClient) Leave(ctx context.Context, req *connect.Request[GuildRequest]) (*connect.Response[CommandResponse], error) {
	return c.leave.CallUnary(ctx, req)
}

func (c *AdminServiceClient) SetChannel(ctx context.Context, req *connect.Request[SetChannelRequest]) (*connect.Response[CommandResponse], error) {
	return c.setChannel.CallUnary(ctx, req)
}
