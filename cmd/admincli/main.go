// Package main provides the admin CLI entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/guildbox/internal/api/connect"
	v1 "github.com/osa030/guildbox/internal/api/guildboxv1"
)

var (
	app    = kingpin.New("guildbox-admincli", "guildbox admin client")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	token  = app.Flag("token", "Admin token (or set ADMIN_TOKEN env)").Envar("ADMIN_TOKEN").String()

	// status command
	statusCmd   = app.Command("status", "Show a guild's session, or list every session")
	statusGuild = statusCmd.Arg("guild", "Guild ID").String()

	// play command
	playCmd       = app.Command("play", "Queue a link or search query")
	playGuild     = playCmd.Arg("guild", "Guild ID").Required().String()
	playQuery     = playCmd.Arg("query", "Link or search text").Required().String()
	playChannel   = playCmd.Flag("voice-channel", "Voice channel to join when the session starts").String()
	playRequester = playCmd.Flag("requester", "Requester display name").Default("admin").String()

	// skip command
	skipCmd   = app.Command("skip", "Skip the current track")
	skipGuild = skipCmd.Arg("guild", "Guild ID").Required().String()

	// skip-to command
	skipToCmd      = app.Command("skip-to", "Skip to a queue position")
	skipToGuild    = skipToCmd.Arg("guild", "Guild ID").Required().String()
	skipToPosition = skipToCmd.Arg("position", "1-based queue position").Required().Int()

	// stop command
	stopCmd   = app.Command("stop", "Stop playback and clear the queue")
	stopGuild = stopCmd.Arg("guild", "Guild ID").Required().String()

	// shuffle command
	shuffleCmd   = app.Command("shuffle", "Shuffle the queue")
	shuffleGuild = shuffleCmd.Arg("guild", "Guild ID").Required().String()

	// clear command
	clearCmd   = app.Command("clear", "Clear the queue")
	clearGuild = clearCmd.Arg("guild", "Guild ID").Required().String()

	// move command
	moveCmd      = app.Command("move", "Move a queued entry")
	moveGuild    = moveCmd.Arg("guild", "Guild ID").Required().String()
	moveEntry    = moveCmd.Arg("entry-id", "Entry ID").Required().String()
	movePosition = moveCmd.Arg("position", "1-based queue position").Required().Int()

	// remove command
	removeCmd   = app.Command("remove", "Remove a queued entry")
	removeGuild = removeCmd.Arg("guild", "Guild ID").Required().String()
	removeEntry = removeCmd.Arg("entry-id", "Entry ID").Required().String()

	// pause command
	pauseCmd   = app.Command("pause", "Pause playback")
	pauseGuild = pauseCmd.Arg("guild", "Guild ID").Required().String()

	// resume command
	resumeCmd   = app.Command("resume", "Resume playback")
	resumeGuild = resumeCmd.Arg("guild", "Guild ID").Required().String()

	// leave command
	leaveCmd   = app.Command("leave", "Close the session and leave voice")
	leaveGuild = leaveCmd.Arg("guild", "Guild ID").Required().String()

	// watch command
	watchCmd   = app.Command("watch", "Stream notifications")
	watchGuild = watchCmd.Arg("guild", "Guild ID (default: every guild)").String()

	// set-channel command
	setChannelCmd      = app.Command("set-channel", "Set the announcement channel (empty turns announcements off)")
	setChannelGuild    = setChannelCmd.Arg("guild", "Guild ID").Required().String()
	setChannelID       = setChannelCmd.Arg("channel", "Text channel ID").String()
	setChannelMessages = setChannelCmd.Flag("messages", "Also post now-playing messages").Bool()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	player := v1.NewPlayerServiceClient(http.DefaultClient, *server)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Player commands need no token.
	switch command {
	case playCmd.FullCommand():
		play(ctx, player)
		return
	case watchCmd.FullCommand():
		watch(ctx, player, *watchGuild)
		return
	case statusCmd.FullCommand():
		if *statusGuild != "" {
			status(ctx, player, *statusGuild)
			return
		}
	}

	if *token == "" {
		fmt.Println("Error: admin token is required (use --token or ADMIN_TOKEN env)")
		os.Exit(1)
	}
	admin := v1.NewAdminServiceClient(
		http.DefaultClient,
		*server,
		connect.WithInterceptors(apiconnect.NewAdminTokenInjector(*token)),
	)

	switch command {
	case statusCmd.FullCommand():
		listSessions(ctx, admin)
	case skipCmd.FullCommand():
		report(admin.Skip(ctx, guild(*skipGuild)))
	case skipToCmd.FullCommand():
		report(admin.SkipTo(ctx, connect.NewRequest(&v1.SkipToRequest{GuildID: *skipToGuild, Position: *skipToPosition})))
	case stopCmd.FullCommand():
		report(admin.Stop(ctx, guild(*stopGuild)))
	case shuffleCmd.FullCommand():
		report(admin.Shuffle(ctx, guild(*shuffleGuild)))
	case clearCmd.FullCommand():
		report(admin.Clear(ctx, guild(*clearGuild)))
	case moveCmd.FullCommand():
		report(admin.Move(ctx, connect.NewRequest(&v1.MoveRequest{GuildID: *moveGuild, EntryID: *moveEntry, Position: *movePosition})))
	case removeCmd.FullCommand():
		remove(ctx, admin)
	case pauseCmd.FullCommand():
		report(admin.Pause(ctx, guild(*pauseGuild)))
	case resumeCmd.FullCommand():
		report(admin.Resume(ctx, guild(*resumeGuild)))
	case leaveCmd.FullCommand():
		report(admin.Leave(ctx, guild(*leaveGuild)))
	case setChannelCmd.FullCommand():
		report(admin.SetChannel(ctx, connect.NewRequest(&v1.SetChannelRequest{
			GuildID:          *setChannelGuild,
			ChannelID:        *setChannelID,
			AnnounceMessages: *setChannelMessages,
		})))
	}
}

func guild(id string) *connect.Request[v1.GuildRequest] {
	return connect.NewRequest(&v1.GuildRequest{GuildID: id})
}

func fail(err error) {
	fmt.Printf("Error: %v\n", err)
	os.Exit(1)
}

func report(resp *connect.Response[v1.CommandResponse], err error) {
	if err != nil {
		fail(err)
	}
	if resp.Msg.Success {
		fmt.Println(resp.Msg.Message)
	} else {
		fmt.Printf("Failed: %s\n", resp.Msg.Message)
	}
}

func play(ctx context.Context, client *v1.PlayerServiceClient) {
	resp, err := client.Enqueue(ctx, connect.NewRequest(&v1.EnqueueRequest{
		GuildID:        *playGuild,
		VoiceChannelID: *playChannel,
		Query:          *playQuery,
		RequesterID:    "admincli",
		RequesterName:  *playRequester,
		Privileged:     true,
	}))
	if err != nil {
		fail(err)
	}

	fmt.Println(resp.Msg.Message)
	for _, q := range resp.Msg.Queued {
		if q.Position == 0 {
			fmt.Printf("  Now playing: %s\n", formatEntry(q.Entry))
		} else {
			fmt.Printf("  #%d %s\n", q.Position, formatEntry(q.Entry))
		}
	}
	for _, r := range resp.Msg.Rejected {
		fmt.Printf("  Rejected: %s (%s)\n", r.Title, r.Message)
	}
}

func status(ctx context.Context, client *v1.PlayerServiceClient, guildID string) {
	resp, err := client.Status(ctx, guild(guildID))
	if err != nil {
		fail(err)
	}
	printSession(resp.Msg.Session)
}

func listSessions(ctx context.Context, client *v1.AdminServiceClient) {
	resp, err := client.ListSessions(ctx, connect.NewRequest(&v1.ListSessionsRequest{}))
	if err != nil {
		fail(err)
	}
	if len(resp.Msg.Sessions) == 0 {
		fmt.Println("No active sessions")
		return
	}
	for _, s := range resp.Msg.Sessions {
		printSession(s)
	}
}

func printSession(s v1.SessionStatus) {
	fmt.Printf("\n=== GUILD %s ===\n", s.GuildID)
	fmt.Printf("State: %s\n", s.State)

	if s.Current != nil {
		fmt.Printf("\nCurrently Playing:\n")
		fmt.Printf("  %s\n", formatEntry(*s.Current))
		fmt.Printf("  Position: %s / %s\n", formatMillis(s.PositionMs), formatLength(*s.Current))
		fmt.Printf("  URL: %s\n", s.Current.URI)
		if s.SkipVotes > 0 {
			fmt.Printf("  Skip votes: %d\n", s.SkipVotes)
		}
	} else {
		fmt.Println("\nNo track currently playing")
	}
	if s.Previous != nil {
		fmt.Printf("Previous: %s\n", formatEntry(*s.Previous))
	}

	fmt.Printf("\nQueue (%d):\n", len(s.Queue))
	for i, e := range s.Queue {
		fmt.Printf("  #%d %s  %s  id=%s added %s\n", i+1, formatEntry(e), formatLength(e), e.ID, humanize.Time(e.EnqueuedAt))
	}
	fmt.Println()
}

func remove(ctx context.Context, client *v1.AdminServiceClient) {
	resp, err := client.Remove(ctx, connect.NewRequest(&v1.RemoveRequest{GuildID: *removeGuild, EntryID: *removeEntry}))
	if err != nil {
		fail(err)
	}
	fmt.Printf("Removed %s\n", formatEntry(resp.Msg.Entry))
}

func watch(ctx context.Context, client *v1.PlayerServiceClient, guildID string) {
	stream, err := client.Watch(ctx, connect.NewRequest(&v1.WatchRequest{GuildID: guildID}))
	if err != nil {
		fail(err)
	}
	defer stream.Close()

	for stream.Receive() {
		n := stream.Msg()
		ts := n.Time.Local().Format(time.TimeOnly)
		switch n.Type {
		case v1.NotificationInitialState:
			if n.Session == nil {
				fmt.Printf("[%s] #%d %s: no session\n", ts, n.SequenceNo, n.GuildID)
			} else {
				fmt.Printf("[%s] #%d %s: %s, %d queued\n", ts, n.SequenceNo, n.GuildID, n.Session.State, len(n.Session.Queue))
			}
		case v1.NotificationNowPlaying:
			if n.Entry == nil {
				continue
			}
			fmt.Printf("[%s] #%d %s: now playing %s\n", ts, n.SequenceNo, n.GuildID, formatEntry(*n.Entry))
		case v1.NotificationIdle:
			fmt.Printf("[%s] #%d %s: idle\n", ts, n.SequenceNo, n.GuildID)
		}
	}
	if err := stream.Err(); err != nil && ctx.Err() == nil {
		fail(err)
	}
}

func formatEntry(e v1.Entry) string {
	s := e.Title
	if e.Author != "" {
		s = e.Author + " - " + s
	}
	if e.RequesterName != "" {
		s += " [" + e.RequesterName + "]"
	}
	return s
}

func formatLength(e v1.Entry) string {
	if e.IsStream {
		return "live"
	}
	return formatMillis(e.DurationMs)
}

func formatMillis(ms int64) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d.Hours())
	m := int(d.Minutes()) % 60
	s := int(d.Seconds()) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}
