// Package main provides the user CLI entry point for testing.
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
	"github.com/cockroachdb/errors"
	"github.com/dustin/go-humanize"
	"github.com/joho/godotenv"

	apiconnect "github.com/osa030/guildbox/internal/api/connect"
	v1 "github.com/osa030/guildbox/internal/api/guildboxv1"
)

var (
	app    = kingpin.New("guildbox-usercli", "guildbox user client for testing")
	server = app.Flag("server", "Server address").Default("http://localhost:8080").String()
	userID = app.Flag("user-id", "Your user ID").Default("usercli").String()
	name   = app.Flag("name", "Your display name").Default("usercli").String()

	// request command
	requestCmd     = app.Command("request", "Request a track by link or search text")
	requestGuild   = requestCmd.Arg("guild", "Guild ID").Required().String()
	requestQuery   = requestCmd.Arg("query", "Link or search text").Required().String()
	requestChannel = requestCmd.Flag("voice-channel", "Voice channel to join when the session starts").String()

	// vote-skip command
	voteCmd      = app.Command("vote-skip", "Vote to skip the current track")
	voteGuild    = voteCmd.Arg("guild", "Guild ID").Required().String()
	voteEligible = voteCmd.Flag("listener", "User ID of a listener in the voice channel (repeatable)").Strings()

	// now command
	nowCmd   = app.Command("now", "Show what is playing")
	nowGuild = nowCmd.Arg("guild", "Guild ID").Required().String()

	// subscribe command
	subscribeCmd   = app.Command("subscribe", "Subscribe to notifications")
	subscribeGuild = subscribeCmd.Arg("guild", "Guild ID (default: every guild)").String()
)

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	client := v1.NewPlayerServiceClient(
		http.DefaultClient,
		*server,
	)

	ctx := context.Background()

	switch command {
	case requestCmd.FullCommand():
		requestTrack(ctx, client)
	case voteCmd.FullCommand():
		voteSkip(ctx, client)
	case nowCmd.FullCommand():
		nowPlaying(ctx, client)
	case subscribeCmd.FullCommand():
		subscribe(ctx, client)
	}
}

func requestTrack(ctx context.Context, client *v1.PlayerServiceClient) {
	resp, err := client.Enqueue(ctx, connect.NewRequest(&v1.EnqueueRequest{
		GuildID:        *requestGuild,
		VoiceChannelID: *requestChannel,
		Query:          *requestQuery,
		RequesterID:    *userID,
		RequesterName:  *name,
	}))
	if err != nil {
		var cerr *connect.Error
		if errors.As(err, &cerr) && cerr.Meta().Get(apiconnect.RejectionCodeKey) != "" {
			fmt.Printf("Rejected [%s]: %s\n", cerr.Meta().Get(apiconnect.RejectionCodeKey), cerr.Message())
			os.Exit(1)
		}
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("Success: %s\n", resp.Msg.Message)
	for _, q := range resp.Msg.Queued {
		fmt.Printf("  %s  %s\n", formatPosition(q.Position), q.Entry.Title)
	}
	for _, r := range resp.Msg.Rejected {
		fmt.Printf("  Rejected [%s] %s: %s\n", r.Code, r.Title, r.Message)
	}
}

func voteSkip(ctx context.Context, client *v1.PlayerServiceClient) {
	eligible := *voteEligible
	if len(eligible) == 0 {
		eligible = []string{*userID}
	}
	resp, err := client.VoteSkip(ctx, connect.NewRequest(&v1.VoteSkipRequest{
		GuildID:  *voteGuild,
		VoterID:  *userID,
		Eligible: eligible,
	}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	if resp.Msg.Skipped {
		fmt.Println("⏭  Skipped")
		return
	}
	fmt.Printf("Vote counted: %d/%d\n", resp.Msg.Votes, resp.Msg.Required)
}

func nowPlaying(ctx context.Context, client *v1.PlayerServiceClient) {
	resp, err := client.Status(ctx, connect.NewRequest(&v1.GuildRequest{GuildID: *nowGuild}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}
	printSession(resp.Msg.Session)
}

func subscribe(ctx context.Context, client *v1.PlayerServiceClient) {
	stream, err := client.Watch(ctx, connect.NewRequest(&v1.WatchRequest{GuildID: *subscribeGuild}))
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("Subscribed to notifications. Press Ctrl+C to exit.")

	// Handle shutdown signal
	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	go func() {
		<-sigCh
		fmt.Println("\nUnsubscribing...")
		os.Exit(0)
	}()

	for stream.Receive() {
		printNotification(stream.Msg())
	}

	if err := stream.Err(); err != nil {
		fmt.Printf("Stream error: %v\n", err)
	}
}

func formatState(state string) string {
	switch state {
	case "playing":
		return "▶️  Playing"
	case "paused":
		return "⏸  Paused"
	case "idle":
		return "⏹  Idle"
	default:
		return "❓ Unknown"
	}
}

func formatPosition(pos int) string {
	if pos == 0 {
		return "▶️ "
	}
	return fmt.Sprintf("#%d", pos)
}

func printNotification(n *v1.Notification) {
	fmt.Printf("\n[Sequence: %d] ", n.SequenceNo)

	switch n.Type {
	case v1.NotificationInitialState:
		fmt.Println("=== INITIAL STATE ===")
	case v1.NotificationNowPlaying:
		fmt.Println("=== NOW PLAYING ===")
	case v1.NotificationIdle:
		fmt.Println("=== IDLE ===")
	default:
		fmt.Printf("=== UNKNOWN EVENT (%v) ===\n", n.Type)
	}
	fmt.Printf("  Guild: %s\n", n.GuildID)

	if n.Session != nil {
		printSession(*n.Session)
		return
	}
	if n.Entry != nil {
		printEntry(*n.Entry)
	}
	fmt.Println()
}

func printSession(s v1.SessionStatus) {
	fmt.Printf("  State: %s\n", formatState(s.State))
	if s.Current != nil {
		printEntry(*s.Current)
		elapsed := time.Duration(s.PositionMs) * time.Millisecond
		fmt.Printf("  Elapsed: %s\n", elapsed.Truncate(time.Second))
	}
	fmt.Printf("  Queued: %d\n", len(s.Queue))
	fmt.Println()
}

func printEntry(e v1.Entry) {
	fmt.Println("\nTrack Info:")
	fmt.Printf("  Title: %s\n", e.Title)
	fmt.Printf("  Author: %s\n", e.Author)
	fmt.Printf("  URL: %s\n", e.URI)
	fmt.Printf("  Source: %s\n", e.Source)
	fmt.Printf("  Requested by: %s (%s)\n", e.RequesterName, humanize.Time(e.EnqueuedAt))
	if e.IsStream {
		fmt.Println("  Length: live")
	} else {
		fmt.Printf("  Length: %s\n", (time.Duration(e.DurationMs) * time.Millisecond).Truncate(time.Second))
	}
}
