// Package main provides the server entry point.
package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strings"
	"syscall"
	"time"

	"connectrpc.com/connect"
	"github.com/alecthomas/kingpin/v2"
	"github.com/bwmarrin/discordgo"
	"github.com/cockroachdb/errors"
	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/net/http2"
	"golang.org/x/net/http2/h2c"

	apiconnect "github.com/osa030/guildbox/internal/api/connect"
	v1 "github.com/osa030/guildbox/internal/api/guildboxv1"
	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/notification"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/resolve"
	"github.com/osa030/guildbox/internal/app/session"
	"github.com/osa030/guildbox/internal/infra/config"
	"github.com/osa030/guildbox/internal/infra/discord"
	"github.com/osa030/guildbox/internal/infra/lavalink"
	"github.com/osa030/guildbox/internal/infra/logger"
	"github.com/osa030/guildbox/internal/infra/observe"
	"github.com/osa030/guildbox/internal/infra/settings"
	"github.com/osa030/guildbox/internal/infra/spotify"
)

var (
	app        = kingpin.New("guildbox-server", "guildbox music server")
	configPath = app.Flag("config", "Path to config file").Default("config/server.yaml").String()
	verbose    = app.Flag("verbose", "Enable verbose (DEBUG) logging").Short('v').Bool()
	logfile    = app.Flag("logfile", "Path to log file (default: stdout)").String()

	// list-filters command
	listFiltersCmd = app.Command("list-filters", "List available filters and exit")
)

func init() {
	app.Command("start", "Start the server (default)").Default()
}

func main() {
	// Load .env file if it exists (errors are ignored)
	_ = godotenv.Load()

	command := kingpin.MustParse(app.Parse(os.Args[1:]))

	if command == listFiltersCmd.FullCommand() {
		printFilters()
		return
	}

	loggerConfig := logger.Config{
		Output: "stdout",
		Level:  "info",
	}
	if *verbose {
		loggerConfig.Level = "debug"
	}
	if *logfile != "" {
		loggerConfig.Output = *logfile
	}
	closer, err := logger.Init(loggerConfig)
	if err != nil {
		panic(fmt.Sprintf("Failed to initialize logger: %v", err))
	}
	defer closer.Close()

	zlog.Info().Msgf("Loading config from %s", *configPath)
	cfg, err := config.Load(*configPath)
	if err != nil {
		zlog.Fatal().Msgf("Failed to load config: %v", err)
	}

	if err := run(cfg); err != nil {
		zlog.Error().Msgf("Server error: %v", err)
		closer.Close()
		os.Exit(1)
	}
}

// run executes the main server logic. Using a separate function ensures
// defer statements are executed even when returning with an error.
func run(cfg *config.Config) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownMetrics, err := observe.InitProvider(ctx, observe.ProviderConfig{})
	if err != nil {
		return err
	}
	defer func() {
		if err := shutdownMetrics(context.Background()); err != nil {
			zlog.Warn().Msgf("Failed to shut down metrics: %v", err)
		}
	}()
	metrics := observe.DefaultMetrics()

	filters, err := filter.Build(cfg.EnabledFilters())
	if err != nil {
		return errors.Wrap(err, "invalid filter config")
	}

	store, err := settings.Open(cfg.Settings.DBPath)
	if err != nil {
		return err
	}
	defer store.Close()

	var gateway *discordgo.Session
	userID := cfg.Discord.UserID
	if cfg.Discord.Enabled {
		gateway, err = discord.Open(cfg.Discord.Token)
		if err != nil {
			return err
		}
		defer gateway.Close()
		if id := discord.SelfID(gateway); id != "" {
			userID = id
		}
	}
	if userID == "" {
		return errors.New("bot user id unknown: enable discord or set discord.user_id")
	}

	pool, err := lavalink.NewPool(nodeConfigs(cfg, userID))
	if err != nil {
		return err
	}
	defer pool.Close()
	if err := pool.Connect(ctx); err != nil {
		return err
	}

	resolvers, err := buildResolvers(ctx, cfg, pool)
	if err != nil {
		return err
	}

	notifications := notification.NewManager()
	defer notifications.Close()
	announcers := playback.Announcers{notifications}

	opts := session.Options{
		Pool:     pool,
		Resolver: resolvers,
		Filters:  filters,
		Player: playback.Config{
			SkipVoteRatio:    cfg.Playback.SkipVoteRatio,
			DirectiveTimeout: cfg.Playback.DirectiveTimeout(),
			Metrics:          metrics,
		},
		Metrics: metrics,
	}
	if gateway != nil {
		announcer := discord.NewAnnouncer(gateway, store)
		defer announcer.Close()
		announcers = append(announcers, announcer)
		opts.Voice = discord.NewVoiceBridge(gateway, pool)
	}
	opts.Announcer = announcers

	sessions := session.NewManager(opts)

	playerService := apiconnect.NewPlayerService(sessions, notifications, cfg)
	adminService := apiconnect.NewAdminService(sessions, store)

	mux := http.NewServeMux()
	mux.Handle(v1.NewPlayerServiceHandler(playerService))
	mux.Handle(v1.NewAdminServiceHandler(
		adminService,
		connect.WithInterceptors(apiconnect.NewAdminAuthInterceptor(cfg.Admin.Token)),
	))
	mux.Handle(cfg.Server.MetricsPath, promhttp.Handler())

	server := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           h2c.NewHandler(mux, &http2.Server{}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serverErrCh := make(chan error, 1)
	go func() {
		zlog.Info().Msgf("Starting server: addr=%s", cfg.Server.Addr)
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serverErrCh <- err
		}
	}()

	select {
	case <-ctx.Done():
		zlog.Info().Msg("Received shutdown signal...")
	case err := <-serverErrCh:
		return errors.Wrap(err, "server error")
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	// End watch streams first so Shutdown does not wait on them.
	playerService.Close()
	if err := server.Shutdown(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to shutdown server: %v", err)
	}
	if err := sessions.Close(shutdownCtx); err != nil {
		zlog.Error().Msgf("Failed to close sessions: %v", err)
	}

	zlog.Info().Msg("Server stopped")
	return nil
}

func nodeConfigs(cfg *config.Config, userID string) []lavalink.Config {
	out := make([]lavalink.Config, len(cfg.Nodes))
	for i, n := range cfg.Nodes {
		out[i] = lavalink.Config{
			Name:        n.Name,
			URI:         n.URI,
			RestURI:     n.RestURI,
			Password:    n.Password,
			UserID:      userID,
			EventBuffer: cfg.Playback.EventBuffer,
		}
	}
	return out
}

// buildResolvers puts Spotify links ahead of the node's own resolution when
// Spotify credentials are configured.
func buildResolvers(ctx context.Context, cfg *config.Config, pool *lavalink.Pool) (*resolve.Chain, error) {
	var resolvers []resolve.Named
	if cfg.Spotify.Enabled() {
		client, err := spotify.New(ctx, spotify.Config{
			ClientID:     cfg.Spotify.ClientID,
			ClientSecret: cfg.Spotify.ClientSecret,
			Market:       cfg.Spotify.Market,
		})
		if err != nil {
			return nil, errors.Wrap(err, "failed to create Spotify client")
		}
		resolvers = append(resolvers, resolve.Named{
			Resolver: resolve.NewSpotifyMirror(client, pool, lavalink.DefaultSearchPrefix),
			Name:     "spotify",
		})
	} else {
		zlog.Info().Msg("Spotify not configured, Spotify links resolve through the audio node")
	}
	resolvers = append(resolvers, resolve.Named{Resolver: pool, Name: "lavalink"})
	return resolve.NewChain(resolvers...), nil
}

// printFilters prints available filters.
func printFilters() {
	fmt.Println("Available Filters:")
	registered := filter.GetRegistered()
	names := make([]string, 0, len(registered))
	for name := range registered {
		names = append(names, name)
	}
	slices.Sort(names)
	for _, name := range names {
		f := registered[name]()
		codes := strings.Join(f.ReturnCodes(), ", ")
		fmt.Printf("  %-30s - %s [codes: %s]\n", f.Name(), f.Description(), codes)
	}
}
