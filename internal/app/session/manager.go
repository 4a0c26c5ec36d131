// Package session provides the per-guild session manager.
package session

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/singleflight"

	"github.com/osa030/guildbox/internal/app/filter"
	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/app/session/registry"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/observe"
)

var (
	// ErrNoSession is returned by commands for guilds without a session.
	ErrNoSession = registry.ErrNoSession
	// ErrNoNode is returned when no audio node can serve a new session.
	ErrNoNode = errors.New("no audio node available")
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("session manager closed")
)

// NodePool hands out the audio node serving a guild.
type NodePool interface {
	Node(ctx context.Context, guildID string) (playback.AudioNode, error)
}

// Resolver turns a query into playable tracks.
type Resolver interface {
	Resolve(ctx context.Context, query string) ([]track.Track, error)
}

// Voice connects the bot to a guild's voice channel. Optional.
type Voice interface {
	Join(ctx context.Context, guildID, channelID string) error
	Leave(ctx context.Context, guildID string) error
}

// Options configures a Manager. Filters, Announcer, Voice and Metrics may
// be nil.
type Options struct {
	Pool      NodePool
	Resolver  Resolver
	Filters   *filter.Chain
	Announcer playback.Announcer
	Voice     Voice
	Player    playback.Config
	Metrics   *observe.Metrics
}

// Request is a request to enqueue whatever a query resolves to.
type Request struct {
	GuildID        string
	VoiceChannelID string // joined when the session is created
	Query          string
	Requester      track.Requester
}

// Queued is an accepted track and where it went.
type Queued struct {
	Entry    track.QueueEntry
	Position int // -1 when it started playing immediately
}

// Rejection is a track the filter chain refused.
type Rejection struct {
	Track track.Track
	Code  string
}

// EnqueueResult reports the outcome of an Enqueue.
type EnqueueResult struct {
	Queued   []Queued
	Rejected []Rejection
}

// Manager maps guilds to players. Players are created on the first enqueue
// and live until Leave or Close.
type Manager struct {
	registry  *registry.Registry
	pool      NodePool
	resolver  Resolver
	filters   *filter.Chain
	announcer playback.Announcer
	voice     Voice
	playerCfg playback.Config
	metrics   *observe.Metrics

	creating singleflight.Group

	mu     sync.Mutex
	runs   map[*playback.Player]context.CancelFunc
	closed bool
	wg     sync.WaitGroup
}

// NewManager creates a session manager.
func NewManager(opts Options) *Manager {
	filters := opts.Filters
	if filters == nil {
		filters = filter.NewChain()
	}
	metrics := opts.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	playerCfg := opts.Player
	playerCfg.Metrics = metrics

	return &Manager{
		registry:  registry.New(),
		pool:      opts.Pool,
		resolver:  opts.Resolver,
		filters:   filters,
		announcer: opts.Announcer,
		voice:     opts.Voice,
		playerCfg: playerCfg,
		metrics:   metrics,
		runs:      make(map[*playback.Player]context.CancelFunc),
	}
}

// Enqueue resolves req.Query, runs every track through the filter chain and
// enqueues the accepted ones. The guild's session is created when needed.
// A node failure part-way returns the tracks queued so far with the error.
func (m *Manager) Enqueue(ctx context.Context, req Request) (EnqueueResult, error) {
	var result EnqueueResult

	tracks, err := m.resolver.Resolve(ctx, req.Query)
	if err != nil {
		return result, err
	}

	p, err := m.open(ctx, req.GuildID, req.VoiceChannelID)
	if err != nil {
		return result, err
	}

	for _, t := range tracks {
		status := p.Status()
		res := m.filters.Execute(ctx, filter.Request{
			SessionID: req.GuildID,
			Track:     t,
			Requester: req.Requester,
			Current:   status.Current,
			Queue:     status.Queue,
		})
		if !res.Accepted {
			m.metrics.RecordRejection(ctx, res.Code)
			result.Rejected = append(result.Rejected, Rejection{Track: t, Code: res.Code})
			continue
		}

		entry := track.NewEntry(t, req.Requester)
		pos, err := p.EnqueueEntry(ctx, entry)
		if err != nil {
			return result, err
		}
		result.Queued = append(result.Queued, Queued{Entry: entry, Position: pos})
	}

	zlog.Info().Msgf("session: enqueue guild=%s requester=%s query=%q queued=%d rejected=%d",
		req.GuildID, req.Requester.Name, req.Query, len(result.Queued), len(result.Rejected))
	return result, nil
}

// open returns the guild's player. On first use it creates the player, joins
// voice and starts the event loop before the player becomes visible, so
// concurrent callers for the same guild share one creation and its outcome.
func (m *Manager) open(ctx context.Context, guildID, voiceChannelID string) (*playback.Player, error) {
	if p, err := m.registry.Get(guildID); err == nil {
		return p, nil
	}

	v, err, _ := m.creating.Do(guildID, func() (any, error) {
		if p, err := m.registry.Get(guildID); err == nil {
			return p, nil
		}
		return m.create(ctx, guildID, voiceChannelID)
	})
	if err != nil {
		return nil, err
	}
	return v.(*playback.Player), nil
}

func (m *Manager) create(ctx context.Context, guildID, voiceChannelID string) (*playback.Player, error) {
	if m.isClosed() {
		return nil, ErrClosed
	}

	node, err := m.pool.Node(ctx, guildID)
	if err != nil {
		return nil, errors.Mark(errors.Wrapf(err, "guild %s", guildID), ErrNoNode)
	}
	p := playback.NewPlayer(guildID, node, m.announcer, m.playerCfg)

	if m.voice != nil && voiceChannelID != "" {
		if err := m.voice.Join(ctx, guildID, voiceChannelID); err != nil {
			m.discard(ctx, p)
			return nil, errors.Wrapf(err, "join voice channel %s", voiceChannelID)
		}
	}

	runCtx, cancel := context.WithCancel(context.Background())
	m.mu.Lock()
	if m.closed {
		m.mu.Unlock()
		cancel()
		m.discard(ctx, p)
		return nil, ErrClosed
	}
	// Registered with m.mu held so Close either sees the player or fails
	// this creation above.
	if err := m.registry.Add(guildID, p); err != nil {
		m.mu.Unlock()
		cancel()
		m.discard(ctx, p)
		return nil, err
	}
	m.runs[p] = cancel
	m.wg.Add(1)
	m.metrics.ActiveSessions.Add(ctx, 1)
	m.mu.Unlock()

	go func() {
		defer m.wg.Done()
		p.Run(runCtx)
	}()
	zlog.Info().Msgf("session: created guild=%s", guildID)
	return p, nil
}

// discard tears down a player that never became visible.
func (m *Manager) discard(ctx context.Context, p *playback.Player) {
	if err := p.Destroy(ctx); err != nil {
		zlog.Warn().Msgf("session: destroy failed guild=%s error=%v", p.SessionID(), err)
	}
	if m.voice != nil {
		if err := m.voice.Leave(ctx, p.SessionID()); err != nil {
			zlog.Warn().Msgf("session: voice leave failed guild=%s error=%v", p.SessionID(), err)
		}
	}
}

func (m *Manager) isClosed() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.closed
}

// Leave destroys the guild's player and disconnects from voice.
func (m *Manager) Leave(ctx context.Context, guildID string) error {
	p, ok := m.registry.Remove(guildID)
	if !ok {
		return errors.Wrapf(ErrNoSession, "guild %s", guildID)
	}

	err := p.Destroy(ctx)
	if err != nil {
		zlog.Warn().Msgf("session: destroy failed guild=%s error=%v", guildID, err)
	}

	m.mu.Lock()
	cancel := m.runs[p]
	delete(m.runs, p)
	m.mu.Unlock()
	if cancel != nil {
		cancel()
	}

	if m.voice != nil {
		if verr := m.voice.Leave(ctx, guildID); verr != nil {
			zlog.Warn().Msgf("session: voice leave failed guild=%s error=%v", guildID, verr)
		}
	}

	m.metrics.ActiveSessions.Add(ctx, -1)
	zlog.Info().Msgf("session: closed guild=%s", guildID)
	return err
}

// Close destroys every session and waits for their event loops to exit.
func (m *Manager) Close(ctx context.Context) error {
	m.mu.Lock()
	m.closed = true
	m.mu.Unlock()

	var errs error
	for _, p := range m.registry.All() {
		if err := m.Leave(ctx, p.SessionID()); err != nil && !errors.Is(err, ErrNoSession) {
			errs = errors.CombineErrors(errs, err)
		}
	}
	m.wg.Wait()
	return errs
}

// Player returns the guild's player.
func (m *Manager) Player(guildID string) (*playback.Player, error) {
	return m.registry.Get(guildID)
}

// Skip skips the current track.
func (m *Manager) Skip(ctx context.Context, guildID string) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	return p.Skip(ctx)
}

// SkipTo skips to the queue entry at position.
func (m *Manager) SkipTo(ctx context.Context, guildID string, position int) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	return p.SkipTo(ctx, position)
}

// VoteSkip records a skip vote.
func (m *Manager) VoteSkip(ctx context.Context, guildID, voter string, eligible []string) (playback.VoteResult, error) {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return playback.VoteResult{}, err
	}
	return p.VoteSkip(ctx, voter, eligible)
}

// Stop stops playback and clears the queue. The session stays open.
func (m *Manager) Stop(ctx context.Context, guildID string) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	return p.Stop(ctx)
}

// Pause pauses playback.
func (m *Manager) Pause(ctx context.Context, guildID string) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	return p.Pause(ctx)
}

// Resume resumes playback.
func (m *Manager) Resume(ctx context.Context, guildID string) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	return p.Resume(ctx)
}

// Shuffle shuffles the queue.
func (m *Manager) Shuffle(guildID string) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	p.Shuffle()
	return nil
}

// Clear empties the queue.
func (m *Manager) Clear(guildID string) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	p.Clear()
	return nil
}

// Move moves a queue entry.
func (m *Manager) Move(guildID, entryID string, newPosition int) error {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return err
	}
	return p.Move(entryID, newPosition)
}

// Remove removes a queue entry.
func (m *Manager) Remove(guildID, entryID string) (track.QueueEntry, error) {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return track.QueueEntry{}, err
	}
	return p.Remove(entryID)
}

// Status returns the guild's player status.
func (m *Manager) Status(guildID string) (playback.Status, error) {
	p, err := m.registry.Get(guildID)
	if err != nil {
		return playback.Status{}, err
	}
	return p.Status(), nil
}

// Statuses returns the status of every session ordered by guild ID.
func (m *Manager) Statuses() []playback.Status {
	players := m.registry.All()
	out := make([]playback.Status, len(players))
	for i, p := range players {
		out[i] = p.Status()
	}
	return out
}

// Count returns the number of open sessions.
func (m *Manager) Count() int {
	return m.registry.Count()
}
