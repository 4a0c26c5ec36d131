package playback

import (
	"context"
	"math"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/observe"
	zlog "github.com/rs/zerolog/log"
)

// Config holds player configuration.
type Config struct {
	SkipVoteRatio    float64          // Share of eligible listeners needed to vote-skip
	DirectiveTimeout time.Duration    // Upper bound for one node directive (0 = none)
	Metrics          *observe.Metrics // nil uses observe.DefaultMetrics
}

// VoteResult reports the outcome of a skip vote.
type VoteResult struct {
	Votes    int
	Required int
	Skipped  bool
}

// play is one play directive the node accepted. The node reports exactly one
// TrackEnd per play, in the order the plays were issued, so plays of the same
// track are matched to their events oldest first. reason is set when we stop
// the entry ourselves.
type play struct {
	entryID string
	reason  track.StopReason
}

// Player is the state machine for one session.
//
// Commands and dispatched events are serialized by opMu, so a node event is
// never handled in the middle of a command. mu guards the fields and is never
// held across node I/O, which keeps Status responsive while a directive is
// in flight.
type Player struct {
	opMu sync.Mutex
	mu   sync.RWMutex

	queue     []track.QueueEntry
	current   *track.QueueEntry
	previous  *track.QueueEntry
	paused    bool
	skipVotes map[string]struct{}
	plays     map[string][]play
	closed    bool

	sessionID string
	node      AudioNode
	announcer Announcer
	metrics   *observe.Metrics
	config    Config
}

// NewPlayer creates a player for sessionID backed by node.
// announcer may be nil.
func NewPlayer(sessionID string, node AudioNode, announcer Announcer, config Config) *Player {
	if config.SkipVoteRatio <= 0 || config.SkipVoteRatio > 1 {
		config.SkipVoteRatio = 0.5
	}
	metrics := config.Metrics
	if metrics == nil {
		metrics = observe.DefaultMetrics()
	}
	return &Player{
		queue:     make([]track.QueueEntry, 0),
		skipVotes: make(map[string]struct{}),
		plays:     make(map[string][]play),
		sessionID: sessionID,
		node:      node,
		announcer: announcer,
		metrics:   metrics,
		config:    config,
	}
}

// SessionID returns the session this player belongs to.
func (p *Player) SessionID() string {
	return p.sessionID
}

// Run dispatches node events until ctx is done or the node closes its event
// channel.
func (p *Player) Run(ctx context.Context) {
	events := p.node.Events()
	for {
		select {
		case <-ctx.Done():
			return
		case ev, ok := <-events:
			if !ok {
				zlog.Debug().Msgf("playback: event stream closed guild=%s", p.sessionID)
				return
			}
			p.HandleEvent(ctx, ev)
		}
	}
}

// HandleEvent dispatches one node event. Handler errors have no caller to
// return to, so they are logged here.
func (p *Player) HandleEvent(ctx context.Context, ev Event) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.isClosed() {
		zlog.Debug().Msgf("playback: event after close dropped guild=%s", p.sessionID)
		return
	}

	err := Dispatch(ctx, eventHandler{p}, ev)
	if errors.Is(err, ErrInvalidEventKind) {
		p.metrics.RecordInvalidEvent(ctx)
		zlog.Error().Err(err).Msgf("playback: undeliverable event guild=%s", p.sessionID)
		return
	}
	p.metrics.RecordEvent(ctx, ev.Kind().String())
	if err != nil {
		zlog.Error().Err(err).Msgf("playback: event handler failed guild=%s kind=%s", p.sessionID, ev.Kind())
	}
}

// Enqueue adds a track for requester. If nothing is current it starts
// playing immediately and returns -1; otherwise it returns the zero-based
// queue position.
func (p *Player) Enqueue(ctx context.Context, t track.Track, r track.Requester) (int, error) {
	return p.EnqueueEntry(ctx, track.NewEntry(t, r))
}

// EnqueueEntry is Enqueue for an entry that already has an identity.
func (p *Player) EnqueueEntry(ctx context.Context, e track.QueueEntry) (int, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkOpen(); err != nil {
		return 0, err
	}

	p.mu.RLock()
	idle := p.current == nil
	p.mu.RUnlock()

	if idle {
		if err := p.directive(ctx, "play", func(ctx context.Context) error {
			return p.node.Play(ctx, e.Track)
		}); err != nil {
			return 0, err
		}
		p.mu.Lock()
		p.current = &e
		p.addPlayLocked(e)
		p.mu.Unlock()
		zlog.Info().Msgf("playback: playing guild=%s entry=%s", p.sessionID, e.String())
		return -1, nil
	}

	p.mu.Lock()
	p.queue = append(p.queue, e)
	pos := len(p.queue) - 1
	p.mu.Unlock()
	zlog.Debug().Msgf("playback: queued guild=%s entry=%s position=%d", p.sessionID, e.String(), pos)
	return pos, nil
}

// Shuffle randomly permutes the queue. Current is not touched.
func (p *Player) Shuffle() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	rand.Shuffle(len(p.queue), func(i, j int) {
		p.queue[i], p.queue[j] = p.queue[j], p.queue[i]
	})
}

// Clear empties the queue. Current is not touched.
func (p *Player) Clear() {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()
	p.queue = make([]track.QueueEntry, 0)
}

// Move relocates a queued entry. newPosition is clamped into the queue.
func (p *Player) Move(entryID string, newPosition int) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOfLocked(entryID)
	if idx < 0 {
		return errors.Wrapf(ErrNotFound, "entry %s", entryID)
	}
	e := p.queue[idx]
	rest := append(p.queue[:idx:idx], p.queue[idx+1:]...)

	newPosition = max(0, min(newPosition, len(rest)))
	q := make([]track.QueueEntry, 0, len(rest)+1)
	q = append(q, rest[:newPosition]...)
	q = append(q, e)
	q = append(q, rest[newPosition:]...)
	p.queue = q
	return nil
}

// Remove deletes a queued entry and returns it.
func (p *Player) Remove(entryID string) (track.QueueEntry, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	p.mu.Lock()
	defer p.mu.Unlock()

	idx := p.indexOfLocked(entryID)
	if idx < 0 {
		return track.QueueEntry{}, errors.Wrapf(ErrNotFound, "entry %s", entryID)
	}
	e := p.queue[idx]
	q := make([]track.QueueEntry, 0, len(p.queue)-1)
	q = append(q, p.queue[:idx]...)
	q = append(q, p.queue[idx+1:]...)
	p.queue = q
	return e, nil
}

// Stop ends the current track and empties the queue. The node's TrackEnd for
// the stopped track does not advance.
func (p *Player) Stop(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}

	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()

	if cur != nil {
		if err := p.directive(ctx, "stop", p.node.Stop); err != nil {
			return err
		}
	}

	p.mu.Lock()
	if cur != nil {
		p.tagPlayLocked(*cur, track.StopStopped)
	}
	p.current = nil
	p.queue = make([]track.QueueEntry, 0)
	p.mu.Unlock()

	if cur != nil {
		zlog.Info().Msgf("playback: stopped guild=%s entry=%s", p.sessionID, cur.String())
		p.announceIdle(ctx)
	}
	return nil
}

// Skip ends the current track so the next queued entry starts when the node
// reports the end.
func (p *Player) Skip(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}
	return p.skipLocked(ctx)
}

func (p *Player) skipLocked(ctx context.Context) error {
	p.mu.RLock()
	cur := p.current
	p.mu.RUnlock()
	if cur == nil {
		return nil
	}

	if err := p.directive(ctx, "stop", p.node.Stop); err != nil {
		return err
	}

	p.mu.Lock()
	p.tagPlayLocked(*cur, track.StopSkipped)
	p.mu.Unlock()
	zlog.Info().Msgf("playback: skipped guild=%s entry=%s", p.sessionID, cur.String())
	return nil
}

// SkipTo drops every queued entry before position and skips the current
// track, so the entry at position plays next.
func (p *Player) SkipTo(ctx context.Context, position int) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}

	p.mu.RLock()
	cur := p.current
	n := len(p.queue)
	p.mu.RUnlock()

	if position < 0 || position >= n {
		return errors.Wrapf(ErrPositionOutOfRange, "position %d of %d", position, n)
	}
	if cur == nil {
		return nil
	}

	if err := p.directive(ctx, "stop", p.node.Stop); err != nil {
		return err
	}

	p.mu.Lock()
	p.tagPlayLocked(*cur, track.StopSkipped)
	p.queue = append(make([]track.QueueEntry, 0, n-position), p.queue[position:]...)
	p.mu.Unlock()
	zlog.Info().Msgf("playback: skipped to position guild=%s position=%d", p.sessionID, position)
	return nil
}

// VoteSkip records voter's vote against the current track. Votes from
// listeners outside eligible are discarded. Once enough eligible listeners
// have voted the track is skipped.
func (p *Player) VoteSkip(ctx context.Context, voter string, eligible []string) (VoteResult, error) {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkOpen(); err != nil {
		return VoteResult{}, err
	}

	allowed := make(map[string]struct{}, len(eligible))
	for _, id := range eligible {
		allowed[id] = struct{}{}
	}
	required := max(1, int(math.Ceil(p.config.SkipVoteRatio*float64(len(allowed)))))

	p.mu.Lock()
	if p.current == nil {
		p.mu.Unlock()
		return VoteResult{Required: required}, nil
	}
	for id := range p.skipVotes {
		if _, ok := allowed[id]; !ok {
			delete(p.skipVotes, id)
		}
	}
	if _, ok := allowed[voter]; ok {
		p.skipVotes[voter] = struct{}{}
	}
	votes := len(p.skipVotes)
	p.mu.Unlock()

	result := VoteResult{Votes: votes, Required: required}
	if votes < required {
		return result, nil
	}
	if err := p.skipLocked(ctx); err != nil {
		return result, err
	}
	result.Skipped = true
	return result, nil
}

// Pause pauses the current track.
func (p *Player) Pause(ctx context.Context) error {
	return p.setPaused(ctx, true)
}

// Resume resumes the current track.
func (p *Player) Resume(ctx context.Context) error {
	return p.setPaused(ctx, false)
}

func (p *Player) setPaused(ctx context.Context, paused bool) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if err := p.checkOpen(); err != nil {
		return err
	}

	name := "resume"
	if paused {
		name = "pause"
	}
	if err := p.directive(ctx, name, func(ctx context.Context) error {
		return p.node.SetPaused(ctx, paused)
	}); err != nil {
		return err
	}

	p.mu.Lock()
	p.paused = paused
	p.mu.Unlock()
	return nil
}

// Status returns a snapshot of the player.
func (p *Player) Status() Status {
	p.mu.RLock()
	defer p.mu.RUnlock()

	s := Status{
		SessionID: p.sessionID,
		State:     StateIdle,
		Queue:     append([]track.QueueEntry(nil), p.queue...),
		SkipVotes: len(p.skipVotes),
	}
	if p.current != nil {
		cur := *p.current
		s.Current = &cur
		s.State = StatePlaying
		if p.paused {
			s.State = StatePaused
		}
		s.Position = p.node.Position()
	}
	if p.previous != nil {
		prev := *p.previous
		s.Previous = &prev
	}
	return s
}

// Destroy tears the session down. The player rejects commands afterwards.
// State is cleared even when the node cannot be reached.
func (p *Player) Destroy(ctx context.Context) error {
	p.opMu.Lock()
	defer p.opMu.Unlock()

	if p.isClosed() {
		return nil
	}

	err := p.directive(ctx, "destroy", p.node.Destroy)

	p.mu.Lock()
	hadCurrent := p.current != nil
	p.current = nil
	p.plays = make(map[string][]play)
	p.queue = make([]track.QueueEntry, 0)
	p.skipVotes = make(map[string]struct{})
	p.closed = true
	p.mu.Unlock()

	if hadCurrent {
		p.announceIdle(ctx)
	}
	if err != nil {
		zlog.Warn().Err(err).Msgf("playback: destroy failed guild=%s", p.sessionID)
	}
	return err
}

// directive runs one node call under the configured timeout and records it.
func (p *Player) directive(ctx context.Context, name string, fn func(context.Context) error) error {
	dctx := ctx
	if p.config.DirectiveTimeout > 0 {
		var cancel context.CancelFunc
		dctx, cancel = context.WithTimeout(ctx, p.config.DirectiveTimeout)
		defer cancel()
	}

	start := time.Now()
	err := fn(dctx)
	p.metrics.RecordDirective(ctx, name, time.Since(start), err)
	if err != nil {
		return errors.Mark(errors.Wrapf(err, "%s directive", name), ErrNodeUnavailable)
	}
	return nil
}

func (p *Player) checkOpen() error {
	if p.isClosed() {
		return ErrPlayerClosed
	}
	return nil
}

func (p *Player) isClosed() bool {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.closed
}

func (p *Player) indexOfLocked(entryID string) int {
	for i, e := range p.queue {
		if e.ID == entryID {
			return i
		}
	}
	return -1
}

func (p *Player) addPlayLocked(e track.QueueEntry) {
	key := e.Track.Key()
	p.plays[key] = append(p.plays[key], play{entryID: e.ID})
}

// tagPlayLocked attaches reason to the latest play of e.
func (p *Player) tagPlayLocked(e track.QueueEntry, reason track.StopReason) {
	key := e.Track.Key()
	q := p.plays[key]
	for i := len(q) - 1; i >= 0; i-- {
		if q[i].entryID == e.ID {
			q[i].reason = reason
			return
		}
	}
	p.plays[key] = append(q, play{entryID: e.ID, reason: reason})
}

// popPlayLocked removes and returns the oldest play of key.
func (p *Player) popPlayLocked(key string) (play, bool) {
	q := p.plays[key]
	if len(q) == 0 {
		return play{}, false
	}
	pl := q[0]
	if len(q) == 1 {
		delete(p.plays, key)
	} else {
		p.plays[key] = q[1:]
	}
	return pl, true
}

// reportsCurrentLocked reports whether an event for t belongs to the current
// entry: t is the current track and no older play of it is still waiting for
// its end.
func (p *Player) reportsCurrentLocked(t track.Track) bool {
	if p.current == nil || p.current.Track.Key() != t.Key() {
		return false
	}
	q := p.plays[t.Key()]
	return len(q) == 0 || q[0].entryID == p.current.ID
}

// finish decides what follows the end of the current entry: the next queued
// entry when advance is set, otherwise an idle session.
func (p *Player) finish(ctx context.Context, reason track.StopReason, advance bool) error {
	p.mu.Lock()
	ended := p.current
	if !advance || len(p.queue) == 0 {
		p.current = nil
		p.queue = make([]track.QueueEntry, 0)
		p.mu.Unlock()
		zlog.Info().Msgf("playback: idle guild=%s reason=%s", p.sessionID, reason.Resolve())
		p.announceIdle(ctx)
		return nil
	}
	next := p.queue[0]
	p.mu.Unlock()

	if err := p.directive(ctx, "play", func(ctx context.Context) error {
		return p.node.Play(ctx, next.Track)
	}); err != nil {
		p.mu.Lock()
		p.current = nil
		p.mu.Unlock()
		p.announceIdle(ctx)
		return errors.Wrapf(err, "advance to %s", next.String())
	}

	p.mu.Lock()
	p.previous = ended
	p.current = &next
	p.addPlayLocked(next)
	p.queue = append(make([]track.QueueEntry, 0, len(p.queue)-1), p.queue[1:]...)
	p.mu.Unlock()
	zlog.Info().Msgf("playback: advanced guild=%s entry=%s reason=%s", p.sessionID, next.String(), reason.Resolve())
	return nil
}

func (p *Player) announceNowPlaying(ctx context.Context, e track.QueueEntry) {
	if p.announcer != nil {
		p.announcer.AnnounceNowPlaying(ctx, p.sessionID, e)
	}
}

func (p *Player) announceIdle(ctx context.Context) {
	if p.announcer != nil {
		p.announcer.AnnounceIdle(ctx, p.sessionID)
	}
}

// eventHandler adapts a Player to Adapter. It runs with opMu held.
type eventHandler struct {
	p *Player
}

func (h eventHandler) OnTrackPause(_ context.Context, _ TrackPause) error {
	h.p.mu.Lock()
	h.p.paused = true
	h.p.mu.Unlock()
	return nil
}

func (h eventHandler) OnTrackResume(_ context.Context, _ TrackResume) error {
	h.p.mu.Lock()
	h.p.paused = false
	h.p.mu.Unlock()
	return nil
}

func (h eventHandler) OnTrackStart(ctx context.Context, ev TrackStart) error {
	p := h.p
	p.mu.Lock()
	p.skipVotes = make(map[string]struct{})
	var cur *track.QueueEntry
	if p.reportsCurrentLocked(ev.Track) {
		c := *p.current
		cur = &c
	}
	p.mu.Unlock()

	if cur == nil {
		zlog.Debug().Msgf("playback: start for non-current track ignored guild=%s title=%s", p.sessionID, ev.Track.Title)
		return nil
	}
	p.announceNowPlaying(ctx, *cur)
	return nil
}

func (h eventHandler) OnTrackEnd(ctx context.Context, ev TrackEnd) error {
	p := h.p
	key := ev.Track.Key()

	p.mu.Lock()
	pl, ok := p.popPlayLocked(key)
	if !ok {
		if p.current == nil || p.current.Track.Key() != key {
			p.mu.Unlock()
			zlog.Debug().Msgf("playback: stale end ignored guild=%s title=%s", p.sessionID, ev.Track.Title)
			return nil
		}
		pl = play{entryID: p.current.ID}
	}
	if pl.reason == track.StopUnchanged {
		pl.reason = reasonFromNode(ev.Reason)
	}
	stale := p.current == nil || p.current.ID != pl.entryID
	p.mu.Unlock()

	if stale {
		zlog.Debug().Msgf("playback: end for replaced entry ignored guild=%s reason=%s", p.sessionID, pl.reason)
		return nil
	}
	return p.finish(ctx, pl.reason, pl.reason.MayAutoAdvance())
}

// OnTrackException gives up on the current track and moves on to the next
// queued entry. The node's TrackEnd for the failed track is then stale.
func (h eventHandler) OnTrackException(ctx context.Context, ev TrackException) error {
	p := h.p
	p.mu.Lock()
	if !p.reportsCurrentLocked(ev.Track) {
		p.mu.Unlock()
		zlog.Warn().Msgf("playback: exception for non-current track guild=%s message=%s", p.sessionID, ev.Message)
		return nil
	}
	p.tagPlayLocked(*p.current, track.StopLoadFailed)
	p.mu.Unlock()

	zlog.Warn().Msgf("playback: track exception guild=%s title=%s severity=%s message=%s", p.sessionID, ev.Track.Title, ev.Severity, ev.Message)
	return p.finish(ctx, track.StopLoadFailed, true)
}

// OnTrackStuck force-stops the current track and moves on like
// OnTrackException.
func (h eventHandler) OnTrackStuck(ctx context.Context, ev TrackStuck) error {
	p := h.p
	p.mu.Lock()
	if !p.reportsCurrentLocked(ev.Track) {
		p.mu.Unlock()
		zlog.Warn().Msgf("playback: stuck for non-current track guild=%s", p.sessionID)
		return nil
	}
	p.tagPlayLocked(*p.current, track.StopLoadFailed)
	p.mu.Unlock()

	zlog.Warn().Msgf("playback: track stuck guild=%s title=%s threshold_ms=%d", p.sessionID, ev.Track.Title, ev.ThresholdMs)
	if err := p.directive(ctx, "stop", p.node.Stop); err != nil {
		zlog.Error().Err(err).Msgf("playback: stop after stuck failed guild=%s", p.sessionID)
	}
	return p.finish(ctx, track.StopLoadFailed, true)
}

// reasonFromNode maps a node end reason to a stop reason when the end was not
// caused by one of our directives. Only a node teardown is taken as intent;
// anything else counts as a natural finish.
func reasonFromNode(r EndReason) track.StopReason {
	if r == EndCleanup {
		return track.StopCleanup
	}
	return track.StopUnchanged
}
