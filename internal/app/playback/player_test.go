package playback

import (
	"context"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.opentelemetry.io/otel/metric/noop"

	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/observe"
)

// fakeNode records directives and fails on demand.
type fakeNode struct {
	mu         sync.Mutex
	calls      []string
	playErr    error
	stopErr    error
	pauseErr   error
	destroyErr error
	position   time.Duration
	events     chan Event
}

func newFakeNode() *fakeNode {
	return &fakeNode{events: make(chan Event, 16)}
}

func (n *fakeNode) record(call string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.calls = append(n.calls, call)
}

func (n *fakeNode) Play(_ context.Context, t track.Track) error {
	if n.playErr != nil {
		return n.playErr
	}
	n.record("play:" + t.Key())
	return nil
}

func (n *fakeNode) Stop(context.Context) error {
	if n.stopErr != nil {
		return n.stopErr
	}
	n.record("stop")
	return nil
}

func (n *fakeNode) SetPaused(_ context.Context, paused bool) error {
	if n.pauseErr != nil {
		return n.pauseErr
	}
	n.record(fmt.Sprintf("paused:%t", paused))
	return nil
}

func (n *fakeNode) Destroy(context.Context) error {
	n.record("destroy")
	return n.destroyErr
}

func (n *fakeNode) Position() time.Duration { return n.position }
func (n *fakeNode) Events() <-chan Event    { return n.events }

func (n *fakeNode) Calls() []string {
	n.mu.Lock()
	defer n.mu.Unlock()
	return append([]string(nil), n.calls...)
}

// recordingAnnouncer records announcements in order.
type recordingAnnouncer struct {
	mu    sync.Mutex
	calls []string
}

func (a *recordingAnnouncer) AnnounceNowPlaying(_ context.Context, _ string, e track.QueueEntry) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "now:"+e.Track.Key())
}

func (a *recordingAnnouncer) AnnounceIdle(context.Context, string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.calls = append(a.calls, "idle")
}

func (a *recordingAnnouncer) Calls() []string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return append([]string(nil), a.calls...)
}

func newTestPlayer(t *testing.T) (*Player, *fakeNode, *recordingAnnouncer) {
	t.Helper()
	m, err := observe.NewMetrics(noop.NewMeterProvider())
	require.NoError(t, err)

	node := newFakeNode()
	ann := &recordingAnnouncer{}
	p := NewPlayer("guild-1", node, ann, Config{
		SkipVoteRatio:    0.5,
		DirectiveTimeout: time.Second,
		Metrics:          m,
	})
	return p, node, ann
}

func trk(key string) track.Track {
	return track.Track{Encoded: key, Title: "title-" + key}
}

var alice = track.Requester{ID: "u1", Name: "Alice"}

func enqueue(t *testing.T, p *Player, keys ...string) {
	t.Helper()
	for _, k := range keys {
		_, err := p.Enqueue(context.Background(), trk(k), alice)
		require.NoError(t, err)
	}
}

func end(p *Player, key string, reason EndReason) {
	p.HandleEvent(context.Background(), TrackEnd{Session: p.SessionID(), Track: trk(key), Reason: reason})
}

func queueKeys(s Status) []string {
	keys := make([]string, 0, len(s.Queue))
	for _, e := range s.Queue {
		keys = append(keys, e.Track.Key())
	}
	return keys
}

func currentKey(s Status) string {
	if s.Current == nil {
		return ""
	}
	return s.Current.Track.Key()
}

func TestEnqueue_IdlePlaysImmediately(t *testing.T) {
	p, node, _ := newTestPlayer(t)

	pos, err := p.Enqueue(context.Background(), trk("A"), alice)
	require.NoError(t, err)
	assert.Equal(t, -1, pos)

	s := p.Status()
	assert.Equal(t, "A", currentKey(s))
	assert.Equal(t, StatePlaying, s.State)
	assert.Empty(t, s.Queue)
	assert.Equal(t, []string{"play:A"}, node.Calls())
}

func TestEnqueue_AppendsWhilePlaying(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A")

	pos, err := p.Enqueue(context.Background(), trk("B"), alice)
	require.NoError(t, err)
	assert.Equal(t, 0, pos)

	pos, err = p.Enqueue(context.Background(), trk("C"), alice)
	require.NoError(t, err)
	assert.Equal(t, 1, pos)

	assert.Equal(t, []string{"B", "C"}, queueKeys(p.Status()))
	assert.Equal(t, []string{"play:A"}, node.Calls())
}

func TestEnqueue_PlayFailureLeavesStateUnchanged(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	node.playErr = errors.New("connection refused")

	_, err := p.Enqueue(context.Background(), trk("A"), alice)
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNodeUnavailable))

	s := p.Status()
	assert.Nil(t, s.Current)
	assert.Empty(t, s.Queue)
	assert.Equal(t, StateIdle, s.State)
}

func TestTrackEnd_FinishedAdvances(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")

	end(p, "A", EndFinished)

	s := p.Status()
	assert.Equal(t, "B", currentKey(s))
	require.NotNil(t, s.Previous)
	assert.Equal(t, "A", s.Previous.Track.Key())
	assert.Equal(t, []string{"C"}, queueKeys(s))
	assert.Equal(t, []string{"play:A", "play:B"}, node.Calls())
}

func TestTrackEnd_EmptyQueueGoesIdle(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A")

	end(p, "A", EndFinished)

	s := p.Status()
	assert.Nil(t, s.Current)
	assert.Equal(t, StateIdle, s.State)
	assert.Equal(t, []string{"play:A"}, node.Calls())
	assert.Equal(t, []string{"idle"}, ann.Calls())
}

func TestTrackEnd_NodeReasonsWithoutDirective(t *testing.T) {
	tests := []struct {
		name    string
		reason  EndReason
		advance bool
	}{
		{"finished advances", EndFinished, true},
		{"replaced advances", EndReplaced, true},
		{"stopped by node advances", EndStopped, true},
		{"load failed advances", EndLoadFailed, true},
		{"cleanup does not advance", EndCleanup, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer(t)
			enqueue(t, p, "A", "B")

			end(p, "A", tt.reason)

			s := p.Status()
			if tt.advance {
				assert.Equal(t, "B", currentKey(s))
				assert.Empty(t, s.Queue)
			} else {
				assert.Nil(t, s.Current)
				assert.Empty(t, s.Queue)
			}
		})
	}
}

func TestTrackEnd_UnknownTrackIgnored(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	end(p, "Z", EndFinished)

	s := p.Status()
	assert.Equal(t, "A", currentKey(s))
	assert.Equal(t, []string{"B"}, queueKeys(s))
	assert.Equal(t, []string{"play:A"}, node.Calls())
	assert.Empty(t, ann.Calls())
}

func TestTrackEnd_AdvancePlayFailureKeepsQueue(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")
	node.playErr = errors.New("node gone")

	end(p, "A", EndFinished)

	s := p.Status()
	assert.Nil(t, s.Current)
	assert.Equal(t, []string{"B", "C"}, queueKeys(s))
	assert.Equal(t, []string{"idle"}, ann.Calls())
}

func TestSkip_AdvancesWhenEndArrives(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	require.NoError(t, p.Skip(context.Background()))
	assert.Equal(t, "A", currentKey(p.Status()), "current is kept until the node reports the end")

	end(p, "A", EndStopped)

	s := p.Status()
	assert.Equal(t, "B", currentKey(s))
	assert.Equal(t, []string{"play:A", "stop", "play:B"}, node.Calls())
}

func TestSkip_LastTrackGoesIdle(t *testing.T) {
	p, _, ann := newTestPlayer(t)
	enqueue(t, p, "A")

	require.NoError(t, p.Skip(context.Background()))
	end(p, "A", EndStopped)

	assert.Nil(t, p.Status().Current)
	assert.Equal(t, []string{"idle"}, ann.Calls())
}

func TestSkip_IdleIsNoop(t *testing.T) {
	p, node, _ := newTestPlayer(t)

	require.NoError(t, p.Skip(context.Background()))
	assert.Empty(t, node.Calls())
}

func TestSkip_DirectiveFailure(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")
	node.stopErr = errors.New("timeout")

	err := p.Skip(context.Background())
	assert.True(t, errors.Is(err, ErrNodeUnavailable))

	// No intent was recorded, so a later natural end still advances.
	node.stopErr = nil
	end(p, "A", EndFinished)
	assert.Equal(t, "B", currentKey(p.Status()))
}

func TestSkipTo(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C", "D")

	require.NoError(t, p.SkipTo(context.Background(), 2))
	assert.Equal(t, []string{"D"}, queueKeys(p.Status()))

	end(p, "A", EndStopped)

	s := p.Status()
	assert.Equal(t, "D", currentKey(s))
	assert.Empty(t, s.Queue)
	assert.Equal(t, []string{"play:A", "stop", "play:D"}, node.Calls())
}

func TestSkipTo_OutOfRange(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	for _, pos := range []int{-1, 1, 5} {
		err := p.SkipTo(context.Background(), pos)
		assert.True(t, errors.Is(err, ErrPositionOutOfRange), "position %d", pos)
	}
	assert.Equal(t, []string{"B"}, queueKeys(p.Status()))
	assert.Equal(t, []string{"play:A"}, node.Calls())
}

func TestSkipTo_DirectiveFailureKeepsQueue(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")
	node.stopErr = errors.New("timeout")

	require.Error(t, p.SkipTo(context.Background(), 1))
	assert.Equal(t, []string{"B", "C"}, queueKeys(p.Status()))
}

func TestStop_ClearsEverythingAndLateEndIsIgnored(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")

	require.NoError(t, p.Stop(context.Background()))

	s := p.Status()
	assert.Nil(t, s.Current)
	assert.Empty(t, s.Queue)

	end(p, "A", EndStopped)

	assert.Nil(t, p.Status().Current)
	assert.Equal(t, []string{"play:A", "stop"}, node.Calls())
	assert.Equal(t, []string{"idle"}, ann.Calls())
}

func TestStop_ThenReenqueueSameTrack(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	require.NoError(t, p.Stop(context.Background()))
	enqueue(t, p, "A")
	second := p.Status().Current
	require.NotNil(t, second)

	// The end of the first instance arrives after the second started.
	end(p, "A", EndStopped)

	s := p.Status()
	require.NotNil(t, s.Current)
	assert.Equal(t, second.ID, s.Current.ID)
	assert.Equal(t, []string{"play:A", "stop", "play:A"}, node.Calls())

	// The second instance still finishes normally.
	end(p, "A", EndFinished)
	assert.Nil(t, p.Status().Current)
}

func TestStop_ReenqueueSameTrackWithLateStartAndEnd(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A")
	require.NoError(t, p.Stop(context.Background()))
	enqueue(t, p, "A", "B")
	second := p.Status().Current
	require.NotNil(t, second)

	// The node reports the first instance's start and end before the
	// second instance starts.
	p.HandleEvent(context.Background(), TrackStart{Session: "guild-1", Track: trk("A")})
	end(p, "A", EndStopped)
	p.HandleEvent(context.Background(), TrackStart{Session: "guild-1", Track: trk("A")})

	s := p.Status()
	require.NotNil(t, s.Current)
	assert.Equal(t, second.ID, s.Current.ID)
	assert.Equal(t, []string{"B"}, queueKeys(s))
	assert.Equal(t, []string{"play:A", "stop", "play:A"}, node.Calls())
	assert.Equal(t, []string{"idle", "now:A"}, ann.Calls())

	end(p, "A", EndFinished)
	assert.Equal(t, "B", currentKey(p.Status()))
}

func TestStop_IdleClearsQueueWithoutDirective(t *testing.T) {
	p, node, ann := newTestPlayer(t)

	require.NoError(t, p.Stop(context.Background()))
	assert.Empty(t, node.Calls())
	assert.Empty(t, ann.Calls())
}

func TestStop_DirectiveFailureLeavesStateUnchanged(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")
	node.stopErr = errors.New("timeout")

	err := p.Stop(context.Background())
	assert.True(t, errors.Is(err, ErrNodeUnavailable))

	s := p.Status()
	assert.Equal(t, "A", currentKey(s))
	assert.Equal(t, []string{"B"}, queueKeys(s))
}

func TestTrackException_AdvancesToNextEntry(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")

	p.HandleEvent(context.Background(), TrackException{
		Session: "guild-1", Track: trk("A"), Message: "video unavailable", Severity: "common",
	})

	s := p.Status()
	assert.Equal(t, "B", currentKey(s))
	assert.Equal(t, []string{"C"}, queueKeys(s))

	// The node's follow-up end for the failed track changes nothing.
	end(p, "A", EndLoadFailed)
	s = p.Status()
	assert.Equal(t, "B", currentKey(s))
	assert.Equal(t, []string{"C"}, queueKeys(s))
	assert.Equal(t, []string{"play:A", "play:B"}, node.Calls())
	assert.Empty(t, ann.Calls())
}

func TestTrackException_LastEntryGoesIdle(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A")

	p.HandleEvent(context.Background(), TrackException{Session: "guild-1", Track: trk("A")})
	end(p, "A", EndLoadFailed)

	assert.Nil(t, p.Status().Current)
	assert.Equal(t, []string{"play:A"}, node.Calls())
	assert.Equal(t, []string{"idle"}, ann.Calls())
}

func TestTrackException_NonCurrentIgnored(t *testing.T) {
	p, _, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	p.HandleEvent(context.Background(), TrackException{Session: "guild-1", Track: trk("B")})

	assert.Equal(t, "A", currentKey(p.Status()))
	assert.Empty(t, ann.Calls())
}

func TestTrackStuck_ForcesStopAndAdvances(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")

	p.HandleEvent(context.Background(), TrackStuck{Session: "guild-1", Track: trk("A"), ThresholdMs: 10000})

	s := p.Status()
	assert.Equal(t, "B", currentKey(s))
	assert.Equal(t, []string{"C"}, queueKeys(s))
	assert.Equal(t, []string{"play:A", "stop", "play:B"}, node.Calls())

	end(p, "A", EndStopped)
	assert.Equal(t, "B", currentKey(p.Status()))
	assert.Equal(t, []string{"play:A", "stop", "play:B"}, node.Calls())
}

func TestTrackStuck_StopFailureStillAdvances(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")
	node.stopErr = errors.New("timeout")

	p.HandleEvent(context.Background(), TrackStuck{Session: "guild-1", Track: trk("A")})

	s := p.Status()
	assert.Equal(t, "B", currentKey(s))
	assert.Empty(t, s.Queue)
}

func TestTrackStart_AnnouncesCurrentAndClearsVotes(t *testing.T) {
	p, _, ann := newTestPlayer(t)
	enqueue(t, p, "A")

	res, err := p.VoteSkip(context.Background(), "u1", []string{"u1", "u2", "u3", "u4"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)

	p.HandleEvent(context.Background(), TrackStart{Session: "guild-1", Track: trk("A")})

	assert.Equal(t, 0, p.Status().SkipVotes)
	assert.Equal(t, []string{"now:A"}, ann.Calls())
}

func TestTrackStart_NonCurrentNotAnnounced(t *testing.T) {
	p, _, ann := newTestPlayer(t)
	enqueue(t, p, "A")

	p.HandleEvent(context.Background(), TrackStart{Session: "guild-1", Track: trk("Z")})
	assert.Empty(t, ann.Calls())
}

func TestPauseResume(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A")

	require.NoError(t, p.Pause(context.Background()))
	assert.Equal(t, StatePaused, p.Status().State)

	// The node's own pause event agrees and changes nothing.
	p.HandleEvent(context.Background(), TrackPause{Session: "guild-1"})
	assert.Equal(t, StatePaused, p.Status().State)

	require.NoError(t, p.Resume(context.Background()))
	assert.Equal(t, StatePlaying, p.Status().State)

	assert.Equal(t, []string{"play:A", "paused:true", "paused:false"}, node.Calls())
}

func TestPause_DirectiveFailure(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A")
	node.pauseErr = errors.New("timeout")

	assert.True(t, errors.Is(p.Pause(context.Background()), ErrNodeUnavailable))
}

func TestVoteSkip(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")
	eligible := []string{"u1", "u2", "u3"}

	res, err := p.VoteSkip(context.Background(), "u1", eligible)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Votes: 1, Required: 2}, res)

	res, err = p.VoteSkip(context.Background(), "outsider", eligible)
	require.NoError(t, err)
	assert.Equal(t, VoteResult{Votes: 1, Required: 2}, res)

	res, err = p.VoteSkip(context.Background(), "u1", eligible)
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes, "voting twice counts once")

	res, err = p.VoteSkip(context.Background(), "u2", eligible)
	require.NoError(t, err)
	assert.True(t, res.Skipped)
	assert.Equal(t, []string{"play:A", "stop"}, node.Calls())
}

func TestVoteSkip_DropsVotesFromListenersWhoLeft(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	enqueue(t, p, "A")

	_, err := p.VoteSkip(context.Background(), "u1", []string{"u1", "u2", "u3", "u4"})
	require.NoError(t, err)

	res, err := p.VoteSkip(context.Background(), "u2", []string{"u2", "u3", "u4", "u5", "u6"})
	require.NoError(t, err)
	assert.Equal(t, 1, res.Votes)
	assert.Equal(t, 3, res.Required)
	assert.False(t, res.Skipped)
}

func TestVoteSkip_IdleIsNoop(t *testing.T) {
	p, node, _ := newTestPlayer(t)

	res, err := p.VoteSkip(context.Background(), "u1", []string{"u1"})
	require.NoError(t, err)
	assert.False(t, res.Skipped)
	assert.Empty(t, node.Calls())
}

func TestMove(t *testing.T) {
	tests := []struct {
		name     string
		move     string
		to       int
		expected []string
	}{
		{"to front", "D", 0, []string{"D", "B", "C"}},
		{"to back", "B", 2, []string{"C", "D", "B"}},
		{"clamped high", "B", 99, []string{"C", "D", "B"}},
		{"clamped low", "C", -3, []string{"C", "B", "D"}},
		{"same place", "C", 1, []string{"B", "C", "D"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, _, _ := newTestPlayer(t)
			enqueue(t, p, "A", "B", "C", "D")

			var id string
			for _, e := range p.Status().Queue {
				if e.Track.Key() == tt.move {
					id = e.ID
				}
			}
			require.NoError(t, p.Move(id, tt.to))
			assert.Equal(t, tt.expected, queueKeys(p.Status()))
			assert.Equal(t, "A", currentKey(p.Status()))
		})
	}
}

func TestMove_NotFound(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	err := p.Move("missing", 0)
	assert.True(t, errors.Is(err, ErrNotFound))
	assert.Equal(t, []string{"B"}, queueKeys(p.Status()))
}

func TestRemove(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")

	id := p.Status().Queue[0].ID
	removed, err := p.Remove(id)
	require.NoError(t, err)
	assert.Equal(t, "B", removed.Track.Key())
	assert.Equal(t, []string{"C"}, queueKeys(p.Status()))

	_, err = p.Remove(id)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestShuffle_KeepsEntriesAndCurrent(t *testing.T) {
	tests := []struct {
		name   string
		queued []string
	}{
		{"empty queue", nil},
		{"single entry", []string{"B"}},
		{"many entries", []string{"B", "C", "D", "E", "F"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			p, node, _ := newTestPlayer(t)
			enqueue(t, p, append([]string{"A"}, tt.queued...)...)
			before := p.Status()

			p.Shuffle()

			s := p.Status()
			require.NotNil(t, s.Current)
			assert.Equal(t, before.Current.ID, s.Current.ID)
			if len(tt.queued) <= 1 {
				assert.Equal(t, before.Queue, s.Queue)
			} else {
				assert.ElementsMatch(t, tt.queued, queueKeys(s))
			}
			assert.Equal(t, []string{"play:A"}, node.Calls())
		})
	}
}

func TestClear_KeepsCurrent(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B", "C")

	p.Clear()

	s := p.Status()
	assert.Equal(t, "A", currentKey(s))
	assert.Empty(t, s.Queue)

	end(p, "A", EndFinished)
	assert.Nil(t, p.Status().Current)
}

func TestStatus_Position(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	node.position = 42 * time.Second

	assert.Zero(t, p.Status().Position)

	enqueue(t, p, "A")
	assert.Equal(t, 42*time.Second, p.Status().Position)
}

func TestDestroy(t *testing.T) {
	p, node, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	require.NoError(t, p.Destroy(context.Background()))

	s := p.Status()
	assert.Nil(t, s.Current)
	assert.Empty(t, s.Queue)
	assert.Equal(t, []string{"idle"}, ann.Calls())

	_, err := p.Enqueue(context.Background(), trk("C"), alice)
	assert.True(t, errors.Is(err, ErrPlayerClosed))

	end(p, "A", EndCleanup)
	assert.Equal(t, []string{"play:A", "destroy"}, node.Calls())

	require.NoError(t, p.Destroy(context.Background()), "destroy is idempotent")
}

func TestDestroy_NodeFailureStillClears(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A")
	node.destroyErr = errors.New("gone")

	err := p.Destroy(context.Background())
	assert.True(t, errors.Is(err, ErrNodeUnavailable))
	assert.Nil(t, p.Status().Current)
}

func TestHandleEvent_InvalidEventChangesNothing(t *testing.T) {
	p, _, ann := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	p.HandleEvent(context.Background(), &TrackEnd{Session: "guild-1", Track: trk("A")})
	p.HandleEvent(context.Background(), nil)

	s := p.Status()
	assert.Equal(t, "A", currentKey(s))
	assert.Equal(t, []string{"B"}, queueKeys(s))
	assert.Empty(t, ann.Calls())
}

func TestRun_ConsumesNodeEvents(t *testing.T) {
	p, node, _ := newTestPlayer(t)
	enqueue(t, p, "A", "B")

	done := make(chan struct{})
	go func() {
		p.Run(context.Background())
		close(done)
	}()

	node.events <- TrackEnd{Session: "guild-1", Track: trk("A"), Reason: EndFinished}
	close(node.events)

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after the event stream closed")
	}
	assert.Equal(t, "B", currentKey(p.Status()))
}

func TestRun_StopsOnContextCancel(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		p.Run(ctx)
		close(done)
	}()
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Run did not return after cancel")
	}
}

func TestConcurrentEnqueueAndEvents(t *testing.T) {
	p, _, _ := newTestPlayer(t)
	enqueue(t, p, "seed")

	const n = 50
	var wg sync.WaitGroup
	for i := range n {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := p.Enqueue(context.Background(), trk(fmt.Sprintf("t%d", i)), alice)
			assert.NoError(t, err)
		}()
	}
	wg.Add(1)
	go func() {
		defer wg.Done()
		for range 10 {
			_ = p.Status()
			p.HandleEvent(context.Background(), TrackPause{Session: "guild-1"})
		}
	}()
	wg.Wait()

	s := p.Status()
	assert.Equal(t, "seed", currentKey(s))
	assert.Len(t, s.Queue, n)
}
