// Package notification fans playback announcements out to RPC subscribers.
package notification

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Type identifies a notification.
type Type string

const (
	TypeNowPlaying Type = "now_playing"
	TypeIdle       Type = "idle"
)

// Notification is one announcement for a guild.
type Notification struct {
	SequenceNo uint64            `json:"sequence_no"`
	Type       Type              `json:"type"`
	GuildID    string            `json:"guild_id"`
	Entry      *track.QueueEntry `json:"entry,omitempty"`
	Time       time.Time         `json:"time"`
}

// Stream represents a notification stream for a subscriber.
type Stream interface {
	Send(*Notification) error
}

type subscription struct {
	id      string
	guildID string
	stream  Stream
}

// Manager manages notification subscriptions and broadcasting. It
// implements playback.Announcer.
type Manager struct {
	mu            sync.RWMutex
	subscriptions map[string]*subscription
	sequenceNo    uint64
	sequenceNoMu  sync.Mutex
	sendTimeout   time.Duration
}

// NewManager creates a new notification manager.
func NewManager() *Manager {
	return &Manager{
		subscriptions: make(map[string]*subscription),
		sendTimeout:   500 * time.Millisecond,
	}
}

// Subscribe adds a new subscription and returns the subscription ID.
// An empty guildID subscribes to every guild.
func (m *Manager) Subscribe(guildID string, stream Stream) string {
	m.mu.Lock()
	defer m.mu.Unlock()

	id := uuid.New().String()
	m.subscriptions[id] = &subscription{
		id:      id,
		guildID: guildID,
		stream:  stream,
	}
	return id
}

// Unsubscribe removes a subscription.
func (m *Manager) Unsubscribe(subscriptionID string) {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.subscriptions, subscriptionID)
}

// NextSequenceNo reserves the next sequence number. Streams use it to stamp
// their initial state so it orders with broadcasts.
func (m *Manager) NextSequenceNo() uint64 {
	m.sequenceNoMu.Lock()
	defer m.sequenceNoMu.Unlock()
	m.sequenceNo++
	return m.sequenceNo
}

// Broadcast stamps n with the next sequence number and sends it to every
// matching subscriber. Sends run in parallel; a subscriber slower than the
// send timeout misses the notification.
func (m *Manager) Broadcast(n *Notification) {
	n.SequenceNo = m.NextSequenceNo()

	m.mu.RLock()
	subs := make([]*subscription, 0, len(m.subscriptions))
	for _, sub := range m.subscriptions {
		if sub.guildID == "" || sub.guildID == n.GuildID {
			subs = append(subs, sub)
		}
	}
	m.mu.RUnlock()

	var wg sync.WaitGroup
	for _, sub := range subs {
		wg.Add(1)
		go func(s *subscription) {
			defer wg.Done()
			ctx, cancel := context.WithTimeout(context.Background(), m.sendTimeout)
			defer cancel()

			done := make(chan error, 1)
			go func() {
				done <- s.stream.Send(n)
			}()

			select {
			case err := <-done:
				if err != nil {
					zlog.Debug().Msgf("notification: send failed subscription=%s error=%v", s.id, err)
				}
			case <-ctx.Done():
				zlog.Debug().Msgf("notification: send timed out subscription=%s seq=%d", s.id, n.SequenceNo)
			}
		}(sub)
	}
	wg.Wait()
}

// AnnounceNowPlaying broadcasts a now_playing notification.
func (m *Manager) AnnounceNowPlaying(_ context.Context, sessionID string, entry track.QueueEntry) {
	m.Broadcast(&Notification{
		Type:    TypeNowPlaying,
		GuildID: sessionID,
		Entry:   &entry,
		Time:    time.Now(),
	})
}

// AnnounceIdle broadcasts an idle notification.
func (m *Manager) AnnounceIdle(_ context.Context, sessionID string) {
	m.Broadcast(&Notification{
		Type:    TypeIdle,
		GuildID: sessionID,
		Time:    time.Now(),
	})
}

// SubscriberCount returns the number of active subscribers.
func (m *Manager) SubscriberCount() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.subscriptions)
}

// Close removes all subscriptions.
func (m *Manager) Close() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.subscriptions = make(map[string]*subscription)
}
