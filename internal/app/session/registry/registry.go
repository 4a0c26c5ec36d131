// Package registry holds the per-guild players.
package registry

import (
	"sort"
	"sync"

	"github.com/cockroachdb/errors"

	"github.com/osa030/guildbox/internal/app/playback"
)

var (
	// ErrNoSession is returned for guilds without a player.
	ErrNoSession = errors.New("no session for guild")
	// ErrSessionExists is returned when adding a second player for a guild.
	ErrSessionExists = errors.New("session already exists for guild")
)

// Registry maps guild IDs to players with thread-safe access.
type Registry struct {
	mu      sync.RWMutex
	players map[string]*playback.Player
}

// New creates an empty registry.
func New() *Registry {
	return &Registry{
		players: make(map[string]*playback.Player),
	}
}

// Get returns the player of guildID.
func (r *Registry) Get(guildID string) (*playback.Player, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	p, ok := r.players[guildID]
	if !ok {
		return nil, errors.Wrapf(ErrNoSession, "guild %s", guildID)
	}
	return p, nil
}

// Add registers p for guildID. It fails with ErrSessionExists when the guild
// already has a player.
func (r *Registry) Add(guildID string, p *playback.Player) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, ok := r.players[guildID]; ok {
		return errors.Wrapf(ErrSessionExists, "guild %s", guildID)
	}
	r.players[guildID] = p
	return nil
}

// Remove removes and returns the player of guildID.
func (r *Registry) Remove(guildID string) (*playback.Player, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	p, ok := r.players[guildID]
	if ok {
		delete(r.players, guildID)
	}
	return p, ok
}

// All returns every player ordered by guild ID.
func (r *Registry) All() []*playback.Player {
	r.mu.RLock()
	defer r.mu.RUnlock()

	result := make([]*playback.Player, 0, len(r.players))
	for _, p := range r.players {
		result = append(result, p)
	}
	sort.Slice(result, func(i, j int) bool {
		return result[i].SessionID() < result[j].SessionID()
	})
	return result
}

// Count returns the number of players.
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.players)
}
