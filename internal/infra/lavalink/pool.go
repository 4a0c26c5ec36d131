package lavalink

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

// ErrNoNode is returned when no configured node is connected.
var ErrNoNode = errors.New("no lavalink node available")

// Pool holds the connections to every configured node. A guild stays on the
// node its link was created on.
type Pool struct {
	clients []*Client
	mu      sync.Mutex
}

// NewPool creates a client per config without connecting.
func NewPool(cfgs []Config) (*Pool, error) {
	p := &Pool{}
	for _, cfg := range cfgs {
		c, err := NewClient(cfg)
		if err != nil {
			return nil, errors.Wrapf(err, "node %s", cfg.Name)
		}
		p.clients = append(p.clients, c)
	}
	return p, nil
}

// Connect connects every node concurrently. It fails only when no node
// could be reached.
func (p *Pool) Connect(ctx context.Context) error {
	g, gctx := errgroup.WithContext(ctx)
	for _, c := range p.clients {
		g.Go(func() error {
			if err := c.Connect(gctx); err != nil {
				zlog.Warn().Err(err).Msgf("lavalink: node unavailable node=%s", c.Name())
			}
			return nil
		})
	}
	_ = g.Wait()

	if p.connected() == nil {
		return ErrNoNode
	}
	return nil
}

// Close disconnects every node.
func (p *Pool) Close() error {
	var errs error
	for _, c := range p.clients {
		if err := c.Close(); err != nil {
			errs = errors.CombineErrors(errs, err)
		}
	}
	return errs
}

// Link returns the link already serving guildID, or creates one on the
// first connected node.
func (p *Pool) Link(guildID string) (*Link, error) {
	p.mu.Lock()
	defer p.mu.Unlock()

	for _, c := range p.clients {
		if l, ok := c.lookupLink(guildID); ok {
			return l, nil
		}
	}
	c := p.connected()
	if c == nil {
		return nil, ErrNoNode
	}
	return c.Link(guildID), nil
}

// Node returns the audio node for guildID.
func (p *Pool) Node(_ context.Context, guildID string) (playback.AudioNode, error) {
	l, err := p.Link(guildID)
	if err != nil {
		return nil, err
	}
	return l, nil
}

// Supports reports whether any node can resolve queries.
func (p *Pool) Supports(string) bool {
	return p.connected() != nil
}

// Resolve loads query on the first connected node.
func (p *Pool) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	c := p.connected()
	if c == nil {
		return nil, ErrNoNode
	}
	return c.Resolve(ctx, query)
}

// UpdateVoiceServer forwards a voice server update to the guild's link.
func (p *Pool) UpdateVoiceServer(ctx context.Context, guildID, token, endpoint string) error {
	l, err := p.Link(guildID)
	if err != nil {
		return err
	}
	return l.UpdateVoiceServer(ctx, token, endpoint)
}

// UpdateVoiceSession forwards the bot's voice session ID to the guild's link.
func (p *Pool) UpdateVoiceSession(ctx context.Context, guildID, sessionID string) error {
	l, err := p.Link(guildID)
	if err != nil {
		return err
	}
	return l.UpdateVoiceSession(ctx, sessionID)
}

func (p *Pool) connected() *Client {
	for _, c := range p.clients {
		if c.Ready() {
			return c
		}
	}
	return nil
}
