// Package resolve turns user queries (links or free text) into playable
// tracks.
package resolve

import (
	"context"
	"strings"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"

	"github.com/osa030/guildbox/internal/domain/track"
)

var (
	// ErrNoMatches is returned when no resolver found a track for a query.
	ErrNoMatches = errors.New("no matches")
	// ErrEmptyQuery is returned for blank queries.
	ErrEmptyQuery = errors.New("empty query")
)

// Resolver resolves a query into tracks.
type Resolver interface {
	// Supports reports whether the resolver handles query.
	Supports(query string) bool
	// Resolve returns the tracks query points at. Returned tracks carry an
	// encoded payload and can be played directly.
	Resolve(ctx context.Context, query string) ([]track.Track, error)
}

// Named pairs a resolver with the name used in logs.
type Named struct {
	Resolver Resolver
	Name     string
}

// Chain hands a query to the first resolver that supports it.
type Chain struct {
	resolvers []Named
}

// NewChain creates a chain trying resolvers in order.
func NewChain(resolvers ...Named) *Chain {
	return &Chain{resolvers: resolvers}
}

// Resolve resolves query with the first supporting resolver. A supporting
// resolver that fails ends the lookup; later resolvers are not tried.
func (c *Chain) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}

	for _, r := range c.resolvers {
		if !r.Resolver.Supports(query) {
			continue
		}
		zlog.Debug().Msgf("resolve: trying resolver=%s query=%q", r.Name, query)

		tracks, err := r.Resolver.Resolve(ctx, query)
		if err != nil {
			return nil, errors.Wrapf(err, "resolver %s", r.Name)
		}
		if len(tracks) == 0 {
			return nil, errors.Wrapf(ErrNoMatches, "resolver %s", r.Name)
		}

		zlog.Debug().Msgf("resolve: resolved resolver=%s query=%q count=%d", r.Name, query, len(tracks))
		return tracks, nil
	}

	return nil, errors.Wrapf(ErrNoMatches, "no resolver for %q", query)
}
