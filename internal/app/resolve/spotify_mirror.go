package resolve

import (
	"context"

	"github.com/cockroachdb/errors"
	zlog "github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"github.com/osa030/guildbox/internal/domain/track"
	"github.com/osa030/guildbox/internal/infra/spotify"
)

// searchConcurrency bounds parallel node searches for one collection.
const searchConcurrency = 4

// MetadataSource reads track metadata for a Spotify link.
type MetadataSource interface {
	Tracks(ctx context.Context, link string) ([]track.Track, error)
}

// SpotifyMirror resolves Spotify links by searching the node for each
// track's author and title. The played audio comes from the node's search
// source; the title, author, link and artwork shown stay Spotify's.
type SpotifyMirror struct {
	source MetadataSource
	node   Resolver
	prefix string
}

// NewSpotifyMirror creates a mirror searching node with prefix (for example
// "ytsearch:").
func NewSpotifyMirror(source MetadataSource, node Resolver, prefix string) *SpotifyMirror {
	return &SpotifyMirror{source: source, node: node, prefix: prefix}
}

// Supports reports whether query is a Spotify track, album or playlist link.
func (m *SpotifyMirror) Supports(query string) bool {
	_, _, ok := spotify.ParseLink(query)
	return ok
}

// Resolve mirrors every track of the link. Tracks without a match are
// skipped; the order of the link is kept.
func (m *SpotifyMirror) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	metas, err := m.source.Tracks(ctx, query)
	if err != nil {
		return nil, errors.Wrap(err, "spotify metadata")
	}

	found := make([]*track.Track, len(metas))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(searchConcurrency)
	for i, meta := range metas {
		g.Go(func() error {
			t, err := m.mirror(gctx, meta)
			if err != nil {
				if gctx.Err() != nil {
					return gctx.Err()
				}
				zlog.Warn().Msgf("resolve: no mirror for spotify track id=%s title=%q error=%v", meta.Identifier, meta.Title, err)
				return nil
			}
			found[i] = &t
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	tracks := make([]track.Track, 0, len(found))
	for _, t := range found {
		if t != nil {
			tracks = append(tracks, *t)
		}
	}
	if len(tracks) == 0 {
		return nil, errors.Wrapf(ErrNoMatches, "spotify link %s", query)
	}
	return tracks, nil
}

func (m *SpotifyMirror) mirror(ctx context.Context, meta track.Track) (track.Track, error) {
	results, err := m.node.Resolve(ctx, m.prefix+meta.Author+" - "+meta.Title)
	if err != nil {
		return track.Track{}, err
	}
	if len(results) == 0 {
		return track.Track{}, ErrNoMatches
	}

	t := results[0]
	t.Title = meta.Title
	t.Author = meta.Author
	t.URI = meta.URI
	if meta.ArtworkURL != "" {
		t.ArtworkURL = meta.ArtworkURL
	}
	return t, nil
}
