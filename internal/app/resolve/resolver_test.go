package resolve

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/osa030/guildbox/internal/domain/track"
)

type stubResolver struct {
	supports func(string) bool
	resolve  func(string) ([]track.Track, error)

	mu      sync.Mutex
	queries []string
}

func (s *stubResolver) Supports(q string) bool {
	return s.supports(q)
}

func (s *stubResolver) Resolve(_ context.Context, q string) ([]track.Track, error) {
	s.mu.Lock()
	s.queries = append(s.queries, q)
	s.mu.Unlock()
	return s.resolve(q)
}

func always(string) bool { return true }

func returning(tracks ...track.Track) func(string) ([]track.Track, error) {
	return func(string) ([]track.Track, error) { return tracks, nil }
}

func TestChain_Resolve(t *testing.T) {
	links := &stubResolver{
		supports: func(q string) bool { return strings.HasPrefix(q, "https://") },
		resolve:  returning(track.Track{Encoded: "link"}),
	}
	search := &stubResolver{supports: always, resolve: returning(track.Track{Encoded: "search"})}
	chain := NewChain(Named{links, "links"}, Named{search, "search"})

	got, err := chain.Resolve(context.Background(), "  https://example.com/a  ")
	require.NoError(t, err)
	assert.Equal(t, "link", got[0].Encoded)
	assert.Equal(t, []string{"https://example.com/a"}, links.queries)

	got, err = chain.Resolve(context.Background(), "some words")
	require.NoError(t, err)
	assert.Equal(t, "search", got[0].Encoded)
	assert.Len(t, links.queries, 1)
}

func TestChain_Errors(t *testing.T) {
	failing := &stubResolver{supports: always, resolve: func(string) ([]track.Track, error) {
		return nil, errors.New("node down")
	}}
	empty := &stubResolver{supports: always, resolve: returning()}
	never := &stubResolver{supports: func(string) bool { return false }, resolve: returning()}

	tests := []struct {
		name      string
		chain     *Chain
		query     string
		wantErrIs error
		wantMsg   string
	}{
		{"empty query", NewChain(Named{empty, "empty"}), "   ", ErrEmptyQuery, ""},
		{"no resolver", NewChain(Named{never, "never"}), "q", ErrNoMatches, ""},
		{"empty result", NewChain(Named{empty, "empty"}), "q", ErrNoMatches, ""},
		{"failure stops chain", NewChain(Named{failing, "failing"}, Named{empty, "empty"}), "q", nil, "node down"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := tt.chain.Resolve(context.Background(), tt.query)
			require.Error(t, err)
			if tt.wantErrIs != nil {
				assert.ErrorIs(t, err, tt.wantErrIs)
			}
			if tt.wantMsg != "" {
				assert.Contains(t, err.Error(), tt.wantMsg)
			}
		})
	}
}

type stubSource struct {
	tracks []track.Track
	err    error
}

func (s stubSource) Tracks(context.Context, string) ([]track.Track, error) {
	return s.tracks, s.err
}

func spotifyMeta(id, title, author string) track.Track {
	return track.Track{
		Identifier: id,
		Title:      title,
		Author:     author,
		URI:        "https://open.spotify.com/track/" + id,
		ArtworkURL: "https://i.scdn.co/image/" + id,
		SourceName: "spotify",
	}
}

func TestSpotifyMirror_Supports(t *testing.T) {
	m := NewSpotifyMirror(stubSource{}, &stubResolver{supports: always, resolve: returning()}, "ytsearch:")

	assert.True(t, m.Supports("https://open.spotify.com/track/abc"))
	assert.True(t, m.Supports("spotify:playlist:xyz"))
	assert.False(t, m.Supports("https://www.youtube.com/watch?v=abc"))
	assert.False(t, m.Supports("plain words"))
}

func TestSpotifyMirror_Resolve(t *testing.T) {
	source := stubSource{tracks: []track.Track{
		spotifyMeta("s1", "Never Gonna Give You Up", "Rick Astley"),
		spotifyMeta("s2", "Unfindable", "Nobody"),
		spotifyMeta("s3", "Take On Me", "a-ha"),
	}}
	node := &stubResolver{supports: always, resolve: func(q string) ([]track.Track, error) {
		switch q {
		case "ytsearch:Rick Astley - Never Gonna Give You Up":
			return []track.Track{{Encoded: "enc1", Identifier: "yt1", Title: "Rick Astley - Never Gonna Give You Up (Official Video)", Author: "RickAstleyVEVO", Duration: 213 * time.Second, SourceName: "youtube"}}, nil
		case "ytsearch:a-ha - Take On Me":
			time.Sleep(5 * time.Millisecond)
			return []track.Track{{Encoded: "enc3", Identifier: "yt3", Title: "a-ha - Take On Me", SourceName: "youtube"}}, nil
		default:
			return nil, ErrNoMatches
		}
	}}
	m := NewSpotifyMirror(source, node, "ytsearch:")

	got, err := m.Resolve(context.Background(), "https://open.spotify.com/album/x")
	require.NoError(t, err)
	require.Len(t, got, 2)

	assert.Equal(t, "enc1", got[0].Encoded)
	assert.Equal(t, "Never Gonna Give You Up", got[0].Title)
	assert.Equal(t, "Rick Astley", got[0].Author)
	assert.Equal(t, "https://open.spotify.com/track/s1", got[0].URI)
	assert.Equal(t, "https://i.scdn.co/image/s1", got[0].ArtworkURL)
	assert.Equal(t, 213*time.Second, got[0].Duration)
	assert.Equal(t, "youtube", got[0].SourceName)

	assert.Equal(t, "enc3", got[1].Encoded, "link order is kept")
}

func TestSpotifyMirror_ResolveErrors(t *testing.T) {
	node := &stubResolver{supports: always, resolve: returning()}

	_, err := NewSpotifyMirror(stubSource{err: errors.New("401")}, node, "ytsearch:").
		Resolve(context.Background(), "spotify:track:a")
	assert.Error(t, err)

	_, err = NewSpotifyMirror(stubSource{tracks: []track.Track{spotifyMeta("a", "t", "x")}}, node, "ytsearch:").
		Resolve(context.Background(), "spotify:track:a")
	assert.ErrorIs(t, err, ErrNoMatches)
}
