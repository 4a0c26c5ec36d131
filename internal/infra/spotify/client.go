// Package spotify provides a client for the Spotify Web API, used to read
// metadata for Spotify links so they can be played from another source.
package spotify

import (
	"context"
	"net/url"
	"strings"
	"time"

	"github.com/cockroachdb/errors"
	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"

	"github.com/osa030/guildbox/internal/domain/track"
)

// Kind is the type of a Spotify link.
type Kind string

const (
	KindTrack    Kind = "track"
	KindPlaylist Kind = "playlist"
	KindAlbum    Kind = "album"
)

// maxCollectionTracks bounds how many tracks a playlist or album expands to.
const maxCollectionTracks = 100

// Client is a Spotify API client authenticated with client credentials.
type Client struct {
	client     *spotify.Client
	market     string
	maxRetries int
	retryDelay time.Duration
}

// Config represents Spotify client configuration.
type Config struct {
	ClientID     string
	ClientSecret string
	Market       string
}

// New creates a new Spotify client.
func New(ctx context.Context, cfg Config) (*Client, error) {
	if cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, errors.New("spotify credentials are required")
	}

	creds := &clientcredentials.Config{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	if _, err := creds.Token(ctx); err != nil {
		return nil, errors.Wrap(err, "failed to obtain spotify token")
	}

	return newWithClient(spotify.New(creds.Client(ctx)), cfg.Market), nil
}

func newWithClient(c *spotify.Client, market string) *Client {
	if market == "" {
		market = "US"
	}
	return &Client{
		client:     c,
		market:     market,
		maxRetries: 3,
		retryDelay: time.Second,
	}
}

// Tracks returns the tracks a Spotify link points at: one for a track link,
// up to maxCollectionTracks for a playlist or album.
func (c *Client) Tracks(ctx context.Context, link string) ([]track.Track, error) {
	kind, id, ok := ParseLink(link)
	if !ok {
		return nil, errors.Newf("not a spotify link: %s", link)
	}

	switch kind {
	case KindTrack:
		t, err := c.GetTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		return []track.Track{t}, nil
	case KindPlaylist:
		return c.GetPlaylistTracks(ctx, id)
	default:
		return c.GetAlbumTracks(ctx, id)
	}
}

// GetTrack retrieves one track by ID.
func (c *Client) GetTrack(ctx context.Context, id string) (track.Track, error) {
	var result *spotify.FullTrack
	err := c.retry(ctx, func() error {
		t, err := c.client.GetTrack(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		result = t
		return nil
	})
	if err != nil {
		return track.Track{}, errors.Wrap(err, "failed to get track")
	}
	return convertTrack(&result.SimpleTrack, result.Album), nil
}

// GetPlaylistTracks retrieves the first tracks of a playlist. Episodes are
// skipped.
func (c *Client) GetPlaylistTracks(ctx context.Context, id string) ([]track.Track, error) {
	var page *spotify.PlaylistItemPage
	err := c.retry(ctx, func() error {
		p, err := c.client.GetPlaylistItems(ctx, spotify.ID(id),
			spotify.Limit(maxCollectionTracks),
			spotify.Market(c.market),
		)
		if err != nil {
			return err
		}
		page = p
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get playlist items")
	}

	tracks := make([]track.Track, 0, len(page.Items))
	for _, item := range page.Items {
		if ft := item.Track.Track; ft != nil && ft.ID != "" {
			tracks = append(tracks, convertTrack(&ft.SimpleTrack, ft.Album))
		}
	}
	return tracks, nil
}

// GetAlbumTracks retrieves the first tracks of an album.
func (c *Client) GetAlbumTracks(ctx context.Context, id string) ([]track.Track, error) {
	var album *spotify.FullAlbum
	err := c.retry(ctx, func() error {
		a, err := c.client.GetAlbum(ctx, spotify.ID(id), spotify.Market(c.market))
		if err != nil {
			return err
		}
		album = a
		return nil
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to get album")
	}

	items := album.Tracks.Tracks
	if len(items) > maxCollectionTracks {
		items = items[:maxCollectionTracks]
	}
	tracks := make([]track.Track, 0, len(items))
	for i := range items {
		tracks = append(tracks, convertTrack(&items[i], album.SimpleAlbum))
	}
	return tracks, nil
}

// convertTrack converts Spotify track metadata to a domain Track. The result
// carries no encoded payload; it must be resolved on a node before playing.
func convertTrack(t *spotify.SimpleTrack, album spotify.SimpleAlbum) track.Track {
	artists := make([]string, len(t.Artists))
	for i, a := range t.Artists {
		artists[i] = a.Name
	}

	var artwork string
	if len(album.Images) > 0 {
		artwork = album.Images[0].URL
	}

	return track.Track{
		Identifier: string(t.ID),
		URI:        TrackURL(string(t.ID)),
		Title:      t.Name,
		Author:     strings.Join(artists, ", "),
		Duration:   time.Duration(t.Duration) * time.Millisecond,
		SourceName: "spotify",
		ArtworkURL: artwork,
	}
}

// TrackURL returns the Spotify URL for a track.
func TrackURL(id string) string {
	return "https://open.spotify.com/track/" + id
}

// ParseLink extracts the kind and ID from a Spotify URL
// (https://open.spotify.com/track/ID, optionally with an intl-xx segment)
// or URI (spotify:track:ID).
func ParseLink(link string) (Kind, string, bool) {
	link = strings.TrimSpace(link)

	if rest, ok := strings.CutPrefix(link, "spotify:"); ok {
		parts := strings.Split(rest, ":")
		if len(parts) != 2 {
			return "", "", false
		}
		return validate(Kind(parts[0]), parts[1])
	}

	u, err := url.Parse(link)
	if err != nil || (u.Scheme != "https" && u.Scheme != "http") || u.Host != "open.spotify.com" {
		return "", "", false
	}
	segments := strings.Split(strings.Trim(u.Path, "/"), "/")
	if len(segments) > 0 && strings.HasPrefix(segments[0], "intl-") {
		segments = segments[1:]
	}
	if len(segments) != 2 {
		return "", "", false
	}
	return validate(Kind(segments[0]), segments[1])
}

func validate(kind Kind, id string) (Kind, string, bool) {
	switch kind {
	case KindTrack, KindPlaylist, KindAlbum:
	default:
		return "", "", false
	}
	if id == "" {
		return "", "", false
	}
	return kind, id, true
}

// retry retries an operation with linear backoff while the error is
// retryable and ctx is live.
func (c *Client) retry(ctx context.Context, fn func() error) error {
	var lastErr error
	for i := 0; i < c.maxRetries; i++ {
		err := fn()
		if err == nil {
			return nil
		}
		lastErr = err

		if !isRetryable(err) {
			return err
		}

		if i < c.maxRetries-1 {
			select {
			case <-ctx.Done():
				return errors.Wrap(ctx.Err(), "retry aborted")
			case <-time.After(c.retryDelay * time.Duration(i+1)):
			}
		}
	}
	return errors.Wrap(lastErr, "max retries exceeded")
}

// isRetryable checks if an error is retryable.
func isRetryable(err error) bool {
	if err == nil {
		return false
	}
	var se spotify.Error
	if errors.As(err, &se) {
		return se.Status == 429 || se.Status >= 500
	}
	errStr := err.Error()
	return strings.Contains(errStr, "rate limit") ||
		strings.Contains(errStr, "429") ||
		strings.Contains(errStr, "500") ||
		strings.Contains(errStr, "502") ||
		strings.Contains(errStr, "503") ||
		strings.Contains(errStr, "504")
}
