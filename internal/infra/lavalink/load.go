package lavalink

import (
	"context"
	"encoding/json"
	"net/http"
	"net/url"
	"strings"

	"github.com/cockroachdb/errors"

	"github.com/osa030/guildbox/internal/app/resolve"
	"github.com/osa030/guildbox/internal/domain/track"
)

// ErrNoMatches is returned when a load finds nothing. It is the resolver
// chain's sentinel, so callers above the chain can test for it.
var ErrNoMatches = resolve.ErrNoMatches

// DefaultSearchPrefix is applied to queries that are neither URLs nor
// already prefixed with a search source.
const DefaultSearchPrefix = "ytsearch:"

// LoadResult is the outcome of /v4/loadtracks.
type LoadResult struct {
	Type         string
	Tracks       []track.Track
	PlaylistName string
	// Selected is the index of the selected playlist track, or -1.
	Selected int
}

type loadResponse struct {
	LoadType string          `json:"loadType"`
	Data     json.RawMessage `json:"data"`
}

type playlistData struct {
	Info struct {
		Name          string `json:"name"`
		SelectedTrack int    `json:"selectedTrack"`
	} `json:"info"`
	Tracks []wireTrack `json:"tracks"`
}

// LoadTracks resolves identifier on the node. An "error" load type is
// returned as an error; an "empty" one as ErrNoMatches.
func (c *Client) LoadTracks(ctx context.Context, identifier string) (LoadResult, error) {
	var resp loadResponse
	path := "/v4/loadtracks?identifier=" + url.QueryEscape(identifier)
	if err := c.do(ctx, http.MethodGet, path, nil, &resp); err != nil {
		return LoadResult{}, err
	}

	res := LoadResult{Type: resp.LoadType, Selected: -1}
	switch resp.LoadType {
	case loadTypeTrack:
		var w wireTrack
		if err := json.Unmarshal(resp.Data, &w); err != nil {
			return LoadResult{}, errors.Wrap(err, "decode track")
		}
		res.Tracks = []track.Track{toTrack(w)}

	case loadTypePlaylist:
		var p playlistData
		if err := json.Unmarshal(resp.Data, &p); err != nil {
			return LoadResult{}, errors.Wrap(err, "decode playlist")
		}
		res.PlaylistName = p.Info.Name
		res.Selected = p.Info.SelectedTrack
		res.Tracks = toTracks(p.Tracks)

	case loadTypeSearch:
		var ws []wireTrack
		if err := json.Unmarshal(resp.Data, &ws); err != nil {
			return LoadResult{}, errors.Wrap(err, "decode search")
		}
		res.Tracks = toTracks(ws)

	case loadTypeEmpty:
		return res, errors.Wrapf(ErrNoMatches, "load %q", identifier)

	case loadTypeError:
		var ex wireException
		_ = json.Unmarshal(resp.Data, &ex)
		return res, errors.Newf("load %q failed: %s (%s)", identifier, ex.Message, ex.Severity)

	default:
		return res, errors.Newf("unknown load type %q", resp.LoadType)
	}

	if len(res.Tracks) == 0 {
		return res, errors.Wrapf(ErrNoMatches, "load %q", identifier)
	}
	return res, nil
}

// Supports reports true: any query can be loaded or searched on a node.
func (c *Client) Supports(string) bool {
	return true
}

// Resolve loads query on the node. Plain text is searched with
// DefaultSearchPrefix and only the best match is returned; links return
// every track they point at.
func (c *Client) Resolve(ctx context.Context, query string) ([]track.Track, error) {
	res, err := c.LoadTracks(ctx, SearchIdentifier(query))
	if err != nil {
		return nil, err
	}
	if res.Type == loadTypeSearch {
		return res.Tracks[:1], nil
	}
	return res.Tracks, nil
}

// SearchIdentifier turns a free-text query into a node search identifier.
// URLs and already prefixed searches are returned unchanged.
func SearchIdentifier(query string) string {
	query = strings.TrimSpace(query)
	if u, err := url.Parse(query); err == nil && u.Scheme != "" && u.Host != "" {
		return query
	}
	if prefix, _, ok := strings.Cut(query, "search:"); ok && !strings.Contains(prefix, " ") && prefix != "" {
		return query
	}
	return DefaultSearchPrefix + query
}

func toTracks(ws []wireTrack) []track.Track {
	out := make([]track.Track, len(ws))
	for i, w := range ws {
		out[i] = toTrack(w)
	}
	return out
}
