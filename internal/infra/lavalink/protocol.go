// Package lavalink implements playback.AudioNode on top of a Lavalink v4
// node: the event websocket, the player REST API and track loading.
package lavalink

import (
	"time"

	"github.com/osa030/guildbox/internal/app/playback"
	"github.com/osa030/guildbox/internal/domain/track"
)

// Websocket ops.
const (
	opReady        = "ready"
	opPlayerUpdate = "playerUpdate"
	opStats        = "stats"
	opEvent        = "event"
)

// Event types carried by opEvent.
const (
	eventTrackStart      = "TrackStartEvent"
	eventTrackEnd        = "TrackEndEvent"
	eventTrackException  = "TrackExceptionEvent"
	eventTrackStuck      = "TrackStuckEvent"
	eventWebSocketClosed = "WebSocketClosedEvent"
)

// Load types returned by /v4/loadtracks.
const (
	loadTypeTrack    = "track"
	loadTypePlaylist = "playlist"
	loadTypeSearch   = "search"
	loadTypeEmpty    = "empty"
	loadTypeError    = "error"
)

type wireTrackInfo struct {
	Identifier string  `json:"identifier"`
	IsSeekable bool    `json:"isSeekable"`
	Author     string  `json:"author"`
	Length     int64   `json:"length"`
	IsStream   bool    `json:"isStream"`
	Position   int64   `json:"position"`
	Title      string  `json:"title"`
	URI        *string `json:"uri"`
	ArtworkURL *string `json:"artworkUrl"`
	ISRC       *string `json:"isrc"`
	SourceName string  `json:"sourceName"`
}

type wireTrack struct {
	Encoded string        `json:"encoded"`
	Info    wireTrackInfo `json:"info"`
}

type wireException struct {
	Message  string `json:"message"`
	Severity string `json:"severity"`
	Cause    string `json:"cause"`
}

type wirePlayerState struct {
	Time      int64 `json:"time"`
	Position  int64 `json:"position"`
	Connected bool  `json:"connected"`
	Ping      int64 `json:"ping"`
}

// message is any frame received on the websocket. Fields are populated
// according to Op and Type.
type message struct {
	Op string `json:"op"`

	// ready
	Resumed   bool   `json:"resumed"`
	SessionID string `json:"sessionId"`

	// playerUpdate, event
	GuildID string           `json:"guildId"`
	State   *wirePlayerState `json:"state"`

	// event
	Type        string         `json:"type"`
	Track       *wireTrack     `json:"track"`
	Reason      string         `json:"reason"`
	Exception   *wireException `json:"exception"`
	ThresholdMs int64          `json:"thresholdMs"`
	Code        int            `json:"code"`
	ByRemote    bool           `json:"byRemote"`
}

// playerUpdate is the body of PATCH /v4/sessions/{sessionId}/players/{guildId}.
// Nil fields are omitted.
type playerUpdate struct {
	Track  *trackUpdate `json:"track,omitempty"`
	Paused *bool        `json:"paused,omitempty"`
	Voice  *voiceState  `json:"voice,omitempty"`
}

// trackUpdate sets the playing track; a nil Encoded stops the player.
type trackUpdate struct {
	Encoded *string `json:"encoded"`
}

type voiceState struct {
	Token     string `json:"token"`
	Endpoint  string `json:"endpoint"`
	SessionID string `json:"sessionId"`
}

type restError struct {
	Status  int    `json:"status"`
	Error   string `json:"error"`
	Message string `json:"message"`
	Path    string `json:"path"`
}

func toTrack(w wireTrack) track.Track {
	t := track.Track{
		Encoded:    w.Encoded,
		Identifier: w.Info.Identifier,
		Title:      w.Info.Title,
		Author:     w.Info.Author,
		Duration:   time.Duration(w.Info.Length) * time.Millisecond,
		IsStream:   w.Info.IsStream,
		SourceName: w.Info.SourceName,
	}
	if w.Info.URI != nil {
		t.URI = *w.Info.URI
	}
	if w.Info.ArtworkURL != nil {
		t.ArtworkURL = *w.Info.ArtworkURL
	}
	return t
}

// toEvent converts an event frame into a playback event. ok is false for
// event types the player does not consume.
func toEvent(m message) (playback.Event, bool) {
	var t track.Track
	if m.Track != nil {
		t = toTrack(*m.Track)
	}

	switch m.Type {
	case eventTrackStart:
		return playback.TrackStart{Session: m.GuildID, Track: t}, true
	case eventTrackEnd:
		return playback.TrackEnd{Session: m.GuildID, Track: t, Reason: playback.EndReason(m.Reason)}, true
	case eventTrackException:
		ev := playback.TrackException{Session: m.GuildID, Track: t}
		if m.Exception != nil {
			ev.Message = m.Exception.Message
			ev.Severity = m.Exception.Severity
			ev.Cause = m.Exception.Cause
		}
		return ev, true
	case eventTrackStuck:
		return playback.TrackStuck{Session: m.GuildID, Track: t, ThresholdMs: m.ThresholdMs}, true
	default:
		return nil, false
	}
}
