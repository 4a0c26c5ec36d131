// Package guildboxv1 defines the guildbox.v1 RPC messages, procedure names,
// handlers and clients. Messages are plain Go structs carried as JSON.
package guildboxv1

import "time"

// Entry is a queue entry as seen by RPC clients.
type Entry struct {
	ID            string    `json:"id"`
	Title         string    `json:"title"`
	Author        string    `json:"author,omitempty"`
	URI           string    `json:"uri,omitempty"`
	DurationMs    int64     `json:"duration_ms"`
	IsStream      bool      `json:"is_stream,omitempty"`
	Source        string    `json:"source,omitempty"`
	RequesterID   string    `json:"requester_id,omitempty"`
	RequesterName string    `json:"requester_name,omitempty"`
	EnqueuedAt    time.Time `json:"enqueued_at"`
}

// SessionStatus is a snapshot of one guild's player.
type SessionStatus struct {
	GuildID    string  `json:"guild_id"`
	State      string  `json:"state"` // idle, playing, paused
	Current    *Entry  `json:"current,omitempty"`
	Previous   *Entry  `json:"previous,omitempty"`
	Queue      []Entry `json:"queue"`
	PositionMs int64   `json:"position_ms"`
	SkipVotes  int     `json:"skip_votes"`
}

// GuildRequest addresses a guild's session.
type GuildRequest struct {
	GuildID string `json:"guild_id"`
}

// CommandResponse is the reply to commands without a payload.
type CommandResponse struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
}

// EnqueueRequest asks to queue whatever Query resolves to.
type EnqueueRequest struct {
	GuildID        string `json:"guild_id"`
	VoiceChannelID string `json:"voice_channel_id,omitempty"`
	Query          string `json:"query"`
	RequesterID    string `json:"requester_id"`
	RequesterName  string `json:"requester_name"`
	Privileged     bool   `json:"privileged,omitempty"`
}

// QueuedEntry is an accepted entry. Position is the 1-based queue position,
// or 0 when the entry started playing immediately.
type QueuedEntry struct {
	Entry    Entry `json:"entry"`
	Position int   `json:"position"`
}

// RejectedTrack is a track an admission filter refused.
type RejectedTrack struct {
	Title   string `json:"title"`
	Code    string `json:"code"`
	Message string `json:"message"`
}

// EnqueueResponse reports what was queued and what was refused.
type EnqueueResponse struct {
	Success  bool            `json:"success"`
	Code     string          `json:"code,omitempty"`
	Message  string          `json:"message"`
	Queued   []QueuedEntry   `json:"queued,omitempty"`
	Rejected []RejectedTrack `json:"rejected,omitempty"`
}

// VoteSkipRequest casts a skip vote. Eligible lists the voters currently in
// the voice channel.
type VoteSkipRequest struct {
	GuildID  string   `json:"guild_id"`
	VoterID  string   `json:"voter_id"`
	Eligible []string `json:"eligible"`
}

// VoteSkipResponse is the tally after the vote.
type VoteSkipResponse struct {
	Votes    int  `json:"votes"`
	Required int  `json:"required"`
	Skipped  bool `json:"skipped"`
}

// SkipToRequest skips to the 1-based queue position.
type SkipToRequest struct {
	GuildID  string `json:"guild_id"`
	Position int    `json:"position"`
}

// MoveRequest moves an entry to a 1-based queue position.
type MoveRequest struct {
	GuildID  string `json:"guild_id"`
	EntryID  string `json:"entry_id"`
	Position int    `json:"position"`
}

// RemoveRequest removes an entry from the queue.
type RemoveRequest struct {
	GuildID string `json:"guild_id"`
	EntryID string `json:"entry_id"`
}

// RemoveResponse carries the removed entry.
type RemoveResponse struct {
	Entry Entry `json:"entry"`
}

// StatusResponse carries one session.
type StatusResponse struct {
	Session SessionStatus `json:"session"`
}

// ListSessionsRequest lists every active session.
type ListSessionsRequest struct{}

// ListSessionsResponse carries every active session ordered by guild.
type ListSessionsResponse struct {
	Sessions []SessionStatus `json:"sessions"`
}

// SetChannelRequest configures where a guild's announcements go. An empty
// ChannelID turns announcements off.
type SetChannelRequest struct {
	GuildID          string `json:"guild_id"`
	ChannelID        string `json:"channel_id"`
	AnnounceMessages bool   `json:"announce_messages"`
}

// WatchRequest subscribes to a guild's notifications. An empty GuildID
// watches every guild.
type WatchRequest struct {
	GuildID string `json:"guild_id,omitempty"`
}

// NotificationType identifies a notification.
type NotificationType string

const (
	NotificationInitialState NotificationType = "initial_state"
	NotificationNowPlaying   NotificationType = "now_playing"
	NotificationIdle         NotificationType = "idle"
)

// Notification is one message on a Watch stream. The first message of a
// stream is an initial_state notification for each watched session.
type Notification struct {
	SequenceNo uint64           `json:"sequence_no"`
	Type       NotificationType `json:"type"`
	GuildID    string           `json:"guild_id"`
	Entry      *Entry           `json:"entry,omitempty"`
	Session    *SessionStatus   `json:"session,omitempty"`
	Time       time.Time        `json:"time"`
}
