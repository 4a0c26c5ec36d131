package playback

import "github.com/osa030/guildbox/internal/domain/track"

// EventKind identifies one of the lifecycle events an audio node reports.
type EventKind int

const (
	KindTrackPause     EventKind = iota // Playback paused
	KindTrackResume                     // Playback resumed
	KindTrackStart                      // Track started playing
	KindTrackEnd                        // Track ended for any reason
	KindTrackException                  // Track failed while loading or playing
	KindTrackStuck                      // Track stopped producing audio
)

// String returns the string representation of the event kind.
func (k EventKind) String() string {
	switch k {
	case KindTrackPause:
		return "track_pause"
	case KindTrackResume:
		return "track_resume"
	case KindTrackStart:
		return "track_start"
	case KindTrackEnd:
		return "track_end"
	case KindTrackException:
		return "track_exception"
	case KindTrackStuck:
		return "track_stuck"
	default:
		return "unknown"
	}
}

// EndReason is the node-reported reason a track ended.
type EndReason string

const (
	EndFinished   EndReason = "finished"
	EndLoadFailed EndReason = "loadFailed"
	EndStopped    EndReason = "stopped"
	EndReplaced   EndReason = "replaced"
	EndCleanup    EndReason = "cleanup"
)

// Event is a lifecycle notification from an audio node for one session.
// The set of implementations is closed; see Dispatch.
type Event interface {
	Kind() EventKind
	SessionID() string
	isEvent()
}

// TrackPause reports that playback was paused.
type TrackPause struct {
	Session string
}

// TrackResume reports that playback was resumed.
type TrackResume struct {
	Session string
}

// TrackStart reports that a track started playing.
type TrackStart struct {
	Session string
	Track   track.Track
}

// TrackEnd reports that a track ended.
type TrackEnd struct {
	Session string
	Track   track.Track
	Reason  EndReason
}

// TrackException reports that a track failed.
type TrackException struct {
	Session  string
	Track    track.Track
	Message  string
	Severity string
	Cause    string
}

// TrackStuck reports that a track produced no audio for ThresholdMs.
type TrackStuck struct {
	Session     string
	Track       track.Track
	ThresholdMs int64
}

func (TrackPause) Kind() EventKind     { return KindTrackPause }
func (TrackResume) Kind() EventKind    { return KindTrackResume }
func (TrackStart) Kind() EventKind     { return KindTrackStart }
func (TrackEnd) Kind() EventKind       { return KindTrackEnd }
func (TrackException) Kind() EventKind { return KindTrackException }
func (TrackStuck) Kind() EventKind     { return KindTrackStuck }

func (e TrackPause) SessionID() string     { return e.Session }
func (e TrackResume) SessionID() string    { return e.Session }
func (e TrackStart) SessionID() string     { return e.Session }
func (e TrackEnd) SessionID() string       { return e.Session }
func (e TrackException) SessionID() string { return e.Session }
func (e TrackStuck) SessionID() string     { return e.Session }

func (TrackPause) isEvent()     {}
func (TrackResume) isEvent()    {}
func (TrackStart) isEvent()     {}
func (TrackEnd) isEvent()       {}
func (TrackException) isEvent() {}
func (TrackStuck) isEvent()     {}
