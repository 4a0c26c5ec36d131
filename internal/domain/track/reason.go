package track

// StopReason records why the orchestrator stopped a track.
// It is attached when a stop directive is issued and read back when the
// node reports the end of that track.
type StopReason int

const (
	StopUnchanged  StopReason = iota // No stop issued by the orchestrator
	StopFinished                     // Natural end of track
	StopStopped                      // Explicit stop command
	StopSkipped                      // Explicit skip command
	StopLoadFailed                   // Node reported an exception or stuck track
	StopCleanup                      // Session torn down
)

// String returns the string representation of the reason.
func (r StopReason) String() string {
	switch r {
	case StopUnchanged:
		return "unchanged"
	case StopFinished:
		return "finished"
	case StopStopped:
		return "stopped"
	case StopSkipped:
		return "skipped"
	case StopLoadFailed:
		return "load_failed"
	case StopCleanup:
		return "cleanup"
	default:
		return "unknown"
	}
}

// Resolve maps Unchanged to Finished: a track that ended without any stop
// directive from us finished on its own. Every other reason is returned as is.
func (r StopReason) Resolve() StopReason {
	if r == StopUnchanged {
		return StopFinished
	}
	return r
}

// MayAutoAdvance reports whether the next queued entry should start after a
// track stopped for this reason. Unchanged is resolved first.
func (r StopReason) MayAutoAdvance() bool {
	switch r.Resolve() {
	case StopFinished, StopSkipped:
		return true
	default:
		return false
	}
}
