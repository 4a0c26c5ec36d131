package playback

import (
	"context"

	"github.com/cockroachdb/errors"
)

// Adapter receives node lifecycle events. Each method handles exactly one
// event kind; Dispatch is the only caller.
type Adapter interface {
	OnTrackPause(ctx context.Context, ev TrackPause) error
	OnTrackResume(ctx context.Context, ev TrackResume) error
	OnTrackStart(ctx context.Context, ev TrackStart) error
	OnTrackEnd(ctx context.Context, ev TrackEnd) error
	OnTrackException(ctx context.Context, ev TrackException) error
	OnTrackStuck(ctx context.Context, ev TrackStuck) error
}

// Dispatch routes ev to the handler for its kind and returns the handler's
// error. An event outside the closed set yields ErrInvalidEventKind and no
// handler runs.
func Dispatch(ctx context.Context, a Adapter, ev Event) error {
	switch e := ev.(type) {
	case TrackPause:
		return a.OnTrackPause(ctx, e)
	case TrackResume:
		return a.OnTrackResume(ctx, e)
	case TrackStart:
		return a.OnTrackStart(ctx, e)
	case TrackEnd:
		return a.OnTrackEnd(ctx, e)
	case TrackException:
		return a.OnTrackException(ctx, e)
	case TrackStuck:
		return a.OnTrackStuck(ctx, e)
	case nil:
		return errors.Wrap(ErrInvalidEventKind, "nil event")
	default:
		return errors.Wrapf(ErrInvalidEventKind, "%T", ev)
	}
}
