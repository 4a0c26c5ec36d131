package filter

import (
	"context"
	"regexp"
	"strings"

	"github.com/osa030/guildbox/internal/domain/track"
)

// DuplicateTrackFilter rejects a track that is already current or queued.
// Two tracks are the same when their keys match, or when their titles match
// after stripping version and upload noise and their authors match. Covers by
// another author are allowed.
type DuplicateTrackFilter struct{}

// NewDuplicateTrackFilter creates a new duplicate track filter.
func NewDuplicateTrackFilter() *DuplicateTrackFilter {
	return &DuplicateTrackFilter{}
}

func (f *DuplicateTrackFilter) Name() string {
	return "duplicate_track_filter"
}

func (f *DuplicateTrackFilter) Description() string {
	return "Rejects tracks already playing or queued, including re-uploads and remasters"
}

func (f *DuplicateTrackFilter) ReturnCodes() []string {
	return []string{"duplicate_track"}
}

func (f *DuplicateTrackFilter) ValidateConfig(settings map[string]any) error {
	return nil
}

func (f *DuplicateTrackFilter) AppliesTo(r track.Requester) bool {
	return true
}

func (f *DuplicateTrackFilter) Check(ctx context.Context, req Request) Result {
	key := req.Track.Key()
	title := normalizeTitle(req.Track.Title)

	for _, e := range req.Pending() {
		if key != "" && e.Track.Key() == key {
			return Reject("duplicate_track")
		}
		if title != "" && normalizeTitle(e.Track.Title) == title && sameAuthor(e.Track, req.Track) {
			return Reject("duplicate_track")
		}
	}
	return Accept()
}

var (
	// Stripped from titles in order.
	titleNoise = []*regexp.Regexp{
		regexp.MustCompile(`\s*-?\s*\d{4}\s+remaster(ed)?`),
		regexp.MustCompile(`\s*[\(\[][^\)\]]*remaster[^\)\]]*[\)\]]`),
		regexp.MustCompile(`\s*-?\s*remaster(ed)?(\s+version)?`),
		regexp.MustCompile(`\s*[\(\[]official\s+(music\s+)?(video|audio|lyric video|visualizer)[\)\]]`),
		regexp.MustCompile(`\s*[\(\[](lyrics?|hd|hq|4k|mv|m/v)[\)\]]`),
		regexp.MustCompile(`\s*[\(\[][^\)\]]*(version|edit)[\)\]]`),
		regexp.MustCompile(`\s*[\(\[]live[\)\]]`),
		regexp.MustCompile(`\s*-\s*live\b.*$`),
		regexp.MustCompile(`\s*-?\s*radio\s+edit`),
		regexp.MustCompile(`\s*-?\s*single\s+version`),
	}
	whitespace = regexp.MustCompile(`\s+`)
)

// normalizeTitle lowercases a title and strips version and upload noise.
func normalizeTitle(title string) string {
	n := strings.ToLower(title)
	for _, re := range titleNoise {
		n = re.ReplaceAllString(n, "")
	}
	n = whitespace.ReplaceAllString(strings.TrimSpace(n), " ")
	return strings.TrimRight(n, " -")
}

// normalizeAuthor strips the suffixes video sites add to channel names.
func normalizeAuthor(author string) string {
	a := strings.ToLower(strings.TrimSpace(author))
	a = strings.TrimSuffix(a, " - topic")
	a = strings.TrimSuffix(a, "vevo")
	return strings.TrimSpace(a)
}

// sameAuthor reports whether both tracks have the same non-empty author.
func sameAuthor(a, b track.Track) bool {
	x, y := normalizeAuthor(a.Author), normalizeAuthor(b.Author)
	return x != "" && x == y
}

func init() {
	Register("duplicate_track_filter", func() Filter {
		return NewDuplicateTrackFilter()
	})
}
